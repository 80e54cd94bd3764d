// Copyright 2024 The abccompile Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emit

import "sort"

// branchRecord is the {offset_pos, base_pos, target, opcode, short_form?}
// tuple of spec.md §3: offset_pos is where the displacement is written,
// base_pos is the position the displacement is measured from (the end of
// the instruction).
type branchRecord struct {
	offsetPos int
	basePos   int
	target    Label
	op        Op
	isSwitch  bool
	// switchOffsets/switchTargets/switchBase hold the per-case branch
	// data for a switch instruction, which is never shortened but whose
	// displacements still need relocation against other branches'
	// shortening.
	switchOffsets []int
	switchTargets []Label
	switchBase    int
}

// relocation is the {start_offset, cumulative_shift} record of spec.md §3,
// produced when a long-form branch is rewritten to its short form,
// collapsing 3 bytes (4-byte displacement plus long opcode minus 1-byte
// displacement plus short opcode).
type relocation struct {
	startOffset int
	shift       int
}

const bytesSavedByShortening = 3

// relocationTable is a sorted, monotone cumulative-shift function over a
// set of relocations (spec.md's testable property 2).
type relocationTable struct {
	rs  []relocation
	cum []int // cum[i] = Σ rs[0..i].shift
}

func newRelocationTable(rs []relocation) relocationTable {
	sort.Slice(rs, func(i, j int) bool { return rs[i].startOffset < rs[j].startOffset })
	cum := make([]int, len(rs))
	sum := 0
	for i, r := range rs {
		sum += r.shift
		cum[i] = sum
	}
	return relocationTable{rs: rs, cum: cum}
}

// shiftAt returns Σ{r.shift : r.start_offset ≤ pos}, the net number of
// bytes removed from the stream before pos, via binary search over the
// sorted relocation list.
func (t relocationTable) shiftAt(pos int) int {
	lo, hi := 0, len(t.rs)
	for lo < hi {
		mid := (lo + hi) / 2
		if t.rs[mid].startOffset <= pos {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == 0 {
		return 0
	}
	return t.cum[lo-1]
}

// relocate translates a pre-shortening byte position into its
// post-shortening position.
func (t relocationTable) relocate(pos int) int {
	return pos + t.shiftAt(pos)
}
