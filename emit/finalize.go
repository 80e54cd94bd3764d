// Copyright 2024 The abccompile Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emit

import (
	"encoding/binary"

	"github.com/abcnative/abccompile/token"
)

// MaxStackLimit bounds the tracked maximum evaluation-stack depth; no
// method body this emitter produces may require a deeper stack.
const MaxStackLimit = 65535

// MethodBody is the `{code_bytes, max_stack, init_locals_flag,
// local_signature_bytes, local_signature_handle, exception_section_bytes,
// virtual_token_locations}` compiled output of spec.md §3.
type MethodBody struct {
	Code                  []byte
	MaxStack              int
	InitLocals            bool
	LocalSignatureBytes   []byte
	LocalSignatureHandle  token.StandaloneSignatureHandle
	ExceptionSectionBytes []byte
	VirtualTokenLocations []int
}

// decidedBranch is a non-switch branch record plus whether the fixed-
// point pass selected its short form.
type decidedBranch struct {
	rec   *branchRecord
	short bool
}

// Finalize completes emission: selects short-form branches, relocates
// every offset, serializes the exception table and local signature, and
// returns the compiled method body. Emission calls made after Finalize are
// not rejected; Reset clears the Emitter's state for the next method body.
func (e *Emitter) Finalize() (*MethodBody, error) {
	if e.hasOpenRegions() {
		return nil, errf(KindOpenHandlers, "finalize: %d exception block(s) still open", len(e.blocks))
	}
	for i := range e.labels {
		if !e.labels[i].bound {
			return nil, errf(KindUnmarkedLabel, "label %d was created but never marked", i)
		}
	}
	if e.maxStack > MaxStackLimit {
		return nil, errf(KindMaxStackExceeded, "max_stack %d exceeds limit %d", e.maxStack, MaxStackLimit)
	}

	decided := e.selectShortForms()
	relocs := make([]relocation, 0, len(decided))
	for _, d := range decided {
		if d.short {
			relocs = append(relocs, relocation{startOffset: d.rec.offsetPos + 1, shift: -bytesSavedByShortening})
		}
	}
	table := newRelocationTable(relocs)

	code := e.materialize(decided, table)
	excBytes := serializeExceptionSection(e.finishedRegions, table.relocate)
	sigBytes, sigHandle, err := e.buildLocalSignature()
	if err != nil {
		return nil, err
	}

	virtualLocs := make([]int, len(e.virtualTokens))
	for i, p := range e.virtualTokens {
		virtualLocs[i] = table.relocate(p)
	}

	e.finalized = true
	return &MethodBody{
		Code:                  code,
		MaxStack:              e.maxStack,
		InitLocals:            true,
		LocalSignatureBytes:   sigBytes,
		LocalSignatureHandle:  sigHandle,
		ExceptionSectionBytes: excBytes,
		VirtualTokenLocations: virtualLocs,
	}, nil
}

// selectShortForms runs the fixed-point pass of spec.md §4.1: a branch
// shortens only once its post-relocation displacement (accounting for
// every other shortening already decided) fits in a signed byte.
func (e *Emitter) selectShortForms() []decidedBranch {
	var candidates []decidedBranch
	for i := range e.branches {
		br := &e.branches[i]
		if br.isSwitch {
			continue
		}
		if _, ok := ShortFormOf(br.op); ok {
			candidates = append(candidates, decidedBranch{rec: br})
		}
	}

	for pass := 0; pass <= len(candidates); pass++ {
		relocs := make([]relocation, 0, len(candidates))
		for _, d := range candidates {
			if d.short {
				relocs = append(relocs, relocation{startOffset: d.rec.offsetPos + 1, shift: -bytesSavedByShortening})
			}
		}
		table := newRelocationTable(relocs)

		changed := false
		for i := range candidates {
			if candidates[i].short {
				continue
			}
			d := &candidates[i]
			targetPos := e.labels[d.rec.target.id].pos
			prospectiveBase := d.rec.offsetPos + 1 + table.shiftAt(d.rec.offsetPos)
			relocatedTarget := targetPos + table.shiftAt(targetPos)
			disp := relocatedTarget - prospectiveBase
			if disp >= -128 && disp < 127 {
				d.short = true
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return candidates
}

// materialize copies e.code into the final byte stream, rewriting
// shortened branches to their 1-byte-displacement form and patching every
// surviving long-form and switch displacement with its relocated value.
func (e *Emitter) materialize(decided []decidedBranch, table relocationTable) []byte {
	type patch struct {
		pos       int // position in original stream where the patch starts
		long      bool
		opcodePos int // -1 unless this patch also rewrites the preceding opcode byte
		shortOp   Op
		dispValue int
	}
	var patches []patch

	for _, d := range decided {
		targetPos := e.labels[d.rec.target.id].pos
		if d.short {
			shortOp, _ := ShortFormOf(d.rec.op)
			newBase := table.relocate(d.rec.offsetPos) + 1
			disp := table.relocate(targetPos) - newBase
			patches = append(patches, patch{
				pos: d.rec.offsetPos, long: false,
				opcodePos: d.rec.offsetPos - 1, shortOp: shortOp, dispValue: disp,
			})
		} else {
			newBase := table.relocate(d.rec.basePos)
			disp := table.relocate(targetPos) - newBase
			patches = append(patches, patch{pos: d.rec.offsetPos, long: true, opcodePos: -1, dispValue: disp})
		}
	}
	for _, br := range e.branches {
		if !br.isSwitch {
			continue
		}
		for i, off := range br.switchOffsets {
			targetPos := e.labels[br.switchTargets[i].id].pos
			newBase := table.relocate(br.switchBase)
			disp := table.relocate(targetPos) - newBase
			patches = append(patches, patch{pos: off, long: true, opcodePos: -1, dispValue: disp})
		}
	}

	patchAt := make(map[int]patch, len(patches))
	for _, p := range patches {
		patchAt[p.pos] = p
	}

	out := make([]byte, 0, len(e.code))
	code := e.code
	for pos := 0; pos < len(code); {
		if p, ok := patchAt[pos]; ok {
			if p.long {
				out = binary.LittleEndian.AppendUint32(out, uint32(int32(p.dispValue)))
				pos += 4
				continue
			}
			// Short form: out already has the long opcode byte written by
			// the normal copy path one iteration ago; overwrite it.
			out[len(out)-1] = byte(p.shortOp)
			out = append(out, byte(int8(p.dispValue)))
			pos += 4 // skip the 4-byte placeholder; the opcode byte was already copied
			continue
		}
		out = append(out, code[pos])
		pos++
	}
	return out
}
