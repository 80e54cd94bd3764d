// Copyright 2024 The abccompile Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emit

import (
	"encoding/binary"
	"sort"

	"github.com/abcnative/abccompile/token"
)

// RegionKind classifies an exception-region handler, per spec.md §3/§6.
type RegionKind int8

const (
	RegionCatch RegionKind = iota
	RegionFilter
	RegionFault
	RegionFinally
)

// kindCode returns the on-disk kind code of spec.md §6: catch=0, filter=1,
// finally=2, fault=4 — not a dense enumeration, so it is kept distinct
// from RegionKind's own iota ordering.
func (k RegionKind) kindCode() uint32 {
	switch k {
	case RegionCatch:
		return 0
	case RegionFilter:
		return 1
	case RegionFinally:
		return 2
	case RegionFault:
		return 4
	default:
		return 0
	}
}

type regionState int8

const (
	stateInTry regionState = iota
	stateInFilterExpr
	stateInFilterHandler
	stateInCatch
	stateInFault
	stateInFinally
	stateClosed
)

// region is one try/handler pair, or a continuation record sharing a
// duplicated try range with an earlier clause on the same try block
// (spec.md §3, "Exception region").
type region struct {
	kind  RegionKind
	state regionState

	tryStart, tryEnd         int
	handlerStart, handlerEnd int
	filterStart              int

	catchType    token.EntityHandle
	hasCatchType bool

	isContinuation bool
}

// excBlock is one begin_try .. end_try nest: a shared end-label and the
// sequence of clauses (region records) attached to it.
type excBlock struct {
	endLabel  Label
	tryStart  int
	hasClause bool // whether any BeginXxx has run yet (still in_try if not)
	current   *region
}

// BeginTry opens a new exception block at the current position.
func (e *Emitter) BeginTry() error {
	e.blocks = append(e.blocks, &excBlock{
		endLabel: e.CreateLabel(),
		tryStart: len(e.code),
	})
	return nil
}

func (e *Emitter) topBlock() (*excBlock, error) {
	if len(e.blocks) == 0 {
		return nil, errf(KindBadClauseOrder, "no open exception block")
	}
	return e.blocks[len(e.blocks)-1], nil
}

// emitImplicitLeave emits a leave to blk's end-label unless the body
// already ends with throw, leave or leave.s, per spec.md §4.1's "emits a
// leave to the region's end-label at the end of every try, catch, or
// filter-handler body".
func (e *Emitter) emitImplicitLeave(blk *excBlock) error {
	if e.lastOp == Leave || e.lastOp == LeaveS || e.lastOp == Throw {
		return nil
	}
	return e.emitBranchTo(Leave, blk.endLabel)
}

// closePriorClause finalizes blk's currently open clause, if any, emitting
// the implicit leave/endfinally terminator required by spec.md §4.1 when
// the body does not already end with throw/leave/endfinally, and appends
// it to the finished-regions list. When blk has no open clause yet (the
// raw try body, still in_try), it gets the same implicit leave a catch or
// filter-handler body would — the try body itself is also one of the
// bodies spec.md §4.1 names, and without this the try body falls straight
// through into whatever clause begins next instead of branching around it.
func (e *Emitter) closePriorClause(blk *excBlock) error {
	if blk.current == nil {
		if blk.hasClause {
			return nil
		}
		return e.emitImplicitLeave(blk)
	}
	r := blk.current
	switch r.kind {
	case RegionFault, RegionFinally:
		if e.lastOp != EndFinally {
			if err := e.emitRaw(EndFinally, NoOperand()); err != nil {
				return err
			}
		}
	default:
		if err := e.emitImplicitLeave(blk); err != nil {
			return err
		}
	}
	r.handlerEnd = len(e.code)
	r.state = stateClosed
	e.finishedRegions = append(e.finishedRegions, r)
	blk.current = nil
	return nil
}

// BeginCatch starts a catch clause with the given resolved type handle,
// or continues an open filter clause's handler body when called right
// after BeginFilter (type is ignored in that case, per spec.md §4.1).
func (e *Emitter) BeginCatch(catchType token.EntityHandle, hasCatchType bool) error {
	blk, err := e.topBlock()
	if err != nil {
		return err
	}

	if blk.current != nil && blk.current.state == stateInFilterExpr {
		if e.lastOp != EndFilter {
			if err := e.emitRaw(EndFilter, NoOperand()); err != nil {
				return err
			}
		}
		blk.current.handlerStart = len(e.code)
		blk.current.state = stateInFilterHandler
		e.stackDepth = 1
		return nil
	}

	isContinuation := blk.hasClause
	if err := e.closePriorClause(blk); err != nil {
		return err
	}
	tryEnd := len(e.code)
	r := &region{
		kind:         RegionCatch,
		state:        stateInCatch,
		tryStart:     blk.tryStart,
		tryEnd:       tryEnd,
		handlerStart: tryEnd,
		catchType:    catchType,
		hasCatchType: hasCatchType,
		isContinuation: isContinuation,
	}
	blk.current = r
	blk.hasClause = true
	e.stackDepth = 1
	return nil
}

// BeginFilter starts a filter clause's boolean-expression body. Nested
// filter clauses are forbidden: a filter expression may not itself
// contain another filter clause.
func (e *Emitter) BeginFilter() error {
	blk, err := e.topBlock()
	if err != nil {
		return err
	}
	for _, b := range e.blocks {
		if b.current != nil && (b.current.state == stateInFilterExpr || b.current.state == stateInFilterHandler) {
			return errf(KindBadClauseOrder, "nested filter clauses are forbidden")
		}
	}

	isContinuation := blk.hasClause
	if err := e.closePriorClause(blk); err != nil {
		return err
	}
	tryEnd := len(e.code)
	r := &region{
		kind:           RegionFilter,
		state:          stateInFilterExpr,
		tryStart:       blk.tryStart,
		tryEnd:         tryEnd,
		filterStart:    tryEnd,
		isContinuation: isContinuation,
	}
	blk.current = r
	blk.hasClause = true
	e.stackDepth = 1
	return nil
}

func (e *Emitter) beginHandlerNoValue(kind RegionKind) error {
	blk, err := e.topBlock()
	if err != nil {
		return err
	}
	isContinuation := blk.hasClause
	if err := e.closePriorClause(blk); err != nil {
		return err
	}
	tryEnd := len(e.code)
	r := &region{
		kind:           kind,
		tryStart:       blk.tryStart,
		tryEnd:         tryEnd,
		handlerStart:   tryEnd,
		isContinuation: isContinuation,
	}
	if kind == RegionFault {
		r.state = stateInFault
	} else {
		r.state = stateInFinally
	}
	blk.current = r
	blk.hasClause = true
	e.stackDepth = 0
	return nil
}

// BeginFault starts a fault clause (runs only when the try block unwinds
// due to an exception, unlike finally).
func (e *Emitter) BeginFault() error { return e.beginHandlerNoValue(RegionFault) }

// BeginFinally starts a finally clause.
func (e *Emitter) BeginFinally() error { return e.beginHandlerNoValue(RegionFinally) }

// EndTry closes the innermost open exception block: finalizes its last
// clause and binds the block's shared end-label to the position
// following the whole block.
func (e *Emitter) EndTry() error {
	blk, err := e.topBlock()
	if err != nil {
		return err
	}
	if !blk.hasClause {
		return errf(KindBadClauseOrder, "end_try with no clauses attached to the try block")
	}
	if err := e.closePriorClause(blk); err != nil {
		return err
	}
	if err := e.MarkLabel(blk.endLabel); err != nil {
		return err
	}
	e.blocks = e.blocks[:len(e.blocks)-1]
	return nil
}

// hasOpenRegions reports whether any exception block remains open, which
// is an error at finalize time (spec.md §4.1, "open_handlers").
func (e *Emitter) hasOpenRegions() bool { return len(e.blocks) > 0 }

// sectionForm chooses between the small (byte-sized fields) and fat
// (32-bit fields) exception-section layouts of spec.md §6.
func sectionForm(regions []*region) (small bool) {
	if len(regions) == 0 {
		return true
	}
	for _, r := range regions {
		if r.tryStart > 65535 || r.handlerStart > 65535 {
			return false
		}
		if r.tryEnd-r.tryStart > 255 || r.handlerEnd-r.handlerStart > 255 {
			return false
		}
	}
	total := 4 + 12*len(regions)
	return total <= 255
}

// serializeExceptionSection writes the exception table of spec.md §6, with
// regions sorted ascending by try_end (nested regions precede their
// parents, spec.md's testable property 4). relocate maps a pre-shortening
// byte offset to its final offset.
func serializeExceptionSection(regions []*region, relocate func(int) int) []byte {
	if len(regions) == 0 {
		return nil
	}
	sorted := make([]*region, len(regions))
	copy(sorted, regions)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].tryEnd < sorted[j].tryEnd })

	small := sectionForm(sorted)
	var buf []byte
	if small {
		buf = append(buf, 0x01)
		buf = append(buf, byte(len(sorted)))
		buf = append(buf, 0, 0) // pad:u16
		for _, r := range sorted {
			tryOff := relocate(r.tryStart)
			tryEnd := relocate(r.tryEnd)
			hdlOff := relocate(r.handlerStart)
			hdlEnd := relocate(r.handlerEnd)
			var entry [12]byte
			binary.LittleEndian.PutUint16(entry[0:2], uint16(r.kind.kindCode()))
			binary.LittleEndian.PutUint16(entry[2:4], uint16(tryOff))
			entry[4] = byte(tryEnd - tryOff)
			binary.LittleEndian.PutUint16(entry[5:7], uint16(hdlOff))
			entry[7] = byte(hdlEnd - hdlOff)
			binary.LittleEndian.PutUint32(entry[8:12], extraField(r))
			buf = append(buf, entry[:]...)
		}
		return buf
	}

	n := uint32(len(sorted))
	buf = append(buf, 0x41, byte(n), byte(n>>8), byte(n>>16))
	for _, r := range sorted {
		tryOff := relocate(r.tryStart)
		tryEnd := relocate(r.tryEnd)
		hdlOff := relocate(r.handlerStart)
		hdlEnd := relocate(r.handlerEnd)
		var entry [24]byte
		binary.LittleEndian.PutUint32(entry[0:4], r.kind.kindCode())
		binary.LittleEndian.PutUint32(entry[4:8], uint32(tryOff))
		binary.LittleEndian.PutUint32(entry[8:12], uint32(tryEnd-tryOff))
		binary.LittleEndian.PutUint32(entry[12:16], uint32(hdlOff))
		binary.LittleEndian.PutUint32(entry[16:20], uint32(hdlEnd-hdlOff))
		binary.LittleEndian.PutUint32(entry[20:24], extraField(r))
		buf = append(buf, entry[:]...)
	}
	return buf
}

func extraField(r *region) uint32 {
	switch r.kind {
	case RegionCatch:
		return uint32(r.catchType)
	case RegionFilter:
		return uint32(r.filterStart)
	default:
		return 0
	}
}
