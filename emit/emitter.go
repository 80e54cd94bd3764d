// Copyright 2024 The abccompile Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emit

import (
	"encoding/binary"
	"math"

	"github.com/abcnative/abccompile/token"
)

// Emitter is the Instruction Emitter (IE): it writes a linear stream of
// native opcodes into a byte buffer, resolving branches, laying out
// exception regions, and tracking evaluation-stack depth and local
// variables, per spec.md §3/§4.1. An Emitter is reset between methods and
// its Label/Local handles are only meaningful to the instance that issued
// them.
type Emitter struct {
	tp token.Provider

	code []byte

	labels []labelState
	locals []localSlot

	stackDepth int
	maxStack   int
	lastOp     Op

	branches []branchRecord

	blocks          []*excBlock
	finishedRegions []*region

	virtualTokens []int

	finalized bool
}

// New returns an empty Emitter. tp may be nil; operations that require a
// token provider (call-like stack deltas, token resolution) fail with
// ConfigError if invoked without one.
func New(tp token.Provider) *Emitter {
	return &Emitter{tp: tp}
}

// Reset clears all state so the Emitter can be reused for another method
// body (spec.md §3, "Lifecycle").
func (e *Emitter) Reset() {
	*e = Emitter{tp: e.tp}
}

// SetTokenProvider installs tp, for callers that construct an Emitter
// before a provider is available.
func (e *Emitter) SetTokenProvider(tp token.Provider) { e.tp = tp }

// CreateLabel returns a new unbound label.
func (e *Emitter) CreateLabel() Label {
	id := len(e.labels)
	e.labels = append(e.labels, labelState{})
	return Label{id: id}
}

// CreateLabelGroup returns n contiguous unbound labels.
func (e *Emitter) CreateLabelGroup(n int) ([]Label, error) {
	if n <= 0 {
		return nil, errf(KindInvalidArg, "create_label_group: n must be > 0, got %d", n)
	}
	out := make([]Label, n)
	for i := 0; i < n; i++ {
		out[i] = e.CreateLabel()
	}
	return out, nil
}

func (e *Emitter) labelStateFor(l Label) (*labelState, error) {
	if l.id < 0 || l.id >= len(e.labels) {
		return nil, errf(KindUndefinedLabel, "label %d is not known to this emitter", l.id)
	}
	return &e.labels[l.id], nil
}

// observeLabelDepth records the evaluation-stack depth expected at l, from
// whichever event observes it first: MarkLabel or a branch that targets
// it (spec.md §3's label invariant). Consistency across observers is a
// property VT is responsible for producing, not one IE enforces: neither
// emit() nor finalize()'s failure columns (spec.md §4.1) list a
// depth-mismatch error, so a later observation never overrides or
// rejects an earlier one.
func (e *Emitter) observeLabelDepth(l Label, depth int) error {
	ls, err := e.labelStateFor(l)
	if err != nil {
		return err
	}
	if !ls.hasDepth {
		ls.hasDepth = true
		ls.depth = depth
	}
	return nil
}

// MarkLabel binds l to the current write position.
func (e *Emitter) MarkLabel(l Label) error {
	ls, err := e.labelStateFor(l)
	if err != nil {
		return err
	}
	if ls.bound {
		return errf(KindAlreadyBound, "label %d is already bound", l.id)
	}
	if err := e.observeLabelDepth(l, e.stackDepth); err != nil {
		return err
	}
	ls.bound = true
	ls.pos = len(e.code)
	return nil
}

// SetCurrentStack overrides the tracked evaluation-stack depth, for the
// caller-driven correction after an unconditional branch that spec.md
// §4.1 describes ("Stack tracking").
func (e *Emitter) SetCurrentStack(n int) error {
	if n < 0 {
		return errf(KindInvalidArg, "set_current_stack: n must be >= 0, got %d", n)
	}
	e.stackDepth = n
	return nil
}

func (e *Emitter) bumpStack(delta int) {
	e.stackDepth += delta
	if e.stackDepth > e.maxStack {
		e.maxStack = e.stackDepth
	}
	if e.stackDepth < 0 {
		e.stackDepth = 0
	}
}

func (e *Emitter) writeOpcode(op Op) {
	e.code = op.Encode(e.code)
	e.lastOp = op
}

// emitRaw writes a fixed opcode with no operand bytes and applies its
// table stack delta. Used internally for endfinally/endfilter emission
// inside the exception-region machine.
func (e *Emitter) emitRaw(op Op, _ Operand) error {
	desc, err := Describe(op)
	if err != nil {
		return err
	}
	e.writeOpcode(op)
	e.applyStackDelta(desc.StackDelta)
	return nil
}

func (e *Emitter) applyStackDelta(delta int8) {
	switch delta {
	case StackDeltaEmptiesStack:
		e.stackDepth = 0
	case StackDeltaCall:
		// Resolved by the call-like path in Emit/EmitCall before this is
		// reached; emitRaw is never used for call-like opcodes.
	default:
		e.bumpStack(int(delta))
	}
}

// emitBranchTo writes op (always initially in long form) targeting
// label, recording a branchRecord for relocation at finalize.
func (e *Emitter) emitBranchTo(op Op, target Label) error {
	if _, err := e.labelStateFor(target); err != nil {
		return err
	}
	desc, err := Describe(op)
	if err != nil {
		return err
	}
	if desc.Operand != OperandLongBranch {
		return errf(KindOperandKindMismatch, "opcode 0x%04x does not take a branch operand", uint16(op))
	}

	e.writeOpcode(op)
	offsetPos := len(e.code)
	e.code = append(e.code, 0, 0, 0, 0) // 4-byte placeholder displacement
	basePos := len(e.code)

	e.branches = append(e.branches, branchRecord{
		offsetPos: offsetPos,
		basePos:   basePos,
		target:    target,
		op:        op,
	})

	// The depth observed at the branch point (after popping any
	// condition) is the depth control carries to the target.
	preDelta := e.stackDepth
	switch op {
	case BrFalse, BrTrue:
		preDelta--
	}
	if err := e.observeLabelDepth(target, preDelta); err != nil {
		return err
	}

	e.applyStackDelta(desc.StackDelta)
	if op == Br || op == Leave {
		// Dead/unreached code after an unconditional branch resets to 0;
		// caller may override via SetCurrentStack (spec.md §4.1).
		e.stackDepth = 0
	}
	return nil
}

// EmitBranch emits op (Br, BrFalse, BrTrue, or Leave) targeting target.
func (e *Emitter) EmitBranch(op Op, target Label) error {
	switch op {
	case Br, BrFalse, BrTrue, Leave:
	default:
		return errf(KindOperandKindMismatch, "0x%04x is not a branch opcode", uint16(op))
	}
	return e.emitBranchTo(op, target)
}

// EmitSwitch emits a jump table over targets, never subject to short-form
// compaction (spec.md §4.1).
func (e *Emitter) EmitSwitch(targets []Label) error {
	for _, t := range targets {
		if _, err := e.labelStateFor(t); err != nil {
			return err
		}
	}
	e.writeOpcode(Switch)
	e.code = binary.LittleEndian.AppendUint32(e.code, uint32(len(targets)))
	base := len(e.code) + 4*len(targets)

	rec := branchRecord{isSwitch: true, switchBase: base, switchTargets: targets}
	for range targets {
		rec.switchOffsets = append(rec.switchOffsets, len(e.code))
		e.code = append(e.code, 0, 0, 0, 0)
	}
	e.branches = append(e.branches, rec)

	for _, t := range targets {
		if err := e.observeLabelDepth(t, e.stackDepth-1); err != nil {
			return err
		}
	}
	e.bumpStack(-1)
	return nil
}

// EmitToken emits op with a resolved token operand (call, callvirt,
// newobj, ldftn, castclass, isinst, box, unbox, unbox_any, ldobj, stobj).
// Call-like opcodes derive their stack delta from the token provider;
// others use their fixed table delta.
func (e *Emitter) EmitToken(op Op, h token.EntityHandle) error {
	desc, err := Describe(op)
	if err != nil {
		return err
	}
	if desc.Operand != OperandToken {
		return errf(KindOperandKindMismatch, "0x%04x does not take a token operand", uint16(op))
	}

	e.writeOpcode(op)
	if e.tp != nil && e.tp.IsVirtual(h) {
		e.virtualTokens = append(e.virtualTokens, len(e.code))
	}
	e.code = binary.LittleEndian.AppendUint32(e.code, uint32(h))

	if desc.StackDelta == StackDeltaCall {
		if e.tp == nil {
			return token.ErrNoProvider{Op: "method_stack_delta"}
		}
		delta, err := e.tp.MethodStackDelta(h, uint16(op))
		if err != nil {
			return err
		}
		e.bumpStack(int(delta))
	} else {
		e.applyStackDelta(desc.StackDelta)
	}
	return nil
}

// EmitLoadLocal emits the tightest load-local form for l's index.
func (e *Emitter) EmitLoadLocal(l Local) error {
	if l.index < 0 || l.index >= len(e.locals) {
		return errf(KindUndefinedLocal, "local %d is not known to this emitter", l.index)
	}
	switch {
	case l.index <= 3:
		e.writeOpcode([]Op{LdLoc0, LdLoc1, LdLoc2, LdLoc3}[l.index])
	case l.index <= 0xFF:
		e.writeOpcode(LdLocS)
		e.code = append(e.code, byte(l.index))
	default:
		e.writeOpcode(LdLocL)
		e.code = binary.LittleEndian.AppendUint16(e.code, uint16(l.index))
	}
	e.bumpStack(1)
	return nil
}

// EmitStoreLocal emits the tightest store-local form for l's index.
func (e *Emitter) EmitStoreLocal(l Local) error {
	if l.index < 0 || l.index >= len(e.locals) {
		return errf(KindUndefinedLocal, "local %d is not known to this emitter", l.index)
	}
	switch {
	case l.index <= 3:
		e.writeOpcode([]Op{StLoc0, StLoc1, StLoc2, StLoc3}[l.index])
	case l.index <= 0xFF:
		e.writeOpcode(StLocS)
		e.code = append(e.code, byte(l.index))
	default:
		e.writeOpcode(StLocL)
		e.code = binary.LittleEndian.AppendUint16(e.code, uint16(l.index))
	}
	e.bumpStack(-1)
	return nil
}

// EmitLoadArg emits the tightest load-argument form for index.
func (e *Emitter) EmitLoadArg(index int) error {
	if index < 0 {
		return errf(KindInvalidArg, "argument index must be >= 0, got %d", index)
	}
	switch {
	case index <= 3:
		e.writeOpcode([]Op{LdArg0, LdArg1, LdArg2, LdArg3}[index])
	case index <= 0xFF:
		e.writeOpcode(LdArgS)
		e.code = append(e.code, byte(index))
	default:
		e.writeOpcode(LdArgL)
		e.code = binary.LittleEndian.AppendUint16(e.code, uint16(index))
	}
	e.bumpStack(1)
	return nil
}

// EmitLoadConstInt emits the compacted ldc_i4 family form for n (spec.md
// §4.1, "Immediate-constant compaction").
func (e *Emitter) EmitLoadConstInt(n int32) error {
	switch {
	case n >= -1 && n <= 8:
		e.writeOpcode([]Op{LdcI4M1, LdcI4_0, LdcI4_1, LdcI4_2, LdcI4_3, LdcI4_4, LdcI4_5, LdcI4_6, LdcI4_7, LdcI4_8}[n+1])
	case n >= -128 && n <= 127:
		e.writeOpcode(LdcI4S)
		e.code = append(e.code, byte(int8(n)))
	default:
		e.writeOpcode(LdcI4)
		e.code = binary.LittleEndian.AppendUint32(e.code, uint32(n))
	}
	e.bumpStack(1)
	return nil
}

// EmitLoadConstLong emits n, collapsing to a narrow int32 load plus
// conv_i8 when n is representable as an int32 (spec.md §4.1).
func (e *Emitter) EmitLoadConstLong(n int64) error {
	if n >= math.MinInt32 && n <= math.MaxInt32 {
		if err := e.EmitLoadConstInt(int32(n)); err != nil {
			return err
		}
		e.writeOpcode(ConvI8)
		return nil
	}
	e.writeOpcode(LdcI8)
	e.code = binary.LittleEndian.AppendUint64(e.code, uint64(n))
	e.bumpStack(1)
	return nil
}

// EmitLoadConstFloat32 emits v's IEEE-754 bit pattern, little-endian.
func (e *Emitter) EmitLoadConstFloat32(v float32) error {
	e.writeOpcode(LdcR4)
	e.code = binary.LittleEndian.AppendUint32(e.code, math.Float32bits(v))
	e.bumpStack(1)
	return nil
}

// EmitLoadConstFloat64 emits v's IEEE-754 bit pattern, little-endian.
func (e *Emitter) EmitLoadConstFloat64(v float64) error {
	e.writeOpcode(LdcR8)
	e.code = binary.LittleEndian.AppendUint64(e.code, math.Float64bits(v))
	e.bumpStack(1)
	return nil
}

// Emit writes a fixed opcode that carries no operand (Nop, Dup, Pop, Ret,
// Throw, arithmetic/comparison/conversion opcodes, EndFinally, EndFilter).
// An opcode that takes any operand is rejected with OperandKindMismatch;
// those go through the specialized Emit* forms above.
func (e *Emitter) Emit(op Op) error {
	desc, err := Describe(op)
	if err != nil {
		return err
	}
	if desc.Operand != OperandNone {
		return errf(KindOperandKindMismatch, "opcode 0x%04x requires an operand; use the typed Emit* form", uint16(op))
	}
	return e.emitRaw(op, NoOperand())
}

// virtualTokenOffsets returns the byte offsets, recorded by EmitToken, that
// hold still-virtual tokens; Finalize relocates them.
func (e *Emitter) virtualTokenOffsets() []int { return e.virtualTokens }
