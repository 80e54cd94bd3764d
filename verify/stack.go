// Copyright 2024 The abccompile Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package verify

import (
	"sort"

	"github.com/abcnative/abccompile/resolve"
)

// computeLeaders returns, sorted ascending, every basic-block leader
// offset of spec.md §4.5 step 2: the instruction after a branch/throw/
// return, every branch target, and every exception region boundary.
// Grounded on disasm.Disassemble's leader/depth tracking, generalized
// from WASM's structured blocks to AS3's arbitrary-jump CFG.
func computeLeaders(instrs []Instruction, regions []ExceptionRegion) []int {
	set := map[int]bool{}
	if len(instrs) > 0 {
		set[instrs[0].Offset] = true
	}
	for i, ins := range instrs {
		if (ins.Op.IsTerminator() || ins.Op.IsBranch()) && i+1 < len(instrs) {
			set[ins.NextOffset] = true
		}
		if ins.Op.IsBranch() {
			set[ins.Target] = true
		}
		if ins.Op == OpLookupSwitch {
			set[ins.SwitchDefault] = true
			for _, t := range ins.SwitchCases {
				set[t] = true
			}
		}
	}
	for _, r := range regions {
		set[r.TryStart] = true
		set[r.TryEnd] = true
		set[r.HandlerStart] = true
	}
	out := make([]int, 0, len(set))
	for off := range set {
		out = append(out, off)
	}
	sort.Ints(out)
	return out
}

// indexByOffset maps each instruction's Offset to its index in instrs.
func indexByOffset(instrs []Instruction) map[int]int {
	m := make(map[int]int, len(instrs))
	for i, ins := range instrs {
		m[ins.Offset] = i
	}
	return m
}

// typeState is the abstract value VT tracks per stack slot and local:
// the widest statically-known type, or resolve.AnyType when the value
// is dynamically typed (property access results, uninitialized locals).
// Unlike the teacher's operand{unknownType}, which is a true wildcard
// used only for code following an unreachable instruction, every slot
// here always carries a concrete value — compatible() below treats
// resolve.AnyType as the wildcard instead, matching how AS3 property
// access is statically opaque but always runtime-checked.
type typeState = *resolve.ClassDesc

func compatible(want, got typeState) bool {
	if want.Tag == resolve.TagAny || got.Tag == resolve.TagAny {
		return true
	}
	return want.IsAssignableFrom(got)
}

func widen(a, b typeState) typeState {
	return resolve.LeastCommonSupertype(a, b)
}

// blockState is the type-state snapshot (operand stack + locals) VT
// carries at a point in the instruction stream: the teacher's operand/
// frame pair, widened from WASM's four-value type lattice to the AS3
// lattice (resolve.ClassDesc plus any/void).
type blockState struct {
	stack  []typeState
	locals []typeState
}

func cloneTypes(s []typeState) []typeState {
	out := make([]typeState, len(s))
	copy(out, s)
	return out
}

func (s *blockState) clone() *blockState {
	return &blockState{stack: cloneTypes(s.stack), locals: cloneTypes(s.locals)}
}

func (s *blockState) push(t typeState) { s.stack = append(s.stack, t) }

func (s *blockState) pop(offset int, want typeState) (typeState, error) {
	if len(s.stack) == 0 {
		return nil, errf(KindStackUnderflow, offset, "stack underflow")
	}
	got := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	if want != nil && !compatible(want, got) {
		return nil, errf(KindTypeMismatch, offset, "expected a value assignable to %s, got %s", want.QName, got.QName)
	}
	return got, nil
}

func (s *blockState) getLocal(offset, idx int) (typeState, error) {
	if idx < 0 || idx >= len(s.locals) {
		return nil, errf(KindIndexOutOfBounds, offset, "local index %d out of bounds (count %d)", idx, len(s.locals))
	}
	return s.locals[idx], nil
}

func (s *blockState) setLocal(offset, idx int, t typeState) error {
	if idx < 0 || idx >= len(s.locals) {
		return errf(KindIndexOutOfBounds, offset, "local index %d out of bounds (count %d)", idx, len(s.locals))
	}
	s.locals[idx] = t
	return nil
}

// mergeState widens into with from at a control-flow join (spec.md
// §4.5 step 3, "states at joins are widened using the least-common-
// supertype of the domain"). Returns the merged state and whether it
// differs from into, so the caller's worklist can decide whether to
// re-visit the block the merged state feeds.
func mergeState(into, from *blockState) (*blockState, bool, error) {
	if into == nil {
		return from.clone(), true, nil
	}
	if len(into.stack) != len(from.stack) {
		return nil, false, errf(KindTypeMismatch, -1,
			"control-flow join has mismatched operand-stack depth (%d vs %d)", len(into.stack), len(from.stack))
	}
	changed := false
	stack := make([]typeState, len(into.stack))
	for i := range into.stack {
		w := widen(into.stack[i], from.stack[i])
		if w != into.stack[i] {
			changed = true
		}
		stack[i] = w
	}
	locals := make([]typeState, len(into.locals))
	for i := range into.locals {
		w := widen(into.locals[i], from.locals[i])
		if w != into.locals[i] {
			changed = true
		}
		locals[i] = w
	}
	return &blockState{stack: stack, locals: locals}, changed, nil
}

// SimResult is the per-instruction stack-simulation output: the type
// state observed immediately before executing each instruction, plus
// the maximum operand-stack depth observed anywhere in the method.
type SimResult struct {
	PreState []*blockState
	MaxStack int
}

// maxConvergencePasses bounds the dataflow worklist: the widening
// lattice's height is the resolved class hierarchy's depth, so a block
// can be revisited at most that many times before its state stabilizes.
// This cap is a termination backstop against a malformed input whose
// CFG would otherwise never converge, not an expected case.
const maxConvergencePasses = 10000

// simulate runs spec.md §4.5 step 3 over instrs: computes basic blocks
// from leaders, then a forward dataflow fixed point (entry states widen
// at merge, re-enqueuing affected blocks), applying each instruction's
// abstract transfer function and rejecting arity/type/index violations.
// Grounded on validate.verifyBody's per-instruction dispatch switch and
// mockVM's popOperand/pushOperand/adjustStack, generalized from a single
// forward pass (sufficient for WASM's structured blocks) to a worklist
// fixed point (required for AS3's arbitrary, possibly-backward jumps).
func simulate(instrs []Instruction, mb *MethodBody, resolver *resolve.Resolver) (*SimResult, error) {
	leaders := computeLeaders(instrs, mb.Regions)
	idxOf := indexByOffset(instrs)

	resolveType := func(name string) (typeState, error) { return resolveTypeName(resolver, name) }

	initLocals, err := initialLocals(mb, resolver)
	if err != nil {
		return nil, err
	}
	initial := &blockState{locals: initLocals}

	entry := make(map[int]*blockState, len(leaders))
	entry[instrs[0].Offset] = initial

	preState := make([]*blockState, len(instrs))
	maxStack := 0

	blockEnd := func(startIdx int) int {
		// one past the last instruction index belonging to the block
		// starting at startIdx: the next leader's index, or len(instrs).
		// A leader offset that does not land on an instruction boundary
		// (a malformed branch target) is skipped here rather than
		// truncating the block; the branch that produced it is rejected
		// directly at the point it is processed, below.
		startOff := instrs[startIdx].Offset
		pos := sort.SearchInts(leaders, startOff)
		for p := pos + 1; p < len(leaders); p++ {
			if idx, ok := idxOf[leaders[p]]; ok {
				return idx
			}
		}
		return len(instrs)
	}

	queue := []int{instrs[0].Offset}
	queued := map[int]bool{instrs[0].Offset: true}

	passes := 0
	for len(queue) > 0 {
		passes++
		if passes > maxConvergencePasses {
			return nil, errf(KindNotConverged, -1, "stack simulation did not converge after %d passes", maxConvergencePasses)
		}
		leaderOff := queue[0]
		queue = queue[1:]
		queued[leaderOff] = false

		st := entry[leaderOff].clone()
		startIdx, ok := idxOf[leaderOff]
		if !ok {
			return nil, errf(KindUndefinedBranchTarget, leaderOff, "branch target does not fall on an instruction boundary")
		}
		end := blockEnd(startIdx)

		for i := startIdx; i < end; i++ {
			ins := instrs[i]
			preState[i] = st.clone()
			if len(st.stack) > maxStack {
				maxStack = len(st.stack)
			}
			next, targets, err := applyTransfer(ins, st, resolveType)
			if err != nil {
				return nil, err
			}
			st = next

			for _, tgt := range targets {
				if _, ok := idxOf[tgt]; !ok {
					return nil, errf(KindUndefinedBranchTarget, ins.Offset, "branch targets offset %d, which is not an instruction boundary", tgt)
				}
				merged, changed, err := mergeState(entry[tgt], st)
				if err != nil {
					return nil, err
				}
				entry[tgt] = merged
				if changed && !queued[tgt] {
					queue = append(queue, tgt)
					queued[tgt] = true
				}
			}
		}

		if end < len(instrs) && !instrs[end-1].Op.IsTerminator() {
			fallOff := instrs[end].Offset
			merged, changed, err := mergeState(entry[fallOff], st)
			if err != nil {
				return nil, err
			}
			entry[fallOff] = merged
			if changed && !queued[fallOff] {
				queue = append(queue, fallOff)
				queued[fallOff] = true
			}
		}
	}

	// Instructions never reached by any recorded control-flow edge (dead
	// code after an unconditional terminator, reachable by nothing) get a
	// conservative default state: translation still needs something to
	// lower them with, and rejecting a method solely for carrying
	// unreachable tail code would be stricter than spec.md's failure
	// semantics call for.
	for i, ps := range preState {
		if ps == nil {
			preState[i] = &blockState{locals: cloneTypes(initial.locals)}
		}
	}

	return &SimResult{PreState: preState, MaxStack: maxStack}, nil
}

// resolveTypeName resolves a decoded type/member-type name to its
// ClassDesc: "" and "*" (AS3's untyped/any spellings) map to
// resolve.AnyType, the five well-known primitive spellings map directly,
// and everything else goes through the Resolver. Shared by simulate's
// type checking and translate.go's catch-type and signature lookups.
func resolveTypeName(resolver *resolve.Resolver, name string) (typeState, error) {
	if name == "" || name == "*" {
		return resolve.AnyType, nil
	}
	if p, ok := resolve.PrimitiveType(name); ok {
		return p, nil
	}
	cd, err := resolver.Resolve(resolve.SplitQName(name))
	if err != nil {
		return nil, errf(KindUnresolvedReference, -1, "%v", err)
	}
	return cd, nil
}

// initialLocals computes the type state VT's simulation and translate's
// local-signature declaration both seed local slots with at method entry:
// ThisType occupying slot 0 if present, then ParamTypes, with every
// remaining slot (additional locals the method body declares) starting
// as resolve.AnyType until a store narrows it.
func initialLocals(mb *MethodBody, resolver *resolve.Resolver) ([]typeState, error) {
	locals := make([]typeState, mb.LocalCount)
	for i := range locals {
		locals[i] = resolve.AnyType
	}
	slot := 0
	if mb.ThisType != "" {
		t, err := resolveTypeName(resolver, mb.ThisType)
		if err != nil {
			return nil, err
		}
		if slot < len(locals) {
			locals[slot] = t
		}
		slot++
	}
	for _, pt := range mb.ParamTypes {
		t, err := resolveTypeName(resolver, pt)
		if err != nil {
			return nil, err
		}
		if slot < len(locals) {
			locals[slot] = t
		}
		slot++
	}
	return locals, nil
}
