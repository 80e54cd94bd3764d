// Copyright 2024 The abccompile Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emit

import (
	"encoding/binary"
	"testing"

	"github.com/abcnative/abccompile/token"
)

// fakeSig is a minimal token.Signature used only to exercise the local
// temp-pool reuse rule; equality is by name.
type fakeSig struct{ name string }

func (s fakeSig) Equal(other token.Signature) bool {
	o, ok := other.(fakeSig)
	return ok && o.name == s.name
}

func TestShortBranchSelection(t *testing.T) {
	e := New(nil)
	l := e.CreateLabel()
	if err := e.EmitLoadConstInt(0); err != nil {
		t.Fatalf("EmitLoadConstInt: %v", err)
	}
	if err := e.EmitBranch(BrFalse, l); err != nil {
		t.Fatalf("EmitBranch: %v", err)
	}
	if err := e.EmitLoadConstInt(1); err != nil {
		t.Fatalf("EmitLoadConstInt: %v", err)
	}
	if err := e.MarkLabel(l); err != nil {
		t.Fatalf("MarkLabel: %v", err)
	}
	if err := e.Emit(Ret); err != nil {
		t.Fatalf("Emit(Ret): %v", err)
	}

	body, err := e.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	want := []byte{byte(LdcI4_0), byte(BrFalseS), 0x01, byte(LdcI4_1), byte(Ret)}
	if string(body.Code) != string(want) {
		t.Fatalf("code = % x, want % x", body.Code, want)
	}
	if body.MaxStack != 1 {
		t.Fatalf("max_stack = %d, want 1", body.MaxStack)
	}
}

func TestSwitchNeverShortened(t *testing.T) {
	e := New(nil)
	a, b, c := e.CreateLabel(), e.CreateLabel(), e.CreateLabel()
	if err := e.EmitLoadConstInt(0); err != nil {
		t.Fatalf("EmitLoadConstInt: %v", err)
	}
	if err := e.EmitSwitch([]Label{a, b, c}); err != nil {
		t.Fatalf("EmitSwitch: %v", err)
	}
	for _, l := range []Label{a, b, c} {
		if err := e.MarkLabel(l); err != nil {
			t.Fatalf("MarkLabel: %v", err)
		}
		if err := e.Emit(Ret); err != nil {
			t.Fatalf("Emit(Ret): %v", err)
		}
	}

	body, err := e.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if len(body.Code) != 1+17+3 {
		t.Fatalf("code length = %d, want %d", len(body.Code), 1+17+3)
	}
	if body.Code[1] != byte(Switch) {
		t.Fatalf("switch opcode byte missing at position 1")
	}
	wantDisp := []int32{0, 1, 2}
	for i, want := range wantDisp {
		off := 6 + i*4
		got := int32(binary.LittleEndian.Uint32(body.Code[off : off+4]))
		if got != want {
			t.Fatalf("switch case %d displacement = %d, want %d", i, got, want)
		}
	}
}

func TestTryCatchLeaveCompaction(t *testing.T) {
	e := New(nil)
	if err := e.BeginTry(); err != nil {
		t.Fatalf("BeginTry: %v", err)
	}
	if err := e.EmitLoadConstInt(1); err != nil {
		t.Fatalf("EmitLoadConstInt: %v", err)
	}
	if err := e.BeginCatch(token.EntityHandle(5), true); err != nil {
		t.Fatalf("BeginCatch: %v", err)
	}
	if err := e.Emit(Pop); err != nil {
		t.Fatalf("Emit(Pop): %v", err)
	}
	if err := e.EndTry(); err != nil {
		t.Fatalf("EndTry: %v", err)
	}

	body, err := e.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	// The try body (LdcI4_1) gets its own leave around the catch handler
	// (LeaveS 0x03, to just past the handler's own leave), and the catch
	// handler (Pop) gets the usual trailing leave to the same end label,
	// which collapses to a zero-displacement short form.
	want := []byte{byte(LdcI4_1), byte(LeaveS), 0x03, byte(Pop), byte(LeaveS), 0x00}
	if string(body.Code) != string(want) {
		t.Fatalf("code = % x, want % x", body.Code, want)
	}
	if body.MaxStack < 1 {
		t.Fatalf("max_stack = %d, want >= 1", body.MaxStack)
	}
	if len(body.ExceptionSectionBytes) == 0 {
		t.Fatalf("expected a non-empty exception section")
	}
	if body.ExceptionSectionBytes[0] != 0x01 {
		t.Fatalf("expected the small exception-section form")
	}
	catchTypeHandle := binary.LittleEndian.Uint32(body.ExceptionSectionBytes[4+8 : 4+12])
	if catchTypeHandle != 5 {
		t.Fatalf("catch_type handle = %d, want 5", catchTypeHandle)
	}
}

func TestLongFormWhenNecessary(t *testing.T) {
	e := New(nil)
	l := e.CreateLabel()
	if err := e.EmitBranch(Br, l); err != nil {
		t.Fatalf("EmitBranch: %v", err)
	}
	for i := 0; i < 200; i++ {
		if err := e.Emit(Nop); err != nil {
			t.Fatalf("Emit(Nop): %v", err)
		}
	}
	if err := e.MarkLabel(l); err != nil {
		t.Fatalf("MarkLabel: %v", err)
	}
	if err := e.Emit(Ret); err != nil {
		t.Fatalf("Emit(Ret): %v", err)
	}

	body, err := e.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if len(body.Code) != 1+4+200+1 {
		t.Fatalf("code length = %d, want %d", len(body.Code), 1+4+200+1)
	}
	if body.Code[0] != byte(Br) {
		t.Fatalf("expected branch to stay in long form")
	}
	disp := int32(binary.LittleEndian.Uint32(body.Code[1:5]))
	if disp != 200 {
		t.Fatalf("displacement = %d, want 200", disp)
	}
}

func TestChainedRelocation(t *testing.T) {
	e := New(nil)
	l1, l2, l3 := e.CreateLabel(), e.CreateLabel(), e.CreateLabel()

	if err := e.EmitBranch(Br, l1); err != nil {
		t.Fatalf("EmitBranch 1: %v", err)
	}
	if err := e.Emit(Nop); err != nil {
		t.Fatalf("Emit(Nop) 1: %v", err)
	}
	if err := e.MarkLabel(l1); err != nil {
		t.Fatalf("MarkLabel l1: %v", err)
	}
	if err := e.EmitBranch(Br, l2); err != nil {
		t.Fatalf("EmitBranch 2: %v", err)
	}
	if err := e.Emit(Nop); err != nil {
		t.Fatalf("Emit(Nop) 2: %v", err)
	}
	if err := e.MarkLabel(l2); err != nil {
		t.Fatalf("MarkLabel l2: %v", err)
	}
	if err := e.EmitBranch(Br, l3); err != nil {
		t.Fatalf("EmitBranch 3: %v", err)
	}
	if err := e.Emit(Nop); err != nil {
		t.Fatalf("Emit(Nop) 3: %v", err)
	}
	if err := e.MarkLabel(l3); err != nil {
		t.Fatalf("MarkLabel l3: %v", err)
	}
	if err := e.Emit(Ret); err != nil {
		t.Fatalf("Emit(Ret): %v", err)
	}

	const initial = 19
	body, err := e.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if len(body.Code) != initial-9 {
		t.Fatalf("final code size = %d, want %d", len(body.Code), initial-9)
	}
	// Every shortened branch's displacement (target minus base, under the
	// relocated positions) is 1: each jumps over exactly one nop.
	for _, pos := range []int{1, 4, 7} {
		if int8(body.Code[pos]) != 1 {
			t.Fatalf("relocated displacement at %d = %d, want 1", pos, int8(body.Code[pos]))
		}
	}
}

func TestUnmarkedLabelIsFatal(t *testing.T) {
	e := New(nil)
	l := e.CreateLabel()
	if err := e.EmitBranch(Br, l); err != nil {
		t.Fatalf("EmitBranch: %v", err)
	}
	if err := e.Emit(Ret); err != nil {
		t.Fatalf("Emit(Ret): %v", err)
	}

	body, err := e.Finalize()
	if err == nil {
		t.Fatalf("expected Finalize to fail for an unmarked label")
	}
	if body != nil {
		t.Fatalf("expected no method body on failure")
	}
	ee, ok := err.(*Error)
	if !ok || ee.Kind != KindUnmarkedLabel {
		t.Fatalf("expected KindUnmarkedLabel, got %v", err)
	}
}

func TestTempLocalPoolReuse(t *testing.T) {
	e := New(nil)
	intSig := fakeSig{"int"}
	strSig := fakeSig{"String"}

	l1, err := e.AcquireTemp(intSig)
	if err != nil {
		t.Fatalf("AcquireTemp: %v", err)
	}
	if err := e.ReleaseTemp(l1); err != nil {
		t.Fatalf("ReleaseTemp: %v", err)
	}

	l2, err := e.AcquireTemp(intSig)
	if err != nil {
		t.Fatalf("AcquireTemp (same sig): %v", err)
	}
	if l2 != l1 {
		t.Fatalf("expected the same slot to be reused for an equal signature")
	}

	l3, err := e.AcquireTemp(strSig)
	if err != nil {
		t.Fatalf("AcquireTemp (different sig): %v", err)
	}
	if l3 == l1 {
		t.Fatalf("expected a fresh slot for a different signature")
	}
}

func TestRoundTripWithoutShortening(t *testing.T) {
	e := New(nil)
	for i := 0; i < 5; i++ {
		if err := e.Emit(Nop); err != nil {
			t.Fatalf("Emit(Nop): %v", err)
		}
	}
	if err := e.Emit(Ret); err != nil {
		t.Fatalf("Emit(Ret): %v", err)
	}
	body, err := e.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	want := []byte{0, 0, 0, 0, 0, byte(Ret)}
	if string(body.Code) != string(want) {
		t.Fatalf("code = % x, want % x", body.Code, want)
	}
}
