// Copyright 2024 The abccompile Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package verify

import (
	"testing"

	"github.com/abcnative/abccompile/domain"
	"github.com/abcnative/abccompile/resolve"
)

func newTestResolver() *resolve.Resolver {
	return resolve.New(domain.New(nil), nil)
}

func simulateCode(t *testing.T, code []byte, mb *MethodBody) *SimResult {
	t.Helper()
	instrs, err := DecodeInstructions(code)
	if err != nil {
		t.Fatalf("DecodeInstructions: %v", err)
	}
	mb.Code = code
	res, err := simulate(instrs, mb, newTestResolver())
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	return res
}

func TestSimulateArithmetic(t *testing.T) {
	code := []byte{
		byte(OpPushByte), 0x02,
		byte(OpPushByte), 0x03,
		byte(OpAdd),
		byte(OpReturnValue),
	}
	res := simulateCode(t, code, &MethodBody{})
	if res.MaxStack < 2 {
		t.Fatalf("expected max stack depth >= 2, got %d", res.MaxStack)
	}
}

func TestSimulateStackUnderflow(t *testing.T) {
	code := []byte{byte(OpAdd), byte(OpReturnValue)}
	instrs, err := DecodeInstructions(code)
	if err != nil {
		t.Fatalf("DecodeInstructions: %v", err)
	}
	_, err = simulate(instrs, &MethodBody{Code: code}, newTestResolver())
	verr, ok := err.(*Error)
	if !ok || verr.Kind != KindStackUnderflow {
		t.Fatalf("expected a StackUnderflow error, got %v", err)
	}
}

func TestSimulateForwardBranchJoin(t *testing.T) {
	// pushbyte 1; iftrue +L; pushbyte 0; pop; L: returnvoid
	code := []byte{
		byte(OpPushByte), 0x01,
		byte(OpIfTrue), 0x03, 0x00, 0x00, // -> lands on returnvoid (offset 6+3 = 9)
		byte(OpPushByte), 0x00,
		byte(OpPop),
		byte(OpReturnVoid),
	}
	res := simulateCode(t, code, &MethodBody{})
	if res.MaxStack < 1 {
		t.Fatalf("expected max stack depth >= 1, got %d", res.MaxStack)
	}
}

func TestSimulateLocalTypeTracking(t *testing.T) {
	// pushbyte 5; setlocal 0; getlocal 0; returnvalue, with one declared local slot
	code := []byte{
		byte(OpPushByte), 0x05,
		byte(OpSetLocal), 0x00,
		byte(OpGetLocal), 0x00,
		byte(OpReturnValue),
	}
	res := simulateCode(t, code, &MethodBody{LocalCount: 1})
	if len(res.PreState) != 4 {
		t.Fatalf("expected 4 instruction states, got %d", len(res.PreState))
	}
	if res.PreState[2].locals[0] != resolve.IntType {
		t.Fatalf("expected local 0 to hold int before getlocal 0, got %v", res.PreState[2].locals[0])
	}
}

func TestComputeLeadersIncludesBranchTargetsAndRegions(t *testing.T) {
	code := []byte{
		byte(OpJump), 0x00, 0x00, 0x00,
		byte(OpReturnVoid),
	}
	instrs, err := DecodeInstructions(code)
	if err != nil {
		t.Fatalf("DecodeInstructions: %v", err)
	}
	regions := []ExceptionRegion{{TryStart: 0, TryEnd: 4, HandlerStart: 4}}
	leaders := computeLeaders(instrs, regions)
	want := map[int]bool{0: true, 4: true}
	for _, l := range leaders {
		if !want[l] {
			t.Fatalf("unexpected leader %d", l)
		}
		delete(want, l)
	}
	if len(want) != 0 {
		t.Fatalf("missing expected leaders: %+v", want)
	}
}
