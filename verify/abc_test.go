// Copyright 2024 The abccompile Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package verify

import "testing"

func TestDecodeInstructionsPushByte(t *testing.T) {
	code := []byte{byte(OpPushByte), 0x7F, byte(OpReturnValue)}
	instrs, err := DecodeInstructions(code)
	if err != nil {
		t.Fatalf("DecodeInstructions: %v", err)
	}
	if len(instrs) != 2 {
		t.Fatalf("expected 2 instructions, got %d", len(instrs))
	}
	if instrs[0].Op != OpPushByte || instrs[0].IntImm != 0x7F {
		t.Fatalf("unexpected first instruction: %+v", instrs[0])
	}
	if instrs[1].Offset != 2 || instrs[1].Op != OpReturnValue {
		t.Fatalf("unexpected second instruction: %+v", instrs[1])
	}
}

func TestDecodeInstructionsJumpTarget(t *testing.T) {
	// jump +0 (displacement relative to end of the 4-byte instruction),
	// then a nop at the landing offset.
	code := []byte{byte(OpJump), 0x00, 0x00, 0x00, byte(OpNop)}
	instrs, err := DecodeInstructions(code)
	if err != nil {
		t.Fatalf("DecodeInstructions: %v", err)
	}
	if instrs[0].Target != 4 {
		t.Fatalf("expected jump target 4, got %d", instrs[0].Target)
	}
}

func TestDecodeInstructionsLookupSwitch(t *testing.T) {
	// lookupswitch: default_offset(s24, relative to opcode) = +9,
	// case_count(u30) = 1, case[0](s24, relative to opcode) = +6.
	code := []byte{
		byte(OpLookupSwitch),
		0x09, 0x00, 0x00, // default -> offset 0+9 = 9
		0x01,             // case_count = 1 (2 targets total)
		0x06, 0x00, 0x00, // case 0 -> offset 0+6 = 6
		0x00, 0x00, 0x00, // case 1 -> offset 0+0 = 0 (back to the switch itself)
		byte(OpNop),
		byte(OpNop),
	}
	instrs, err := DecodeInstructions(code)
	if err != nil {
		t.Fatalf("DecodeInstructions: %v", err)
	}
	sw := instrs[0]
	if sw.SwitchDefault != 9 {
		t.Fatalf("expected default target 9, got %d", sw.SwitchDefault)
	}
	if len(sw.SwitchCases) != 2 || sw.SwitchCases[0] != 6 || sw.SwitchCases[1] != 0 {
		t.Fatalf("unexpected switch cases: %+v", sw.SwitchCases)
	}
}

func TestDecodeInstructionsTruncated(t *testing.T) {
	code := []byte{byte(OpPushByte)} // missing s8 operand
	if _, err := DecodeInstructions(code); err == nil {
		t.Fatalf("expected a truncation error")
	}
}

func TestU30RejectsOverlongEncoding(t *testing.T) {
	c := &cursor{buf: []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x01}}
	if _, err := c.readU30(); err == nil {
		t.Fatalf("expected an error for an overlong u30")
	}
}

func TestS24SignExtension(t *testing.T) {
	c := &cursor{buf: []byte{0xFF, 0xFF, 0xFF}} // -1
	v, err := c.readS24()
	if err != nil {
		t.Fatalf("readS24: %v", err)
	}
	if v != -1 {
		t.Fatalf("expected -1, got %d", v)
	}
}
