// Copyright 2024 The abccompile Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package token

import "github.com/abcnative/abccompile/resolve"

// Raw numeric opcode values for the three call-like opcodes package emit
// defines (Call, CallVirt, NewObj). Duplicated here rather than imported,
// since emit imports token and not the reverse (spec.md §4.1's layered
// dependency direction).
const (
	opCall     uint16 = 0x28
	opCallVirt uint16 = 0x6F
	opNewObj   uint16 = 0x73
)

// methodStackDelta computes the net operand-stack effect of invoking m
// via opcode: parameters popped, a receiver popped for an instance
// dispatch, and a result pushed unless the return type is void — with
// newobj's special case of leaving the constructed instance on the
// stack counted as the "return" push instead of an extra pop (spec.md
// §4.1, "Stack tracking").
func methodStackDelta(m *resolve.Member, opcode uint16) int32 {
	delta := -int32(len(m.ParamTypes))
	switch opcode {
	case opCallVirt:
		delta-- // pop the receiver
	case opCall:
		// A "call" dispatch may be static or instance; instance-ness is
		// carried by the member itself rather than the opcode, so a
		// plain "call" is treated as static (no receiver popped) unless
		// the caller has already accounted for it in ParamTypes.
	case opNewObj:
		return delta + 1 // constructor never "returns" in m.ReturnType; pushes the new instance
	}
	if m.ReturnType != nil && m.ReturnType != resolve.VoidType {
		delta++
	}
	return delta
}
