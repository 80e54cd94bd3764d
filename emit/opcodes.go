// Copyright 2024 The abccompile Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emit

import "fmt"

// Op identifies a native opcode. One-byte opcodes occupy the low byte;
// two-byte ("extended") opcodes are prefixed the way a 0xFE-prefixed
// instruction is in the family of stack machines this emitter targets —
// Op values above 0xFF carry that prefix byte in their high byte.
type Op uint16

const prefixByte = 0xFE

// IsExtended reports whether op requires a two-byte encoding.
func (op Op) IsExtended() bool { return op > 0xFF }

// Encode appends op's byte encoding to b.
func (op Op) Encode(b []byte) []byte {
	if op.IsExtended() {
		return append(b, prefixByte, byte(op))
	}
	return append(b, byte(op))
}

// Size returns the number of bytes op's opcode itself occupies (not
// counting any operand).
func (op Op) Size() int {
	if op.IsExtended() {
		return 2
	}
	return 1
}

const (
	Nop Op = 0x00

	LdArg0 Op = 0x02
	LdArg1 Op = 0x03
	LdArg2 Op = 0x04
	LdArg3 Op = 0x05
	LdLoc0 Op = 0x06
	LdLoc1 Op = 0x07
	LdLoc2 Op = 0x08
	LdLoc3 Op = 0x09
	StLoc0 Op = 0x0A
	StLoc1 Op = 0x0B
	StLoc2 Op = 0x0C
	StLoc3 Op = 0x0D

	LdArgS Op = 0x0E
	StArgS Op = 0x10
	LdLocS Op = 0x11
	StLocS Op = 0x13

	LdNull    Op = 0x14
	LdcI4M1   Op = 0x15
	LdcI4_0   Op = 0x16
	LdcI4_1   Op = 0x17
	LdcI4_2   Op = 0x18
	LdcI4_3   Op = 0x19
	LdcI4_4   Op = 0x1A
	LdcI4_5   Op = 0x1B
	LdcI4_6   Op = 0x1C
	LdcI4_7   Op = 0x1D
	LdcI4_8   Op = 0x1E
	LdcI4S    Op = 0x1F
	LdcI4     Op = 0x20
	LdcI8     Op = 0x21
	LdcR4     Op = 0x22
	LdcR8     Op = 0x23

	Dup Op = 0x25
	Pop Op = 0x26

	Call     Op = 0x28
	NewObj   Op = 0x73
	CallVirt Op = 0x6F

	Ret Op = 0x2A

	BrS      Op = 0x2B
	BrFalseS Op = 0x2C
	BrTrueS  Op = 0x2D

	Br      Op = 0x38
	BrFalse Op = 0x39
	BrTrue  Op = 0x3A

	Switch Op = 0x45

	LdElemI4  Op = 0x94
	LdElemI8  Op = 0x95
	LdElemR4  Op = 0x96
	LdElemR8  Op = 0x97
	LdElemRef Op = 0x9A
	LdElemU1  Op = 0x91
	LdElemU2  Op = 0x93
	StElemI4  Op = 0x9E
	StElemI8  Op = 0x9F
	StElemR4  Op = 0xA0
	StElemR8  Op = 0xA1
	StElemRef Op = 0xA2

	LdObj Op = 0x71
	StObj Op = 0x81

	ConvI4  Op = 0x69
	ConvI8  Op = 0x6A
	ConvR4  Op = 0x6B
	ConvR8  Op = 0x6C
	ConvU1  Op = 0xD2
	ConvU2  Op = 0xD1
	ConvU4  Op = 0x6D
	ConvU8  Op = 0x6E
	ConvRUn Op = 0x76

	Add Op = 0x58
	Sub Op = 0x59
	Mul Op = 0x5A
	Div Op = 0x5B
	Rem Op = 0x5D
	Neg Op = 0x65
	And Op = 0x5F
	Or  Op = 0x60
	Xor Op = 0x61
	Not Op = 0x66
	Shl Op = 0x62
	Shr Op = 0x63

	Ceq Op = 0xFE01
	Cgt Op = 0xFE02
	Clt Op = 0xFE04

	CastClass Op = 0x74
	IsInst    Op = 0x75
	Box       Op = 0x8C
	Unbox     Op = 0x79
	UnboxAny  Op = 0xA5

	Throw Op = 0x7A

	Leave  Op = 0xDD
	LeaveS Op = 0xDE

	EndFinally Op = 0xDC
	EndFilter  Op = 0xFE11

	LdFtn Op = 0xFE06

	// 16-bit-operand local/argument forms, used once an index exceeds
	// what the 1-byte short forms can address (spec.md §4.1,
	// "Local-index encoding").
	LdArgL Op = 0xFE09
	StArgL Op = 0xFE0B
	LdLocL Op = 0xFE0C
	StLocL Op = 0xFE0E
)

const (
	// StackDeltaInvalid marks a reserved or unassigned opcode.
	StackDeltaInvalid int8 = -128
	// StackDeltaEmptiesStack marks opcodes (return, throw, leave) whose
	// execution discards the entire evaluation stack.
	StackDeltaEmptiesStack int8 = -127
	// StackDeltaCall marks opcodes whose stack effect is determined by
	// their resolved signature at emission time (call, callvirt, newobj,
	// ldftn), rather than being fixed per opcode.
	StackDeltaCall int8 = 127
)

// OpDescriptor is the "(stack_delta, operand_kind)" tuple spec.md §3
// assigns to every native opcode.
type OpDescriptor struct {
	StackDelta int8
	Operand    OperandKind
}

// shortForm maps a long-form branch opcode to its 1-byte-displacement
// short form. leave is the one opcode where the short form is not
// long-13: it is long+1, per spec.md's "with leave -> leave_s
// special-cased".
var shortForm = map[Op]Op{
	Br:      BrS,
	BrFalse: BrFalseS,
	BrTrue:  BrTrueS,
	Leave:   LeaveS,
}

// ShortFormOf returns op's 1-byte-displacement short form and true, or
// (0, false) if op has no short form (e.g. switch, which is never
// shortened).
func ShortFormOf(op Op) (Op, bool) {
	s, ok := shortForm[op]
	return s, ok
}

// IsBranch reports whether op carries a branch-displacement operand, in
// either long or short form.
func IsBranch(op Op) bool {
	d, ok := opTable[op]
	return ok && (d.Operand == OperandShortBranch || d.Operand == OperandLongBranch)
}

var opTable = map[Op]OpDescriptor{
	Nop: {0, OperandNone},

	LdArg0: {1, OperandArgRef0},
	LdArg1: {1, OperandArgRef0},
	LdArg2: {1, OperandArgRef0},
	LdArg3: {1, OperandArgRef0},
	LdArgS: {1, OperandArgRef8},
	StArgS: {-1, OperandArgRef8},
	LdArgL: {1, OperandArgRef16},
	StArgL: {-1, OperandArgRef16},

	LdLoc0: {1, OperandLocalRef0},
	LdLoc1: {1, OperandLocalRef0},
	LdLoc2: {1, OperandLocalRef0},
	LdLoc3: {1, OperandLocalRef0},
	LdLocS: {1, OperandLocalRef8},
	LdLocL: {1, OperandLocalRef16},
	StLocL: {-1, OperandLocalRef16},
	StLoc0: {-1, OperandLocalRef0},
	StLoc1: {-1, OperandLocalRef0},
	StLoc2: {-1, OperandLocalRef0},
	StLoc3: {-1, OperandLocalRef0},
	StLocS: {-1, OperandLocalRef8},

	LdNull:  {1, OperandNone},
	LdcI4M1: {1, OperandNone},
	LdcI4_0: {1, OperandNone},
	LdcI4_1: {1, OperandNone},
	LdcI4_2: {1, OperandNone},
	LdcI4_3: {1, OperandNone},
	LdcI4_4: {1, OperandNone},
	LdcI4_5: {1, OperandNone},
	LdcI4_6: {1, OperandNone},
	LdcI4_7: {1, OperandNone},
	LdcI4_8: {1, OperandNone},
	LdcI4S:  {1, OperandInt8},
	LdcI4:   {1, OperandInt32},
	LdcI8:   {1, OperandInt64},
	LdcR4:   {1, OperandFloat32},
	LdcR8:   {1, OperandFloat64},

	Dup: {1, OperandNone},
	Pop: {-1, OperandNone},

	Call:     {StackDeltaCall, OperandToken},
	CallVirt: {StackDeltaCall, OperandToken},
	NewObj:   {StackDeltaCall, OperandToken},
	LdFtn:    {StackDeltaCall, OperandToken},

	Ret:   {StackDeltaEmptiesStack, OperandNone},
	Throw: {StackDeltaEmptiesStack, OperandNone},

	BrS: {0, OperandShortBranch},
	Br:  {0, OperandLongBranch},

	BrFalseS: {-1, OperandShortBranch},
	BrFalse:  {-1, OperandLongBranch},
	BrTrueS:  {-1, OperandShortBranch},
	BrTrue:   {-1, OperandLongBranch},

	Leave:  {StackDeltaEmptiesStack, OperandLongBranch},
	LeaveS: {StackDeltaEmptiesStack, OperandShortBranch},

	Switch: {-1, OperandSwitchTable},

	LdElemI4:  {-1, OperandNone},
	LdElemI8:  {-1, OperandNone},
	LdElemR4:  {-1, OperandNone},
	LdElemR8:  {-1, OperandNone},
	LdElemRef: {-1, OperandNone},
	LdElemU1:  {-1, OperandNone},
	LdElemU2:  {-1, OperandNone},
	StElemI4:  {-3, OperandNone},
	StElemI8:  {-3, OperandNone},
	StElemR4:  {-3, OperandNone},
	StElemR8:  {-3, OperandNone},
	StElemRef: {-3, OperandNone},

	LdObj: {0, OperandToken},
	StObj: {-2, OperandToken},

	ConvI4:  {0, OperandNone},
	ConvI8:  {0, OperandNone},
	ConvR4:  {0, OperandNone},
	ConvR8:  {0, OperandNone},
	ConvU1:  {0, OperandNone},
	ConvU2:  {0, OperandNone},
	ConvU4:  {0, OperandNone},
	ConvU8:  {0, OperandNone},
	ConvRUn: {0, OperandNone},

	Add: {-1, OperandNone},
	Sub: {-1, OperandNone},
	Mul: {-1, OperandNone},
	Div: {-1, OperandNone},
	Rem: {-1, OperandNone},
	Neg: {0, OperandNone},
	And: {-1, OperandNone},
	Or:  {-1, OperandNone},
	Xor: {-1, OperandNone},
	Not: {0, OperandNone},
	Shl: {-1, OperandNone},
	Shr: {-1, OperandNone},

	Ceq: {-1, OperandNone},
	Cgt: {-1, OperandNone},
	Clt: {-1, OperandNone},

	CastClass: {0, OperandToken},
	IsInst:    {0, OperandToken},
	Box:       {0, OperandToken},
	Unbox:     {0, OperandToken},
	UnboxAny:  {0, OperandToken},

	EndFinally: {StackDeltaEmptiesStack, OperandNone},
	EndFilter:  {-1, OperandNone},
}

// Describe returns the (stack_delta, operand_kind) descriptor for op. If op
// is not a recognized native opcode it returns the descriptor
// {StackDeltaInvalid, OperandInvalid} together with a plain error naming
// the opcode.
func Describe(op Op) (OpDescriptor, error) {
	d, ok := opTable[op]
	if !ok {
		return OpDescriptor{StackDeltaInvalid, OperandInvalid}, fmt.Errorf("emit: reserved or unknown opcode 0x%04x", uint16(op))
	}
	return d, nil
}

// ElemKind is the key for the typed ldelem/stelem mappings (LoadElemOp,
// StoreElemOp): a primitive kind (plus "object" and "pointer-sized
// integer") selects a typed short form. There is no ldobj/stobj mapping.
type ElemKind int8

const (
	ElemI4 ElemKind = iota
	ElemI8
	ElemR4
	ElemR8
	ElemRef
	ElemU1
	ElemU2
	ElemIntPtr // pointer-sized integer, lowered like I8 on a 64-bit host
)

// LoadElemOp returns the typed short form of ldelem for the given element
// kind. The mapping is total over ElemKind.
func LoadElemOp(k ElemKind) Op {
	switch k {
	case ElemI4:
		return LdElemI4
	case ElemI8, ElemIntPtr:
		return LdElemI8
	case ElemR4:
		return LdElemR4
	case ElemR8:
		return LdElemR8
	case ElemRef:
		return LdElemRef
	case ElemU1:
		return LdElemU1
	case ElemU2:
		return LdElemU2
	default:
		return LdElemI4
	}
}

// StoreElemOp returns the typed short form of stelem for the given element
// kind. The mapping is total over ElemKind.
func StoreElemOp(k ElemKind) Op {
	switch k {
	case ElemI4, ElemU1, ElemU2:
		return StElemI4
	case ElemI8, ElemIntPtr:
		return StElemI8
	case ElemR4:
		return StElemR4
	case ElemR8:
		return StElemR8
	case ElemRef:
		return StElemRef
	default:
		return StElemI4
	}
}
