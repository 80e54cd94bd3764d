// Copyright 2024 The abccompile Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package verify

import (
	"fmt"
	"strings"
)

// opNames gives the mnemonic used when rendering an instruction stream for
// diagnostics. Grounded on disasm.Disassemble's text rendering of a decoded
// function body, adapted from WASM's nested-block instruction shape to
// AS3's flat, arbitrary-jump one: there is no block/end pairing to track
// here, only a flat list of offset-addressed instructions.
var opNames = map[ABCOp]string{
	OpNop: "nop", OpThrow: "throw", OpJump: "jump",
	OpIfTrue: "iftrue", OpIfFalse: "iffalse",
	OpIfEq: "ifeq", OpIfNe: "ifne", OpIfLt: "iflt", OpIfLe: "ifle",
	OpIfGt: "ifgt", OpIfGe: "ifge", OpIfStrictEq: "ifstricteq", OpIfStrictNe: "ifstrictne",
	OpIfNLT: "ifnlt", OpIfNLE: "ifnle", OpIfNGT: "ifngt", OpIfNGE: "ifnge",
	OpLookupSwitch: "lookupswitch",
	OpPushNull:     "pushnull", OpPushUndefined: "pushundefined",
	OpPushByte: "pushbyte", OpPushShort: "pushshort", OpPushInt: "pushint", OpPushUInt: "pushuint",
	OpPushTrue: "pushtrue", OpPushFalse: "pushfalse", OpPushNaN: "pushnan", OpPushDouble: "pushdouble",
	OpPushString: "pushstring",
	OpPop:        "pop", OpDup: "dup", OpSwap: "swap",
	OpCall: "call", OpConstruct: "construct", OpConstructSuper: "constructsuper",
	OpConstructProp: "constructprop", OpCallProperty: "callproperty", OpCallPropVoid: "callpropvoid",
	OpNewObject: "newobject", OpFindPropStrict: "findpropstrict", OpGetLex: "getlex",
	OpGetProperty: "getproperty", OpSetProperty: "setproperty", OpInitProperty: "initproperty",
	OpGetLocal: "getlocal", OpSetLocal: "setlocal",
	OpGetLocal0: "getlocal0", OpGetLocal1: "getlocal1", OpGetLocal2: "getlocal2", OpGetLocal3: "getlocal3",
	OpSetLocal0: "setlocal0", OpSetLocal1: "setlocal1", OpSetLocal2: "setlocal2", OpSetLocal3: "setlocal3",
	OpConvertS: "convert_s", OpConvertI: "convert_i", OpConvertU: "convert_u",
	OpConvertD: "convert_d", OpConvertB: "convert_b",
	OpCoerce: "coerce", OpAsType: "astype", OpCoerceA: "coerce_a", OpCoerceS: "coerce_s",
	OpIsType: "istype", OpInstanceOf: "instanceof",
	OpNegate: "negate", OpIncrement: "increment", OpDecrement: "decrement",
	OpNot: "not", OpBitNot: "bitnot",
	OpAdd: "add", OpSubtract: "subtract", OpMultiply: "multiply", OpDivide: "divide", OpModulo: "modulo",
	OpLShift: "lshift", OpRShift: "rshift", OpURShift: "urshift",
	OpBitAnd: "bitand", OpBitOr: "bitor", OpBitXor: "bitxor",
	OpEquals: "equals", OpStrictEquals: "strictequals",
	OpLessThan: "lessthan", OpLessEquals: "lessequals", OpGreaterThan: "greaterthan", OpGreaterEquals: "greaterequals",
	OpReturnVoid: "returnvoid", OpReturnValue: "returnvalue",
	OpDebug: "debug", OpDebugLine: "debugline", OpDebugFile: "debugfile",
}

// Disassemble renders instrs as one mnemonic line per instruction, offset-
// prefixed, in the style of a bytecode dump: "    12: getproperty x". Operand
// detail is appended where ins carries one (branch target, immediate,
// referenced name). Intended for diagnostics and test failure output, not
// for round-tripping — DecodeInstructions is the source of truth.
func Disassemble(instrs []Instruction) string {
	var b strings.Builder
	for _, ins := range instrs {
		name, ok := opNames[ins.Op]
		if !ok {
			name = fmt.Sprintf("op_0x%02x", byte(ins.Op))
		}
		fmt.Fprintf(&b, "%6d: %s", ins.Offset, name)
		switch {
		case ins.Op.IsBranch():
			fmt.Fprintf(&b, " -> %d", ins.Target)
		case ins.Op == OpLookupSwitch:
			fmt.Fprintf(&b, " default->%d cases=%v", ins.SwitchDefault, ins.SwitchCases)
		case ins.MemberRef != "":
			fmt.Fprintf(&b, " %s", ins.MemberRef)
		case ins.TypeRef != "":
			fmt.Fprintf(&b, " %s", ins.TypeRef)
		case ins.Op == OpGetLocal || ins.Op == OpSetLocal:
			fmt.Fprintf(&b, " %d", ins.LocalIndex)
		case ins.Op == OpPushByte || ins.Op == OpPushShort || ins.Op == OpPushInt || ins.Op == OpPushUInt:
			fmt.Fprintf(&b, " %d", ins.IntImm)
		case ins.Op == OpPushDouble:
			fmt.Fprintf(&b, " %g", ins.FloatImm)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
