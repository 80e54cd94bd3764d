// Copyright 2024 The abccompile Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package verify

import "github.com/abcnative/abccompile/resolve"

// applyTransfer is the per-instruction abstract transfer function spec.md
// §4.5 step 3 calls for: given the state before ins, mutate it in place to
// the state after ins and report any explicit branch targets (lookupswitch
// and the conditional/unconditional branch forms). Fallthrough to the next
// instruction in program order is the caller's concern (simulate), not
// this function's — every target returned here is a non-fallthrough edge.
// Grounded on validate.verifyBody's per-opcode dispatch and mockVM's
// popOperand/pushOperand/adjustStack, generalized to the AS3 operator and
// property-access opcode set.
func applyTransfer(ins Instruction, st *blockState, resolveType func(string) (typeState, error)) (*blockState, []int, error) {
	off := ins.Offset

	popN := func(n int) error {
		for i := 0; i < n; i++ {
			if _, err := st.pop(off, nil); err != nil {
				return err
			}
		}
		return nil
	}

	switch ins.Op {
	case OpNop, OpDebug, OpDebugLine, OpDebugFile:
		// no stack effect

	case OpThrow:
		if _, err := st.pop(off, nil); err != nil {
			return nil, nil, err
		}

	case OpJump:
		return st, []int{ins.Target}, nil

	case OpIfTrue, OpIfFalse:
		if _, err := st.pop(off, nil); err != nil {
			return nil, nil, err
		}
		return st, []int{ins.Target}, nil

	case OpIfEq, OpIfNe, OpIfLt, OpIfLe, OpIfGt, OpIfGe, OpIfStrictEq, OpIfStrictNe,
		OpIfNLT, OpIfNLE, OpIfNGT, OpIfNGE:
		if err := popN(2); err != nil {
			return nil, nil, err
		}
		return st, []int{ins.Target}, nil

	case OpLookupSwitch:
		if _, err := st.pop(off, nil); err != nil {
			return nil, nil, err
		}
		targets := make([]int, 0, len(ins.SwitchCases)+1)
		targets = append(targets, ins.SwitchDefault)
		targets = append(targets, ins.SwitchCases...)
		return st, targets, nil

	case OpPushNull, OpPushUndefined:
		st.push(resolve.AnyType)

	case OpPushByte, OpPushShort:
		st.push(resolve.IntType)

	case OpPushTrue, OpPushFalse:
		st.push(resolve.BooleanType)

	case OpPushNaN, OpPushDouble:
		st.push(resolve.NumberType)

	case OpPop:
		if _, err := st.pop(off, nil); err != nil {
			return nil, nil, err
		}

	case OpDup:
		top, err := st.pop(off, nil)
		if err != nil {
			return nil, nil, err
		}
		st.push(top)
		st.push(top)

	case OpSwap:
		a, err := st.pop(off, nil)
		if err != nil {
			return nil, nil, err
		}
		b, err := st.pop(off, nil)
		if err != nil {
			return nil, nil, err
		}
		st.push(a)
		st.push(b)

	case OpPushString:
		st.push(resolve.StringType)

	case OpPushInt:
		st.push(resolve.IntType)

	case OpPushUInt:
		st.push(resolve.UintType)

	case OpCall:
		if err := popN(ins.ArgCount + 2); err != nil {
			return nil, nil, err
		}
		st.push(resolve.AnyType)

	case OpConstruct:
		if err := popN(ins.ArgCount + 1); err != nil {
			return nil, nil, err
		}
		st.push(resolve.AnyType)

	case OpCallProperty:
		if err := popN(ins.ArgCount + 1); err != nil {
			return nil, nil, err
		}
		st.push(resolve.AnyType)

	case OpReturnVoid:
		// terminator, no operand

	case OpReturnValue:
		if _, err := st.pop(off, nil); err != nil {
			return nil, nil, err
		}

	case OpConstructSuper:
		if err := popN(ins.ArgCount + 1); err != nil {
			return nil, nil, err
		}

	case OpConstructProp:
		if err := popN(ins.ArgCount + 1); err != nil {
			return nil, nil, err
		}
		st.push(resolve.AnyType)

	case OpCallPropVoid:
		if err := popN(ins.ArgCount + 1); err != nil {
			return nil, nil, err
		}

	case OpNewObject:
		if err := popN(2 * ins.ArgCount); err != nil {
			return nil, nil, err
		}
		st.push(resolve.AnyType)

	case OpFindPropStrict, OpGetLex:
		st.push(resolve.AnyType)

	case OpSetProperty, OpInitProperty:
		if err := popN(2); err != nil {
			return nil, nil, err
		}

	case OpGetLocal:
		t, err := st.getLocal(off, ins.LocalIndex)
		if err != nil {
			return nil, nil, err
		}
		st.push(t)

	case OpSetLocal:
		v, err := st.pop(off, nil)
		if err != nil {
			return nil, nil, err
		}
		if err := st.setLocal(off, ins.LocalIndex, v); err != nil {
			return nil, nil, err
		}

	case OpGetProperty:
		if _, err := st.pop(off, nil); err != nil {
			return nil, nil, err
		}
		st.push(resolve.AnyType)

	case OpConvertS:
		if _, err := st.pop(off, nil); err != nil {
			return nil, nil, err
		}
		st.push(resolve.StringType)

	case OpConvertI:
		if _, err := st.pop(off, nil); err != nil {
			return nil, nil, err
		}
		st.push(resolve.IntType)

	case OpConvertU:
		if _, err := st.pop(off, nil); err != nil {
			return nil, nil, err
		}
		st.push(resolve.UintType)

	case OpConvertD:
		if _, err := st.pop(off, nil); err != nil {
			return nil, nil, err
		}
		st.push(resolve.NumberType)

	case OpConvertB:
		if _, err := st.pop(off, nil); err != nil {
			return nil, nil, err
		}
		st.push(resolve.BooleanType)

	case OpCoerce, OpAsType:
		if _, err := st.pop(off, nil); err != nil {
			return nil, nil, err
		}
		t, err := resolveType(ins.TypeRef)
		if err != nil {
			return nil, nil, err
		}
		st.push(t)

	case OpCoerceA:
		if _, err := st.pop(off, nil); err != nil {
			return nil, nil, err
		}
		st.push(resolve.AnyType)

	case OpCoerceS:
		if _, err := st.pop(off, nil); err != nil {
			return nil, nil, err
		}
		st.push(resolve.StringType)

	case OpIsType, OpInstanceOf:
		popCount := 1
		if ins.Op == OpInstanceOf {
			popCount = 2
		}
		if err := popN(popCount); err != nil {
			return nil, nil, err
		}
		st.push(resolve.BooleanType)

	case OpNegate, OpIncrement, OpDecrement:
		if _, err := st.pop(off, nil); err != nil {
			return nil, nil, err
		}
		st.push(resolve.NumberType)

	case OpNot:
		if _, err := st.pop(off, nil); err != nil {
			return nil, nil, err
		}
		st.push(resolve.BooleanType)

	case OpBitNot:
		if _, err := st.pop(off, nil); err != nil {
			return nil, nil, err
		}
		st.push(resolve.IntType)

	case OpAdd:
		if err := popN(2); err != nil {
			return nil, nil, err
		}
		st.push(resolve.AnyType)

	case OpSubtract, OpMultiply, OpDivide, OpModulo:
		if err := popN(2); err != nil {
			return nil, nil, err
		}
		st.push(resolve.NumberType)

	case OpLShift, OpRShift:
		if err := popN(2); err != nil {
			return nil, nil, err
		}
		st.push(resolve.IntType)

	case OpURShift:
		if err := popN(2); err != nil {
			return nil, nil, err
		}
		st.push(resolve.UintType)

	case OpBitAnd, OpBitOr, OpBitXor:
		if err := popN(2); err != nil {
			return nil, nil, err
		}
		st.push(resolve.IntType)

	case OpEquals, OpStrictEquals, OpLessThan, OpLessEquals, OpGreaterThan, OpGreaterEquals:
		if err := popN(2); err != nil {
			return nil, nil, err
		}
		st.push(resolve.BooleanType)

	case OpGetLocal0, OpGetLocal1, OpGetLocal2, OpGetLocal3:
		idx := int(ins.Op - OpGetLocal0)
		t, err := st.getLocal(off, idx)
		if err != nil {
			return nil, nil, err
		}
		st.push(t)

	case OpSetLocal0, OpSetLocal1, OpSetLocal2, OpSetLocal3:
		idx := int(ins.Op - OpSetLocal0)
		v, err := st.pop(off, nil)
		if err != nil {
			return nil, nil, err
		}
		if err := st.setLocal(off, idx, v); err != nil {
			return nil, nil, err
		}

	default:
		return nil, nil, errf(KindUnknownOpcode, off, "unrecognized opcode 0x%02X", byte(ins.Op))
	}

	return st, nil, nil
}
