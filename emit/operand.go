// Copyright 2024 The abccompile Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emit

// OperandKind classifies the immediate operand (if any) an opcode carries
// in the emitted instruction stream.
type OperandKind int8

const (
	// OperandNone carries no bytes after the opcode.
	OperandNone OperandKind = iota
	OperandInt8
	OperandInt16
	OperandInt32
	OperandInt64
	OperandFloat32
	OperandFloat64
	// OperandShortBranch is a 1-byte signed displacement.
	OperandShortBranch
	// OperandLongBranch is a 4-byte signed displacement.
	OperandLongBranch
	// OperandLocalRef0 means the local index is implicit in the opcode
	// itself (e.g. ldloc_0..ldloc_3); it carries no operand bytes.
	OperandLocalRef0
	// OperandLocalRef8 is a 1-byte unsigned local index.
	OperandLocalRef8
	// OperandLocalRef16 is a 2-byte unsigned local index.
	OperandLocalRef16
	// OperandArgRef0 is the argument-index analogue of OperandLocalRef0.
	OperandArgRef0
	OperandArgRef8
	OperandArgRef16
	// OperandToken is a 4-byte token resolved through a TokenProvider.
	OperandToken
	// OperandSwitchTable is a variable-length jump table; never shortened.
	OperandSwitchTable
	// OperandInvalid marks a reserved/unassigned opcode slot.
	OperandInvalid
)

func (k OperandKind) String() string {
	switch k {
	case OperandNone:
		return "none"
	case OperandInt8:
		return "int8"
	case OperandInt16:
		return "int16"
	case OperandInt32:
		return "int32"
	case OperandInt64:
		return "int64"
	case OperandFloat32:
		return "float32"
	case OperandFloat64:
		return "float64"
	case OperandShortBranch:
		return "short_branch"
	case OperandLongBranch:
		return "long_branch"
	case OperandLocalRef0:
		return "local_ref_0"
	case OperandLocalRef8:
		return "local_ref_8"
	case OperandLocalRef16:
		return "local_ref_16"
	case OperandArgRef0:
		return "arg_ref_0"
	case OperandArgRef8:
		return "arg_ref_8"
	case OperandArgRef16:
		return "arg_ref_16"
	case OperandToken:
		return "token"
	case OperandSwitchTable:
		return "switch_table"
	default:
		return "invalid"
	}
}

// isLocalRef reports whether k addresses a local-variable slot (as opposed
// to an argument slot, a branch, or a plain value).
func (k OperandKind) isLocalRef() bool {
	switch k {
	case OperandLocalRef0, OperandLocalRef8, OperandLocalRef16:
		return true
	default:
		return false
	}
}

func (k OperandKind) isArgRef() bool {
	switch k {
	case OperandArgRef0, OperandArgRef8, OperandArgRef16:
		return true
	default:
		return false
	}
}
