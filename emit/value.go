// Copyright 2024 The abccompile Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emit

// Operand is a marker value passed to the internal fixed-opcode emit
// path. Opcodes that carry an actual immediate go through one of the
// typed Emit* methods on Emitter instead (EmitLoadLocal, EmitBranch,
// EmitToken, EmitLoadConstInt, ...), each of which already knows how to
// encode its own operand kind.
type Operand struct{ kind OperandKind }

// NoOperand is the operand for opcodes that carry no immediate.
func NoOperand() Operand { return Operand{kind: OperandNone} }
