// Copyright 2024 The abccompile Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package verify

import (
	"github.com/abcnative/abccompile/emit"
	"github.com/abcnative/abccompile/resolve"
)

// coerceFor picks the native conversion instruction for a value coerced
// to the primitive numeric type "to": ConvI4 for int, ConvU4 for uint,
// ConvR8 for Number. It is used at the ABC coerce/astype opcodes only;
// no boxing/unboxing is produced, and call-like instructions get no
// per-argument coercion. Returns ok=false for every other target
// (reference types, any, Boolean, String), which OpCoerce/OpAsType lower
// to CastClass instead.
//
// Grounded on CDI's §4.4 allowed-member-type set (the five primitive
// spellings plus object references) intersected with the native
// instruction set's conversion family (ConvI4/ConvU4/ConvR8 — there is no
// native convert-to-bool or convert-to-string, matching emitOne's
// OpConvertB/OpConvertS handling).
func coerceFor(to *resolve.ClassDesc) (emit.Op, bool) {
	switch to {
	case resolve.IntType:
		return emit.ConvI4, true
	case resolve.UintType:
		return emit.ConvU4, true
	case resolve.NumberType:
		return emit.ConvR8, true
	default:
		return 0, false
	}
}
