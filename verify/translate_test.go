// Copyright 2024 The abccompile Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package verify

import (
	"testing"

	"github.com/abcnative/abccompile/emit"
	"github.com/abcnative/abccompile/resolve"
	"github.com/abcnative/abccompile/token"
)

func newTestTranslator() *Translator {
	return NewTranslator(newTestResolver(), token.NewDynamicProvider())
}

func TestTranslateArithmeticMethod(t *testing.T) {
	code := []byte{
		byte(OpPushByte), 0x02,
		byte(OpPushByte), 0x03,
		byte(OpAdd),
		byte(OpReturnValue),
	}
	tr := newTestTranslator()
	mb, err := tr.Translate(&MethodBody{Code: code})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if len(mb.Code) == 0 {
		t.Fatalf("expected non-empty native code")
	}
	if mb.MaxStack < 2 {
		t.Fatalf("expected max stack depth >= 2, got %d", mb.MaxStack)
	}
}

func TestTranslateBranchMethod(t *testing.T) {
	// pushbyte 1; iftrue +L; pushbyte 0; pop; L: returnvoid
	code := []byte{
		byte(OpPushByte), 0x01,
		byte(OpIfTrue), 0x03, 0x00, 0x00,
		byte(OpPushByte), 0x00,
		byte(OpPop),
		byte(OpReturnVoid),
	}
	tr := newTestTranslator()
	if _, err := tr.Translate(&MethodBody{Code: code}); err != nil {
		t.Fatalf("Translate: %v", err)
	}
}

func TestTranslateDynamicPropertyAccess(t *testing.T) {
	// findpropstrict "x"; getproperty "x"; pop; returnvoid
	code := []byte{
		byte(OpFindPropStrict), 0x01, 'x',
		byte(OpGetProperty), 0x01, 'x',
		byte(OpPop),
		byte(OpReturnVoid),
	}
	tr := newTestTranslator()
	if _, err := tr.Translate(&MethodBody{Code: code}); err != nil {
		t.Fatalf("Translate: %v", err)
	}
}

func TestTranslateComparisonLowering(t *testing.T) {
	// pushbyte 1; pushbyte 2; ifle +L; pushbyte 0; pop; L: returnvoid
	code := []byte{
		byte(OpPushByte), 0x01,
		byte(OpPushByte), 0x02,
		byte(OpIfLe), 0x03, 0x00, 0x00,
		byte(OpPushByte), 0x00,
		byte(OpPop),
		byte(OpReturnVoid),
	}
	tr := newTestTranslator()
	if _, err := tr.Translate(&MethodBody{Code: code}); err != nil {
		t.Fatalf("Translate: %v", err)
	}
}

func TestCoerceForNumericPrimitives(t *testing.T) {
	if op, ok := coerceFor(resolve.IntType); !ok || op != emit.ConvI4 {
		t.Fatalf("expected ConvI4 for int, got %v/%v", op, ok)
	}
	if op, ok := coerceFor(resolve.UintType); !ok || op != emit.ConvU4 {
		t.Fatalf("expected ConvU4 for uint, got %v/%v", op, ok)
	}
	if op, ok := coerceFor(resolve.NumberType); !ok || op != emit.ConvR8 {
		t.Fatalf("expected ConvR8 for Number, got %v/%v", op, ok)
	}
	if _, ok := coerceFor(resolve.AnyType); ok {
		t.Fatalf("expected no native coercion for AnyType")
	}
}

func TestTranslateSwapUsesTempLocals(t *testing.T) {
	// pushbyte 1; pushbyte 2; swap; pop; returnvalue
	code := []byte{
		byte(OpPushByte), 0x01,
		byte(OpPushByte), 0x02,
		byte(OpSwap),
		byte(OpPop),
		byte(OpReturnValue),
	}
	tr := newTestTranslator()
	mb, err := tr.Translate(&MethodBody{Code: code})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if len(mb.Code) == 0 {
		t.Fatalf("expected non-empty native code")
	}
	if len(mb.LocalSignatureBytes) != 2+5*2 {
		t.Fatalf("expected two temp locals in the local signature, got %d bytes", len(mb.LocalSignatureBytes))
	}
}

func TestTranslateConvertStringAndBoolean(t *testing.T) {
	// pushbyte 1; convert_s; pop; pushbyte 1; convert_b; pop; returnvoid
	code := []byte{
		byte(OpPushByte), 0x01,
		byte(OpConvertS),
		byte(OpPop),
		byte(OpPushByte), 0x01,
		byte(OpConvertB),
		byte(OpPop),
		byte(OpReturnVoid),
	}
	tr := newTestTranslator()
	if _, err := tr.Translate(&MethodBody{Code: code}); err != nil {
		t.Fatalf("Translate: %v", err)
	}
}

func TestTranslateExceptionRegion(t *testing.T) {
	// try: pushbyte 1; throw  (offsets 0-3)
	// catch-all handler: pop; returnvoid  (offsets 3-5)
	// after: returnvoid (offset 5)
	code := []byte{
		byte(OpPushByte), 0x01, // 0-1
		byte(OpThrow),          // 2
		byte(OpPop),            // 3 (handler start)
		byte(OpReturnVoid),     // 4
		byte(OpReturnVoid),     // 5
	}
	regions := []ExceptionRegion{
		{TryStart: 0, TryEnd: 3, HandlerStart: 3, CatchType: ""},
	}
	tr := newTestTranslator()
	if _, err := tr.Translate(&MethodBody{Code: code, Regions: regions}); err != nil {
		t.Fatalf("Translate: %v", err)
	}
}
