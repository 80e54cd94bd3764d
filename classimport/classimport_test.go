// Copyright 2024 The abccompile Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package classimport

import (
	"testing"

	"github.com/abcnative/abccompile/domain"
	"github.com/abcnative/abccompile/resolve"
)

func newTestResolver(opts Options) (*resolve.Resolver, *Importer) {
	im := NewImporter(opts)
	dom := domain.New(nil)
	res := resolve.New(dom, im)
	im.SetResolver(res)
	return res, im
}

var objectRootQName = resolve.QName{Local: "Object"}

func objectRootRecord() ClassRecord {
	return ClassRecord{QName: objectRootQName, Exported: true}
}

func TestBuildNativeSimpleClass(t *testing.T) {
	opts := Options{
		ObjectRootQName: objectRootQName,
		Classes: []ClassRecord{
			objectRootRecord(),
			{
				QName:    resolve.QName{Local: "Widget"},
				Exported: true,
				Members: []MemberRecord{
					{Name: "Widget", Kind: resolve.MemberMethod, IsConstructor: true,
						ParamTypes: []string{"int"}, ParamMeta: []string{""}, ReturnType: "void", Exported: true},
					{Name: "count", Kind: resolve.MemberField, Type: "int", Exported: true},
					{Name: "value", Kind: resolve.MemberGetter, Type: "Number", Exported: true},
					{Name: "value", Kind: resolve.MemberSetter, Type: "Number", Exported: true},
					{Name: "doThing", Kind: resolve.MemberMethod,
						ParamTypes: []string{"int", "String"}, ParamMeta: []string{"", ""}, ReturnType: "Boolean", Exported: true},
				},
			},
		},
	}
	res, _ := newTestResolver(opts)

	cd, err := res.Resolve(resolve.QName{Local: "Widget"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cd.Super == nil || !cd.Super.QName.Equal(objectRootQName) {
		t.Fatalf("expected Widget to descend from the object root")
	}
	if _, ok := cd.Members["get value"]; !ok {
		t.Fatalf("expected a getter trait for value")
	}
	if _, ok := cd.Members["set value"]; !ok {
		t.Fatalf("expected a setter trait for value")
	}
	doThing := cd.Members["doThing"]
	if doThing == nil {
		t.Fatalf("expected doThing method")
	}
	if len(doThing.ParamTypes) != 2 || doThing.ReturnType != resolve.BooleanType {
		t.Fatalf("doThing signature mismatch: %+v", doThing)
	}
}

func TestMissingObjectRootRejected(t *testing.T) {
	opts := Options{
		ObjectRootQName: objectRootQName,
		Classes: []ClassRecord{
			// Object root intentionally omitted.
			{QName: resolve.QName{Local: "Orphan"}, Exported: true},
		},
	}
	res, _ := newTestResolver(opts)
	if _, err := res.Resolve(resolve.QName{Local: "Orphan"}); err == nil {
		t.Fatalf("expected resolution to fail when the object root cannot be found")
	}
}

func TestMultipleConstructorsRejected(t *testing.T) {
	opts := Options{
		ObjectRootQName: objectRootQName,
		Classes: []ClassRecord{
			objectRootRecord(),
			{
				QName:    resolve.QName{Local: "TwoCtors"},
				Exported: true,
				Members: []MemberRecord{
					{Name: "TwoCtors", Kind: resolve.MemberMethod, IsConstructor: true, ReturnType: "void", Exported: true},
					{Name: "TwoCtors2", Kind: resolve.MemberMethod, IsConstructor: true, ReturnType: "void", Exported: true},
				},
			},
		},
	}
	res, _ := newTestResolver(opts)
	_, err := res.Resolve(resolve.QName{Local: "TwoCtors"})
	if err == nil {
		t.Fatalf("expected an error for a class with two constructors")
	}
	ce, ok := err.(*Error)
	if !ok || ce.Kind != KindMultipleConstructors {
		t.Fatalf("expected KindMultipleConstructors, got %v", err)
	}
}

func TestAccessorSignatureMismatchRejected(t *testing.T) {
	opts := Options{
		ObjectRootQName: objectRootQName,
		Classes: []ClassRecord{
			objectRootRecord(),
			{
				QName:    resolve.QName{Local: "Mismatched"},
				Exported: true,
				Members: []MemberRecord{
					{Name: "value", Kind: resolve.MemberGetter, Type: "Number", Exported: true},
					{Name: "value", Kind: resolve.MemberSetter, Type: "String", Exported: true},
				},
			},
		},
	}
	res, _ := newTestResolver(opts)
	_, err := res.Resolve(resolve.QName{Local: "Mismatched"})
	if err == nil {
		t.Fatalf("expected an error for a mismatched getter/setter pair")
	}
	ce, ok := err.(*Error)
	if !ok || ce.Kind != KindAccessorSignatureMismatch {
		t.Fatalf("expected KindAccessorSignatureMismatch, got %v", err)
	}
}

func TestOptionalParamOrderRejected(t *testing.T) {
	opts := Options{
		ObjectRootQName: objectRootQName,
		Classes: []ClassRecord{
			objectRootRecord(),
			{
				QName:    resolve.QName{Local: "BadOrder"},
				Exported: true,
				Members: []MemberRecord{
					{Name: "m", Kind: resolve.MemberMethod, ReturnType: "void", Exported: true,
						ParamTypes: []string{"int", "String"},
						ParamMeta:  []string{`[Optional(default=0)]`, ""}},
				},
			},
		},
	}
	res, _ := newTestResolver(opts)
	_, err := res.Resolve(resolve.QName{Local: "BadOrder"})
	if err == nil {
		t.Fatalf("expected an error for a required parameter following an optional one")
	}
	ce, ok := err.(*Error)
	if !ok || ce.Kind != KindOptionalParamOrder {
		t.Fatalf("expected KindOptionalParamOrder, got %v", err)
	}
}

func TestRestParamMustBeLast(t *testing.T) {
	opts := Options{
		ObjectRootQName: objectRootQName,
		Classes: []ClassRecord{
			objectRootRecord(),
			{
				QName:    resolve.QName{Local: "BadRest"},
				Exported: true,
				Members: []MemberRecord{
					{Name: "m", Kind: resolve.MemberMethod, ReturnType: "void", Exported: true,
						ParamTypes: []string{restSentinel, "int"},
						ParamMeta:  []string{"", ""}},
				},
			},
		},
	}
	res, _ := newTestResolver(opts)
	_, err := res.Resolve(resolve.QName{Local: "BadRest"})
	if err == nil {
		t.Fatalf("expected an error when the rest parameter is not last")
	}
	ce, ok := err.(*Error)
	if !ok || ce.Kind != KindRestParamPosition {
		t.Fatalf("expected KindRestParamPosition, got %v", err)
	}
}

func TestDisallowedMemberTypeRejected(t *testing.T) {
	opts := Options{
		ObjectRootQName: objectRootQName,
		Classes: []ClassRecord{
			objectRootRecord(),
			{
				QName:    resolve.QName{Local: "BadField"},
				Exported: true,
				Members: []MemberRecord{
					{Name: "secret", Kind: resolve.MemberField, Type: "com::Unregistered", Exported: true},
				},
			},
		},
	}
	res, _ := newTestResolver(opts)
	if _, err := res.Resolve(resolve.QName{Local: "BadField"}); err == nil {
		t.Fatalf("expected an error for a field type that cannot be resolved")
	}
}

func TestGenericRejectedExceptVectorBase(t *testing.T) {
	opts := Options{
		ObjectRootQName: objectRootQName,
		Classes: []ClassRecord{
			objectRootRecord(),
			{QName: resolve.QName{Local: "GenericThing"}, Exported: true, IsGeneric: true},
			{QName: resolve.QName{Local: "__VectorBase"}, Exported: true, IsGeneric: true, IsVectorBase: true},
		},
	}
	res, _ := newTestResolver(opts)

	if _, err := res.Resolve(resolve.QName{Local: "GenericThing"}); err == nil {
		t.Fatalf("expected an error for a generic non-vector-base class")
	}
	if _, err := res.Resolve(resolve.QName{Local: "__VectorBase"}); err != nil {
		t.Fatalf("expected the vector base's genericity to be tolerated: %v", err)
	}
}

func TestMalformedMetaTagRejected(t *testing.T) {
	opts := Options{
		ObjectRootQName: objectRootQName,
		Classes: []ClassRecord{
			objectRootRecord(),
			{QName: resolve.QName{Local: "BadMeta"}, Exported: true, Meta: `[Foo(a=1`},
		},
	}
	res, _ := newTestResolver(opts)
	_, err := res.Resolve(resolve.QName{Local: "BadMeta"})
	if err == nil {
		t.Fatalf("expected an error for malformed class-level metadata")
	}
	ce, ok := err.(*Error)
	if !ok || ce.Kind != KindMalformedTag {
		t.Fatalf("expected KindMalformedTag, got %v", err)
	}
}
