// Copyright 2024 The abccompile Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package token

import (
	"testing"

	"github.com/abcnative/abccompile/resolve"
)

func TestStaticProviderHandleStability(t *testing.T) {
	p := NewStaticProvider()
	cd := &resolve.ClassDesc{QName: resolve.QName{Local: "Foo"}}

	h1, err := p.HandleForType(cd)
	if err != nil {
		t.Fatalf("HandleForType: %v", err)
	}
	h2, err := p.HandleForType(cd)
	if err != nil {
		t.Fatalf("HandleForType (second): %v", err)
	}
	if h1 != h2 {
		t.Fatalf("expected stable handle, got %d then %d", h1, h2)
	}
	if !p.IsVirtual(h1) {
		t.Fatalf("expected freshly issued type handle to be virtual before Fixup")
	}
	p.Fixup()
	if p.IsVirtual(h1) {
		t.Fatalf("expected handle to no longer be virtual after Fixup")
	}
}

func TestStaticProviderStringHandlesDistinct(t *testing.T) {
	p := NewStaticProvider()
	a, _ := p.HandleForString("alpha")
	b, _ := p.HandleForString("beta")
	aAgain, _ := p.HandleForString("alpha")
	if a == b {
		t.Fatalf("expected distinct handles for distinct strings")
	}
	if a != aAgain {
		t.Fatalf("expected stable handle for repeated string")
	}
}

func TestDynamicProviderNeverVirtual(t *testing.T) {
	p := NewDynamicProvider()
	cd := &resolve.ClassDesc{QName: resolve.QName{Local: "Foo"}}
	h, err := p.HandleForType(cd)
	if err != nil {
		t.Fatalf("HandleForType: %v", err)
	}
	if p.IsVirtual(h) {
		t.Fatalf("dynamic provider handles must never be virtual")
	}
	if !p.UseSignatureHelper() {
		t.Fatalf("dynamic provider must always use the signature helper path")
	}
}

func TestMethodStackDeltaInstanceCall(t *testing.T) {
	m := &resolve.Member{
		Name:       "add",
		Kind:       resolve.MemberMethod,
		ParamTypes: []*resolve.ClassDesc{resolve.AnyType, resolve.AnyType},
		ReturnType: resolve.AnyType,
	}
	p := NewDynamicProvider()
	h, err := p.HandleForMethod(nil, m)
	if err != nil {
		t.Fatalf("HandleForMethod: %v", err)
	}
	delta, err := p.MethodStackDelta(h, opCallVirt)
	if err != nil {
		t.Fatalf("MethodStackDelta: %v", err)
	}
	// 2 args popped + receiver popped - 1 pushed = -2
	if delta != -2 {
		t.Fatalf("expected delta -2 for callvirt(2 args, non-void), got %d", delta)
	}
}

func TestMethodStackDeltaNewObj(t *testing.T) {
	m := &resolve.Member{
		Name:       "ctor",
		Kind:       resolve.MemberMethod,
		ParamTypes: []*resolve.ClassDesc{resolve.AnyType},
	}
	p := NewStaticProvider()
	h, err := p.HandleForMethod(nil, m)
	if err != nil {
		t.Fatalf("HandleForMethod: %v", err)
	}
	delta, err := p.MethodStackDelta(h, opNewObj)
	if err != nil {
		t.Fatalf("MethodStackDelta: %v", err)
	}
	// 1 arg popped, +1 for the constructed instance pushed = 0
	if delta != 0 {
		t.Fatalf("expected delta 0 for newobj(1 arg), got %d", delta)
	}
}

func TestMethodStackDeltaVoidInstanceCall(t *testing.T) {
	m := &resolve.Member{Name: "log", Kind: resolve.MemberMethod}
	p := NewDynamicProvider()
	h, _ := p.HandleForMethod(nil, m)
	delta, err := p.MethodStackDelta(h, opCallVirt)
	if err != nil {
		t.Fatalf("MethodStackDelta: %v", err)
	}
	// 0 args popped + receiver popped, no push for void return = -1
	if delta != -1 {
		t.Fatalf("expected delta -1 for void callvirt(0 args), got %d", delta)
	}
}

func TestMethodStackDeltaUnknownHandle(t *testing.T) {
	p := NewDynamicProvider()
	if _, err := p.MethodStackDelta(EntityHandle(999), opCall); err == nil {
		t.Fatalf("expected error for handle with no associated method")
	}
}
