// Copyright 2024 The abccompile Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package resolve

import (
	"fmt"
	"strings"

	"github.com/abcnative/abccompile/domain"
)

// NativeSource builds a class descriptor for a qualified name that has no
// entry yet in the domain's symbol table, from a host-language (native)
// declaration. It is satisfied by package classimport's Importer, and is
// the "creating it on demand when the source is a native declaration"
// guarantee of spec.md §4.3.
type NativeSource interface {
	BuildNative(qn QName) (*ClassDesc, error)
}

// Resolver maps qualified names to resolved class descriptors within one
// application domain, with uniqueness, dependency-closure resolution, and
// vector-instantiation support (spec.md §4.3).
type Resolver struct {
	dom    *domain.Domain
	native NativeSource

	// resolving tracks qualified names currently mid-resolution, so that
	// cycles among type references (not base chains) are tolerated:
	// spec.md explicitly permits cycles among type *references*.
	resolving map[string]*ClassDesc
}

// New creates a Resolver backed by dom, consulting native for classes not
// already present in the domain.
func New(dom *domain.Domain, native NativeSource) *Resolver {
	return &Resolver{dom: dom, native: native, resolving: map[string]*ClassDesc{}}
}

func traitKey(qn QName) string {
	return fmt.Sprintf("%d\x00%s\x00%s", qn.Kind, qn.URI, qn.Local)
}

// Resolve returns the unique descriptor for qn in this resolver's domain,
// building it from the native source on first reference and caching it in
// the domain's trait table so repeated resolution returns the same
// reference (spec.md §4.3 "Uniqueness").
func (r *Resolver) Resolve(qn QName) (*ClassDesc, error) {
	key := traitKey(qn)

	if t, ok := r.dom.Lookup(key); ok {
		return t.(*ClassDesc), nil
	}
	if cd, ok := r.resolving[key]; ok {
		// A cycle among type references; spec.md §4.3 permits this for
		// anything but base-chain cycles (checked separately, by the
		// caller walking Super before this returns).
		return cd, nil
	}

	if r.native == nil {
		return nil, errf(KindUnknownType, qn.String(), "no native source configured")
	}
	placeholder := &ClassDesc{QName: qn}
	r.resolving[key] = placeholder
	cd, err := r.native.BuildNative(qn)
	delete(r.resolving, key)
	if err != nil {
		return nil, err
	}

	if err := r.dom.TryDefineGlobalTrait(key, cd); err != nil {
		// Another goroutine defined it first; use that definition so
		// uniqueness holds even under concurrent first access.
		if t, ok := r.dom.Lookup(key); ok {
			return t.(*ClassDesc), nil
		}
		return nil, err
	}
	return cd, nil
}

// boxedPrimitiveNames are the wrapper types spec.md §4.3 disallows as
// vector element types.
var boxedPrimitiveNames = map[string]bool{
	"Number": true, "int": true, "uint": true, "Boolean": true, "String": true,
}

// Vector builds (or returns the cached) constructed vector instantiation
// with element type elem, named "BaseName.<T-name>" in elem's original
// namespace and tagged TagVector, per spec.md §4.3.
func (r *Resolver) Vector(elem *ClassDesc) (*ClassDesc, error) {
	if elem == nil {
		return nil, errf(KindVectorElementInvalid, "", "nil element type")
	}
	if elem.Tag == TagAny {
		return nil, errf(KindVectorElementInvalid, elem.QName.String(), "the any-type cannot be a vector element")
	}
	if elem.Tag == TagVector {
		return nil, errf(KindVectorElementInvalid, elem.QName.String(), "a vector cannot itself be a vector element")
	}
	if boxedPrimitiveNames[elem.QName.Local] {
		return nil, errf(KindVectorElementInvalid, elem.QName.String(), "boxed-primitive wrapper types cannot be vector elements")
	}

	local := fmt.Sprintf("Vector.<%s>", elem.QName.Local)
	qn := QName{URI: elem.QName.URI, Kind: elem.QName.Kind, Local: local}
	key := traitKey(qn)
	if t, ok := r.dom.Lookup(key); ok {
		return t.(*ClassDesc), nil
	}

	cd := &ClassDesc{QName: qn, Tag: TagVector, ElementType: elem, Exported: true}
	if err := r.dom.TryDefineGlobalTrait(key, cd); err != nil {
		if t, ok := r.dom.Lookup(key); ok {
			return t.(*ClassDesc), nil
		}
		return nil, err
	}
	return cd, nil
}

// ValidateInterface enforces spec.md §4.3's "Interface rules": an
// interface's base interfaces must all be exported, and an interface may
// not contain unexported instance methods except property-accessor shims
// recorded during property resolution (passed in allowedUnexported).
func ValidateInterface(cd *ClassDesc, allowedUnexported map[string]bool) error {
	if cd.Tag != TagInterface {
		return nil
	}
	for _, base := range cd.Interfaces {
		if !base.Exported {
			return errf(KindInterfaceRuleViolation, cd.QName.String(), fmt.Sprintf("base interface %s is not exported", base.QName))
		}
	}
	for _, m := range cd.Members {
		if m.Kind != MemberMethod {
			continue
		}
		if !m.Exported && !allowedUnexported[m.Name] {
			return errf(KindInterfaceRuleViolation, cd.QName.String(), fmt.Sprintf("unexported instance method %s", m.Name))
		}
	}
	return nil
}

// DependencyClosure resolves, transitively, every type referenced in cd's
// base chain, implemented interfaces, and member signatures, per spec.md
// §4.3 "Dependency closure". It returns the first error encountered, if
// any; cycles among type references are tolerated (Resolve handles that),
// but a cycle within the base chain itself is rejected.
func (r *Resolver) DependencyClosure(cd *ClassDesc) error {
	seenBaseChain := map[*ClassDesc]bool{cd: true}
	for sup := cd.Super; sup != nil; sup = sup.Super {
		if seenBaseChain[sup] {
			return errf(KindCycle, cd.QName.String(), "cycle in base chain")
		}
		seenBaseChain[sup] = true
	}
	resolveRef := func(t *ClassDesc) error {
		// The primitive, any and void singletons are never registered in
		// a domain, so there is nothing to resolve for them.
		if t == nil || t.Tag == TagPrimitive || t.Tag == TagAny || t.Tag == TagVoid {
			return nil
		}
		_, err := r.Resolve(t.QName)
		return err
	}
	for _, iface := range cd.Interfaces {
		if err := resolveRef(iface); err != nil {
			return err
		}
	}
	for _, m := range cd.Members {
		if err := resolveRef(m.Type); err != nil {
			return err
		}
		for _, p := range m.ParamTypes {
			if err := resolveRef(p); err != nil {
				return err
			}
		}
		if err := resolveRef(m.ReturnType); err != nil {
			return err
		}
	}
	return nil
}

// SplitQName parses a "uri::local" or bare "local" string into a QName,
// a small convenience used by callers building QNames from ABC multiname
// text forms.
func SplitQName(s string) QName {
	if i := strings.Index(s, "::"); i >= 0 {
		return QName{URI: s[:i], Local: s[i+2:]}
	}
	return QName{Local: s}
}
