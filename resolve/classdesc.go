// Copyright 2024 The abccompile Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package resolve

// ClassTag is the compact class-kind tag every descriptor carries, used
// for fast kind-dispatch at runtime by the host's tagged-descriptor
// abstraction (spec.md §9, "Design Notes").
type ClassTag int8

const (
	TagObject ClassTag = iota
	TagInterface
	TagPrimitive
	TagVector
	TagAny
	TagVoid
)

func (t ClassTag) String() string {
	switch t {
	case TagObject:
		return "object"
	case TagInterface:
		return "interface"
	case TagPrimitive:
		return "primitive"
	case TagVector:
		return "vector"
	case TagAny:
		return "any"
	case TagVoid:
		return "void"
	default:
		return "unknown"
	}
}

// MemberKind classifies a Member.
type MemberKind int8

const (
	MemberField MemberKind = iota
	MemberMethod
	MemberGetter
	MemberSetter
	MemberConst
	MemberSlot
)

// Member is a named, typed trait of a class: a field, method, property
// accessor, constant, or slot (spec.md glossary: "Trait").
type Member struct {
	Name      string
	Kind      MemberKind
	Type      *ClassDesc
	ParamTypes []*ClassDesc // for MemberMethod
	ReturnType *ClassDesc   // for MemberMethod; nil means void
	Exported  bool
}

// ClassDesc is the resolved class descriptor TR and VT consume: a
// superclass reference plus an interface set for structural checks, per
// spec.md §9.
type ClassDesc struct {
	QName QName
	Tag   ClassTag

	Super      *ClassDesc
	Interfaces []*ClassDesc
	Members    map[string]*Member

	// ElementType is non-nil iff Tag == TagVector: the vector's element
	// type (spec.md §4.3, "Vector instantiations").
	ElementType *ClassDesc

	Exported bool
}

// IsAssignableFrom reports whether a value of type other can be used
// where c is expected: other is c, a subclass of c, or (if c is an
// interface) other implements c, transitively.
func (c *ClassDesc) IsAssignableFrom(other *ClassDesc) bool {
	if c == nil || other == nil {
		return false
	}
	if c.Tag == TagAny {
		return true
	}
	for cur := other; cur != nil; cur = cur.Super {
		if cur == c {
			return true
		}
		if c.Tag == TagInterface {
			for _, iface := range cur.Interfaces {
				if implementsInterface(iface, c) {
					return true
				}
			}
		}
	}
	return false
}

func implementsInterface(iface, target *ClassDesc) bool {
	if iface == target {
		return true
	}
	for _, super := range iface.Interfaces {
		if implementsInterface(super, target) {
			return true
		}
	}
	return false
}

// LeastCommonSupertype returns the narrowest type both a and b are
// assignable to, widening to TagAny when no closer common ancestor
// exists. Used by VT to widen abstract-stack type state at control-flow
// joins (spec.md §4.5 step 3).
func LeastCommonSupertype(a, b *ClassDesc) *ClassDesc {
	if a == nil || b == nil {
		return AnyType
	}
	if a == b {
		return a
	}
	ancestors := map[*ClassDesc]bool{}
	for cur := a; cur != nil; cur = cur.Super {
		ancestors[cur] = true
	}
	for cur := b; cur != nil; cur = cur.Super {
		if ancestors[cur] {
			return cur
		}
	}
	return AnyType
}

// AnyType is the well-known "*" (any) type: it is assignable from, and
// assignable to, everything.
var AnyType = &ClassDesc{QName: QName{Local: "*"}, Tag: TagAny}

// VoidType marks an absent return value.
var VoidType = &ClassDesc{QName: QName{Local: "void"}, Tag: TagVoid}

// Well-known primitive types: the closed set spec.md §4.4 allows for an
// exported member's type, besides the any-type, void, and exported class
// descriptors. Named for their AS3 surface spelling, matching the keys
// boxedPrimitiveNames already uses in resolver.go.
var (
	IntType     = &ClassDesc{QName: QName{Local: "int"}, Tag: TagPrimitive}
	UintType    = &ClassDesc{QName: QName{Local: "uint"}, Tag: TagPrimitive}
	NumberType  = &ClassDesc{QName: QName{Local: "Number"}, Tag: TagPrimitive}
	BooleanType = &ClassDesc{QName: QName{Local: "Boolean"}, Tag: TagPrimitive}
	StringType  = &ClassDesc{QName: QName{Local: "String"}, Tag: TagPrimitive}
)

// PrimitiveType returns the well-known primitive descriptor named name
// ("int", "uint", "Number", "Boolean", "String"), or (nil, false) if name
// does not name one.
func PrimitiveType(name string) (*ClassDesc, bool) {
	switch name {
	case "int":
		return IntType, true
	case "uint":
		return UintType, true
	case "Number":
		return NumberType, true
	case "Boolean":
		return BooleanType, true
	case "String":
		return StringType, true
	default:
		return nil, false
	}
}
