// Copyright 2024 The abccompile Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package resolve

import "fmt"

// Kind enumerates resolve's failure kinds, surfaced as ResolveError per
// spec.md §7.
type Kind int

const (
	KindUnknownType Kind = iota
	KindVectorElementInvalid
	KindInterfaceRuleViolation
	KindCycle
)

func (k Kind) String() string {
	switch k {
	case KindUnknownType:
		return "UnknownType"
	case KindVectorElementInvalid:
		return "VectorElementInvalid"
	case KindInterfaceRuleViolation:
		return "InterfaceRuleViolation"
	case KindCycle:
		return "Cycle"
	default:
		return "Unknown"
	}
}

// Error is the ResolveError of spec.md §7: unknown type/member referenced,
// or a structural rule violation discovered while building a descriptor.
type Error struct {
	Kind Kind
	Name string
	Msg  string
}

func (e *Error) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("resolve: %s: %s (%s)", e.Kind, e.Name, e.Msg)
	}
	return fmt.Sprintf("resolve: %s: %s", e.Kind, e.Msg)
}

func errf(k Kind, name, format string, args ...interface{}) *Error {
	return &Error{Kind: k, Name: name, Msg: fmt.Sprintf(format, args...)}
}
