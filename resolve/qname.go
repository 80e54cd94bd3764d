// Copyright 2024 The abccompile Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package resolve implements the Type Resolver (TR): mapping an ABC
// type-name form (namespace + local name) to a unique resolved class
// descriptor per application domain, per spec.md §4.3.
package resolve

import "fmt"

// NamespaceKind is the kind half of a qualified name's namespace, per
// spec.md glossary ("Namespace / qualified name").
type NamespaceKind int8

const (
	NamespacePublic NamespaceKind = iota
	NamespaceInternal
	NamespaceProtected
	NamespaceExplicit
	NamespaceStaticProtected
	// NamespacePrivate is always rejected by NewQName (spec.md §4.3,
	// "Name formation": "namespace kind private is rejected").
	NamespacePrivate
)

// ErrPrivateNamespace is returned by NewQName when kind is
// NamespacePrivate.
var ErrPrivateNamespace = fmt.Errorf("resolve: private namespace kind is not a valid qualified-name component")

// QName is a two-part identifier: a namespace (URI + kind) plus a local
// name. Two qualified names are equal iff both parts are equal.
type QName struct {
	URI   string
	Kind  NamespaceKind
	Local string
}

// NewQName builds a qualified name, applying spec.md's name-formation
// rules: a null (empty) namespace URI selects the public namespace and
// ignores kind; NamespacePrivate is always rejected.
func NewQName(uri string, kind NamespaceKind, local string) (QName, error) {
	if kind == NamespacePrivate {
		return QName{}, ErrPrivateNamespace
	}
	if uri == "" {
		kind = NamespacePublic
	}
	return QName{URI: uri, Kind: kind, Local: local}, nil
}

// Equal reports whether q and other name the same entity.
func (q QName) Equal(other QName) bool {
	return q.URI == other.URI && q.Kind == other.Kind && q.Local == other.Local
}

func (q QName) String() string {
	if q.URI == "" {
		return q.Local
	}
	return fmt.Sprintf("%s::%s", q.URI, q.Local)
}
