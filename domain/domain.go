// Copyright 2024 The abccompile Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package domain implements the concurrency and resource model of spec.md
// §5: application domains holding shared, compare-and-insert symbol
// tables, one-shot lazy class initialization, and caller-scoped static
// zones.
package domain

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ID names an application domain.
type ID uuid.UUID

func (id ID) String() string { return uuid.UUID(id).String() }

// NewID generates a fresh, random domain identifier.
func NewID() ID { return ID(uuid.New()) }

// Trait is an opaque global symbol published into a Domain: a resolved
// class descriptor, a global function, or a global slot. Domain does not
// interpret its contents; package resolve and package classimport are the
// callers that populate and type-assert it.
type Trait interface{}

// ErrTraitConflict is returned by TryDefineGlobalTrait when a trait with
// the same name already exists.
type ErrTraitConflict string

func (e ErrTraitConflict) Error() string {
	return fmt.Sprintf("domain: trait %q already defined", string(e))
}

// Domain is a named scope for classes and globals. Multiple domains may
// coexist with independent symbol tables; a domain may chain to a parent
// for lookup fallback (spec.md glossary: "Application domain").
//
// Definition is serialized behind a single writer mutex. Reads take a
// snapshot of the current table without blocking writers for longer than
// a pointer load: the table is never mutated in place, only replaced
// wholesale on a successful insert (copy-on-write), so concurrent readers
// never observe a partially-populated map.
type Domain struct {
	id     ID
	parent *Domain

	mu     sync.Mutex
	traits map[string]Trait // guarded by mu for writers; read via snapshot()
}

// New creates a domain. parent may be nil; if non-nil, Lookup falls back
// to it when name is not defined locally.
func New(parent *Domain) *Domain {
	return &Domain{
		id:     NewID(),
		parent: parent,
		traits: make(map[string]Trait),
	}
}

// ID returns the domain's stable identifier.
func (d *Domain) ID() ID { return d.id }

// Parent returns the domain this one falls back to for lookups, or nil.
func (d *Domain) Parent() *Domain { return d.parent }

func (d *Domain) snapshot() map[string]Trait {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.traits
}

// TryDefineGlobalTrait atomically inserts trait under name if no
// conflicting definition exists in this domain (not consulting the parent
// chain — shadowing a parent trait is allowed). On conflict it returns
// ErrTraitConflict and leaves the existing definition untouched.
func (d *Domain) TryDefineGlobalTrait(name string, trait Trait) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.traits[name]; exists {
		Logger.Warn("trait definition conflict", zap.String("name", name), zap.String("domain", d.id.String()))
		return ErrTraitConflict(name)
	}

	next := make(map[string]Trait, len(d.traits)+1)
	for k, v := range d.traits {
		next[k] = v
	}
	next[name] = trait
	d.traits = next
	return nil
}

// Lookup returns the trait named name, searching this domain and then its
// parent chain.
func (d *Domain) Lookup(name string) (Trait, bool) {
	for dom := d; dom != nil; dom = dom.parent {
		if t, ok := dom.snapshot()[name]; ok {
			return t, true
		}
	}
	return nil, false
}
