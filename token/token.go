// Copyright 2024 The abccompile Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package token implements the Token Provider (TP): the abstract
// interface through which the Instruction Emitter obtains opaque handles
// for types, fields, methods, strings, and local-variable signatures, per
// spec.md §4.2.
package token

import "github.com/abcnative/abccompile/resolve"

// EntityHandle is an opaque 32-bit encoded handle identifying a type,
// member, or signature in the output metadata (spec.md glossary:
// "Token").
type EntityHandle uint32

// UserStringHandle identifies a string constant.
type UserStringHandle uint32

// StandaloneSignatureHandle identifies a local-variable signature blob
// that was not attached to any method/field/type token directly.
type StandaloneSignatureHandle uint32

// Signature is an opaque type signature blob, as recorded for a declared
// local variable. Package emit never inspects a Signature's contents,
// only compares it for equality when deciding whether a disposed temp
// slot can be re-leased (spec.md §3).
type Signature interface {
	// Equal reports whether s and other describe the same type.
	Equal(other Signature) bool
}

// Provider is the abstract Token Provider contract of spec.md §4.2. Two
// implementations exist: StaticProvider (pre-assigned handles for a
// persisted image) and DynamicProvider (handles materialized on demand
// for in-process execution).
type Provider interface {
	HandleForType(t *resolve.ClassDesc) (EntityHandle, error)
	HandleForField(bearer *resolve.ClassDesc, field *resolve.Member) (EntityHandle, error)
	HandleForMethod(bearer *resolve.ClassDesc, method *resolve.Member) (EntityHandle, error)
	HandleForString(s string) (UserStringHandle, error)
	HandleForSignature(sig Signature) (EntityHandle, error)

	// IsVirtual reports whether h's final encoding is not yet fixed and
	// must be recorded for later patching (spec.md §4.1 "Virtual
	// tokens"). The dynamic provider always returns false here (spec.md
	// §9); the static provider may return true for forward references
	// into a still-being-assembled image.
	IsVirtual(h EntityHandle) bool

	SignatureForType(t *resolve.ClassDesc) (Signature, error)

	// UseSignatureHelper selects local-signature emission mode: false for
	// direct signature encoding, true for the host-assisted helper mode
	// required when this provider materializes handles lazily and cannot
	// accept synthetic signatures (spec.md §4.1 "Local signature").
	UseSignatureHelper() bool

	LocalSignatureHandle(sigBytes []byte) (StandaloneSignatureHandle, error)

	// MethodStackDelta returns the net change in stack depth from invoking
	// method via opcode: minus one per argument, minus one for the receiver
	// where the opcode pops one, plus one for a non-void return; for newobj
	// the provider itself adds the +1 for the constructed instance. See
	// spec.md §4.1's "Stack tracking" algorithm for call-like opcodes.
	MethodStackDelta(h EntityHandle, opcode uint16) (int32, error)
}

// ErrNoProvider is the ConfigError of spec.md §7: an emitter operation
// that requires a token provider was invoked without one configured.
type ErrNoProvider struct{ Op string }

func (e ErrNoProvider) Error() string {
	return "token: no provider configured for operation " + e.Op
}
