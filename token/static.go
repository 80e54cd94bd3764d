// Copyright 2024 The abccompile Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package token

import (
	"fmt"

	"github.com/abcnative/abccompile/resolve"
)

// StaticProvider assigns handles sequentially and deterministically, for
// use when the emitted output is a persisted metadata image rather than
// an in-process execution artifact (spec.md §4.2, "Static provider").
// Handles for types/members are assigned on first reference and stable
// for the lifetime of the provider; some may be virtual until Fixup is
// called, modelling the two-pass layout a persisted image requires.
type StaticProvider struct {
	types       map[*resolve.ClassDesc]EntityHandle
	fields      map[*resolve.Member]EntityHandle
	methods     map[*resolve.Member]EntityHandle
	methodByTok map[EntityHandle]*resolve.Member
	strings     map[string]UserStringHandle
	sigs        []Signature
	sigIdx      map[Signature]EntityHandle

	virtual map[EntityHandle]bool
	next    uint32
	fixed   bool
}

// NewStaticProvider returns a StaticProvider with an empty handle table.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{
		types:       map[*resolve.ClassDesc]EntityHandle{},
		fields:      map[*resolve.Member]EntityHandle{},
		methods:     map[*resolve.Member]EntityHandle{},
		methodByTok: map[EntityHandle]*resolve.Member{},
		strings:     map[string]UserStringHandle{},
		sigIdx:      map[Signature]EntityHandle{},
		virtual:     map[EntityHandle]bool{},
		next:        1, // handle 0 is reserved (null token), per spec.md §4.1
	}
}

func (p *StaticProvider) alloc(virtual bool) EntityHandle {
	h := EntityHandle(p.next)
	p.next++
	if virtual {
		p.virtual[h] = true
	}
	return h
}

func (p *StaticProvider) HandleForType(t *resolve.ClassDesc) (EntityHandle, error) {
	if h, ok := p.types[t]; ok {
		return h, nil
	}
	// A type not yet defined in this image's own table (e.g. an
	// externally-imported class) is recorded virtual until Fixup
	// resolves it against the final layout.
	h := p.alloc(true)
	p.types[t] = h
	return h, nil
}

func (p *StaticProvider) HandleForField(bearer *resolve.ClassDesc, field *resolve.Member) (EntityHandle, error) {
	if h, ok := p.fields[field]; ok {
		return h, nil
	}
	h := p.alloc(true)
	p.fields[field] = h
	return h, nil
}

func (p *StaticProvider) HandleForMethod(bearer *resolve.ClassDesc, method *resolve.Member) (EntityHandle, error) {
	if h, ok := p.methods[method]; ok {
		return h, nil
	}
	h := p.alloc(true)
	p.methods[method] = h
	p.methodByTok[h] = method
	return h, nil
}

func (p *StaticProvider) HandleForString(s string) (UserStringHandle, error) {
	if h, ok := p.strings[s]; ok {
		return h, nil
	}
	h := UserStringHandle(len(p.strings) + 1)
	p.strings[s] = h
	return h, nil
}

func (p *StaticProvider) HandleForSignature(sig Signature) (EntityHandle, error) {
	if h, ok := p.sigIdx[sig]; ok {
		return h, nil
	}
	h := p.alloc(false)
	p.sigIdx[sig] = h
	p.sigs = append(p.sigs, sig)
	return h, nil
}

func (p *StaticProvider) IsVirtual(h EntityHandle) bool {
	return p.virtual[h]
}

func (p *StaticProvider) SignatureForType(t *resolve.ClassDesc) (Signature, error) {
	return classSignature{t}, nil
}

// UseSignatureHelper is false: the static provider encodes local
// signatures directly into the image's signature blob heap.
func (p *StaticProvider) UseSignatureHelper() bool { return false }

func (p *StaticProvider) LocalSignatureHandle(sigBytes []byte) (StandaloneSignatureHandle, error) {
	return StandaloneSignatureHandle(len(sigBytes)), nil
}

func (p *StaticProvider) MethodStackDelta(h EntityHandle, opcode uint16) (int32, error) {
	m, ok := p.methodByTok[h]
	if !ok {
		return 0, fmt.Errorf("token: handle %d does not name a method", h)
	}
	return methodStackDelta(m, opcode), nil
}

// Fixup marks every handle issued so far as no longer virtual, once the
// final image layout has assigned it a fixed position (spec.md §4.1,
// "Virtual tokens are only ever produced by ... and are always resolved
// before the method body reaches its owner").
func (p *StaticProvider) Fixup() {
	for h := range p.virtual {
		delete(p.virtual, h)
	}
	p.fixed = true
}

type classSignature struct{ cd *resolve.ClassDesc }

func (s classSignature) Equal(other Signature) bool {
	o, ok := other.(classSignature)
	return ok && o.cd == s.cd
}
