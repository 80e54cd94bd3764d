// Copyright 2024 The abccompile Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package token

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/abcnative/abccompile/resolve"
)

// dynamicCacheSize bounds the reference-equality handle cache; a handle
// for a type/member not resolved in the last dynamicCacheSize distinct
// entities is recomputed rather than evicting long-lived, frequently
// reused entries like common boxed-primitive types.
const dynamicCacheSize = 4096

// DynamicProvider materializes handles on demand for in-process
// execution rather than a persisted image: every handle is fixed the
// moment it is produced (spec.md §4.2, "Dynamic provider" — "IsVirtual
// always returns false; the signature-helper path is always used").
type DynamicProvider struct {
	mu          sync.Mutex
	types       *lru.Cache
	fields      *lru.Cache
	methods     *lru.Cache
	strings     *lru.Cache
	sigs        *lru.Cache
	methodByTok map[EntityHandle]*resolve.Member
	next        uint32
}

// NewDynamicProvider returns a DynamicProvider with bounded reference-
// equality caches for each handle kind.
func NewDynamicProvider() *DynamicProvider {
	mk := func() *lru.Cache {
		c, err := lru.New(dynamicCacheSize)
		if err != nil {
			// Only returns an error for a non-positive size, which
			// dynamicCacheSize never is.
			panic(err)
		}
		return c
	}
	return &DynamicProvider{
		types:       mk(),
		fields:      mk(),
		methods:     mk(),
		strings:     mk(),
		sigs:        mk(),
		methodByTok: map[EntityHandle]*resolve.Member{},
		next:        1,
	}
}

func (p *DynamicProvider) allocLocked() EntityHandle {
	h := EntityHandle(p.next)
	p.next++
	return h
}

func (p *DynamicProvider) HandleForType(t *resolve.ClassDesc) (EntityHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := p.types.Get(t); ok {
		return v.(EntityHandle), nil
	}
	h := p.allocLocked()
	p.types.Add(t, h)
	return h, nil
}

func (p *DynamicProvider) HandleForField(bearer *resolve.ClassDesc, field *resolve.Member) (EntityHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := p.fields.Get(field); ok {
		return v.(EntityHandle), nil
	}
	h := p.allocLocked()
	p.fields.Add(field, h)
	return h, nil
}

func (p *DynamicProvider) HandleForMethod(bearer *resolve.ClassDesc, method *resolve.Member) (EntityHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := p.methods.Get(method); ok {
		return v.(EntityHandle), nil
	}
	h := p.allocLocked()
	p.methods.Add(method, h)
	p.methodByTok[h] = method
	return h, nil
}

func (p *DynamicProvider) HandleForString(s string) (UserStringHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := p.strings.Get(s); ok {
		return v.(UserStringHandle), nil
	}
	h := UserStringHandle(p.next)
	p.next++
	p.strings.Add(s, h)
	return h, nil
}

func (p *DynamicProvider) HandleForSignature(sig Signature) (EntityHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := p.sigs.Get(sig); ok {
		return v.(EntityHandle), nil
	}
	h := p.allocLocked()
	p.sigs.Add(sig, h)
	return h, nil
}

// IsVirtual always returns false: every handle the dynamic provider
// issues is already fixed (spec.md §9).
func (p *DynamicProvider) IsVirtual(h EntityHandle) bool { return false }

func (p *DynamicProvider) SignatureForType(t *resolve.ClassDesc) (Signature, error) {
	return classSignature{t}, nil
}

// UseSignatureHelper is true: the dynamic provider cannot accept
// synthetic signature blobs and must route local-signature construction
// through the host's signature-helper API instead (spec.md §9).
func (p *DynamicProvider) UseSignatureHelper() bool { return true }

func (p *DynamicProvider) LocalSignatureHandle(sigBytes []byte) (StandaloneSignatureHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h := StandaloneSignatureHandle(p.next)
	p.next++
	return h, nil
}

// MethodStackDelta computes net stack effect from method's recorded
// signature: argument count popped, receiver popped unless the opcode is
// a static/constructor dispatch, and one pushed unless the return type
// is void, per spec.md §4.1 "Stack tracking".
func (p *DynamicProvider) MethodStackDelta(h EntityHandle, opcode uint16) (int32, error) {
	p.mu.Lock()
	m, ok := p.methodByTok[h]
	p.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("token: handle %d does not name a method", h)
	}
	return methodStackDelta(m, opcode), nil
}
