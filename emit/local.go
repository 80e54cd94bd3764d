// Copyright 2024 The abccompile Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emit

import "github.com/abcnative/abccompile/token"

// MaxLocalIndex is the largest local-variable index the emitter will
// assign; spec.md §3 bounds local indices to [0, 65534].
const MaxLocalIndex = 65534

// Signature is an opaque type signature for a local variable or value,
// as produced by a TokenProvider (see package token). The emitter never
// inspects a Signature's contents, only compares it for equality when
// deciding whether a disposed temp slot can be re-leased.
type Signature = token.Signature

// localStatus is the lifecycle state of a declared local slot, per
// spec.md §3.
type localStatus int8

const (
	statusPersistent localStatus = iota
	statusTempActive
	statusTempDisposed
)

// Local identifies a local-variable slot by its stable index.
type Local struct {
	index int
}

// Index returns the slot's stable index in [0, MaxLocalIndex].
func (l Local) Index() int { return l.index }

type localSlot struct {
	sig     Signature
	pinned  bool
	status  localStatus
	declOrd int // declaration order, for local-signature serialization
}

// DeclareLocal declares a persistent local kept for the whole method.
// Fails with KindLocalLimit once the local count would exceed
// MaxLocalIndex+1.
func (e *Emitter) DeclareLocal(sig Signature, pinned bool) (Local, error) {
	return e.newLocal(sig, pinned, statusPersistent)
}

// AcquireTemp leases a temporary local. A previously released slot whose
// recorded signature equals sig is reused; otherwise a fresh slot is
// declared. Per spec.md's testable property 7, this makes the pool
// deterministic: same signature after release returns the same slot,
// different signature returns a fresh one.
func (e *Emitter) AcquireTemp(sig Signature) (Local, error) {
	for i := range e.locals {
		slot := &e.locals[i]
		if slot.status == statusTempDisposed && slot.sig.Equal(sig) {
			slot.status = statusTempActive
			logger.Printf("reusing disposed local %d for temp acquire", i)
			return Local{index: i}, nil
		}
	}
	return e.newLocal(sig, false, statusTempActive)
}

// ReleaseTemp returns a leased temporary local to the pool, making it
// eligible for reuse by a subsequent AcquireTemp request with an equal
// signature. Fails with KindInvalidLease if local was not currently
// leased.
func (e *Emitter) ReleaseTemp(local Local) error {
	if local.index < 0 || local.index >= len(e.locals) {
		return errf(KindInvalidLease, "local %d is not known to this emitter", local.index)
	}
	slot := &e.locals[local.index]
	if slot.status != statusTempActive {
		return errf(KindInvalidLease, "local %d is not an active temp lease", local.index)
	}
	slot.status = statusTempDisposed
	return nil
}

func (e *Emitter) newLocal(sig Signature, pinned bool, status localStatus) (Local, error) {
	if len(e.locals) > MaxLocalIndex {
		return Local{}, errf(KindLocalLimit, "local count would exceed %d", MaxLocalIndex+1)
	}
	idx := len(e.locals)
	e.locals = append(e.locals, localSlot{
		sig:     sig,
		pinned:  pinned,
		status:  status,
		declOrd: idx,
	})
	return Local{index: idx}, nil
}
