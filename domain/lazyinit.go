// Copyright 2024 The abccompile Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package domain

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

// RecursionPolicy decides what happens when a class's own initializer
// calls back into the value currently being constructed (spec.md §5).
type RecursionPolicy int8

const (
	// RecursionThrow aborts the reentrant access with ErrRecursiveInit.
	RecursionThrow RecursionPolicy = iota
	// RecursionDefault hands the reentrant caller the type's zero value.
	RecursionDefault
	// RecursionRecurse allows the initializer to run again, reentrantly.
	RecursionRecurse
)

// ErrRecursiveInit is returned by LazyClass.EnsureInitialized under
// RecursionThrow when the initializer observes reentrancy.
var ErrRecursiveInit = errors.New("domain: lazy initializer accessed reentrantly under throw policy")

// LazyClass wraps a per-class trait-table construction in a one-shot
// initializer: concurrent first-access observers serialize on a per-class
// lock, exactly one initializer runs, and later accesses observe the
// completed value without re-running it.
type LazyClass struct {
	Name   string
	Policy RecursionPolicy
	Init   func() (interface{}, error)

	once     sync.Once
	mu       sync.Mutex
	value    interface{}
	err      error
	running  bool
	runnerID uint64 // goroutine-scoped marker, see inProgress below
}

var (
	inProgressMu sync.Mutex
	inProgress   = map[*LazyClass]bool{}
)

// EnsureInitialized runs Init exactly once (across all concurrent
// callers) and returns its result. A call that reenters the same
// LazyClass while Init is still running is handled per Policy.
func (l *LazyClass) EnsureInitialized() (interface{}, error) {
	inProgressMu.Lock()
	reentrant := inProgress[l]
	inProgressMu.Unlock()

	if reentrant {
		switch l.Policy {
		case RecursionThrow:
			return nil, ErrRecursiveInit
		case RecursionDefault:
			return nil, nil
		case RecursionRecurse:
			v, err := l.Init()
			if err != nil {
				Logger.Error("lazy class recursive init failed", zap.String("class", l.Name), zap.Error(err))
			}
			return v, err
		}
	}

	l.once.Do(func() {
		inProgressMu.Lock()
		inProgress[l] = true
		inProgressMu.Unlock()

		l.value, l.err = l.Init()

		inProgressMu.Lock()
		delete(inProgress, l)
		inProgressMu.Unlock()

		if l.err != nil {
			Logger.Error("lazy class init failed", zap.String("class", l.Name), zap.Error(l.err))
		}
	})
	return l.value, l.err
}
