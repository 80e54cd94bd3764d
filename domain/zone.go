// Copyright 2024 The abccompile Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package domain

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ZoneID is a caller-chosen identifier for a static zone.
type ZoneID uuid.UUID

func (z ZoneID) String() string { return uuid.UUID(z).String() }

// NewZoneID generates a fresh zone identifier for a caller that does not
// need a stable, predetermined one.
func NewZoneID() ZoneID { return ZoneID(uuid.New()) }

// Zone associates per-zone singleton values with a ZoneID. Exactly one
// zone is active per goroutine at a time: Enter installs z for the
// duration of fn and restores whatever zone (if any) was active before.
// Go has no native goroutine-local storage, so the "current zone per
// thread" requirement is implemented with a small map keyed by the
// goroutine identifier the caller passes to Enter and Current, guarded by
// a mutex, scoped to the lifetime of a single Enter call via defer — this
// never leaks an entry past the call that created it.
type Zone struct {
	ID ZoneID

	mu        sync.Mutex
	values    map[string]interface{}
	finalizer func(values map[string]interface{})
}

// NewZone creates a zone with the given id. finalizer, if non-nil, is
// invoked with the zone's singleton values when Dispose is called.
func NewZone(id ZoneID, finalizer func(values map[string]interface{})) *Zone {
	return &Zone{ID: id, values: make(map[string]interface{}), finalizer: finalizer}
}

// Value returns the zone-scoped singleton registered under key, creating
// it via makeFn on first access.
func (z *Zone) Value(key string, makeFn func() interface{}) interface{} {
	z.mu.Lock()
	defer z.mu.Unlock()
	if v, ok := z.values[key]; ok {
		return v
	}
	v := makeFn()
	z.values[key] = v
	return v
}

// Dispose fires the zone's registered finalizer, if any, for the values
// created within it.
func (z *Zone) Dispose() {
	z.mu.Lock()
	values := z.values
	z.mu.Unlock()
	if z.finalizer != nil {
		z.finalizer(values)
	}
}

var (
	currentZoneMu sync.Mutex
	currentZone   = map[uint64]*Zone{}
)

// Enter installs z as the active zone for the caller-supplied goroutine
// identifier gid for the duration of fn, restoring the previous active
// zone for gid (if any) on return.
func Enter(gid uint64, z *Zone, fn func()) {
	currentZoneMu.Lock()
	prev, hadPrev := currentZone[gid]
	currentZone[gid] = z
	currentZoneMu.Unlock()

	Logger.Debug("zone entered", zap.String("zone", z.ID.String()))
	defer func() {
		currentZoneMu.Lock()
		if hadPrev {
			currentZone[gid] = prev
		} else {
			delete(currentZone, gid)
		}
		currentZoneMu.Unlock()
	}()

	fn()
}

// Current returns the zone currently active for gid, or nil if none.
func Current(gid uint64) *Zone {
	currentZoneMu.Lock()
	defer currentZoneMu.Unlock()
	return currentZone[gid]
}
