// Package keyedmutex provides per-key mutual exclusion with automatic
// handle reclamation. The dispatcher uses it to serialize scheduling
// against supervisor claims on the same source.
package keyedmutex

import (
	"context"
	"sync"
	"weak"
)

// Handle is the lockable object shared by every concurrent holder of the
// same key. Callers must keep their reference for the whole critical
// section; once the last holder drops it, the handle becomes collectable
// and a later Acquire for the key creates a fresh one.
//
// The lock is a single-slot semaphore rather than a sync.Mutex so that
// waiting for it remains interruptible by context cancellation.
type Handle struct {
	sem chan struct{}
}

func newHandle() *Handle {
	return &Handle{sem: make(chan struct{}, 1)}
}

// Lock acquires the handle, blocking until it is free or ctx ends.
func (h *Handle) Lock(ctx context.Context) error {
	select {
	case h.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryLock acquires the handle without blocking and reports success.
func (h *Handle) TryLock() bool {
	select {
	case h.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

// Unlock releases the handle. Unlocking a handle that is not locked is a
// programming error and panics.
func (h *Handle) Unlock() {
	select {
	case <-h.sem:
	default:
		panic("keyedmutex: unlock of unlocked handle")
	}
}

// KeyedMutex maps keys to weakly-referenced mutex handles.
//
// Ownership model: the map stores only weak pointers, so a handle is owned
// exclusively by its current holders. Two Acquire calls that overlap in
// time are guaranteed to return the same handle; locking it then
// serializes the critical sections. Entries whose handle has been
// reclaimed stay in the map as dead weak pointers until Cleanup removes
// them. Correctness never depends on Cleanup running; it only bounds the
// map's memory.
//
// The internal lock is held only for the map lookup, never across a
// handle's critical section, so Acquire calls on different keys do not
// serialize each other's work.
type KeyedMutex[K comparable] struct {
	mu      sync.Mutex
	entries map[K]weak.Pointer[Handle]
}

// New returns an empty KeyedMutex.
func New[K comparable]() *KeyedMutex[K] {
	return &KeyedMutex[K]{entries: make(map[K]weak.Pointer[Handle])}
}

// Acquire returns the live handle for key, creating one if the key is
// absent or its previous handle has been reclaimed. The caller must retain
// the returned pointer for the duration of its critical section.
func (m *KeyedMutex[K]) Acquire(key K) *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	if wp, ok := m.entries[key]; ok {
		if h := wp.Value(); h != nil {
			return h
		}
	}
	h := newHandle()
	m.entries[key] = weak.Make(h)
	return h
}

// Cleanup removes every entry whose handle has been reclaimed and reports
// how many were removed. Intended to run on a background cadence.
func (m *KeyedMutex[K]) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for k, wp := range m.entries {
		if wp.Value() == nil {
			delete(m.entries, k)
			removed++
		}
	}
	return removed
}

// Len reports the number of entries currently in the map, dead or alive.
func (m *KeyedMutex[K]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
