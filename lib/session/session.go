// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package session provides a fixed-capacity table of open sessions.
//
// Each open logical file occupies one slot until it is closed. The
// table never grows past its capacity: an open beyond it fails with
// [ErrTooManyOpenSessions], which carries ENFILE for filesystem
// callers. Slots are reused in last-freed-first order.
package session

import (
	"fmt"
	"sync"
	"syscall"
)

// ErrTooManyOpenSessions reports that every slot is in use.
var ErrTooManyOpenSessions = fmt.Errorf("too many open sessions: %w", syscall.ENFILE)

// ErrUnknownSession reports a handle that is not open in the table.
// It carries EBADF for filesystem callers.
var ErrUnknownSession = fmt.Errorf("unknown session: %w", syscall.EBADF)

// Handle identifies an open session. Handles are never reused, so a
// stale handle cannot reach a session opened later in the same slot.
type Handle uint64

// Table holds up to a fixed number of values of type T. It is safe for
// concurrent use: the filesystem layer opens and releases files from
// many goroutines.
type Table[T any] struct {
	mu     sync.Mutex
	slots  []T
	free   []int
	owners map[Handle]int
	next   Handle
}

// NewTable creates a table with the given capacity, which must be
// positive.
func NewTable[T any](capacity int) *Table[T] {
	if capacity <= 0 {
		panic(fmt.Sprintf("session: capacity %d must be positive", capacity))
	}
	free := make([]int, capacity)
	for i := range free {
		free[i] = capacity - 1 - i
	}
	return &Table[T]{
		slots:  make([]T, capacity),
		free:   free,
		owners: make(map[Handle]int, capacity),
	}
}

// Open stores value in a free slot and returns its handle.
func (t *Table[T]) Open(value T) (Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.free) == 0 {
		return 0, ErrTooManyOpenSessions
	}
	slot := t.free[len(t.free)-1]
	t.free = t.free[:len(t.free)-1]
	t.slots[slot] = value
	t.next++
	t.owners[t.next] = slot
	return t.next, nil
}

// Get returns the value stored under handle.
func (t *Table[T]) Get(handle Handle) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	slot, ok := t.owners[handle]
	if !ok {
		var zero T
		return zero, false
	}
	return t.slots[slot], true
}

// Close frees handle's slot and returns the value it held, so the
// caller can release the value's own resources.
func (t *Table[T]) Close(handle Handle) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero T
	slot, ok := t.owners[handle]
	if !ok {
		return zero, fmt.Errorf("%w: %d", ErrUnknownSession, handle)
	}
	value := t.slots[slot]
	t.slots[slot] = zero
	delete(t.owners, handle)
	t.free = append(t.free, slot)
	return value, nil
}

// Len returns the number of open sessions.
func (t *Table[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.owners)
}

// Cap returns the table's capacity.
func (t *Table[T]) Cap() int {
	return len(t.slots)
}
