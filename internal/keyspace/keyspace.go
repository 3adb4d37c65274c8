// Package keyspace is the mapping from keys to typed values: a single
// exclusive-writer lock protects the map and every Deque reachable
// through it, per the locking discipline in the component design.
package keyspace

import (
	"errors"
	"sync"

	"github.com/Ap3pp3rs94/tempokv/internal/value"
)

// ErrNotFound is returned by Get/WithDequeMut when the key has no current
// mapping.
var ErrNotFound = errors.New("keyspace: key not found")

// ErrNotDeque is returned by WithDequeMut when key maps to a non-Deque
// value.
var ErrNotDeque = errors.New("keyspace: value is not a deque")

// Key is the canonical hashable encoding of a Value used in key position;
// internal/dispatch produces it via value.EncodeHashable before calling
// into the keyspace, so two keys compare equal iff their encodings do.
type Key string

// Keyspace holds every live mapping. The zero value is not usable; use
// New.
type Keyspace struct {
	mu      sync.Mutex
	entries map[Key]value.Value
}

// New returns an empty Keyspace.
func New() *Keyspace {
	return &Keyspace{entries: make(map[Key]value.Value)}
}

// Get returns the value at key, or ErrNotFound.
func (k *Keyspace) Get(key Key) (value.Value, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, ok := k.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

// Set overwrites any existing mapping for key, returning whether one
// already existed.
func (k *Keyspace) Set(key Key, v value.Value) (existed bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, existed = k.entries[key]
	k.entries[key] = v
	return existed
}

// Delete removes key if present, returning whether it existed: a single
// atomic check-and-remove rather than a separate contains-check followed
// by a delete, so a concurrent Set between the two can't resurrect a key
// this call otherwise would have reported deleted.
func (k *Keyspace) Delete(key Key) (existed bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, existed = k.entries[key]
	delete(k.entries, key)
	return existed
}

// PutEmptyDeque creates a fresh empty Deque at key, overwriting any prior
// mapping, and reports whether one existed.
func (k *Keyspace) PutEmptyDeque(key Key) (existed bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, existed = k.entries[key]
	k.entries[key] = value.NewDeque()
	return existed
}

// WithDequeMut applies f to the Deque at key under the keyspace lock,
// failing with ErrNotFound if absent or ErrNotDeque if the value there
// isn't a Deque.
func (k *Keyspace) WithDequeMut(key Key, f func(*value.Deque) error) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, ok := k.entries[key]
	if !ok {
		return ErrNotFound
	}
	d, ok := v.(*value.Deque)
	if !ok {
		return ErrNotDeque
	}
	return f(d)
}

// Len returns the number of live keys, for the admin debug surface.
func (k *Keyspace) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
