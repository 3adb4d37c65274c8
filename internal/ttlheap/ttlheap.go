// Package ttlheap is a keyed min-heap of TTL deadlines with lazy
// invalidation: a superseded entry is marked invalid in place rather than
// removed from the heap, and is discarded only when it would otherwise
// surface at the root.
package ttlheap

import (
	"container/heap"
	"sync"
	"time"
)

// Key identifies a keyspace entry. It is the same canonical byte string
// the keyspace uses internally (the hashable encoding of the original
// key Value), kept opaque here.
type Key string

type entry struct {
	deadline time.Time
	key      Key
	valid    bool
	index    int // position in the heap slice, maintained by Swap
}

// Heap is a keyed min-heap ordered by deadline. Put, Invalidate, Peek,
// PopIfDue, Close and Closed are safe for concurrent use; the *Locked
// methods and the container/heap methods expect mu to be held. Callers
// needing to read-then-act atomically
// (the Expirer) use Lock/Unlock directly, matching the keyspace's own
// exclusive-lock discipline and the global keyspace-before-heap order.
type Heap struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []*entry
	byKey   map[Key]*entry
	closed  bool
}

// New returns an empty heap.
func New() *Heap {
	h := &Heap{byKey: make(map[Key]*entry)}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Cond returns the heap's condition variable, signaled whenever the
// earliest valid deadline changes and broadcast on Close.
func (h *Heap) Cond() *sync.Cond { return h.cond }

// Lock/Unlock expose the heap's mutex directly so the Expirer can hold it
// across a peek-then-wait sequence without a second API surface.
func (h *Heap) Lock()   { h.mu.Lock() }
func (h *Heap) Unlock() { h.mu.Unlock() }

// Put inserts a new deadline for key, invalidating any existing live
// entry for the same key first. It signals the condition variable if the
// new entry becomes the new root (a deadline equal to the root's does not),
// or if it invalidated the previous root.
func (h *Heap) Put(key Key, deadline time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	wasRoot := h.rootKeyLocked() == key
	h.invalidateLocked(key)

	e := &entry{deadline: deadline, key: key, valid: true}
	heap.Push(h, e)
	h.byKey[key] = e

	if wasRoot || h.items[0] == e {
		h.cond.Signal()
	}
}

// Invalidate marks key's live entry, if any, invalid and removes it from
// the index. It signals if the invalidated entry was the current root.
func (h *Heap) Invalidate(key Key) {
	h.mu.Lock()
	defer h.mu.Unlock()

	wasRoot := h.rootKeyLocked() == key
	h.invalidateLocked(key)
	if wasRoot {
		h.cond.Signal()
	}
}

func (h *Heap) invalidateLocked(key Key) {
	e, ok := h.byKey[key]
	if !ok {
		return
	}
	e.valid = false
	delete(h.byKey, key)
}

func (h *Heap) rootKeyLocked() Key {
	h.discardInvalidRootLocked()
	if len(h.items) == 0 {
		return ""
	}
	return h.items[0].key
}

// discardInvalidRootLocked pops stale roots until a valid one surfaces or
// the heap empties. Must be called with mu held.
func (h *Heap) discardInvalidRootLocked() {
	for len(h.items) > 0 && !h.items[0].valid {
		heap.Pop(h)
	}
}

// Peek returns the earliest valid deadline and key, discarding any stale
// entries it finds at the root along the way.
func (h *Heap) Peek() (deadline time.Time, key Key, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.PeekLocked()
}

// PeekLocked is Peek's body for a caller that already holds the lock via
// Lock/Unlock (the Expirer, which peeks and waits on the same lock in one
// sequence). Calling it without mu held is a race.
func (h *Heap) PeekLocked() (deadline time.Time, key Key, ok bool) {
	h.discardInvalidRootLocked()
	if len(h.items) == 0 {
		return time.Time{}, "", false
	}
	return h.items[0].deadline, h.items[0].key, true
}

// PopIfDue removes and returns the root key if it is valid and its
// deadline has passed at or before now.
func (h *Heap) PopIfDue(now time.Time) (key Key, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.discardInvalidRootLocked()
	if len(h.items) == 0 {
		return "", false
	}
	root := h.items[0]
	if root.deadline.After(now) {
		return "", false
	}
	heap.Pop(h)
	delete(h.byKey, root.key)
	return root.key, true
}

// Close broadcasts the condition variable so a blocked expirer wakes and
// observes shutdown.
func (h *Heap) Close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.cond.Broadcast()
}

// Closed reports whether Close has been called.
func (h *Heap) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ClosedLocked()
}

// ClosedLocked is Closed's body for a caller that already holds the lock
// via Lock/Unlock. Calling it without mu held is a race.
func (h *Heap) ClosedLocked() bool { return h.closed }

// --- container/heap.Interface, mu held by all callers above ---

func (h *Heap) Len() int { return len(h.items) }

func (h *Heap) Less(i, j int) bool {
	return h.items[i].deadline.Before(h.items[j].deadline)
}

func (h *Heap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

func (h *Heap) Push(x any) {
	e := x.(*entry)
	e.index = len(h.items)
	h.items = append(h.items, e)
}

func (h *Heap) Pop() any {
	old := h.items
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	h.items = old[:n-1]
	return e
}
