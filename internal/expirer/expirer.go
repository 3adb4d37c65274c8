// Package expirer runs the background task that waits on the TTL heap's
// earliest deadline and evicts keys from the keyspace coherently with the
// dispatcher, following the keyspace-before-heap lock order everywhere it
// touches both.
package expirer

import (
	"time"

	"github.com/Ap3pp3rs94/tempokv/internal/keyspace"
	"github.com/Ap3pp3rs94/tempokv/internal/ttlheap"
	"github.com/Ap3pp3rs94/tempokv/pkg/telemetry"
)

// Expirer owns the background eviction loop. The zero value is not
// usable; use New.
type Expirer struct {
	keys   *keyspace.Keyspace
	heap   *ttlheap.Heap
	log    *telemetry.Logger
	tick   time.Duration
	done   chan struct{}
}

// New returns an Expirer that evicts from keys as deadlines in heap come
// due. tick caps a single timed wait for a pending deadline; with an empty
// heap the loop waits until a Put or Close signals the heap.
func New(keys *keyspace.Keyspace, heap *ttlheap.Heap, log *telemetry.Logger, tick time.Duration) *Expirer {
	if log == nil {
		log = telemetry.Nop
	}
	if tick <= 0 {
		tick = 5 * time.Second
	}
	return &Expirer{keys: keys, heap: heap, log: log, tick: tick, done: make(chan struct{})}
}

// Run blocks, evicting due keys until Stop is called or heap is closed.
// It is meant to be run in its own goroutine by cmd/tempokvd.
func (e *Expirer) Run() {
	defer close(e.done)
	for {
		if e.heap.Closed() {
			return
		}
		e.waitForDeadline()
		if e.heap.Closed() {
			return
		}
		e.evictDue()
	}
}

// waitForDeadline blocks on the heap's condition variable until either the
// earliest deadline is reached, the tick cap elapses, a Put/Invalidate
// changes the root, or the heap is closed. It never returns with the heap
// lock held.
func (e *Expirer) waitForDeadline() {
	e.heap.Lock()
	defer e.heap.Unlock()

	for {
		if e.heap.ClosedLocked() {
			return
		}
		deadline, _, ok := e.heap.PeekLocked()
		if !ok {
			e.heap.Cond().Wait()
			continue
		}
		delta := time.Until(deadline)
		if delta <= 0 {
			return
		}
		e.timedWait(delta)
		return
	}
}

// timedWait waits on the heap's condition variable for at most d, waking
// the goroutine via a timer since sync.Cond has no native timed wait. The
// heap lock is held on entry and held again on return, matching Wait's
// own contract.
func (e *Expirer) timedWait(d time.Duration) {
	if d > e.tick {
		d = e.tick
	}
	timer := time.AfterFunc(d, func() {
		e.heap.Lock()
		defer e.heap.Unlock()
		e.heap.Cond().Broadcast()
	})
	defer timer.Stop()
	e.heap.Cond().Wait()
}

// evictDue pops every key whose deadline is due and deletes it from the
// keyspace, acquiring the keyspace lock only for the duration of each
// delete — the heap lock is never held while acquiring it, preserving the
// global keyspace-before-heap order.
func (e *Expirer) evictDue() {
	for {
		key, ok := e.heap.PopIfDue(time.Now())
		if !ok {
			return
		}
		e.keys.Delete(keyspace.Key(key))
		e.log.Debug("ttl expired", map[string]any{"key_bytes": len(key)})
	}
}

// Stop closes the heap, broadcasting its condition variable so a blocked
// Run wakes and exits, then waits for Run to return.
func (e *Expirer) Stop() {
	e.heap.Close()
	<-e.done
}
