package expirer

import (
	"testing"
	"time"

	"github.com/Ap3pp3rs94/tempokv/internal/keyspace"
	"github.com/Ap3pp3rs94/tempokv/internal/ttlheap"
	"github.com/Ap3pp3rs94/tempokv/internal/value"
)

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !cond() {
		t.Fatalf("condition not met within %v", timeout)
	}
}

func TestExpirerEvictsOnDeadline(t *testing.T) {
	keys := keyspace.New()
	heap := ttlheap.New()
	exp := New(keys, heap, nil, 50*time.Millisecond)
	go exp.Run()
	defer exp.Stop()

	keys.Set("k", value.Int(1))
	heap.Put("k", time.Now().Add(50*time.Millisecond))

	waitUntil(t, 2*time.Second, func() bool {
		_, err := keys.Get("k")
		return err == keyspace.ErrNotFound
	})
}

func TestSetWithoutTTLAfterTTLSurvivesExpiry(t *testing.T) {
	keys := keyspace.New()
	heap := ttlheap.New()
	exp := New(keys, heap, nil, 50*time.Millisecond)
	go exp.Run()
	defer exp.Stop()

	keys.Set("k", value.Int(1))
	heap.Put("k", time.Now().Add(30*time.Millisecond))
	keys.Set("k", value.Int(2))
	heap.Invalidate("k")

	time.Sleep(150 * time.Millisecond)

	v, err := keys.Get("k")
	if err != nil {
		t.Fatalf("expected k to survive, got err %v", err)
	}
	if !value.Equal(v, value.Int(2)) {
		t.Fatalf("want Int(2), got %#v", v)
	}
}

func TestStopTerminatesRun(t *testing.T) {
	keys := keyspace.New()
	heap := ttlheap.New()
	exp := New(keys, heap, nil, 20*time.Millisecond)
	go exp.Run()

	done := make(chan struct{})
	go func() {
		exp.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}
