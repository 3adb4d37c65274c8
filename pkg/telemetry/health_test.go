package telemetry

import (
	"testing"
	"time"
)

func TestNewHealthSnapshotComputesWorstOverall(t *testing.T) {
	now := time.Now()
	comps := []ComponentStatus{
		{Name: "keyspace", Status: StatusOK, CheckedAt: now},
		{Name: "expirer", Status: StatusDegraded, CheckedAt: now},
	}
	snap, err := NewHealthSnapshot("tempokvd", comps, now)
	if err != nil {
		t.Fatalf("NewHealthSnapshot: %v", err)
	}
	if snap.Overall != StatusDegraded {
		t.Fatalf("Overall = %v, want degraded", snap.Overall)
	}
	if snap.Hash == "" {
		t.Fatalf("Hash should be populated")
	}
}

func TestNewHealthSnapshotRejectsDuplicateComponentNames(t *testing.T) {
	now := time.Now()
	comps := []ComponentStatus{
		{Name: "keyspace", Status: StatusOK, CheckedAt: now},
		{Name: "Keyspace", Status: StatusFatal, CheckedAt: now},
	}
	if _, err := NewHealthSnapshot("tempokvd", comps, now); err == nil {
		t.Fatalf("expected error for duplicate component name (case-insensitive)")
	}
}

func TestNormalizeSortsComponentsByName(t *testing.T) {
	now := time.Now()
	comps := []ComponentStatus{
		{Name: "keyspace", Status: StatusOK, CheckedAt: now},
		{Name: "expirer", Status: StatusOK, CheckedAt: now},
	}
	snap, err := NewHealthSnapshot("tempokvd", comps, now)
	if err != nil {
		t.Fatalf("NewHealthSnapshot: %v", err)
	}
	if len(snap.Components) != 2 || snap.Components[0].Name != "expirer" || snap.Components[1].Name != "keyspace" {
		t.Fatalf("want sorted [expirer, keyspace], got %+v", snap.Components)
	}
}

func TestStableHashDeterministic(t *testing.T) {
	now := time.Now()
	comps := []ComponentStatus{{Name: "keyspace", Status: StatusOK, CheckedAt: now}}
	a, err := NewHealthSnapshot("svc", comps, now)
	if err != nil {
		t.Fatalf("NewHealthSnapshot: %v", err)
	}
	b, err := NewHealthSnapshot("svc", comps, now)
	if err != nil {
		t.Fatalf("NewHealthSnapshot: %v", err)
	}
	if a.Hash != b.Hash {
		t.Fatalf("hashes differ for identical input: %s vs %s", a.Hash, b.Hash)
	}
}

func TestValidateRejectsMissingService(t *testing.T) {
	s := HealthSnapshot{GeneratedAt: time.Now(), Overall: StatusUnknown}
	if err := s.Validate(); err == nil {
		t.Fatalf("expected error for missing service")
	}
}
