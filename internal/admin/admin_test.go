package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Ap3pp3rs94/tempokv/internal/keyspace"
	"github.com/Ap3pp3rs94/tempokv/internal/ttlheap"
	"github.com/Ap3pp3rs94/tempokv/internal/value"
	"github.com/Ap3pp3rs94/tempokv/pkg/telemetry"
)

func newTestServer() *Server {
	keys := keyspace.New()
	keys.Set("a", value.Int(1))
	return New(":0", "tempokvd-test", keys, ttlheap.New(), nil)
}

func TestHealthzReportsOK(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	s.handleHealthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var snap telemetry.HealthSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if snap.Overall != telemetry.StatusOK {
		t.Fatalf("overall = %v, want ok", snap.Overall)
	}
}

func TestDebugKeyspaceReportsCount(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/debugz/keyspace", nil)
	rec := httptest.NewRecorder()

	s.handleDebugKeyspace(rec, req)

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["key_count"] != float64(1) {
		t.Fatalf("key_count = %v, want 1", body["key_count"])
	}
}
