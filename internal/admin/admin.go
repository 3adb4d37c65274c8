// Package admin is the small introspection HTTP surface — /healthz and
// /debugz/keyspace — served on its own listener, separate from the wire
// protocol socket. It exposes liveness and coarse structural counts only,
// not a metrics/stats subsystem.
package admin

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/Ap3pp3rs94/tempokv/internal/keyspace"
	"github.com/Ap3pp3rs94/tempokv/internal/ttlheap"
	"github.com/Ap3pp3rs94/tempokv/pkg/telemetry"
)

// Server serves the admin HTTP surface.
type Server struct {
	service string
	keys    *keyspace.Keyspace
	heap    *ttlheap.Heap
	log     *telemetry.Logger
	httpSrv *http.Server
}

// New builds the admin router bound to addr.
func New(addr, service string, keys *keyspace.Keyspace, heap *ttlheap.Heap, log *telemetry.Logger) *Server {
	if log == nil {
		log = telemetry.Nop
	}
	s := &Server{service: service, keys: keys, heap: heap, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/debugz/keyspace", s.handleDebugKeyspace).Methods(http.MethodGet)

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe blocks until Shutdown is called.
func (s *Server) ListenAndServe() error {
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the admin HTTP server at once, closing its listener and
// any open connections without waiting for in-flight requests.
func (s *Server) Shutdown() error {
	return s.httpSrv.Close()
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	components := []telemetry.ComponentStatus{
		{
			Name:      "keyspace",
			Status:    telemetry.StatusOK,
			CheckedAt: now,
			Details:   map[string]string{"keys": itoa(s.keys.Len())},
		},
		s.expirerComponent(now),
	}

	snap, err := telemetry.NewHealthSnapshot(s.service, components, now)
	if err != nil {
		s.log.Error("health snapshot invalid", map[string]any{"error": err.Error()})
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	if snap.Overall != telemetry.StatusOK {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(snap)
}

func (s *Server) expirerComponent(now time.Time) telemetry.ComponentStatus {
	if s.heap.Closed() {
		return telemetry.ComponentStatus{
			Name: "expirer", Status: telemetry.StatusFatal, CheckedAt: now,
			Message: "ttl heap closed",
		}
	}
	details := map[string]string{}
	if _, key, ok := s.heap.Peek(); ok {
		details["next_key_len"] = itoa(len(key))
	}
	return telemetry.ComponentStatus{
		Name: "expirer", Status: telemetry.StatusOK, CheckedAt: now, Details: details,
	}
}

func (s *Server) handleDebugKeyspace(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"key_count": s.keys.Len(),
	})
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
