package telemetry

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Status is the severity of a single component check or an overall snapshot.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusFatal    Status = "fatal"
	StatusUnknown  Status = "unknown"
)

const (
	HealthMaxMessageLen   = 256
	HealthMaxDetails      = 32
	HealthMaxDetailKeyLen = 64
	HealthMaxDetailValLen = 256
	HealthMaxServiceLen   = 64
	HealthMaxWarnings     = 32
)

// ErrInvalidHealth is returned by Validate for a malformed snapshot.
var ErrInvalidHealth = errors.New("telemetry: invalid health")

// HealthWarning captures a non-fatal normalization decision (truncation, drop).
type HealthWarning struct {
	Code    string `json:"code"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message"`
}

// ComponentStatus describes the result of checking a single subsystem
// (the keyspace, the ttl heap, the expirer goroutine, the listener).
type ComponentStatus struct {
	Name      string            `json:"name"`
	Status    Status            `json:"status"`
	CheckedAt time.Time         `json:"checked_at"`
	Message   string            `json:"message,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// HealthSnapshot is the document served by the admin /healthz endpoint.
type HealthSnapshot struct {
	Service     string            `json:"service"`
	GeneratedAt time.Time         `json:"generated_at"`
	Overall     Status            `json:"overall"`
	Components  []ComponentStatus `json:"components"`
	Hash        string            `json:"hash"`
	Warnings    []HealthWarning   `json:"warnings,omitempty"`
}

// NewHealthSnapshot builds a normalized and validated snapshot. If now is the
// zero Time, the current time is used.
func NewHealthSnapshot(service string, comps []ComponentStatus, now time.Time) (HealthSnapshot, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	} else {
		now = now.UTC()
	}
	s := HealthSnapshot{
		Service:     strings.TrimSpace(service),
		GeneratedAt: now,
		Components:  comps,
		Overall:     StatusUnknown,
	}
	if err := s.Normalize(); err != nil {
		return HealthSnapshot{}, err
	}
	if err := s.Validate(); err != nil {
		return HealthSnapshot{}, err
	}
	h, err := s.StableHash()
	if err != nil {
		return HealthSnapshot{}, err
	}
	s.Hash = h
	return s, nil
}

// Normalize enforces deterministic ordering and bounded shape, recording a
// warning for every truncation or drop it performs. Duplicate component
// names are a caller bug, not something Normalize papers over; Validate
// rejects them instead.
func (s *HealthSnapshot) Normalize() error {
	s.Warnings = nil
	s.Service = strings.TrimSpace(s.Service)

	if len(s.Service) > HealthMaxServiceLen {
		s.warn("truncate.service", "service", fmt.Sprintf("service truncated to %d bytes", HealthMaxServiceLen))
		s.Service = s.Service[:HealthMaxServiceLen]
	}
	if s.GeneratedAt.IsZero() {
		s.GeneratedAt = time.Now().UTC()
	} else {
		s.GeneratedAt = s.GeneratedAt.UTC()
	}

	for i := range s.Components {
		c := &s.Components[i]
		c.Name = strings.TrimSpace(c.Name)
		c.Message = strings.TrimSpace(c.Message)

		if len(c.Name) > HealthMaxServiceLen {
			s.warn("truncate.component_name", c.Name, fmt.Sprintf("component name truncated to %d bytes", HealthMaxServiceLen))
			c.Name = c.Name[:HealthMaxServiceLen]
		}
		if len(c.Message) > HealthMaxMessageLen {
			s.warn("truncate.component_message", c.Name, fmt.Sprintf("component message truncated to %d bytes", HealthMaxMessageLen))
			c.Message = c.Message[:HealthMaxMessageLen]
		}
		if c.CheckedAt.IsZero() {
			c.CheckedAt = s.GeneratedAt
		} else {
			c.CheckedAt = c.CheckedAt.UTC()
		}
		c.Status = normalizeStatus(c.Status)
		c.Details = s.normalizeDetails(c.Name, c.Details)
	}

	sort.SliceStable(s.Components, func(i, j int) bool {
		ai := strings.ToLower(strings.TrimSpace(s.Components[i].Name))
		aj := strings.ToLower(strings.TrimSpace(s.Components[j].Name))
		if ai != aj {
			return ai < aj
		}
		return statusRank(s.Components[i].Status) > statusRank(s.Components[j].Status)
	})

	overall := StatusUnknown
	for i := range s.Components {
		if statusRank(s.Components[i].Status) > statusRank(overall) {
			overall = s.Components[i].Status
		}
	}
	s.Overall = normalizeStatus(overall)

	if len(s.Warnings) > HealthMaxWarnings {
		s.Warnings = s.Warnings[:HealthMaxWarnings]
	}
	return nil
}

func (s *HealthSnapshot) normalizeDetails(component string, details map[string]string) map[string]string {
	if details == nil {
		return nil
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clean := make(map[string]string, len(details))
	for _, k := range keys {
		k2 := strings.ToLower(strings.TrimSpace(k))
		if k2 == "" || len(k2) > HealthMaxDetailKeyLen || hasCtl(k2) {
			s.warn("drop.detail_key", component, "dropped invalid detail key")
			continue
		}
		v := strings.TrimSpace(details[k])
		if hasCtl(v) {
			s.warn("drop.detail_value_ctl", component, "dropped detail value containing control chars")
			continue
		}
		if len(v) > HealthMaxDetailValLen {
			s.warn("truncate.detail_value", component, fmt.Sprintf("detail value truncated to %d bytes", HealthMaxDetailValLen))
			v = v[:HealthMaxDetailValLen]
		}
		clean[k2] = v
		if len(clean) >= HealthMaxDetails {
			s.warn("truncate.details", component, fmt.Sprintf("details truncated to %d entries", HealthMaxDetails))
			break
		}
	}
	if len(clean) == 0 {
		return nil
	}
	return clean
}

func (s *HealthSnapshot) warn(code, subject, msg string) {
	if len(s.Warnings) >= HealthMaxWarnings {
		return
	}
	s.Warnings = append(s.Warnings, HealthWarning{
		Code:    strings.TrimSpace(code),
		Subject: strings.TrimSpace(subject),
		Message: strings.TrimSpace(msg),
	})
}

// Validate checks shape invariants that Normalize is expected to maintain.
func (s HealthSnapshot) Validate() error {
	if strings.TrimSpace(s.Service) == "" {
		return fmt.Errorf("%w: service required", ErrInvalidHealth)
	}
	if len(s.Service) > HealthMaxServiceLen {
		return fmt.Errorf("%w: service too long", ErrInvalidHealth)
	}
	if s.GeneratedAt.IsZero() {
		return fmt.Errorf("%w: generated_at required", ErrInvalidHealth)
	}
	if len(s.Warnings) > HealthMaxWarnings {
		return fmt.Errorf("%w: too many warnings", ErrInvalidHealth)
	}
	if len(s.Components) == 0 {
		if normalizeStatus(s.Overall) != StatusUnknown {
			return fmt.Errorf("%w: overall must be unknown when no components", ErrInvalidHealth)
		}
		return nil
	}

	seen := make(map[string]bool, len(s.Components))
	for i := range s.Components {
		c := s.Components[i]
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("%w: component[%d] name required", ErrInvalidHealth, i)
		}
		key := strings.ToLower(strings.TrimSpace(c.Name))
		if seen[key] {
			return fmt.Errorf("%w: duplicate component name %q", ErrInvalidHealth, c.Name)
		}
		seen[key] = true

		if c.CheckedAt.IsZero() {
			return fmt.Errorf("%w: component[%d] checked_at required", ErrInvalidHealth, i)
		}
		if c.Status != StatusOK && c.Status != StatusDegraded && c.Status != StatusFatal && c.Status != StatusUnknown {
			return fmt.Errorf("%w: component[%d] invalid status", ErrInvalidHealth, i)
		}
		if len(c.Message) > HealthMaxMessageLen {
			return fmt.Errorf("%w: component[%d] message too long", ErrInvalidHealth, i)
		}
		if c.Details != nil && len(c.Details) > HealthMaxDetails {
			return fmt.Errorf("%w: component[%d] too many details", ErrInvalidHealth, i)
		}
	}
	return nil
}

// StableHash returns a deterministic sha256 over the normalized snapshot.
// Warnings are excluded: the hash represents health state, not how it was
// arrived at.
func (s HealthSnapshot) StableHash() (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}
	h := sha256.New()
	write := func(x string) {
		_, _ = h.Write([]byte(x))
		_, _ = h.Write([]byte{0})
	}
	write(s.Service)
	write(s.GeneratedAt.UTC().Format(time.RFC3339Nano))
	write(string(s.Overall))

	for _, c := range s.Components {
		write("c")
		write(c.Name)
		write(string(c.Status))
		write(c.CheckedAt.UTC().Format(time.RFC3339Nano))
		write(c.Message)

		if c.Details != nil {
			keys := make([]string, 0, len(c.Details))
			for k := range c.Details {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				write("d:" + k)
				write(c.Details[k])
			}
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func normalizeStatus(s Status) Status {
	switch Status(strings.ToLower(strings.TrimSpace(string(s)))) {
	case StatusOK:
		return StatusOK
	case StatusDegraded:
		return StatusDegraded
	case StatusFatal:
		return StatusFatal
	default:
		return StatusUnknown
	}
}

// statusRank gives deterministic precedence; higher means worse.
func statusRank(s Status) int {
	switch normalizeStatus(s) {
	case StatusFatal:
		return 4
	case StatusDegraded:
		return 3
	case StatusOK:
		return 2
	default:
		return 1
	}
}

func hasCtl(s string) bool {
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return true
		}
	}
	return false
}

// MarshalJSON keeps detail key order sorted; map iteration order otherwise
// would make the served document non-deterministic across requests.
func (c ComponentStatus) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	writeKV := func(key string, val []byte, comma bool) {
		if comma {
			buf.WriteByte(',')
		}
		kb, _ := json.Marshal(key)
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(val)
	}

	nb, _ := json.Marshal(c.Name)
	writeKV("name", nb, false)

	sb, _ := json.Marshal(string(c.Status))
	writeKV("status", sb, true)

	cb, _ := json.Marshal(c.CheckedAt)
	writeKV("checked_at", cb, true)

	if c.Message != "" {
		mb, _ := json.Marshal(c.Message)
		writeKV("message", mb, true)
	}

	if len(c.Details) > 0 {
		buf.WriteByte(',')
		kb, _ := json.Marshal("details")
		buf.Write(kb)
		buf.WriteByte(':')
		buf.WriteByte('{')

		keys := make([]string, 0, len(c.Details))
		for k := range c.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kk, _ := json.Marshal(k)
			vv, _ := json.Marshal(c.Details[k])
			buf.Write(kk)
			buf.WriteByte(':')
			buf.Write(vv)
		}
		buf.WriteByte('}')
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
