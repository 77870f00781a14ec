package store

import (
	"context"
	"sync"
)

// MemoryStore keeps records in process memory. Suitable for single-node
// deployments and tests; use RedisStore when verdicts must survive restarts.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	audits  map[string][]Event
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		audits:  make(map[string][]Event),
	}
}

// Load returns the record for a session id.
func (s *MemoryStore) Load(_ context.Context, sessionID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &rec, nil
}

// Save upserts a record keyed by session id.
func (s *MemoryStore) Save(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.SessionID] = *rec
	return nil
}

// AppendAudit adds an event to the session's audit trail.
func (s *MemoryStore) AppendAudit(_ context.Context, sessionID string, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.audits[sessionID] = append(s.audits[sessionID], ev)
	return nil
}

// Audit returns a copy of the audit trail for a session.
func (s *MemoryStore) Audit(sessionID string) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Event, len(s.audits[sessionID]))
	copy(out, s.audits[sessionID])
	return out
}
