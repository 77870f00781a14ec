package store

import (
	"context"
	"errors"

	"github.com/humanproof/server/internal/risk"
)

// ErrSessionNotFound is returned by Load for unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

// Record is the durable snapshot of a session. The engine writes it on every
// terminal transition; the write is at-least-once and idempotent because it is
// keyed by session id.
type Record struct {
	SessionID     string               `json:"sessionId"`
	State         string               `json:"state"`
	Assessment    *risk.RiskAssessment `json:"assessment,omitempty"`
	FailureMethod string               `json:"failureMethod,omitempty"`
	Token         string               `json:"token,omitempty"`
	StartedAt     int64                `json:"startedAt"`
	CompletedAt   int64                `json:"completedAt,omitempty"`
}

// Event is one audit trail entry.
type Event struct {
	T      int64             `json:"t"`
	Kind   string            `json:"kind"`
	Detail map[string]string `json:"detail,omitempty"`
}

// Store is the narrow key-value-by-session-id persistence interface. The
// engine does not prescribe schema beyond it.
type Store interface {
	Load(ctx context.Context, sessionID string) (*Record, error)
	Save(ctx context.Context, rec *Record) error
	AppendAudit(ctx context.Context, sessionID string, ev Event) error
}
