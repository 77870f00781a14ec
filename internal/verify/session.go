package verify

import (
	"errors"
	"sync"

	"github.com/humanproof/server/internal/challenge"
	"github.com/humanproof/server/internal/risk"
	"github.com/humanproof/server/internal/telemetry"
)

// State is a session's position in the verification lifecycle.
type State string

const (
	StateCollecting State = "collecting"
	StateAnalyzing  State = "analyzing"
	StateChallenge  State = "challenge"
	StateSuccess    State = "success"
	StateFailure    State = "failure"
)

// Terminal reports whether no further transitions may leave this state.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailure
}

// Failure method tags, surfaced in outcomes and stored records.
const (
	MethodTimeout         = "timeout"
	MethodChallengeFailed = "challenge_failed"
	MethodLowConfidence   = "low_confidence"
	MethodError           = "error"

	// MethodChallenge tags a verdict resolved by a passed challenge.
	MethodChallenge = "challenge"
)

// ErrSessionNotFound is returned for unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionResolved is returned when an operation needs a live session but
// the session already reached a terminal state.
var ErrSessionResolved = errors.New("session already resolved")

// Minimum-data thresholds for the automatic Collecting -> Analyzing trigger.
const (
	minMotionSamples     = 10
	minSessionDurationMs = 3000
	minTotalEvents       = 5
)

// Thresholds for picking a challenge type by the weakest telemetry dimension.
const (
	weakMotionThreshold = 5
	weakClickThreshold  = 2
)

// TelemetryEvent is one ingested sample. Exactly one field must be set;
// anything else is InvalidTelemetry and is dropped.
type TelemetryEvent struct {
	Motion *telemetry.MotionSample `json:"motion,omitempty"`
	Click  *telemetry.ClickSample  `json:"click,omitempty"`
	Key    *telemetry.KeySample    `json:"key,omitempty"`
	Touch  *telemetry.TouchEvent   `json:"touch,omitempty"`
}

// Outcome is the final answer of the verification surface.
type Outcome struct {
	Success    bool    `json:"success"`
	IsHuman    bool    `json:"isHuman"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
	Token      string  `json:"token,omitempty"`
}

// Session owns all mutable per-session state. Every access goes through its
// mutex: telemetry ingestion and state transitions are serialized, so a
// session can never run two scorings or hold two challenge issuances at once.
// Sessions never share state with each other.
type Session struct {
	mu sync.Mutex

	id            string
	state         State
	buffer        *telemetry.Buffer
	assessment    *risk.RiskAssessment
	pending       *challenge.Challenge
	failureMethod string
	token         string

	// createdAt is wall-clock milliseconds, for the audit trail. Sample
	// timestamps are client-monotonic and relative to session start, so the
	// newest observed timestamp is the session duration.
	createdAt  int64
	lastEventT int64

	// completedAt is wall-clock milliseconds of the terminal transition, zero
	// while the session is live. The retention sweep keys off it.
	completedAt int64
}

func newSession(id string, nowMs int64) *Session {
	return &Session{
		id:        id,
		state:     StateCollecting,
		buffer:    telemetry.NewBuffer(),
		createdAt: nowMs,
	}
}

// durationMs is the session span covered by telemetry so far.
func (s *Session) durationMs() int64 { return s.lastEventT }

// readyForAnalysis reports whether the minimum-data thresholds are met.
func (s *Session) readyForAnalysis() bool {
	return s.buffer.MotionCount() >= minMotionSamples &&
		s.durationMs() >= minSessionDurationMs &&
		s.buffer.EventCount() >= minTotalEvents
}

// validate classifies an event, returning its buffer kind or false for
// malformed input.
func (ev *TelemetryEvent) validate() (string, bool) {
	set := 0
	kind := ""
	if ev.Motion != nil {
		set, kind = set+1, "motion"
	}
	if ev.Click != nil {
		set, kind = set+1, "click"
	}
	if ev.Key != nil {
		set, kind = set+1, "key"
		// A key-down without a matching key-up is never materialized, so a
		// non-positive duration is malformed by contract.
		if ev.Key.Duration <= 0 {
			return "", false
		}
	}
	if ev.Touch != nil {
		set, kind = set+1, "touch"
		switch ev.Touch.Type {
		case telemetry.TouchStart, telemetry.TouchMove, telemetry.TouchEnd:
		default:
			return "", false
		}
	}
	if set != 1 {
		return "", false
	}
	return kind, true
}

// timestamp extracts the sample's client timestamp.
func (ev *TelemetryEvent) timestamp() int64 {
	switch {
	case ev.Motion != nil:
		return ev.Motion.T
	case ev.Click != nil:
		return ev.Click.T
	case ev.Key != nil:
		return ev.Key.PressT
	case ev.Touch != nil:
		return ev.Touch.T
	}
	return 0
}
