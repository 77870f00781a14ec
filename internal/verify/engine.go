package verify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/humanproof/server/internal/challenge"
	"github.com/humanproof/server/internal/features"
	"github.com/humanproof/server/internal/metrics"
	"github.com/humanproof/server/internal/risk"
	"github.com/humanproof/server/internal/store"
	"github.com/humanproof/server/internal/token"
)

// Config wires the engine's collaborators.
type Config struct {
	// Classifier may be nil, in which case every session scores through the
	// fallback algorithm.
	Classifier        risk.Classifier
	Store             store.Store
	Tokens            *token.Issuer
	ChallengeLimits   challenge.Limits
	ChallengesEnabled bool
}

// Engine orchestrates the per-session verification lifecycle: accumulate
// telemetry, trigger scoring, escalate to a challenge when confidence is low,
// and finalize. Sessions are independent units of concurrency; the engine map
// is the only shared structure.
type Engine struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	classifier        risk.Classifier
	registry          *challenge.Registry
	store             store.Store
	tokens            *token.Issuer
	challengesEnabled bool

	now  func() int64
	done chan struct{}
	log  *logrus.Entry
}

// Terminal sessions linger in memory briefly for assessment reads, then are
// evicted by the sweep; the store remains the durable record.
const (
	terminalRetentionMs  = 5 * 60 * 1000
	sessionSweepInterval = time.Minute
)

// New creates an engine and its challenge registry.
func New(cfg Config) *Engine {
	e := &Engine{
		sessions:          make(map[string]*Session),
		classifier:        cfg.Classifier,
		store:             cfg.Store,
		tokens:            cfg.Tokens,
		challengesEnabled: cfg.ChallengesEnabled,
		now:               func() int64 { return time.Now().UnixMilli() },
		done:              make(chan struct{}),
		log:               logrus.WithField("component", "verify-engine"),
	}
	e.registry = challenge.NewRegistry(cfg.ChallengeLimits, e.expireChallenge)
	go e.sweepLoop()
	return e
}

// Close stops the background sweeps.
func (e *Engine) Close() {
	close(e.done)
	e.registry.Close()
}

func (e *Engine) sweepLoop() {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.done:
			return
		case <-ticker.C:
			e.sweepSessions()
		}
	}
}

// sweepSessions evicts terminal sessions past the retention window. Later
// assessment reads for them are served from the store.
func (e *Engine) sweepSessions() {
	cutoff := e.now() - terminalRetentionMs

	e.mu.Lock()
	defer e.mu.Unlock()
	for id, s := range e.sessions {
		s.mu.Lock()
		evict := s.state.Terminal() && s.completedAt > 0 && s.completedAt < cutoff
		s.mu.Unlock()
		if evict {
			delete(e.sessions, id)
		}
	}
}

// StartSession explicitly creates a session and returns its id. Sessions are
// otherwise created implicitly on first telemetry.
func (e *Engine) StartSession(ctx context.Context) string {
	id := uuid.NewString()
	s := newSession(id, e.now())

	e.mu.Lock()
	e.sessions[id] = s
	e.mu.Unlock()

	metrics.ActiveSessions.Inc()
	e.audit(ctx, id, "session_started", nil)
	return id
}

func (e *Engine) lookup(id string) *Session {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sessions[id]
}

func (e *Engine) getOrCreate(ctx context.Context, id string) *Session {
	e.mu.Lock()
	s, ok := e.sessions[id]
	if !ok {
		s = newSession(id, e.now())
		e.sessions[id] = s
	}
	e.mu.Unlock()

	if !ok {
		metrics.ActiveSessions.Inc()
		e.audit(ctx, id, "session_started", nil)
	}
	return s
}

// Record ingests a batch of telemetry events for a session, creating the
// session on first contact. Malformed events are dropped and counted, never
// fatal. Recording into a terminal session is a no-op: terminal sessions are
// immutable.
func (e *Engine) Record(ctx context.Context, sessionID string, events []TelemetryEvent) error {
	s := e.getOrCreate(ctx, sessionID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return nil
	}

	for i := range events {
		ev := &events[i]
		kind, ok := ev.validate()
		if !ok {
			metrics.InvalidTelemetry.Inc()
			e.log.WithField("session_id", sessionID).Debug("dropped invalid telemetry sample")
			continue
		}

		switch kind {
		case "motion":
			s.buffer.RecordMotion(*ev.Motion)
		case "click":
			s.buffer.RecordClick(*ev.Click)
		case "key":
			s.buffer.RecordKey(*ev.Key)
		case "touch":
			s.buffer.RecordTouch(*ev.Touch)
		}
		if t := ev.timestamp(); t > s.lastEventT {
			s.lastEventT = t
		}
		metrics.TelemetrySamples.WithLabelValues(kind).Inc()
	}

	// Scoring triggers exactly once: after Analyzing is entered, telemetry
	// keeps accumulating for audit but never re-triggers.
	if s.state == StateCollecting && s.readyForAnalysis() {
		e.analyze(ctx, s)
	}
	return nil
}

// GetAssessment returns the latest assessment for a session, forcing a
// scoring pass if none has run yet. Resolved sessions that aged out of memory
// are served from the store.
func (e *Engine) GetAssessment(ctx context.Context, sessionID string) (*risk.RiskAssessment, error) {
	s := e.lookup(sessionID)
	if s == nil {
		rec, err := e.store.Load(ctx, sessionID)
		if err != nil {
			if errors.Is(err, store.ErrSessionNotFound) {
				return nil, ErrSessionNotFound
			}
			return nil, err
		}
		if rec.Assessment == nil {
			return nil, ErrSessionNotFound
		}
		return rec.Assessment, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.assessment == nil {
		if s.state == StateCollecting {
			e.analyze(ctx, s)
		} else {
			// A challenge was requested before any scoring pass ran. Score
			// for reporting only: leaving Challenge is reserved for the
			// response path and the expiry sweep.
			assessment := e.score(ctx, s)
			s.assessment = &assessment
		}
	}
	assessment := *s.assessment
	return &assessment, nil
}

// RequestChallenge escalates a session to a challenge, replacing any
// outstanding one. With no preferred type the weakest telemetry dimension
// picks the kind. An unrecognized preferred type surfaces
// challenge.ErrUnknownType; callers are expected to default.
func (e *Engine) RequestChallenge(ctx context.Context, sessionID string, preferred string) (*challenge.Challenge, error) {
	var typ challenge.Type
	if preferred != "" {
		typ = challenge.Type(preferred)
		switch typ {
		case challenge.PointerPattern, challenge.ClickSequence, challenge.TypingCadence:
		default:
			return nil, challenge.ErrUnknownType
		}
	}

	s := e.lookup(sessionID)
	if s == nil {
		return nil, ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return nil, ErrSessionResolved
	}
	if preferred == "" {
		if s.pending != nil {
			return s.pending, nil
		}
		typ = e.selectChallengeType(s)
	}

	ch, err := e.issueChallenge(ctx, s, typ)
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// SubmitChallengeResponse validates a response and finalizes the session.
// The outcome is returned alongside sentinel errors so callers can surface
// expiry while still reporting the terminal verdict.
func (e *Engine) SubmitChallengeResponse(ctx context.Context, sessionID string, resp *challenge.Response) (*Outcome, error) {
	s := e.lookup(sessionID)
	if s == nil {
		return nil, ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() || s.pending == nil {
		return nil, challenge.ErrNotFound
	}

	chID := s.pending.ID
	chType := s.pending.Type
	if resp != nil && resp.ChallengeID != "" && resp.ChallengeID != chID {
		return nil, challenge.ErrNotFound
	}

	valid, err := e.registry.Validate(chID, resp)
	s.pending = nil

	switch {
	case errors.Is(err, challenge.ErrExpired), errors.Is(err, challenge.ErrNotFound):
		// ErrNotFound with a challenge still pending means the sweep removed
		// the entry just before its expiry callback could run; both are
		// expiry from the session's point of view.
		metrics.ChallengesResolved.WithLabelValues(string(chType), "expired").Inc()
		e.finish(ctx, s, false, MethodTimeout)
		return e.outcome(s), challenge.ErrExpired
	case err != nil:
		return nil, err
	case valid:
		metrics.ChallengesResolved.WithLabelValues(string(chType), "passed").Inc()
		e.finish(ctx, s, true, MethodChallenge)
		return e.outcome(s), nil
	default:
		metrics.ChallengesResolved.WithLabelValues(string(chType), "failed").Inc()
		e.finish(ctx, s, false, MethodChallengeFailed)
		return e.outcome(s), nil
	}
}

// State reports a session's current state.
func (e *Engine) State(sessionID string) (State, error) {
	s := e.lookup(sessionID)
	if s == nil {
		return "", ErrSessionNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, nil
}

// score runs feature extraction and the scorer without touching the state
// machine. Caller holds the session mutex. The classifier call is the only
// blocking step and is bounded by its own timeout; its failure is recovered,
// never propagated.
func (e *Engine) score(ctx context.Context, s *Session) risk.RiskAssessment {
	fv := features.Extract(s.buffer.Snapshot(), s.durationMs())

	var verdict *risk.ClassifierVerdict
	if e.classifier != nil {
		start := time.Now()
		v, err := e.classifier.Classify(ctx, fv)
		metrics.ClassifierLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.ClassifierFallbacks.Inc()
			e.log.WithError(err).WithField("session_id", s.id).
				Warn("classifier unavailable, using fallback algorithm")
		} else {
			verdict = v
		}
	}

	assessment := risk.Score(fv, verdict)
	e.audit(ctx, s.id, "assessed", map[string]string{
		"method": string(assessment.Method),
		"state":  string(s.state),
	})
	return assessment
}

// analyze runs the scorer once and advances the state machine. Caller holds
// the session mutex; the session must be in Collecting.
func (e *Engine) analyze(ctx context.Context, s *Session) {
	s.state = StateAnalyzing

	assessment := e.score(ctx, s)
	s.assessment = &assessment

	log := e.log.WithFields(logrus.Fields{
		"session_id":      s.id,
		"risk_score":      assessment.RiskScore,
		"confidence":      assessment.Confidence,
		"method":          assessment.Method,
		"needs_challenge": assessment.NeedsChallenge,
	})

	if !assessment.NeedsChallenge {
		log.Info("session scored")
		e.finish(ctx, s, assessment.IsHuman, string(assessment.Method))
		return
	}

	if !e.challengesEnabled {
		log.Info("low confidence verdict with challenges disabled")
		e.finish(ctx, s, false, MethodLowConfidence)
		return
	}

	if _, err := e.issueChallenge(ctx, s, e.selectChallengeType(s)); err != nil {
		log.WithError(err).Error("challenge issuance failed")
		e.finish(ctx, s, false, MethodChallengeFailed)
		return
	}
	log.Info("session escalated to challenge")
}

// selectChallengeType picks the kind probing the weakest telemetry dimension.
func (e *Engine) selectChallengeType(s *Session) challenge.Type {
	switch {
	case s.buffer.MotionCount() < weakMotionThreshold:
		return challenge.PointerPattern
	case s.buffer.ClickCount() < weakClickThreshold:
		return challenge.ClickSequence
	default:
		return challenge.TypingCadence
	}
}

// issueChallenge issues via the registry and moves the session into the
// Challenge state. Caller holds the session mutex.
func (e *Engine) issueChallenge(ctx context.Context, s *Session, typ challenge.Type) (*challenge.Challenge, error) {
	ch, err := e.registry.Issue(s.id, typ)
	if err != nil {
		return nil, err
	}
	s.pending = ch
	s.state = StateChallenge

	metrics.ChallengesIssued.WithLabelValues(string(typ)).Inc()
	e.audit(ctx, s.id, "challenge_issued", map[string]string{
		"challenge_id": ch.ID,
		"type":         string(typ),
	})
	return ch, nil
}

// expireChallenge is the registry sweep hook. Expiring a challenge whose
// session already resolved is a no-op, keeping the sweep idempotent.
func (e *Engine) expireChallenge(sessionID, challengeID string) {
	s := e.lookup(sessionID)
	if s == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() || s.pending == nil || s.pending.ID != challengeID {
		return
	}
	chType := s.pending.Type
	s.pending = nil
	metrics.ChallengesResolved.WithLabelValues(string(chType), "expired").Inc()
	e.finish(context.Background(), s, false, MethodTimeout)
}

// finish moves a session into a terminal state and persists the verdict.
// Idempotent: finishing a terminal session is a no-op. Caller holds the
// session mutex.
func (e *Engine) finish(ctx context.Context, s *Session, success bool, method string) {
	if s.state.Terminal() {
		return
	}

	s.completedAt = e.now()

	outcome := "failure"
	if success {
		s.state = StateSuccess
		outcome = "success"
		if e.tokens != nil && s.assessment != nil {
			s.token = e.tokens.Issue(s.id, s.assessment.RiskScore)
		}
	} else {
		s.state = StateFailure
		s.failureMethod = method
	}

	metrics.Verifications.WithLabelValues(outcome, method).Inc()
	metrics.ActiveSessions.Dec()

	e.log.WithFields(logrus.Fields{
		"session_id": s.id,
		"outcome":    outcome,
		"method":     method,
	}).Info("session finalized")

	e.persist(ctx, s)
	e.audit(ctx, s.id, "verdict", map[string]string{
		"outcome": outcome,
		"method":  method,
	})
}

// persist writes the terminal record. The write is at-least-once and keyed by
// session id, so a retry after a partial failure is safe.
func (e *Engine) persist(ctx context.Context, s *Session) {
	rec := &store.Record{
		SessionID:     s.id,
		State:         string(s.state),
		Assessment:    s.assessment,
		FailureMethod: s.failureMethod,
		Token:         s.token,
		StartedAt:     s.createdAt,
		CompletedAt:   e.now(),
	}

	if err := e.store.Save(ctx, rec); err != nil {
		e.log.WithError(err).WithField("session_id", s.id).Warn("session store save failed, retrying once")
		if err := e.store.Save(ctx, rec); err != nil {
			e.log.WithError(err).WithField("session_id", s.id).Error("session store save failed")
		}
	}
}

func (e *Engine) audit(ctx context.Context, sessionID, kind string, detail map[string]string) {
	ev := store.Event{T: e.now(), Kind: kind, Detail: detail}
	if err := e.store.AppendAudit(ctx, sessionID, ev); err != nil {
		e.log.WithError(err).WithField("session_id", sessionID).Warn("audit append failed")
	}
}

// outcome builds the user-visible result from the session's terminal state.
// Caller holds the session mutex.
func (e *Engine) outcome(s *Session) *Outcome {
	out := &Outcome{
		Success: s.state == StateSuccess,
		IsHuman: s.state == StateSuccess,
		Method:  s.failureMethod,
		Token:   s.token,
	}
	if s.state == StateSuccess {
		out.Method = MethodChallenge
	}
	if s.assessment != nil {
		out.Confidence = s.assessment.Confidence
	}
	return out
}
