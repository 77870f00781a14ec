package challenge

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Default per-kind time limits. Typing gets the longest window since it is
// the slowest interaction.
const (
	DefaultPointerLimitMs = 15_000
	DefaultClickLimitMs   = 20_000
	DefaultTypingLimitMs  = 30_000

	sweepInterval = 10 * time.Second

	// Minimum recorded path length for a pointer pattern to pass. The
	// shape-match heuristic lives client-side; path length is the contract.
	pointerMinPoints = 20
)

var pointerShapes = []string{"circle", "zigzag", "square"}

var typingPhrases = []string{
	"the quick brown fox jumps over the lazy dog",
	"pack my box with five dozen liquor jugs",
	"how vexingly quick daft zebras jump",
	"sphinx of black quartz judge my vow",
}

// Limits configures per-kind time limits.
type Limits struct {
	PointerMs int64
	ClickMs   int64
	TypingMs  int64
}

// DefaultLimits returns the standard time limits.
func DefaultLimits() Limits {
	return Limits{
		PointerMs: DefaultPointerLimitMs,
		ClickMs:   DefaultClickLimitMs,
		TypingMs:  DefaultTypingLimitMs,
	}
}

// ExpiryFunc is notified when the background sweep expires an outstanding
// challenge. It is called without registry locks held.
type ExpiryFunc func(sessionID, challengeID string)

// Registry issues and validates challenges. At most one outstanding challenge
// exists per session; issuing another replaces it.
type Registry struct {
	mu        sync.Mutex
	byID      map[string]*Challenge
	bySession map[string]string

	limits   Limits
	onExpire ExpiryFunc
	rng      *rand.Rand
	now      func() int64
	done     chan struct{}
	log      *logrus.Entry
}

// NewRegistry creates a registry and starts its expiry sweep.
func NewRegistry(limits Limits, onExpire ExpiryFunc) *Registry {
	r := &Registry{
		byID:      make(map[string]*Challenge),
		bySession: make(map[string]string),
		limits:    limits,
		onExpire:  onExpire,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		now:       func() int64 { return time.Now().UnixMilli() },
		done:      make(chan struct{}),
		log:       logrus.WithField("component", "challenge-registry"),
	}
	go r.sweepLoop()
	return r
}

// Close stops the expiry sweep.
func (r *Registry) Close() {
	close(r.done)
}

// Issue creates a challenge of the given type for a session. An outstanding
// challenge for the same session is implicitly expired and replaced.
func (r *Registry) Issue(sessionID string, t Type) (*Challenge, error) {
	c := &Challenge{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Type:      t,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch t {
	case PointerPattern:
		shape := pointerShapes[r.rng.Intn(len(pointerShapes))]
		c.Shape = shape
		c.MinPathPoints = pointerMinPoints
		c.TimeLimitMs = r.limits.PointerMs
		c.Instruction = fmt.Sprintf("Trace a %s with your pointer", shape)

	case ClickSequence:
		n := 3 + r.rng.Intn(3)
		seq := make([]int, n)
		for i := range seq {
			seq[i] = r.rng.Intn(4)
		}
		c.ExpectedClicks = seq
		c.Buttons = 4
		c.TimeLimitMs = r.limits.ClickMs
		c.Instruction = "Click the highlighted buttons in order"

	case TypingCadence:
		phrase := typingPhrases[r.rng.Intn(len(typingPhrases))]
		c.ExpectedText = phrase
		c.PromptText = phrase
		c.TimeLimitMs = r.limits.TypingMs
		c.Instruction = "Type the phrase exactly as shown"

	default:
		return nil, ErrUnknownType
	}

	c.IssuedAt = r.now()

	if prev, ok := r.bySession[sessionID]; ok {
		delete(r.byID, prev)
	}
	r.byID[c.ID] = c
	r.bySession[sessionID] = c.ID

	return c, nil
}

// Validate resolves a challenge with the submitted response. Whatever the
// result, the challenge is consumed: a second validation of the same id
// returns ErrNotFound.
func (r *Registry) Validate(id string, resp *Response) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byID[id]
	if !ok {
		return false, ErrNotFound
	}

	r.remove(c)

	if r.now() > c.IssuedAt+c.TimeLimitMs {
		return false, ErrExpired
	}
	if resp == nil {
		return false, nil
	}

	switch c.Type {
	case PointerPattern:
		return len(resp.Path) > c.MinPathPoints && resp.CompletionTimeMs <= c.TimeLimitMs, nil
	case ClickSequence:
		if len(resp.ClickSequence) != len(c.ExpectedClicks) {
			return false, nil
		}
		for i, v := range resp.ClickSequence {
			if v != c.ExpectedClicks[i] {
				return false, nil
			}
		}
		return true, nil
	case TypingCadence:
		return resp.Text == c.ExpectedText, nil
	default:
		return false, ErrUnknownType
	}
}

// Outstanding reports the challenge id currently pending for a session, if
// any.
func (r *Registry) Outstanding(sessionID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.bySession[sessionID]
	return id, ok
}

func (r *Registry) remove(c *Challenge) {
	delete(r.byID, c.ID)
	if r.bySession[c.SessionID] == c.ID {
		delete(r.bySession, c.SessionID)
	}
}

func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

// sweep removes expired challenges and notifies the expiry hook. Expiring a
// challenge whose session is already terminal is a no-op for the hook, so the
// sweep is idempotent.
func (r *Registry) sweep() {
	now := r.now()

	r.mu.Lock()
	var expired []*Challenge
	for _, c := range r.byID {
		if now > c.IssuedAt+c.TimeLimitMs {
			expired = append(expired, c)
		}
	}
	for _, c := range expired {
		r.remove(c)
	}
	r.mu.Unlock()

	for _, c := range expired {
		r.log.WithFields(logrus.Fields{
			"challenge_id": c.ID,
			"session_id":   c.SessionID,
			"type":         c.Type,
		}).Debug("challenge expired by sweep")
		if r.onExpire != nil {
			r.onExpire(c.SessionID, c.ID)
		}
	}
}
