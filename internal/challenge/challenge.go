package challenge

import "errors"

// Type enumerates the challenge kinds. The set is closed: every switch over
// it is exhaustive and unknown values are a caller error.
type Type string

const (
	PointerPattern Type = "pointer-pattern"
	ClickSequence  Type = "click-sequence"
	TypingCadence  Type = "typing-cadence"
)

var (
	// ErrUnknownType is returned when a caller requests a type outside the
	// closed set. Callers are expected to default rather than retry.
	ErrUnknownType = errors.New("unknown challenge type")

	// ErrNotFound is returned when a challenge id is unknown or already
	// resolved.
	ErrNotFound = errors.New("challenge not found")

	// ErrExpired is returned when a response arrives after the time limit.
	ErrExpired = errors.New("challenge expired")
)

// Challenge is an issued interactive test. ExpectedClicks, ExpectedText and
// MinPathPoints carry the answer for their respective type; the others stay
// zero.
type Challenge struct {
	ID          string `json:"challengeId"`
	SessionID   string `json:"sessionId"`
	Type        Type   `json:"type"`
	Instruction string `json:"instruction"`
	IssuedAt    int64  `json:"issuedAt"`
	TimeLimitMs int64  `json:"timeLimitMs"`

	Shape         string `json:"shape,omitempty"`
	MinPathPoints int    `json:"-"`

	// ExpectedClicks is shown to the client so the widget can highlight the
	// buttons; the test is the interaction, not the knowledge.
	ExpectedClicks []int  `json:"sequence,omitempty"`
	ExpectedText   string `json:"-"`

	// PromptText is what typing-cadence shows the user; identical to the
	// expected answer by contract.
	PromptText string `json:"promptText,omitempty"`
	Buttons    int    `json:"buttons,omitempty"`
}

// PathPoint is one recorded pointer position during a pointer-pattern
// challenge.
type PathPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	T int64   `json:"t"`
}

// Response is a submitted answer. Only the field matching the challenge type
// is consulted.
type Response struct {
	ChallengeID      string      `json:"challengeId"`
	Path             []PathPoint `json:"path,omitempty"`
	ClickSequence    []int       `json:"clickSequence,omitempty"`
	Text             string      `json:"text,omitempty"`
	CompletionTimeMs int64       `json:"completionTimeMs"`
}
