package features

// TypingPattern classifies keystroke rhythm into coarse typist profiles.
type TypingPattern string

const (
	PatternHuntPeck     TypingPattern = "hunt-peck"
	PatternTouchTyping  TypingPattern = "touch-typing"
	PatternHybrid       TypingPattern = "hybrid"
	PatternBotLike      TypingPattern = "bot-like"
	PatternInsufficient TypingPattern = "insufficient-data"
)

// Gesture names a classified touch gesture.
type Gesture string

const (
	GestureTap        Gesture = "tap"
	GestureSwipe      Gesture = "swipe"
	GestureLongPress  Gesture = "long-press"
	GestureMultiTouch Gesture = "multi-touch"
)

// FeatureVector is the aggregate statistics derived from one buffer snapshot.
// It is always recomputed from scratch, never updated incrementally, so
// repeated extraction over the same snapshot cannot drift. Dashboards and the
// classifier consume this shape directly and never recompute statistics of
// their own.
type FeatureVector struct {
	// Pointer motion
	AvgVelocity       float64 `json:"avgVelocity"`
	MaxVelocity       float64 `json:"maxVelocity"`
	VelocityVariance  float64 `json:"velocityVariance"`
	VelocityVariation float64 `json:"velocityVariation"`
	AvgAcceleration   float64 `json:"avgAcceleration"`
	DirectionChanges  int     `json:"directionChangeCount"`

	// Clicks
	ClickFrequency   float64 `json:"clickFrequency"`
	AvgClickInterval float64 `json:"avgClickInterval"`
	DoubleClickCount int     `json:"doubleClickCount"`

	// Keystrokes
	AvgKeystrokeDuration float64       `json:"avgKeystrokeDuration"`
	AvgFlightTime        float64       `json:"avgFlightTime"`
	KeystrokeRhythm      float64       `json:"keystrokeFlightVariance"`
	TypingPattern        TypingPattern `json:"typingPattern"`

	// Touch
	TouchGestures map[Gesture]int `json:"touchGestureCounts,omitempty"`

	// Raw counts and session span, consumed by the scorer and the state
	// machine's trigger/selection logic.
	MotionCount       int   `json:"motionCount"`
	ClickCount        int   `json:"clickCount"`
	KeyCount          int   `json:"keyCount"`
	TouchEventCount   int   `json:"touchEventCount"`
	SessionDurationMs int64 `json:"sessionDuration"`
}

// EventCount is the total number of samples behind this vector.
func (f FeatureVector) EventCount() int {
	return f.MotionCount + f.ClickCount + f.KeyCount + f.TouchEventCount
}
