package telemetry

// Timestamps are client-monotonic milliseconds relative to session start, as
// captured by the collector. The buffer never interprets them beyond ordering
// and age pruning.

// MotionSample is a single pointer position report.
type MotionSample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	T int64   `json:"t"`
}

// ClickSample is a single pointer click.
type ClickSample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	T int64   `json:"t"`
}

// KeySample is a completed key press. Duration is release minus press for the
// same key; the collector never emits a key-down without a matching key-up.
type KeySample struct {
	Key      string  `json:"key"`
	PressT   int64   `json:"pressTimestamp"`
	Duration float64 `json:"duration"`
}

// TouchEventType tags a TouchEvent.
type TouchEventType string

const (
	TouchStart TouchEventType = "start"
	TouchMove  TouchEventType = "move"
	TouchEnd   TouchEventType = "end"
)

// TouchPoint is one finger within a TouchEvent.
type TouchPoint struct {
	ID       int     `json:"touchId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Pressure float64 `json:"pressure,omitempty"`
	RadiusX  float64 `json:"radiusX,omitempty"`
	RadiusY  float64 `json:"radiusY,omitempty"`
}

// TouchEvent groups the touch points reported at one instant.
type TouchEvent struct {
	Type    TouchEventType `json:"type"`
	Touches []TouchPoint   `json:"touches"`
	T       int64          `json:"t"`
}
