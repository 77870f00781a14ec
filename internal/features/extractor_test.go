package features

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/humanproof/server/internal/telemetry"
)

func TestExtractVelocity(t *testing.T) {
	snap := telemetry.Snapshot{
		Motion: []telemetry.MotionSample{
			{X: 0, Y: 0, T: 0},
			{X: 3, Y: 4, T: 10}, // distance 5 over 10ms
		},
	}

	fv := Extract(snap, 10)

	assert.InDelta(t, 0.5, fv.AvgVelocity, 1e-9)
	assert.InDelta(t, 0.5, fv.MaxVelocity, 1e-9)
	assert.InDelta(t, 0.05, fv.AvgAcceleration, 1e-9)
	assert.Equal(t, 2, fv.MotionCount)
}

func TestExtractZeroDtYieldsZeroVelocity(t *testing.T) {
	snap := telemetry.Snapshot{
		Motion: []telemetry.MotionSample{
			{X: 0, Y: 0, T: 100},
			{X: 50, Y: 50, T: 100}, // same timestamp
		},
	}

	fv := Extract(snap, 100)
	assert.Zero(t, fv.AvgVelocity)
	assert.Zero(t, fv.MaxVelocity)
}

func TestDirectionChanges(t *testing.T) {
	// Straight right, then a 90 degree turn upward.
	motion := []telemetry.MotionSample{
		{X: 0, Y: 0, T: 0},
		{X: 10, Y: 0, T: 10},
		{X: 20, Y: 0, T: 20},
		{X: 20, Y: 10, T: 30},
	}

	assert.Equal(t, 1, countDirectionChanges(motion))
}

func TestDirectionChangesIgnoresStationaryTriples(t *testing.T) {
	motion := []telemetry.MotionSample{
		{X: 5, Y: 5, T: 0},
		{X: 5, Y: 5, T: 10}, // zero-length first segment
		{X: 50, Y: 50, T: 20},
	}

	assert.Equal(t, 0, countDirectionChanges(motion))
}

func TestClickStats(t *testing.T) {
	snap := telemetry.Snapshot{
		Clicks: []telemetry.ClickSample{
			{T: 0},
			{T: 200},  // double click
			{T: 1000},
		},
	}

	fv := Extract(snap, 10_000)

	assert.InDelta(t, 0.3, fv.ClickFrequency, 1e-9)
	assert.InDelta(t, 500, fv.AvgClickInterval, 1e-9)
	assert.Equal(t, 1, fv.DoubleClickCount)
}

func TestFlightWindowExcludesPauses(t *testing.T) {
	snap := telemetry.Snapshot{
		Keys: []telemetry.KeySample{
			{Key: "a", PressT: 0, Duration: 100},    // release at 100
			{Key: "b", PressT: 150, Duration: 100},  // flight 50, counted
			{Key: "c", PressT: 2700, Duration: 100}, // flight 2450, a pause
		},
	}

	fv := Extract(snap, 3000)

	assert.InDelta(t, 100, fv.AvgKeystrokeDuration, 1e-9)
	assert.InDelta(t, 50, fv.AvgFlightTime, 1e-9)
	assert.Zero(t, fv.KeystrokeRhythm, "single flight has no spread")
}

func TestTypingPatternLadder(t *testing.T) {
	tests := []struct {
		name     string
		keyCount int
		dwell    float64
		flight   float64
		rhythm   float64
		want     TypingPattern
	}{
		{"insufficient data", 9, 20, 50, 30, PatternInsufficient},
		{"bot-like wins ties", 20, 20, 50, 30, PatternBotLike},
		{"hunt-peck by dwell", 20, 250, 50, 30, PatternHuntPeck},
		{"hunt-peck by flight", 20, 150, 600, 150, PatternHuntPeck},
		{"hunt-peck by rhythm", 20, 150, 300, 400, PatternHuntPeck},
		{"touch-typing", 20, 80, 150, 80, PatternTouchTyping},
		{"hybrid", 20, 150, 300, 150, PatternHybrid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyTyping(tt.keyCount, tt.dwell, tt.flight, tt.rhythm))
		})
	}
}

func TestExtractNoKeysIsInsufficient(t *testing.T) {
	fv := Extract(telemetry.Snapshot{}, 5000)
	assert.Equal(t, PatternInsufficient, fv.TypingPattern)
}

func TestExtractIsDeterministic(t *testing.T) {
	snap := telemetry.Snapshot{
		Motion: []telemetry.MotionSample{
			{X: 0, Y: 0, T: 0}, {X: 10, Y: 5, T: 20}, {X: 5, Y: 30, T: 45},
		},
		Clicks: []telemetry.ClickSample{{T: 10}, {T: 900}},
		Keys:   []telemetry.KeySample{{Key: "a", PressT: 0, Duration: 90}},
	}

	first := Extract(snap, 5000)
	second := Extract(snap, 5000)
	assert.Equal(t, first, second)
}

func TestGestureClassification(t *testing.T) {
	tests := []struct {
		name   string
		events []telemetry.TouchEvent
		want   map[Gesture]int
	}{
		{
			name: "tap",
			events: []telemetry.TouchEvent{
				{Type: telemetry.TouchStart, Touches: []telemetry.TouchPoint{{ID: 1, X: 10, Y: 10}}, T: 0},
				{Type: telemetry.TouchEnd, Touches: []telemetry.TouchPoint{{ID: 1, X: 12, Y: 11}}, T: 100},
			},
			want: map[Gesture]int{GestureTap: 1},
		},
		{
			name: "swipe",
			events: []telemetry.TouchEvent{
				{Type: telemetry.TouchStart, Touches: []telemetry.TouchPoint{{ID: 1, X: 0, Y: 0}}, T: 0},
				{Type: telemetry.TouchMove, Touches: []telemetry.TouchPoint{{ID: 1, X: 60, Y: 0}}, T: 100},
				{Type: telemetry.TouchEnd, Touches: []telemetry.TouchPoint{{ID: 1, X: 120, Y: 0}}, T: 200},
			},
			want: map[Gesture]int{GestureSwipe: 1},
		},
		{
			name: "long press",
			events: []telemetry.TouchEvent{
				{Type: telemetry.TouchStart, Touches: []telemetry.TouchPoint{{ID: 1, X: 30, Y: 30}}, T: 0},
				{Type: telemetry.TouchEnd, Touches: []telemetry.TouchPoint{{ID: 1, X: 32, Y: 30}}, T: 800},
			},
			want: map[Gesture]int{GestureLongPress: 1},
		},
		{
			name: "multi-touch",
			events: []telemetry.TouchEvent{
				{Type: telemetry.TouchStart, Touches: []telemetry.TouchPoint{{ID: 1, X: 0, Y: 0}}, T: 0},
				{Type: telemetry.TouchStart, Touches: []telemetry.TouchPoint{{ID: 2, X: 100, Y: 0}}, T: 10},
				{Type: telemetry.TouchEnd, Touches: []telemetry.TouchPoint{{ID: 1, X: 0, Y: 0}}, T: 100},
				{Type: telemetry.TouchEnd, Touches: []telemetry.TouchPoint{{ID: 2, X: 100, Y: 0}}, T: 110},
			},
			want: map[Gesture]int{GestureMultiTouch: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyGestures(tt.events))
		})
	}
}
