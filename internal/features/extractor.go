package features

import (
	"math"

	"github.com/humanproof/server/internal/telemetry"
)

const (
	// Turn angle beyond which a motion triple counts as a direction change.
	directionChangeRadians = math.Pi / 4

	// Two clicks closer than this are a double click.
	doubleClickWindowMs = 300

	// Flight times at or beyond this are pauses, not rhythm.
	flightWindowMs = 2000

	// Below this many keystrokes no typing pattern is claimed.
	minKeystrokesForPattern = 10
)

// Extract derives a FeatureVector from a buffer snapshot. It is pure: the
// snapshot is not modified and identical input always yields identical output.
func Extract(snap telemetry.Snapshot, sessionDurationMs int64) FeatureVector {
	fv := FeatureVector{
		MotionCount:       len(snap.Motion),
		ClickCount:        len(snap.Clicks),
		KeyCount:          len(snap.Keys),
		TouchEventCount:   len(snap.Touches),
		SessionDurationMs: sessionDurationMs,
	}

	extractMotion(&fv, snap.Motion)
	extractClicks(&fv, snap.Clicks, sessionDurationMs)
	extractKeys(&fv, snap.Keys)
	fv.TouchGestures = classifyGestures(snap.Touches)

	return fv
}

func extractMotion(fv *FeatureVector, motion []telemetry.MotionSample) {
	if len(motion) < 2 {
		return
	}

	velocities := make([]float64, 0, len(motion)-1)
	var accelSum float64
	for i := 1; i < len(motion); i++ {
		dt := float64(motion[i].T - motion[i-1].T)
		dist := math.Hypot(motion[i].X-motion[i-1].X, motion[i].Y-motion[i-1].Y)

		// dt == 0 cannot produce a finite velocity; treat as stationary.
		var v float64
		if dt > 0 {
			v = dist / dt
			accelSum += v / dt
		}
		velocities = append(velocities, v)
	}

	var sum, max float64
	for _, v := range velocities {
		sum += v
		if v > max {
			max = v
		}
	}
	mean := sum / float64(len(velocities))

	var variance float64
	for _, v := range velocities {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(velocities))

	// Mean absolute successive delta: how unevenly speed changes step to step.
	var variation float64
	if len(velocities) > 1 {
		for i := 1; i < len(velocities); i++ {
			variation += math.Abs(velocities[i] - velocities[i-1])
		}
		variation /= float64(len(velocities) - 1)
	}

	fv.AvgVelocity = mean
	fv.MaxVelocity = max
	fv.VelocityVariance = variance
	fv.VelocityVariation = variation
	fv.AvgAcceleration = accelSum / float64(len(velocities))
	fv.DirectionChanges = countDirectionChanges(motion)
}

// countDirectionChanges examines every triple of consecutive samples and
// counts turns whose angle exceeds 45 degrees. Triples whose first segment has
// zero length carry no direction and are skipped.
func countDirectionChanges(motion []telemetry.MotionSample) int {
	changes := 0
	for i := 1; i < len(motion)-1; i++ {
		dx1 := motion[i].X - motion[i-1].X
		dy1 := motion[i].Y - motion[i-1].Y
		dx2 := motion[i+1].X - motion[i].X
		dy2 := motion[i+1].Y - motion[i].Y

		if dx1 == 0 && dy1 == 0 {
			continue
		}

		angle := math.Atan2(dy2, dx2) - math.Atan2(dy1, dx1)
		// Wrap into (-pi, pi] so a small turn across the axis crossing does
		// not read as a near-full rotation.
		for angle > math.Pi {
			angle -= 2 * math.Pi
		}
		for angle <= -math.Pi {
			angle += 2 * math.Pi
		}
		if math.Abs(angle) > directionChangeRadians {
			changes++
		}
	}
	return changes
}

func extractClicks(fv *FeatureVector, clicks []telemetry.ClickSample, sessionDurationMs int64) {
	if len(clicks) == 0 {
		return
	}

	if sessionDurationMs > 0 {
		fv.ClickFrequency = float64(len(clicks)) / (float64(sessionDurationMs) / 1000)
	}

	if len(clicks) < 2 {
		return
	}

	var sum float64
	for i := 1; i < len(clicks); i++ {
		interval := float64(clicks[i].T - clicks[i-1].T)
		sum += interval
		if interval < doubleClickWindowMs {
			fv.DoubleClickCount++
		}
	}
	fv.AvgClickInterval = sum / float64(len(clicks)-1)
}

func extractKeys(fv *FeatureVector, keys []telemetry.KeySample) {
	if len(keys) == 0 {
		fv.TypingPattern = PatternInsufficient
		return
	}

	var dwellSum float64
	for _, k := range keys {
		dwellSum += k.Duration
	}
	avgDwell := dwellSum / float64(len(keys))

	// Flight time: release of one key to press of the next. Gaps outside
	// [0, 2000) are pauses and excluded from rhythm statistics.
	var flights []float64
	for i := 1; i < len(keys); i++ {
		release := float64(keys[i-1].PressT) + keys[i-1].Duration
		flight := float64(keys[i].PressT) - release
		if flight >= 0 && flight < flightWindowMs {
			flights = append(flights, flight)
		}
	}

	var avgFlight, rhythm float64
	if len(flights) > 0 {
		var sum float64
		for _, f := range flights {
			sum += f
		}
		avgFlight = sum / float64(len(flights))

		var variance float64
		for _, f := range flights {
			variance += (f - avgFlight) * (f - avgFlight)
		}
		rhythm = math.Sqrt(variance / float64(len(flights)))
	}

	fv.AvgKeystrokeDuration = avgDwell
	fv.AvgFlightTime = avgFlight
	fv.KeystrokeRhythm = rhythm
	fv.TypingPattern = classifyTyping(len(keys), avgDwell, avgFlight, rhythm)
}

// classifyTyping applies the pattern ladder. Bot-like wins ties, then
// hunt-peck, then touch-typing, then hybrid.
func classifyTyping(keyCount int, avgDwell, avgFlight, rhythm float64) TypingPattern {
	if keyCount < minKeystrokesForPattern {
		return PatternInsufficient
	}
	switch {
	case avgDwell < 30 && avgFlight < 100 && rhythm < 50:
		return PatternBotLike
	case avgDwell > 200 || avgFlight > 500 || rhythm > 300:
		return PatternHuntPeck
	case avgDwell < 100 && avgFlight < 200 && rhythm < 100:
		return PatternTouchTyping
	default:
		return PatternHybrid
	}
}
