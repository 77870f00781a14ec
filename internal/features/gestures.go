package features

import (
	"math"

	"github.com/humanproof/server/internal/telemetry"
)

const (
	longPressMinDurationMs = 500
	longPressMaxDistance   = 20
	swipeMinDistance       = 50
	swipeMinVelocity       = 0.1
	tapMaxDistance         = 30
	tapMaxDurationMs       = 300
)

// touchRun accumulates one finger's start..end trajectory.
type touchRun struct {
	startT     int64
	lastX      float64
	lastY      float64
	distance   float64
	concurrent bool
}

// classifyGestures groups touch events into per-finger runs and classifies
// each completed run. A run that overlapped another active finger counts as
// multi-touch regardless of its own shape.
func classifyGestures(events []telemetry.TouchEvent) map[Gesture]int {
	if len(events) == 0 {
		return nil
	}

	counts := make(map[Gesture]int)
	active := make(map[int]*touchRun)

	for _, ev := range events {
		for _, pt := range ev.Touches {
			switch ev.Type {
			case telemetry.TouchStart:
				run := &touchRun{startT: ev.T, lastX: pt.X, lastY: pt.Y}
				if len(active) > 0 {
					run.concurrent = true
					for _, other := range active {
						other.concurrent = true
					}
				}
				active[pt.ID] = run

			case telemetry.TouchMove:
				if run, ok := active[pt.ID]; ok {
					run.distance += math.Hypot(pt.X-run.lastX, pt.Y-run.lastY)
					run.lastX, run.lastY = pt.X, pt.Y
				}

			case telemetry.TouchEnd:
				run, ok := active[pt.ID]
				if !ok {
					continue
				}
				run.distance += math.Hypot(pt.X-run.lastX, pt.Y-run.lastY)
				delete(active, pt.ID)
				counts[classifyRun(run, ev.T)]++
			}
		}
	}

	if len(counts) == 0 {
		return nil
	}
	return counts
}

func classifyRun(run *touchRun, endT int64) Gesture {
	if run.concurrent {
		return GestureMultiTouch
	}

	duration := float64(endT - run.startT)
	var velocity float64
	if duration > 0 {
		velocity = run.distance / duration
	}

	switch {
	case duration > longPressMinDurationMs && run.distance < longPressMaxDistance:
		return GestureLongPress
	case run.distance > swipeMinDistance && velocity > swipeMinVelocity:
		return GestureSwipe
	case run.distance < tapMaxDistance && duration < tapMaxDurationMs:
		return GestureTap
	default:
		// Ambiguous run, default tap.
		return GestureTap
	}
}
