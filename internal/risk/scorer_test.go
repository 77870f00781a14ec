package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/humanproof/server/internal/features"
)

func TestFallbackEmptySession(t *testing.T) {
	// No samples at all and a very short session: 0.5 + 0.3 + 0.2, clamped.
	fv := features.FeatureVector{SessionDurationMs: 500}

	a := Fallback(fv)

	assert.Equal(t, 1.0, a.RiskScore)
	assert.Equal(t, 1.0, a.Confidence)
	assert.False(t, a.IsHuman)
	assert.True(t, a.NeedsChallenge)
	assert.Equal(t, MethodFallback, a.Method)
}

func TestFallbackHumanMotion(t *testing.T) {
	// Natural velocity, uneven speed, long session: 0.5 - 0.1 - 0.1 - 0.1.
	fv := features.FeatureVector{
		MotionCount:       15,
		AvgVelocity:       1.0,
		VelocityVariation: 0.6,
		SessionDurationMs: 6000,
	}

	a := Fallback(fv)

	assert.InDelta(t, 0.2, a.RiskScore, 1e-9)
	assert.True(t, a.IsHuman)
	assert.False(t, a.NeedsChallenge)
	assert.Equal(t, MethodFallback, a.Method)
}

func TestFallbackClampsToUnitInterval(t *testing.T) {
	// Every positive adjustment at once: 0.5 + 0.2 + 0.2 + 0.2 + 0.1 + 0.2.
	worst := features.FeatureVector{
		MotionCount:          5,
		AvgVelocity:          0, // stationary pointer
		VelocityVariation:    0,
		ClickCount:           10,
		ClickFrequency:       10,
		KeyCount:             5,
		AvgKeystrokeDuration: 10,
		SessionDurationMs:    500,
	}
	a := Fallback(worst)
	assert.Equal(t, 1.0, a.RiskScore)

	// Every negative adjustment at once: 0.5 - 0.5.
	best := features.FeatureVector{
		MotionCount:          15,
		AvgVelocity:          1.0,
		VelocityVariation:    0.6,
		ClickCount:           3,
		ClickFrequency:       1.0,
		KeyCount:             12,
		AvgKeystrokeDuration: 100,
		SessionDurationMs:    6000,
	}
	a = Fallback(best)
	assert.InDelta(t, 0.0, a.RiskScore, 1e-9)
	assert.True(t, a.RiskScore >= 0)
}

func TestFallbackBoundariesAreExact(t *testing.T) {
	// Two -0.1 adjustments: natural velocity and a long session. Without
	// rounding, 0.5-0.1-0.1 lands at 0.30000000000000004 and the derived
	// confidence slips just under the 0.4 challenge threshold.
	fv := features.FeatureVector{
		MotionCount:       15,
		AvgVelocity:       1.0,
		VelocityVariation: 0.3,
		SessionDurationMs: 6000,
	}

	a := Fallback(fv)

	assert.Equal(t, 0.3, a.RiskScore)
	assert.Equal(t, 0.4, a.Confidence)
	assert.False(t, a.NeedsChallenge)
	assert.True(t, a.IsHuman)
}

func TestAssessmentInvariants(t *testing.T) {
	vectors := []features.FeatureVector{
		{},
		{SessionDurationMs: 500},
		{MotionCount: 15, AvgVelocity: 1.0, VelocityVariation: 0.6, SessionDurationMs: 6000},
		{MotionCount: 3, AvgVelocity: 12, ClickCount: 8, ClickFrequency: 6, SessionDurationMs: 2000},
		{KeyCount: 20, AvgKeystrokeDuration: 700, SessionDurationMs: 4000},
	}

	for _, fv := range vectors {
		a := Fallback(fv)

		assert.GreaterOrEqual(t, a.RiskScore, 0.0)
		assert.LessOrEqual(t, a.RiskScore, 1.0)
		assert.GreaterOrEqual(t, a.Confidence, 0.0)
		assert.LessOrEqual(t, a.Confidence, 1.0)
		assert.Equal(t, math.Abs(0.5-a.RiskScore)*2, a.Confidence)
		assert.Equal(t, a.RiskScore > 0.7 || a.Confidence < 0.4, a.NeedsChallenge)
		assert.Equal(t, a.RiskScore < 0.6, a.IsHuman)
	}
}

func TestFallbackIsDeterministic(t *testing.T) {
	fv := features.FeatureVector{
		MotionCount:       8,
		AvgVelocity:       2.2,
		VelocityVariation: 0.3,
		ClickCount:        2,
		ClickFrequency:    0.5,
		SessionDurationMs: 4000,
	}

	first := Fallback(fv)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Fallback(fv))
	}
}

func TestScorePrefersWellFormedVerdict(t *testing.T) {
	fv := features.FeatureVector{SessionDurationMs: 500} // fallback would say 1.0

	a := Score(fv, &ClassifierVerdict{IsHuman: true, RiskScore: 0.25, Confidence: 0.9})

	assert.Equal(t, MethodMLModel, a.Method)
	assert.Equal(t, 0.25, a.RiskScore)
	// Confidence is always derived from the score, never taken verbatim.
	assert.Equal(t, 0.5, a.Confidence)
	assert.True(t, a.IsHuman)
}

func TestScoreRejectsMalformedVerdict(t *testing.T) {
	fv := features.FeatureVector{SessionDurationMs: 500}

	for _, verdict := range []*ClassifierVerdict{
		nil,
		{RiskScore: 1.5, Confidence: 0.5},
		{RiskScore: -0.1, Confidence: 0.5},
		{RiskScore: 0.5, Confidence: 1.2},
	} {
		a := Score(fv, verdict)
		assert.Equal(t, MethodFallback, a.Method)
	}
}
