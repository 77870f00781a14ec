package risk

import (
	"math"

	"github.com/humanproof/server/internal/features"
)

// Method tags which path produced an assessment.
type Method string

const (
	MethodMLModel  Method = "ml_model"
	MethodFallback Method = "fallback_algorithm"
)

// Decision thresholds. Hand-tuned constants carried over from the original
// deployment; they are configuration, not a calibrated model.
const (
	HumanThreshold               = 0.6
	ChallengeRiskThreshold       = 0.7
	ChallengeConfidenceThreshold = 0.4
)

// RiskAssessment is the scoring verdict for one feature vector.
type RiskAssessment struct {
	RiskScore      float64 `json:"riskScore"`
	Confidence     float64 `json:"confidence"`
	IsHuman        bool    `json:"isHuman"`
	NeedsChallenge bool    `json:"needsChallenge"`
	Method         Method  `json:"method"`
}

// ClassifierVerdict is the external model's answer.
type ClassifierVerdict struct {
	IsHuman    bool    `json:"is_human"`
	RiskScore  float64 `json:"risk_score"`
	Confidence float64 `json:"confidence"`
}

// wellFormed rejects verdicts whose scores fall outside [0,1].
func (v *ClassifierVerdict) wellFormed() bool {
	return v != nil &&
		v.RiskScore >= 0 && v.RiskScore <= 1 &&
		v.Confidence >= 0 && v.Confidence <= 1
}

// Score produces an assessment for the feature vector. A well-formed external
// verdict is authoritative; anything else runs the deterministic fallback.
func Score(f features.FeatureVector, external *ClassifierVerdict) RiskAssessment {
	if external.wellFormed() {
		return finalize(external.RiskScore, MethodMLModel)
	}
	return Fallback(f)
}

// Fallback is the rule-based scorer used when the classifier is unavailable.
// Starting from a neutral 0.5, each adjustment is independent and applied at
// most once; the result is clamped to [0,1].
func Fallback(f features.FeatureVector) RiskAssessment {
	score := 0.5

	if f.MotionCount == 0 {
		score += 0.3
	} else {
		if f.AvgVelocity > 0.1 && f.AvgVelocity < 3.0 {
			score -= 0.1
		}
		if f.AvgVelocity > 10 || f.AvgVelocity == 0 {
			score += 0.2
		}
		if f.VelocityVariation > 0.5 {
			score -= 0.1
		}
		if f.VelocityVariation < 0.1 {
			score += 0.2
		}
	}

	if f.ClickCount > 0 {
		if f.ClickFrequency > 0.1 && f.ClickFrequency < 2.0 {
			score -= 0.1
		}
		if f.ClickFrequency > 5.0 {
			score += 0.2
		}
	}

	if f.KeyCount > 0 {
		if f.AvgKeystrokeDuration > 50 && f.AvgKeystrokeDuration < 300 {
			score -= 0.1
		}
		if f.AvgKeystrokeDuration < 20 || f.AvgKeystrokeDuration > 500 {
			score += 0.1
		}
	}

	if f.SessionDurationMs > 5000 {
		score -= 0.1
	}
	if f.SessionDurationMs < 1000 {
		score += 0.2
	}

	return finalize(score, MethodFallback)
}

// finalize clamps the score and derives the dependent fields. Confidence is
// distance from the neutral midpoint scaled to [0,1].
func finalize(score float64, method Method) RiskAssessment {
	score = math.Max(0, math.Min(1, score))
	// The additive adjustments leave float residue (0.5-0.1-0.1 is not 0.3
	// exactly); snap to nanoscale so the thresholds behave as written.
	score = math.Round(score*1e9) / 1e9
	confidence := math.Abs(0.5-score) * 2

	return RiskAssessment{
		RiskScore:      score,
		Confidence:     confidence,
		IsHuman:        score < HumanThreshold,
		NeedsChallenge: score > ChallengeRiskThreshold || confidence < ChallengeConfidenceThreshold,
		Method:         method,
	}
}
