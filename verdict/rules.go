// Package verdict implements the pure verdict-classification and
// trust-score rules: (score, flag-set) -> verdict, and verdict-counts ->
// trust score. Grounded on the pure evaluator functions in
// notification-service/evaluator/price_evaluator.go — no I/O, no state.
package verdict

import (
	"claimauditor/models"
)

// Thresholds configures the score bands AssignVerdict uses.
type Thresholds struct {
	TolVerified    float64
	TolApproximate float64
	ThrMisleading  float64
}

// DefaultThresholds returns the standard tolerance bands: within 2% is
// verified, within 10% is approximately correct, within 25% is misleading,
// and beyond 25% is incorrect.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TolVerified:    0.02,
		TolApproximate: 0.10,
		ThrMisleading:  0.25,
	}
}

// AssignVerdict classifies a (score, flags) pair into a Verdict. Score must
// be in [0,1]. If hasActual is false (no actual value could be computed),
// the verdict is always unverifiable regardless of score/flags.
func AssignVerdict(hasActual bool, score float64, flags []models.MisleadingFlag, t Thresholds) models.Verdict {
	if !hasActual {
		return models.VerdictUnverifiable
	}

	base := baseVerdict(score, t)

	if base == models.VerdictVerified || base == models.VerdictApproximatelyCorrect {
		if hasSubstantiveFlag(flags) {
			return models.VerdictMisleading
		}
	}
	return base
}

func baseVerdict(score float64, t Thresholds) models.Verdict {
	switch {
	case score >= 1-t.TolVerified:
		return models.VerdictVerified
	case score >= 1-t.TolApproximate:
		return models.VerdictApproximatelyCorrect
	case score >= 1-t.ThrMisleading:
		return models.VerdictMisleading
	default:
		return models.VerdictIncorrect
	}
}

func hasSubstantiveFlag(flags []models.MisleadingFlag) bool {
	for _, f := range flags {
		if f.IsSubstantive() {
			return true
		}
	}
	return false
}

// VerdictCounts tallies verifications by verdict, the input to TrustScore.
type VerdictCounts struct {
	Verified             int
	ApproximatelyCorrect int
	Misleading           int
	Incorrect            int
	Unverifiable         int
}

// TrustScore aggregates a verdict distribution into a [0,100] score.
// Unverifiable claims are excluded from the denominator. With no verifiable
// claims, returns 50 (neutral).
func TrustScore(c VerdictCounts) float64 {
	verifiable := c.Verified + c.ApproximatelyCorrect + c.Misleading + c.Incorrect
	if verifiable == 0 {
		return 50
	}
	raw := (1.0*float64(c.Verified) +
		0.7*float64(c.ApproximatelyCorrect) -
		0.3*float64(c.Misleading) -
		1.0*float64(c.Incorrect)) / float64(verifiable)

	score := (raw + 1) * 50
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}
