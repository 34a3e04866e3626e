package analyze

import (
	"testing"

	"claimauditor/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func outcome(metric string, kind models.MetricKind, stated, actual, score float64, isGAAP bool) models.ClaimOutcome {
	a := actual
	s := score
	return models.ClaimOutcome{
		Claim: models.Claim{
			Metric:      metric,
			MetricKind:  kind,
			StatedValue: stated,
			IsGAAP:      isGAAP,
		},
		Verification: models.Verification{
			ActualValue:   &a,
			AccuracyScore: &s,
		},
	}
}

func TestAnalyzeRoundingBiasPattern(t *testing.T) {
	by := QuarterClaims{
		"Q1 2025": {
			outcome("revenue", models.MetricKindAbsolute, 105, 100, 0.95, true),
			outcome("net_income", models.MetricKindAbsolute, 52, 50, 0.96, true),
		},
		"Q2 2025": {
			outcome("revenue", models.MetricKindAbsolute, 110, 105, 0.95, true),
			outcome("net_income", models.MetricKindAbsolute, 53, 50, 0.94, true),
		},
		"Q3 2025": {
			outcome("revenue", models.MetricKindAbsolute, 115, 110, 0.95, true),
			outcome("net_income", models.MetricKindAbsolute, 40, 50, 0.80, true),
		},
	}

	patterns := Analyze(by)

	var found *models.Pattern
	for i := range patterns {
		if patterns[i].Kind == models.PatternConsistentRoundingUp {
			found = &patterns[i]
		}
	}
	require.NotNil(t, found)
	assert.InDelta(t, 5.0/6.0, found.Severity, 0.01)
}

func TestAnalyzeNoPatternsBelowThresholds(t *testing.T) {
	by := QuarterClaims{
		"Q1 2025": {outcome("revenue", models.MetricKindAbsolute, 100, 100, 1.0, true)},
	}
	patterns := Analyze(by)
	assert.Empty(t, patterns)
}

func TestAnalyzeMetricSwitchingPattern(t *testing.T) {
	by := QuarterClaims{
		"Q1 2025": {
			outcome("revenue", models.MetricKindAbsolute, 1, 1, 0.5, true),
			outcome("revenue", models.MetricKindAbsolute, 1, 1, 0.5, true),
		},
		"Q2 2025": {
			outcome("eps_diluted", models.MetricKindPerShare, 1, 1, 0.5, true),
			outcome("eps_diluted", models.MetricKindPerShare, 1, 1, 0.5, true),
		},
		"Q3 2025": {
			outcome("free_cash_flow", models.MetricKindAbsolute, 1, 1, 0.5, true),
			outcome("free_cash_flow", models.MetricKindAbsolute, 1, 1, 0.5, true),
		},
	}

	patterns := Analyze(by)
	var found *models.Pattern
	for i := range patterns {
		if patterns[i].Kind == models.PatternMetricSwitching {
			found = &patterns[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, 0.5, found.Severity)
}

func TestAnalyzeIncreasingInaccuracyPattern(t *testing.T) {
	by := QuarterClaims{
		"Q1 2025": {outcome("revenue", models.MetricKindAbsolute, 100, 100, 0.99, true)},
		"Q2 2025": {outcome("revenue", models.MetricKindAbsolute, 100, 100, 0.90, true)},
		"Q3 2025": {outcome("revenue", models.MetricKindAbsolute, 100, 100, 0.80, true)},
	}

	patterns := Analyze(by)
	var found *models.Pattern
	for i := range patterns {
		if patterns[i].Kind == models.PatternIncreasingInaccuracy {
			found = &patterns[i]
		}
	}
	require.NotNil(t, found)
	assert.InDelta(t, 0.19, found.Severity, 0.01)
}

func TestAnalyzeGAAPShiftingPattern(t *testing.T) {
	by := QuarterClaims{
		"Q1 2025": {
			outcome("revenue", models.MetricKindAbsolute, 1, 1, 0.5, true),
			outcome("eps_diluted", models.MetricKindPerShare, 1, 1, 0.5, true),
		},
		"Q2 2025": {
			outcome("revenue", models.MetricKindAbsolute, 1, 1, 0.5, false),
			outcome("eps_diluted", models.MetricKindPerShare, 1, 1, 0.5, false),
		},
	}

	patterns := Analyze(by)
	var found *models.Pattern
	for i := range patterns {
		if patterns[i].Kind == models.PatternGAAPNonGAAPShifting {
			found = &patterns[i]
		}
	}
	require.NotNil(t, found)
	assert.InDelta(t, 1.0, found.Severity, 0.01)
}

func TestAnalyzeSelectiveEmphasisPattern(t *testing.T) {
	growth := func(stated float64) models.ClaimOutcome {
		return outcome("revenue", models.MetricKindGrowthRate, stated, stated, 1.0, true)
	}
	by := QuarterClaims{
		"Q1 2025": {growth(5), growth(6), growth(7)},
		"Q2 2025": {growth(4), growth(3), growth(2)},
		"Q3 2025": {growth(8), growth(9), growth(10)},
	}

	patterns := Analyze(by)
	var found *models.Pattern
	for i := range patterns {
		if patterns[i].Kind == models.PatternSelectiveEmphasis {
			found = &patterns[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, 0.6, found.Severity)
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	by := QuarterClaims{
		"Q1 2025": {
			outcome("revenue", models.MetricKindAbsolute, 105, 100, 0.95, true),
			outcome("net_income", models.MetricKindAbsolute, 52, 50, 0.96, true),
		},
		"Q2 2025": {
			outcome("revenue", models.MetricKindAbsolute, 110, 105, 0.95, true),
			outcome("net_income", models.MetricKindAbsolute, 53, 50, 0.94, true),
		},
	}

	first := Analyze(by)
	second := Analyze(by)
	assert.Equal(t, first, second)
}
