package verify

import (
	"fmt"
	"testing"

	"claimauditor/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePeriods struct {
	byKey map[string]*models.FinancialPeriod
}

func newFakePeriods() *fakePeriods {
	return &fakePeriods{byKey: map[string]*models.FinancialPeriod{}}
}

func key(companyID int64, year, quarter int) string {
	return fmt.Sprintf("%d-%d-%d", companyID, year, quarter)
}

func (f *fakePeriods) put(companyID int64, year, quarter int, p *models.FinancialPeriod) {
	f.byKey[key(companyID, year, quarter)] = p
}

func (f *fakePeriods) Period(companyID int64, year, quarter int) (*models.FinancialPeriod, bool) {
	p, ok := f.byKey[key(companyID, year, quarter)]
	return p, ok
}

func fl(v float64) *float64 { return &v }

func TestVerifyYoYGrowthVerified(t *testing.T) {
	periods := newFakePeriods()
	periods.put(1, 2025, 3, &models.FinancialPeriod{ID: 10, Revenue: fl(94.93e9)})
	periods.put(1, 2024, 3, &models.FinancialPeriod{ID: 9, Revenue: fl(85.777e9)})

	claim := models.Claim{
		Metric:           "revenue",
		MetricKind:       models.MetricKindGrowthRate,
		StatedValue:      10.7,
		Unit:             models.UnitPercent,
		ComparisonPeriod: models.ComparisonYearOverYear,
		IsGAAP:           true,
	}

	v := New(periods).Verify(claim, 1, 2025, 3)

	require.NotNil(t, v.ActualValue)
	assert.InDelta(t, 10.67, *v.ActualValue, 0.1)
	require.NotNil(t, v.AccuracyScore)
	assert.GreaterOrEqual(t, *v.AccuracyScore, 0.98)
	assert.Equal(t, models.VerdictVerified, v.Verdict)
}

func TestVerifyAbsoluteWithUnitConversion(t *testing.T) {
	periods := newFakePeriods()
	periods.put(1, 2025, 3, &models.FinancialPeriod{ID: 10, Revenue: fl(94.93e9)})

	claim := models.Claim{
		Metric:      "revenue",
		MetricKind:  models.MetricKindAbsolute,
		StatedValue: 94.9,
		Unit:        models.UnitUSDBillions,
		IsGAAP:      true,
	}

	v := New(periods).Verify(claim, 1, 2025, 3)
	require.NotNil(t, v.ActualValue)
	assert.InDelta(t, 94.93, *v.ActualValue, 0.01)
	assert.Equal(t, models.VerdictVerified, v.Verdict)
}

func TestVerifyDerivedMargin(t *testing.T) {
	periods := newFakePeriods()
	periods.put(1, 2025, 3, &models.FinancialPeriod{ID: 10, GrossProfit: fl(43.879e9), Revenue: fl(94.93e9)})

	claim := models.Claim{
		Metric:      "gross_margin",
		MetricKind:  models.MetricKindMargin,
		StatedValue: 46.0,
		Unit:        models.UnitPercent,
		IsGAAP:      true,
	}

	v := New(periods).Verify(claim, 1, 2025, 3)
	require.NotNil(t, v.ActualValue)
	assert.InDelta(t, 46.22, *v.ActualValue, 0.01)
	assert.Contains(t, []models.Verdict{models.VerdictVerified, models.VerdictApproximatelyCorrect}, v.Verdict)
}

func TestVerifyMisleadingOverstatement(t *testing.T) {
	periods := newFakePeriods()
	periods.put(1, 2025, 3, &models.FinancialPeriod{ID: 10, Revenue: fl(94.93e9)})
	periods.put(1, 2024, 3, &models.FinancialPeriod{ID: 9, Revenue: fl(85.777e9)})

	claim := models.Claim{
		Metric:           "revenue",
		MetricKind:       models.MetricKindGrowthRate,
		StatedValue:      15.0,
		Unit:             models.UnitPercent,
		ComparisonPeriod: models.ComparisonYearOverYear,
		IsGAAP:           true,
	}

	v := New(periods).Verify(claim, 1, 2025, 3)
	require.NotNil(t, v.AccuracyScore)
	assert.InDelta(t, 0.595, *v.AccuracyScore, 0.02)
	assert.Equal(t, models.VerdictIncorrect, v.Verdict)
}

func TestVerifyNonGAAPUpgradesToMisleading(t *testing.T) {
	periods := newFakePeriods()
	periods.put(1, 2025, 3, &models.FinancialPeriod{ID: 10, EPSDiluted: fl(1.46)})

	claim := models.Claim{
		Metric:      "eps_diluted",
		MetricKind:  models.MetricKindPerShare,
		StatedValue: 1.47,
		Unit:        models.UnitUSD,
		IsGAAP:      false,
	}

	v := New(periods).Verify(claim, 1, 2025, 3)
	require.NotNil(t, v.AccuracyScore)
	assert.InDelta(t, 0.993, *v.AccuracyScore, 0.01)
	assert.Equal(t, models.VerdictMisleading, v.Verdict)
	assert.Contains(t, v.Flags, models.FlagGAAPNonGAAPMismatch)
}

func TestVerifyUnresolvableMetricIsUnverifiable(t *testing.T) {
	periods := newFakePeriods()
	claim := models.Claim{Metric: "daily active users", MetricKind: models.MetricKindAbsolute, Unit: models.UnitRatio}

	v := New(periods).Verify(claim, 1, 2025, 3)
	assert.Equal(t, models.VerdictUnverifiable, v.Verdict)
	assert.Nil(t, v.ActualValue)
	assert.Nil(t, v.AccuracyScore)
}

func TestVerifyMissingComparisonPeriodIsUnverifiable(t *testing.T) {
	periods := newFakePeriods()
	periods.put(1, 2025, 3, &models.FinancialPeriod{ID: 10, Revenue: fl(94.93e9)})

	claim := models.Claim{
		Metric:           "revenue",
		MetricKind:       models.MetricKindGrowthRate,
		StatedValue:      10.7,
		Unit:             models.UnitPercent,
		ComparisonPeriod: models.ComparisonYearOverYear,
	}

	v := New(periods).Verify(claim, 1, 2025, 3)
	assert.Equal(t, models.VerdictUnverifiable, v.Verdict)
}

func TestVerifyGrowthWithNoComparisonPeriodTagIsUnverifiable(t *testing.T) {
	periods := newFakePeriods()
	periods.put(1, 2025, 3, &models.FinancialPeriod{ID: 10, Revenue: fl(94.93e9)})

	claim := models.Claim{
		Metric:           "revenue",
		MetricKind:       models.MetricKindGrowthRate,
		StatedValue:      10.7,
		Unit:             models.UnitPercent,
		ComparisonPeriod: models.ComparisonNone,
	}

	v := New(periods).Verify(claim, 1, 2025, 3)
	assert.Equal(t, models.VerdictUnverifiable, v.Verdict)
}

func TestVerifyQuarterWrapForSequentialComparison(t *testing.T) {
	periods := newFakePeriods()
	periods.put(1, 2025, 1, &models.FinancialPeriod{ID: 20, Revenue: fl(100)})
	periods.put(1, 2024, 4, &models.FinancialPeriod{ID: 19, Revenue: fl(90)})

	claim := models.Claim{
		Metric:           "revenue",
		MetricKind:       models.MetricKindGrowthRate,
		StatedValue:      11.11,
		Unit:             models.UnitPercent,
		ComparisonPeriod: models.ComparisonSequential,
		IsGAAP:           true,
	}

	v := New(periods).Verify(claim, 1, 2025, 1)
	require.NotNil(t, v.ActualValue)
	assert.InDelta(t, 11.11, *v.ActualValue, 0.1)
	assert.Equal(t, models.VerdictVerified, v.Verdict)
}

func TestVerifyBasisPointsStatedValue(t *testing.T) {
	periods := newFakePeriods()
	periods.put(1, 2025, 3, &models.FinancialPeriod{ID: 10, GrossProfit: fl(2), Revenue: fl(100)})

	claim := models.Claim{
		Metric:      "gross_margin",
		MetricKind:  models.MetricKindMargin,
		StatedValue: 200,
		Unit:        models.UnitBasisPoints,
		IsGAAP:      true,
	}

	v := New(periods).Verify(claim, 1, 2025, 3)
	require.NotNil(t, v.AccuracyScore)
	assert.Equal(t, 1.0, *v.AccuracyScore)
}

func TestVerifyGrowthRateUndefinedPreviousIsUnverifiable(t *testing.T) {
	periods := newFakePeriods()
	periods.put(1, 2025, 3, &models.FinancialPeriod{ID: 10, Revenue: fl(100)})
	periods.put(1, 2024, 3, &models.FinancialPeriod{ID: 9, Revenue: fl(0)})

	claim := models.Claim{
		Metric:           "revenue",
		MetricKind:       models.MetricKindGrowthRate,
		StatedValue:      10,
		Unit:             models.UnitPercent,
		ComparisonPeriod: models.ComparisonYearOverYear,
	}

	v := New(periods).Verify(claim, 1, 2025, 3)
	assert.Equal(t, models.VerdictUnverifiable, v.Verdict)
}

func TestVerifySegmentFlagsSegmentVsTotal(t *testing.T) {
	periods := newFakePeriods()
	periods.put(1, 2025, 3, &models.FinancialPeriod{ID: 10, Revenue: fl(100)})
	segment := "Cloud"

	claim := models.Claim{
		Metric:      "revenue",
		MetricKind:  models.MetricKindAbsolute,
		StatedValue: 100,
		Unit:        models.UnitUSD,
		IsGAAP:      true,
		Segment:     &segment,
	}

	v := New(periods).Verify(claim, 1, 2025, 3)
	assert.Contains(t, v.Flags, models.FlagSegmentVsTotal)
}
