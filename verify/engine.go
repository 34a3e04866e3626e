// Package verify implements the Verification Engine: reconciling one Claim
// against the FinancialPeriod data available for its company, producing a
// Verification. Grounded on the teacher's pure-evaluator style
// (notification-service/evaluator/price_evaluator.go) generalized to an
// 8-step reconciliation pipeline.
package verify

import (
	"fmt"

	"claimauditor/financial"
	"claimauditor/metrics"
	"claimauditor/models"
	"claimauditor/verdict"
)

// PeriodLookup resolves a FinancialPeriod by (company, year, quarter). It is
// implemented by the database package's period repository; tests supply an
// in-memory fake.
type PeriodLookup interface {
	Period(companyID int64, year, quarter int) (*models.FinancialPeriod, bool)
}

// Engine verifies claims against a PeriodLookup using a configurable set of
// scoring thresholds.
type Engine struct {
	Periods    PeriodLookup
	Thresholds verdict.Thresholds
}

// New constructs an Engine with the default thresholds.
func New(periods PeriodLookup) *Engine {
	return &Engine{Periods: periods, Thresholds: verdict.DefaultThresholds()}
}

// resolvedPeriods carries the period(s) consulted, for citing in the
// Verification record and explanation.
type resolvedPeriods struct {
	current    *models.FinancialPeriod
	comparison *models.FinancialPeriod
}

// Verify reconciles one claim against financial data for companyID, at the
// transcript's (transcriptYear, transcriptQuarter). It never returns an
// error for missing data or unresolved metrics — those yield an
// `unverifiable` Verification instead.
func (e *Engine) Verify(claim models.Claim, companyID int64, transcriptYear, transcriptQuarter int) models.Verification {
	v := models.Verification{
		ClaimID: claim.ID,
	}

	// Step 1: resolvability.
	if !metrics.CanResolve(claim.Metric) {
		v.Verdict = models.VerdictUnverifiable
		v.Explanation = fmt.Sprintf("metric %q is not in the registry and cannot be verified", claim.Metric)
		return v
	}

	// Step 2: period selection.
	rp, ok := e.selectPeriods(claim, companyID, transcriptYear, transcriptQuarter)
	if !ok {
		v.Verdict = models.VerdictUnverifiable
		v.Explanation = unresolvablePeriodExplanation(claim, transcriptYear, transcriptQuarter)
		return v
	}
	if rp.current != nil {
		v.PeriodIDs = append(v.PeriodIDs, rp.current.ID)
	}
	if rp.comparison != nil {
		v.PeriodIDs = append(v.PeriodIDs, rp.comparison.ID)
	}

	// Step 3: actual computation.
	actual, ok := e.computeActual(claim, rp)
	if !ok {
		v.Verdict = models.VerdictUnverifiable
		v.Explanation = fmt.Sprintf("required financial data for metric %q is missing for the consulted period(s)", claim.Metric)
		return v
	}

	// Step 4: stated normalization.
	stated := normalizeStated(claim)

	// Step 5: score.
	score := financial.AccuracyScore(stated, actual)

	// Step 6: flag detection.
	flags := detectFlags(claim, stated, actual, score)

	// Step 7: verdict.
	v.Verdict = verdict.AssignVerdict(true, score, flags, e.Thresholds)
	v.AccuracyScore = &score
	v.ActualValue = &actual
	v.Flags = flags

	// Step 8: explanation.
	v.Explanation = explanation(v.Verdict, stated, actual, claim.Metric)

	return v
}

func (e *Engine) selectPeriods(claim models.Claim, companyID int64, year, quarter int) (resolvedPeriods, bool) {
	var rp resolvedPeriods

	current, ok := e.Periods.Period(companyID, year, quarter)
	if !ok {
		return rp, false
	}
	rp.current = current

	switch claim.MetricKind {
	case models.MetricKindGrowthRate, models.MetricKindChange:
		cy, cq, resolvable := comparisonPeriodFor(claim.ComparisonPeriod, year, quarter)
		if !resolvable {
			return rp, false
		}
		comparison, ok := e.Periods.Period(companyID, cy, cq)
		if !ok {
			return rp, false
		}
		rp.comparison = comparison
		return rp, true

	case models.MetricKindMargin, models.MetricKindRatio, models.MetricKindAbsolute, models.MetricKindPerShare:
		return rp, true

	default:
		return rp, false
	}
}

// comparisonPeriodFor resolves the (year, quarter) of the comparison
// period. full_year is treated as an alias for year_over_year — see
// DESIGN.md's Open Question resolution.
func comparisonPeriodFor(cp models.ComparisonPeriod, year, quarter int) (int, int, bool) {
	switch cp {
	case models.ComparisonYearOverYear, models.ComparisonFullYear:
		y, q := models.PriorYear(year, quarter)
		return y, q, true
	case models.ComparisonQuarterOverQtr, models.ComparisonSequential:
		y, q := models.PriorSequential(year, quarter)
		return y, q, true
	case models.ComparisonCustom, models.ComparisonNone:
		return 0, 0, false
	default:
		return 0, 0, false
	}
}

func (e *Engine) computeActual(claim models.Claim, rp resolvedPeriods) (float64, bool) {
	switch claim.MetricKind {
	case models.MetricKindGrowthRate, models.MetricKindChange:
		cur := metrics.Resolve(claim.Metric, rp.current)
		prev := metrics.Resolve(claim.Metric, rp.comparison)
		if cur == nil || prev == nil {
			return 0, false
		}
		return financial.GrowthRate(*cur, *prev)

	case models.MetricKindMargin, models.MetricKindRatio:
		v := metrics.Resolve(claim.Metric, rp.current)
		if v == nil {
			return 0, false
		}
		return *v, true

	case models.MetricKindAbsolute, models.MetricKindPerShare:
		v := metrics.Resolve(claim.Metric, rp.current)
		if v == nil {
			return 0, false
		}
		return financial.NormalizeToUnit(*v, claim.Unit), true

	default:
		return 0, false
	}
}

// normalizeStated converts the claim's stated value into the same scale
// Verify compares against: basis_points is divided by 100 into percent,
// everything else is used as-is.
func normalizeStated(claim models.Claim) float64 {
	if claim.Unit == models.UnitBasisPoints {
		return claim.StatedValue / 100
	}
	return claim.StatedValue
}

func detectFlags(claim models.Claim, stated, actual, score float64) []models.MisleadingFlag {
	var flags []models.MisleadingFlag

	if score >= 0.90 && score < 0.98 && abs(stated) > abs(actual) {
		flags = append(flags, models.FlagRoundingBias)
	}

	if !claim.IsGAAP {
		flags = append(flags, models.FlagGAAPNonGAAPMismatch)
	}

	if claim.HasSegment() {
		flags = append(flags, models.FlagSegmentVsTotal)
	}

	return flags
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func unresolvablePeriodExplanation(claim models.Claim, year, quarter int) string {
	return fmt.Sprintf(
		"insufficient financial period data to verify %q (%s) for %s: required period(s) around %d Q%d are unavailable",
		claim.Metric, claim.MetricKind, claim.ComparisonPeriod, year, quarter,
	)
}

func explanation(v models.Verdict, stated, actual float64, metric string) string {
	diffPct, ok := financial.GrowthRate(stated, actual)
	if !ok {
		diffPct = 0
	}
	switch v {
	case models.VerdictVerified:
		return fmt.Sprintf("stated %.4g matches actual %.4g for %s (%.2f%% difference)", stated, actual, metric, diffPct)
	case models.VerdictApproximatelyCorrect:
		return fmt.Sprintf("stated %.4g is approximately consistent with actual %.4g for %s (%.2f%% difference)", stated, actual, metric, diffPct)
	case models.VerdictMisleading:
		return fmt.Sprintf("stated %.4g for %s versus actual %.4g (%.2f%% difference) is misleading: it falls in the misleading score band or carries a misleading-framing flag", stated, metric, actual, diffPct)
	case models.VerdictIncorrect:
		return fmt.Sprintf("stated %.4g for %s diverges materially from actual %.4g (%.2f%% difference)", stated, metric, actual, diffPct)
	default:
		return fmt.Sprintf("%s could not be verified against available financial data", metric)
	}
}
