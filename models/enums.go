package models

// MetricKind classifies the shape of the numeric value a Claim states.
type MetricKind string

const (
	MetricKindAbsolute   MetricKind = "absolute"
	MetricKindGrowthRate MetricKind = "growth_rate"
	MetricKindMargin     MetricKind = "margin"
	MetricKindRatio      MetricKind = "ratio"
	MetricKindChange     MetricKind = "change"
	MetricKindPerShare   MetricKind = "per_share"
)

func (k MetricKind) Valid() bool {
	switch k {
	case MetricKindAbsolute, MetricKindGrowthRate, MetricKindMargin, MetricKindRatio, MetricKindChange, MetricKindPerShare:
		return true
	}
	return false
}

// Unit is the declared unit a stated Claim value is expressed in.
type Unit string

const (
	UnitUSD           Unit = "usd"
	UnitUSDMillions   Unit = "usd_millions"
	UnitUSDBillions   Unit = "usd_billions"
	UnitPercent       Unit = "percent"
	UnitBasisPoints   Unit = "basis_points"
	UnitRatio         Unit = "ratio"
	UnitShares        Unit = "shares"
)

func (u Unit) Valid() bool {
	switch u {
	case UnitUSD, UnitUSDMillions, UnitUSDBillions, UnitPercent, UnitBasisPoints, UnitRatio, UnitShares:
		return true
	}
	return false
}

// ComparisonPeriod tags which prior period a growth/change Claim is relative to.
type ComparisonPeriod string

const (
	ComparisonYearOverYear    ComparisonPeriod = "year_over_year"
	ComparisonQuarterOverQtr  ComparisonPeriod = "quarter_over_quarter"
	ComparisonSequential      ComparisonPeriod = "sequential"
	ComparisonFullYear        ComparisonPeriod = "full_year"
	ComparisonCustom          ComparisonPeriod = "custom"
	ComparisonNone            ComparisonPeriod = "none"
)

func (c ComparisonPeriod) Valid() bool {
	switch c {
	case ComparisonYearOverYear, ComparisonQuarterOverQtr, ComparisonSequential, ComparisonFullYear, ComparisonCustom, ComparisonNone:
		return true
	}
	return false
}

// Verdict is the outcome of reconciling one Claim against financial data.
type Verdict string

const (
	VerdictVerified             Verdict = "verified"
	VerdictApproximatelyCorrect Verdict = "approximately_correct"
	VerdictMisleading           Verdict = "misleading"
	VerdictIncorrect            Verdict = "incorrect"
	VerdictUnverifiable         Verdict = "unverifiable"
)

// MisleadingFlag is a specific reason a Verification was flagged as suspect.
type MisleadingFlag string

const (
	FlagGAAPNonGAAPMismatch  MisleadingFlag = "gaap_nongaap_mismatch"
	FlagCherryPickedPeriod   MisleadingFlag = "cherry_picked_period"
	FlagSegmentVsTotal       MisleadingFlag = "segment_vs_total"
	FlagRoundingBias         MisleadingFlag = "rounding_bias"
	FlagMisleadingComparison MisleadingFlag = "misleading_comparison"
	FlagOmitsContext         MisleadingFlag = "omits_context"
)

// substantive flags trigger the verdict upgrade rule in verdict.AssignVerdict.
var substantiveFlags = map[MisleadingFlag]bool{
	FlagRoundingBias:        true,
	FlagGAAPNonGAAPMismatch: true,
	FlagSegmentVsTotal:      true,
	FlagMisleadingComparison: true,
}

// IsSubstantive reports whether the flag participates in the verdict upgrade rule.
func (f MisleadingFlag) IsSubstantive() bool {
	return substantiveFlags[f]
}

// PatternKind identifies which cross-quarter detector produced a Pattern.
type PatternKind string

const (
	PatternConsistentRoundingUp PatternKind = "consistent_rounding_up"
	PatternMetricSwitching      PatternKind = "metric_switching"
	PatternIncreasingInaccuracy PatternKind = "increasing_inaccuracy"
	PatternGAAPNonGAAPShifting  PatternKind = "gaap_nongaap_shifting"
	PatternSelectiveEmphasis    PatternKind = "selective_emphasis"
)
