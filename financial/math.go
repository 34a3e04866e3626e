// Package financial implements the pure numeric primitives the verification
// engine builds on: growth rates, margins, unit normalization, and accuracy
// scoring. All arithmetic runs through shopspring/decimal, the way
// stock_cache.go computes price change percentages, to avoid float drift
// accumulating across a quarter of claims.
package financial

import (
	"claimauditor/models"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
	zero    = decimal.Zero
)

// GrowthRate returns ((current - previous) / |previous|) * 100, the percent
// change from previous to current. Undefined (ok=false) when previous is 0.
func GrowthRate(current, previous float64) (value float64, ok bool) {
	prev := decimal.NewFromFloat(previous)
	if prev.IsZero() {
		return 0, false
	}
	cur := decimal.NewFromFloat(current)
	diff := cur.Sub(prev)
	rate := diff.Div(prev.Abs()).Mul(hundred)
	f, _ := rate.Float64()
	return f, true
}

// Margin returns (numerator / denominator) * 100. Undefined (ok=false) when
// denominator is 0.
func Margin(numerator, denominator float64) (value float64, ok bool) {
	den := decimal.NewFromFloat(denominator)
	if den.IsZero() {
		return 0, false
	}
	num := decimal.NewFromFloat(numerator)
	m := num.Div(den).Mul(hundred)
	f, _ := m.Float64()
	return f, true
}

// NormalizeToUnit converts a raw value expressed in native dollars into the
// caller's declared unit.
func NormalizeToUnit(rawValueInNativeDollars float64, unit models.Unit) float64 {
	v := decimal.NewFromFloat(rawValueInNativeDollars)
	switch unit {
	case models.UnitUSDBillions:
		v = v.Div(decimal.New(1, 9))
	case models.UnitUSDMillions:
		v = v.Div(decimal.New(1, 6))
	case models.UnitBasisPoints:
		v = v.Div(decimal.NewFromInt(100))
	case models.UnitUSD, models.UnitPercent, models.UnitRatio, models.UnitShares:
		// identity
	}
	f, _ := v.Float64()
	return f
}

// DenormalizeFromUnit is the inverse of NormalizeToUnit: it converts a value
// expressed in the claim's declared unit back into native dollars.
func DenormalizeFromUnit(valueInUnit float64, unit models.Unit) float64 {
	v := decimal.NewFromFloat(valueInUnit)
	switch unit {
	case models.UnitUSDBillions:
		v = v.Mul(decimal.New(1, 9))
	case models.UnitUSDMillions:
		v = v.Mul(decimal.New(1, 6))
	case models.UnitBasisPoints:
		v = v.Mul(decimal.NewFromInt(100))
	case models.UnitUSD, models.UnitPercent, models.UnitRatio, models.UnitShares:
		// identity
	}
	f, _ := v.Float64()
	return f
}

// AccuracyScore returns max(0, 1 - |stated - actual| / |actual|), clamped to
// [0,1]. When actual is 0, returns 1.0 iff stated is also 0, else 0.0.
func AccuracyScore(stated, actual float64) float64 {
	act := decimal.NewFromFloat(actual)
	st := decimal.NewFromFloat(stated)
	if act.IsZero() {
		if st.IsZero() {
			return 1.0
		}
		return 0.0
	}
	diff := st.Sub(act).Abs()
	ratio := diff.Div(act.Abs())
	score := one.Sub(ratio)
	if score.LessThan(zero) {
		score = zero
	}
	if score.GreaterThan(one) {
		score = one
	}
	f, _ := score.Float64()
	return f
}
