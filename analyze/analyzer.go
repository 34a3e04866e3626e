// Package analyze implements the Discrepancy Analyzer: five independent,
// deterministic cross-quarter pattern detectors operating on a company's
// verified claims grouped by quarter. Grounded on the teacher's pure
// evaluator style (notification-service/evaluator/price_evaluator.go),
// generalized from single-claim evaluation to whole-history pattern mining.
package analyze

import (
	"fmt"
	"sort"

	"claimauditor/models"
)

// QuarterClaims maps a quarter label ("Q{q} {year}") to the claims verified
// for that quarter, the analyzer's input shape.
type QuarterClaims map[string][]models.ClaimOutcome

// quarterKey pairs a label with its (year, quarter) for chronological sort.
type quarterKey struct {
	label   string
	year    int
	quarter int
}

func orderedQuarters(byQuarter QuarterClaims) []quarterKey {
	keys := make([]quarterKey, 0, len(byQuarter))
	for label := range byQuarter {
		quarter, year, ok := parseQuarterLabel(label)
		if !ok {
			continue
		}
		keys = append(keys, quarterKey{label: label, year: year, quarter: quarter})
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year < keys[j].year
		}
		return keys[i].quarter < keys[j].quarter
	})
	return keys
}

// parseQuarterLabel parses the "Q{q} {year}" label format models.QuarterLabel
// produces, so the analyzer can order quarters chronologically without
// requiring callers to pre-sort the input map.
func parseQuarterLabel(label string) (quarter, year int, ok bool) {
	n, err := fmt.Sscanf(label, "Q%d %d", &quarter, &year)
	if err != nil || n != 2 {
		return 0, 0, false
	}
	return quarter, year, true
}

// Analyze runs all five detectors, in a fixed order (rounding, switching,
// inaccuracy, GAAP, emphasis), and returns the patterns that fired. Given
// the same input it always returns the same output.
func Analyze(byQuarter QuarterClaims) []models.Pattern {
	var patterns []models.Pattern

	if p, ok := detectRoundingBias(byQuarter); ok {
		patterns = append(patterns, p)
	}
	if p, ok := detectMetricSwitching(byQuarter); ok {
		patterns = append(patterns, p)
	}
	if p, ok := detectIncreasingInaccuracy(byQuarter); ok {
		patterns = append(patterns, p)
	}
	if p, ok := detectGAAPShifting(byQuarter); ok {
		patterns = append(patterns, p)
	}
	if p, ok := detectSelectiveEmphasis(byQuarter); ok {
		patterns = append(patterns, p)
	}

	return patterns
}

func detectRoundingBias(byQuarter QuarterClaims) (models.Pattern, bool) {
	var total, favorable int
	affected := map[string]bool{}

	for label, outcomes := range byQuarter {
		for _, o := range outcomes {
			score := o.Verification.AccuracyScore
			if score == nil || *score <= 0 || *score >= 1 {
				continue
			}
			actual := o.Verification.ActualValue
			if actual == nil {
				continue
			}
			total++
			if o.Claim.StatedValue > *actual {
				favorable++
				affected[label] = true
			}
		}
	}

	if total < 4 {
		return models.Pattern{}, false
	}
	ratio := float64(favorable) / float64(total)
	if ratio <= 0.70 {
		return models.Pattern{}, false
	}

	return models.Pattern{
		Kind:             models.PatternConsistentRoundingUp,
		Severity:         ratio,
		Description:      fmt.Sprintf("%d of %d inexact claims (%.0f%%) stated a value more favorable than actual", favorable, total, ratio*100),
		AffectedQuarters: sortedKeys(affected),
		Evidence:         []string{fmt.Sprintf("%d/%d favorable claims across %d quarters", favorable, total, len(affected))},
	}, true
}

func detectMetricSwitching(byQuarter QuarterClaims) (models.Pattern, bool) {
	type topEntry struct {
		quarter string
		metric  string
	}
	var tops []topEntry
	distinctTop := map[string]bool{}
	quartersWithData := 0

	for _, qk := range orderedQuarters(byQuarter) {
		outcomes := byQuarter[qk.label]
		counts := map[string]int{}
		for _, o := range outcomes {
			counts[o.Claim.Metric]++
		}
		if len(counts) == 0 {
			continue
		}
		quartersWithData++
		top := argmaxMetric(counts)
		tops = append(tops, topEntry{quarter: qk.label, metric: top})
		distinctTop[top] = true
	}

	if len(distinctTop) < 3 || quartersWithData < 3 {
		return models.Pattern{}, false
	}

	var desc string
	var affected []string
	for _, te := range tops {
		desc += fmt.Sprintf("%s: %s; ", te.quarter, te.metric)
		affected = append(affected, te.quarter)
	}

	return models.Pattern{
		Kind:             models.PatternMetricSwitching,
		Severity:         0.5,
		Description:      desc,
		AffectedQuarters: affected,
		Evidence:         []string{fmt.Sprintf("%d distinct leading metrics across %d quarters", len(distinctTop), quartersWithData)},
	}, true
}

// argmaxMetric returns the metric with the highest count, breaking ties by
// lexical order for determinism.
func argmaxMetric(counts map[string]int) string {
	best := ""
	bestCount := -1
	names := sortedKeys(mapBoolFromCounts(counts))
	for _, name := range names {
		c := counts[name]
		if c > bestCount {
			best = name
			bestCount = c
		}
	}
	return best
}

func mapBoolFromCounts(counts map[string]int) map[string]bool {
	m := make(map[string]bool, len(counts))
	for k := range counts {
		m[k] = true
	}
	return m
}

func detectIncreasingInaccuracy(byQuarter QuarterClaims) (models.Pattern, bool) {
	var means []float64
	var labels []string

	for _, qk := range orderedQuarters(byQuarter) {
		outcomes := byQuarter[qk.label]
		sum := 0.0
		n := 0
		for _, o := range outcomes {
			if o.Verification.AccuracyScore == nil {
				continue
			}
			sum += *o.Verification.AccuracyScore
			n++
		}
		if n == 0 {
			continue
		}
		means = append(means, sum/float64(n))
		labels = append(labels, qk.label)
	}

	if len(means) < 3 {
		return models.Pattern{}, false
	}
	first := means[0]
	last := means[len(means)-1]
	if last-first > -0.05 {
		return models.Pattern{}, false
	}
	severity := first - last
	if severity < 0 {
		severity = -severity
	}

	return models.Pattern{
		Kind:             models.PatternIncreasingInaccuracy,
		Severity:         severity,
		Description:      fmt.Sprintf("mean claim accuracy declined from %.2f (%s) to %.2f (%s)", first, labels[0], last, labels[len(labels)-1]),
		AffectedQuarters: labels,
		Evidence:         []string{fmt.Sprintf("first=%.3f last=%.3f delta=%.3f", first, last, last-first)},
	}, true
}

func detectGAAPShifting(byQuarter QuarterClaims) (models.Pattern, bool) {
	var ratios []float64
	var labels []string

	for _, qk := range orderedQuarters(byQuarter) {
		outcomes := byQuarter[qk.label]
		if len(outcomes) == 0 {
			continue
		}
		nonGAAP := 0
		for _, o := range outcomes {
			if !o.Claim.IsGAAP {
				nonGAAP++
			}
		}
		ratios = append(ratios, float64(nonGAAP)/float64(len(outcomes)))
		labels = append(labels, qk.label)
	}

	if len(ratios) < 2 {
		return models.Pattern{}, false
	}

	minR, maxR := ratios[0], ratios[0]
	for _, r := range ratios {
		if r < minR {
			minR = r
		}
		if r > maxR {
			maxR = r
		}
	}
	if maxR-minR <= 0.30 {
		return models.Pattern{}, false
	}

	return models.Pattern{
		Kind:             models.PatternGAAPNonGAAPShifting,
		Severity:         maxR - minR,
		Description:      fmt.Sprintf("non-GAAP claim share ranged from %.0f%% to %.0f%% across quarters", minR*100, maxR*100),
		AffectedQuarters: labels,
		Evidence:         []string{fmt.Sprintf("min=%.2f max=%.2f spread=%.2f", minR, maxR, maxR-minR)},
	}, true
}

func detectSelectiveEmphasis(byQuarter QuarterClaims) (models.Pattern, bool) {
	var biasedQuarters []string

	for _, qk := range orderedQuarters(byQuarter) {
		outcomes := byQuarter[qk.label]
		pos, neg := 0, 0
		for _, o := range outcomes {
			if o.Claim.MetricKind != models.MetricKindGrowthRate {
				continue
			}
			switch {
			case o.Claim.StatedValue > 0:
				pos++
			case o.Claim.StatedValue < 0:
				neg++
			}
		}
		if pos+neg <= 2 {
			continue
		}
		if float64(pos)/float64(pos+neg) > 0.90 {
			biasedQuarters = append(biasedQuarters, qk.label)
		}
	}

	if len(biasedQuarters) < 2 {
		return models.Pattern{}, false
	}

	return models.Pattern{
		Kind:             models.PatternSelectiveEmphasis,
		Severity:         0.6,
		Description:      fmt.Sprintf("positive growth-rate claims dominate in %d quarters: %v", len(biasedQuarters), biasedQuarters),
		AffectedQuarters: biasedQuarters,
		Evidence:         []string{fmt.Sprintf("%d quarters with >90%% positive-framed growth claims", len(biasedQuarters))},
	}, true
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
