// Package selector chooses the best model family for a cohort from the
// per-variant aggregate metrics, recording the exact rule sequence that
// decided the pick so every selection is auditable.
package selector

import (
	"errors"
	"sort"

	"github.com/clinstat/survcv/internal/results"
)

// Rule names recorded in the selection rationale.
const (
	RuleMedianC           = "median_c"
	RuleStdDev            = "stddev"
	RuleFeatureDispersion = "feature_dispersion"
	RuleAlphabetical      = "alphabetical"
)

// DispersionThreshold is the minimum normalized importance for a feature to
// count toward a variant's feature dispersion.
const DispersionThreshold = 0.1

// ErrNoEligibleVariant is returned when no variant reached the minimum
// number of successful splits.
var ErrNoEligibleVariant = errors.New("selector: no variant has enough successful splits")

// Select picks the winning variant for a cohort. The primary metric is the
// median concordance across successful splits. When another variant's CI
// overlaps the leader's by more than tieThreshold, the tie-break cascade
// runs: lower sd, then higher feature dispersion, then alphabetical name.
// Touching or merely near CIs stay with the primary metric. Only the rules
// that actually decided are recorded.
func Select(
	cohort string,
	aggregates []results.AggregateMetric,
	importances map[results.Variant]results.ImportanceVector,
	tieThreshold float64,
	minSuccessfulSplits int,
) (results.SelectionRationale, error) {
	eligible := make([]results.AggregateMetric, 0, len(aggregates))
	for _, a := range aggregates {
		if a.SuccessfulSplits >= minSuccessfulSplits {
			eligible = append(eligible, a)
		}
	}
	if len(eligible) == 0 {
		return results.SelectionRationale{}, ErrNoEligibleVariant
	}

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].MedianC != eligible[j].MedianC {
			return eligible[i].MedianC > eligible[j].MedianC
		}
		return eligible[i].Variant < eligible[j].Variant
	})

	leader := eligible[0]
	contenders := []results.AggregateMetric{leader}
	for _, a := range eligible[1:] {
		if ciOverlap(leader, a) > tieThreshold {
			contenders = append(contenders, a)
		}
	}

	rationale := results.SelectionRationale{
		Cohort:     cohort,
		Candidates: eligible,
	}

	if len(contenders) == 1 {
		rationale.Chosen = leader.Variant
		rationale.RulesApplied = []string{RuleMedianC}
		return rationale, nil
	}

	// The leader's CI zone holds more than one contender, so the primary
	// metric did not decide. Run the cascade.
	var rules []string

	rules = append(rules, RuleStdDev)
	contenders = minimize(contenders, func(a results.AggregateMetric) float64 { return a.StdDevC })
	if len(contenders) == 1 {
		rationale.Chosen = contenders[0].Variant
		rationale.RulesApplied = rules
		return rationale, nil
	}

	rules = append(rules, RuleFeatureDispersion)
	contenders = minimize(contenders, func(a results.AggregateMetric) float64 {
		return -float64(dispersion(importances[a.Variant]))
	})
	if len(contenders) == 1 {
		rationale.Chosen = contenders[0].Variant
		rationale.RulesApplied = rules
		return rationale, nil
	}

	// Purely a determinism guarantee: no statistical meaning.
	rules = append(rules, RuleAlphabetical)
	sort.Slice(contenders, func(i, j int) bool { return contenders[i].Variant < contenders[j].Variant })
	rationale.Chosen = contenders[0].Variant
	rationale.RulesApplied = rules
	return rationale, nil
}

// ciOverlap measures how much two confidence intervals overlap; negative
// values are the size of the gap between them.
func ciOverlap(a, b results.AggregateMetric) float64 {
	upper := a.CIUpper
	if b.CIUpper < upper {
		upper = b.CIUpper
	}
	lower := a.CILower
	if b.CILower > lower {
		lower = b.CILower
	}
	return upper - lower
}

// dispersion counts features whose normalized importance reaches the
// threshold.
func dispersion(iv results.ImportanceVector) int {
	count := 0
	for _, w := range iv.Normalized() {
		if w >= DispersionThreshold {
			count++
		}
	}
	return count
}

// minimize keeps the contenders attaining the minimum of the criterion.
func minimize(contenders []results.AggregateMetric, criterion func(results.AggregateMetric) float64) []results.AggregateMetric {
	best := criterion(contenders[0])
	for _, c := range contenders[1:] {
		if v := criterion(c); v < best {
			best = v
		}
	}
	kept := contenders[:0]
	for _, c := range contenders {
		if criterion(c) == best {
			kept = append(kept, c)
		}
	}
	return kept
}
