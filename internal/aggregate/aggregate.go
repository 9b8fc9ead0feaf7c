// Package aggregate combines per-unit importance vectors into a single
// cross-variant feature ranking, weighting each model family by its relative
// concordance so better-performing families contribute more.
package aggregate

import (
	"sort"

	"github.com/clinstat/survcv/internal/results"
	"github.com/clinstat/survcv/internal/stats"
)

// Method selects how per-split combined vectors are pooled across splits.
type Method string

const (
	MethodMean   Method = "mean"
	MethodMedian Method = "median"
)

// RelativeWeights computes each variant's performance weight:
// meanC / max(meanC) scaled by the variant count, so the best variant's
// weight equals the number of variants and the rest scale down
// proportionally. An empty map is returned when no variant has positive
// mean concordance.
func RelativeWeights(aggregates []results.AggregateMetric) map[results.Variant]float64 {
	maxMean := 0.0
	for _, a := range aggregates {
		if a.MeanC > maxMean {
			maxMean = a.MeanC
		}
	}
	weights := make(map[results.Variant]float64, len(aggregates))
	if maxMean <= 0 {
		return weights
	}
	count := float64(len(aggregates))
	for _, a := range aggregates {
		weights[a.Variant] = a.MeanC / maxMean * count
	}
	return weights
}

// Combine produces the final normalized importance vector from the run's
// split results. Per unit: normalize the raw vector and scale it by the
// variant's relative weight. Per split: sum the scaled vectors across
// variants. Across splits: pool per-feature with the given method. The
// pooled vector is normalized once more so the output sums to 1.
func Combine(splitResults []results.SplitResult, aggregates []results.AggregateMetric, method Method) results.ImportanceVector {
	weights := RelativeWeights(aggregates)

	perSplit := make(map[int]results.ImportanceVector)
	for _, sr := range splitResults {
		if !sr.Success || len(sr.Importance) == 0 {
			continue
		}
		weight, ok := weights[sr.Variant]
		if !ok {
			continue
		}
		combined := perSplit[sr.SplitID]
		if combined == nil {
			combined = make(results.ImportanceVector)
			perSplit[sr.SplitID] = combined
		}
		combined.Add(sr.Importance.Normalized().Scaled(weight))
	}

	if len(perSplit) == 0 {
		return results.ImportanceVector{}
	}

	// Pool per feature. A feature absent from a split contributed nothing
	// there, so it pools as zero for that split.
	features := make(map[string]bool)
	for _, vec := range perSplit {
		for name := range vec {
			features[name] = true
		}
	}

	pooled := make(results.ImportanceVector, len(features))
	values := make([]float64, 0, len(perSplit))
	for name := range features {
		values = values[:0]
		for _, vec := range perSplit {
			values = append(values, vec[name])
		}
		switch method {
		case MethodMedian:
			pooled[name] = stats.Median(values)
		default:
			pooled[name] = stats.Mean(values)
		}
	}

	return pooled.Normalized()
}

// PerVariant pools each variant's normalized per-unit vectors across its
// successful splits with an unweighted mean, then normalizes. Used for the
// per-variant feature tables and the selector's dispersion rule.
func PerVariant(splitResults []results.SplitResult) map[results.Variant]results.ImportanceVector {
	sums := make(map[results.Variant]results.ImportanceVector)
	counts := make(map[results.Variant]int)
	for _, sr := range splitResults {
		if !sr.Success || len(sr.Importance) == 0 {
			continue
		}
		sum := sums[sr.Variant]
		if sum == nil {
			sum = make(results.ImportanceVector)
			sums[sr.Variant] = sum
		}
		sum.Add(sr.Importance.Normalized())
		counts[sr.Variant]++
	}

	out := make(map[results.Variant]results.ImportanceVector, len(sums))
	for variant, sum := range sums {
		out[variant] = sum.Scaled(1 / float64(counts[variant])).Normalized()
	}
	return out
}

// TopFeatures returns the n highest-weighted features in descending weight
// order. Equal weights order alphabetically so output is reproducible.
func TopFeatures(iv results.ImportanceVector, n int) []results.FeatureWeight {
	ranked := make([]results.FeatureWeight, 0, len(iv))
	for name, weight := range iv {
		ranked = append(ranked, results.FeatureWeight{Feature: name, Weight: weight})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Weight != ranked[j].Weight {
			return ranked[i].Weight > ranked[j].Weight
		}
		return ranked[i].Feature < ranked[j].Feature
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
