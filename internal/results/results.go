// Package results defines the record types exchanged between the evaluation
// engine's stages: per-unit split results, per-variant aggregates, importance
// vectors, and the selection rationale emitted at the end of a run.
package results

import (
	"math"
	"time"

	"github.com/clinstat/survcv/internal/stats"
)

// Variant identifies a survival model family. The set is closed: adding a
// family means adding a constant here and an adapter implementing it.
type Variant string

const (
	RandomSurvivalForest    Variant = "random_survival_forest"
	GradientBoostedSurvival Variant = "gradient_boosted_survival"
	ObliqueSurvivalForest   Variant = "oblique_survival_forest"
	ProportionalHazards     Variant = "proportional_hazards"
)

// AllVariants lists every known model family in stable order.
func AllVariants() []Variant {
	return []Variant{
		GradientBoostedSurvival,
		ObliqueSurvivalForest,
		ProportionalHazards,
		RandomSurvivalForest,
	}
}

// Valid reports whether v names a known model family.
func (v Variant) Valid() bool {
	switch v {
	case RandomSurvivalForest, GradientBoostedSurvival, ObliqueSurvivalForest, ProportionalHazards:
		return true
	}
	return false
}

// SplitResult is the outcome of evaluating one model variant on one split.
// Created once per (split, variant) unit and immutable afterwards.
type SplitResult struct {
	SplitID           int              `json:"split_id"`
	Variant           Variant          `json:"variant"`
	TimeDependentC    float64          `json:"time_dependent_c"`
	TimeIndependentC  float64          `json:"time_independent_c"`
	Importance        ImportanceVector `json:"importance,omitempty"`
	DroppedPredictors []string         `json:"dropped_predictors,omitempty"`
	ScoringTier       string           `json:"scoring_tier,omitempty"`
	Success           bool             `json:"success"`
	FailureReason     string           `json:"failure_reason,omitempty"`
	DurationMs        int64            `json:"duration_ms"`
}

// AggregateMetric summarizes concordance for one variant across its
// successful splits. Recomputed each run, never persisted alone.
type AggregateMetric struct {
	Variant          Variant `json:"variant"`
	MeanC            float64 `json:"mean_c"`
	MedianC          float64 `json:"median_c"`
	StdDevC          float64 `json:"sd_c"`
	CILower          float64 `json:"ci_lower"`
	CIUpper          float64 `json:"ci_upper"`
	Q25              float64 `json:"q25"`
	Q75              float64 `json:"q75"`
	SuccessfulSplits int     `json:"n_successful_splits"`
	TotalSplits      int     `json:"n_total_splits"`
}

// Summarize computes an AggregateMetric for one variant from its per-split
// time-dependent concordance values. NaN scores are excluded; the bootstrap
// CI is seeded for reproducibility.
func Summarize(variant Variant, scores []float64, totalSplits int, seed int64) AggregateMetric {
	valid := stats.Finite(scores)
	ci := stats.BootstrapCIWithSeed(valid, 0.95, seed)
	return AggregateMetric{
		Variant:          variant,
		MeanC:            stats.Mean(valid),
		MedianC:          stats.Median(valid),
		StdDevC:          stats.StdDev(valid),
		CILower:          ci.Lower,
		CIUpper:          ci.Upper,
		Q25:              stats.Quantile(valid, 0.25),
		Q75:              stats.Quantile(valid, 0.75),
		SuccessfulSplits: len(valid),
		TotalSplits:      totalSplits,
	}
}

// FeatureWeight pairs a feature with its final aggregated importance.
type FeatureWeight struct {
	Feature string  `json:"feature"`
	Weight  float64 `json:"normalized_importance"`
}

// SelectionRationale records which model was chosen for a cohort and the
// exact rule sequence that decided it. Persisted as an audit artifact.
type SelectionRationale struct {
	Cohort       string            `json:"cohort"`
	Chosen       Variant           `json:"chosen"`
	RulesApplied []string          `json:"rules_applied"`
	Candidates   []AggregateMetric `json:"candidates"`
}

// RecoveryTier identifies which fallback tier produced an outcome.
type RecoveryTier int

const (
	TierPrimary RecoveryTier = iota
	TierReduced
	TierMinimal
)

func (t RecoveryTier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierReduced:
		return "reduced"
	case TierMinimal:
		return "minimal"
	}
	return "unknown"
}

// EvaluationOutcome is the complete result of one cohort evaluation run.
type EvaluationOutcome struct {
	RunID              string                       `json:"run_id"`
	Cohort             string                       `json:"cohort"`
	Timestamp          time.Time                    `json:"timestamp"`
	Tier               RecoveryTier                 `json:"recovery_tier"`
	Aggregates         []AggregateMetric            `json:"aggregates"`
	SplitResults       []SplitResult                `json:"split_results,omitempty"`
	TopFeatures        []FeatureWeight              `json:"top_features"`
	VariantImportances map[Variant]ImportanceVector `json:"variant_importances,omitempty"`
	Rationale          SelectionRationale           `json:"rationale"`
	DurationMs         int64                        `json:"duration_ms"`
}

// SuccessRate returns the fraction of (split, variant) units that succeeded.
func (o *EvaluationOutcome) SuccessRate() float64 {
	if len(o.SplitResults) == 0 {
		return 0
	}
	ok := 0
	for _, sr := range o.SplitResults {
		if sr.Success {
			ok++
		}
	}
	return float64(ok) / float64(len(o.SplitResults))
}

// ScoresByVariant groups the time-dependent concordance of successful units
// per variant, preserving NaN-free values only.
func ScoresByVariant(splitResults []SplitResult) map[Variant][]float64 {
	out := make(map[Variant][]float64)
	for _, sr := range splitResults {
		if !sr.Success || math.IsNaN(sr.TimeDependentC) {
			continue
		}
		out[sr.Variant] = append(out[sr.Variant], sr.TimeDependentC)
	}
	return out
}
