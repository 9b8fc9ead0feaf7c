package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinstat/survcv/internal/results"
)

func TestClearLeaderDecidedByPrimaryMetric(t *testing.T) {
	aggregates := []results.AggregateMetric{
		{Variant: results.RandomSurvivalForest, MedianC: 0.83, MeanC: 0.83,
			CILower: 0.80, CIUpper: 0.86, SuccessfulSplits: 900},
		{Variant: results.ProportionalHazards, MedianC: 0.78, MeanC: 0.78,
			CILower: 0.75, CIUpper: 0.80, SuccessfulSplits: 950},
	}

	rationale, err := Select("lung", aggregates, nil, 0.005, 3)
	require.NoError(t, err)

	assert.Equal(t, results.RandomSurvivalForest, rationale.Chosen)
	assert.Equal(t, []string{RuleMedianC}, rationale.RulesApplied)
}

func TestTouchingCIsStayWithPrimaryMetric(t *testing.T) {
	// The runner-up's CI ends exactly where the leader's begins. Zero
	// overlap does not exceed the threshold, so no tie forms and the
	// cascade must not run.
	tests := []struct {
		name          string
		runnerUpUpper float64
	}{
		{"cis touch exactly", 0.80},
		{"overlap below threshold", 0.804},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			aggregates := []results.AggregateMetric{
				{Variant: results.RandomSurvivalForest, MedianC: 0.83, StdDevC: 0.020,
					CILower: 0.80, CIUpper: 0.86, SuccessfulSplits: 900},
				{Variant: results.ProportionalHazards, MedianC: 0.78, StdDevC: 0.010,
					CILower: 0.75, CIUpper: tt.runnerUpUpper, SuccessfulSplits: 950},
			}

			rationale, err := Select("lung", aggregates, nil, 0.005, 3)
			require.NoError(t, err)

			assert.Equal(t, results.RandomSurvivalForest, rationale.Chosen)
			assert.Equal(t, []string{RuleMedianC}, rationale.RulesApplied)
		})
	}
}

func TestOverlappingCIsDecidedByLowerStdDev(t *testing.T) {
	// A leads on median but B's CI overlaps within the threshold; A's lower
	// sd must decide, and the primary rule must not appear in the record.
	aggregates := []results.AggregateMetric{
		{Variant: results.RandomSurvivalForest, MedianC: 0.820, StdDevC: 0.015,
			CILower: 0.805, CIUpper: 0.835, SuccessfulSplits: 90},
		{Variant: results.GradientBoostedSurvival, MedianC: 0.815, StdDevC: 0.020,
			CILower: 0.800, CIUpper: 0.830, SuccessfulSplits: 90},
	}

	rationale, err := Select("lung", aggregates, nil, 0.005, 3)
	require.NoError(t, err)

	assert.Equal(t, results.RandomSurvivalForest, rationale.Chosen)
	assert.Equal(t, []string{RuleStdDev}, rationale.RulesApplied)
	assert.NotContains(t, rationale.RulesApplied, RuleMedianC)
}

func TestEqualStdDevDecidedByDispersion(t *testing.T) {
	aggregates := []results.AggregateMetric{
		{Variant: results.ProportionalHazards, MedianC: 0.80, StdDevC: 0.01,
			CILower: 0.79, CIUpper: 0.81, SuccessfulSplits: 50},
		{Variant: results.RandomSurvivalForest, MedianC: 0.80, StdDevC: 0.01,
			CILower: 0.79, CIUpper: 0.81, SuccessfulSplits: 50},
	}
	importances := map[results.Variant]results.ImportanceVector{
		// Forest spreads over four strong features, cox over one.
		results.RandomSurvivalForest: {"a": 0.25, "b": 0.25, "c": 0.25, "d": 0.25},
		results.ProportionalHazards:  {"a": 0.91, "b": 0.03, "c": 0.03, "d": 0.03},
	}

	rationale, err := Select("lung", aggregates, importances, 0.005, 3)
	require.NoError(t, err)

	assert.Equal(t, results.RandomSurvivalForest, rationale.Chosen)
	assert.Equal(t, []string{RuleStdDev, RuleFeatureDispersion}, rationale.RulesApplied)
}

func TestFullTieFallsBackAlphabetically(t *testing.T) {
	aggregates := []results.AggregateMetric{
		{Variant: results.RandomSurvivalForest, MedianC: 0.80, StdDevC: 0.01,
			CILower: 0.79, CIUpper: 0.81, SuccessfulSplits: 50},
		{Variant: results.GradientBoostedSurvival, MedianC: 0.80, StdDevC: 0.01,
			CILower: 0.79, CIUpper: 0.81, SuccessfulSplits: 50},
	}
	importances := map[results.Variant]results.ImportanceVector{
		results.RandomSurvivalForest:    {"a": 0.5, "b": 0.5},
		results.GradientBoostedSurvival: {"a": 0.5, "b": 0.5},
	}

	rationale, err := Select("lung", aggregates, importances, 0.005, 3)
	require.NoError(t, err)

	assert.Equal(t, results.GradientBoostedSurvival, rationale.Chosen,
		"gradient_boosted_survival sorts before random_survival_forest")
	assert.Equal(t,
		[]string{RuleStdDev, RuleFeatureDispersion, RuleAlphabetical},
		rationale.RulesApplied)
}

func TestVariantsBelowMinimumSplitsAreIneligible(t *testing.T) {
	aggregates := []results.AggregateMetric{
		{Variant: results.RandomSurvivalForest, MedianC: 0.90,
			CILower: 0.88, CIUpper: 0.92, SuccessfulSplits: 2},
		{Variant: results.ProportionalHazards, MedianC: 0.70,
			CILower: 0.68, CIUpper: 0.72, SuccessfulSplits: 80},
	}

	rationale, err := Select("lung", aggregates, nil, 0.005, 3)
	require.NoError(t, err)

	assert.Equal(t, results.ProportionalHazards, rationale.Chosen)
	require.Len(t, rationale.Candidates, 1)
}

func TestNoEligibleVariant(t *testing.T) {
	aggregates := []results.AggregateMetric{
		{Variant: results.ProportionalHazards, MedianC: 0.80, SuccessfulSplits: 1},
	}

	_, err := Select("lung", aggregates, nil, 0.005, 3)
	assert.ErrorIs(t, err, ErrNoEligibleVariant)
}

func TestDistantCIsDoNotJoinTheTie(t *testing.T) {
	// B's CI ends 0.05 below A's start: well outside the threshold, so the
	// cascade never runs even though medians are close.
	aggregates := []results.AggregateMetric{
		{Variant: results.RandomSurvivalForest, MedianC: 0.82, StdDevC: 0.02,
			CILower: 0.81, CIUpper: 0.83, SuccessfulSplits: 50},
		{Variant: results.ProportionalHazards, MedianC: 0.81, StdDevC: 0.01,
			CILower: 0.74, CIUpper: 0.76, SuccessfulSplits: 50},
	}

	rationale, err := Select("lung", aggregates, nil, 0.005, 3)
	require.NoError(t, err)

	assert.Equal(t, results.RandomSurvivalForest, rationale.Chosen)
	assert.Equal(t, []string{RuleMedianC}, rationale.RulesApplied)
}
