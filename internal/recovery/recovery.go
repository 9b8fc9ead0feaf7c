// Package recovery runs the cohort evaluation pipeline behind a fallback
// ladder. The primary tier runs the spec as written; when it cannot produce
// a selection, progressively smaller configurations are attempted so a run
// degrades instead of failing outright. The tier that produced the outcome
// is recorded on it.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clinstat/survcv/internal/aggregate"
	"github.com/clinstat/survcv/internal/artifacts"
	"github.com/clinstat/survcv/internal/config"
	"github.com/clinstat/survcv/internal/dataset"
	"github.com/clinstat/survcv/internal/results"
	"github.com/clinstat/survcv/internal/scheduler"
	"github.com/clinstat/survcv/internal/selector"
	"github.com/clinstat/survcv/internal/splits"
	"github.com/clinstat/survcv/internal/variants"
)

const (
	// reducedPredictorLimit caps the predictor set in the reduced tier.
	reducedPredictorLimit = 10

	// minimalSplitLimit caps the split count in the minimal tier.
	minimalSplitLimit = 10

	// minimalRowLimit caps the subsample size in the minimal tier.
	minimalRowLimit = 500
)

// tierPlan is one rung of the fallback ladder.
type tierPlan struct {
	tier       results.RecoveryTier
	variants   []config.VariantSpec
	predictors []string
	splits     int
	workers    int
	ds         *dataset.Dataset
}

// Pipeline evaluates one cohort end to end.
type Pipeline struct {
	spec *config.Spec
	ds   *dataset.Dataset
	repo artifacts.Repository

	listeners []scheduler.ProgressListener
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithArtifacts enables per-unit artifact persistence on every tier.
func WithArtifacts(repo artifacts.Repository) Option {
	return func(p *Pipeline) { p.repo = repo }
}

// WithProgress forwards scheduler progress events to the listener.
func WithProgress(listener scheduler.ProgressListener) Option {
	return func(p *Pipeline) { p.listeners = append(p.listeners, listener) }
}

// New creates a pipeline for the given validated spec and loaded dataset.
func New(spec *config.Spec, ds *dataset.Dataset, opts ...Option) *Pipeline {
	p := &Pipeline{spec: spec, ds: ds}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run attempts each tier in order and returns the first outcome produced.
// When every tier fails the causes of all attempts are joined.
func (p *Pipeline) Run(ctx context.Context) (*results.EvaluationOutcome, error) {
	var causes []error
	for _, plan := range p.ladder() {
		outcome, err := p.attempt(ctx, plan)
		if err == nil {
			return outcome, nil
		}
		causes = append(causes, fmt.Errorf("tier %s: %w", plan.tier, err))
		slog.Warn("evaluation tier failed, descending",
			"tier", plan.tier.String(),
			"cause", err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("all recovery tiers exhausted: %w", errors.Join(causes...))
}

// ladder builds the tier plans lazily so each descent sees the same inputs.
func (p *Pipeline) ladder() []tierPlan {
	primary := tierPlan{
		tier:       results.TierPrimary,
		variants:   p.spec.Variants,
		predictors: p.ds.PredictorNames(),
		splits:     p.spec.Splits,
		workers:    p.spec.Workers,
		ds:         p.ds,
	}

	// Reduced: one robust family, a trimmed predictor set, serial workers.
	reduced := tierPlan{
		tier:       results.TierReduced,
		variants:   []config.VariantSpec{{Name: string(results.RandomSurvivalForest)}},
		predictors: reducePredictors(p.ds, reducedPredictorLimit),
		splits:     p.spec.Splits,
		workers:    1,
		ds:         p.ds,
	}

	// Minimal: a small forest on a row subsample with few splits.
	minimalSplits := p.spec.Splits
	if minimalSplits > minimalSplitLimit {
		minimalSplits = minimalSplitLimit
	}
	minimal := tierPlan{
		tier: results.TierMinimal,
		variants: []config.VariantSpec{{
			Name:   string(results.RandomSurvivalForest),
			Params: map[string]any{"trees": 25, "max_depth": 3},
		}},
		predictors: reducePredictors(p.ds, reducedPredictorLimit),
		splits:     minimalSplits,
		workers:    1,
		ds:         subsample(p.ds, minimalRowLimit, p.spec.Seed),
	}

	return []tierPlan{primary, reduced, minimal}
}

// attempt runs one tier to completion.
func (p *Pipeline) attempt(ctx context.Context, plan tierPlan) (*results.EvaluationOutcome, error) {
	startTime := time.Now()

	adapters := make([]variants.Adapter, 0, len(plan.variants))
	for _, vs := range plan.variants {
		adapter, err := variants.New(results.Variant(vs.Name), vs.Params)
		if err != nil {
			return nil, fmt.Errorf("building adapter: %w", err)
		}
		adapters = append(adapters, adapter)
	}

	splitList, err := splits.Generate(plan.ds, plan.splits, p.spec.TrainFraction, p.spec.Seed)
	if err != nil {
		return nil, fmt.Errorf("generating splits: %w", err)
	}

	opts := []scheduler.Option{
		scheduler.WithWorkers(plan.workers),
		scheduler.WithPredictors(plan.predictors),
	}
	if p.repo != nil {
		opts = append(opts, scheduler.WithArtifacts(p.repo))
	}
	engine := scheduler.New(plan.ds, p.spec.Horizon, opts...)
	for _, l := range p.listeners {
		engine.OnProgress(l)
	}

	splitResults := engine.Run(ctx, splitList, adapters)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	aggregates := summarizeAll(splitResults, plan.splits, p.spec.Seed)
	perVariant := aggregate.PerVariant(splitResults)

	minSuccessful := p.spec.MinSuccessfulSplits
	if minSuccessful > plan.splits {
		minSuccessful = plan.splits
	}
	rationale, err := selector.Select(p.spec.Cohort, aggregates, perVariant, p.spec.TieThreshold, minSuccessful)
	if err != nil {
		return nil, err
	}

	combined := aggregate.Combine(splitResults, aggregates, aggregate.Method(p.spec.Aggregate))

	return &results.EvaluationOutcome{
		RunID:              uuid.NewString(),
		Cohort:             p.spec.Cohort,
		Timestamp:          startTime,
		Tier:               plan.tier,
		Aggregates:         aggregates,
		SplitResults:       splitResults,
		TopFeatures:        aggregate.TopFeatures(combined, p.spec.TopFeatures),
		VariantImportances: perVariant,
		Rationale:          rationale,
		DurationMs:         time.Since(startTime).Milliseconds(),
	}, nil
}

// summarizeAll builds per-variant aggregate metrics in stable variant order.
func summarizeAll(splitResults []results.SplitResult, totalSplits int, seed int64) []results.AggregateMetric {
	scores := results.ScoresByVariant(splitResults)

	names := make([]results.Variant, 0, len(scores))
	for v := range scores {
		names = append(names, v)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	aggregates := make([]results.AggregateMetric, 0, len(names))
	for _, v := range names {
		aggregates = append(aggregates, results.Summarize(v, scores[v], totalSplits, seed))
	}
	return aggregates
}

// reducePredictors keeps the most complete predictors, capped at limit.
// Completeness ties break alphabetically for determinism.
func reducePredictors(ds *dataset.Dataset, limit int) []string {
	type ranked struct {
		name     string
		complete float64
	}

	view := ds.FullView()
	all := make([]ranked, 0, len(ds.Columns))
	for ci, col := range ds.Columns {
		finite := 0
		for i := 0; i < view.Len(); i++ {
			if !math.IsNaN(view.Value(ci, i)) {
				finite++
			}
		}
		all = append(all, ranked{name: col.Name, complete: float64(finite) / float64(view.Len())})
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].complete != all[j].complete {
			return all[i].complete > all[j].complete
		}
		return all[i].name < all[j].name
	})

	if len(all) > limit {
		all = all[:limit]
	}
	names := make([]string, len(all))
	for i, r := range all {
		names[i] = r.name
	}
	return names
}

// subsample materializes a row subsample as a standalone dataset. Returns
// the original when it is already within the limit.
func subsample(ds *dataset.Dataset, maxRows int, seed int64) *dataset.Dataset {
	n := ds.NumRows()
	if n <= maxRows {
		return ds
	}

	rng := rand.New(rand.NewSource(seed))
	rows := rng.Perm(n)[:maxRows]
	sort.Ints(rows)

	times := make([]float64, len(rows))
	statuses := make([]int, len(rows))
	for i, r := range rows {
		times[i] = ds.Time[r]
		statuses[i] = ds.Status[r]
	}

	columns := make([]dataset.Column, len(ds.Columns))
	for ci, col := range ds.Columns {
		values := make([]float64, len(rows))
		for i, r := range rows {
			values[i] = col.Values[r]
		}
		columns[ci] = dataset.Column{Name: col.Name, Kind: col.Kind, Values: values, Levels: col.Levels}
	}

	sub, err := dataset.New(ds.Cohort, times, statuses, columns)
	if err != nil {
		// The parent dataset already passed validation, so a subsample of
		// it cannot fail construction.
		panic(fmt.Sprintf("recovery: subsampling dataset: %v", err))
	}
	return sub
}
