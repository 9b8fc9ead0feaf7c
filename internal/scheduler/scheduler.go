// Package scheduler dispatches evaluation units over a bounded worker pool.
// One unit is the fit/predict/score of a single model family on a single
// split. Units are independent: a unit's failure is captured at the unit
// boundary and never aborts its siblings.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/clinstat/survcv/internal/artifacts"
	"github.com/clinstat/survcv/internal/concordance"
	"github.com/clinstat/survcv/internal/dataset"
	"github.com/clinstat/survcv/internal/results"
	"github.com/clinstat/survcv/internal/splits"
	"github.com/clinstat/survcv/internal/variants"
)

// EventType represents the type of progress event.
type EventType string

const (
	EventRunStart     EventType = "run_start"
	EventRunComplete  EventType = "run_complete"
	EventUnitStart    EventType = "unit_start"
	EventUnitComplete EventType = "unit_complete"
)

// ProgressEvent is a progress update emitted during a run.
type ProgressEvent struct {
	EventType  EventType
	SplitID    int
	Variant    results.Variant
	UnitNum    int
	TotalUnits int
	Success    bool
	DurationMs int64
}

// ProgressListener receives progress updates. Listeners are invoked from
// worker goroutines and must be safe for concurrent use.
type ProgressListener func(event ProgressEvent)

// Engine evaluates (split, variant) units against a shared read-only dataset.
type Engine struct {
	ds         *dataset.Dataset
	horizon    float64
	workers    int
	predictors []string

	repo artifacts.Repository

	progressMu sync.Mutex
	listeners  []ProgressListener
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers sets the worker pool size.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithArtifacts enables per-unit result persistence.
func WithArtifacts(repo artifacts.Repository) Option {
	return func(e *Engine) { e.repo = repo }
}

// WithPredictors restricts evaluation to a subset of the dataset's
// predictor columns. The default is every predictor column.
func WithPredictors(names []string) Option {
	return func(e *Engine) { e.predictors = names }
}

// New creates an engine for the given dataset and prediction horizon.
func New(ds *dataset.Dataset, horizon float64, opts ...Option) *Engine {
	e := &Engine{
		ds:      ds,
		horizon: horizon,
		workers: 4,
	}
	for _, o := range opts {
		o(e)
	}
	if e.predictors == nil {
		e.predictors = ds.PredictorNames()
	}
	return e
}

// OnProgress registers a progress listener.
func (e *Engine) OnProgress(listener ProgressListener) {
	e.progressMu.Lock()
	defer e.progressMu.Unlock()
	e.listeners = append(e.listeners, listener)
}

func (e *Engine) notifyProgress(event ProgressEvent) {
	e.progressMu.Lock()
	listeners := make([]ProgressListener, len(e.listeners))
	copy(listeners, e.listeners)
	e.progressMu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}

// effectiveWorkers caps the pool below the machine's core count so that
// outer parallelism never oversubscribes; adapters fit single-threaded.
func (e *Engine) effectiveWorkers() int {
	workers := e.workers
	if max := runtime.NumCPU() - 1; workers > max {
		workers = max
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}

// Run evaluates every (split, adapter) pair and returns one SplitResult per
// unit, ordered by split then adapter. The context bounds the whole run:
// units not yet started when it is cancelled are recorded as failed.
func (e *Engine) Run(ctx context.Context, splitList []splits.Split, adapters []variants.Adapter) []results.SplitResult {
	startTime := time.Now()
	totalUnits := len(splitList) * len(adapters)

	e.notifyProgress(ProgressEvent{
		EventType:  EventRunStart,
		TotalUnits: totalUnits,
	})

	type indexed struct {
		index  int
		result results.SplitResult
	}

	resultChan := make(chan indexed, totalUnits)
	sem := semaphore.NewWeighted(int64(e.effectiveWorkers()))

	var wg sync.WaitGroup
	for si, sp := range splitList {
		for ai, adapter := range adapters {
			wg.Add(1)
			idx := si*len(adapters) + ai
			go func(idx int, sp splits.Split, adapter variants.Adapter) {
				defer wg.Done()

				if err := sem.Acquire(ctx, 1); err != nil {
					resultChan <- indexed{index: idx, result: results.SplitResult{
						SplitID:       sp.ID,
						Variant:       adapter.Variant(),
						FailureReason: err.Error(),
					}}
					return
				}
				defer sem.Release(1)

				e.notifyProgress(ProgressEvent{
					EventType:  EventUnitStart,
					SplitID:    sp.ID,
					Variant:    adapter.Variant(),
					UnitNum:    idx + 1,
					TotalUnits: totalUnits,
				})

				result := e.evaluateUnit(ctx, sp, adapter)
				e.persistUnit(result)
				resultChan <- indexed{index: idx, result: result}

				e.notifyProgress(ProgressEvent{
					EventType:  EventUnitComplete,
					SplitID:    sp.ID,
					Variant:    adapter.Variant(),
					UnitNum:    idx + 1,
					TotalUnits: totalUnits,
					Success:    result.Success,
					DurationMs: result.DurationMs,
				})
			}(idx, sp, adapter)
		}
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	collected := make([]results.SplitResult, totalUnits)
	for res := range resultChan {
		collected[res.index] = res.result
	}

	e.notifyProgress(ProgressEvent{
		EventType:  EventRunComplete,
		TotalUnits: totalUnits,
		DurationMs: time.Since(startTime).Milliseconds(),
	})

	return collected
}

// evaluateUnit runs one unit to completion. Panics in fit, predict,
// importance, or scoring are converted into failed results.
func (e *Engine) evaluateUnit(ctx context.Context, sp splits.Split, adapter variants.Adapter) (result results.SplitResult) {
	startTime := time.Now()
	result = results.SplitResult{
		SplitID: sp.ID,
		Variant: adapter.Variant(),
	}

	defer func() {
		result.DurationMs = time.Since(startTime).Milliseconds()
		if r := recover(); r != nil {
			result.Success = false
			result.FailureReason = fmt.Sprintf("panic: %v", r)
		}
		if !result.Success {
			slog.Warn("evaluation unit failed",
				"split", sp.ID,
				"variant", adapter.Variant(),
				"cause", result.FailureReason)
		}
	}()

	train := e.ds.View(sp.Train)
	test := e.ds.View(sp.Test)

	fitted, err := adapter.Fit(ctx, train, e.predictors)
	if err != nil {
		result.FailureReason = fmt.Sprintf("fit: %v", err)
		return result
	}
	result.DroppedPredictors = fitted.DroppedPredictors()

	risks, err := fitted.Predict(test, e.horizon)
	if err != nil {
		result.FailureReason = fmt.Sprintf("predict: %v", err)
		return result
	}

	score := concordance.Score(test.Times(), test.Statuses(), risks, e.horizon)
	result.TimeDependentC = score.TimeDependent
	result.TimeIndependentC = score.TimeIndependent
	result.ScoringTier = score.Tier

	if math.IsNaN(score.TimeIndependent) {
		// Zeroed scores keep the record JSON-marshalable; consumers only
		// read scores from successful units.
		result.TimeDependentC = 0
		result.TimeIndependentC = 0
		result.FailureReason = "scoring: concordance undefined for this split"
		return result
	}

	result.Importance = fitted.Importance()
	result.Success = true
	return result
}

// persistUnit writes the unit's result through the artifact repository when
// one is configured. Persistence failures are logged, never fatal.
func (e *Engine) persistUnit(result results.SplitResult) {
	if e.repo == nil {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		slog.Warn("marshaling unit artifact", "split", result.SplitID, "variant", result.Variant, "error", err)
		return
	}

	key := artifacts.Key{
		Cohort:  e.ds.Cohort,
		Variant: result.Variant,
		SplitID: result.SplitID,
	}
	if err := e.repo.Put(key, data); err != nil {
		slog.Warn("persisting unit artifact", "key", key, "error", err)
	}
}
