package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinstat/survcv/internal/artifacts"
	"github.com/clinstat/survcv/internal/dataset"
	"github.com/clinstat/survcv/internal/results"
	"github.com/clinstat/survcv/internal/splits"
	"github.com/clinstat/survcv/internal/variants"
)

// stubAdapter predicts risk as the negated survival time, which ranks
// perfectly, so healthy units always succeed.
type stubAdapter struct {
	variant    results.Variant
	fitErr     error
	panicOnFit bool
}

func (a stubAdapter) Variant() results.Variant { return a.variant }

func (a stubAdapter) Fit(_ context.Context, _ *dataset.View, _ []string) (variants.Fitted, error) {
	if a.panicOnFit {
		panic("solver blew up")
	}
	if a.fitErr != nil {
		return nil, a.fitErr
	}
	return stubFitted{}, nil
}

type stubFitted struct{}

func (stubFitted) Predict(test *dataset.View, _ float64) ([]float64, error) {
	risks := make([]float64, test.Len())
	for i := range risks {
		risks[i] = -test.Time(i)
	}
	return risks, nil
}

func (stubFitted) Importance() results.ImportanceVector {
	return results.ImportanceVector{"age": 1}
}

func (stubFitted) DroppedPredictors() []string { return nil }

func testDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	n := 60
	times := make([]float64, n)
	statuses := make([]int, n)
	ages := make([]float64, n)
	for i := 0; i < n; i++ {
		times[i] = float64(i + 1)
		statuses[i] = i % 2
		ages[i] = float64(40 + i%30)
	}
	ds, err := dataset.New("lung", times, statuses, []dataset.Column{
		{Name: "age", Kind: dataset.KindNumeric, Values: ages},
	})
	require.NoError(t, err)
	return ds
}

func testSplits(t *testing.T, ds *dataset.Dataset, n int) []splits.Split {
	t.Helper()
	out, err := splits.Generate(ds, n, 0.75, 1)
	require.NoError(t, err)
	return out
}

func TestRunProducesOneResultPerUnit(t *testing.T) {
	ds := testDataset(t)
	splitList := testSplits(t, ds, 4)
	adapters := []variants.Adapter{
		stubAdapter{variant: results.ProportionalHazards},
		stubAdapter{variant: results.RandomSurvivalForest},
	}

	engine := New(ds, 30, WithWorkers(2))
	collected := engine.Run(context.Background(), splitList, adapters)

	require.Len(t, collected, 8)
	for i, r := range collected {
		assert.Equal(t, splitList[i/2].ID, r.SplitID, "results keep split order")
		assert.Equal(t, adapters[i%2].Variant(), r.Variant, "results keep adapter order")
		assert.True(t, r.Success)
		assert.Greater(t, r.TimeIndependentC, 0.9, "perfect ranking scores near 1")
	}
}

func TestUnitFailureDoesNotAbortSiblings(t *testing.T) {
	ds := testDataset(t)
	splitList := testSplits(t, ds, 3)
	adapters := []variants.Adapter{
		stubAdapter{variant: results.ProportionalHazards},
		stubAdapter{variant: results.RandomSurvivalForest, fitErr: errors.New("did not converge")},
	}

	engine := New(ds, 30, WithWorkers(2))
	collected := engine.Run(context.Background(), splitList, adapters)

	require.Len(t, collected, 6)
	for _, r := range collected {
		if r.Variant == results.RandomSurvivalForest {
			assert.False(t, r.Success)
			assert.Contains(t, r.FailureReason, "did not converge")
		} else {
			assert.True(t, r.Success)
		}
	}
}

func TestUnitPanicIsCaptured(t *testing.T) {
	ds := testDataset(t)
	splitList := testSplits(t, ds, 2)
	adapters := []variants.Adapter{
		stubAdapter{variant: results.GradientBoostedSurvival, panicOnFit: true},
		stubAdapter{variant: results.ProportionalHazards},
	}

	engine := New(ds, 30, WithWorkers(2))
	collected := engine.Run(context.Background(), splitList, adapters)

	require.Len(t, collected, 4)
	for _, r := range collected {
		if r.Variant == results.GradientBoostedSurvival {
			assert.False(t, r.Success)
			assert.True(t, strings.HasPrefix(r.FailureReason, "panic:"), "reason %q", r.FailureReason)
		} else {
			assert.True(t, r.Success, "sibling units survive a panicking unit")
		}
	}
}

func TestProgressEventsCoverEveryUnit(t *testing.T) {
	ds := testDataset(t)
	splitList := testSplits(t, ds, 3)
	adapters := []variants.Adapter{stubAdapter{variant: results.ProportionalHazards}}

	engine := New(ds, 30, WithWorkers(2))

	var mu sync.Mutex
	counts := make(map[EventType]int)
	engine.OnProgress(func(event ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		counts[event.EventType]++
	})

	engine.Run(context.Background(), splitList, adapters)

	assert.Equal(t, 1, counts[EventRunStart])
	assert.Equal(t, 1, counts[EventRunComplete])
	assert.Equal(t, 3, counts[EventUnitStart])
	assert.Equal(t, 3, counts[EventUnitComplete])
}

func TestArtifactsPersistedPerUnit(t *testing.T) {
	ds := testDataset(t)
	splitList := testSplits(t, ds, 3)
	adapters := []variants.Adapter{
		stubAdapter{variant: results.ProportionalHazards},
		stubAdapter{variant: results.RandomSurvivalForest},
	}

	repo := artifacts.NewMemory()
	engine := New(ds, 30, WithWorkers(2), WithArtifacts(repo))
	engine.Run(context.Background(), splitList, adapters)

	assert.Equal(t, 6, repo.Len())

	data, found, err := repo.Get(artifacts.Key{
		Cohort:  "lung",
		Variant: results.ProportionalHazards,
		SplitID: splitList[0].ID,
	})
	require.NoError(t, err)
	require.True(t, found)
	assert.Contains(t, string(data), `"success":true`)
}

func TestCancelledContextFailsRemainingUnits(t *testing.T) {
	ds := testDataset(t)
	splitList := testSplits(t, ds, 4)
	adapters := []variants.Adapter{stubAdapter{variant: results.ProportionalHazards}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := New(ds, 30, WithWorkers(1))
	collected := engine.Run(ctx, splitList, adapters)

	require.Len(t, collected, 4)
	for _, r := range collected {
		assert.False(t, r.Success)
	}
}
