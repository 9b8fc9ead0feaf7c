// Package splits implements the stratified Monte Carlo cross-validation
// split generator. Each split independently resamples the cohort's rows into
// disjoint train and test sets while preserving the event/non-event ratio.
package splits

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/clinstat/survcv/internal/dataset"
)

// Split is one immutable train/test partition, identified by a 1-based ID.
type Split struct {
	ID    int
	Train []int
	Test  []int
}

// Generate produces n stratified splits. Rows are partitioned within the
// event and non-event strata separately, so each side keeps roughly the
// cohort's event ratio. The RNG is seeded per split from the run seed, which
// makes re-running with identical parameters reproduce identical splits. A
// split whose test half contains zero events is allowed; scoring that split
// later yields NaN and the unit counts as unsuccessful.
func Generate(ds *dataset.Dataset, n int, trainFraction float64, seed int64) ([]Split, error) {
	if n < 1 {
		return nil, fmt.Errorf("splits: n must be >= 1, got %d", n)
	}
	if trainFraction <= 0 || trainFraction >= 1 {
		return nil, fmt.Errorf("splits: train fraction must be in (0, 1), got %v", trainFraction)
	}
	if ds.NumRows() < 2 {
		return nil, fmt.Errorf("splits: dataset %q has %d rows, need at least 2", ds.Cohort, ds.NumRows())
	}

	var events, nonEvents []int
	for i, s := range ds.Status {
		if s == 1 {
			events = append(events, i)
		} else {
			nonEvents = append(nonEvents, i)
		}
	}

	out := make([]Split, 0, n)
	for id := 1; id <= n; id++ {
		rng := rand.New(rand.NewSource(seed + int64(id)))
		train, test := partition(rng, events, trainFraction)
		trainNE, testNE := partition(rng, nonEvents, trainFraction)
		train = append(train, trainNE...)
		test = append(test, testNE...)
		sort.Ints(train)
		sort.Ints(test)
		out = append(out, Split{ID: id, Train: train, Test: test})
	}
	return out, nil
}

// partition shuffles a copy of pool and cuts it at frac. Both sides are
// non-empty whenever the pool has at least two members.
func partition(rng *rand.Rand, pool []int, frac float64) (train, test []int) {
	if len(pool) == 0 {
		return nil, nil
	}
	shuffled := append([]int(nil), pool...)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	cut := int(frac * float64(len(shuffled)))
	if len(shuffled) >= 2 {
		if cut < 1 {
			cut = 1
		}
		if cut >= len(shuffled) {
			cut = len(shuffled) - 1
		}
	}
	train = append([]int(nil), shuffled[:cut]...)
	test = append([]int(nil), shuffled[cut:]...)
	return train, test
}
