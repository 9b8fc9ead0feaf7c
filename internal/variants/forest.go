package variants

import (
	"context"
	"math"
	"math/rand"

	"github.com/clinstat/survcv/internal/concordance"
	"github.com/clinstat/survcv/internal/dataset"
	"github.com/clinstat/survcv/internal/results"
	"github.com/clinstat/survcv/internal/stats"
)

// ForestParams configures the random and oblique survival forests.
type ForestParams struct {
	Trees       int   `mapstructure:"trees"`
	MaxDepth    int   `mapstructure:"max_depth"`
	MinNodeSize int   `mapstructure:"min_node_size"`
	MTry        int   `mapstructure:"mtry"`
	Seed        int64 `mapstructure:"seed"`
}

func (p *ForestParams) applyDefaults() {
	if p.Trees <= 0 {
		p.Trees = 100
	}
	if p.MaxDepth <= 0 {
		p.MaxDepth = 5
	}
	if p.MinNodeSize <= 0 {
		p.MinNodeSize = 5
	}
	if p.Seed == 0 {
		p.Seed = 1
	}
}

// maxImportanceRows bounds the cost of permutation importance; beyond this
// many training rows a fixed subsample is scored instead.
const maxImportanceRows = 500

type forestAdapter struct {
	variant results.Variant
	params  ForestParams
	sampler ruleSampler
}

// NewRandomForest returns the random survival forest adapter: bootstrapped
// log-rank trees with axis-aligned splits and permutation importance.
func NewRandomForest(p ForestParams) Adapter {
	p.applyDefaults()
	return &forestAdapter{
		variant: results.RandomSurvivalForest,
		params:  p,
		sampler: axisSampler{},
	}
}

// NewObliqueForest returns the oblique survival forest adapter, identical to
// the random forest except that split directions are random two-feature
// linear combinations.
func NewObliqueForest(p ForestParams) Adapter {
	p.applyDefaults()
	return &forestAdapter{
		variant: results.ObliqueSurvivalForest,
		params:  p,
		sampler: obliqueSampler{},
	}
}

func (a *forestAdapter) Variant() results.Variant { return a.variant }

func (a *forestAdapter) Fit(ctx context.Context, train *dataset.View, predictors []string) (Fitted, error) {
	d, dropped, err := buildDesign(train, predictors)
	if err != nil {
		return nil, err
	}

	x := d.matrix(train)
	times := train.Times()
	statuses := train.Statuses()
	n := len(x)

	mtry := a.params.MTry
	if mtry <= 0 {
		mtry = int(math.Sqrt(float64(len(d.cols)))) + 1
	}
	tp := treeParams{
		maxDepth:    a.params.MaxDepth,
		minNodeSize: a.params.MinNodeSize,
		mtry:        mtry,
		sampler:     a.sampler,
	}

	rng := rand.New(rand.NewSource(a.params.Seed))
	trees := make([]*survivalTree, 0, a.params.Trees)
	for t := 0; t < a.params.Trees; t++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		boot := make([]int, n)
		for i := range boot {
			boot[i] = rng.Intn(n)
		}
		trees = append(trees, growTree(x, times, statuses, boot, tp, rng))
	}

	m := &forestModel{
		design:  d,
		trees:   trees,
		dropped: dropped,
	}
	m.importance = m.permutationImportance(x, times, statuses, rng)
	return m, nil
}

type forestModel struct {
	design     *design
	trees      []*survivalTree
	dropped    []string
	importance results.ImportanceVector
}

func (m *forestModel) Predict(test *dataset.View, horizon float64) ([]float64, error) {
	x := m.design.matrix(test)
	return m.predictMatrix(x, horizon), nil
}

// predictMatrix averages the per-tree cumulative hazard at the horizon;
// higher accumulated hazard means higher risk.
func (m *forestModel) predictMatrix(x [][]float64, horizon float64) []float64 {
	out := make([]float64, len(x))
	for i, row := range x {
		sum := 0.0
		for _, t := range m.trees {
			sum += t.predict(row, horizon)
		}
		out[i] = sum / float64(len(m.trees))
	}
	return out
}

func (m *forestModel) Importance() results.ImportanceVector { return m.importance }

func (m *forestModel) DroppedPredictors() []string { return m.dropped }

// permutationImportance scores each feature by how much shuffling it within
// the training rows degrades the ensemble's concordance.
func (m *forestModel) permutationImportance(x [][]float64, times []float64, statuses []int, rng *rand.Rand) results.ImportanceVector {
	if len(x) > maxImportanceRows {
		idx := rng.Perm(len(x))[:maxImportanceRows]
		sx := make([][]float64, len(idx))
		st := make([]float64, len(idx))
		ss := make([]int, len(idx))
		for i, r := range idx {
			sx[i], st[i], ss[i] = x[r], times[r], statuses[r]
		}
		x, times, statuses = sx, st, ss
	}

	horizon := stats.Median(times)
	base := concordance.Score(times, statuses, m.predictMatrix(x, horizon), horizon).TimeIndependent
	iv := make(results.ImportanceVector, len(m.design.names))
	for j, name := range m.design.names {
		if math.IsNaN(base) {
			iv[name] = 0
			continue
		}
		permC := concordance.Score(times, statuses, m.predictMatrix(permuted(x, j, rng), horizon), horizon).TimeIndependent
		iv[name] = clampNonNegative(base - permC)
	}
	return iv
}
