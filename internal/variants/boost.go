package variants

import (
	"context"
	"math"
	"sort"

	"github.com/clinstat/survcv/internal/dataset"
	"github.com/clinstat/survcv/internal/results"
)

// BoostParams configures the gradient-boosted survival adapter.
type BoostParams struct {
	Stages       int     `mapstructure:"stages"`
	LearningRate float64 `mapstructure:"learning_rate"`
}

func (p *BoostParams) applyDefaults() {
	if p.Stages <= 0 {
		p.Stages = 100
	}
	if p.LearningRate <= 0 {
		p.LearningRate = 0.1
	}
}

type boostAdapter struct {
	params BoostParams
}

// NewGradientBoost returns the gradient-boosted survival adapter: stagewise
// regression stumps fit to the Cox partial-likelihood gradient, with
// gain-based importance.
func NewGradientBoost(p BoostParams) Adapter {
	p.applyDefaults()
	return &boostAdapter{params: p}
}

func (a *boostAdapter) Variant() results.Variant { return results.GradientBoostedSurvival }

// stump is one boosting stage: a single-feature threshold rule with a
// constant prediction on each side.
type stump struct {
	feature   int
	threshold float64
	left      float64
	right     float64
}

func (s stump) predict(row []float64) float64 {
	if row[s.feature] <= s.threshold {
		return s.left
	}
	return s.right
}

func (a *boostAdapter) Fit(ctx context.Context, train *dataset.View, predictors []string) (Fitted, error) {
	d, dropped, err := buildDesign(train, predictors)
	if err != nil {
		return nil, err
	}

	x := d.matrix(train)
	times := train.Times()
	statuses := train.Statuses()
	n := len(x)

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return times[order[a]] > times[order[b]] })

	score := make([]float64, n)
	stumps := make([]stump, 0, a.params.Stages)
	gain := make(results.ImportanceVector, len(d.names))

	for stage := 0; stage < a.params.Stages; stage++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		grad := coxGradient(score, times, statuses, order)
		st, reduction, ok := fitStump(x, grad)
		if !ok {
			break
		}
		st.left *= a.params.LearningRate
		st.right *= a.params.LearningRate
		for i := range x {
			score[i] += st.predict(x[i])
		}
		stumps = append(stumps, st)
		gain[d.names[st.feature]] += reduction
	}

	return &boostModel{design: d, stumps: stumps, gain: gain, dropped: dropped}, nil
}

type boostModel struct {
	design  *design
	stumps  []stump
	gain    results.ImportanceVector
	dropped []string
}

func (m *boostModel) Predict(test *dataset.View, _ float64) ([]float64, error) {
	x := m.design.matrix(test)
	out := make([]float64, len(x))
	for i, row := range x {
		s := 0.0
		for _, st := range m.stumps {
			s += st.predict(row)
		}
		out[i] = s
	}
	return out, nil
}

// Importance reports the squared-error reduction each feature contributed
// across all boosting stages.
func (m *boostModel) Importance() results.ImportanceVector {
	iv := make(results.ImportanceVector, len(m.design.names))
	for _, name := range m.design.names {
		iv[name] = m.gain[name]
	}
	return iv
}

func (m *boostModel) DroppedPredictors() []string { return m.dropped }

// coxGradient computes the Breslow partial-likelihood gradient with respect
// to the per-subject score: status minus the subject's share of expected
// events over the risk sets it belongs to. order must be descending in time.
func coxGradient(score, times []float64, statuses []int, order []int) []float64 {
	n := len(score)
	grad := make([]float64, n)
	exp := make([]float64, n)
	for i := range score {
		exp[i] = math.Exp(score[i])
	}

	s0 := 0.0
	cumHazard := make([]float64, n) // per-subject accumulated d/S0 share
	i := 0
	for i < n {
		t := times[order[i]]
		j := i
		for j < n && times[order[j]] == t {
			s0 += exp[order[j]]
			j++
		}
		events := 0
		for k := i; k < j; k++ {
			if statuses[order[k]] == 1 {
				events++
			}
		}
		if events > 0 && s0 > 0 {
			inc := float64(events) / s0
			// everyone currently in the risk set absorbs this hazard mass
			for k := 0; k < j; k++ {
				cumHazard[order[k]] += inc
			}
		}
		i = j
	}

	for i := 0; i < n; i++ {
		grad[i] = float64(statuses[i]) - exp[i]*cumHazard[i]
	}
	return grad
}

// fitStump finds the single-feature threshold split minimizing the squared
// error of the gradient, returning the stump, its error reduction, and
// whether any split improved on the constant fit.
func fitStump(x [][]float64, grad []float64) (stump, float64, bool) {
	n := len(grad)
	if n == 0 {
		return stump{}, 0, false
	}
	mean := 0.0
	for _, g := range grad {
		mean += g
	}
	mean /= float64(n)
	baseSSE := 0.0
	for _, g := range grad {
		baseSSE += (g - mean) * (g - mean)
	}

	best := stump{}
	bestReduction := 0.0
	found := false
	numFeatures := len(x[0])

	for f := 0; f < numFeatures; f++ {
		col := column(x, f)
		for _, q := range []float64{0.25, 0.5, 0.75} {
			th := quantileOf(col, q)
			var sumL, sumR float64
			var nL, nR int
			for i := range col {
				if col[i] <= th {
					sumL += grad[i]
					nL++
				} else {
					sumR += grad[i]
					nR++
				}
			}
			if nL == 0 || nR == 0 {
				continue
			}
			meanL, meanR := sumL/float64(nL), sumR/float64(nR)
			sse := 0.0
			for i := range col {
				if col[i] <= th {
					sse += (grad[i] - meanL) * (grad[i] - meanL)
				} else {
					sse += (grad[i] - meanR) * (grad[i] - meanR)
				}
			}
			reduction := baseSSE - sse
			if reduction > bestReduction {
				bestReduction = reduction
				best = stump{feature: f, threshold: th, left: meanL, right: meanR}
				found = true
			}
		}
	}
	return best, bestReduction, found
}
