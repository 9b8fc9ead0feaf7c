package variants

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/clinstat/survcv/internal/dataset"
	"github.com/clinstat/survcv/internal/results"
	"github.com/clinstat/survcv/internal/stats"
)

// CoxParams configures the proportional-hazards adapter.
type CoxParams struct {
	MaxIter int     `mapstructure:"max_iter"`
	Tol     float64 `mapstructure:"tol"`
	Ridge   float64 `mapstructure:"ridge"`
}

func (p *CoxParams) applyDefaults() {
	if p.MaxIter <= 0 {
		p.MaxIter = 25
	}
	if p.Tol <= 0 {
		p.Tol = 1e-7
	}
	if p.Ridge <= 0 {
		p.Ridge = 1e-6
	}
}

type coxAdapter struct {
	params CoxParams
}

// NewCoxPH returns the Cox proportional-hazards adapter. Coefficients are
// estimated by Newton-Raphson on the Breslow partial likelihood over
// standardized predictors.
func NewCoxPH(p CoxParams) Adapter {
	p.applyDefaults()
	return &coxAdapter{params: p}
}

func (a *coxAdapter) Variant() results.Variant { return results.ProportionalHazards }

func (a *coxAdapter) Fit(ctx context.Context, train *dataset.View, predictors []string) (Fitted, error) {
	d, dropped, err := buildDesign(train, predictors)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	x := d.matrix(train)
	p := len(d.cols)

	// standardize in place; betas then live on the z-score scale, which makes
	// their magnitudes directly comparable as importances
	means := make([]float64, p)
	sds := make([]float64, p)
	for j := 0; j < p; j++ {
		col := column(x, j)
		means[j] = stats.Mean(col)
		sds[j] = stats.StdDev(col)
		if sds[j] == 0 {
			sds[j] = 1
		}
		for i := range x {
			x[i][j] = (x[i][j] - means[j]) / sds[j]
		}
	}

	beta, err := newtonCox(x, train.Times(), train.Statuses(), a.params)
	if err != nil {
		return nil, fmt.Errorf("proportional hazards fit: %w", err)
	}

	return &coxModel{
		design:  d,
		beta:    beta,
		means:   means,
		sds:     sds,
		dropped: dropped,
	}, nil
}

type coxModel struct {
	design  *design
	beta    []float64
	means   []float64
	sds     []float64
	dropped []string
}

func (m *coxModel) Predict(test *dataset.View, _ float64) ([]float64, error) {
	x := m.design.matrix(test)
	out := make([]float64, len(x))
	for i, row := range x {
		lp := 0.0
		for j, v := range row {
			lp += m.beta[j] * (v - m.means[j]) / m.sds[j]
		}
		out[i] = lp
	}
	return out, nil
}

// Importance reports the absolute standardized coefficient per predictor.
func (m *coxModel) Importance() results.ImportanceVector {
	iv := make(results.ImportanceVector, len(m.beta))
	for j, name := range m.design.names {
		iv[name] = math.Abs(m.beta[j])
	}
	return iv
}

func (m *coxModel) DroppedPredictors() []string { return m.dropped }

// newtonCox maximizes the Breslow partial likelihood. Rows tied on time
// share a risk set; step halving guards against overshooting.
func newtonCox(x [][]float64, times []float64, statuses []int, params CoxParams) ([]float64, error) {
	n := len(x)
	p := len(x[0])
	beta := make([]float64, p)

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	// descending time, so the risk set accumulates as we walk forward
	sort.Slice(order, func(a, b int) bool { return times[order[a]] > times[order[b]] })

	loglik, grad, hess := coxDerivatives(x, times, statuses, order, beta)

	for iter := 0; iter < params.MaxIter; iter++ {
		for j := 0; j < p; j++ {
			hess[j][j] += params.Ridge
		}
		step, err := solve(hess, grad)
		if err != nil {
			return nil, err
		}

		// step halving until the likelihood improves
		improved := false
		scale := 1.0
		var newLoglik float64
		var newGrad []float64
		var newHess [][]float64
		candidate := make([]float64, p)
		for half := 0; half < 8; half++ {
			for j := 0; j < p; j++ {
				candidate[j] = beta[j] + scale*step[j]
			}
			newLoglik, newGrad, newHess = coxDerivatives(x, times, statuses, order, candidate)
			if newLoglik >= loglik || math.IsNaN(loglik) {
				improved = true
				break
			}
			scale /= 2
		}
		if !improved {
			break
		}

		delta := math.Abs(newLoglik - loglik)
		copy(beta, candidate)
		loglik, grad, hess = newLoglik, newGrad, newHess
		if delta < params.Tol*(math.Abs(loglik)+params.Tol) {
			break
		}
	}

	for _, b := range beta {
		if math.IsNaN(b) || math.IsInf(b, 0) {
			return nil, errors.New("coefficients diverged")
		}
	}
	return beta, nil
}

// coxDerivatives computes the Breslow partial log-likelihood with its
// gradient and negative Hessian at beta. order must be descending in time.
func coxDerivatives(x [][]float64, times []float64, statuses []int, order []int, beta []float64) (float64, []float64, [][]float64) {
	p := len(beta)
	loglik := 0.0
	grad := make([]float64, p)
	hess := make([][]float64, p)
	for j := range hess {
		hess[j] = make([]float64, p)
	}

	s0 := 0.0
	s1 := make([]float64, p)
	s2 := make([][]float64, p)
	for j := range s2 {
		s2[j] = make([]float64, p)
	}

	i := 0
	n := len(order)
	for i < n {
		t := times[order[i]]
		// admit every subject tied at this time into the risk set first
		j := i
		for j < n && times[order[j]] == t {
			idx := order[j]
			w := math.Exp(dot(x[idx], beta))
			s0 += w
			for a := 0; a < p; a++ {
				s1[a] += w * x[idx][a]
				for b := 0; b < p; b++ {
					s2[a][b] += w * x[idx][a] * x[idx][b]
				}
			}
			j++
		}
		// then account for the events at this time against the full risk set
		for k := i; k < j; k++ {
			idx := order[k]
			if statuses[idx] != 1 {
				continue
			}
			loglik += dot(x[idx], beta) - math.Log(s0)
			for a := 0; a < p; a++ {
				ma := s1[a] / s0
				grad[a] += x[idx][a] - ma
				for b := 0; b < p; b++ {
					hess[a][b] += s2[a][b]/s0 - ma*(s1[b]/s0)
				}
			}
		}
		i = j
	}
	return loglik, grad, hess
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// solve performs Gaussian elimination with partial pivoting on a copy of A.
func solve(a [][]float64, b []float64) ([]float64, error) {
	n := len(b)
	m := make([][]float64, n)
	for i := range m {
		m[i] = append(append([]float64(nil), a[i]...), b[i])
	}

	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(m[pivot][col]) < 1e-12 {
			return nil, errors.New("singular information matrix")
		}
		m[col], m[pivot] = m[pivot], m[col]
		for r := col + 1; r < n; r++ {
			f := m[r][col] / m[col][col]
			for c := col; c <= n; c++ {
				m[r][c] -= f * m[col][c]
			}
		}
	}

	out := make([]float64, n)
	for r := n - 1; r >= 0; r-- {
		s := m[r][n]
		for c := r + 1; c < n; c++ {
			s -= m[r][c] * out[c]
		}
		out[r] = s / m[r][r]
	}
	return out, nil
}
