// Package concordance computes discrimination metrics for survival risk
// scores. Scoring runs through an ordered list of strategies: an
// IPCW-weighted horizon-aware estimator, a plain counting estimator, and a
// sampled pairwise Harrell estimator as the final tier. Each strategy is
// tried only when the previous one fails, and only exhausting every tier
// yields NaN.
package concordance

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// MinObservations is the smallest number of valid observations for which a
// concordance value is defined.
const MinObservations = 10

// MaxPairwiseObservations bounds the observation count of the final-tier
// pairwise estimator.
const MaxPairwiseObservations = 2000

// Tier names, recorded on every result for auditability.
const (
	TierIPCW       = "ipcw"
	TierCounting   = "counting"
	TierSampled    = "sampled_harrell"
	TierUndefined  = "undefined"
	TierDegenerate = "degenerate"
)

// Result carries both concordance flavors and the tier that produced them.
type Result struct {
	TimeDependent   float64 `json:"time_dependent_c"`
	TimeIndependent float64 `json:"time_independent_c"`
	Tier            string  `json:"tier"`
}

type observation struct {
	time   float64
	status int
	risk   float64
}

type strategy struct {
	name string
	fn   func(obs []observation, horizon float64) (float64, float64, error)
}

// Score computes time-dependent and time-independent concordance for one
// split's test predictions. Rules, in order:
//   - fewer than MinObservations valid rows, or zero events: both NaN;
//   - all risk scores identical: both exactly 0.5 (no discrimination);
//   - otherwise the first strategy tier that succeeds wins.
func Score(times []float64, statuses []int, risk []float64, horizon float64) Result {
	obs := validObservations(times, statuses, risk)

	events := 0
	for _, o := range obs {
		events += o.status
	}
	if len(obs) < MinObservations || events == 0 {
		return Result{TimeDependent: math.NaN(), TimeIndependent: math.NaN(), Tier: TierUndefined}
	}

	if allRisksEqual(obs) {
		return Result{TimeDependent: 0.5, TimeIndependent: 0.5, Tier: TierDegenerate}
	}

	strategies := []strategy{
		{TierIPCW, scoreIPCW},
		{TierCounting, scoreCounting},
		{TierSampled, scoreSampled},
	}
	for _, s := range strategies {
		td, ti, err := s.fn(obs, horizon)
		if err != nil {
			continue
		}
		return Result{TimeDependent: td, TimeIndependent: ti, Tier: s.name}
	}
	return Result{TimeDependent: math.NaN(), TimeIndependent: math.NaN(), Tier: TierUndefined}
}

func validObservations(times []float64, statuses []int, risk []float64) []observation {
	n := len(times)
	if len(statuses) < n {
		n = len(statuses)
	}
	if len(risk) < n {
		n = len(risk)
	}
	obs := make([]observation, 0, n)
	for i := 0; i < n; i++ {
		t, s, r := times[i], statuses[i], risk[i]
		if math.IsNaN(t) || math.IsInf(t, 0) || t <= 0 {
			continue
		}
		if math.IsNaN(r) || math.IsInf(r, 0) {
			continue
		}
		if s != 0 && s != 1 {
			continue
		}
		obs = append(obs, observation{time: t, status: s, risk: r})
	}
	return obs
}

func allRisksEqual(obs []observation) bool {
	for i := 1; i < len(obs); i++ {
		if obs[i].risk != obs[0].risk {
			return false
		}
	}
	return true
}

// orient removes the ambiguity about risk-score direction: a model whose
// scores rank perfectly backwards discriminates just as well.
func orient(c float64) float64 {
	return math.Max(c, 1-c)
}

// scoreIPCW is the preferred tier: a truncated time-dependent estimator with
// inverse-probability-of-censoring weights, paired with the weighted pairwise
// time-independent estimate over the same weights.
func scoreIPCW(obs []observation, horizon float64) (float64, float64, error) {
	g := censoringKM(obs)

	var concTD, totalTD float64
	var concTI, totalTI float64
	for i, a := range obs {
		if a.status != 1 {
			continue
		}
		w := g.at(a.time)
		if w <= 0 {
			return 0, 0, errors.New("concordance: censoring survival reached zero before an event time")
		}
		weight := 1.0 / (w * w)

		for j, b := range obs {
			if i == j {
				continue
			}
			// time-independent: all pairs where a's event precedes b's time
			if a.time < b.time {
				totalTI += weight
				concTI += pairScore(a.risk, b.risk) * weight
			}
			// time-dependent: a is a case at the horizon, b is still at risk
			if a.time <= horizon && b.time > horizon {
				totalTD += weight
				concTD += pairScore(a.risk, b.risk) * weight
			}
		}
	}
	if totalTD == 0 || totalTI == 0 {
		return 0, 0, errors.New("concordance: no comparable pairs under IPCW weighting")
	}
	return orient(concTD / totalTD), orient(concTI / totalTI), nil
}

// scoreCounting is the secondary tier: the same pair definitions without
// censoring weights.
func scoreCounting(obs []observation, horizon float64) (float64, float64, error) {
	td, err := timeDependent(obs, horizon)
	if err != nil {
		return 0, 0, err
	}
	ti, err := harrell(obs)
	if err != nil {
		return 0, 0, err
	}
	return td, ti, nil
}

// scoreSampled is the final tier: a direct pairwise Harrell estimator over at
// most MaxPairwiseObservations observations, deterministically sampled.
func scoreSampled(obs []observation, horizon float64) (float64, float64, error) {
	if len(obs) > MaxPairwiseObservations {
		rng := rand.New(rand.NewSource(int64(len(obs))))
		shuffled := append([]observation(nil), obs...)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		obs = shuffled[:MaxPairwiseObservations]
	}
	ti, err := harrell(obs)
	if err != nil {
		return 0, 0, err
	}
	td, err := timeDependent(obs, horizon)
	if err != nil {
		// The sampled tier still reports the pairwise estimate when the
		// horizon leaves no case/control pairs.
		td = ti
	}
	return td, ti, nil
}

// harrell computes Harrell's C over all pairs (i, j) where subject i has an
// event and time[i] < time[j], orientation-corrected.
func harrell(obs []observation) (float64, error) {
	var conc, total float64
	for i, a := range obs {
		if a.status != 1 {
			continue
		}
		for j, b := range obs {
			if i == j || a.time >= b.time {
				continue
			}
			total++
			conc += pairScore(a.risk, b.risk)
		}
	}
	if total == 0 {
		return 0, errors.New("concordance: no comparable pairs")
	}
	return orient(conc / total), nil
}

// timeDependent restricts comparison to cases (event at or before the
// horizon) versus controls (still at risk past the horizon). Subjects
// censored before the horizon belong to neither set.
func timeDependent(obs []observation, horizon float64) (float64, error) {
	if horizon <= 0 {
		return 0, fmt.Errorf("concordance: horizon must be positive, got %v", horizon)
	}
	var conc, total float64
	for _, a := range obs {
		if a.status != 1 || a.time > horizon {
			continue
		}
		for _, b := range obs {
			if b.time <= horizon {
				continue
			}
			total++
			conc += pairScore(a.risk, b.risk)
		}
	}
	if total == 0 {
		return 0, errors.New("concordance: no case/control pairs at horizon")
	}
	return orient(conc / total), nil
}

// pairScore is 1 for a concordant pair (the earlier event carries the higher
// risk), 0.5 for a risk tie, 0 for a discordant pair.
func pairScore(riskEarlier, riskLater float64) float64 {
	switch {
	case riskEarlier > riskLater:
		return 1
	case riskEarlier == riskLater:
		return 0.5
	}
	return 0
}
