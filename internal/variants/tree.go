package variants

import (
	"math"
	"math/rand"
	"sort"
)

// splitRule projects a row onto a scalar. Axis-aligned rules use a single
// feature with coefficient 1; oblique rules combine two features with random
// coefficients.
type splitRule struct {
	features  []int
	coefs     []float64
	threshold float64
}

func (r splitRule) project(row []float64) float64 {
	s := 0.0
	for i, f := range r.features {
		s += r.coefs[i] * row[f]
	}
	return s
}

func (r splitRule) goesLeft(row []float64) bool {
	return r.project(row) <= r.threshold
}

// ruleSampler draws candidate projection directions for a node.
type ruleSampler interface {
	sample(rng *rand.Rand, numFeatures int) splitRule
}

// axisSampler picks one feature at a time: the classic random survival
// forest split search.
type axisSampler struct{}

func (axisSampler) sample(rng *rand.Rand, numFeatures int) splitRule {
	return splitRule{features: []int{rng.Intn(numFeatures)}, coefs: []float64{1}}
}

// obliqueSampler combines two distinct features with coefficients drawn from
// [-1, 1), giving the oblique forest its tilted decision boundaries.
type obliqueSampler struct{}

func (obliqueSampler) sample(rng *rand.Rand, numFeatures int) splitRule {
	f1 := rng.Intn(numFeatures)
	if numFeatures == 1 {
		return splitRule{features: []int{f1}, coefs: []float64{1}}
	}
	f2 := rng.Intn(numFeatures - 1)
	if f2 >= f1 {
		f2++
	}
	return splitRule{
		features: []int{f1, f2},
		coefs:    []float64{rng.Float64()*2 - 1, rng.Float64()*2 - 1},
	}
}

// hazardCurve is a Nelson-Aalen cumulative hazard step function estimated
// from the subjects in one leaf.
type hazardCurve struct {
	times []float64
	chf   []float64
}

func nelsonAalen(times []float64, statuses []int) hazardCurve {
	type pair struct {
		t float64
		s int
	}
	sorted := make([]pair, len(times))
	for i := range times {
		sorted[i] = pair{times[i], statuses[i]}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].t < sorted[j].t })

	var curve hazardCurve
	atRisk := len(sorted)
	h := 0.0
	i := 0
	for i < len(sorted) {
		t := sorted[i].t
		events, total := 0, 0
		for i < len(sorted) && sorted[i].t == t {
			events += sorted[i].s
			total++
			i++
		}
		if events > 0 && atRisk > 0 {
			h += float64(events) / float64(atRisk)
			curve.times = append(curve.times, t)
			curve.chf = append(curve.chf, h)
		}
		atRisk -= total
	}
	return curve
}

// at returns the cumulative hazard at time t.
func (c hazardCurve) at(t float64) float64 {
	h := 0.0
	for i, ct := range c.times {
		if ct > t {
			break
		}
		h = c.chf[i]
	}
	return h
}

type treeNode struct {
	rule  splitRule
	left  *treeNode
	right *treeNode
	leaf  bool
	curve hazardCurve
}

type treeParams struct {
	maxDepth    int
	minNodeSize int
	mtry        int
	sampler     ruleSampler
}

// survivalTree holds one fitted tree and the split-statistic gain it
// attributed to each feature during growth.
type survivalTree struct {
	root *treeNode
	gain map[int]float64
}

// growTree builds one survival tree over the given row subset. Splits are
// chosen by maximizing the two-sample log-rank statistic over mtry sampled
// rules, with thresholds drawn from the node's projected values.
func growTree(x [][]float64, times []float64, statuses []int, rows []int, p treeParams, rng *rand.Rand) *survivalTree {
	t := &survivalTree{gain: make(map[int]float64)}
	t.root = t.grow(x, times, statuses, rows, p, rng, 0)
	return t
}

func (t *survivalTree) grow(x [][]float64, times []float64, statuses []int, rows []int, p treeParams, rng *rand.Rand, depth int) *treeNode {
	events := 0
	for _, r := range rows {
		events += statuses[r]
	}
	if depth >= p.maxDepth || len(rows) < 2*p.minNodeSize || events == 0 {
		return t.leafNode(times, statuses, rows)
	}

	numFeatures := len(x[0])
	bestScore := 0.0
	var bestRule splitRule
	var bestLeft, bestRight []int

	for try := 0; try < p.mtry; try++ {
		rule := p.sampler.sample(rng, numFeatures)
		projected := make([]float64, len(rows))
		for i, r := range rows {
			projected[i] = rule.project(x[r])
		}
		for _, q := range []float64{0.25, 0.5, 0.75} {
			rule.threshold = quantileOf(projected, q)
			var left, right []int
			for i, r := range rows {
				if projected[i] <= rule.threshold {
					left = append(left, r)
				} else {
					right = append(right, r)
				}
			}
			if len(left) < p.minNodeSize || len(right) < p.minNodeSize {
				continue
			}
			score := logRank(times, statuses, left, right)
			if score > bestScore {
				bestScore = score
				bestRule = rule
				bestLeft, bestRight = left, right
			}
		}
	}

	if bestScore <= 0 || bestLeft == nil {
		return t.leafNode(times, statuses, rows)
	}

	for _, f := range bestRule.features {
		t.gain[f] += bestScore
	}
	return &treeNode{
		rule:  bestRule,
		left:  t.grow(x, times, statuses, bestLeft, p, rng, depth+1),
		right: t.grow(x, times, statuses, bestRight, p, rng, depth+1),
	}
}

func (t *survivalTree) leafNode(times []float64, statuses []int, rows []int) *treeNode {
	lt := make([]float64, len(rows))
	ls := make([]int, len(rows))
	for i, r := range rows {
		lt[i] = times[r]
		ls[i] = statuses[r]
	}
	return &treeNode{leaf: true, curve: nelsonAalen(lt, ls)}
}

// predict returns the cumulative hazard at the horizon for one row.
func (t *survivalTree) predict(row []float64, horizon float64) float64 {
	node := t.root
	for !node.leaf {
		if node.rule.goesLeft(row) {
			node = node.left
		} else {
			node = node.right
		}
	}
	return node.curve.at(horizon)
}

// logRank computes the two-sample log-rank chi-square statistic between the
// left and right row groups. Larger means better separation of survival.
func logRank(times []float64, statuses []int, left, right []int) float64 {
	type moment struct {
		t      float64
		events int
		total  int
		inLeft bool
	}
	all := make([]moment, 0, len(left)+len(right))
	for _, r := range left {
		all = append(all, moment{t: times[r], events: statuses[r], total: 1, inLeft: true})
	}
	for _, r := range right {
		all = append(all, moment{t: times[r], events: statuses[r], total: 1})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].t < all[j].t })

	n1 := len(left)
	n := len(left) + len(right)
	var observed, expected, variance float64

	i := 0
	for i < len(all) {
		t := all[i].t
		d, d1, removed, removed1 := 0, 0, 0, 0
		for i < len(all) && all[i].t == t {
			d += all[i].events
			removed += all[i].total
			if all[i].inLeft {
				d1 += all[i].events
				removed1 += all[i].total
			}
			i++
		}
		if d > 0 && n > 1 {
			e := float64(d) * float64(n1) / float64(n)
			v := float64(d) * (float64(n1) / float64(n)) * (1 - float64(n1)/float64(n)) * float64(n-d) / float64(n-1)
			observed += float64(d1)
			expected += e
			variance += v
		}
		n -= removed
		n1 -= removed1
	}

	if variance <= 0 {
		return 0
	}
	diff := observed - expected
	return diff * diff / variance
}

func quantileOf(values []float64, q float64) float64 {
	cp := append([]float64(nil), values...)
	sort.Float64s(cp)
	idx := int(q * float64(len(cp)-1))
	return cp[idx]
}

// permuted returns rows with feature j shuffled, used for permutation
// importance.
func permuted(x [][]float64, j int, rng *rand.Rand) [][]float64 {
	out := make([][]float64, len(x))
	perm := rng.Perm(len(x))
	for i := range x {
		row := append([]float64(nil), x[i]...)
		row[j] = x[perm[i]][j]
		out[i] = row
	}
	return out
}

// clamp keeps permutation importances nonnegative; a permuted column that
// "improves" the model is noise, not signal.
func clampNonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}
