package concordance

import "sort"

// censoringSurvival is a Kaplan-Meier estimate of the censoring
// distribution's survival function, used for IPCW weights. "Events" here are
// censorings (status == 0); actual events keep subjects at risk up to and
// including their time.
type censoringSurvival struct {
	times []float64
	surv  []float64
}

func censoringKM(obs []observation) censoringSurvival {
	sorted := append([]observation(nil), obs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].time < sorted[j].time })

	var km censoringSurvival
	atRisk := len(sorted)
	s := 1.0
	i := 0
	for i < len(sorted) {
		t := sorted[i].time
		censored, total := 0, 0
		for i < len(sorted) && sorted[i].time == t {
			if sorted[i].status == 0 {
				censored++
			}
			total++
			i++
		}
		if censored > 0 && atRisk > 0 {
			s *= 1 - float64(censored)/float64(atRisk)
			km.times = append(km.times, t)
			km.surv = append(km.surv, s)
		}
		atRisk -= total
	}
	return km
}

// at returns G(t-): the censoring survival probability just before t.
func (km censoringSurvival) at(t float64) float64 {
	s := 1.0
	for i, kt := range km.times {
		if kt >= t {
			break
		}
		s = km.surv[i]
	}
	return s
}
