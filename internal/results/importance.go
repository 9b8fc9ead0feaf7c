package results

// ImportanceVector maps feature names to importance weights. Raw vectors are
// in model-native units and may contain negatives; normalized vectors are
// nonnegative and sum to 1.
type ImportanceVector map[string]float64

// NormalizeTolerance is the floating tolerance on the unit-sum invariant.
const NormalizeTolerance = 1e-6

// Normalized returns a copy with negative weights clamped to 0 and the
// remainder scaled to unit sum. When the clamped sum is 0 the result is a
// uniform vector, so downstream aggregation never divides by zero.
func (iv ImportanceVector) Normalized() ImportanceVector {
	if len(iv) == 0 {
		return ImportanceVector{}
	}
	out := make(ImportanceVector, len(iv))
	sum := 0.0
	for k, v := range iv {
		if v < 0 {
			v = 0
		}
		out[k] = v
		sum += v
	}
	if sum <= 0 {
		uniform := 1.0 / float64(len(iv))
		for k := range out {
			out[k] = uniform
		}
		return out
	}
	for k := range out {
		out[k] /= sum
	}
	return out
}

// Sum returns the total weight in the vector.
func (iv ImportanceVector) Sum() float64 {
	sum := 0.0
	for _, v := range iv {
		sum += v
	}
	return sum
}

// Scaled returns a copy with every weight multiplied by factor.
func (iv ImportanceVector) Scaled(factor float64) ImportanceVector {
	out := make(ImportanceVector, len(iv))
	for k, v := range iv {
		out[k] = v * factor
	}
	return out
}

// Add accumulates other into iv in place.
func (iv ImportanceVector) Add(other ImportanceVector) {
	for k, v := range other {
		iv[k] += v
	}
}
