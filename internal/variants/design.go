package variants

import (
	"math"

	"github.com/clinstat/survcv/internal/dataset"
	"github.com/clinstat/survcv/internal/stats"
)

// design is the prepared predictor layout shared by all families: the
// surviving columns after constant-column dropping, plus the training
// medians used to impute missing cells at both fit and predict time.
type design struct {
	names   []string
	cols    []int
	medians []float64
}

// buildDesign inspects the training rows, drops predictors with zero
// variance (constant within this split's training data), and returns the
// design along with the dropped names. The drop happens silently at the
// adapter level; callers only observe it through DroppedPredictors.
func buildDesign(train *dataset.View, predictors []string) (*design, []string, error) {
	ds := train.Dataset()
	d := &design{}
	var dropped []string

	for _, name := range predictors {
		col := ds.ColumnIndex(name)
		if col < 0 {
			dropped = append(dropped, name)
			continue
		}
		values := make([]float64, 0, train.Len())
		for i := 0; i < train.Len(); i++ {
			v := train.Value(col, i)
			if !math.IsNaN(v) {
				values = append(values, v)
			}
		}
		if len(values) == 0 || isConstant(values) {
			dropped = append(dropped, name)
			continue
		}
		d.names = append(d.names, name)
		d.cols = append(d.cols, col)
		d.medians = append(d.medians, stats.Median(values))
	}

	if len(d.cols) == 0 {
		return nil, dropped, ErrNoUsablePredictors
	}
	return d, dropped, nil
}

// isConstant compares values structurally rather than through a computed
// variance, whose accumulated rounding can land a hair above zero for a
// literally constant column.
func isConstant(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}

// matrix materializes the design for a view: rows × features, with missing
// cells imputed to the training median.
func (d *design) matrix(v *dataset.View) [][]float64 {
	rows := make([][]float64, v.Len())
	for i := 0; i < v.Len(); i++ {
		row := make([]float64, len(d.cols))
		for j, col := range d.cols {
			val := v.Value(col, i)
			if math.IsNaN(val) {
				val = d.medians[j]
			}
			row[j] = val
		}
		rows[i] = row
	}
	return rows
}

// column extracts one design feature across all rows of a matrix.
func column(x [][]float64, j int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = x[i][j]
	}
	return out
}
