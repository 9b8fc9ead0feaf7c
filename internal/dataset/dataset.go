// Package dataset holds the in-memory cohort table consumed by the
// evaluation engine: one row per subject with a survival time, an event
// status, and an arbitrary set of numeric or categorical predictors.
package dataset

import (
	"fmt"
	"math"
)

// Kind classifies a predictor column.
type Kind int

const (
	KindNumeric Kind = iota
	KindCategorical
)

func (k Kind) String() string {
	if k == KindCategorical {
		return "categorical"
	}
	return "numeric"
}

// Column is a single predictor column. Categorical columns are level-coded:
// Values holds the level index as a float and Levels maps indices back to
// the original labels. Missing numeric values are NaN.
type Column struct {
	Name   string
	Kind   Kind
	Values []float64
	Levels []string
}

// Dataset is a column-oriented cohort table. Time and Status are required;
// predictors are shared read-only across workers, so nothing here may be
// mutated after construction.
type Dataset struct {
	Cohort  string
	Time    []float64
	Status  []int
	Columns []Column

	byName map[string]int
}

// New constructs a Dataset and validates the survival invariants:
// every row has time > 0 and status in {0, 1}.
func New(cohort string, time []float64, status []int, columns []Column) (*Dataset, error) {
	n := len(time)
	if n == 0 {
		return nil, fmt.Errorf("dataset %q has no rows", cohort)
	}
	if len(status) != n {
		return nil, fmt.Errorf("dataset %q: status has %d rows, time has %d", cohort, len(status), n)
	}
	for i, t := range time {
		if math.IsNaN(t) || t <= 0 {
			return nil, fmt.Errorf("dataset %q: row %d has non-positive time %v", cohort, i+1, t)
		}
	}
	for i, s := range status {
		if s != 0 && s != 1 {
			return nil, fmt.Errorf("dataset %q: row %d has status %d, want 0 or 1", cohort, i+1, s)
		}
	}
	byName := make(map[string]int, len(columns))
	for i, c := range columns {
		if len(c.Values) != n {
			return nil, fmt.Errorf("dataset %q: column %q has %d rows, want %d", cohort, c.Name, len(c.Values), n)
		}
		if _, dup := byName[c.Name]; dup {
			return nil, fmt.Errorf("dataset %q: duplicate column %q", cohort, c.Name)
		}
		byName[c.Name] = i
	}
	return &Dataset{
		Cohort:  cohort,
		Time:    time,
		Status:  status,
		Columns: columns,
		byName:  byName,
	}, nil
}

// NumRows returns the number of subjects.
func (d *Dataset) NumRows() int { return len(d.Time) }

// NumEvents returns the number of subjects with status == 1.
func (d *Dataset) NumEvents() int {
	events := 0
	for _, s := range d.Status {
		events += s
	}
	return events
}

// ColumnIndex returns the index of a predictor column, or -1 if absent.
func (d *Dataset) ColumnIndex(name string) int {
	i, ok := d.byName[name]
	if !ok {
		return -1
	}
	return i
}

// PredictorNames returns all predictor column names in declaration order.
func (d *Dataset) PredictorNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// View returns a row-subset view over the dataset. The row index slice is
// retained, not copied; callers own it.
func (d *Dataset) View(rows []int) *View {
	return &View{ds: d, rows: rows}
}

// FullView returns a view covering every row.
func (d *Dataset) FullView() *View {
	rows := make([]int, d.NumRows())
	for i := range rows {
		rows[i] = i
	}
	return d.View(rows)
}

// View is a read-only row subset of a Dataset. Views share the parent's
// backing arrays, so constructing one is O(1) in data size.
type View struct {
	ds   *Dataset
	rows []int
}

// Len returns the number of rows in the view.
func (v *View) Len() int { return len(v.rows) }

// Dataset returns the parent dataset.
func (v *View) Dataset() *Dataset { return v.ds }

// Rows returns the underlying row indices.
func (v *View) Rows() []int { return v.rows }

// Time returns the survival time of the i-th view row.
func (v *View) Time(i int) float64 { return v.ds.Time[v.rows[i]] }

// Status returns the event status of the i-th view row.
func (v *View) Status(i int) int { return v.ds.Status[v.rows[i]] }

// Value returns the value of predictor column col for the i-th view row.
func (v *View) Value(col, i int) float64 { return v.ds.Columns[col].Values[v.rows[i]] }

// Times materializes the view's survival times.
func (v *View) Times() []float64 {
	out := make([]float64, len(v.rows))
	for i, r := range v.rows {
		out[i] = v.ds.Time[r]
	}
	return out
}

// Statuses materializes the view's event statuses.
func (v *View) Statuses() []int {
	out := make([]int, len(v.rows))
	for i, r := range v.rows {
		out[i] = v.ds.Status[r]
	}
	return out
}

// NumEvents returns the number of events within the view.
func (v *View) NumEvents() int {
	events := 0
	for _, r := range v.rows {
		events += v.ds.Status[r]
	}
	return events
}

// Subset returns a view over a subset of this view's rows, expressed as
// indices into the view (not into the parent dataset).
func (v *View) Subset(local []int) *View {
	rows := make([]int, len(local))
	for i, li := range local {
		rows[i] = v.rows[li]
	}
	return &View{ds: v.ds, rows: rows}
}
