package dataset

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// Required column names in cohort CSV files.
const (
	TimeColumn   = "time"
	StatusColumn = "status"
)

// LoadCSV reads a cohort CSV file into a Dataset. The first row is treated
// as headers; "time" and "status" are required, every other column becomes a
// predictor. A column is numeric when every non-empty cell parses as a float,
// otherwise it is level-coded as categorical. Empty numeric cells become NaN.
func LoadCSV(path, cohort string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: parse %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("csv: %s has no data rows", path)
	}

	headers := records[0]
	timeIdx, statusIdx := -1, -1
	for i, h := range headers {
		switch strings.TrimSpace(h) {
		case TimeColumn:
			timeIdx = i
		case StatusColumn:
			statusIdx = i
		}
	}
	if timeIdx < 0 {
		return nil, fmt.Errorf("csv: %s is missing required column %q", path, TimeColumn)
	}
	if statusIdx < 0 {
		return nil, fmt.Errorf("csv: %s is missing required column %q", path, StatusColumn)
	}

	rows := records[1:]
	n := len(rows)
	for i, rec := range rows {
		if len(rec) != len(headers) {
			return nil, fmt.Errorf("csv: row %d has %d columns, expected %d", i+2, len(rec), len(headers))
		}
	}

	times := make([]float64, n)
	statuses := make([]int, n)
	for i, rec := range rows {
		t, err := strconv.ParseFloat(strings.TrimSpace(rec[timeIdx]), 64)
		if err != nil {
			return nil, fmt.Errorf("csv: row %d: invalid time %q", i+2, rec[timeIdx])
		}
		times[i] = t
		s, err := strconv.Atoi(strings.TrimSpace(rec[statusIdx]))
		if err != nil {
			return nil, fmt.Errorf("csv: row %d: invalid status %q", i+2, rec[statusIdx])
		}
		statuses[i] = s
	}

	var columns []Column
	for j, h := range headers {
		if j == timeIdx || j == statusIdx {
			continue
		}
		name := strings.TrimSpace(h)
		columns = append(columns, buildColumn(name, rows, j))
	}

	return New(cohort, times, statuses, columns)
}

func buildColumn(name string, rows [][]string, idx int) Column {
	numeric := true
	for _, rec := range rows {
		cell := strings.TrimSpace(rec[idx])
		if cell == "" {
			continue
		}
		if _, err := strconv.ParseFloat(cell, 64); err != nil {
			numeric = false
			break
		}
	}

	values := make([]float64, len(rows))
	if numeric {
		for i, rec := range rows {
			cell := strings.TrimSpace(rec[idx])
			if cell == "" {
				values[i] = math.NaN()
				continue
			}
			values[i], _ = strconv.ParseFloat(cell, 64)
		}
		return Column{Name: name, Kind: KindNumeric, Values: values}
	}

	codes := make(map[string]int)
	var levels []string
	for i, rec := range rows {
		cell := strings.TrimSpace(rec[idx])
		code, ok := codes[cell]
		if !ok {
			code = len(levels)
			codes[cell] = code
			levels = append(levels, cell)
		}
		values[i] = float64(code)
	}
	return Column{Name: name, Kind: KindCategorical, Values: values, Levels: levels}
}
