// Package variants implements the model-adapter contract and the built-in
// survival model families. Every family exposes the same capability set
// (fit, predict, importance); the engine never looks inside a family's
// fitting algorithm. Adapters are single-threaded by construction so the
// scheduler's worker count is the only source of parallelism.
package variants

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/clinstat/survcv/internal/dataset"
	"github.com/clinstat/survcv/internal/results"
)

// ErrNoUsablePredictors is returned by Fit when constant-column dropping
// leaves the predictor set empty.
var ErrNoUsablePredictors = errors.New("variants: no usable predictors after dropping constant columns")

// Adapter is the uniform capability contract implemented once per family.
type Adapter interface {
	// Variant returns the family this adapter implements.
	Variant() results.Variant

	// Fit trains on the given rows. Zero-variance predictors within the
	// training rows are silently dropped before fitting; the drops are
	// recorded on the returned model. Fit fails with ErrNoUsablePredictors
	// when nothing remains to fit on.
	Fit(ctx context.Context, train *dataset.View, predictors []string) (Fitted, error)
}

// Fitted is a trained model ready to score new rows.
type Fitted interface {
	// Predict returns one risk score per test row, oriented so that a
	// higher score means higher event risk at the horizon.
	Predict(test *dataset.View, horizon float64) ([]float64, error)

	// Importance returns the model-native raw importance vector. Semantics
	// are family-specific; values may be negative before normalization.
	Importance() results.ImportanceVector

	// DroppedPredictors lists the zero-variance columns removed before the fit.
	DroppedPredictors() []string
}

// New constructs an adapter for the given family, decoding the opaque
// per-family parameter map. Unknown families are rejected.
func New(v results.Variant, params map[string]any) (Adapter, error) {
	switch v {
	case results.ProportionalHazards:
		var p CoxParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return NewCoxPH(p), nil
	case results.RandomSurvivalForest:
		var p ForestParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return NewRandomForest(p), nil
	case results.ObliqueSurvivalForest:
		var p ForestParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return NewObliqueForest(p), nil
	case results.GradientBoostedSurvival:
		var p BoostParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return NewGradientBoost(p), nil
	default:
		return nil, fmt.Errorf("variants: %q is not a known model family", v)
	}
}

func decodeParams(params map[string]any, out any) error {
	if params == nil {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      out,
		ErrorUnused: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(params); err != nil {
		return fmt.Errorf("variants: decoding params: %w", err)
	}
	return nil
}
