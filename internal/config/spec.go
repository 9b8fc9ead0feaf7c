// Package config provides the evaluation spec types and YAML loader for
// survcv spec files, plus the run-time configuration object handed to the
// pipeline.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/clinstat/survcv/internal/results"
)

// Default values for evaluation specs. These are the single source of
// truth: applyDefaults references them and no other code should duplicate
// them.
const (
	DefaultSplits              = 100
	DefaultTrainFraction       = 0.75
	DefaultWorkers             = 4
	DefaultSeed                = 1
	DefaultMinSuccessfulSplits = 3
	DefaultTieThreshold        = 0.005
	DefaultTopFeatures         = 20

	AggregateMean   = "mean"
	AggregateMedian = "median"
)

// VariantSpec names one model family and carries its opaque fit parameters.
// Parameters are decoded inside the adapter constructor, never here.
type VariantSpec struct {
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:"params,omitempty"`
}

// ArtifactsSpec configures optional per-unit artifact persistence.
type ArtifactsSpec struct {
	Dir string `yaml:"dir,omitempty"`
}

// Spec is the top-level evaluation spec loaded from YAML.
type Spec struct {
	Name    string `yaml:"name"`
	Cohort  string `yaml:"cohort"`
	Dataset string `yaml:"dataset"`

	Splits        int     `yaml:"n_splits,omitempty"`
	TrainFraction float64 `yaml:"train_fraction,omitempty"`
	Horizon       float64 `yaml:"horizon"`
	Workers       int     `yaml:"workers,omitempty"`
	Seed          int64   `yaml:"seed,omitempty"`

	MinSuccessfulSplits int     `yaml:"min_successful_splits,omitempty"`
	TieThreshold        float64 `yaml:"tie_threshold,omitempty"`
	TopFeatures         int     `yaml:"top_features,omitempty"`
	Aggregate           string  `yaml:"aggregate,omitempty"`

	Variants  []VariantSpec `yaml:"variants"`
	Artifacts ArtifactsSpec `yaml:"artifacts,omitempty"`
}

// Load reads and parses a spec file, fills in defaults, and validates the
// result. The returned spec is ready for the pipeline.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading spec file: %w", err)
	}

	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parsing spec file: %w", err)
	}

	spec.applyDefaults()
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	// Dataset path is relative to the spec file.
	if spec.Dataset != "" && !filepath.IsAbs(spec.Dataset) {
		spec.Dataset = filepath.Join(filepath.Dir(path), spec.Dataset)
	}

	return &spec, nil
}

func (s *Spec) applyDefaults() {
	if s.Splits == 0 {
		s.Splits = DefaultSplits
	}
	if s.TrainFraction == 0 {
		s.TrainFraction = DefaultTrainFraction
	}
	if s.Workers == 0 {
		s.Workers = DefaultWorkers
	}
	if s.Seed == 0 {
		s.Seed = DefaultSeed
	}
	if s.MinSuccessfulSplits == 0 {
		s.MinSuccessfulSplits = DefaultMinSuccessfulSplits
	}
	if s.TieThreshold == 0 {
		s.TieThreshold = DefaultTieThreshold
	}
	if s.TopFeatures == 0 {
		s.TopFeatures = DefaultTopFeatures
	}
	if s.Aggregate == "" {
		s.Aggregate = AggregateMean
	}
	if len(s.Variants) == 0 {
		for _, v := range results.AllVariants() {
			s.Variants = append(s.Variants, VariantSpec{Name: string(v)})
		}
	}
}

// Validate checks field-level constraints. Schema-shape validation of the
// raw YAML is a separate concern handled by the validation package.
func (s *Spec) Validate() error {
	if s.Cohort == "" {
		return fmt.Errorf("spec: cohort is required")
	}
	if s.Dataset == "" {
		return fmt.Errorf("spec: dataset is required")
	}
	if s.Splits < 1 {
		return fmt.Errorf("spec: n_splits must be >= 1, got %d", s.Splits)
	}
	if s.TrainFraction <= 0 || s.TrainFraction >= 1 {
		return fmt.Errorf("spec: train_fraction must be in (0, 1), got %g", s.TrainFraction)
	}
	if s.Horizon <= 0 {
		return fmt.Errorf("spec: horizon must be positive, got %g", s.Horizon)
	}
	if s.Workers < 1 {
		return fmt.Errorf("spec: workers must be >= 1, got %d", s.Workers)
	}
	if s.MinSuccessfulSplits < 1 {
		return fmt.Errorf("spec: min_successful_splits must be >= 1, got %d", s.MinSuccessfulSplits)
	}
	if s.TieThreshold < 0 {
		return fmt.Errorf("spec: tie_threshold must be >= 0, got %g", s.TieThreshold)
	}
	if s.TopFeatures < 1 {
		return fmt.Errorf("spec: top_features must be >= 1, got %d", s.TopFeatures)
	}
	if s.Aggregate != AggregateMean && s.Aggregate != AggregateMedian {
		return fmt.Errorf("spec: aggregate must be %q or %q, got %q",
			AggregateMean, AggregateMedian, s.Aggregate)
	}
	seen := make(map[string]bool, len(s.Variants))
	for _, v := range s.Variants {
		if !results.Variant(v.Name).Valid() {
			return fmt.Errorf("spec: %q is not a known model family", v.Name)
		}
		if seen[v.Name] {
			return fmt.Errorf("spec: duplicate variant %q", v.Name)
		}
		seen[v.Name] = true
	}
	return nil
}
