package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clinstat/survcv/internal/artifacts"
	"github.com/clinstat/survcv/internal/config"
	"github.com/clinstat/survcv/internal/dataset"
	"github.com/clinstat/survcv/internal/recovery"
	"github.com/clinstat/survcv/internal/reporting"
	"github.com/clinstat/survcv/internal/results"
	"github.com/clinstat/survcv/internal/validation"
)

var (
	outputPath   string
	markdownPath string
	verbose      bool
	workers      int
	artifactsDir string
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <spec.yaml>",
		Short: "Run a cohort evaluation",
		Long: `Run a cohort evaluation from a spec file.

The spec names the cohort CSV, the prediction horizon, the model families to
evaluate, and the split/worker configuration. The run falls back to reduced
configurations when the primary one cannot produce a selection; a degraded
run exits with code 1.`,
		Args: cobra.ExactArgs(1),
		RunE: runCommandE,
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output JSON file for the outcome")
	cmd.Flags().StringVar(&markdownPath, "markdown", "", "Write a markdown report to this file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output with per-unit progress")
	cmd.Flags().IntVar(&workers, "workers", 0, "Number of concurrent workers (overrides spec)")
	cmd.Flags().StringVar(&artifactsDir, "artifacts-dir", "", "Directory for per-unit artifacts (overrides spec)")

	return cmd
}

func runCommandE(cmd *cobra.Command, args []string) error {
	specPath := args[0]

	// Schema validation first so malformed files fail with locations.
	schemaErrs, err := validation.ValidateSpecFile(specPath)
	if err != nil {
		return err
	}
	if len(schemaErrs) > 0 {
		return fmt.Errorf("spec file is invalid:\n  %s", strings.Join(schemaErrs, "\n  "))
	}

	spec, err := config.Load(specPath)
	if err != nil {
		return fmt.Errorf("failed to load spec: %w", err)
	}

	// CLI flags override spec config
	if workers > 0 {
		spec.Workers = workers
	}
	if artifactsDir != "" {
		spec.Artifacts.Dir = artifactsDir
	}

	runCfg := config.NewRunConfig(spec,
		config.WithSpecDir(filepath.Dir(specPath)),
		config.WithOutputPath(outputPath),
		config.WithVerbose(verbose),
	)

	ds, err := dataset.LoadCSV(spec.Dataset, spec.Cohort)
	if err != nil {
		return fmt.Errorf("failed to load cohort dataset: %w", err)
	}

	reporter := newConsoleReporter(cmd.OutOrStdout(), runCfg.Verbose())
	opts := []recovery.Option{recovery.WithProgress(reporter.Listen)}

	if spec.Artifacts.Dir != "" {
		dir := spec.Artifacts.Dir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(runCfg.SpecDir(), dir)
		}
		repo, err := artifacts.NewFS(dir)
		if err != nil {
			return err
		}
		opts = append(opts, recovery.WithArtifacts(repo))
	}

	pipeline := recovery.New(spec, ds, opts...)
	outcome, err := pipeline.Run(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprint(cmd.OutOrStdout(), reporting.SummaryReport(outcome))

	if runCfg.OutputPath() != "" {
		if err := reporting.SaveJSON(runCfg.OutputPath(), outcome); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nOutcome written to %s\n", runCfg.OutputPath())
	}

	if markdownPath != "" {
		if err := os.WriteFile(markdownPath, []byte(reporting.MarkdownSummary(outcome)), 0o644); err != nil {
			return fmt.Errorf("writing markdown report: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Markdown report written to %s\n", markdownPath)
	}

	if outcome.Tier != results.TierPrimary {
		return &DegradedRunError{
			Message: fmt.Sprintf("evaluation degraded to the %s tier", outcome.Tier),
		}
	}
	return nil
}
