package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/clinstat/survcv/internal/reporting"
	"github.com/clinstat/survcv/internal/results"
)

var compareOutputFormat string

func newCompareCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <a.json> <b.json>",
		Short: "Compare two saved evaluation outcomes",
		Long: `Compare two outcome JSON files side by side.

Shows per-variant concordance deltas and whether the selected model changed
between the two runs.`,
		Args: cobra.ExactArgs(2),
		RunE: compareCommandE,
	}

	cmd.Flags().StringVarP(&compareOutputFormat, "format", "f", "table", "Output format: table or json")

	return cmd
}

// variantComparison holds per-variant delta information across the two runs.
// Nil medians mean the variant was absent from that run.
type variantComparison struct {
	Variant     results.Variant `json:"variant"`
	MedianA     *float64        `json:"median_c_a"`
	MedianB     *float64        `json:"median_c_b"`
	MedianDelta *float64        `json:"median_c_delta"`
	SplitsA     int             `json:"successful_splits_a"`
	SplitsB     int             `json:"successful_splits_b"`
}

// comparisonReport is the full comparison output.
type comparisonReport struct {
	Files         [2]string           `json:"files"`
	Cohorts       [2]string           `json:"cohorts"`
	Chosen        [2]results.Variant  `json:"chosen"`
	ChosenChanged bool                `json:"chosen_changed"`
	Variants      []variantComparison `json:"variants"`
}

func compareCommandE(cmd *cobra.Command, args []string) error {
	if compareOutputFormat != "table" && compareOutputFormat != "json" {
		return fmt.Errorf("unsupported format %q: must be table or json", compareOutputFormat)
	}

	a, err := reporting.LoadJSON(args[0])
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", args[0], err)
	}
	b, err := reporting.LoadJSON(args[1])
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", args[1], err)
	}

	report := buildComparisonReport([2]string{args[0], args[1]}, a, b)

	if compareOutputFormat == "json" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	printComparisonTable(cmd, report)
	return nil
}

func buildComparisonReport(files [2]string, a, b *results.EvaluationOutcome) *comparisonReport {
	report := &comparisonReport{
		Files:         files,
		Cohorts:       [2]string{a.Cohort, b.Cohort},
		Chosen:        [2]results.Variant{a.Rationale.Chosen, b.Rationale.Chosen},
		ChosenChanged: a.Rationale.Chosen != b.Rationale.Chosen,
	}

	byVariantA := make(map[results.Variant]results.AggregateMetric)
	for _, m := range a.Aggregates {
		byVariantA[m.Variant] = m
	}
	byVariantB := make(map[results.Variant]results.AggregateMetric)
	for _, m := range b.Aggregates {
		byVariantB[m.Variant] = m
	}

	seen := make(map[results.Variant]bool)
	for _, m := range append(a.Aggregates, b.Aggregates...) {
		if seen[m.Variant] {
			continue
		}
		seen[m.Variant] = true

		vc := variantComparison{Variant: m.Variant}
		if ma, ok := byVariantA[m.Variant]; ok {
			median := ma.MedianC
			vc.MedianA = &median
			vc.SplitsA = ma.SuccessfulSplits
		}
		if mb, ok := byVariantB[m.Variant]; ok {
			median := mb.MedianC
			vc.MedianB = &median
			vc.SplitsB = mb.SuccessfulSplits
		}
		if vc.MedianA != nil && vc.MedianB != nil {
			delta := *vc.MedianB - *vc.MedianA
			vc.MedianDelta = &delta
		}
		report.Variants = append(report.Variants, vc)
	}

	sort.Slice(report.Variants, func(i, j int) bool {
		return report.Variants[i].Variant < report.Variants[j].Variant
	})
	return report
}

func printComparisonTable(cmd *cobra.Command, report *comparisonReport) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Comparing %s vs %s\n\n", report.Files[0], report.Files[1])
	fmt.Fprintf(out, "%-28s %10s %10s %10s %12s\n", "VARIANT", "MEDIAN A", "MEDIAN B", "DELTA", "SPLITS A/B")
	for _, vc := range report.Variants {
		fmt.Fprintf(out, "%-28s %10s %10s %10s %7d/%d\n",
			vc.Variant,
			formatMedian(vc.MedianA),
			formatMedian(vc.MedianB),
			formatDelta(vc.MedianDelta),
			vc.SplitsA, vc.SplitsB)
	}

	fmt.Fprintln(out)
	if report.ChosenChanged {
		fmt.Fprintf(out, "Selected model changed: %s -> %s\n", report.Chosen[0], report.Chosen[1])
	} else {
		fmt.Fprintf(out, "Selected model unchanged: %s\n", report.Chosen[0])
	}
}

func formatMedian(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f", *v)
}

func formatDelta(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%+.3f", *v)
}
