// Package reporting renders evaluation outcomes as console tables and
// plain-language summaries, and persists the outcome JSON.
package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/clinstat/survcv/internal/aggregate"
	"github.com/clinstat/survcv/internal/results"
)

// perModelFeatureLimit caps the per-model feature tables in the console
// report; the full vectors live in the outcome JSON.
const perModelFeatureLimit = 10

// InterpretConcordance returns a plain-language label for a C-index.
func InterpretConcordance(c float64) string {
	switch {
	case c >= 0.8:
		return "Strong discrimination (C >= 0.80)"
	case c >= 0.7:
		return "Good discrimination (0.70-0.80)"
	case c >= 0.6:
		return "Modest discrimination (0.60-0.70)"
	default:
		return "Weak discrimination (C < 0.60)"
	}
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}

func writeRow(b *strings.Builder, widths []int, cells ...string) {
	for i, cell := range cells {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(padRight(cell, widths[i]))
	}
	b.WriteString("\n")
}

// CSummaryTable renders the per-model concordance summary.
func CSummaryTable(aggregates []results.AggregateMetric) string {
	widths := []int{28, 8, 8, 8, 16, 10}
	var b strings.Builder

	writeRow(&b, widths, "MODEL", "MEAN C", "MEDIAN C", "SD", "95% CI", "SPLITS")
	for _, a := range aggregates {
		writeRow(&b, widths,
			string(a.Variant),
			fmt.Sprintf("%.3f", a.MeanC),
			fmt.Sprintf("%.3f", a.MedianC),
			fmt.Sprintf("%.3f", a.StdDevC),
			fmt.Sprintf("[%.3f, %.3f]", a.CILower, a.CIUpper),
			fmt.Sprintf("%d/%d", a.SuccessfulSplits, a.TotalSplits),
		)
	}
	return b.String()
}

// FeatureTable renders one model's top features alongside that model's
// concordance, matching the downstream per-model table shape.
func FeatureTable(metric results.AggregateMetric, iv results.ImportanceVector, topN int) string {
	widths := []int{28, 12, 8, 8}
	var b strings.Builder

	writeRow(&b, widths, "FEATURE", "IMPORTANCE", "MEAN C", "MEDIAN C")
	for _, fw := range aggregate.TopFeatures(iv, topN) {
		writeRow(&b, widths,
			fw.Feature,
			fmt.Sprintf("%.4f", fw.Weight),
			fmt.Sprintf("%.3f", metric.MeanC),
			fmt.Sprintf("%.3f", metric.MedianC),
		)
	}
	return b.String()
}

// TopFeatureTable renders the combined cross-model feature ranking.
func TopFeatureTable(features []results.FeatureWeight) string {
	widths := []int{6, 28, 12}
	var b strings.Builder

	writeRow(&b, widths, "RANK", "FEATURE", "IMPORTANCE")
	for i, fw := range features {
		writeRow(&b, widths,
			fmt.Sprintf("%d", i+1),
			fw.Feature,
			fmt.Sprintf("%.4f", fw.Weight),
		)
	}
	return b.String()
}

// RationaleSummary explains the selection in plain language.
func RationaleSummary(r results.SelectionRationale) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Selected model for cohort %q: %s\n", r.Cohort, r.Chosen)
	fmt.Fprintf(&b, "Deciding rules: %s\n", strings.Join(r.RulesApplied, " -> "))
	for _, c := range r.Candidates {
		marker := " "
		if c.Variant == r.Chosen {
			marker = "*"
		}
		fmt.Fprintf(&b, "  %s %s  median C %.3f  sd %.3f  CI [%.3f, %.3f]\n",
			marker, padRight(string(c.Variant), 28), c.MedianC, c.StdDevC, c.CILower, c.CIUpper)
	}
	return b.String()
}

// SummaryReport composes the full console report for a run.
func SummaryReport(outcome *results.EvaluationOutcome) string {
	var b strings.Builder

	duration := time.Duration(outcome.DurationMs) * time.Millisecond
	fmt.Fprintf(&b, "Run %s  cohort %q  tier %s  %.0f%% units succeeded  (%s)\n\n",
		outcome.RunID, outcome.Cohort, outcome.Tier, outcome.SuccessRate()*100, duration)

	b.WriteString("Concordance summary\n")
	b.WriteString(CSummaryTable(outcome.Aggregates))
	b.WriteString("\n")

	if len(outcome.Aggregates) > 0 {
		best := outcome.Aggregates[0]
		for _, a := range outcome.Aggregates[1:] {
			if a.MedianC > best.MedianC {
				best = a
			}
		}
		fmt.Fprintf(&b, "%s\n\n", InterpretConcordance(best.MedianC))
	}

	for _, a := range outcome.Aggregates {
		iv, ok := outcome.VariantImportances[a.Variant]
		if !ok || len(iv) == 0 {
			continue
		}
		fmt.Fprintf(&b, "Features: %s\n", a.Variant)
		b.WriteString(FeatureTable(a, iv, perModelFeatureLimit))
		b.WriteString("\n")
	}

	b.WriteString("Top features\n")
	b.WriteString(TopFeatureTable(outcome.TopFeatures))
	b.WriteString("\n")

	b.WriteString(RationaleSummary(outcome.Rationale))
	return b.String()
}

// MarkdownSummary formats an outcome as a markdown report suitable for PR
// comments or run logs.
func MarkdownSummary(outcome *results.EvaluationOutcome) string {
	var b strings.Builder

	duration := time.Duration(outcome.DurationMs) * time.Millisecond

	b.WriteString("## Survival Model Evaluation\n\n")

	statusIcon := "✅ Primary"
	if outcome.Tier != results.TierPrimary {
		statusIcon = fmt.Sprintf("⚠️ Degraded (%s tier)", outcome.Tier)
	}
	fmt.Fprintf(&b, "**Cohort:** %s | **Status:** %s | **Duration:** %s\n\n",
		outcome.Cohort, statusIcon, duration)
	fmt.Fprintf(&b, "- **Units:** %d total, %.1f%% succeeded\n",
		len(outcome.SplitResults), outcome.SuccessRate()*100)
	fmt.Fprintf(&b, "- **Selected model:** %s (rules: %s)\n\n",
		outcome.Rationale.Chosen, strings.Join(outcome.Rationale.RulesApplied, ", "))

	b.WriteString("### Concordance\n\n")
	b.WriteString("| Model | Median C | Mean C | SD | 95% CI | Splits |\n")
	b.WriteString("|-------|----------|--------|----|--------|--------|\n")
	for _, a := range outcome.Aggregates {
		marker := ""
		if a.Variant == outcome.Rationale.Chosen {
			marker = " ⭐"
		}
		fmt.Fprintf(&b, "| %s%s | %.3f | %.3f | %.3f | [%.3f, %.3f] | %d/%d |\n",
			a.Variant, marker, a.MedianC, a.MeanC, a.StdDevC,
			a.CILower, a.CIUpper, a.SuccessfulSplits, a.TotalSplits)
	}
	b.WriteString("\n")

	if len(outcome.TopFeatures) > 0 {
		b.WriteString("### Top Features\n\n")
		b.WriteString("| Rank | Feature | Importance |\n")
		b.WriteString("|------|---------|------------|\n")
		for i, fw := range outcome.TopFeatures {
			fmt.Fprintf(&b, "| %d | %s | %.4f |\n", i+1, fw.Feature, fw.Weight)
		}
		b.WriteString("\n")
	}

	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "**Run:** %s | **Generated:** %s\n",
		outcome.RunID, outcome.Timestamp.Format(time.RFC3339))

	return b.String()
}

// SaveJSON writes the outcome to path as indented JSON.
func SaveJSON(path string, outcome *results.EvaluationOutcome) error {
	data, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling outcome: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing outcome: %w", err)
	}
	return nil
}

// LoadJSON reads an outcome previously written with SaveJSON.
func LoadJSON(path string) (*results.EvaluationOutcome, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading outcome: %w", err)
	}
	var outcome results.EvaluationOutcome
	if err := json.Unmarshal(data, &outcome); err != nil {
		return nil, fmt.Errorf("parsing outcome: %w", err)
	}
	return &outcome, nil
}
