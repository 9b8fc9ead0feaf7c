package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "survcv",
		Short: "survcv - MC-CV evaluation of survival models",
		Long: `survcv evaluates survival model families on a cohort with Monte Carlo
cross-validation.

It generates stratified train/test splits, fits each configured model family
on every split, scores discrimination with a tiered concordance evaluator,
aggregates feature importances weighted by model performance, and selects
the best family with an auditable rule cascade.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newCheckCommand())
	cmd.AddCommand(newCompareCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
