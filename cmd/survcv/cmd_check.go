package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clinstat/survcv/internal/config"
	"github.com/clinstat/survcv/internal/validation"
)

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check <spec.yaml>",
		Short: "Validate a spec file without running it",
		Long: `Validate a spec file against the embedded JSON Schema and the
field-level rules, without loading the dataset or running anything.`,
		Args: cobra.ExactArgs(1),
		RunE: checkCommandE,
	}
}

func checkCommandE(cmd *cobra.Command, args []string) error {
	specPath := args[0]

	schemaErrs, err := validation.ValidateSpecFile(specPath)
	if err != nil {
		return err
	}
	if len(schemaErrs) > 0 {
		for _, e := range schemaErrs {
			fmt.Fprintf(cmd.OutOrStdout(), "  ✗ %s\n", e)
		}
		return fmt.Errorf("%s: %d schema problem(s)", specPath, len(schemaErrs))
	}

	if _, err := config.Load(specPath); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is valid\n", specPath)
	return nil
}
