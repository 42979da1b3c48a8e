package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/simplejsonspider/internal/schemas"
)

func newValidateCmd() *cobra.Command {
	var schemaPath, inPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a saved JSON file against a JSON Schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := schemas.ValidateJSON(schemaPath, inPath); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Validation passed: %s\n", inPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&schemaPath, "schema", "", "Path to the JSON Schema file (required)")
	cmd.Flags().StringVar(&inPath, "in", "", "Path to the JSON file to validate (required)")

	if err := cmd.MarkFlagRequired("schema"); err != nil {
		panic(fmt.Sprintf("failed to mark schema flag as required: %v", err))
	}
	if err := cmd.MarkFlagRequired("in"); err != nil {
		panic(fmt.Sprintf("failed to mark in flag as required: %v", err))
	}
	return cmd
}
