package main

import (
	"fmt"

	"github.com/open-edge-platform/os-env-tracer/internal/distributions"
	"github.com/open-edge-platform/os-env-tracer/internal/spec"
	"github.com/open-edge-platform/os-env-tracer/internal/utils/logger"
	"github.com/spf13/cobra"
)

// createValidateCommand creates the validate subcommand
func createValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [flags] SPEC_FILE",
		Short: "Validate an environment specification file",
		Long: `Validate checks an environment specification against its schema and
decodes every distribution it holds, without tracing anything.`,
		Args: cobra.ExactArgs(1),
		RunE: executeValidate,
	}
}

// executeValidate handles the validate command logic
func executeValidate(cmd *cobra.Command, args []string) error {
	log := logger.Logger()
	specFile := args[0]

	log.Infof("validating specification file: %s", specFile)
	env, err := spec.Load(specFile, distributions.NewRegistry())
	if err != nil {
		return fmt.Errorf("specification validation failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: valid, %d distributions, %d files\n",
		specFile, len(env.Distributions), len(env.AllFiles()))
	if verbose {
		for _, d := range env.Distributions {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d elements\n", spec.Describe(d), len(d.Elements()))
		}
	}
	return nil
}
