package main

import (
	"fmt"

	"github.com/open-edge-platform/os-env-tracer/internal/spec"
	"github.com/spf13/cobra"
)

func createSatisfiesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "satisfies SPEC_A SPEC_B",
		Short: "Check that SPEC_B provides everything SPEC_A asks for",
		Long: `Satisfies checks that every distribution and package in SPEC_A is matched
by one in SPEC_B. Fields left empty in SPEC_A match any value. The command
exits with status 1 when SPEC_A is not satisfied.`,
		Args: cobra.ExactArgs(2),
		RunE: executeSatisfies,
	}
}

func executeSatisfies(cmd *cobra.Command, args []string) error {
	a, b, err := loadPair(args[0], args[1])
	if err != nil {
		return err
	}
	ok, err := spec.SatisfiedBy(a, b)
	if err != nil {
		return fmt.Errorf("satisfaction check failed: %w", err)
	}
	if !ok {
		fmt.Fprintf(cmd.OutOrStdout(), "%s is not satisfied by %s\n", args[0], args[1])
		return errNotSatisfied
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is satisfied by %s\n", args[0], args[1])
	return nil
}
