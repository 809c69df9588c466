package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/open-edge-platform/os-env-tracer/internal/distributions"
	"github.com/open-edge-platform/os-env-tracer/internal/spec"
	"github.com/spf13/cobra"
)

// Diff command flags
var (
	diffFormat string
	diffPretty bool = true
)

func createDiffCommand() *cobra.Command {
	diffCmd := &cobra.Command{
		Use:   "diff [flags] SPEC_A SPEC_B",
		Short: "Show the differences between two specifications",
		Long: `Diff pairs the distributions and packages of two environment specifications
by identity and reports what is only in the first, only in the second, or
present in both with different versions.`,
		Args: cobra.ExactArgs(2),
		RunE: executeDiff,
	}

	diffCmd.Flags().StringVar(&diffFormat, "format", "",
		"Output format: text or json (default from config output.format)")
	diffCmd.Flags().BoolVar(&diffPretty, "pretty", true,
		"Pretty-print JSON output (only for --format json)")
	return diffCmd
}

// loadPair loads two specifications with the full registry.
func loadPair(pathA, pathB string) (*spec.EnvironmentSpec, *spec.EnvironmentSpec, error) {
	reg := distributions.NewRegistry()
	a, err := spec.Load(pathA, reg)
	if err != nil {
		return nil, nil, err
	}
	b, err := spec.Load(pathB, reg)
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

func executeDiff(cmd *cobra.Command, args []string) error {
	a, b, err := loadPair(args[0], args[1])
	if err != nil {
		return err
	}
	d, err := spec.Diff(a, b)
	if err != nil {
		return fmt.Errorf("diff failed: %w", err)
	}

	format := strings.ToLower(diffFormat)
	if format == "" {
		format = globalConfig.Output.Format
	}
	switch format {
	case "json":
		return writeDiffJSON(cmd, toDiffJSON(d), diffPretty)
	case "text", "":
		return spec.RenderDiffText(cmd.OutOrStdout(), d)
	default:
		return fmt.Errorf("invalid --format %q (expected text|json)", diffFormat)
	}
}

// diffJSON is DiffResult with the one-sided objects rendered as labels.
type diffJSON struct {
	Key      string                 `json:"key"`
	Changes  []spec.FieldChange     `json:"changes,omitempty"`
	OnlyInA  []string               `json:"only_in_a,omitempty"`
	OnlyInB  []string               `json:"only_in_b,omitempty"`
	Modified []spec.ModifiedElement `json:"modified,omitempty"`
	Nested   []*diffJSON            `json:"nested,omitempty"`
}

func toDiffJSON(d *spec.DiffResult) *diffJSON {
	out := &diffJSON{Key: d.Key, Changes: d.Changes, Modified: d.Modified}
	for _, o := range d.OnlyInA {
		out.OnlyInA = append(out.OnlyInA, spec.Describe(o))
	}
	for _, o := range d.OnlyInB {
		out.OnlyInB = append(out.OnlyInB, spec.Describe(o))
	}
	for _, n := range d.Nested {
		out.Nested = append(out.Nested, toDiffJSON(n))
	}
	return out
}

func writeDiffJSON(cmd *cobra.Command, v any, pretty bool) error {
	var (
		b   []byte
		err error
	)
	if pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}
