package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

func TestResolveRequestedLogLevelPrefersExplicitFlag(t *testing.T) {
	prev := logLevel
	logLevel = "warn"
	t.Cleanup(func() {
		logLevel = prev
	})

	if got := resolveRequestedLogLevel(nil); got != "warn" {
		t.Fatalf("expected explicit log level to win, got %q", got)
	}
}

func TestResolveRequestedLogLevelUsesVerboseFallback(t *testing.T) {
	prev := logLevel
	logLevel = ""
	t.Cleanup(func() {
		logLevel = prev
	})

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().Bool("verbose", false, "")
	if err := cmd.Flags().Set("verbose", "true"); err != nil {
		t.Fatalf("set verbose: %v", err)
	}

	if got := resolveRequestedLogLevel(cmd); got != "debug" {
		t.Fatalf("expected verbose flag to set debug level, got %q", got)
	}
}

func TestResolveRequestedLogLevelIgnoresUnsetVerbose(t *testing.T) {
	prev := logLevel
	logLevel = ""
	t.Cleanup(func() {
		logLevel = prev
	})

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().Bool("verbose", false, "")

	if got := resolveRequestedLogLevel(cmd); got != "" {
		t.Fatalf("expected empty when verbose not set, got %q", got)
	}
}

func TestAttachLoggingHooksAddsHookToSubcommands(t *testing.T) {
	root := createRootCommand()
	for _, name := range []string{"trace", "diff", "satisfies", "validate"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil {
			t.Fatalf("find %s command: %v", name, err)
		}
		if cmd.PersistentPreRunE == nil {
			t.Errorf("expected logging hook on %s command", name)
		}
	}
}

func TestSetupRuntimeLoadsConfig(t *testing.T) {
	prevFile, prevCfg := configFile, globalConfig
	t.Cleanup(func() {
		configFile, globalConfig = prevFile, prevCfg
	})

	configFile = filepath.Join(t.TempDir(), "os-env-tracer.yml")
	if err := os.WriteFile(configFile, []byte("output:\n  format: json\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := setupRuntime(&cobra.Command{Use: "test"}, nil); err != nil {
		t.Fatalf("setupRuntime: %v", err)
	}
	if globalConfig.Output.Format != "json" {
		t.Errorf("expected config to be loaded, got format %q", globalConfig.Output.Format)
	}

	if err := os.WriteFile(configFile, []byte("output:\n  format: xml\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := setupRuntime(&cobra.Command{Use: "test"}, nil); err == nil {
		t.Error("expected invalid config to be rejected")
	}
}

// runRoot executes the CLI with args and returns stdout.
func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := createRootCommand()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}
