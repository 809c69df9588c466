package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/open-edge-platform/os-env-tracer/internal/config"
	"github.com/open-edge-platform/os-env-tracer/internal/utils/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Global flags
var (
	configFile string
	logLevel   string
	verbose    bool
)

// globalConfig is loaded by the logging hook before any subcommand runs.
var globalConfig = config.DefaultGlobalConfig()

// errNotSatisfied makes the process exit with status 1 without printing
// an error.
var errNotSatisfied = errors.New("specification not satisfied")

func main() {
	if err := createRootCommand().Execute(); err != nil {
		if errors.Is(err, errNotSatisfied) {
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
}

func createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "os-env-tracer",
		Short: "Trace files back to the distributions that provide them",
		Long: `os-env-tracer identifies which packages, environments, checkouts and
images provide a set of files, and records the result as a YAML environment
specification that can be compared with another one or retraced later.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addGlobalFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(createTraceCommand())
	rootCmd.AddCommand(createDiffCommand())
	rootCmd.AddCommand(createSatisfiesCommand())
	rootCmd.AddCommand(createValidateCommand())

	attachLoggingHooks(rootCmd)
	return rootCmd
}

func addGlobalFlags(fs *pflag.FlagSet) {
	fs.StringVar(&configFile, "config", "", "Path to the configuration file")
	fs.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides config)")
	fs.BoolVarP(&verbose, "verbose", "v", false, "Shorthand for --log-level debug")
}

// attachLoggingHooks installs the configuration and logger setup on every
// subcommand.
func attachLoggingHooks(root *cobra.Command) {
	for _, cmd := range root.Commands() {
		cmd.PersistentPreRunE = setupRuntime
	}
}

func setupRuntime(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadGlobalConfig(configFile)
	if err != nil {
		return err
	}
	level := resolveRequestedLogLevel(cmd)
	if level == "" {
		level = cfg.Logging.Level
	}
	z, err := logger.New(level)
	if err != nil {
		return err
	}
	logger.Init(z)
	globalConfig = cfg
	return nil
}

// resolveRequestedLogLevel returns the level asked for on the command line,
// or "" to fall back to the configuration.
func resolveRequestedLogLevel(cmd *cobra.Command) string {
	if logLevel != "" {
		return logLevel
	}
	if cmd == nil {
		return ""
	}
	if f := cmd.Flags().Lookup("verbose"); f != nil && f.Changed && f.Value.String() == "true" {
		return "debug"
	}
	return ""
}
