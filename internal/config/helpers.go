package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// ConfigHelpers provides convenient access to global configuration
type ConfigHelpers struct {
	config *GlobalConfig
}

// NewConfigHelpers creates a new config helpers instance
func NewConfigHelpers(config *GlobalConfig) *ConfigHelpers {
	if config == nil {
		config = DefaultGlobalConfig()
	}
	return &ConfigHelpers{config: config}
}

// Workers returns the number of concurrent batch workers
func (c *ConfigHelpers) Workers() int {
	if c.config.Trace.BatchWorkers < 1 {
		return 1
	}
	return c.config.Trace.BatchWorkers
}

// MaxIterations returns the convergence loop round limit
func (c *ConfigHelpers) MaxIterations() int {
	return c.config.Trace.MaxIterations
}

// MaxCmdLen returns the command line length limit for batches
func (c *ConfigHelpers) MaxCmdLen() int {
	return c.config.Trace.MaxCmdLen
}

// TracerEnabled reports whether the tracer with the given tag is configured
func (c *ConfigHelpers) TracerEnabled(tag string) bool {
	return slices.Contains(c.config.Trace.Tracers, tag)
}

// Tracers returns the enabled tracer tags in run order
func (c *ConfigHelpers) Tracers() []string {
	return c.config.Trace.Tracers
}

// OutputFormat returns the default diff format
func (c *ConfigHelpers) OutputFormat() string {
	return c.config.Output.Format
}

// ReportDir returns the absolute path of the unresolved file report
// directory, or "" when reports are disabled
func (c *ConfigHelpers) ReportDir() (string, error) {
	if c.config.Trace.ReportDir == "" {
		return "", nil
	}
	return filepath.Abs(c.config.Trace.ReportDir)
}

// LogLevel returns the configured log level
func (c *ConfigHelpers) LogLevel() string {
	return c.config.Logging.Level
}

// IsDebugMode returns true if debug logging is enabled
func (c *ConfigHelpers) IsDebugMode() bool {
	return c.config.Logging.Level == "debug"
}

// GetConfig returns the underlying global config (for advanced usage)
func (c *ConfigHelpers) GetConfig() *GlobalConfig {
	return c.config
}

// CreateReportDir ensures the report directory exists
func (c *ConfigHelpers) CreateReportDir() error {
	dir, err := c.ReportDir()
	if err != nil {
		return fmt.Errorf("resolving report directory: %w", err)
	}
	if dir == "" {
		return nil
	}
	return createDirIfNotExists(dir)
}

// Helper function to create directories
func createDirIfNotExists(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}
