// Package config loads the tool configuration file.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/open-edge-platform/os-env-tracer/internal/config/validate"
	"github.com/open-edge-platform/os-env-tracer/internal/tracer"
	"github.com/open-edge-platform/os-env-tracer/internal/utils/logger"
	"gopkg.in/yaml.v3"
)

//go:embed schema/config.schema.json
var configSchema []byte

// DefaultTracers is the tracer order used when the configuration names none.
var DefaultTracers = []string{"debian", "redhat", "conda", "venv", "vcs", "docker"}

// GlobalConfig is the on-disk configuration.
type GlobalConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Trace   TraceConfig   `yaml:"trace"`
	Output  OutputConfig  `yaml:"output"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// TraceConfig tunes the convergence loop and the command batcher.
type TraceConfig struct {
	MaxIterations int      `yaml:"maxIterations"`
	MaxCmdLen     int      `yaml:"maxCmdLen"`
	BatchWorkers  int      `yaml:"batchWorkers"`
	Tracers       []string `yaml:"tracers"`
	ReportDir     string   `yaml:"reportDir"`
}

type OutputConfig struct {
	// Format is the default diff rendering, text or json.
	Format string `yaml:"format"`
}

// DefaultGlobalConfig returns the configuration used without a file.
func DefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		Logging: LoggingConfig{Level: "info"},
		Trace: TraceConfig{
			MaxIterations: 10,
			MaxCmdLen:     tracer.DefaultMaxCmdLen,
			BatchWorkers:  1,
			Tracers:       slices.Clone(DefaultTracers),
		},
		Output: OutputConfig{Format: "text"},
	}
}

// ParseGlobalConfig validates data against the configuration schema and
// decodes it over the defaults.
func ParseGlobalConfig(data []byte) (*GlobalConfig, error) {
	cfg := DefaultGlobalConfig()
	if len(data) == 0 {
		return cfg, nil
	}
	if err := validate.ValidateYAMLAgainstSchema("config.schema.json", configSchema, data, ""); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	// decode into a zero value first so an explicit empty tracer list is
	// distinguishable from an absent one
	var file GlobalConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}
	cfg.merge(&file)
	return cfg, nil
}

func (c *GlobalConfig) merge(o *GlobalConfig) {
	if o.Logging.Level != "" {
		c.Logging.Level = o.Logging.Level
	}
	if o.Trace.MaxIterations > 0 {
		c.Trace.MaxIterations = o.Trace.MaxIterations
	}
	if o.Trace.MaxCmdLen > 0 {
		c.Trace.MaxCmdLen = o.Trace.MaxCmdLen
	}
	if o.Trace.BatchWorkers > 0 {
		c.Trace.BatchWorkers = o.Trace.BatchWorkers
	}
	if o.Trace.Tracers != nil {
		c.Trace.Tracers = o.Trace.Tracers
	}
	if o.Trace.ReportDir != "" {
		c.Trace.ReportDir = o.Trace.ReportDir
	}
	if o.Output.Format != "" {
		c.Output.Format = o.Output.Format
	}
}

// LoadGlobalConfig reads the configuration at path. An empty path, or a
// missing file, yields the defaults.
func LoadGlobalConfig(path string) (*GlobalConfig, error) {
	if path == "" {
		return DefaultGlobalConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Logger().Debugf("config file %s not found, using defaults", path)
			return DefaultGlobalConfig(), nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	cfg, err := ParseGlobalConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}
