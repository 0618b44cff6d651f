// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads kiln's configuration from a YAML file and the
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	kilnerrors "github.com/tombee/kiln/pkg/errors"
)

// Config represents the complete kiln configuration.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Sandbox  SandboxConfig  `yaml:"sandbox"`
	Plugins  PluginsConfig  `yaml:"plugins"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is the minimum level (trace, debug, info, warn, error).
	// Environment: LOG_LEVEL
	Level string `yaml:"level"`

	// Format is text or json.
	// Environment: LOG_FORMAT
	Format string `yaml:"format"`

	// AddSource adds file:line to each record.
	// Environment: LOG_SOURCE
	AddSource bool `yaml:"add_source"`
}

// DatabaseConfig locates the results archive.
type DatabaseConfig struct {
	// Path is the archive root.
	// Environment: KILN_DATABASE
	// Default: $XDG_DATA_HOME/kiln/database
	Path string `yaml:"path"`
}

// SandboxConfig controls where workflow sandboxes are created.
type SandboxConfig struct {
	// TempDir is the parent of sandbox directories. Empty uses the system
	// temp directory.
	// Environment: KILN_TEMP_DIR
	TempDir string `yaml:"temp_dir,omitempty"`
}

// PluginsConfig holds per-adapter settings.
type PluginsConfig struct {
	Moose  MooseConfig  `yaml:"moose"`
	OpenMC OpenMCConfig `yaml:"openmc"`
	PyARC  PyARCConfig  `yaml:"pyarc"`
}

// MooseConfig configures MOOSE-family applications (SAM, BISON, Griffin,
// Sockeye).
type MooseConfig struct {
	// Executable is the application binary, e.g. sam-opt.
	// Environment: KILN_MOOSE_EXEC
	// Default: moose-opt
	Executable string `yaml:"executable"`

	// MPIExec is the MPI launcher. Empty runs the executable directly
	// when NCPU is 1.
	// Environment: KILN_MPIEXEC
	// Default: mpiexec
	MPIExec string `yaml:"mpiexec"`

	// NCPU is the number of MPI ranks.
	// Environment: KILN_MOOSE_NCPU
	// Default: 1
	NCPU int `yaml:"n_cpu"`
}

// OpenMCConfig configures OpenMC.
type OpenMCConfig struct {
	// Executable is the openmc binary.
	// Environment: KILN_OPENMC_EXEC
	// Default: openmc
	Executable string `yaml:"executable"`

	// Threads sets OMP_NUM_THREADS for the run. 0 leaves it unset.
	Threads int `yaml:"threads,omitempty"`

	// CrossSections sets OPENMC_CROSS_SECTIONS for the run.
	// Environment: OPENMC_CROSS_SECTIONS
	CrossSections string `yaml:"cross_sections,omitempty"`
}

// PyARCConfig configures PyARC.
type PyARCConfig struct {
	// Executable is the PyARC entry script.
	// Environment: KILN_PYARC_EXEC, PyARC_DIR
	// Default: PyARC.py
	Executable string `yaml:"executable"`

	// Python is the interpreter used to run Executable.
	// Default: python3
	Python string `yaml:"python"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	// Environment: KILN_TRACING
	Enabled bool `yaml:"enabled"`

	// ServiceName identifies kiln in traces.
	ServiceName string `yaml:"service_name,omitempty"`

	// SampleRate is the fraction of workflows traced (0.0 - 1.0).
	SampleRate float64 `yaml:"sample_rate,omitempty"`

	// Exporters lists span destinations.
	Exporters []ExporterConfig `yaml:"exporters,omitempty"`

	// Redaction controls how workflow parameters attached to spans are
	// scrubbed: "standard" (default), "strict" or "none".
	Redaction string `yaml:"redaction,omitempty"`
}

// ExporterConfig defines a span export destination.
type ExporterConfig struct {
	// Type is "console", "otlp" (gRPC) or "otlp-http".
	Type string `yaml:"type"`

	// Endpoint is the OTLP receiver address.
	Endpoint string `yaml:"endpoint,omitempty"`

	// Headers are sent with every export request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Insecure disables TLS.
	Insecure bool `yaml:"insecure,omitempty"`

	// Path, for console exporters, writes spans to a file instead of stdout.
	Path string `yaml:"path,omitempty"`

	// Timeout bounds each export.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// MetricsConfig configures metrics output.
type MetricsConfig struct {
	// TextfilePath, when set, receives Prometheus metrics after each
	// command, for a node exporter textfile collector.
	// Environment: KILN_METRICS_FILE
	TextfilePath string `yaml:"textfile_path,omitempty"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Database: DatabaseConfig{
			Path: defaultDatabasePath(),
		},
		Plugins: PluginsConfig{
			Moose: MooseConfig{
				Executable: "moose-opt",
				MPIExec:    "mpiexec",
				NCPU:       1,
			},
			OpenMC: OpenMCConfig{
				Executable: "openmc",
			},
			PyARC: PyARCConfig{
				Executable: "PyARC.py",
				Python:     "python3",
			},
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "kiln",
			SampleRate:  1.0,
		},
	}
}

// Load loads configuration from an optional YAML file and the
// environment. Environment variables take precedence over the file. If
// configPath is empty, only defaults and the environment are used.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, &kilnerrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", configPath),
				Cause:  err,
			}
		}
	}

	cfg.applyDefaults()
	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads the config file at ConfigPath if it exists.
func LoadDefault() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Load("")
	}
	if _, err := os.Stat(path); err != nil {
		return Load("")
	}
	return Load(path)
}

// applyDefaults fills zero values left by a partial config file.
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
	if c.Database.Path == "" {
		c.Database.Path = defaults.Database.Path
	}
	if c.Plugins.Moose.Executable == "" {
		c.Plugins.Moose.Executable = defaults.Plugins.Moose.Executable
	}
	if c.Plugins.Moose.NCPU == 0 {
		c.Plugins.Moose.NCPU = defaults.Plugins.Moose.NCPU
	}
	if c.Plugins.OpenMC.Executable == "" {
		c.Plugins.OpenMC.Executable = defaults.Plugins.OpenMC.Executable
	}
	if c.Plugins.PyARC.Executable == "" {
		c.Plugins.PyARC.Executable = defaults.Plugins.PyARC.Executable
	}
	if c.Plugins.PyARC.Python == "" {
		c.Plugins.PyARC.Python = defaults.Plugins.PyARC.Python
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = defaults.Tracing.ServiceName
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = defaults.Tracing.SampleRate
	}
}

func (c *Config) loadFromFile(path string) error {
	path = expandHome(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("KILN_LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_SOURCE"); val != "" {
		c.Log.AddSource = isTrue(val)
	}
	if isTrue(os.Getenv("KILN_DEBUG")) {
		c.Log.Level = "debug"
		c.Log.AddSource = true
	}

	if val := os.Getenv("KILN_DATABASE"); val != "" {
		c.Database.Path = expandHome(val)
	}
	if val := os.Getenv("KILN_TEMP_DIR"); val != "" {
		c.Sandbox.TempDir = val
	}

	if val := os.Getenv("KILN_MOOSE_EXEC"); val != "" {
		c.Plugins.Moose.Executable = val
	}
	if val, ok := os.LookupEnv("KILN_MPIEXEC"); ok {
		c.Plugins.Moose.MPIExec = val
	}
	if val := os.Getenv("KILN_MOOSE_NCPU"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Plugins.Moose.NCPU = n
		}
	}

	if val := os.Getenv("KILN_OPENMC_EXEC"); val != "" {
		c.Plugins.OpenMC.Executable = val
	}
	if val := os.Getenv("OPENMC_CROSS_SECTIONS"); val != "" {
		c.Plugins.OpenMC.CrossSections = val
	}

	if val := os.Getenv("PyARC_DIR"); val != "" {
		c.Plugins.PyARC.Executable = filepath.Join(val, "PyARC.py")
	}
	if val := os.Getenv("KILN_PYARC_EXEC"); val != "" {
		c.Plugins.PyARC.Executable = val
	}

	if val := os.Getenv("KILN_TRACING"); val != "" {
		c.Tracing.Enabled = isTrue(val)
	}
	if val := os.Getenv("KILN_METRICS_FILE"); val != "" {
		c.Metrics.TextfilePath = val
	}
}

// Validate checks that the configuration is usable. The first problem
// found is returned as a *errors.ConfigError naming the offending key.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return &kilnerrors.ConfigError{Key: "log.level", Reason: fmt.Sprintf("unknown level %q", c.Log.Level)}
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return &kilnerrors.ConfigError{Key: "log.format", Reason: fmt.Sprintf("unknown format %q", c.Log.Format)}
	}
	if c.Database.Path == "" {
		return &kilnerrors.ConfigError{Key: "database.path", Reason: "must not be empty"}
	}
	if c.Plugins.Moose.NCPU < 1 {
		return &kilnerrors.ConfigError{
			Key:    "plugins.moose.n_cpu",
			Reason: fmt.Sprintf("must be a natural number, got %d", c.Plugins.Moose.NCPU),
		}
	}
	if c.Plugins.OpenMC.Threads < 0 {
		return &kilnerrors.ConfigError{Key: "plugins.openmc.threads", Reason: "must not be negative"}
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return &kilnerrors.ConfigError{
			Key:    "tracing.sample_rate",
			Reason: fmt.Sprintf("must be between 0 and 1, got %v", c.Tracing.SampleRate),
		}
	}
	switch c.Tracing.Redaction {
	case "", "standard", "strict", "none":
	default:
		return &kilnerrors.ConfigError{
			Key:    "tracing.redaction",
			Reason: fmt.Sprintf("unknown mode %q, use standard, strict or none", c.Tracing.Redaction),
		}
	}
	for i, e := range c.Tracing.Exporters {
		key := fmt.Sprintf("tracing.exporters[%d]", i)
		switch e.Type {
		case "console":
		case "otlp", "otlp-http", "otlp_http":
			if e.Endpoint == "" {
				return &kilnerrors.ConfigError{Key: key + ".endpoint", Reason: "required for " + e.Type}
			}
		default:
			return &kilnerrors.ConfigError{Key: key + ".type", Reason: fmt.Sprintf("unknown exporter type %q", e.Type)}
		}
	}
	return nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

func isTrue(val string) bool {
	return val == "1" || strings.ToLower(val) == "true"
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
