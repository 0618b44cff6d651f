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

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tombee/kiln/internal/commands/shared"
	"github.com/tombee/kiln/internal/config"
)

// NewConfigCommand creates the config command with subcommands
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and manage configuration",
		Annotations: map[string]string{
			"group": "configuration",
		},
		Long: `View and manage kiln configuration.

Subcommands:
  show     - Display the effective configuration
  path     - Show config file location
  init     - Write a config file with the defaults
  validate - Check a config file`,
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigPathCommand())
	cmd.AddCommand(newConfigInitCommand())
	cmd.AddCommand(newConfigValidateCommand())

	// If no subcommand provided, default to 'show'
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runConfigShow(cmd, args)
	}

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the effective configuration: defaults, then the config file,
then KILN_* environment variables.

Exporter headers are masked since they usually carry credentials.
Use --json for machine-readable output.`,
		Args: cobra.NoArgs,
		RunE: runConfigShow,
	}
}

func newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show config file location",
		Long:  `Display the path to the configuration file.`,
		Args:  cobra.NoArgs,
		RunE:  runConfigPath,
	}
}

func newConfigInitCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Long: `Init writes the default configuration to the config file location, or
to --config when given. An existing file is kept unless --force is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return shared.NewConfigError(fmt.Sprintf("%s already exists (use --force to overwrite)", path), nil)
			}
			data, err := config.Default().Marshal()
			if err != nil {
				return shared.NewConfigError("failed to encode defaults", err)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
				return shared.NewConfigError("failed to create config directory", err)
			}
			if err := os.WriteFile(path, data, 0o600); err != nil {
				return shared.NewConfigError("failed to write config", err)
			}
			if !shared.GetQuiet() {
				fmt.Fprintln(cmd.OutOrStdout(), shared.RenderOK("Wrote "+path))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func configPath() (string, error) {
	if p := shared.GetConfigPath(); p != "" {
		return p, nil
	}
	p, err := config.ConfigPath()
	if err != nil {
		return "", shared.NewConfigError("failed to determine config path", err)
	}
	return p, nil
}

// runConfigShow displays the effective configuration
func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := shared.LoadConfig()
	if err != nil {
		return err
	}
	masked := maskSensitiveConfig(cfg)

	data, err := masked.Marshal()
	if err != nil {
		return shared.NewConfigError("failed to encode configuration", err)
	}

	if shared.GetJSON() {
		// go through YAML so JSON keys match the file format
		var tree map[string]any
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return shared.NewConfigError("failed to encode configuration", err)
		}
		return shared.EmitJSON(cmd.OutOrStdout(), tree)
	}

	path, err := configPath()
	if err == nil {
		if _, statErr := os.Stat(path); statErr != nil {
			path += " (not found, showing defaults)"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", path)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

// runConfigPath displays the config file path
func runConfigPath(cmd *cobra.Command, args []string) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

// maskSensitiveConfig creates a copy of config with exporter headers masked
func maskSensitiveConfig(cfg *config.Config) *config.Config {
	masked := *cfg
	masked.Tracing.Exporters = make([]config.ExporterConfig, len(cfg.Tracing.Exporters))
	for i, e := range cfg.Tracing.Exporters {
		if len(e.Headers) > 0 {
			headers := make(map[string]string, len(e.Headers))
			for k, v := range e.Headers {
				headers[k] = maskSecret(v)
			}
			e.Headers = headers
		}
		masked.Tracing.Exporters[i] = e
	}
	return &masked
}

// maskSecret masks a credential for display
func maskSecret(value string) string {
	if value == "" {
		return ""
	}
	// Show first 4 and last 4 characters
	if len(value) <= 8 {
		return "****"
	}
	return value[:4] + "..." + value[len(value)-4:]
}
