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

// Package pyarc adapts the PyARC reactor analysis suite to the plugin
// contract.
package pyarc

import (
	"context"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tombee/kiln/internal/config"
	"github.com/tombee/kiln/pkg/container"
	"github.com/tombee/kiln/pkg/errors"
	"github.com/tombee/kiln/pkg/params"
	"github.com/tombee/kiln/pkg/plugin"
	"github.com/tombee/kiln/pkg/results"
)

const (
	Kind      = "PyARC"
	InputName = "pyarc_input.son"
	LogFile   = "PyARC_log.txt"

	// ResultsFile is where the PyARC driver dumps its user results.
	ResultsFile = "pyarc_results.yaml"
)

// Plugin runs PyARC on a rendered SON input. Quantities are converted to
// SI with temperatures in kelvin before rendering.
type Plugin struct {
	plugin.TemplatePlugin

	// Executable is the path of PyARC.py.
	Executable string

	// Python is the interpreter used to launch Executable.
	Python string

	Stdout io.Writer
	Stderr io.Writer
}

// New returns a plugin rendering template. The PyARC script must exist.
func New(template string, cfg config.PyARCConfig) (*Plugin, error) {
	p := &Plugin{
		TemplatePlugin: plugin.TemplatePlugin{
			Template:     template,
			InputName:    InputName,
			ConvertUnits: &plugin.UnitSystem{System: params.SI, Temperature: params.Kelvin},
		},
		Executable: cfg.Executable,
		Python:     cfg.Python,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks that the PyARC script exists.
func (p *Plugin) Validate() error {
	if p.Executable == "" {
		return &errors.ConfigError{Key: "plugins.pyarc.executable", Reason: "no PyARC executable configured"}
	}
	if _, err := os.Stat(p.Executable); err != nil {
		return &errors.ConfigError{
			Key:    "plugins.pyarc.executable",
			Reason: "PyARC executable " + p.Executable + " is missing",
			Cause:  err,
		}
	}
	return nil
}

// Kind implements plugin.Kinder.
func (p *Plugin) Kind() string { return Kind }

// Run executes PyARC with a scratch work directory outside the sandbox,
// writing its outputs into the sandbox.
func (p *Plugin) Run(ctx context.Context, sb *plugin.Sandbox) error {
	work, err := os.MkdirTemp("", "kiln-pyarc-")
	if err != nil {
		return errors.Wrap(err, "creating PyARC work directory")
	}
	defer os.RemoveAll(work)

	return plugin.Exec(ctx, sb, plugin.Command{
		Plugin:  "pyarc",
		Argv:    p.Argv(work, sb.Dir),
		LogFile: LogFile,
		Stdout:  p.Stdout,
		Stderr:  p.Stderr,
	})
}

// Argv returns the command line for a run using work as scratch space and
// out as the output directory.
func (p *Plugin) Argv(work, out string) []string {
	var argv []string
	if p.Python != "" {
		argv = append(argv, p.Python)
	}
	return append(argv, p.Executable, "-i", InputName, "-w", work, "-o", out)
}

// Postrun treats everything other than the rendered and copied inputs as
// output and loads the results file into the payload when present.
func (p *Plugin) Postrun(ctx context.Context, sb *plugin.Sandbox, prm *params.Parameters) (*results.Results, error) {
	inputs := p.InputNames(sb)
	outputs, err := plugin.ClassifyOutputs(sb, inputs)
	if err != nil {
		return nil, err
	}

	r := results.New(Kind, sb.Workflow, sb.Started, prm, sb.Dir, inputs, outputs)
	r.LogFile = LogFile

	data, err := ReadResults(sb.Path(ResultsFile))
	if err != nil {
		return nil, err
	}
	if data != nil {
		r.Payload["results_data"] = data
	}
	return r, nil
}

// ReadResults decodes a PyARC results file. A missing file yields nil.
func ReadResults(path string) (container.Mapping, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "reading PyARC results")
	}
	var tree map[string]any
	if err := yaml.Unmarshal(b, &tree); err != nil {
		return nil, &errors.ExecutionError{
			Plugin:   "pyarc",
			ExitCode: -1,
			Stderr:   "malformed " + ResultsFile,
			Cause:    err,
		}
	}
	return container.MappingFrom(tree)
}

// Stream implements plugin.Streamer.
func (p *Plugin) Stream(stdout, stderr io.Writer) {
	p.Stdout, p.Stderr = stdout, stderr
}
