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

// Package moose adapts MOOSE-based applications (SAM, BISON, Griffin,
// Sockeye and friends) to the plugin contract.
package moose

import (
	"context"
	"io"
	"strconv"

	"github.com/tombee/kiln/internal/config"
	"github.com/tombee/kiln/pkg/errors"
	"github.com/tombee/kiln/pkg/params"
	"github.com/tombee/kiln/pkg/plugin"
	"github.com/tombee/kiln/pkg/results"
)

const (
	// Kind is recorded in results produced by this adapter.
	Kind = "MOOSE"

	// InputName is the rendered input deck.
	InputName = "MOOSE.i"

	// LogFile receives the application's stdout and stderr.
	LogFile = "MOOSE_log.txt"
)

// Plugin runs a MOOSE application on a rendered input deck.
type Plugin struct {
	plugin.TemplatePlugin

	// Executable is the application binary.
	Executable string

	// MPIExec is the MPI launcher. Empty runs Executable directly, which
	// requires NCPU to be 1.
	MPIExec string

	// NCPU is the number of MPI ranks.
	NCPU int

	// Stdout and Stderr, if set, also receive the application's output.
	Stdout io.Writer
	Stderr io.Writer
}

// New returns a plugin rendering template into MOOSE.i and running it
// with the settings in cfg.
func New(template string, cfg config.MooseConfig) (*Plugin, error) {
	p := &Plugin{
		TemplatePlugin: plugin.TemplatePlugin{
			Template:  template,
			InputName: InputName,
		},
		Executable: cfg.Executable,
		MPIExec:    cfg.MPIExec,
		NCPU:       cfg.NCPU,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the run settings.
func (p *Plugin) Validate() error {
	if p.NCPU < 1 {
		return &errors.ConfigError{
			Key:    "plugins.moose.n_cpu",
			Reason: "the CPU count used to run a MOOSE app must be a natural number, got " + strconv.Itoa(p.NCPU),
		}
	}
	if p.MPIExec == "" && p.NCPU > 1 {
		return &errors.ConfigError{
			Key:    "plugins.moose.mpiexec",
			Reason: "running on more than one CPU requires an MPI launcher",
		}
	}
	if p.Executable == "" {
		return &errors.ConfigError{Key: "plugins.moose.executable", Reason: "no executable configured"}
	}
	return nil
}

// Kind implements plugin.Kinder.
func (p *Plugin) Kind() string { return Kind }

// Argv returns the command line Run executes.
func (p *Plugin) Argv() []string {
	input := p.PrimaryInput()
	if p.MPIExec == "" {
		return []string{p.Executable, "-i", input}
	}
	return []string{p.MPIExec, "-n", strconv.Itoa(p.NCPU), p.Executable, "-i", input}
}

// Run launches the application.
func (p *Plugin) Run(ctx context.Context, sb *plugin.Sandbox) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return plugin.Exec(ctx, sb, plugin.Command{
		Plugin:  "moose",
		Argv:    p.Argv(),
		LogFile: LogFile,
		Stdout:  p.Stdout,
		Stderr:  p.Stderr,
	})
}

// Postrun classifies the sandbox and parses the CSV postprocessor output
// into the payload under "csv_data".
func (p *Plugin) Postrun(ctx context.Context, sb *plugin.Sandbox, prm *params.Parameters) (*results.Results, error) {
	inputs := p.InputNames(sb)
	outputs, err := plugin.ClassifyOutputs(sb, inputs)
	if err != nil {
		return nil, err
	}

	data, err := ReadCSV(sb.Dir, p.PrimaryInput(), outputs)
	if err != nil {
		return nil, err
	}

	r := results.New(Kind, sb.Workflow, sb.Started, prm, sb.Dir, inputs, outputs)
	r.LogFile = LogFile
	r.Payload["csv_data"] = data
	return r, nil
}

// Stream implements plugin.Streamer.
func (p *Plugin) Stream(stdout, stderr io.Writer) {
	p.Stdout, p.Stderr = stdout, stderr
}
