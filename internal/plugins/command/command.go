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

// Package command adapts an arbitrary program to the plugin contract. It
// serves codes without a dedicated adapter: the program runs in the
// sandbox and every file it leaves there is an output.
package command

import (
	"context"
	"io"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/tombee/kiln/pkg/errors"
	"github.com/tombee/kiln/pkg/params"
	"github.com/tombee/kiln/pkg/plugin"
	"github.com/tombee/kiln/pkg/results"
)

// InputEnv names the environment variable holding the rendered input's
// file name.
const InputEnv = "KILN_INPUT"

// Plugin runs Argv in the sandbox.
type Plugin struct {
	plugin.TemplatePlugin

	// Name is the kind recorded in results. Default: "Command".
	Name string

	// Argv is the program and its arguments.
	Argv []string

	// Env is added to the inherited environment.
	Env map[string]string

	// LogFile receives stdout and stderr. Default: <Name>_log.txt.
	LogFile string

	// Outputs, when set, restricts outputs to files matching one of these
	// doublestar patterns. Unmatched files are left in the sandbox.
	Outputs []string

	Stdout io.Writer
	Stderr io.Writer
}

// New returns a command plugin running argv.
func New(name string, argv []string) (*Plugin, error) {
	if len(argv) == 0 {
		return nil, &errors.ConfigError{Key: "command", Reason: "no command given"}
	}
	return &Plugin{Name: name, Argv: argv}, nil
}

// Validate checks the output patterns.
func (p *Plugin) Validate() error {
	for _, pattern := range p.Outputs {
		if !doublestar.ValidatePattern(pattern) {
			return &errors.ConfigError{Key: "outputs", Reason: "invalid pattern " + pattern}
		}
	}
	return nil
}

// Kind implements plugin.Kinder.
func (p *Plugin) Kind() string {
	if p.Name == "" {
		return "Command"
	}
	return p.Name
}

func (p *Plugin) logFile() string {
	if p.LogFile != "" {
		return p.LogFile
	}
	return p.Kind() + "_log.txt"
}

// Prerun renders the template when one is set, then copies extra inputs.
func (p *Plugin) Prerun(ctx context.Context, sb *plugin.Sandbox, prm *params.Parameters) error {
	if p.Template == "" {
		return p.CopyExtraInputs(ctx, sb)
	}
	return p.TemplatePlugin.Prerun(ctx, sb, prm)
}

// Run executes the command.
func (p *Plugin) Run(ctx context.Context, sb *plugin.Sandbox) error {
	env := make(map[string]string, len(p.Env)+1)
	for k, v := range p.Env {
		env[k] = v
	}
	if p.Template != "" {
		env[InputEnv] = p.PrimaryInput()
	}
	return plugin.Exec(ctx, sb, plugin.Command{
		Plugin:  p.Kind(),
		Argv:    p.Argv,
		Env:     env,
		LogFile: p.logFile(),
		Stdout:  p.Stdout,
		Stderr:  p.Stderr,
	})
}

// Stream implements plugin.Streamer.
func (p *Plugin) Stream(stdout, stderr io.Writer) {
	p.Stdout, p.Stderr = stdout, stderr
}

// Postrun classifies sandbox files into inputs and outputs.
func (p *Plugin) Postrun(ctx context.Context, sb *plugin.Sandbox, prm *params.Parameters) (*results.Results, error) {
	inputs := p.InputNames(sb)
	outputs, err := plugin.ClassifyOutputs(sb, inputs)
	if err != nil {
		return nil, err
	}
	if len(p.Outputs) > 0 {
		outputs, err = p.filter(outputs)
		if err != nil {
			return nil, err
		}
	}

	r := results.New(p.Kind(), sb.Workflow, sb.Started, prm, sb.Dir, inputs, outputs)
	r.LogFile = p.logFile()
	return r, nil
}

func (p *Plugin) filter(names []string) ([]string, error) {
	log := p.logFile()
	var kept []string
	for _, name := range names {
		if name == log {
			kept = append(kept, name)
			continue
		}
		for _, pattern := range p.Outputs {
			ok, err := doublestar.Match(pattern, name)
			if err != nil {
				return nil, &errors.ConfigError{Key: "outputs", Reason: "invalid pattern " + pattern, Cause: err}
			}
			if ok {
				kept = append(kept, name)
				break
			}
		}
	}
	return kept, nil
}
