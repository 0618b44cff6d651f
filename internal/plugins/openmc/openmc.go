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

// Package openmc adapts the OpenMC Monte Carlo code to the plugin
// contract.
package openmc

import (
	"context"
	"io"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/tombee/kiln/internal/config"
	"github.com/tombee/kiln/pkg/errors"
	"github.com/tombee/kiln/pkg/params"
	"github.com/tombee/kiln/pkg/plugin"
	"github.com/tombee/kiln/pkg/results"
)

const (
	// Kind is recorded in results produced by this adapter.
	Kind = "OpenMC"

	// LogFile receives OpenMC's stdout and stderr.
	LogFile = "OpenMC_log.txt"
)

// output patterns, in the order they are reported
var outputPatterns = []string{"tallies.out", "source.*.h5", "particle.*.h5", "statepoint.*.h5"}

// mtimeSlack widens the "since" window because filesystem timestamps
// come from a coarser clock than time.Now.
const mtimeSlack = time.Second

var keffPattern = regexp.MustCompile(`Combined k-effective\s*=\s*([-+0-9.eE]+)\s*\+/-\s*([-+0-9.eE]+)`)

// ModelBuilder writes OpenMC XML inputs into dir from the parameters.
type ModelBuilder func(ctx context.Context, dir string, p *params.Parameters) error

// Plugin runs OpenMC on XML inputs produced by templates, a model builder
// or both.
type Plugin struct {
	plugin.TemplatePlugin

	// Builder, if set, runs after the templates are rendered.
	Builder ModelBuilder

	// Executable is the openmc binary.
	Executable string

	// Args are passed to openmc, e.g. ["--threads", "4"].
	Args []string

	// Threads sets OMP_NUM_THREADS when positive.
	Threads int

	// CrossSections sets OPENMC_CROSS_SECTIONS when not empty.
	CrossSections string

	Stdout io.Writer
	Stderr io.Writer
}

// New returns a plugin using the settings in cfg. Inputs come from the
// embedded TemplatePlugin and Builder, configured by the caller.
func New(cfg config.OpenMCConfig) *Plugin {
	return &Plugin{
		Executable:    cfg.Executable,
		Threads:       cfg.Threads,
		CrossSections: cfg.CrossSections,
	}
}

// Kind implements plugin.Kinder.
func (p *Plugin) Kind() string { return Kind }

// Prerun produces the XML inputs.
func (p *Plugin) Prerun(ctx context.Context, sb *plugin.Sandbox, prm *params.Parameters) error {
	if p.Template == "" && p.Builder == nil && len(p.ExtraInputs) == 0 && len(p.ExtraTemplateInputs) == 0 {
		return &errors.ConfigError{Key: "openmc", Reason: "no template, model builder or inputs configured"}
	}
	if p.Template != "" {
		if err := p.TemplatePlugin.Prerun(ctx, sb, prm); err != nil {
			return err
		}
	} else {
		if err := p.CopyExtraInputs(ctx, sb); err != nil {
			return err
		}
	}
	if p.Builder != nil {
		if err := p.Builder(ctx, sb.Dir, prm); err != nil {
			return err
		}
	}
	return nil
}

// Run launches OpenMC in the sandbox.
func (p *Plugin) Run(ctx context.Context, sb *plugin.Sandbox) error {
	env := map[string]string{}
	if p.Threads > 0 {
		env["OMP_NUM_THREADS"] = strconv.Itoa(p.Threads)
	}
	if p.CrossSections != "" {
		env["OPENMC_CROSS_SECTIONS"] = p.CrossSections
	}
	return plugin.Exec(ctx, sb, plugin.Command{
		Plugin:  "openmc",
		Argv:    append([]string{p.Executable}, p.Args...),
		Env:     env,
		LogFile: LogFile,
		Stdout:  p.Stdout,
		Stderr:  p.Stderr,
	})
}

// Postrun classifies XML files written since the run started as inputs
// and OpenMC's log, tallies, source, particle and statepoint files as
// outputs. The payload holds k-effective when the log reports it.
func (p *Plugin) Postrun(ctx context.Context, sb *plugin.Sandbox, prm *params.Parameters) (*results.Results, error) {
	since := sb.Started.Add(-mtimeSlack)

	inputs, err := results.FilesSince(sb.Dir, []string{"*.xml"}, since)
	if err != nil {
		return nil, err
	}
	for _, name := range p.InputNames(sb) {
		if !contains(inputs, name) {
			inputs = append(inputs, name)
		}
	}

	outputs := []string{LogFile}
	var statepoints []string
	for _, pattern := range outputPatterns {
		found, err := results.FilesSince(sb.Dir, []string{pattern}, since)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, found...)
		if pattern == "statepoint.*.h5" {
			statepoints = found
		}
	}

	r := results.New(Kind, sb.Workflow, sb.Started, prm, sb.Dir, inputs, outputs)
	r.LogFile = LogFile
	if len(statepoints) > 0 {
		r.Payload["statepoints"] = statepoints
	}

	log, err := os.ReadFile(sb.Path(LogFile))
	if err != nil {
		return nil, errors.Wrap(err, "reading OpenMC log")
	}
	if keff, std, ok := ParseKeff(string(log)); ok {
		r.Payload["keff"] = keff
		r.Payload["keff_std"] = std
	}
	return r, nil
}

// ParseKeff extracts the combined k-effective estimate and its standard
// deviation from OpenMC output. It reports false when the output has none,
// as for fixed-source runs.
func ParseKeff(output string) (keff, std float64, ok bool) {
	matches := keffPattern.FindAllStringSubmatch(output, -1)
	if len(matches) == 0 {
		return 0, 0, false
	}
	last := matches[len(matches)-1]
	keff, err1 := strconv.ParseFloat(last[1], 64)
	std, err2 := strconv.ParseFloat(last[2], 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return keff, std, true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Stream implements plugin.Streamer.
func (p *Plugin) Stream(stdout, stderr io.Writer) {
	p.Stdout, p.Stderr = stdout, stderr
}
