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

package workflow

import (
	"github.com/tombee/kiln/internal/config"
	"github.com/tombee/kiln/internal/plugins/command"
	"github.com/tombee/kiln/internal/plugins/moose"
	"github.com/tombee/kiln/internal/plugins/openmc"
	"github.com/tombee/kiln/internal/plugins/pyarc"
	"github.com/tombee/kiln/pkg/plugin"
)

// Build constructs the adapter the definition names. Settings the
// definition leaves out come from cfg.
func (d *Definition) Build(cfg *config.Config) (plugin.Plugin, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	tp := d.templatePlugin()

	switch d.Plugin {
	case PluginMOOSE:
		mc := cfg.Plugins.Moose
		if d.Executable != "" {
			mc.Executable = d.Executable
		}
		if d.NCPU > 0 {
			mc.NCPU = d.NCPU
		}
		p, err := moose.New(tp.Template, mc)
		if err != nil {
			return nil, err
		}
		tp.InputName = moose.InputName
		p.TemplatePlugin = tp
		return p, nil

	case PluginOpenMC:
		oc := cfg.Plugins.OpenMC
		if d.Executable != "" {
			oc.Executable = d.Executable
		}
		p := openmc.New(oc)
		p.TemplatePlugin = tp
		p.Args = d.Args
		return p, nil

	case PluginPyARC:
		pc := cfg.Plugins.PyARC
		if d.Executable != "" {
			pc.Executable = d.Executable
		}
		p, err := pyarc.New(tp.Template, pc)
		if err != nil {
			return nil, err
		}
		tp.InputName = pyarc.InputName
		if tp.ConvertUnits == nil {
			tp.ConvertUnits = p.ConvertUnits
		}
		p.TemplatePlugin = tp
		return p, nil

	case PluginCommand:
		p, err := command.New(d.Kind, d.Command)
		if err != nil {
			return nil, err
		}
		p.TemplatePlugin = tp
		p.Outputs = d.Outputs
		if err := p.Validate(); err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, d.Validate()
}

func (d *Definition) templatePlugin() plugin.TemplatePlugin {
	tp := plugin.TemplatePlugin{
		Template:            d.Resolve(d.Template),
		InputName:           d.InputName,
		ExtraInputs:         d.resolveAll(d.ExtraInputs),
		ExtraTemplateInputs: d.resolveAll(d.ExtraTemplateInputs),
	}
	if u := d.ConvertUnits; u != nil {
		tp.ConvertUnits = &plugin.UnitSystem{System: u.System, Temperature: u.Temperature}
	}
	return tp
}
