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

// Package workflow loads workflow definitions: YAML files naming a
// simulation code adapter, its templates and inputs, and the parameters
// to render them with.
package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/tombee/kiln/pkg/archive"
	"github.com/tombee/kiln/pkg/errors"
	"github.com/tombee/kiln/pkg/params"
)

// Adapter names accepted in the plugin field.
const (
	PluginMOOSE   = "moose"
	PluginOpenMC  = "openmc"
	PluginPyARC   = "pyarc"
	PluginCommand = "command"
)

// Plugins returns the accepted adapter names.
func Plugins() []string {
	return []string{PluginMOOSE, PluginOpenMC, PluginPyARC, PluginCommand}
}

// DefaultName is used when a definition has no name.
const DefaultName = "Workflow"

// Definition describes one workflow: which adapter runs, what it renders
// and the parameters it renders with.
//
// Relative paths are resolved against the directory of the definition
// file when it was loaded with LoadDefinition.
type Definition struct {
	// Name is the archive name requested for each run.
	Name string `yaml:"name" json:"name,omitempty"`

	// Description provides human-readable context about the workflow
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Plugin selects the adapter (moose, openmc, pyarc, command).
	Plugin string `yaml:"plugin" json:"plugin" jsonschema:"enum=moose,enum=openmc,enum=pyarc,enum=command"`

	// Template is the primary input template.
	Template string `yaml:"template,omitempty" json:"template,omitempty"`

	// InputName overrides the file the primary template renders to, for
	// adapters that do not fix it.
	InputName string `yaml:"input_name,omitempty" json:"input_name,omitempty"`

	// Executable overrides the configured executable of the adapter.
	Executable string `yaml:"executable,omitempty" json:"executable,omitempty"`

	// NCPU overrides the configured MPI rank count (moose).
	NCPU int `yaml:"n_cpu,omitempty" json:"n_cpu,omitempty" jsonschema:"minimum=1"`

	// Command is the argv of the command adapter.
	Command []string `yaml:"command,omitempty" json:"command,omitempty"`

	// Kind is recorded in results by the command adapter.
	Kind string `yaml:"kind,omitempty" json:"kind,omitempty"`

	// Args are extra arguments for openmc.
	Args []string `yaml:"args,omitempty" json:"args,omitempty"`

	// Outputs restricts the archived outputs of the command adapter to
	// names matching these patterns.
	Outputs []string `yaml:"outputs,omitempty" json:"outputs,omitempty"`

	ExtraInputs         []string `yaml:"extra_inputs,omitempty" json:"extra_inputs,omitempty"`
	ExtraTemplateInputs []string `yaml:"extra_template_inputs,omitempty" json:"extra_template_inputs,omitempty"`

	// ConvertUnits normalizes quantities before rendering.
	ConvertUnits *UnitsDefinition `yaml:"convert_units,omitempty" json:"convert_units,omitempty"`

	// Parameters are set in file order.
	Parameters ParameterList `yaml:"parameters,omitempty" json:"parameters,omitempty"`

	dir string
}

// UnitsDefinition selects a unit system and temperature scale.
type UnitsDefinition struct {
	System      string `yaml:"system" json:"system" jsonschema:"enum=si,enum=cgs"`
	Temperature string `yaml:"temperature,omitempty" json:"temperature,omitempty" jsonschema:"enum=K,enum=C,enum=F"`
}

// ParameterDefinition is one entry of the parameters block.
type ParameterDefinition struct {
	Key   string
	Value any
}

// ParameterList keeps the parameters block in file order.
type ParameterList []ParameterDefinition

// UnmarshalYAML decodes a mapping of key to scalar, list or
// {value, unit} quantity.
func (l *ParameterList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return &errors.ValidationError{
			Field:   "parameters",
			Message: fmt.Sprintf("line %d: parameters must be a mapping", node.Line),
		}
	}
	out := make(ParameterList, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		v, err := decodeValue(node.Content[i+1])
		if err != nil {
			return errors.Wrapf(err, "parameter %q", key)
		}
		out = append(out, ParameterDefinition{Key: key, Value: v})
	}
	*l = out
	return nil
}

// MarshalYAML writes the list back as an ordered mapping.
func (l ParameterList) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, p := range l {
		var value yaml.Node
		if err := value.Encode(p.Value); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: p.Key}, &value)
	}
	return node, nil
}

func decodeValue(node *yaml.Node) (any, error) {
	if node.Kind == yaml.MappingNode {
		var q struct {
			Value *float64 `yaml:"value"`
			Unit  string   `yaml:"unit"`
		}
		if err := node.Decode(&q); err != nil {
			return nil, err
		}
		if q.Value == nil || q.Unit == "" {
			return nil, &errors.ValidationError{
				Field:      "parameters",
				Message:    fmt.Sprintf("line %d: a quantity needs a value and a unit", node.Line),
				Suggestion: "write quantities as {value: 1.5, unit: cm}",
			}
		}
		return params.Quantity{Value: *q.Value, Unit: q.Unit}, nil
	}
	var v any
	if err := node.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// LoadDefinition reads and validates the definition at path.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &errors.NotFoundError{Resource: "workflow definition", ID: path}
		}
		return nil, errors.Wrap(err, "reading workflow definition")
	}
	def, err := ParseDefinition(data)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(err, "resolving definition path")
	}
	def.dir = filepath.Dir(abs)
	return def, nil
}

// ParseDefinition parses a workflow definition from YAML bytes.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse workflow definition: %w", err)
	}
	def.ApplyDefaults()
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workflow definition: %w", err)
	}
	return &def, nil
}

// ApplyDefaults fills in the name, lower-cases the adapter and defaults
// the temperature scale to kelvin.
func (d *Definition) ApplyDefaults() {
	if d.Name == "" {
		d.Name = DefaultName
	}
	d.Plugin = strings.ToLower(strings.TrimSpace(d.Plugin))
	if d.ConvertUnits != nil {
		d.ConvertUnits.System = strings.ToLower(d.ConvertUnits.System)
		if d.ConvertUnits.Temperature == "" {
			d.ConvertUnits.Temperature = params.Kelvin
		}
	}
}

// Validate checks the definition without touching the filesystem.
func (d *Definition) Validate() error {
	if err := archive.ValidateName(d.Name); err != nil {
		return err
	}

	switch d.Plugin {
	case PluginMOOSE, PluginPyARC:
		if d.Template == "" {
			return &errors.ValidationError{
				Field:      "template",
				Message:    fmt.Sprintf("the %s adapter requires a template", d.Plugin),
				Suggestion: "add a template: field pointing at the input template",
			}
		}
	case PluginOpenMC:
		if d.Template == "" && len(d.ExtraInputs) == 0 && len(d.ExtraTemplateInputs) == 0 {
			return &errors.ValidationError{
				Field:      "template",
				Message:    "the openmc adapter requires a template or extra inputs",
				Suggestion: "add a template: or extra_inputs: listing the XML inputs",
			}
		}
	case PluginCommand:
		if len(d.Command) == 0 {
			return &errors.ValidationError{
				Field:      "command",
				Message:    "the command adapter requires a command",
				Suggestion: "add command: [program, arg, ...]",
			}
		}
	case "":
		return &errors.ValidationError{
			Field:      "plugin",
			Message:    "plugin is required",
			Suggestion: "set plugin to one of " + strings.Join(Plugins(), ", "),
		}
	default:
		return &errors.ValidationError{
			Field:      "plugin",
			Message:    fmt.Sprintf("unknown plugin %q", d.Plugin),
			Suggestion: "set plugin to one of " + strings.Join(Plugins(), ", "),
		}
	}

	if d.NCPU < 0 {
		return &errors.ValidationError{Field: "n_cpu", Message: "n_cpu must be positive, got " + strconv.Itoa(d.NCPU)}
	}

	for _, field := range []struct {
		name     string
		patterns []string
	}{
		{"extra_inputs", d.ExtraInputs},
		{"extra_template_inputs", d.ExtraTemplateInputs},
		{"outputs", d.Outputs},
	} {
		for _, p := range field.patterns {
			if !doublestar.ValidatePattern(p) {
				return &errors.ValidationError{Field: field.name, Message: fmt.Sprintf("invalid pattern %q", p)}
			}
		}
	}

	if u := d.ConvertUnits; u != nil {
		if u.System != params.SI && u.System != params.CGS {
			return &errors.ValidationError{
				Field:      "convert_units.system",
				Message:    fmt.Sprintf("unknown unit system %q", u.System),
				Suggestion: "use si or cgs",
			}
		}
		switch u.Temperature {
		case params.Kelvin, params.Celsius, params.Fahrenheit:
		default:
			return &errors.ValidationError{
				Field:      "convert_units.temperature",
				Message:    fmt.Sprintf("unknown temperature scale %q", u.Temperature),
				Suggestion: "use K, C or F",
			}
		}
	}

	seen := make(map[string]bool, len(d.Parameters))
	for _, p := range d.Parameters {
		if seen[p.Key] {
			return &errors.ValidationError{Field: "parameters", Message: fmt.Sprintf("duplicate parameter %q", p.Key)}
		}
		seen[p.Key] = true
	}
	return nil
}

// Dir returns the directory relative paths are resolved against. It is
// empty for definitions that were not loaded from a file.
func (d *Definition) Dir() string {
	return d.dir
}

// Resolve makes path absolute relative to the definition's directory.
// Absolute paths and definitions without a directory are left alone.
func (d *Definition) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || d.dir == "" {
		return path
	}
	return filepath.Join(d.dir, path)
}

func (d *Definition) resolveAll(paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = d.Resolve(p)
	}
	return out
}

// Templates returns the resolved paths of every template the workflow
// renders, primary first.
func (d *Definition) Templates() []string {
	var out []string
	if d.Template != "" {
		out = append(out, d.Resolve(d.Template))
	}
	return append(out, d.resolveAll(d.ExtraTemplateInputs)...)
}

// Params builds the parameter set: the definition's parameters in file
// order, then the overrides in order.
func (d *Definition) Params(overrides ...ParameterDefinition) (*params.Parameters, error) {
	p := params.New()
	for _, list := range [][]ParameterDefinition{d.Parameters, overrides} {
		for _, def := range list {
			if err := p.Set(def.Key, def.Value); err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

// ParseAssignment parses a key=value command-line override. The value is
// read as YAML, so "3" is an integer, "[1, 2]" a list and
// "{value: 3, unit: cm}" a quantity. "3 cm" is shorthand for the latter.
func ParseAssignment(s string) (ParameterDefinition, error) {
	key, raw, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return ParameterDefinition{}, &errors.ValidationError{
			Field:      "set",
			Message:    fmt.Sprintf("invalid assignment %q", s),
			Suggestion: "use key=value",
		}
	}
	raw = strings.TrimSpace(raw)

	if fields := strings.Fields(raw); len(fields) == 2 {
		if f, err := strconv.ParseFloat(fields[0], 64); err == nil {
			return ParameterDefinition{Key: key, Value: params.Quantity{Value: f, Unit: fields[1]}}, nil
		}
	}

	var node yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &node); err != nil {
		return ParameterDefinition{Key: key, Value: raw}, nil
	}
	if len(node.Content) == 0 {
		return ParameterDefinition{Key: key, Value: ""}, nil
	}
	v, err := decodeValue(node.Content[0])
	if err != nil {
		return ParameterDefinition{}, errors.Wrapf(err, "parameter %q", key)
	}
	return ParameterDefinition{Key: key, Value: v}, nil
}
