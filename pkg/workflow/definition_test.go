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
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/kiln/internal/config"
	"github.com/tombee/kiln/internal/log"
	"github.com/tombee/kiln/internal/plugins/command"
	"github.com/tombee/kiln/internal/plugins/moose"
	"github.com/tombee/kiln/pkg/archive"
	"github.com/tombee/kiln/pkg/errors"
	"github.com/tombee/kiln/pkg/params"
	"github.com/tombee/kiln/pkg/plugin"
)

func TestParseDefinition(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{
			name: "valid moose workflow",
			yaml: `
name: sam-loop
plugin: moose
template: sam_template.tmpl
n_cpu: 4
parameters:
  inlet_T: 628
`,
		},
		{
			name: "plugin name is case insensitive",
			yaml: `
plugin: OpenMC
extra_inputs: ["*.xml"]
`,
		},
		{
			name: "missing plugin",
			yaml: `
name: sam-loop
template: sam.tmpl
`,
			wantErr: true,
		},
		{
			name: "unknown plugin",
			yaml: `
plugin: serpent
template: model.tmpl
`,
			wantErr: true,
		},
		{
			name: "moose without template",
			yaml: `
plugin: moose
`,
			wantErr: true,
		},
		{
			name: "command without argv",
			yaml: `
plugin: command
template: in.tmpl
`,
			wantErr: true,
		},
		{
			name: "name with path separator",
			yaml: `
name: a/b
plugin: command
command: ["true"]
`,
			wantErr: true,
		},
		{
			name: "unknown unit system",
			yaml: `
plugin: pyarc
template: core.son
convert_units:
  system: imperial
`,
			wantErr: true,
		},
		{
			name: "bad extra input pattern",
			yaml: `
plugin: command
command: ["true"]
extra_inputs: ["[abc"]
`,
			wantErr: true,
		},
		{
			name: "duplicate parameter",
			yaml: `
plugin: command
command: ["true"]
parameters:
  a: 1
  a: 2
`,
			wantErr: true,
		},
		{
			name: "quantity without unit",
			yaml: `
plugin: command
command: ["true"]
parameters:
  power: {value: 250}
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := ParseDefinition([]byte(tt.yaml))
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseDefinition() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && def == nil {
				t.Error("ParseDefinition() returned nil definition")
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	def, err := ParseDefinition([]byte(`
plugin: pyarc
template: core.son
convert_units:
  system: SI
`))
	require.NoError(t, err)

	assert.Equal(t, DefaultName, def.Name)
	assert.Equal(t, params.SI, def.ConvertUnits.System)
	assert.Equal(t, params.Kelvin, def.ConvertUnits.Temperature)
}

func TestParameters(t *testing.T) {
	def, err := ParseDefinition([]byte(`
plugin: command
command: ["true"]
parameters:
  zeta: 1
  alpha: 0.39
  name: fuel
  enabled: true
  radii: [1, 2, 3]
  power: {value: 250, unit: kW}
`))
	require.NoError(t, err)

	p, err := def.Params(ParameterDefinition{Key: "zeta", Value: 7})
	require.NoError(t, err)

	assert.Equal(t, []string{"zeta", "alpha", "name", "enabled", "radii", "power"}, p.Keys())

	get := func(k string) any {
		v, ok := p.Get(k)
		require.True(t, ok, k)
		return v
	}
	assert.Equal(t, int64(7), get("zeta"))
	assert.Equal(t, 0.39, get("alpha"))
	assert.Equal(t, "fuel", get("name"))
	assert.Equal(t, true, get("enabled"))
	assert.Equal(t, []int64{1, 2, 3}, get("radii"))
	assert.Equal(t, params.Quantity{Value: 250, Unit: "kW"}, get("power"))
}

func TestParseAssignment(t *testing.T) {
	tests := []struct {
		in      string
		key     string
		want    any
		wantErr bool
	}{
		{in: "n=3", key: "n", want: 3},
		{in: "r = 0.5", key: "r", want: 0.5},
		{in: "flag=false", key: "flag", want: false},
		{in: "fuel=UO2", key: "fuel", want: "UO2"},
		{in: "label=hot leg", key: "label", want: "hot leg"},
		{in: "T=600 K", key: "T", want: params.Quantity{Value: 600, Unit: "K"}},
		{in: "P={value: 2, unit: MW}", key: "P", want: params.Quantity{Value: 2, Unit: "MW"}},
		{in: "xs=[1.5, 2]", key: "xs", want: []any{1.5, 2}},
		{in: "empty=", key: "empty", want: ""},
		{in: "novalue", wantErr: true},
		{in: "=3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAssignment(tt.in)
			if tt.wantErr {
				var verr *errors.ValidationError
				assert.True(t, errors.As(err, &verr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.key, got.Key)
			assert.Equal(t, tt.want, got.Value)
		})
	}
}

func TestLoadDefinition(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: echo
plugin: command
command: [sh, -c, 'cp "$KILN_INPUT" out.txt']
template: input.tmpl
input_name: input.txt
extra_inputs: [/abs/mesh.e, data/*.csv]
`), 0o644))

	def, err := LoadDefinition(path)
	require.NoError(t, err)

	assert.Equal(t, dir, def.Dir())
	assert.Equal(t, filepath.Join(dir, "input.tmpl"), def.Resolve(def.Template))
	assert.Equal(t, []string{"/abs/mesh.e", filepath.Join(dir, "data/*.csv")}, def.resolveAll(def.ExtraInputs))

	_, err = LoadDefinition(filepath.Join(dir, "missing.yaml"))
	var nf *errors.NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestBuildMoose(t *testing.T) {
	def, err := ParseDefinition([]byte(`
plugin: moose
template: sam.tmpl
executable: /opt/sam/sam-opt
n_cpu: 8
`))
	require.NoError(t, err)

	cfg := config.Default()
	p, err := def.Build(cfg)
	require.NoError(t, err)

	mp, ok := p.(*moose.Plugin)
	require.True(t, ok)
	assert.Equal(t, "/opt/sam/sam-opt", mp.Executable)
	assert.Equal(t, 8, mp.NCPU)
	assert.Equal(t, moose.InputName, mp.PrimaryInput())
	assert.Equal(t, "sam.tmpl", mp.Template)
}

func TestBuildPyARCMissingExecutable(t *testing.T) {
	def, err := ParseDefinition([]byte(`
plugin: pyarc
template: core.son
executable: /nonexistent/PyARC.py
`))
	require.NoError(t, err)

	_, err = def.Build(config.Default())
	var cfgErr *errors.ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestBuildAndRunCommand(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "input.tmpl"), []byte("r = {{ r * 2 }}\n"), 0o644))
	path := filepath.Join(dir, "flow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: doubler
plugin: command
kind: Echo
command: [sh, -c, 'cp "$KILN_INPUT" out.txt']
template: input.tmpl
input_name: input.txt
parameters:
  r: 1.5
`), 0o644))

	def, err := LoadDefinition(path)
	require.NoError(t, err)
	p, err := def.Build(nil)
	require.NoError(t, err)
	_, ok := p.(*command.Plugin)
	require.True(t, ok)

	prm, err := def.Params()
	require.NoError(t, err)

	db := archive.New(filepath.Join(t.TempDir(), "db"), archive.WithLogger(log.Discard()))
	defer db.Close()

	r, err := plugin.Workflow(context.Background(), db, p, prm, def.Name,
		plugin.WithLogger(log.Discard()), plugin.WithTempDir(t.TempDir()))
	require.NoError(t, err)

	assert.Equal(t, "Echo", r.Kind)
	assert.Equal(t, []string{"input.txt"}, r.Inputs)
	assert.Contains(t, r.Outputs, "out.txt")

	b, err := os.ReadFile(filepath.Join(r.BasePath, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "r = 3\n", string(b))
}
