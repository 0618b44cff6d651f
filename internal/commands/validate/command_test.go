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

package validate

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/kiln/internal/commands/shared"
)

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "loop.tmpl", "[Mesh]\n  r = {{ r }}\n  h = {{ h }}\n[]\n")

	tests := []struct {
		name     string
		yaml     string
		strict   bool
		valid    bool
		code     string
		warnings int
	}{
		{
			name:  "valid",
			yaml:  "name: loop\nplugin: moose\ntemplate: loop.tmpl\nparameters:\n  r: 1\n  h: 2\n",
			valid: true,
		},
		{
			name:     "undefined name is a warning",
			yaml:     "plugin: moose\ntemplate: loop.tmpl\nparameters:\n  r: 1\n",
			valid:    true,
			warnings: 1,
		},
		{
			name:   "undefined name is an error when strict",
			yaml:   "plugin: moose\ntemplate: loop.tmpl\nparameters:\n  r: 1\n",
			strict: true,
			code:   shared.ErrorCodeUndefinedParam,
		},
		{
			name: "yaml syntax",
			yaml: "plugin: moose\n  template: [\n",
			code: shared.ErrorCodeInvalidYAML,
		},
		{
			name: "unknown plugin",
			yaml: "plugin: serpent\n",
			code: shared.ErrorCodeInvalidYAML,
		},
		{
			name: "missing template",
			yaml: "plugin: moose\ntemplate: nope.tmpl\n",
			code: shared.ErrorCodeNotFound,
		},
		{
			name: "missing extra input",
			yaml: "plugin: openmc\nextra_inputs: [geometry.xml]\n",
			code: shared.ErrorCodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := write(t, dir, "flow.yaml", tt.yaml)
			r := Validate(path, tt.strict)
			assert.Equal(t, tt.valid, r.Valid(), "issues: %+v", r.Issues)

			warnings := 0
			for _, i := range r.Issues {
				if i.Warning {
					warnings++
				}
			}
			assert.Equal(t, tt.warnings, warnings)
			if tt.code != "" {
				require.NotEmpty(t, r.Issues)
				assert.Equal(t, tt.code, r.Issues[0].Code)
			}
		})
	}
}

func TestValidateYAMLLine(t *testing.T) {
	dir := t.TempDir()
	path := write(t, dir, "flow.yaml", "plugin: moose\nparameters:\n  r: [1, 2\n")
	r := Validate(path, false)
	require.NotEmpty(t, r.Issues)
	assert.Greater(t, r.Issues[0].Line, 0)
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "in.tmpl", "x = {{ x }}\n")
	good := write(t, dir, "good.yaml", "plugin: command\ncommand: [\"true\"]\ntemplate: in.tmpl\nparameters:\n  x: 1\n")
	bad := write(t, dir, "bad.yaml", "plugin: command\n")

	out, _, err := execute(t, good)
	require.NoError(t, err)
	assert.Contains(t, out, "1 parameter(s), 1 template(s)")

	_, errOut, err := execute(t, good, bad)
	require.Error(t, err)
	assert.Equal(t, shared.ExitInvalidWorkflow, shared.ExitCodeFor(err))
	assert.Contains(t, errOut, "bad.yaml: error:")

	shared.SetJSONForTest(true)
	defer shared.SetJSONForTest(false)
	out, _, err = execute(t, good, bad)
	require.Error(t, err)
	var resp validateResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.False(t, resp.Success)
	require.Len(t, resp.Workflows, 2)
	assert.Empty(t, resp.Workflows[0].Issues)
	assert.NotEmpty(t, resp.Workflows[1].Issues)
}

func TestValidateSchema(t *testing.T) {
	out, _, err := execute(t, "--schema")
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &schema))
	assert.Equal(t, "kiln workflow definition", schema["title"])

	_, _, err = execute(t, "--schema", "extra.yaml")
	assert.Error(t, err)
}
