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


package examples

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/kiln/internal/cli/prompt"
	"github.com/tombee/kiln/pkg/errors"
	"github.com/tombee/kiln/pkg/workflow"
)

func TestList(t *testing.T) {
	list, err := List()
	require.NoError(t, err)

	byName := make(map[string]Example)
	for _, ex := range list {
		byName[ex.Name] = ex
		assert.NotEmpty(t, ex.Description, ex.Name)
		assert.Contains(t, ex.Files, DefinitionFile, ex.Name)
	}
	for name, plugin := range map[string]string{
		"doubler":        workflow.PluginCommand,
		"sam-pipe":       workflow.PluginMOOSE,
		"openmc-pincell": workflow.PluginOpenMC,
		"pyarc-core":     workflow.PluginPyARC,
	} {
		require.Contains(t, byName, name)
		assert.Equal(t, plugin, byName[name].Plugin)
	}
	assert.Equal(t, []string{"geometry.xml", "materials.xml", "settings.xml", "workflow.yaml"}, byName["openmc-pincell"].Files)
	assert.Len(t, Names(), len(list))
}

func TestGet(t *testing.T) {
	tests := []struct {
		name    string
		example string
		file    string
		wantErr bool
	}{
		{"definition", "doubler", "", false},
		{"template", "doubler", "input.tmpl", false},
		{"unknown example", "nonexistent", "", true},
		{"unknown file", "doubler", "missing.i", true},
		{"traversal", "doubler", "../sam-pipe/pipe.i", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, err := Get(tt.example, tt.file)
			if tt.wantErr {
				var nf *errors.NotFoundError
				assert.ErrorAs(t, err, &nf)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, content)
		})
	}
}

func TestExists(t *testing.T) {
	assert.True(t, Exists("sam-pipe"))
	assert.False(t, Exists("nonexistent"))
	assert.False(t, Exists(""))
	assert.False(t, Exists("../workflows"))
}

// Every example must load from disk and define everything its templates
// reference.
func TestExamplesAreComplete(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			path, err := CopyTo(name, dir, false)
			require.NoError(t, err)

			def, err := workflow.LoadDefinition(path)
			require.NoError(t, err)
			for _, tmpl := range def.Templates() {
				assert.FileExists(t, tmpl)
			}

			p, err := def.Params()
			require.NoError(t, err)
			if u := def.ConvertUnits; u != nil {
				p, err = p.ConvertUnits(u.System, u.Temperature)
				require.NoError(t, err)
			}
			missing, err := prompt.MissingParameters(def.Templates(), p)
			require.NoError(t, err)
			assert.Empty(t, missing)

			if def.Plugin == workflow.PluginPyARC {
				// the adapter checks the PyARC script exists
				return
			}
			_, err = def.Build(nil)
			require.NoError(t, err)
		})
	}
}

func TestCopyToRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	_, err := CopyTo("doubler", dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "input.tmpl"), []byte("edited"), 0o644))
	_, err = CopyTo("doubler", dir, false)
	var ve *errors.ValidationError
	require.ErrorAs(t, err, &ve)

	_, err = CopyTo("doubler", dir, true)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "input.tmpl"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "radius")
}

func TestCopyToUnknown(t *testing.T) {
	_, err := CopyTo("nonexistent", t.TempDir(), false)
	var nf *errors.NotFoundError
	assert.ErrorAs(t, err, &nf)
}
