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
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/kiln/internal/commands/shared"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestList(t *testing.T) {
	out, err := execute(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "sam-pipe")
	assert.Contains(t, out, "openmc")

	// bare "examples" lists too
	bare, err := execute(t)
	require.NoError(t, err)
	assert.Equal(t, out, bare)
}

func TestListJSON(t *testing.T) {
	shared.SetJSONForTest(true)
	t.Cleanup(func() { shared.SetJSONForTest(false) })

	out, err := execute(t, "list")
	require.NoError(t, err)

	var resp struct {
		Examples []struct {
			Name   string   `json:"name"`
			Plugin string   `json:"plugin"`
			Files  []string `json:"files"`
		} `json:"examples"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotEmpty(t, resp.Examples)
	assert.Equal(t, "doubler", resp.Examples[0].Name)
}

func TestShow(t *testing.T) {
	out, err := execute(t, "show", "doubler")
	require.NoError(t, err)
	assert.Contains(t, out, "plugin: command")

	out, err = execute(t, "show", "openmc-pincell", "geometry.xml", "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "{{ fuel_radius }}")
}

func TestShowUnknown(t *testing.T) {
	_, err := execute(t, "show", "nonexistent")
	require.Error(t, err)
	assert.Equal(t, shared.ExitNotFound, shared.ExitCodeFor(err))
}

func TestCopy(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "pipe")
	out, err := execute(t, "copy", "sam-pipe", dest)
	require.NoError(t, err)
	assert.Contains(t, out, "kiln run")
	assert.FileExists(t, filepath.Join(dest, "workflow.yaml"))
	assert.FileExists(t, filepath.Join(dest, "pipe.i"))

	_, err = execute(t, "copy", "sam-pipe", dest)
	require.Error(t, err)
	assert.Equal(t, shared.ExitInvalidWorkflow, shared.ExitCodeFor(err))

	_, err = execute(t, "copy", "sam-pipe", dest, "--force")
	require.NoError(t, err)
}

func TestCopyDefaultsToExampleName(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := execute(t, "copy", "doubler")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join("doubler", "input.tmpl"))
}
