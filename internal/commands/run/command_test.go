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

package run

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/kiln/internal/cli/prompt"
	"github.com/tombee/kiln/internal/commands/shared"
	"github.com/tombee/kiln/pkg/results"
)

// setup writes a config pointing the archive at a temp directory and a
// doubler workflow next to it. It returns the workflow path and archive.
func setup(t *testing.T, workflowYAML string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	db := filepath.Join(dir, "db")
	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := "log:\n  level: error\ndatabase:\n  path: " + db + "\nsandbox:\n  temp_dir: " + dir + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "input.tmpl"), []byte("r = {{ r * 2 }}\n"), 0o644))
	wf := filepath.Join(dir, "flow.yaml")
	require.NoError(t, os.WriteFile(wf, []byte(workflowYAML), 0o644))

	shared.SetConfigPathForTest(cfgPath)
	t.Cleanup(func() {
		shared.SetConfigPathForTest("")
		shared.SetJSONForTest(false)
	})
	return wf, db
}

const doubler = `
name: doubler
plugin: command
kind: Echo
command: [sh, -c, 'cp "$KILN_INPUT" out.txt']
template: input.tmpl
input_name: input.txt
parameters:
  r: 1.5
`

func execute(t *testing.T, opts *options, args ...string) (string, error) {
	t.Helper()
	cmd := newCommand(opts)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestNewCommand(t *testing.T) {
	cmd := NewCommand()
	assert.Equal(t, "run <workflow>", cmd.Use)
	for _, flag := range []string{"name", "set", "dry-run", "no-interactive", "stream"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "--%s flag not defined", flag)
	}
}

func TestRunCommand_MissingWorkflowArg(t *testing.T) {
	_, err := execute(t, &options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestRunCommand_NonexistentWorkflowFile(t *testing.T) {
	setup(t, doubler)
	_, err := execute(t, &options{}, "/nonexistent/workflow.yaml")
	require.Error(t, err)
	assert.Equal(t, shared.ExitNotFound, shared.ExitCodeFor(err))
}

func TestRunCommand_ArchivesResults(t *testing.T) {
	wf, db := setup(t, doubler)

	out, err := execute(t, &options{}, wf, "--no-interactive")
	require.NoError(t, err)
	assert.Contains(t, out, "doubler")

	b, err := os.ReadFile(filepath.Join(db, "doubler", "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "r = 3\n", string(b))

	// a second run gets a fresh name
	_, err = execute(t, &options{}, wf, "--no-interactive", "--set", "r=2")
	require.NoError(t, err)
	b, err = os.ReadFile(filepath.Join(db, "doubler_1", "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "r = 4\n", string(b))
}

func TestRunCommand_JSON(t *testing.T) {
	wf, db := setup(t, doubler)
	shared.SetJSONForTest(true)

	out, err := execute(t, &options{}, wf, "--name", "custom")
	require.NoError(t, err)

	var resp struct {
		Success  bool         `json:"success"`
		RunID    string       `json:"run_id"`
		Archived string       `json:"archived"`
		Result   results.View `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, "custom", resp.Archived)
	assert.Equal(t, "Echo", resp.Result.Kind)
	assert.Equal(t, "custom", resp.Result.Name)
	assert.Equal(t, filepath.Join(db, "custom"), resp.Result.BasePath)
	assert.Equal(t, []string{"input.txt"}, resp.Result.Inputs)
}

func TestRunCommand_DryRun(t *testing.T) {
	wf, db := setup(t, doubler)

	out, err := execute(t, &options{}, wf, "--dry-run", "--no-interactive")
	require.NoError(t, err)
	assert.Contains(t, out, "input.txt")
	assert.Contains(t, out, "dry run")

	_, err = os.Stat(filepath.Join(db, "doubler"))
	assert.True(t, os.IsNotExist(err), "dry run must not archive")
}

func TestRunCommand_FailureIsExecutionError(t *testing.T) {
	wf, db := setup(t, strings.Replace(doubler, `cp "$KILN_INPUT" out.txt`, "exit 3", 1))

	_, err := execute(t, &options{}, wf, "--no-interactive")
	require.Error(t, err)
	assert.Equal(t, shared.ExitExecutionFailed, shared.ExitCodeFor(err))

	// the claimed directory is released
	_, statErr := os.Stat(filepath.Join(db, "doubler"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunCommand_InvalidSet(t *testing.T) {
	wf, _ := setup(t, doubler)
	_, err := execute(t, &options{}, wf, "--no-interactive", "--set", "novalue")
	require.Error(t, err)
	assert.Equal(t, shared.ExitInvalidWorkflow, shared.ExitCodeFor(err))
}

func TestRunCommand_PromptsForMissing(t *testing.T) {
	wf, db := setup(t, strings.Replace(doubler, "parameters:\n  r: 1.5\n", "", 1))
	mock := prompt.NewMockPrompter("5")

	_, err := execute(t, &options{prompter: mock}, wf)
	require.NoError(t, err)
	assert.Equal(t, []string{"r"}, mock.Asked)

	b, err := os.ReadFile(filepath.Join(db, "doubler", "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "r = 10\n", string(b))
}
