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

package completion

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/kiln/internal/commands/shared"
)

func TestSafeCompletionWrapper(t *testing.T) {
	results, directive := SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		panic("boom")
	})
	assert.Empty(t, results)
	assert.Equal(t, cobra.ShellCompDirectiveNoFileComp, directive)

	results, _ = SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		return nil, cobra.ShellCompDirectiveDefault
	})
	assert.NotNil(t, results)
}

func TestCompleteWorkflowFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "flows", ".hidden"), 0o755))
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	write("loop.yaml", "plugin: moose\n")
	write("flows/pin.yml", "plugin: openmc\n")
	write("flows/.hidden/x.yaml", "plugin: moose\n")
	write("config.yaml", "database:\n  path: /x\n")
	write("broken.yaml", "plugin: [\n")

	t.Chdir(dir)

	got, _ := CompleteWorkflowFiles(nil, nil, "")
	assert.ElementsMatch(t, []string{"loop.yaml", filepath.Join("flows", "pin.yml")}, got)

	got, _ = CompleteWorkflowFiles(nil, nil, "flows")
	assert.Equal(t, []string{filepath.Join("flows", "pin.yml")}, got)
}

func TestCompleteResultNames(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "db")
	for _, n := range []string{"loop", "loop_1", "pin"} {
		require.NoError(t, os.MkdirAll(filepath.Join(db, n), 0o755))
	}
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("database:\n  path: "+db+"\n"), 0o644))
	shared.SetConfigPathForTest(cfgPath)
	t.Cleanup(func() { shared.SetConfigPathForTest("") })

	got, directive := CompleteResultNames(nil, nil, "lo")
	assert.Equal(t, []string{"loop", "loop_1"}, got)
	assert.Equal(t, cobra.ShellCompDirectiveNoFileComp, directive)
}

func TestCompleteSortFields(t *testing.T) {
	got, _ := CompleteSortFields(nil, nil, "")
	assert.Len(t, got, 4)
}

func TestCompletionCommand(t *testing.T) {
	root := &cobra.Command{Use: "kiln"}
	root.AddCommand(NewCommand())

	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		var buf bytes.Buffer
		root.SetOut(&buf)
		root.SetArgs([]string{"completion", shell})
		require.NoError(t, root.Execute(), shell)
		assert.Contains(t, buf.String(), "kiln", shell)
	}

	root.SetArgs([]string{"completion", "tcsh"})
	assert.Error(t, root.Execute())
}
