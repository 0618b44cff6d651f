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

package render

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/kiln/internal/commands/shared"
	"github.com/tombee/kiln/internal/log"
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

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRenderWithSet(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeFile(t, dir, "input.tmpl", "r = {{ r * 2 }}\n")

	out, err := execute(t, tmpl, "--set", "r=1.5", "--no-color")
	require.NoError(t, err)
	assert.Equal(t, "r = 3\n", out)
}

func TestRenderWithWorkflow(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeFile(t, dir, "input.tmpl", "h = {{ h }}\nn = {{ n }}\n")
	wf := writeFile(t, dir, "flow.yaml", `
plugin: command
command: ["true"]
convert_units:
  system: si
parameters:
  h: {value: 200, unit: cm}
  n: 1
`)

	out, err := execute(t, tmpl, "--workflow", wf, "--set", "n=4", "--no-color")
	require.NoError(t, err)
	assert.Equal(t, "h = 2\nn = 4\n", out)
}

func TestRenderToFile(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeFile(t, dir, "input.tmpl", "x = {{ x }}\n")
	dst := filepath.Join(dir, "out.i")

	_, err := execute(t, tmpl, "--set", "x=7", "-o", dst)
	require.NoError(t, err)
	b, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "x = 7\n", string(b))
}

func TestRenderJSON(t *testing.T) {
	shared.SetJSONForTest(true)
	t.Cleanup(func() { shared.SetJSONForTest(false) })

	tmpl := writeFile(t, t.TempDir(), "input.tmpl", "{{ a + b }}")
	out, err := execute(t, tmpl, "--set", "a=1", "--set", "b=2")
	require.NoError(t, err)

	var resp renderResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "3", resp.Rendered)
}

func TestRenderErrors(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeFile(t, dir, "input.tmpl", "{{ missing }}")

	_, err := execute(t, tmpl)
	require.Error(t, err)
	assert.Equal(t, shared.ExitInvalidWorkflow, shared.ExitCodeFor(err))

	_, err = execute(t, filepath.Join(dir, "nope.tmpl"))
	require.Error(t, err)
	assert.Equal(t, shared.ExitNotFound, shared.ExitCodeFor(err))
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "input.tmpl", "a")
	writeFile(t, dir, "other.txt", "a")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, []string{path}, 20*time.Millisecond, log.Discard(), func() { calls.Add(1) })
	}()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "other.txt", "b")
	writeFile(t, dir, "input.tmpl", "b")
	writeFile(t, dir, "input.tmpl", "c")

	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}
