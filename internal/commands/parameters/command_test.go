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

package parameters

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/kiln/internal/commands/shared"
	"github.com/tombee/kiln/internal/log"
	"github.com/tombee/kiln/pkg/archive"
	"github.com/tombee/kiln/pkg/params"
	"github.com/tombee/kiln/pkg/results"
)

const flow = `
plugin: command
command: ["true"]
parameters:
  fuel_radius: {value: 0.4, unit: cm}
  fuel_height: 100
  coolant: sodium
`

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

func writeFlow(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(flow), 0o644))
	return path
}

func TestParamsTable(t *testing.T) {
	out, err := execute(t, writeFlow(t))
	require.NoError(t, err)
	assert.Contains(t, out, "PARAMETER")
	assert.Contains(t, out, "ADDED BY")
	assert.Contains(t, out, "0.4 cm")
	assert.Contains(t, out, "sodium")

	out, err = execute(t, writeFlow(t), "--no-metadata", "--set", "coolant=lead")
	require.NoError(t, err)
	assert.NotContains(t, out, "ADDED BY")
	assert.Contains(t, out, "lead")
	assert.NotContains(t, out, "sodium")
}

func TestParamsJSONFilterAndSort(t *testing.T) {
	shared.SetJSONForTest(true)
	t.Cleanup(func() { shared.SetJSONForTest(false) })

	out, err := execute(t, writeFlow(t), "--filter", "key=fuel_*", "--sort-by", "value")
	require.NoError(t, err)

	var resp paramsResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Parameters, 2)
	assert.Equal(t, "fuel_radius", resp.Parameters[0].Key)
	assert.Equal(t, "fuel_height", resp.Parameters[1].Key)
}

func TestParamsErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
	}{
		{"no source", nil, shared.ExitInvalidWorkflow},
		{"bad sort", []string{writeFlow(t), "--sort-by", "colour"}, shared.ExitInvalidWorkflow},
		{"bad filter", []string{writeFlow(t), "--filter", "colour=x"}, shared.ExitInvalidWorkflow},
		{"missing file", []string{"/nonexistent/flow.yaml"}, shared.ExitNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.code, shared.ExitCodeFor(err))
		})
	}
}

func TestParamsArchived(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "db")
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("database:\n  path: "+dbPath+"\n"), 0o644))
	shared.SetConfigPathForTest(cfgPath)
	t.Cleanup(func() { shared.SetConfigPathForTest("") })

	ctx := context.Background()
	db := archive.New(dbPath, archive.WithLogger(log.Discard()))
	_, assigned, err := db.Claim(ctx, "loop")
	require.NoError(t, err)
	prm := params.New()
	require.NoError(t, prm.Set("pitch", 1.26))
	require.NoError(t, db.Append(ctx, assigned, "run-1", results.New("MOOSE", "loop", time.Now(), prm, filepath.Join(dbPath, assigned), nil, nil)))
	require.NoError(t, db.Close())

	out, err := execute(t, "--archived", "loop", "--no-metadata")
	require.NoError(t, err)
	assert.Contains(t, out, "pitch")
	assert.Contains(t, out, "1.26")

	_, err = execute(t, "--archived", "nope")
	require.Error(t, err)
	assert.Equal(t, shared.ExitNotFound, shared.ExitCodeFor(err))
}
