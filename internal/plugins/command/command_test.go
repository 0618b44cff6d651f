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

package command

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/kiln/internal/log"
	"github.com/tombee/kiln/pkg/archive"
	"github.com/tombee/kiln/pkg/errors"
	"github.com/tombee/kiln/pkg/params"
	"github.com/tombee/kiln/pkg/plugin"
)

func newArchive(t *testing.T) *archive.Database {
	t.Helper()
	db := archive.New(filepath.Join(t.TempDir(), "db"), archive.WithLogger(log.Discard()))
	t.Cleanup(func() { db.Close() })
	return db
}

func workflow(t *testing.T, db *archive.Database, p plugin.Plugin, prm *params.Parameters) (string, error) {
	t.Helper()
	r, err := plugin.Workflow(context.Background(), db, p, prm, "Workflow",
		plugin.WithLogger(log.Discard()), plugin.WithTempDir(t.TempDir()))
	if err != nil {
		return "", err
	}
	return r.BasePath, nil
}

func TestCommandRendersAndRuns(t *testing.T) {
	tmpl := filepath.Join(t.TempDir(), "deck.tmpl")
	require.NoError(t, os.WriteFile(tmpl, []byte("power={{ power }}"), 0o644))

	prm := params.New()
	require.NoError(t, prm.Set("power", 3.5))

	p, err := New("Echo", []string{"sh", "-c", `cat "$KILN_INPUT" > out.txt; echo ran`})
	require.NoError(t, err)
	p.Template = tmpl
	p.InputName = "deck.inp"

	db := newArchive(t)
	base, err := workflow(t, db, p, prm)
	require.NoError(t, err)

	out, err := os.ReadFile(filepath.Join(base, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "power=3.5", string(out))

	e, err := db.Get(context.Background(), "Workflow")
	require.NoError(t, err)
	assert.Equal(t, "Echo", e.Kind)
	assert.Equal(t, []string{"deck.inp"}, e.Results.Inputs)
	assert.Equal(t, []string{"Echo_log.txt", "out.txt"}, e.Results.Outputs)

	e.Results.BasePath = base
	stdout, err := e.Results.Stdout()
	require.NoError(t, err)
	assert.Equal(t, "ran\n", stdout)
}

func TestCommandWithoutTemplate(t *testing.T) {
	p, err := New("", []string{"sh", "-c", "touch a.dat"})
	require.NoError(t, err)

	base, err := workflow(t, newArchive(t), p, nil)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(base, "a.dat"))
	assert.Equal(t, "Command", p.Kind())
}

func TestCommandFailure(t *testing.T) {
	p, err := New("", []string{"sh", "-c", "echo bad input >&2; exit 3"})
	require.NoError(t, err)
	db := newArchive(t)

	_, err = workflow(t, db, p, nil)

	var execErr *errors.ExecutionError
	require.True(t, errors.As(err, &execErr), "got %v", err)
	assert.Equal(t, 3, execErr.ExitCode)
	assert.Equal(t, "bad input", execErr.Stderr)

	names, err := db.Names()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestCommandMissingExecutable(t *testing.T) {
	p, err := New("", []string{"/nonexistent/solver"})
	require.NoError(t, err)

	_, err = workflow(t, newArchive(t), p, nil)

	var cfgErr *errors.ConfigError
	assert.True(t, errors.As(err, &cfgErr), "got %v", err)
}

func TestCommandOutputFilter(t *testing.T) {
	p, err := New("", []string{"sh", "-c", "touch keep.h5 scratch.tmp"})
	require.NoError(t, err)
	p.Outputs = []string{"*.h5"}
	require.NoError(t, p.Validate())

	db := newArchive(t)
	_, err = workflow(t, db, p, nil)
	require.NoError(t, err)

	e, err := db.Get(context.Background(), "Workflow")
	require.NoError(t, err)
	assert.Equal(t, []string{"Command_log.txt", "keep.h5"}, e.Results.Outputs)
}

func TestNewRequiresArgv(t *testing.T) {
	_, err := New("x", nil)

	var cfgErr *errors.ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}
