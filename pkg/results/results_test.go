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

package results

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/kiln/pkg/container"
	"github.com/tombee/kiln/pkg/errors"
	"github.com/tombee/kiln/pkg/params"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		p := filepath.Join(dir, n)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(n), 0o644))
	}
}

func sample(t *testing.T, base string) *Results {
	t.Helper()
	p := params.New()
	require.NoError(t, p.Set("power", params.Q(250, "kW")))
	require.NoError(t, p.Set("label", "vhtr"))
	require.NoError(t, p.Set("temps", []float64{600, 700}))

	r := New("MOOSE", "Workflow", time.Date(2024, 3, 1, 10, 0, 0, 123, time.UTC), p, base,
		[]string{"MOOSE.i", "mesh/core.e"}, []string{"MOOSE_log.txt", "MOOSE_csv.csv"})
	r.LogFile = "MOOSE_log.txt"
	r.Payload = container.Mapping{
		"max_temp": 1023.5,
		"steps":    int64(12),
		"profile":  container.Mapping{"z": []float64{0, 0.5, 1}},
	}
	return r
}

func TestNewSnapshotsParameters(t *testing.T) {
	p := params.New()
	require.NoError(t, p.Set("x", 1))

	r := New("Command", "Workflow", time.Now(), p, t.TempDir(), nil, nil)
	require.NoError(t, p.Set("x", 2))

	v, _ := r.Parameters.Get("x")
	assert.Equal(t, int64(1), v)
}

func TestRelocate(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	writeFiles(t, src, "MOOSE.i", "mesh/core.e", "MOOSE_log.txt", "MOOSE_csv.csv")

	r := sample(t, src)
	require.NoError(t, r.Relocate(dest))

	assert.Equal(t, dest, r.BasePath)
	for _, p := range append(r.InputPaths(), r.OutputPaths()...) {
		assert.FileExists(t, p)
	}
	assert.NoFileExists(t, filepath.Join(src, "MOOSE.i"))

	out, err := r.Stdout()
	require.NoError(t, err)
	assert.Equal(t, "MOOSE_log.txt", out)
}

func TestRelocateMissingFile(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	writeFiles(t, src, "MOOSE.i", "mesh/core.e", "MOOSE_log.txt")

	r := sample(t, src)
	err := r.Relocate(dest)

	var ae *errors.ArchiveError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "MOOSE_csv.csv", ae.Path)
	assert.Equal(t, dest, ae.Destination)
	assert.Equal(t, src, r.BasePath)
}

func TestMarshalRoundTrip(t *testing.T) {
	r := sample(t, "/archive/Workflow")

	b, err := Marshal(r)
	require.NoError(t, err)
	got, err := Unmarshal(b)
	require.NoError(t, err)

	assert.Equal(t, r.Kind, got.Kind)
	assert.Equal(t, r.Name, got.Name)
	assert.True(t, r.Time.Equal(got.Time))
	assert.Equal(t, r.Inputs, got.Inputs)
	assert.Equal(t, r.Outputs, got.Outputs)
	assert.Equal(t, r.BasePath, got.BasePath)
	assert.Equal(t, r.LogFile, got.LogFile)
	assert.Equal(t, r.Parameters.Keys(), got.Parameters.Keys())
	assert.Equal(t, r.Parameters.Map(), got.Parameters.Map())
	assert.Equal(t, r.Payload, got.Payload)
}

func TestSaveLoadMany(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.kiln")
	a := sample(t, "/a")
	b := sample(t, "/b")
	b.Name = "Workflow_1"

	require.NoError(t, Save(path, a, b))
	loaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "Workflow", loaded[0].Name)
	assert.Equal(t, "Workflow_1", loaded[1].Name)
	assert.Equal(t, "/b", loaded[1].BasePath)
}

func TestFilesSince(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "old.xml", "geometry.xml", "materials.xml", "statepoint.10.h5", "notes.txt")

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "old.xml"), old, old))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "geometry.xml"), later, later))

	got, err := FilesSince(dir, []string{"*.xml", "statepoint.*.h5", "*.xml"}, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{"materials.xml", "statepoint.10.h5", "geometry.xml"}, got)
}

func TestView(t *testing.T) {
	v := sample(t, "/x").View()
	assert.Equal(t, map[string]any{"value": 250.0, "unit": "kW"}, v.Parameters["power"])
	assert.Equal(t, 1023.5, v.Payload["max_temp"])
}
