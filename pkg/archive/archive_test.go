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

package archive

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/kiln/pkg/errors"
	"github.com/tombee/kiln/pkg/params"
	"github.com/tombee/kiln/pkg/results"
)

func TestUniqueName(t *testing.T) {
	tests := []struct {
		name      string
		requested string
		existing  []string
		want      string
	}{
		{"empty archive", "Workflow", nil, "Workflow"},
		{"unrelated names", "Workflow", []string{"Other", "Workflow_1"}, "Workflow"},
		{"first collision", "Workflow", []string{"Workflow"}, "Workflow_1"},
		{"fills gap", "Workflow", []string{"Workflow_2", "Workflow", "Workflow_3"}, "Workflow_1"},
		{"dense", "Workflow", []string{"Workflow_1", "Workflow", "Workflow_2"}, "Workflow_3"},
		{"suffix-looking request", "run_1", []string{"run_1"}, "run_1_1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			existing := append([]string{}, tt.existing...)
			assert.Equal(t, tt.want, UniqueName(tt.requested, tt.existing))
			assert.Equal(t, existing, tt.existing, "input must not be reordered")
		})
	}
}

func TestUniqueNameNeverCollides(t *testing.T) {
	var existing []string
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		name := UniqueName("Workflow", existing)
		require.False(t, seen[name], "duplicate %s", name)
		seen[name] = true
		existing = append(existing, name)
	}
}

func TestValidateName(t *testing.T) {
	for _, bad := range []string{"", ".", "..", "a/b", `a\b`} {
		assert.Error(t, ValidateName(bad), "%q", bad)
	}
	assert.NoError(t, ValidateName("Workflow"))
}

func TestLazyInit(t *testing.T) {
	root := filepath.Join(t.TempDir(), "db")
	db := New(root)
	defer db.Close()

	_, err := os.Stat(root)
	assert.True(t, os.IsNotExist(err), "root must not exist before first use")

	n, err := db.Len(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.FileExists(t, filepath.Join(root, IndexFile))
}

func TestClaimSequential(t *testing.T) {
	ctx := context.Background()
	db := New(t.TempDir())
	defer db.Close()

	var got []string
	for i := 0; i < 3; i++ {
		dir, assigned, err := db.Claim(ctx, "Workflow")
		require.NoError(t, err)
		assert.DirExists(t, dir)
		got = append(got, assigned)
	}
	assert.Equal(t, []string{"Workflow", "Workflow_1", "Workflow_2"}, got)

	names, err := db.Names()
	require.NoError(t, err)
	assert.Equal(t, got, names)
}

func TestClaimSkipsPlainFiles(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "Workflow"), nil, 0o644))

	db := New(root)
	defer db.Close()
	_, assigned, err := db.Claim(ctx, "Workflow")
	require.NoError(t, err)
	assert.Equal(t, "Workflow_1", assigned)
}

func TestClaimConcurrent(t *testing.T) {
	ctx := context.Background()
	db := New(t.TempDir())
	defer db.Close()

	const workers = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		assigned []string
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, name, err := db.Claim(ctx, "Workflow")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			assigned = append(assigned, name)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, assigned, workers)
	unique := map[string]bool{}
	for _, n := range assigned {
		unique[n] = true
	}
	assert.Len(t, unique, workers)
}

func sampleResults(t *testing.T, name string) *results.Results {
	t.Helper()
	p := params.New()
	require.NoError(t, p.Set("variable", 1))
	r := results.New("Command", name, time.Now(), p, "/tmp", []string{"in.txt"}, []string{"out.txt"})
	r.Payload["value"] = 3.5
	return r
}

func TestAppendListGet(t *testing.T) {
	ctx := context.Background()
	db := New(t.TempDir())
	defer db.Close()

	for _, name := range []string{"b", "a", "c"} {
		_, assigned, err := db.Claim(ctx, name)
		require.NoError(t, err)
		require.NoError(t, db.Append(ctx, assigned, "run-"+name, sampleResults(t, name)))
	}

	entries, err := db.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "b", entries[0].Name)
	assert.Equal(t, "a", entries[1].Name)
	assert.Equal(t, "c", entries[2].Name)
	assert.Less(t, entries[0].Seq, entries[1].Seq)

	e, err := db.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "run-a", e.RunID)
	assert.Equal(t, "Command", e.Kind)
	assert.Equal(t, 3.5, e.Results.Payload["value"])
	v, _ := e.Results.Parameters.Get("variable")
	assert.Equal(t, int64(1), v)

	_, err = db.Get(ctx, "missing")
	var nf *errors.NotFoundError
	assert.ErrorAs(t, err, &nf)

	n, err := db.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestAppendIsOncePerName(t *testing.T) {
	ctx := context.Background()
	db := New(t.TempDir())
	defer db.Close()

	require.NoError(t, db.Append(ctx, "Workflow", "r1", sampleResults(t, "Workflow")))
	err := db.Append(ctx, "Workflow", "r2", sampleResults(t, "Workflow"))
	var ve *errors.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestRelease(t *testing.T) {
	ctx := context.Background()
	db := New(t.TempDir())
	defer db.Close()

	dir, assigned, err := db.Claim(ctx, "Workflow")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "partial"), nil, 0o644))

	require.NoError(t, db.Release(ctx, assigned))
	assert.NoDirExists(t, dir)

	_, kept, err := db.Claim(ctx, "Workflow")
	require.NoError(t, err)
	require.NoError(t, db.Append(ctx, kept, "r", sampleResults(t, "Workflow")))
	assert.Error(t, db.Release(ctx, kept))
	assert.DirExists(t, filepath.Join(db.Path(), kept))
}
