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

package plugin

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tombee/kiln/internal/log"
	"github.com/tombee/kiln/internal/tracing"
	"github.com/tombee/kiln/internal/tracing/redact"
	"github.com/tombee/kiln/pkg/archive"
	"github.com/tombee/kiln/pkg/errors"
	"github.com/tombee/kiln/pkg/params"
	"github.com/tombee/kiln/pkg/results"
)

// fakePlugin records the phases it ran and the sandbox it saw.
type fakePlugin struct {
	calls      []string
	sandbox    string
	emptyAtPre bool

	prerunErr  error
	runErr     error
	postrunErr error

	// outputs are written during run; reported lists what postrun claims.
	outputs  map[string]string
	reported []string
	nilRes   bool
}

func (f *fakePlugin) Kind() string { return "fake" }

func (f *fakePlugin) Prerun(ctx context.Context, sb *Sandbox, p *params.Parameters) error {
	f.calls = append(f.calls, "prerun")
	f.sandbox = sb.Dir
	entries, err := os.ReadDir(sb.Dir)
	if err != nil {
		return err
	}
	f.emptyAtPre = len(entries) == 0
	if f.prerunErr != nil {
		return f.prerunErr
	}
	sb.AddInput("input.txt")
	return os.WriteFile(sb.Path("input.txt"), []byte("in"), 0o644)
}

func (f *fakePlugin) Run(ctx context.Context, sb *Sandbox) error {
	f.calls = append(f.calls, "run")
	if f.runErr != nil {
		return f.runErr
	}
	for name, body := range f.outputs {
		if err := os.WriteFile(sb.Path(name), []byte(body), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakePlugin) Postrun(ctx context.Context, sb *Sandbox, p *params.Parameters) (*results.Results, error) {
	f.calls = append(f.calls, "postrun")
	if f.postrunErr != nil {
		return nil, f.postrunErr
	}
	if f.nilRes {
		return nil, nil
	}
	outputs := f.reported
	if outputs == nil {
		var err error
		outputs, err = ClassifyOutputs(sb, sb.Inputs())
		if err != nil {
			return nil, err
		}
	}
	return results.New(f.Kind(), sb.Workflow, sb.Started, p, sb.Dir, sb.Inputs(), outputs), nil
}

func newArchive(t *testing.T) *archive.Database {
	t.Helper()
	db := archive.New(filepath.Join(t.TempDir(), "db"), archive.WithLogger(log.Discard()))
	t.Cleanup(func() { db.Close() })
	return db
}

func run(t *testing.T, db *archive.Database, p Plugin, prm *params.Parameters, name string) (*results.Results, error) {
	t.Helper()
	return Workflow(context.Background(), db, p, prm, name,
		WithLogger(log.Discard()), WithTempDir(t.TempDir()))
}

func TestWorkflowPhaseOrder(t *testing.T) {
	db := newArchive(t)
	f := &fakePlugin{outputs: map[string]string{"out.txt": "done"}}

	r, err := run(t, db, f, nil, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"prerun", "run", "postrun"}, f.calls)
	assert.Equal(t, DefaultName, r.Name)
	assert.Equal(t, filepath.Join(db.Path(), DefaultName), r.BasePath)
	assert.Equal(t, []string{"input.txt"}, r.Inputs)
	assert.Equal(t, []string{"out.txt"}, r.Outputs)

	b, err := os.ReadFile(filepath.Join(r.BasePath, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "done", string(b))
}

func TestWorkflowPhaseErrorsPassThrough(t *testing.T) {
	sentinel := errors.New("phase exploded")

	tests := []struct {
		name      string
		plugin    *fakePlugin
		wantCalls []string
	}{
		{"prerun", &fakePlugin{prerunErr: sentinel}, []string{"prerun"}},
		{"run", &fakePlugin{runErr: sentinel}, []string{"prerun", "run"}},
		{"postrun", &fakePlugin{postrunErr: sentinel}, []string{"prerun", "run", "postrun"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newArchive(t)

			r, err := run(t, db, tt.plugin, nil, "Workflow")
			assert.Nil(t, r)
			assert.Same(t, sentinel, err, "phase errors must be returned unchanged")
			assert.Equal(t, tt.wantCalls, tt.plugin.calls)

			names, err := db.Names()
			require.NoError(t, err)
			assert.Empty(t, names)
			n, err := db.Len(context.Background())
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestWorkflowSandboxIsolation(t *testing.T) {
	db := newArchive(t)
	cwd, err := os.Getwd()
	require.NoError(t, err)

	first := &fakePlugin{runErr: errors.New("boom")}
	_, err = run(t, db, first, nil, "Workflow")
	require.Error(t, err)

	second := &fakePlugin{outputs: map[string]string{"out.txt": "x"}}
	_, err = run(t, db, second, nil, "Workflow")
	require.NoError(t, err)

	for _, f := range []*fakePlugin{first, second} {
		assert.True(t, f.emptyAtPre, "sandbox must start empty")
		assert.NotEqual(t, cwd, f.sandbox)
		_, err := os.Stat(f.sandbox)
		assert.True(t, os.IsNotExist(err), "sandbox %s must be removed", f.sandbox)
	}
	assert.NotEqual(t, first.sandbox, second.sandbox)

	after, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, cwd, after, "working directory must not change")
}

func TestWorkflowRollbackOnRelocateFailure(t *testing.T) {
	db := newArchive(t)
	ctx := context.Background()

	_, err := run(t, db, &fakePlugin{outputs: map[string]string{"a.txt": "a"}}, nil, "Workflow")
	require.NoError(t, err)

	// postrun reports a second output that run never produced
	broken := &fakePlugin{
		outputs:  map[string]string{"a.txt": "a"},
		reported: []string{"a.txt", "b.txt"},
	}
	r, err := run(t, db, broken, nil, "Workflow")
	assert.Nil(t, r)

	var archiveErr *errors.ArchiveError
	require.True(t, errors.As(err, &archiveErr), "got %v", err)
	assert.Equal(t, "b.txt", archiveErr.Path)

	names, err := db.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"Workflow"}, names, "partial destination must be removed")

	n, err := db.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = os.Stat(broken.sandbox)
	assert.True(t, os.IsNotExist(err))
}

func TestWorkflowNilResults(t *testing.T) {
	db := newArchive(t)

	_, err := run(t, db, &fakePlugin{nilRes: true}, nil, "Workflow")

	var execErr *errors.ExecutionError
	require.True(t, errors.As(err, &execErr))
	names, err := db.Names()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestWorkflowSuffixesRepeatedNames(t *testing.T) {
	db := newArchive(t)
	ctx := context.Background()

	var bases []string
	for i := 0; i < 3; i++ {
		r, err := run(t, db, &fakePlugin{}, nil, "sweep")
		require.NoError(t, err)
		bases = append(bases, filepath.Base(r.BasePath))
	}
	assert.Equal(t, []string{"sweep", "sweep_1", "sweep_2"}, bases)

	entries, err := db.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, bases[i], e.Name)
		assert.Equal(t, "sweep", e.Workflow)
		assert.Equal(t, "fake", e.Kind)
		assert.NotEmpty(t, e.RunID)
	}
}

func TestWorkflowDoesNotMutateParameters(t *testing.T) {
	db := newArchive(t)
	prm := params.New()
	require.NoError(t, prm.Set("power", params.Q(100, "kW")))

	mutating := &mutatingPlugin{}
	r, err := run(t, db, mutating, prm, "Workflow")
	require.NoError(t, err)

	assert.Equal(t, []string{"power"}, prm.Keys())
	assert.True(t, r.Parameters.Has("injected"))
}

type mutatingPlugin struct{ fakePlugin }

func (m *mutatingPlugin) Prerun(ctx context.Context, sb *Sandbox, p *params.Parameters) error {
	if err := p.Set("injected", true); err != nil {
		return err
	}
	return m.fakePlugin.Prerun(ctx, sb, p)
}

func TestWorkflowRejectsBadName(t *testing.T) {
	db := newArchive(t)
	f := &fakePlugin{}

	_, err := run(t, db, f, nil, "../escape")

	var vErr *errors.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Empty(t, f.calls)
}

func TestWorkflowConfigErrorFromDatabase(t *testing.T) {
	f := &fakePlugin{}

	_, err := run(t, archive.New(""), f, nil, "Workflow")

	var cfgErr *errors.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Empty(t, f.calls, "no phase may run against an unusable archive")
}

func TestWithRunID(t *testing.T) {
	db := newArchive(t)

	_, err := Workflow(context.Background(), db, &fakePlugin{}, nil, "Workflow",
		WithLogger(log.Discard()), WithTempDir(t.TempDir()), WithRunID("run-42"))
	require.NoError(t, err)

	e, err := db.Get(context.Background(), "Workflow")
	require.NoError(t, err)
	assert.Equal(t, "run-42", e.RunID)
}

func TestWriteMetrics(t *testing.T) {
	db := newArchive(t)
	_, err := run(t, db, &fakePlugin{}, nil, "Workflow")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "kiln.prom")
	require.NoError(t, WriteMetrics(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `kiln_workflow_runs_total{plugin="fake",status="ok"}`)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, "fake", KindOf(&fakePlugin{}))
	assert.Equal(t, "plainPlugin", KindOf(&plainPlugin{}))
}

type plainPlugin struct{}

func (plainPlugin) Prerun(context.Context, *Sandbox, *params.Parameters) error { return nil }
func (plainPlugin) Run(context.Context, *Sandbox) error                        { return nil }
func (plainPlugin) Postrun(context.Context, *Sandbox, *params.Parameters) (*results.Results, error) {
	return nil, nil
}

func TestWorkflowSpanCarriesRedactedParameters(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(redact.NewProcessor(redact.New(redact.ModeStandard, tracing.ParamAttributePrefix))),
		sdktrace.WithSpanProcessor(rec),
	)
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	prm := params.New()
	require.NoError(t, prm.Set("coolant", "sodium"))
	require.NoError(t, prm.Set("license_token", "abc123"))

	_, err := run(t, newArchive(t), &fakePlugin{}, prm, "traced")
	require.NoError(t, err)

	ended := rec.Ended()
	require.Len(t, ended, 1)
	attrs := make(map[string]string)
	for _, kv := range ended[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "traced", attrs["workflow.name"])
	assert.Equal(t, "fake", attrs["workflow.plugin"])
	assert.Equal(t, "sodium", attrs["workflow.param.coolant"])
	assert.Equal(t, redact.Redacted, attrs["workflow.param.license_token"])
}
