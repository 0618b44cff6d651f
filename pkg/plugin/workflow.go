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
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/kiln/internal/log"
	"github.com/tombee/kiln/internal/tracing"
	"github.com/tombee/kiln/pkg/archive"
	"github.com/tombee/kiln/pkg/errors"
	"github.com/tombee/kiln/pkg/params"
	"github.com/tombee/kiln/pkg/results"
)

// DefaultName is the workflow name used when the caller gives none.
const DefaultName = "Workflow"

var tracer = otel.Tracer("github.com/tombee/kiln/pkg/plugin")

type options struct {
	logger  *slog.Logger
	tempDir string
	runID   string
}

// Option configures a Workflow call.
type Option func(*options)

// WithLogger sets the logger. Run context fields are added to it.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTempDir sets the parent directory of the sandbox. Default: os.TempDir().
func WithTempDir(dir string) Option {
	return func(o *options) { o.tempDir = dir }
}

// WithRunID sets the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(o *options) { o.runID = id }
}

// Workflow runs p through prerun, run and postrun inside a fresh sandbox,
// moves the files named by the results into a uniquely named directory of
// db and appends the results to its index.
//
// An error from a phase is returned as is. If the files cannot be moved,
// or the index append fails, the archive directory is removed and the
// error returned. The sandbox is always removed. Either the returned
// results are archived and indexed, or an error is returned and db is
// unchanged.
func Workflow(ctx context.Context, db *archive.Database, p Plugin, prm *params.Parameters, name string, opts ...Option) (*results.Results, error) {
	if name == "" {
		name = DefaultName
	}
	if err := archive.ValidateName(name); err != nil {
		return nil, err
	}
	if prm == nil {
		prm = params.New()
	}

	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.runID == "" {
		o.runID = uuid.NewString()
	}

	kind := KindOf(p)
	logger := log.WithRunContext(o.logger, o.runID, name, kind)

	attrs := []attribute.KeyValue{
		attribute.String("workflow.name", name),
		attribute.String("workflow.run_id", o.runID),
		attribute.String("workflow.plugin", kind),
	}
	for _, key := range prm.Keys() {
		v, _ := prm.Get(key)
		attrs = append(attrs, paramAttribute(key, v))
	}
	ctx, span := tracer.Start(ctx, "workflow: "+name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	defer span.End()

	start := time.Now()
	r, err := execute(ctx, db, p, prm, name, kind, o, logger)
	observeWorkflow(kind, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("workflow failed", log.Error(err), log.Duration(time.Since(start).Milliseconds()))
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return r, nil
}

func execute(ctx context.Context, db *archive.Database, p Plugin, prm *params.Parameters, name, kind string, o options, logger *slog.Logger) (*results.Results, error) {
	if err := db.Open(ctx); err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp(o.tempDir, "kiln-")
	if err != nil {
		return nil, errors.Wrap(err, "creating sandbox")
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn("failed to remove sandbox", "dir", dir, log.Error(err))
		}
	}()

	sb := &Sandbox{
		Dir:      dir,
		Workflow: name,
		RunID:    o.runID,
		Started:  time.Now(),
		Logger:   logger,
	}
	logger.Debug("sandbox created", "dir", dir)

	// Phases see a private copy so the caller's parameters stay untouched.
	phaseParams := prm.Clone()

	if err := phase(ctx, kind, "prerun", logger, func(ctx context.Context) error {
		return p.Prerun(ctx, sb, phaseParams)
	}); err != nil {
		return nil, err
	}
	if err := phase(ctx, kind, "run", logger, func(ctx context.Context) error {
		return p.Run(ctx, sb)
	}); err != nil {
		return nil, err
	}
	var r *results.Results
	if err := phase(ctx, kind, "postrun", logger, func(ctx context.Context) error {
		var err error
		r, err = p.Postrun(ctx, sb, phaseParams)
		return err
	}); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, &errors.ExecutionError{Plugin: kind, ExitCode: -1, Cause: errors.New("postrun returned no results")}
	}

	dest, assigned, err := db.Claim(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := r.Relocate(dest); err != nil {
		rollback(ctx, db, kind, assigned, logger)
		return nil, err
	}
	archivedFiles.WithLabelValues(kind).Add(float64(len(r.Inputs) + len(r.Outputs)))

	if err := db.Append(ctx, assigned, o.runID, r); err != nil {
		rollback(ctx, db, kind, assigned, logger)
		return nil, err
	}

	logger.Info("workflow archived", log.ArchiveKey, assigned, "path", dest)
	return r, nil
}

func phase(ctx context.Context, kind, name string, logger *slog.Logger, fn func(context.Context) error) error {
	ctx, span := tracer.Start(ctx, "phase: "+name,
		trace.WithAttributes(attribute.String("phase", name)))
	defer span.End()

	logger.Debug("phase started", log.PhaseKey, name)
	start := time.Now()
	err := fn(ctx)
	observePhase(kind, name, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Debug("phase failed", log.PhaseKey, name, log.Error(err))
		return err
	}
	logger.Debug("phase finished", log.PhaseKey, name, log.Duration(time.Since(start).Milliseconds()))
	return nil
}

func rollback(ctx context.Context, db *archive.Database, kind, assigned string, logger *slog.Logger) {
	archiveRollbacks.WithLabelValues(kind).Inc()
	// the caller's context may already be cancelled; cleanup still runs
	if err := db.Release(context.WithoutCancel(ctx), assigned); err != nil {
		logger.Error("failed to remove archive directory", log.ArchiveKey, assigned, log.Error(err))
		return
	}
	logger.Warn("archive directory removed after failure", log.ArchiveKey, assigned)
}

// paramAttribute records one parameter on the workflow span. Values other
// than scalars are recorded as their printed form.
func paramAttribute(key string, v any) attribute.KeyValue {
	k := tracing.ParamAttributePrefix + key
	switch val := v.(type) {
	case string:
		return attribute.String(k, val)
	case bool:
		return attribute.Bool(k, val)
	case int:
		return attribute.Int(k, val)
	case int64:
		return attribute.Int64(k, val)
	case float64:
		return attribute.Float64(k, val)
	default:
		return attribute.String(k, fmt.Sprint(val))
	}
}
