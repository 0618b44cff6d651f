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

// Package plugin defines the three-phase contract every simulation code
// adapter implements, and Workflow, which drives an adapter through an
// isolated sandbox into the results archive.
package plugin

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/tombee/kiln/internal/log"
	"github.com/tombee/kiln/pkg/params"
	"github.com/tombee/kiln/pkg/results"
)

// Plugin is implemented by each simulation code adapter. Workflow calls
// the phases in order, each at most once per execution, and stops at the
// first error.
type Plugin interface {
	// Prerun writes input files into the sandbox. It may assume only that
	// the sandbox directory is empty, isolated and writable.
	Prerun(ctx context.Context, sb *Sandbox, p *params.Parameters) error

	// Run invokes the external code. Its only inputs and outputs are the
	// files in the sandbox. It may block for as long as the code runs.
	Run(ctx context.Context, sb *Sandbox) error

	// Postrun inspects the sandbox and returns the results, classifying
	// the files it finds as inputs or outputs.
	Postrun(ctx context.Context, sb *Sandbox, p *params.Parameters) (*results.Results, error)
}

// Kinder is implemented by plugins that report a kind name for results,
// logs and metrics.
type Kinder interface {
	Kind() string
}

// Streamer is implemented by plugins that can echo the code's standard
// output and error while it runs.
type Streamer interface {
	Stream(stdout, stderr io.Writer)
}

// KindOf returns the plugin's kind, falling back to its type name.
func KindOf(p Plugin) string {
	if k, ok := p.(Kinder); ok {
		return k.Kind()
	}
	name := fmt.Sprintf("%T", p)
	return strings.TrimPrefix(name[strings.LastIndex(name, ".")+1:], "*")
}

// Sandbox is the private working directory of one workflow execution.
// It is removed when the execution ends, whatever the outcome.
type Sandbox struct {
	// Dir is the absolute path of the sandbox directory.
	Dir string

	// Workflow is the name requested by the caller.
	Workflow string

	// RunID identifies the execution.
	RunID string

	// Started is when the sandbox was created, before Prerun.
	Started time.Time

	// Logger carries the run context fields.
	Logger *slog.Logger

	inputs []string
}

// AddInput records name, relative to Dir, as an input produced during
// Prerun. Names are kept in the order added, without duplicates.
func (s *Sandbox) AddInput(name string) {
	for _, n := range s.inputs {
		if n == name {
			return
		}
	}
	s.inputs = append(s.inputs, name)
}

// Inputs returns the names recorded with AddInput.
func (s *Sandbox) Inputs() []string {
	return append([]string(nil), s.inputs...)
}

// Log returns the sandbox logger, or a discarding one when none is set.
func (s *Sandbox) Log() *slog.Logger {
	if s.Logger == nil {
		return log.Discard()
	}
	return s.Logger
}

// Path joins elem onto the sandbox directory.
func (s *Sandbox) Path(elem ...string) string {
	return filepath.Join(append([]string{s.Dir}, elem...)...)
}
