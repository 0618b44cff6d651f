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

// Package jq evaluates jq expressions against result records for
// 'kiln results show --query'.
package jq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/itchyny/gojq"

	"github.com/tombee/kiln/pkg/errors"
)

const (
	// DefaultTimeout bounds a single evaluation.
	DefaultTimeout = 5 * time.Second

	// DefaultMaxInputSize bounds the JSON encoding of the input (64MB).
	// Payloads hold whole CSV columns, so this is larger than a typical
	// document.
	DefaultMaxInputSize = 64 * 1024 * 1024
)

// Query is a compiled jq expression.
type Query struct {
	expr         string
	code         *gojq.Code
	timeout      time.Duration
	maxInputSize int
}

// Compile parses and compiles expr. Syntax errors are
// *errors.ValidationError.
func Compile(expr string) (*Query, error) {
	parsed, err := gojq.Parse(expr)
	if err != nil {
		return nil, &errors.ValidationError{
			Field:      "query",
			Message:    fmt.Sprintf("invalid jq expression %q: %v", expr, err),
			Suggestion: "see https://jqlang.github.io/jq/manual/ for the expression syntax",
		}
	}
	code, err := gojq.Compile(parsed)
	if err != nil {
		return nil, &errors.ValidationError{
			Field:   "query",
			Message: fmt.Sprintf("jq compilation failed: %v", err),
		}
	}
	return &Query{expr: expr, code: code, timeout: DefaultTimeout, maxInputSize: DefaultMaxInputSize}, nil
}

// Run evaluates the query against v, which may be any JSON-encodable
// value. A single result is returned as is, several as a slice, none as
// nil.
func (q *Query) Run(ctx context.Context, v any) (any, error) {
	input, err := normalize(v, q.maxInputSize)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	var out []any
	iter := q.code.RunWithContext(ctx, input)
	for {
		r, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := r.(error); isErr {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("jq evaluation timed out after %v", q.timeout)
			}
			return nil, errors.Wrapf(err, "evaluating %q", q.expr)
		}
		out = append(out, r)
	}

	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0], nil
	}
	return out, nil
}

// Eval compiles and runs expr in one step.
func Eval(ctx context.Context, expr string, v any) (any, error) {
	q, err := Compile(expr)
	if err != nil {
		return nil, err
	}
	return q.Run(ctx, v)
}

// normalize converts v to the plain maps, slices and float64s gojq
// accepts by round-tripping it through JSON.
func normalize(v any, maxSize int) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encoding query input")
	}
	if len(b) > maxSize {
		return nil, fmt.Errorf("query input size (%d bytes) exceeds maximum (%d bytes)", len(b), maxSize)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, errors.Wrap(err, "decoding query input")
	}
	return out, nil
}
