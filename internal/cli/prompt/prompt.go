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

// Package prompt collects parameters a workflow's templates reference but
// its definition does not set, asking on the terminal.
package prompt

import (
	"context"
	"fmt"
	"os"

	"github.com/tombee/kiln/internal/cli/format"
	"github.com/tombee/kiln/pkg/errors"
	"github.com/tombee/kiln/pkg/params"
	"github.com/tombee/kiln/pkg/template"
	"github.com/tombee/kiln/pkg/workflow"
)

// MaxRetries is the maximum number of attempts per parameter.
const MaxRetries = 3

// Prompter asks for the raw value of one parameter.
type Prompter interface {
	PromptValue(ctx context.Context, name, desc string) (string, error)
}

// Missing is a parameter referenced by a template but not set.
type Missing struct {
	Name string

	// Template is the first template referencing Name.
	Template string
}

// MissingParameters lists the names referenced by the template files that
// p does not define, in first-use order.
func MissingParameters(templates []string, p *params.Parameters) ([]Missing, error) {
	seen := make(map[string]bool)
	var out []Missing
	for _, path := range templates {
		if path == "" {
			continue
		}
		text, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "reading template %s", path)
		}
		names, err := template.References(string(text))
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			if seen[n] || p.Has(n) {
				continue
			}
			seen[n] = true
			out = append(out, Missing{Name: n, Template: path})
		}
	}
	return out, nil
}

// Collect asks pr for each missing parameter. Answers use the same syntax
// as --set values ("3", "0.5 cm", "[1, 2]"). An answer that cannot be
// parsed is asked again up to MaxRetries times.
func Collect(ctx context.Context, pr Prompter, missing []Missing) ([]workflow.ParameterDefinition, error) {
	out := make([]workflow.ParameterDefinition, 0, len(missing))
	for _, m := range missing {
		var (
			def     workflow.ParameterDefinition
			lastErr error
			ok      bool
		)
		for attempt := 0; attempt < MaxRetries; attempt++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			raw, err := pr.PromptValue(ctx, m.Name, "used by "+m.Template)
			if err != nil {
				return nil, err
			}
			def, lastErr = workflow.ParseAssignment(m.Name + "=" + raw)
			if lastErr == nil {
				ok = true
				break
			}
		}
		if !ok {
			return nil, fmt.Errorf("no valid value for %q after %d attempts: %w", m.Name, MaxRetries, lastErr)
		}
		out = append(out, def)
	}
	return out, nil
}

// IsInteractive reports whether prompting is possible: stdin and stdout
// are terminals and the caller did not opt out.
func IsInteractive(disabled bool) bool {
	if disabled {
		return false
	}
	return format.IsTerminal(os.Stdin) && format.IsTerminal(os.Stdout)
}
