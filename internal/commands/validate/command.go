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

package validate

import (
	"fmt"
	"os"
	"regexp"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tombee/kiln/internal/cli/prompt"
	"github.com/tombee/kiln/internal/commands/completion"
	"github.com/tombee/kiln/internal/commands/shared"
	"github.com/tombee/kiln/pkg/template"
	"github.com/tombee/kiln/schemas"
	"github.com/tombee/kiln/pkg/workflow"
)

// Issue is one problem found in a workflow.
type Issue struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Line       int    `json:"line,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	Warning    bool   `json:"warning,omitempty"`
}

// Report is the outcome for one workflow file.
type Report struct {
	Path       string  `json:"path"`
	Name       string  `json:"name,omitempty"`
	Plugin     string  `json:"plugin,omitempty"`
	Parameters int     `json:"parameters"`
	Templates  int     `json:"templates"`
	Issues     []Issue `json:"issues"`
}

// Valid reports whether the file has no errors. Warnings are allowed.
func (r *Report) Valid() bool {
	for _, i := range r.Issues {
		if !i.Warning {
			return false
		}
	}
	return true
}

type validateResponse struct {
	shared.JSONResponse
	Workflows []*Report `json:"workflows"`
}

// NewCommand creates the validate command
func NewCommand() *cobra.Command {
	var (
		strict      bool
		printSchema bool
	)

	cmd := &cobra.Command{
		Use:   "validate <workflow>...",
		Short: "Validate workflow definitions",
		Annotations: map[string]string{
			"group": "workflow",
		},
		Long: `Validate checks workflow files without running anything:

  1. YAML syntax
  2. The definition itself: plugin, name, patterns, parameters
  3. Every template and extra input exists
  4. Template expressions parse, and every name they use is defined

Names a template uses but no parameter defines are warnings, since
"kiln run" asks for them interactively. --strict makes them errors.

See also: kiln run --dry-run, kiln render`,
		Example: `  # Validate one workflow
  kiln validate loop.yaml

  # Validate several, machine-readable
  kiln validate workflows/*.yaml --json

  # Write the JSON Schema for editor integration
  kiln validate --schema > workflow.schema.json`,
		Args: func(cmd *cobra.Command, args []string) error {
			if printSchema {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.MinimumNArgs(1)(cmd, args)
		},
		ValidArgsFunction: completion.CompleteWorkflowFiles,
		SilenceUsage:      true,
		SilenceErrors:     true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if printSchema {
				data, err := schemas.WorkflowJSON()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}

			reports := make([]*Report, 0, len(args))
			failed := 0
			for _, path := range args {
				r := Validate(path, strict)
				if !r.Valid() {
					failed++
				}
				reports = append(reports, r)
			}

			if shared.GetJSON() {
				resp := validateResponse{JSONResponse: shared.NewResponse("validate"), Workflows: reports}
				resp.Success = failed == 0
				if err := shared.EmitJSON(cmd.OutOrStdout(), resp); err != nil {
					return err
				}
			} else {
				for _, r := range reports {
					printReport(cmd, r)
				}
			}

			if failed > 0 {
				return shared.NewInvalidWorkflowError(fmt.Sprintf("%d of %d workflow(s) invalid", failed, len(args)), nil)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Treat undefined template names as errors")
	cmd.Flags().BoolVar(&printSchema, "schema", false, "Print the JSON Schema of workflow definitions and exit")
	return cmd
}

// Validate checks the workflow at path.
func Validate(path string, strict bool) *Report {
	r := &Report{Path: path, Issues: []Issue{}}

	data, err := os.ReadFile(path)
	if err != nil {
		r.Issues = append(r.Issues, Issue{
			Code:       shared.ErrorCodeNotFound,
			Message:    fmt.Sprintf("failed to read workflow file: %v", err),
			Suggestion: "Check that the file path is correct and the file exists",
		})
		return r
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		r.Issues = append(r.Issues, Issue{
			Code:       shared.ErrorCodeInvalidYAML,
			Message:    fmt.Sprintf("YAML syntax error: %v", err),
			Line:       yamlErrorLine(err),
			Suggestion: "Check YAML syntax and indentation",
		})
		return r
	}

	def, err := workflow.LoadDefinition(path)
	if err != nil {
		r.Issues = append(r.Issues, Issue{
			Code:       shared.ErrorCodeFor(err),
			Message:    err.Error(),
			Line:       yamlErrorLine(err),
			Suggestion: shared.SuggestionFor(err),
		})
		return r
	}
	r.Name = def.Name
	r.Plugin = def.Plugin
	r.Parameters = len(def.Parameters)

	for _, in := range def.ExtraInputs {
		if _, err := os.Stat(def.Resolve(in)); err != nil {
			r.Issues = append(r.Issues, Issue{
				Code:       shared.ErrorCodeNotFound,
				Message:    fmt.Sprintf("extra input %s not found", in),
				Suggestion: "paths are relative to the workflow file",
			})
		}
	}

	var readable []string
	for _, t := range def.Templates() {
		text, err := os.ReadFile(t)
		if err != nil {
			r.Issues = append(r.Issues, Issue{
				Code:       shared.ErrorCodeNotFound,
				Message:    fmt.Sprintf("template %s not found", t),
				Suggestion: "paths are relative to the workflow file",
			})
			continue
		}
		r.Templates++
		if _, err := template.References(string(text)); err != nil {
			r.Issues = append(r.Issues, Issue{
				Code:       shared.ErrorCodeFor(err),
				Message:    err.Error(),
				Suggestion: shared.SuggestionFor(err),
			})
			continue
		}
		readable = append(readable, t)
	}

	prm, err := def.Params()
	if err != nil {
		r.Issues = append(r.Issues, Issue{Code: shared.ErrorCodeFor(err), Message: err.Error()})
		return r
	}
	missing, err := prompt.MissingParameters(readable, prm)
	if err != nil {
		r.Issues = append(r.Issues, Issue{Code: shared.ErrorCodeFor(err), Message: err.Error()})
		return r
	}
	for _, m := range missing {
		r.Issues = append(r.Issues, Issue{
			Code:       shared.ErrorCodeUndefinedParam,
			Message:    fmt.Sprintf("%s uses %q, which no parameter defines", m.Template, m.Name),
			Suggestion: fmt.Sprintf("add %s to parameters or pass --set %s=...", m.Name, m.Name),
			Warning:    !strict,
		})
	}
	return r
}

func printReport(cmd *cobra.Command, r *Report) {
	w := cmd.ErrOrStderr()
	for _, i := range r.Issues {
		label := "error"
		if i.Warning {
			label = "warning"
		}
		if i.Line > 0 {
			fmt.Fprintf(w, "%s:%d: %s: %s\n", r.Path, i.Line, label, i.Message)
		} else {
			fmt.Fprintf(w, "%s: %s: %s\n", r.Path, label, i.Message)
		}
		if i.Suggestion != "" {
			fmt.Fprintf(w, "  Suggestion: %s\n", i.Suggestion)
		}
	}
	if r.Valid() && !shared.GetQuiet() {
		msg := fmt.Sprintf("%s: %s workflow %q, %d parameter(s), %d template(s)",
			r.Path, r.Plugin, r.Name, r.Parameters, r.Templates)
		fmt.Fprintln(cmd.OutOrStdout(), shared.RenderOK(msg))
	}
}

var yamlLine = regexp.MustCompile(`line (\d+)`)

// yamlErrorLine extracts the line number yaml.v3 puts in its messages.
func yamlErrorLine(err error) int {
	m := yamlLine.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}
