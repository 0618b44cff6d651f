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

// Package parameters implements "kiln params", which tabulates the parameters
// a workflow would run with, or those an archived run used.
package parameters

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/tombee/kiln/internal/commands/completion"
	"github.com/tombee/kiln/internal/commands/shared"
	"github.com/tombee/kiln/pkg/params"
	"github.com/tombee/kiln/pkg/workflow"
)

type options struct {
	archived   string
	sets       []string
	sortBy     string
	noMetadata bool
	filters    []string
}

type paramRow struct {
	Key   string    `json:"key"`
	Value string    `json:"value"`
	User  string    `json:"user,omitempty"`
	Time  time.Time `json:"time"`
}

type paramsResponse struct {
	shared.JSONResponse
	Source     string     `json:"source"`
	Parameters []paramRow `json:"parameters"`
}

// NewCommand creates the params command
func NewCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "params [workflow]",
		Short: "Show workflow parameters",
		Annotations: map[string]string{
			"group": "workflow",
		},
		Long: `Params prints the parameter set a workflow definition produces, with
--set overrides applied, or with --archived the set an archived run used.

Rows can be sorted by key, value, user or time, and filtered with
field=glob patterns:

  kiln params loop.yaml --sort-by value
  kiln params --archived loop_3 --filter "key=fuel_*"`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completion.CompleteWorkflowFiles,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && opts.archived == "" {
				return shared.NewInvalidWorkflowError("a workflow file or --archived name is required", nil)
			}
			if len(args) == 1 && opts.archived != "" {
				return shared.NewInvalidWorkflowError("give either a workflow file or --archived, not both", nil)
			}
			source := opts.archived
			if len(args) == 1 {
				source = args[0]
			}
			return runParams(cmd, source, opts)
		},
	}

	cmd.Flags().StringVar(&opts.archived, "archived", "", "Show the parameters of an archived run")
	cmd.Flags().StringArrayVarP(&opts.sets, "set", "s", nil, "Parameter in key=value format (repeatable)")
	cmd.Flags().StringVar(&opts.sortBy, "sort-by", params.FieldKey, "Sort by key, value, user or time")
	cmd.Flags().BoolVar(&opts.noMetadata, "no-metadata", false, "Hide the ADDED BY and TIMESTAMP columns")
	cmd.Flags().StringArrayVar(&opts.filters, "filter", nil, "Keep rows whose field matches a glob (field=pattern)")

	_ = cmd.RegisterFlagCompletionFunc("sort-by", completion.CompleteSortFields)
	_ = cmd.RegisterFlagCompletionFunc("archived", completion.CompleteResultNames)

	return cmd
}

func runParams(cmd *cobra.Command, source string, opts *options) error {
	filter, err := parseFilters(opts.filters)
	if err != nil {
		return err
	}

	var prm *params.Parameters
	if opts.archived != "" {
		prm, err = archivedParameters(cmd.Context(), opts.archived)
	} else {
		prm, err = workflowParameters(source, opts.sets)
	}
	if err != nil {
		return err
	}

	summary := params.SummaryOptions{
		ShowMetadata: !opts.noMetadata,
		SortBy:       opts.sortBy,
		Filter:       filter,
	}

	if shared.GetJSON() {
		rows, err := prm.Rows(summary)
		if err != nil {
			return shared.NewInvalidWorkflowError("invalid --sort-by", err)
		}
		resp := paramsResponse{
			JSONResponse: shared.NewResponse("params"),
			Source:       source,
			Parameters:   make([]paramRow, 0, len(rows)),
		}
		for _, r := range rows {
			resp.Parameters = append(resp.Parameters, paramRow{Key: r.Key, Value: r.Value, User: r.User, Time: r.Time})
		}
		return shared.EmitJSON(cmd.OutOrStdout(), resp)
	}

	if err := prm.Summary(cmd.OutOrStdout(), summary); err != nil {
		return shared.NewInvalidWorkflowError("invalid --sort-by", err)
	}
	return nil
}

func workflowParameters(path string, sets []string) (*params.Parameters, error) {
	def, err := workflow.LoadDefinition(path)
	if err != nil {
		return nil, shared.Classify("failed to load workflow", err)
	}
	overrides := make([]workflow.ParameterDefinition, 0, len(sets))
	for _, s := range sets {
		pd, err := workflow.ParseAssignment(s)
		if err != nil {
			return nil, shared.NewInvalidWorkflowError("invalid --set value", err)
		}
		overrides = append(overrides, pd)
	}
	prm, err := def.Params(overrides...)
	if err != nil {
		return nil, shared.Classify("invalid parameters", err)
	}
	return prm, nil
}

func archivedParameters(ctx context.Context, name string) (*params.Parameters, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := shared.LoadConfig()
	if err != nil {
		return nil, err
	}
	db := shared.OpenArchive(cfg, shared.NewLogger(cfg))
	defer db.Close()

	entry, err := db.Get(ctx, name)
	if err != nil {
		return nil, shared.Classify("failed to read archive", err)
	}
	return entry.Results.Parameters, nil
}

// parseFilters turns field=glob flags into summary predicates.
func parseFilters(raw []string) (map[string]func(string) bool, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]func(string) bool, len(raw))
	for _, f := range raw {
		field, pattern, ok := strings.Cut(f, "=")
		field = strings.ToLower(strings.TrimSpace(field))
		switch field {
		case params.FieldKey, params.FieldValue, params.FieldUser, params.FieldTime:
		default:
			ok = false
		}
		if !ok || !doublestar.ValidatePattern(pattern) {
			return nil, shared.NewInvalidWorkflowError(fmt.Sprintf("invalid --filter %q: use field=pattern with field one of key, value, user, time", f), nil)
		}
		prev := out[field]
		out[field] = func(s string) bool {
			if prev != nil && !prev(s) {
				return false
			}
			matched, _ := doublestar.Match(pattern, s)
			return matched
		}
	}
	return out, nil
}
