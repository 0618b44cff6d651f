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

package run

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tombee/kiln/internal/cli/prompt"
	"github.com/tombee/kiln/internal/commands/shared"
	"github.com/tombee/kiln/internal/config"
	"github.com/tombee/kiln/internal/log"
	"github.com/tombee/kiln/pkg/params"
	"github.com/tombee/kiln/pkg/plugin"
	"github.com/tombee/kiln/pkg/results"
	"github.com/tombee/kiln/pkg/workflow"
)

// runResponse is the JSON output of a completed run.
type runResponse struct {
	shared.JSONResponse
	RunID    string       `json:"run_id"`
	Archived string       `json:"archived"`
	Duration string       `json:"duration"`
	Result   results.View `json:"result"`
}

// planResponse is the JSON output of --dry-run.
type planResponse struct {
	shared.JSONResponse
	Workflow   string         `json:"workflow"`
	Plugin     string         `json:"plugin"`
	Kind       string         `json:"kind"`
	Archive    string         `json:"archive"`
	Inputs     []string       `json:"inputs"`
	Parameters map[string]any `json:"parameters"`
}

func runWorkflow(cmd *cobra.Command, path string, opts *options) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := shared.LoadConfig()
	if err != nil {
		return err
	}
	logger := shared.NewLogger(cfg)

	def, err := workflow.LoadDefinition(path)
	if err != nil {
		return shared.Classify("failed to load workflow", err)
	}
	name := def.Name
	if opts.name != "" {
		name = opts.name
	}

	prm, err := buildParameters(ctx, def, opts)
	if err != nil {
		return err
	}

	p, err := def.Build(cfg)
	if err != nil {
		return shared.Classify("failed to configure plugin", err)
	}

	if opts.dryRun {
		return dryRun(ctx, cmd, cfg, def, name, p, prm, logger)
	}

	if s, ok := p.(plugin.Streamer); ok && opts.stream && !shared.GetJSON() {
		s.Stream(cmd.ErrOrStderr(), cmd.ErrOrStderr())
	}

	shutdown, err := shared.StartTelemetry(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(); err != nil {
			logger.Warn("telemetry shutdown failed", log.Error(err))
		}
	}()

	db := shared.OpenArchive(cfg, logger)
	defer db.Close()

	runID := uuid.NewString()
	start := time.Now()
	res, err := plugin.Workflow(ctx, db, p, prm, name,
		plugin.WithRunID(runID),
		plugin.WithLogger(logger),
		plugin.WithTempDir(cfg.Sandbox.TempDir),
	)
	if err != nil {
		return shared.Classify("workflow failed", err)
	}
	elapsed := time.Since(start).Round(time.Millisecond)
	archived := filepath.Base(res.BasePath)

	if shared.GetJSON() {
		resp := runResponse{
			JSONResponse: shared.NewResponse("run"),
			RunID:        runID,
			Archived:     archived,
			Duration:     elapsed.String(),
			Result:       res.View(),
		}
		return shared.EmitJSON(cmd.OutOrStdout(), resp)
	}

	if shared.GetQuiet() {
		fmt.Fprintln(cmd.OutOrStdout(), archived)
		return nil
	}
	printSummary(cmd.OutOrStdout(), res, runID, archived, elapsed)
	return nil
}

// buildParameters merges the definition's parameters, --set values and,
// when possible, answers to prompts for values the templates reference
// but nothing defines.
func buildParameters(ctx context.Context, def *workflow.Definition, opts *options) (*params.Parameters, error) {
	overrides := make([]workflow.ParameterDefinition, 0, len(opts.sets))
	for _, s := range opts.sets {
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

	pr := opts.prompter
	if pr == nil {
		if !prompt.IsInteractive(opts.noInteractive) {
			return prm, nil
		}
		pr = prompt.NewSurveyPrompter()
	}

	missing, err := prompt.MissingParameters(def.Templates(), prm)
	if err != nil {
		return nil, shared.Classify("failed to read templates", err)
	}
	if len(missing) == 0 {
		return prm, nil
	}
	answers, err := prompt.Collect(ctx, pr, missing)
	if err != nil {
		return nil, shared.Classify("failed to collect parameters", err)
	}
	return def.Params(append(overrides, answers...)...)
}

// dryRun executes only the input phase, in a scratch directory that is
// removed afterwards.
func dryRun(ctx context.Context, cmd *cobra.Command, cfg *config.Config, def *workflow.Definition, name string, p plugin.Plugin, prm *params.Parameters, logger *slog.Logger) error {
	dir, err := os.MkdirTemp(cfg.Sandbox.TempDir, "kiln-plan-")
	if err != nil {
		return shared.NewExecutionError("failed to create scratch directory", err)
	}
	defer os.RemoveAll(dir)

	sb := &plugin.Sandbox{
		Dir:      dir,
		Workflow: name,
		RunID:    "dry-run",
		Started:  time.Now(),
		Logger:   log.WithComponent(logger, "plan"),
	}
	if err := p.Prerun(ctx, sb, prm); err != nil {
		return shared.Classify("failed to render inputs", err)
	}

	kind := plugin.KindOf(p)
	if shared.GetJSON() {
		resp := planResponse{
			JSONResponse: shared.NewResponse("run"),
			Workflow:     name,
			Plugin:       def.Plugin,
			Kind:         kind,
			Archive:      cfg.Database.Path,
			Inputs:       sb.Inputs(),
			Parameters:   prm.Map(),
		}
		if resp.Inputs == nil {
			resp.Inputs = []string{}
		}
		return shared.EmitJSON(cmd.OutOrStdout(), resp)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, shared.Header.Render("Execution plan"))
	fmt.Fprintf(out, "  %s %s\n", shared.RenderLabel("workflow:"), name)
	fmt.Fprintf(out, "  %s %s (%s)\n", shared.RenderLabel("plugin:  "), def.Plugin, kind)
	fmt.Fprintf(out, "  %s %s\n", shared.RenderLabel("archive: "), cfg.Database.Path)
	fmt.Fprintf(out, "  %s %s\n", shared.RenderLabel("inputs:  "), joinOrNone(sb.Inputs()))
	fmt.Fprintln(out)
	if prm.Len() > 0 {
		if err := prm.Summary(out, params.SummaryOptions{}); err != nil {
			return err
		}
	}
	fmt.Fprintln(out, shared.RenderWarn("dry run: code not executed, nothing archived"))
	return nil
}

func printSummary(w io.Writer, res *results.Results, runID, archived string, elapsed time.Duration) {
	const width = 7
	fmt.Fprintln(w, shared.RenderOK(fmt.Sprintf("Workflow archived as %s (%s)", archived, elapsed)))
	fmt.Fprintln(w, "  "+shared.RenderField("kind", width, res.Kind))
	fmt.Fprintln(w, "  "+shared.RenderField("run id", width, runID))
	fmt.Fprintln(w, "  "+shared.RenderField("path", width, res.BasePath))
	fmt.Fprintln(w, "  "+shared.RenderField("inputs", width, joinOrNone(res.Inputs)))
	fmt.Fprintln(w, "  "+shared.RenderField("outputs", width, joinOrNone(res.Outputs)))
	keys := make([]string, 0, len(res.Payload))
	for k := range res.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := res.Payload[k].(type) {
		case string, bool, int, int64, float64:
			fmt.Fprintln(w, "  "+shared.RenderField(k, width, v))
		}
	}
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return shared.RenderNone()
	}
	return strings.Join(names, ", ")
}
