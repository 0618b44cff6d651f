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

// Package render implements "kiln render", which previews a template with
// a parameter set without running anything.
package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/kiln/internal/cli/format"
	"github.com/tombee/kiln/internal/commands/shared"
	"github.com/tombee/kiln/internal/log"
	"github.com/tombee/kiln/pkg/params"
	"github.com/tombee/kiln/pkg/template"
	"github.com/tombee/kiln/pkg/workflow"
)

type options struct {
	workflow string
	sets     []string
	output   string
	watch    bool
	noColor  bool
}

type renderResponse struct {
	shared.JSONResponse
	Template string `json:"template"`
	Output   string `json:"output,omitempty"`
	Rendered string `json:"rendered"`
}

// NewCommand creates the render command
func NewCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "render <template>",
		Short: "Render a template with parameters",
		Annotations: map[string]string{
			"group": "workflow",
		},
		Long: `Render substitutes every {{ expression }} in a template and prints the
result. Parameters come from --workflow (the definition's parameters and
unit conversion) and from --set, which takes precedence.

  kiln render input.tmpl --set r=0.5 --set "h=2 m"
  kiln render input.tmpl --workflow loop.yaml -o loop.i
  kiln render input.tmpl --workflow loop.yaml --watch

--watch renders again whenever the template or workflow changes, until
interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.workflow, "workflow", "w", "", "Workflow definition supplying parameters")
	cmd.Flags().StringArrayVarP(&opts.sets, "set", "s", nil, "Parameter in key=value format (repeatable)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write the result to a file")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Render again on every change")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable syntax highlighting")

	return cmd
}

func runRender(cmd *cobra.Command, path string, opts *options) error {
	if !opts.watch {
		return renderOnce(cmd, path, opts)
	}
	if shared.GetJSON() {
		return shared.NewInvalidWorkflowError("--watch cannot be combined with --json", nil)
	}

	cfg, err := shared.LoadConfig()
	if err != nil {
		return err
	}
	logger := log.WithComponent(shared.NewLogger(cfg), "render")

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	paths := []string{path}
	if opts.workflow != "" {
		paths = append(paths, opts.workflow)
	}

	rerender := func() {
		if err := renderOnce(cmd, path, opts); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), shared.RenderError(err.Error()))
		}
		fmt.Fprintln(cmd.ErrOrStderr(), shared.Muted.Render("watching for changes, ctrl-c to stop"))
	}
	rerender()
	return Watch(ctx, paths, 200*time.Millisecond, logger, rerender)
}

func renderOnce(cmd *cobra.Command, path string, opts *options) error {
	text, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return shared.NewNotFoundError("template not found", err)
		}
		return shared.NewExecutionError("failed to read template", err)
	}

	prm, err := parameters(opts)
	if err != nil {
		return err
	}

	out, err := template.Render(filepath.Base(path), string(text), prm.Map())
	if err != nil {
		return shared.Classify("failed to render template", err)
	}

	if opts.output != "" {
		if err := os.WriteFile(opts.output, []byte(out), 0o644); err != nil {
			return shared.NewExecutionError("failed to write output", err)
		}
	}

	if shared.GetJSON() {
		return shared.EmitJSON(cmd.OutOrStdout(), renderResponse{
			JSONResponse: shared.NewResponse("render"),
			Template:     path,
			Output:       opts.output,
			Rendered:     out,
		})
	}
	if opts.output != "" {
		if !shared.GetQuiet() {
			fmt.Fprintln(cmd.OutOrStdout(), shared.RenderOK("Rendered "+opts.output))
		}
		return nil
	}

	tty := format.IsTTY() && !opts.noColor
	highlighted, err := format.FormatCode(out, format.LanguageFor(path), tty)
	if err != nil {
		highlighted = out
	}
	fmt.Fprint(cmd.OutOrStdout(), highlighted)
	return nil
}

// parameters returns the workflow's parameters, converted to its unit
// system, with --set applied on top.
func parameters(opts *options) (*params.Parameters, error) {
	overrides := make([]workflow.ParameterDefinition, 0, len(opts.sets))
	for _, s := range opts.sets {
		pd, err := workflow.ParseAssignment(s)
		if err != nil {
			return nil, shared.NewInvalidWorkflowError("invalid --set value", err)
		}
		overrides = append(overrides, pd)
	}

	if opts.workflow == "" {
		prm := params.New()
		for _, o := range overrides {
			if err := prm.Set(o.Key, o.Value); err != nil {
				return nil, shared.Classify("invalid parameter", err)
			}
		}
		return prm, nil
	}

	def, err := workflow.LoadDefinition(opts.workflow)
	if err != nil {
		return nil, shared.Classify("failed to load workflow", err)
	}
	prm, err := def.Params(overrides...)
	if err != nil {
		return nil, shared.Classify("invalid parameters", err)
	}
	if u := def.ConvertUnits; u != nil {
		prm, err = prm.ConvertUnits(u.System, u.Temperature)
		if err != nil {
			return nil, shared.Classify("unit conversion failed", err)
		}
	}
	return prm, nil
}
