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
	"github.com/spf13/cobra"

	"github.com/tombee/kiln/internal/cli/prompt"
	"github.com/tombee/kiln/internal/commands/completion"
	"github.com/tombee/kiln/internal/commands/shared"
)

type options struct {
	name          string
	sets          []string
	dryRun        bool
	noInteractive bool
	stream        bool

	// prompter overrides the terminal prompter in tests.
	prompter prompt.Prompter
}

// NewCommand creates the run command
func NewCommand() *cobra.Command {
	return newCommand(&options{})
}

func newCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <workflow>",
		Short: "Execute a workflow",
		Annotations: map[string]string{
			"group": "execution",
		},
		Long: `Run executes a workflow definition: it renders the inputs into a private
sandbox, runs the simulation code, and archives inputs and outputs in the
results database under a unique name.

Parameters come from the definition's parameters section. --set adds or
overrides one:

  kiln run loop.yaml --set radius=0.5
  kiln run loop.yaml --set "pitch=1.26 cm" --set "pins=[1, 2, 3]"

Values referenced by a template but defined nowhere are asked for
interactively when stdin is a terminal. --no-interactive (implied by
--json) turns the missing value into an error instead.

--dry-run renders the inputs into a scratch directory and prints the plan
without running the code or touching the archive.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completion.CompleteWorkflowFiles,
		RunE: func(cmd *cobra.Command, args []string) error {
			// --json implies --no-interactive
			if shared.GetJSON() {
				opts.noInteractive = true
			}
			return runWorkflow(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.name, "name", "n", "", "Archive name (default: the definition's name)")
	cmd.Flags().StringArrayVarP(&opts.sets, "set", "s", nil, "Parameter in key=value format (repeatable)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Render inputs and show the plan without running")
	cmd.Flags().BoolVar(&opts.noInteractive, "no-interactive", false, "Disable prompts for missing parameters")
	cmd.Flags().BoolVar(&opts.stream, "stream", false, "Echo the code's output while it runs")

	return cmd
}
