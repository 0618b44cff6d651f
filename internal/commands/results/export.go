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

package results

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tombee/kiln/internal/commands/completion"
	"github.com/tombee/kiln/internal/commands/shared"
	"github.com/tombee/kiln/pkg/results"
)

type exportResponse struct {
	shared.JSONResponse
	File    string   `json:"file"`
	Results []string `json:"results"`
}

func newExportCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "export <file> [name...]",
		Short: "Write archived runs to a container file",
		Long: `Export writes the records of the named runs, or of every run with --all,
to a single container file. The file holds parameters, file lists and
parsed values; the input and output files themselves stay in the archive.`,
		Args: cobra.MinimumNArgs(1),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return nil, cobra.ShellCompDirectiveDefault
			}
			return completion.CompleteResultNames(cmd, args, toComplete)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			file, names := args[0], args[1:]
			if len(names) == 0 && !all {
				return shared.NewInvalidWorkflowError("name at least one run, or use --all", nil)
			}

			db, err := openArchive()
			if err != nil {
				return err
			}
			defer db.Close()
			ctx := commandContext(cmd)

			var rs []*results.Results
			if all {
				entries, err := db.List(ctx)
				if err != nil {
					return shared.Classify("failed to read archive", err)
				}
				names = names[:0]
				for _, e := range entries {
					rs = append(rs, e.Results)
					names = append(names, e.Name)
				}
			} else {
				for _, n := range names {
					e, err := db.Get(ctx, n)
					if err != nil {
						return shared.Classify("failed to read archive", err)
					}
					rs = append(rs, e.Results)
				}
			}

			if err := results.Save(file, rs...); err != nil {
				return shared.NewExecutionError("failed to write "+file, err)
			}

			if shared.GetJSON() {
				if names == nil {
					names = []string{}
				}
				return shared.EmitJSON(cmd.OutOrStdout(), exportResponse{
					JSONResponse: shared.NewResponse("results export"),
					File:         file,
					Results:      names,
				})
			}
			if !shared.GetQuiet() {
				fmt.Fprintln(cmd.OutOrStdout(), shared.RenderOK(fmt.Sprintf("Exported %d result(s) to %s", len(rs), file)))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Export every archived run")
	return cmd
}
