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
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tombee/kiln/internal/commands/shared"
	"github.com/tombee/kiln/pkg/results"
)

type inspectResponse struct {
	shared.JSONResponse
	File    string         `json:"file"`
	Results []results.View `json:"results"`
}

func newInspectCommand() *cobra.Command {
	var expr string

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show the runs stored in a container file",
		Long: `Inspect reads a file written by "kiln results export" or by a workflow
and lists the results it holds. --query applies a jq expression to the
JSON array of results:

  kiln results inspect runs.kiln --query '.[].payload.keff'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := args[0]
			if _, err := os.Stat(file); err != nil {
				if os.IsNotExist(err) {
					return shared.NewNotFoundError("file not found: "+file, err)
				}
				return shared.NewExecutionError("cannot read "+file, err)
			}
			rs, err := results.Load(file)
			if err != nil {
				return shared.NewInvalidWorkflowError("not a results file: "+file, err)
			}

			views := make([]results.View, len(rs))
			for i, r := range rs {
				views[i] = r.View()
			}

			switch {
			case expr != "":
				return query(cmd, expr, views)
			case shared.GetJSON():
				return shared.EmitJSON(cmd.OutOrStdout(), inspectResponse{
					JSONResponse: shared.NewResponse("results inspect"),
					File:         file,
					Results:      views,
				})
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tNAME\tKIND\tSTARTED\tPARAMETERS\tOUTPUTS")
			for i, r := range rs {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\n",
					i, r.Name, r.Kind, r.Time.Local().Format("2006-01-02 15:04:05"),
					strings.Join(r.Parameters.Keys(), ","), len(r.Outputs))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&expr, "query", "", "jq expression applied to the results")
	return cmd
}
