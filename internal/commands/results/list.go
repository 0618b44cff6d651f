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
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/kiln/internal/commands/shared"
)

type listEntry struct {
	Seq       int64     `json:"seq"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Workflow  string    `json:"workflow"`
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
}

type listResponse struct {
	shared.JSONResponse
	Archive string      `json:"archive"`
	Results []listEntry `json:"results"`
}

func newListCommand() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openArchive()
			if err != nil {
				return err
			}
			defer db.Close()

			entries, err := db.List(commandContext(cmd))
			if err != nil {
				return shared.Classify("failed to read archive", err)
			}

			rows := make([]listEntry, 0, len(entries))
			for _, e := range entries {
				if kind != "" && !strings.EqualFold(e.Kind, kind) {
					continue
				}
				rows = append(rows, listEntry{
					Seq:       e.Seq,
					Name:      e.Name,
					Kind:      e.Kind,
					Workflow:  e.Workflow,
					RunID:     e.RunID,
					CreatedAt: e.CreatedAt,
				})
			}

			if shared.GetJSON() {
				return shared.EmitJSON(cmd.OutOrStdout(), listResponse{
					JSONResponse: shared.NewResponse("results list"),
					Archive:      db.Path(),
					Results:      rows,
				})
			}

			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), shared.Muted.Render("No archived results in "+db.Path()))
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tKIND\tWORKFLOW\tCREATED\tRUN ID")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					r.Name, r.Kind, r.Workflow, r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.RunID)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Only list runs of this kind (MOOSE, OpenMC, ...)")
	return cmd
}
