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
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/kiln/internal/cli/format"
	"github.com/tombee/kiln/internal/commands/completion"
	"github.com/tombee/kiln/internal/commands/shared"
	"github.com/tombee/kiln/pkg/archive"
	"github.com/tombee/kiln/pkg/container"
	"github.com/tombee/kiln/pkg/results"
)

type showResponse struct {
	shared.JSONResponse
	Seq    int64        `json:"seq"`
	RunID  string       `json:"run_id"`
	Result results.View `json:"result"`
}

func newShowCommand() *cobra.Command {
	var (
		expr    string
		showLog bool
	)

	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show an archived run",
		Long: `Show prints an archived run: its parameters, files and the values the
plugin parsed from the outputs.

--query applies a jq expression to the JSON form of the result:

  kiln results show loop_2 --query '.payload.keff'
  kiln results show loop_2 --query '.parameters | keys'

--log prints the code's captured output instead.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completion.CompleteResultNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openArchive()
			if err != nil {
				return err
			}
			defer db.Close()

			entry, err := db.Get(commandContext(cmd), args[0])
			if err != nil {
				return shared.Classify("failed to read archive", err)
			}

			switch {
			case showLog:
				out, err := entry.Results.Stdout()
				if err != nil {
					return shared.Classify("no log for "+entry.Name, err)
				}
				fmt.Fprint(cmd.OutOrStdout(), out)
				return nil
			case expr != "":
				return query(cmd, expr, entry.Results.View())
			case shared.GetJSON():
				return shared.EmitJSON(cmd.OutOrStdout(), showResponse{
					JSONResponse: shared.NewResponse("results show"),
					Seq:          entry.Seq,
					RunID:        entry.RunID,
					Result:       entry.Results.View(),
				})
			}

			out, err := format.FormatMarkdown(describe(entry), format.IsTTY())
			if err != nil {
				return shared.NewExecutionError("failed to format result", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&expr, "query", "", "jq expression applied to the result")
	cmd.Flags().BoolVar(&showLog, "log", false, "Print the captured output of the code")
	return cmd
}

// describe renders an entry as a markdown document.
func describe(e *archive.Entry) string {
	r := e.Results
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", e.Name)
	fmt.Fprintf(&b, "- **Kind:** %s\n", r.Kind)
	fmt.Fprintf(&b, "- **Workflow:** %s\n", r.Name)
	fmt.Fprintf(&b, "- **Started:** %s\n", r.Time.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "- **Run ID:** `%s`\n", e.RunID)
	fmt.Fprintf(&b, "- **Path:** `%s`\n", r.BasePath)

	if r.Parameters != nil && r.Parameters.Len() > 0 {
		b.WriteString("\n## Parameters\n\n| Parameter | Value |\n|---|---|\n")
		for _, k := range r.Parameters.Keys() {
			v, _ := r.Parameters.Get(k)
			fmt.Fprintf(&b, "| %s | %v |\n", k, v)
		}
	}

	fileList(&b, "Inputs", r.Inputs)
	fileList(&b, "Outputs", r.Outputs)

	if len(r.Payload) > 0 {
		keys := make([]string, 0, len(r.Payload))
		for k := range r.Payload {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\n## Results\n\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "- **%s:** %s\n", k, summarize(r.Payload[k]))
		}
	}
	return b.String()
}

func fileList(b *strings.Builder, title string, names []string) {
	if len(names) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## %s\n\n", title)
	for _, n := range names {
		fmt.Fprintf(b, "- `%s`\n", n)
	}
}

// summarize keeps large payload values from flooding the terminal.
func summarize(v any) string {
	switch x := v.(type) {
	case []any:
		return fmt.Sprintf("%d values", len(x))
	case []float64:
		return fmt.Sprintf("%d values", len(x))
	case []string:
		if len(x) <= 5 {
			return strings.Join(x, ", ")
		}
		return fmt.Sprintf("%d entries", len(x))
	case map[string]any:
		return fmt.Sprintf("%d fields", len(x))
	case container.Mapping:
		return fmt.Sprintf("%d fields", len(x))
	}
	s := fmt.Sprint(v)
	if len(s) > 80 {
		s = s[:77] + "..."
	}
	return s
}
