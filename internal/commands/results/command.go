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

// Package results implements "kiln results", which browses the archive
// and moves results in and out of portable container files.
package results

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/tombee/kiln/internal/commands/shared"
	"github.com/tombee/kiln/internal/jq"
	"github.com/tombee/kiln/pkg/archive"
)

// NewCommand creates the results command group
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Browse archived results",
		Annotations: map[string]string{
			"group": "results",
		},
		Long: `Results lists and shows archived workflow runs, and exports them to or
inspects them from container files that can be shared without the archive.`,
	}

	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newShowCommand())
	cmd.AddCommand(newExportCommand())
	cmd.AddCommand(newInspectCommand())

	return cmd
}

// openArchive loads the configuration and opens the results database.
func openArchive() (*archive.Database, error) {
	cfg, err := shared.LoadConfig()
	if err != nil {
		return nil, err
	}
	return shared.OpenArchive(cfg, shared.NewLogger(cfg)), nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// query applies a jq expression to v and writes the result as JSON.
func query(cmd *cobra.Command, expr string, v any) error {
	out, err := jq.Eval(commandContext(cmd), expr, v)
	if err != nil {
		return shared.Classify("query failed", err)
	}
	return shared.EmitJSON(cmd.OutOrStdout(), out)
}
