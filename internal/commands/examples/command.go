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


// Package examples implements "kiln examples": browsing and copying the
// workflows embedded in the binary.
package examples

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tombee/kiln/internal/cli/format"
	"github.com/tombee/kiln/internal/commands/completion"
	"github.com/tombee/kiln/internal/commands/shared"
	"github.com/tombee/kiln/internal/examples"
)

type listResponse struct {
	shared.JSONResponse
	Examples []examples.Example `json:"examples"`
}

type showResponse struct {
	shared.JSONResponse
	Example string `json:"example"`
	File    string `json:"file"`
	Content string `json:"content"`
}

type copyResponse struct {
	shared.JSONResponse
	Example    string `json:"example"`
	Definition string `json:"definition"`
}

// NewCommand creates the examples command
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "examples",
		Short: "Browse and copy example workflows",
		Long: `Browse, view and copy the example workflows embedded in kiln.

Each example is a directory holding workflow.yaml and the templates it
renders. Copy one out and run it with kiln run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd)
		},
	}

	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newShowCommand())
	cmd.AddCommand(newCopyCommand())
	return cmd
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available example workflows",
		Example: `  kiln examples list
  kiln examples list --json | jq -r '.examples[].name'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd)
		},
	}
}

func runList(cmd *cobra.Command) error {
	list, err := examples.List()
	if err != nil {
		return err
	}

	if shared.GetJSON() {
		return shared.EmitJSON(cmd.OutOrStdout(), listResponse{
			JSONResponse: shared.NewResponse("examples list"),
			Examples:     list,
		})
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPLUGIN\tDESCRIPTION")
	for _, ex := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", ex.Name, ex.Plugin, ex.Description)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if !shared.GetQuiet() {
		fmt.Fprintln(cmd.OutOrStdout())
		fmt.Fprintln(cmd.OutOrStdout(), shared.Muted.Render("Use 'kiln examples copy <name> [dir]' to copy an example"))
	}
	return nil
}

func newShowCommand() *cobra.Command {
	var noColor bool

	cmd := &cobra.Command{
		Use:   "show <name> [file]",
		Short: "Display a file of an example workflow",
		Long: `Display the definition of an example, or one of its templates, with
syntax highlighting when writing to a terminal.`,
		Example: `  kiln examples show sam-pipe
  kiln examples show openmc-pincell geometry.xml`,
		Args:              cobra.RangeArgs(1, 2),
		ValidArgsFunction: completion.CompleteExampleNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			file := examples.DefinitionFile
			if len(args) == 2 {
				file = args[1]
			}
			content, err := examples.Get(args[0], file)
			if err != nil {
				return shared.Classify("failed to show example", err)
			}

			if shared.GetJSON() {
				return shared.EmitJSON(cmd.OutOrStdout(), showResponse{
					JSONResponse: shared.NewResponse("examples show"),
					Example:      args[0],
					File:         file,
					Content:      string(content),
				})
			}

			out, err := format.FormatCode(string(content), format.LanguageFor(file), format.IsTTY() && !noColor)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable syntax highlighting")
	return cmd
}

func newCopyCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "copy <name> [dir]",
		Short: "Copy an example workflow to a directory",
		Long: `Copy the files of an example into dir, which defaults to a new
directory named after the example.`,
		Example: `  kiln examples copy doubler
  kiln examples copy sam-pipe ./runs/pipe && kiln run ./runs/pipe/workflow.yaml`,
		Args:              cobra.RangeArgs(1, 2),
		ValidArgsFunction: completion.CompleteExampleNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			dest := name
			if len(args) == 2 {
				dest = args[1]
			}

			def, err := examples.CopyTo(name, dest, force)
			if err != nil {
				return shared.Classify("failed to copy example", err)
			}
			if abs, err := filepath.Abs(def); err == nil {
				def = abs
			}

			if shared.GetJSON() {
				return shared.EmitJSON(cmd.OutOrStdout(), copyResponse{
					JSONResponse: shared.NewResponse("examples copy"),
					Example:      name,
					Definition:   def,
				})
			}
			if shared.GetQuiet() {
				fmt.Fprintln(cmd.OutOrStdout(), def)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), shared.RenderOK("Copied "+name+" to "+filepath.Dir(def)))
			fmt.Fprintln(cmd.OutOrStdout(), shared.Muted.Render("Run it with: kiln run "+def))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	return cmd
}
