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

package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tombee/kiln/internal/commands/shared"
	"github.com/tombee/kiln/internal/config"
)

type validateResponse struct {
	shared.JSONResponse
	Path  string            `json:"path"`
	Valid bool              `json:"valid"`
	Error *shared.JSONError `json:"error,omitempty"`
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a config file",
		Long: `Validate loads a config file the way every command does and reports the
first problem found. Without an argument the --config file, or the default
location, is checked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			} else {
				p, err := configPath()
				if err != nil {
					return err
				}
				path = p
			}
			if _, err := os.Stat(path); err != nil {
				return shared.NewNotFoundError("config file not found: "+path, err)
			}

			_, loadErr := config.Load(path)

			if shared.GetJSON() {
				resp := validateResponse{
					JSONResponse: shared.NewResponse("config validate"),
					Path:         path,
					Valid:        loadErr == nil,
				}
				if loadErr != nil {
					resp.Success = false
					resp.Error = &shared.JSONError{
						Code:       shared.ErrorCodeFor(loadErr),
						Message:    loadErr.Error(),
						Suggestion: shared.SuggestionFor(loadErr),
					}
				}
				if err := shared.EmitJSON(cmd.OutOrStdout(), resp); err != nil {
					return err
				}
				if loadErr != nil {
					return shared.NewConfigError("invalid configuration", loadErr)
				}
				return nil
			}

			if loadErr != nil {
				return shared.NewConfigError(fmt.Sprintf("%s is invalid", path), loadErr)
			}
			if !shared.GetQuiet() {
				fmt.Fprintln(cmd.OutOrStdout(), shared.RenderOK(path+" is valid"))
			}
			return nil
		},
	}
}
