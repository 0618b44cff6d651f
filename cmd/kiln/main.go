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

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tombee/kiln/internal/cli"
	"github.com/tombee/kiln/internal/commands/completion"
	"github.com/tombee/kiln/internal/commands/config"
	"github.com/tombee/kiln/internal/commands/examples"
	"github.com/tombee/kiln/internal/commands/parameters"
	"github.com/tombee/kiln/internal/commands/render"
	"github.com/tombee/kiln/internal/commands/results"
	"github.com/tombee/kiln/internal/commands/run"
	"github.com/tombee/kiln/internal/commands/validate"
	versioncmd "github.com/tombee/kiln/internal/commands/version"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildDate)

	rootCmd := cli.NewRootCommand()

	// Workflow commands
	rootCmd.AddCommand(run.NewCommand())
	rootCmd.AddCommand(validate.NewCommand())
	rootCmd.AddCommand(render.NewCommand())
	rootCmd.AddCommand(parameters.NewCommand())
	rootCmd.AddCommand(examples.NewCommand())

	// Archive commands
	rootCmd.AddCommand(results.NewCommand())

	// Configuration and diagnostics
	rootCmd.AddCommand(config.NewConfigCommand())
	rootCmd.AddCommand(completion.NewCommand())
	rootCmd.AddCommand(versioncmd.NewVersionCommand())

	// SIGINT cancels the running workflow; its sandbox is removed and the
	// claimed archive name released before exit.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		cli.HandleExitError(err)
	}
}
