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

package plugin

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/tombee/kiln/internal/log"
	"github.com/tombee/kiln/internal/tracing"
	"github.com/tombee/kiln/pkg/errors"
)

// stderrTail bounds how much standard error an ExecutionError carries.
const stderrTail = 4096

// Command describes one subprocess launched inside a sandbox.
type Command struct {
	// Plugin names the adapter, for errors and logs.
	Plugin string

	// Argv is the program and its arguments. A program without a path
	// separator is looked up in PATH.
	Argv []string

	// Env holds variables added to the inherited environment.
	Env map[string]string

	// LogFile, relative to the sandbox, receives stdout and stderr.
	// Empty discards them.
	LogFile string

	// Stdout, if set, also receives the code's standard output.
	Stdout io.Writer

	// Stderr, if set, also receives the code's standard error.
	Stderr io.Writer
}

// Exec runs cmd in the sandbox directory and waits for it. A program that
// cannot be found is a *errors.ConfigError and nothing is started. A
// program that fails is a *errors.ExecutionError carrying the exit code
// and the tail of its standard error.
func Exec(ctx context.Context, sb *Sandbox, cmd Command) error {
	if len(cmd.Argv) == 0 || cmd.Argv[0] == "" {
		return &errors.ConfigError{Key: cmd.Plugin + ".executable", Reason: "no executable configured"}
	}
	program, err := exec.LookPath(cmd.Argv[0])
	if err != nil {
		return &errors.ConfigError{
			Key:    cmd.Plugin + ".executable",
			Reason: fmt.Sprintf("executable %q not found", cmd.Argv[0]),
			Cause:  err,
		}
	}

	c := exec.CommandContext(ctx, program, cmd.Argv[1:]...)
	c.Dir = sb.Dir
	c.WaitDelay = 5 * time.Second
	env := tracing.Environ(ctx)
	for k, v := range cmd.Env {
		env[k] = v
	}
	if len(env) > 0 {
		c.Env = os.Environ()
		for k, v := range env {
			c.Env = append(c.Env, fmt.Sprintf("%s=%s", k, v))
		}
	}

	var (
		stdout []io.Writer
		stderr []io.Writer
		tail   = &tailBuffer{max: stderrTail}
	)
	stderr = append(stderr, tail)
	if cmd.LogFile != "" {
		f, err := os.Create(sb.Path(cmd.LogFile))
		if err != nil {
			return errors.Wrapf(err, "creating %s", cmd.LogFile)
		}
		defer f.Close()
		stdout = append(stdout, f)
		stderr = append(stderr, f)
	}
	if cmd.Stdout != nil {
		stdout = append(stdout, cmd.Stdout)
	}
	if cmd.Stderr != nil {
		stderr = append(stderr, cmd.Stderr)
	}
	if len(stdout) > 0 {
		c.Stdout = io.MultiWriter(stdout...)
	}
	c.Stderr = io.MultiWriter(stderr...)

	logger := sb.Log()
	logger.Debug("starting external code", "argv", strings.Join(cmd.Argv, " "), "dir", sb.Dir)

	start := time.Now()
	err = c.Run()
	logger.Debug("external code finished", log.Duration(time.Since(start).Milliseconds()), "error", err)
	if err == nil {
		return nil
	}

	execErr := &errors.ExecutionError{
		Plugin:   cmd.Plugin,
		Command:  append([]string{}, cmd.Argv...),
		ExitCode: -1,
		Stderr:   strings.TrimSpace(tail.String()),
		Cause:    err,
	}
	if exitErr, ok := err.(*exec.ExitError); ok && ctx.Err() == nil {
		execErr.ExitCode = exitErr.ExitCode()
	}
	if ctx.Err() != nil {
		execErr.Cause = ctx.Err()
	}
	return execErr
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}
