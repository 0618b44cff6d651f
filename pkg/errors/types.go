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

package errors

import (
	"fmt"
	"strings"
)

// ValidationError represents invalid user input such as an unsupported
// parameter type or an unknown unit.
type ValidationError struct {
	// Field identifies which input failed validation
	Field string

	// Message is the human-readable error description
	Message string

	// Suggestion provides actionable guidance for fixing the error
	Suggestion string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) ErrorType() string { return "validation" }
func (e *ValidationError) IsRetryable() bool { return false }

// NotFoundError represents a missing resource, e.g. an archive entry.
type NotFoundError struct {
	// Resource is the kind of resource ("result", "template", "plugin")
	Resource string

	// ID is the identifier that was not found
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) ErrorType() string { return "not_found" }
func (e *NotFoundError) IsRetryable() bool { return false }

// ConfigError represents a configuration problem: a missing executable,
// an invalid adapter setting, or an unreadable config file. Configuration
// errors are fatal to the workflow call that hit them.
type ConfigError struct {
	// Key is the configuration key with the problem (e.g. "plugins.moose.executable")
	Key string

	// Reason explains what's wrong
	Reason string

	// Cause is the underlying error, if any
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	msg := "config error"
	if e.Key != "" {
		msg = fmt.Sprintf("config error at %s", e.Key)
	}
	msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

func (e *ConfigError) ErrorType() string   { return "config" }
func (e *ConfigError) IsRetryable() bool   { return false }
func (e *ConfigError) IsUserVisible() bool { return true }
func (e *ConfigError) UserMessage() string { return e.Error() }

// Suggestion implements UserVisibleError.
func (e *ConfigError) Suggestion() string {
	if strings.HasSuffix(e.Key, "executable") {
		return "set the executable path in the config file or via the matching environment variable"
	}
	return "run 'kiln config show' to inspect the effective configuration"
}

// TemplateError is returned when a template references a parameter that is
// not present in the parameter set. Callers use it to detect incomplete
// parameter sets before any external code runs.
type TemplateError struct {
	// Template is the template name or path
	Template string

	// Name is the undefined reference, when it could be determined
	Name string

	// Cause is the underlying compile or evaluation error
	Cause error
}

// Error implements the error interface.
func (e *TemplateError) Error() string {
	var b strings.Builder
	b.WriteString("template")
	if e.Template != "" {
		fmt.Fprintf(&b, " %q", e.Template)
	}
	if e.Name != "" {
		fmt.Fprintf(&b, ": undefined parameter %q", e.Name)
	} else {
		b.WriteString(": render failed")
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *TemplateError) Unwrap() error {
	return e.Cause
}

func (e *TemplateError) ErrorType() string   { return "template" }
func (e *TemplateError) IsRetryable() bool   { return false }
func (e *TemplateError) IsUserVisible() bool { return true }
func (e *TemplateError) UserMessage() string { return e.Error() }

// Suggestion implements UserVisibleError.
func (e *TemplateError) Suggestion() string {
	if e.Name != "" {
		return fmt.Sprintf("add %q to the workflow parameters or pass --set %s=<value>", e.Name, e.Name)
	}
	return ""
}

// ExecutionError represents an external code that exited abnormally or
// produced no usable output.
type ExecutionError struct {
	// Plugin is the adapter that ran the code (e.g. "moose")
	Plugin string

	// Command is the argv that was executed
	Command []string

	// ExitCode is the process exit status, or -1 if it never started
	ExitCode int

	// Stderr holds the tail of the process's standard error
	Stderr string

	// Cause is the underlying error from os/exec
	Cause error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("%s execution failed", e.Plugin)
	if len(e.Command) > 0 {
		msg = fmt.Sprintf("%s (%s)", msg, e.Command[0])
	}
	if e.ExitCode >= 0 {
		msg = fmt.Sprintf("%s: exit status %d", msg, e.ExitCode)
	} else if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Stderr != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Stderr)
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

func (e *ExecutionError) ErrorType() string { return "execution" }
func (e *ExecutionError) IsRetryable() bool { return false }

// ArchiveError represents a failure while relocating produced files into
// the archive. Permission errors, missing files and copy failures are all
// reported as ArchiveError.
type ArchiveError struct {
	// Path is the file being relocated when the failure occurred
	Path string

	// Destination is the archive directory
	Destination string

	// Cause is the underlying filesystem error
	Cause error
}

// Error implements the error interface.
func (e *ArchiveError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("archiving %s into %s: %v", e.Path, e.Destination, e.Cause)
	}
	return fmt.Sprintf("archiving into %s: %v", e.Destination, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ArchiveError) Unwrap() error {
	return e.Cause
}

func (e *ArchiveError) ErrorType() string { return "archive" }
func (e *ArchiveError) IsRetryable() bool { return true }
