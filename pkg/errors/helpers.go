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

// Package errors provides the error taxonomy shared by the workflow core,
// the archive and the simulation-code adapters.
//
// The taxonomy mirrors the failure classes a caller of a workflow needs to
// tell apart:
//
//   - ConfigError: an adapter cannot start (missing executable, bad settings)
//   - TemplateError: a template references a parameter that is not defined
//   - ExecutionError: the external code exited abnormally
//   - ArchiveError: produced files could not be moved into the archive
//
// The helpers below are thin wrappers over the standard library so that
// callers only need a single errors import.
package errors

import (
	"errors"
	"fmt"
)

// Wrap annotates err with a message. Returns nil when err is nil.
//
//	if err := os.Mkdir(dir, 0o755); err != nil {
//	    return errors.Wrap(err, "creating archive root")
//	}
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf annotates err with a formatted message. Returns nil when err is nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
//
//	var tmplErr *errors.TemplateError
//	if errors.As(err, &tmplErr) {
//	    fmt.Println("missing parameter:", tmplErr.Name)
//	}
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Unwrap returns the next error in err's chain, or nil.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// New creates an error with the given message.
func New(message string) error {
	return errors.New(message)
}

// Join combines errors, discarding nils.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
