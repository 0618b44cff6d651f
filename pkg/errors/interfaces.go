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

// UserVisibleError is implemented by errors that carry a message and a
// remedy suitable for printing on the command line.
type UserVisibleError interface {
	error

	// IsUserVisible returns true if this error should be shown to users.
	IsUserVisible() bool

	// UserMessage returns a short, jargon-free description.
	UserMessage() string

	// Suggestion returns an actionable remedy, or "".
	Suggestion() string
}

// ErrorClassifier lets callers branch on the failure class without
// type-switching over every concrete error.
type ErrorClassifier interface {
	error

	// ErrorType returns one of "config", "template", "execution",
	// "archive", "validation" or "not_found".
	ErrorType() string

	// IsRetryable reports whether running the same workflow again could
	// succeed without the caller changing anything.
	IsRetryable() bool
}
