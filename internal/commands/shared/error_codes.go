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

package shared

// Error codes for structured JSON output
const (
	// Validation errors (E001-E099)
	ErrorCodeInvalidYAML    = "E002" // Invalid YAML syntax or definition
	ErrorCodeUndefinedParam = "E005" // Template references an unknown parameter

	// Execution errors (E100-E199)
	ErrorCodeExecutionFailed = "E103" // External code failed
	ErrorCodeInterrupted     = "E104" // Run was cancelled

	// Configuration errors (E200-E299)
	ErrorCodeInvalidConfig = "E202" // Invalid configuration

	// Resource errors (E400-E499)
	ErrorCodeNotFound     = "E401" // Resource not found
	ErrorCodeArchiveError = "E404" // Results could not be archived
)

// ErrorCodeFor maps an error to its JSON error code.
func ErrorCodeFor(err error) string {
	switch ExitCodeFor(err) {
	case ExitInvalidWorkflow:
		if isTemplateError(err) {
			return ErrorCodeUndefinedParam
		}
		return ErrorCodeInvalidYAML
	case ExitConfigError:
		return ErrorCodeInvalidConfig
	case ExitNotFound:
		return ErrorCodeNotFound
	case ExitArchiveError:
		return ErrorCodeArchiveError
	case ExitInterrupted:
		return ErrorCodeInterrupted
	default:
		return ErrorCodeExecutionFailed
	}
}
