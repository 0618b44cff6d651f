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

/*
Package cli provides the root command and shared configuration for kiln's CLI.

Individual commands are implemented in the internal/commands subpackages.

# Command Tree

	kiln
	├── run           Run a workflow definition
	├── validate      Check workflow definitions
	├── render        Render a template with parameters
	├── params        Show a definition's parameters
	├── examples      Browse and copy embedded example workflows
	│   ├── list
	│   ├── show
	│   └── copy
	├── results       Browse and export the archive
	│   ├── list
	│   ├── show
	│   ├── export
	│   └── inspect
	├── config        Show, locate, create or check the configuration
	├── completion    Generate shell completion scripts
	└── version       Show version

# Global Flags

	--verbose, -v    Enable verbose output
	--quiet, -q      Suppress non-error output
	--json           Output in JSON format
	--config         Path to config file

# Exit Codes

  - 0: Success
  - 1: External code or other failure
  - 2: Invalid workflow definition, parameters or template
  - 3: Configuration error
  - 4: Not found
  - 5: Archival failed
  - 130: Interrupted
*/
package cli
