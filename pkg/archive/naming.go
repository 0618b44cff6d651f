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

package archive

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/tombee/kiln/pkg/errors"
)

// UniqueName returns requested if it is not in existing, otherwise the
// first of requested_1, requested_2, ... that is not. existing need not be
// sorted; it is not modified.
func UniqueName(requested string, existing []string) string {
	set := append([]string{}, existing...)
	sort.Strings(set)
	taken := func(name string) bool {
		i := sort.SearchStrings(set, name)
		return i < len(set) && set[i] == name
	}

	if !taken(requested) {
		return requested
	}
	for i := 1; ; i++ {
		candidate := requested + "_" + strconv.Itoa(i)
		if !taken(candidate) {
			return candidate
		}
	}
}

// ValidateName checks that name can be used as a single directory name
// inside the archive.
func ValidateName(name string) error {
	switch {
	case name == "":
		return &errors.ValidationError{Field: "name", Message: "workflow name must not be empty"}
	case name == "." || name == "..":
		return &errors.ValidationError{Field: "name", Message: fmt.Sprintf("%q is not a valid workflow name", name)}
	case strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0):
		return &errors.ValidationError{
			Field:      "name",
			Message:    fmt.Sprintf("workflow name %q contains a path separator", name),
			Suggestion: "use a plain name such as \"Workflow\"",
		}
	}
	return nil
}
