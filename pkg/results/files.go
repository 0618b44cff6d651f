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

package results

import (
	"io/fs"
	"os"
	"path"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/tombee/kiln/pkg/errors"
)

// FilesSince returns the files under dir matching any of the glob
// patterns whose modification time is not before since, ordered by
// modification time. Patterns use doublestar syntax ("**/*.h5").
// Returned names are slash-separated and relative to dir.
func FilesSince(dir string, patterns []string, since time.Time) ([]string, error) {
	fsys := os.DirFS(dir)

	type match struct {
		name  string
		mtime time.Time
	}
	seen := make(map[string]bool)
	var matches []match

	for _, pattern := range patterns {
		names, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "bad pattern %q", pattern)
		}
		for _, name := range names {
			if seen[name] {
				continue
			}
			info, err := fs.Stat(fsys, name)
			if err != nil {
				return nil, errors.Wrapf(err, "stat %s", path.Join(dir, name))
			}
			if info.IsDir() || info.ModTime().Before(since) {
				continue
			}
			seen[name] = true
			matches = append(matches, match{name: name, mtime: info.ModTime()})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].mtime.Equal(matches[j].mtime) {
			return matches[i].name < matches[j].name
		}
		return matches[i].mtime.Before(matches[j].mtime)
	})

	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.name
	}
	return out, nil
}
