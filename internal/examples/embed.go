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


// Package examples embeds ready-to-run workflow directories: a
// definition plus the templates it renders.
package examples

import (
	"embed"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/tombee/kiln/pkg/errors"
	"github.com/tombee/kiln/pkg/workflow"
)

//go:embed workflows
var embeddedFS embed.FS

const (
	root = "workflows"

	// DefinitionFile is the definition inside each example directory.
	DefinitionFile = "workflow.yaml"
)

// Example represents metadata about an embedded example workflow
type Example struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Plugin      string   `json:"plugin"`
	Files       []string `json:"files"`
}

// List returns all available embedded examples sorted by name.
func List() ([]Example, error) {
	entries, err := embeddedFS.ReadDir(root)
	if err != nil {
		return nil, errors.Wrap(err, "reading embedded examples")
	}

	var out []Example
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		ex, err := load(entry.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Names returns the example names.
func Names() []string {
	list, err := List()
	if err != nil {
		return nil
	}
	names := make([]string, len(list))
	for i, ex := range list {
		names[i] = ex.Name
	}
	return names
}

// Lookup returns the metadata of one example.
func Lookup(name string) (Example, error) {
	if !Exists(name) {
		return Example{}, &errors.NotFoundError{Resource: "example", ID: name}
	}
	return load(name)
}

func load(name string) (Example, error) {
	dir := path.Join(root, name)
	data, err := embeddedFS.ReadFile(path.Join(dir, DefinitionFile))
	if err != nil {
		return Example{}, errors.Wrapf(err, "example %q", name)
	}
	def, err := workflow.ParseDefinition(data)
	if err != nil {
		return Example{}, errors.Wrapf(err, "example %q", name)
	}

	entries, err := embeddedFS.ReadDir(dir)
	if err != nil {
		return Example{}, errors.Wrapf(err, "example %q", name)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, e.Name())
		}
	}
	return Example{
		Name:        name,
		Description: def.Description,
		Plugin:      def.Plugin,
		Files:       files,
	}, nil
}

// Get returns the content of one file of an example. An empty file name
// selects the definition.
func Get(name, file string) ([]byte, error) {
	if file == "" {
		file = DefinitionFile
	}
	if !Exists(name) || path.Base(file) != file {
		return nil, &errors.NotFoundError{Resource: "example file", ID: path.Join(name, file)}
	}
	content, err := embeddedFS.ReadFile(path.Join(root, name, file))
	if err != nil {
		return nil, &errors.NotFoundError{Resource: "example file", ID: path.Join(name, file)}
	}
	return content, nil
}

// Exists checks if an example with the given name exists
func Exists(name string) bool {
	if name == "" || path.Base(name) != name {
		return false
	}
	info, err := fs.Stat(embeddedFS, path.Join(root, name))
	return err == nil && info.IsDir()
}

// CopyTo writes the files of an example into destDir, creating it. Files
// that already exist are left alone unless overwrite is set. It returns
// the path of the copied definition.
func CopyTo(name, destDir string, overwrite bool) (string, error) {
	ex, err := Lookup(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", errors.Wrap(err, "creating destination directory")
	}

	for _, f := range ex.Files {
		dst := filepath.Join(destDir, f)
		if !overwrite {
			if _, err := os.Stat(dst); err == nil {
				return "", &errors.ValidationError{
					Field:      "destination",
					Message:    dst + " already exists",
					Suggestion: "choose another directory or pass --force",
				}
			}
		}
	}
	for _, f := range ex.Files {
		content, err := Get(name, f)
		if err != nil {
			return "", err
		}
		if err := os.WriteFile(filepath.Join(destDir, f), content, 0o644); err != nil {
			return "", errors.Wrap(err, "writing example file")
		}
	}
	return filepath.Join(destDir, DefinitionFile), nil
}
