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

// Package results records what one workflow execution consumed and
// produced, and moves those files into the archive.
package results

import (
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/tombee/kiln/pkg/container"
	"github.com/tombee/kiln/pkg/errors"
	"github.com/tombee/kiln/pkg/params"
)

// Results is the record of one workflow execution. Inputs and Outputs
// are file names relative to BasePath, in the order the adapter reported
// them. Only Relocate changes BasePath after construction.
type Results struct {
	// Kind names the adapter that produced the results ("MOOSE", "OpenMC").
	Kind string

	// Name is the workflow name requested by the caller.
	Name string

	// Time is when execution started.
	Time time.Time

	// Parameters is a snapshot of the parameters the inputs were built from.
	Parameters *params.Parameters

	Inputs  []string
	Outputs []string

	// BasePath is the directory holding Inputs and Outputs.
	BasePath string

	// LogFile names the output holding the code's captured stdout, if any.
	LogFile string

	// Payload holds adapter-specific values parsed from the outputs.
	Payload container.Mapping
}

// New builds a Results. The parameters are cloned so later changes by the
// caller do not leak into the record.
func New(kind, name string, started time.Time, p *params.Parameters, base string, inputs, outputs []string) *Results {
	snapshot := params.New()
	if p != nil {
		snapshot = p.Clone()
	}
	return &Results{
		Kind:       kind,
		Name:       name,
		Time:       started,
		Parameters: snapshot,
		Inputs:     append([]string{}, inputs...),
		Outputs:    append([]string{}, outputs...),
		BasePath:   base,
		Payload:    container.Mapping{},
	}
}

// InputPaths returns absolute paths of the input files.
func (r *Results) InputPaths() []string {
	return r.join(r.Inputs)
}

// OutputPaths returns absolute paths of the output files.
func (r *Results) OutputPaths() []string {
	return r.join(r.Outputs)
}

func (r *Results) join(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = filepath.Join(r.BasePath, n)
	}
	return out
}

// Stdout returns the captured standard output of the code.
func (r *Results) Stdout() (string, error) {
	if r.LogFile == "" {
		return "", &errors.NotFoundError{Resource: "log file", ID: r.Kind}
	}
	b, err := os.ReadFile(filepath.Join(r.BasePath, r.LogFile))
	if err != nil {
		return "", errors.Wrap(err, "reading log")
	}
	return string(b), nil
}

// Relocate moves every input and output file into dest and points
// BasePath at it. dest must already exist. Files are renamed when
// possible and copied otherwise. Any failure is an *errors.ArchiveError
// naming the file, and leaves BasePath unchanged.
func (r *Results) Relocate(dest string) error {
	moved := make(map[string]bool, len(r.Inputs)+len(r.Outputs))
	for _, list := range [][]string{r.Inputs, r.Outputs} {
		for _, name := range list {
			if moved[name] {
				continue
			}
			if err := move(filepath.Join(r.BasePath, name), filepath.Join(dest, name)); err != nil {
				return &errors.ArchiveError{Path: name, Destination: dest, Cause: err}
			}
			moved[name] = true
		}
	}
	r.BasePath = dest
	return nil
}

func move(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	err = os.Rename(src, dst)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}

	if info.IsDir() {
		err = copyTree(src, dst)
	} else {
		err = copyFile(src, dst, info.Mode())
	}
	if err != nil {
		return err
	}
	return os.RemoveAll(src)
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode.Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(path, target, info.Mode())
	})
}
