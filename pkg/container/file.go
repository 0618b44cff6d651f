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

package container

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/ugorji/go/codec"

	"github.com/tombee/kiln/pkg/errors"
)

const (
	formatName = "kiln-container"

	// Version is the current on-disk format version.
	Version = 1
)

var cborHandle = func() *codec.CborHandle {
	h := &codec.CborHandle{}
	h.Canonical = true
	return h
}()

type envelope struct {
	Format  string `codec:"format"`
	Version int    `codec:"version"`
	Root    *Group `codec:"root"`
}

// Encode writes root to w.
func Encode(w io.Writer, root *Group) error {
	env := envelope{Format: formatName, Version: Version, Root: root}
	if err := codec.NewEncoder(w, cborHandle).Encode(&env); err != nil {
		return errors.Wrap(err, "encoding container")
	}
	return nil
}

// Decode reads a tree written by Encode.
func Decode(r io.Reader) (*Group, error) {
	var env envelope
	if err := codec.NewDecoder(r, cborHandle).Decode(&env); err != nil {
		return nil, errors.Wrap(err, "decoding container")
	}
	if env.Format != formatName {
		return nil, &errors.ValidationError{Message: fmt.Sprintf("not a container file (format %q)", env.Format)}
	}
	if env.Version > Version {
		return nil, &errors.ValidationError{
			Message:    fmt.Sprintf("container version %d is newer than supported version %d", env.Version, Version),
			Suggestion: "upgrade kiln",
		}
	}
	if env.Root == nil {
		env.Root = NewGroup()
	}
	return env.Root, nil
}

// WriteFile encodes root into path, replacing any existing file.
func WriteFile(path string, root *Group) error {
	var buf bytes.Buffer
	if err := Encode(&buf, root); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}

// ReadFile decodes the tree stored at path.
func ReadFile(path string) (*Group, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()
	return Decode(f)
}
