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
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/tombee/kiln/pkg/container"
	"github.com/tombee/kiln/pkg/errors"
	"github.com/tombee/kiln/pkg/params"
)

// Names of the children of an encoded result group.
const (
	keyTime       = "time"
	keyParameters = "parameters"
	keyInputs     = "inputs"
	keyOutputs    = "outputs"
	keyPayload    = "payload"

	attrKind     = "kind"
	attrName     = "name"
	attrBasePath = "base_path"
	attrLogFile  = "log_file"
)

// Encode writes r into g: a scalar timestamp, the parameters group, the
// ordered input and output lists and the payload group.
func (r *Results) Encode(g *container.Group) error {
	g.SetAttr(attrKind, r.Kind)
	g.SetAttr(attrName, r.Name)
	g.SetAttr(attrBasePath, r.BasePath)
	if r.LogFile != "" {
		g.SetAttr(attrLogFile, r.LogFile)
	}

	if _, err := g.CreateDataset(keyTime, r.Time.UnixNano()); err != nil {
		return err
	}
	pg, err := g.CreateGroup(keyParameters)
	if err != nil {
		return err
	}
	if r.Parameters != nil {
		if err := r.Parameters.Save(pg); err != nil {
			return err
		}
	}
	if _, err := g.CreateDataset(keyInputs, r.Inputs); err != nil {
		return err
	}
	if _, err := g.CreateDataset(keyOutputs, r.Outputs); err != nil {
		return err
	}
	payload, err := g.CreateGroup(keyPayload)
	if err != nil {
		return err
	}
	return container.SaveMapping(payload, r.Payload)
}

// Decode reads a result written by Encode.
func Decode(g *container.Group) (*Results, error) {
	r := &Results{
		Kind:     g.Attr(attrKind),
		Name:     g.Attr(attrName),
		BasePath: g.Attr(attrBasePath),
		LogFile:  g.Attr(attrLogFile),
	}

	ts, ok := g.Dataset(keyTime)
	if !ok || ts.Kind != container.KindInt {
		return nil, &errors.ValidationError{Field: keyTime, Message: "missing or malformed timestamp"}
	}
	r.Time = time.Unix(0, ts.Int)

	pg, ok := g.Group(keyParameters)
	if !ok {
		return nil, &errors.ValidationError{Field: keyParameters, Message: "missing parameters group"}
	}
	p, err := params.LoadGroup(pg)
	if err != nil {
		return nil, errors.Wrap(err, "loading parameters")
	}
	r.Parameters = p

	if r.Inputs, err = stringList(g, keyInputs); err != nil {
		return nil, err
	}
	if r.Outputs, err = stringList(g, keyOutputs); err != nil {
		return nil, err
	}

	r.Payload = container.Mapping{}
	if payload, ok := g.Group(keyPayload); ok {
		r.Payload = container.LoadMapping(payload)
	}
	return r, nil
}

func stringList(g *container.Group, key string) ([]string, error) {
	d, ok := g.Dataset(key)
	if !ok || d.Kind != container.KindStrings {
		return nil, &errors.ValidationError{Field: key, Message: "missing or malformed file list"}
	}
	return append([]string{}, d.Strings...), nil
}

// Marshal encodes a single result to bytes.
func Marshal(r *Results) ([]byte, error) {
	root := container.NewGroup()
	if err := r.Encode(root); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := container.Encode(&buf, root); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes bytes produced by Marshal.
func Unmarshal(b []byte) (*Results, error) {
	root, err := container.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	return Decode(root)
}

// Save writes one or more results to a container file. Each result is
// stored in its own group, named by position.
func Save(path string, rs ...*Results) error {
	root := container.NewGroup()
	for i, r := range rs {
		g, err := root.CreateGroup(strconv.Itoa(i))
		if err != nil {
			return err
		}
		if err := r.Encode(g); err != nil {
			return errors.Wrapf(err, "encoding result %d", i)
		}
	}
	return container.WriteFile(path, root)
}

// Load reads every result stored in a file written by Save.
func Load(path string) ([]*Results, error) {
	root, err := container.ReadFile(path)
	if err != nil {
		return nil, err
	}
	out := make([]*Results, 0, len(root.Groups))
	for _, key := range root.Keys() {
		g, ok := root.Group(key)
		if !ok {
			return nil, &errors.ValidationError{Field: key, Message: fmt.Sprintf("%s: expected a result group", path)}
		}
		r, err := Decode(g)
		if err != nil {
			return nil, errors.Wrapf(err, "result %s", key)
		}
		out = append(out, r)
	}
	return out, nil
}
