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

// Package container implements the hierarchical binary file used to
// persist results and parameters. A file holds a tree of named groups;
// leaves are typed datasets. Both carry string attributes. Children keep
// their creation order.
package container

import (
	"fmt"

	"github.com/tombee/kiln/pkg/errors"
)

// Group is an ordered collection of named datasets and subgroups.
type Group struct {
	Attrs    map[string]string   `codec:"attrs,omitempty"`
	Order    []string            `codec:"order,omitempty"`
	Datasets map[string]*Dataset `codec:"datasets,omitempty"`
	Groups   map[string]*Group   `codec:"groups,omitempty"`
}

// NewGroup returns an empty group.
func NewGroup() *Group {
	return &Group{}
}

// Keys returns child names in creation order.
func (g *Group) Keys() []string {
	return append([]string{}, g.Order...)
}

// Has reports whether a child with the given name exists.
func (g *Group) Has(name string) bool {
	_, d := g.Datasets[name]
	_, s := g.Groups[name]
	return d || s
}

// CreateGroup adds an empty subgroup. Names are unique across datasets
// and groups.
func (g *Group) CreateGroup(name string) (*Group, error) {
	if err := g.claim(name); err != nil {
		return nil, err
	}
	child := NewGroup()
	if g.Groups == nil {
		g.Groups = make(map[string]*Group)
	}
	g.Groups[name] = child
	return child, nil
}

// CreateDataset adds a dataset holding v.
func (g *Group) CreateDataset(name string, v any) (*Dataset, error) {
	d, err := NewDataset(v)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset %q", name)
	}
	if err := g.claim(name); err != nil {
		return nil, err
	}
	if g.Datasets == nil {
		g.Datasets = make(map[string]*Dataset)
	}
	g.Datasets[name] = d
	return d, nil
}

// Group returns the named subgroup.
func (g *Group) Group(name string) (*Group, bool) {
	child, ok := g.Groups[name]
	return child, ok
}

// Dataset returns the named dataset.
func (g *Group) Dataset(name string) (*Dataset, bool) {
	d, ok := g.Datasets[name]
	return d, ok
}

// Attr returns an attribute value or "".
func (g *Group) Attr(name string) string {
	return g.Attrs[name]
}

// SetAttr sets an attribute.
func (g *Group) SetAttr(name, value string) {
	if g.Attrs == nil {
		g.Attrs = make(map[string]string)
	}
	g.Attrs[name] = value
}

func (g *Group) claim(name string) error {
	if name == "" {
		return &errors.ValidationError{Message: "empty child name"}
	}
	if g.Has(name) {
		return &errors.ValidationError{Field: name, Message: fmt.Sprintf("%q already exists", name)}
	}
	g.Order = append(g.Order, name)
	return nil
}
