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

package params

import (
	"fmt"
	"time"

	"github.com/tombee/kiln/pkg/container"
	"github.com/tombee/kiln/pkg/errors"
)

const (
	attrUser     = "user"
	attrTime     = "time"
	typeQuantity = "Quantity"
)

// Save writes every parameter as a dataset of g, in insertion order.
// Each dataset carries user and time attributes; quantities also carry
// their unit.
func (p *Parameters) Save(g *container.Group) error {
	for _, key := range p.keys {
		value := p.values[key]

		var (
			d   *container.Dataset
			err error
		)
		if q, ok := value.(Quantity); ok {
			d, err = g.CreateDataset(key, q.Value)
			if err == nil {
				d.SetAttr(container.AttrType, typeQuantity)
				d.SetAttr(container.AttrUnit, q.Unit)
			}
		} else {
			d, err = g.CreateDataset(key, value)
			if err == nil {
				d.SetAttr(container.AttrType, fmt.Sprintf("%T", value))
			}
		}
		if err != nil {
			return errors.Wrapf(err, "saving parameter %q", key)
		}

		md := p.meta[key]
		d.SetAttr(attrUser, md.User)
		d.SetAttr(attrTime, md.Time.Format(time.RFC3339Nano))
	}
	return nil
}

// Load reads parameters written by Save into p, in stored order.
func (p *Parameters) Load(g *container.Group) error {
	for _, key := range g.Keys() {
		d, ok := g.Dataset(key)
		if !ok {
			return &errors.ValidationError{Field: key, Message: "parameter is a group, expected a dataset"}
		}

		value := d.Value()
		if d.Attr(container.AttrType) == typeQuantity {
			f, ok := value.(float64)
			if !ok {
				return &errors.ValidationError{Field: key, Message: fmt.Sprintf("quantity holds %T", value)}
			}
			value = Quantity{Value: f, Unit: d.Attr(container.AttrUnit)}
		}

		var md Metadata
		md.User = d.Attr(attrUser)
		if ts := d.Attr(attrTime); ts != "" {
			t, err := time.Parse(time.RFC3339Nano, ts)
			if err != nil {
				return errors.Wrapf(err, "parameter %q: bad time attribute", key)
			}
			md.Time = t
		}
		if err := p.SetWithMetadata(key, value, md); err != nil {
			return err
		}
	}
	return nil
}

// LoadGroup returns a new parameter set read from g.
func LoadGroup(g *container.Group) (*Parameters, error) {
	p := New()
	if err := p.Load(g); err != nil {
		return nil, err
	}
	return p, nil
}
