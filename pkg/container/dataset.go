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
	"fmt"
	"math"

	"github.com/tombee/kiln/pkg/errors"
)

// Kind names the storage shape of a dataset.
type Kind string

const (
	KindInt     Kind = "int"
	KindFloat   Kind = "float"
	KindString  Kind = "string"
	KindBool    Kind = "bool"
	KindInts    Kind = "int[]"
	KindFloats  Kind = "float[]"
	KindStrings Kind = "string[]"
	KindBools   Kind = "bool[]"
)

// Well-known attribute names.
const (
	// AttrType records the Go type a value had before it was stored, so
	// loaders can restore it.
	AttrType = "type"
	// AttrUnit records the unit of a dimensioned value.
	AttrUnit = "unit"
)

// Dataset is a typed leaf value. Exactly one of the value fields is
// meaningful, selected by Kind.
type Dataset struct {
	Kind  Kind              `codec:"kind"`
	Attrs map[string]string `codec:"attrs,omitempty"`

	Int    int64   `codec:"i,omitempty"`
	Float  float64 `codec:"f,omitempty"`
	String string  `codec:"s,omitempty"`
	Bool   bool    `codec:"b,omitempty"`

	Ints    []int64   `codec:"is,omitempty"`
	Floats  []float64 `codec:"fs,omitempty"`
	Strings []string  `codec:"ss,omitempty"`
	Bools   []bool    `codec:"bs,omitempty"`
}

// NewDataset builds a dataset from a Go value. Integer and float kinds are
// widened to int64 and float64; unsigned values above math.MaxInt64 are
// rejected.
func NewDataset(v any) (*Dataset, error) {
	d := &Dataset{}
	switch x := v.(type) {
	case int:
		d.Kind, d.Int = KindInt, int64(x)
	case int8:
		d.Kind, d.Int = KindInt, int64(x)
	case int16:
		d.Kind, d.Int = KindInt, int64(x)
	case int32:
		d.Kind, d.Int = KindInt, int64(x)
	case int64:
		d.Kind, d.Int = KindInt, x
	case uint:
		if uint64(x) > math.MaxInt64 {
			return nil, outOfRange(x)
		}
		d.Kind, d.Int = KindInt, int64(x)
	case uint8:
		d.Kind, d.Int = KindInt, int64(x)
	case uint16:
		d.Kind, d.Int = KindInt, int64(x)
	case uint32:
		d.Kind, d.Int = KindInt, int64(x)
	case float32:
		d.Kind, d.Float = KindFloat, float64(x)
	case float64:
		d.Kind, d.Float = KindFloat, x
	case string:
		d.Kind, d.String = KindString, x
	case bool:
		d.Kind, d.Bool = KindBool, x
	case []int:
		d.Kind = KindInts
		d.Ints = make([]int64, len(x))
		for i, n := range x {
			d.Ints[i] = int64(n)
		}
	case []int64:
		d.Kind, d.Ints = KindInts, append([]int64{}, x...)
	case []float64:
		d.Kind, d.Floats = KindFloats, append([]float64{}, x...)
	case []string:
		d.Kind, d.Strings = KindStrings, append([]string{}, x...)
	case []bool:
		d.Kind, d.Bools = KindBools, append([]bool{}, x...)
	default:
		return nil, &errors.ValidationError{
			Message: fmt.Sprintf("cannot store value of type %T", v),
		}
	}
	return d, nil
}

func outOfRange(v any) error {
	return &errors.ValidationError{
		Message: fmt.Sprintf("integer %v of type %T does not fit in int64", v, v),
	}
}

// Value returns the stored value as int64, float64, string, bool or a
// slice of one of those.
func (d *Dataset) Value() any {
	switch d.Kind {
	case KindInt:
		return d.Int
	case KindFloat:
		return d.Float
	case KindString:
		return d.String
	case KindBool:
		return d.Bool
	case KindInts:
		return nonNil(d.Ints)
	case KindFloats:
		return nonNil(d.Floats)
	case KindStrings:
		return nonNil(d.Strings)
	case KindBools:
		return nonNil(d.Bools)
	}
	return nil
}

// Attr returns an attribute value or "".
func (d *Dataset) Attr(name string) string {
	return d.Attrs[name]
}

// SetAttr sets an attribute.
func (d *Dataset) SetAttr(name, value string) {
	if d.Attrs == nil {
		d.Attrs = make(map[string]string)
	}
	d.Attrs[name] = value
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
