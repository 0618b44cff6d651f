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
	"sort"

	"github.com/tombee/kiln/pkg/errors"
)

// Mapping is a nested string-keyed value tree, the shape adapters use for
// their result payloads.
type Mapping map[string]any

const typeMapping = "dict"

// SaveMapping writes m into g. Nested maps become subgroups; every other
// value becomes a dataset whose "type" attribute records the original Go
// type. Keys are written in sorted order.
func SaveMapping(g *Group, m Mapping) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := m[key]
		if nested, ok := asMapping(value); ok {
			child, err := g.CreateGroup(key)
			if err != nil {
				return err
			}
			child.SetAttr(AttrType, typeMapping)
			if err := SaveMapping(child, nested); err != nil {
				return errors.Wrapf(err, "saving %q", key)
			}
			continue
		}
		d, err := g.CreateDataset(key, value)
		if err != nil {
			return err
		}
		d.SetAttr(AttrType, fmt.Sprintf("%T", value))
	}
	return nil
}

// LoadMapping reads g back into a Mapping, restoring the Go types
// recorded by SaveMapping where they differ from the stored kind.
func LoadMapping(g *Group) Mapping {
	m := make(Mapping, len(g.Order))
	for _, key := range g.Order {
		if child, ok := g.Groups[key]; ok {
			m[key] = LoadMapping(child)
			continue
		}
		d := g.Datasets[key]
		m[key] = restore(d.Attr(AttrType), d.Value())
	}
	return m
}

func asMapping(v any) (Mapping, bool) {
	switch x := v.(type) {
	case Mapping:
		return x, true
	case map[string]any:
		return Mapping(x), true
	}
	return nil, false
}

func restore(typ string, v any) any {
	if n, ok := v.(int64); ok {
		switch typ {
		case "int":
			return int(n)
		case "int8":
			return int8(n)
		case "int16":
			return int16(n)
		case "int32":
			return int32(n)
		case "uint":
			return uint(n)
		case "uint8":
			return uint8(n)
		case "uint16":
			return uint16(n)
		case "uint32":
			return uint32(n)
		}
		return v
	}
	switch typ {
	case "float32":
		if f, ok := v.(float64); ok {
			return float32(f)
		}
	case "[]int":
		if ns, ok := v.([]int64); ok {
			out := make([]int, len(ns))
			for i, n := range ns {
				out[i] = int(n)
			}
			return out
		}
	}
	return v
}

// MappingFrom converts a decoded YAML or JSON tree into a Mapping that
// SaveMapping accepts. Lists must be homogeneous; a list mixing integers
// and floats becomes []float64. Null values are dropped.
func MappingFrom(tree map[string]any) (Mapping, error) {
	m := make(Mapping, len(tree))
	for k, v := range tree {
		if v == nil {
			continue
		}
		conv, err := fromAny(v)
		if err != nil {
			return nil, errors.Wrapf(err, "key %q", k)
		}
		m[k] = conv
	}
	return m, nil
}

func fromAny(v any) (any, error) {
	switch x := v.(type) {
	case map[string]any:
		return MappingFrom(x)
	case Mapping:
		return MappingFrom(x)
	case []any:
		return listFrom(x)
	case int:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return nil, outOfRange(x)
		}
		return int64(x), nil
	}
	if _, err := NewDataset(v); err != nil {
		return nil, err
	}
	return v, nil
}

func listFrom(items []any) (any, error) {
	if len(items) == 0 {
		return []float64{}, nil
	}
	var ints, floats, strs, bools int
	for _, it := range items {
		switch x := it.(type) {
		case uint64:
			if x > math.MaxInt64 {
				return nil, outOfRange(x)
			}
			ints++
		case int, int64:
			ints++
		case float64:
			floats++
		case string:
			strs++
		case bool:
			bools++
		default:
			return nil, &errors.ValidationError{Message: fmt.Sprintf("unsupported list element %T", it)}
		}
	}
	n := len(items)
	switch {
	case ints == n:
		out := make([]int64, n)
		for i, it := range items {
			out[i] = toInt64(it)
		}
		return out, nil
	case ints+floats == n:
		out := make([]float64, n)
		for i, it := range items {
			if f, ok := it.(float64); ok {
				out[i] = f
			} else {
				out[i] = float64(toInt64(it))
			}
		}
		return out, nil
	case strs == n:
		out := make([]string, n)
		for i, it := range items {
			out[i] = it.(string)
		}
		return out, nil
	case bools == n:
		out := make([]bool, n)
		for i, it := range items {
			out[i] = it.(bool)
		}
		return out, nil
	}
	return nil, &errors.ValidationError{Message: "list mixes incompatible element types"}
}

func toInt64(v any) int64 {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int64:
		return x
	case uint64:
		return int64(x)
	}
	return 0
}
