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

// Package params holds the ordered, unit-aware parameter set shared by
// the adapters of a workflow.
package params

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/user"
	"time"

	"github.com/tombee/kiln/pkg/errors"
)

// Metadata records who set a parameter and when.
type Metadata struct {
	User string
	Time time.Time
}

// Parameters is an ordered key/value set. Values are int64, float64,
// string, bool, Quantity, or []int64, []float64, []string. Insertion order
// is kept for display only.
//
// A Parameters value is not safe for concurrent mutation.
type Parameters struct {
	keys   []string
	values map[string]any
	meta   map[string]Metadata

	// WarnDuplicates logs a warning when an existing key is set again.
	WarnDuplicates bool

	// Logger receives duplicate-key warnings. Defaults to slog.Default().
	Logger *slog.Logger
}

// New returns an empty parameter set.
func New() *Parameters {
	return &Parameters{
		values: make(map[string]any),
		meta:   make(map[string]Metadata),
	}
}

// FromMap builds a parameter set from m, setting keys in the order given
// by keys. Keys of m not listed in keys are ignored.
func FromMap(keys []string, m map[string]any) (*Parameters, error) {
	p := New()
	for _, k := range keys {
		if err := p.Set(k, m[k]); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Set stores value under key, recording the current user and time.
func (p *Parameters) Set(key string, value any) error {
	return p.SetWithMetadata(key, value, Metadata{})
}

// SetWithMetadata stores value under key with explicit metadata. Zero
// fields of md are filled with the current user and time.
func (p *Parameters) SetWithMetadata(key string, value any, md Metadata) error {
	if key == "" {
		return &errors.ValidationError{Message: "parameter key must not be empty"}
	}
	v, err := normalize(value)
	if err != nil {
		return errors.Wrapf(err, "parameter %q", key)
	}
	if md.User == "" {
		md.User = currentUser()
	}
	if md.Time.IsZero() {
		md.Time = time.Now()
	}

	if _, exists := p.values[key]; exists {
		if p.WarnDuplicates {
			p.logger().Warn("parameter has already been added", "key", key)
		}
	} else {
		p.keys = append(p.keys, key)
	}
	p.values[key] = v
	p.meta[key] = md
	return nil
}

// Get returns the value stored under key.
func (p *Parameters) Get(key string) (any, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Has reports whether key is set.
func (p *Parameters) Has(key string) bool {
	_, ok := p.values[key]
	return ok
}

// Delete removes key. Deleting an absent key is a no-op.
func (p *Parameters) Delete(key string) {
	if _, ok := p.values[key]; !ok {
		return
	}
	delete(p.values, key)
	delete(p.meta, key)
	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i:i], p.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (p *Parameters) Keys() []string {
	return append([]string{}, p.keys...)
}

// Len returns the number of parameters.
func (p *Parameters) Len() int {
	return len(p.keys)
}

// Metadata returns the metadata recorded for key.
func (p *Parameters) Metadata(key string) (Metadata, bool) {
	md, ok := p.meta[key]
	return md, ok
}

// Map returns a shallow copy of the values keyed by name.
func (p *Parameters) Map() map[string]any {
	m := make(map[string]any, len(p.values))
	for k, v := range p.values {
		m[k] = v
	}
	return m
}

// Clone returns a deep copy, metadata included.
func (p *Parameters) Clone() *Parameters {
	c := New()
	c.WarnDuplicates = p.WarnDuplicates
	c.Logger = p.Logger
	c.keys = append([]string{}, p.keys...)
	for k, v := range p.values {
		c.values[k] = cloneValue(v)
		c.meta[k] = p.meta[k]
	}
	return c
}

// Temperature scales accepted by ConvertUnits.
const (
	Kelvin     = "K"
	Celsius    = "C"
	Fahrenheit = "F"
)

// Unit systems accepted by ConvertUnits.
const (
	SI  = "si"
	CGS = "cgs"
)

// ConvertUnits returns a copy in which every Quantity is replaced by its
// magnitude in the requested unit system. Temperatures are converted to
// the requested absolute scale instead. The receiver is not modified.
func (p *Parameters) ConvertUnits(system, temperature string) (*Parameters, error) {
	if system != SI && system != CGS {
		return nil, &errors.ValidationError{
			Field:      "system",
			Message:    fmt.Sprintf("unknown unit system %q", system),
			Suggestion: "use \"si\" or \"cgs\"",
		}
	}
	tempUnit, err := temperatureUnit(temperature)
	if err != nil {
		return nil, err
	}

	out := p.Clone()
	for _, key := range out.keys {
		q, ok := out.values[key].(Quantity)
		if !ok {
			continue
		}
		u, err := ParseUnit(q.Unit)
		if err != nil {
			return nil, errors.Wrapf(err, "parameter %q", key)
		}
		switch {
		case u.IsTemperature():
			out.values[key] = tempUnit.FromSI(u.ToSI(q.Value))
		case system == CGS:
			out.values[key] = u.ToCGS(q.Value)
		default:
			out.values[key] = u.ToSI(q.Value)
		}
	}
	return out, nil
}

func temperatureUnit(scale string) (Unit, error) {
	switch scale {
	case Kelvin, Celsius, Fahrenheit, "degC", "degF":
		return ParseUnit(scale)
	}
	return Unit{}, &errors.ValidationError{
		Field:      "temperature",
		Message:    fmt.Sprintf("unknown temperature scale %q", scale),
		Suggestion: "use K, C or F",
	}
}

func (p *Parameters) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func normalize(value any) (any, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint:
		if uint64(v) > math.MaxInt64 {
			return nil, &errors.ValidationError{Message: fmt.Sprintf("integer %d overflows int64", v)}
		}
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return nil, &errors.ValidationError{Message: fmt.Sprintf("integer %d overflows int64", v)}
		}
		return int64(v), nil
	case float32:
		return float64(v), nil
	case float64, string, bool, Quantity:
		return v, nil
	case *Quantity:
		if v == nil {
			break
		}
		return *v, nil
	case []int:
		out := make([]int64, len(v))
		for i, n := range v {
			out[i] = int64(n)
		}
		return out, nil
	case []int64:
		return append([]int64{}, v...), nil
	case []float64:
		return append([]float64{}, v...), nil
	case []string:
		return append([]string{}, v...), nil
	case []any:
		return normalizeList(v)
	}
	return nil, &errors.ValidationError{Message: fmt.Sprintf("unsupported value type %T", value)}
}

// normalizeList accepts the homogeneous lists produced by YAML decoding.
func normalizeList(items []any) (any, error) {
	if len(items) == 0 {
		return []string{}, nil
	}
	switch items[0].(type) {
	case string:
		out := make([]string, len(items))
		for i, it := range items {
			s, ok := it.(string)
			if !ok {
				return nil, &errors.ValidationError{Message: "list mixes strings with other types"}
			}
			out[i] = s
		}
		return out, nil
	case int, int64:
		ints := make([]int64, 0, len(items))
		for _, it := range items {
			switch n := it.(type) {
			case int:
				ints = append(ints, int64(n))
			case int64:
				ints = append(ints, n)
			default:
				return floatList(items)
			}
		}
		return ints, nil
	case float64:
		return floatList(items)
	}
	return nil, &errors.ValidationError{Message: fmt.Sprintf("unsupported list element type %T", items[0])}
}

func floatList(items []any) ([]float64, error) {
	out := make([]float64, len(items))
	for i, it := range items {
		switch n := it.(type) {
		case int:
			out[i] = float64(n)
		case int64:
			out[i] = float64(n)
		case float64:
			out[i] = n
		default:
			return nil, &errors.ValidationError{Message: fmt.Sprintf("list mixes numbers with %T", it)}
		}
	}
	return out, nil
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case []int64:
		return append([]int64{}, x...)
	case []float64:
		return append([]float64{}, x...)
	case []string:
		return append([]string{}, x...)
	}
	return v
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "unknown"
}
