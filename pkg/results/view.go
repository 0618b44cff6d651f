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
	"time"

	"github.com/tombee/kiln/pkg/params"
)

// View is the JSON shape of a result used by the CLI.
type View struct {
	Kind       string         `json:"kind"`
	Name       string         `json:"name"`
	Time       time.Time      `json:"time"`
	BasePath   string         `json:"base_path"`
	LogFile    string         `json:"log_file,omitempty"`
	Inputs     []string       `json:"inputs"`
	Outputs    []string       `json:"outputs"`
	Parameters map[string]any `json:"parameters"`
	Payload    map[string]any `json:"payload"`
}

// View returns a JSON-friendly copy of r.
func (r *Results) View() View {
	v := View{
		Kind:       r.Kind,
		Name:       r.Name,
		Time:       r.Time,
		BasePath:   r.BasePath,
		LogFile:    r.LogFile,
		Inputs:     append([]string{}, r.Inputs...),
		Outputs:    append([]string{}, r.Outputs...),
		Parameters: map[string]any{},
		Payload:    map[string]any{},
	}
	if r.Parameters != nil {
		for _, k := range r.Parameters.Keys() {
			val, _ := r.Parameters.Get(k)
			if q, ok := val.(params.Quantity); ok {
				val = map[string]any{"value": q.Value, "unit": q.Unit}
			}
			v.Parameters[k] = val
		}
	}
	for k, val := range r.Payload {
		v.Payload[k] = val
	}
	return v
}
