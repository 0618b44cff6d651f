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


package schemas

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowJSON(t *testing.T) {
	data, err := WorkflowJSON()
	require.NoError(t, err)

	var schema struct {
		Schema     string                     `json:"$schema"`
		ID         string                     `json:"$id"`
		Title      string                     `json:"title"`
		Required   []string                   `json:"required"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(data, &schema))

	assert.NotEmpty(t, schema.Schema)
	assert.Equal(t, WorkflowSchemaID, schema.ID)
	assert.NotEmpty(t, schema.Title)
	assert.Equal(t, []string{"plugin"}, schema.Required)
	for _, key := range []string{"name", "plugin", "template", "command", "extra_template_inputs", "convert_units", "parameters"} {
		assert.Contains(t, schema.Properties, key)
	}
	assert.Contains(t, string(schema.Properties["plugin"]), `"openmc"`)
}

func TestParametersSchemaAcceptsQuantities(t *testing.T) {
	data, err := WorkflowJSON()
	require.NoError(t, err)

	var schema struct {
		Properties struct {
			Parameters struct {
				Type                 string          `json:"type"`
				AdditionalProperties json.RawMessage `json:"additionalProperties"`
			} `json:"parameters"`
		} `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(data, &schema))
	assert.Equal(t, "object", schema.Properties.Parameters.Type)
	assert.Contains(t, string(schema.Properties.Parameters.AdditionalProperties), `"unit"`)
}
