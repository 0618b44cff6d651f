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


// Package schemas generates the JSON Schema of workflow definitions, for
// editors that validate YAML against a schema.
package schemas

import (
	"encoding/json"
	"reflect"

	"github.com/invopop/jsonschema"

	"github.com/tombee/kiln/pkg/workflow"
)

// WorkflowSchemaID identifies the workflow definition schema.
const WorkflowSchemaID = "https://github.com/tombee/kiln/schemas/workflow.schema.json"

// Workflow reflects the workflow definition schema from
// workflow.Definition, so the two cannot drift apart.
func Workflow() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == reflect.TypeOf(workflow.ParameterList{}) {
				return parametersSchema()
			}
			return nil
		},
	}
	s := r.Reflect(&workflow.Definition{})
	s.ID = WorkflowSchemaID
	s.Title = "kiln workflow definition"
	s.Description = "A simulation code adapter, the templates it renders and the parameters to render them with."
	return s
}

// WorkflowJSON returns the indented workflow schema.
func WorkflowJSON() ([]byte, error) {
	return json.MarshalIndent(Workflow(), "", "  ")
}

// parametersSchema describes the parameters block: a mapping of names to
// scalars, lists or {value, unit} quantities.
func parametersSchema() *jsonschema.Schema {
	props := jsonschema.NewProperties()
	props.Set("value", &jsonschema.Schema{Type: "number"})
	props.Set("unit", &jsonschema.Schema{Type: "string", Examples: []any{"cm", "degC", "W/m^2"}})
	quantity := &jsonschema.Schema{
		Type:                 "object",
		Properties:           props,
		Required:             []string{"value", "unit"},
		AdditionalProperties: jsonschema.FalseSchema,
	}

	return &jsonschema.Schema{
		Type:        "object",
		Description: "Parameters in render order. Values are scalars, lists or quantities.",
		AdditionalProperties: &jsonschema.Schema{
			AnyOf: []*jsonschema.Schema{
				{Type: "string"},
				{Type: "number"},
				{Type: "boolean"},
				{Type: "array"},
				quantity,
			},
		},
	}
}
