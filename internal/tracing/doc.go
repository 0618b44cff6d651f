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

/*
Package tracing installs the OpenTelemetry tracer provider that workflow
runs report spans to.

Tracing is off unless the configuration enables it:

	tracing:
	  enabled: true
	  sample_rate: 0.5
	  redaction: standard
	  exporters:
	    - type: otlp
	      endpoint: localhost:4317
	      insecure: true
	    - type: console
	      path: /var/log/kiln/spans.json

Each workflow run is one span named "workflow: <name>" carrying the run
ID, the adapter kind and every parameter under ParamAttributePrefix.
Parameters whose key or value looks like a credential are replaced by
the redact package before any exporter sees them.

The W3C trace context of a run is exported to the simulation code as
TRACEPARENT, so codes that understand it can attach their own spans.
*/
package tracing
