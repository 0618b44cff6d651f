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

package tracing

import (
	"time"

	"github.com/tombee/kiln/internal/tracing/redact"
)

// Config holds tracing configuration.
type Config struct {
	// Enabled controls whether tracing is active.
	Enabled bool

	// ServiceName identifies this service in traces.
	ServiceName string

	// ServiceVersion is the application version.
	ServiceVersion string

	// SampleRate is the fraction of traces to sample (0.0 - 1.0).
	SampleRate float64

	// Exporters configures span destinations.
	Exporters []ExporterConfig

	// BatchTimeout is how often batched spans are flushed (default: 5s).
	BatchTimeout time.Duration

	// Redaction is applied to workflow parameter attributes.
	Redaction redact.Mode
}

// ExporterConfig defines a span export destination.
type ExporterConfig struct {
	// Type is the exporter type: "console", "otlp" or "otlp-http".
	Type string

	// Endpoint is the OTLP receiver address.
	Endpoint string

	// Headers are additional headers, e.g. for authentication.
	Headers map[string]string

	// Insecure disables TLS.
	Insecure bool

	// Path sends console output to a file instead of stdout.
	Path string

	// Timeout is the export timeout.
	Timeout time.Duration
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "kiln",
		ServiceVersion: "unknown",
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
		Redaction:      redact.ModeStandard,
	}
}
