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


// Package redact scrubs secrets from span attributes before they reach
// an exporter. Workflow parameters are attached to spans, and some of
// them (license tokens, repository credentials) must not leave the host.
package redact

import (
	"context"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Mode determines how much of an attribute value is kept.
type Mode string

const (
	// ModeNone disables redaction.
	ModeNone Mode = "none"

	// ModeStandard redacts sensitive keys and values matching Patterns.
	ModeStandard Mode = "standard"

	// ModeStrict redacts every value; only keys are kept.
	ModeStrict Mode = "strict"
)

// Redacted replaces a removed value.
const Redacted = "[REDACTED]"

// ParseMode returns the mode named s. The empty string is ModeStandard.
func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToLower(s)) {
	case "", ModeStandard:
		return ModeStandard, true
	case ModeNone:
		return ModeNone, true
	case ModeStrict:
		return ModeStrict, true
	}
	return "", false
}

// Pattern defines a redaction pattern with a name and regular expression.
type Pattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
}

// StandardPatterns returns the default set of redaction patterns.
func StandardPatterns() []Pattern {
	return []Pattern{
		{
			Name:        "api_key",
			Regex:       regexp.MustCompile(`(?i)(api[_-]?key|apikey)["\s:=]+([a-zA-Z0-9_\-]{16,})`),
			Replacement: "$1=" + Redacted,
		},
		{
			Name:        "bearer_token",
			Regex:       regexp.MustCompile(`(?i)(bearer\s+)([a-zA-Z0-9_\-\.]{20,})`),
			Replacement: "$1" + Redacted,
		},
		{
			Name:        "password",
			Regex:       regexp.MustCompile(`(?i)(password|passwd|pwd)["\s:=]+([^\s"]+)`),
			Replacement: "$1=" + Redacted,
		},
		{
			Name:        "url_credentials",
			Regex:       regexp.MustCompile(`([a-z][a-z0-9+.\-]*://)[^/\s:@]+:[^/\s@]+@`),
			Replacement: "$1" + Redacted + "@",
		},
		{
			Name:        "private_key",
			Regex:       regexp.MustCompile(`(?s)(-----BEGIN (RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----).*?(-----END (RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----)`),
			Replacement: "$1" + Redacted + "$3",
		},
		{
			Name:        "jwt",
			Regex:       regexp.MustCompile(`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`),
			Replacement: Redacted,
		},
		{
			Name:        "generic_secret",
			Regex:       regexp.MustCompile(`(?i)(secret|token)["\s:=]+([a-zA-Z0-9_\-]{16,})`),
			Replacement: "$1=" + Redacted,
		},
	}
}

var sensitiveKeys = []string{
	"password", "passwd", "pwd",
	"secret", "token",
	"api_key", "apikey",
	"private_key",
	"authorization", "credential",
}

// Redactor applies redaction rules to attributes under a key prefix.
type Redactor struct {
	mode     Mode
	prefix   string
	patterns []Pattern
}

// New returns a redactor for attributes whose key starts with prefix. An
// empty prefix covers every attribute.
func New(mode Mode, prefix string) *Redactor {
	return &Redactor{mode: mode, prefix: prefix, patterns: StandardPatterns()}
}

// RedactString applies the redaction patterns to s.
func (r *Redactor) RedactString(s string) string {
	switch r.mode {
	case ModeNone:
		return s
	case ModeStrict:
		return Redacted
	}
	for _, p := range r.patterns {
		s = p.Regex.ReplaceAllString(s, p.Replacement)
	}
	return s
}

// RedactAttributes returns the attributes that change, already redacted.
// Attributes outside the prefix are never returned.
func (r *Redactor) RedactAttributes(attrs []attribute.KeyValue) []attribute.KeyValue {
	if r.mode == ModeNone {
		return nil
	}

	var changed []attribute.KeyValue
	for _, attr := range attrs {
		key := string(attr.Key)
		if !strings.HasPrefix(key, r.prefix) {
			continue
		}
		if r.mode == ModeStrict || sensitiveKey(strings.TrimPrefix(key, r.prefix)) {
			changed = append(changed, attribute.String(key, Redacted))
			continue
		}
		if attr.Value.Type() != attribute.STRING {
			continue
		}
		if v := r.RedactString(attr.Value.AsString()); v != attr.Value.AsString() {
			changed = append(changed, attribute.String(key, v))
		}
	}
	return changed
}

func sensitiveKey(key string) bool {
	key = strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}

// Processor is a span processor that redacts the attributes a span was
// started with. Register it before any exporting processor.
type Processor struct {
	redactor *Redactor
}

// NewProcessor returns a processor applying r.
func NewProcessor(r *Redactor) *Processor {
	return &Processor{redactor: r}
}

// OnStart overwrites sensitive start attributes in place.
func (p *Processor) OnStart(_ context.Context, span sdktrace.ReadWriteSpan) {
	if changed := p.redactor.RedactAttributes(span.Attributes()); len(changed) > 0 {
		span.SetAttributes(changed...)
	}
}

// OnEnd implements sdktrace.SpanProcessor.
func (p *Processor) OnEnd(sdktrace.ReadOnlySpan) {}

// Shutdown implements sdktrace.SpanProcessor.
func (p *Processor) Shutdown(context.Context) error { return nil }

// ForceFlush implements sdktrace.SpanProcessor.
func (p *Processor) ForceFlush(context.Context) error { return nil }
