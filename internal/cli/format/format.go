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

// Package format renders command output for terminals: markdown through
// glamour and input decks through chroma. Without a terminal, content is
// returned unchanged.
package format

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/glamour"
)

const (
	maxMarkdownSize = 5 * 1024 * 1024 // 5MB
	maxCodeSize     = 2 * 1024 * 1024 // 2MB
)

// ansiEscapeRegex matches ANSI escape sequences for sanitization.
var ansiEscapeRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// sanitizeANSI removes ANSI escape sequences from a string.
func sanitizeANSI(s string) string {
	return ansiEscapeRegex.ReplaceAllString(s, "")
}

// enforceSize checks if content exceeds the maximum size for its format.
func enforceSize(content string, format string, maxSize int) error {
	if len(content) > maxSize {
		return fmt.Errorf("output size (%d bytes) exceeds maximum for %s format (%d bytes)", len(content), format, maxSize)
	}
	return nil
}

// FormatMarkdown renders markdown with ANSI formatting if stdout is a TTY.
// Falls back to plain text if glamour fails or stdout is not a TTY.
func FormatMarkdown(content string, isTTY bool) (string, error) {
	if err := enforceSize(content, "markdown", maxMarkdownSize); err != nil {
		return "", err
	}
	if !isTTY {
		return content, nil
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return content, nil
	}
	rendered, err := renderer.Render(sanitizeANSI(content))
	if err != nil {
		return content, nil
	}
	return rendered, nil
}

// FormatCode highlights content as language if stdout is a TTY. Unknown
// or empty languages return the content unchanged.
func FormatCode(content, language string, isTTY bool) (string, error) {
	if err := enforceSize(content, "code", maxCodeSize); err != nil {
		return "", err
	}
	if !isTTY || language == "" {
		return content, nil
	}

	var buf bytes.Buffer
	if err := quick.Highlight(&buf, sanitizeANSI(content), language, "terminal256", "monokai"); err != nil {
		return content, nil
	}
	return buf.String(), nil
}

// LanguageFor guesses the highlighting language of an input file from its
// name. MOOSE inputs use the bracketed section syntax ini highlights well.
func LanguageFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xml":
		return "xml"
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	case ".i":
		return "ini"
	case ".py":
		return "python"
	case ".csv":
		return "csv"
	}
	return ""
}
