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


package shared

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Styles degrade to plain text when stdout is not a terminal or NO_COLOR
// is set; lipgloss detects both.
var (
	StatusOK    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))  // green
	StatusWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")) // orange
	StatusError = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // red

	// Muted styles labels and hints.
	Muted = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	// Header styles section headers in results show and validate.
	Header = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
)

const (
	SymbolOK    = "✓"
	SymbolWarn  = "⚠"
	SymbolError = "✗"
)

// RenderOK renders a success message with a green checkmark.
func RenderOK(msg string) string {
	return StatusOK.Render(SymbolOK) + " " + msg
}

// RenderWarn renders a warning message.
func RenderWarn(msg string) string {
	return StatusWarn.Render(SymbolWarn) + " " + msg
}

// RenderError renders an error message.
func RenderError(msg string) string {
	return StatusError.Render(SymbolError) + " " + msg
}

// RenderLabel dims a label of a key: value pair.
func RenderLabel(label string) string {
	return Muted.Render(label)
}

// RenderField renders "label: value" with the label dimmed and padded so
// that values of consecutive fields line up.
func RenderField(label string, width int, value any) string {
	return Muted.Render(fmt.Sprintf("%-*s", width+1, label+":")) + " " + fmt.Sprint(value)
}

// RenderNone is shown in place of an empty list.
func RenderNone() string {
	return Muted.Render("(none)")
}
