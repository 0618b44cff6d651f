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

// Package template renders simulation input files from parameters.
//
// A template is plain text with {{ expression }} placeholders. Each
// expression is compiled with expr-lang against the parameter values, so
// placeholders may do arithmetic ({{ radius * 2 }}), call builtins
// ({{ upper(name) }}) or read quantity fields ({{ power.Value }}).
// Referencing a name that is not a parameter is an error.
package template

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"

	"github.com/tombee/kiln/pkg/errors"
)

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// span locates one placeholder: text[start:end] is the whole "{{ ... }}"
// and body is the expression between the delimiters.
type span struct {
	start, end int
	body       string
}

// scan finds every placeholder in text. Braces and string literals inside
// an expression are skipped, so maps and predicates may contain "}".
func scan(name, text string) ([]span, error) {
	var spans []span
	for offset := 0; ; {
		i := strings.Index(text[offset:], openDelim)
		if i < 0 {
			return spans, nil
		}
		start := offset + i
		end, ok := closing(text, start+len(openDelim))
		if !ok {
			line := strings.Count(text[:start], "\n") + 1
			return nil, &errors.TemplateError{
				Template: name,
				Cause:    fmt.Errorf("unterminated %q on line %d", openDelim, line),
			}
		}
		spans = append(spans, span{
			start: start,
			end:   end + len(closeDelim),
			body:  strings.TrimSpace(text[start+len(openDelim) : end]),
		})
		offset = end + len(closeDelim)
	}
}

// closing returns the index of the "}}" that ends the expression starting
// at from.
func closing(text string, from int) (int, bool) {
	depth := 0
	var quote byte
	for i := from; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			switch {
			case c == '\\' && quote != '`':
				i++
			case c == quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '{':
			depth++
		case '}':
			if depth == 0 {
				if strings.HasPrefix(text[i:], closeDelim) {
					return i, true
				}
				return 0, false
			}
			depth--
		}
	}
	return 0, false
}

// Render substitutes every placeholder in text. name identifies the
// template in errors. On failure the returned error is a
// *errors.TemplateError.
func Render(name, text string, vars map[string]any) (string, error) {
	spans, err := scan(name, text)
	if err != nil {
		return "", err
	}
	env := make(map[string]any, len(vars))
	for k, v := range vars {
		env[k] = v
	}

	var b strings.Builder
	last := 0
	for _, s := range spans {
		value, err := evaluate(name, s.body, env)
		if err != nil {
			return "", err
		}
		b.WriteString(text[last:s.start])
		b.WriteString(format(value))
		last = s.end
	}
	b.WriteString(text[last:])
	return b.String(), nil
}

// RenderFile renders the template at src and writes the result to dst.
// Nothing is written when rendering fails.
func RenderFile(src, dst string, vars map[string]any) error {
	text, err := os.ReadFile(src)
	if err != nil {
		return &errors.ConfigError{Key: "template", Reason: fmt.Sprintf("cannot read %s", src), Cause: err}
	}
	out, err := Render(filepath.Base(src), string(text), vars)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, []byte(out), 0o644); err != nil {
		return errors.Wrapf(err, "writing rendered template %s", dst)
	}
	return nil
}

// References returns the parameter names used by text, in first-use
// order. Names bound inside expressions (let, predicates) and called
// functions are excluded.
func References(text string) ([]string, error) {
	spans, err := scan("", text)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var names []string
	for _, s := range spans {
		tree, err := parser.Parse(s.body)
		if err != nil {
			return nil, &errors.TemplateError{Cause: err}
		}
		for _, id := range freeIdentifiers(tree) {
			if !seen[id] {
				seen[id] = true
				names = append(names, id)
			}
		}
	}
	return names, nil
}

// evaluate compiles source against env. Every free name must be a
// parameter; a bare builtin name such as max or now is not enough.
func evaluate(name, source string, env map[string]any) (any, error) {
	tree, err := parser.Parse(source)
	if err != nil {
		return nil, &errors.TemplateError{Template: name, Cause: err}
	}
	for _, id := range freeIdentifiers(tree) {
		if _, ok := env[id]; !ok {
			return nil, &errors.TemplateError{Template: name, Name: id}
		}
	}
	program, err := expr.Compile(source, expr.Env(env))
	if err != nil {
		return nil, &errors.TemplateError{Template: name, Cause: err}
	}
	value, err := expr.Run(program, env)
	if err != nil {
		return nil, &errors.TemplateError{Template: name, Cause: err}
	}
	return value, nil
}

// scope records names that are not parameter references: let bindings
// and the callees of function calls.
type scope struct {
	bound   map[string]bool
	callees map[ast.Node]bool
}

func (s *scope) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.VariableDeclaratorNode:
		s.bound[n.Name] = true
	case *ast.CallNode:
		s.callees[n.Callee] = true
	}
}

type identCollector struct {
	scope *scope
	names []string
}

func (c *identCollector) Visit(node *ast.Node) {
	n, ok := (*node).(*ast.IdentifierNode)
	if !ok || c.scope.bound[n.Value] || c.scope.callees[*node] {
		return
	}
	c.names = append(c.names, n.Value)
}

func freeIdentifiers(tree *parser.Tree) []string {
	s := &scope{bound: map[string]bool{}, callees: map[ast.Node]bool{}}
	ast.Walk(&tree.Node, s)
	c := &identCollector{scope: s}
	ast.Walk(&tree.Node, c)
	return c.names
}

func format(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case []float64:
		return joinFormatted(len(x), func(i int) any { return x[i] })
	case []int64:
		return joinFormatted(len(x), func(i int) any { return x[i] })
	case []string:
		return strings.Join(x, " ")
	case []any:
		return joinFormatted(len(x), func(i int) any { return x[i] })
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

// Lists render space separated, the array syntax most input decks use.
func joinFormatted(n int, at func(int) any) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = format(at(i))
	}
	return strings.Join(parts, " ")
}
