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

package plugin

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/tombee/kiln/pkg/errors"
	"github.com/tombee/kiln/pkg/params"
	"github.com/tombee/kiln/pkg/template"
)

// UnitSystem selects the unit normalization applied to parameters before
// templates are rendered.
type UnitSystem struct {
	// System is params.SI or params.CGS.
	System string

	// Temperature is params.Kelvin, params.Celsius or params.Fahrenheit.
	Temperature string
}

// TemplatePlugin implements Prerun for adapters whose inputs are rendered
// from a template. Adapters embed it and supply Run and Postrun.
type TemplatePlugin struct {
	// Template is the path of the primary input template.
	Template string

	// InputName is the file name the primary template renders to.
	// Default: the template's base name plus ".rendered".
	InputName string

	// ExtraInputs are copied into the sandbox verbatim. Entries may be
	// doublestar patterns; a pattern that matches nothing is an error.
	ExtraInputs []string

	// ExtraTemplateInputs are rendered with the same parameters and keep
	// their base names.
	ExtraTemplateInputs []string

	// ConvertUnits, when set, replaces quantities by plain numbers in the
	// given system before rendering.
	ConvertUnits *UnitSystem
}

// PrimaryInput returns the file name the primary template renders to.
func (t *TemplatePlugin) PrimaryInput() string {
	if t.InputName != "" {
		return t.InputName
	}
	return filepath.Base(t.Template) + ".rendered"
}

// Prerun renders the primary template, then the extra templates, then
// copies the extra inputs. Each produced file is recorded on sb.
func (t *TemplatePlugin) Prerun(ctx context.Context, sb *Sandbox, p *params.Parameters) error {
	if t.Template == "" {
		return &errors.ConfigError{Key: "template", Reason: "no template configured"}
	}

	vars, err := t.vars(p)
	if err != nil {
		return err
	}

	primary := t.PrimaryInput()
	if err := template.RenderFile(t.Template, sb.Path(primary), vars); err != nil {
		return err
	}
	sb.AddInput(primary)
	sb.Log().Debug("rendered input", "template", t.Template, "file", primary)

	for _, src := range t.ExtraTemplateInputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := filepath.Base(src)
		if err := template.RenderFile(src, sb.Path(name), vars); err != nil {
			return err
		}
		sb.AddInput(name)
	}

	return t.CopyExtraInputs(ctx, sb)
}

// CopyExtraInputs copies ExtraInputs into the sandbox under their base
// names. Adapters without a primary template call it directly.
func (t *TemplatePlugin) CopyExtraInputs(ctx context.Context, sb *Sandbox) error {
	for _, pattern := range t.ExtraInputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		matches, err := expand(pattern)
		if err != nil {
			return err
		}
		for _, src := range matches {
			name := filepath.Base(src)
			if err := copyInput(src, sb.Path(name)); err != nil {
				return errors.Wrapf(err, "copying extra input %s", src)
			}
			sb.AddInput(name)
		}
	}
	return nil
}

// InputNames returns every file Prerun wrote, in the order written.
func (t *TemplatePlugin) InputNames(sb *Sandbox) []string {
	return sb.Inputs()
}

func (t *TemplatePlugin) vars(p *params.Parameters) (map[string]any, error) {
	if p == nil {
		return map[string]any{}, nil
	}
	if t.ConvertUnits != nil {
		converted, err := p.ConvertUnits(t.ConvertUnits.System, t.ConvertUnits.Temperature)
		if err != nil {
			return nil, err
		}
		p = converted
	}
	return p.Map(), nil
}

// ClassifyOutputs lists every top-level sandbox entry not named in
// inputs, sorted by name.
func ClassifyOutputs(sb *Sandbox, inputs []string) ([]string, error) {
	entries, err := os.ReadDir(sb.Dir)
	if err != nil {
		return nil, errors.Wrap(err, "listing sandbox")
	}
	skip := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		skip[in] = true
	}
	var outputs []string
	for _, e := range entries {
		if !skip[e.Name()] {
			outputs = append(outputs, e.Name())
		}
	}
	sort.Strings(outputs)
	return outputs, nil
}

func expand(pattern string) ([]string, error) {
	if !strings.ContainsAny(pattern, "*?[{") {
		if _, err := os.Stat(pattern); err != nil {
			return nil, &errors.ConfigError{Key: "extra_inputs", Reason: fmt.Sprintf("cannot read %s", pattern), Cause: err}
		}
		return []string{pattern}, nil
	}
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, &errors.ConfigError{Key: "extra_inputs", Reason: fmt.Sprintf("invalid pattern %q", pattern), Cause: err}
	}
	if len(matches) == 0 {
		return nil, &errors.ConfigError{Key: "extra_inputs", Reason: fmt.Sprintf("pattern %q matched no files", pattern)}
	}
	sort.Strings(matches)
	return matches, nil
}

func copyInput(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
