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

package params

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"gonum.org/v1/gonum/unit"

	"github.com/tombee/kiln/pkg/errors"
)

// Unit is a parsed unit expression. A value v in this unit is
// v*factor + offset in SI base units; offset is nonzero only for the
// absolute Celsius and Fahrenheit scales.
type Unit struct {
	expr   string
	factor float64
	offset float64
	dims   unit.Dimensions
}

// String returns the expression the unit was parsed from.
func (u Unit) String() string { return u.expr }

// Factor returns the multiplier to SI base units.
func (u Unit) Factor() float64 { return u.factor }

// Dimensions returns the SI dimensions of the unit.
func (u Unit) Dimensions() unit.Dimensions {
	d := make(unit.Dimensions, len(u.dims))
	for k, v := range u.dims {
		d[k] = v
	}
	return d
}

// IsTemperature reports whether the unit measures temperature alone.
func (u Unit) IsTemperature() bool {
	return len(u.dims) == 1 && u.dims[unit.TemperatureDim] == 1
}

// Compatible reports whether values in u and o can be converted into
// each other.
func (u Unit) Compatible(o Unit) bool {
	return unit.DimensionsMatch(unit.New(1, u.dims), unit.New(1, o.dims))
}

// ToSI converts a magnitude in u to SI base units.
func (u Unit) ToSI(v float64) float64 { return v*u.factor + u.offset }

// FromSI converts a magnitude in SI base units to u.
func (u Unit) FromSI(v float64) float64 { return (v - u.offset) / u.factor }

// ToCGS converts a magnitude in u to centimetre-gram-second units.
// Dimensions other than length and mass keep their SI scaling.
func (u Unit) ToCGS(v float64) float64 {
	si := u.ToSI(v)
	return si * math.Pow(100, float64(u.dims[unit.LengthDim])) * math.Pow(1000, float64(u.dims[unit.MassDim]))
}

type symbol struct {
	u      *unit.Unit
	offset float64
}

func sym(value float64, u unit.Uniter) symbol {
	s := u.Unit().Copy()
	s.SetValue(s.Value() * value)
	return symbol{u: s}
}

func dimless(value float64) symbol {
	return symbol{u: unit.New(value, unit.Dimensions{})}
}

var symbols = map[string]symbol{
	// length
	"m":  sym(1, unit.Metre),
	"km": sym(unit.Kilo, unit.Metre),
	"cm": sym(unit.Centi, unit.Metre),
	"mm": sym(unit.Milli, unit.Metre),
	"um": sym(unit.Micro, unit.Metre),
	"µm": sym(unit.Micro, unit.Metre),
	"nm": sym(unit.Nano, unit.Metre),
	"in": sym(0.0254, unit.Metre),
	"ft": sym(0.3048, unit.Metre),

	// mass
	"kg": sym(1, unit.Kilogram),
	"g":  sym(1, unit.Gram),
	"mg": sym(unit.Milli, unit.Gram),
	"t":  sym(unit.Mega, unit.Gram),
	"lb": sym(0.45359237, unit.Kilogram),

	// time
	"s":   sym(1, unit.Second),
	"ms":  sym(unit.Milli, unit.Second),
	"us":  sym(unit.Micro, unit.Second),
	"min": sym(1, unit.Minute),
	"h":   sym(1, unit.Hour),
	"hr":  sym(1, unit.Hour),
	"d":   sym(24, unit.Hour),
	"day": sym(24, unit.Hour),
	"yr":  sym(365.25*24, unit.Hour),

	// temperature
	"K":    sym(1, unit.Kelvin),
	"R":    sym(5.0/9.0, unit.Kelvin),
	"C":    {u: unit.Kelvin.Unit().Copy(), offset: 273.15},
	"degC": {u: unit.Kelvin.Unit().Copy(), offset: 273.15},
	"°C":   {u: unit.Kelvin.Unit().Copy(), offset: 273.15},
	"F":    {u: sym(5.0/9.0, unit.Kelvin).u, offset: 459.67 * 5.0 / 9.0},
	"degF": {u: sym(5.0/9.0, unit.Kelvin).u, offset: 459.67 * 5.0 / 9.0},
	"°F":   {u: sym(5.0/9.0, unit.Kelvin).u, offset: 459.67 * 5.0 / 9.0},

	// energy
	"J":    sym(1, unit.Joule),
	"kJ":   sym(unit.Kilo, unit.Joule),
	"MJ":   sym(unit.Mega, unit.Joule),
	"GJ":   sym(unit.Giga, unit.Joule),
	"erg":  sym(1e-7, unit.Joule),
	"eV":   sym(1.602176634e-19, unit.Joule),
	"keV":  sym(1.602176634e-16, unit.Joule),
	"MeV":  sym(1.602176634e-13, unit.Joule),
	"cal":  sym(4.184, unit.Joule),
	"kcal": sym(4184, unit.Joule),
	"BTU":  sym(1055.05585262, unit.Joule),

	// power
	"W":  sym(1, unit.Watt),
	"kW": sym(unit.Kilo, unit.Watt),
	"MW": sym(unit.Mega, unit.Watt),
	"GW": sym(unit.Giga, unit.Watt),

	// pressure
	"Pa":  sym(1, unit.Pascal),
	"kPa": sym(unit.Kilo, unit.Pascal),
	"MPa": sym(unit.Mega, unit.Pascal),
	"GPa": sym(unit.Giga, unit.Pascal),
	"bar": sym(1e5, unit.Pascal),
	"atm": sym(101325, unit.Pascal),
	"psi": sym(6894.757293168361, unit.Pascal),

	// force
	"N":   sym(1, unit.Newton),
	"kN":  sym(unit.Kilo, unit.Newton),
	"dyn": sym(1e-5, unit.Newton),
	"lbf": sym(4.4482216152605, unit.Newton),

	// volume, area
	"L":    sym(1, unit.Litre),
	"l":    sym(1, unit.Litre),
	"mL":   sym(unit.Milli, unit.Litre),
	"gal":  sym(3.785411784, unit.Litre),
	"barn": sym(1e-28, unit.Metre.Unit().Copy().Mul(unit.Metre)),
	"b":    sym(1e-28, unit.Metre.Unit().Copy().Mul(unit.Metre)),

	// other base and derived units
	"mol": sym(1, unit.Mol),
	"A":   sym(1, unit.Ampere),
	"cd":  sym(1, unit.Candela),
	"Hz":  sym(1, unit.Hertz),
	"rad": sym(1, unit.Rad),
	"deg": sym(math.Pi/180, unit.Rad),

	// dimensionless
	"%":       dimless(1e-2),
	"percent": dimless(1e-2),
	"ppm":     dimless(1e-6),
	"pcm":     dimless(1e-5),
}

// ParseUnit parses a unit expression such as "W/m^2", "BTU/(kg*K)" or
// "g/cm**3". Symbols are combined with '*', '/', whitespace, parentheses
// and integer powers written with '^' or '**'. The empty string is the
// dimensionless unit.
func ParseUnit(expr string) (Unit, error) {
	p := &unitParser{src: expr}
	p.tokenize()
	if p.err != nil {
		return Unit{}, p.err
	}
	if len(p.toks) == 0 {
		return Unit{expr: expr, factor: 1, dims: unit.Dimensions{}}, nil
	}

	u := p.parseExpr()
	if p.err == nil && p.pos < len(p.toks) {
		p.fail("unexpected %q", p.toks[p.pos])
	}
	if p.err != nil {
		return Unit{}, p.err
	}

	out := Unit{expr: expr, factor: u.Value(), dims: u.Dimensions()}
	// An affine scale only applies when it stands alone; inside a compound
	// unit it denotes a temperature difference.
	if len(p.toks) == 1 {
		out.offset = symbols[p.toks[0]].offset
	}
	return out, nil
}

type unitParser struct {
	src  string
	toks []string
	pos  int
	err  error
}

func (p *unitParser) fail(format string, args ...any) {
	if p.err == nil {
		p.err = &errors.ValidationError{
			Field:   "unit",
			Message: fmt.Sprintf("invalid unit %q: %s", p.src, fmt.Sprintf(format, args...)),
		}
	}
}

func (p *unitParser) tokenize() {
	s := strings.TrimSpace(p.src)
	for i := 0; i < len(s); {
		r := rune(s[i])
		switch {
		case s[i] == '*' && i+1 < len(s) && s[i+1] == '*':
			p.toks = append(p.toks, "^")
			i += 2
		case strings.ContainsRune("*/^()", r):
			p.toks = append(p.toks, string(r))
			i++
		case r == ' ' || r == '\t':
			// implicit multiplication between adjacent operands
			j := i
			for j < len(s) && (s[j] == ' ' || s[j] == '\t') {
				j++
			}
			if len(p.toks) > 0 && j < len(s) && isOperandEnd(p.toks[len(p.toks)-1]) && isOperandStart(s[j:]) {
				p.toks = append(p.toks, "*")
			}
			i = j
		case r == '-' || r == '+' || unicode.IsDigit(r):
			j := i + 1
			for j < len(s) && (unicode.IsDigit(rune(s[j])) || s[j] == '.') {
				j++
			}
			p.toks = append(p.toks, s[i:j])
			i = j
		default:
			j := i
			for j < len(s) && !strings.ContainsRune("*/^() \t", rune(s[j])) && !(j > i && (s[j] == '-' || s[j] == '+')) {
				j++
			}
			if j == i {
				p.fail("unexpected character %q", s[i])
				return
			}
			p.toks = append(p.toks, s[i:j])
			i = j
		}
	}
}

func isOperandEnd(tok string) bool {
	return tok != "*" && tok != "/" && tok != "^" && tok != "("
}

func isOperandStart(rest string) bool {
	return !strings.ContainsRune("*/^)", rune(rest[0]))
}

func (p *unitParser) peek() string {
	if p.pos < len(p.toks) {
		return p.toks[p.pos]
	}
	return ""
}

func (p *unitParser) next() string {
	tok := p.peek()
	p.pos++
	return tok
}

// expr := term (('*' | '/') term)*
func (p *unitParser) parseExpr() *unit.Unit {
	acc := p.parsePower()
	for p.err == nil {
		switch p.peek() {
		case "*":
			p.next()
			acc.Mul(p.parsePower())
		case "/":
			p.next()
			acc.Div(p.parsePower())
		default:
			return acc
		}
	}
	return acc
}

// power := factor ('^' int)?
func (p *unitParser) parsePower() *unit.Unit {
	base := p.parseFactor()
	if p.peek() != "^" {
		return base
	}
	p.next()
	tok := p.next()
	n, err := strconv.Atoi(tok)
	if err != nil {
		p.fail("exponent %q is not an integer", tok)
		return base
	}
	return pow(base, n)
}

// factor := symbol | number | '(' expr ')'
func (p *unitParser) parseFactor() *unit.Unit {
	tok := p.next()
	switch {
	case tok == "":
		p.fail("unexpected end of expression")
	case tok == "(":
		inner := p.parseExpr()
		if p.next() != ")" {
			p.fail("missing ')'")
		}
		return inner
	case unicode.IsDigit(rune(tok[0])):
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			p.fail("bad number %q", tok)
			break
		}
		return unit.New(v, unit.Dimensions{})
	default:
		s, ok := symbols[tok]
		if !ok {
			p.fail("unknown symbol %q", tok)
			break
		}
		return s.u.Copy()
	}
	return unit.New(1, unit.Dimensions{})
}

func pow(u *unit.Unit, n int) *unit.Unit {
	out := unit.New(1, unit.Dimensions{})
	for i := 0; i < n; i++ {
		out.Mul(u)
	}
	for i := 0; i > n; i-- {
		out.Div(u)
	}
	return out
}
