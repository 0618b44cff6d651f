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
	"strconv"

	"github.com/tombee/kiln/pkg/errors"
)

// Quantity is a magnitude tagged with a unit expression.
type Quantity struct {
	Value float64 `yaml:"value" json:"value"`
	Unit  string  `yaml:"unit" json:"unit"`
}

// Q is shorthand for Quantity{Value: v, Unit: u}.
func Q(v float64, u string) Quantity {
	return Quantity{Value: v, Unit: u}
}

// String formats the quantity as "<value> <unit>".
func (q Quantity) String() string {
	v := strconv.FormatFloat(q.Value, 'g', -1, 64)
	if q.Unit == "" {
		return v
	}
	return v + " " + q.Unit
}

// To converts q into the target unit. Temperatures convert between
// absolute scales.
func (q Quantity) To(target string) (float64, error) {
	from, err := ParseUnit(q.Unit)
	if err != nil {
		return 0, err
	}
	to, err := ParseUnit(target)
	if err != nil {
		return 0, err
	}
	if !from.Compatible(to) {
		return 0, &errors.ValidationError{
			Field:   "unit",
			Message: fmt.Sprintf("cannot convert %s to %s: dimensions %v and %v differ", q.Unit, target, from.Dimensions(), to.Dimensions()),
		}
	}
	return to.FromSI(from.ToSI(q.Value)), nil
}

// SI returns the magnitude in SI base units.
func (q Quantity) SI() (float64, error) {
	u, err := ParseUnit(q.Unit)
	if err != nil {
		return 0, err
	}
	return u.ToSI(q.Value), nil
}

// CGS returns the magnitude in centimetre-gram-second units.
func (q Quantity) CGS() (float64, error) {
	u, err := ParseUnit(q.Unit)
	if err != nil {
		return 0, err
	}
	return u.ToCGS(q.Value), nil
}
