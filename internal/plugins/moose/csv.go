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

package moose

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/tombee/kiln/pkg/container"
	"github.com/tombee/kiln/pkg/errors"
)

var coordinateColumns = []string{"id", "x", "y", "z"}

// ReadCSV collects MOOSE CSV output for the input file named input.
//
// The main postprocessor file <stem>_csv.csv contributes one entry per
// column. Each vector postprocessor file <stem>_csv_<name>_<step>.csv,
// other than the initial step 0000, contributes its value column under
// the file's stem, plus its id/x/y/z columns under <stem>_csv_<name>_id
// and so on, keeping the first occurrence of each.
func ReadCSV(dir, input string, outputs []string) (container.Mapping, error) {
	stem := strings.TrimSuffix(input, filepath.Ext(input))
	data := container.Mapping{}

	main := filepath.Join(dir, stem+"_csv.csv")
	if _, err := os.Stat(main); err == nil {
		cols, order, err := readColumns(main)
		if err != nil {
			return nil, err
		}
		for _, name := range order {
			data[name] = cols[name]
		}
	}

	prefix := stem + "_csv_"
	for _, out := range outputs {
		if !strings.HasPrefix(out, prefix) || !strings.HasSuffix(out, ".csv") || strings.HasSuffix(out, "_0000.csv") {
			continue
		}
		cols, order, err := readColumns(filepath.Join(dir, out))
		if err != nil {
			return nil, err
		}
		value := valueColumn(order)
		if value == "" {
			continue
		}
		data[strings.TrimSuffix(out, ".csv")] = cols[value]

		// "<stem>_csv_temp_0001.csv" -> "<stem>_csv_temp_"
		base := out[:len(out)-len("0001.csv")]
		for _, c := range coordinateColumns {
			key := base + c
			if _, seen := data[key]; seen {
				continue
			}
			if v, ok := cols[c]; ok {
				data[key] = v
			}
		}
	}
	return data, nil
}

// valueColumn returns the first column, alphabetically, that is not a
// coordinate column.
func valueColumn(order []string) string {
	var candidates []string
	for _, name := range order {
		coordinate := false
		for _, c := range coordinateColumns {
			if name == c {
				coordinate = true
				break
			}
		}
		if !coordinate {
			candidates = append(candidates, name)
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.Strings(candidates)
	return candidates[0]
}

func readColumns(path string) (map[string][]float64, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "opening %s", filepath.Base(path))
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return map[string][]float64{}, nil, nil
		}
		return nil, nil, errors.Wrapf(err, "reading %s", filepath.Base(path))
	}
	cols := make(map[string][]float64, len(header))
	for _, h := range header {
		cols[h] = []float64{}
	}

	for line := 2; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, errors.Wrapf(err, "reading %s", filepath.Base(path))
		}
		for i, field := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, nil, &errors.ExecutionError{
					Plugin:   "moose",
					ExitCode: -1,
					Cause:    fmt.Errorf("%s line %d column %q: %w", filepath.Base(path), line, header[i], err),
				}
			}
			cols[header[i]] = append(cols[header[i]], v)
		}
	}
	return cols, header, nil
}
