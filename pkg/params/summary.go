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
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"
)

// Summary fields usable with SummaryOptions.
const (
	FieldKey   = "key"
	FieldValue = "value"
	FieldUser  = "user"
	FieldTime  = "time"
)

// SummaryOptions controls Summary output.
type SummaryOptions struct {
	// ShowMetadata adds the ADDED BY and TIMESTAMP columns.
	ShowMetadata bool

	// SortBy is one of key, value, user or time. Default: key.
	SortBy string

	// Filter maps a field name to a predicate over that field's display
	// string. A row is shown only when every predicate returns true.
	Filter map[string]func(string) bool
}

// SummaryRow is one displayed parameter.
type SummaryRow struct {
	Key   string
	Value string
	User  string
	Time  time.Time
}

func (r SummaryRow) field(name string) string {
	switch name {
	case FieldValue:
		return r.Value
	case FieldUser:
		return r.User
	case FieldTime:
		return r.Time.Format(time.RFC3339)
	}
	return r.Key
}

// Rows returns the filtered, sorted summary rows.
func (p *Parameters) Rows(opts SummaryOptions) ([]SummaryRow, error) {
	sortBy := opts.SortBy
	if sortBy == "" {
		sortBy = FieldKey
	}
	switch sortBy {
	case FieldKey, FieldValue, FieldUser, FieldTime:
	default:
		return nil, fmt.Errorf("cannot sort by %q: use key, value, user or time", sortBy)
	}

	rows := make([]SummaryRow, 0, len(p.keys))
rows:
	for _, key := range p.keys {
		md := p.meta[key]
		row := SummaryRow{Key: key, Value: formatValue(p.values[key]), User: md.User, Time: md.Time}
		for field, keep := range opts.Filter {
			if !keep(row.field(field)) {
				continue rows
			}
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if sortBy == FieldTime {
			return rows[i].Time.Before(rows[j].Time)
		}
		return rows[i].field(sortBy) < rows[j].field(sortBy)
	})
	return rows, nil
}

// Summary writes a table of the parameters to w.
func (p *Parameters) Summary(w io.Writer, opts SummaryOptions) error {
	rows, err := p.Rows(opts)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if opts.ShowMetadata {
		fmt.Fprintln(tw, "PARAMETER\tVALUE\tADDED BY\tTIMESTAMP")
	} else {
		fmt.Fprintln(tw, "PARAMETER\tVALUE")
	}
	for _, r := range rows {
		if opts.ShowMetadata {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Key, truncate(r.Value, 40), r.User, r.Time.Format("2006-01-02 15:04:05"))
		} else {
			fmt.Fprintf(tw, "%s\t%s\n", r.Key, truncate(r.Value, 40))
		}
	}
	return tw.Flush()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case []string:
		return "[" + strings.Join(x, ", ") + "]"
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
