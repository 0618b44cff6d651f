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

package archive

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tombee/kiln/pkg/errors"
	"github.com/tombee/kiln/pkg/results"
)

// Entry is one committed row of the index.
type Entry struct {
	// Seq is the append position, starting at 1.
	Seq int64

	// Name is the assigned archive directory name.
	Name string

	// RunID identifies the workflow execution.
	RunID string

	// Kind is the adapter kind recorded in the results.
	Kind string

	// Workflow is the name the caller requested.
	Workflow string

	// CreatedAt is when the entry was appended.
	CreatedAt time.Time

	Results *results.Results
}

func openIndex(ctx context.Context, path string) (*sql.DB, error) {
	connStr := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to index: %w", err)
	}
	if err := migrate(pingCtx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS results (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			run_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			workflow TEXT NOT NULL,
			created_at TEXT NOT NULL,
			blob BLOB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_workflow ON results(workflow)`,
	}
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Append commits r to the index under its assigned name. An assigned
// name can be appended only once.
func (d *Database) Append(ctx context.Context, assigned, runID string, r *results.Results) error {
	if err := d.init(ctx); err != nil {
		return err
	}
	blob, err := results.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "encoding results for index")
	}

	_, err = d.db.ExecContext(ctx,
		`INSERT INTO results (name, run_id, kind, workflow, created_at, blob) VALUES (?, ?, ?, ?, ?, ?)`,
		assigned, runID, r.Kind, r.Name, time.Now().UTC().Format(time.RFC3339Nano), blob,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &errors.ValidationError{Field: "name", Message: fmt.Sprintf("%s is already in the index", assigned)}
		}
		return fmt.Errorf("failed to append %s: %w", assigned, err)
	}
	d.logger.Debug("appended to index", "assigned", assigned, "run_id", runID)
	return nil
}

// List returns every entry in append order.
func (d *Database) List(ctx context.Context) ([]*Entry, error) {
	if err := d.init(ctx); err != nil {
		return nil, err
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT seq, name, run_id, kind, workflow, created_at, blob FROM results ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to list index: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list index: %w", err)
	}
	return entries, nil
}

// Get returns the entry with the given assigned name.
func (d *Database) Get(ctx context.Context, assigned string) (*Entry, error) {
	if err := d.init(ctx); err != nil {
		return nil, err
	}
	row := d.db.QueryRowContext(ctx,
		`SELECT seq, name, run_id, kind, workflow, created_at, blob FROM results WHERE name = ?`, assigned)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &errors.NotFoundError{Resource: "result", ID: assigned}
		}
		return nil, err
	}
	return e, nil
}

// Len returns the number of committed entries.
func (d *Database) Len(ctx context.Context) (int, error) {
	if err := d.init(ctx); err != nil {
		return 0, err
	}
	var n int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM results`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count index: %w", err)
	}
	return n, nil
}

func (d *Database) has(ctx context.Context, assigned string) (bool, error) {
	var n int
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM results WHERE name = ?`, assigned).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query index: %w", err)
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*Entry, error) {
	var (
		e         Entry
		createdAt string
		blob      []byte
	)
	if err := s.Scan(&e.Seq, &e.Name, &e.RunID, &e.Kind, &e.Workflow, &createdAt, &blob); err != nil {
		return nil, err
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

	r, err := results.Unmarshal(blob)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding index entry %s", e.Name)
	}
	e.Results = r
	return &e, nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
