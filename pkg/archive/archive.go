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

// Package archive implements the results database: a root directory
// holding one subdirectory per archived workflow and an append-only index
// of their results.
//
// Directory names are claimed with os.Mkdir, which either creates the
// directory or fails because it exists. Several processes may therefore
// share one archive without a lock; the loser of a race simply moves on to
// the next candidate name.
package archive

import (
	"context"
	"database/sql"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/tombee/kiln/pkg/errors"
)

// IndexFile is the name of the index inside the archive root.
const IndexFile = "index.db"

// Database is a results archive rooted at a directory. The directory and
// its index are created on first use.
type Database struct {
	path   string
	logger *slog.Logger

	once    sync.Once
	initErr error
	db      *sql.DB
}

// Option configures a Database.
type Option func(*Database)

// WithLogger sets the logger used for archive events.
func WithLogger(l *slog.Logger) Option {
	return func(d *Database) { d.logger = l }
}

// New returns a Database rooted at path. Nothing is touched on disk until
// the first operation.
func New(path string, opts ...Option) *Database {
	d := &Database{path: path, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Path returns the archive root.
func (d *Database) Path() string {
	return d.path
}

// Open creates the archive root and index if needed. Other methods call it
// implicitly; calling it first surfaces configuration errors early.
func (d *Database) Open(ctx context.Context) error {
	return d.init(ctx)
}

func (d *Database) init(ctx context.Context) error {
	d.once.Do(func() {
		if d.path == "" {
			d.initErr = &errors.ConfigError{Key: "database.path", Reason: "archive path is empty"}
			return
		}
		if err := os.MkdirAll(d.path, 0o755); err != nil {
			d.initErr = &errors.ConfigError{Key: "database.path", Reason: "cannot create archive directory", Cause: err}
			return
		}
		db, err := openIndex(ctx, filepath.Join(d.path, IndexFile))
		if err != nil {
			d.initErr = err
			return
		}
		d.db = db
		d.logger.Debug("archive opened", "path", d.path)
	})
	return d.initErr
}

// Close releases the index connection.
func (d *Database) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Names returns the archived workflow directories, sorted.
func (d *Database) Names() ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "listing archive")
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Claim reserves a fresh directory for a workflow requested under name
// and returns its path and the assigned name.
func (d *Database) Claim(ctx context.Context, name string) (dir, assigned string, err error) {
	if err := ValidateName(name); err != nil {
		return "", "", err
	}
	if err := d.init(ctx); err != nil {
		return "", "", err
	}

	existing, err := d.Names()
	if err != nil {
		return "", "", err
	}
	for {
		if err := ctx.Err(); err != nil {
			return "", "", err
		}
		candidate := UniqueName(name, existing)
		dir = filepath.Join(d.path, candidate)
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			d.logger.Debug("claimed archive directory", "requested", name, "assigned", candidate)
			return dir, candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", "", &errors.ArchiveError{Destination: dir, Cause: err}
		}
		// lost a race, or the name is held by a plain file
		existing = append(existing, candidate)
	}
}

// Release removes a claimed directory that was never committed to the
// index. Committed entries cannot be released.
func (d *Database) Release(ctx context.Context, assigned string) error {
	if err := ValidateName(assigned); err != nil {
		return err
	}
	if err := d.init(ctx); err != nil {
		return err
	}
	committed, err := d.has(ctx, assigned)
	if err != nil {
		return err
	}
	if committed {
		return &errors.ValidationError{Field: "name", Message: "cannot release committed entry " + assigned}
	}
	if err := os.RemoveAll(filepath.Join(d.path, assigned)); err != nil {
		return errors.Wrapf(err, "releasing %s", assigned)
	}
	d.logger.Debug("released archive directory", "assigned", assigned)
	return nil
}
