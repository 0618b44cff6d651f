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
	"errors"
	"log/slog"
	"os"

	"github.com/tombee/kiln/internal/config"
	"github.com/tombee/kiln/internal/log"
	"github.com/tombee/kiln/pkg/archive"
	pkgerrors "github.com/tombee/kiln/pkg/errors"
)

// LoadConfig loads the file named by --config, or the default location.
func LoadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := GetConfigPath(); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, NewConfigError("failed to load configuration", err)
	}
	return cfg, nil
}

// NewLogger builds the command logger. Logs go to stderr so stdout stays
// parseable; --verbose forces debug and --quiet keeps only errors.
func NewLogger(cfg *config.Config) *slog.Logger {
	lc := &log.Config{
		Level:     cfg.Log.Level,
		Format:    log.Format(cfg.Log.Format),
		Output:    os.Stderr,
		AddSource: cfg.Log.AddSource,
	}
	switch {
	case GetVerbose():
		lc.Level = "debug"
	case GetQuiet():
		lc.Level = "error"
	}
	return log.New(lc)
}

// OpenArchive returns the results database configured in cfg.
func OpenArchive(cfg *config.Config, logger *slog.Logger) *archive.Database {
	return archive.New(cfg.Database.Path, archive.WithLogger(log.WithComponent(logger, "archive")))
}

func isTemplateError(err error) bool {
	var terr *pkgerrors.TemplateError
	return errors.As(err, &terr)
}
