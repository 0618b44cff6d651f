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
	"context"
	"log/slog"
	"time"

	"github.com/tombee/kiln/internal/config"
	"github.com/tombee/kiln/internal/tracing"
	"github.com/tombee/kiln/internal/tracing/redact"
	"github.com/tombee/kiln/pkg/errors"
	"github.com/tombee/kiln/pkg/plugin"
)

// shutdownTimeout bounds flushing spans after a command finishes.
const shutdownTimeout = 5 * time.Second

// StartTelemetry installs the tracer provider configured in cfg. The
// returned function flushes spans and writes the metrics textfile; call
// it once the command is done.
func StartTelemetry(ctx context.Context, cfg *config.Config, logger *slog.Logger) (func() error, error) {
	tc := tracing.DefaultConfig()
	tc.Enabled = cfg.Tracing.Enabled
	if cfg.Tracing.ServiceName != "" {
		tc.ServiceName = cfg.Tracing.ServiceName
	}
	tc.ServiceVersion = version
	tc.SampleRate = cfg.Tracing.SampleRate
	if mode, ok := redact.ParseMode(cfg.Tracing.Redaction); ok {
		tc.Redaction = mode
	}
	for _, e := range cfg.Tracing.Exporters {
		tc.Exporters = append(tc.Exporters, tracing.ExporterConfig{
			Type:     e.Type,
			Endpoint: e.Endpoint,
			Headers:  e.Headers,
			Insecure: e.Insecure,
			Path:     e.Path,
			Timeout:  e.Timeout,
		})
	}

	provider, err := tracing.Setup(ctx, tc, logger)
	if err != nil {
		return nil, NewConfigError("failed to set up tracing", err)
	}

	return func() error {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := provider.Shutdown(sctx); err != nil {
			errs = append(errs, errors.Wrap(err, "flushing traces"))
		}
		if path := cfg.Metrics.TextfilePath; path != "" {
			if err := plugin.WriteMetrics(path); err != nil {
				errs = append(errs, errors.Wrap(err, "writing metrics"))
			}
		}
		return errors.Join(errs...)
	}, nil
}
