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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tombee/kiln/pkg/errors"
)

var (
	workflowRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiln_workflow_runs_total",
			Help: "Total workflow executions by plugin and outcome",
		},
		[]string{"plugin", "status"},
	)

	workflowDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kiln_workflow_duration_seconds",
			Help:    "Wall time of workflow executions",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		},
		[]string{"plugin", "status"},
	)

	phaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kiln_phase_duration_seconds",
			Help:    "Wall time of plugin phases",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 12),
		},
		[]string{"plugin", "phase", "status"},
	)

	archivedFiles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiln_archived_files_total",
			Help: "Total files relocated into the archive",
		},
		[]string{"plugin"},
	)

	archiveRollbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiln_archive_rollbacks_total",
			Help: "Archive destinations removed after a failed relocation or index append",
		},
		[]string{"plugin"},
	)
)

// status maps an error to a metric label.
func status(err error) string {
	if err == nil {
		return "ok"
	}
	var c errors.ErrorClassifier
	if errors.As(err, &c) {
		return c.ErrorType()
	}
	return "error"
}

func observePhase(plugin, phase string, start time.Time, err error) {
	phaseDuration.WithLabelValues(plugin, phase, status(err)).Observe(time.Since(start).Seconds())
}

func observeWorkflow(plugin string, start time.Time, err error) {
	s := status(err)
	workflowRuns.WithLabelValues(plugin, s).Inc()
	workflowDuration.WithLabelValues(plugin, s).Observe(time.Since(start).Seconds())
}

// WriteMetrics writes every registered metric to path in the Prometheus
// text format, for collection by a node exporter textfile collector.
func WriteMetrics(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return errors.Wrapf(err, "writing metrics to %s", path)
	}
	return nil
}
