// Copyright 2025 KrakLabs
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
//
// SPDX-License-Identifier: Apache-2.0

// Package metrics holds the Prometheus counters and histograms for the
// indexing and query paths. Registration is lazy and idempotent, mirroring
// the teacher's pkg/ingestion/metrics.go: a sync.Once-gated init() builds
// and registers every collector on first use, so packages that never touch
// a metric (tests, the mock embedder path) never pay for registration.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type registry struct {
	once sync.Once

	filesAdded    prometheus.Counter
	filesModified prometheus.Counter
	filesDeleted  prometheus.Counter
	syncErrors    prometheus.Counter
	syncDuration  prometheus.Histogram

	queryDuration *prometheus.HistogramVec

	embedOverflow prometheus.Counter
	embedRetries  prometheus.Counter
}

var r registry

func (m *registry) init() {
	m.once.Do(func() {
		m.filesAdded = prometheus.NewCounter(prometheus.CounterOpts{Name: "cie_sync_files_added_total", Help: "Files added by a sync pass"})
		m.filesModified = prometheus.NewCounter(prometheus.CounterOpts{Name: "cie_sync_files_modified_total", Help: "Files modified by a sync pass"})
		m.filesDeleted = prometheus.NewCounter(prometheus.CounterOpts{Name: "cie_sync_files_deleted_total", Help: "Files deleted by a sync pass"})
		m.syncErrors = prometheus.NewCounter(prometheus.CounterOpts{Name: "cie_sync_errors_total", Help: "Errors encountered during a sync pass"})

		buckets := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}
		m.syncDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "cie_sync_duration_seconds", Help: "Duration of a full sync pass", Buckets: buckets})
		m.queryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "cie_query_duration_seconds", Help: "Duration of a query engine operation", Buckets: buckets}, []string{"operation"})

		m.embedOverflow = prometheus.NewCounter(prometheus.CounterOpts{Name: "cie_embed_overflow_total", Help: "Snippets that overflowed the embedder context window and were shrunk or dropped to metadata-only"})
		m.embedRetries = prometheus.NewCounter(prometheus.CounterOpts{Name: "cie_embed_retries_total", Help: "Embedding requests retried after a transient provider error"})

		prometheus.MustRegister(
			m.filesAdded, m.filesModified, m.filesDeleted, m.syncErrors, m.syncDuration,
			m.queryDuration,
			m.embedOverflow, m.embedRetries,
		)
	})
}

// RecordSync updates the sync counters and duration histogram for one
// completed sync pass (full or incremental).
func RecordSync(added, modified, deleted, errs int, d time.Duration) {
	r.init()
	r.filesAdded.Add(float64(added))
	r.filesModified.Add(float64(modified))
	r.filesDeleted.Add(float64(deleted))
	r.syncErrors.Add(float64(errs))
	r.syncDuration.Observe(d.Seconds())
}

// RecordQuery records the duration of a query engine operation (e.g.
// "dependencies_of", "dependents_of", "paths_between"), labeled so latency can be compared
// across operation kinds.
func RecordQuery(operation string, d time.Duration) {
	r.init()
	r.queryDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordEmbedOverflow increments the overflow counter. Called whenever
// embedWithFallback's ladder has to shrink or discard a snippet because
// the embedder rejected it as exceeding its context window.
func RecordEmbedOverflow() {
	r.init()
	r.embedOverflow.Inc()
}

// RecordEmbedRetry increments the retry counter. Called whenever an
// embedding request is retried after a transient provider error.
func RecordEmbedRetry() {
	r.init()
	r.embedRetries.Inc()
}
