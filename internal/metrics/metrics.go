// Package metrics exposes run statistics in the Prometheus text format.
//
// strmsync runs as a one-shot command or a small daemon, so instead of an
// HTTP endpoint the registry is written to a node_exporter textfile after
// every run.
package metrics

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"strmsync/internal/progress"
)

const namespace = "strmsync"

// Recorder owns a private registry. All methods are safe on a nil receiver
// so callers can leave metrics disabled.
type Recorder struct {
	registry *prometheus.Registry

	runs           *prometheus.CounterVec
	items          *prometheus.CounterVec
	lookups        *prometheus.CounterVec
	requests       *prometheus.CounterVec
	orphanSkips    *prometheus.CounterVec
	orphansDeleted *prometheus.CounterVec
	failedItems    prometheus.Gauge
	lastDuration   prometheus.Gauge
	lastSuccess    prometheus.Gauge
}

// New registers every collector on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Reconciliation runs by terminal state.",
		}, []string{"state"}),
		items: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Library items by level and outcome.",
		}, []string{"level", "outcome"}),
		lookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metadata_lookups_total",
			Help:      "External identifier lookups by media kind and result.",
		}, []string{"kind", "result"}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Provider API attempts by action and outcome.",
		}, []string{"action", "outcome"}),
		orphanSkips: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orphan_sweeps_skipped_total",
			Help:      "Orphan sweeps skipped by the safety guard.",
		}, []string{"kind"}),
		orphansDeleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orphans_deleted_total",
			Help:      "Orphan pointer files removed.",
		}, []string{"kind"}),
		failedItems: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "failed_items",
			Help:      "Items waiting in the retry queue after the last run.",
		}),
		lastDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the most recent run.",
		}),
		lastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time the last complete run finished.",
		}),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveRun records the totals of a finished run.
func (r *Recorder) ObserveRun(result progress.RunResult) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(string(result.State)).Inc()
	for level, counts := range map[string]progress.Counts{
		"movie":   result.Movies,
		"series":  result.Series,
		"season":  result.Seasons,
		"episode": result.Episodes,
	} {
		r.items.WithLabelValues(level, "created").Add(float64(counts.Created))
		r.items.WithLabelValues(level, "updated").Add(float64(counts.Updated))
		r.items.WithLabelValues(level, "skipped").Add(float64(counts.Skipped))
		r.items.WithLabelValues(level, "deleted").Add(float64(counts.Deleted))
	}
	r.failedItems.Set(float64(len(result.FailedItems)))
	r.lastDuration.Set(result.Duration().Seconds())
	if result.State == progress.StateComplete && !result.FinishedAt.IsZero() {
		r.lastSuccess.Set(float64(result.FinishedAt.Unix()))
	}
}

// ObserveLookup counts one metadata lookup.
func (r *Recorder) ObserveLookup(kind, result string) {
	if r == nil {
		return
	}
	r.lookups.WithLabelValues(kind, result).Inc()
}

// ObserveRequest counts one provider request attempt.
func (r *Recorder) ObserveRequest(action, outcome string) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(action, outcome).Inc()
}

// OrphanSweepSkipped counts a guard trip for kind.
func (r *Recorder) OrphanSweepSkipped(kind string) {
	if r == nil {
		return
	}
	r.orphanSkips.WithLabelValues(kind).Inc()
}

// OrphansDeleted adds n removed orphans for kind.
func (r *Recorder) OrphansDeleted(kind string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.orphansDeleted.WithLabelValues(kind).Add(float64(n))
}

// WriteTextfile atomically writes the registry to path. An empty path is a
// no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || strings.TrimSpace(path) == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
