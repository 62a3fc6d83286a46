package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/afero"

	"strmsync/internal/catalog"
	"strmsync/internal/checksum"
	"strmsync/internal/config"
	"strmsync/internal/logging"
	"strmsync/internal/metadata"
	"strmsync/internal/metrics"
	"strmsync/internal/progress"
	"strmsync/internal/services"
	"strmsync/internal/snapshot"
)

// Trigger labels what started a run.
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
	TriggerRetry     = "retry"
)

// Deps are the collaborators an Engine needs. Resolver, History, Metrics and
// Tracker are optional.
type Deps struct {
	Config    *config.Config
	Source    catalog.Source
	FS        afero.Fs
	Snapshots *snapshot.Store
	Resolver  *metadata.Resolver
	History   *progress.History
	Tracker   *progress.Tracker
	Metrics   *metrics.Recorder
	Logger    *slog.Logger
	Now       func() time.Time
}

// Options tune a single run.
type Options struct {
	RunID   string
	Trigger string
	// Full ignores the previous snapshot and reprocesses every item.
	Full bool
}

// Engine reconciles the library against a catalog source.
type Engine struct {
	cfg       *config.Config
	source    catalog.Source
	fs        afero.Fs
	snapshots *snapshot.Store
	resolver  *metadata.Resolver
	history   *progress.History
	tracker   *progress.Tracker
	metrics   *metrics.Recorder
	logger    *slog.Logger
	now       func() time.Time
	layout    layout
}

// New validates deps and builds an engine.
func New(deps Deps) (*Engine, error) {
	if deps.Config == nil {
		return nil, services.Wrap(services.ErrConfiguration, "reconcile", "new engine", "config is required", nil)
	}
	if deps.Source == nil {
		return nil, services.Wrap(services.ErrConfiguration, "reconcile", "new engine", "catalog source is required", nil)
	}
	if deps.FS == nil {
		deps.FS = afero.NewOsFs()
	}
	if deps.Snapshots == nil {
		deps.Snapshots = snapshot.NewStore(deps.Config.SnapshotDir(), snapshot.DefaultRetain, deps.Logger)
	}
	if deps.Tracker == nil {
		deps.Tracker = progress.NewTracker()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if !deps.Config.Metadata.Enabled {
		deps.Resolver = nil
	}
	return &Engine{
		cfg:       deps.Config,
		source:    deps.Source,
		fs:        deps.FS,
		snapshots: deps.Snapshots,
		resolver:  deps.Resolver,
		history:   deps.History,
		tracker:   deps.Tracker,
		metrics:   deps.Metrics,
		logger:    logging.NewComponentLogger(deps.Logger, "reconcile"),
		now:       deps.Now,
		layout:    newLayout(deps.Config),
	}, nil
}

// Tracker exposes the live progress counters.
func (e *Engine) Tracker() *progress.Tracker {
	return e.tracker
}

// ClearSnapshots deletes every snapshot so the next run is a full resync.
func (e *Engine) ClearSnapshots() error {
	return e.snapshots.ClearAll()
}

// LayoutChecksum fingerprints the configuration that shapes the library.
func (e *Engine) LayoutChecksum() string {
	return checksum.Layout(layoutSettings(e.cfg))
}

// Run performs one reconciliation. The returned result is never nil; the
// error is non-nil when the run ended Cancelled or Failed.
func (e *Engine) Run(ctx context.Context, opts Options) (*progress.RunResult, error) {
	r := e.newRun(opts.RunID, opts.Trigger, false)
	ctx = services.WithRunID(ctx, r.result.ID)
	ctx = services.WithTrigger(ctx, r.result.Trigger)
	r.logger = logging.WithContext(ctx, e.logger)

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	r.abort = cancel

	err := r.execute(runCtx, opts.Full)
	r.finish(ctx, err)
	e.recordRun(ctx, r)
	return r.resultCopy(), r.terminalError()
}

// Retry reprocesses failed items from a previous run. It never sweeps
// orphans; successfully retried items are added to the latest snapshot
// when that snapshot is still a valid diff base.
func (e *Engine) Retry(ctx context.Context, runID string, failed []progress.FailedItem) (*progress.RunResult, error) {
	if len(failed) == 0 {
		return nil, services.ErrNothingToRetry
	}
	r := e.newRun(runID, TriggerRetry, true)
	ctx = services.WithRunID(ctx, r.result.ID)
	ctx = services.WithTrigger(ctx, TriggerRetry)
	r.logger = logging.WithContext(ctx, e.logger)

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	r.abort = cancel

	err := r.retry(runCtx, failed)
	r.finish(ctx, err)
	e.recordRetry(ctx, r)
	return r.resultCopy(), r.terminalError()
}

// recordRun is the guaranteed cleanup of a run: cache flush, history,
// metrics. Failures here are logged and never change the run outcome.
func (e *Engine) recordRun(ctx context.Context, r *run) {
	ctx = context.WithoutCancel(ctx)
	e.flushCache(ctx, r)
	result := r.resultCopy()
	if e.history != nil {
		if err := e.history.Append(*result); err != nil {
			logging.WarnWithContext(r.logger, "failed to persist run history", "history_write_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions on paths.state_dir"))
		}
	}
	e.exportMetrics(r, *result)
}

func (e *Engine) recordRetry(ctx context.Context, r *run) {
	ctx = context.WithoutCancel(ctx)
	e.flushCache(ctx, r)
	result := r.resultCopy()
	if e.history != nil {
		if last, ok := e.history.Last(); ok {
			last.Merge(*result, r.attempted)
			if err := e.history.ReplaceLast(last); err != nil {
				logging.WarnWithContext(r.logger, "failed to persist retry outcome", "history_write_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check permissions on paths.state_dir"))
			}
		}
	}
	e.exportMetrics(r, *result)
}

func (e *Engine) flushCache(ctx context.Context, r *run) {
	if e.resolver == nil {
		return
	}
	if err := e.resolver.Cache().Flush(ctx); err != nil {
		logging.WarnWithContext(r.logger, "failed to flush metadata cache", "metadata_cache_flush_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "identifiers resolved this run are looked up again next time"))
	}
}

func (e *Engine) exportMetrics(r *run, result progress.RunResult) {
	if e.metrics == nil {
		return
	}
	e.metrics.ObserveRun(result)
	if err := e.metrics.WriteTextfile(e.cfg.Paths.MetricsFile); err != nil {
		logging.WarnWithContext(r.logger, "failed to export metrics", "metrics_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.metrics_file"))
	}
}

// classify maps a run error onto a terminal state.
func classify(parent context.Context, err error) progress.State {
	switch {
	case err == nil:
		return progress.StateComplete
	case services.IsResourceExhausted(err):
		return progress.StateFailed
	case errors.Is(err, context.Canceled), errors.Is(err, services.ErrCancelled), parent.Err() != nil:
		return progress.StateCancelled
	default:
		return progress.StateFailed
	}
}

func errorMessage(state progress.State, err error) string {
	switch state {
	case progress.StateComplete:
		return ""
	case progress.StateCancelled:
		return "run cancelled"
	}
	if services.IsResourceExhausted(err) {
		return fmt.Sprintf("%v (%s)", err, services.ResourceHint())
	}
	return err.Error()
}
