package control

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"strmsync/internal/config"
	"strmsync/internal/fileutil"
	"strmsync/internal/library"
	"strmsync/internal/logging"
	"strmsync/internal/progress"
	"strmsync/internal/reconcile"
	"strmsync/internal/services"
)

// RunOptions tune a run started through the service.
type RunOptions struct {
	Full bool
}

// Status is a point-in-time view of the service.
type Status struct {
	Running    bool                `json:"running"`
	RunID      string              `json:"run_id,omitempty"`
	Trigger    string              `json:"trigger,omitempty"`
	Progress   progress.Progress   `json:"progress"`
	Suppressed bool                `json:"suppressed"`
	Last       *progress.RunResult `json:"last,omitempty"`
	LockPath   string              `json:"lock_path"`
	// LockHeld is true when this or another process holds the run lock.
	LockHeld bool `json:"lock_held"`
}

// Service coordinates runs and enforces single-instance execution.
type Service struct {
	cfg     *config.Config
	engine  *reconcile.Engine
	history *progress.History
	fs      afero.Fs
	logger  *slog.Logger

	lock    *flock.Flock
	running atomic.Bool

	mu      sync.Mutex
	cancel  context.CancelFunc
	runID   string
	trigger string
	done    chan struct{}
}

// New wires a service around an engine. history may be nil.
func New(cfg *config.Config, engine *reconcile.Engine, history *progress.History, fsys afero.Fs, logger *slog.Logger) (*Service, error) {
	if cfg == nil || engine == nil {
		return nil, errors.New("control service requires config and engine")
	}
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Service{
		cfg:     cfg,
		engine:  engine,
		history: history,
		fs:      fsys,
		logger:  logging.NewComponentLogger(logger, "control"),
		lock:    flock.New(cfg.LockPath()),
	}, nil
}

// Run performs a run in the foreground.
func (s *Service) Run(ctx context.Context, trigger string, opts RunOptions) (*progress.RunResult, error) {
	runCtx, runID, err := s.begin(ctx, trigger)
	if err != nil {
		return nil, err
	}
	defer s.end()
	return s.engine.Run(runCtx, reconcile.Options{RunID: runID, Trigger: trigger, Full: opts.Full})
}

// Start launches a run in the background and returns its ID. Wait blocks
// until it finishes.
func (s *Service) Start(ctx context.Context, trigger string, opts RunOptions) (string, error) {
	runCtx, runID, err := s.begin(context.WithoutCancel(ctx), trigger)
	if err != nil {
		return "", err
	}
	go func() {
		defer s.end()
		if _, err := s.engine.Run(runCtx, reconcile.Options{RunID: runID, Trigger: trigger, Full: opts.Full}); err != nil {
			s.logger.Debug("background run ended with error", logging.Error(err))
		}
	}()
	return runID, nil
}

// Wait blocks until the active run, if any, has finished or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel requests cooperative cancellation of the active run. It reports
// whether a run was active.
func (s *Service) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	s.logger.Info("run cancellation requested", logging.String(logging.FieldRunID, s.runID))
	return true
}

// Status reports the active run and the most recent result.
func (s *Service) Status() Status {
	s.mu.Lock()
	st := Status{
		Running:  s.running.Load(),
		RunID:    s.runID,
		Trigger:  s.trigger,
		LockPath: s.cfg.LockPath(),
	}
	s.mu.Unlock()
	if st.Running {
		st.Progress = s.engine.Tracker().Snapshot()
	}
	st.LockHeld = st.Running || s.lockHeldElsewhere()
	st.Suppressed = s.Suppressed()
	if s.history != nil {
		if last, ok := s.history.Last(); ok {
			st.Last = &last
		}
	}
	return st
}

// lockHeldElsewhere probes the run lock with a separate handle so the
// service's own lock state is untouched.
func (s *Service) lockHeldElsewhere() bool {
	probe := flock.New(s.cfg.LockPath())
	ok, err := probe.TryLock()
	if err != nil {
		return false
	}
	if ok {
		_ = probe.Unlock()
		return false
	}
	return true
}

// History lists past runs, newest first.
func (s *Service) History() []progress.RunResult {
	if s.history == nil {
		return nil
	}
	return s.history.List()
}

// FailedItems is the retry queue: the failures of the most recent run.
func (s *Service) FailedItems() []progress.FailedItem {
	if s.history == nil {
		return nil
	}
	return s.history.FailedItems()
}

// RetryFailed reprocesses the retry queue and folds the outcome into the
// most recent history entry.
func (s *Service) RetryFailed(ctx context.Context) (*progress.RunResult, error) {
	items := s.FailedItems()
	if len(items) == 0 {
		return nil, services.ErrNothingToRetry
	}
	runCtx, runID, err := s.begin(ctx, reconcile.TriggerRetry)
	if err != nil {
		return nil, err
	}
	defer s.end()
	return s.engine.Retry(runCtx, runID, items)
}

// Suppress blocks scheduled runs until the next manual run.
func (s *Service) Suppress() error {
	stamp := []byte(time.Now().UTC().Format(time.RFC3339) + "\n")
	if err := fileutil.WriteAtomic(s.cfg.SuppressPath(), stamp, 0o644); err != nil {
		return fmt.Errorf("write suppress marker: %w", err)
	}
	s.logger.Info("scheduled runs suppressed", logging.String("marker", s.cfg.SuppressPath()))
	return nil
}

// Suppressed reports whether the suppress marker exists.
func (s *Service) Suppressed() bool {
	_, err := os.Stat(s.cfg.SuppressPath())
	return err == nil
}

func (s *Service) unsuppress() {
	if err := os.Remove(s.cfg.SuppressPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.WarnWithContext(s.logger, "failed to clear suppress marker", "suppress_clear_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete the marker file by hand"),
			logging.String(logging.FieldImpact, "scheduled runs stay suppressed"))
	}
}

// CleanLibrary deletes every pointer and sidecar the sync manages, drops
// the snapshots, and suppresses scheduled runs so the library stays empty
// until an operator starts a manual run.
func (s *Service) CleanLibrary(ctx context.Context) (int, error) {
	_, _, err := s.begin(ctx, "clean")
	if err != nil {
		return 0, err
	}
	defer s.end()

	removed := 0
	for _, root := range []string{s.cfg.MoviesRoot(), s.cfg.SeriesRoot()} {
		n, err := library.Clean(s.fs, root)
		removed += n
		if err != nil {
			return removed, fmt.Errorf("clean %s: %w", root, err)
		}
	}
	if err := s.engine.ClearSnapshots(); err != nil {
		return removed, fmt.Errorf("clear snapshots: %w", err)
	}
	if err := s.Suppress(); err != nil {
		return removed, err
	}
	s.logger.Info("library cleaned", logging.Int("pointers_removed", removed))
	return removed, nil
}

// begin claims the single run slot. Scheduled triggers are refused while
// suppressed; manual runs lift the suppression.
func (s *Service) begin(ctx context.Context, trigger string) (context.Context, string, error) {
	if trigger == reconcile.TriggerScheduled && s.Suppressed() {
		return nil, "", services.ErrSuppressed
	}
	if !s.running.CompareAndSwap(false, true) {
		return nil, "", services.ErrAlreadyRunning
	}
	if err := s.cfg.EnsureDirectories(); err != nil {
		s.running.Store(false)
		return nil, "", services.Wrap(services.ErrConfiguration, "control", "prepare state", "state directory unavailable", err)
	}
	ok, err := s.lock.TryLock()
	if err != nil {
		s.running.Store(false)
		return nil, "", fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		s.running.Store(false)
		return nil, "", fmt.Errorf("%w: lock held by another process (%s)", services.ErrAlreadyRunning, s.cfg.LockPath())
	}
	if trigger == reconcile.TriggerManual {
		s.unsuppress()
	}

	runCtx, cancel := context.WithCancel(ctx)
	runID := uuid.NewString()
	s.mu.Lock()
	s.cancel = cancel
	s.runID = runID
	s.trigger = trigger
	s.done = make(chan struct{})
	s.mu.Unlock()
	return runCtx, runID, nil
}

func (s *Service) end() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	done := s.done
	s.runID = ""
	s.trigger = ""
	s.mu.Unlock()

	if err := s.lock.Unlock(); err != nil {
		logging.WarnWithContext(s.logger, "failed to release run lock", "lock_release_failed",
			logging.Error(err))
	}
	s.running.Store(false)
	if done != nil {
		close(done)
	}
}
