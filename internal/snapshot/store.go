package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"strmsync/internal/fileutil"
	"strmsync/internal/logging"
)

const (
	filePrefix = "snapshot-"
	fileSuffix = ".json"
	// Fixed width so lexical order equals chronological order.
	timeLayout = "20060102T150405.000000000Z"

	// DefaultRetain is how many snapshot files Save keeps.
	DefaultRetain = 3
)

// Store persists snapshots in a private directory. Every operation holds the
// same mutex so temp files and pruning never interleave.
type Store struct {
	dir    string
	retain int
	logger *slog.Logger
	mu     sync.Mutex
}

// NewStore creates a store rooted at dir. retain <= 0 selects DefaultRetain.
func NewStore(dir string, retain int, logger *slog.Logger) *Store {
	if retain <= 0 {
		retain = DefaultRetain
	}
	return &Store{
		dir:    dir,
		retain: retain,
		logger: logging.NewComponentLogger(logger, "snapshot"),
	}
}

// Dir returns the snapshot directory.
func (s *Store) Dir() string {
	return s.dir
}

// LoadLatest returns the newest complete snapshot, or nil when none is
// usable. Corrupt, truncated, incomplete, or foreign-version files are logged
// and skipped; they never surface as errors.
func (s *Store) LoadLatest() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.list()
	if err != nil {
		return nil, err
	}
	for i := len(files) - 1; i >= 0; i-- {
		path := filepath.Join(s.dir, files[i])
		snap, err := readSnapshot(path)
		if err != nil {
			logging.WarnWithContext(s.logger, "skipping unusable snapshot", "snapshot_invalid",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the file is ignored and an older snapshot is tried"),
				logging.String(logging.FieldImpact, "incremental sync may fall back to a full resync"))
			continue
		}
		s.logger.Debug("loaded snapshot",
			logging.String("path", path),
			logging.Int("movies", len(snap.Movies)),
			logging.Int("series", len(snap.Series)))
		return snap, nil
	}
	return nil, nil
}

// Save writes snap atomically and prunes all but the newest retained files.
// Incomplete snapshots are refused.
func (s *Store) Save(snap *Snapshot) error {
	if snap == nil {
		return errors.New("snapshot is nil")
	}
	if !snap.Complete {
		return errors.New("refusing to save incomplete snapshot")
	}
	if snap.Version == 0 {
		snap.Version = Version
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now()
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := filePrefix + snap.CreatedAt.UTC().Format(timeLayout) + fileSuffix
	path := filepath.Join(s.dir, name)
	if err := fileutil.WriteAtomic(path, data, 0o600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	s.logger.Info("snapshot saved",
		logging.String("path", path),
		logging.Int("movies", len(snap.Movies)),
		logging.Int("series", len(snap.Series)))

	s.prune()
	return nil
}

// ClearAll deletes every snapshot so the next run performs a full resync.
func (s *Store) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.list()
	if err != nil {
		return err
	}
	var errs []error
	for _, name := range files {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	fileutil.RemoveStaleTemps(s.dir)
	if len(errs) > 0 {
		return fmt.Errorf("clear snapshots: %w", errors.Join(errs...))
	}
	s.logger.Info("snapshots cleared", logging.Int("removed", len(files)))
	return nil
}

// List returns snapshot file names oldest first.
func (s *Store) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list()
}

func (s *Store) list() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

func (s *Store) prune() {
	files, err := s.list()
	if err != nil || len(files) <= s.retain {
		return
	}
	for _, name := range files[:len(files)-s.retain] {
		path := filepath.Join(s.dir, name)
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logging.WarnWithContext(s.logger, "failed to prune snapshot", "snapshot_prune_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove the file manually if disk space is tight"),
				logging.String(logging.FieldImpact, "an extra snapshot remains on disk"))
		}
	}
}

func readSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("empty file")
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if snap.Version != Version {
		return nil, fmt.Errorf("unsupported version %d", snap.Version)
	}
	if !snap.Complete {
		return nil, errors.New("snapshot marked incomplete")
	}
	if snap.Movies == nil {
		snap.Movies = make(map[int]Entry)
	}
	if snap.Series == nil {
		snap.Series = make(map[int]Entry)
	}
	return &snap, nil
}
