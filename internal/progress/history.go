package progress

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/goccy/go-json"

	"strmsync/internal/fileutil"
	"strmsync/internal/logging"
)

// DefaultHistoryLimit is how many runs History keeps.
const DefaultHistoryLimit = 10

// ErrEmptyHistory is returned by ReplaceLast when nothing has been recorded.
var ErrEmptyHistory = errors.New("run history is empty")

type historyFile struct {
	Runs []RunResult `json:"runs"`
}

// History is the persisted ring of recent runs, oldest first.
type History struct {
	path   string
	limit  int
	logger *slog.Logger

	mu   sync.Mutex
	runs []RunResult
}

// LoadHistory reads path. A missing or unreadable file starts an empty
// history; corruption is logged, never returned.
func LoadHistory(path string, limit int, logger *slog.Logger) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	h := &History{path: path, limit: limit, logger: logging.NewComponentLogger(logger, "history")}
	if path == "" {
		return h
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logging.WarnWithContext(h.logger, "run history unreadable", "history_read_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "previous run results are not shown"))
		}
		return h
	}
	var file historyFile
	if err := json.Unmarshal(data, &file); err != nil {
		logging.WarnWithContext(h.logger, "run history corrupt; starting fresh", "history_corrupt",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the file is rewritten after the next run"))
		return h
	}
	h.runs = file.Runs
	h.trim()
	return h
}

// Append records a finished run and persists the ring. Older entries lose
// their failed items so only the newest result can be retried.
func (h *History) Append(r RunResult) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.runs {
		h.runs[i].FailedItems = nil
	}
	h.runs = append(h.runs, r)
	h.trim()
	return h.persist()
}

// ReplaceLast overwrites the most recent entry.
func (h *History) ReplaceLast(r RunResult) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.runs) == 0 {
		return ErrEmptyHistory
	}
	h.runs[len(h.runs)-1] = r
	return h.persist()
}

// Last returns the most recent run.
func (h *History) Last() (RunResult, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.runs) == 0 {
		return RunResult{}, false
	}
	return cloneResult(h.runs[len(h.runs)-1]), true
}

// List returns every run, newest first.
func (h *History) List() []RunResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]RunResult, 0, len(h.runs))
	for i := len(h.runs) - 1; i >= 0; i-- {
		out = append(out, cloneResult(h.runs[i]))
	}
	return out
}

// FailedItems is the retry queue: the failed items of the newest run.
func (h *History) FailedItems() []FailedItem {
	last, ok := h.Last()
	if !ok {
		return nil
	}
	return last.FailedItems
}

func (h *History) trim() {
	if excess := len(h.runs) - h.limit; excess > 0 {
		h.runs = slices.Delete(h.runs, 0, excess)
	}
}

func (h *History) persist() error {
	if h.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(historyFile{Runs: h.runs}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := fileutil.WriteAtomic(h.path, data, 0o644); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

func cloneResult(r RunResult) RunResult {
	r.FailedItems = slices.Clone(r.FailedItems)
	r.SkippedKind = slices.Clone(r.SkippedKind)
	return r
}
