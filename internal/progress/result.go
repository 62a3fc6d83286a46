package progress

import (
	"strconv"
	"time"

	"strmsync/internal/delta"
)

// State is a reconciliation phase. The last three are terminal.
type State string

const (
	StateIdle            State = "idle"
	StateInitializing    State = "initializing"
	StateFetchingCatalog State = "fetching_catalog"
	StateComputingDelta  State = "computing_delta"
	StateSyncingMovies   State = "syncing_movies"
	StateSyncingSeries   State = "syncing_series"
	StateSyncing         State = "syncing"
	StateCleaningOrphans State = "cleaning_orphans"
	StateSavingSnapshot  State = "saving_snapshot"
	StateComplete        State = "complete"
	StateCancelled       State = "cancelled"
	StateFailed          State = "failed"
)

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	switch s {
	case StateComplete, StateCancelled, StateFailed:
		return true
	default:
		return false
	}
}

// ItemType identifies what a FailedItem refers to.
type ItemType string

const (
	ItemMovie   ItemType = "movie"
	ItemSeries  ItemType = "series"
	ItemEpisode ItemType = "episode"
)

// Counts aggregates per-item outcomes for one level of the library.
type Counts struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Deleted int `json:"deleted"`
}

// Add accumulates o into c.
func (c *Counts) Add(o Counts) {
	c.Created += o.Created
	c.Updated += o.Updated
	c.Skipped += o.Skipped
	c.Deleted += o.Deleted
}

// Changed is the number of items that touched the disk.
func (c Counts) Changed() int {
	return c.Created + c.Updated + c.Deleted
}

// FailedItem records one item whose processing raised an error.
type FailedItem struct {
	ItemType   ItemType  `json:"item_type"`
	ProviderID int       `json:"provider_id"`
	Name       string    `json:"name"`
	CategoryID int       `json:"category_id,omitempty"`
	SeriesID   int       `json:"series_id,omitempty"`
	Season     int       `json:"season,omitempty"`
	Episode    int       `json:"episode,omitempty"`
	Error      string    `json:"error"`
	Timestamp  time.Time `json:"timestamp"`
}

// Key identifies the logical item a failure belongs to. Episode failures
// share their series key since retry reprocesses the whole series.
func (f FailedItem) Key() string {
	switch f.ItemType {
	case ItemEpisode:
		return string(ItemSeries) + ":" + strconv.Itoa(f.SeriesID)
	default:
		return string(f.ItemType) + ":" + strconv.Itoa(f.ProviderID)
	}
}

// RunResult summarises one reconciliation or retry pass.
type RunResult struct {
	ID          string       `json:"id"`
	Trigger     string       `json:"trigger"`
	State       State        `json:"state"`
	Message     string       `json:"message,omitempty"`
	Incremental bool         `json:"incremental"`
	Retry       bool         `json:"retry,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
	Movies      Counts       `json:"movies"`
	Series      Counts       `json:"series"`
	Seasons     Counts       `json:"seasons"`
	Episodes    Counts       `json:"episodes"`
	Errors      int          `json:"errors"`
	Unmatched   int          `json:"unmatched"`
	Delta       delta.Stats  `json:"delta"`
	SkippedKind []string     `json:"orphan_sweep_skipped,omitempty"`
	FailedItems []FailedItem `json:"failed_items,omitempty"`
}

// Duration is the wall time of the run, zero while it is still running.
func (r RunResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Merge folds the counts of a retry pass into r. Failed items whose keys
// the retry attempted are replaced by whatever it could not resolve; items
// it never reached, because it was cancelled or aborted, stay queued.
func (r *RunResult) Merge(retry RunResult, attempted []string) {
	r.Movies.Add(retry.Movies)
	r.Series.Add(retry.Series)
	r.Seasons.Add(retry.Seasons)
	r.Episodes.Add(retry.Episodes)

	tried := make(map[string]struct{}, len(attempted)+len(retry.FailedItems))
	for _, key := range attempted {
		tried[key] = struct{}{}
	}
	for _, item := range retry.FailedItems {
		tried[item.Key()] = struct{}{}
	}
	kept := make([]FailedItem, 0, len(r.FailedItems)+len(retry.FailedItems))
	removed := 0
	for _, item := range r.FailedItems {
		if _, ok := tried[item.Key()]; ok {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	kept = append(kept, retry.FailedItems...)
	if resolved := removed - len(retry.FailedItems); resolved > 0 {
		r.Errors = max(r.Errors-resolved, 0)
	}
	if len(kept) == 0 {
		kept = nil
	}
	r.FailedItems = kept
}
