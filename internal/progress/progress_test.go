package progress

import (
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"strmsync/internal/logging"
)

func TestTrackerConcurrentIncrements(t *testing.T) {
	tr := NewTracker()
	tr.Reset("run-1", time.Unix(100, 0))
	tr.AddTotal(400)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				tr.Processed()
				tr.Created()
			}
		}()
	}
	wg.Wait()
	tr.SetPhase(StateSyncingMovies)

	snap := tr.Snapshot()
	if snap.Processed != 400 || snap.Created != 400 {
		t.Fatalf("unexpected counters %+v", snap)
	}
	if snap.Percent() != 100 {
		t.Fatalf("expected 100%%, got %v", snap.Percent())
	}
	if snap.Phase != StateSyncingMovies || snap.RunID != "run-1" {
		t.Fatalf("unexpected phase/run %+v", snap)
	}

	tr.Reset("run-2", time.Unix(200, 0))
	if got := tr.Snapshot(); got.Processed != 0 || got.Phase != StateInitializing {
		t.Fatalf("reset did not clear tracker: %+v", got)
	}
}

func TestHistoryRingAndFailedItems(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	h := LoadHistory(path, 3, logging.NewNop())

	for i := range 5 {
		r := RunResult{ID: string(rune('a' + i)), State: StateComplete}
		r.FailedItems = []FailedItem{{ItemType: ItemMovie, ProviderID: i, Error: "boom"}}
		if err := h.Append(r); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	runs := h.List()
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	if runs[0].ID != "e" || runs[2].ID != "c" {
		t.Fatalf("expected newest first, got %s..%s", runs[0].ID, runs[2].ID)
	}
	if len(runs[0].FailedItems) != 1 {
		t.Fatal("newest run must keep its failed items")
	}
	for _, r := range runs[1:] {
		if len(r.FailedItems) != 0 {
			t.Fatalf("older run %s kept failed items", r.ID)
		}
	}

	reloaded := LoadHistory(path, 3, logging.NewNop())
	if got := reloaded.FailedItems(); len(got) != 1 || got[0].ProviderID != 4 {
		t.Fatalf("retry queue not restored: %+v", got)
	}
}

func TestHistoryCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	if err := os.WriteFile(path, []byte(`{"runs": [`), 0o644); err != nil {
		t.Fatal(err)
	}
	h := LoadHistory(path, 0, logging.NewNop())
	if len(h.List()) != 0 {
		t.Fatal("expected empty history")
	}
	if err := h.ReplaceLast(RunResult{}); err != ErrEmptyHistory {
		t.Fatalf("expected ErrEmptyHistory, got %v", err)
	}
}

func TestRunResultMerge(t *testing.T) {
	movie := func(id int) FailedItem { return FailedItem{ItemType: ItemMovie, ProviderID: id} }
	episode := FailedItem{ItemType: ItemEpisode, ProviderID: 90, SeriesID: 9}
	tests := []struct {
		name       string
		queued     []FailedItem
		attempted  []string
		retryFails []FailedItem
		wantErrors int
		wantKeys   []string
	}{
		{
			name:       "resolved items leave the queue",
			queued:     []FailedItem{movie(1), movie(2)},
			attempted:  []string{"movie:1", "movie:2"},
			retryFails: []FailedItem{movie(2)},
			wantErrors: 2,
			wantKeys:   []string{"movie:2"},
		},
		{
			name:       "unattempted items stay queued",
			queued:     []FailedItem{movie(1), episode},
			attempted:  []string{"movie:1"},
			wantErrors: 2,
			wantKeys:   []string{"series:9"},
		},
		{
			name:       "nothing attempted keeps everything",
			queued:     []FailedItem{movie(1), episode},
			wantErrors: 3,
			wantKeys:   []string{"movie:1", "series:9"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			last := RunResult{Movies: Counts{Created: 10}, Errors: 3, FailedItems: tt.queued}
			last.Merge(RunResult{Movies: Counts{Created: 1}, FailedItems: tt.retryFails}, tt.attempted)
			if last.Movies.Created != 11 {
				t.Fatalf("movies created = %d, want 11", last.Movies.Created)
			}
			if last.Errors != tt.wantErrors {
				t.Fatalf("errors = %d, want %d", last.Errors, tt.wantErrors)
			}
			var keys []string
			for _, item := range last.FailedItems {
				keys = append(keys, item.Key())
			}
			if !slices.Equal(keys, tt.wantKeys) {
				t.Fatalf("failed keys = %v, want %v", keys, tt.wantKeys)
			}
		})
	}
}

func TestFailedItemKey(t *testing.T) {
	ep := FailedItem{ItemType: ItemEpisode, ProviderID: 900, SeriesID: 42}
	if ep.Key() != "series:42" {
		t.Fatalf("episode key = %q", ep.Key())
	}
	mv := FailedItem{ItemType: ItemMovie, ProviderID: 7}
	if mv.Key() != "movie:7" {
		t.Fatalf("movie key = %q", mv.Key())
	}
}
