package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"strmsync/internal/progress"
)

func TestObserveRunAndTextfile(t *testing.T) {
	rec := New()
	started := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	rec.ObserveRun(progress.RunResult{
		State:      progress.StateComplete,
		StartedAt:  started,
		FinishedAt: started.Add(90 * time.Second),
		Movies:     progress.Counts{Created: 3, Skipped: 7},
		Episodes:   progress.Counts{Updated: 2},
	})
	rec.ObserveLookup("movie", "matched")
	rec.OrphanSweepSkipped("series")
	rec.OrphansDeleted("movie", 4)

	path := filepath.Join(t.TempDir(), "strmsync.prom")
	if err := rec.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`strmsync_runs_total{state="complete"} 1`,
		`strmsync_items_total{level="movie",outcome="created"} 3`,
		`strmsync_last_run_duration_seconds 90`,
		`strmsync_orphan_sweeps_skipped_total{kind="series"} 1`,
		`strmsync_orphans_deleted_total{kind="movie"} 4`,
	} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("textfile missing %q:\n%s", want, data)
		}
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	var rec *Recorder
	rec.ObserveRun(progress.RunResult{})
	rec.ObserveLookup("movie", "matched")
	if err := rec.WriteTextfile("/nonexistent/x.prom"); err != nil {
		t.Fatalf("nil recorder should not write: %v", err)
	}
}
