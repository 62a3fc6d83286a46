package main

import (
	"strings"
	"testing"
	"time"

	"strmsync/internal/progress"
)

func TestRenderRunSummary(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	result := progress.RunResult{
		ID:          "0f9c2a5e-1111-2222-3333-444455556666",
		Trigger:     "manual",
		State:       progress.StateComplete,
		Incremental: true,
		StartedAt:   start,
		FinishedAt:  start.Add(90 * time.Second),
		Movies:      progress.Counts{Created: 3, Skipped: 7},
		Episodes:    progress.Counts{Updated: 2, Deleted: 1},
		Errors:      1,
		SkippedKind: []string{"series"},
	}

	out := renderRunSummary(result, false)
	for _, want := range []string{"Run 0f9c2a5e", "[OK] complete", "incremental", "1m30s", "skipped for series", "Episodes"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatal("summary should not be colorized")
	}
}

func TestRenderFailedTableMarksEpisodes(t *testing.T) {
	out := renderFailedTable([]progress.FailedItem{
		{ItemType: progress.ItemMovie, ProviderID: 7, Name: "Heat", Error: "detail fetch failed"},
		{ItemType: progress.ItemEpisode, ProviderID: 901, SeriesID: 9, Name: "Harbor Lights", Season: 2, Episode: 5, Error: strings.Repeat("x", 80)},
	})
	if !strings.Contains(out, "S02E05") {
		t.Fatalf("episode coordinates missing:\n%s", out)
	}
	if strings.Contains(out, strings.Repeat("x", 61)) {
		t.Fatalf("long errors should be truncated:\n%s", out)
	}
}

func TestRenderProgressLine(t *testing.T) {
	if got := renderProgressLine(progress.Progress{Phase: progress.StateFetchingCatalog}); got != "fetching_catalog..." {
		t.Fatalf("got %q", got)
	}
	got := renderProgressLine(progress.Progress{Phase: progress.StateSyncingMovies, Total: 4, Processed: 1})
	if !strings.Contains(got, "25.0%") || !strings.Contains(got, "(1/4, 0 errors)") {
		t.Fatalf("got %q", got)
	}
}
