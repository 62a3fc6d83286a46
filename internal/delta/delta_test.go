package delta

import (
	"slices"
	"testing"
	"time"

	"strmsync/internal/catalog"
	"strmsync/internal/checksum"
	"strmsync/internal/snapshot"
)

func movie(id int, name string) catalog.Movie {
	return catalog.Movie{StreamID: id, Name: name, ContainerExtension: "mkv", CategoryID: 1}
}

func snapshotWithMovies(movies ...catalog.Movie) *snapshot.Snapshot {
	snap := snapshot.New(time.Now(), "p", "c")
	for _, m := range movies {
		snap.Movies[m.StreamID] = snapshot.Entry{ID: m.StreamID, Name: m.Name, Checksum: checksum.Movie(m)}
	}
	snap.Complete = true
	return snap
}

func ids(movies []catalog.Movie) []int {
	out := make([]int, 0, len(movies))
	for _, m := range movies {
		out = append(out, m.StreamID)
	}
	return out
}

func TestMoviesPartitionsCatalog(t *testing.T) {
	prev := snapshotWithMovies(movie(1, "One"), movie(2, "Two"), movie(3, "Three"))
	current := []catalog.Movie{movie(2, "Two"), movie(3, "Three (Remastered)"), movie(4, "Four")}

	d := Movies(current, prev)

	if got := ids(d.NewMovies); !slices.Equal(got, []int{4}) {
		t.Fatalf("new = %v, want [4]", got)
	}
	if got := ids(d.ModifiedMovies); !slices.Equal(got, []int{3}) {
		t.Fatalf("modified = %v, want [3]", got)
	}
	if !slices.Equal(d.RemovedMovieIDs, []int{1}) {
		t.Fatalf("removed = %v, want [1]", d.RemovedMovieIDs)
	}
	want := Stats{Total: 3, New: 1, Modified: 1, Removed: 1, Unchanged: 1}
	if d.Stats != want {
		t.Fatalf("stats = %+v, want %+v", d.Stats, want)
	}
}

func TestMoviesWithoutSnapshotMarksEverythingNew(t *testing.T) {
	d := Movies([]catalog.Movie{movie(1, "a"), movie(2, "b")}, nil)
	if d.Stats.New != 2 || d.Stats.Removed != 0 || len(d.RemovedMovieIDs) != 0 {
		t.Fatalf("unexpected delta %+v", d.Stats)
	}
}

func TestMoviesDuplicateIDsFirstSeenWins(t *testing.T) {
	first := movie(5, "Five")
	dup := first
	dup.CategoryID = 9
	dup.Name = "Five (other listing)"

	d := Movies([]catalog.Movie{first, dup}, nil)
	if d.Stats.Total != 1 || len(d.NewMovies) != 1 {
		t.Fatalf("duplicate counted: %+v", d.Stats)
	}
	if d.NewMovies[0].Name != "Five" {
		t.Fatalf("expected first occurrence to win, got %q", d.NewMovies[0].Name)
	}
}

func TestSeriesUsesEpisodeCounts(t *testing.T) {
	modified := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	show := catalog.Series{SeriesID: 10, Name: "Show", CategoryID: 2, LastModified: modified}
	gone := catalog.Series{SeriesID: 11, Name: "Gone", CategoryID: 2}

	prev := snapshot.New(time.Now(), "p", "c")
	prev.Series[10] = snapshot.Entry{ID: 10, Checksum: checksum.Series(show, 8), EpisodeCount: 8}
	prev.Series[11] = snapshot.Entry{ID: 11, Checksum: checksum.Series(gone, 1)}
	prev.Complete = true

	d := Series([]catalog.Series{show}, map[int]int{10: 8}, prev)
	if d.Stats.Unchanged != 1 || d.Stats.Modified != 0 {
		t.Fatalf("expected unchanged series, got %+v", d.Stats)
	}
	if !slices.Equal(d.RemovedSeriesIDs, []int{11}) {
		t.Fatalf("removed = %v", d.RemovedSeriesIDs)
	}

	d = Series([]catalog.Series{show, show}, map[int]int{10: 9}, prev)
	if d.Stats.Modified != 1 || d.Stats.Total != 1 {
		t.Fatalf("expected one modified series, got %+v", d.Stats)
	}
}

func TestMergeSumsStats(t *testing.T) {
	m := Delta{NewMovies: []catalog.Movie{movie(1, "a")}, Stats: Stats{Total: 3, New: 1, Unchanged: 2}}
	s := Delta{RemovedSeriesIDs: []int{7}, Stats: Stats{Total: 2, Modified: 1, Removed: 1, Unchanged: 1}}

	merged := Merge(m, s)
	want := Stats{Total: 5, New: 1, Modified: 1, Removed: 1, Unchanged: 3}
	if merged.Stats != want {
		t.Fatalf("stats = %+v, want %+v", merged.Stats, want)
	}
	if len(merged.NewMovies) != 1 || !slices.Equal(merged.RemovedSeriesIDs, []int{7}) {
		t.Fatalf("merged lists lost entries: %+v", merged)
	}
}
