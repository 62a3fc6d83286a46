package reconcile

import (
	"path/filepath"
	"slices"
	"testing"

	"strmsync/internal/catalog"
	"strmsync/internal/config"
	"strmsync/internal/library"
)

func TestOrphanSweepAllowed(t *testing.T) {
	tests := []struct {
		name    string
		orphans int
		known   int
		want    bool
	}{
		{name: "nothing to delete", orphans: 0, known: 100, want: true},
		{name: "within ratio", orphans: 5, known: 100, want: true},
		{name: "exactly at ratio", orphans: 20, known: 100, want: true},
		{name: "above ratio", orphans: 30, known: 100, want: false},
		{name: "small library always swept", orphans: 8, known: 10, want: true},
		{name: "just above floor", orphans: 11, known: 11, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := orphanSweepAllowed(tt.orphans, tt.known, 0.2, 10); got != tt.want {
				t.Fatalf("orphanSweepAllowed(%d, %d) = %v, want %v", tt.orphans, tt.known, got, tt.want)
			}
		})
	}
}

func TestBatches(t *testing.T) {
	cats := []catalog.Category{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}, {ID: 5}}
	tests := []struct {
		size int
		want []int
	}{
		{size: 0, want: []int{5}},
		{size: 2, want: []int{2, 2, 1}},
		{size: 5, want: []int{5}},
		{size: 9, want: []int{5}},
	}
	for _, tt := range tests {
		var got []int
		for _, b := range batches(cats, tt.size) {
			got = append(got, len(b))
		}
		if !slices.Equal(got, tt.want) {
			t.Fatalf("batches(size=%d) = %v, want %v", tt.size, got, tt.want)
		}
	}
	if batches(nil, 3) != nil {
		t.Fatal("no categories should yield no batches")
	}
}

func TestLayoutParentsAndSelection(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LibraryDir = "/lib"
	single := newLayout(&cfg)
	if got := single.parents(catalog.KindMovie, []int{7}); !slices.Equal(got, []string{filepath.Join("/lib", "Movies")}) {
		t.Fatalf("single parents = %v", got)
	}
	all := []catalog.Category{{ID: 1}, {ID: 2}, {ID: 3}}
	if got := single.selectCategories(catalog.KindMovie, all); len(got) != 3 {
		t.Fatalf("empty selection should keep everything, got %v", got)
	}
	cfg.Sync.MovieCategories = []int{2}
	if got := newLayout(&cfg).selectCategories(catalog.KindMovie, all); len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("selection = %v", got)
	}

	cfg.Sync.FolderMode = config.FolderModeMultiple
	cfg.Sync.SeriesFolders = map[string][]int{"Kids": {1}, "Docs": {2, 3}}
	multi := newLayout(&cfg)
	want := []string{filepath.Join("/lib", "Series", "Docs"), filepath.Join("/lib", "Series", "Kids")}
	if got := multi.parents(catalog.KindSeries, []int{3, 1}); !slices.Equal(got, want) {
		t.Fatalf("multi parents = %v, want %v", got, want)
	}
	if got := multi.parents(catalog.KindSeries, []int{9}); len(got) != 0 {
		t.Fatalf("unmapped category parents = %v", got)
	}
	if got := multi.selectCategories(catalog.KindMovie, all); len(got) != 0 {
		t.Fatalf("multiple mode without movie folders selects %v", got)
	}
}

func TestMergeOutcome(t *testing.T) {
	tests := []struct {
		a, b, want library.Outcome
	}{
		{library.Unchanged, library.Unchanged, library.Unchanged},
		{library.Unchanged, library.Updated, library.Updated},
		{library.Updated, library.Created, library.Created},
		{library.Created, library.Unchanged, library.Created},
	}
	for _, tt := range tests {
		if got := mergeOutcome(tt.a, tt.b); got != tt.want {
			t.Fatalf("mergeOutcome(%s, %s) = %s, want %s", tt.a, tt.b, got, tt.want)
		}
	}
	if levelOutcome(library.Created, true) != library.Updated {
		t.Fatal("existing folder gaining files counts as updated")
	}
}
