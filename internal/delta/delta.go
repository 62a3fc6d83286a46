// Package delta partitions the current catalog against a previous snapshot
// into new, modified, unchanged, and removed items.
package delta

import (
	"slices"

	"strmsync/internal/catalog"
	"strmsync/internal/checksum"
	"strmsync/internal/snapshot"
)

// Stats aggregates delta counts.
type Stats struct {
	Total     int `json:"total"`
	New       int `json:"new"`
	Modified  int `json:"modified"`
	Removed   int `json:"removed"`
	Unchanged int `json:"unchanged"`
}

// Add returns the field-wise sum of s and o.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		Total:     s.Total + o.Total,
		New:       s.New + o.New,
		Modified:  s.Modified + o.Modified,
		Removed:   s.Removed + o.Removed,
		Unchanged: s.Unchanged + o.Unchanged,
	}
}

// Delta is the change set for one run. It is computed fresh and never persisted.
type Delta struct {
	NewMovies        []catalog.Movie
	ModifiedMovies   []catalog.Movie
	RemovedMovieIDs  []int
	NewSeries        []catalog.Series
	ModifiedSeries   []catalog.Series
	RemovedSeriesIDs []int
	Stats            Stats
}

// Movies computes the movie delta. Duplicate IDs keep the first occurrence
// and are not counted. A nil snapshot makes every movie new.
func Movies(current []catalog.Movie, prev *snapshot.Snapshot) Delta {
	var d Delta
	seen := make(map[int]struct{}, len(current))
	for _, m := range current {
		if _, dup := seen[m.StreamID]; dup {
			continue
		}
		seen[m.StreamID] = struct{}{}
		d.Stats.Total++

		entry, ok := prev.MovieEntry(m.StreamID)
		switch {
		case !ok:
			d.NewMovies = append(d.NewMovies, m)
			d.Stats.New++
		case entry.Checksum != checksum.Movie(m):
			d.ModifiedMovies = append(d.ModifiedMovies, m)
			d.Stats.Modified++
		default:
			d.Stats.Unchanged++
		}
	}
	if prev != nil {
		d.RemovedMovieIDs = RemovedIDs(seen, prev.Movies)
		d.Stats.Removed = len(d.RemovedMovieIDs)
	}
	return d
}

// Series computes the series delta. episodeCounts supplies the summed
// per-season episode count for each series ID; a missing count is treated
// as zero.
func Series(current []catalog.Series, episodeCounts map[int]int, prev *snapshot.Snapshot) Delta {
	var d Delta
	seen := make(map[int]struct{}, len(current))
	for _, s := range current {
		if _, dup := seen[s.SeriesID]; dup {
			continue
		}
		seen[s.SeriesID] = struct{}{}
		d.Stats.Total++

		entry, ok := prev.SeriesEntry(s.SeriesID)
		switch {
		case !ok:
			d.NewSeries = append(d.NewSeries, s)
			d.Stats.New++
		case entry.Checksum != checksum.Series(s, episodeCounts[s.SeriesID]):
			d.ModifiedSeries = append(d.ModifiedSeries, s)
			d.Stats.Modified++
		default:
			d.Stats.Unchanged++
		}
	}
	if prev != nil {
		d.RemovedSeriesIDs = RemovedIDs(seen, prev.Series)
		d.Stats.Removed = len(d.RemovedSeriesIDs)
	}
	return d
}

// Merge combines a movie delta and a series delta for reporting.
func Merge(movies, series Delta) Delta {
	return Delta{
		NewMovies:        slices.Concat(movies.NewMovies, series.NewMovies),
		ModifiedMovies:   slices.Concat(movies.ModifiedMovies, series.ModifiedMovies),
		RemovedMovieIDs:  slices.Concat(movies.RemovedMovieIDs, series.RemovedMovieIDs),
		NewSeries:        slices.Concat(movies.NewSeries, series.NewSeries),
		ModifiedSeries:   slices.Concat(movies.ModifiedSeries, series.ModifiedSeries),
		RemovedSeriesIDs: slices.Concat(movies.RemovedSeriesIDs, series.RemovedSeriesIDs),
		Stats:            movies.Stats.Add(series.Stats),
	}
}

// RemovedIDs returns the snapshot IDs absent from seen, sorted ascending.
func RemovedIDs(seen map[int]struct{}, prev map[int]snapshot.Entry) []int {
	var removed []int
	for id := range prev {
		if _, ok := seen[id]; !ok {
			removed = append(removed, id)
		}
	}
	slices.Sort(removed)
	return removed
}
