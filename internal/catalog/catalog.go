package catalog

import (
	"context"
	"errors"
	"slices"
	"time"
)

// ErrNotFound reports that the provider no longer knows the requested ID.
var ErrNotFound = errors.New("catalog item not found")

// Kind distinguishes the two top-level media variants.
type Kind string

const (
	KindMovie  Kind = "movie"
	KindSeries Kind = "series"
)

// Category is a provider grouping of movies or series.
type Category struct {
	ID   int
	Name string
}

// Movie is a playable VOD item as listed by the provider.
type Movie struct {
	StreamID           int
	Name               string
	ContainerExtension string
	CategoryID         int
	// CategoryIDs collects every category the item was listed under during
	// the current run, CategoryID included.
	CategoryIDs []int
	TMDBID      int64
	Year        int
	PosterURL   string
	Added       time.Time
}

// Series is a show listing. Episodes are fetched separately through SeriesInfo.
type Series struct {
	SeriesID     int
	Name         string
	CategoryID   int
	CategoryIDs  []int
	LastModified time.Time
	TMDBID       int64
	Year         int
	CoverURL     string
	Plot         string
}

// Episode is one playable episode of a series season.
type Episode struct {
	ID                 int
	Season             int
	Number             int
	Title              string
	ContainerExtension string
}

// SeriesInfo is the detail payload for a series: its episodes keyed by season.
type SeriesInfo struct {
	Series  Series
	Seasons map[int][]Episode
}

// EpisodeCount sums the per-season episode lists.
func (i SeriesInfo) EpisodeCount() int {
	total := 0
	for _, episodes := range i.Seasons {
		total += len(episodes)
	}
	return total
}

// MovieInfo is the detail payload for a single movie.
type MovieInfo struct {
	Movie Movie
}

// Source is the catalog provider the engine reconciles against. Request
// pacing and retry policy belong to the implementation.
type Source interface {
	// Identity is a stable string naming the provider account; snapshots
	// taken against another identity are never used as a diff base.
	Identity() string
	MovieCategories(ctx context.Context) ([]Category, error)
	SeriesCategories(ctx context.Context) ([]Category, error)
	MoviesByCategory(ctx context.Context, categoryID int) ([]Movie, error)
	SeriesByCategory(ctx context.Context, categoryID int) ([]Series, error)
	SeriesInfo(ctx context.Context, seriesID int) (SeriesInfo, error)
	MovieInfo(ctx context.Context, streamID int) (MovieInfo, error)
	MovieURL(m Movie) string
	EpisodeURL(e Episode) string
}

// HasCategory reports whether id is among ids.
func HasCategory(ids []int, id int) bool {
	return slices.Contains(ids, id)
}

// MergeCategory appends id to ids when missing.
func MergeCategory(ids []int, id int) []int {
	if HasCategory(ids, id) {
		return ids
	}
	return append(ids, id)
}
