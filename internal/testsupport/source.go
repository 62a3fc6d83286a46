package testsupport

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"strmsync/internal/catalog"
)

// FakeSource is an in-memory catalog.Source. Tests populate the exported
// maps before handing it to the engine; mutations between runs must happen
// while no run is active.
type FakeSource struct {
	ID string

	MovieCats  []catalog.Category
	SeriesCats []catalog.Category
	Movies     map[int][]catalog.Movie
	Series     map[int][]catalog.Series
	Infos      map[int]catalog.SeriesInfo

	// MovieListErr and SeriesListErr fail the listing of a category.
	MovieListErr  map[int]error
	SeriesListErr map[int]error
	// InfoErr fails SeriesInfo for a series ID.
	InfoErr map[int]error
	// MovieInfoErr fails MovieInfo for a stream ID.
	MovieInfoErr map[int]error
	// OnSeriesInfo runs before every SeriesInfo call.
	OnSeriesInfo func(ctx context.Context, id int)

	mu    sync.Mutex
	calls map[string]int
}

// NewFakeSource returns an empty source with initialised maps.
func NewFakeSource() *FakeSource {
	return &FakeSource{
		ID:            "fake:provider",
		Movies:        make(map[int][]catalog.Movie),
		Series:        make(map[int][]catalog.Series),
		Infos:         make(map[int]catalog.SeriesInfo),
		MovieListErr:  make(map[int]error),
		SeriesListErr: make(map[int]error),
		InfoErr:       make(map[int]error),
		MovieInfoErr:  make(map[int]error),
		calls:         make(map[string]int),
	}
}

// AddMovie lists m under categoryID, registering the category if needed.
func (f *FakeSource) AddMovie(categoryID int, m catalog.Movie) {
	if !slices.ContainsFunc(f.MovieCats, func(c catalog.Category) bool { return c.ID == categoryID }) {
		f.MovieCats = append(f.MovieCats, catalog.Category{ID: categoryID, Name: fmt.Sprintf("Movies %d", categoryID)})
	}
	if m.CategoryID == 0 {
		m.CategoryID = categoryID
	}
	f.Movies[categoryID] = append(f.Movies[categoryID], m)
}

// AddSeries lists s under categoryID with episodes per season.
func (f *FakeSource) AddSeries(categoryID int, s catalog.Series, seasons map[int]int) {
	if !slices.ContainsFunc(f.SeriesCats, func(c catalog.Category) bool { return c.ID == categoryID }) {
		f.SeriesCats = append(f.SeriesCats, catalog.Category{ID: categoryID, Name: fmt.Sprintf("Series %d", categoryID)})
	}
	if s.CategoryID == 0 {
		s.CategoryID = categoryID
	}
	f.Series[categoryID] = append(f.Series[categoryID], s)
	info := catalog.SeriesInfo{Series: s, Seasons: make(map[int][]catalog.Episode)}
	for season, count := range seasons {
		for n := 1; n <= count; n++ {
			info.Seasons[season] = append(info.Seasons[season], catalog.Episode{
				ID:                 s.SeriesID*10000 + season*100 + n,
				Season:             season,
				Number:             n,
				ContainerExtension: "mkv",
			})
		}
	}
	f.Infos[s.SeriesID] = info
}

// RemoveMovie drops a stream ID from every category.
func (f *FakeSource) RemoveMovie(streamID int) {
	for cat, movies := range f.Movies {
		f.Movies[cat] = slices.DeleteFunc(movies, func(m catalog.Movie) bool { return m.StreamID == streamID })
	}
}

// Calls returns how often method was invoked.
func (f *FakeSource) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *FakeSource) record(method string) {
	f.mu.Lock()
	f.calls[method]++
	f.mu.Unlock()
}

func (f *FakeSource) Identity() string { return f.ID }

func (f *FakeSource) MovieCategories(ctx context.Context) ([]catalog.Category, error) {
	f.record("MovieCategories")
	return slices.Clone(f.MovieCats), ctx.Err()
}

func (f *FakeSource) SeriesCategories(ctx context.Context) ([]catalog.Category, error) {
	f.record("SeriesCategories")
	return slices.Clone(f.SeriesCats), ctx.Err()
}

func (f *FakeSource) MoviesByCategory(ctx context.Context, categoryID int) ([]catalog.Movie, error) {
	f.record("MoviesByCategory")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.MovieListErr[categoryID]; err != nil {
		return nil, err
	}
	return cloneMovies(f.Movies[categoryID]), nil
}

func (f *FakeSource) SeriesByCategory(ctx context.Context, categoryID int) ([]catalog.Series, error) {
	f.record("SeriesByCategory")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.SeriesListErr[categoryID]; err != nil {
		return nil, err
	}
	out := slices.Clone(f.Series[categoryID])
	for i := range out {
		out[i].CategoryIDs = slices.Clone(out[i].CategoryIDs)
	}
	return out, nil
}

func (f *FakeSource) SeriesInfo(ctx context.Context, seriesID int) (catalog.SeriesInfo, error) {
	f.record("SeriesInfo")
	if f.OnSeriesInfo != nil {
		f.OnSeriesInfo(ctx, seriesID)
	}
	if err := ctx.Err(); err != nil {
		return catalog.SeriesInfo{}, err
	}
	if err := f.InfoErr[seriesID]; err != nil {
		return catalog.SeriesInfo{}, err
	}
	info, ok := f.Infos[seriesID]
	if !ok {
		return catalog.SeriesInfo{}, catalog.ErrNotFound
	}
	return info, nil
}

func (f *FakeSource) MovieInfo(ctx context.Context, streamID int) (catalog.MovieInfo, error) {
	f.record("MovieInfo")
	if err := ctx.Err(); err != nil {
		return catalog.MovieInfo{}, err
	}
	if err := f.MovieInfoErr[streamID]; err != nil {
		return catalog.MovieInfo{}, err
	}
	for _, movies := range f.Movies {
		for _, m := range movies {
			if m.StreamID == streamID {
				return catalog.MovieInfo{Movie: m}, nil
			}
		}
	}
	return catalog.MovieInfo{}, catalog.ErrNotFound
}

func (f *FakeSource) MovieURL(m catalog.Movie) string {
	ext := m.ContainerExtension
	if ext == "" {
		ext = "mp4"
	}
	return fmt.Sprintf("http://provider.invalid/movie/user/pass/%d.%s", m.StreamID, ext)
}

func (f *FakeSource) EpisodeURL(e catalog.Episode) string {
	ext := e.ContainerExtension
	if ext == "" {
		ext = "mp4"
	}
	return fmt.Sprintf("http://provider.invalid/series/user/pass/%d.%s", e.ID, ext)
}

func cloneMovies(in []catalog.Movie) []catalog.Movie {
	out := slices.Clone(in)
	for i := range out {
		out[i].CategoryIDs = slices.Clone(out[i].CategoryIDs)
	}
	return out
}
