package reconcile

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"strmsync/internal/catalog"
	"strmsync/internal/logging"
	"strmsync/internal/naming"
	"strmsync/internal/progress"
	"strmsync/internal/textutil"
)

var errNoFolder = errors.New("no configured folder maps the item's categories")

// retryLookup caches category listings for by-name fallbacks within one
// retry.
type retryLookup struct {
	movies map[int][]catalog.Movie
	series map[int][]catalog.Series
}

func (r *run) retry(ctx context.Context, failed []progress.FailedItem) error {
	r.setState(progress.StateInitializing)
	r.identity = r.e.source.Identity()
	if err := r.scanLibrary(); err != nil {
		return err
	}
	latest, err := r.e.snapshots.LoadLatest()
	if err != nil {
		logging.WarnWithContext(r.logger, "snapshot load failed; retried items are not recorded", "snapshot_load_failed",
			logging.Error(err))
	}
	if latest.Compatible(r.identity, r.e.LayoutChecksum()) {
		r.hints = latest
		r.next = latest.Clone(r.e.now())
	}

	var (
		movies []progress.FailedItem
		series []progress.FailedItem
		seen   = make(map[string]struct{}, len(failed))
	)
	for _, item := range failed {
		key := item.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if item.ItemType == progress.ItemMovie {
			movies = append(movies, item)
		} else {
			series = append(series, item)
		}
	}
	r.e.tracker.AddTotal(len(movies) + len(series))
	r.logger.Info("retrying failed items",
		logging.Int("movies", len(movies)),
		logging.Int("series", len(series)))

	lookup := &retryLookup{movies: make(map[int][]catalog.Movie), series: make(map[int][]catalog.Series)}

	r.setState(progress.StateSyncingMovies)
	for _, item := range movies {
		if err := r.checkpoint(ctx); err != nil {
			return err
		}
		r.retryItem(ctx, item, func() {
			m, err := r.retryMovie(ctx, lookup, item)
			if err != nil {
				r.itemFailed(ctx, item, err, nil)
				return
			}
			parents := r.e.layout.parents(catalog.KindMovie, m.CategoryIDs)
			if len(parents) == 0 {
				r.itemFailed(ctx, item, errNoFolder, nil)
				return
			}
			r.processMovie(ctx, m, parents, false)
		})
	}

	r.setState(progress.StateSyncingSeries)
	for _, item := range series {
		if err := r.checkpoint(ctx); err != nil {
			return err
		}
		r.retryItem(ctx, item, func() {
			info, err := r.retrySeries(ctx, lookup, item)
			if err != nil {
				r.itemFailed(ctx, item, err, nil)
				return
			}
			parents := r.e.layout.parents(catalog.KindSeries, info.Series.CategoryIDs)
			if len(parents) == 0 {
				r.itemFailed(ctx, item, errNoFolder, nil)
				return
			}
			r.processSeries(ctx, seriesJob{series: info.Series, parents: parents, info: &info})
		})
	}
	if err := r.checkpoint(ctx); err != nil {
		return err
	}

	r.setState(progress.StateSavingSnapshot)
	r.saveSnapshot()
	return nil
}

// retryItem runs process for one failed item and marks it attempted unless
// the run was cancelled or aborted underneath it. An interrupted item keeps
// its place in the retry queue.
func (r *run) retryItem(ctx context.Context, item progress.FailedItem, process func()) {
	process()
	if ctx.Err() == nil {
		r.attempted = append(r.attempted, item.Key())
	}
}

func (r *run) retryMovie(ctx context.Context, lookup *retryLookup, item progress.FailedItem) (catalog.Movie, error) {
	info, err := r.e.source.MovieInfo(ctx, item.ProviderID)
	if err == nil {
		m := info.Movie
		if m.StreamID == 0 {
			m.StreamID = item.ProviderID
		}
		if m.Name == "" {
			m.Name = item.Name
		}
		return withCategory(m, item.CategoryID), nil
	}
	if !errors.Is(err, catalog.ErrNotFound) {
		return catalog.Movie{}, err
	}
	m, ok := r.findMovie(ctx, lookup, item)
	if !ok {
		return catalog.Movie{}, fmt.Errorf("movie %d no longer listed: %w", item.ProviderID, err)
	}
	r.logger.Info("failed movie re-added under a new id",
		logging.Int("old_id", item.ProviderID),
		logging.Int("new_id", m.StreamID),
		logging.String("name", item.Name))
	return m, nil
}

func (r *run) retrySeries(ctx context.Context, lookup *retryLookup, item progress.FailedItem) (catalog.SeriesInfo, error) {
	id := item.ProviderID
	if item.ItemType == progress.ItemEpisode {
		id = item.SeriesID
	}
	info, err := r.e.source.SeriesInfo(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		s, ok := r.findSeries(ctx, lookup, item)
		if !ok {
			return catalog.SeriesInfo{}, fmt.Errorf("series %d no longer listed: %w", id, err)
		}
		r.logger.Info("failed series re-added under a new id",
			logging.Int("old_id", id),
			logging.Int("new_id", s.SeriesID),
			logging.String("name", item.Name))
		if info, err = r.e.source.SeriesInfo(ctx, s.SeriesID); err != nil {
			return catalog.SeriesInfo{}, err
		}
		info.Series = mergeSeries(info.Series, s)
		return info, nil
	}
	if err != nil {
		return catalog.SeriesInfo{}, err
	}
	if info.Series.SeriesID == 0 {
		info.Series.SeriesID = id
	}
	if info.Series.Name == "" {
		info.Series.Name = item.Name
	}
	if info.Series.CategoryID == 0 {
		info.Series.CategoryID = item.CategoryID
	}
	if info.Series.CategoryID > 0 {
		info.Series.CategoryIDs = catalog.MergeCategory(info.Series.CategoryIDs, info.Series.CategoryID)
	}
	return info, nil
}

// findMovie looks for the same title under a different ID, first in the
// item's own category and then in every selected category.
func (r *run) findMovie(ctx context.Context, lookup *retryLookup, item progress.FailedItem) (catalog.Movie, bool) {
	want := naming.ParseTitle(item.Name)
	for _, categoryID := range r.searchOrder(ctx, catalog.KindMovie, item.CategoryID) {
		listing, ok := lookup.movies[categoryID]
		if !ok {
			var err error
			if listing, err = r.e.source.MoviesByCategory(ctx, categoryID); err != nil {
				continue
			}
			lookup.movies[categoryID] = listing
		}
		for _, m := range listing {
			if m.StreamID != item.ProviderID && sameTitle(want, naming.ParseTitle(m.Name)) {
				return withCategory(m, categoryID), true
			}
		}
	}
	return catalog.Movie{}, false
}

func (r *run) findSeries(ctx context.Context, lookup *retryLookup, item progress.FailedItem) (catalog.Series, bool) {
	want := naming.ParseTitle(item.Name)
	oldID := item.ProviderID
	if item.ItemType == progress.ItemEpisode {
		oldID = item.SeriesID
	}
	for _, categoryID := range r.searchOrder(ctx, catalog.KindSeries, item.CategoryID) {
		listing, ok := lookup.series[categoryID]
		if !ok {
			var err error
			if listing, err = r.e.source.SeriesByCategory(ctx, categoryID); err != nil {
				continue
			}
			lookup.series[categoryID] = listing
		}
		for _, s := range listing {
			if s.SeriesID != oldID && sameTitle(want, naming.ParseTitle(s.Name)) {
				if s.CategoryID == 0 {
					s.CategoryID = categoryID
				}
				s.CategoryIDs = catalog.MergeCategory(catalog.MergeCategory(s.CategoryIDs, s.CategoryID), categoryID)
				return s, true
			}
		}
	}
	return catalog.Series{}, false
}

// searchOrder lists the item's own category first, then every other
// selected category of the kind.
func (r *run) searchOrder(ctx context.Context, kind catalog.Kind, first int) []int {
	var order []int
	if first > 0 {
		order = append(order, first)
	}
	var (
		cats []catalog.Category
		err  error
	)
	if kind == catalog.KindSeries {
		cats, err = r.e.source.SeriesCategories(ctx)
	} else {
		cats, err = r.e.source.MovieCategories(ctx)
	}
	if err != nil {
		return order
	}
	for _, c := range r.e.layout.selectCategories(kind, cats) {
		if !slices.Contains(order, c.ID) {
			order = append(order, c.ID)
		}
	}
	return order
}

func sameTitle(a, b naming.Title) bool {
	if textutil.Fold(a.Name) != textutil.Fold(b.Name) {
		return false
	}
	return a.Year == 0 || b.Year == 0 || a.Year == b.Year
}

func withCategory(m catalog.Movie, categoryID int) catalog.Movie {
	if m.CategoryID == 0 {
		m.CategoryID = categoryID
	}
	for _, id := range []int{m.CategoryID, categoryID} {
		if id > 0 {
			m.CategoryIDs = catalog.MergeCategory(m.CategoryIDs, id)
		}
	}
	return m
}

// mergeSeries fills detail-payload gaps from the listing entry.
func mergeSeries(detail, listing catalog.Series) catalog.Series {
	if detail.SeriesID == 0 {
		detail.SeriesID = listing.SeriesID
	}
	if detail.Name == "" {
		detail.Name = listing.Name
	}
	if detail.CategoryID == 0 {
		detail.CategoryID = listing.CategoryID
	}
	if detail.LastModified.IsZero() {
		detail.LastModified = listing.LastModified
	}
	if detail.TMDBID == 0 {
		detail.TMDBID = listing.TMDBID
	}
	if detail.CoverURL == "" {
		detail.CoverURL = listing.CoverURL
	}
	for _, id := range listing.CategoryIDs {
		detail.CategoryIDs = catalog.MergeCategory(detail.CategoryIDs, id)
	}
	if detail.CategoryID > 0 {
		detail.CategoryIDs = catalog.MergeCategory(detail.CategoryIDs, detail.CategoryID)
	}
	return detail
}
