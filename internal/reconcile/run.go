package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"strmsync/internal/catalog"
	"strmsync/internal/delta"
	"strmsync/internal/library"
	"strmsync/internal/logging"
	"strmsync/internal/progress"
	"strmsync/internal/services"
	"strmsync/internal/snapshot"
)

// run holds the state of one Run or Retry call.
type run struct {
	e      *Engine
	logger *slog.Logger
	abort  context.CancelCauseFunc

	mu        sync.Mutex
	result    progress.RunResult
	failed    []progress.FailedItem
	topErrors int
	delta     delta.Stats
	err       error

	movies   tally
	series   tally
	seasons  tally
	episodes tally

	unmatched atomic.Int64

	identity string
	// hints is the previous compatible snapshot, used for smart skip and to
	// protect files of failed items even when the run is not incremental. base is the diff base and is
	// only set when the run is incremental.
	hints *snapshot.Snapshot
	base  *snapshot.Snapshot

	snapMu sync.Mutex
	next   *snapshot.Snapshot

	kept        *pathSet
	claims      *claimSet
	movieIndex  *library.Index
	seriesIndex *library.Index
	movieSeen   *registry
	seriesSeen  *registry

	movieListingFailed  atomic.Bool
	seriesListingFailed atomic.Bool
	concurrentPasses    bool

	// attempted holds the failed-item keys a retry carried through to the
	// end. Retries are sequential so it needs no lock.
	attempted []string
}

func (e *Engine) newRun(runID, trigger string, retry bool) *run {
	if strings.TrimSpace(runID) == "" {
		runID = uuid.NewString()
	}
	if trigger == "" {
		trigger = TriggerManual
	}
	started := e.now()
	e.tracker.Reset(runID, started)
	return &run{
		e:      e,
		logger: e.logger,
		result: progress.RunResult{
			ID:        runID,
			Trigger:   trigger,
			State:     progress.StateInitializing,
			Retry:     retry,
			StartedAt: started,
		},
		kept:       newPathSet(),
		claims:     newClaimSet(),
		movieSeen:  newRegistry(),
		seriesSeen: newRegistry(),
	}
}

func (r *run) setState(s progress.State) {
	r.mu.Lock()
	r.result.State = s
	r.mu.Unlock()
	r.e.tracker.SetPhase(s)
	r.logger.Debug("run state changed", logging.String(logging.FieldPhase, string(s)))
}

// passState publishes a per-pass phase unless both passes run at once.
func (r *run) passState(s progress.State) {
	if !r.concurrentPasses {
		r.setState(s)
	}
}

// checkpoint returns the reason the run must stop, or nil.
func (r *run) checkpoint(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	return context.Cause(ctx)
}

// fail aborts the run. The first cause wins.
func (r *run) fail(err error) {
	if r.abort != nil {
		r.abort(err)
	}
}

func (r *run) addTopError() {
	r.mu.Lock()
	r.topErrors++
	r.mu.Unlock()
}

func (r *run) addDelta(s delta.Stats) {
	s.Removed = 0
	r.mu.Lock()
	r.delta = r.delta.Add(s)
	r.mu.Unlock()
}

func (r *run) execute(ctx context.Context, full bool) error {
	r.setState(progress.StateInitializing)
	if err := r.prepare(full); err != nil {
		return err
	}
	if err := r.checkpoint(ctx); err != nil {
		return err
	}

	r.setState(progress.StateFetchingCatalog)
	movieCats := r.categories(ctx, catalog.KindMovie)
	seriesCats := r.categories(ctx, catalog.KindSeries)
	if err := r.checkpoint(ctx); err != nil {
		return err
	}
	r.logger.Info("catalog categories selected",
		logging.Int("movie_categories", len(movieCats)),
		logging.Int("series_categories", len(seriesCats)),
		logging.Bool("incremental", r.base != nil))

	if err := r.syncPasses(ctx, movieCats, seriesCats); err != nil {
		return err
	}
	if err := r.checkpoint(ctx); err != nil {
		return err
	}
	r.finalizeDelta()

	r.setState(progress.StateCleaningOrphans)
	r.sweepOrphans(ctx)
	if err := r.checkpoint(ctx); err != nil {
		return err
	}

	r.setState(progress.StateSavingSnapshot)
	r.saveSnapshot()
	return nil
}

// prepare loads the previous snapshot, decides whether the run is
// incremental, and indexes the library.
func (r *run) prepare(full bool) error {
	cfg := r.e.cfg
	r.identity = r.e.source.Identity()
	layoutSum := r.e.LayoutChecksum()

	prev, err := r.e.snapshots.LoadLatest()
	if err != nil {
		r.addTopError()
		logging.WarnWithContext(r.logger, "snapshot load failed; running full sync", "snapshot_load_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on paths.state_dir"))
		prev = nil
	}
	if prev.Compatible(r.identity, layoutSum) {
		r.hints = prev
	}

	switch {
	case !cfg.Sync.Incremental:
		r.logger.Debug("incremental sync disabled")
	case full:
		r.logger.Info("full sync requested")
	case prev == nil:
		r.logger.Info("no usable snapshot; running full sync")
	case !prev.Compatible(r.identity, layoutSum):
		r.logger.Info("snapshot does not match provider or layout; running full sync",
			logging.Bool("provider_changed", prev.ProviderID != r.identity),
			logging.Bool("layout_changed", prev.ConfigChecksum != layoutSum))
	default:
		r.base = prev
	}
	r.result.Incremental = r.base != nil
	r.next = snapshot.New(r.e.now(), r.identity, layoutSum)
	r.concurrentPasses = cfg.Sync.ConcurrentPasses && cfg.Sync.Parallelism > 1

	return r.scanLibrary()
}

func (r *run) scanLibrary() error {
	var err error
	if r.movieIndex, err = library.Scan(r.e.fs, r.e.layout.moviesRoot); err != nil {
		return services.Wrap(services.ErrConfiguration, "reconcile", "scan library", "movies root unreadable", err)
	}
	if r.seriesIndex, err = library.Scan(r.e.fs, r.e.layout.seriesRoot); err != nil {
		return services.Wrap(services.ErrConfiguration, "reconcile", "scan library", "series root unreadable", err)
	}
	r.logger.Debug("library indexed",
		logging.Int("movie_files", r.movieIndex.Len()),
		logging.Int("series_files", r.seriesIndex.Len()))
	return nil
}

func (r *run) categories(ctx context.Context, kind catalog.Kind) []catalog.Category {
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
		if ctx.Err() == nil {
			r.listingFailure(ctx, kind, 0, err)
		}
		return nil
	}
	return r.e.layout.selectCategories(kind, cats)
}

// listingFailure counts a failed category listing and disables the orphan
// sweep for its kind, since missing items would look like removals.
func (r *run) listingFailure(ctx context.Context, kind catalog.Kind, categoryID int, err error) {
	if services.IsResourceExhausted(err) {
		r.fail(err)
		return
	}
	r.addTopError()
	if kind == catalog.KindSeries {
		r.seriesListingFailed.Store(true)
	} else {
		r.movieListingFailed.Store(true)
	}
	logging.WarnWithContext(logging.WithContext(ctx, r.logger), "category listing failed", "category_listing_failed",
		logging.String(logging.FieldItemType, string(kind)),
		logging.Int(logging.FieldCategoryID, categoryID),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check provider availability; the next run retries the category"),
		logging.String(logging.FieldImpact, "orphan cleanup is skipped for this media kind"))
}

func (r *run) listingFailed(kind catalog.Kind) bool {
	if kind == catalog.KindSeries {
		return r.seriesListingFailed.Load()
	}
	return r.movieListingFailed.Load()
}

func (r *run) syncPasses(ctx context.Context, movieCats, seriesCats []catalog.Category) error {
	if r.concurrentPasses {
		r.setState(progress.StateSyncing)
		p := pool.New().WithErrors().WithFirstError()
		p.Go(func() error { return r.syncMovies(ctx, movieCats) })
		p.Go(func() error { return r.syncSeries(ctx, seriesCats) })
		return p.Wait()
	}
	r.setState(progress.StateSyncingMovies)
	if err := r.syncMovies(ctx, movieCats); err != nil {
		return err
	}
	r.setState(progress.StateSyncingSeries)
	return r.syncSeries(ctx, seriesCats)
}

// fetchListings lists every category of a batch under the parallelism
// bound. Results keep category order so first-seen de-duplication is stable
// within a batch.
func fetchListings[T any](ctx context.Context, r *run, kind catalog.Kind, cats []catalog.Category,
	fetch func(context.Context, int) ([]T, error), tag func(*T, int)) [][]T {
	out := make([][]T, len(cats))
	p := pool.New().WithMaxGoroutines(max(r.e.cfg.Sync.Parallelism, 1))
	for i, c := range cats {
		if ctx.Err() != nil {
			break
		}
		p.Go(func() {
			items, err := fetch(ctx, c.ID)
			if err != nil {
				if ctx.Err() == nil {
					r.listingFailure(ctx, kind, c.ID, err)
				}
				return
			}
			for j := range items {
				tag(&items[j], c.ID)
			}
			out[i] = items
		})
	}
	p.Wait()
	return out
}

// forEach runs fn over items with bounded parallelism and stops scheduling
// once ctx is done. It returns the cancellation cause, if any.
func forEach[T any](ctx context.Context, limit int, items []T, fn func(context.Context, T)) error {
	p := pool.New().WithMaxGoroutines(max(limit, 1))
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		p.Go(func() { fn(ctx, item) })
	}
	p.Wait()
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	return nil
}

// itemFailed records a per-item failure. Resource exhaustion aborts the
// whole run instead; cancellation is not a failure.
func (r *run) itemFailed(ctx context.Context, item progress.FailedItem, err error, protect func()) {
	if services.IsResourceExhausted(err) {
		r.fail(services.Wrap(services.ErrResourceExhausted, "reconcile", string(item.ItemType), item.Name, err))
		return
	}
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return
	}
	if protect != nil {
		protect()
	}
	item.Error = err.Error()
	item.Timestamp = r.e.now()
	r.mu.Lock()
	r.failed = append(r.failed, item)
	r.mu.Unlock()
	r.e.tracker.Error()
	logging.WarnWithContext(logging.WithContext(ctx, r.logger), "item sync failed", "item_sync_failed",
		logging.String(logging.FieldItemType, string(item.ItemType)),
		logging.Int(logging.FieldProviderID, item.ProviderID),
		logging.String("name", item.Name),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "run 'strmsync retry' to reprocess failed items"))
}

// keepPrevious protects the files a previous snapshot recorded for an item.
func (r *run) keepPrevious(kind catalog.Kind, id int) {
	var (
		entry snapshot.Entry
		ok    bool
	)
	if kind == catalog.KindSeries {
		entry, ok = r.hints.SeriesEntry(id)
	} else {
		entry, ok = r.hints.MovieEntry(id)
	}
	if !ok {
		return
	}
	for _, rel := range entry.Files {
		r.kept.add(r.abs(rel))
	}
}

// keepExisting protects every pointer inside folders matching display.
func (r *run) keepExisting(index *library.Index, parents []string, display string) {
	for _, parent := range parents {
		if folder, ok := index.ExistingFolder(parent, display); ok {
			r.kept.add(index.FilesUnder(filepath.Join(parent, folder))...)
		}
	}
}

func (r *run) putEntry(kind catalog.Kind, entry snapshot.Entry, late bool) {
	if r.next == nil {
		return
	}
	r.snapMu.Lock()
	defer r.snapMu.Unlock()
	target := r.next.Movies
	if kind == catalog.KindSeries {
		target = r.next.Series
	}
	if !late {
		target[entry.ID] = entry
		return
	}
	existing, ok := target[entry.ID]
	if !ok {
		return
	}
	existing.Files = appendUnique(existing.Files, entry.Files...)
	existing.Folders = appendUnique(existing.Folders, entry.Folders...)
	existing.Categories = appendUniqueInt(existing.Categories, entry.Categories...)
	target[entry.ID] = existing
}

// carry registers an unchanged item's files as kept and copies its entry
// into the next snapshot.
func (r *run) carry(kind catalog.Kind, entry snapshot.Entry, categories []int) {
	owner := fmt.Sprintf("%s:%d", kind, entry.ID)
	for _, rel := range entry.Files {
		path := r.abs(rel)
		r.kept.add(path)
		r.claims.claim(path, owner)
	}
	entry.Categories = slices.Clone(categories)
	r.putEntry(kind, entry, false)
	if kind == catalog.KindSeries {
		r.series.record(library.Unchanged)
	} else {
		r.movies.record(library.Unchanged)
	}
	r.e.tracker.Processed()
	r.e.tracker.Skipped()
}

func (r *run) countItem(t *tally, o library.Outcome) {
	t.record(o)
	r.e.tracker.Processed()
	switch o {
	case library.Created:
		r.e.tracker.Created()
	case library.Updated:
		r.e.tracker.Updated()
	default:
		r.e.tracker.Skipped()
	}
}

func (r *run) rel(path string) string {
	rel, err := filepath.Rel(r.e.cfg.Paths.LibraryDir, path)
	if err != nil {
		return path
	}
	return rel
}

func (r *run) abs(rel string) string {
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Join(r.e.cfg.Paths.LibraryDir, rel)
}

func (r *run) rels(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, r.rel(p))
	}
	return out
}

func (r *run) writeNFO(ctx context.Context, path string, encode func() ([]byte, error)) {
	if !r.e.cfg.Sync.WriteNFO {
		return
	}
	data, err := encode()
	if err == nil {
		_, err = library.WriteSidecar(r.e.fs, path, data)
	}
	if err == nil {
		return
	}
	if services.IsResourceExhausted(err) {
		r.fail(services.Wrap(services.ErrResourceExhausted, "reconcile", "write sidecar", path, err))
		return
	}
	logging.WarnWithContext(logging.WithContext(ctx, r.logger), "sidecar write failed", "sidecar_write_failed",
		logging.String("path", path),
		logging.Error(err),
		logging.String(logging.FieldImpact, "media server falls back to its own scraping"))
}

func (r *run) finalizeDelta() {
	if r.base == nil {
		return
	}
	removedMovies := delta.RemovedIDs(r.movieSeen.ids(), r.base.Movies)
	removedSeries := delta.RemovedIDs(r.seriesSeen.ids(), r.base.Series)
	r.mu.Lock()
	r.delta.Removed = len(removedMovies) + len(removedSeries)
	r.mu.Unlock()
	if r.delta.Removed > 0 {
		r.logger.Info("items removed by provider",
			logging.Int("movies", len(removedMovies)),
			logging.Int("series", len(removedSeries)))
	}
}

func (r *run) saveSnapshot() {
	if !r.e.cfg.Sync.Incremental || r.next == nil {
		return
	}
	r.snapMu.Lock()
	// Items in categories that failed to list were not seen; keep their
	// previous entries so the next run still diffs against them.
	if r.base != nil {
		if r.movieListingFailed.Load() {
			for id, entry := range r.base.Movies {
				if _, ok := r.next.Movies[id]; !ok {
					r.next.Movies[id] = entry
				}
			}
		}
		if r.seriesListingFailed.Load() {
			for id, entry := range r.base.Series {
				if _, ok := r.next.Series[id]; !ok {
					r.next.Series[id] = entry
				}
			}
		}
	}
	r.next.Complete = true
	snap := r.next
	r.snapMu.Unlock()

	if err := r.e.snapshots.Save(snap); err != nil {
		r.addTopError()
		logging.WarnWithContext(r.logger, "snapshot save failed", "snapshot_save_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check free space and permissions on paths.state_dir"),
			logging.String(logging.FieldImpact, "the next run is a full sync"))
		return
	}
	r.logger.Debug("snapshot saved",
		logging.Int("movies", len(snap.Movies)),
		logging.Int("series", len(snap.Series)))
}

// finish settles the terminal state and fills the result.
func (r *run) finish(parent context.Context, err error) {
	state := classify(parent, err)
	now := r.e.now()

	r.mu.Lock()
	r.err = err
	r.result.State = state
	r.result.Message = errorMessage(state, err)
	r.result.FinishedAt = now
	r.result.Movies = r.movies.counts()
	r.result.Series = r.series.counts()
	r.result.Seasons = r.seasons.counts()
	r.result.Episodes = r.episodes.counts()
	r.result.Unmatched = int(r.unmatched.Load())
	r.result.Delta = r.delta
	slices.SortStableFunc(r.failed, func(a, b progress.FailedItem) int {
		return strings.Compare(a.Key(), b.Key())
	})
	r.result.FailedItems = slices.Clone(r.failed)
	r.result.Errors = r.topErrors + len(r.failed)
	result := r.result
	r.mu.Unlock()

	r.e.tracker.SetPhase(state)
	attrs := []logging.Attr{
		logging.String("state", string(state)),
		logging.Duration("duration", result.Duration()),
		logging.Bool("incremental", result.Incremental),
		logging.Int("movies_created", result.Movies.Created),
		logging.Int("movies_updated", result.Movies.Updated),
		logging.Int("movies_skipped", result.Movies.Skipped),
		logging.Int("movies_deleted", result.Movies.Deleted),
		logging.Int("series_created", result.Series.Created),
		logging.Int("series_updated", result.Series.Updated),
		logging.Int("episodes_created", result.Episodes.Created),
		logging.Int("episodes_updated", result.Episodes.Updated),
		logging.Int("episodes_deleted", result.Episodes.Deleted),
		logging.Int("errors", result.Errors),
		logging.Int("unmatched", result.Unmatched),
	}
	switch state {
	case progress.StateComplete:
		r.logger.Info("reconciliation complete", logging.Args(attrs...)...)
	case progress.StateCancelled:
		r.logger.Info("reconciliation cancelled", logging.Args(attrs...)...)
	default:
		hint := "inspect the log for the failing step and rerun"
		if services.IsResourceExhausted(err) {
			hint = services.ResourceHint()
		}
		logging.ErrorWithContext(r.logger, "reconciliation failed", "run_failed",
			append(attrs,
				logging.Error(err),
				logging.String(logging.FieldErrorHint, hint))...)
	}
}

func (r *run) resultCopy() *progress.RunResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.result
	out.FailedItems = slices.Clone(r.result.FailedItems)
	out.SkippedKind = slices.Clone(r.result.SkippedKind)
	return &out
}

func (r *run) terminalError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.result.State {
	case progress.StateComplete:
		return nil
	case progress.StateCancelled:
		return services.ErrCancelled
	default:
		return r.err
	}
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if !slices.Contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}

func appendUniqueInt(dst []int, values ...int) []int {
	for _, v := range values {
		if !slices.Contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}

func loggingBatch(i, categories, items, late int, s delta.Stats) []any {
	return logging.Args(
		logging.Int("batch", i+1),
		logging.Int("categories", categories),
		logging.Int("items", items),
		logging.Int("late", late),
		logging.Int("new", s.New),
		logging.Int("modified", s.Modified),
		logging.Int("unchanged", s.Unchanged),
	)
}
