package reconcile

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"

	"strmsync/internal/catalog"
	"strmsync/internal/checksum"
	"strmsync/internal/config"
	"strmsync/internal/delta"
	"strmsync/internal/library"
	"strmsync/internal/naming"
	"strmsync/internal/progress"
	"strmsync/internal/snapshot"
)

// lateJob writes an item seen in an earlier batch into folders that only its
// newly discovered categories map to.
type lateJob[T any] struct {
	item    T
	parents []string
}

func (r *run) syncMovies(ctx context.Context, cats []catalog.Category) error {
	for i, batch := range batches(cats, r.e.cfg.Sync.BatchSize) {
		if err := r.checkpoint(ctx); err != nil {
			return err
		}
		listings := fetchListings(ctx, r, catalog.KindMovie, batch, r.e.source.MoviesByCategory,
			func(m *catalog.Movie, categoryID int) {
				if m.CategoryID == 0 {
					m.CategoryID = categoryID
				}
				m.CategoryIDs = catalog.MergeCategory(catalog.MergeCategory(m.CategoryIDs, m.CategoryID), categoryID)
			})
		if err := r.checkpoint(ctx); err != nil {
			return err
		}

		r.passState(progress.StateComputingDelta)
		items, late := collectMovies(r, listings)
		d := delta.Movies(items, r.base)
		r.addDelta(d.Stats)
		r.e.tracker.AddTotal(len(items))
		r.logger.Debug("movie batch listed",
			loggingBatch(i, len(batch), len(items), len(late), d.Stats)...)

		changed := make(map[int]struct{}, len(d.NewMovies)+len(d.ModifiedMovies))
		for _, m := range slices.Concat(d.NewMovies, d.ModifiedMovies) {
			changed[m.StreamID] = struct{}{}
		}
		var work []catalog.Movie
		for _, m := range items {
			if _, ok := changed[m.StreamID]; ok {
				work = append(work, m)
				continue
			}
			entry, _ := r.base.MovieEntry(m.StreamID)
			if r.reusable(r.movieIndex, entry, m.CategoryIDs) {
				r.carry(catalog.KindMovie, entry, m.CategoryIDs)
				continue
			}
			work = append(work, m)
		}

		r.passState(progress.StateSyncingMovies)
		parallelism := r.e.cfg.Sync.Parallelism
		if err := forEach(ctx, parallelism, work, func(ctx context.Context, m catalog.Movie) {
			r.processMovie(ctx, m, r.e.layout.parents(catalog.KindMovie, m.CategoryIDs), false)
		}); err != nil {
			return err
		}
		if err := forEach(ctx, parallelism, late, func(ctx context.Context, j lateJob[catalog.Movie]) {
			r.processMovie(ctx, j.item, j.parents, true)
		}); err != nil {
			return err
		}
	}
	return nil
}

// collectMovies flattens a batch listing, keeping the first occurrence of
// every ID. Duplicates inside the batch merge their categories; IDs seen in
// an earlier batch are not processed again and only yield late jobs for
// folders their new categories add.
func collectMovies(r *run, listings [][]catalog.Movie) ([]catalog.Movie, []lateJob[catalog.Movie]) {
	index := make(map[int]int)
	var items []catalog.Movie
	for _, listing := range listings {
		for _, m := range listing {
			if at, ok := index[m.StreamID]; ok {
				for _, id := range m.CategoryIDs {
					items[at].CategoryIDs = catalog.MergeCategory(items[at].CategoryIDs, id)
				}
				continue
			}
			index[m.StreamID] = len(items)
			items = append(items, m)
		}
	}

	var (
		fresh []catalog.Movie
		late  []lateJob[catalog.Movie]
	)
	for _, m := range items {
		rec, seen := r.movieSeen.get(m.StreamID)
		if !seen {
			r.movieSeen.put(m.StreamID, &seenRecord{
				categories: slices.Clone(m.CategoryIDs),
				parents:    r.e.layout.parents(catalog.KindMovie, m.CategoryIDs),
				movie:      m,
			})
			fresh = append(fresh, m)
			continue
		}
		added := r.movieSeen.mergeCategories(rec, m.CategoryIDs)
		if len(added) == 0 {
			continue
		}
		parents := r.movieSeen.addParents(rec, r.e.layout.parents(catalog.KindMovie, added))
		if len(parents) == 0 {
			continue
		}
		first := rec.movie
		first.CategoryIDs = slices.Clone(rec.categories)
		late = append(late, lateJob[catalog.Movie]{item: first, parents: parents})
	}
	return fresh, late
}

// reusable reports whether an unchanged item's snapshot entry still
// describes the disk: same category membership and every file present.
func (r *run) reusable(index *library.Index, entry snapshot.Entry, categories []int) bool {
	if len(entry.Files) == 0 || !sameInts(entry.Categories, categories) {
		return false
	}
	for _, rel := range entry.Files {
		if !index.Has(r.abs(rel)) {
			return false
		}
	}
	return true
}

func (r *run) processMovie(ctx context.Context, m catalog.Movie, parents []string, late bool) {
	if len(parents) == 0 {
		return
	}
	title := naming.ParseTitle(m.Name)
	year := title.Year
	if year == 0 {
		year = m.Year
	}
	display := naming.DisplayName(title.Name, year)
	failed := progress.FailedItem{
		ItemType:   progress.ItemMovie,
		ProviderID: m.StreamID,
		Name:       m.Name,
		CategoryID: m.CategoryID,
	}
	protect := func() {
		r.keepPrevious(catalog.KindMovie, m.StreamID)
		r.keepExisting(r.movieIndex, parents, display)
	}

	folders, id, err := r.titleFolders(ctx, r.movieIndex, catalog.KindMovie, parents, title.Name, display, year, m.TMDBID)
	if err != nil {
		r.itemFailed(ctx, failed, err, protect)
		return
	}

	url := r.e.source.MovieURL(m)
	owner := fmt.Sprintf("movie:%d", m.StreamID)
	outcome := library.Unchanged
	var files, dirs []string
	for _, parent := range parents {
		dir := filepath.Join(parent, folders[parent])
		path, ok := r.claimFile(dir, owner,
			naming.MovieFileName(display, title.Version),
			naming.MovieFileName(display, joinVersion(title.Version, strconv.Itoa(m.StreamID))))
		if !ok {
			r.itemFailed(ctx, failed, fmt.Errorf("pointer name for %q already taken in %s", display, dir), protect)
			return
		}
		o, err := library.WritePointer(r.e.fs, path, url)
		if err != nil {
			r.itemFailed(ctx, failed, err, protect)
			return
		}
		r.kept.add(path)
		outcome = mergeOutcome(outcome, o)
		files = append(files, r.rel(path))
		dirs = append(dirs, r.rel(dir))

		nfoID := id
		if _, folderID, ok := naming.FolderID(folders[parent]); ok && nfoID == 0 {
			nfoID = folderID
		}
		r.writeNFO(ctx, filepath.Join(dir, library.MovieNFOName), func() ([]byte, error) {
			return library.EncodeMovieNFO(library.NFOInfo{
				Title:  title.Name,
				Year:   year,
				TMDBID: nfoID,
				Poster: m.PosterURL,
			})
		})
	}

	entry := snapshot.Entry{
		ID:         m.StreamID,
		Name:       m.Name,
		Checksum:   checksum.Movie(m),
		CategoryID: m.CategoryID,
		Categories: slices.Clone(m.CategoryIDs),
		Files:      files,
		Folders:    dirs,
	}
	r.putEntry(catalog.KindMovie, entry, late)
	if !late {
		r.countItem(&r.movies, outcome)
	}
}

// titleFolders picks the folder name under each parent. Existing folders
// are reused as-is, so identifiers are only resolved when some parent lacks
// one.
func (r *run) titleFolders(ctx context.Context, index *library.Index, kind catalog.Kind, parents []string,
	name, display string, year int, providerID int64) (map[string]string, int64, error) {
	folders := make(map[string]string, len(parents))
	var id int64
	for _, parent := range parents {
		if folder, ok := index.ExistingFolder(parent, display); ok {
			folders[parent] = folder
			if _, folderID, ok := naming.FolderID(folder); ok && id == 0 {
				id = folderID
			}
		}
	}
	if len(folders) == len(parents) {
		return folders, id, nil
	}
	if id == 0 {
		var err error
		if id, err = r.resolveID(ctx, kind, name, display, year, providerID); err != nil {
			return nil, 0, err
		}
	}
	folder := naming.FolderName(name, year, naming.IDKindTMDB, id)
	for _, parent := range parents {
		if _, ok := folders[parent]; ok {
			continue
		}
		index.AddFolder(parent, folder)
		// A concurrent item with the same display name may have won the race.
		if existing, ok := index.ExistingFolder(parent, display); ok {
			folders[parent] = existing
		} else {
			folders[parent] = folder
		}
	}
	return folders, id, nil
}

// resolveID applies the identifier priority: configured override, then the
// provider's own ID, then an external lookup.
func (r *run) resolveID(ctx context.Context, kind catalog.Kind, name, display string, year int, providerID int64) (int64, error) {
	overrides := r.e.cfg.Metadata.MovieOverrides
	if kind == catalog.KindSeries {
		overrides = r.e.cfg.Metadata.SeriesOverrides
	}
	for _, key := range []string{display, name} {
		if id, ok := overrides[config.OverrideKey(key)]; ok {
			return id, nil
		}
	}
	if providerID > 0 {
		return providerID, nil
	}
	if r.e.resolver == nil {
		return 0, nil
	}
	resolve := r.e.resolver.ResolveMovie
	if kind == catalog.KindSeries {
		resolve = r.e.resolver.ResolveSeries
	}
	match, err := resolve(ctx, name, year)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return 0, err
		}
		// Lookup trouble never blocks the pointer; the folder goes without an ID.
		r.unmatched.Add(1)
		return 0, nil
	}
	if !match.Found {
		r.unmatched.Add(1)
		return 0, nil
	}
	return match.ID, nil
}

// claimFile reserves the first free candidate name inside dir.
func (r *run) claimFile(dir, owner string, candidates ...string) (string, bool) {
	for _, name := range candidates {
		path := filepath.Join(dir, name)
		if r.claims.claim(path, owner) {
			return path, true
		}
	}
	return "", false
}

func joinVersion(version, extra string) string {
	if version == "" {
		return "version " + extra
	}
	return version + " version " + extra
}

func sameInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}
