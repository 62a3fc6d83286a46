package reconcile

import (
	"context"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"strmsync/internal/catalog"
	"strmsync/internal/checksum"
	"strmsync/internal/delta"
	"strmsync/internal/library"
	"strmsync/internal/logging"
	"strmsync/internal/naming"
	"strmsync/internal/progress"
	"strmsync/internal/snapshot"
)

// seriesJob is one series to write. info is set when the caller already
// fetched the detail payload.
type seriesJob struct {
	series  catalog.Series
	parents []string
	late    bool
	info    *catalog.SeriesInfo
}

type episodeSlot struct {
	season int
	index  int
}

func (r *run) syncSeries(ctx context.Context, cats []catalog.Category) error {
	for i, batch := range batches(cats, r.e.cfg.Sync.BatchSize) {
		if err := r.checkpoint(ctx); err != nil {
			return err
		}
		listings := fetchListings(ctx, r, catalog.KindSeries, batch, r.e.source.SeriesByCategory,
			func(s *catalog.Series, categoryID int) {
				if s.CategoryID == 0 {
					s.CategoryID = categoryID
				}
				s.CategoryIDs = catalog.MergeCategory(catalog.MergeCategory(s.CategoryIDs, s.CategoryID), categoryID)
			})
		if err := r.checkpoint(ctx); err != nil {
			return err
		}

		r.passState(progress.StateComputingDelta)
		items, late := collectSeries(r, listings)
		// Listings carry no episode counts; the snapshot's count stands in so
		// only listing-level changes mark a series modified.
		counts := make(map[int]int, len(items))
		for _, s := range items {
			if entry, ok := r.base.SeriesEntry(s.SeriesID); ok {
				counts[s.SeriesID] = entry.EpisodeCount
			}
		}
		d := delta.Series(items, counts, r.base)
		r.addDelta(d.Stats)
		r.e.tracker.AddTotal(len(items))
		r.logger.Debug("series batch listed",
			loggingBatch(i, len(batch), len(items), len(late), d.Stats)...)

		changed := make(map[int]struct{}, len(d.NewSeries)+len(d.ModifiedSeries))
		for _, s := range slices.Concat(d.NewSeries, d.ModifiedSeries) {
			changed[s.SeriesID] = struct{}{}
		}
		var work []seriesJob
		for _, s := range items {
			if _, ok := changed[s.SeriesID]; !ok {
				entry, _ := r.base.SeriesEntry(s.SeriesID)
				if r.reusable(r.seriesIndex, entry, s.CategoryIDs) {
					r.carry(catalog.KindSeries, entry, s.CategoryIDs)
					continue
				}
			}
			work = append(work, seriesJob{series: s, parents: r.e.layout.parents(catalog.KindSeries, s.CategoryIDs)})
		}
		for _, j := range late {
			work = append(work, seriesJob{series: j.item, parents: j.parents, late: true})
		}

		r.passState(progress.StateSyncingSeries)
		if err := forEach(ctx, r.e.cfg.Sync.Parallelism, work, r.processSeries); err != nil {
			return err
		}
	}
	return nil
}

func collectSeries(r *run, listings [][]catalog.Series) ([]catalog.Series, []lateJob[catalog.Series]) {
	index := make(map[int]int)
	var items []catalog.Series
	for _, listing := range listings {
		for _, s := range listing {
			if at, ok := index[s.SeriesID]; ok {
				for _, id := range s.CategoryIDs {
					items[at].CategoryIDs = catalog.MergeCategory(items[at].CategoryIDs, id)
				}
				continue
			}
			index[s.SeriesID] = len(items)
			items = append(items, s)
		}
	}

	var (
		fresh []catalog.Series
		late  []lateJob[catalog.Series]
	)
	for _, s := range items {
		rec, seen := r.seriesSeen.get(s.SeriesID)
		if !seen {
			r.seriesSeen.put(s.SeriesID, &seenRecord{
				categories: slices.Clone(s.CategoryIDs),
				parents:    r.e.layout.parents(catalog.KindSeries, s.CategoryIDs),
				series:     s,
			})
			fresh = append(fresh, s)
			continue
		}
		added := r.seriesSeen.mergeCategories(rec, s.CategoryIDs)
		if len(added) == 0 {
			continue
		}
		parents := r.seriesSeen.addParents(rec, r.e.layout.parents(catalog.KindSeries, added))
		if len(parents) == 0 {
			continue
		}
		first := rec.series
		first.CategoryIDs = slices.Clone(rec.categories)
		late = append(late, lateJob[catalog.Series]{item: first, parents: parents})
	}
	return fresh, late
}

func (r *run) processSeries(ctx context.Context, job seriesJob) {
	s := job.series
	if len(job.parents) == 0 {
		return
	}
	title := naming.ParseTitle(s.Name)
	year := title.Year
	if year == 0 {
		year = s.Year
	}
	display := naming.DisplayName(title.Name, year)
	failed := progress.FailedItem{
		ItemType:   progress.ItemSeries,
		ProviderID: s.SeriesID,
		Name:       s.Name,
		CategoryID: s.CategoryID,
	}
	protect := func() {
		r.keepPrevious(catalog.KindSeries, s.SeriesID)
		r.keepExisting(r.seriesIndex, job.parents, display)
	}

	if !job.late && job.info == nil && r.smartSkip(s, job.parents, display) {
		return
	}

	info := job.info
	if info == nil {
		fetched, err := r.e.source.SeriesInfo(ctx, s.SeriesID)
		if err != nil {
			r.itemFailed(ctx, failed, err, protect)
			return
		}
		info = &fetched
	}

	folders, id, err := r.titleFolders(ctx, r.seriesIndex, catalog.KindSeries, job.parents, title.Name, display, year, s.TMDBID)
	if err != nil {
		r.itemFailed(ctx, failed, err, protect)
		return
	}

	owner := fmt.Sprintf("series:%d", s.SeriesID)
	existedAnywhere := false
	episodeFailed := false
	var files, dirs []string
	// Outcomes are merged across parent folders so each season and episode
	// counts once however many folders it is written to.
	seasonOutcomes := make(map[int]library.Outcome)
	seasonExisted := make(map[int]bool)
	episodeOutcomes := make(map[episodeSlot]library.Outcome)
	for _, parent := range job.parents {
		dir := filepath.Join(parent, folders[parent])
		if r.seriesIndex.CountUnder(dir) > 0 {
			existedAnywhere = true
		}
		for _, season := range slices.Sorted(maps.Keys(info.Seasons)) {
			if ctx.Err() != nil {
				return
			}
			seasonDir := filepath.Join(dir, naming.SeasonFolder(season))
			if r.seriesIndex.CountUnder(seasonDir) > 0 {
				seasonExisted[season] = true
			}
			seasonOutcome, touched := seasonOutcomes[season]
			if !touched {
				seasonOutcome = library.Unchanged
			}
			// Unnumbered episodes are numbered after the highest listed one.
			highest := 0
			for _, ep := range info.Seasons[season] {
				highest = max(highest, ep.Number)
			}
			for i, ep := range info.Seasons[season] {
				number := ep.Number
				if number <= 0 {
					highest++
					number = highest
				}
				name := naming.EpisodeFileName(display, season, number)
				path, ok := r.claimFile(seasonDir, owner, name,
					strings.TrimSuffix(name, library.PointerExt)+" - "+strconv.Itoa(ep.ID)+library.PointerExt)
				if !ok {
					episodeFailed = true
					r.itemFailed(ctx, episodeItem(s, ep, season, number),
						fmt.Errorf("episode pointer name already taken in %s", seasonDir), nil)
					continue
				}
				o, err := library.WritePointer(r.e.fs, path, r.e.source.EpisodeURL(ep))
				if err != nil {
					episodeFailed = true
					r.itemFailed(ctx, episodeItem(s, ep, season, number), err, func() { r.kept.add(path) })
					if ctx.Err() != nil {
						return
					}
					continue
				}
				r.kept.add(path)
				slot := episodeSlot{season: season, index: i}
				if prev, ok := episodeOutcomes[slot]; ok {
					o = mergeOutcome(prev, o)
				}
				episodeOutcomes[slot] = o
				seasonOutcome = mergeOutcome(seasonOutcome, o)
				files = append(files, r.rel(path))
			}
			seasonOutcomes[season] = seasonOutcome
		}
		dirs = append(dirs, r.rel(dir))

		nfoID := id
		if _, folderID, ok := naming.FolderID(folders[parent]); ok && nfoID == 0 {
			nfoID = folderID
		}
		r.writeNFO(ctx, filepath.Join(dir, library.ShowNFOName), func() ([]byte, error) {
			return library.EncodeShowNFO(library.NFOInfo{
				Title:  title.Name,
				Year:   year,
				TMDBID: nfoID,
				Plot:   s.Plot,
				Poster: s.CoverURL,
			})
		})
	}

	if !job.late {
		seriesOutcome := library.Unchanged
		for season, o := range seasonOutcomes {
			r.seasons.record(levelOutcome(o, seasonExisted[season]))
			seriesOutcome = mergeOutcome(seriesOutcome, o)
		}
		for _, o := range episodeOutcomes {
			r.episodes.record(o)
		}
		r.countItem(&r.series, levelOutcome(seriesOutcome, existedAnywhere))
	}
	if episodeFailed {
		// Left out of the snapshot so the next run processes it again.
		r.keepPrevious(catalog.KindSeries, s.SeriesID)
		return
	}
	count := info.EpisodeCount()
	r.putEntry(catalog.KindSeries, snapshot.Entry{
		ID:           s.SeriesID,
		Name:         s.Name,
		Checksum:     checksum.Series(s, count),
		CategoryID:   s.CategoryID,
		Categories:   slices.Clone(s.CategoryIDs),
		EpisodeCount: count,
		LastModified: s.LastModified,
		Files:        files,
		Folders:      dirs,
	}, job.late)
}

// smartSkip avoids the detail fetch for a series whose provider timestamp
// is unchanged and whose folders already hold at least as many episodes as
// last recorded.
func (r *run) smartSkip(s catalog.Series, parents []string, display string) bool {
	if !r.e.cfg.Sync.SmartSkip || s.LastModified.IsZero() {
		return false
	}
	prev, ok := r.hints.SeriesEntry(s.SeriesID)
	if !ok || prev.EpisodeCount <= 0 || !prev.LastModified.Equal(s.LastModified) {
		return false
	}
	var files, dirs []string
	for _, parent := range parents {
		folder, ok := r.seriesIndex.ExistingFolder(parent, display)
		if !ok {
			return false
		}
		dir := filepath.Join(parent, folder)
		if r.seriesIndex.CountUnder(dir) < prev.EpisodeCount {
			return false
		}
		files = append(files, r.seriesIndex.FilesUnder(dir)...)
		dirs = append(dirs, r.rel(dir))
	}
	prev.Name = s.Name
	prev.CategoryID = s.CategoryID
	prev.Checksum = checksum.Series(s, prev.EpisodeCount)
	prev.Files = r.rels(files)
	prev.Folders = dirs
	r.carry(catalog.KindSeries, prev, s.CategoryIDs)
	r.logger.Debug("series unchanged on disk; detail fetch skipped",
		logging.Int("series_id", s.SeriesID),
		logging.Int("episodes", prev.EpisodeCount))
	return true
}

// levelOutcome lifts merged file outcomes to a folder level: a folder that
// already held pointers is updated, never created.
func levelOutcome(o library.Outcome, existed bool) library.Outcome {
	if o == library.Created && existed {
		return library.Updated
	}
	return o
}

func episodeItem(s catalog.Series, ep catalog.Episode, season, number int) progress.FailedItem {
	return progress.FailedItem{
		ItemType:   progress.ItemEpisode,
		ProviderID: ep.ID,
		Name:       s.Name,
		CategoryID: s.CategoryID,
		SeriesID:   s.SeriesID,
		Season:     season,
		Episode:    number,
	}
}
