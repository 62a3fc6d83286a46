package reconcile

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"strmsync/internal/catalog"
	"strmsync/internal/library"
	"strmsync/internal/logging"
)

// orphanSweepAllowed is the mass-deletion guard. Libraries at or below
// minFiles known pointers are always swept; larger ones only when the
// orphan share stays within maxRatio.
func orphanSweepAllowed(orphans, known int, maxRatio float64, minFiles int) bool {
	if orphans == 0 || known <= minFiles {
		return true
	}
	return float64(orphans)/float64(known) <= maxRatio
}

func (r *run) sweepOrphans(ctx context.Context) {
	r.sweepKind(ctx, catalog.KindMovie, r.movieIndex)
	r.sweepKind(ctx, catalog.KindSeries, r.seriesIndex)
}

func (r *run) sweepKind(ctx context.Context, kind catalog.Kind, index *library.Index) {
	var orphans []string
	for _, path := range index.Files() {
		if !r.kept.has(path) {
			orphans = append(orphans, path)
		}
	}
	known := index.Len()
	logger := r.logger.With(logging.String(logging.FieldItemType, string(kind)))

	reason := ""
	switch {
	case r.listingFailed(kind):
		reason = "a category listing failed this run"
	case !orphanSweepAllowed(len(orphans), known, r.e.cfg.Sync.OrphanMaxRatio, r.e.cfg.Sync.OrphanMinFiles):
		reason = "orphan share exceeds sync.orphan_max_ratio"
	}
	if reason != "" {
		if len(orphans) == 0 && !r.listingFailed(kind) {
			return
		}
		logging.WarnWithContext(logger, "orphan cleanup skipped", "orphan_sweep_skipped",
			logging.String("reason", reason),
			logging.Int("orphans", len(orphans)),
			logging.Int("known", known),
			logging.String(logging.FieldErrorHint, "verify the provider catalog; run 'strmsync run --full' once it is healthy"),
			logging.String(logging.FieldImpact, "stale pointer files stay on disk until a later run"))
		r.mu.Lock()
		r.result.SkippedKind = append(r.result.SkippedKind, string(kind))
		r.mu.Unlock()
		r.e.metrics.OrphanSweepSkipped(string(kind))
		return
	}
	if len(orphans) == 0 {
		return
	}

	root := r.e.layout.root(kind)
	removedDirs := make(map[string]struct{})
	deleted := 0
	for _, path := range orphans {
		if ctx.Err() != nil {
			break
		}
		if err := library.Remove(r.e.fs, path); err != nil {
			logging.WarnWithContext(logger, "orphan removal failed", "orphan_remove_failed",
				logging.String("path", path),
				logging.Error(err))
			continue
		}
		deleted++
		if kind == catalog.KindSeries {
			r.episodes.deleted.Add(1)
		} else {
			r.movies.deleted.Add(1)
		}
		if _, err := library.PruneEmptyDirs(r.e.fs, filepath.Dir(path), root); err != nil {
			logging.WarnWithContext(logger, "directory prune failed", "orphan_prune_failed",
				logging.String("path", filepath.Dir(path)),
				logging.Error(err))
			continue
		}
		if kind == catalog.KindSeries {
			r.countRemovedSeriesDirs(path, root, removedDirs)
		}
	}
	r.e.tracker.Deleted(deleted)
	r.e.metrics.OrphansDeleted(string(kind), deleted)
	logger.Info("orphan pointers removed",
		logging.Int("deleted", deleted),
		logging.Int("known", known))
}

// countRemovedSeriesDirs credits season and series deletions once their
// folders are gone.
func (r *run) countRemovedSeriesDirs(path, root string, removed map[string]struct{}) {
	seasonDir := filepath.Dir(path)
	seriesDir := seasonDir
	if strings.HasPrefix(filepath.Base(seasonDir), "Season ") {
		seriesDir = filepath.Dir(seasonDir)
		if r.dirGone(seasonDir, removed) {
			r.seasons.deleted.Add(1)
		}
	}
	if seriesDir != root && r.dirGone(seriesDir, removed) {
		r.series.deleted.Add(1)
	}
}

func (r *run) dirGone(dir string, removed map[string]struct{}) bool {
	if _, counted := removed[dir]; counted {
		return false
	}
	if ok, err := afero.DirExists(r.e.fs, dir); err != nil || ok {
		return false
	}
	removed[dir] = struct{}{}
	return true
}
