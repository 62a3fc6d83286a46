package reconcile

import (
	"path/filepath"
	"slices"

	"strmsync/internal/catalog"
	"strmsync/internal/checksum"
	"strmsync/internal/config"
	"strmsync/internal/textutil"
)

// layout decides where items land on disk.
type layout struct {
	multiple      bool
	moviesRoot    string
	seriesRoot    string
	movieFolders  map[string][]int
	seriesFolders map[string][]int
	movieCats     []int
	seriesCats    []int
}

func newLayout(cfg *config.Config) layout {
	return layout{
		multiple:      cfg.Sync.FolderMode == config.FolderModeMultiple,
		moviesRoot:    filepath.Clean(cfg.MoviesRoot()),
		seriesRoot:    filepath.Clean(cfg.SeriesRoot()),
		movieFolders:  cfg.Sync.MovieFolders,
		seriesFolders: cfg.Sync.SeriesFolders,
		movieCats:     cfg.Sync.MovieCategories,
		seriesCats:    cfg.Sync.SeriesCategories,
	}
}

func (l layout) root(kind catalog.Kind) string {
	if kind == catalog.KindSeries {
		return l.seriesRoot
	}
	return l.moviesRoot
}

// parents returns the directories an item with the given categories is
// written under. Single folder mode always yields the kind root.
func (l layout) parents(kind catalog.Kind, categoryIDs []int) []string {
	root := l.root(kind)
	if !l.multiple {
		return []string{root}
	}
	folders := l.movieFolders
	if kind == catalog.KindSeries {
		folders = l.seriesFolders
	}
	var out []string
	for name, cats := range folders {
		for _, id := range categoryIDs {
			if slices.Contains(cats, id) {
				out = append(out, filepath.Join(root, textutil.SanitizeFileName(name)))
				break
			}
		}
	}
	slices.Sort(out)
	return out
}

// selectCategories filters a provider listing down to the configured
// categories. An empty selection in single folder mode keeps everything.
func (l layout) selectCategories(kind catalog.Kind, cats []catalog.Category) []catalog.Category {
	var allowed []int
	switch {
	case l.multiple:
		folders := l.movieFolders
		if kind == catalog.KindSeries {
			folders = l.seriesFolders
		}
		for _, ids := range folders {
			allowed = append(allowed, ids...)
		}
	case kind == catalog.KindSeries:
		allowed = l.seriesCats
	default:
		allowed = l.movieCats
	}
	if len(allowed) == 0 && !l.multiple {
		return cats
	}
	out := make([]catalog.Category, 0, len(cats))
	for _, c := range cats {
		if slices.Contains(allowed, c.ID) {
			out = append(out, c)
		}
	}
	return out
}

func layoutSettings(cfg *config.Config) checksum.LayoutSettings {
	return checksum.LayoutSettings{
		FolderMode:       cfg.Sync.FolderMode,
		MoviesDir:        cfg.Sync.MoviesDir,
		SeriesDir:        cfg.Sync.SeriesDir,
		MovieFolders:     cfg.Sync.MovieFolders,
		SeriesFolders:    cfg.Sync.SeriesFolders,
		MovieCategories:  cfg.Sync.MovieCategories,
		SeriesCategories: cfg.Sync.SeriesCategories,
		MetadataEnabled:  cfg.Metadata.Enabled,
		WriteNFO:         cfg.Sync.WriteNFO,
		MovieOverrides:   cfg.Metadata.MovieOverrides,
		SeriesOverrides:  cfg.Metadata.SeriesOverrides,
	}
}

// batches splits cats into groups of size; size <= 0 is one batch.
func batches(cats []catalog.Category, size int) [][]catalog.Category {
	if len(cats) == 0 {
		return nil
	}
	if size <= 0 || size >= len(cats) {
		return [][]catalog.Category{cats}
	}
	return slices.Collect(slices.Chunk(cats, size))
}
