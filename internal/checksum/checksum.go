// Package checksum computes content fingerprints for catalog items and for
// the layout-affecting subset of configuration. Fingerprints cover only the
// provider fields that should trigger a resync; artwork URLs and similar
// cosmetic fields are left out.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"strmsync/internal/catalog"
)

const separator = "|"

// Movie fingerprints name, container extension, and primary category.
func Movie(m catalog.Movie) string {
	return hash(m.Name, m.ContainerExtension, strconv.Itoa(m.CategoryID))
}

// Series fingerprints name, primary category, episode count, and the
// provider's last-modified timestamp.
func Series(s catalog.Series, episodeCount int) string {
	return hash(s.Name, strconv.Itoa(s.CategoryID), strconv.Itoa(episodeCount), formatTime(s.LastModified))
}

// LayoutSettings is the configuration subset that changes where or how files
// land on disk. Any change forces a full resync.
type LayoutSettings struct {
	FolderMode       string
	MoviesDir        string
	SeriesDir        string
	MovieFolders     map[string][]int
	SeriesFolders    map[string][]int
	MovieCategories  []int
	SeriesCategories []int
	MetadataEnabled  bool
	WriteNFO         bool
	MovieOverrides   map[string]int64
	SeriesOverrides  map[string]int64
}

type folderEntry struct {
	Folder     string `json:"folder"`
	Categories []int  `json:"categories"`
}

type overrideEntry struct {
	Key string `json:"key"`
	ID  int64  `json:"id"`
}

type canonicalLayout struct {
	FolderMode       string          `json:"folder_mode"`
	MoviesDir        string          `json:"movies_dir"`
	SeriesDir        string          `json:"series_dir"`
	MovieFolders     []folderEntry   `json:"movie_folders"`
	SeriesFolders    []folderEntry   `json:"series_folders"`
	MovieCategories  []int           `json:"movie_categories"`
	SeriesCategories []int           `json:"series_categories"`
	MetadataEnabled  bool            `json:"metadata_enabled"`
	WriteNFO         bool            `json:"write_nfo"`
	MovieOverrides   []overrideEntry `json:"movie_overrides"`
	SeriesOverrides  []overrideEntry `json:"series_overrides"`
}

// Layout fingerprints layout settings. Map iteration order and slice order
// never affect the result.
func Layout(l LayoutSettings) string {
	canonical := canonicalLayout{
		FolderMode:       strings.ToLower(strings.TrimSpace(l.FolderMode)),
		MoviesDir:        l.MoviesDir,
		SeriesDir:        l.SeriesDir,
		MovieFolders:     canonicalFolders(l.MovieFolders),
		SeriesFolders:    canonicalFolders(l.SeriesFolders),
		MovieCategories:  sortedInts(l.MovieCategories),
		SeriesCategories: sortedInts(l.SeriesCategories),
		MetadataEnabled:  l.MetadataEnabled,
		WriteNFO:         l.WriteNFO,
		MovieOverrides:   canonicalOverrides(l.MovieOverrides),
		SeriesOverrides:  canonicalOverrides(l.SeriesOverrides),
	}
	payload, err := json.Marshal(canonical)
	if err != nil {
		return hash(fmt.Sprintf("%+v", canonical))
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func hash(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, separator)))
	return hex.EncodeToString(sum[:])
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func sortedInts(in []int) []int {
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}

func canonicalFolders(in map[string][]int) []folderEntry {
	out := make([]folderEntry, 0, len(in))
	for folder, ids := range in {
		out = append(out, folderEntry{Folder: folder, Categories: sortedInts(ids)})
	}
	slices.SortFunc(out, func(a, b folderEntry) int { return strings.Compare(a.Folder, b.Folder) })
	return out
}

func canonicalOverrides(in map[string]int64) []overrideEntry {
	out := make([]overrideEntry, 0, len(in))
	for key, id := range in {
		out = append(out, overrideEntry{Key: key, ID: id})
	}
	slices.SortFunc(out, func(a, b overrideEntry) int { return strings.Compare(a.Key, b.Key) })
	return out
}
