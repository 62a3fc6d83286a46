package naming

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"strmsync/internal/textutil"
)

// IDKindTMDB is the folder suffix kind for TMDB identifiers.
const IDKindTMDB = "tmdbid"

var (
	parenYearPattern  = regexp.MustCompile(`^(.*\S)\s*[\[(]((?:19|20)\d{2})[\])]\s*(.*)$`)
	bareYearPattern   = regexp.MustCompile(`^(.*\S)\s+[-–]?\s*((?:19|20)\d{2})$`)
	idSuffixPattern   = regexp.MustCompile(`\s*\[[a-z]+id-\d+\]\s*$`)
	idSuffixExtractor = regexp.MustCompile(`\[([a-z]+id)-(\d+)\]\s*$`)
)

// Title is the cleaned form of a raw provider title.
type Title struct {
	// Name is the display name without year or tags.
	Name string
	// Year is the release year when the raw title carried one, else 0.
	Year int
	// Version labels the source variant ("4K", "MULTI") and is empty for
	// plain listings.
	Version string
}

// ParseTitle cleans a raw provider title with DefaultRules and extracts the
// release year and version label.
func ParseTitle(raw string) Title {
	version := VersionLabel(raw)
	cleaned := Apply(DefaultRules, raw)
	name, year := ExtractYear(cleaned)
	name = CollapseSpace(Apply(DefaultRules[len(DefaultRules)-2:], name))
	if name == "" {
		name = CollapseSpace(raw)
	}
	return Title{Name: name, Year: year, Version: version}
}

// ExtractYear pulls a release year off the end of s. The year must be
// preceded by other text, so a title that is itself a year ("1917") keeps
// its name and reports no year.
func ExtractYear(s string) (string, int) {
	s = strings.TrimSpace(s)
	if m := parenYearPattern.FindStringSubmatch(s); m != nil && !strings.ContainsAny(m[3], "0123456789") {
		year, _ := strconv.Atoi(m[2])
		rest := strings.TrimSpace(m[3])
		name := m[1]
		if rest != "" {
			name += " " + rest
		}
		return CollapseSpace(name), year
	}
	if m := bareYearPattern.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[2])
		return CollapseSpace(m[1]), year
	}
	return s, 0
}

// DisplayName renders "Name (Year)" or just the name when the year is unknown.
func DisplayName(name string, year int) string {
	name = textutil.SanitizeFileName(name)
	if year > 0 {
		return fmt.Sprintf("%s (%d)", name, year)
	}
	return name
}

// FolderName renders the item folder, adding an "[idkind-id]" suffix when an
// external identifier is known.
func FolderName(name string, year int, idKind string, id int64) string {
	base := DisplayName(name, year)
	if id > 0 && idKind != "" {
		return fmt.Sprintf("%s [%s-%d]", base, idKind, id)
	}
	return base
}

// BaseKey is the lookup key for an existing folder: its name without any
// trailing ID suffix, sanitized and case-folded.
func BaseKey(folder string) string {
	base := idSuffixPattern.ReplaceAllString(folder, "")
	return strings.ToLower(textutil.SanitizeFileName(base))
}

// FolderID returns the ID suffix carried by a folder name.
func FolderID(folder string) (kind string, id int64, ok bool) {
	m := idSuffixExtractor.FindStringSubmatch(folder)
	if m == nil {
		return "", 0, false
	}
	id, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return m[1], id, true
}

// MovieFileName is the pointer file name for a movie inside its folder.
func MovieFileName(display, version string) string {
	if version = textutil.SanitizeFileName(version); version != "" {
		return display + " - " + version + ".strm"
	}
	return display + ".strm"
}

// SeasonFolder names the per-season subfolder.
func SeasonFolder(season int) string {
	return fmt.Sprintf("Season %d", season)
}

// EpisodeFileName is the pointer file name for one episode.
func EpisodeFileName(display string, season, episode int) string {
	return fmt.Sprintf("%s S%02dE%02d.strm", display, season, episode)
}
