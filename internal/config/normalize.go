package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeProvider()
	c.normalizeTMDB()
	c.normalizeSync()
	c.normalizeMetadata()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.LibraryDir, err = expandPath(strings.TrimSpace(c.Paths.LibraryDir)); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.MetricsFile, err = expandPath(strings.TrimSpace(c.Paths.MetricsFile)); err != nil {
		return fmt.Errorf("paths.metrics_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeProvider() {
	lookup := func(current *string, env string) {
		*current = strings.TrimSpace(*current)
		if *current != "" {
			return
		}
		if value, ok := os.LookupEnv(env); ok {
			*current = strings.TrimSpace(value)
		}
	}
	lookup(&c.Provider.URL, "STRMSYNC_PROVIDER_URL")
	lookup(&c.Provider.Username, "STRMSYNC_PROVIDER_USERNAME")
	lookup(&c.Provider.Password, "STRMSYNC_PROVIDER_PASSWORD")
	c.Provider.URL = strings.TrimRight(c.Provider.URL, "/")
	if strings.TrimSpace(c.Provider.UserAgent) == "" {
		c.Provider.UserAgent = defaultUserAgent
	}
	if c.Provider.RequestDelayMS < 0 {
		c.Provider.RequestDelayMS = 0
	}
	if c.Provider.TimeoutSeconds <= 0 {
		c.Provider.TimeoutSeconds = defaultProviderTimeoutSeconds
	}
	if c.Provider.MaxRetries < 0 {
		c.Provider.MaxRetries = 0
	}
	if c.Provider.BreakerFailures <= 0 {
		c.Provider.BreakerFailures = defaultBreakerFailures
	}
}

func (c *Config) normalizeTMDB() {
	c.TMDB.APIKey = strings.TrimSpace(c.TMDB.APIKey)
	if c.TMDB.APIKey == "" {
		if value, ok := os.LookupEnv("TMDB_API_KEY"); ok {
			c.TMDB.APIKey = strings.TrimSpace(value)
		}
	}
	c.TMDB.BaseURL = strings.TrimSpace(c.TMDB.BaseURL)
	if c.TMDB.BaseURL == "" {
		c.TMDB.BaseURL = defaultTMDBBaseURL
	}
	if strings.TrimSpace(c.TMDB.Language) == "" {
		c.TMDB.Language = defaultTMDBLanguage
	}
}

func (c *Config) normalizeSync() {
	c.Sync.FolderMode = strings.ToLower(strings.TrimSpace(c.Sync.FolderMode))
	if c.Sync.FolderMode == "" {
		c.Sync.FolderMode = FolderModeSingle
	}
	if c.Sync.Parallelism <= 0 {
		c.Sync.Parallelism = 1
	}
	if c.Sync.BatchSize < 0 {
		c.Sync.BatchSize = 0
	}
	c.Sync.MoviesDir = strings.Trim(strings.TrimSpace(c.Sync.MoviesDir), "/")
	if c.Sync.MoviesDir == "" {
		c.Sync.MoviesDir = defaultMoviesDir
	}
	c.Sync.SeriesDir = strings.Trim(strings.TrimSpace(c.Sync.SeriesDir), "/")
	if c.Sync.SeriesDir == "" {
		c.Sync.SeriesDir = defaultSeriesDir
	}
	c.Sync.MovieCategories = sortedUnique(c.Sync.MovieCategories)
	c.Sync.SeriesCategories = sortedUnique(c.Sync.SeriesCategories)
	for folder, ids := range c.Sync.MovieFolders {
		c.Sync.MovieFolders[folder] = sortedUnique(ids)
	}
	for folder, ids := range c.Sync.SeriesFolders {
		c.Sync.SeriesFolders[folder] = sortedUnique(ids)
	}
	if c.Sync.ScheduleIntervalMinutes < 0 {
		c.Sync.ScheduleIntervalMinutes = 0
	}
}

func (c *Config) normalizeMetadata() {
	if c.Metadata.MaxConcurrent <= 0 {
		c.Metadata.MaxConcurrent = defaultMetadataMaxConcurrent
	}
	if c.Metadata.LookupTimeoutSeconds <= 0 {
		c.Metadata.LookupTimeoutSeconds = defaultLookupTimeoutSeconds
	}
	if c.Metadata.CacheMaxAgeDays <= 0 {
		c.Metadata.CacheMaxAgeDays = defaultCacheMaxAgeDays
	}
	if c.Metadata.YearTolerance < 0 {
		c.Metadata.YearTolerance = defaultYearTolerance
	}
	c.Metadata.MovieOverrides = normalizeOverrides(c.Metadata.MovieOverrides)
	c.Metadata.SeriesOverrides = normalizeOverrides(c.Metadata.SeriesOverrides)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = defaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups < 0 {
		c.Logging.MaxBackups = 0
	}
}

func sortedUnique(ids []int) []int {
	if len(ids) == 0 {
		return nil
	}
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

// normalizeOverrides lowercases and trims override keys so lookups by
// display name are case-insensitive.
func normalizeOverrides(in map[string]int64) map[string]int64 {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]int64, len(in))
	for key, id := range in {
		key = OverrideKey(key)
		if key == "" || id <= 0 {
			continue
		}
		out[key] = id
	}
	return out
}

// OverrideKey normalizes a display name for override table lookups.
func OverrideKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
