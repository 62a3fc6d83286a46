package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	LibraryDir  string `toml:"library_dir"`
	StateDir    string `toml:"state_dir"`
	LogDir      string `toml:"log_dir"`
	MetricsFile string `toml:"metrics_file"`
}

// Provider contains connection settings for the Xtream-compatible catalog provider.
type Provider struct {
	URL             string `toml:"url"`
	Username        string `toml:"username"`
	Password        string `toml:"password"`
	UserAgent       string `toml:"user_agent"`
	RequestDelayMS  int    `toml:"request_delay_ms"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	MaxRetries      int    `toml:"max_retries"`
	BreakerFailures int    `toml:"breaker_failures"`
}

// TMDB contains configuration for The Movie Database API.
type TMDB struct {
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
	Language string `toml:"language"`
}

// Folder modes for the on-disk layout.
const (
	FolderModeSingle   = "single"
	FolderModeMultiple = "multiple"
)

// Sync contains reconciliation engine settings.
type Sync struct {
	Incremental             bool             `toml:"incremental"`
	Parallelism             int              `toml:"parallelism"`
	ConcurrentPasses        bool             `toml:"concurrent_passes"`
	BatchSize               int              `toml:"batch_size"`
	FolderMode              string           `toml:"folder_mode"`
	MoviesDir               string           `toml:"movies_dir"`
	SeriesDir               string           `toml:"series_dir"`
	MovieFolders            map[string][]int `toml:"movie_folders"`
	SeriesFolders           map[string][]int `toml:"series_folders"`
	MovieCategories         []int            `toml:"movie_categories"`
	SeriesCategories        []int            `toml:"series_categories"`
	WriteNFO                bool             `toml:"write_nfo"`
	SmartSkip               bool             `toml:"smart_skip"`
	OrphanMaxRatio          float64          `toml:"orphan_max_ratio"`
	OrphanMinFiles          int              `toml:"orphan_min_files"`
	ScheduleIntervalMinutes int              `toml:"schedule_interval_minutes"`
}

// Metadata contains external identifier lookup settings.
type Metadata struct {
	Enabled              bool             `toml:"enabled"`
	MaxConcurrent        int              `toml:"max_concurrent"`
	RequestsPerSecond    float64          `toml:"requests_per_second"`
	LookupTimeoutSeconds int              `toml:"lookup_timeout_seconds"`
	CacheMaxAgeDays      int              `toml:"cache_max_age_days"`
	YearTolerance        int              `toml:"year_tolerance"`
	ShortTitleLength     int              `toml:"short_title_length"`
	LongTitleLength      int              `toml:"long_title_length"`
	RetryWithoutYear     bool             `toml:"retry_without_year"`
	MovieOverrides       map[string]int64 `toml:"movie_overrides"`
	SeriesOverrides      map[string]int64 `toml:"series_overrides"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
	MaxSizeMB     int    `toml:"max_size_mb"`
	MaxBackups    int    `toml:"max_backups"`
}

// Config encapsulates all configuration values for strmsync.
//
// Configuration sections by subsystem:
//   - Paths: library root, private state, logs, metrics textfile
//   - Provider: catalog provider credentials and request policy
//   - TMDB: external identifier search
//   - Sync: engine batching, layout, and orphan safety
//   - Metadata: identifier lookup limits, cache, and overrides
//   - Logging: log format, level, and rotation
type Config struct {
	Paths    Paths    `toml:"paths"`
	Provider Provider `toml:"provider"`
	TMDB     TMDB     `toml:"tmdb"`
	Sync     Sync     `toml:"sync"`
	Metadata Metadata `toml:"metadata"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("strmsync.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories. LibraryDir is
// created on a best-effort basis so status commands work while network
// storage is offline.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.LibraryDir) != "" {
		_ = os.MkdirAll(c.Paths.LibraryDir, 0o755)
	}
	return nil
}

// SnapshotDir is where catalog snapshots are kept.
func (c *Config) SnapshotDir() string {
	return filepath.Join(c.Paths.StateDir, "snapshots")
}

// HistoryPath is the persisted run history document.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.json")
}

// MetadataCachePath is the sqlite database backing the identifier cache.
func (c *Config) MetadataCachePath() string {
	return filepath.Join(c.Paths.StateDir, "metadata_cache.db")
}

// LockPath is the cross-process run lock.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "strmsync.lock")
}

// SuppressPath is the marker file that blocks scheduled runs.
func (c *Config) SuppressPath() string {
	return filepath.Join(c.Paths.StateDir, "suppress")
}

// MoviesRoot is the library subtree holding movie folders.
func (c *Config) MoviesRoot() string {
	return filepath.Join(c.Paths.LibraryDir, c.Sync.MoviesDir)
}

// SeriesRoot is the library subtree holding series folders.
func (c *Config) SeriesRoot() string {
	return filepath.Join(c.Paths.LibraryDir, c.Sync.SeriesDir)
}

// ScheduleInterval returns the daemon trigger interval.
func (c *Config) ScheduleInterval() time.Duration {
	return time.Duration(c.Sync.ScheduleIntervalMinutes) * time.Minute
}

// LookupTimeout returns the per-lookup deadline for identifier searches.
func (c *Config) LookupTimeout() time.Duration {
	return time.Duration(c.Metadata.LookupTimeoutSeconds) * time.Second
}

// CacheMaxAge returns how long identifier cache entries stay fresh.
func (c *Config) CacheMaxAge() time.Duration {
	return time.Duration(c.Metadata.CacheMaxAgeDays) * 24 * time.Hour
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
