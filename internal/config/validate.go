package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateProvider(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateMetadata(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.LibraryDir) == "" {
		return errors.New("paths.library_dir must be set")
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateProvider() error {
	if c.Provider.URL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("provider.url is required. Set STRMSYNC_PROVIDER_URL or edit %s (create with 'strmsync config init')", defaultPath)
	}
	parsed, err := url.Parse(c.Provider.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("provider.url %q must be an absolute http(s) URL", c.Provider.URL)
	}
	if c.Provider.Username == "" || c.Provider.Password == "" {
		return errors.New("provider.username and provider.password must be set")
	}
	return nil
}

func (c *Config) validateSync() error {
	switch c.Sync.FolderMode {
	case FolderModeSingle, FolderModeMultiple:
	default:
		return fmt.Errorf("sync.folder_mode must be %q or %q, got %q", FolderModeSingle, FolderModeMultiple, c.Sync.FolderMode)
	}
	if c.Sync.OrphanMaxRatio < 0 || c.Sync.OrphanMaxRatio > 1 {
		return errors.New("sync.orphan_max_ratio must be between 0 and 1")
	}
	if c.Sync.OrphanMinFiles < 0 {
		return errors.New("sync.orphan_min_files must be >= 0")
	}
	if c.Sync.MoviesDir == c.Sync.SeriesDir {
		return errors.New("sync.movies_dir and sync.series_dir must differ")
	}
	if c.Sync.FolderMode == FolderModeMultiple && len(c.Sync.MovieFolders) == 0 && len(c.Sync.SeriesFolders) == 0 {
		return errors.New("sync.folder_mode = \"multiple\" requires sync.movie_folders or sync.series_folders")
	}
	for folder := range c.Sync.MovieFolders {
		if strings.ContainsAny(folder, `/\`) || strings.TrimSpace(folder) == "" {
			return fmt.Errorf("sync.movie_folders: invalid folder name %q", folder)
		}
	}
	for folder := range c.Sync.SeriesFolders {
		if strings.ContainsAny(folder, `/\`) || strings.TrimSpace(folder) == "" {
			return fmt.Errorf("sync.series_folders: invalid folder name %q", folder)
		}
	}
	return nil
}

func (c *Config) validateMetadata() error {
	if !c.Metadata.Enabled {
		return nil
	}
	if c.TMDB.APIKey == "" {
		return errors.New("tmdb.api_key is required when metadata.enabled is true. Set TMDB_API_KEY or disable metadata lookups")
	}
	if c.Metadata.RequestsPerSecond < 0 {
		return errors.New("metadata.requests_per_second must be >= 0")
	}
	if c.Metadata.ShortTitleLength >= c.Metadata.LongTitleLength {
		return errors.New("metadata.short_title_length must be less than metadata.long_title_length")
	}
	return nil
}
