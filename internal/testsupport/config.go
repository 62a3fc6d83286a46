package testsupport

import (
	"path/filepath"
	"testing"

	"strmsync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Provider credentials point at a placeholder host, metadata lookups are
// disabled, and passes run sequentially so counts are deterministic.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LibraryDir = filepath.Join(base, "library")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Provider.URL = "http://provider.invalid"
	cfgVal.Provider.Username = "user"
	cfgVal.Provider.Password = "pass"
	cfgVal.Metadata.Enabled = false
	cfgVal.Sync.ConcurrentPasses = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithTMDBKey enables metadata lookups with the given key.
func WithTMDBKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.TMDB.APIKey = key
		b.cfg.Metadata.Enabled = key != ""
	}
}

// WithParallelism overrides the fan-out bound.
func WithParallelism(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sync.Parallelism = n
	}
}

// WithConcurrentPasses runs the movie and series passes side by side.
func WithConcurrentPasses(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sync.ConcurrentPasses = enabled
	}
}

// WithBatchSize overrides the category batch size.
func WithBatchSize(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sync.BatchSize = n
	}
}

// WithMultipleFolders switches to multiple folder mode with the given
// movie and series folder maps.
func WithMultipleFolders(movies, series map[string][]int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sync.FolderMode = config.FolderModeMultiple
		b.cfg.Sync.MovieFolders = movies
		b.cfg.Sync.SeriesFolders = series
	}
}

// WithNFO toggles sidecar generation.
func WithNFO(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sync.WriteNFO = enabled
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
