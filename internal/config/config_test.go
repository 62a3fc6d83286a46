package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"strmsync/internal/config"
)

func setProviderEnv(t *testing.T) {
	t.Helper()
	t.Setenv("STRMSYNC_PROVIDER_URL", "http://provider.test:8080/")
	t.Setenv("STRMSYNC_PROVIDER_USERNAME", "alice")
	t.Setenv("STRMSYNC_PROVIDER_PASSWORD", "secret")
	t.Setenv("TMDB_API_KEY", "test-key")
}

func TestLoadDefaultConfigUsesEnvAndExpandsPaths(t *testing.T) {
	setProviderEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if want := filepath.Join(tempHome, ".local", "share", "strmsync"); cfg.Paths.StateDir != want {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, want)
	}
	if cfg.Provider.URL != "http://provider.test:8080" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Provider.URL)
	}
	if cfg.Provider.Password != "secret" {
		t.Fatalf("expected password from env, got %q", cfg.Provider.Password)
	}
	if cfg.TMDB.APIKey != "test-key" {
		t.Fatalf("expected TMDB key from env, got %q", cfg.TMDB.APIKey)
	}
	if cfg.Sync.OrphanMaxRatio != 0.2 || cfg.Sync.OrphanMinFiles != 10 {
		t.Fatalf("unexpected orphan defaults: %v %d", cfg.Sync.OrphanMaxRatio, cfg.Sync.OrphanMinFiles)
	}
	if cfg.Metadata.LookupTimeoutSeconds != 5 || cfg.Metadata.YearTolerance != 2 {
		t.Fatalf("unexpected metadata defaults: %+v", cfg.Metadata)
	}
	if cfg.MoviesRoot() != filepath.Join(cfg.Paths.LibraryDir, "Movies") {
		t.Fatalf("unexpected movies root %q", cfg.MoviesRoot())
	}
}

func TestLoadCustomPathNormalizesValues(t *testing.T) {
	setProviderEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `
[paths]
library_dir = "~/lib"
state_dir = "~/state"

[sync]
folder_mode = "MULTIPLE"
parallelism = 0
movie_categories = [5, 3, 5]

[sync.movie_folders]
Kids = [15, 12, 12]

[metadata.movie_overrides]
"  The   Thing " = 1091

[logging]
format = "JSON"
level = "DEBUG"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom path to exist, got %q %v", resolved, exists)
	}
	if cfg.Paths.LibraryDir != filepath.Join(tempHome, "lib") {
		t.Fatalf("unexpected library dir %q", cfg.Paths.LibraryDir)
	}
	if cfg.Sync.FolderMode != config.FolderModeMultiple {
		t.Fatalf("expected multiple folder mode, got %q", cfg.Sync.FolderMode)
	}
	if cfg.Sync.Parallelism != 1 {
		t.Fatalf("expected parallelism clamped to 1, got %d", cfg.Sync.Parallelism)
	}
	if got := cfg.Sync.MovieCategories; len(got) != 2 || got[0] != 3 || got[1] != 5 {
		t.Fatalf("expected sorted unique categories, got %v", got)
	}
	if got := cfg.Sync.MovieFolders["Kids"]; len(got) != 2 || got[0] != 12 {
		t.Fatalf("unexpected folder mapping %v", got)
	}
	if cfg.Metadata.MovieOverrides["the thing"] != 1091 {
		t.Fatalf("expected normalized override key, got %v", cfg.Metadata.MovieOverrides)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging config %+v", cfg.Logging)
	}
}

func TestValidateRejectsInvalidSettings(t *testing.T) {
	base := func() config.Config {
		cfg := config.Default()
		cfg.Provider.URL = "http://provider.test"
		cfg.Provider.Username = "u"
		cfg.Provider.Password = "p"
		cfg.TMDB.APIKey = "k"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{name: "missing provider url", mutate: func(c *config.Config) { c.Provider.URL = "" }, want: "provider.url"},
		{name: "relative provider url", mutate: func(c *config.Config) { c.Provider.URL = "provider" }, want: "absolute"},
		{name: "missing credentials", mutate: func(c *config.Config) { c.Provider.Password = "" }, want: "provider.username"},
		{name: "bad folder mode", mutate: func(c *config.Config) { c.Sync.FolderMode = "nested" }, want: "sync.folder_mode"},
		{name: "ratio out of range", mutate: func(c *config.Config) { c.Sync.OrphanMaxRatio = 1.5 }, want: "orphan_max_ratio"},
		{name: "same roots", mutate: func(c *config.Config) { c.Sync.SeriesDir = c.Sync.MoviesDir }, want: "must differ"},
		{name: "multiple without mapping", mutate: func(c *config.Config) { c.Sync.FolderMode = config.FolderModeMultiple }, want: "requires"},
		{name: "missing tmdb key", mutate: func(c *config.Config) { c.TMDB.APIKey = "" }, want: "tmdb.api_key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}

	cfg := base()
	cfg.Metadata.Enabled = false
	cfg.TMDB.APIKey = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected metadata-disabled config to validate, got %v", err)
	}
}

func TestCreateSampleProducesParsableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if cfg.Sync.MoviesDir != "Movies" || cfg.Sync.OrphanMaxRatio != 0.2 {
		t.Fatalf("unexpected sample values: %+v", cfg.Sync)
	}
}
