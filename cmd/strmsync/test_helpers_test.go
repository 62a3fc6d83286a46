package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

type cliTestEnv struct {
	configPath string
	libraryDir string
	stateDir   string
	provider   *fakePanel
}

// fakePanel is a minimal Xtream panel with one movie category.
type fakePanel struct {
	mu     sync.Mutex
	movies []string
	server *httptest.Server
}

func (p *fakePanel) setMovies(names ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.movies = names
}

func (p *fakePanel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Query().Get("action") {
	case "":
		fmt.Fprint(w, `{"user_info":{"auth":1,"status":"Active"}}`)
	case "get_vod_categories":
		fmt.Fprint(w, `[{"category_id":"1","category_name":"Films"}]`)
	case "get_vod_streams":
		p.mu.Lock()
		defer p.mu.Unlock()
		entries := make([]string, 0, len(p.movies))
		for i, name := range p.movies {
			entries = append(entries, fmt.Sprintf(
				`{"stream_id":%d,"name":%q,"container_extension":"mp4","category_id":"1"}`, i+1, name))
		}
		fmt.Fprint(w, "["+strings.Join(entries, ",")+"]")
	case "get_series_categories", "get_series":
		fmt.Fprint(w, `[]`)
	default:
		http.NotFound(w, r)
	}
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("STRMSYNC_PROVIDER_URL", "")
	t.Setenv("STRMSYNC_PROVIDER_USERNAME", "")
	t.Setenv("STRMSYNC_PROVIDER_PASSWORD", "")

	panel := &fakePanel{movies: []string{"Heat (1995)", "Arrival (2016)"}}
	panel.server = httptest.NewServer(panel)
	t.Cleanup(panel.server.Close)

	env := &cliTestEnv{
		configPath: filepath.Join(base, "config.toml"),
		libraryDir: filepath.Join(base, "library"),
		stateDir:   filepath.Join(base, "state"),
		provider:   panel,
	}
	body := fmt.Sprintf(`[paths]
library_dir = %q
state_dir = %q
log_dir = %q

[provider]
url = %q
username = "user"
password = "pass"
request_delay_ms = 0
max_retries = 0

[sync]
schedule_interval_minutes = 60

[metadata]
enabled = false

[logging]
level = "error"
`, env.libraryDir, env.stateDir, filepath.Join(base, "logs"), panel.server.URL)
	if err := os.WriteFile(env.configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
