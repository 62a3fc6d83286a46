package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"strmsync/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func providerServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/player_api.php" || r.URL.Query().Get("password") != "good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckProvider(t *testing.T) {
	active := `{"user_info":{"auth":1,"status":"Active"}}`
	tests := []struct {
		name     string
		body     string
		password string
		wantPass bool
	}{
		{name: "active account", body: active, password: "good", wantPass: true},
		{name: "wrong password", body: active, password: "bad"},
		{name: "auth flag off", body: `{"user_info":{"auth":0}}`, password: "good"},
		{name: "not json", body: `<html></html>`, password: "good"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := providerServer(t, tt.body)
			result := CheckProvider(context.Background(), config.Provider{URL: srv.URL, Username: "u", Password: tt.password})
			if result.Passed != tt.wantPass {
				t.Fatalf("passed = %v (%s), want %v", result.Passed, result.Detail, tt.wantPass)
			}
		})
	}
}

func TestCheckProvider_MissingFields(t *testing.T) {
	if CheckProvider(context.Background(), config.Provider{}).Passed {
		t.Fatal("expected failure for missing URL")
	}
	if CheckProvider(context.Background(), config.Provider{URL: "http://localhost"}).Passed {
		t.Fatal("expected failure for missing credentials")
	}
}

func TestCheckTMDB(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") != "good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"page":1,"results":[]}`))
	}))
	defer srv.Close()

	if result := CheckTMDB(context.Background(), config.TMDB{APIKey: "good", BaseURL: srv.URL}); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if result := CheckTMDB(context.Background(), config.TMDB{APIKey: "bad", BaseURL: srv.URL}); result.Passed {
		t.Fatal("expected failure for bad key")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Paths.LibraryDir = t.TempDir()
	cfg.Metadata.Enabled = false

	results := RunAll(context.Background(), &cfg)
	// Should have state + library directory checks
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
	if blocking := Blocking(results); len(blocking) != 0 {
		t.Fatalf("unexpected blocking checks: %+v", blocking)
	}
}

func TestRunAll_IncludesProviderWhenConfigured(t *testing.T) {
	srv := providerServer(t, `{"user_info":{"auth":1}}`)

	cfg := config.Default()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Paths.LibraryDir = filepath.Join(t.TempDir(), "missing")
	cfg.Provider.URL = srv.URL
	cfg.Provider.Username = "u"
	cfg.Provider.Password = "good"
	cfg.Metadata.Enabled = false

	results := RunAll(context.Background(), &cfg)
	found := false
	for _, r := range results {
		if r.Name == "Catalog provider" {
			found = true
			if !r.Passed {
				t.Errorf("provider check failed: %s", r.Detail)
			}
		}
	}
	if !found {
		t.Fatal("expected provider check in results")
	}
	blocking := Blocking(results)
	if len(blocking) != 1 || blocking[0].Name != "Library directory" {
		t.Fatalf("blocking = %+v", blocking)
	}
}
