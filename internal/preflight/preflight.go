package preflight

import (
	"context"

	"strmsync/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
	// Required marks checks whose failure must stop a run.
	Required bool `json:"required"`
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		required(CheckDirectoryAccess("State directory", cfg.Paths.StateDir)),
		required(CheckDirectoryAccess("Library directory", cfg.Paths.LibraryDir)),
	}

	if cfg.Provider.URL != "" {
		results = append(results, required(CheckProvider(ctx, cfg.Provider)))
	}

	if cfg.Metadata.Enabled && cfg.TMDB.APIKey != "" {
		results = append(results, CheckTMDB(ctx, cfg.TMDB))
	}

	return results
}

// Blocking returns the failed required checks.
func Blocking(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Required && !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

func required(r Result) Result {
	r.Required = true
	return r
}
