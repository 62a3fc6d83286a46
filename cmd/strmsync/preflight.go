package main

import (
	"context"
	"fmt"
	"strings"

	"strmsync/internal/preflight"
	"strmsync/internal/services"
)

// requirePreflight refuses to start a run while a required dependency is
// unreachable; the run would otherwise fail every listing and skip the
// orphan sweep anyway.
func requirePreflight(ctx context.Context, a *app) error {
	blocking := preflight.Blocking(preflight.RunAll(ctx, a.cfg))
	if len(blocking) == 0 {
		return nil
	}
	details := make([]string, 0, len(blocking))
	for _, r := range blocking {
		details = append(details, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}
	return services.Wrap(services.ErrConfiguration, "cli", "preflight", strings.Join(details, "; "), nil)
}
