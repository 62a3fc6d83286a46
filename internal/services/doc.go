// Package services defines shared utilities consumed by the reconciliation
// engine, the control service, and the external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, phase names, item types, and
//     triggers for logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures (transient, not found, resource exhaustion, cancellation)
//     with errors.Is.
//
// Use these helpers when wiring new engine logic so error handling and
// observability stay uniform across the codebase.
package services
