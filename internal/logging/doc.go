// Package logging assembles structured slog loggers and formatting helpers used
// across strmsync.
//
// It owns the configurable console/JSON handlers, routes file output through a
// size-rotated writer, and exposes context-aware helpers so engine code can
// tag log lines with run IDs, phases, and item types automatically. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail.
package logging
