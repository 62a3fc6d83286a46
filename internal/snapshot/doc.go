// Package snapshot persists the last known catalog state used as the diff
// base for incremental runs.
//
// A snapshot is trusted only when it was fully written: Save refuses
// incomplete documents and writes through a temp file plus rename, and
// LoadLatest walks candidates newest-first, skipping anything truncated,
// hand-edited beyond parsing, or marked incomplete. At most a handful of
// files are retained.
package snapshot
