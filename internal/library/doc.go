// Package library owns every mutation of the on-disk pointer tree.
//
// All access goes through an afero.Fs so the reconciliation engine can be
// exercised against an in-memory filesystem. Pointer files hold a single
// playback URL and are rewritten only when their content changes.
package library
