// Package control is the operator surface over the reconciliation engine.
//
// Service serialises runs with an in-process flag plus a flock-held lock
// file in the state directory, so a CLI invocation and a daemon never
// reconcile the same library at once. It also owns the suppress marker that
// keeps scheduled runs away after a library clean, and exposes status,
// history, and the retry queue.
package control
