// Package progress tracks a live reconciliation run and remembers finished
// ones.
//
// Tracker counters are atomics so workers can bump them without locking
// while a status poller reads them. History is a small ring of RunResults
// persisted to a JSON file; the failed items of the most recent result form
// the retry queue.
package progress
