// Package reconcile drives a synchronization run: it loads the previous
// snapshot, lists the provider catalog in category batches, writes pointer
// files for new and changed items, sweeps orphans behind a safety ratio, and
// persists the next snapshot.
//
// Run and Retry are the only entry points. Both are safe to cancel; the
// engine still flushes the metadata cache and records a result on the way
// out.
package reconcile
