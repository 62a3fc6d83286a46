// Package catalog defines the provider-side data model (categories, movies,
// series, episodes) and the Source interface the reconciliation engine
// consumes. Values are snapshots of provider state at fetch time and are
// recreated every run.
package catalog
