// Package preflight provides readiness checks for the catalog provider, the
// identifier search API, and the filesystem paths strmsync depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and refuses to schedule runs when
//     the library or state directory is unusable.
//   - The CLI "strmsync status" command prints every result so operators can
//     see which dependency is unhealthy.
//
// Each check is gated by its config toggle -- disabled features are skipped.
package preflight
