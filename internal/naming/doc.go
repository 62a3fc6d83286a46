// Package naming turns raw provider titles into library folder and file
// names.
//
// Cleanup is an ordered list of independent Rules, each a pure string
// transform, so a rule can be tested or reordered without touching the
// others. The package also renders "[tmdbid-N]" folder suffixes and derives
// the suffix-free keys used to recognise folders that already exist.
package naming
