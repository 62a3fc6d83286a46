// Package tmdb provides the minimal TMDB API client used to resolve external
// identifiers for library folder names.
//
// It authenticates requests and exposes movie and TV search with optional
// year filters. Options allow tests to supply custom HTTP clients.
package tmdb
