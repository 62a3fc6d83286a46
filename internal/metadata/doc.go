// Package metadata resolves catalog titles to external database identifiers.
//
// A Resolver consults a persistent Cache first, then queries a Searcher under
// a concurrency cap and a request rate limit. The top result is discarded
// when its year disagrees with the requested or embedded year, or when it is
// a very short title that has nothing in common with a long query. Both hits
// and misses are cached; lookups that time out are not, so they are tried
// again on the next run.
package metadata
