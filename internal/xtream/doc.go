// Package xtream talks to Xtream Codes compatible panels through
// player_api.php and implements catalog.Source.
//
// Every request waits on a rate limiter, runs inside a circuit breaker, and
// is retried with exponential backoff. A 404, or an empty detail payload for
// an unknown ID, maps to catalog.ErrNotFound and is never retried.
package xtream
