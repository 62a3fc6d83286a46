// Package textutil provides text processing utilities for title comparison
// and filename sanitization.
//
// The primary use cases are:
//   - Folding titles to lowercase ASCII for cache keys and comparisons
//   - Scoring title similarity with term-frequency cosine similarity
//   - Sanitizing folder and file names for safe filesystem use
package textutil
