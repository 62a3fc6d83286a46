// Package config loads, normalizes, and validates strmsync configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// TMDB_API_KEY and STRMSYNC_PROVIDER_PASSWORD. The resulting Config value is
// passed explicitly into the engine; nothing reads configuration from global
// state.
package config
