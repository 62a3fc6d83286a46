package metadata

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"strmsync/internal/logging"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped when the cache layout changes. A mismatching
// database is dropped and rebuilt since every entry can be looked up again.
const schemaVersion = 1

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// CacheEntry is one remembered lookup outcome. ExternalID 0 means the title
// was looked up and nothing acceptable was found.
type CacheEntry struct {
	Key        string
	Kind       Kind
	ExternalID int64
	Confidence int
	LookedUpAt time.Time
}

// Found reports whether the entry carries an identifier.
func (e CacheEntry) Found() bool {
	return e.ExternalID > 0
}

// Cache keeps lookup outcomes in memory and persists them to SQLite. Reads
// never touch the database; Flush writes every entry stored since the last
// flush in one transaction.
type Cache struct {
	db     *sql.DB
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]CacheEntry
	dirty   map[string]struct{}
}

// OpenCache opens (or creates) the cache database at path and loads every
// entry into memory. An empty path yields a memory-only cache.
func OpenCache(ctx context.Context, path string, logger *slog.Logger) (*Cache, error) {
	c := &Cache{
		path:    path,
		logger:  logging.NewComponentLogger(logger, "metadata-cache"),
		entries: make(map[string]CacheEntry),
		dirty:   make(map[string]struct{}),
	}
	if strings.TrimSpace(path) == "" {
		return c, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	c.db = db

	if err := c.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := c.load(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// Get returns the entry for key when present and younger than maxAge.
// maxAge <= 0 disables expiry.
func (c *Cache) Get(key string, maxAge time.Duration, now time.Time) (CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok {
		return CacheEntry{}, false
	}
	if maxAge > 0 && now.Sub(entry.LookedUpAt) > maxAge {
		return CacheEntry{}, false
	}
	return entry, true
}

// Put records an outcome in memory and marks it for the next Flush.
func (c *Cache) Put(entry CacheEntry) {
	if entry.Key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.Key] = entry
	c.dirty[entry.Key] = struct{}{}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Flush persists pending entries. Memory-only caches flush trivially.
func (c *Cache) Flush(ctx context.Context) error {
	c.mu.Lock()
	pending := make([]CacheEntry, 0, len(c.dirty))
	for key := range c.dirty {
		pending = append(pending, c.entries[key])
	}
	c.dirty = make(map[string]struct{})
	c.mu.Unlock()

	if c.db == nil || len(pending) == 0 {
		return nil
	}

	err := retryOnBusy(ctx, func() error {
		tx, err := c.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO metadata_cache (cache_key, kind, external_id, confidence, looked_up_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(cache_key) DO UPDATE SET
    kind = excluded.kind,
    external_id = excluded.external_id,
    confidence = excluded.confidence,
    looked_up_at = excluded.looked_up_at`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, entry := range pending {
			var externalID sql.NullInt64
			if entry.ExternalID > 0 {
				externalID = sql.NullInt64{Int64: entry.ExternalID, Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, entry.Key, string(entry.Kind), externalID, entry.Confidence, entry.LookedUpAt.Unix()); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		c.mu.Lock()
		for _, entry := range pending {
			c.dirty[entry.Key] = struct{}{}
		}
		c.mu.Unlock()
		return fmt.Errorf("flush metadata cache: %w", err)
	}

	c.logger.Debug("metadata cache flushed", logging.Int("entries", len(pending)))
	return nil
}

// Purge removes every entry from memory and disk.
func (c *Cache) Purge(ctx context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]CacheEntry)
	c.dirty = make(map[string]struct{})
	c.mu.Unlock()

	if c.db == nil {
		return nil
	}
	return retryOnBusy(ctx, func() error {
		_, err := c.db.ExecContext(ctx, "DELETE FROM metadata_cache")
		return err
	})
}

// Close releases the database handle. Entries stored since the last Flush
// are lost.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *Cache) initSchema(ctx context.Context) error {
	var tableExists int
	err := c.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists > 0 {
		var version int
		err = c.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
		if err == nil && version == schemaVersion {
			return nil
		}
		logging.WarnWithContext(c.logger, "rebuilding metadata cache", "metadata_cache_schema_mismatch",
			logging.Int("found_version", version),
			logging.Int("expected_version", schemaVersion),
			logging.String(logging.FieldErrorHint, "no action needed"),
			logging.String(logging.FieldImpact, "titles will be looked up again"))
		for _, stmt := range []string{"DROP TABLE IF EXISTS metadata_cache", "DROP TABLE IF EXISTS schema_version"} {
			if _, err := c.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("drop stale schema: %w", err)
			}
		}
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

func (c *Cache) load(ctx context.Context) error {
	rows, err := c.db.QueryContext(ctx, "SELECT cache_key, kind, external_id, confidence, looked_up_at FROM metadata_cache")
	if err != nil {
		return fmt.Errorf("load metadata cache: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			entry      CacheEntry
			kind       string
			externalID sql.NullInt64
			lookedUpAt int64
		)
		if err := rows.Scan(&entry.Key, &kind, &externalID, &entry.Confidence, &lookedUpAt); err != nil {
			return fmt.Errorf("scan metadata cache row: %w", err)
		}
		entry.Kind = Kind(kind)
		if externalID.Valid {
			entry.ExternalID = externalID.Int64
		}
		entry.LookedUpAt = time.Unix(lookedUpAt, 0)
		c.entries[entry.Key] = entry
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate metadata cache: %w", err)
	}

	c.logger.Debug("loaded metadata cache",
		logging.Int("entry_count", len(c.entries)),
		logging.String("path", c.path))
	return nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
