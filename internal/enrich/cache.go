// internal/enrich/cache.go
package enrich

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Cache is a SQLite-backed LookupCache. Entries older than the TTL are
// ignored and overwritten on the next Put.
type Cache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// OpenCache opens or creates the cache database at path.
func OpenCache(path string, ttl time.Duration) (*Cache, error) {
	if path == "" {
		return nil, fmt.Errorf("cache path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	db.SetMaxOpenConns(1)

	const schema = `
		CREATE TABLE IF NOT EXISTS enrich_cache (
			lookup_key TEXT PRIMARY KEY,
			found      INTEGER NOT NULL,
			payload    TEXT,
			fetched_at INTEGER NOT NULL
		)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache table: %w", err)
	}

	return &Cache{db: db, ttl: ttl, now: time.Now}, nil
}

// Get implements LookupCache.
func (c *Cache) Get(ctx context.Context, q Query) (*Metadata, bool, error) {
	var (
		found     bool
		payload   sql.NullString
		fetchedAt int64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT found, payload, fetched_at FROM enrich_cache WHERE lookup_key = ?`, q.Key()).
		Scan(&found, &payload, &fetchedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache: %w", err)
	}

	if c.ttl > 0 && c.now().Sub(time.Unix(fetchedAt, 0)) > c.ttl {
		return nil, false, nil
	}
	if !found {
		return nil, true, nil
	}

	var md Metadata
	if err := json.Unmarshal([]byte(payload.String), &md); err != nil {
		return nil, false, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	return &md, true, nil
}

// Put implements LookupCache. A nil md records a miss.
func (c *Cache) Put(ctx context.Context, q Query, md *Metadata) error {
	var payload sql.NullString
	if md != nil {
		data, err := json.Marshal(md)
		if err != nil {
			return fmt.Errorf("failed to encode cache entry: %w", err)
		}
		payload = sql.NullString{String: string(data), Valid: true}
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO enrich_cache (lookup_key, found, payload, fetched_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(lookup_key) DO UPDATE SET found = excluded.found, payload = excluded.payload, fetched_at = excluded.fetched_at`,
		q.Key(), md != nil, payload, c.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}
