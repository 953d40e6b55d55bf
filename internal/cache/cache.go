// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache stores resolution results in SQLite so repeated queries are
// answered without calling the backends. Entries are JSON documents keyed
// by domain and normalized query text, and expire after a TTL.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"

	"github.com/pdiddy/paperfinder/pkg/types"
)

// DefaultPath is the database file used when the config leaves it unset.
const DefaultPath = ".paperfinder/cache.db"

// Cache is a TTL-bounded key/value store of resolution results. It is safe
// for concurrent use.
type Cache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// Open opens or creates the cache database at cfg.Path and creates the
// schema if it does not exist.
func Open(cfg types.CacheConfig) (*Cache, error) {
	path := cfg.Path
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, eris.Wrap(err, "creating cache directory")
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, eris.Wrap(err, "opening cache database")
	}

	c := &Cache{db: db, ttl: cfg.TTL, now: time.Now}
	if err := c.createSchema(); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "creating cache schema")
	}
	return c, nil
}

// Close releases the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS resolutions (
			query_key TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_resolutions_created_at ON resolutions(created_at)`,
	}
	for _, stmt := range statements {
		if _, err := c.db.Exec(stmt); err != nil {
			return eris.Wrap(err, "executing schema statement")
		}
	}
	return nil
}

// Key builds the cache key of a query: its domain plus the query text
// lowercased with whitespace collapsed.
func Key(domain, text string) string {
	return domain + "|" + strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Get decodes the entry stored under key into v. It reports false when the
// key is absent or the entry has expired.
func (c *Cache) Get(ctx context.Context, key string, v any) (bool, error) {
	var payload string
	var created int64
	err := c.db.QueryRowContext(ctx,
		`SELECT payload, created_at FROM resolutions WHERE query_key = ?`, key,
	).Scan(&payload, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "reading cache entry %q", key)
	}
	if c.expired(created) {
		return false, nil
	}
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return false, eris.Wrapf(err, "decoding cache entry %q", key)
	}
	return true, nil
}

// Put stores v under key, replacing any previous entry.
func (c *Cache) Put(ctx context.Context, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return eris.Wrap(err, "encoding cache entry")
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO resolutions (query_key, payload, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(query_key) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`,
		key, string(payload), c.now().UnixNano(),
	)
	if err != nil {
		return eris.Wrapf(err, "writing cache entry %q", key)
	}
	return nil
}

// Prune deletes expired entries and returns how many were removed. It is a
// no-op without a TTL.
func (c *Cache) Prune(ctx context.Context) (int64, error) {
	if c.ttl <= 0 {
		return 0, nil
	}
	cutoff := c.now().Add(-c.ttl).UnixNano()
	res, err := c.db.ExecContext(ctx, `DELETE FROM resolutions WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, eris.Wrap(err, "pruning cache")
	}
	return res.RowsAffected()
}

// Clear deletes every entry and returns how many were removed.
func (c *Cache) Clear(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM resolutions`)
	if err != nil {
		return 0, eris.Wrap(err, "clearing cache")
	}
	return res.RowsAffected()
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT count(*) FROM resolutions`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "counting cache entries")
	}
	return n, nil
}

func (c *Cache) expired(created int64) bool {
	return c.ttl > 0 && c.now().Sub(time.Unix(0, created)) > c.ttl
}
