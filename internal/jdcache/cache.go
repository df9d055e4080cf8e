package jdcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schemaVersion = 1

// ErrSchemaMismatch indicates the cache database was created by an
// incompatible version. The cache is disposable; delete the file to recover.
var ErrSchemaMismatch = errors.New("jd cache schema mismatch")

// Entry is one cached job-description analysis keyed by description hash.
type Entry struct {
	Hash           string
	Title          string
	Company        string
	LineCount      int
	FitScore       float64
	Recommendation string
	CachedAt       time.Time
}

// Cache stores job-description analyses in SQLite so repeated searches do not
// re-score postings that were already seen.
type Cache struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the cache database at path.
func Open(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("jd cache: create directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("jd cache: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("jd cache: apply pragma %q: %w", pragma, execErr)
		}
	}

	cache := &Cache{db: db, path: path}
	if err := cache.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return cache, nil
}

func (c *Cache) initSchema(ctx context.Context) error {
	var tableExists int
	err := c.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("jd cache: check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return c.createSchema(ctx)
	}

	var version int
	if err := c.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("jd cache: read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to rebuild)",
			ErrSchemaMismatch, version, schemaVersion, c.path)
	}
	return nil
}

func (c *Cache) createSchema(ctx context.Context) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("jd cache: begin schema transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS descriptions (
			hash TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			company TEXT NOT NULL,
			line_count INTEGER NOT NULL,
			fit_score REAL NOT NULL,
			recommendation TEXT NOT NULL,
			cached_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_descriptions_cached_at ON descriptions(cached_at)`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("jd cache: create schema: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("jd cache: record schema version: %w", err)
	}
	return tx.Commit()
}

// Get returns the cached entry for hash, or ok=false when absent.
func (c *Cache) Get(ctx context.Context, hash string) (Entry, bool, error) {
	var entry Entry
	var cachedAt string
	err := c.db.QueryRowContext(ctx,
		`SELECT hash, title, company, line_count, fit_score, recommendation, cached_at
		 FROM descriptions WHERE hash = ?`, hash,
	).Scan(&entry.Hash, &entry.Title, &entry.Company, &entry.LineCount,
		&entry.FitScore, &entry.Recommendation, &cachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("jd cache: lookup %s: %w", hash, err)
	}
	entry.CachedAt, _ = time.Parse(time.RFC3339, cachedAt)
	return entry, true, nil
}

// Put stores or replaces the entry for its hash.
func (c *Cache) Put(ctx context.Context, entry Entry) error {
	if entry.Hash == "" {
		return errors.New("jd cache: entry hash required")
	}
	cachedAt := entry.CachedAt
	if cachedAt.IsZero() {
		cachedAt = time.Now()
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO descriptions (hash, title, company, line_count, fit_score, recommendation, cached_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(hash) DO UPDATE SET
			title = excluded.title,
			company = excluded.company,
			line_count = excluded.line_count,
			fit_score = excluded.fit_score,
			recommendation = excluded.recommendation,
			cached_at = excluded.cached_at`,
		entry.Hash, entry.Title, entry.Company, entry.LineCount,
		entry.FitScore, entry.Recommendation, cachedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("jd cache: store %s: %w", entry.Hash, err)
	}
	return nil
}

// Prune removes entries cached before cutoff and reports how many were removed.
func (c *Cache) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		"DELETE FROM descriptions WHERE cached_at < ?", cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("jd cache: prune: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("jd cache: prune rows affected: %w", err)
	}
	return removed, nil
}

// Count reports the number of cached entries.
func (c *Cache) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM descriptions").Scan(&count); err != nil {
		return 0, fmt.Errorf("jd cache: count: %w", err)
	}
	return count, nil
}

// Close closes the underlying database connection.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}
