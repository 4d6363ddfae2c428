package geocode

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const cacheMigration = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	postal_code TEXT PRIMARY KEY,
	latitude    REAL NOT NULL,
	longitude   REAL NOT NULL,
	matched     INTEGER NOT NULL,
	status      TEXT NOT NULL,
	cached_at   INTEGER NOT NULL
);
`

// Cache persists geocode results in SQLite so interrupted or repeated runs
// do not pay for codes already resolved.
type Cache struct {
	db  *sql.DB
	now func() time.Time
}

// OpenCache opens (creating if needed) the cache database at path.
func OpenCache(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: open cache")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "geocode: cache exec %s", pragma)
		}
	}
	if _, err := db.Exec(cacheMigration); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "geocode: migrate cache")
	}
	return &Cache{db: db, now: time.Now}, nil
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the cached result for code. Entries older than ttl are
// ignored; ttl <= 0 never expires.
func (c *Cache) Get(ctx context.Context, code string, ttl time.Duration) (*Result, bool, error) {
	query := "SELECT latitude, longitude, matched, status FROM geocode_cache WHERE postal_code = ?"
	args := []any{code}
	if ttl > 0 {
		query += " AND cached_at > ?"
		args = append(args, c.now().Add(-ttl).Unix())
	}

	r := Result{PostalCode: code, Cached: true}
	err := c.db.QueryRowContext(ctx, query, args...).Scan(&r.Latitude, &r.Longitude, &r.Matched, &r.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "geocode: read cache")
	}
	return &r, true, nil
}

// Put stores r, replacing any earlier entry for the same code.
func (c *Cache) Put(ctx context.Context, r Result) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO geocode_cache (postal_code, latitude, longitude, matched, status, cached_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (postal_code) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			matched = excluded.matched,
			status = excluded.status,
			cached_at = excluded.cached_at`,
		r.PostalCode, r.Latitude, r.Longitude, r.Matched, r.Status, c.now().Unix(),
	)
	if err != nil {
		return eris.Wrap(err, "geocode: store cache")
	}
	return nil
}

type cachedClient struct {
	inner Client
	cache *Cache
	ttl   time.Duration
}

// NewCachedClient serves results from cache when present and fresh, and
// stores every definitive fresh result. Hits never touch inner's limiter.
func NewCachedClient(inner Client, cache *Cache, ttlDays int) Client {
	return &cachedClient{
		inner: inner,
		cache: cache,
		ttl:   time.Duration(ttlDays) * 24 * time.Hour,
	}
}

func (c *cachedClient) Geocode(ctx context.Context, code string) (*Result, error) {
	hit, ok, err := c.cache.Get(ctx, code, c.ttl)
	if err != nil {
		zap.L().Warn("geocode: cache lookup failed", zap.String("postal_code", code), zap.Error(err))
	} else if ok {
		return hit, nil
	}

	r, err := c.inner.Geocode(ctx, code)
	if err != nil {
		return nil, err
	}
	if r.Definitive() {
		if err := c.cache.Put(ctx, *r); err != nil {
			zap.L().Warn("geocode: cache store failed", zap.String("postal_code", code), zap.Error(err))
		}
	}
	return r, nil
}
