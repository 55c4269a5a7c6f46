// Package cache persists parsed locality strings so repeated batch
// runs skip the grammar for strings they have already seen. Entries
// round-trip through the grammar's kind-tagged JSON codec, so cached
// parses reinflate to their concrete node types.
package cache

import (
	"context"
	"database/sql"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/collections-lab/georef-cli/internal/grammar"
)

// defaultMaxEntries bounds the cache; the oldest entries are pruned
// once the bound is exceeded.
const defaultMaxEntries = 200000

// pruneEvery controls how many writes happen between prune checks.
const pruneEvery = 1000

// ParseCache is a SQLite-backed locality parse cache. Reads are safe
// to share across workers; writes are idempotent per verbatim string,
// so concurrent writers racing on one key converge on the same row.
type ParseCache struct {
	db         *sql.DB
	maxEntries int
	writes     atomic.Int64
}

// Option configures the cache.
type Option func(*ParseCache)

// WithMaxEntries overrides the entry bound.
func WithMaxEntries(n int) Option {
	return func(c *ParseCache) {
		c.maxEntries = n
	}
}

// NewSQLite opens a parse cache at the given path and configures WAL
// mode.
func NewSQLite(dsn string, opts ...Option) (*ParseCache, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "cache: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "cache: exec %s", pragma)
		}
	}
	c := &ParseCache{db: db, maxEntries: defaultMaxEntries}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS parses (
	verbatim   TEXT PRIMARY KEY,
	nodes      TEXT NOT NULL,
	leftover   TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_parses_updated_at ON parses(updated_at);
`

// Migrate creates the cache table if it does not exist.
func (c *ParseCache) Migrate(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "cache: migrate")
}

// Close releases the underlying database handle.
func (c *ParseCache) Close() error {
	return c.db.Close()
}

// Get returns the cached parse for a verbatim string. The third
// return is false on a miss. A corrupt entry is treated as a miss so
// the caller reparses and overwrites it.
func (c *ParseCache) Get(ctx context.Context, verbatim string) ([]grammar.Node, string, bool, error) {
	var nodesJSON, leftover string
	err := c.db.QueryRowContext(ctx,
		`SELECT nodes, leftover FROM parses WHERE verbatim = ?`, verbatim).
		Scan(&nodesJSON, &leftover)
	if err == sql.ErrNoRows {
		return nil, "", false, nil
	}
	if err != nil {
		return nil, "", false, eris.Wrap(err, "cache: get parse")
	}
	nodes, err := grammar.UnmarshalNodes([]byte(nodesJSON))
	if err != nil {
		return nil, "", false, nil
	}
	return nodes, leftover, true, nil
}

// Set stores the parse for a verbatim string, replacing any previous
// entry.
func (c *ParseCache) Set(ctx context.Context, verbatim string, nodes []grammar.Node, leftover string) error {
	nodesJSON, err := grammar.MarshalNodes(nodes)
	if err != nil {
		return eris.Wrap(err, "cache: encode parse")
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO parses (verbatim, nodes, leftover, updated_at)
		VALUES (?, ?, ?, ?)`,
		verbatim, string(nodesJSON), leftover, time.Now().UTC())
	if err != nil {
		return eris.Wrap(err, "cache: set parse")
	}
	if c.writes.Add(1)%pruneEvery == 0 {
		return c.Prune(ctx)
	}
	return nil
}

// Prune deletes the oldest entries beyond the cache bound.
func (c *ParseCache) Prune(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx,
		`DELETE FROM parses WHERE verbatim IN (
			SELECT verbatim FROM parses
			ORDER BY updated_at DESC
			LIMIT -1 OFFSET ?
		)`, c.maxEntries)
	return eris.Wrap(err, "cache: prune")
}

// Len reports the number of cached parses.
func (c *ParseCache) Len(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM parses`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "cache: count")
	}
	return n, nil
}
