package discovery

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Memory is the query log consulted before any external discovery call.
type Memory interface {
	// ShouldQuery reports whether no fresh entry exists for the pair.
	ShouldQuery(ctx context.Context, cell, fingerprint string) (bool, error)
	// Record logs a completed query. Zero-result queries are recorded too so
	// empty cells are not re-swept every run.
	Record(ctx context.Context, cell, fingerprint string, resultCount int) error
	Close() error
}

// SQLiteMemory persists the query log next to the lead store.
type SQLiteMemory struct {
	db        *sql.DB
	staleness time.Duration
	now       func() time.Time
}

// NewSQLiteMemory opens (or creates) the log database. Entries older than the
// staleness window no longer suppress re-querying.
func NewSQLiteMemory(dsn string, staleness time.Duration) (*SQLiteMemory, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "discovery: open memory db")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "discovery: exec %s", pragma)
		}
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS discovery_log (
	cell         TEXT NOT NULL,
	fingerprint  TEXT NOT NULL,
	queried_at   DATETIME NOT NULL,
	result_count INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_discovery_pair ON discovery_log(cell, fingerprint, queried_at);
`); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "discovery: migrate memory db")
	}
	return &SQLiteMemory{db: db, staleness: staleness, now: time.Now}, nil
}

func (m *SQLiteMemory) ShouldQuery(ctx context.Context, cell, fingerprint string) (bool, error) {
	cutoff := m.now().UTC().Add(-m.staleness)
	var n int
	err := m.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM discovery_log WHERE cell = ? AND fingerprint = ? AND queried_at > ?`,
		cell, fingerprint, cutoff,
	).Scan(&n)
	if err != nil {
		return false, eris.Wrap(err, "discovery: check memory")
	}
	return n == 0, nil
}

func (m *SQLiteMemory) Record(ctx context.Context, cell, fingerprint string, resultCount int) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO discovery_log (cell, fingerprint, queried_at, result_count) VALUES (?, ?, ?, ?)`,
		cell, fingerprint, m.now().UTC(), resultCount,
	)
	return eris.Wrap(err, "discovery: record query")
}

func (m *SQLiteMemory) Close() error {
	return m.db.Close()
}

// InMemory is the map-backed Memory used by tests and dry runs.
type InMemory struct {
	mu        sync.Mutex
	entries   map[string]time.Time
	staleness time.Duration
	now       func() time.Time
}

// NewInMemory returns an empty in-process memory.
func NewInMemory(staleness time.Duration) *InMemory {
	return &InMemory{
		entries:   make(map[string]time.Time),
		staleness: staleness,
		now:       time.Now,
	}
}

func (m *InMemory) ShouldQuery(_ context.Context, cell, fingerprint string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.entries[cell+"\x00"+fingerprint]
	if !ok {
		return true, nil
	}
	return m.now().Sub(at) > m.staleness, nil
}

func (m *InMemory) Record(_ context.Context, cell, fingerprint string, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[cell+"\x00"+fingerprint] = m.now()
	return nil
}

func (m *InMemory) Close() error { return nil }
