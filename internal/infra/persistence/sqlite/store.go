// Package sqlite provides an embedded SQLite-backed person store. Reads and
// rule evaluation run against the in-memory store; every committed
// transaction is mirrored into a persons table, one row per person.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"kincore/internal/infra/persistence/memory"
	"kincore/internal/infra/persistence/rowsync"
	"kincore/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ domain.PersistentStore = (*Store)(nil)

// DefaultPath is used when no database path is configured.
const DefaultPath = "kincore.db"

var dialect = rowsync.Dialect{
	Name: "sqlite",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS persons (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			payload BLOB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS persons_owner_idx ON persons (owner_id)`,
	},
	Select: `SELECT id, payload FROM persons`,
	Upsert: `INSERT INTO persons(id, owner_id, payload) VALUES(?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET owner_id = excluded.owner_id, payload = excluded.payload`,
	Delete: `DELETE FROM persons WHERE id = ?`,
}

// Store is a memory.Store whose committed state lives in a SQLite file.
type Store struct {
	*memory.Store
	db     *sql.DB
	mirror *rowsync.Mirror
	path   string
}

// NewStore opens (or creates) the database at path and loads the persons it
// already holds.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between the mirror and readers.
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	mirror := rowsync.New(db, dialect)
	if err := mirror.Ensure(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	persons, err := mirror.Load(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	mem := memory.NewStore(engine)
	mem.ImportState(memory.Snapshot{Persons: persons})
	return &Store{Store: mem, db: db, mirror: mirror, path: path}, nil
}

// RunInTransaction applies fn in memory and, once committed, writes the
// changed rows to SQLite.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if err := s.mirror.Sync(ctx, s.persons); err != nil {
		return res, fmt.Errorf("persist persons: %w", err)
	}
	return res, nil
}

func (s *Store) persons() map[string]domain.Person {
	return s.ExportState().Persons
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
