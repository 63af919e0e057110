// Package postgres provides a Postgres-backed person store. It shares the
// in-memory transaction semantics and mirrors committed persons into a
// JSONB table keyed by person id.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"kincore/internal/infra/persistence/memory"
	"kincore/internal/infra/persistence/rowsync"
	"kincore/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

var _ domain.PersistentStore = (*Store)(nil)

const driverName = "pgx"

// DefaultDSN is used when no DSN is configured.
const DefaultDSN = "postgres://localhost/kincore?sslmode=disable"

var dialect = rowsync.Dialect{
	Name: "postgres",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS persons (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			payload JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS persons_owner_idx ON persons (owner_id)`,
	},
	Select: `SELECT id, payload FROM persons`,
	Upsert: `INSERT INTO persons(id, owner_id, payload) VALUES($1, $2, $3)
		ON CONFLICT(id) DO UPDATE SET owner_id = EXCLUDED.owner_id, payload = EXCLUDED.payload, updated_at = now()`,
	Delete: `DELETE FROM persons WHERE id = $1`,
}

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store is a memory.Store whose committed state lives in Postgres.
type Store struct {
	*memory.Store
	db     *sql.DB
	mirror *rowsync.Mirror
}

// NewStore connects using dsn (DefaultDSN when empty), creates the persons
// table if needed, and loads the stored persons.
func NewStore(ctx context.Context, dsn string, engine *domain.RulesEngine) (*Store, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(driverName, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
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
	return &Store{Store: mem, db: db, mirror: mirror}, nil
}

// RunInTransaction applies fn in memory and, once committed, writes the
// changed rows to Postgres.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if err := s.mirror.Sync(ctx, func() map[string]domain.Person { return s.ExportState().Persons }); err != nil {
		return res, fmt.Errorf("persist persons: %w", err)
	}
	return res, nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// ErrNilDB is returned when an overridden opener hands back no handle.
var ErrNilDB = errors.New("postgres: nil database handle")

// OverrideSQLOpen swaps the opener for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = func(driverName, dataSourceName string) (*sql.DB, error) {
		db, err := fn(driverName, dataSourceName)
		if err == nil && db == nil {
			return nil, ErrNilDB
		}
		return db, err
	}
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
