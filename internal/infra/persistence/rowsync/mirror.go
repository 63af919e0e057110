// Package rowsync mirrors the in-memory person map into a SQL table with one
// row per person. Only rows whose encoded payload changed since the last sync
// are written, and rows for removed persons are deleted.
package rowsync

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"

	"kincore/pkg/domain"
)

// Dialect holds the statements a driver uses for the persons table.
// Upsert takes (id, owner_id, payload); Delete takes (id); Select must
// return (id, payload).
type Dialect struct {
	Name   string
	Schema []string
	Select string
	Upsert string
	Delete string
}

// Mirror tracks what was last written so Sync can skip unchanged rows.
type Mirror struct {
	db      *sql.DB
	dialect Dialect

	mu      sync.Mutex
	written map[string][]byte
}

// New returns a mirror over db. Call Ensure before Load or Sync.
func New(db *sql.DB, dialect Dialect) *Mirror {
	return &Mirror{db: db, dialect: dialect, written: make(map[string][]byte)}
}

// Ensure creates the persons table and its indexes when missing.
func (m *Mirror) Ensure(ctx context.Context) error {
	for _, stmt := range m.dialect.Schema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: ensure persons table: %w", m.dialect.Name, err)
		}
	}
	return nil
}

// Load reads every stored person keyed by id.
func (m *Mirror) Load(ctx context.Context) (map[string]domain.Person, error) {
	rows, err := m.db.QueryContext(ctx, m.dialect.Select)
	if err != nil {
		return nil, fmt.Errorf("%s: select persons: %w", m.dialect.Name, err)
	}
	defer func() { _ = rows.Close() }()

	persons := make(map[string]domain.Person)
	for rows.Next() {
		var (
			id      string
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("%s: scan person: %w", m.dialect.Name, err)
		}
		var p domain.Person
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("%s: decode person %s: %w", m.dialect.Name, id, err)
		}
		persons[id] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate persons: %w", m.dialect.Name, err)
	}

	// Payloads are re-encoded so that backends normalizing JSON (jsonb) do
	// not make every row look dirty on the first sync.
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written = make(map[string][]byte, len(persons))
	for id, p := range persons {
		data, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("%s: encode person %s: %w", m.dialect.Name, id, err)
		}
		m.written[id] = data
	}
	return persons, nil
}

// Sync writes the difference between the last synced state and the persons
// returned by current. current runs under the mirror lock so concurrent
// syncs never persist an older state after a newer one.
func (m *Mirror) Sync(ctx context.Context, current func() map[string]domain.Person) (retErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	persons := current()
	encoded := make(map[string][]byte, len(persons))
	var upserts, deletes []string
	for id, p := range persons {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("%s: encode person %s: %w", m.dialect.Name, id, err)
		}
		encoded[id] = data
		if prev, ok := m.written[id]; !ok || string(prev) != string(data) {
			upserts = append(upserts, id)
		}
	}
	for id := range m.written {
		if _, ok := persons[id]; !ok {
			deletes = append(deletes, id)
		}
	}
	if len(upserts) == 0 && len(deletes) == 0 {
		return nil
	}
	slices.Sort(upserts)
	slices.Sort(deletes)

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", m.dialect.Name, err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, id := range upserts {
		if _, err := tx.ExecContext(ctx, m.dialect.Upsert, id, persons[id].OwnerID, encoded[id]); err != nil {
			return fmt.Errorf("%s: upsert person %s: %w", m.dialect.Name, id, err)
		}
	}
	for _, id := range deletes {
		if _, err := tx.ExecContext(ctx, m.dialect.Delete, id); err != nil {
			return fmt.Errorf("%s: delete person %s: %w", m.dialect.Name, id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", m.dialect.Name, err)
	}
	m.written = encoded
	return nil
}

// Synced returns the ids currently known to be stored, sorted.
func (m *Mirror) Synced() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.written))
}
