package core

import "kincore/internal/infra/persistence/sqlite"

// NewSQLiteStore constructs a SQLite-backed persistent store at path (empty
// selects sqlite.DefaultPath).
func NewSQLiteStore(path string, engine *RulesEngine) (*sqlite.Store, error) {
	return sqlite.NewStore(path, engine)
}
