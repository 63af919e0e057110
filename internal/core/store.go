package core

import (
	"kincore/internal/infra/persistence/memory"
	"kincore/pkg/domain"
)

type (
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	PersistentStore = domain.PersistentStore
	// MemoryStore is the reference in-memory person store.
	MemoryStore = memory.Store
)

// NewMemoryStore constructs an in-memory store backed by the provided rules engine.
func NewMemoryStore(engine *RulesEngine) *MemoryStore {
	return memory.NewStore(engine)
}
