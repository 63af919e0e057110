package blob

import memorystore "kincore/internal/infra/blob/memory"

// NewMemory returns an empty in-memory Store.
func NewMemory() Store { return memorystore.New() }
