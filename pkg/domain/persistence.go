package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreatePerson(Person) (Person, error)
	UpdatePerson(id string, mutator func(*Person) error) (Person, error)
	// DeletePerson removes the record and clears every father, mother, or
	// spouse reference that pointed at it.
	DeletePerson(id string) error
	FindPerson(id string) (Person, bool)
}

// TransactionView provides read-only access to snapshot data. It is the
// person provider consumed by tree builds and by rules.
type TransactionView interface {
	ListPersons() []Person
	FindPerson(id string) (Person, bool)
	// ChildrenOf returns persons whose role parent is parentID, ordered by
	// birth date with undated persons last.
	ChildrenOf(parentID string, role ParentRole) []Person
	// SpousesPointingTo returns persons whose spouse reference is id.
	SpousesPointingTo(id string) []Person
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetPerson(id string) (Person, bool)
	ListPersons() []Person
}
