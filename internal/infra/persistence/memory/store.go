// Package memory provides an in-memory implementation of the person store
// used for tests and ephemeral environments.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"kincore/pkg/domain"

	"github.com/google/uuid"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var (
	_ domain.PersistentStore = (*Store)(nil)
	_ domain.Transaction     = (*transaction)(nil)
	_ domain.TransactionView = transactionView{}
)

type (
	// Person aliases domain.Person for in-memory persistence operations.
	Person = domain.Person
	// Result aliases domain.Result.
	Result = domain.Result
	// Change aliases domain.Change.
	Change = domain.Change
	// RulesEngine aliases domain.RulesEngine.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	persons map[string]Person
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Persons map[string]Person `json:"persons"`
}

func newMemoryState() memoryState {
	return memoryState{persons: make(map[string]Person)}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{Persons: make(map[string]Person, len(state.persons))}
	for k, v := range state.persons {
		s.Persons[k] = clonePerson(v)
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Persons {
		state.persons[k] = clonePerson(v)
	}
	return state
}

// migrateSnapshot normalizes records written by older builds: ids are keyed
// consistently, region codes are upper case, and empty references are nil.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	out := Snapshot{Persons: make(map[string]Person, len(snapshot.Persons))}
	for key, p := range snapshot.Persons {
		if p.ID == "" {
			p.ID = key
		}
		p.BirthRegion = strings.ToUpper(strings.TrimSpace(p.BirthRegion))
		p.FatherID = normalizeRef(p.FatherID)
		p.MotherID = normalizeRef(p.MotherID)
		p.SpouseID = normalizeRef(p.SpouseID)
		out.Persons[p.ID] = p
	}
	return out
}

func normalizeRef(id *string) *string {
	if id == nil || strings.TrimSpace(*id) == "" {
		return nil
	}
	return domain.Ref(strings.TrimSpace(*id))
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.persons {
		cloned.persons[k] = clonePerson(v)
	}
	return cloned
}

func clonePerson(p Person) Person {
	cp := p
	cp.BirthDate = cloneTime(p.BirthDate)
	cp.DeathDate = cloneTime(p.DeathDate)
	cp.FatherID = cloneRef(p.FatherID)
	cp.MotherID = cloneRef(p.MotherID)
	cp.SpouseID = cloneRef(p.SpouseID)
	return cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneRef(id *string) *string {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

// Store provides an in-memory transactional store for person records.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	return uuid.NewString()
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc overrides the time provider used to stamp records.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListPersons returns all persons within the snapshot ordered by id.
func (v transactionView) ListPersons() []Person {
	out := make([]Person, 0, len(v.state.persons))
	for _, p := range v.state.persons {
		out = append(out, clonePerson(p))
	}
	slices.SortFunc(out, func(a, b Person) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// FindPerson retrieves a person by ID from the snapshot.
func (v transactionView) FindPerson(id string) (Person, bool) {
	p, ok := v.state.persons[id]
	if !ok {
		return Person{}, false
	}
	return clonePerson(p), true
}

// ChildrenOf returns persons whose role parent is parentID, ordered by birth.
func (v transactionView) ChildrenOf(parentID string, role domain.ParentRole) []Person {
	if parentID == "" {
		return nil
	}
	var out []Person
	for _, p := range v.state.persons {
		if p.Parent(role) == parentID {
			out = append(out, clonePerson(p))
		}
	}
	slices.SortFunc(out, domain.CompareByBirth)
	return out
}

// SpousesPointingTo returns persons whose spouse reference is id.
func (v transactionView) SpousesPointingTo(id string) []Person {
	if id == "" {
		return nil
	}
	var out []Person
	for _, p := range v.state.persons {
		if p.Spouse() == id {
			out = append(out, clonePerson(p))
		}
	}
	slices.SortFunc(out, func(a, b Person) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// RunInTransaction executes fn within a transactional copy of the store state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()

	return fn(newTransactionView(&snapshot))
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view of the in-flight transaction state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindPerson looks up a person within the in-flight transaction state.
func (tx *transaction) FindPerson(id string) (Person, bool) {
	p, ok := tx.state.persons[id]
	if !ok {
		return Person{}, false
	}
	return clonePerson(p), true
}

// CreatePerson stores a new person within the transaction.
func (tx *transaction) CreatePerson(p Person) (Person, error) {
	if p.ID == "" {
		p.ID = tx.store.newID()
	}
	if _, exists := tx.state.persons[p.ID]; exists {
		return Person{}, fmt.Errorf("person %q already exists", p.ID)
	}
	p.BirthRegion = strings.ToUpper(strings.TrimSpace(p.BirthRegion))
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.persons[p.ID] = clonePerson(p)
	tx.recordChange(Change{Entity: domain.EntityPerson, Action: domain.ActionCreate, After: clonePerson(p)})
	return clonePerson(p), nil
}

// UpdatePerson mutates a person using the provided mutator function.
func (tx *transaction) UpdatePerson(id string, mutator func(*Person) error) (Person, error) {
	current, ok := tx.state.persons[id]
	if !ok {
		return Person{}, fmt.Errorf("person %q not found", id)
	}
	before := clonePerson(current)
	if err := mutator(&current); err != nil {
		return Person{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.BirthRegion = strings.ToUpper(strings.TrimSpace(current.BirthRegion))
	current.UpdatedAt = tx.now
	tx.state.persons[id] = clonePerson(current)
	tx.recordChange(Change{Entity: domain.EntityPerson, Action: domain.ActionUpdate, Before: before, After: clonePerson(current)})
	return clonePerson(current), nil
}

// DeletePerson removes a person and nulls every reference that pointed at it.
func (tx *transaction) DeletePerson(id string) error {
	current, ok := tx.state.persons[id]
	if !ok {
		return fmt.Errorf("person %q not found", id)
	}
	delete(tx.state.persons, id)
	for otherID, other := range tx.state.persons {
		touched := false
		if other.Parent(domain.RoleFather) == id {
			other.FatherID = nil
			touched = true
		}
		if other.Parent(domain.RoleMother) == id {
			other.MotherID = nil
			touched = true
		}
		if other.Spouse() == id {
			other.SpouseID = nil
			touched = true
		}
		if !touched {
			continue
		}
		before := clonePerson(tx.state.persons[otherID])
		other.UpdatedAt = tx.now
		tx.state.persons[otherID] = other
		tx.recordChange(Change{Entity: domain.EntityPerson, Action: domain.ActionUpdate, Before: before, After: clonePerson(other)})
	}
	tx.recordChange(Change{Entity: domain.EntityPerson, Action: domain.ActionDelete, Before: clonePerson(current)})
	return nil
}

// GetPerson retrieves a person by ID from committed state.
func (s *Store) GetPerson(id string) (Person, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.persons[id]
	if !ok {
		return Person{}, false
	}
	return clonePerson(p), true
}

// ListPersons returns all persons from committed state ordered by id.
func (s *Store) ListPersons() []Person {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListPersons()
}
