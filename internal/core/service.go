package core

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"kincore/internal/kinship"
	"kincore/internal/logger"
	"kincore/pkg/domain"
)

// ErrForbidden is returned when the viewer may not perform the operation.
var ErrForbidden = errors.New("forbidden")

// ErrNotFound is returned when a referenced record does not exist or is not
// visible to the viewer.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

const (
	opCreatePerson     = "create_person"
	opUpdatePerson     = "update_person"
	opDeletePerson     = "delete_person"
	opGetPerson        = "get_person"
	opListPersons      = "list_persons"
	opSetSpouse        = "set_spouse"
	opDefaultReference = "default_reference"
	opBuildTree        = "build_tree"
)

// auditedOperations maps mutating operations to the action they record.
var auditedOperations = map[string]Action{
	opCreatePerson: ActionCreate,
	opUpdatePerson: ActionUpdate,
	opDeletePerson: ActionDelete,
	opSetSpouse:    ActionUpdate,
}

// Service exposes viewer-scoped person operations and tree builds over a
// persistent store.
type Service struct {
	store   PersistentStore
	clock   Clock
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		clock:   systemClock,
		logger:  noopLogger{},
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		audit:   noopAudit{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if stamped, ok := store.(interface{ SetNowFunc(func() time.Time) }); ok {
		stamped.SetNowFunc(s.clock.Now)
	}
	return s
}

// NewInMemoryService creates a service and in-memory store with the given rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	return NewService(NewMemoryStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// observe wraps an operation with tracing, metrics and logging.
func (s *Service) observe(ctx context.Context, op string, fn func(context.Context) error) error {
	if l, ok := s.logger.(*slog.Logger); ok {
		ctx = logger.WithLogger(ctx, l)
	}
	start := s.clock.Now()
	ctx, span := s.tracer.Start(ctx, op)
	err := fn(ctx)
	span.End(err)
	elapsed := s.clock.Now().Sub(start)
	s.metrics.Observe(ctx, op, err == nil, elapsed)
	if err != nil {
		s.logger.Warn("operation failed", "operation", op, "error", err, "duration", elapsed)
	} else {
		s.logger.Debug("operation completed", "operation", op, "duration", elapsed)
	}
	return err
}

func (s *Service) recordAudit(ctx context.Context, op string, viewer Viewer, entityID string, duration time.Duration, err error) {
	action, ok := auditedOperations[op]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation: op,
		Entity:    EntityPerson,
		Action:    action,
		EntityID:  entityID,
		ViewerID:  viewer.OwnerID,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.clock.Now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}

// mutate runs fn in a store transaction under observe and audits the result.
func (s *Service) mutate(ctx context.Context, op string, viewer Viewer, entityID func() string, fn func(Transaction) error) (Result, error) {
	var res Result
	start := s.clock.Now()
	err := s.observe(ctx, op, func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, fn)
		for _, v := range res.Violations {
			if v.Severity == SeverityWarn {
				s.logger.Warn("rule warning", "operation", op, "rule", v.Rule, "entity_id", v.EntityID, "message", v.Message)
			}
		}
		return err
	})
	s.recordAudit(ctx, op, viewer, entityID(), s.clock.Now().Sub(start), err)
	return res, err
}

// visiblePerson looks id up in tx and hides records the viewer cannot see.
func visiblePerson(tx Transaction, viewer Viewer, id string) (Person, error) {
	p, ok := tx.FindPerson(id)
	if !ok || !viewer.CanSee(p) {
		return Person{}, ErrNotFound{Entity: EntityPerson, ID: id}
	}
	return p, nil
}

// checkRefs verifies that every parent and spouse reference of p that differs
// from before points at a person the viewer can see.
func checkRefs(tx Transaction, viewer Viewer, before, p Person) error {
	refs := []struct{ old, now string }{
		{before.Parent(domain.RoleFather), p.Parent(domain.RoleFather)},
		{before.Parent(domain.RoleMother), p.Parent(domain.RoleMother)},
		{before.Spouse(), p.Spouse()},
	}
	for _, ref := range refs {
		if ref.now == "" || ref.now == ref.old || ref.now == p.ID {
			continue
		}
		if _, err := visiblePerson(tx, viewer, ref.now); err != nil {
			return err
		}
	}
	return nil
}

// CreatePerson persists a new person. The owner defaults to the viewer; only
// admins may create records for other owners.
func (s *Service) CreatePerson(ctx context.Context, viewer Viewer, p Person) (Person, Result, error) {
	if p.OwnerID == "" {
		p.OwnerID = viewer.OwnerID
	}
	var created Person
	res, err := s.mutate(ctx, opCreatePerson, viewer, func() string { return created.ID }, func(tx Transaction) error {
		if !viewer.IsAdmin && (viewer.OwnerID == "" || p.OwnerID != viewer.OwnerID) {
			return ErrForbidden
		}
		if err := checkRefs(tx, viewer, Person{}, p); err != nil {
			return err
		}
		var err error
		created, err = tx.CreatePerson(p)
		return err
	})
	return created, res, err
}

// UpdatePerson mutates a visible person. Non-admins may not hand a record to
// another owner.
func (s *Service) UpdatePerson(ctx context.Context, viewer Viewer, id string, mutator func(*Person) error) (Person, Result, error) {
	var updated Person
	res, err := s.mutate(ctx, opUpdatePerson, viewer, func() string { return id }, func(tx Transaction) error {
		before, err := visiblePerson(tx, viewer, id)
		if err != nil {
			return err
		}
		updated, err = tx.UpdatePerson(id, func(p *Person) error {
			if err := mutator(p); err != nil {
				return err
			}
			if !viewer.IsAdmin && p.OwnerID != before.OwnerID {
				return ErrForbidden
			}
			return checkRefs(tx, viewer, before, *p)
		})
		return err
	})
	return updated, res, err
}

// DeletePerson removes a visible person and clears references to it.
func (s *Service) DeletePerson(ctx context.Context, viewer Viewer, id string) (Result, error) {
	return s.mutate(ctx, opDeletePerson, viewer, func() string { return id }, func(tx Transaction) error {
		if _, err := visiblePerson(tx, viewer, id); err != nil {
			return err
		}
		return tx.DeletePerson(id)
	})
}

// SetSpouse points personID's spouse reference at spouseID. An empty spouseID
// clears the link.
func (s *Service) SetSpouse(ctx context.Context, viewer Viewer, personID, spouseID string) (Person, Result, error) {
	var updated Person
	res, err := s.mutate(ctx, opSetSpouse, viewer, func() string { return personID }, func(tx Transaction) error {
		if _, err := visiblePerson(tx, viewer, personID); err != nil {
			return err
		}
		if spouseID != "" {
			if _, err := visiblePerson(tx, viewer, spouseID); err != nil {
				return err
			}
		}
		var err error
		updated, err = tx.UpdatePerson(personID, func(p *Person) error {
			p.SpouseID = domain.Ref(spouseID)
			return nil
		})
		return err
	})
	return updated, res, err
}

// GetPerson returns a person visible to the viewer.
func (s *Service) GetPerson(ctx context.Context, viewer Viewer, id string) (Person, error) {
	var found Person
	err := s.observe(ctx, opGetPerson, func(ctx context.Context) error {
		p, ok := s.store.GetPerson(id)
		if !ok || !viewer.CanSee(p) {
			return ErrNotFound{Entity: EntityPerson, ID: id}
		}
		found = p
		return nil
	})
	return found, err
}

// ListPersons returns every person visible to the viewer ordered by name.
func (s *Service) ListPersons(ctx context.Context, viewer Viewer) ([]Person, error) {
	var out []Person
	err := s.observe(ctx, opListPersons, func(context.Context) error {
		out = s.visible(viewer)
		slices.SortFunc(out, func(a, b Person) int {
			if c := cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		})
		return nil
	})
	return out, err
}

func (s *Service) visible(viewer Viewer) []Person {
	all := s.store.ListPersons()
	out := make([]Person, 0, len(all))
	for _, p := range all {
		if viewer.CanSee(p) {
			out = append(out, p)
		}
	}
	return out
}

// DefaultReference picks the person a tree is centred on when the caller did
// not name one: the earliest born visible person. ok is false when the viewer
// sees nobody.
func (s *Service) DefaultReference(ctx context.Context, viewer Viewer) (Person, bool, error) {
	var (
		found Person
		ok    bool
	)
	err := s.observe(ctx, opDefaultReference, func(context.Context) error {
		candidates := s.visible(viewer)
		if len(candidates) == 0 {
			return nil
		}
		found = slices.MinFunc(candidates, domain.CompareByBirth)
		ok = true
		return nil
	})
	return found, ok, err
}

// BuildTree builds the viewer's tree rooted at rootID with labels relative to
// referenceID (the root when empty). An unavailable root yields an empty tree.
func (s *Service) BuildTree(ctx context.Context, viewer Viewer, rootID, referenceID string) (kinship.Tree, error) {
	var tree kinship.Tree
	err := s.observe(ctx, opBuildTree, func(ctx context.Context) error {
		return s.store.View(ctx, func(view TransactionView) error {
			var err error
			tree, err = kinship.Build(ctx, view, kinship.BuildRequest{
				RootID:      rootID,
				ReferenceID: referenceID,
				Viewer:      viewer,
				Now:         s.clock.Now(),
			})
			return err
		})
	})
	if err != nil {
		return kinship.Tree{}, err
	}
	if obs, ok := s.metrics.(TreeObserver); ok {
		obs.ObserveTree(ctx, len(tree.Nodes), len(tree.Families))
	}
	if tree.Empty() {
		s.logger.Info("tree root unavailable", "root_id", rootID, "viewer", viewer.OwnerID)
	}
	return tree, nil
}
