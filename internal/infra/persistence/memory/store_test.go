package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"kincore/pkg/domain"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestStoreRunInTransactionAndSnapshots(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, ok := tx.FindPerson("missing"); ok {
			t.Fatalf("expected missing person lookup")
		}
		created, err := tx.CreatePerson(domain.Person{Name: "Ana", Gender: domain.GenderFemale, OwnerID: "u1", BirthRegion: " sp "})
		if err != nil {
			return err
		}
		if created.ID == "" {
			t.Fatalf("expected generated ID")
		}
		if created.BirthRegion != "SP" {
			t.Fatalf("expected normalized region, got %q", created.BirthRegion)
		}
		view := tx.Snapshot()
		if len(view.ListPersons()) != 1 {
			t.Fatalf("snapshot mismatch")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run transaction: %v", err)
	}
	if len(store.ListPersons()) != 1 {
		t.Fatalf("expected persisted person")
	}
	snapshot := store.ExportState()
	store.ImportState(Snapshot{})
	if len(store.ListPersons()) != 0 {
		t.Fatalf("expected cleared state")
	}
	store.ImportState(snapshot)
	if len(store.ListPersons()) != 1 {
		t.Fatalf("expected restored state")
	}
	if store.RulesEngine() == nil {
		t.Fatalf("expected rules engine")
	}
	if store.NowFunc() == nil {
		t.Fatalf("expected now func")
	}
}

func TestStoreRuleViolation(t *testing.T) {
	store := NewStore(domain.NewRulesEngine())
	store.RulesEngine().Register(blockingRule{})
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.CreatePerson(domain.Person{Name: "Fail", OwnerID: "u1"})
		return e
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation error, got %v", err)
	}
	if len(store.ListPersons()) != 0 {
		t.Fatalf("expected blocked transaction to leave state untouched")
	}
}

type blockingRule struct{}

func (blockingRule) Name() string { return "block" }

func (blockingRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for range changes {
		res.Violations = append(res.Violations, domain.Violation{Rule: "block", Severity: domain.SeverityBlock})
	}
	return res, nil
}

func TestStoreMutatorErrorRollsBack(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	var id string
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		p, err := tx.CreatePerson(domain.Person{Name: "Ana", OwnerID: "u1"})
		id = p.ID
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	boom := errors.New("boom")
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdatePerson(id, func(p *domain.Person) error {
			p.Name = "Changed"
			return boom
		})
		return err
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected mutator error, got %v", err)
	}
	got, _ := store.GetPerson(id)
	if got.Name != "Ana" {
		t.Fatalf("expected rollback, got %q", got.Name)
	}
}

func TestStoreDuplicateAndMissing(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.CreatePerson(domain.Person{Base: domain.Base{ID: "p1"}, Name: "A", OwnerID: "u"}); err != nil {
			return err
		}
		if _, err := tx.CreatePerson(domain.Person{Base: domain.Base{ID: "p1"}, Name: "B", OwnerID: "u"}); err == nil {
			t.Fatalf("expected duplicate id error")
		}
		if _, err := tx.UpdatePerson("missing", func(*domain.Person) error { return nil }); err == nil {
			t.Fatalf("expected missing update error")
		}
		if err := tx.DeletePerson("missing"); err == nil {
			t.Fatalf("expected missing delete error")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
}

func TestStoreUpdateKeepsIdentityAndCreation(t *testing.T) {
	store := NewStore(nil)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)
	store.SetNowFunc(func() time.Time { return created })
	ctx := context.Background()
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreatePerson(domain.Person{Base: domain.Base{ID: "p1"}, Name: "A", OwnerID: "u"})
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	store.SetNowFunc(func() time.Time { return updated })
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdatePerson("p1", func(p *domain.Person) error {
			p.ID = "hijack"
			p.CreatedAt = time.Time{}
			p.Name = "B"
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, ok := store.GetPerson("p1")
	if !ok || got.Name != "B" {
		t.Fatalf("expected updated person, got %+v", got)
	}
	if !got.CreatedAt.Equal(created) || !got.UpdatedAt.Equal(updated) {
		t.Fatalf("unexpected timestamps: %v %v", got.CreatedAt, got.UpdatedAt)
	}
}

func TestStoreDeleteClearsReferences(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		for _, p := range []domain.Person{
			{Base: domain.Base{ID: "dad"}, Name: "Dad", OwnerID: "u"},
			{Base: domain.Base{ID: "mom"}, Name: "Mom", OwnerID: "u", SpouseID: domain.Ref("dad")},
			{Base: domain.Base{ID: "kid"}, Name: "Kid", OwnerID: "u", FatherID: domain.Ref("dad"), MotherID: domain.Ref("mom")},
		} {
			if _, err := tx.CreatePerson(p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeletePerson("dad")
	}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	kid, _ := store.GetPerson("kid")
	if kid.FatherID != nil {
		t.Fatalf("expected father reference cleared")
	}
	if kid.Parent(domain.RoleMother) != "mom" {
		t.Fatalf("expected mother reference kept")
	}
	mom, _ := store.GetPerson("mom")
	if mom.SpouseID != nil {
		t.Fatalf("expected spouse reference cleared")
	}
}

func TestViewChildrenAndSpouseLookups(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		for _, p := range []domain.Person{
			{Base: domain.Base{ID: "dad"}, Name: "Dad", OwnerID: "u"},
			{Base: domain.Base{ID: "wife"}, Name: "Wife", OwnerID: "u", SpouseID: domain.Ref("dad")},
			{Base: domain.Base{ID: "c-undated"}, Name: "Zed", OwnerID: "u", FatherID: domain.Ref("dad")},
			{Base: domain.Base{ID: "c-young"}, Name: "Young", OwnerID: "u", FatherID: domain.Ref("dad"), BirthDate: date(2001, 5, 1)},
			{Base: domain.Base{ID: "c-old"}, Name: "Old", OwnerID: "u", FatherID: domain.Ref("dad"), BirthDate: date(1990, 5, 1)},
		} {
			if _, err := tx.CreatePerson(p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	err = store.View(ctx, func(view domain.TransactionView) error {
		children := view.ChildrenOf("dad", domain.RoleFather)
		want := []string{"c-old", "c-young", "c-undated"}
		if len(children) != len(want) {
			t.Fatalf("expected %d children, got %d", len(want), len(children))
		}
		for i, id := range want {
			if children[i].ID != id {
				t.Fatalf("child %d: want %s got %s", i, id, children[i].ID)
			}
		}
		if len(view.ChildrenOf("dad", domain.RoleMother)) != 0 {
			t.Fatalf("expected no children through mother role")
		}
		spouses := view.SpousesPointingTo("dad")
		if len(spouses) != 1 || spouses[0].ID != "wife" {
			t.Fatalf("unexpected reverse spouse lookup: %+v", spouses)
		}
		if view.SpousesPointingTo("") != nil {
			t.Fatalf("expected nil for empty id")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestImportStateMigratesLegacyRecords(t *testing.T) {
	store := NewStore(nil)
	blank := " "
	store.ImportState(Snapshot{Persons: map[string]domain.Person{
		"p1": {Name: "Legacy", OwnerID: "u", BirthRegion: "rj", FatherID: &blank},
	}})
	p, ok := store.GetPerson("p1")
	if !ok {
		t.Fatalf("expected person keyed by map key")
	}
	if p.ID != "p1" || p.BirthRegion != "RJ" || p.FatherID != nil {
		t.Fatalf("unexpected migrated record: %+v", p)
	}
}
