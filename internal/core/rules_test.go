package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"kincore/pkg/domain"
)

func runTx(t *testing.T, store *MemoryStore, fn func(Transaction) error) (Result, error) {
	t.Helper()
	return store.RunInTransaction(context.Background(), fn)
}

func hasViolation(res Result, rule string, severity Severity, fragment string) bool {
	for _, v := range res.Violations {
		if v.Rule == rule && v.Severity == severity && strings.Contains(v.Message, fragment) {
			return true
		}
	}
	return false
}

func blockingResult(t *testing.T, err error) Result {
	t.Helper()
	var violation RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected RuleViolationError, got %v", err)
	}
	return violation.Result
}

func TestLineageIntegrityRuleBlocksBrokenReferences(t *testing.T) {
	store := NewMemoryStore(NewDefaultRulesEngine())
	if _, err := runTx(t, store, func(tx Transaction) error {
		_, err := tx.CreatePerson(Person{Base: Base{ID: "dad"}, Name: "Dad", Gender: GenderMale, OwnerID: "u1"})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cases := []struct {
		name     string
		person   Person
		fragment string
	}{
		{"same father and mother", Person{Base: Base{ID: "kid"}, Name: "Kid", Gender: GenderOther, OwnerID: "u1", FatherID: domain.Ref("dad"), MotherID: domain.Ref("dad")}, "both father and mother"},
		{"self father", Person{Base: Base{ID: "kid"}, Name: "Kid", Gender: GenderOther, OwnerID: "u1", FatherID: domain.Ref("kid")}, "itself as father"},
		{"self spouse", Person{Base: Base{ID: "kid"}, Name: "Kid", Gender: GenderOther, OwnerID: "u1", SpouseID: domain.Ref("kid")}, "itself as spouse"},
		{"missing mother", Person{Base: Base{ID: "kid"}, Name: "Kid", Gender: GenderOther, OwnerID: "u1", MotherID: domain.Ref("ghost")}, "missing mother ghost"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := runTx(t, store, func(tx Transaction) error {
				_, err := tx.CreatePerson(tc.person)
				return err
			})
			res := blockingResult(t, err)
			if !hasViolation(res, "lineage_integrity", SeverityBlock, tc.fragment) {
				t.Fatalf("expected block containing %q, got %+v", tc.fragment, res.Violations)
			}
			if _, ok := store.GetPerson("kid"); ok {
				t.Fatalf("blocked transaction must not commit")
			}
		})
	}
}

func TestLineageIntegrityRuleWarnsOnAncestorCycle(t *testing.T) {
	store := NewMemoryStore(NewDefaultRulesEngine())
	if _, err := runTx(t, store, func(tx Transaction) error {
		if _, err := tx.CreatePerson(Person{Base: Base{ID: "a"}, Name: "A", Gender: GenderMale, OwnerID: "u1"}); err != nil {
			return err
		}
		_, err := tx.CreatePerson(Person{Base: Base{ID: "b"}, Name: "B", Gender: GenderMale, OwnerID: "u1", FatherID: domain.Ref("a")})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	res, err := runTx(t, store, func(tx Transaction) error {
		_, err := tx.UpdatePerson("a", func(p *Person) error {
			p.FatherID = domain.Ref("b")
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("cycles must only warn, got %v", err)
	}
	if !hasViolation(res, "lineage_integrity", SeverityWarn, "own ancestor") {
		t.Fatalf("expected cycle warning, got %+v", res.Violations)
	}
}

func TestLineageIntegrityRuleLogsCrossOwnerParent(t *testing.T) {
	store := NewMemoryStore(NewDefaultRulesEngine())
	res, err := runTx(t, store, func(tx Transaction) error {
		if _, err := tx.CreatePerson(Person{Base: Base{ID: "mom"}, Name: "Mom", Gender: GenderFemale, OwnerID: "u2"}); err != nil {
			return err
		}
		_, err := tx.CreatePerson(Person{Base: Base{ID: "kid"}, Name: "Kid", Gender: GenderFemale, OwnerID: "u1", MotherID: domain.Ref("mom")})
		return err
	})
	if err != nil {
		t.Fatalf("cross owner parents are allowed: %v", err)
	}
	if !hasViolation(res, "lineage_integrity", SeverityLog, "another owner") {
		t.Fatalf("expected log violation, got %+v", res.Violations)
	}
}

func TestLineageIntegrityRuleIgnoresUntouchedLegacyData(t *testing.T) {
	store := NewMemoryStore(NewRulesEngine())
	if _, err := runTx(t, store, func(tx Transaction) error {
		_, err := tx.CreatePerson(Person{Base: Base{ID: "legacy"}, Name: "Legacy", Gender: GenderMale, OwnerID: "u1", FatherID: domain.Ref("gone")})
		return err
	}); err != nil {
		t.Fatalf("seed without rules: %v", err)
	}
	store.RulesEngine().Register(LineageIntegrityRule())

	if _, err := runTx(t, store, func(tx Transaction) error {
		_, err := tx.CreatePerson(Person{Base: Base{ID: "fresh"}, Name: "Fresh", Gender: GenderFemale, OwnerID: "u1"})
		return err
	}); err != nil {
		t.Fatalf("unrelated legacy references must not block: %v", err)
	}
}

func TestDeleteClearsReferencesWithoutViolations(t *testing.T) {
	store := NewMemoryStore(NewDefaultRulesEngine())
	if _, err := runTx(t, store, func(tx Transaction) error {
		if _, err := tx.CreatePerson(Person{Base: Base{ID: "dad"}, Name: "Dad", Gender: GenderMale, OwnerID: "u1"}); err != nil {
			return err
		}
		if _, err := tx.CreatePerson(Person{Base: Base{ID: "mom"}, Name: "Mom", Gender: GenderFemale, OwnerID: "u1", SpouseID: domain.Ref("dad")}); err != nil {
			return err
		}
		_, err := tx.CreatePerson(Person{Base: Base{ID: "kid"}, Name: "Kid", Gender: GenderFemale, OwnerID: "u1", FatherID: domain.Ref("dad"), MotherID: domain.Ref("mom")})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	res, err := runTx(t, store, func(tx Transaction) error { return tx.DeletePerson("dad") })
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if res.HasBlocking() {
		t.Fatalf("unexpected blocking violations %+v", res.Violations)
	}
	kid, _ := store.GetPerson("kid")
	mom, _ := store.GetPerson("mom")
	if kid.FatherID != nil || kid.Parent(domain.RoleMother) != "mom" || mom.SpouseID != nil {
		t.Fatalf("expected references to dad cleared, got kid=%+v mom=%+v", kid, mom)
	}
}

func TestPersonValidityRule(t *testing.T) {
	born := time.Date(1980, 5, 1, 0, 0, 0, 0, time.UTC)
	died := born.AddDate(-1, 0, 0)
	cases := []struct {
		name     string
		person   Person
		severity Severity
		fragment string
	}{
		{"empty name", Person{Name: "  ", Gender: GenderMale, OwnerID: "u1"}, SeverityBlock, "empty name"},
		{"bad gender", Person{Name: "X", Gender: "Z", OwnerID: "u1"}, SeverityBlock, "unsupported gender"},
		{"no owner", Person{Name: "X", Gender: GenderMale}, SeverityBlock, "no owner"},
		{"death before birth", Person{Name: "X", Gender: GenderMale, OwnerID: "u1", BirthDate: &born, DeathDate: &died}, SeverityBlock, "died before"},
		{"both death forms", Person{Name: "X", Gender: GenderMale, OwnerID: "u1", DeathDate: &born, DeathDateUncertain: "around 1990"}, SeverityBlock, "exact and an uncertain"},
		{"odd region", Person{Name: "X", Gender: GenderMale, OwnerID: "u1", BirthRegion: "São Paulo"}, SeverityWarn, "two letter code"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := NewMemoryStore(NewDefaultRulesEngine())
			res, err := runTx(t, store, func(tx Transaction) error {
				_, err := tx.CreatePerson(tc.person)
				return err
			})
			if tc.severity == SeverityBlock {
				res = blockingResult(t, err)
			} else if err != nil {
				t.Fatalf("warnings must not block: %v", err)
			}
			if !hasViolation(res, "person_validity", tc.severity, tc.fragment) {
				t.Fatalf("expected %s violation containing %q, got %+v", tc.severity, tc.fragment, res.Violations)
			}
		})
	}
}

func TestDefaultRulesEngineOrder(t *testing.T) {
	rules := NewDefaultRulesEngine().Rules()
	if len(rules) != 2 || rules[0].Name() != "lineage_integrity" || rules[1].Name() != "person_validity" {
		names := make([]string, 0, len(rules))
		for _, r := range rules {
			names = append(names, r.Name())
		}
		t.Fatalf("unexpected default rules %v", names)
	}
}
