package seed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kincore/internal/core"
	"kincore/internal/kinship"
	"kincore/pkg/domain"
)

const family = `
persons:
  - key: ana
    name: Ana
    gender: f
    birth_date: 1990-03-01
    father: dad
    mother: mom
  - key: dad
    name: João
    gender: M
    birth_date: 1960-01-01
    birth_region: sp
  - key: mom
    name: Maria
    gender: F
    birth_date: 1962-05-10
    birth_region: Minas
    spouse: dad
  - key: vo
    name: Avô
    gender: M
    death_date_uncertain: "circa 1990"
`

var owner = domain.Viewer{OwnerID: "u1"}

func TestImportLinksEntriesInAnyOrder(t *testing.T) {
	f, err := Parse(strings.NewReader(family))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine())
	ctx := context.Background()

	res, err := Import(ctx, svc, owner, f)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(res.IDs) != 4 {
		t.Fatalf("expected 4 ids, got %v", res.IDs)
	}
	// mom's region is checked on create and again when her spouse is linked
	if len(res.Warnings) != 2 {
		t.Fatalf("expected two region warnings, got %+v", res.Warnings)
	}
	for _, w := range res.Warnings {
		if w.Rule != "person_validity" || w.EntityID != res.IDs["mom"] {
			t.Fatalf("unexpected warning %+v", w)
		}
	}

	ana, err := svc.GetPerson(ctx, owner, res.IDs["ana"])
	if err != nil {
		t.Fatalf("GetPerson: %v", err)
	}
	if ana.Parent(domain.RoleFather) != res.IDs["dad"] || ana.Parent(domain.RoleMother) != res.IDs["mom"] || ana.Gender != domain.GenderFemale {
		t.Fatalf("unexpected ana %+v", ana)
	}
	mom, _ := svc.GetPerson(ctx, owner, res.IDs["mom"])
	if mom.Spouse() != res.IDs["dad"] {
		t.Fatalf("expected mom married to dad, got %q", mom.Spouse())
	}

	tree, err := svc.BuildTree(ctx, owner, res.IDs["dad"], res.IDs["ana"])
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	if len(tree.Nodes) != 3 || tree.Nodes[res.IDs["dad"]].Relation != kinship.LabelParent {
		t.Fatalf("unexpected tree %+v", tree.Nodes)
	}
}

func TestImportReferencesExistingPersons(t *testing.T) {
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine())
	ctx := context.Background()
	existing, _, err := svc.CreatePerson(ctx, owner, domain.Person{Name: "Old", Gender: domain.GenderMale})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f := File{Persons: []Entry{{Key: "kid", Name: "Kid", Gender: "M", Father: existing.ID}}}
	res, err := Import(ctx, svc, owner, f)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	kid, _ := svc.GetPerson(ctx, owner, res.IDs["kid"])
	if kid.Parent(domain.RoleFather) != existing.ID {
		t.Fatalf("expected link to existing person, got %+v", kid)
	}
}

func TestImportStopsOnFailure(t *testing.T) {
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine())
	ctx := context.Background()

	_, err := Import(ctx, svc, owner, File{Persons: []Entry{{Key: "a", Name: "A", Gender: "M", BirthDate: "1/1/1990"}}})
	if err == nil || !strings.Contains(err.Error(), "birth_date must be YYYY-MM-DD") {
		t.Fatalf("expected date error, got %v", err)
	}

	_, err = Import(ctx, svc, owner, File{Persons: []Entry{{Key: "a", Name: "A", Gender: "M", Father: "ghost"}}})
	var notFound core.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected unresolved reference to fail, got %v", err)
	}

	_, err = Import(ctx, svc, owner, File{Persons: []Entry{{Key: "a", Name: "A", Gender: "M", Owner: "u2"}}})
	if !errors.Is(err, core.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestParseRejectsBadDocuments(t *testing.T) {
	tests := []struct {
		name, doc, want string
	}{
		{"empty", "", "empty"},
		{"missing key", "persons:\n  - name: A\n", "key is required"},
		{"duplicate key", "persons:\n  - key: a\n  - key: a\n", `duplicate key "a"`},
		{"unknown field", "persons:\n  - key: a\n    nickname: x\n", "nickname"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.doc))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "family.yaml")
	if err := os.WriteFile(path, []byte(family), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := ParseFile(path)
	if err != nil || len(f.Persons) != 4 {
		t.Fatalf("ParseFile: %d %v", len(f.Persons), err)
	}
	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestParseTrimsKeysAndReferences(t *testing.T) {
	doc := `
persons:
  - key: " kid "
    name: Kid
    gender: M
    father: "dad  "
  - key: "  dad"
    name: Dad
    gender: M
`
	f, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.Persons[0].Key != "kid" || f.Persons[0].Father != "dad" || f.Persons[1].Key != "dad" {
		t.Fatalf("expected trimmed entries, got %+v", f.Persons)
	}

	svc := core.NewInMemoryService(core.NewDefaultRulesEngine())
	ctx := context.Background()
	res, err := Import(ctx, svc, owner, f)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	kid, err := svc.GetPerson(ctx, owner, res.IDs["kid"])
	if err != nil {
		t.Fatalf("GetPerson: %v", err)
	}
	if kid.Parent(domain.RoleFather) != res.IDs["dad"] {
		t.Fatalf("padded reference did not resolve: %+v", kid)
	}
}
