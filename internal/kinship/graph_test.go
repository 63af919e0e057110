package kinship

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuildGraphReachesEveryRelativeOnce(t *testing.T) {
	store := extendedFamily()
	g := mustGraph(t, store, "r", owner)

	if g.Len() != len(store.persons) {
		t.Fatalf("expected %d members, got %d: %v", len(store.persons), g.Len(), g.IDs())
	}
	order := g.DiscoveryOrder()
	if order[0] != "r" {
		t.Fatalf("expected traversal to start at root, got %s", order[0])
	}
	seen := make(map[string]struct{})
	for _, id := range order {
		if _, dup := seen[id]; dup {
			t.Fatalf("person %s discovered twice", id)
		}
		seen[id] = struct{}{}
	}
	if store.finds > len(store.persons) {
		t.Fatalf("expected each person fetched at most once, got %d lookups for %d persons", store.finds, len(store.persons))
	}
	if len(g.Warnings()) != 0 {
		t.Fatalf("unexpected warnings: %+v", g.Warnings())
	}
}

func TestBuildGraphFamilies(t *testing.T) {
	g := mustGraph(t, extendedFamily(), "r", owner)

	var ids []string
	for _, unit := range g.Families() {
		ids = append(ids, unit.ID)
	}
	want := []string{
		"family_f_m", "family_f_m2", "family_f_m3", "family_ggf_none", "family_gf_gm",
		"family_gu_none", "family_kw_k", "family_none_gc1", "family_ox_w", "family_r_w",
		"family_sh_s", "family_u_ua", "family_wf_none",
	}
	slices.Sort(want)
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Fatalf("family ids mismatch (-want +got):\n%s", diff)
	}

	unit, ok := g.Family("family_f_m")
	if !ok {
		t.Fatalf("expected family_f_m")
	}
	if diff := cmp.Diff([]string{"s", "r"}, unit.ChildIDs); diff != "" {
		t.Fatalf("children should be birth ordered (-want +got):\n%s", diff)
	}
	couple, _ := g.Family("family_f_m3")
	if len(couple.ChildIDs) != 0 || couple.FatherID != "f" || couple.MotherID != "m3" {
		t.Fatalf("expected childless couple unit slotted by gender, got %+v", couple)
	}
	single, _ := g.Family("family_none_gc1")
	if diff := cmp.Diff([]string{"gc2"}, single.ChildIDs); diff != "" {
		t.Fatalf("single mother unit mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildGraphAccessors(t *testing.T) {
	g := mustGraph(t, extendedFamily(), "r", owner)

	if diff := cmp.Diff([]string{"s", "r", "h"}, g.Children("f")); diff != "" {
		t.Fatalf("children of f mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"m", "m3"}, g.Spouses("f")); diff != "" {
		t.Fatalf("spouses of f mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"h", "s"}, g.Siblings("r")); diff != "" {
		t.Fatalf("siblings of r mismatch (-want +got):\n%s", diff)
	}
	if !g.AreSiblings("r", "h") || g.AreSiblings("r", "c") || g.AreSiblings("r", "r") {
		t.Fatalf("unexpected sibling relation")
	}
	father, mother := g.Parents("gc2")
	if father != "" || mother != "gc1" {
		t.Fatalf("expected gc2 parents (\"\", gc1), got (%q, %q)", father, mother)
	}
}

func TestBuildGraphSpouseLinkIsSymmetric(t *testing.T) {
	store := newFakeStore(people(
		rel{id: "a", gender: M},
		rel{id: "b", gender: F, spouse: "a"},
	)...)
	fromA := mustGraph(t, store, "a", owner)
	fromB := mustGraph(t, store, "b", owner)
	if diff := cmp.Diff([]string{"b"}, fromA.Spouses("a")); diff != "" {
		t.Fatalf("spouse of a mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a"}, fromB.Spouses("b")); diff != "" {
		t.Fatalf("spouse of b mismatch (-want +got):\n%s", diff)
	}
	if _, ok := fromA.Family("family_a_b"); !ok {
		t.Fatalf("expected couple unit family_a_b")
	}
}

func TestBuildGraphHidesOtherOwners(t *testing.T) {
	store := newFakeStore(people(
		rel{id: "r", gender: M, father: "pf", mother: "pm", born: 1990},
		rel{id: "sb", gender: F, father: "pf", mother: "pm", born: 1988},
		rel{id: "pf", gender: M, owner: "u2", spouse: "pm"},
		rel{id: "pm", gender: F},
		rel{id: "other", gender: M, father: "pf", owner: "u2"},
	)...)

	g := mustGraph(t, store, "r", owner)
	if diff := cmp.Diff([]string{"pm", "r", "sb"}, g.IDs()); diff != "" {
		t.Fatalf("visible members mismatch (-want +got):\n%s", diff)
	}
	for _, unit := range g.Families() {
		if strings.Contains(unit.ID, "pf") || unit.FatherID == "pf" {
			t.Fatalf("hidden person leaked into family %+v", unit)
		}
	}
	unit, ok := g.Family("family_none_pm")
	if !ok {
		t.Fatalf("expected mother-only unit, got %v", g.Families())
	}
	if diff := cmp.Diff([]string{"sb", "r"}, unit.ChildIDs); diff != "" {
		t.Fatalf("children mismatch (-want +got):\n%s", diff)
	}
	if len(g.Spouses("pm")) != 0 {
		t.Fatalf("hidden spouse exposed: %v", g.Spouses("pm"))
	}

	all := mustGraph(t, store, "r", admin)
	if diff := cmp.Diff([]string{"other", "pf", "pm", "r", "sb"}, all.IDs()); diff != "" {
		t.Fatalf("admin members mismatch (-want +got):\n%s", diff)
	}
	if _, ok := all.Family("family_pf_pm"); !ok {
		t.Fatalf("expected admin to see family_pf_pm")
	}
}

func TestBuildGraphRootUnavailable(t *testing.T) {
	store := newFakeStore(person(rel{id: "x", gender: M, owner: "u2"}))
	for _, root := range []string{"x", "missing", ""} {
		_, err := BuildGraph(context.Background(), store, root, owner)
		if !errors.Is(err, ErrRootUnavailable) {
			t.Fatalf("root %q: expected ErrRootUnavailable, got %v", root, err)
		}
	}
}

func TestBuildGraphCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := BuildGraph(ctx, extendedFamily(), "r", owner)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBuildGraphCycleTerminatesWithWarning(t *testing.T) {
	store := newFakeStore(people(
		rel{id: "a", gender: M, father: "b"},
		rel{id: "b", gender: M, father: "a"},
	)...)
	g := mustGraph(t, store, "a", owner)
	if g.Len() != 2 {
		t.Fatalf("expected both members, got %v", g.IDs())
	}
	warnings := g.Warnings()
	if len(warnings) == 0 || warnings[0].Code != WarningLineageCycle {
		t.Fatalf("expected lineage cycle warning, got %+v", warnings)
	}

	c := NewClassifier(g)
	if got := c.Classify("b", "a"); got != LabelParent {
		t.Fatalf("expected parent, got %q", got)
	}
	if _, ok := c.AncestorsWithLevels("a")["a"]; ok {
		t.Fatalf("a person must never be its own ancestor")
	}
}

func TestBuildGraphDropsSelfAndDuplicateParents(t *testing.T) {
	store := newFakeStore(people(
		rel{id: "x", gender: M, father: "x"},
		rel{id: "y", gender: M, father: "q", mother: "q"},
		rel{id: "q", gender: M},
	)...)

	g := mustGraph(t, store, "x", owner)
	if father, mother := g.Parents("x"); father != "" || mother != "" {
		t.Fatalf("expected self reference dropped, got (%q, %q)", father, mother)
	}
	want := []Warning{{Code: WarningLineageCycle, PersonID: "x", Message: "person x references itself as father"}}
	if diff := cmp.Diff(want, g.Warnings()); diff != "" {
		t.Fatalf("warnings mismatch (-want +got):\n%s", diff)
	}

	g = mustGraph(t, store, "y", owner)
	if father, mother := g.Parents("y"); father != "q" || mother != "" {
		t.Fatalf("expected duplicate mother dropped, got (%q, %q)", father, mother)
	}
	if _, ok := g.Family("family_q_none"); !ok {
		t.Fatalf("expected family_q_none, got %v", g.Families())
	}
}

func TestBuildGraphIgnoresDanglingReferences(t *testing.T) {
	store := newFakeStore(person(rel{id: "r", gender: F, father: "ghost", spouse: "nobody"}))
	g := mustGraph(t, store, "r", owner)
	if g.Len() != 1 || len(g.Families()) != 0 {
		t.Fatalf("expected lone root, got members %v families %v", g.IDs(), g.Families())
	}
}
