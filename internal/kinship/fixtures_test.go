package kinship

import (
	"context"
	"slices"
	"strings"
	"testing"
	"time"

	"kincore/pkg/domain"
)

type fakeStore struct {
	persons map[string]domain.Person
	finds   int
}

func newFakeStore(persons ...domain.Person) *fakeStore {
	s := &fakeStore{persons: make(map[string]domain.Person)}
	for _, p := range persons {
		s.persons[p.ID] = p
	}
	return s
}

func (s *fakeStore) FindPerson(id string) (domain.Person, bool) {
	s.finds++
	p, ok := s.persons[id]
	return p, ok
}

func (s *fakeStore) ChildrenOf(parentID string, role domain.ParentRole) []domain.Person {
	var out []domain.Person
	for _, p := range s.persons {
		if p.Parent(role) == parentID {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, domain.CompareByBirth)
	return out
}

func (s *fakeStore) SpousesPointingTo(id string) []domain.Person {
	var out []domain.Person
	for _, p := range s.persons {
		if p.Spouse() == id {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b domain.Person) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// rel describes a person: id, gender, then optional father, mother, spouse.
type rel struct {
	id, father, mother, spouse string
	gender                     domain.Gender
	born                       int
	owner                      string
}

func person(r rel) domain.Person {
	owner := r.owner
	if owner == "" {
		owner = "u1"
	}
	p := domain.Person{
		Base:     domain.Base{ID: r.id},
		Name:     strings.ToUpper(r.id[:1]) + r.id[1:],
		Gender:   r.gender,
		FatherID: domain.Ref(r.father),
		MotherID: domain.Ref(r.mother),
		SpouseID: domain.Ref(r.spouse),
		OwnerID:  owner,
	}
	if r.born != 0 {
		b := time.Date(r.born, time.June, 1, 0, 0, 0, 0, time.UTC)
		p.BirthDate = &b
	}
	return p
}

func people(rels ...rel) []domain.Person {
	out := make([]domain.Person, len(rels))
	for i, r := range rels {
		out[i] = person(r)
	}
	return out
}

const (
	M = domain.GenderMale
	F = domain.GenderFemale
	O = domain.GenderOther
)

// extendedFamily is a four-generation family around root "r".
//
//	ggf
//	├── gf ═ gm            gu
//	│   ├── f ═ m (m3 also married to f, m2 co-parent)   gc1 ── gc2
//	│   │   ├── s ═ sh ── sn
//	│   │   ├── r ═ w ── k ═ kw ── gk
//	│   │   └── h (with m2)
//	│   └── u ═ ua ── c
//	wf ── w, ws;  ox + w ── sc
func extendedFamily() *fakeStore {
	return newFakeStore(people(
		rel{id: "ggf", gender: M, born: 1900},
		rel{id: "gf", gender: M, father: "ggf", born: 1930},
		rel{id: "gm", gender: F, spouse: "gf", born: 1932},
		rel{id: "gu", gender: M, father: "ggf", born: 1934},
		rel{id: "gc1", gender: F, father: "gu", born: 1960},
		rel{id: "gc2", gender: M, mother: "gc1", born: 1988},
		rel{id: "f", gender: M, father: "gf", mother: "gm", born: 1960},
		rel{id: "m", gender: F, spouse: "f", born: 1962},
		rel{id: "m2", gender: F, born: 1965},
		rel{id: "m3", gender: F, spouse: "f", born: 1966},
		rel{id: "u", gender: M, father: "gf", mother: "gm", born: 1963},
		rel{id: "ua", gender: F, spouse: "u", born: 1964},
		rel{id: "c", gender: F, father: "u", mother: "ua", born: 1991},
		rel{id: "s", gender: F, father: "f", mother: "m", spouse: "sh", born: 1985},
		rel{id: "sh", gender: M, born: 1984},
		rel{id: "sn", gender: M, father: "sh", mother: "s", born: 2010},
		rel{id: "r", gender: M, father: "f", mother: "m", born: 1990},
		rel{id: "h", gender: M, father: "f", mother: "m2", born: 1992},
		rel{id: "wf", gender: M, born: 1950},
		rel{id: "w", gender: F, father: "wf", spouse: "r", born: 1991},
		rel{id: "ws", gender: M, father: "wf", born: 1994},
		rel{id: "ox", gender: M, born: 1989},
		rel{id: "sc", gender: O, father: "ox", mother: "w", born: 2012},
		rel{id: "k", gender: F, father: "r", mother: "w", born: 2015},
		rel{id: "kw", gender: M, spouse: "k", born: 2014},
		rel{id: "gk", gender: M, mother: "k", father: "kw", born: 2040},
	)...)
}

var admin = Viewer{OwnerID: "admin", IsAdmin: true}
var owner = Viewer{OwnerID: "u1"}

func mustGraph(t *testing.T, store PersonStore, root string, v Viewer) *Graph {
	t.Helper()
	g, err := BuildGraph(context.Background(), store, root, v)
	if err != nil {
		t.Fatalf("BuildGraph(%s): %v", root, err)
	}
	return g
}
