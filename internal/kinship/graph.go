package kinship

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"kincore/internal/logger"
	"kincore/pkg/domain"
)

// ErrRootUnavailable is returned when the build root does not exist or is not
// visible to the viewer. Callers render it as an empty tree.
var ErrRootUnavailable = errors.New("kinship: root unavailable")

// WarningCode classifies a data-integrity warning raised during a build.
type WarningCode string

const (
	// WarningLineageCycle marks a person that is its own ancestor.
	WarningLineageCycle WarningCode = "lineage_cycle"
	// WarningReferenceUnavailable marks a reference person outside the graph.
	WarningReferenceUnavailable WarningCode = "reference_unavailable"
)

// Warning is a non-fatal finding surfaced with a tree.
type Warning struct {
	Code     WarningCode `json:"code"`
	PersonID string      `json:"person_id,omitempty"`
	Message  string      `json:"message"`
}

// Graph is the viewer-scoped result of one traversal. It holds only visible
// persons and family units with at least one visible parent, indexed by id.
// A Graph is never reused across builds.
type Graph struct {
	rootID string
	viewer Viewer
	store  PersonStore

	lookups map[string]*domain.Person
	visible map[string]bool

	nodes    map[string]domain.Person
	order    []string
	families map[string]*FamilyUnit
	parentOf map[string][]string
	spouses  map[string][]string

	warnings []Warning
	warned   map[string]struct{}
}

func newGraph(store PersonStore, rootID string, viewer Viewer) *Graph {
	return &Graph{
		rootID:   rootID,
		viewer:   viewer,
		store:    store,
		lookups:  make(map[string]*domain.Person),
		visible:  make(map[string]bool),
		nodes:    make(map[string]domain.Person),
		families: make(map[string]*FamilyUnit),
		parentOf: make(map[string][]string),
		spouses:  make(map[string][]string),
		warned:   make(map[string]struct{}),
	}
}

// BuildGraph traverses breadth-first from rootID. For every dequeued person it
// resolves the unit formed by its parents, every unit in which it is a parent
// (child-derived, single-parent and couple units), and its sibling set, and
// enqueues each unvisited visible person found. Hidden persons are treated as
// absent: they are never added, enqueued, or named in a family id.
func BuildGraph(ctx context.Context, store PersonStore, rootID string, viewer Viewer) (*Graph, error) {
	log := logger.FromContext(ctx).With(logger.Scope("kinship.graph"))
	g := newGraph(store, rootID, viewer)
	root, ok := g.visiblePerson(rootID)
	if !ok {
		log.Debug("root unavailable", "root_id", rootID)
		return nil, ErrRootUnavailable
	}

	queue := []string{root.ID}
	g.addNode(root)
	enqueue := func(id string) {
		if _, seen := g.nodes[id]; seen {
			return
		}
		p, ok := g.visiblePerson(id)
		if !ok {
			return
		}
		g.addNode(p)
		queue = append(queue, id)
	}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := queue[0]
		queue = queue[1:]
		p := g.nodes[id]

		father, mother := g.resolvedParents(p)
		own := g.family(father, mother)
		if own != nil {
			for _, parentID := range own.Parents() {
				enqueue(parentID)
			}
		}

		for _, unit := range g.unitsAsParent(p) {
			enqueue(unit.Partner(p.ID))
			for _, childID := range unit.ChildIDs {
				enqueue(childID)
			}
		}
		for _, spouseID := range g.spouseIDs(p) {
			enqueue(spouseID)
		}

		if own != nil {
			for _, siblingID := range own.ChildIDs {
				enqueue(siblingID)
			}
		}
	}

	g.detectCycles()
	for _, w := range g.warnings {
		log.Warn("lineage integrity", "code", w.Code, "person_id", w.PersonID, "message", w.Message)
	}
	log.Debug("graph built", "root_id", rootID, "nodes", len(g.nodes), "families", len(g.families))
	return g, nil
}

func (g *Graph) addNode(p domain.Person) {
	g.nodes[p.ID] = p
	g.order = append(g.order, p.ID)
}

func (g *Graph) lookup(id string) (domain.Person, bool) {
	if id == "" {
		return domain.Person{}, false
	}
	if cached, ok := g.lookups[id]; ok {
		if cached == nil {
			return domain.Person{}, false
		}
		return *cached, true
	}
	p, ok := g.store.FindPerson(id)
	if !ok {
		g.lookups[id] = nil
		return domain.Person{}, false
	}
	g.lookups[id] = &p
	return p, true
}

func (g *Graph) isVisible(p domain.Person) bool {
	if v, ok := g.visible[p.ID]; ok {
		return v
	}
	v := IsVisible(p, g.viewer)
	g.visible[p.ID] = v
	return v
}

func (g *Graph) visiblePerson(id string) (domain.Person, bool) {
	p, ok := g.lookup(id)
	if !ok || !g.isVisible(p) {
		return domain.Person{}, false
	}
	return p, true
}

// resolvedParents returns the parents of p that exist and are visible. A
// parent reference to p itself, or a mother equal to the father, is dropped.
func (g *Graph) resolvedParents(p domain.Person) (father, mother string) {
	if id := p.Parent(domain.RoleFather); id != "" {
		if id == p.ID {
			g.warn(WarningLineageCycle, p.ID, fmt.Sprintf("person %s references itself as father", p.ID))
		} else if _, ok := g.visiblePerson(id); ok {
			father = id
		}
	}
	if id := p.Parent(domain.RoleMother); id != "" {
		if id == p.ID {
			g.warn(WarningLineageCycle, p.ID, fmt.Sprintf("person %s references itself as mother", p.ID))
		} else if _, ok := g.visiblePerson(id); ok && id != father {
			mother = id
		}
	}
	return father, mother
}

// family returns the memoized unit for the resolved pair, creating it on
// first request. Both ids must already be resolved; nil means neither parent
// is present.
func (g *Graph) family(fatherID, motherID string) *FamilyUnit {
	if fatherID == "" && motherID == "" {
		return nil
	}
	id := FamilyID(fatherID, motherID)
	if unit, ok := g.families[id]; ok {
		return unit
	}
	unit := &FamilyUnit{
		ID:       id,
		FatherID: fatherID,
		MotherID: motherID,
		ChildIDs: g.childrenOfPair(fatherID, motherID),
	}
	g.families[id] = unit
	for _, parentID := range unit.Parents() {
		g.parentOf[parentID] = append(g.parentOf[parentID], id)
	}
	return unit
}

func (g *Graph) childrenOfPair(fatherID, motherID string) []string {
	var candidates []domain.Person
	if fatherID != "" {
		candidates = g.store.ChildrenOf(fatherID, domain.RoleFather)
	} else {
		candidates = g.store.ChildrenOf(motherID, domain.RoleMother)
	}
	var kids []domain.Person
	for _, c := range candidates {
		if !g.isVisible(c) {
			continue
		}
		cf, cm := g.resolvedParents(c)
		if cf == fatherID && cm == motherID {
			kids = append(kids, c)
		}
	}
	slices.SortStableFunc(kids, domain.CompareByBirth)
	ids := make([]string, len(kids))
	for i, k := range kids {
		ids[i] = k.ID
	}
	return ids
}

// unitsAsParent resolves every unit in which p is a parent: one per distinct
// co-parent of its visible children (including single-parent units) plus a
// couple unit per visible spouse.
func (g *Graph) unitsAsParent(p domain.Person) []*FamilyUnit {
	for _, role := range []domain.ParentRole{domain.RoleFather, domain.RoleMother} {
		for _, c := range g.store.ChildrenOf(p.ID, role) {
			if !g.isVisible(c) {
				continue
			}
			cf, cm := g.resolvedParents(c)
			if cf != p.ID && cm != p.ID {
				continue
			}
			g.family(cf, cm)
		}
	}
	for _, spouseID := range g.spouseIDs(p) {
		spouse, ok := g.visiblePerson(spouseID)
		if !ok {
			continue
		}
		g.coupleUnit(p, spouse)
	}
	ids := slices.Clone(g.parentOf[p.ID])
	slices.Sort(ids)
	units := make([]*FamilyUnit, 0, len(ids))
	for _, id := range ids {
		units = append(units, g.families[id])
	}
	return units
}

// coupleUnit reuses any unit already holding both partners in either slot
// order; otherwise the partners are slotted by gender, falling back to id
// order when gender does not decide.
func (g *Graph) coupleUnit(a, b domain.Person) *FamilyUnit {
	if unit, ok := g.families[FamilyID(a.ID, b.ID)]; ok {
		return unit
	}
	if unit, ok := g.families[FamilyID(b.ID, a.ID)]; ok {
		return unit
	}
	father, mother := a.ID, b.ID
	switch {
	case a.Gender == b.Gender:
		if b.ID < a.ID {
			father, mother = b.ID, a.ID
		}
	case a.Gender == domain.GenderMale || b.Gender == domain.GenderFemale:
	case b.Gender == domain.GenderMale || a.Gender == domain.GenderFemale:
		father, mother = b.ID, a.ID
	}
	return g.family(father, mother)
}

// spouseIDs is the visible symmetric closure of the directed spouse link.
func (g *Graph) spouseIDs(p domain.Person) []string {
	if cached, ok := g.spouses[p.ID]; ok {
		return cached
	}
	seen := make(map[string]struct{})
	if id := p.Spouse(); id != "" && id != p.ID {
		if _, ok := g.visiblePerson(id); ok {
			seen[id] = struct{}{}
		}
	}
	for _, q := range g.store.SpousesPointingTo(p.ID) {
		if q.ID != p.ID && g.isVisible(q) {
			seen[q.ID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	g.spouses[p.ID] = ids
	return ids
}

func (g *Graph) warn(code WarningCode, personID, message string) {
	key := string(code) + "|" + personID
	if _, dup := g.warned[key]; dup {
		return
	}
	g.warned[key] = struct{}{}
	g.warnings = append(g.warnings, Warning{Code: code, PersonID: personID, Message: message})
}

// detectCycles walks parent edges depth-first and flags every person reached
// again while still on the current path.
func (g *Graph) detectCycles() {
	const (
		unvisited = iota
		onPath
		done
	)
	state := make(map[string]int, len(g.nodes))
	type frame struct {
		id      string
		parents []string
		next    int
	}
	for _, start := range g.IDs() {
		if state[start] != unvisited {
			continue
		}
		stack := []*frame{{id: start, parents: g.parentIDs(start)}}
		state[start] = onPath
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			if top.next == len(top.parents) {
				state[top.id] = done
				stack = stack[:len(stack)-1]
				continue
			}
			parentID := top.parents[top.next]
			top.next++
			switch state[parentID] {
			case onPath:
				g.warn(WarningLineageCycle, parentID, fmt.Sprintf("person %s is its own ancestor", parentID))
			case unvisited:
				state[parentID] = onPath
				stack = append(stack, &frame{id: parentID, parents: g.parentIDs(parentID)})
			}
		}
	}
}

// RootID returns the id the traversal started from.
func (g *Graph) RootID() string { return g.rootID }

// Len returns the number of persons in the graph.
func (g *Graph) Len() int { return len(g.nodes) }

// Has reports whether id is a member of the graph.
func (g *Graph) Has(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Person returns the graph member with the given id.
func (g *Graph) Person(id string) (domain.Person, bool) {
	p, ok := g.nodes[id]
	return p, ok
}

// IDs returns member ids in ascending order.
func (g *Graph) IDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// DiscoveryOrder returns member ids in the order the traversal reached them.
func (g *Graph) DiscoveryOrder() []string { return slices.Clone(g.order) }

// Families returns every unit ordered by id.
func (g *Graph) Families() []*FamilyUnit {
	ids := make([]string, 0, len(g.families))
	for id := range g.families {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]*FamilyUnit, len(ids))
	for i, id := range ids {
		out[i] = g.families[id]
	}
	return out
}

// Family returns the unit with the given id.
func (g *Graph) Family(id string) (*FamilyUnit, bool) {
	unit, ok := g.families[id]
	return unit, ok
}

// Parents returns the resolved father and mother of a member ("" if absent).
func (g *Graph) Parents(id string) (father, mother string) {
	p, ok := g.nodes[id]
	if !ok {
		return "", ""
	}
	father, mother = g.resolvedParents(p)
	if !g.Has(father) {
		father = ""
	}
	if !g.Has(mother) {
		mother = ""
	}
	return father, mother
}

func (g *Graph) parentIDs(id string) []string {
	father, mother := g.Parents(id)
	out := make([]string, 0, 2)
	if father != "" {
		out = append(out, father)
	}
	if mother != "" {
		out = append(out, mother)
	}
	return out
}

// Children returns every member that has id as a resolved parent, ordered by
// birth date with undated children last.
func (g *Graph) Children(id string) []string {
	seen := make(map[string]struct{})
	var kids []domain.Person
	for _, famID := range g.parentOf[id] {
		for _, childID := range g.families[famID].ChildIDs {
			if _, dup := seen[childID]; dup {
				continue
			}
			child, ok := g.nodes[childID]
			if !ok {
				continue
			}
			seen[childID] = struct{}{}
			kids = append(kids, child)
		}
	}
	slices.SortFunc(kids, domain.CompareByBirth)
	ids := make([]string, len(kids))
	for i, k := range kids {
		ids[i] = k.ID
	}
	return ids
}

// Spouses returns the members linked to id by a spouse reference in either
// direction.
func (g *Graph) Spouses(id string) []string {
	p, ok := g.nodes[id]
	if !ok {
		return nil
	}
	var out []string
	for _, spouseID := range g.spouseIDs(p) {
		if g.Has(spouseID) {
			out = append(out, spouseID)
		}
	}
	return out
}

// Siblings returns members sharing at least one resolved parent with id.
func (g *Graph) Siblings(id string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, parentID := range g.parentIDs(id) {
		for _, childID := range g.Children(parentID) {
			if childID == id {
				continue
			}
			if _, dup := seen[childID]; dup {
				continue
			}
			seen[childID] = struct{}{}
			out = append(out, childID)
		}
	}
	slices.Sort(out)
	return out
}

// AreSiblings reports whether a and b are distinct members sharing a parent.
func (g *Graph) AreSiblings(a, b string) bool {
	if a == "" || b == "" || a == b {
		return false
	}
	af, am := g.Parents(a)
	bf, bm := g.Parents(b)
	return sharesParent(af, bf, bm) || sharesParent(am, bf, bm)
}

func sharesParent(p, otherFather, otherMother string) bool {
	return p != "" && (p == otherFather || p == otherMother)
}

// Warnings returns the integrity warnings collected while building.
func (g *Graph) Warnings() []Warning {
	out := slices.Clone(g.warnings)
	slices.SortFunc(out, func(a, b Warning) int {
		if c := strings.Compare(string(a.Code), string(b.Code)); c != 0 {
			return c
		}
		return strings.Compare(a.PersonID, b.PersonID)
	})
	return out
}
