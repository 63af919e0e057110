package kinship

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"kincore/pkg/domain"
)

// GroupKind distinguishes the row groups produced for layout.
type GroupKind string

const (
	GroupCouple   GroupKind = "couple"
	GroupSiblings GroupKind = "siblings"
	GroupSolo     GroupKind = "solo"
)

// Group is an ordered set of members rendered next to each other.
type Group struct {
	Key     string    `json:"key"`
	Kind    GroupKind `json:"kind"`
	Members []string  `json:"members"`
}

// LevelRow holds the groups of one generation.
type LevelRow struct {
	Level  int     `json:"level"`
	Groups []Group `json:"groups"`
}

// Levels is the output of AssignLevels.
type Levels struct {
	LevelOf map[string]int
	Rows    []LevelRow
}

// AssignLevels walks the graph breadth-first from rootID: a parent edge moves
// one generation up (-1), a child edge one down (+1), a spouse edge stays on
// the same level. Only graph members are visited. Members are then grouped per
// level into couples, sibling groups and one solo group. Couples are matched
// greedily: the parents of the root's line first, then parents of a member one
// level down, then spouses without shared children on that level.
func AssignLevels(g *Graph, rootID string) Levels {
	levelOf := make(map[string]int, g.Len())
	if !g.Has(rootID) {
		return Levels{LevelOf: levelOf}
	}
	levelOf[rootID] = 0
	queue := []string{rootID}
	visit := func(id string, level int) {
		if _, seen := levelOf[id]; seen || !g.Has(id) {
			return
		}
		levelOf[id] = level
		queue = append(queue, id)
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		level := levelOf[id]
		for _, parentID := range g.parentIDs(id) {
			visit(parentID, level-1)
		}
		for _, spouseID := range g.Spouses(id) {
			visit(spouseID, level)
		}
		for _, childID := range g.Children(id) {
			visit(childID, level+1)
		}
	}

	byLevel := make(map[int][]string)
	for id, level := range levelOf {
		byLevel[level] = append(byLevel[level], id)
	}
	levels := make([]int, 0, len(byLevel))
	for level := range byLevel {
		levels = append(levels, level)
	}
	slices.Sort(levels)

	lineage := directLine(g, rootID)
	rows := make([]LevelRow, 0, len(levels))
	for _, level := range levels {
		ids := byLevel[level]
		slices.Sort(ids)
		rows = append(rows, LevelRow{Level: level, Groups: groupLevel(g, ids, level, levelOf, lineage)})
	}
	return Levels{LevelOf: levelOf, Rows: rows}
}

// directLine returns the root and every ancestor reachable through graph
// members.
func directLine(g *Graph, rootID string) map[string]struct{} {
	line := map[string]struct{}{rootID: {}}
	queue := []string{rootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, parentID := range g.parentIDs(id) {
			if _, seen := line[parentID]; !seen {
				line[parentID] = struct{}{}
				queue = append(queue, parentID)
			}
		}
	}
	return line
}

// pairLinks records how two members on one level are connected.
type pairLinks struct {
	spouses bool
	parents bool // parents of a member one level down
	lineage bool // parents of the root or one of its ancestors
}

// rank orders candidate couples; lower ranks are matched first.
func (l pairLinks) rank() int {
	switch {
	case l.lineage:
		return 0
	case l.parents && l.spouses:
		return 1
	case l.parents:
		return 2
	case l.spouses:
		return 3
	default:
		return 4
	}
}

type couplePair struct {
	ids  [2]string
	rank int
}

func groupLevel(g *Graph, ids []string, level int, levelOf map[string]int, lineage map[string]struct{}) []Group {
	onLevel := func(id string, want int) bool {
		l, ok := levelOf[id]
		return ok && l == want
	}

	links := make(map[[2]string]pairLinks)
	for _, id := range ids {
		for _, spouseID := range g.Spouses(id) {
			if id != spouseID && onLevel(spouseID, level) {
				pair := sortedPair(id, spouseID)
				l := links[pair]
				l.spouses = true
				links[pair] = l
			}
		}
	}
	for _, unit := range g.Families() {
		if unit.FatherID == "" || unit.MotherID == "" {
			continue
		}
		if !onLevel(unit.FatherID, level) || !onLevel(unit.MotherID, level) {
			continue
		}
		pair := sortedPair(unit.FatherID, unit.MotherID)
		l := links[pair]
		for _, childID := range unit.ChildIDs {
			if !onLevel(childID, level+1) {
				continue
			}
			l.parents = true
			if _, ok := lineage[childID]; ok {
				l.lineage = true
			}
		}
		links[pair] = l
	}

	pairs := make([]couplePair, 0, len(links))
	for pair, l := range links {
		pairs = append(pairs, couplePair{ids: pair, rank: l.rank()})
	}
	slices.SortFunc(pairs, func(a, b couplePair) int {
		if c := cmp.Compare(a.rank, b.rank); c != 0 {
			return c
		}
		return strings.Compare(coupleKey(a.ids[0], a.ids[1]), coupleKey(b.ids[0], b.ids[1]))
	})

	paired := make(map[string]struct{})
	var groups []Group
	for _, pair := range pairs {
		a, b := pair.ids[0], pair.ids[1]
		_, aTaken := paired[a]
		_, bTaken := paired[b]
		if aTaken || bTaken {
			continue
		}
		paired[a] = struct{}{}
		paired[b] = struct{}{}
		members := []string{a, b}
		slices.SortFunc(members, func(x, y string) int { return compareCoupleMembers(g, x, y) })
		groups = append(groups, Group{Key: coupleKey(a, b), Kind: GroupCouple, Members: members})
	}

	siblings := make(map[string][]string)
	var solo []string
	for _, id := range ids {
		if _, ok := paired[id]; ok {
			continue
		}
		father, mother := g.Parents(id)
		if father == "" && mother == "" {
			solo = append(solo, id)
			continue
		}
		key := fmt.Sprintf("siblings_%s_%s", orNone(father), orNone(mother))
		siblings[key] = append(siblings[key], id)
	}
	for key, members := range siblings {
		slices.SortFunc(members, func(a, b string) int { return compareByBirthID(g, a, b) })
		groups = append(groups, Group{Key: key, Kind: GroupSiblings, Members: members})
	}
	if len(solo) > 0 {
		slices.SortFunc(solo, func(a, b string) int { return compareByBirthID(g, a, b) })
		groups = append(groups, Group{Key: soloKey, Kind: GroupSolo, Members: solo})
	}

	slices.SortFunc(groups, func(a, b Group) int {
		if c := cmp.Compare(groupRank(a.Kind), groupRank(b.Kind)); c != 0 {
			return c
		}
		return strings.Compare(a.Key, b.Key)
	})
	return groups
}

// soloKey names the single group of parentless members on a level.
const soloKey = "siblings_none_none"

func sortedPair(a, b string) [2]string {
	if b < a {
		return [2]string{b, a}
	}
	return [2]string{a, b}
}

func coupleKey(a, b string) string {
	pair := sortedPair(a, b)
	return fmt.Sprintf("couple_%s_%s", pair[0], pair[1])
}

func groupRank(kind GroupKind) int {
	switch kind {
	case GroupCouple:
		return 0
	case GroupSiblings:
		return 1
	default:
		return 2
	}
}

func genderRank(g domain.Gender) int {
	switch g {
	case domain.GenderMale:
		return 0
	case domain.GenderFemale:
		return 1
	default:
		return 2
	}
}

func compareCoupleMembers(g *Graph, a, b string) int {
	pa, _ := g.Person(a)
	pb, _ := g.Person(b)
	if c := cmp.Compare(genderRank(pa.Gender), genderRank(pb.Gender)); c != 0 {
		return c
	}
	if c := strings.Compare(pa.Name, pb.Name); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

func compareByBirthID(g *Graph, a, b string) int {
	pa, _ := g.Person(a)
	pb, _ := g.Person(b)
	return domain.CompareByBirth(pa, pb)
}
