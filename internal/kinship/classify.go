package kinship

import (
	"maps"
	"slices"
)

// Classifier labels pairs of graph members. Distance maps are cached per
// person and live exactly as long as the classifier, which is bound to a
// single graph.
type Classifier struct {
	g           *Graph
	ancestors   map[string]map[string]int
	descendants map[string]map[string]int
}

// NewClassifier returns a classifier over g.
func NewClassifier(g *Graph) *Classifier {
	return &Classifier{
		g:           g,
		ancestors:   make(map[string]map[string]int),
		descendants: make(map[string]map[string]int),
	}
}

// AncestorsWithLevels maps every ancestor of id to its generation distance
// (1 = parent). Each ancestor keeps the shortest distance found.
func (c *Classifier) AncestorsWithLevels(id string) map[string]int {
	return maps.Clone(c.ancestorLevels(id))
}

// DescendantsWithLevels maps every descendant of id to its generation
// distance (1 = child).
func (c *Classifier) DescendantsWithLevels(id string) map[string]int {
	return maps.Clone(c.descendantLevels(id))
}

func (c *Classifier) ancestorLevels(id string) map[string]int {
	if levels, ok := c.ancestors[id]; ok {
		return levels
	}
	levels := walkLevels(id, c.g.parentIDs)
	c.ancestors[id] = levels
	return levels
}

func (c *Classifier) descendantLevels(id string) map[string]int {
	if levels, ok := c.descendants[id]; ok {
		return levels
	}
	levels := walkLevels(id, c.g.Children)
	c.descendants[id] = levels
	return levels
}

// walkLevels is a breadth-first walk from start along next. The visited set
// includes start, so cyclic data terminates and start never maps to itself.
func walkLevels(start string, next func(string) []string) map[string]int {
	levels := make(map[string]int)
	visited := map[string]struct{}{start: {}}
	frontier := []string{start}
	for depth := 1; len(frontier) > 0; depth++ {
		var upcoming []string
		for _, id := range frontier {
			for _, n := range next(id) {
				if _, seen := visited[n]; seen {
					continue
				}
				visited[n] = struct{}{}
				levels[n] = depth
				upcoming = append(upcoming, n)
			}
		}
		frontier = upcoming
	}
	return levels
}

// kinshipRule inspects subject relative to reference and reports a label when
// it applies.
type kinshipRule func(c *Classifier, subject, reference string) (Label, bool)

// Rules are evaluated in order; the first match wins. Blood relations come
// before affinity, and affinity before step relations.
var kinshipRules = []kinshipRule{
	ruleIdentity,
	ruleDirectLine,
	ruleSpouse,
	ruleSibling,
	ruleExtendedLine,
	ruleAuntUncle,
	ruleGrandAuntUncle,
	ruleFirstCousin,
	ruleDistantCousin,
	ruleInLaw,
	ruleStep,
}

// Classify returns how subject is related to reference. Ids outside the
// graph are undetermined.
func (c *Classifier) Classify(subject, reference string) Label {
	if !c.g.Has(subject) || !c.g.Has(reference) {
		return LabelUndetermined
	}
	for _, rule := range kinshipRules {
		if label, ok := rule(c, subject, reference); ok {
			return label
		}
	}
	return LabelUndetermined
}

func ruleIdentity(_ *Classifier, subject, reference string) (Label, bool) {
	return LabelSelf, subject == reference
}

func ruleDirectLine(c *Classifier, subject, reference string) (Label, bool) {
	if c.ancestorLevels(reference)[subject] == 1 {
		return LabelParent, true
	}
	if c.descendantLevels(reference)[subject] == 1 {
		return LabelChild, true
	}
	return "", false
}

func ruleSpouse(c *Classifier, subject, reference string) (Label, bool) {
	return LabelSpouse, slices.Contains(c.g.Spouses(reference), subject)
}

func ruleSibling(c *Classifier, subject, reference string) (Label, bool) {
	sf, sm := c.g.Parents(subject)
	rf, rm := c.g.Parents(reference)
	shared := 0
	for _, p := range []string{rf, rm} {
		if sharesParent(p, sf, sm) {
			shared++
		}
	}
	switch shared {
	case 2:
		return LabelFullSibling, true
	case 1:
		return LabelHalfSibling, true
	default:
		return "", false
	}
}

var (
	ancestorChain   = map[int]Label{2: LabelGrandparent, 3: LabelGreatGrandparent, 4: LabelGreatGreatGrandparent}
	descendantChain = map[int]Label{2: LabelGrandchild, 3: LabelGreatGrandchild, 4: LabelGreatGreatGrandchild}
)

func ruleExtendedLine(c *Classifier, subject, reference string) (Label, bool) {
	if label, ok := ancestorChain[c.ancestorLevels(reference)[subject]]; ok {
		return label, true
	}
	if label, ok := descendantChain[c.descendantLevels(reference)[subject]]; ok {
		return label, true
	}
	return "", false
}

// siblingOfAncestorAt reports whether person is a sibling of one of of's
// ancestors at exactly the given distance.
func (c *Classifier) siblingOfAncestorAt(person, of string, distance int) bool {
	for ancestor, d := range c.ancestorLevels(of) {
		if d == distance && c.g.AreSiblings(person, ancestor) {
			return true
		}
	}
	return false
}

func ruleAuntUncle(c *Classifier, subject, reference string) (Label, bool) {
	if c.siblingOfAncestorAt(subject, reference, 1) {
		return LabelAuntUncle, true
	}
	if c.siblingOfAncestorAt(reference, subject, 1) {
		return LabelNieceNephew, true
	}
	return "", false
}

func ruleGrandAuntUncle(c *Classifier, subject, reference string) (Label, bool) {
	if c.siblingOfAncestorAt(subject, reference, 2) {
		return LabelGrandAuntUncle, true
	}
	if c.siblingOfAncestorAt(reference, subject, 2) {
		return LabelGrandNieceNephew, true
	}
	return "", false
}

func ruleFirstCousin(c *Classifier, subject, reference string) (Label, bool) {
	subjectAnc := c.ancestorLevels(subject)
	referenceAnc := c.ancestorLevels(reference)
	common := false
	for id, d := range subjectAnc {
		if d == 2 && referenceAnc[id] == 2 {
			common = true
			break
		}
	}
	if !common {
		return "", false
	}
	for _, sp := range c.g.parentIDs(subject) {
		for _, rp := range c.g.parentIDs(reference) {
			if c.g.AreSiblings(sp, rp) {
				return LabelFirstCousin, true
			}
		}
	}
	return "", false
}

// ruleDistantCousin only looks at the nearest common ancestors (smallest sum
// of both distances). Further ancestors are shared by any cousins and would
// otherwise inflate the degree.
func ruleDistantCousin(c *Classifier, subject, reference string) (Label, bool) {
	subjectAnc := c.ancestorLevels(subject)
	referenceAnc := c.ancestorLevels(reference)
	bestSum, bestGap, bestMin := -1, 0, 0
	for id, ds := range subjectAnc {
		dr, ok := referenceAnc[id]
		if !ok {
			continue
		}
		sum, gap := ds+dr, abs(ds-dr)
		if bestSum < 0 || sum < bestSum || (sum == bestSum && gap < bestGap) {
			bestSum, bestGap, bestMin = sum, gap, min(ds, dr)
		}
	}
	if bestSum < 0 || bestMin < 3 {
		return "", false
	}
	return CousinLabel(bestMin - 1), true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func ruleInLaw(c *Classifier, subject, reference string) (Label, bool) {
	g := c.g
	for _, child := range g.Children(reference) {
		if slices.Contains(g.Spouses(child), subject) {
			return LabelChildInLaw, true
		}
	}
	for _, spouse := range g.Spouses(reference) {
		if slices.Contains(g.parentIDs(spouse), subject) {
			return LabelParentInLaw, true
		}
	}
	for _, sibling := range g.Siblings(reference) {
		if slices.Contains(g.Spouses(sibling), subject) {
			return LabelSiblingInLaw, true
		}
	}
	for _, spouse := range g.Spouses(reference) {
		if g.AreSiblings(subject, spouse) {
			return LabelSiblingInLaw, true
		}
	}
	for _, parent := range g.parentIDs(reference) {
		for _, auntUncle := range g.Siblings(parent) {
			if slices.Contains(g.Spouses(auntUncle), subject) {
				return LabelAuntUncleByMarriage, true
			}
		}
	}
	return "", false
}

func ruleStep(c *Classifier, subject, reference string) (Label, bool) {
	g := c.g
	ownChildren := g.Children(reference)
	for _, spouse := range g.Spouses(reference) {
		if slices.Contains(g.Children(spouse), subject) && !slices.Contains(ownChildren, subject) {
			return LabelStepChild, true
		}
	}
	ownParents := g.parentIDs(reference)
	for _, parent := range ownParents {
		if slices.Contains(g.Spouses(parent), subject) && !slices.Contains(ownParents, subject) {
			return LabelStepParent, true
		}
	}
	return "", false
}
