package core

import (
	"context"
	"fmt"
	"sort"

	"kincore/pkg/domain"
)

const lineageRuleName = "lineage_integrity"

// LineageIntegrityRule enforces parent and spouse reference constraints on
// every person touched by a transaction.
func LineageIntegrityRule() domain.Rule {
	return lineageIntegrityRule{}
}

type lineageIntegrityRule struct{}

func (lineageIntegrityRule) Name() string { return lineageRuleName }

func (lineageIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}

	for _, person := range changedPersons(view, changes) {
		father := person.Parent(domain.RoleFather)
		mother := person.Parent(domain.RoleMother)
		if father != "" && father == mother {
			res.Violations = append(res.Violations, lineageViolation(domain.SeverityBlock, person.ID,
				fmt.Sprintf("person %s lists %s as both father and mother", person.ID, father)))
		}

		refs := []struct {
			role string
			id   string
		}{
			{"father", father},
			{"mother", mother},
			{"spouse", person.Spouse()},
		}
		for _, ref := range refs {
			if ref.id == "" {
				continue
			}
			if ref.id == person.ID {
				res.Violations = append(res.Violations, lineageViolation(domain.SeverityBlock, person.ID,
					fmt.Sprintf("person %s references itself as %s", person.ID, ref.role)))
				continue
			}
			target, ok := view.FindPerson(ref.id)
			if !ok {
				res.Violations = append(res.Violations, lineageViolation(domain.SeverityBlock, person.ID,
					fmt.Sprintf("person %s references missing %s %s", person.ID, ref.role, ref.id)))
				continue
			}
			if ref.role != "spouse" && target.OwnerID != person.OwnerID {
				res.Violations = append(res.Violations, lineageViolation(domain.SeverityLog, person.ID,
					fmt.Sprintf("person %s %s %s belongs to another owner", person.ID, ref.role, ref.id)))
			}
		}

		if ownAncestor(view, person.ID) {
			res.Violations = append(res.Violations, lineageViolation(domain.SeverityWarn, person.ID,
				fmt.Sprintf("person %s is its own ancestor", person.ID)))
		}
	}

	return res, nil
}

func lineageViolation(severity domain.Severity, entityID, message string) domain.Violation {
	return domain.Violation{
		Rule:     lineageRuleName,
		Severity: severity,
		Message:  message,
		Entity:   domain.EntityPerson,
		EntityID: entityID,
	}
}

// ownAncestor walks parent references upward from id and reports whether id
// is reached again. Self references are reported separately.
func ownAncestor(view domain.RuleView, id string) bool {
	visited := map[string]struct{}{}
	start, ok := view.FindPerson(id)
	if !ok {
		return false
	}
	frontier := parentRefs(start)
	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]
		if next == id {
			return true
		}
		if _, seen := visited[next]; seen {
			continue
		}
		visited[next] = struct{}{}
		if p, ok := view.FindPerson(next); ok {
			frontier = append(frontier, parentRefs(p)...)
		}
	}
	return false
}

func parentRefs(p domain.Person) []string {
	var out []string
	for _, role := range []domain.ParentRole{domain.RoleFather, domain.RoleMother} {
		if id := p.Parent(role); id != "" && id != p.ID {
			out = append(out, id)
		}
	}
	return out
}

// changedPersons resolves the post-transaction state of every person created
// or updated in changes, ordered by id. Deleted persons are skipped.
func changedPersons(view domain.RuleView, changes []domain.Change) []domain.Person {
	seen := make(map[string]struct{})
	var out []domain.Person
	for _, change := range changes {
		if change.Entity != domain.EntityPerson || change.Action == domain.ActionDelete {
			continue
		}
		after, ok := change.After.(domain.Person)
		if !ok {
			continue
		}
		if _, dup := seen[after.ID]; dup {
			continue
		}
		seen[after.ID] = struct{}{}
		if current, ok := view.FindPerson(after.ID); ok {
			out = append(out, current)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
