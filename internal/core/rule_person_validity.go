package core

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"kincore/pkg/domain"
)

// PersonValidityRule rejects malformed person records.
func PersonValidityRule() domain.Rule {
	return personValidityRule{}
}

type personValidityRule struct{}

func (personValidityRule) Name() string { return "person_validity" }

func (r personValidityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	block := func(p domain.Person, format string, args ...any) {
		res.Violations = append(res.Violations, r.violation(domain.SeverityBlock, p.ID, fmt.Sprintf(format, args...)))
	}

	for _, p := range changedPersons(view, changes) {
		if strings.TrimSpace(p.Name) == "" {
			block(p, "person %s has an empty name", p.ID)
		}
		if !p.Gender.Valid() {
			block(p, "person %s has unsupported gender %q", p.ID, p.Gender)
		}
		if strings.TrimSpace(p.OwnerID) == "" {
			block(p, "person %s has no owner", p.ID)
		}
		if p.BirthDate != nil && p.DeathDate != nil && p.DeathDate.Before(*p.BirthDate) {
			block(p, "person %s died before being born", p.ID)
		}
		if p.DeathDate != nil && strings.TrimSpace(p.DeathDateUncertain) != "" {
			block(p, "person %s has both an exact and an uncertain death date", p.ID)
		}
		if p.BirthRegion != "" && !isRegionCode(p.BirthRegion) {
			res.Violations = append(res.Violations, r.violation(domain.SeverityWarn, p.ID,
				fmt.Sprintf("person %s has birth region %q, expected a two letter code", p.ID, p.BirthRegion)))
		}
	}
	return res, nil
}

func (r personValidityRule) violation(severity domain.Severity, id, message string) domain.Violation {
	return domain.Violation{
		Rule:     r.Name(),
		Severity: severity,
		Message:  message,
		Entity:   domain.EntityPerson,
		EntityID: id,
	}
}

func isRegionCode(code string) bool {
	if len(code) != 2 {
		return false
	}
	for _, c := range code {
		if !unicode.IsLetter(c) {
			return false
		}
	}
	return true
}
