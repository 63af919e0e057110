package httpapi

import (
	"fmt"
	"strings"
	"time"

	"kincore/internal/export"
	"kincore/pkg/domain"
)

const dateLayout = "2006-01-02"

// PersonRequest is the create/update payload. Dates use YYYY-MM-DD.
type PersonRequest struct {
	Name               string `json:"name"`
	Gender             string `json:"gender"`
	BirthDate          string `json:"birth_date,omitempty"`
	DeathDate          string `json:"death_date,omitempty"`
	DeathDateUncertain string `json:"death_date_uncertain,omitempty"`
	Birthplace         string `json:"birthplace,omitempty"`
	BirthRegion        string `json:"birth_region,omitempty"`
	History            string `json:"history,omitempty"`
	FatherID           string `json:"father_id,omitempty"`
	MotherID           string `json:"mother_id,omitempty"`
	SpouseID           string `json:"spouse_id,omitempty"`
	OwnerID            string `json:"owner_id,omitempty"`
}

// SpouseRequest sets or clears (empty id) a person's spouse link.
type SpouseRequest struct {
	SpouseID string `json:"spouse_id"`
}

// PersonResponse wraps a written person with the non-blocking rule
// findings of its transaction.
type PersonResponse struct {
	Person   domain.Person `json:"person"`
	Warnings []RuleFinding `json:"warnings,omitempty"`
}

// RuleFinding is a non-blocking rule violation.
type RuleFinding struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	EntityID string `json:"entity_id,omitempty"`
}

// ExportResponse is returned by tree export creation.
type ExportResponse struct {
	export.Record
}

// ReferenceResponse names the default reference person, if any.
type ReferenceResponse struct {
	Person *domain.Person `json:"person"`
}

func parseDate(field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be YYYY-MM-DD", field)
	}
	return &t, nil
}

// apply copies the request onto p. OwnerID is only overwritten when set.
func (r PersonRequest) apply(p *domain.Person) error {
	birth, err := parseDate("birth_date", r.BirthDate)
	if err != nil {
		return err
	}
	death, err := parseDate("death_date", r.DeathDate)
	if err != nil {
		return err
	}
	p.Name = r.Name
	p.Gender = domain.Gender(strings.ToUpper(strings.TrimSpace(r.Gender)))
	p.BirthDate = birth
	p.DeathDate = death
	p.DeathDateUncertain = r.DeathDateUncertain
	p.Birthplace = r.Birthplace
	p.BirthRegion = r.BirthRegion
	p.History = r.History
	p.FatherID = domain.Ref(r.FatherID)
	p.MotherID = domain.Ref(r.MotherID)
	p.SpouseID = domain.Ref(r.SpouseID)
	if r.OwnerID != "" {
		p.OwnerID = r.OwnerID
	}
	return nil
}

func findings(res domain.Result) []RuleFinding {
	var out []RuleFinding
	for _, v := range res.Violations {
		if v.Severity == domain.SeverityBlock {
			continue
		}
		out = append(out, RuleFinding{Rule: v.Rule, Severity: string(v.Severity), Message: v.Message, EntityID: v.EntityID})
	}
	return out
}
