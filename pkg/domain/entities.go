// Package domain defines the persistent person records, value types, and
// rule evaluation primitives used by kincore.
package domain

import (
	"strings"
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityPerson identifies an individual person record.
	EntityPerson EntityType = "person"
)

// Gender enumerates the recorded gender of a person.
type Gender string

// Supported genders. Anything outside this set is rejected by validation rules.
const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
	GenderOther  Gender = "O"
)

// Valid reports whether g is one of the supported genders.
func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	default:
		return false
	}
}

// ParentRole selects which parent slot of a person is addressed.
type ParentRole string

const (
	// RoleFather addresses Person.FatherID.
	RoleFather ParentRole = "father"
	// RoleMother addresses Person.MotherID.
	RoleMother ParentRole = "mother"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Person is an individual record in a family tree. Parent and spouse links
// are weak references; nothing at this layer guarantees they are acyclic.
type Person struct {
	Base
	Name               string     `json:"name"`
	Gender             Gender     `json:"gender"`
	BirthDate          *time.Time `json:"birth_date,omitempty"`
	DeathDate          *time.Time `json:"death_date,omitempty"`
	DeathDateUncertain string     `json:"death_date_uncertain,omitempty"`
	Birthplace         string     `json:"birthplace,omitempty"`
	BirthRegion        string     `json:"birth_region,omitempty"`
	History            string     `json:"history,omitempty"`
	FatherID           *string    `json:"father_id,omitempty"`
	MotherID           *string    `json:"mother_id,omitempty"`
	SpouseID           *string    `json:"spouse_id,omitempty"`
	OwnerID            string     `json:"owner_id"`
}

// Parent returns the referenced parent id for role, or "" when unset.
func (p Person) Parent(role ParentRole) string {
	switch role {
	case RoleFather:
		return deref(p.FatherID)
	case RoleMother:
		return deref(p.MotherID)
	default:
		return ""
	}
}

// Spouse returns the directed spouse reference, or "" when unset.
func (p Person) Spouse() string {
	return deref(p.SpouseID)
}

// Deceased reports whether a death date or an uncertain death note is recorded.
func (p Person) Deceased() bool {
	return p.DeathDate != nil || strings.TrimSpace(p.DeathDateUncertain) != ""
}

// Ref returns a pointer to id, or nil when id is empty.
func Ref(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

func deref(id *string) string {
	if id == nil {
		return ""
	}
	return *id
}

// Viewer identifies who is requesting data. Admins see every record; everyone
// else sees only the records they own.
type Viewer struct {
	OwnerID string `json:"owner_id"`
	IsAdmin bool   `json:"is_admin"`
}

// CanSee reports whether the viewer may read or modify p.
func (v Viewer) CanSee(p Person) bool {
	return v.IsAdmin || (p.OwnerID != "" && p.OwnerID == v.OwnerID)
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
