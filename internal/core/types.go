package core

import "kincore/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	Base               = domain.Base
	Person             = domain.Person
	Gender             = domain.Gender
	Viewer             = domain.Viewer
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RuleViolationError = domain.RuleViolationError
)

const EntityPerson = domain.EntityPerson

const (
	GenderMale   = domain.GenderMale
	GenderFemale = domain.GenderFemale
	GenderOther  = domain.GenderOther
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)
