package core

import "kincore/pkg/domain"

type (
	// Rule defines an evaluation executed within a transaction boundary.
	Rule = domain.Rule
	// RulesEngine orchestrates rule evaluation.
	RulesEngine = domain.RulesEngine
)

// NewRulesEngine returns an engine running rules in order.
func NewRulesEngine(rules ...Rule) *RulesEngine {
	return domain.NewRulesEngine(rules...)
}

// NewDefaultRulesEngine returns an engine running lineage integrity, then
// person validity.
func NewDefaultRulesEngine() *RulesEngine {
	return NewRulesEngine(LineageIntegrityRule(), PersonValidityRule())
}
