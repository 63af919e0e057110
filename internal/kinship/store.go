package kinship

import "kincore/pkg/domain"

// PersonStore is the read-only person provider a build traverses. It must
// present one consistent snapshot for the duration of a build.
// domain.TransactionView satisfies it.
type PersonStore interface {
	FindPerson(id string) (domain.Person, bool)
	ChildrenOf(parentID string, role domain.ParentRole) []domain.Person
	SpousesPointingTo(id string) []domain.Person
}
