package kinship

import "kincore/pkg/domain"

// Viewer identifies the requester of a build.
type Viewer = domain.Viewer

// IsVisible reports whether p may be exposed to v: the viewer owns the record
// or is an administrator. It is the single filter every build consults.
func IsVisible(p domain.Person, v Viewer) bool {
	return v.CanSee(p)
}
