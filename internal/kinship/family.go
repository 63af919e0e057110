package kinship

import "fmt"

const noParent = "none"

// FamilyUnit is one or two parents and the visible children they share.
// Units are synthesized per build and never persisted.
type FamilyUnit struct {
	ID       string
	FatherID string
	MotherID string
	ChildIDs []string
}

// FamilyID returns the id of the unit formed by fatherID and motherID, using
// "none" for an absent parent.
func FamilyID(fatherID, motherID string) string {
	return fmt.Sprintf("family_%s_%s", orNone(fatherID), orNone(motherID))
}

func orNone(id string) string {
	if id == "" {
		return noParent
	}
	return id
}

// Parents returns the present parent ids, father first.
func (f *FamilyUnit) Parents() []string {
	out := make([]string, 0, 2)
	if f.FatherID != "" {
		out = append(out, f.FatherID)
	}
	if f.MotherID != "" {
		out = append(out, f.MotherID)
	}
	return out
}

// HasParent reports whether id is one of the unit's parents.
func (f *FamilyUnit) HasParent(id string) bool {
	return id != "" && (f.FatherID == id || f.MotherID == id)
}

// Partner returns the other parent of the unit relative to id.
func (f *FamilyUnit) Partner(id string) string {
	switch id {
	case f.FatherID:
		return f.MotherID
	case f.MotherID:
		return f.FatherID
	default:
		return ""
	}
}
