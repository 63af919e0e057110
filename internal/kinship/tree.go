package kinship

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"kincore/internal/logger"
	"kincore/pkg/domain"
)

const dateLayout = "2006-01-02"

// AgeUnknown is reported when an age cannot be computed.
const AgeUnknown = "N/A"

// BuildRequest selects the root, the person labels are relative to, and the
// viewer whose visibility applies. ReferenceID defaults to RootID; Now
// defaults to the current time.
type BuildRequest struct {
	RootID      string
	ReferenceID string
	Viewer      Viewer
	Now         time.Time
}

// PersonView is the rendering-ready projection of a graph member. Parent ids
// are only set when the parent is itself visible.
type PersonView struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Gender          domain.Gender `json:"gender"`
	BirthDate       string        `json:"birth_date,omitempty"`
	DeathDate       string        `json:"death_date,omitempty"`
	DeathUncertain  bool          `json:"death_uncertain,omitempty"`
	Birthplace      string        `json:"birthplace,omitempty"`
	RegionCode      string        `json:"region_code,omitempty"`
	IsRoot          bool          `json:"is_root"`
	IsSelected      bool          `json:"is_selected"`
	Relation        Label         `json:"relation"`
	RelationDisplay string        `json:"relation_display"`
	Age             string        `json:"age"`
	LifeStatus      string        `json:"life_status"`
	FatherID        string        `json:"father_id,omitempty"`
	MotherID        string        `json:"mother_id,omitempty"`
	OwnerID         string        `json:"owner_id"`
}

// FamilyUnitView is the rendering-ready projection of a family unit.
type FamilyUnitView struct {
	ID          string   `json:"id"`
	FatherID    *string  `json:"father_id"`
	MotherID    *string  `json:"mother_id"`
	ChildrenIDs []string `json:"children_ids"`
}

// Tree is everything a caller needs to render one viewer's family tree.
type Tree struct {
	RootID      string                    `json:"root_id"`
	ReferenceID string                    `json:"reference_id"`
	Nodes       map[string]PersonView     `json:"nodes"`
	Families    map[string]FamilyUnitView `json:"families"`
	Levels      []LevelRow                `json:"levels"`
	Regions     []RegionCount             `json:"regions"`
	Warnings    []Warning                 `json:"warnings,omitempty"`
}

// Empty reports whether the tree has no members, which is how an unavailable
// root is represented.
func (t Tree) Empty() bool { return len(t.Nodes) == 0 }

// EmptyTree returns the tree rendered when the root is unavailable.
func EmptyTree(rootID string) Tree {
	return Tree{
		RootID:   rootID,
		Nodes:    map[string]PersonView{},
		Families: map[string]FamilyUnitView{},
		Levels:   []LevelRow{},
		Regions:  []RegionCount{},
	}
}

// Build runs a full traversal for req against store: graph construction,
// classification relative to the reference, and level assignment. An
// unavailable root yields an empty tree and no error.
func Build(ctx context.Context, store PersonStore, req BuildRequest) (Tree, error) {
	log := logger.FromContext(ctx).With(logger.Scope("kinship"))
	g, err := BuildGraph(ctx, store, req.RootID, req.Viewer)
	if errors.Is(err, ErrRootUnavailable) {
		return EmptyTree(req.RootID), nil
	}
	if err != nil {
		return Tree{}, fmt.Errorf("build graph: %w", err)
	}

	now := req.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	warnings := g.Warnings()
	referenceID := req.ReferenceID
	if referenceID == "" {
		referenceID = req.RootID
	}
	if !g.Has(referenceID) {
		log.Warn("reference unavailable, labelling relative to root", "reference_id", referenceID, "root_id", req.RootID)
		warnings = append(warnings, Warning{
			Code:     WarningReferenceUnavailable,
			PersonID: referenceID,
			Message:  fmt.Sprintf("reference %s is not part of the tree; labels are relative to the root", referenceID),
		})
		referenceID = req.RootID
	}

	classifier := NewClassifier(g)
	levels := AssignLevels(g, req.RootID)

	tree := Tree{
		RootID:      req.RootID,
		ReferenceID: referenceID,
		Nodes:       make(map[string]PersonView, g.Len()),
		Families:    make(map[string]FamilyUnitView),
		Levels:      levels.Rows,
		Regions:     CountRegions(g),
		Warnings:    warnings,
	}
	for _, id := range g.IDs() {
		p, _ := g.Person(id)
		father, mother := g.Parents(id)
		label := classifier.Classify(id, referenceID)
		tree.Nodes[id] = PersonView{
			ID:              p.ID,
			Name:            p.Name,
			Gender:          p.Gender,
			BirthDate:       formatDate(p.BirthDate),
			DeathDate:       deathText(p),
			DeathUncertain:  p.DeathDate == nil && strings.TrimSpace(p.DeathDateUncertain) != "",
			Birthplace:      p.Birthplace,
			RegionCode:      p.BirthRegion,
			IsRoot:          id == req.RootID,
			IsSelected:      id == referenceID,
			Relation:        label,
			RelationDisplay: label.Display(p.Gender),
			Age:             Age(p, now),
			LifeStatus:      LifeStatus(p),
			FatherID:        father,
			MotherID:        mother,
			OwnerID:         p.OwnerID,
		}
	}
	for _, unit := range g.Families() {
		tree.Families[unit.ID] = FamilyUnitView{
			ID:          unit.ID,
			FatherID:    domain.Ref(unit.FatherID),
			MotherID:    domain.Ref(unit.MotherID),
			ChildrenIDs: append([]string{}, unit.ChildIDs...),
		}
	}
	log.Debug("tree built", "root_id", req.RootID, "reference_id", referenceID, "nodes", len(tree.Nodes), "families", len(tree.Families), "levels", len(tree.Levels))
	return tree, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

func deathText(p domain.Person) string {
	if p.DeathDate != nil {
		return formatDate(p.DeathDate)
	}
	return strings.TrimSpace(p.DeathDateUncertain)
}

// Age returns p's age in whole years at death, or at now when living. It is
// AgeUnknown without a birth date, when death is only known approximately, or
// when the dates are inconsistent.
func Age(p domain.Person, now time.Time) string {
	if p.BirthDate == nil {
		return AgeUnknown
	}
	end := now
	if p.DeathDate != nil {
		end = *p.DeathDate
	} else if strings.TrimSpace(p.DeathDateUncertain) != "" {
		return AgeUnknown
	}
	birth := *p.BirthDate
	if end.Before(birth) {
		return AgeUnknown
	}
	years := end.Year() - birth.Year()
	if end.Month() < birth.Month() || (end.Month() == birth.Month() && end.Day() < birth.Day()) {
		years--
	}
	return strconv.Itoa(years)
}

// LifeStatus renders whether p is living or deceased.
func LifeStatus(p domain.Person) string {
	switch {
	case p.DeathDate != nil:
		return "deceased"
	case strings.TrimSpace(p.DeathDateUncertain) != "":
		return fmt.Sprintf("deceased (%s)", strings.TrimSpace(p.DeathDateUncertain))
	default:
		return "living"
	}
}
