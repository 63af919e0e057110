package kinship

import (
	"fmt"
	"strings"

	"kincore/pkg/domain"
)

// Label is a relationship name from the closed kinship taxonomy. Cousin
// degrees beyond the first are produced by CousinLabel.
type Label string

const (
	LabelSelf                  Label = "self"
	LabelParent                Label = "parent"
	LabelChild                 Label = "child"
	LabelSpouse                Label = "spouse"
	LabelFullSibling           Label = "full sibling"
	LabelHalfSibling           Label = "half sibling"
	LabelGrandparent           Label = "grandparent"
	LabelGrandchild            Label = "grandchild"
	LabelGreatGrandparent      Label = "great-grandparent"
	LabelGreatGrandchild       Label = "great-grandchild"
	LabelGreatGreatGrandparent Label = "great-great-grandparent"
	LabelGreatGreatGrandchild  Label = "great-great-grandchild"
	LabelAuntUncle             Label = "aunt/uncle"
	LabelNieceNephew           Label = "niece/nephew"
	LabelGrandAuntUncle        Label = "grand-aunt/grand-uncle"
	LabelGrandNieceNephew      Label = "grand-niece/grand-nephew"
	LabelFirstCousin           Label = "first cousin"
	LabelChildInLaw            Label = "child-in-law"
	LabelParentInLaw           Label = "parent-in-law"
	LabelSiblingInLaw          Label = "sibling-in-law"
	LabelAuntUncleByMarriage   Label = "aunt/uncle by marriage"
	LabelStepChild             Label = "step-child"
	LabelStepParent            Label = "step-parent"
	LabelUndetermined          Label = "undetermined relationship"
)

const cousinSuffix = " cousin"

var ordinalWords = []string{"", "first", "second", "third", "fourth", "fifth", "sixth", "seventh", "eighth", "ninth", "tenth"}

// CousinLabel returns the label for a cousin of the given degree (1 = first
// cousin). Degrees below one yield LabelUndetermined.
func CousinLabel(degree int) Label {
	if degree < 1 {
		return LabelUndetermined
	}
	return Label(ordinal(degree) + cousinSuffix)
}

// IsCousin reports whether l is a cousin label of any degree.
func (l Label) IsCousin() bool {
	return strings.HasSuffix(string(l), cousinSuffix)
}

func ordinal(n int) string {
	if n < len(ordinalWords) {
		return ordinalWords[n]
	}
	suffix := "th"
	if n%100 < 11 || n%100 > 13 {
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}

// gendered holds the male and female renderings of a label.
type gendered struct{ male, female string }

var genderedLabels = map[Label]gendered{
	LabelParent:                {"father", "mother"},
	LabelChild:                 {"son", "daughter"},
	LabelSpouse:                {"husband", "wife"},
	LabelFullSibling:           {"brother", "sister"},
	LabelHalfSibling:           {"half-brother", "half-sister"},
	LabelGrandparent:           {"grandfather", "grandmother"},
	LabelGrandchild:            {"grandson", "granddaughter"},
	LabelGreatGrandparent:      {"great-grandfather", "great-grandmother"},
	LabelGreatGrandchild:       {"great-grandson", "great-granddaughter"},
	LabelGreatGreatGrandparent: {"great-great-grandfather", "great-great-grandmother"},
	LabelGreatGreatGrandchild:  {"great-great-grandson", "great-great-granddaughter"},
	LabelAuntUncle:             {"uncle", "aunt"},
	LabelNieceNephew:           {"nephew", "niece"},
	LabelGrandAuntUncle:        {"grand-uncle", "grand-aunt"},
	LabelGrandNieceNephew:      {"grand-nephew", "grand-niece"},
	LabelChildInLaw:            {"son-in-law", "daughter-in-law"},
	LabelParentInLaw:           {"father-in-law", "mother-in-law"},
	LabelSiblingInLaw:          {"brother-in-law", "sister-in-law"},
	LabelAuntUncleByMarriage:   {"uncle by marriage", "aunt by marriage"},
	LabelStepChild:             {"stepson", "stepdaughter"},
	LabelStepParent:            {"stepfather", "stepmother"},
}

// Display renders l for a subject of the given gender. Labels without a
// gendered form, and subjects of other gender, get the label itself.
func (l Label) Display(g domain.Gender) string {
	forms, ok := genderedLabels[l]
	if !ok {
		return string(l)
	}
	switch g {
	case domain.GenderMale:
		return forms.male
	case domain.GenderFemale:
		return forms.female
	default:
		return string(l)
	}
}
