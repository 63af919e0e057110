package kinship

import (
	"cmp"
	"slices"
	"strings"
)

// RegionOther collects codes outside the Brazilian federative units.
const RegionOther = "Outras Regiões/Estrangeiro"

var regionByState = map[string]string{
	"AC": "Norte", "AP": "Norte", "AM": "Norte", "PA": "Norte", "RO": "Norte", "RR": "Norte", "TO": "Norte",
	"AL": "Nordeste", "BA": "Nordeste", "CE": "Nordeste", "MA": "Nordeste", "PB": "Nordeste",
	"PE": "Nordeste", "PI": "Nordeste", "RN": "Nordeste", "SE": "Nordeste",
	"DF": "Centro-Oeste", "GO": "Centro-Oeste", "MS": "Centro-Oeste", "MT": "Centro-Oeste",
	"ES": "Sudeste", "MG": "Sudeste", "RJ": "Sudeste", "SP": "Sudeste",
	"PR": "Sul", "RS": "Sul", "SC": "Sul",
}

// RegionCount is the number of tree members born in a macro-region.
type RegionCount struct {
	Region string `json:"region"`
	Count  int    `json:"count"`
}

// RegionOf maps a state code to its macro-region. Unknown codes map to
// RegionOther; an empty code yields "".
func RegionOf(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	if region, ok := regionByState[code]; ok {
		return region
	}
	return RegionOther
}

// CountRegions tallies members of g by birth region, most frequent first.
// Members without a region code are not counted.
func CountRegions(g *Graph) []RegionCount {
	counts := make(map[string]int)
	for _, id := range g.IDs() {
		p, _ := g.Person(id)
		if region := RegionOf(p.BirthRegion); region != "" {
			counts[region]++
		}
	}
	out := make([]RegionCount, 0, len(counts))
	for region, n := range counts {
		out = append(out, RegionCount{Region: region, Count: n})
	}
	slices.SortFunc(out, func(a, b RegionCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.Region, b.Region)
	})
	return out
}
