package textparse

import (
	"regexp"
	"sort"
	"strings"
)

// MaxOCRServices caps services read from raw text.
const MaxOCRServices = 5

type serviceTerm struct {
	name    string
	pattern *regexp.Regexp
}

func term(name, expr string) serviceTerm {
	return serviceTerm{name: name, pattern: regexp.MustCompile(`(?i)\b(?:` + expr + `)\b`)}
}

// serviceVocabulary is the fixed list of trades recognised in raw text.
var serviceVocabulary = []serviceTerm{
	term("Plumbing", `plumb(?:ing|er|ers)?|drain cleaning|water heaters?`),
	term("Electrical", `electric(?:al|ian|ians)?|wiring`),
	term("HVAC", `hvac|heating|air conditioning|a/c|furnace`),
	term("Roofing", `roof(?:ing|er|ers|s)?`),
	term("Landscaping", `landscap(?:ing|e|er|ers)`),
	term("Lawn Care", `lawn(?: care| service| mowing)?|mowing`),
	term("Tree Service", `tree (?:service|removal|trimming)|arborist`),
	term("Painting", `paint(?:ing|er|ers)`),
	term("Cleaning", `cleaning|janitorial|maid service`),
	term("Pest Control", `pest control|exterminat(?:or|ion|ing)|termite`),
	term("Carpentry", `carpent(?:ry|er|ers)|cabinet(?:ry|s)?`),
	term("Flooring", `floor(?:ing|s)|tile|hardwood|carpet`),
	term("Remodeling", `remodel(?:ing|s)?|renovation(?:s)?`),
	term("Handyman", `handyman`),
	term("Concrete", `concrete|paving|asphalt`),
	term("Fencing", `fenc(?:e|es|ing)`),
	term("Garage Doors", `garage doors?`),
	term("Windows", `windows?|glass`),
	term("Gutters", `gutters?`),
	term("Pool Service", `pools?(?: service| cleaning)?|spas?`),
	term("Moving", `moving|movers|relocation`),
	term("Locksmith", `locksmith|lockout`),
	term("Auto Repair", `auto repair|mechanic|collision|body shop|brakes|oil change`),
	term("Towing", `towing|tow truck`),
	term("Construction", `construction|general contractor|contractors?`),
	term("Solar", `solar`),
	term("Appliance Repair", `appliance(?: repair)?`),
	term("Pressure Washing", `pressure washing|power washing`),
	term("Junk Removal", `junk removal|hauling`),
	term("Catering", `catering|caterer`),
}

// ParseServices returns up to MaxOCRServices vocabulary services named in
// text, in order of first appearance.
func ParseServices(text string) []string {
	type hit struct {
		name string
		pos  int
	}
	var hits []hit
	for _, t := range serviceVocabulary {
		if loc := t.pattern.FindStringIndex(text); loc != nil {
			hits = append(hits, hit{name: t.name, pos: loc[0]})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	out := make([]string, 0, MaxOCRServices)
	for _, h := range hits {
		if len(out) == MaxOCRServices {
			break
		}
		out = append(out, h.name)
	}
	return out
}

// ServiceName maps a free-text service to its vocabulary name, or returns
// the trimmed input when it is not in the vocabulary.
func ServiceName(s string) string {
	s = strings.TrimSpace(s)
	for _, t := range serviceVocabulary {
		if loc := t.pattern.FindStringIndex(s); loc != nil && loc[0] == 0 && loc[1] == len(s) {
			return t.name
		}
	}
	return s
}
