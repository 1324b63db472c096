package domain

import "strings"

// UnknownApproachPrecision is the rank given to approach types outside the
// known precision table.
const UnknownApproachPrecision = 9

var approachPrecision = map[string]int{
	"ILS":  1,
	"RNP":  2,
	"RNAV": 3,
	"VOR":  4,
	"NDB":  5,
	"LOC":  6,
	"LDA":  7,
	"SDF":  8,
}

// ApproachPrecision ranks an approach type; lower is more precise.
func ApproachPrecision(approachType string) int {
	if rank, ok := approachPrecision[strings.ToUpper(strings.TrimSpace(approachType))]; ok {
		return rank
	}
	return UnknownApproachPrecision
}

// Precision returns the precision rank of the procedure's approach type.
func (p Procedure) Precision() int {
	if p.ApproachType == nil {
		return UnknownApproachPrecision
	}
	return ApproachPrecision(*p.ApproachType)
}

// MatchesRunway reports whether the procedure serves the given runway end.
// A procedure published for "09" matches "09", "09L" and "09R".
func (p Procedure) MatchesRunway(ident string) bool {
	ident = strings.ToUpper(strings.TrimSpace(ident))
	if ident == "" {
		return false
	}
	if p.RunwayIdent != nil && strings.EqualFold(*p.RunwayIdent, ident) {
		return true
	}
	if p.RunwayNumber == nil {
		return false
	}
	num := *p.RunwayNumber
	if !strings.HasPrefix(ident, num) {
		return false
	}
	if p.RunwayLetter == nil || *p.RunwayLetter == "" {
		return true
	}
	return strings.EqualFold(strings.TrimPrefix(ident, num), *p.RunwayLetter)
}
