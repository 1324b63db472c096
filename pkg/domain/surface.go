package domain

import "strings"

// SurfaceClass groups free-text runway surface descriptions.
type SurfaceClass string

const (
	SurfaceUnknown SurfaceClass = ""
	SurfaceHard    SurfaceClass = "hard"
	SurfaceSoft    SurfaceClass = "soft"
	SurfaceWater   SurfaceClass = "water"
	SurfaceSnow    SurfaceClass = "snow"
)

// Negated hard-surface terms, matched before the keyword groups.
var unsealedKeywords = []string{"unpaved", "unsealed", "non-paved", "nonpaved"}

var surfaceKeywords = []struct {
	class SurfaceClass
	words []string
}{
	{SurfaceHard, []string{"asp", "con", "pem", "bit", "tar", "paved"}},
	{SurfaceSoft, []string{"grass", "turf", "dirt", "gravel", "grv", "sand", "soil", "clay", "earth"}},
	{SurfaceWater, []string{"wat"}},
	{SurfaceSnow, []string{"snow", "ice"}},
}

// ClassifySurface maps a surface description such as "ASPH" or "Grass" to a class.
func ClassifySurface(surface string) SurfaceClass {
	s := strings.ToLower(strings.TrimSpace(surface))
	if s == "" {
		return SurfaceUnknown
	}
	for _, w := range unsealedKeywords {
		if strings.Contains(s, w) {
			return SurfaceSoft
		}
	}
	for _, group := range surfaceKeywords {
		for _, w := range group.words {
			if strings.Contains(s, w) {
				return group.class
			}
		}
	}
	return SurfaceUnknown
}

// SurfaceClass classifies the runway's surface.
func (r Runway) SurfaceClass() SurfaceClass {
	if r.Surface == nil {
		return SurfaceUnknown
	}
	return ClassifySurface(*r.Surface)
}

// UpdateDerived recomputes the runway and data availability flags of a.
// Point-of-entry status depends on the border-crossing index and is set by
// the owning model.
func (a *Airport) UpdateDerived() {
	a.HasHardRunway, a.HasSoftRunway = false, false
	a.HasWaterRunway, a.HasSnowRunway = false, false
	a.HasLightedRunway = false
	a.LongestRunwayLengthFt = nil
	for _, r := range a.Runways {
		switch r.SurfaceClass() {
		case SurfaceHard:
			a.HasHardRunway = true
		case SurfaceSoft:
			a.HasSoftRunway = true
		case SurfaceWater:
			a.HasWaterRunway = true
		case SurfaceSnow:
			a.HasSnowRunway = true
		}
		if r.Lighted != nil && *r.Lighted {
			a.HasLightedRunway = true
		}
		if r.LengthFt != nil && (a.LongestRunwayLengthFt == nil || *r.LengthFt > *a.LongestRunwayLengthFt) {
			a.LongestRunwayLengthFt = Ptr(*r.LengthFt)
		}
	}
	a.HasProcedures = len(a.Procedures) > 0
	a.HasAIPData = len(a.AIPEntries) > 0
}
