package domain

import (
	"strings"
	"time"
)

// BorderCrossingEntry designates an airport as a point of entry for a country.
type BorderCrossingEntry struct {
	ICAOCode           string            `json:"icao_code"`
	CountryISO         string            `json:"country_iso"`
	AirportName        string            `json:"airport_name,omitempty"`
	IsAirport          *bool             `json:"is_airport,omitempty"`
	Source             string            `json:"source,omitempty"`
	ExtractionMethod   string            `json:"extraction_method,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	MatchedAirportICAO string            `json:"matched_airport_icao,omitempty"`
	MatchScore         *float64          `json:"match_score,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// ResolvedICAO returns the entry's ICAO code, falling back to the code of the
// airport it was matched against. The result is normalized; "" means the
// entry could not be tied to an airport.
func (e BorderCrossingEntry) ResolvedICAO() string {
	if code, err := NormalizeICAO(e.ICAOCode); err == nil {
		return code
	}
	if code, err := NormalizeICAO(e.MatchedAirportICAO); err == nil {
		return code
	}
	return ""
}

// Country returns the normalized ISO country code.
func (e BorderCrossingEntry) Country() string {
	return strings.ToUpper(strings.TrimSpace(e.CountryISO))
}

// MoreCompleteThan reports whether e should replace other in the index.
// A resolved entry beats an unresolved one; between resolved entries the
// higher match score wins and ties go to e.
func (e BorderCrossingEntry) MoreCompleteThan(other BorderCrossingEntry) bool {
	eResolved, oResolved := e.ResolvedICAO() != "", other.ResolvedICAO() != ""
	if eResolved != oResolved {
		return eResolved
	}
	return scoreOf(e) >= scoreOf(other)
}

func scoreOf(e BorderCrossingEntry) float64 {
	if e.MatchScore == nil {
		return 0
	}
	return *e.MatchScore
}
