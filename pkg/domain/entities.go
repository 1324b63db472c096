// Package domain defines the canonical aeronautical entities, their identity
// and merge rules, and the change records produced when they are persisted.
package domain

import (
	"sort"
	"strings"
	"time"
)

// EntityType identifies the type of record stored in the model.
type EntityType string

// Supported entity type identifiers used in change records and persistence tables.
const (
	// EntityAirport identifies an airport record keyed by ICAO code.
	EntityAirport EntityType = "airport"
	// EntityRunway identifies a runway keyed by its end pair within an airport.
	EntityRunway EntityType = "runway"
	// EntityProcedure identifies a procedure keyed by name and type within an airport.
	EntityProcedure EntityType = "procedure"
	// EntityAIPEntry identifies an AIP field keyed by section, field and source.
	EntityAIPEntry EntityType = "aip_entry"
	// EntityBorderCrossing identifies a border-crossing designation.
	EntityBorderCrossing EntityType = "border_crossing"
)

// Airport is the canonical record for one aeronautical facility.
//
// Optional attributes are pointers so that "not provided by this source" is
// distinguishable from a zero value; merges only ever copy non-nil values.
type Airport struct {
	ICAO             string   `json:"ident"`
	Name             *string  `json:"name,omitempty"`
	Type             *string  `json:"type,omitempty"`
	Latitude         *float64 `json:"latitude_deg,omitempty"`
	Longitude        *float64 `json:"longitude_deg,omitempty"`
	ElevationFt      *int     `json:"elevation_ft,omitempty"`
	Continent        *string  `json:"continent,omitempty"`
	ISOCountry       *string  `json:"iso_country,omitempty"`
	ISORegion        *string  `json:"iso_region,omitempty"`
	Municipality     *string  `json:"municipality,omitempty"`
	ScheduledService *bool    `json:"scheduled_service,omitempty"`
	GPSCode          *string  `json:"gps_code,omitempty"`
	IATACode         *string  `json:"iata_code,omitempty"`
	LocalCode        *string  `json:"local_code,omitempty"`
	HomeLink         *string  `json:"home_link,omitempty"`
	WikipediaLink    *string  `json:"wikipedia_link,omitempty"`
	Keywords         *string  `json:"keywords,omitempty"`
	AuthorityRegion  *string  `json:"authority_region,omitempty"`

	// Derived from child collections and the border-crossing index.
	HasHardRunway         bool `json:"has_hard_runway"`
	HasSoftRunway         bool `json:"has_soft_runway"`
	HasWaterRunway        bool `json:"has_water_runway"`
	HasSnowRunway         bool `json:"has_snow_runway"`
	HasLightedRunway      bool `json:"has_lighted_runway"`
	HasProcedures         bool `json:"has_procedures"`
	HasAIPData            bool `json:"has_aip_data"`
	LongestRunwayLengthFt *int `json:"longest_runway_length_ft,omitempty"`
	PointOfEntry          bool `json:"point_of_entry"`

	Runways    []Runway    `json:"runways,omitempty"`
	Procedures []Procedure `json:"procedures,omitempty"`
	AIPEntries []AIPEntry  `json:"aip_entries,omitempty"`
	Sources    []string    `json:"sources,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Runway describes one physical runway. Its identity is the unordered pair of
// end identifiers within the owning airport.
type Runway struct {
	LEIdent string `json:"le_ident"`
	HEIdent string `json:"he_ident"`

	LengthFt *int    `json:"length_ft,omitempty"`
	WidthFt  *int    `json:"width_ft,omitempty"`
	Surface  *string `json:"surface,omitempty"`
	Lighted  *bool   `json:"lighted,omitempty"`
	Closed   *bool   `json:"closed,omitempty"`

	LELatitude           *float64 `json:"le_latitude_deg,omitempty"`
	LELongitude          *float64 `json:"le_longitude_deg,omitempty"`
	LEElevationFt        *int     `json:"le_elevation_ft,omitempty"`
	LEHeadingDegT        *float64 `json:"le_heading_degT,omitempty"`
	LEDisplacedThreshold *int     `json:"le_displaced_threshold_ft,omitempty"`

	HELatitude           *float64 `json:"he_latitude_deg,omitempty"`
	HELongitude          *float64 `json:"he_longitude_deg,omitempty"`
	HEElevationFt        *int     `json:"he_elevation_ft,omitempty"`
	HEHeadingDegT        *float64 `json:"he_heading_degT,omitempty"`
	HEDisplacedThreshold *int     `json:"he_displaced_threshold_ft,omitempty"`
}

// Procedure types recognised by the model.
const (
	ProcedureApproach  = "approach"
	ProcedureDeparture = "departure"
	ProcedureArrival   = "arrival"
)

// Procedure is an instrument procedure published for an airport. Its identity
// is (Name, ProcedureType) within the owning airport.
type Procedure struct {
	Name          string  `json:"name"`
	ProcedureType string  `json:"procedure_type"`
	ApproachType  *string `json:"approach_type,omitempty"`
	RunwayIdent   *string `json:"runway_ident,omitempty"`
	RunwayNumber  *string `json:"runway_number,omitempty"`
	RunwayLetter  *string `json:"runway_letter,omitempty"`
	Authority     *string `json:"authority,omitempty"`
	Source        *string `json:"source,omitempty"`
	RawName       *string `json:"raw_name,omitempty"`
}

// AIPEntry is one field of an airport's AIP publication as reported by a
// source. The same logical field may carry parallel values from several sources.
type AIPEntry struct {
	Section string `json:"section"`
	Field   string `json:"field"`
	Source  string `json:"source"`
	Value   string `json:"value"`

	AltField *string `json:"alt_field,omitempty"`
	AltValue *string `json:"alt_value,omitempty"`

	// Annotation added by the field-standardization collaborator.
	StdField     *string  `json:"std_field,omitempty"`
	StdFieldID   *int     `json:"std_field_id,omitempty"`
	MappingScore *float64 `json:"mapping_score,omitempty"`
}

// IsStandardized reports whether the entry carries a canonical field annotation.
func (e AIPEntry) IsStandardized() bool { return e.StdFieldID != nil }

// Key returns the (section, field, source) identity of the entry.
func (e AIPEntry) Key() string {
	return e.Section + "|" + e.Field + "|" + e.Source
}

// Key returns the natural identity of the runway: its end identifiers sorted
// so that "09/27" and "27/09" collide.
func (r Runway) Key() string {
	lo, hi := r.EndPair()
	return lo + "/" + hi
}

// EndPair returns the end identifiers in canonical (sorted) order.
func (r Runway) EndPair() (string, string) {
	le := strings.ToUpper(strings.TrimSpace(r.LEIdent))
	he := strings.ToUpper(strings.TrimSpace(r.HEIdent))
	if he < le {
		return he, le
	}
	return le, he
}

// AlignedTo returns r oriented like ref: when r's low end is ref's high end
// the identifiers and per-end attributes are swapped.
func (r Runway) AlignedTo(ref Runway) Runway {
	le := strings.ToUpper(strings.TrimSpace(r.LEIdent))
	he := strings.ToUpper(strings.TrimSpace(r.HEIdent))
	refLE := strings.ToUpper(strings.TrimSpace(ref.LEIdent))
	refHE := strings.ToUpper(strings.TrimSpace(ref.HEIdent))
	if le == he || le != refHE || he != refLE {
		return r
	}
	r.LEIdent, r.HEIdent = r.HEIdent, r.LEIdent
	r.LELatitude, r.HELatitude = r.HELatitude, r.LELatitude
	r.LELongitude, r.HELongitude = r.HELongitude, r.LELongitude
	r.LEElevationFt, r.HEElevationFt = r.HEElevationFt, r.LEElevationFt
	r.LEHeadingDegT, r.HEHeadingDegT = r.HEHeadingDegT, r.LEHeadingDegT
	r.LEDisplacedThreshold, r.HEDisplacedThreshold = r.HEDisplacedThreshold, r.LEDisplacedThreshold
	return r
}

// Key returns the (name, type) identity of the procedure.
func (p Procedure) Key() string {
	return p.Name + "|" + strings.ToLower(p.ProcedureType)
}

// IsApproach reports whether the procedure is an approach.
func (p Procedure) IsApproach() bool {
	return strings.EqualFold(p.ProcedureType, ProcedureApproach)
}

// Country returns the ISO country code or "" when unknown.
func (a Airport) Country() string {
	if a.ISOCountry == nil {
		return ""
	}
	return strings.ToUpper(*a.ISOCountry)
}

// HasCoordinates reports whether both latitude and longitude are known.
func (a Airport) HasCoordinates() bool {
	return a.Latitude != nil && a.Longitude != nil
}

// HasSource reports whether the named source has contributed to the airport.
func (a Airport) HasSource(source string) bool {
	i := sort.SearchStrings(a.Sources, source)
	return i < len(a.Sources) && a.Sources[i] == source
}

// AddSource records a contributing source, keeping Sources sorted and unique.
func (a *Airport) AddSource(source string) {
	source = strings.TrimSpace(source)
	if source == "" || a.HasSource(source) {
		return
	}
	a.Sources = append(a.Sources, source)
	sort.Strings(a.Sources)
}

// FindRunway returns the runway with the given end pair in either order.
func (a Airport) FindRunway(le, he string) (Runway, bool) {
	key := Runway{LEIdent: le, HEIdent: he}.Key()
	for _, r := range a.Runways {
		if r.Key() == key {
			return r, true
		}
	}
	return Runway{}, false
}

// FindAIPEntry returns the entry with the given identity.
func (a Airport) FindAIPEntry(section, field, source string) (AIPEntry, bool) {
	key := AIPEntry{Section: section, Field: field, Source: source}.Key()
	for _, e := range a.AIPEntries {
		if e.Key() == key {
			return e, true
		}
	}
	return AIPEntry{}, false
}

// Approaches returns the airport's approach procedures in stored order.
func (a Airport) Approaches() []Procedure {
	var out []Procedure
	for _, p := range a.Procedures {
		if p.IsApproach() {
			out = append(out, p)
		}
	}
	return out
}

// Ptr returns a pointer to a copy of v.
func Ptr[T any](v T) *T { return &v }
