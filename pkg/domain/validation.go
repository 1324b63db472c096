package domain

import (
	"fmt"
	"strings"
)

// Problem describes one validation failure.
type Problem struct {
	Entity  EntityType
	Key     string
	Field   string
	Message string
}

func (p Problem) String() string {
	if p.Field == "" {
		return fmt.Sprintf("%s %s: %s", p.Entity, p.Key, p.Message)
	}
	return fmt.Sprintf("%s %s.%s: %s", p.Entity, p.Key, p.Field, p.Message)
}

// ValidationError aggregates every problem found in a batch of input.
type ValidationError struct {
	Problems []Problem
}

// Error implements error.
func (e *ValidationError) Error() string {
	switch len(e.Problems) {
	case 0:
		return "validation failed"
	case 1:
		return "validation failed: " + e.Problems[0].String()
	}
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.String()
	}
	return fmt.Sprintf("validation failed with %d problems: %s", len(e.Problems), strings.Join(parts, "; "))
}

// Add records a problem.
func (e *ValidationError) Add(entity EntityType, key, field, message string) {
	e.Problems = append(e.Problems, Problem{Entity: entity, Key: key, Field: field, Message: message})
}

// Merge appends the problems of other.
func (e *ValidationError) Merge(other *ValidationError) {
	if other == nil {
		return
	}
	e.Problems = append(e.Problems, other.Problems...)
}

// Err returns e when it holds problems and nil otherwise.
func (e *ValidationError) Err() error {
	if e == nil || len(e.Problems) == 0 {
		return nil
	}
	return e
}

// NormalizeICAO trims and uppercases code and checks that it is a four
// character alphanumeric identifier.
func NormalizeICAO(code string) (string, error) {
	norm := strings.ToUpper(strings.TrimSpace(code))
	if len(norm) != 4 {
		return "", &ValidationError{Problems: []Problem{{
			Entity: EntityAirport, Key: code, Field: "ident",
			Message: "icao code must be 4 characters",
		}}}
	}
	for _, r := range norm {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", &ValidationError{Problems: []Problem{{
				Entity: EntityAirport, Key: code, Field: "ident",
				Message: "icao code must be alphanumeric",
			}}}
		}
	}
	return norm, nil
}

// ValidateAirport checks identity and value ranges of a and its children.
func ValidateAirport(a Airport) *ValidationError {
	verr := &ValidationError{}
	key := a.ICAO
	if _, err := NormalizeICAO(a.ICAO); err != nil {
		verr.Merge(err.(*ValidationError))
	}
	if a.Latitude != nil && (*a.Latitude < -90 || *a.Latitude > 90) {
		verr.Add(EntityAirport, key, "latitude_deg", "latitude out of range")
	}
	if a.Longitude != nil && (*a.Longitude < -180 || *a.Longitude > 180) {
		verr.Add(EntityAirport, key, "longitude_deg", "longitude out of range")
	}
	for _, r := range a.Runways {
		verr.Merge(ValidateRunway(key, r))
	}
	for _, p := range a.Procedures {
		verr.Merge(ValidateProcedure(key, p))
	}
	for _, e := range a.AIPEntries {
		verr.Merge(ValidateAIPEntry(key, e))
	}
	return verr
}

// ValidateRunway checks that both ends are identified.
func ValidateRunway(icao string, r Runway) *ValidationError {
	verr := &ValidationError{}
	if strings.TrimSpace(r.LEIdent) == "" && strings.TrimSpace(r.HEIdent) == "" {
		verr.Add(EntityRunway, icao, "le_ident", "runway requires at least one end identifier")
	}
	if r.LengthFt != nil && *r.LengthFt < 0 {
		verr.Add(EntityRunway, icao+"/"+r.Key(), "length_ft", "length must not be negative")
	}
	return verr
}

// ValidateProcedure checks the procedure identity.
func ValidateProcedure(icao string, p Procedure) *ValidationError {
	verr := &ValidationError{}
	if strings.TrimSpace(p.Name) == "" {
		verr.Add(EntityProcedure, icao, "name", "procedure name is required")
	}
	switch strings.ToLower(p.ProcedureType) {
	case ProcedureApproach, ProcedureDeparture, ProcedureArrival:
	default:
		verr.Add(EntityProcedure, icao+"/"+p.Name, "procedure_type",
			fmt.Sprintf("unsupported procedure type %q", p.ProcedureType))
	}
	return verr
}

// ValidateAIPEntry checks the AIP entry identity.
func ValidateAIPEntry(icao string, e AIPEntry) *ValidationError {
	verr := &ValidationError{}
	if strings.TrimSpace(e.Section) == "" {
		verr.Add(EntityAIPEntry, icao, "section", "section is required")
	}
	if strings.TrimSpace(e.Field) == "" {
		verr.Add(EntityAIPEntry, icao, "field", "field is required")
	}
	return verr
}
