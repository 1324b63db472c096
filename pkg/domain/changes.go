package domain

import (
	"strings"
	"time"
)

// Procedure set changes are recorded as field changes with these field names.
const (
	FieldProcedureAdded   = "PROCEDURE_ADDED"
	FieldProcedureRemoved = "PROCEDURE_REMOVED"
)

// FieldChange is one immutable, append-only entry in an entity's change history.
type FieldChange struct {
	EntityType EntityType `json:"entity_type"`
	Key        []string   `json:"key"`
	Field      string     `json:"field"`
	OldValue   *string    `json:"old_value,omitempty"`
	NewValue   *string    `json:"new_value,omitempty"`
	FieldType  string     `json:"field_type,omitempty"`
	Source     string     `json:"source,omitempty"`
	ChangedAt  time.Time  `json:"changed_at"`
}

// KeyString renders the composite key as "a/b/c".
func (c FieldChange) KeyString() string { return strings.Join(c.Key, "/") }

// BorderCrossingAction classifies a border-crossing change.
type BorderCrossingAction string

const (
	BorderCrossingAdded   BorderCrossingAction = "ADDED"
	BorderCrossingRemoved BorderCrossingAction = "REMOVED"
)

// BorderCrossingChange records an entry appearing in or disappearing from a
// country's border-crossing list.
type BorderCrossingChange struct {
	ICAOCode    string               `json:"icao_code"`
	CountryISO  string               `json:"country_iso"`
	Action      BorderCrossingAction `json:"action"`
	AirportName string               `json:"airport_name,omitempty"`
	Source      string               `json:"source,omitempty"`
	ChangedAt   time.Time            `json:"changed_at"`
}
