package schema

import "euroaip/pkg/domain"

// Table describes one relational table.
type Table struct {
	Name   string
	Entity domain.EntityType
	Fields []Field
	// PrimaryKey lists natural key columns. Tables with AutoIncrementID get a
	// surrogate "id" column and enforce the natural key through Unique.
	PrimaryKey      []string
	Unique          []string
	AutoIncrementID bool
}

// Columns returns the names of all fields in declaration order.
func (t Table) Columns() []string {
	cols := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		cols[i] = f.Name
	}
	return cols
}

// TrackedFields returns the fields that carry change history.
func (t Table) TrackedFields() []Field {
	var out []Field
	for _, f := range t.Fields {
		if f.Tracked {
			out = append(out, f)
		}
	}
	return out
}

// Field returns the named field.
func (t Table) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// ConflictColumns returns the columns an upsert conflicts on.
func (t Table) ConflictColumns() []string {
	if len(t.Unique) > 0 {
		return t.Unique
	}
	return t.PrimaryKey
}

func key(name string, typ Type) Field { return Field{Name: name, Type: typ} }
func tracked(name string, typ Type) Field {
	return Field{Name: name, Type: typ, Nullable: true, Tracked: true}
}
func optional(name string, typ Type) Field { return Field{Name: name, Type: typ, Nullable: true} }

// Table names.
const (
	AirportsTable              = "airports"
	RunwaysTable               = "runways"
	ProceduresTable            = "procedures"
	AIPEntriesTable            = "aip_entries"
	SourcesTable               = "sources"
	ModelMetadataTable         = "model_metadata"
	BorderCrossingTable        = "border_crossing_points"
	AirportChangesTable        = "airports_changes"
	RunwayChangesTable         = "runways_changes"
	ProcedureChangesTable      = "procedures_changes"
	AIPEntryChangesTable       = "aip_entries_changes"
	BorderCrossingChangesTable = "border_crossing_points_changes"
)

// Airports holds one row per airport.
var Airports = Table{
	Name:       AirportsTable,
	Entity:     domain.EntityAirport,
	PrimaryKey: []string{"icao_code"},
	Fields: []Field{
		key("icao_code", TypeString),
		tracked("name", TypeString),
		tracked("type", TypeString),
		tracked("latitude_deg", TypeFloat),
		tracked("longitude_deg", TypeFloat),
		tracked("elevation_ft", TypeInteger),
		tracked("continent", TypeString),
		tracked("iso_country", TypeString),
		tracked("iso_region", TypeString),
		tracked("municipality", TypeString),
		tracked("scheduled_service", TypeBoolean),
		tracked("gps_code", TypeString),
		tracked("iata_code", TypeString),
		tracked("local_code", TypeString),
		tracked("home_link", TypeString),
		tracked("wikipedia_link", TypeString),
		tracked("keywords", TypeString),
		tracked("authority_region", TypeString),
		optional("has_hard_runway", TypeBoolean),
		optional("has_soft_runway", TypeBoolean),
		optional("has_water_runway", TypeBoolean),
		optional("has_snow_runway", TypeBoolean),
		optional("has_lighted_runway", TypeBoolean),
		optional("has_procedures", TypeBoolean),
		optional("has_aip_data", TypeBoolean),
		optional("longest_runway_length_ft", TypeInteger),
		optional("point_of_entry", TypeBoolean),
		optional("sources", TypeString),
		optional("created_at", TypeTimestamp),
		optional("updated_at", TypeTimestamp),
	},
}

// Runways holds runways keyed by airport and end pair.
var Runways = Table{
	Name:            RunwaysTable,
	Entity:          domain.EntityRunway,
	AutoIncrementID: true,
	Unique:          []string{"airport_icao", "le_ident", "he_ident"},
	Fields: []Field{
		key("airport_icao", TypeString),
		key("le_ident", TypeString),
		key("he_ident", TypeString),
		tracked("length_ft", TypeInteger),
		tracked("width_ft", TypeInteger),
		tracked("surface", TypeString),
		tracked("lighted", TypeBoolean),
		tracked("closed", TypeBoolean),
		tracked("le_latitude_deg", TypeFloat),
		tracked("le_longitude_deg", TypeFloat),
		tracked("le_elevation_ft", TypeInteger),
		tracked("le_heading_degt", TypeFloat),
		tracked("le_displaced_threshold_ft", TypeInteger),
		tracked("he_latitude_deg", TypeFloat),
		tracked("he_longitude_deg", TypeFloat),
		tracked("he_elevation_ft", TypeInteger),
		tracked("he_heading_degt", TypeFloat),
		tracked("he_displaced_threshold_ft", TypeInteger),
	},
}

// Procedures holds procedures keyed by airport, name and type.
var Procedures = Table{
	Name:            ProceduresTable,
	Entity:          domain.EntityProcedure,
	AutoIncrementID: true,
	Unique:          []string{"airport_icao", "name", "procedure_type"},
	Fields: []Field{
		key("airport_icao", TypeString),
		key("name", TypeString),
		key("procedure_type", TypeString),
		optional("approach_type", TypeString),
		optional("runway_ident", TypeString),
		optional("runway_number", TypeString),
		optional("runway_letter", TypeString),
		optional("authority", TypeString),
		optional("source", TypeString),
		optional("raw_name", TypeString),
	},
}

// AIPEntries holds AIP fields keyed by airport, section, field and source.
var AIPEntries = Table{
	Name:            AIPEntriesTable,
	Entity:          domain.EntityAIPEntry,
	AutoIncrementID: true,
	Unique:          []string{"airport_icao", "section", "field", "source"},
	Fields: []Field{
		key("airport_icao", TypeString),
		key("section", TypeString),
		key("field", TypeString),
		key("source", TypeString),
		tracked("value", TypeString),
		tracked("alt_field", TypeString),
		tracked("alt_value", TypeString),
		tracked("std_field", TypeString),
		tracked("std_field_id", TypeInteger),
		tracked("mapping_score", TypeFloat),
	},
}

// Sources records per-source airport counts.
var Sources = Table{
	Name:       SourcesTable,
	PrimaryKey: []string{"source_name"},
	Fields: []Field{
		key("source_name", TypeString),
		optional("airport_count", TypeInteger),
		optional("updated_at", TypeTimestamp),
	},
}

// ModelMetadata is a key/value table holding the schema version and statistics.
var ModelMetadata = Table{
	Name:       ModelMetadataTable,
	PrimaryKey: []string{"meta_key"},
	Fields: []Field{
		key("meta_key", TypeString),
		optional("meta_value", TypeString),
		optional("updated_at", TypeTimestamp),
	},
}

// BorderCrossings holds the border-crossing index keyed by country and code.
var BorderCrossings = Table{
	Name:            BorderCrossingTable,
	Entity:          domain.EntityBorderCrossing,
	AutoIncrementID: true,
	Unique:          []string{"country_iso", "icao_code"},
	Fields: []Field{
		key("country_iso", TypeString),
		key("icao_code", TypeString),
		optional("airport_name", TypeString),
		optional("is_airport", TypeBoolean),
		optional("source", TypeString),
		optional("extraction_method", TypeString),
		optional("metadata_json", TypeString),
		optional("matched_airport_icao", TypeString),
		optional("match_score", TypeFloat),
		optional("created_at", TypeTimestamp),
		optional("updated_at", TypeTimestamp),
	},
}

func changeTable(name string, entity domain.EntityType, keys ...string) Table {
	fields := make([]Field, 0, len(keys)+6)
	for _, k := range keys {
		fields = append(fields, key(k, TypeString))
	}
	fields = append(fields,
		key("field_name", TypeString),
		optional("old_value", TypeString),
		optional("new_value", TypeString),
		optional("field_type", TypeString),
		optional("source", TypeString),
		key("changed_at", TypeTimestamp),
	)
	return Table{Name: name, Entity: entity, AutoIncrementID: true, Fields: fields}
}

// Change history tables. Each row is one field transition.
var (
	AirportChanges   = changeTable(AirportChangesTable, domain.EntityAirport, "airport_icao")
	RunwayChanges    = changeTable(RunwayChangesTable, domain.EntityRunway, "airport_icao", "le_ident", "he_ident")
	ProcedureChanges = changeTable(ProcedureChangesTable, domain.EntityProcedure, "airport_icao", "procedure_name", "procedure_type")
	AIPEntryChanges  = changeTable(AIPEntryChangesTable, domain.EntityAIPEntry, "airport_icao", "section", "field", "entry_source")
)

// BorderCrossingChanges records entries added to or removed from a country list.
var BorderCrossingChanges = Table{
	Name:            BorderCrossingChangesTable,
	Entity:          domain.EntityBorderCrossing,
	AutoIncrementID: true,
	Fields: []Field{
		key("icao_code", TypeString),
		key("country_iso", TypeString),
		key("action", TypeString),
		optional("airport_name", TypeString),
		optional("source", TypeString),
		key("changed_at", TypeTimestamp),
	},
}

// ChangeTableFor returns the change history table of an entity type.
func ChangeTableFor(entity domain.EntityType) (Table, bool) {
	switch entity {
	case domain.EntityAirport:
		return AirportChanges, true
	case domain.EntityRunway:
		return RunwayChanges, true
	case domain.EntityProcedure:
		return ProcedureChanges, true
	case domain.EntityAIPEntry:
		return AIPEntryChanges, true
	case domain.EntityBorderCrossing:
		return BorderCrossingChanges, true
	}
	return Table{}, false
}

// AllTables returns every table in creation order.
func AllTables() []Table {
	return []Table{
		Airports, Runways, Procedures, AIPEntries, Sources, ModelMetadata, BorderCrossings,
		AirportChanges, RunwayChanges, ProcedureChanges, AIPEntryChanges, BorderCrossingChanges,
	}
}
