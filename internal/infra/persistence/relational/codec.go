package relational

import (
	"encoding/json"
	"strings"

	"euroaip/pkg/domain"
)

func airportValues(a domain.Airport) map[string]any {
	return map[string]any{
		"icao_code":                a.ICAO,
		"name":                     a.Name,
		"type":                     a.Type,
		"latitude_deg":             a.Latitude,
		"longitude_deg":            a.Longitude,
		"elevation_ft":             a.ElevationFt,
		"continent":                a.Continent,
		"iso_country":              a.ISOCountry,
		"iso_region":               a.ISORegion,
		"municipality":             a.Municipality,
		"scheduled_service":        a.ScheduledService,
		"gps_code":                 a.GPSCode,
		"iata_code":                a.IATACode,
		"local_code":               a.LocalCode,
		"home_link":                a.HomeLink,
		"wikipedia_link":           a.WikipediaLink,
		"keywords":                 a.Keywords,
		"authority_region":         a.AuthorityRegion,
		"has_hard_runway":          a.HasHardRunway,
		"has_soft_runway":          a.HasSoftRunway,
		"has_water_runway":         a.HasWaterRunway,
		"has_snow_runway":          a.HasSnowRunway,
		"has_lighted_runway":       a.HasLightedRunway,
		"has_procedures":           a.HasProcedures,
		"has_aip_data":             a.HasAIPData,
		"longest_runway_length_ft": a.LongestRunwayLengthFt,
		"point_of_entry":           a.PointOfEntry,
		"sources":                  strings.Join(a.Sources, ","),
		"created_at":               a.CreatedAt,
		"updated_at":               a.UpdatedAt,
	}
}

func airportFromRow(r row) domain.Airport {
	a := domain.Airport{
		ICAO:             asString(r["icao_code"]),
		Name:             strPtr(r["name"]),
		Type:             strPtr(r["type"]),
		Latitude:         floatPtr(r["latitude_deg"]),
		Longitude:        floatPtr(r["longitude_deg"]),
		ElevationFt:      intPtr(r["elevation_ft"]),
		Continent:        strPtr(r["continent"]),
		ISOCountry:       strPtr(r["iso_country"]),
		ISORegion:        strPtr(r["iso_region"]),
		Municipality:     strPtr(r["municipality"]),
		ScheduledService: boolPtr(r["scheduled_service"]),
		GPSCode:          strPtr(r["gps_code"]),
		IATACode:         strPtr(r["iata_code"]),
		LocalCode:        strPtr(r["local_code"]),
		HomeLink:         strPtr(r["home_link"]),
		WikipediaLink:    strPtr(r["wikipedia_link"]),
		Keywords:         strPtr(r["keywords"]),
		AuthorityRegion:  strPtr(r["authority_region"]),
		CreatedAt:        timeOf(r["created_at"]),
		UpdatedAt:        timeOf(r["updated_at"]),
	}
	if s := asString(r["sources"]); s != "" {
		for _, src := range strings.Split(s, ",") {
			a.AddSource(src)
		}
	}
	return a
}

func runwayValues(icao string, rw domain.Runway) map[string]any {
	return map[string]any{
		"airport_icao":              icao,
		"le_ident":                  rw.LEIdent,
		"he_ident":                  rw.HEIdent,
		"length_ft":                 rw.LengthFt,
		"width_ft":                  rw.WidthFt,
		"surface":                   rw.Surface,
		"lighted":                   rw.Lighted,
		"closed":                    rw.Closed,
		"le_latitude_deg":           rw.LELatitude,
		"le_longitude_deg":          rw.LELongitude,
		"le_elevation_ft":           rw.LEElevationFt,
		"le_heading_degt":           rw.LEHeadingDegT,
		"le_displaced_threshold_ft": rw.LEDisplacedThreshold,
		"he_latitude_deg":           rw.HELatitude,
		"he_longitude_deg":          rw.HELongitude,
		"he_elevation_ft":           rw.HEElevationFt,
		"he_heading_degt":           rw.HEHeadingDegT,
		"he_displaced_threshold_ft": rw.HEDisplacedThreshold,
	}
}

func runwayFromRow(r row) domain.Runway {
	return domain.Runway{
		LEIdent:              asString(r["le_ident"]),
		HEIdent:              asString(r["he_ident"]),
		LengthFt:             intPtr(r["length_ft"]),
		WidthFt:              intPtr(r["width_ft"]),
		Surface:              strPtr(r["surface"]),
		Lighted:              boolPtr(r["lighted"]),
		Closed:               boolPtr(r["closed"]),
		LELatitude:           floatPtr(r["le_latitude_deg"]),
		LELongitude:          floatPtr(r["le_longitude_deg"]),
		LEElevationFt:        intPtr(r["le_elevation_ft"]),
		LEHeadingDegT:        floatPtr(r["le_heading_degt"]),
		LEDisplacedThreshold: intPtr(r["le_displaced_threshold_ft"]),
		HELatitude:           floatPtr(r["he_latitude_deg"]),
		HELongitude:          floatPtr(r["he_longitude_deg"]),
		HEElevationFt:        intPtr(r["he_elevation_ft"]),
		HEHeadingDegT:        floatPtr(r["he_heading_degt"]),
		HEDisplacedThreshold: intPtr(r["he_displaced_threshold_ft"]),
	}
}

func procedureValues(icao string, p domain.Procedure) map[string]any {
	return map[string]any{
		"airport_icao":   icao,
		"name":           p.Name,
		"procedure_type": strings.ToLower(p.ProcedureType),
		"approach_type":  p.ApproachType,
		"runway_ident":   p.RunwayIdent,
		"runway_number":  p.RunwayNumber,
		"runway_letter":  p.RunwayLetter,
		"authority":      p.Authority,
		"source":         p.Source,
		"raw_name":       p.RawName,
	}
}

func procedureFromRow(r row) domain.Procedure {
	return domain.Procedure{
		Name:          asString(r["name"]),
		ProcedureType: asString(r["procedure_type"]),
		ApproachType:  strPtr(r["approach_type"]),
		RunwayIdent:   strPtr(r["runway_ident"]),
		RunwayNumber:  strPtr(r["runway_number"]),
		RunwayLetter:  strPtr(r["runway_letter"]),
		Authority:     strPtr(r["authority"]),
		Source:        strPtr(r["source"]),
		RawName:       strPtr(r["raw_name"]),
	}
}

func aipValues(icao string, e domain.AIPEntry) map[string]any {
	return map[string]any{
		"airport_icao":  icao,
		"section":       e.Section,
		"field":         e.Field,
		"source":        e.Source,
		"value":         e.Value,
		"alt_field":     e.AltField,
		"alt_value":     e.AltValue,
		"std_field":     e.StdField,
		"std_field_id":  e.StdFieldID,
		"mapping_score": e.MappingScore,
	}
}

func aipFromRow(r row) domain.AIPEntry {
	return domain.AIPEntry{
		Section:      asString(r["section"]),
		Field:        asString(r["field"]),
		Source:       asString(r["source"]),
		Value:        asString(r["value"]),
		AltField:     strPtr(r["alt_field"]),
		AltValue:     strPtr(r["alt_value"]),
		StdField:     strPtr(r["std_field"]),
		StdFieldID:   intPtr(r["std_field_id"]),
		MappingScore: floatPtr(r["mapping_score"]),
	}
}

func borderValues(e domain.BorderCrossingEntry) (map[string]any, error) {
	var meta *string
	if len(e.Metadata) > 0 {
		data, err := json.Marshal(e.Metadata)
		if err != nil {
			return nil, err
		}
		meta = domain.Ptr(string(data))
	}
	return map[string]any{
		"country_iso":          e.CountryISO,
		"icao_code":            e.ICAOCode,
		"airport_name":         e.AirportName,
		"is_airport":           e.IsAirport,
		"source":               e.Source,
		"extraction_method":    e.ExtractionMethod,
		"metadata_json":        meta,
		"matched_airport_icao": e.MatchedAirportICAO,
		"match_score":          e.MatchScore,
		"created_at":           e.CreatedAt,
		"updated_at":           e.UpdatedAt,
	}, nil
}

func borderFromRow(r row) (domain.BorderCrossingEntry, error) {
	e := domain.BorderCrossingEntry{
		CountryISO:         asString(r["country_iso"]),
		ICAOCode:           asString(r["icao_code"]),
		AirportName:        asString(r["airport_name"]),
		IsAirport:          boolPtr(r["is_airport"]),
		Source:             asString(r["source"]),
		ExtractionMethod:   asString(r["extraction_method"]),
		MatchedAirportICAO: asString(r["matched_airport_icao"]),
		MatchScore:         floatPtr(r["match_score"]),
		CreatedAt:          timeOf(r["created_at"]),
		UpdatedAt:          timeOf(r["updated_at"]),
	}
	if meta := asString(r["metadata_json"]); meta != "" {
		if err := json.Unmarshal([]byte(meta), &e.Metadata); err != nil {
			return e, err
		}
	}
	return e, nil
}
