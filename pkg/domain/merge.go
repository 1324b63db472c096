package domain

import "strings"

// mergeString copies src into dst when src carries a non-empty value.
func mergeString(dst **string, src *string) {
	if src == nil || strings.TrimSpace(*src) == "" {
		return
	}
	v := *src
	*dst = &v
}

func mergeValue[T any](dst **T, src *T) {
	if src == nil {
		return
	}
	v := *src
	*dst = &v
}

// MergeAirport merges the scalar attributes of incoming into existing and
// unions the contributing sources. Values present in incoming overwrite
// existing ones; absent or empty values never erase data. Child collections
// are not touched; callers merge them with MergeRunways, MergeProcedures and
// MergeAIPEntries.
func MergeAirport(existing *Airport, incoming Airport) {
	mergeString(&existing.Name, incoming.Name)
	mergeString(&existing.Type, incoming.Type)
	mergeValue(&existing.Latitude, incoming.Latitude)
	mergeValue(&existing.Longitude, incoming.Longitude)
	mergeValue(&existing.ElevationFt, incoming.ElevationFt)
	mergeString(&existing.Continent, incoming.Continent)
	mergeString(&existing.ISOCountry, incoming.ISOCountry)
	mergeString(&existing.ISORegion, incoming.ISORegion)
	mergeString(&existing.Municipality, incoming.Municipality)
	mergeValue(&existing.ScheduledService, incoming.ScheduledService)
	mergeString(&existing.GPSCode, incoming.GPSCode)
	mergeString(&existing.IATACode, incoming.IATACode)
	mergeString(&existing.LocalCode, incoming.LocalCode)
	mergeString(&existing.HomeLink, incoming.HomeLink)
	mergeString(&existing.WikipediaLink, incoming.WikipediaLink)
	mergeString(&existing.Keywords, incoming.Keywords)
	mergeString(&existing.AuthorityRegion, incoming.AuthorityRegion)
	for _, s := range incoming.Sources {
		existing.AddSource(s)
	}
}

// MergeRunway merges non-empty attributes of incoming into existing. When
// incoming names the same runway from the opposite end its per-end
// attributes are swapped first.
func MergeRunway(existing *Runway, incoming Runway) {
	incoming = incoming.AlignedTo(*existing)
	mergeValue(&existing.LengthFt, incoming.LengthFt)
	mergeValue(&existing.WidthFt, incoming.WidthFt)
	mergeString(&existing.Surface, incoming.Surface)
	mergeValue(&existing.Lighted, incoming.Lighted)
	mergeValue(&existing.Closed, incoming.Closed)
	mergeValue(&existing.LELatitude, incoming.LELatitude)
	mergeValue(&existing.LELongitude, incoming.LELongitude)
	mergeValue(&existing.LEElevationFt, incoming.LEElevationFt)
	mergeValue(&existing.LEHeadingDegT, incoming.LEHeadingDegT)
	mergeValue(&existing.LEDisplacedThreshold, incoming.LEDisplacedThreshold)
	mergeValue(&existing.HELatitude, incoming.HELatitude)
	mergeValue(&existing.HELongitude, incoming.HELongitude)
	mergeValue(&existing.HEElevationFt, incoming.HEElevationFt)
	mergeValue(&existing.HEHeadingDegT, incoming.HEHeadingDegT)
	mergeValue(&existing.HEDisplacedThreshold, incoming.HEDisplacedThreshold)
}

// MergeProcedure merges non-empty attributes of incoming into existing.
func MergeProcedure(existing *Procedure, incoming Procedure) {
	mergeString(&existing.ApproachType, incoming.ApproachType)
	mergeString(&existing.RunwayIdent, incoming.RunwayIdent)
	mergeString(&existing.RunwayNumber, incoming.RunwayNumber)
	mergeString(&existing.RunwayLetter, incoming.RunwayLetter)
	mergeString(&existing.Authority, incoming.Authority)
	mergeString(&existing.Source, incoming.Source)
	mergeString(&existing.RawName, incoming.RawName)
}

// MergeAIPEntry replaces the value of existing with incoming's and merges the
// optional annotations. The value itself is always taken from the newer entry,
// including an empty value, since a source may legitimately clear a field.
func MergeAIPEntry(existing *AIPEntry, incoming AIPEntry) {
	existing.Value = incoming.Value
	mergeString(&existing.AltField, incoming.AltField)
	mergeString(&existing.AltValue, incoming.AltValue)
	mergeString(&existing.StdField, incoming.StdField)
	mergeValue(&existing.StdFieldID, incoming.StdFieldID)
	mergeValue(&existing.MappingScore, incoming.MappingScore)
}

// MergeRunways merges incoming runways into existing by end-pair identity.
// New runways are appended in arrival order.
func MergeRunways(existing []Runway, incoming []Runway) []Runway {
	index := make(map[string]int, len(existing))
	for i, r := range existing {
		index[r.Key()] = i
	}
	for _, r := range incoming {
		key := r.Key()
		if i, ok := index[key]; ok {
			MergeRunway(&existing[i], r)
			continue
		}
		index[key] = len(existing)
		existing = append(existing, cloneRunway(r))
	}
	return existing
}

// MergeProcedures merges incoming procedures into existing by (name, type).
func MergeProcedures(existing []Procedure, incoming []Procedure) []Procedure {
	index := make(map[string]int, len(existing))
	for i, p := range existing {
		index[p.Key()] = i
	}
	for _, p := range incoming {
		key := p.Key()
		if i, ok := index[key]; ok {
			MergeProcedure(&existing[i], p)
			continue
		}
		index[key] = len(existing)
		existing = append(existing, cloneProcedure(p))
	}
	return existing
}

// MergeAIPEntries merges incoming entries into existing by (section, field, source).
func MergeAIPEntries(existing []AIPEntry, incoming []AIPEntry) []AIPEntry {
	index := make(map[string]int, len(existing))
	for i, e := range existing {
		index[e.Key()] = i
	}
	for _, e := range incoming {
		key := e.Key()
		if i, ok := index[key]; ok {
			MergeAIPEntry(&existing[i], e)
			continue
		}
		index[key] = len(existing)
		existing = append(existing, cloneAIPEntry(e))
	}
	return existing
}
