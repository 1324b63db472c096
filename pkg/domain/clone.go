package domain

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// CloneAirport returns a deep copy of a. The result shares no memory with a.
func CloneAirport(a Airport) Airport {
	cp := a
	cp.Name = clonePtr(a.Name)
	cp.Type = clonePtr(a.Type)
	cp.Latitude = clonePtr(a.Latitude)
	cp.Longitude = clonePtr(a.Longitude)
	cp.ElevationFt = clonePtr(a.ElevationFt)
	cp.Continent = clonePtr(a.Continent)
	cp.ISOCountry = clonePtr(a.ISOCountry)
	cp.ISORegion = clonePtr(a.ISORegion)
	cp.Municipality = clonePtr(a.Municipality)
	cp.ScheduledService = clonePtr(a.ScheduledService)
	cp.GPSCode = clonePtr(a.GPSCode)
	cp.IATACode = clonePtr(a.IATACode)
	cp.LocalCode = clonePtr(a.LocalCode)
	cp.HomeLink = clonePtr(a.HomeLink)
	cp.WikipediaLink = clonePtr(a.WikipediaLink)
	cp.Keywords = clonePtr(a.Keywords)
	cp.AuthorityRegion = clonePtr(a.AuthorityRegion)
	cp.LongestRunwayLengthFt = clonePtr(a.LongestRunwayLengthFt)

	if a.Runways != nil {
		cp.Runways = make([]Runway, len(a.Runways))
		for i, r := range a.Runways {
			cp.Runways[i] = cloneRunway(r)
		}
	}
	if a.Procedures != nil {
		cp.Procedures = make([]Procedure, len(a.Procedures))
		for i, p := range a.Procedures {
			cp.Procedures[i] = cloneProcedure(p)
		}
	}
	if a.AIPEntries != nil {
		cp.AIPEntries = make([]AIPEntry, len(a.AIPEntries))
		for i, e := range a.AIPEntries {
			cp.AIPEntries[i] = cloneAIPEntry(e)
		}
	}
	if a.Sources != nil {
		cp.Sources = append([]string(nil), a.Sources...)
	}
	return cp
}

func cloneRunway(r Runway) Runway {
	cp := r
	cp.LengthFt = clonePtr(r.LengthFt)
	cp.WidthFt = clonePtr(r.WidthFt)
	cp.Surface = clonePtr(r.Surface)
	cp.Lighted = clonePtr(r.Lighted)
	cp.Closed = clonePtr(r.Closed)
	cp.LELatitude = clonePtr(r.LELatitude)
	cp.LELongitude = clonePtr(r.LELongitude)
	cp.LEElevationFt = clonePtr(r.LEElevationFt)
	cp.LEHeadingDegT = clonePtr(r.LEHeadingDegT)
	cp.LEDisplacedThreshold = clonePtr(r.LEDisplacedThreshold)
	cp.HELatitude = clonePtr(r.HELatitude)
	cp.HELongitude = clonePtr(r.HELongitude)
	cp.HEElevationFt = clonePtr(r.HEElevationFt)
	cp.HEHeadingDegT = clonePtr(r.HEHeadingDegT)
	cp.HEDisplacedThreshold = clonePtr(r.HEDisplacedThreshold)
	return cp
}

func cloneProcedure(p Procedure) Procedure {
	cp := p
	cp.ApproachType = clonePtr(p.ApproachType)
	cp.RunwayIdent = clonePtr(p.RunwayIdent)
	cp.RunwayNumber = clonePtr(p.RunwayNumber)
	cp.RunwayLetter = clonePtr(p.RunwayLetter)
	cp.Authority = clonePtr(p.Authority)
	cp.Source = clonePtr(p.Source)
	cp.RawName = clonePtr(p.RawName)
	return cp
}

func cloneAIPEntry(e AIPEntry) AIPEntry {
	cp := e
	cp.AltField = clonePtr(e.AltField)
	cp.AltValue = clonePtr(e.AltValue)
	cp.StdField = clonePtr(e.StdField)
	cp.StdFieldID = clonePtr(e.StdFieldID)
	cp.MappingScore = clonePtr(e.MappingScore)
	return cp
}

// CloneBorderCrossingEntry returns a deep copy of e.
func CloneBorderCrossingEntry(e BorderCrossingEntry) BorderCrossingEntry {
	cp := e
	cp.IsAirport = clonePtr(e.IsAirport)
	cp.MatchScore = clonePtr(e.MatchScore)
	if e.Metadata != nil {
		cp.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			cp.Metadata[k] = v
		}
	}
	return cp
}
