package model

import (
	"strings"

	"euroaip/pkg/domain"
)

// RawAIPRecord is the shape document parsers emit for one AIP field.
type RawAIPRecord struct {
	Ident      string
	Section    string
	Field      string
	Value      string
	AltField   string
	AltValue   string
	StdFieldID *int
}

// AirportBuilder assembles an airport fluently.
type AirportBuilder struct {
	airport domain.Airport
	raw     []RawAIPRecord
}

// NewAirportBuilder starts a builder for the given code.
func NewAirportBuilder(icao string) *AirportBuilder {
	return &AirportBuilder{airport: domain.Airport{ICAO: strings.ToUpper(strings.TrimSpace(icao))}}
}

// WithName sets the airport name.
func (b *AirportBuilder) WithName(name string) *AirportBuilder {
	b.airport.Name = domain.Ptr(name)
	return b
}

// WithCoordinates sets the reference point.
func (b *AirportBuilder) WithCoordinates(lat, lon float64) *AirportBuilder {
	b.airport.Latitude = domain.Ptr(lat)
	b.airport.Longitude = domain.Ptr(lon)
	return b
}

// WithCountry sets the ISO country.
func (b *AirportBuilder) WithCountry(iso string) *AirportBuilder {
	b.airport.ISOCountry = domain.Ptr(strings.ToUpper(strings.TrimSpace(iso)))
	return b
}

// WithRunways appends runways.
func (b *AirportBuilder) WithRunways(runways ...domain.Runway) *AirportBuilder {
	b.airport.Runways = append(b.airport.Runways, runways...)
	return b
}

// WithProcedures appends procedures.
func (b *AirportBuilder) WithProcedures(procs ...domain.Procedure) *AirportBuilder {
	b.airport.Procedures = append(b.airport.Procedures, procs...)
	return b
}

// WithAIPEntries queues parser records. Records for other airports are
// ignored; the kept ones are attributed to the builder's first source.
func (b *AirportBuilder) WithAIPEntries(raw []RawAIPRecord) *AirportBuilder {
	b.raw = append(b.raw, raw...)
	return b
}

// WithSources records contributing sources.
func (b *AirportBuilder) WithSources(sources ...string) *AirportBuilder {
	for _, s := range sources {
		if s = strings.TrimSpace(s); s != "" && !containsString(b.airport.Sources, s) {
			b.airport.Sources = append(b.airport.Sources, s)
		}
	}
	return b
}

// Build validates and returns the airport.
func (b *AirportBuilder) Build() (domain.Airport, error) {
	a := domain.CloneAirport(b.airport)
	source := ""
	if len(a.Sources) > 0 {
		source = a.Sources[0]
	}
	for _, r := range b.raw {
		if !strings.EqualFold(strings.TrimSpace(r.Ident), a.ICAO) {
			continue
		}
		e := domain.AIPEntry{Section: r.Section, Field: r.Field, Source: source, Value: r.Value, StdFieldID: r.StdFieldID}
		if r.AltField != "" {
			e.AltField = domain.Ptr(r.AltField)
		}
		if r.AltValue != "" {
			e.AltValue = domain.Ptr(r.AltValue)
		}
		a.AIPEntries = append(a.AIPEntries, e)
	}
	if err := domain.ValidateAirport(a).Err(); err != nil {
		return domain.Airport{}, err
	}
	return a, nil
}

// AddTo builds the airport and adds it to m.
func (b *AirportBuilder) AddTo(m *Model) error {
	a, err := b.Build()
	if err != nil {
		return err
	}
	return m.Add(a)
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
