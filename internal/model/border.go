package model

import (
	"sort"
	"strings"
	"time"

	"euroaip/pkg/domain"
)

func normalizeCountry(iso string) string {
	return strings.ToUpper(strings.TrimSpace(iso))
}

// AddBorderCrossingEntry indexes e under its country. Entries that are not
// airports or cannot be tied to an ICAO code are dropped. An existing entry
// for the same airport is replaced only when e is more complete. The result
// reports whether e was stored.
func (m *Model) AddBorderCrossingEntry(e domain.BorderCrossingEntry) bool {
	code, ok := m.addBorderCrossingEntry(e, m.now())
	if ok {
		m.refreshDerived(code)
	}
	return ok
}

func (m *Model) addBorderCrossingEntry(e domain.BorderCrossingEntry, now time.Time) (string, bool) {
	if e.IsAirport != nil && !*e.IsAirport {
		m.logger.Debug("border crossing entry dropped", "reason", "not an airport", "name", e.AirportName, "country", e.CountryISO)
		return "", false
	}
	code := e.ResolvedICAO()
	if code == "" {
		m.logger.Warn("border crossing entry dropped", "reason", "no resolvable icao code", "name", e.AirportName, "country", e.CountryISO)
		return "", false
	}
	country := e.Country()
	if country == "" {
		m.logger.Warn("border crossing entry dropped", "reason", "missing country", "icao", code)
		return "", false
	}

	entry := domain.CloneBorderCrossingEntry(e)
	entry.ICAOCode = code
	entry.CountryISO = country
	bucket, ok := m.state.borderCrossings[country]
	if !ok {
		bucket = make(map[string]domain.BorderCrossingEntry)
		m.state.borderCrossings[country] = bucket
	}
	if existing, found := bucket[code]; found {
		if !entry.MoreCompleteThan(existing) {
			return code, false
		}
		entry.CreatedAt = existing.CreatedAt
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	bucket[code] = entry
	return code, true
}

// AddBorderCrossingEntries indexes entries and returns how many were stored.
func (m *Model) AddBorderCrossingEntries(entries []domain.BorderCrossingEntry) int {
	now := m.now()
	stored := 0
	for _, e := range entries {
		if code, ok := m.addBorderCrossingEntry(e, now); ok {
			stored++
			m.refreshDerived(code)
		}
	}
	return stored
}

// LoadBorderCrossingEntries replaces the whole index with entries as given.
// Timestamps are preserved.
func (m *Model) LoadBorderCrossingEntries(entries []domain.BorderCrossingEntry) {
	m.state.borderCrossings = make(map[string]map[string]domain.BorderCrossingEntry)
	for _, e := range entries {
		country := e.Country()
		bucket, ok := m.state.borderCrossings[country]
		if !ok {
			bucket = make(map[string]domain.BorderCrossingEntry)
			m.state.borderCrossings[country] = bucket
		}
		bucket[e.ICAOCode] = domain.CloneBorderCrossingEntry(e)
	}
	m.UpdateAllDerivedFields()
}

// BorderCrossingEntries returns the entries of one country sorted by code.
func (m *Model) BorderCrossingEntries(country string) []domain.BorderCrossingEntry {
	bucket := m.state.borderCrossings[normalizeCountry(country)]
	out := make([]domain.BorderCrossingEntry, 0, len(bucket))
	for _, code := range sortedKeys(bucket) {
		out = append(out, domain.CloneBorderCrossingEntry(bucket[code]))
	}
	return out
}

// AllBorderCrossingEntries returns every entry sorted by country then code.
func (m *Model) AllBorderCrossingEntries() []domain.BorderCrossingEntry {
	var out []domain.BorderCrossingEntry
	for _, country := range sortedKeys(m.state.borderCrossings) {
		out = append(out, m.BorderCrossingEntries(country)...)
	}
	return out
}

// BorderCrossingCountries returns the countries with at least one entry.
func (m *Model) BorderCrossingCountries() []string {
	var out []string
	for country, bucket := range m.state.borderCrossings {
		if len(bucket) > 0 {
			out = append(out, country)
		}
	}
	sort.Strings(out)
	return out
}

// IsBorderCrossing reports whether any country lists the airport.
func (m *Model) IsBorderCrossing(icao string) bool {
	code := strings.ToUpper(strings.TrimSpace(icao))
	for _, bucket := range m.state.borderCrossings {
		if _, ok := bucket[code]; ok {
			return true
		}
	}
	return false
}

// RemoveBorderCrossingCountry drops every entry of a country and returns how
// many were removed.
func (m *Model) RemoveBorderCrossingCountry(iso string) int {
	country := normalizeCountry(iso)
	bucket, ok := m.state.borderCrossings[country]
	if !ok {
		return 0
	}
	delete(m.state.borderCrossings, country)
	for code := range bucket {
		m.refreshDerived(code)
	}
	return len(bucket)
}

func (m *Model) entryIndex() map[string]bool {
	idx := make(map[string]bool)
	for _, bucket := range m.state.borderCrossings {
		for code := range bucket {
			idx[code] = true
		}
	}
	return idx
}
