// Package model holds the canonical in-memory store of airports and the
// border-crossing index, together with its transactional mutation layer.
package model

import (
	"fmt"
	"sort"
	"time"

	"euroaip/pkg/domain"
)

// ErrNotFound indicates the requested airport does not exist.
type ErrNotFound struct {
	ICAO string
}

func (e ErrNotFound) Error() string { return fmt.Sprintf("airport %s not found", e.ICAO) }

// MergePolicy controls how BulkAdd treats airports that already exist.
type MergePolicy int

const (
	// MergeUpdateExisting merges incoming values into the existing airport.
	MergeUpdateExisting MergePolicy = iota
	// MergeSkipExisting leaves existing airports untouched.
	MergeSkipExisting
	// MergeReplace discards the existing airport in favour of the incoming one.
	MergeReplace
)

// BulkResult counts the outcome of a bulk airport load.
type BulkResult struct {
	Added   int
	Updated int
	Skipped int
}

type outcome int

const (
	outcomeAdded outcome = iota
	outcomeUpdated
	outcomeSkipped
)

type modelState struct {
	airports map[string]domain.Airport
	// country -> icao -> entry
	borderCrossings map[string]map[string]domain.BorderCrossingEntry
}

func newModelState() modelState {
	return modelState{
		airports:        make(map[string]domain.Airport),
		borderCrossings: make(map[string]map[string]domain.BorderCrossingEntry),
	}
}

func (s modelState) clone() modelState {
	cloned := newModelState()
	for k, v := range s.airports {
		cloned.airports[k] = domain.CloneAirport(v)
	}
	for country, bucket := range s.borderCrossings {
		cp := make(map[string]domain.BorderCrossingEntry, len(bucket))
		for k, v := range bucket {
			cp[k] = domain.CloneBorderCrossingEntry(v)
		}
		cloned.borderCrossings[country] = cp
	}
	return cloned
}

// Model is the in-memory entity store. It is not safe for concurrent writers.
type Model struct {
	state  modelState
	logger Logger
	now    func() time.Time
}

// New constructs an empty model.
func New(opts ...Option) *Model {
	m := &Model{
		state:  newModelState(),
		logger: noopLogger{},
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Clone returns a deep copy of the model sharing only its logger and clock.
func (m *Model) Clone() *Model {
	return &Model{state: m.state.clone(), logger: m.logger, now: m.now}
}

// Restore replaces the model's contents with a deep copy of snapshot.
func (m *Model) Restore(snapshot *Model) {
	m.state = snapshot.state.clone()
}

// Add inserts a or merges it into the existing airport with the same code.
func (m *Model) Add(a domain.Airport) error {
	if err := domain.ValidateAirport(a).Err(); err != nil {
		return err
	}
	code, _ := domain.NormalizeICAO(a.ICAO)
	m.addAirport(a, MergeUpdateExisting, m.now())
	m.refreshDerived(code)
	return nil
}

// BulkAdd loads many airports in one pass. Validation happens up front: if
// any airport is invalid nothing is applied and the aggregated problems are
// returned.
func (m *Model) BulkAdd(airports []domain.Airport, policy MergePolicy) (BulkResult, error) {
	verr := &domain.ValidationError{}
	for _, a := range airports {
		verr.Merge(domain.ValidateAirport(a))
	}
	if err := verr.Err(); err != nil {
		return BulkResult{}, err
	}
	res, touched := m.bulkAdd(airports, policy, m.now())
	for _, code := range touched {
		m.refreshDerived(code)
	}
	m.logger.Debug("bulk add airports", "added", res.Added, "updated", res.Updated, "skipped", res.Skipped)
	return res, nil
}

func (m *Model) bulkAdd(airports []domain.Airport, policy MergePolicy, now time.Time) (BulkResult, []string) {
	var res BulkResult
	touched := make([]string, 0, len(airports))
	for _, a := range airports {
		code, out := m.addAirport(a, policy, now)
		switch out {
		case outcomeAdded:
			res.Added++
		case outcomeUpdated:
			res.Updated++
		default:
			res.Skipped++
			continue
		}
		touched = append(touched, code)
	}
	return res, touched
}

// addAirport applies one validated airport without recomputing derived fields.
func (m *Model) addAirport(a domain.Airport, policy MergePolicy, now time.Time) (string, outcome) {
	code, _ := domain.NormalizeICAO(a.ICAO)
	existing, ok := m.state.airports[code]
	if ok && policy == MergeSkipExisting {
		return code, outcomeSkipped
	}
	if !ok || policy == MergeReplace {
		fresh := newAirport(code, a, now)
		if ok {
			fresh.CreatedAt = existing.CreatedAt
		}
		m.state.airports[code] = fresh
		if ok {
			return code, outcomeUpdated
		}
		return code, outcomeAdded
	}
	domain.MergeAirport(&existing, a)
	existing.Runways = domain.MergeRunways(existing.Runways, a.Runways)
	existing.Procedures = domain.MergeProcedures(existing.Procedures, a.Procedures)
	existing.AIPEntries = domain.MergeAIPEntries(existing.AIPEntries, a.AIPEntries)
	existing.UpdatedAt = now
	m.state.airports[code] = existing
	return code, outcomeUpdated
}

func newAirport(code string, a domain.Airport, now time.Time) domain.Airport {
	in := domain.CloneAirport(a)
	fresh := domain.Airport{ICAO: code}
	domain.MergeAirport(&fresh, in)
	fresh.Runways = domain.MergeRunways(nil, in.Runways)
	fresh.Procedures = domain.MergeProcedures(nil, in.Procedures)
	fresh.AIPEntries = domain.MergeAIPEntries(nil, in.AIPEntries)
	fresh.CreatedAt = in.CreatedAt
	if fresh.CreatedAt.IsZero() {
		fresh.CreatedAt = now
	}
	fresh.UpdatedAt = now
	return fresh
}

// BulkLoad inserts airports exactly as given, replacing any airport with the
// same code, then recomputes derived fields once. It performs no validation
// and keeps stored timestamps; it is meant for rehydrating persisted state.
func (m *Model) BulkLoad(airports []domain.Airport) {
	for _, a := range airports {
		cp := domain.CloneAirport(a)
		m.state.airports[cp.ICAO] = cp
	}
	m.UpdateAllDerivedFields()
}

// RemoveByCountry deletes every airport of the given country together with
// the country's border-crossing entries and reports how many airports went.
func (m *Model) RemoveByCountry(iso string) int {
	removed := m.removeByCountry(iso)
	return len(removed)
}

func (m *Model) removeByCountry(iso string) []string {
	country := normalizeCountry(iso)
	if country == "" {
		return nil
	}
	var removed []string
	for code, a := range m.state.airports {
		if a.Country() == country {
			delete(m.state.airports, code)
			removed = append(removed, code)
		}
	}
	sort.Strings(removed)
	m.RemoveBorderCrossingCountry(country)
	m.logger.Info("removed airports by country", "country", country, "airports", len(removed))
	return removed
}

// UpdateAllDerivedFields recomputes derived attributes of every airport.
func (m *Model) UpdateAllDerivedFields() {
	entry := m.entryIndex()
	for code, a := range m.state.airports {
		a.UpdateDerived()
		a.PointOfEntry = entry[code]
		m.state.airports[code] = a
	}
}

func (m *Model) refreshDerived(code string) {
	a, ok := m.state.airports[code]
	if !ok {
		return
	}
	a.UpdateDerived()
	a.PointOfEntry = m.IsBorderCrossing(code)
	m.state.airports[code] = a
}

// Airport returns a copy of the airport with the given code.
func (m *Model) Airport(icao string) (domain.Airport, bool) {
	code, err := domain.NormalizeICAO(icao)
	if err != nil {
		return domain.Airport{}, false
	}
	a, ok := m.state.airports[code]
	if !ok {
		return domain.Airport{}, false
	}
	return domain.CloneAirport(a), true
}

// Airports returns copies of all airports sorted by code.
func (m *Model) Airports() []domain.Airport {
	codes := m.codes()
	out := make([]domain.Airport, len(codes))
	for i, code := range codes {
		out[i] = domain.CloneAirport(m.state.airports[code])
	}
	return out
}

func (m *Model) codes() []string {
	codes := make([]string, 0, len(m.state.airports))
	for code := range m.state.airports {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Len returns the number of airports.
func (m *Model) Len() int { return len(m.state.airports) }

// Sources returns the sorted union of sources that contributed airports.
func (m *Model) Sources() []string {
	seen := make(map[string]struct{})
	for _, a := range m.state.airports {
		for _, s := range a.Sources {
			seen[s] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// SourceCounts returns the number of airports each source contributed to.
func (m *Model) SourceCounts() map[string]int {
	counts := make(map[string]int)
	for _, a := range m.state.airports {
		for _, s := range a.Sources {
			counts[s]++
		}
	}
	return counts
}

// Statistics summarizes the model contents.
type Statistics struct {
	Airports        int            `json:"airports"`
	Runways         int            `json:"runways"`
	Procedures      int            `json:"procedures"`
	AIPEntries      int            `json:"aip_entries"`
	BorderCrossings int            `json:"border_crossings"`
	Countries       int            `json:"countries"`
	WithRunways     int            `json:"with_runways"`
	WithProcedures  int            `json:"with_procedures"`
	WithAIPData     int            `json:"with_aip_data"`
	PointsOfEntry   int            `json:"points_of_entry"`
	BySource        map[string]int `json:"by_source"`
}

// Statistics computes counts over the current contents.
func (m *Model) Statistics() Statistics {
	stats := Statistics{Airports: len(m.state.airports), BySource: m.SourceCounts()}
	countries := make(map[string]struct{})
	for _, a := range m.state.airports {
		stats.Runways += len(a.Runways)
		stats.Procedures += len(a.Procedures)
		stats.AIPEntries += len(a.AIPEntries)
		if len(a.Runways) > 0 {
			stats.WithRunways++
		}
		if a.HasProcedures {
			stats.WithProcedures++
		}
		if a.HasAIPData {
			stats.WithAIPData++
		}
		if a.PointOfEntry {
			stats.PointsOfEntry++
		}
		if c := a.Country(); c != "" {
			countries[c] = struct{}{}
		}
	}
	stats.Countries = len(countries)
	for _, bucket := range m.state.borderCrossings {
		stats.BorderCrossings += len(bucket)
	}
	return stats
}
