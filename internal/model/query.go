package model

import (
	"sort"

	"euroaip/pkg/domain"
)

// AirportQuery filters airports with chained predicates.
type AirportQuery struct {
	m     *Model
	preds []func(domain.Airport) bool
}

// Query starts a query over every airport.
func (m *Model) Query() *AirportQuery { return &AirportQuery{m: m} }

// Where adds an arbitrary predicate.
func (q *AirportQuery) Where(pred func(domain.Airport) bool) *AirportQuery {
	q.preds = append(q.preds, pred)
	return q
}

// ByCountry keeps airports of one ISO country.
func (q *AirportQuery) ByCountry(iso string) *AirportQuery {
	country := normalizeCountry(iso)
	return q.Where(func(a domain.Airport) bool { return a.Country() == country })
}

// WithRunways keeps airports with at least one runway.
func (q *AirportQuery) WithRunways() *AirportQuery {
	return q.Where(func(a domain.Airport) bool { return len(a.Runways) > 0 })
}

// WithHardRunway keeps airports with a hard-surface runway.
func (q *AirportQuery) WithHardRunway() *AirportQuery {
	return q.Where(func(a domain.Airport) bool { return a.HasHardRunway })
}

// WithProcedures keeps airports publishing procedures.
func (q *AirportQuery) WithProcedures() *AirportQuery {
	return q.Where(func(a domain.Airport) bool { return a.HasProcedures })
}

// PointsOfEntry keeps airports listed as border crossings.
func (q *AirportQuery) PointsOfEntry() *AirportQuery {
	return q.Where(func(a domain.Airport) bool { return a.PointOfEntry })
}

func (q *AirportQuery) match(a domain.Airport) bool {
	for _, pred := range q.preds {
		if !pred(a) {
			return false
		}
	}
	return true
}

// All returns copies of the matching airports sorted by code.
func (q *AirportQuery) All() []domain.Airport {
	var out []domain.Airport
	for _, code := range q.m.codes() {
		if a := q.m.state.airports[code]; q.match(a) {
			out = append(out, domain.CloneAirport(a))
		}
	}
	return out
}

// First returns the matching airport with the lowest code.
func (q *AirportQuery) First() (domain.Airport, bool) {
	for _, code := range q.m.codes() {
		if a := q.m.state.airports[code]; q.match(a) {
			return domain.CloneAirport(a), true
		}
	}
	return domain.Airport{}, false
}

// Count returns the number of matching airports.
func (q *AirportQuery) Count() int {
	n := 0
	for _, a := range q.m.state.airports {
		if q.match(a) {
			n++
		}
	}
	return n
}

// Codes returns the sorted codes of matching airports.
func (q *AirportQuery) Codes() []string {
	var out []string
	for _, code := range q.m.codes() {
		if q.match(q.m.state.airports[code]) {
			out = append(out, code)
		}
	}
	return out
}

// ProcedureQuery filters the procedures of one airport.
type ProcedureQuery struct {
	procs []domain.Procedure
}

// QueryProcedures starts a query over procs.
func QueryProcedures(procs []domain.Procedure) *ProcedureQuery {
	return &ProcedureQuery{procs: append([]domain.Procedure(nil), procs...)}
}

// Procedures starts a procedure query over one airport. Unknown airports
// yield an empty query.
func (m *Model) Procedures(icao string) *ProcedureQuery {
	a, _ := m.Airport(icao)
	return QueryProcedures(a.Procedures)
}

func (q *ProcedureQuery) filter(keep func(domain.Procedure) bool) *ProcedureQuery {
	var out []domain.Procedure
	for _, p := range q.procs {
		if keep(p) {
			out = append(out, p)
		}
	}
	return &ProcedureQuery{procs: out}
}

// Approaches keeps approach procedures.
func (q *ProcedureQuery) Approaches() *ProcedureQuery {
	return q.filter(domain.Procedure.IsApproach)
}

// ForRunway keeps procedures serving the runway end ident.
func (q *ProcedureQuery) ForRunway(ident string) *ProcedureQuery {
	return q.filter(func(p domain.Procedure) bool { return p.MatchesRunway(ident) })
}

// All returns the remaining procedures.
func (q *ProcedureQuery) All() []domain.Procedure { return q.procs }

// Count returns the number of remaining procedures.
func (q *ProcedureQuery) Count() int { return len(q.procs) }

// MostPrecise returns the procedure with the best approach precision; ties
// keep the published order.
func (q *ProcedureQuery) MostPrecise() (domain.Procedure, bool) {
	if len(q.procs) == 0 {
		return domain.Procedure{}, false
	}
	ranked := append([]domain.Procedure(nil), q.procs...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Precision() < ranked[j].Precision() })
	return ranked[0], true
}
