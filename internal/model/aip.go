package model

import (
	"sort"
	"time"

	"euroaip/pkg/domain"
)

// StandardizedField is the standardizer's verdict for one AIP entry.
type StandardizedField struct {
	Mapped    bool
	FieldName string
	FieldID   int
	Score     float64
}

// Standardizer maps free-text AIP field names onto canonical fields.
type Standardizer interface {
	Standardize(domain.AIPEntry) StandardizedField
}

// StandardizerFunc adapts a function to Standardizer.
type StandardizerFunc func(domain.AIPEntry) StandardizedField

// Standardize implements Standardizer.
func (f StandardizerFunc) Standardize(e domain.AIPEntry) StandardizedField { return f(e) }

// AIPOptions controls how AIP entries are ingested.
type AIPOptions struct {
	Standardizer     Standardizer
	StandardizedOnly bool
}

// AIPOption configures AIP ingestion.
type AIPOption func(*AIPOptions)

// WithStandardizer annotates entries that carry no canonical field yet.
func WithStandardizer(s Standardizer) AIPOption {
	return func(o *AIPOptions) { o.Standardizer = s }
}

// StandardizedOnly drops entries that remain unstandardized after annotation.
func StandardizedOnly() AIPOption {
	return func(o *AIPOptions) { o.StandardizedOnly = true }
}

func aipOptions(opts []AIPOption) AIPOptions {
	var o AIPOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// StandardizeEntries applies the options to entries and returns the kept ones.
func StandardizeEntries(entries []domain.AIPEntry, opts ...AIPOption) []domain.AIPEntry {
	return aipOptions(opts).prepare(entries)
}

func (o AIPOptions) prepare(entries []domain.AIPEntry) []domain.AIPEntry {
	out := make([]domain.AIPEntry, 0, len(entries))
	for _, e := range entries {
		if o.Standardizer != nil && !e.IsStandardized() {
			if res := o.Standardizer.Standardize(e); res.Mapped {
				e.StdField = domain.Ptr(res.FieldName)
				e.StdFieldID = domain.Ptr(res.FieldID)
				e.MappingScore = domain.Ptr(res.Score)
			}
		}
		if o.StandardizedOnly && !e.IsStandardized() {
			continue
		}
		out = append(out, e)
	}
	return out
}

func validateAIPEntries(icao string, entries []domain.AIPEntry) *domain.ValidationError {
	verr := &domain.ValidationError{}
	if _, err := domain.NormalizeICAO(icao); err != nil {
		verr.Merge(err.(*domain.ValidationError))
	}
	for _, e := range entries {
		verr.Merge(domain.ValidateAIPEntry(icao, e))
	}
	return verr
}

func validateProcedures(icao string, procs []domain.Procedure) *domain.ValidationError {
	verr := &domain.ValidationError{}
	if _, err := domain.NormalizeICAO(icao); err != nil {
		verr.Merge(err.(*domain.ValidationError))
	}
	for _, p := range procs {
		verr.Merge(domain.ValidateProcedure(icao, p))
	}
	return verr
}

// AddAIPEntries merges entries into the airport's AIP data.
func (m *Model) AddAIPEntries(icao string, entries []domain.AIPEntry, opts ...AIPOption) error {
	if err := validateAIPEntries(icao, entries).Err(); err != nil {
		return err
	}
	code, err := m.addAIPEntries(icao, entries, aipOptions(opts), m.now())
	if err != nil {
		return err
	}
	m.refreshDerived(code)
	return nil
}

func (m *Model) addAIPEntries(icao string, entries []domain.AIPEntry, o AIPOptions, now time.Time) (string, error) {
	code, _ := domain.NormalizeICAO(icao)
	a, ok := m.state.airports[code]
	if !ok {
		return code, ErrNotFound{ICAO: code}
	}
	a.AIPEntries = domain.MergeAIPEntries(a.AIPEntries, o.prepare(entries))
	a.UpdatedAt = now
	m.state.airports[code] = a
	return code, nil
}

// AIPSummary counts the outcome of a bulk AIP load.
type AIPSummary struct {
	Airports int
	Entries  int
	Missing  []string
}

// BulkAddAIPEntries merges AIP entries for many airports. Entries for unknown
// airports are skipped and reported in Missing.
func (m *Model) BulkAddAIPEntries(entries map[string][]domain.AIPEntry, opts ...AIPOption) (AIPSummary, error) {
	verr := &domain.ValidationError{}
	for icao, list := range entries {
		verr.Merge(validateAIPEntries(icao, list))
	}
	if err := verr.Err(); err != nil {
		return AIPSummary{}, err
	}
	sum, touched := m.bulkAddAIPEntries(entries, aipOptions(opts), m.now())
	for _, code := range touched {
		m.refreshDerived(code)
	}
	return sum, nil
}

func (m *Model) bulkAddAIPEntries(entries map[string][]domain.AIPEntry, o AIPOptions, now time.Time) (AIPSummary, []string) {
	var sum AIPSummary
	var touched []string
	for _, icao := range sortedKeys(entries) {
		code, err := m.addAIPEntries(icao, entries[icao], o, now)
		if err != nil {
			sum.Missing = append(sum.Missing, code)
			continue
		}
		sum.Airports++
		sum.Entries += len(entries[icao])
		touched = append(touched, code)
	}
	if len(sum.Missing) > 0 {
		m.logger.Debug("aip entries for unknown airports skipped", "airports", len(sum.Missing))
	}
	return sum, touched
}

// ProcedureSummary counts the outcome of a bulk procedure load.
type ProcedureSummary struct {
	Airports   int
	Procedures int
	Missing    []string
}

// BulkAddProcedures merges procedures for many airports.
func (m *Model) BulkAddProcedures(procs map[string][]domain.Procedure) (ProcedureSummary, error) {
	verr := &domain.ValidationError{}
	for icao, list := range procs {
		verr.Merge(validateProcedures(icao, list))
	}
	if err := verr.Err(); err != nil {
		return ProcedureSummary{}, err
	}
	sum, touched := m.bulkAddProcedures(procs, m.now())
	for _, code := range touched {
		m.refreshDerived(code)
	}
	return sum, nil
}

func (m *Model) bulkAddProcedures(procs map[string][]domain.Procedure, now time.Time) (ProcedureSummary, []string) {
	var sum ProcedureSummary
	var touched []string
	for _, icao := range sortedKeys(procs) {
		code, _ := domain.NormalizeICAO(icao)
		a, ok := m.state.airports[code]
		if !ok {
			sum.Missing = append(sum.Missing, code)
			continue
		}
		a.Procedures = domain.MergeProcedures(a.Procedures, procs[icao])
		a.UpdatedAt = now
		m.state.airports[code] = a
		sum.Airports++
		sum.Procedures += len(procs[icao])
		touched = append(touched, code)
	}
	return sum, touched
}

func sortedKeys[V any](in map[string]V) []string {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
