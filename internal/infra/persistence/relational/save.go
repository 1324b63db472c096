package relational

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"euroaip/internal/changefeed"
	"euroaip/internal/model"
	"euroaip/internal/schema"
	"euroaip/pkg/domain"
)

// SaveResult summarizes one SaveModel call.
type SaveResult struct {
	Airports    int
	NewAirports int
	Changes     []domain.FieldChange
	// Removed lists stored airports deleted because m no longer has them.
	Removed               []string
	BorderCrossingChanges []domain.BorderCrossingChange
}

// ChangeCounts returns the number of change records per entity type.
func (r SaveResult) ChangeCounts() map[domain.EntityType]int {
	out := make(map[domain.EntityType]int)
	for _, c := range r.Changes {
		out[c.EntityType]++
	}
	return out
}

type saveOptions struct {
	standardizedOnly bool
}

// SaveOption configures SaveModel.
type SaveOption func(*saveOptions)

// SaveStandardizedOnly persists only AIP entries carrying a canonical field.
func SaveStandardizedOnly() SaveOption {
	return func(o *saveOptions) { o.standardizedOnly = true }
}

// SaveModel makes storage hold exactly the airports of m, in one transaction.
// Rows that already exist are diffed field by field and each difference is
// appended to the entity's change table; rows written for the first time
// produce no change records. Procedures are compared as a set per airport and
// then replaced. Stored airports absent from m are deleted with their
// children. A country of a deleted airport that has neither airports nor
// border-crossing entries left in m loses its stored border crossings, with
// REMOVED records.
func (e *Engine) SaveModel(ctx context.Context, m *model.Model, opts ...SaveOption) (res SaveResult, err error) {
	start := time.Now()
	defer func() { e.observe(ctx, "save_model", start, err) }()

	var o saveOptions
	for _, opt := range opts {
		opt(&o)
	}
	now := e.now().UTC().Truncate(time.Second)

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return SaveResult{}, wrap("save model", fmt.Errorf("begin tx: %w", err))
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	present := make(map[string]bool)
	live := make(map[string]bool)
	for _, a := range m.Airports() {
		present[a.ICAO] = true
		live[a.Country()] = true
		changes, isNew, err := e.saveAirport(ctx, tx, a, o, now)
		if err != nil {
			return SaveResult{}, wrap("save model", fmt.Errorf("airport %s: %w", a.ICAO, err))
		}
		res.Airports++
		if isNew {
			res.NewAirports++
		}
		res.Changes = append(res.Changes, changes...)
	}
	if err := e.removeAbsentAirports(ctx, tx, m, present, live, &res, now); err != nil {
		return SaveResult{}, wrap("save model", err)
	}
	if err := e.appendChanges(ctx, tx, res.Changes); err != nil {
		return SaveResult{}, wrap("save model", err)
	}
	if err := e.saveSources(ctx, tx, m.SourceCounts(), now); err != nil {
		return SaveResult{}, wrap("save model", err)
	}
	stats, err := json.Marshal(m.Statistics())
	if err != nil {
		return SaveResult{}, wrap("save model", fmt.Errorf("encode statistics: %w", err))
	}
	for key, value := range map[string]string{
		schema.VersionKey: fmt.Sprint(e.manager.Version()),
		"statistics":      string(stats),
		"last_saved_at":   now.Format(time.RFC3339),
	} {
		if err := e.putMetadata(ctx, tx, key, value); err != nil {
			return SaveResult{}, wrap("save model", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return SaveResult{}, wrap("save model", fmt.Errorf("commit: %w", err))
	}
	committed = true

	e.logger.Info("model saved", "airports", res.Airports, "new_airports", res.NewAirports, "removed", len(res.Removed), "changes", len(res.Changes))
	e.countChanges(res.Changes)
	if counter, ok := e.metrics.(ChangeCounter); ok && len(res.BorderCrossingChanges) > 0 {
		counter.CountChanges(string(domain.EntityBorderCrossing), len(res.BorderCrossingChanges))
	}
	e.publish(ctx, changefeed.Batch{ID: uuid.NewString(), CommittedAt: now, FieldChanges: res.Changes, BorderCrossingChanges: res.BorderCrossingChanges})
	return res, nil
}

// removeAbsentAirports deletes stored airports whose code is not in present.
// live holds the countries that still have airports in m.
func (e *Engine) removeAbsentAirports(ctx context.Context, tx queryer, m *model.Model, present, live map[string]bool, res *SaveResult, now time.Time) error {
	stored, err := e.selectRows(ctx, tx, schema.Airports, nil, "icao_code")
	if err != nil {
		return err
	}
	countries := make(map[string]bool)
	for _, r := range stored {
		code := asString(r["icao_code"])
		if present[code] {
			continue
		}
		for _, table := range []string{schema.RunwaysTable, schema.ProceduresTable, schema.AIPEntriesTable} {
			if err := e.deleteWhere(ctx, tx, table, []string{"airport_icao"}, code); err != nil {
				return err
			}
		}
		if err := e.deleteWhere(ctx, tx, schema.AirportsTable, []string{"icao_code"}, code); err != nil {
			return err
		}
		res.Removed = append(res.Removed, code)
		if c := airportFromRow(r).Country(); c != "" {
			countries[c] = true
		}
	}
	for _, country := range sortedKeys(countries) {
		if live[country] || len(m.BorderCrossingEntries(country)) > 0 {
			continue
		}
		changes, err := e.replaceCountry(ctx, tx, country, nil, now)
		if err != nil {
			return fmt.Errorf("clear border crossings of %s: %w", country, err)
		}
		res.BorderCrossingChanges = append(res.BorderCrossingChanges, changes...)
	}
	return nil
}

func sortedKeys(in map[string]bool) []string {
	out := make([]string, 0, len(in))
	for k := range in {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (e *Engine) countChanges(changes []domain.FieldChange) {
	counter, ok := e.metrics.(ChangeCounter)
	if !ok {
		return
	}
	counts := make(map[domain.EntityType]int)
	for _, c := range changes {
		counts[c.EntityType]++
	}
	for entity, n := range counts {
		counter.CountChanges(string(entity), n)
	}
}

func (e *Engine) publish(ctx context.Context, batch changefeed.Batch) {
	if e.sink == nil || batch.Empty() {
		return
	}
	if err := e.sink.Publish(ctx, batch); err != nil {
		e.logger.Error("publish change batch", "batch", batch.ID, "error", err)
	}
}

func sourceLabel(a domain.Airport) string { return strings.Join(a.Sources, ",") }

// diffFields compares the tracked fields of t between a stored row and new values.
func diffFields(t schema.Table, entity domain.EntityType, key []string, prior row, next map[string]any, source string, now time.Time) []domain.FieldChange {
	var out []domain.FieldChange
	for _, f := range t.TrackedFields() {
		oldV := f.FormatForComparison(prior[f.Name])
		newV := f.FormatForComparison(next[f.Name])
		if equalPtr(oldV, newV) {
			continue
		}
		out = append(out, domain.FieldChange{
			EntityType: entity,
			Key:        append([]string(nil), key...),
			Field:      f.Name,
			OldValue:   oldV,
			NewValue:   newV,
			FieldType:  f.Type.String(),
			Source:     source,
			ChangedAt:  now,
		})
	}
	return out
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (e *Engine) saveAirport(ctx context.Context, tx queryer, a domain.Airport, o saveOptions, now time.Time) ([]domain.FieldChange, bool, error) {
	prior, err := e.selectRows(ctx, tx, schema.Airports, []string{"icao_code"}, "", a.ICAO)
	if err != nil {
		return nil, false, err
	}
	isNew := len(prior) == 0
	source := sourceLabel(a)
	values := airportValues(a)

	var changes []domain.FieldChange
	if !isNew {
		changes = diffFields(schema.Airports, domain.EntityAirport, []string{a.ICAO}, prior[0], values, source, now)
	}
	if err := e.upsert(ctx, tx, schema.Airports, values); err != nil {
		return nil, false, err
	}

	rc, err := e.saveRunways(ctx, tx, a, source, now)
	if err != nil {
		return nil, false, err
	}
	changes = append(changes, rc...)

	pc, err := e.saveProcedures(ctx, tx, a, !isNew, now)
	if err != nil {
		return nil, false, err
	}
	changes = append(changes, pc...)

	ac, err := e.saveAIPEntries(ctx, tx, a, o, now)
	if err != nil {
		return nil, false, err
	}
	changes = append(changes, ac...)
	return changes, isNew, nil
}

func (e *Engine) saveRunways(ctx context.Context, tx queryer, a domain.Airport, source string, now time.Time) ([]domain.FieldChange, error) {
	stored, err := e.selectRows(ctx, tx, schema.Runways, []string{"airport_icao"}, "id", a.ICAO)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]row, len(stored))
	for _, r := range stored {
		byKey[runwayFromRow(r).Key()] = r
	}
	keep := make(map[string]bool, len(a.Runways))
	var changes []domain.FieldChange
	for _, rw := range a.Runways {
		keep[rw.Key()] = true
		prior, ok := byKey[rw.Key()]
		if ok {
			storedRw := runwayFromRow(prior)
			aligned := runwayValues(a.ICAO, rw.AlignedTo(storedRw))
			key := []string{a.ICAO, storedRw.LEIdent, storedRw.HEIdent}
			changes = append(changes, diffFields(schema.Runways, domain.EntityRunway, key, prior, aligned, source, now)...)
			if storedRw.LEIdent != rw.LEIdent || storedRw.HEIdent != rw.HEIdent {
				// the model names the runway from the other end
				if err := e.deleteWhere(ctx, tx, schema.RunwaysTable, runwayKeyColumns, a.ICAO, storedRw.LEIdent, storedRw.HEIdent); err != nil {
					return nil, err
				}
			}
		}
		if err := e.upsert(ctx, tx, schema.Runways, runwayValues(a.ICAO, rw)); err != nil {
			return nil, err
		}
	}
	for _, r := range stored {
		storedRw := runwayFromRow(r)
		if keep[storedRw.Key()] {
			continue
		}
		if err := e.deleteWhere(ctx, tx, schema.RunwaysTable, runwayKeyColumns, a.ICAO, storedRw.LEIdent, storedRw.HEIdent); err != nil {
			return nil, err
		}
	}
	return changes, nil
}

var (
	runwayKeyColumns   = []string{"airport_icao", "le_ident", "he_ident"}
	aipEntryKeyColumns = []string{"airport_icao", "section", "field", "source"}
)

func (e *Engine) saveProcedures(ctx context.Context, tx queryer, a domain.Airport, track bool, now time.Time) ([]domain.FieldChange, error) {
	stored, err := e.selectRows(ctx, tx, schema.Procedures, []string{"airport_icao"}, "id", a.ICAO)
	if err != nil {
		return nil, err
	}
	before := make(map[string]domain.Procedure, len(stored))
	for _, r := range stored {
		p := procedureFromRow(r)
		before[p.Key()] = p
	}
	after := make(map[string]domain.Procedure, len(a.Procedures))
	for _, p := range a.Procedures {
		after[p.Key()] = p
	}

	var changes []domain.FieldChange
	if track {
		record := func(p domain.Procedure, field string, oldV, newV *string) {
			changes = append(changes, domain.FieldChange{
				EntityType: domain.EntityProcedure,
				Key:        []string{a.ICAO, p.Name, strings.ToLower(p.ProcedureType)},
				Field:      field,
				OldValue:   oldV,
				NewValue:   newV,
				FieldType:  schema.TypeString.String(),
				Source:     derefString(p.Source),
				ChangedAt:  now,
			})
		}
		for _, k := range sortedProcedureKeys(after) {
			if _, ok := before[k]; !ok {
				p := after[k]
				record(p, domain.FieldProcedureAdded, nil, domain.Ptr(p.Name))
			}
		}
		for _, k := range sortedProcedureKeys(before) {
			if _, ok := after[k]; !ok {
				p := before[k]
				record(p, domain.FieldProcedureRemoved, domain.Ptr(p.Name), nil)
			}
		}
	}

	if err := e.deleteWhere(ctx, tx, schema.ProceduresTable, []string{"airport_icao"}, a.ICAO); err != nil {
		return nil, err
	}
	for _, p := range a.Procedures {
		if err := e.insert(ctx, tx, schema.Procedures, procedureValues(a.ICAO, p)); err != nil {
			return nil, err
		}
	}
	return changes, nil
}

func sortedProcedureKeys(in map[string]domain.Procedure) []string {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// saveAIPEntries upserts the airport's entries and deletes stored entries it
// no longer carries. With SaveStandardizedOnly only standardized rows are
// written or deleted.
func (e *Engine) saveAIPEntries(ctx context.Context, tx queryer, a domain.Airport, o saveOptions, now time.Time) ([]domain.FieldChange, error) {
	stored, err := e.selectRows(ctx, tx, schema.AIPEntries, []string{"airport_icao"}, "id", a.ICAO)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]row, len(stored))
	for _, r := range stored {
		byKey[aipFromRow(r).Key()] = r
	}
	keep := make(map[string]bool, len(a.AIPEntries))
	var changes []domain.FieldChange
	for _, entry := range a.AIPEntries {
		if o.standardizedOnly && !entry.IsStandardized() {
			continue
		}
		keep[entry.Key()] = true
		values := aipValues(a.ICAO, entry)
		if prior, ok := byKey[entry.Key()]; ok {
			key := []string{a.ICAO, entry.Section, entry.Field, entry.Source}
			changes = append(changes, diffFields(schema.AIPEntries, domain.EntityAIPEntry, key, prior, values, entry.Source, now)...)
		}
		if err := e.upsert(ctx, tx, schema.AIPEntries, values); err != nil {
			return nil, err
		}
	}
	for _, r := range stored {
		entry := aipFromRow(r)
		if keep[entry.Key()] || (o.standardizedOnly && !entry.IsStandardized()) {
			continue
		}
		if err := e.deleteWhere(ctx, tx, schema.AIPEntriesTable, aipEntryKeyColumns, a.ICAO, entry.Section, entry.Field, entry.Source); err != nil {
			return nil, err
		}
	}
	return changes, nil
}

// appendChanges writes change records to their entity's history table.
func (e *Engine) appendChanges(ctx context.Context, tx queryer, changes []domain.FieldChange) error {
	for _, c := range changes {
		t, ok := schema.ChangeTableFor(c.EntityType)
		if !ok {
			return fmt.Errorf("no change table for %s", c.EntityType)
		}
		values := map[string]any{
			"field_name": c.Field,
			"old_value":  c.OldValue,
			"new_value":  c.NewValue,
			"field_type": c.FieldType,
			"source":     c.Source,
			"changed_at": c.ChangedAt,
		}
		keyCols := changeKeyColumns(t)
		if len(keyCols) != len(c.Key) {
			return fmt.Errorf("change key %v does not match %s", c.Key, t.Name)
		}
		for i, col := range keyCols {
			values[col] = c.Key[i]
		}
		if err := e.insert(ctx, tx, t, values); err != nil {
			return err
		}
	}
	return nil
}

// changeKeyColumns returns the leading key columns of a change table.
func changeKeyColumns(t schema.Table) []string {
	var cols []string
	for _, f := range t.Fields {
		if f.Name == "field_name" {
			break
		}
		cols = append(cols, f.Name)
	}
	return cols
}

func (e *Engine) saveSources(ctx context.Context, tx queryer, counts map[string]int, now time.Time) error {
	for name, n := range counts {
		values := map[string]any{"source_name": name, "airport_count": n, "updated_at": now}
		if err := e.upsert(ctx, tx, schema.Sources, values); err != nil {
			return err
		}
	}
	return nil
}
