package relational

import (
	"context"
	"fmt"
	"sort"
	"time"

	"euroaip/internal/schema"
	"euroaip/pkg/domain"
)

// AirportChanges returns the history of an airport's own fields, oldest first.
func (e *Engine) AirportChanges(ctx context.Context, icao string) ([]domain.FieldChange, error) {
	return e.fieldHistory(ctx, schema.AirportChanges, icao)
}

// RunwayChanges returns the runway history of an airport, oldest first.
func (e *Engine) RunwayChanges(ctx context.Context, icao string) ([]domain.FieldChange, error) {
	return e.fieldHistory(ctx, schema.RunwayChanges, icao)
}

// ProcedureChanges returns the procedure additions and removals of an airport.
func (e *Engine) ProcedureChanges(ctx context.Context, icao string) ([]domain.FieldChange, error) {
	return e.fieldHistory(ctx, schema.ProcedureChanges, icao)
}

// AIPEntryChanges returns the AIP entry history of an airport, oldest first.
func (e *Engine) AIPEntryChanges(ctx context.Context, icao string) ([]domain.FieldChange, error) {
	return e.fieldHistory(ctx, schema.AIPEntryChanges, icao)
}

func (e *Engine) fieldHistory(ctx context.Context, t schema.Table, icao string) ([]domain.FieldChange, error) {
	rows, err := e.selectRows(ctx, e.db, t, []string{"airport_icao"}, "id", icao)
	if err != nil {
		return nil, wrap("history", err)
	}
	return decodeChanges(t, rows), nil
}

func decodeChanges(t schema.Table, rows []row) []domain.FieldChange {
	keyCols := changeKeyColumns(t)
	out := make([]domain.FieldChange, 0, len(rows))
	for _, r := range rows {
		key := make([]string, len(keyCols))
		for i, col := range keyCols {
			key[i] = asString(r[col])
		}
		out = append(out, domain.FieldChange{
			EntityType: t.Entity,
			Key:        key,
			Field:      asString(r["field_name"]),
			OldValue:   strPtr(r["old_value"]),
			NewValue:   strPtr(r["new_value"]),
			FieldType:  asString(r["field_type"]),
			Source:     asString(r["source"]),
			ChangedAt:  timeOf(r["changed_at"]),
		})
	}
	return out
}

// BorderCrossingChanges returns the ADDED and REMOVED records of a country.
// An empty country returns every record.
func (e *Engine) BorderCrossingChanges(ctx context.Context, country string) ([]domain.BorderCrossingChange, error) {
	var (
		rows []row
		err  error
	)
	if country == "" {
		rows, err = e.selectRows(ctx, e.db, schema.BorderCrossingChanges, nil, "id")
	} else {
		rows, err = e.selectRows(ctx, e.db, schema.BorderCrossingChanges, []string{"country_iso"}, "id", country)
	}
	if err != nil {
		return nil, wrap("border crossing history", err)
	}
	return decodeBorderChanges(rows), nil
}

func decodeBorderChanges(rows []row) []domain.BorderCrossingChange {
	out := make([]domain.BorderCrossingChange, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.BorderCrossingChange{
			ICAOCode:    asString(r["icao_code"]),
			CountryISO:  asString(r["country_iso"]),
			Action:      domain.BorderCrossingAction(asString(r["action"])),
			AirportName: asString(r["airport_name"]),
			Source:      asString(r["source"]),
			ChangedAt:   timeOf(r["changed_at"]),
		})
	}
	return out
}

// ChangeSet groups every change record written at or after a point in time.
type ChangeSet struct {
	Since                 time.Time
	FieldChanges          []domain.FieldChange
	BorderCrossingChanges []domain.BorderCrossingChange
}

// Len counts every record in the set.
func (c ChangeSet) Len() int { return len(c.FieldChanges) + len(c.BorderCrossingChanges) }

// ChangesSince returns the records of every history table with changed_at at
// or after since, ordered by time then entity.
func (e *Engine) ChangesSince(ctx context.Context, since time.Time) (ChangeSet, error) {
	since = since.UTC().Truncate(time.Second)
	stamp := schema.Field{Name: "changed_at", Type: schema.TypeTimestamp}.FormatForStorage(since)
	cond := "changed_at >= " + e.dialect.Placeholder(1)

	set := ChangeSet{Since: since}
	for _, t := range []schema.Table{schema.AirportChanges, schema.RunwayChanges, schema.ProcedureChanges, schema.AIPEntryChanges} {
		rows, err := e.selectCond(ctx, e.db, t, cond, "id", stamp)
		if err != nil {
			return ChangeSet{}, wrap("changes since", err)
		}
		set.FieldChanges = append(set.FieldChanges, decodeChanges(t, rows)...)
	}
	sort.SliceStable(set.FieldChanges, func(i, j int) bool {
		return set.FieldChanges[i].ChangedAt.Before(set.FieldChanges[j].ChangedAt)
	})

	rows, err := e.selectCond(ctx, e.db, schema.BorderCrossingChanges, cond, "id", stamp)
	if err != nil {
		return ChangeSet{}, wrap("changes since", err)
	}
	set.BorderCrossingChanges = decodeBorderChanges(rows)
	e.logger.Debug("changes since", "since", since.Format(time.RFC3339), "records", set.Len())
	return set, nil
}

// HistoryCounts returns the number of rows in each change table.
func (e *Engine) HistoryCounts(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int)
	for _, t := range []schema.Table{schema.AirportChanges, schema.RunwayChanges, schema.ProcedureChanges, schema.AIPEntryChanges, schema.BorderCrossingChanges} {
		var n int
		if err := e.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", t.Name)).Scan(&n); err != nil {
			return nil, wrap("history counts", fmt.Errorf("count %s: %w", t.Name, err))
		}
		out[t.Name] = n
	}
	return out, nil
}
