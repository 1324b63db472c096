package relational

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"euroaip/internal/changefeed"
	"euroaip/internal/schema"
	"euroaip/pkg/domain"
)

// BorderCrossingResult summarizes one SaveBorderCrossingData call.
type BorderCrossingResult struct {
	Countries []string
	Stored    int
	Skipped   int
	Changes   []domain.BorderCrossingChange
}

// SaveBorderCrossingData replaces the stored entries of every country present
// in entries; other countries are left untouched. ADDED and REMOVED records
// are written only for countries that already had stored entries, so a first
// import of a country produces no history.
func (e *Engine) SaveBorderCrossingData(ctx context.Context, entries []domain.BorderCrossingEntry) (res BorderCrossingResult, err error) {
	start := time.Now()
	defer func() { e.observe(ctx, "save_border_crossings", start, err) }()
	now := e.now().UTC().Truncate(time.Second)

	byCountry := make(map[string]map[string]domain.BorderCrossingEntry)
	for _, entry := range entries {
		code, country := entry.ResolvedICAO(), entry.Country()
		if code == "" || country == "" {
			res.Skipped++
			continue
		}
		entry = domain.CloneBorderCrossingEntry(entry)
		entry.ICAOCode, entry.CountryISO = code, country
		bucket, ok := byCountry[country]
		if !ok {
			bucket = make(map[string]domain.BorderCrossingEntry)
			byCountry[country] = bucket
		}
		if existing, ok := bucket[code]; ok && !entry.MoreCompleteThan(existing) {
			continue
		}
		bucket[code] = entry
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return BorderCrossingResult{}, wrap("save border crossings", fmt.Errorf("begin tx: %w", err))
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for _, country := range sortedCountries(byCountry) {
		changes, err := e.replaceCountry(ctx, tx, country, byCountry[country], now)
		if err != nil {
			return BorderCrossingResult{}, wrap("save border crossings", fmt.Errorf("country %s: %w", country, err))
		}
		res.Countries = append(res.Countries, country)
		res.Stored += len(byCountry[country])
		res.Changes = append(res.Changes, changes...)
	}
	if err := tx.Commit(); err != nil {
		return BorderCrossingResult{}, wrap("save border crossings", fmt.Errorf("commit: %w", err))
	}
	committed = true

	e.logger.Info("border crossings saved", "countries", len(res.Countries), "entries", res.Stored, "changes", len(res.Changes))
	if counter, ok := e.metrics.(ChangeCounter); ok && len(res.Changes) > 0 {
		counter.CountChanges(string(domain.EntityBorderCrossing), len(res.Changes))
	}
	e.publish(ctx, changefeed.Batch{ID: uuid.NewString(), CommittedAt: now, BorderCrossingChanges: res.Changes})
	return res, nil
}

func sortedCountries(in map[string]map[string]domain.BorderCrossingEntry) []string {
	out := make([]string, 0, len(in))
	for k := range in {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (e *Engine) replaceCountry(ctx context.Context, tx queryer, country string, next map[string]domain.BorderCrossingEntry, now time.Time) ([]domain.BorderCrossingChange, error) {
	stored, err := e.selectRows(ctx, tx, schema.BorderCrossings, []string{"country_iso"}, "icao_code", country)
	if err != nil {
		return nil, err
	}
	prior := make(map[string]domain.BorderCrossingEntry, len(stored))
	for _, r := range stored {
		entry, err := borderFromRow(r)
		if err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		prior[entry.ICAOCode] = entry
	}

	var changes []domain.BorderCrossingChange
	if len(prior) > 0 {
		for _, code := range sortedCodes(next) {
			if _, ok := prior[code]; !ok {
				n := next[code]
				changes = append(changes, domain.BorderCrossingChange{ICAOCode: code, CountryISO: country, Action: domain.BorderCrossingAdded, AirportName: n.AirportName, Source: n.Source, ChangedAt: now})
			}
		}
		for _, code := range sortedCodes(prior) {
			if _, ok := next[code]; !ok {
				p := prior[code]
				changes = append(changes, domain.BorderCrossingChange{ICAOCode: code, CountryISO: country, Action: domain.BorderCrossingRemoved, AirportName: p.AirportName, Source: p.Source, ChangedAt: now})
			}
		}
	}

	if err := e.deleteWhere(ctx, tx, schema.BorderCrossingTable, []string{"country_iso"}, country); err != nil {
		return nil, err
	}
	for _, code := range sortedCodes(next) {
		entry := next[code]
		if p, ok := prior[code]; ok && !p.CreatedAt.IsZero() {
			entry.CreatedAt = p.CreatedAt
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = now
		}
		if entry.UpdatedAt.IsZero() {
			entry.UpdatedAt = now
		}
		values, err := borderValues(entry)
		if err != nil {
			return nil, fmt.Errorf("encode metadata of %s: %w", code, err)
		}
		if err := e.insert(ctx, tx, schema.BorderCrossings, values); err != nil {
			return nil, err
		}
	}
	for _, c := range changes {
		values := map[string]any{
			"icao_code":    c.ICAOCode,
			"country_iso":  c.CountryISO,
			"action":       string(c.Action),
			"airport_name": c.AirportName,
			"source":       c.Source,
			"changed_at":   c.ChangedAt,
		}
		if err := e.insert(ctx, tx, schema.BorderCrossingChanges, values); err != nil {
			return nil, err
		}
	}
	return changes, nil
}

func sortedCodes(in map[string]domain.BorderCrossingEntry) []string {
	out := make([]string, 0, len(in))
	for k := range in {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// LoadBorderCrossingData returns every stored entry sorted by country and code.
func (e *Engine) LoadBorderCrossingData(ctx context.Context) ([]domain.BorderCrossingEntry, error) {
	rows, err := e.selectRows(ctx, e.db, schema.BorderCrossings, nil, "country_iso, icao_code")
	if err != nil {
		return nil, wrap("load border crossings", err)
	}
	out := make([]domain.BorderCrossingEntry, 0, len(rows))
	for _, r := range rows {
		entry, err := borderFromRow(r)
		if err != nil {
			return nil, wrap("load border crossings", fmt.Errorf("decode metadata: %w", err))
		}
		out = append(out, entry)
	}
	return out, nil
}
