package relational

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"euroaip/internal/model"
	"euroaip/internal/schema"
	"euroaip/pkg/domain"
)

// LoadModel reads every stored airport with its children and the
// border-crossing index into a new model. Stored data is trusted: no
// validation or merging happens and derived fields are recomputed once.
func (e *Engine) LoadModel(ctx context.Context, opts ...model.Option) (m *model.Model, err error) {
	start := time.Now()
	defer func() { e.observe(ctx, "load_model", start, err) }()

	airportRows, err := e.selectRows(ctx, e.db, schema.Airports, nil, "icao_code")
	if err != nil {
		return nil, wrap("load model", err)
	}
	airports := make(map[string]*domain.Airport, len(airportRows))
	order := make([]string, 0, len(airportRows))
	for _, r := range airportRows {
		a := airportFromRow(r)
		airports[a.ICAO] = &a
		order = append(order, a.ICAO)
	}

	runways, err := e.selectRows(ctx, e.db, schema.Runways, nil, "id")
	if err != nil {
		return nil, wrap("load model", err)
	}
	for _, r := range runways {
		if a, ok := airports[asString(r["airport_icao"])]; ok {
			a.Runways = append(a.Runways, runwayFromRow(r))
		}
	}
	procs, err := e.selectRows(ctx, e.db, schema.Procedures, nil, "id")
	if err != nil {
		return nil, wrap("load model", err)
	}
	for _, r := range procs {
		if a, ok := airports[asString(r["airport_icao"])]; ok {
			a.Procedures = append(a.Procedures, procedureFromRow(r))
		}
	}
	entries, err := e.selectRows(ctx, e.db, schema.AIPEntries, nil, "id")
	if err != nil {
		return nil, wrap("load model", err)
	}
	for _, r := range entries {
		if a, ok := airports[asString(r["airport_icao"])]; ok {
			a.AIPEntries = append(a.AIPEntries, aipFromRow(r))
		}
	}

	list := make([]domain.Airport, 0, len(order))
	for _, code := range order {
		list = append(list, *airports[code])
	}
	crossings, err := e.LoadBorderCrossingData(ctx)
	if err != nil {
		return nil, err
	}

	opts = append([]model.Option{model.WithLogger(e.logger), model.WithClock(e.now)}, opts...)
	m = model.New(opts...)
	m.BulkLoad(list)
	m.LoadBorderCrossingEntries(crossings)
	e.logger.Info("model loaded", "airports", len(list), "border_crossings", len(crossings))
	return m, nil
}

// Statistics returns the statistics stored by the last save.
func (e *Engine) Statistics(ctx context.Context) (model.Statistics, bool, error) {
	v, ok, err := e.metadata(ctx, e.db, "statistics")
	if err != nil || !ok {
		return model.Statistics{}, false, wrap("statistics", err)
	}
	var stats model.Statistics
	if err := json.Unmarshal([]byte(v), &stats); err != nil {
		return model.Statistics{}, false, wrap("statistics", fmt.Errorf("decode: %w", err))
	}
	return stats, true, nil
}

// SourceInfo is one row of the sources table.
type SourceInfo struct {
	Name         string
	AirportCount int
	UpdatedAt    time.Time
}

// Sources returns every source recorded by saves, sorted by name.
func (e *Engine) Sources(ctx context.Context) ([]SourceInfo, error) {
	rows, err := e.selectRows(ctx, e.db, schema.Sources, nil, "source_name")
	if err != nil {
		return nil, wrap("sources", err)
	}
	out := make([]SourceInfo, 0, len(rows))
	for _, r := range rows {
		info := SourceInfo{Name: asString(r["source_name"]), UpdatedAt: timeOf(r["updated_at"])}
		if n := intPtr(r["airport_count"]); n != nil {
			info.AirportCount = *n
		}
		out = append(out, info)
	}
	return out, nil
}
