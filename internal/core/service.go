package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"euroaip/internal/archive"
	"euroaip/internal/blob"
	"euroaip/internal/bordercrossing"
	"euroaip/internal/changefeed"
	"euroaip/internal/config"
	"euroaip/internal/infra/persistence/relational"
	"euroaip/internal/model"
	"euroaip/pkg/domain"
	"euroaip/pkg/geo"
)

const (
	opLoad                  = "load"
	opSave                  = "save"
	opUpdate                = "update"
	opImportBorderCrossings = "import_border_crossings"
	opArchive               = "archive"
	opRestoreArchive        = "restore_archive"
	opListArchives          = "list_archives"
	opHistory               = "airport_history"
	opChangesSince          = "changes_since"
)

// ErrArchiveDisabled is returned by archive operations on a service built
// without an archiver.
var ErrArchiveDisabled = errors.New("snapshot archive not configured")

// ErrNotLoaded is returned by writes on a service whose model was never
// loaded. Saving an unloaded model would delete the stored airports.
var ErrNotLoaded = errors.New("model not loaded")

// Service owns the in-memory model and keeps it in step with the relational
// store. It is not safe for concurrent writers.
type Service struct {
	engine   *relational.Engine
	model    *model.Model
	archiver *archive.Archiver
	closers  []func() error
	saveOpts []relational.SaveOption

	logger    Logger
	clock     Clock
	metrics   MetricsRecorder
	tracer    Tracer
	audit     AuditRecorder
	loggerSet bool
	loaded    bool
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger; nil keeps the current one.
func WithLogger(l Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
			s.loggerSet = true
		}
	}
}

// WithClock sets the time source used for timestamps and audit entries.
func WithClock(c Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithMetricsRecorder sets the recorder for operation outcomes. A recorder
// that also has CountChanges(entity string, n int) receives change counts.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithAuditRecorder sets the audit sink for write operations.
func WithAuditRecorder(r AuditRecorder) Option {
	return func(s *Service) {
		if r != nil {
			s.audit = r
		}
	}
}

// WithArchiver enables Archive, RestoreArchive and Archives.
func WithArchiver(a *archive.Archiver) Option {
	return func(s *Service) { s.archiver = a }
}

// WithSaveOptions applies opts to every save.
func WithSaveOptions(opts ...relational.SaveOption) Option {
	return func(s *Service) { s.saveOpts = append(s.saveOpts, opts...) }
}

func newService(opts []Option) *Service {
	s := &Service{
		logger:  noopLogger{},
		clock:   systemClock{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
		audit:   noopAuditRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewService wraps an open engine. The model starts empty; call Load to read
// the stored state before Save or Update.
func NewService(engine *relational.Engine, opts ...Option) *Service {
	s := newService(opts)
	s.engine = engine
	s.model = s.newModel()
	return s
}

// OpenService builds the logger, storage engine, snapshot archive and,
// when a NATS URL is configured, the change feed described by cfg, then
// loads the stored model. Options given by the caller take precedence.
func OpenService(ctx context.Context, cfg config.Config, opts ...Option) (*Service, error) {
	s := newService(opts)
	if !s.loggerSet {
		s.logger = NewLogger(cfg.Log, os.Stderr)
	}
	if cfg.Storage.StandardizedOnly {
		s.saveOpts = append(s.saveOpts, relational.SaveStandardizedOnly())
	}

	engineOpts := []relational.Option{
		relational.WithLogger(s.logger),
		relational.WithClock(s.clock.Now),
		relational.WithMetrics(s.metrics),
	}
	if cfg.NATS.URL != "" {
		sink, conn, err := changefeed.DialNATS(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() error { return conn.Drain() })
		engineOpts = append(engineOpts, relational.WithChangeSink(sink))
	}
	engine, err := OpenPersistence(ctx, cfg.Storage, engineOpts...)
	if err != nil {
		_ = s.runClosers()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	s.engine = engine

	if s.archiver == nil {
		store, err := blob.Open(ctx, cfg.Blob)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("open blob store: %w", err)
		}
		s.archiver = archive.New(store)
	}

	s.model = s.newModel()
	if _, err := s.Load(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) newModel() *model.Model {
	return model.New(model.WithLogger(s.logger), model.WithClock(s.clock.Now))
}

// Model returns the live in-memory model. Mutate it through Update.
func (s *Service) Model() *model.Model { return s.model }

// Engine returns the storage engine.
func (s *Service) Engine() *relational.Engine { return s.engine }

// Close releases the storage engine and the change feed connection.
func (s *Service) Close() error {
	var errs []error
	if s.engine != nil {
		errs = append(errs, s.engine.Close())
	}
	errs = append(errs, s.runClosers())
	return errors.Join(errs...)
}

func (s *Service) runClosers() error {
	var errs []error
	for _, fn := range s.closers {
		errs = append(errs, fn())
	}
	s.closers = nil
	return errors.Join(errs...)
}

// instrument runs fn inside a span and reports its outcome to metrics, the
// audit recorder and the log.
func (s *Service) instrument(ctx context.Context, op, entityID string, fn func(context.Context) (int, error)) error {
	ctx, span := s.tracer.Start(ctx, op)
	start := s.clock.Now()
	changes, err := fn(ctx)
	duration := s.clock.Now().Sub(start)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)
	s.recordAudit(ctx, op, entityID, changes, duration, err)
	if err != nil {
		s.logger.Error("operation failed", "operation", op, "id", entityID, "error", err)
	} else {
		s.logger.Debug("operation completed", "operation", op, "id", entityID, "duration", duration)
	}
	return err
}

func (s *Service) recordAudit(ctx context.Context, op, entityID string, changes int, duration time.Duration, err error) {
	meta, ok := auditedOperations[op]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation: op,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  entityID,
		Status:    AuditStatusSuccess,
		Changes:   changes,
		Duration:  duration,
		Timestamp: s.clock.Now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}

// Load replaces the in-memory model with the stored state.
func (s *Service) Load(ctx context.Context) (*model.Model, error) {
	err := s.instrument(ctx, opLoad, "", func(ctx context.Context) (int, error) {
		loaded, err := s.engine.LoadModel(ctx, model.WithLogger(s.logger), model.WithClock(s.clock.Now))
		if err != nil {
			return 0, err
		}
		s.model.Restore(loaded)
		s.loaded = true
		return 0, nil
	})
	if err != nil {
		return nil, err
	}
	return s.model, nil
}

// Save persists the in-memory model.
func (s *Service) Save(ctx context.Context) (relational.SaveResult, error) {
	var res relational.SaveResult
	err := s.instrument(ctx, opSave, "", func(ctx context.Context) (int, error) {
		if !s.loaded {
			return 0, ErrNotLoaded
		}
		var err error
		res, err = s.engine.SaveModel(ctx, s.model, s.saveOpts...)
		return len(res.Changes) + len(res.BorderCrossingChanges), err
	})
	return res, err
}

// Update runs fn in a model transaction against a copy of the model and
// persists the copy. The live model changes only when both the transaction
// and the save succeed.
func (s *Service) Update(ctx context.Context, fn func(*model.Transaction) error, opts ...model.TxOption) (model.ChangeSummary, relational.SaveResult, error) {
	var (
		summary model.ChangeSummary
		res     relational.SaveResult
	)
	err := s.instrument(ctx, opUpdate, "", func(ctx context.Context) (int, error) {
		if !s.loaded {
			return 0, ErrNotLoaded
		}
		work := s.model.Clone()
		var err error
		summary, err = work.RunInTransaction(ctx, fn, append([]model.TxOption{model.WithChangeTracking()}, opts...)...)
		if err != nil {
			return 0, fmt.Errorf("update model: %w", err)
		}
		res, err = s.engine.SaveModel(ctx, work, s.saveOpts...)
		if err != nil {
			return 0, err
		}
		s.model.Restore(work)
		return len(res.Changes) + len(res.BorderCrossingChanges), nil
	})
	if err != nil {
		return model.ChangeSummary{}, relational.SaveResult{}, err
	}
	return summary, res, nil
}

// ImportBorderCrossings reads a CSV list and replaces the stored entries of
// every country it names. The in-memory index is refreshed from storage.
func (s *Service) ImportBorderCrossings(ctx context.Context, r io.Reader, source string) (relational.BorderCrossingResult, error) {
	var res relational.BorderCrossingResult
	err := s.instrument(ctx, opImportBorderCrossings, source, func(ctx context.Context) (int, error) {
		entries, err := bordercrossing.ReadCSV(r, source)
		if err != nil {
			return 0, err
		}
		return s.replaceBorderCrossings(ctx, entries, &res)
	})
	return res, err
}

func (s *Service) replaceBorderCrossings(ctx context.Context, entries []domain.BorderCrossingEntry, res *relational.BorderCrossingResult) (int, error) {
	var err error
	*res, err = s.engine.SaveBorderCrossingData(ctx, entries)
	if err != nil {
		return 0, err
	}
	stored, err := s.engine.LoadBorderCrossingData(ctx)
	if err != nil {
		return len(res.Changes), err
	}
	s.model.LoadBorderCrossingEntries(stored)
	return len(res.Changes), nil
}

// Archive exports the in-memory model as the snapshot of cycle.
func (s *Service) Archive(ctx context.Context, cycle string) (blob.Info, error) {
	if s.archiver == nil {
		return blob.Info{}, ErrArchiveDisabled
	}
	var info blob.Info
	err := s.instrument(ctx, opArchive, cycle, func(ctx context.Context) (int, error) {
		var err error
		info, err = s.archiver.Export(ctx, s.model, cycle)
		return 0, err
	})
	return info, err
}

// RestoreArchive saves the snapshot of cycle over the stored state and
// reloads the model. Airports missing from the snapshot are deleted, and
// the countries present in the snapshot have their border crossings
// replaced.
func (s *Service) RestoreArchive(ctx context.Context, cycle string) (relational.SaveResult, error) {
	if s.archiver == nil {
		return relational.SaveResult{}, ErrArchiveDisabled
	}
	var res relational.SaveResult
	err := s.instrument(ctx, opRestoreArchive, cycle, func(ctx context.Context) (int, error) {
		snap, err := s.archiver.ImportCycle(ctx, cycle, model.WithLogger(s.logger), model.WithClock(s.clock.Now))
		if err != nil {
			return 0, err
		}
		if res, err = s.engine.SaveModel(ctx, snap, s.saveOpts...); err != nil {
			return 0, err
		}
		changes := len(res.Changes) + len(res.BorderCrossingChanges)
		if entries := snap.AllBorderCrossingEntries(); len(entries) > 0 {
			bc, err := s.engine.SaveBorderCrossingData(ctx, entries)
			if err != nil {
				return changes, err
			}
			changes += len(bc.Changes)
		}
		loaded, err := s.engine.LoadModel(ctx, model.WithLogger(s.logger), model.WithClock(s.clock.Now))
		if err != nil {
			return changes, err
		}
		s.model.Restore(loaded)
		s.loaded = true
		return changes, nil
	})
	return res, err
}

// Archives lists the stored snapshots.
func (s *Service) Archives(ctx context.Context) ([]archive.Entry, error) {
	if s.archiver == nil {
		return nil, ErrArchiveDisabled
	}
	var out []archive.Entry
	err := s.instrument(ctx, opListArchives, "", func(ctx context.Context) (int, error) {
		var err error
		out, err = s.archiver.List(ctx)
		return 0, err
	})
	return out, err
}

// AirportHistory is the recorded change history of one airport.
type AirportHistory struct {
	ICAO       string
	Airport    []domain.FieldChange
	Runways    []domain.FieldChange
	Procedures []domain.FieldChange
	AIPEntries []domain.FieldChange
}

// Len counts every record.
func (h AirportHistory) Len() int {
	return len(h.Airport) + len(h.Runways) + len(h.Procedures) + len(h.AIPEntries)
}

// History returns every change record of an airport.
func (s *Service) History(ctx context.Context, icao string) (AirportHistory, error) {
	code, err := domain.NormalizeICAO(icao)
	if err != nil {
		return AirportHistory{}, err
	}
	h := AirportHistory{ICAO: code}
	err = s.instrument(ctx, opHistory, code, func(ctx context.Context) (int, error) {
		var err error
		if h.Airport, err = s.engine.AirportChanges(ctx, code); err != nil {
			return 0, err
		}
		if h.Runways, err = s.engine.RunwayChanges(ctx, code); err != nil {
			return 0, err
		}
		if h.Procedures, err = s.engine.ProcedureChanges(ctx, code); err != nil {
			return 0, err
		}
		h.AIPEntries, err = s.engine.AIPEntryChanges(ctx, code)
		return 0, err
	})
	if err != nil {
		return AirportHistory{}, err
	}
	return h, nil
}

// ChangesSince returns every change record written at or after since.
func (s *Service) ChangesSince(ctx context.Context, since time.Time) (relational.ChangeSet, error) {
	var set relational.ChangeSet
	err := s.instrument(ctx, opChangesSince, "", func(ctx context.Context) (int, error) {
		var err error
		set, err = s.engine.ChangesSince(ctx, since)
		return 0, err
	})
	return set, err
}

// NearRoute returns the airports of the live model within maxNM of the route.
func (s *Service) NearRoute(waypoints []geo.Point, maxNM float64) []model.RouteMatch {
	return s.model.FindAirportsNearRoute(waypoints, maxNM)
}
