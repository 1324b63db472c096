package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"euroaip/pkg/domain"
)

// ErrTransactionClosed is returned by operations on a committed or rolled
// back transaction.
var ErrTransactionClosed = errors.New("transaction closed")

// TxState is the lifecycle state of a Transaction.
type TxState int

const (
	// TxIdle is a transaction that has not begun.
	TxIdle TxState = iota
	// TxOpen accepts queued operations.
	TxOpen
	// TxCommitting is applying its queue.
	TxCommitting
	// TxRollingBack is restoring the snapshot.
	TxRollingBack
	// TxClosed rejects every further call.
	TxClosed
)

func (s TxState) String() string {
	switch s {
	case TxOpen:
		return "open"
	case TxCommitting:
		return "committing"
	case TxRollingBack:
		return "rolling_back"
	case TxClosed:
		return "closed"
	default:
		return "idle"
	}
}

// ChangeSummary lists the identifiers touched by a committed transaction.
// Airports are reported by ICAO code, border-crossing entries as
// "<country>/<icao>".
type ChangeSummary struct {
	ID      string   `json:"id"`
	Added   []string `json:"added,omitempty"`
	Updated []string `json:"updated,omitempty"`
	Removed []string `json:"removed,omitempty"`
}

// Empty reports whether the summary records no change.
func (c ChangeSummary) Empty() bool {
	return len(c.Added) == 0 && len(c.Updated) == 0 && len(c.Removed) == 0
}

type changeTracker struct {
	enabled bool
	seen    map[string]bool
	summary ChangeSummary
}

func (c *changeTracker) record(list *[]string, id string) {
	if !c.enabled || c.seen[id] {
		return
	}
	c.seen[id] = true
	*list = append(*list, id)
}

func (c *changeTracker) added(id string)   { c.record(&c.summary.Added, id) }
func (c *changeTracker) updated(id string) { c.record(&c.summary.Updated, id) }
func (c *changeTracker) removed(id string) {
	if !c.enabled {
		return
	}
	// an id added earlier in the same transaction and now removed is reported as removed only
	delete(c.seen, id)
	c.summary.Added = without(c.summary.Added, id)
	c.summary.Updated = without(c.summary.Updated, id)
	c.record(&c.summary.Removed, id)
}

func without(list []string, id string) []string {
	out := list[:0]
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// TxOption configures a transaction.
type TxOption func(*Transaction)

// WithChangeTracking makes Commit report the identifiers it touched.
func WithChangeTracking() TxOption {
	return func(tx *Transaction) { tx.tracker.enabled = true }
}

// WithoutDerivedUpdate skips the derived-field pass on commit.
func WithoutDerivedUpdate() TxOption {
	return func(tx *Transaction) { tx.updateDerived = false }
}

type txOp struct {
	name     string
	validate func() *domain.ValidationError
	apply    func(tx *Transaction) error
}

// Transaction queues mutations against a Model and applies them atomically.
// Either every queued operation takes effect or the model is restored to the
// snapshot taken when the transaction began.
type Transaction struct {
	id            string
	model         *Model
	snapshot      modelState
	ops           []txOp
	state         TxState
	updateDerived bool
	tracker       changeTracker
}

// Begin snapshots the model and opens a transaction.
func (m *Model) Begin(opts ...TxOption) *Transaction {
	tx := &Transaction{
		id:            uuid.NewString(),
		model:         m,
		updateDerived: true,
		tracker:       changeTracker{seen: make(map[string]bool)},
	}
	for _, opt := range opts {
		opt(tx)
	}
	tx.snapshot = m.state.clone()
	tx.state = TxOpen
	return tx
}

// ID returns the transaction identifier.
func (tx *Transaction) ID() string { return tx.id }

// State returns the current lifecycle state.
func (tx *Transaction) State() TxState { return tx.state }

// Len returns the number of queued operations.
func (tx *Transaction) Len() int { return len(tx.ops) }

func (tx *Transaction) enqueue(op txOp) error {
	if tx.state != TxOpen {
		return ErrTransactionClosed
	}
	tx.ops = append(tx.ops, op)
	return nil
}

// AddAirport queues an insert-or-merge of a.
func (tx *Transaction) AddAirport(a domain.Airport) error {
	a = domain.CloneAirport(a)
	return tx.enqueue(txOp{
		name:     "add_airport",
		validate: func() *domain.ValidationError { return domain.ValidateAirport(a) },
		apply: func(tx *Transaction) error {
			tx.recordAirport(tx.model.addAirport(a, MergeUpdateExisting, tx.model.now()))
			return nil
		},
	})
}

// BulkAddAirports queues a bulk load under policy.
func (tx *Transaction) BulkAddAirports(airports []domain.Airport, policy MergePolicy) error {
	batch := make([]domain.Airport, len(airports))
	for i, a := range airports {
		batch[i] = domain.CloneAirport(a)
	}
	return tx.enqueue(txOp{
		name: "bulk_add_airports",
		validate: func() *domain.ValidationError {
			verr := &domain.ValidationError{}
			for _, a := range batch {
				verr.Merge(domain.ValidateAirport(a))
			}
			return verr
		},
		apply: func(tx *Transaction) error {
			now := tx.model.now()
			for _, a := range batch {
				tx.recordAirport(tx.model.addAirport(a, policy, now))
			}
			return nil
		},
	})
}

// AddAIPEntries queues AIP entries for one airport. The airport must exist by
// the time the operation is applied.
func (tx *Transaction) AddAIPEntries(icao string, entries []domain.AIPEntry, opts ...AIPOption) error {
	entries = append([]domain.AIPEntry(nil), entries...)
	o := aipOptions(opts)
	return tx.enqueue(txOp{
		name:     "add_aip_entries",
		validate: func() *domain.ValidationError { return validateAIPEntries(icao, entries) },
		apply: func(tx *Transaction) error {
			code, err := tx.model.addAIPEntries(icao, entries, o, tx.model.now())
			if err != nil {
				return err
			}
			tx.tracker.updated(code)
			return nil
		},
	})
}

// BulkAddAIPEntries queues AIP entries for many airports.
func (tx *Transaction) BulkAddAIPEntries(entries map[string][]domain.AIPEntry, opts ...AIPOption) error {
	o := aipOptions(opts)
	return tx.enqueue(txOp{
		name: "bulk_add_aip_entries",
		validate: func() *domain.ValidationError {
			verr := &domain.ValidationError{}
			for icao, list := range entries {
				verr.Merge(validateAIPEntries(icao, list))
			}
			return verr
		},
		apply: func(tx *Transaction) error {
			_, touched := tx.model.bulkAddAIPEntries(entries, o, tx.model.now())
			for _, code := range touched {
				tx.tracker.updated(code)
			}
			return nil
		},
	})
}

// BulkAddProcedures queues procedures for many airports.
func (tx *Transaction) BulkAddProcedures(procs map[string][]domain.Procedure) error {
	return tx.enqueue(txOp{
		name: "bulk_add_procedures",
		validate: func() *domain.ValidationError {
			verr := &domain.ValidationError{}
			for icao, list := range procs {
				verr.Merge(validateProcedures(icao, list))
			}
			return verr
		},
		apply: func(tx *Transaction) error {
			_, touched := tx.model.bulkAddProcedures(procs, tx.model.now())
			for _, code := range touched {
				tx.tracker.updated(code)
			}
			return nil
		},
	})
}

// RemoveByCountry queues removal of a country's airports.
func (tx *Transaction) RemoveByCountry(iso string) error {
	return tx.enqueue(txOp{
		name: "remove_by_country",
		validate: func() *domain.ValidationError {
			verr := &domain.ValidationError{}
			if normalizeCountry(iso) == "" {
				verr.Add(domain.EntityAirport, iso, "iso_country", "country code is required")
			}
			return verr
		},
		apply: func(tx *Transaction) error {
			for _, code := range tx.model.removeByCountry(iso) {
				tx.tracker.removed(code)
			}
			return nil
		},
	})
}

// AddBorderCrossingEntry queues a border-crossing entry. Entries the model
// would drop are not an error.
func (tx *Transaction) AddBorderCrossingEntry(e domain.BorderCrossingEntry) error {
	e = domain.CloneBorderCrossingEntry(e)
	return tx.enqueue(txOp{
		name:     "add_border_crossing_entry",
		validate: func() *domain.ValidationError { return &domain.ValidationError{} },
		apply: func(tx *Transaction) error {
			if code, ok := tx.model.addBorderCrossingEntry(e, tx.model.now()); ok {
				tx.tracker.added(e.Country() + "/" + code)
			}
			return nil
		},
	})
}

func (tx *Transaction) recordAirport(code string, out outcome) {
	switch out {
	case outcomeAdded:
		tx.tracker.added(code)
	case outcomeUpdated:
		tx.tracker.updated(code)
	}
}

// Commit validates every queued operation, applies them in order and
// recomputes derived fields once. On any failure the model is restored to
// the snapshot and the error is returned.
func (tx *Transaction) Commit() (summary ChangeSummary, err error) {
	if tx.state != TxOpen {
		return ChangeSummary{}, ErrTransactionClosed
	}
	tx.state = TxCommitting
	defer func() {
		if r := recover(); r != nil {
			tx.model.state = tx.snapshot
			tx.state = TxClosed
			panic(r)
		}
	}()

	verr := &domain.ValidationError{}
	for _, op := range tx.ops {
		verr.Merge(op.validate())
	}
	if err := verr.Err(); err != nil {
		tx.abort()
		return ChangeSummary{}, err
	}

	for i, op := range tx.ops {
		if err := op.apply(tx); err != nil {
			tx.abort()
			tx.model.logger.Warn("transaction rolled back", "tx", tx.id, "op", op.name, "error", err)
			return ChangeSummary{}, fmt.Errorf("apply op %d (%s): %w", i, op.name, err)
		}
	}
	if tx.updateDerived {
		tx.model.UpdateAllDerivedFields()
	}
	tx.state = TxClosed
	tx.model.logger.Debug("transaction committed", "tx", tx.id, "ops", len(tx.ops))

	summary = tx.tracker.summary
	summary.ID = tx.id
	return summary, nil
}

func (tx *Transaction) abort() {
	tx.state = TxRollingBack
	tx.model.state = tx.snapshot
	tx.state = TxClosed
}

// Rollback discards queued operations and restores the snapshot.
func (tx *Transaction) Rollback() error {
	if tx.state != TxOpen {
		return ErrTransactionClosed
	}
	tx.abort()
	return nil
}

// RunInTransaction runs fn against a new transaction and commits it when fn
// succeeds. An error or panic in fn rolls the transaction back; panics are
// re-raised after the rollback.
func (m *Model) RunInTransaction(ctx context.Context, fn func(*Transaction) error, opts ...TxOption) (ChangeSummary, error) {
	tx := m.Begin(opts...)
	defer func() {
		if r := recover(); r != nil {
			if tx.state == TxOpen {
				_ = tx.Rollback()
			}
			panic(r)
		}
	}()
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return ChangeSummary{}, err
	}
	if err := ctx.Err(); err != nil {
		_ = tx.Rollback()
		return ChangeSummary{}, err
	}
	return tx.Commit()
}
