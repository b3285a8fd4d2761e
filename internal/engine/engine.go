package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/splitledger/internal/batch"
	"github.com/roach88/splitledger/internal/ledger"
	"github.com/roach88/splitledger/internal/store"
)

// Engine is the debt ledger reconciliation engine.
//
// Thread-safety model:
//   - every exported method is safe from any goroutine
//   - Add, Update, Remove, GetIntentions and AcceptIntention are coalesced
//     per account; AcceptAllIntentions and the account helpers are not
//
// INVARIANTS:
//   - one shared read per coalesced group, one transaction per logical call
//   - an error in one call of a group is never returned to another call
type Engine struct {
	store  *store.Store
	clock  Clock
	ids    IDGenerator
	logger *slog.Logger
	opts   batch.Options

	add        *batch.Coalescer[ledger.Identity, AddInput, AddResult]
	update     *batch.Coalescer[ledger.Identity, UpdateInput, UpdateResult]
	remove     *batch.Coalescer[ledger.Identity, string, RemoveResult]
	intentions *batch.Coalescer[ledger.Identity, struct{}, []ledger.Intention]
	accept     *batch.Coalescer[ledger.Identity, string, AcceptResult]
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock, typically with a testutil.StepClock.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithIDGenerator replaces the UUIDv7 id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithBatchOptions tunes group formation of every coalesced operation.
func WithBatchOptions(o batch.Options) Option {
	return func(e *Engine) {
		e.opts = o
	}
}

// New creates an Engine over s.
func New(s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  s,
		clock:  SystemClock{},
		ids:    UUIDv7Generator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.add = batch.New(accountKey, e.resolveAdd, e.opts)
	e.update = batch.New(accountKey, e.resolveUpdate, e.opts)
	e.remove = batch.New(accountKey, e.resolveRemove, e.opts)
	e.intentions = batch.New(accountKey, e.resolveIntentions, e.opts)
	e.accept = batch.New(accountKey, e.resolveAccept, e.opts)
	return e
}

func accountKey(id ledger.Identity) string {
	return id.AccountID
}

// now reads the clock at the precision the store keeps.
func (e *Engine) now() time.Time {
	return e.clock.Now().UTC().Truncate(time.Millisecond)
}

// inTx runs one logical call's writes in its own transaction. Errors that
// are not already coded become Internal and are logged.
func (e *Engine) inTx(ctx context.Context, op string, id ledger.Identity, fn func(q *store.Queries) error) error {
	err := e.store.InTx(ctx, fn)
	if err == nil {
		return nil
	}
	return e.internal(op, id, err)
}

// internal passes coded errors through and wraps everything else.
func (e *Engine) internal(op string, id ledger.Identity, err error) error {
	if err == nil {
		return nil
	}
	if ledger.CodeOf(err) != ledger.CodeInternal {
		return err
	}
	e.logger.Error("ledger operation failed",
		"op", op,
		"account", id.AccountID,
		"error", err,
	)
	if le, ok := err.(*ledger.Error); ok {
		return le
	}
	return ledger.Internal(err, "%s failed", op)
}

func (e *Engine) logGroup(op string, id ledger.Identity, size int) {
	e.logger.Debug("resolving batch",
		"op", op,
		"account", id.AccountID,
		"size", size,
	)
}

// failGroup fails a whole group when its shared read fails.
func (e *Engine) failGroup(op string, id ledger.Identity, err error) error {
	return e.internal(op, id, err)
}
