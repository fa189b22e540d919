// Package engine is the confidential batch-auction core.
//
// Every operation takes the pool lock, validates fully against a snapshot of
// stored state, performs external transfers, and commits one storage.Batch.
// A failure at any step compensates the transfers already made and leaves
// stored state unchanged.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
	"github.com/Kartikvyas1604/PhantomPool/internal/storage"
	"github.com/Kartikvyas1604/PhantomPool/internal/verify"
)

// Transferer moves tokens between accounts.
type Transferer interface {
	Transfer(ctx context.Context, t domain.Transfer) error
}

// ShareCombiner recombines one order's plaintext from accepted shares. Any
// error, including a value outside the plaintext encoding, fails the round.
type ShareCombiner interface {
	Combine(threshold uint8, shares []domain.PartialDecryption) (domain.Plaintext, error)
}

// Notifier receives the notification records of each committed operation.
type Notifier interface {
	Notify(ctx context.Context, events []*domain.Event)
}

// Recorder observes operation outcomes. outcome is "ok" or the error kind.
type Recorder interface {
	RecordOperation(op, outcome string, duration time.Duration)
}

// Engine runs the protocol for all pools.
type Engine struct {
	store     storage.Store
	analytics storage.AnalyticsStore
	transfers Transferer
	verifiers verify.Suite
	combiner  ShareCombiner
	notifiers []Notifier
	notifyMu  sync.RWMutex
	recorder  Recorder
	params    Params
	logger    *zap.Logger
	now       func() time.Time

	mu    sync.Mutex
	locks map[string]*poolLock
}

// poolLock serializes operations on one pool. refs counts holders and
// waiters; the entry is dropped when it reaches zero.
type poolLock struct {
	sync.Mutex
	refs int
}

// Options for creating an Engine.
type Options struct {
	// Required
	Store     storage.Store
	Transfers Transferer
	Verifiers verify.Suite
	Combiner  ShareCombiner

	// Optional
	Analytics storage.AnalyticsStore // executed trades and events sink
	Notifiers []Notifier
	Recorder  Recorder
	Params    *Params // nil uses DefaultParams
	Logger    *zap.Logger
	Now       func() time.Time
}

// New creates a new Engine.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("engine: store is required")
	}
	if opts.Transfers == nil {
		return nil, errors.New("engine: transferer is required")
	}
	if opts.Combiner == nil {
		return nil, errors.New("engine: share combiner is required")
	}
	if err := opts.Verifiers.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	params := DefaultParams()
	if opts.Params != nil {
		params = *opts.Params
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		store:     opts.Store,
		analytics: opts.Analytics,
		transfers: opts.Transfers,
		verifiers: opts.Verifiers,
		combiner:  opts.Combiner,
		notifiers: opts.Notifiers,
		recorder:  opts.Recorder,
		params:    params,
		logger:    logger.Named("engine"),
		now:       now,
		locks:     make(map[string]*poolLock),
	}, nil
}

// Params returns the protocol parameters in effect.
func (e *Engine) Params() Params {
	return e.params
}

// lockPool acquires the pool's lock and returns its release func.
func (e *Engine) lockPool(poolID string) func() {
	e.mu.Lock()
	l, ok := e.locks[poolID]
	if !ok {
		l = &poolLock{}
		e.locks[poolID] = l
	}
	l.refs++
	e.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()

		e.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(e.locks, poolID)
		}
		e.mu.Unlock()
	}
}

// execute runs fn under the pool lock and commits its batch.
func (e *Engine) execute(ctx context.Context, op, poolID string, fn func(tx *txn) error) error {
	start := time.Now()

	unlock := e.lockPool(poolID)
	defer unlock()

	tx := &txn{engine: e, now: e.now().Unix()}
	err := fn(tx)
	if err == nil {
		err = tx.commit(ctx)
	}
	if err != nil {
		tx.compensate(ctx)
		e.logger.Debug("operation rejected",
			zap.String("op", op),
			zap.String("pool", poolID),
			zap.String("kind", KindOf(err).String()),
			zap.Error(err),
		)
		e.record(op, KindOf(err).String(), start)
		return err
	}

	e.record(op, "ok", start)
	e.publish(ctx, tx)
	return nil
}

func (e *Engine) record(op, outcome string, start time.Time) {
	if e.recorder != nil {
		e.recorder.RecordOperation(op, outcome, time.Since(start))
	}
}

// publish hands committed records to observers. Failures here never affect
// the committed state.
func (e *Engine) publish(ctx context.Context, tx *txn) {
	if len(tx.batch.Events) == 0 {
		return
	}
	if e.analytics != nil {
		if len(tx.trades) > 0 {
			if err := e.analytics.InsertTrades(ctx, tx.trades); err != nil {
				e.logger.Warn("analytics trade insert failed", zap.Error(err))
			}
		}
		if err := e.analytics.InsertEvents(ctx, tx.batch.Events); err != nil {
			e.logger.Warn("analytics event insert failed", zap.Error(err))
		}
	}
	e.notifyMu.RLock()
	defer e.notifyMu.RUnlock()
	for _, n := range e.notifiers {
		n.Notify(ctx, tx.batch.Events)
	}
}

// AddNotifier registers n for every later commit. It lets observers that read
// from the engine, like the websocket feed, subscribe after construction.
func (e *Engine) AddNotifier(n Notifier) {
	e.notifyMu.Lock()
	defer e.notifyMu.Unlock()
	e.notifiers = append(e.notifiers, n)
}

// loadPool reads a pool, mapping storage errors.
func (e *Engine) loadPool(ctx context.Context, poolID string) (*domain.Pool, error) {
	p, err := e.store.GetPool(ctx, poolID)
	if err != nil {
		return nil, mapNotFound(err, ErrPoolNotFound, poolID)
	}
	return p, nil
}

func mapNotFound(err error, sentinel *Error, what string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", sentinel, what)
	}
	return fmt.Errorf("load %s: %w", what, err)
}
