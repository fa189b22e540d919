package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
	"github.com/Kartikvyas1604/PhantomPool/internal/storage"
)

// txn accumulates the effects of one operation.
type txn struct {
	engine *Engine
	now    int64

	pool   *domain.Pool // written with the batch when set
	batch  storage.Batch
	done   []domain.Transfer
	trades []*domain.ExecutedTrade
}

// transfer executes t immediately and remembers it for compensation.
func (tx *txn) transfer(ctx context.Context, t domain.Transfer) error {
	if t.Amount == 0 {
		return nil
	}
	if err := tx.engine.transfers.Transfer(ctx, t); err != nil {
		return fmt.Errorf("%w: %s -> %s %d %s: %w", ErrTransferFailed, t.From, t.To, t.Amount, t.Asset, err)
	}
	tx.done = append(tx.done, t)
	return nil
}

// compensate reverses executed transfers, newest first.
func (tx *txn) compensate(ctx context.Context) {
	for i := len(tx.done) - 1; i >= 0; i-- {
		t := tx.done[i]
		reverse := domain.Transfer{From: t.To, To: t.From, Asset: t.Asset, Amount: t.Amount}
		if err := tx.engine.transfers.Transfer(ctx, reverse); err != nil {
			tx.engine.logger.Error("compensating transfer failed",
				zap.String("from", reverse.From),
				zap.String("to", reverse.To),
				zap.String("asset", reverse.Asset),
				zap.Uint64("amount", reverse.Amount),
				zap.Error(err),
			)
		}
	}
	tx.done = nil
}

// emit appends a notification. The pool must be set.
func (tx *txn) emit(kind domain.EventKind, build func(ev *domain.Event)) *domain.Event {
	tx.pool.EventSeq++
	ev := &domain.Event{
		ID:       uuid.NewString(),
		PoolID:   tx.pool.ID,
		Sequence: tx.pool.EventSeq,
		Kind:     kind,
		At:       tx.now,
	}
	if build != nil {
		build(ev)
	}
	tx.batch.Events = append(tx.batch.Events, ev)
	return ev
}

func (tx *txn) commit(ctx context.Context) error {
	if tx.pool != nil {
		tx.batch.Pools = append(tx.batch.Pools, tx.pool)
	}
	if tx.batch.IsEmpty() {
		return nil
	}

	err := tx.engine.store.Commit(ctx, &tx.batch)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrConflict), errors.Is(err, storage.ErrDuplicateKey):
		return fmt.Errorf("%w: %v", ErrConcurrentUpdate, err)
	default:
		return fmt.Errorf("commit: %w", err)
	}
}

func hashPtr(h domain.Hash) *domain.Hash {
	return &h
}

func indexPtr(i uint8) *uint8 {
	return &i
}

func attrs(kv ...string) map[string]string {
	m := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i]] = kv[i+1]
	}
	return m
}

func u64s(v uint64) string {
	return strconv.FormatUint(v, 10)
}
