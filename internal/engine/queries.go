package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
)

// Pool returns a pool by id.
func (e *Engine) Pool(ctx context.Context, poolID string) (*domain.Pool, error) {
	return e.loadPool(ctx, poolID)
}

// Pools returns all pools.
func (e *Engine) Pools(ctx context.Context) ([]*domain.Pool, error) {
	pools, err := e.store.ListPools(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pools: %w", err)
	}
	return pools, nil
}

// Order returns an order by hash.
func (e *Engine) Order(ctx context.Context, poolID string, hash domain.Hash) (*domain.Order, error) {
	o, err := e.store.GetOrder(ctx, poolID, hash)
	if err != nil {
		return nil, mapNotFound(err, ErrOrderNotFound, hash.String())
	}
	return o, nil
}

// Orders returns the orders of a pool with the given status, or all when status is empty.
func (e *Engine) Orders(ctx context.Context, poolID string, status domain.OrderStatus) ([]*domain.Order, error) {
	if _, err := e.loadPool(ctx, poolID); err != nil {
		return nil, err
	}
	orders, err := e.store.ListOrders(ctx, poolID, status)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// Round returns a round by number.
func (e *Engine) Round(ctx context.Context, poolID string, number uint64) (*domain.Round, error) {
	r, err := e.store.GetRound(ctx, poolID, number)
	if err != nil {
		return nil, mapNotFound(err, ErrRoundNotFound, strconv.FormatUint(number, 10))
	}
	return r, nil
}

// CurrentRound returns the latest round of a pool, in flight or not.
func (e *Engine) CurrentRound(ctx context.Context, poolID string) (*domain.Round, error) {
	pool, err := e.loadPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	if pool.RoundNumber == 0 {
		return nil, ErrRoundNotFound
	}
	return e.Round(ctx, poolID, pool.RoundNumber)
}

// Executors returns the committee of a pool ordered by index.
func (e *Engine) Executors(ctx context.Context, poolID string) ([]*domain.Executor, error) {
	if _, err := e.loadPool(ctx, poolID); err != nil {
		return nil, err
	}
	execs, err := e.store.ListExecutors(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("list executors: %w", err)
	}
	return execs, nil
}

// Events returns up to limit notifications with sequence above afterSeq.
func (e *Engine) Events(ctx context.Context, poolID string, afterSeq uint64, limit int) ([]*domain.Event, error) {
	events, err := e.store.ListEvents(ctx, poolID, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}
