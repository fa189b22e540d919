package storage

import (
	"context"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
)

// PoolStore provides read access to pools.
type PoolStore interface {
	// GetPool retrieves a pool by ID. Returns ErrNotFound if not exists.
	GetPool(ctx context.Context, poolID string) (*domain.Pool, error)

	// ListPools retrieves all pools ordered by created_at ASC, id ASC.
	ListPools(ctx context.Context) ([]*domain.Pool, error)
}

// OrderStore provides read access to orders and the nonce replay window.
type OrderStore interface {
	// GetOrder retrieves an order by pool and hash. Returns ErrNotFound if not exists.
	GetOrder(ctx context.Context, poolID string, hash domain.Hash) (*domain.Order, error)

	// ListOrders retrieves orders of a pool, ordered by submitted_at ASC, hash ASC.
	// An empty status returns all orders.
	ListOrders(ctx context.Context, poolID string, status domain.OrderStatus) ([]*domain.Order, error)

	// NonceUsedSince reports whether nonce was recorded for the pool at or after since.
	NonceUsedSince(ctx context.Context, poolID string, nonce domain.Nonce, since int64) (bool, error)

	// PruneNonces deletes nonce records used before cutoff. Returns the number removed.
	PruneNonces(ctx context.Context, cutoff int64) (int64, error)
}

// ExecutorStore provides read access to committee members.
type ExecutorStore interface {
	// GetExecutor retrieves an executor by pool and index. Returns ErrNotFound if not exists.
	GetExecutor(ctx context.Context, poolID string, index uint8) (*domain.Executor, error)

	// ListExecutors retrieves all executors of a pool ordered by index ASC.
	ListExecutors(ctx context.Context, poolID string) ([]*domain.Executor, error)
}

// RoundStore provides read access to matching rounds.
type RoundStore interface {
	// GetRound retrieves a round by pool and number. Returns ErrNotFound if not exists.
	GetRound(ctx context.Context, poolID string, number uint64) (*domain.Round, error)
}

// EventStore provides read access to the notification log.
type EventStore interface {
	// ListEvents retrieves up to limit events of a pool with sequence > afterSeq,
	// ordered by sequence ASC. A non-positive limit returns all.
	ListEvents(ctx context.Context, poolID string, afterSeq uint64, limit int) ([]*domain.Event, error)
}

// Store is the engine's state store: typed reads plus an atomic batch commit.
type Store interface {
	PoolStore
	OrderStore
	ExecutorStore
	RoundStore
	EventStore

	// Commit applies every write in the batch atomically or none of them.
	// Returns ErrDuplicateKey for an insert of an existing key and ErrConflict
	// for an update whose Version no longer matches the stored record.
	// On success the Version of every written record is advanced in place.
	Commit(ctx context.Context, b *Batch) error
}

// AnalyticsStore is the append-only sink for executed trades and events.
type AnalyticsStore interface {
	// InsertTrades adds executed trades. Fails entire batch on duplicate (pool, round, index).
	InsertTrades(ctx context.Context, trades []*domain.ExecutedTrade) error

	// InsertEvents adds events. Fails entire batch on duplicate (pool, sequence).
	InsertEvents(ctx context.Context, events []*domain.Event) error

	// GetTradesByRound retrieves the trades of a round ordered by index ASC.
	GetTradesByRound(ctx context.Context, poolID string, round uint64) ([]*domain.ExecutedTrade, error)

	// GetVolumeByRound returns executed base volume per round for a pool within [fromRound, toRound].
	GetVolumeByRound(ctx context.Context, poolID string, fromRound, toRound uint64) ([]RoundVolume, error)
}

// RoundVolume is an aggregate row of executed volume.
type RoundVolume struct {
	Round       uint64
	Trades      uint64
	Volume      uint64
	Notional    uint64
	Fees        uint64
	LastTradeAt int64
}
