package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
	"github.com/Kartikvyas1604/PhantomPool/internal/storage"
)

func testPool() *domain.Pool {
	return &domain.Pool{
		ID:             "pool1",
		TokenPair:      "SOL/USDC",
		Threshold:      3,
		TotalExecutors: 5,
		MinOrderSize:   1,
		MaxOrderSize:   1000,
		CreatedAt:      100,
	}
}

func testOrder(hash byte, submittedAt int64, status domain.OrderStatus) *domain.Order {
	return &domain.Order{
		PoolID:          "pool1",
		Hash:            domain.Hash{hash},
		Side:            domain.SideBuy,
		EncryptedAmount: []byte{hash},
		Status:          status,
		SubmittedAt:     submittedAt,
		Deposit:         10,
	}
}

func TestStore_CommitInsertAndGet(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	pool := testPool()
	err := store.Commit(ctx, &storage.Batch{Pools: []*domain.Pool{pool}})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), pool.Version, "commit advances version in place")

	got, err := store.GetPool(ctx, "pool1")
	require.NoError(t, err)
	assert.Equal(t, "SOL/USDC", got.TokenPair)
	assert.Equal(t, uint64(1), got.Version)

	// Returned copy must not alias stored state
	got.TokenPair = "mutated"
	again, err := store.GetPool(ctx, "pool1")
	require.NoError(t, err)
	assert.Equal(t, "SOL/USDC", again.TokenPair)
}

func TestStore_DuplicateInsert(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Commit(ctx, &storage.Batch{Pools: []*domain.Pool{testPool()}}))

	err := store.Commit(ctx, &storage.Batch{Pools: []*domain.Pool{testPool()}})
	assert.True(t, errors.Is(err, storage.ErrDuplicateKey), "got %v", err)
}

func TestStore_VersionConflict(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Commit(ctx, &storage.Batch{Pools: []*domain.Pool{testPool()}}))

	a, err := store.GetPool(ctx, "pool1")
	require.NoError(t, err)
	b, err := store.GetPool(ctx, "pool1")
	require.NoError(t, err)

	a.OrderCount = 1
	require.NoError(t, store.Commit(ctx, &storage.Batch{Pools: []*domain.Pool{a}}))

	b.OrderCount = 5
	err = store.Commit(ctx, &storage.Batch{Pools: []*domain.Pool{b}})
	assert.True(t, errors.Is(err, storage.ErrConflict), "got %v", err)

	got, err := store.GetPool(ctx, "pool1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.OrderCount)
}

func TestStore_BatchIsAtomic(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Commit(ctx, &storage.Batch{
		Pools:  []*domain.Pool{testPool()},
		Orders: []*domain.Order{testOrder(1, 10, domain.OrderStatusPending)},
	}))

	pool, err := store.GetPool(ctx, "pool1")
	require.NoError(t, err)
	pool.OrderCount = 2

	// second order is fine, but the duplicate first order fails the whole batch
	err = store.Commit(ctx, &storage.Batch{
		Pools:  []*domain.Pool{pool},
		Orders: []*domain.Order{testOrder(2, 11, domain.OrderStatusPending), testOrder(1, 10, domain.OrderStatusPending)},
		Nonces: []domain.NonceRecord{{PoolID: "pool1", Nonce: domain.Nonce{1}, UsedAt: 11}},
	})
	require.ErrorIs(t, err, storage.ErrDuplicateKey)

	_, err = store.GetOrder(ctx, "pool1", domain.Hash{2})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	got, err := store.GetPool(ctx, "pool1")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got.OrderCount)

	used, err := store.NonceUsedSince(ctx, "pool1", domain.Nonce{1}, 0)
	require.NoError(t, err)
	assert.False(t, used)
}

func TestStore_IntraBatchDuplicateRejected(t *testing.T) {
	store := NewStore()
	err := store.Commit(context.Background(), &storage.Batch{
		Orders: []*domain.Order{testOrder(1, 10, domain.OrderStatusPending), testOrder(1, 10, domain.OrderStatusPending)},
	})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestStore_ListOrders(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Commit(ctx, &storage.Batch{
		Orders: []*domain.Order{
			testOrder(3, 20, domain.OrderStatusPending),
			testOrder(2, 10, domain.OrderStatusPending),
			testOrder(1, 20, domain.OrderStatusPending),
			testOrder(4, 5, domain.OrderStatusCancelled),
		},
	}))

	pending, err := store.ListOrders(ctx, "pool1", domain.OrderStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, domain.Hash{2}, pending[0].Hash)
	assert.Equal(t, domain.Hash{1}, pending[1].Hash, "ties ordered by hash")
	assert.Equal(t, domain.Hash{3}, pending[2].Hash)

	all, err := store.ListOrders(ctx, "pool1", "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	other, err := store.ListOrders(ctx, "pool2", "")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestStore_NonceWindow(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	nonce := domain.Nonce{9}

	require.NoError(t, store.Commit(ctx, &storage.Batch{
		Nonces: []domain.NonceRecord{{PoolID: "pool1", Nonce: nonce, UsedAt: 1000}},
	}))

	used, err := store.NonceUsedSince(ctx, "pool1", nonce, 500)
	require.NoError(t, err)
	assert.True(t, used)

	used, err = store.NonceUsedSince(ctx, "pool1", nonce, 1001)
	require.NoError(t, err)
	assert.False(t, used)

	used, err = store.NonceUsedSince(ctx, "pool2", nonce, 0)
	require.NoError(t, err)
	assert.False(t, used, "nonces are scoped per pool")

	removed, err := store.PruneNonces(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	used, err = store.NonceUsedSince(ctx, "pool1", nonce, 0)
	require.NoError(t, err)
	assert.False(t, used)
}

func TestStore_Events(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	var events []*domain.Event
	for seq := uint64(1); seq <= 5; seq++ {
		events = append(events, &domain.Event{ID: "e", PoolID: "pool1", Sequence: seq, Kind: domain.EventOrderSubmitted})
	}
	require.NoError(t, store.Commit(ctx, &storage.Batch{Events: events[:3]}))
	require.NoError(t, store.Commit(ctx, &storage.Batch{Events: events[3:]}))

	got, err := store.ListEvents(ctx, "pool1", 2, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(3), got[0].Sequence)
	assert.Equal(t, uint64(4), got[1].Sequence)

	err = store.Commit(ctx, &storage.Batch{Events: []*domain.Event{{ID: "e", PoolID: "pool1", Sequence: 5}}})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestStore_Rounds(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	round := &domain.Round{
		PoolID:      "pool1",
		Number:      1,
		Status:      domain.RoundStatusActive,
		Threshold:   3,
		OrderHashes: []domain.Hash{{1}, {2}},
	}
	require.NoError(t, store.Commit(ctx, &storage.Batch{Rounds: []*domain.Round{round}}))

	round.Partials = append(round.Partials, domain.PartialDecryption{ExecutorIndex: 0, OrderIndex: 1, Share: []byte{1}})
	round.Status = domain.RoundStatusAwaitingQuorum
	require.NoError(t, store.Commit(ctx, &storage.Batch{Rounds: []*domain.Round{round}}))

	got, err := store.GetRound(ctx, "pool1", 1)
	require.NoError(t, err)
	assert.Equal(t, domain.RoundStatusAwaitingQuorum, got.Status)
	require.Len(t, got.Partials, 1)
	assert.Equal(t, uint64(2), got.Version)

	_, err = store.GetRound(ctx, "pool1", 2)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_UpdateMissingRecord(t *testing.T) {
	store := NewStore()
	e := &domain.Executor{PoolID: "pool1", Index: 1, Version: 3}
	err := store.Commit(context.Background(), &storage.Batch{Executors: []*domain.Executor{e}})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_ListExecutorsOrdered(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Commit(ctx, &storage.Batch{Executors: []*domain.Executor{
		{PoolID: "pool1", Index: 2},
		{PoolID: "pool1", Index: 0},
		{PoolID: "pool2", Index: 1},
	}}))

	got, err := store.ListExecutors(ctx, "pool1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint8(0), got[0].Index)
	assert.Equal(t, uint8(2), got[1].Index)
}
