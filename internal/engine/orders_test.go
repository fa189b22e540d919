package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
	"github.com/Kartikvyas1604/PhantomPool/internal/idhash"
	"github.com/Kartikvyas1604/PhantomPool/internal/verify/stub"
)

func TestSubmitOrder(t *testing.T) {
	f := newFixture(t)
	f.fund(trader(1), 10_000)

	order := f.submit(trader(1), domain.SideBuy, 10, 110)

	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, uint64(1100), order.Deposit)
	assert.Equal(t, startTime, order.SubmittedAt)
	assert.Equal(t, uint64(8900), f.balance(trader(1), quoteAsset))
	assert.Equal(t, uint64(1100), f.ledger.Balance(domain.EscrowAccount(f.pool.ID, order.Hash), quoteAsset))
	assert.Equal(t, uint64(1), f.reloadPool().OrderCount)

	sell := f.submit(trader(1), domain.SideSell, 7, 100)
	assert.Equal(t, uint64(7), f.ledger.Balance(domain.EscrowAccount(f.pool.ID, sell.Hash), baseAsset), "sellers escrow base")

	assert.Equal(t, []domain.EventKind{
		domain.EventPoolInitialized, domain.EventOrderSubmitted, domain.EventOrderSubmitted,
	}, f.events.kinds())
}

func TestSubmitOrder_DuplicateHashRejected(t *testing.T) {
	f := newFixture(t)
	f.fund(trader(1), 10_000)

	req := f.orderRequest(trader(1), domain.SideBuy, 10, 100)
	first, err := f.engine.SubmitOrder(f.ctx, f.pool.ID, trader(1), req)
	require.NoError(t, err)
	balance := f.balance(trader(1), quoteAsset)

	_, err = f.engine.SubmitOrder(f.ctx, f.pool.ID, trader(1), req)
	assert.ErrorIs(t, err, ErrDuplicateOrder)
	assert.Equal(t, KindReplay, KindOf(err))

	stored, err := f.engine.Order(f.ctx, f.pool.ID, req.Hash)
	require.NoError(t, err)
	assert.Equal(t, first, stored, "first order unchanged")
	assert.Equal(t, balance, f.balance(trader(1), quoteAsset), "no second escrow")
	assert.Equal(t, uint64(1), f.reloadPool().OrderCount)
}

func TestSubmitOrder_RepeatedHashWithOtherContentIsDuplicate(t *testing.T) {
	f := newFixture(t)
	f.fund(trader(1), 10_000)

	req := f.orderRequest(trader(1), domain.SideBuy, 10, 100)
	_, err := f.engine.SubmitOrder(f.ctx, f.pool.ID, trader(1), req)
	require.NoError(t, err)

	altered := req
	altered.Deposit++
	_, err = f.engine.SubmitOrder(f.ctx, f.pool.ID, trader(1), altered)
	assert.ErrorIs(t, err, ErrDuplicateOrder, "an existing hash is rejected before its digest is checked")
	assert.Equal(t, KindReplay, KindOf(err))
	assert.Equal(t, uint64(1), f.reloadPool().OrderCount)
}

func TestSubmitOrder_NonceReuseRejected(t *testing.T) {
	f := newFixture(t)
	f.fund(trader(1), 10_000)
	f.fund(trader(2), 10_000)

	first := f.orderRequest(trader(1), domain.SideBuy, 10, 100)
	_, err := f.engine.SubmitOrder(f.ctx, f.pool.ID, trader(1), first)
	require.NoError(t, err)

	tests := []struct {
		name   string
		owner  domain.PublicKey
		side   domain.Side
		amount uint64
	}{
		{"same trader different order", trader(1), domain.SideSell, 5},
		{"other trader", trader(2), domain.SideBuy, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.orderRequest(tt.owner, tt.side, tt.amount, 100)
			req.Nonce = first.Nonce
			req.Hash = idhash.ComputeOrderHash(req.Content(f.pool.ID, tt.owner))

			_, err := f.engine.SubmitOrder(f.ctx, f.pool.ID, tt.owner, req)
			assert.ErrorIs(t, err, ErrNonceReused)
		})
	}

	// The replay window is bounded by time, not by a capacity.
	f.clock.Advance(f.engine.Params().NonceRetention + 1)
	req := f.orderRequest(trader(2), domain.SideBuy, 4, 100)
	req.Nonce = first.Nonce
	req.Hash = idhash.ComputeOrderHash(req.Content(f.pool.ID, trader(2)))
	_, err = f.engine.SubmitOrder(f.ctx, f.pool.ID, trader(2), req)
	assert.NoError(t, err)
}

func TestSubmitOrder_Preconditions(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture, req *SubmitOrderRequest)
		want  error
		kind  Kind
	}{
		{
			name:  "hash does not match content",
			setup: func(_ *fixture, req *SubmitOrderRequest) { req.Hash[0] ^= 0xff },
			want:  ErrOrderHashMismatch,
			kind:  KindValidation,
		},
		{
			name: "invalid side",
			setup: func(f *fixture, req *SubmitOrderRequest) {
				req.Side = "HOLD"
			},
			want: ErrInvalidOrder,
			kind: KindValidation,
		},
		{
			name: "deposit above max",
			setup: func(f *fixture, req *SubmitOrderRequest) {
				req.Deposit = f.pool.MaxOrderSize + 1
				req.Hash = idhash.ComputeOrderHash(req.Content(f.pool.ID, trader(1)))
			},
			want: ErrOrderSizeOutOfBounds,
			kind: KindValidation,
		},
		{
			name: "deposit below min",
			setup: func(f *fixture, req *SubmitOrderRequest) {
				req.Deposit = 0
				req.Hash = idhash.ComputeOrderHash(req.Content(f.pool.ID, trader(1)))
			},
			want: ErrOrderSizeOutOfBounds,
			kind: KindValidation,
		},
		{
			name:  "solvency proof fails",
			setup: func(f *fixture, _ *SubmitOrderRequest) { f.verifier.Reject(stub.Solvency) },
			want:  ErrInvalidSolvencyProof,
			kind:  KindProof,
		},
		{
			name:  "signature fails",
			setup: func(f *fixture, _ *SubmitOrderRequest) { f.verifier.Reject(stub.Signature) },
			want:  ErrInvalidSignature,
			kind:  KindProof,
		},
		{
			name: "escrow transfer fails",
			setup: func(f *fixture, req *SubmitOrderRequest) {
				f.transfers.failOn = func(domain.Transfer) bool { return true }
			},
			want: ErrTransferFailed,
			kind: KindTransfer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.fund(trader(1), 10_000)

			req := f.orderRequest(trader(1), domain.SideBuy, 10, 100)
			tt.setup(f, &req)

			_, err := f.engine.SubmitOrder(f.ctx, f.pool.ID, trader(1), req)
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.kind, KindOf(err))

			assert.Equal(t, uint64(10_000), f.balance(trader(1), quoteAsset), "no escrow taken")
			assert.Zero(t, f.reloadPool().OrderCount)
			pending, err := f.engine.Orders(f.ctx, f.pool.ID, "")
			require.NoError(t, err)
			assert.Empty(t, pending)

			used, err := f.store.NonceUsedSince(f.ctx, f.pool.ID, req.Nonce, 0)
			require.NoError(t, err)
			assert.False(t, used, "nonce not consumed by a rejected order")
		})
	}
}

func TestSubmitOrder_InsufficientFunds(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.SubmitOrder(f.ctx, f.pool.ID, trader(9), f.orderRequest(trader(9), domain.SideBuy, 1, 10))
	assert.ErrorIs(t, err, ErrTransferFailed)
	assert.Equal(t, []domain.EventKind{domain.EventPoolInitialized}, f.events.kinds())
}

func TestCancelOrder(t *testing.T) {
	fee := DefaultParams().CancellationFee
	deposit := 5 * fee

	tests := []struct {
		name       string
		elapsed    int64
		wantRefund uint64
		wantFee    uint64
	}{
		{"inside grace period", 299, deposit - fee, fee},
		{"at grace boundary", 300, deposit, 0},
		{"after grace period", 3600, deposit, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.fund(trader(1), deposit)
			order := f.submit(trader(1), domain.SideSell, deposit, 1)

			f.clock.Advance(tt.elapsed)
			res, err := f.engine.CancelOrder(f.ctx, f.pool.ID, trader(1), order.Hash, domain.Signature{})
			require.NoError(t, err)

			assert.Equal(t, tt.wantRefund, res.Refund)
			assert.Equal(t, tt.wantFee, res.Fee)
			assert.Equal(t, domain.OrderStatusCancelled, res.Order.Status)
			assert.Equal(t, startTime+tt.elapsed, res.Order.CancelledAt)
			assert.Zero(t, res.Order.EscrowRemaining())

			assert.Equal(t, tt.wantRefund, f.balance(trader(1), baseAsset))
			assert.Equal(t, tt.wantFee, f.ledger.Balance(domain.TreasuryAccount(f.pool.ID), baseAsset))
			assert.Zero(t, f.ledger.Balance(domain.EscrowAccount(f.pool.ID, order.Hash), baseAsset))
		})
	}
}

func TestCancelOrder_FeeCappedAtDeposit(t *testing.T) {
	f := newFixture(t)
	f.fund(trader(1), 100)
	order := f.submit(trader(1), domain.SideSell, 100, 1)

	res, err := f.engine.CancelOrder(f.ctx, f.pool.ID, trader(1), order.Hash, domain.Signature{})
	require.NoError(t, err)
	assert.Equal(t, uint64(100), res.Fee)
	assert.Zero(t, res.Refund)
}

func TestCancelOrder_Rejections(t *testing.T) {
	f := newFixture(t)
	f.fund(trader(1), 10_000)
	order := f.submit(trader(1), domain.SideBuy, 10, 100)

	_, err := f.engine.CancelOrder(f.ctx, f.pool.ID, trader(2), order.Hash, domain.Signature{})
	assert.ErrorIs(t, err, ErrNotOrderOwner)

	_, err = f.engine.CancelOrder(f.ctx, f.pool.ID, trader(1), domain.Hash{0xff}, domain.Signature{})
	assert.ErrorIs(t, err, ErrOrderNotFound)

	f.verifier.Reject(stub.Signature)
	_, err = f.engine.CancelOrder(f.ctx, f.pool.ID, trader(1), order.Hash, domain.Signature{})
	assert.ErrorIs(t, err, ErrInvalidSignature)
	f.verifier.Accept(stub.Signature)

	_, err = f.engine.CancelOrder(f.ctx, f.pool.ID, trader(1), order.Hash, domain.Signature{})
	require.NoError(t, err)

	_, err = f.engine.CancelOrder(f.ctx, f.pool.ID, trader(1), order.Hash, domain.Signature{})
	assert.ErrorIs(t, err, ErrOrderNotPending)
	assert.Equal(t, KindState, KindOf(err))
}

func TestCancelOrder_RejectedWhileRoundInFlight(t *testing.T) {
	f := newFixture(t)
	f.fund(trader(1), 10_000)
	f.fund(trader(2), 10_000)
	buy := f.submit(trader(1), domain.SideBuy, 10, 100)
	f.submit(trader(2), domain.SideSell, 10, 100)
	f.registerExecutors(3)
	f.openRound()

	_, err := f.engine.CancelOrder(f.ctx, f.pool.ID, trader(1), buy.Hash, domain.Signature{})
	assert.ErrorIs(t, err, ErrMatchingInProgress)
	assert.Equal(t, KindTiming, KindOf(err))

	stored, err := f.engine.Order(f.ctx, f.pool.ID, buy.Hash)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, stored.Status)
}

func TestPruneNonces(t *testing.T) {
	f := newFixture(t)
	f.fund(trader(1), 10_000)
	order := f.submit(trader(1), domain.SideBuy, 1, 10)

	removed, err := f.engine.PruneNonces(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)

	f.clock.Advance(f.engine.Params().NonceRetention + 1)
	removed, err = f.engine.PruneNonces(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	used, err := f.store.NonceUsedSince(f.ctx, f.pool.ID, order.Nonce, 0)
	require.NoError(t, err)
	assert.False(t, used)
}
