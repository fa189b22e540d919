package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
	"github.com/Kartikvyas1604/PhantomPool/internal/idhash"
	"github.com/Kartikvyas1604/PhantomPool/internal/storage"
)

// SubmitOrderRequest carries a trader's encrypted order.
type SubmitOrderRequest struct {
	Hash            domain.Hash
	EncryptedAmount []byte
	EncryptedPrice  []byte
	Side            domain.Side
	SolvencyProof   []byte
	Signature       domain.Signature // over Hash
	Nonce           domain.Nonce
	Deposit         uint64
}

// Content returns the hashed part of the request.
func (r SubmitOrderRequest) Content(poolID string, trader domain.PublicKey) idhash.OrderContent {
	return idhash.OrderContent{
		PoolID:          poolID,
		Trader:          trader,
		Side:            r.Side,
		EncryptedAmount: r.EncryptedAmount,
		EncryptedPrice:  r.EncryptedPrice,
		Nonce:           r.Nonce,
		Deposit:         r.Deposit,
	}
}

// SubmitOrder accepts an encrypted order and escrows its deposit.
// Checks run in order and the first failure is returned.
func (e *Engine) SubmitOrder(ctx context.Context, poolID string, trader domain.PublicKey, req SubmitOrderRequest) (*domain.Order, error) {
	if trader.IsZero() {
		return nil, ErrInvalidIdentity
	}

	var order *domain.Order
	err := e.execute(ctx, "submit_order", poolID, func(tx *txn) error {
		pool, err := e.loadPool(ctx, poolID)
		if err != nil {
			return err
		}
		if pool.IsPaused {
			return ErrPoolPaused
		}
		if !req.Side.IsValid() || len(req.EncryptedAmount) == 0 || len(req.EncryptedPrice) == 0 {
			return ErrInvalidOrder
		}
		_, err = e.store.GetOrder(ctx, poolID, req.Hash)
		switch {
		case err == nil:
			return fmt.Errorf("%w: %s", ErrDuplicateOrder, req.Hash)
		case !errors.Is(err, storage.ErrNotFound):
			return fmt.Errorf("load order: %w", err)
		}
		if idhash.ComputeOrderHash(req.Content(poolID, trader)) != req.Hash {
			return ErrOrderHashMismatch
		}

		used, err := e.store.NonceUsedSince(ctx, poolID, req.Nonce, tx.now-e.params.NonceRetention)
		if err != nil {
			return fmt.Errorf("check nonce: %w", err)
		}
		if used {
			return fmt.Errorf("%w: %s", ErrNonceReused, req.Nonce)
		}

		if req.Deposit < pool.MinOrderSize || req.Deposit > pool.MaxOrderSize {
			return fmt.Errorf("%w: %d not in [%d, %d]", ErrOrderSizeOutOfBounds, req.Deposit, pool.MinOrderSize, pool.MaxOrderSize)
		}
		if !e.verifiers.Solvency.VerifySolvency(req.EncryptedAmount, req.SolvencyProof, pool.ElGamalPublicKey) {
			return ErrInvalidSolvencyProof
		}
		if !e.verifiers.Signature.VerifySignature(trader, req.Hash[:], req.Signature) {
			return ErrInvalidSignature
		}

		if err := tx.transfer(ctx, domain.Transfer{
			From:   domain.WalletAccount(trader),
			To:     domain.EscrowAccount(poolID, req.Hash),
			Asset:  domain.DepositAsset(pool.TokenPair, req.Side),
			Amount: req.Deposit,
		}); err != nil {
			return err
		}

		order = &domain.Order{
			PoolID:          poolID,
			Hash:            req.Hash,
			Trader:          trader,
			EncryptedAmount: append([]byte(nil), req.EncryptedAmount...),
			EncryptedPrice:  append([]byte(nil), req.EncryptedPrice...),
			Side:            req.Side,
			SolvencyProof:   append([]byte(nil), req.SolvencyProof...),
			Signature:       req.Signature,
			Nonce:           req.Nonce,
			Status:          domain.OrderStatusPending,
			SubmittedAt:     tx.now,
			Deposit:         req.Deposit,
			SchemaVersion:   domain.SchemaVersion,
		}
		pool.OrderCount++

		tx.pool = pool
		tx.batch.Orders = append(tx.batch.Orders, order)
		tx.batch.Nonces = append(tx.batch.Nonces, domain.NonceRecord{PoolID: poolID, Nonce: req.Nonce, UsedAt: tx.now})
		tx.emit(domain.EventOrderSubmitted, func(ev *domain.Event) {
			ev.OrderHash = hashPtr(req.Hash)
			ev.Attributes = attrs(
				"trader", trader.String(),
				"side", req.Side.String(),
				"deposit", u64s(req.Deposit),
			)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("order submitted",
		zap.String("pool", poolID),
		zap.Stringer("order", order.Hash),
		zap.Stringer("side", order.Side),
	)
	return order.Clone(), nil
}

// CancelResult is the escrow split of a cancellation.
type CancelResult struct {
	Order  *domain.Order
	Refund uint64
	Fee    uint64
}

// CancelOrder cancels a pending order and refunds its escrow. Inside the
// grace period after submission the cancellation fee goes to the treasury.
func (e *Engine) CancelOrder(ctx context.Context, poolID string, caller domain.PublicKey, hash domain.Hash, sig domain.Signature) (*CancelResult, error) {
	var res CancelResult
	err := e.execute(ctx, "cancel_order", poolID, func(tx *txn) error {
		pool, err := e.loadPool(ctx, poolID)
		if err != nil {
			return err
		}
		order, err := e.store.GetOrder(ctx, poolID, hash)
		if err != nil {
			return mapNotFound(err, ErrOrderNotFound, hash.String())
		}
		if order.Trader != caller {
			return ErrNotOrderOwner
		}
		if !e.verifiers.Signature.VerifySignature(order.Trader, idhash.CancellationMessage(hash), sig) {
			return ErrInvalidSignature
		}
		if order.Status != domain.OrderStatusPending {
			return fmt.Errorf("%w: %s", ErrOrderNotPending, order.Status)
		}
		if pool.IsMatching {
			return ErrMatchingInProgress
		}

		remaining := order.EscrowRemaining()
		if tx.now-order.SubmittedAt < e.params.CancellationGracePeriod {
			res.Fee = min(e.params.CancellationFee, remaining)
		}
		res.Refund = remaining - res.Fee

		escrow := domain.EscrowAccount(poolID, hash)
		asset := domain.DepositAsset(pool.TokenPair, order.Side)
		if err := tx.transfer(ctx, domain.Transfer{From: escrow, To: domain.TreasuryAccount(poolID), Asset: asset, Amount: res.Fee}); err != nil {
			return err
		}
		if err := tx.transfer(ctx, domain.Transfer{From: escrow, To: domain.WalletAccount(order.Trader), Asset: asset, Amount: res.Refund}); err != nil {
			return err
		}

		order.Status = domain.OrderStatusCancelled
		order.CancelledAt = tx.now
		order.EscrowUsed = order.Deposit

		tx.pool = pool
		tx.batch.Orders = append(tx.batch.Orders, order)
		tx.emit(domain.EventOrderCancelled, func(ev *domain.Event) {
			ev.OrderHash = hashPtr(hash)
			ev.Attributes = attrs("refund", u64s(res.Refund), "fee", u64s(res.Fee))
		})
		res.Order = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("order cancelled",
		zap.String("pool", poolID),
		zap.Stringer("order", hash),
		zap.Uint64("refund", res.Refund),
		zap.Uint64("fee", res.Fee),
	)
	res.Order = res.Order.Clone()
	return &res, nil
}

// PruneNonces drops nonce records older than the replay window.
func (e *Engine) PruneNonces(ctx context.Context) (int64, error) {
	cutoff := e.now().Unix() - e.params.NonceRetention
	removed, err := e.store.PruneNonces(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune nonces: %w", err)
	}
	if removed > 0 {
		e.logger.Info("nonces pruned", zap.Int64("removed", removed), zap.Int64("cutoff", cutoff))
	}
	return removed, nil
}
