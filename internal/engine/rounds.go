package engine

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
	"github.com/Kartikvyas1604/PhantomPool/internal/idhash"
)

// OpenRound starts the next matching round over the oldest pending orders.
// The VRF output over (pool id, round number) seeds the matcher's tie-break.
func (e *Engine) OpenRound(ctx context.Context, poolID string, caller domain.PublicKey, proof [domain.VRFProofSize]byte, output [domain.VRFOutputSize]byte) (*domain.Round, error) {
	var round *domain.Round
	err := e.execute(ctx, "open_round", poolID, func(tx *txn) error {
		pool, err := e.loadPool(ctx, poolID)
		if err != nil {
			return err
		}
		if pool.IsPaused {
			return ErrPoolPaused
		}
		if pool.IsMatching {
			return ErrMatchingInProgress
		}
		if tx.now-pool.LastMatchTime < e.params.MinRoundInterval {
			return fmt.Errorf("%w: next round at %d", ErrRoundTooEarly, pool.LastMatchTime+e.params.MinRoundInterval)
		}

		number := pool.RoundNumber + 1
		if !e.verifiers.VRF.VerifyVRF(pool.VRFPublicKey, idhash.VRFInput(poolID, number), proof, output) {
			return ErrInvalidVRFProof
		}

		pending, err := e.store.ListOrders(ctx, poolID, domain.OrderStatusPending)
		if err != nil {
			return fmt.Errorf("list pending orders: %w", err)
		}
		if len(pending) < 2 {
			return fmt.Errorf("%w: %d pending", ErrNotEnoughOrders, len(pending))
		}

		live, err := e.liveExecutors(ctx, poolID, tx.now)
		if err != nil {
			return err
		}
		if len(live) < int(pool.Threshold) {
			return fmt.Errorf("%w: %d live, threshold %d", ErrNotEnoughExecutors, len(live), pool.Threshold)
		}

		if len(pending) > e.params.MaxRoundOrders {
			pending = pending[:e.params.MaxRoundOrders]
		}
		hashes := make([]domain.Hash, len(pending))
		for i, o := range pending {
			hashes[i] = o.Hash
		}

		round = &domain.Round{
			PoolID:        poolID,
			Number:        number,
			VRFSeed:       output,
			VRFProof:      proof,
			Proposer:      caller,
			Status:        domain.RoundStatusActive,
			StartedAt:     tx.now,
			Threshold:     pool.Threshold,
			OrderHashes:   hashes,
			SchemaVersion: domain.SchemaVersion,
		}
		pool.RoundNumber = number
		pool.IsMatching = true
		pool.LastMatchTime = tx.now

		tx.pool = pool
		tx.batch.Rounds = append(tx.batch.Rounds, round)
		tx.emit(domain.EventRoundStarted, func(ev *domain.Event) {
			ev.RoundNumber = number
			ev.Attributes = attrs(
				"vrf_seed", hex.EncodeToString(output[:]),
				"orders", strconv.Itoa(len(hashes)),
			)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("round started",
		zap.String("pool", poolID),
		zap.Uint64("round", round.Number),
		zap.Int("orders", len(round.OrderHashes)),
	)
	return round.Clone(), nil
}

// AbortStalledRound fails the in-flight round once it has exceeded the stall
// timeout. Pool authority only. Snapshot orders stay pending.
func (e *Engine) AbortStalledRound(ctx context.Context, poolID string, caller domain.PublicKey) (*domain.Round, error) {
	var round *domain.Round
	err := e.execute(ctx, "abort_round", poolID, func(tx *txn) error {
		pool, err := e.loadPool(ctx, poolID)
		if err != nil {
			return err
		}
		if pool.Authority != caller {
			return ErrNotPoolAuthority
		}
		round, err = e.inFlightRound(ctx, pool)
		if err != nil {
			return err
		}
		if tx.now-round.StartedAt < e.params.StallTimeout {
			return fmt.Errorf("%w: started at %d", ErrRoundNotStalled, round.StartedAt)
		}

		tx.pool = pool
		tx.failRound(round, "stalled")
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Warn("round aborted", zap.String("pool", poolID), zap.Uint64("round", round.Number))
	return round.Clone(), nil
}

// inFlightRound loads the pool's current round and checks it holds the matching slot.
func (e *Engine) inFlightRound(ctx context.Context, pool *domain.Pool) (*domain.Round, error) {
	if !pool.IsMatching || pool.RoundNumber == 0 {
		return nil, ErrNoRoundInFlight
	}
	round, err := e.store.GetRound(ctx, pool.ID, pool.RoundNumber)
	if err != nil {
		return nil, mapNotFound(err, ErrRoundNotFound, strconv.FormatUint(pool.RoundNumber, 10))
	}
	if !round.Status.InFlight() {
		return nil, ErrNoRoundInFlight
	}
	return round, nil
}

func (e *Engine) liveExecutors(ctx context.Context, poolID string, now int64) ([]*domain.Executor, error) {
	execs, err := e.store.ListExecutors(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("list executors: %w", err)
	}
	var live []*domain.Executor
	for _, ex := range execs {
		if ex.IsLive(now, e.params.HeartbeatStaleness) && ex.Stake >= e.params.MinimumExecutorStake {
			live = append(live, ex)
		}
	}
	return live, nil
}

// failRound moves round to FAILED and releases the pool's matching slot.
func (tx *txn) failRound(round *domain.Round, reason string) {
	round.Status = domain.RoundStatusFailed
	round.CompletedAt = tx.now
	round.FailureReason = reason
	tx.pool.IsMatching = false

	tx.batch.Rounds = append(tx.batch.Rounds, round)
	tx.emit(domain.EventRoundFailed, func(ev *domain.Event) {
		ev.RoundNumber = round.Number
		ev.Attributes = attrs("reason", reason)
	})
}
