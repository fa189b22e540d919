package engine

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
	"github.com/Kartikvyas1604/PhantomPool/internal/matcher"
	"github.com/Kartikvyas1604/PhantomPool/internal/verify"
)

// ShareResult reports what a share submission changed.
type ShareResult struct {
	Round     *domain.Round
	Accepted  int // new (executor, order) shares recorded
	Duplicate int // shares already recorded for this executor, ignored
}

// SubmitPartialDecryption records an executor's decryption shares for the
// in-flight round. Shares already recorded for the same (executor, order) are
// ignored, so resubmission never counts twice toward quorum. When every
// snapshot order has shares from threshold distinct executors the plaintexts
// are recombined and matched, and the round becomes READY_TO_COMPLETE, or
// FAILED if the shares are inconsistent.
func (e *Engine) SubmitPartialDecryption(ctx context.Context, poolID string, caller domain.PublicKey, index uint8, shares []domain.Share, proof []byte) (*ShareResult, error) {
	var res ShareResult
	err := e.execute(ctx, "submit_partial_decryption", poolID, func(tx *txn) error {
		pool, err := e.loadPool(ctx, poolID)
		if err != nil {
			return err
		}
		round, err := e.inFlightRound(ctx, pool)
		if err != nil {
			return err
		}
		if !round.Status.AcceptsShares() {
			return fmt.Errorf("%w: %s", ErrRoundNotAcceptingShares, round.Status)
		}

		exec, err := e.loadExecutor(ctx, poolID, index)
		if err != nil {
			return err
		}
		if exec.Authority != caller {
			return ErrNotExecutorAuthority
		}
		if !exec.Active {
			return ErrExecutorInactive
		}
		if exec.Stake < e.params.MinimumExecutorStake {
			return ErrExecutorUnderstaked
		}
		if !exec.IsLive(tx.now, e.params.HeartbeatStaleness) {
			return ErrExecutorStale
		}

		if err := validateShares(shares, len(round.OrderHashes)); err != nil {
			return err
		}
		if !e.verifiers.ShareProof.VerifyShareProof(verify.ShareProof{
			PoolID:          poolID,
			Round:           round.Number,
			ExecutorIndex:   index,
			VerificationKey: exec.VerificationKey,
			OrderHashes:     round.OrderHashes,
			Shares:          shares,
			Proof:           proof,
		}) {
			return ErrInvalidShareProof
		}

		for _, s := range shares {
			if round.HasShare(index, s.OrderIndex) {
				res.Duplicate++
				continue
			}
			round.Partials = append(round.Partials, domain.PartialDecryption{
				ExecutorIndex: index,
				OrderIndex:    s.OrderIndex,
				Share:         append([]byte(nil), s.Value...),
				SubmittedAt:   tx.now,
			})
			res.Accepted++
		}
		if res.Accepted > 0 && round.Status == domain.RoundStatusActive {
			round.Status = domain.RoundStatusAwaitingQuorum
		}

		exec.LastHeartbeat = tx.now
		exec.SharesContributed += uint64(res.Accepted)

		tx.pool = pool
		tx.batch.Executors = append(tx.batch.Executors, exec)
		tx.emit(domain.EventDecryptionSubmitted, func(ev *domain.Event) {
			ev.RoundNumber = round.Number
			ev.ExecutorIndex = indexPtr(index)
			ev.Attributes = attrs(
				"accepted", strconv.Itoa(res.Accepted),
				"duplicate", strconv.Itoa(res.Duplicate),
			)
		})

		if res.Accepted > 0 && round.HasFullQuorum() {
			if err := e.finalizeDecryption(ctx, tx, pool, round); err != nil {
				return err
			}
		} else {
			tx.batch.Rounds = append(tx.batch.Rounds, round)
		}
		res.Round = round
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("decryption shares accepted",
		zap.String("pool", poolID),
		zap.Uint64("round", res.Round.Number),
		zap.Uint8("executor", index),
		zap.Int("accepted", res.Accepted),
		zap.Int("duplicate", res.Duplicate),
		zap.Stringer("status", res.Round.Status),
	)
	res.Round = res.Round.Clone()
	return &res, nil
}

func validateShares(shares []domain.Share, snapshot int) error {
	if len(shares) == 0 {
		return fmt.Errorf("%w: empty batch", ErrInvalidShares)
	}
	seen := make(map[uint32]struct{}, len(shares))
	for _, s := range shares {
		if int64(s.OrderIndex) >= int64(snapshot) {
			return fmt.Errorf("%w: order index %d outside snapshot of %d", ErrInvalidShares, s.OrderIndex, snapshot)
		}
		if _, dup := seen[s.OrderIndex]; dup {
			return fmt.Errorf("%w: order index %d repeated", ErrInvalidShares, s.OrderIndex)
		}
		if len(s.Value) != domain.ShareSize {
			return fmt.Errorf("%w: share for order %d is %d bytes", ErrInvalidShares, s.OrderIndex, len(s.Value))
		}
		seen[s.OrderIndex] = struct{}{}
	}
	return nil
}

// finalizeDecryption recombines every snapshot order and runs the auction.
// Any recombination error, including a value that does not fit the plaintext
// encoding, fails the round and leaves the snapshot orders pending: with a
// range-checked submission only bad shares can produce one.
func (e *Engine) finalizeDecryption(ctx context.Context, tx *txn, pool *domain.Pool, round *domain.Round) error {
	orders := make([]matcher.Order, len(round.OrderHashes))
	for i, hash := range round.OrderHashes {
		order, err := e.store.GetOrder(ctx, pool.ID, hash)
		if err != nil {
			return mapNotFound(err, ErrOrderNotFound, hash.String())
		}

		plain, err := e.combiner.Combine(round.Threshold, round.SharesFor(uint32(i)))
		if err != nil {
			e.logger.Warn("share recombination failed",
				zap.String("pool", pool.ID),
				zap.Uint64("round", round.Number),
				zap.Stringer("order", hash),
				zap.Error(err),
			)
			tx.failRound(round, fmt.Sprintf("recombination failed for order %d: %v", i, err))
			return nil
		}

		orders[i] = matcher.Order{
			Hash:            hash,
			Side:            order.Side,
			Plaintext:       plain,
			Valid:           true,
			Filled:          order.FilledAmount,
			EscrowRemaining: order.EscrowRemaining(),
		}
	}

	result := matcher.Match(orders, round.VRFSeed)

	round.Trades = result.Trades
	round.Fills = result.Fills
	round.ClearingPrice = result.ClearingPrice
	round.TotalVolume = result.Volume
	round.TotalFees = 0
	for _, t := range result.Trades {
		round.TotalFees += tradeFee(t, pool.FeeBps)
	}
	round.Status = domain.RoundStatusReadyToComplete

	tx.batch.Rounds = append(tx.batch.Rounds, round)
	tx.emit(domain.EventRoundReady, func(ev *domain.Event) {
		ev.RoundNumber = round.Number
		ev.Attributes = attrs(
			"clearing_price", u64s(round.ClearingPrice),
			"trades", strconv.Itoa(len(round.Trades)),
			"volume", u64s(round.TotalVolume),
		)
	})
	return nil
}
