package engine

import (
	"context"
	"fmt"
	"math/bits"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
	"github.com/Kartikvyas1604/PhantomPool/internal/verify"
)

// SettlementResult summarizes a completed round.
type SettlementResult struct {
	Round     *domain.Round
	Transfers []domain.Transfer
	Rewards   map[uint8]uint64 // executor index -> quote units
}

// CompleteRound settles a READY_TO_COMPLETE round once the execution proof
// matches its trade list and clearing price.
//
// Per pair the buyer escrow pays the notional: the seller receives it less the
// pool fee, and the fee goes to the treasury. The seller escrow delivers the
// base amount to the buyer. Orders that end MATCHED or EXPIRED get their
// remaining escrow back. Executors that contributed shares then split
// ExecutorRewardBps of the round fees, pro rata to accepted shares.
// Any transfer failure undoes every transfer of the call.
func (e *Engine) CompleteRound(ctx context.Context, poolID string, caller domain.PublicKey, proof [domain.ExecutionProofSize]byte) (*SettlementResult, error) {
	var res SettlementResult
	err := e.execute(ctx, "complete_round", poolID, func(tx *txn) error {
		pool, err := e.loadPool(ctx, poolID)
		if err != nil {
			return err
		}
		round, err := e.inFlightRound(ctx, pool)
		if err != nil {
			return err
		}
		if round.Status != domain.RoundStatusReadyToComplete {
			return fmt.Errorf("%w: %s", ErrRoundNotReady, round.Status)
		}
		if !e.verifiers.Execution.VerifyExecution(verify.ExecutionProof{
			PoolID:        poolID,
			Round:         round.Number,
			ClearingPrice: round.ClearingPrice,
			Trades:        round.Trades,
			Proof:         proof,
		}) {
			return ErrInvalidExecutionProof
		}

		orders := make(map[domain.Hash]*domain.Order, len(round.OrderHashes))
		for _, hash := range round.OrderHashes {
			o, err := e.store.GetOrder(ctx, poolID, hash)
			if err != nil {
				return mapNotFound(err, ErrOrderNotFound, hash.String())
			}
			orders[hash] = o
		}

		base, quote, _ := domain.SplitTokenPair(pool.TokenPair)
		treasury := domain.TreasuryAccount(poolID)

		var transfers []domain.Transfer
		fees := make([]uint64, len(round.Trades))
		var totalFees uint64
		for i, t := range round.Trades {
			buyer, seller := orders[t.BuyOrder], orders[t.SellOrder]
			if buyer == nil || seller == nil {
				return fmt.Errorf("%w: trade %d references an order outside the snapshot", ErrInvalidExecutionProof, i)
			}
			notional := t.Notional()
			fee := tradeFee(t, pool.FeeBps)
			fees[i] = fee
			totalFees += fee

			buyEscrow := domain.EscrowAccount(poolID, t.BuyOrder)
			sellEscrow := domain.EscrowAccount(poolID, t.SellOrder)
			transfers = append(transfers,
				domain.Transfer{From: buyEscrow, To: domain.WalletAccount(seller.Trader), Asset: quote, Amount: notional - fee},
				domain.Transfer{From: buyEscrow, To: treasury, Asset: quote, Amount: fee},
				domain.Transfer{From: sellEscrow, To: domain.WalletAccount(buyer.Trader), Asset: base, Amount: t.MatchedAmount},
			)
		}

		for _, f := range round.Fills {
			if f.Refund == 0 {
				continue
			}
			o := orders[f.OrderHash]
			transfers = append(transfers, domain.Transfer{
				From:   domain.EscrowAccount(poolID, f.OrderHash),
				To:     domain.WalletAccount(o.Trader),
				Asset:  domain.DepositAsset(pool.TokenPair, o.Side),
				Amount: f.Refund,
			})
		}

		rewards, rewardTransfers, execs, err := e.executorRewards(ctx, pool, round, totalFees, quote)
		if err != nil {
			return err
		}
		transfers = append(transfers, rewardTransfers...)

		for _, t := range transfers {
			if err := tx.transfer(ctx, t); err != nil {
				return err
			}
		}

		for _, f := range round.Fills {
			o := orders[f.OrderHash]
			if f.Filled == 0 && f.EscrowUsed == 0 && f.Status == o.Status {
				continue
			}
			o.FilledAmount += f.Filled
			o.EscrowUsed += f.EscrowUsed + f.Refund
			o.Status = f.Status
			if f.Status.IsTerminal() {
				o.ClosedRound = round.Number
			}
			tx.batch.Orders = append(tx.batch.Orders, o)
		}
		tx.batch.Executors = append(tx.batch.Executors, execs...)

		pool.TotalVolume += round.TotalVolume
		pool.TotalTrades += uint64(len(round.Trades))
		pool.TotalFees += totalFees
		pool.IsMatching = false

		round.Status = domain.RoundStatusCompleted
		round.CompletedAt = tx.now
		round.TotalFees = totalFees

		tx.pool = pool
		tx.batch.Rounds = append(tx.batch.Rounds, round)

		for i, t := range round.Trades {
			trade := t
			fee := fees[i]
			tx.emit(domain.EventTradeExecuted, func(ev *domain.Event) {
				ev.RoundNumber = round.Number
				ev.Trade = &trade
				ev.Attributes = attrs("fee", u64s(fee))
			})
			tx.trades = append(tx.trades, &domain.ExecutedTrade{
				PoolID:     poolID,
				Round:      round.Number,
				Index:      uint32(i),
				BuyOrder:   t.BuyOrder,
				SellOrder:  t.SellOrder,
				Amount:     t.MatchedAmount,
				Price:      t.ExecutionPrice,
				Fee:        fee,
				ExecutedAt: tx.now,
			})
		}
		for _, ex := range execs {
			index, reward := ex.Index, rewards[ex.Index]
			tx.emit(domain.EventExecutorRewarded, func(ev *domain.Event) {
				ev.RoundNumber = round.Number
				ev.ExecutorIndex = indexPtr(index)
				ev.Attributes = attrs("reward", u64s(reward))
			})
		}
		tx.emit(domain.EventRoundCompleted, func(ev *domain.Event) {
			ev.RoundNumber = round.Number
			ev.Attributes = attrs(
				"clearing_price", u64s(round.ClearingPrice),
				"trades", strconv.Itoa(len(round.Trades)),
				"volume", u64s(round.TotalVolume),
				"fees", u64s(totalFees),
			)
		})

		res = SettlementResult{Round: round, Transfers: transfers, Rewards: rewards}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("round completed",
		zap.String("pool", poolID),
		zap.Uint64("round", res.Round.Number),
		zap.Uint64("clearing_price", res.Round.ClearingPrice),
		zap.Uint64("volume", res.Round.TotalVolume),
		zap.Int("trades", len(res.Round.Trades)),
	)
	res.Round = res.Round.Clone()
	return &res, nil
}

// executorRewards splits the executor share of round fees pro rata to
// accepted shares. Rounding dust stays in the treasury.
func (e *Engine) executorRewards(ctx context.Context, pool *domain.Pool, round *domain.Round, fees uint64, asset string) (map[uint8]uint64, []domain.Transfer, []*domain.Executor, error) {
	rewards := make(map[uint8]uint64)
	contributions := round.Contributions()
	budget := mulDiv(fees, uint64(e.params.ExecutorRewardBps), domain.MaxFeeBps)
	if budget == 0 || len(contributions) == 0 {
		return rewards, nil, nil, nil
	}

	var total uint64
	indices := make([]uint8, 0, len(contributions))
	for idx, n := range contributions {
		indices = append(indices, idx)
		total += n
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	var (
		transfers []domain.Transfer
		execs     []*domain.Executor
	)
	for _, idx := range indices {
		reward := mulDiv(budget, contributions[idx], total)
		if reward == 0 {
			continue
		}
		ex, err := e.loadExecutor(ctx, pool.ID, idx)
		if err != nil {
			return nil, nil, nil, err
		}
		ex.RewardsEarned += reward
		rewards[idx] = reward
		execs = append(execs, ex)
		transfers = append(transfers, domain.Transfer{
			From:   domain.TreasuryAccount(pool.ID),
			To:     domain.WalletAccount(ex.Authority),
			Asset:  asset,
			Amount: reward,
		})
	}
	return rewards, transfers, execs, nil
}

// tradeFee is the pool fee on a pair's notional, rounded down.
func tradeFee(t domain.TradePair, feeBps uint16) uint64 {
	return mulDiv(t.Notional(), uint64(feeBps), domain.MaxFeeBps)
}

// mulDiv returns a*b/c rounded down. The result must fit in 64 bits, which
// holds whenever b <= c.
func mulDiv(a, b, c uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	q, _ := bits.Div64(hi, lo, c)
	return q
}
