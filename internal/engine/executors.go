package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
	"github.com/Kartikvyas1604/PhantomPool/internal/storage"
)

// RegisterExecutorRequest registers a committee member.
type RegisterExecutorRequest struct {
	Index           uint8
	ThresholdShare  [32]byte
	VerificationKey [33]byte
	Stake           uint64
}

// RegisterExecutor adds caller as the executor at req.Index and escrows its stake.
func (e *Engine) RegisterExecutor(ctx context.Context, poolID string, caller domain.PublicKey, req RegisterExecutorRequest) (*domain.Executor, error) {
	if caller.IsZero() {
		return nil, ErrInvalidIdentity
	}

	var exec *domain.Executor
	err := e.execute(ctx, "register_executor", poolID, func(tx *txn) error {
		pool, err := e.loadPool(ctx, poolID)
		if err != nil {
			return err
		}
		if req.Index >= pool.TotalExecutors {
			return fmt.Errorf("%w: %d of %d", ErrInvalidExecutorIndex, req.Index, pool.TotalExecutors)
		}
		if req.Stake < e.params.MinimumExecutorStake {
			return fmt.Errorf("%w: %d < %d", ErrInsufficientStake, req.Stake, e.params.MinimumExecutorStake)
		}

		_, err = e.store.GetExecutor(ctx, poolID, req.Index)
		switch {
		case err == nil:
			return fmt.Errorf("%w: %d", ErrExecutorIndexTaken, req.Index)
		case !errors.Is(err, storage.ErrNotFound):
			return fmt.Errorf("load executor: %w", err)
		}

		if !e.verifiers.ThresholdShare.VerifyThresholdShare(req.Index, req.ThresholdShare, req.VerificationKey) {
			return ErrInvalidThresholdShare
		}

		if err := tx.transfer(ctx, domain.Transfer{
			From:   domain.WalletAccount(caller),
			To:     domain.StakeAccount(poolID, req.Index),
			Asset:  domain.StakeAsset(pool.TokenPair),
			Amount: req.Stake,
		}); err != nil {
			return err
		}

		exec = &domain.Executor{
			PoolID:           poolID,
			Index:            req.Index,
			Authority:        caller,
			ThresholdShare:   req.ThresholdShare,
			VerificationKey:  req.VerificationKey,
			Stake:            req.Stake,
			Active:           true,
			LastHeartbeat:    tx.now,
			PerformanceScore: domain.MaxPerformanceScore,
			RegisteredAt:     tx.now,
			SchemaVersion:    domain.SchemaVersion,
		}

		tx.pool = pool
		tx.batch.Executors = append(tx.batch.Executors, exec)
		tx.emit(domain.EventExecutorRegistered, func(ev *domain.Event) {
			ev.ExecutorIndex = indexPtr(req.Index)
			ev.Attributes = attrs("authority", caller.String(), "stake", u64s(req.Stake))
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("executor registered",
		zap.String("pool", poolID),
		zap.Uint8("index", req.Index),
		zap.Uint64("stake", req.Stake),
	)
	return exec.Clone(), nil
}

// Heartbeat refreshes an executor's liveness and raises its score by one.
func (e *Engine) Heartbeat(ctx context.Context, poolID string, caller domain.PublicKey, index uint8) (*domain.Executor, error) {
	var exec *domain.Executor
	err := e.execute(ctx, "heartbeat", poolID, func(tx *txn) error {
		pool, err := e.loadPool(ctx, poolID)
		if err != nil {
			return err
		}
		exec, err = e.loadExecutor(ctx, poolID, index)
		if err != nil {
			return err
		}
		if exec.Authority != caller {
			return ErrNotExecutorAuthority
		}
		if !exec.Active {
			return ErrExecutorInactive
		}

		exec.LastHeartbeat = tx.now
		if exec.PerformanceScore < domain.MaxPerformanceScore {
			exec.PerformanceScore++
		}

		tx.pool = pool
		tx.batch.Executors = append(tx.batch.Executors, exec)
		tx.emit(domain.EventExecutorHeartbeat, func(ev *domain.Event) {
			ev.ExecutorIndex = indexPtr(index)
			ev.Attributes = attrs("score", strconv.Itoa(int(exec.PerformanceScore)))
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return exec.Clone(), nil
}

// SlashResult reports an applied penalty.
type SlashResult struct {
	Executor    *domain.Executor
	Penalty     uint64
	Deactivated bool
}

// SlashExecutor applies the penalty for a proven violation. Pool authority only.
// Slashed stake moves to the pool treasury. There is no path back to a
// higher stake or to active once deactivated.
func (e *Engine) SlashExecutor(ctx context.Context, poolID string, caller domain.PublicKey, index uint8, violation domain.ViolationType, evidence []byte) (*SlashResult, error) {
	var res SlashResult
	err := e.execute(ctx, "slash_executor", poolID, func(tx *txn) error {
		pool, err := e.loadPool(ctx, poolID)
		if err != nil {
			return err
		}
		if pool.Authority != caller {
			return ErrNotPoolAuthority
		}
		if !violation.IsValid() {
			return fmt.Errorf("%w: %q", ErrInvalidViolation, violation)
		}
		exec, err := e.loadExecutor(ctx, poolID, index)
		if err != nil {
			return err
		}
		if !e.verifiers.Evidence.VerifyEvidence(violation, index, evidence) {
			return ErrInvalidEvidence
		}

		res.Penalty = violation.SlashAmount(exec.Stake)
		if err := tx.transfer(ctx, domain.Transfer{
			From:   domain.StakeAccount(poolID, index),
			To:     domain.TreasuryAccount(poolID),
			Asset:  domain.StakeAsset(pool.TokenPair),
			Amount: res.Penalty,
		}); err != nil {
			return err
		}

		exec.Stake -= res.Penalty
		if exec.SlashCount < ^uint8(0) {
			exec.SlashCount++
		}
		if exec.PerformanceScore > domain.SlashScoreDecrement {
			exec.PerformanceScore -= domain.SlashScoreDecrement
		} else {
			exec.PerformanceScore = 0
		}
		if exec.Active && (exec.SlashCount >= domain.MaxSlashesBeforeEject || exec.Stake < e.params.MinimumExecutorStake) {
			exec.Active = false
			res.Deactivated = true
		}

		tx.pool = pool
		tx.batch.Executors = append(tx.batch.Executors, exec)
		tx.emit(domain.EventExecutorSlashed, func(ev *domain.Event) {
			ev.ExecutorIndex = indexPtr(index)
			ev.Attributes = attrs(
				"violation", violation.String(),
				"penalty", u64s(res.Penalty),
				"stake", u64s(exec.Stake),
				"slash_count", strconv.Itoa(int(exec.SlashCount)),
			)
		})
		if res.Deactivated {
			tx.emit(domain.EventExecutorDeactivated, func(ev *domain.Event) {
				ev.ExecutorIndex = indexPtr(index)
			})
		}
		res.Executor = exec
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("executor slashed",
		zap.String("pool", poolID),
		zap.Uint8("index", index),
		zap.String("violation", violation.String()),
		zap.Uint64("penalty", res.Penalty),
		zap.Bool("deactivated", res.Deactivated),
	)
	res.Executor = res.Executor.Clone()
	return &res, nil
}

func (e *Engine) loadExecutor(ctx context.Context, poolID string, index uint8) (*domain.Executor, error) {
	exec, err := e.store.GetExecutor(ctx, poolID, index)
	if err != nil {
		return nil, mapNotFound(err, ErrExecutorNotFound, strconv.Itoa(int(index)))
	}
	return exec, nil
}
