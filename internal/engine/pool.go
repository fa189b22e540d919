package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
	"github.com/Kartikvyas1604/PhantomPool/internal/idhash"
	"github.com/Kartikvyas1604/PhantomPool/internal/storage"
	"github.com/Kartikvyas1604/PhantomPool/internal/verify"
)

// PoolParams configures a new pool.
type PoolParams struct {
	TokenPair        string
	ElGamalPublicKey []byte
	VRFPublicKey     [32]byte
	Threshold        uint8
	TotalExecutors   uint8
	MinOrderSize     uint64
	MaxOrderSize     uint64
	FeeBps           uint16
}

// Validate checks the static pool configuration.
func (p PoolParams) Validate() error {
	if _, _, ok := domain.SplitTokenPair(p.TokenPair); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidTokenPair, p.TokenPair)
	}
	if p.Threshold < domain.MinThreshold || p.Threshold > p.TotalExecutors || p.TotalExecutors > domain.MaxTotalExecutors {
		return fmt.Errorf("%w: t=%d n=%d", ErrInvalidThreshold, p.Threshold, p.TotalExecutors)
	}
	if p.MinOrderSize == 0 || p.MinOrderSize > p.MaxOrderSize {
		return fmt.Errorf("%w: [%d, %d]", ErrInvalidOrderBounds, p.MinOrderSize, p.MaxOrderSize)
	}
	if p.FeeBps > domain.MaxFeeBps {
		return fmt.Errorf("%w: %d bps", ErrInvalidFee, p.FeeBps)
	}
	if len(p.ElGamalPublicKey) == 0 {
		return fmt.Errorf("%w: empty ElGamal key", ErrInvalidKey)
	}
	if err := verify.ValidateVRFKey(p.VRFPublicKey); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return nil
}

// InitializePool creates the pool for a token pair with authority as its operator.
func (e *Engine) InitializePool(ctx context.Context, authority domain.PublicKey, params PoolParams) (*domain.Pool, error) {
	if authority.IsZero() {
		return nil, ErrInvalidIdentity
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	poolID := idhash.ComputePoolID(params.TokenPair)
	var pool *domain.Pool
	err := e.execute(ctx, "initialize_pool", poolID, func(tx *txn) error {
		_, err := e.store.GetPool(ctx, poolID)
		switch {
		case err == nil:
			return fmt.Errorf("%w: %s", ErrPoolExists, params.TokenPair)
		case !errors.Is(err, storage.ErrNotFound):
			return fmt.Errorf("load pool: %w", err)
		}

		tx.pool = &domain.Pool{
			ID:               poolID,
			Authority:        authority,
			TokenPair:        params.TokenPair,
			ElGamalPublicKey: append([]byte(nil), params.ElGamalPublicKey...),
			VRFPublicKey:     params.VRFPublicKey,
			Threshold:        params.Threshold,
			TotalExecutors:   params.TotalExecutors,
			MinOrderSize:     params.MinOrderSize,
			MaxOrderSize:     params.MaxOrderSize,
			FeeBps:           params.FeeBps,
			CreatedAt:        tx.now,
			SchemaVersion:    domain.SchemaVersion,
		}
		tx.emit(domain.EventPoolInitialized, func(ev *domain.Event) {
			ev.Attributes = attrs(
				"token_pair", params.TokenPair,
				"authority", authority.String(),
				"threshold", strconv.Itoa(int(params.Threshold)),
				"total_executors", strconv.Itoa(int(params.TotalExecutors)),
				"fee_bps", strconv.Itoa(int(params.FeeBps)),
			)
		})
		pool = tx.pool
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("pool initialized", zap.String("pool", poolID), zap.String("pair", params.TokenPair))
	return pool.Clone(), nil
}

// Pause stops order intake and round opening. Authority only.
func (e *Engine) Pause(ctx context.Context, poolID string, caller domain.PublicKey) (*domain.Pool, error) {
	return e.setPaused(ctx, poolID, caller, true)
}

// Unpause resumes a paused pool. Authority only.
func (e *Engine) Unpause(ctx context.Context, poolID string, caller domain.PublicKey) (*domain.Pool, error) {
	return e.setPaused(ctx, poolID, caller, false)
}

func (e *Engine) setPaused(ctx context.Context, poolID string, caller domain.PublicKey, paused bool) (*domain.Pool, error) {
	op, kind := "unpause", domain.EventPoolUnpaused
	if paused {
		op, kind = "pause", domain.EventPoolPaused
	}

	var pool *domain.Pool
	err := e.execute(ctx, op, poolID, func(tx *txn) error {
		p, err := e.loadPool(ctx, poolID)
		if err != nil {
			return err
		}
		if p.Authority != caller {
			return ErrNotPoolAuthority
		}
		if p.IsPaused == paused {
			if paused {
				return ErrPoolPaused
			}
			return ErrPoolNotPaused
		}

		p.IsPaused = paused
		if paused {
			p.PausedAt = tx.now
		}
		tx.pool = p
		tx.emit(kind, nil)
		pool = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("pool "+op+"d", zap.String("pool", poolID))
	return pool.Clone(), nil
}
