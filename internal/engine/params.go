package engine

import "errors"

// Params are the protocol constants. Durations are in seconds.
type Params struct {
	// CancellationGracePeriod is the window after submission in which a
	// cancellation pays CancellationFee.
	CancellationGracePeriod int64
	CancellationFee         uint64

	MinimumExecutorStake uint64

	// MinRoundInterval is the minimum time between two round openings of a pool.
	MinRoundInterval int64

	// NonceRetention is the replay window: a nonce cannot be reused for this
	// long after it was recorded.
	NonceRetention int64

	// HeartbeatStaleness is how old a heartbeat may be for the executor to
	// count toward the live committee.
	HeartbeatStaleness int64

	// StallTimeout is how long a round may stay in flight before the pool
	// authority can abort it.
	StallTimeout int64

	// MaxRoundOrders caps the snapshot size; the oldest pending orders are taken.
	MaxRoundOrders int

	// ExecutorRewardBps is the share of round fees paid to contributing executors.
	ExecutorRewardBps uint16
}

// DefaultParams returns the protocol defaults (amounts in 6-decimal base units).
func DefaultParams() Params {
	return Params{
		CancellationGracePeriod: 300,
		CancellationFee:         1_000_000,
		MinimumExecutorStake:    1000 * 1_000_000,
		MinRoundInterval:        30,
		NonceRetention:          24 * 60 * 60,
		HeartbeatStaleness:      120,
		StallTimeout:            600,
		MaxRoundOrders:          128,
		ExecutorRewardBps:       2000,
	}
}

// Validate checks parameter sanity.
func (p Params) Validate() error {
	switch {
	case p.CancellationGracePeriod < 0:
		return errors.New("cancellation grace period must be non-negative")
	case p.MinRoundInterval < 0:
		return errors.New("min round interval must be non-negative")
	case p.NonceRetention <= 0:
		return errors.New("nonce retention must be positive")
	case p.HeartbeatStaleness <= 0:
		return errors.New("heartbeat staleness must be positive")
	case p.StallTimeout <= 0:
		return errors.New("stall timeout must be positive")
	case p.MaxRoundOrders < 2:
		return errors.New("max round orders must be at least 2")
	case p.ExecutorRewardBps > 10_000:
		return errors.New("executor reward share exceeds 100%")
	}
	return nil
}
