package api

import (
	"github.com/shopspring/decimal"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
	"github.com/Kartikvyas1604/PhantomPool/internal/feed"
)

type poolView struct {
	ID               string           `json:"id"`
	Authority        domain.PublicKey `json:"authority"`
	TokenPair        string           `json:"token_pair"`
	ElGamalPublicKey hexBytes         `json:"elgamal_public_key"`
	VRFPublicKey     hexBytes         `json:"vrf_public_key"`
	Threshold        uint8            `json:"threshold"`
	TotalExecutors   uint8            `json:"total_executors"`
	MinOrderSize     uint64           `json:"min_order_size"`
	MaxOrderSize     uint64           `json:"max_order_size"`
	FeeBps           uint16           `json:"fee_bps"`
	FeeRate          decimal.Decimal  `json:"fee_rate"`
	OrderCount       uint64           `json:"order_count"`
	RoundNumber      uint64           `json:"round_number"`
	TotalVolume      uint64           `json:"total_volume"`
	TotalTrades      uint64           `json:"total_trades"`
	TotalFees        uint64           `json:"total_fees"`
	IsMatching       bool             `json:"is_matching"`
	IsPaused         bool             `json:"is_paused"`
	LastMatchTime    int64            `json:"last_match_time"`
	CreatedAt        int64            `json:"created_at"`
	PausedAt         int64            `json:"paused_at,omitempty"`
	EventSeq         uint64           `json:"event_seq"`
}

// feeRate renders basis points as a fraction, e.g. 30 -> 0.003.
func feeRate(bps uint16) decimal.Decimal {
	return decimal.New(int64(bps), -4)
}

func newPoolView(p *domain.Pool) poolView {
	return poolView{
		ID:               p.ID,
		Authority:        p.Authority,
		TokenPair:        p.TokenPair,
		ElGamalPublicKey: p.ElGamalPublicKey,
		VRFPublicKey:     p.VRFPublicKey[:],
		Threshold:        p.Threshold,
		TotalExecutors:   p.TotalExecutors,
		MinOrderSize:     p.MinOrderSize,
		MaxOrderSize:     p.MaxOrderSize,
		FeeBps:           p.FeeBps,
		FeeRate:          feeRate(p.FeeBps),
		OrderCount:       p.OrderCount,
		RoundNumber:      p.RoundNumber,
		TotalVolume:      p.TotalVolume,
		TotalTrades:      p.TotalTrades,
		TotalFees:        p.TotalFees,
		IsMatching:       p.IsMatching,
		IsPaused:         p.IsPaused,
		LastMatchTime:    p.LastMatchTime,
		CreatedAt:        p.CreatedAt,
		PausedAt:         p.PausedAt,
		EventSeq:         p.EventSeq,
	}
}

type orderView struct {
	PoolID          string             `json:"pool_id"`
	Hash            domain.Hash        `json:"hash"`
	Trader          domain.PublicKey   `json:"trader"`
	Side            domain.Side        `json:"side"`
	EncryptedAmount hexBytes           `json:"encrypted_amount"`
	EncryptedPrice  hexBytes           `json:"encrypted_price"`
	Status          domain.OrderStatus `json:"status"`
	SubmittedAt     int64              `json:"submitted_at"`
	CancelledAt     int64              `json:"cancelled_at,omitempty"`
	ClosedRound     uint64             `json:"closed_round,omitempty"`
	Deposit         uint64             `json:"deposit"`
	FilledAmount    uint64             `json:"filled_amount"`
	EscrowRemaining uint64             `json:"escrow_remaining"`
}

func newOrderView(o *domain.Order) orderView {
	return orderView{
		PoolID:          o.PoolID,
		Hash:            o.Hash,
		Trader:          o.Trader,
		Side:            o.Side,
		EncryptedAmount: o.EncryptedAmount,
		EncryptedPrice:  o.EncryptedPrice,
		Status:          o.Status,
		SubmittedAt:     o.SubmittedAt,
		CancelledAt:     o.CancelledAt,
		ClosedRound:     o.ClosedRound,
		Deposit:         o.Deposit,
		FilledAmount:    o.FilledAmount,
		EscrowRemaining: o.EscrowRemaining(),
	}
}

type executorView struct {
	PoolID            string           `json:"pool_id"`
	Index             uint8            `json:"index"`
	Authority         domain.PublicKey `json:"authority"`
	VerificationKey   hexBytes         `json:"verification_key"`
	Stake             uint64           `json:"stake"`
	Active            bool             `json:"active"`
	SlashCount        uint8            `json:"slash_count"`
	LastHeartbeat     int64            `json:"last_heartbeat"`
	PerformanceScore  uint8            `json:"performance_score"`
	SharesContributed uint64           `json:"shares_contributed"`
	RewardsEarned     uint64           `json:"rewards_earned"`
	RegisteredAt      int64            `json:"registered_at"`
}

func newExecutorView(e *domain.Executor) executorView {
	return executorView{
		PoolID:            e.PoolID,
		Index:             e.Index,
		Authority:         e.Authority,
		VerificationKey:   e.VerificationKey[:],
		Stake:             e.Stake,
		Active:            e.Active,
		SlashCount:        e.SlashCount,
		LastHeartbeat:     e.LastHeartbeat,
		PerformanceScore:  e.PerformanceScore,
		SharesContributed: e.SharesContributed,
		RewardsEarned:     e.RewardsEarned,
		RegisteredAt:      e.RegisteredAt,
	}
}

// roundView never carries share values; only who contributed and how many.
type roundView struct {
	PoolID        string             `json:"pool_id"`
	Number        uint64             `json:"number"`
	VRFSeed       hexBytes           `json:"vrf_seed"`
	Proposer      domain.PublicKey   `json:"proposer"`
	Status        domain.RoundStatus `json:"status"`
	StartedAt     int64              `json:"started_at"`
	CompletedAt   int64              `json:"completed_at,omitempty"`
	Threshold     uint8              `json:"threshold"`
	OrderHashes   []domain.Hash      `json:"order_hashes"`
	Quorum        []int              `json:"quorum"` // distinct executors per snapshot order
	Contributions map[uint8]uint64   `json:"contributions"`
	Trades        []feed.Trade       `json:"trades"`
	Fills         []fillView         `json:"fills,omitempty"`
	ClearingPrice uint64             `json:"clearing_price,omitempty"`
	TotalVolume   uint64             `json:"total_volume"`
	TotalFees     uint64             `json:"total_fees"`
	FailureReason string             `json:"failure_reason,omitempty"`
}

type fillView struct {
	OrderHash  domain.Hash        `json:"order_hash"`
	Filled     uint64             `json:"filled"`
	EscrowUsed uint64             `json:"escrow_used"`
	Status     domain.OrderStatus `json:"status"`
	Refund     uint64             `json:"refund,omitempty"`
}

func newRoundView(r *domain.Round) roundView {
	v := roundView{
		PoolID:        r.PoolID,
		Number:        r.Number,
		VRFSeed:       r.VRFSeed[:],
		Proposer:      r.Proposer,
		Status:        r.Status,
		StartedAt:     r.StartedAt,
		CompletedAt:   r.CompletedAt,
		Threshold:     r.Threshold,
		OrderHashes:   r.OrderHashes,
		Quorum:        make([]int, len(r.OrderHashes)),
		Contributions: r.Contributions(),
		Trades:        make([]feed.Trade, 0, len(r.Trades)),
		ClearingPrice: r.ClearingPrice,
		TotalVolume:   r.TotalVolume,
		TotalFees:     r.TotalFees,
		FailureReason: r.FailureReason,
	}
	if v.OrderHashes == nil {
		v.OrderHashes = []domain.Hash{}
	}
	for i := range r.OrderHashes {
		v.Quorum[i] = r.QuorumCount(uint32(i))
	}
	for _, t := range r.Trades {
		v.Trades = append(v.Trades, feed.Trade{
			BuyOrder:  t.BuyOrder,
			SellOrder: t.SellOrder,
			Amount:    t.MatchedAmount,
			Price:     t.ExecutionPrice,
		})
	}
	for _, f := range r.Fills {
		v.Fills = append(v.Fills, fillView(f))
	}
	return v
}

func mapSlice[T, V any](in []T, fn func(T) V) []V {
	out := make([]V, 0, len(in))
	for _, x := range in {
		out = append(out, fn(x))
	}
	return out
}
