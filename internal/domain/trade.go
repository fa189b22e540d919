package domain

// TradePair is one match produced by the batch auction.
// Every pair of a round executes at the round clearing price.
type TradePair struct {
	BuyOrder       Hash
	SellOrder      Hash
	MatchedAmount  uint64 // base units
	ExecutionPrice uint64 // quote units per base unit
}

// Notional is the quote amount paid for the pair.
func (t TradePair) Notional() uint64 {
	return t.MatchedAmount * t.ExecutionPrice
}

// OrderFill is the settlement outcome of one snapshot order.
type OrderFill struct {
	OrderHash  Hash
	Filled     uint64      // base units filled this round
	EscrowUsed uint64      // escrow consumed this round (quote for buys, base for sells)
	Status     OrderStatus // status after settlement
	Refund     uint64      // escrow returned to the trader when Status is terminal
}

// Plaintext is a recombined order.
type Plaintext struct {
	Amount uint64
	Price  uint64
}

// ExecutedTrade is a settled pair as recorded for analytics.
type ExecutedTrade struct {
	PoolID     string
	Round      uint64
	Index      uint32 // position within the round's trade list
	BuyOrder   Hash
	SellOrder  Hash
	Amount     uint64
	Price      uint64
	Fee        uint64
	ExecutedAt int64
}
