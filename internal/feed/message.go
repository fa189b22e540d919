package feed

import (
	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
)

// Message is the JSON form of a notification.
type Message struct {
	ID            string            `json:"id"`
	PoolID        string            `json:"pool_id"`
	Sequence      uint64            `json:"sequence"`
	Kind          domain.EventKind  `json:"kind"`
	Round         uint64            `json:"round,omitempty"`
	OrderHash     *domain.Hash      `json:"order_hash,omitempty"`
	ExecutorIndex *uint8            `json:"executor_index,omitempty"`
	Trade         *Trade            `json:"trade,omitempty"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	At            int64             `json:"at"`
}

// Trade is the JSON form of a matched pair.
type Trade struct {
	BuyOrder  domain.Hash `json:"buy_order"`
	SellOrder domain.Hash `json:"sell_order"`
	Amount    uint64      `json:"amount"`
	Price     uint64      `json:"price"`
}

// NewMessage converts a notification to its wire form.
func NewMessage(ev *domain.Event) Message {
	m := Message{
		ID:            ev.ID,
		PoolID:        ev.PoolID,
		Sequence:      ev.Sequence,
		Kind:          ev.Kind,
		Round:         ev.RoundNumber,
		OrderHash:     ev.OrderHash,
		ExecutorIndex: ev.ExecutorIndex,
		Attributes:    ev.Attributes,
		At:            ev.At,
	}
	if ev.Trade != nil {
		m.Trade = &Trade{
			BuyOrder:  ev.Trade.BuyOrder,
			SellOrder: ev.Trade.SellOrder,
			Amount:    ev.Trade.MatchedAmount,
			Price:     ev.Trade.ExecutionPrice,
		}
	}
	return m
}
