// Package matcher implements the uniform-price batch auction.
//
// Buys are ranked by limit price descending and sells ascending. Orders at the
// same price are ranked by BLAKE3(vrf_seed || order_hash), so no participant
// controls its position. The cursors pair orders while the best remaining buy
// crosses the best remaining sell. Every pair executes at one clearing price:
// the floor midpoint of the last crossing buy and sell limits.
package matcher

import (
	"bytes"
	"sort"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
	"github.com/Kartikvyas1604/PhantomPool/internal/idhash"
)

// Order is one recombined snapshot order.
type Order struct {
	Hash      domain.Hash
	Side      domain.Side
	Plaintext domain.Plaintext
	// Valid is false when the plaintext could not be recovered.
	Valid bool

	// State carried from earlier rounds.
	Filled          uint64 // base units already filled
	EscrowRemaining uint64 // quote units for buys, base units for sells
}

// Available is the quantity the order may trade this round: the unfilled
// plaintext amount bounded by what its remaining escrow can cover at its limit.
func (o Order) Available() uint64 {
	if !o.Valid || o.Plaintext.Amount == 0 || o.Plaintext.Price == 0 {
		return 0
	}
	if o.Filled >= o.Plaintext.Amount {
		return 0
	}
	remaining := o.Plaintext.Amount - o.Filled

	capacity := o.EscrowRemaining
	if o.Side == domain.SideBuy {
		capacity = o.EscrowRemaining / o.Plaintext.Price
	}
	return min(remaining, capacity)
}

// Result is the auction outcome.
type Result struct {
	Trades        []domain.TradePair
	ClearingPrice uint64 // 0 when nothing crossed
	Volume        uint64 // matched base units
	// Fills has one entry per input order, in input order.
	Fills []domain.OrderFill
}

type ranked struct {
	idx       int
	price     uint64
	key       [32]byte
	available uint64
}

// Match runs the auction over orders seeded by the round VRF output.
func Match(orders []Order, seed [32]byte) Result {
	var buys, sells []ranked
	for i, o := range orders {
		avail := o.Available()
		if avail == 0 {
			continue
		}
		r := ranked{idx: i, price: o.Plaintext.Price, key: idhash.TieBreakKey(seed, o.Hash), available: avail}
		switch o.Side {
		case domain.SideBuy:
			buys = append(buys, r)
		case domain.SideSell:
			sells = append(sells, r)
		}
	}

	sort.Slice(buys, func(i, j int) bool {
		if buys[i].price != buys[j].price {
			return buys[i].price > buys[j].price
		}
		return bytes.Compare(buys[i].key[:], buys[j].key[:]) < 0
	})
	sort.Slice(sells, func(i, j int) bool {
		if sells[i].price != sells[j].price {
			return sells[i].price < sells[j].price
		}
		return bytes.Compare(sells[i].key[:], sells[j].key[:]) < 0
	})

	var (
		res               Result
		lastBuy, lastSell uint64
		matched           = make([]uint64, len(orders))
		bi, si            int
	)
	for bi < len(buys) && si < len(sells) && buys[bi].price >= sells[si].price {
		b, s := &buys[bi], &sells[si]
		qty := min(b.available, s.available)

		res.Trades = append(res.Trades, domain.TradePair{
			BuyOrder:      orders[b.idx].Hash,
			SellOrder:     orders[s.idx].Hash,
			MatchedAmount: qty,
		})
		res.Volume += qty
		matched[b.idx] += qty
		matched[s.idx] += qty
		lastBuy, lastSell = b.price, s.price

		b.available -= qty
		s.available -= qty
		if b.available == 0 {
			bi++
		}
		if s.available == 0 {
			si++
		}
	}

	if len(res.Trades) > 0 {
		res.ClearingPrice = lastSell + (lastBuy-lastSell)/2
		for i := range res.Trades {
			res.Trades[i].ExecutionPrice = res.ClearingPrice
		}
	}

	res.Fills = make([]domain.OrderFill, len(orders))
	for i, o := range orders {
		res.Fills[i] = fill(o, matched[i], res.ClearingPrice)
	}
	return res
}

// fill derives the settlement outcome of one order.
func fill(o Order, qty, price uint64) domain.OrderFill {
	f := domain.OrderFill{OrderHash: o.Hash, Filled: qty, Status: domain.OrderStatusPending}

	if o.Available() == 0 {
		f.Status = domain.OrderStatusExpired
		f.Refund = o.EscrowRemaining
		return f
	}
	if qty == 0 {
		return f
	}

	f.EscrowUsed = qty
	if o.Side == domain.SideBuy {
		f.EscrowUsed = qty * price
	}

	after := o
	after.Filled += qty
	after.EscrowRemaining -= f.EscrowUsed
	if after.Available() == 0 {
		f.Status = domain.OrderStatusMatched
		f.Refund = after.EscrowRemaining
	}
	return f
}
