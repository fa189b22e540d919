package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
	"github.com/Kartikvyas1604/PhantomPool/internal/idhash"
)

func buy(id byte, amount, price uint64) Order {
	return Order{
		Hash:            domain.Hash{id},
		Side:            domain.SideBuy,
		Plaintext:       domain.Plaintext{Amount: amount, Price: price},
		Valid:           true,
		EscrowRemaining: amount * price,
	}
}

func sell(id byte, amount, price uint64) Order {
	return Order{
		Hash:            domain.Hash{id},
		Side:            domain.SideSell,
		Plaintext:       domain.Plaintext{Amount: amount, Price: price},
		Valid:           true,
		EscrowRemaining: amount,
	}
}

func TestMatch_ThreeOrderScenario(t *testing.T) {
	orders := []Order{buy(1, 10, 110), buy(2, 10, 105), sell(3, 10, 100)}

	res := Match(orders, [32]byte{42})

	require.Len(t, res.Trades, 1)
	assert.Equal(t, domain.Hash{1}, res.Trades[0].BuyOrder, "sell pairs with the higher buy")
	assert.Equal(t, domain.Hash{3}, res.Trades[0].SellOrder)
	assert.Equal(t, uint64(10), res.Trades[0].MatchedAmount)
	assert.Equal(t, uint64(105), res.ClearingPrice, "floor midpoint of 110 and 100")
	assert.Equal(t, uint64(105), res.Trades[0].ExecutionPrice)
	assert.Equal(t, uint64(10), res.Volume)

	require.Len(t, res.Fills, 3)
	assert.Equal(t, domain.OrderStatusMatched, res.Fills[0].Status)
	assert.Equal(t, uint64(1050), res.Fills[0].EscrowUsed)
	assert.Equal(t, uint64(50), res.Fills[0].Refund, "price improvement is refunded")

	assert.Equal(t, domain.OrderStatusPending, res.Fills[1].Status, "105 buy stays for a later round")
	assert.Zero(t, res.Fills[1].Filled)

	assert.Equal(t, domain.OrderStatusMatched, res.Fills[2].Status)
	assert.Equal(t, uint64(10), res.Fills[2].EscrowUsed)
	assert.Zero(t, res.Fills[2].Refund)
}

func TestMatch_NoCross(t *testing.T) {
	res := Match([]Order{buy(1, 10, 90), sell(2, 10, 100)}, [32]byte{})
	assert.Empty(t, res.Trades)
	assert.Zero(t, res.ClearingPrice)
	for _, f := range res.Fills {
		assert.Equal(t, domain.OrderStatusPending, f.Status)
	}
}

func TestMatch_PartialFillLeavesResidualPending(t *testing.T) {
	res := Match([]Order{buy(1, 4, 100), sell(2, 10, 100)}, [32]byte{})

	require.Len(t, res.Trades, 1)
	assert.Equal(t, uint64(4), res.Trades[0].MatchedAmount)
	assert.Equal(t, domain.OrderStatusMatched, res.Fills[0].Status)
	assert.Equal(t, domain.OrderStatusPending, res.Fills[1].Status)
	assert.Equal(t, uint64(4), res.Fills[1].Filled)
}

func TestMatch_MultiLevelClearingUsesLastCross(t *testing.T) {
	orders := []Order{
		buy(1, 5, 120),
		buy(2, 5, 104),
		sell(3, 5, 95),
		sell(4, 5, 100),
	}
	res := Match(orders, [32]byte{})

	require.Len(t, res.Trades, 2)
	assert.Equal(t, uint64(102), res.ClearingPrice, "midpoint of the marginal pair 104/100")
	for _, tr := range res.Trades {
		assert.Equal(t, res.ClearingPrice, tr.ExecutionPrice)
	}
}

func TestMatch_EscrowBoundsBuyQuantity(t *testing.T) {
	b := buy(1, 10, 100)
	b.EscrowRemaining = 550 // can afford 5 at the limit

	res := Match([]Order{b, sell(2, 10, 100)}, [32]byte{})
	require.Len(t, res.Trades, 1)
	assert.Equal(t, uint64(5), res.Trades[0].MatchedAmount)
	assert.Equal(t, domain.OrderStatusMatched, res.Fills[0].Status, "escrow exhausted")
	assert.Equal(t, uint64(50), res.Fills[0].Refund)
}

func TestMatch_InvalidOrdersExpire(t *testing.T) {
	invalid := sell(2, 10, 100)
	invalid.Valid = false
	zero := buy(3, 0, 100)

	res := Match([]Order{buy(1, 10, 110), invalid, zero}, [32]byte{})

	assert.Empty(t, res.Trades)
	assert.Equal(t, domain.OrderStatusPending, res.Fills[0].Status)
	assert.Equal(t, domain.OrderStatusExpired, res.Fills[1].Status)
	assert.Equal(t, uint64(10), res.Fills[1].Refund)
	assert.Equal(t, domain.OrderStatusExpired, res.Fills[2].Status)
}

func TestMatch_TiesBrokenBySeedNotInputOrder(t *testing.T) {
	a, b := buy(1, 10, 100), buy(2, 10, 100)
	s := sell(3, 10, 100)

	for _, seed := range [][32]byte{{1}, {2}, {3}, {4}} {
		want := domain.Hash{1}
		ka, kb := idhash.TieBreakKey(seed, a.Hash), idhash.TieBreakKey(seed, b.Hash)
		if string(kb[:]) < string(ka[:]) {
			want = domain.Hash{2}
		}

		forward := Match([]Order{a, b, s}, seed)
		reverse := Match([]Order{b, a, s}, seed)
		require.Len(t, forward.Trades, 1)
		assert.Equal(t, want, forward.Trades[0].BuyOrder)
		assert.Equal(t, forward.Trades, reverse.Trades, "input order must not matter")
	}
}

func genOrder(t *rapid.T, label string, id byte) Order {
	side := rapid.SampledFrom([]domain.Side{domain.SideBuy, domain.SideSell}).Draw(t, label+"_side")
	o := Order{
		Hash:      domain.Hash{id},
		Side:      side,
		Plaintext: domain.Plaintext{Amount: rapid.Uint64Range(0, 1000).Draw(t, label+"_amount"), Price: rapid.Uint64Range(0, 200).Draw(t, label+"_price")},
		Valid:     rapid.Float64Range(0, 1).Draw(t, label+"_valid") < 0.95,
		Filled:    rapid.Uint64Range(0, 50).Draw(t, label+"_filled"),
	}
	o.EscrowRemaining = rapid.Uint64Range(0, 200_000).Draw(t, label+"_escrow")
	return o
}

func TestMatch_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 24).Draw(t, "n")
		orders := make([]Order, n)
		for i := range orders {
			orders[i] = genOrder(t, "o", byte(i))
		}
		var seed [32]byte
		seed[0] = rapid.Byte().Draw(t, "seed")

		res := Match(orders, seed)

		byHash := make(map[domain.Hash]Order)
		for _, o := range orders {
			byHash[o.Hash] = o
		}

		matched := make(map[domain.Hash]uint64)
		var buyVol, sellVol uint64
		for _, tr := range res.Trades {
			if tr.MatchedAmount == 0 {
				t.Fatalf("zero quantity trade")
			}
			if tr.ExecutionPrice != res.ClearingPrice {
				t.Fatalf("pair price %d differs from clearing %d", tr.ExecutionPrice, res.ClearingPrice)
			}
			b, s := byHash[tr.BuyOrder], byHash[tr.SellOrder]
			if b.Side != domain.SideBuy || s.Side != domain.SideSell {
				t.Fatalf("pair sides wrong")
			}
			if res.ClearingPrice > b.Plaintext.Price || res.ClearingPrice < s.Plaintext.Price {
				t.Fatalf("clearing price %d outside limits buy %d sell %d", res.ClearingPrice, b.Plaintext.Price, s.Plaintext.Price)
			}
			matched[tr.BuyOrder] += tr.MatchedAmount
			matched[tr.SellOrder] += tr.MatchedAmount
			buyVol += tr.MatchedAmount
			sellVol += tr.MatchedAmount
		}
		if buyVol != sellVol || buyVol != res.Volume {
			t.Fatalf("volume mismatch buy %d sell %d total %d", buyVol, sellVol, res.Volume)
		}

		for i, o := range orders {
			if matched[o.Hash] > o.Available() {
				t.Fatalf("order %d matched %d over available %d", i, matched[o.Hash], o.Available())
			}
			f := res.Fills[i]
			if f.Filled != matched[o.Hash] {
				t.Fatalf("fill %d mismatch", i)
			}
			if f.EscrowUsed+f.Refund > o.EscrowRemaining {
				t.Fatalf("order %d spends %d+%d of %d escrow", i, f.EscrowUsed, f.Refund, o.EscrowRemaining)
			}
			if f.Status == domain.OrderStatusPending && f.Refund != 0 {
				t.Fatalf("pending order refunded")
			}
		}
	})
}
