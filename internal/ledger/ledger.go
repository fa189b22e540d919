// Package ledger is an in-memory token ledger. It implements the transfer
// capability the engine uses for escrow, settlement and stake movements.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
)

var (
	// ErrInsufficientFunds is returned when the source balance is too low.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidTransfer is returned for malformed transfers.
	ErrInvalidTransfer = errors.New("invalid transfer")

	// ErrOverflow is returned when a credit would overflow a balance.
	ErrOverflow = errors.New("balance overflow")
)

// Ledger holds per-account, per-asset balances.
type Ledger struct {
	mu       sync.Mutex
	balances map[string]map[string]uint64 // account -> asset -> amount
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{balances: make(map[string]map[string]uint64)}
}

// Transfer moves t.Amount of t.Asset from t.From to t.To.
func (l *Ledger) Transfer(_ context.Context, t domain.Transfer) error {
	if t.From == "" || t.To == "" || t.Asset == "" || t.From == t.To {
		return fmt.Errorf("%w: %s -> %s (%s)", ErrInvalidTransfer, t.From, t.To, t.Asset)
	}
	if t.Amount == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	from := l.balances[t.From][t.Asset]
	if from < t.Amount {
		return fmt.Errorf("%w: %s has %d %s, needs %d", ErrInsufficientFunds, t.From, from, t.Asset, t.Amount)
	}
	to := l.balances[t.To][t.Asset]
	if to > math.MaxUint64-t.Amount {
		return fmt.Errorf("%w: %s", ErrOverflow, t.To)
	}

	l.set(t.From, t.Asset, from-t.Amount)
	l.set(t.To, t.Asset, to+t.Amount)
	return nil
}

// Credit mints amount of asset into account.
func (l *Ledger) Credit(account, asset string, amount uint64) error {
	if account == "" || asset == "" {
		return ErrInvalidTransfer
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cur := l.balances[account][asset]
	if cur > math.MaxUint64-amount {
		return fmt.Errorf("%w: %s", ErrOverflow, account)
	}
	l.set(account, asset, cur+amount)
	return nil
}

// Balance returns the balance of asset held by account.
func (l *Ledger) Balance(account, asset string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account][asset]
}

// Holding is one non-zero balance.
type Holding struct {
	Asset  string `json:"asset"`
	Amount uint64 `json:"amount"`
}

// Holdings returns the non-zero balances of account ordered by asset.
func (l *Ledger) Holdings(account string) []Holding {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Holding, 0, len(l.balances[account]))
	for asset, amount := range l.balances[account] {
		out = append(out, Holding{Asset: asset, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out
}

// Supply returns the total amount of asset across all accounts.
func (l *Ledger) Supply(asset string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	var total uint64
	for _, assets := range l.balances {
		total += assets[asset]
	}
	return total
}

func (l *Ledger) set(account, asset string, amount uint64) {
	assets, ok := l.balances[account]
	if !ok {
		assets = make(map[string]uint64)
		l.balances[account] = assets
	}
	if amount == 0 {
		delete(assets, asset)
		return
	}
	assets[asset] = amount
}
