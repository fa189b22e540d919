package domain

import (
	"fmt"
	"strings"
)

// Accounts are addressed by content-derived keys.

// EscrowAccount holds an order deposit.
func EscrowAccount(poolID string, order Hash) string {
	return fmt.Sprintf("escrow:%s:%s", poolID, order)
}

// StakeAccount holds an executor stake.
func StakeAccount(poolID string, index uint8) string {
	return fmt.Sprintf("stake:%s:%d", poolID, index)
}

// TreasuryAccount collects trading fees, cancellation fees and slashed stake.
func TreasuryAccount(poolID string) string {
	return "treasury:" + poolID
}

// WalletAccount is a participant's free balance.
func WalletAccount(owner PublicKey) string {
	return "wallet:" + owner.String()
}

// Transfer moves amount of asset between two accounts.
type Transfer struct {
	From   string
	To     string
	Asset  string
	Amount uint64
}

// SplitTokenPair returns the base and quote symbols of a "BASE/QUOTE" pair.
func SplitTokenPair(pair string) (base, quote string, ok bool) {
	base, quote, ok = strings.Cut(pair, "/")
	if !ok || base == "" || quote == "" || base == quote || strings.Contains(quote, "/") {
		return "", "", false
	}
	return base, quote, true
}

// DepositAsset is the asset escrowed by an order of the given side.
// Buyers lock quote, sellers lock base.
func DepositAsset(pair string, side Side) string {
	base, quote, _ := SplitTokenPair(pair)
	if side == SideBuy {
		return quote
	}
	return base
}

// StakeAsset is the asset executors stake in; the quote asset of the pair.
func StakeAsset(pair string) string {
	_, quote, _ := SplitTokenPair(pair)
	return quote
}
