package idhash

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
)

// ComputeExecutionDigest commits to a round's match set.
// Formula: SHA256(exec|pool_id|round|clearing_price|buy:sell:amount:price|...)
// Trade order is significant.
func ComputeExecutionDigest(poolID string, round uint64, clearingPrice uint64, trades []domain.TradePair) domain.Hash {
	var b strings.Builder
	fmt.Fprintf(&b, "exec|%s|%d|%d", poolID, round, clearingPrice)
	for _, t := range trades {
		fmt.Fprintf(&b, "|%s:%s:%d:%d", t.BuyOrder, t.SellOrder, t.MatchedAmount, t.ExecutionPrice)
	}

	return sha256.Sum256([]byte(b.String()))
}
