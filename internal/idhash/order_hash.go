package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
)

// OrderContent is the immutable part of an order covered by its hash.
type OrderContent struct {
	PoolID          string
	Trader          domain.PublicKey
	Side            domain.Side
	EncryptedAmount []byte
	EncryptedPrice  []byte
	Nonce           domain.Nonce
	Deposit         uint64
}

// ComputeOrderHash computes the deterministic order hash using SHA256.
// Formula: SHA256(pool_id|trader|side|hex(enc_amount)|hex(enc_price)|hex(nonce)|deposit)
func ComputeOrderHash(c OrderContent) domain.Hash {
	data := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%d",
		c.PoolID,
		c.Trader.String(),
		string(c.Side),
		hex.EncodeToString(c.EncryptedAmount),
		hex.EncodeToString(c.EncryptedPrice),
		c.Nonce.String(),
		c.Deposit,
	)

	return sha256.Sum256([]byte(data))
}

// CancellationMessage is the message a trader signs to cancel an order.
// Formula: SHA256(cancel|order_hash)
func CancellationMessage(orderHash domain.Hash) []byte {
	hash := sha256.Sum256([]byte("cancel|" + orderHash.String()))
	return hash[:]
}
