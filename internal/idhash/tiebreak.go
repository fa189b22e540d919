package idhash

import (
	"github.com/zeebo/blake3"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
)

// TieBreakKey derives an unpredictable but reproducible ordering key for an
// order within a round: BLAKE3(vrf_seed || order_hash).
func TieBreakKey(seed [32]byte, order domain.Hash) [32]byte {
	hasher := blake3.New()
	hasher.Write(seed[:])
	hasher.Write(order[:])

	var out [32]byte
	hasher.Sum(out[:0])
	return out
}
