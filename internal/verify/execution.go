package verify

import (
	"crypto/subtle"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
	"github.com/Kartikvyas1604/PhantomPool/internal/idhash"
)

// ExecutionDigest accepts an execution proof whose leading 32 bytes are the
// execution digest of the round's match set. The remaining bytes are reserved
// for a succinct proof and are not inspected.
type ExecutionDigest struct{}

// VerifyExecution implements ExecutionProofVerifier.
func (ExecutionDigest) VerifyExecution(p ExecutionProof) bool {
	digest := idhash.ComputeExecutionDigest(p.PoolID, p.Round, p.ClearingPrice, p.Trades)
	return subtle.ConstantTimeCompare(p.Proof[:len(digest)], digest[:]) == 1
}

// BuildExecutionProof returns the proof ExecutionDigest accepts for a match set.
func BuildExecutionProof(poolID string, round, clearingPrice uint64, trades []domain.TradePair) [domain.ExecutionProofSize]byte {
	var proof [domain.ExecutionProofSize]byte
	digest := idhash.ComputeExecutionDigest(poolID, round, clearingPrice, trades)
	copy(proof[:], digest[:])
	return proof
}
