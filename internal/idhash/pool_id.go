package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputePoolID computes a deterministic pool_id using SHA256.
// Formula: SHA256(pool|token_pair)
// Returns hex-encoded hash (64 characters). One pool exists per token pair.
func ComputePoolID(tokenPair string) string {
	data := fmt.Sprintf("pool|%s", tokenPair)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// VRFInput is the message the round proposer evaluates the pool VRF on.
// Formula: SHA256(vrf|pool_id|round_number)
func VRFInput(poolID string, roundNumber uint64) []byte {
	data := fmt.Sprintf("vrf|%s|%d", poolID, roundNumber)

	hash := sha256.Sum256([]byte(data))
	return hash[:]
}
