// Package verify defines the cryptographic capabilities the engine trusts
// and the backends that implement them.
package verify

import (
	"errors"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
)

// SolvencyVerifier checks that an encrypted amount is backed by funds the
// submitter controls, under the pool's encryption key.
type SolvencyVerifier interface {
	VerifySolvency(encryptedAmount, proof, poolKey []byte) bool
}

// SignatureVerifier checks a participant signature over a message.
type SignatureVerifier interface {
	VerifySignature(signer domain.PublicKey, message []byte, sig domain.Signature) bool
}

// VRFVerifier checks that output is the VRF evaluation of alpha under publicKey.
type VRFVerifier interface {
	VerifyVRF(publicKey [32]byte, alpha []byte, proof [domain.VRFProofSize]byte, output [domain.VRFOutputSize]byte) bool
}

// ThresholdShareVerifier checks an executor's encrypted key share against
// its verification key and committee index.
type ThresholdShareVerifier interface {
	VerifyThresholdShare(index uint8, share [32]byte, verificationKey [33]byte) bool
}

// ShareProof is a batch of decryption shares from one executor and the proof
// that they were computed with the executor's key share.
type ShareProof struct {
	PoolID          string
	Round           uint64
	ExecutorIndex   uint8
	VerificationKey [33]byte
	OrderHashes     []domain.Hash // round snapshot
	Shares          []domain.Share
	Proof           []byte
}

// ShareProofVerifier checks a batch of partial decryptions jointly.
type ShareProofVerifier interface {
	VerifyShareProof(p ShareProof) bool
}

// ExecutionProof binds a proposed match set to a round.
type ExecutionProof struct {
	PoolID        string
	Round         uint64
	ClearingPrice uint64
	Trades        []domain.TradePair
	Proof         [domain.ExecutionProofSize]byte
}

// ExecutionProofVerifier checks that a match set is the one the round computed.
type ExecutionProofVerifier interface {
	VerifyExecution(p ExecutionProof) bool
}

// EvidenceVerifier checks slashing evidence against a violation and executor.
type EvidenceVerifier interface {
	VerifyEvidence(violation domain.ViolationType, executorIndex uint8, evidence []byte) bool
}

// Suite bundles every capability the engine needs.
type Suite struct {
	Solvency       SolvencyVerifier
	Signature      SignatureVerifier
	VRF            VRFVerifier
	ThresholdShare ThresholdShareVerifier
	ShareProof     ShareProofVerifier
	Execution      ExecutionProofVerifier
	Evidence       EvidenceVerifier
}

// ErrIncompleteSuite is returned when a capability is missing.
var ErrIncompleteSuite = errors.New("verify: incomplete verifier suite")

// Validate checks that every capability is set.
func (s Suite) Validate() error {
	if s.Solvency == nil || s.Signature == nil || s.VRF == nil || s.ThresholdShare == nil ||
		s.ShareProof == nil || s.Execution == nil || s.Evidence == nil {
		return ErrIncompleteSuite
	}
	return nil
}
