// Package stub provides deterministic verifier doubles for tests and local runs.
package stub

import (
	"sync"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
	"github.com/Kartikvyas1604/PhantomPool/internal/verify"
)

// Capability names one verifier of the suite.
type Capability string

const (
	Solvency       Capability = "solvency"
	Signature      Capability = "signature"
	VRF            Capability = "vrf"
	ThresholdShare Capability = "threshold_share"
	ShareProof     Capability = "share_proof"
	Execution      Capability = "execution"
	Evidence       Capability = "evidence"
)

// Verifier implements every verify capability. It accepts everything unless
// a capability has been switched to reject.
type Verifier struct {
	mu             sync.Mutex
	reject         map[Capability]bool
	rejectExecutor map[uint8]bool
	calls          map[Capability]int
}

// NewVerifier creates a verifier that accepts all proofs.
func NewVerifier() *Verifier {
	return &Verifier{
		reject:         make(map[Capability]bool),
		rejectExecutor: make(map[uint8]bool),
		calls:          make(map[Capability]int),
	}
}

// Suite returns a verify.Suite backed by v for every capability.
func (v *Verifier) Suite() verify.Suite {
	return verify.Suite{
		Solvency:       v,
		Signature:      v,
		VRF:            v,
		ThresholdShare: v,
		ShareProof:     v,
		Execution:      v,
		Evidence:       v,
	}
}

// Reject makes every call of the capability fail.
func (v *Verifier) Reject(c Capability) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.reject[c] = true
}

// Accept reverts Reject.
func (v *Verifier) Accept(c Capability) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.reject, c)
}

// RejectSharesFrom makes share proofs from one executor fail.
func (v *Verifier) RejectSharesFrom(index uint8) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rejectExecutor[index] = true
}

// Calls returns how many times the capability was invoked.
func (v *Verifier) Calls(c Capability) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls[c]
}

func (v *Verifier) check(c Capability) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls[c]++
	return !v.reject[c]
}

// VerifySolvency implements verify.SolvencyVerifier.
func (v *Verifier) VerifySolvency(_, _, _ []byte) bool {
	return v.check(Solvency)
}

// VerifySignature implements verify.SignatureVerifier.
func (v *Verifier) VerifySignature(_ domain.PublicKey, _ []byte, _ domain.Signature) bool {
	return v.check(Signature)
}

// VerifyVRF implements verify.VRFVerifier.
func (v *Verifier) VerifyVRF(_ [32]byte, _ []byte, _ [domain.VRFProofSize]byte, _ [domain.VRFOutputSize]byte) bool {
	return v.check(VRF)
}

// VerifyThresholdShare implements verify.ThresholdShareVerifier.
func (v *Verifier) VerifyThresholdShare(_ uint8, _ [32]byte, _ [33]byte) bool {
	return v.check(ThresholdShare)
}

// VerifyShareProof implements verify.ShareProofVerifier.
func (v *Verifier) VerifyShareProof(p verify.ShareProof) bool {
	ok := v.check(ShareProof)

	v.mu.Lock()
	defer v.mu.Unlock()
	return ok && !v.rejectExecutor[p.ExecutorIndex]
}

// VerifyExecution implements verify.ExecutionProofVerifier.
func (v *Verifier) VerifyExecution(_ verify.ExecutionProof) bool {
	return v.check(Execution)
}

// VerifyEvidence implements verify.EvidenceVerifier.
func (v *Verifier) VerifyEvidence(_ domain.ViolationType, _ uint8, _ []byte) bool {
	return v.check(Evidence)
}
