package verify

import (
	"crypto/ed25519"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
)

// Ed25519 verifies participant signatures. Identities are ed25519 public keys.
type Ed25519 struct{}

// VerifySignature implements SignatureVerifier.
func (Ed25519) VerifySignature(signer domain.PublicKey, message []byte, sig domain.Signature) bool {
	return ed25519.Verify(ed25519.PublicKey(signer[:]), message, sig[:])
}

// Sign produces a domain.Signature with key. Used by clients and tests.
func Sign(key ed25519.PrivateKey, message []byte) domain.Signature {
	var sig domain.Signature
	copy(sig[:], ed25519.Sign(key, message))
	return sig
}

// PublicKeyOf returns the identity of key.
func PublicKeyOf(key ed25519.PrivateKey) domain.PublicKey {
	var pk domain.PublicKey
	copy(pk[:], key.Public().(ed25519.PublicKey))
	return pk
}
