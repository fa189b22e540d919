package verify

import (
	"crypto/ed25519"
	"crypto/sha512"
	"errors"
	"fmt"

	"filippo.io/edwards25519"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
)

// ECVRF-EDWARDS25519-SHA512-TAI (RFC 9381, suite 0x03).
//
// Proof layout: Gamma (32) || c (16) || s (32).
// The round seed is the first 32 bytes of the 64-byte VRF hash output.
const (
	vrfSuite     = 0x03
	vrfChallenge = 16
)

var errInvalidVRFKey = errors.New("invalid VRF public key")

// ECVRF verifies round-proposer VRF proofs.
type ECVRF struct{}

// ValidateVRFKey checks that key decodes to a curve point outside the small-order subgroup.
func ValidateVRFKey(key [32]byte) error {
	y, err := new(edwards25519.Point).SetBytes(key[:])
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalidVRFKey, err)
	}
	if new(edwards25519.Point).MultByCofactor(y).Equal(edwards25519.NewIdentityPoint()) == 1 {
		return fmt.Errorf("%w: small order point", errInvalidVRFKey)
	}
	return nil
}

// VerifyVRF implements VRFVerifier.
func (ECVRF) VerifyVRF(publicKey [32]byte, alpha []byte, proof [domain.VRFProofSize]byte, output [domain.VRFOutputSize]byte) bool {
	if ValidateVRFKey(publicKey) != nil {
		return false
	}
	y, _ := new(edwards25519.Point).SetBytes(publicKey[:])

	gamma, err := new(edwards25519.Point).SetBytes(proof[:32])
	if err != nil {
		return false
	}
	var cBytes [32]byte
	copy(cBytes[:], proof[32:32+vrfChallenge])
	c, err := edwards25519.NewScalar().SetCanonicalBytes(cBytes[:])
	if err != nil {
		return false
	}
	s, err := edwards25519.NewScalar().SetCanonicalBytes(proof[32+vrfChallenge:])
	if err != nil {
		return false
	}

	h, ok := encodeToCurve(publicKey[:], alpha)
	if !ok {
		return false
	}

	negC := edwards25519.NewScalar().Negate(c)
	// U = s*B - c*Y
	u := new(edwards25519.Point).VarTimeDoubleScalarBaseMult(negC, y, s)
	// V = s*H - c*Gamma
	sh := new(edwards25519.Point).ScalarMult(s, h)
	cg := new(edwards25519.Point).ScalarMult(c, gamma)
	v := new(edwards25519.Point).Subtract(sh, cg)

	expected := challenge(publicKey[:], h, gamma, u, v)
	if expected != [vrfChallenge]byte(proof[32:32+vrfChallenge]) {
		return false
	}

	beta := proofToHash(gamma)
	return [domain.VRFOutputSize]byte(beta[:domain.VRFOutputSize]) == output
}

// ProveVRF evaluates the VRF on alpha with key. Used by round proposers and tests.
func ProveVRF(key ed25519.PrivateKey, alpha []byte) (proof [domain.VRFProofSize]byte, output [domain.VRFOutputSize]byte, err error) {
	if len(key) != ed25519.PrivateKeySize {
		return proof, output, errors.New("invalid ed25519 private key")
	}
	digest := sha512.Sum512(key.Seed())
	x, err := edwards25519.NewScalar().SetBytesWithClamping(digest[:32])
	if err != nil {
		return proof, output, err
	}
	pk := key.Public().(ed25519.PublicKey)

	h, ok := encodeToCurve(pk, alpha)
	if !ok {
		return proof, output, errors.New("encode to curve failed")
	}
	gamma := new(edwards25519.Point).ScalarMult(x, h)

	nonce := sha512.New()
	nonce.Write(digest[32:])
	nonce.Write(h.Bytes())
	k, err := edwards25519.NewScalar().SetUniformBytes(nonce.Sum(nil))
	if err != nil {
		return proof, output, err
	}

	kb := new(edwards25519.Point).ScalarBaseMult(k)
	kh := new(edwards25519.Point).ScalarMult(k, h)
	cTrunc := challenge(pk, h, gamma, kb, kh)

	var cBytes [32]byte
	copy(cBytes[:], cTrunc[:])
	c, err := edwards25519.NewScalar().SetCanonicalBytes(cBytes[:])
	if err != nil {
		return proof, output, err
	}
	s := edwards25519.NewScalar().MultiplyAdd(c, x, k)

	copy(proof[:32], gamma.Bytes())
	copy(proof[32:32+vrfChallenge], cTrunc[:])
	copy(proof[32+vrfChallenge:], s.Bytes())

	beta := proofToHash(gamma)
	copy(output[:], beta[:domain.VRFOutputSize])
	return proof, output, nil
}

// encodeToCurve is the try-and-increment hash to curve, salted with the public key.
func encodeToCurve(salt, alpha []byte) (*edwards25519.Point, bool) {
	identity := edwards25519.NewIdentityPoint()
	for ctr := 0; ctr < 256; ctr++ {
		h := sha512.New()
		h.Write([]byte{vrfSuite, 0x01})
		h.Write(salt)
		h.Write(alpha)
		h.Write([]byte{byte(ctr), 0x00})
		sum := h.Sum(nil)

		p, err := new(edwards25519.Point).SetBytes(sum[:32])
		if err != nil {
			continue
		}
		p.MultByCofactor(p)
		if p.Equal(identity) == 1 {
			continue
		}
		return p, true
	}
	return nil, false
}

func challenge(pk []byte, points ...*edwards25519.Point) [vrfChallenge]byte {
	h := sha512.New()
	h.Write([]byte{vrfSuite, 0x02})
	h.Write(pk)
	for _, p := range points {
		h.Write(p.Bytes())
	}
	h.Write([]byte{0x00})

	var c [vrfChallenge]byte
	copy(c[:], h.Sum(nil))
	return c
}

func proofToHash(gamma *edwards25519.Point) [64]byte {
	cg := new(edwards25519.Point).MultByCofactor(gamma)

	h := sha512.New()
	h.Write([]byte{vrfSuite, 0x03})
	h.Write(cg.Bytes())
	h.Write([]byte{0x00})

	var out [64]byte
	copy(out[:], h.Sum(nil))
	return out
}
