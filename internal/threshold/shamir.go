// Package threshold recombines executor decryption shares.
//
// Order plaintexts are shared with Shamir's scheme over the ed25519 scalar
// field. A share value is the amount share followed by the price share, each a
// canonical little-endian scalar. The executor with committee index i holds
// the evaluation at x = i+1.
package threshold

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"

	"filippo.io/edwards25519"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
)

var (
	// ErrInsufficientShares is returned when fewer than threshold distinct executors contributed.
	ErrInsufficientShares = errors.New("insufficient shares")

	// ErrInvalidShare is returned for a share that is not two canonical scalars.
	ErrInvalidShare = errors.New("invalid share encoding")

	// ErrInconsistentShares is returned when the shares do not lie on one polynomial.
	ErrInconsistentShares = errors.New("inconsistent shares")

	// ErrPlaintextRange is returned when a recombined value does not fit in 64 bits.
	ErrPlaintextRange = errors.New("plaintext out of range")
)

const scalarSize = 32

// Shamir recombines shares by Lagrange interpolation.
type Shamir struct{}

type point struct {
	x      *edwards25519.Scalar
	amount *edwards25519.Scalar
	price  *edwards25519.Scalar
}

// Combine recombines one order's plaintext from its accepted shares.
// The result does not depend on the order of shares. Shares beyond the
// threshold must agree with the interpolated polynomial.
func (Shamir) Combine(threshold uint8, shares []domain.PartialDecryption) (domain.Plaintext, error) {
	if threshold == 0 {
		return domain.Plaintext{}, fmt.Errorf("%w: zero threshold", ErrInsufficientShares)
	}

	sorted := append([]domain.PartialDecryption(nil), shares...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ExecutorIndex < sorted[j].ExecutorIndex
	})

	points := make([]point, 0, len(sorted))
	for i, s := range sorted {
		if i > 0 && sorted[i-1].ExecutorIndex == s.ExecutorIndex {
			if string(sorted[i-1].Share) != string(s.Share) {
				return domain.Plaintext{}, fmt.Errorf("%w: executor %d sent two values", ErrInconsistentShares, s.ExecutorIndex)
			}
			continue
		}
		p, err := decodePoint(s)
		if err != nil {
			return domain.Plaintext{}, err
		}
		points = append(points, p)
	}

	t := int(threshold)
	if len(points) < t {
		return domain.Plaintext{}, fmt.Errorf("%w: have %d, need %d", ErrInsufficientShares, len(points), t)
	}

	basis := points[:t]
	zero := edwards25519.NewScalar()
	for _, extra := range points[t:] {
		if interpolate(basis, extra.x, func(p point) *edwards25519.Scalar { return p.amount }).Equal(extra.amount) != 1 ||
			interpolate(basis, extra.x, func(p point) *edwards25519.Scalar { return p.price }).Equal(extra.price) != 1 {
			return domain.Plaintext{}, ErrInconsistentShares
		}
	}

	amount, err := toUint64(interpolate(basis, zero, func(p point) *edwards25519.Scalar { return p.amount }))
	if err != nil {
		return domain.Plaintext{}, fmt.Errorf("amount: %w", err)
	}
	price, err := toUint64(interpolate(basis, zero, func(p point) *edwards25519.Scalar { return p.price }))
	if err != nil {
		return domain.Plaintext{}, fmt.Errorf("price: %w", err)
	}
	return domain.Plaintext{Amount: amount, Price: price}, nil
}

// interpolate evaluates at x the polynomial through basis.
func interpolate(basis []point, x *edwards25519.Scalar, y func(point) *edwards25519.Scalar) *edwards25519.Scalar {
	sum := edwards25519.NewScalar()
	for i, pi := range basis {
		num := scalarFromUint64(1)
		den := scalarFromUint64(1)
		for j, pj := range basis {
			if i == j {
				continue
			}
			num.Multiply(num, edwards25519.NewScalar().Subtract(x, pj.x))
			den.Multiply(den, edwards25519.NewScalar().Subtract(pi.x, pj.x))
		}
		term := edwards25519.NewScalar().Multiply(num, edwards25519.NewScalar().Invert(den))
		sum.MultiplyAdd(y(pi), term, sum)
	}
	return sum
}

func decodePoint(s domain.PartialDecryption) (point, error) {
	if len(s.Share) != domain.ShareSize {
		return point{}, fmt.Errorf("%w: executor %d: %d bytes", ErrInvalidShare, s.ExecutorIndex, len(s.Share))
	}
	amount, err := edwards25519.NewScalar().SetCanonicalBytes(s.Share[:scalarSize])
	if err != nil {
		return point{}, fmt.Errorf("%w: executor %d: %v", ErrInvalidShare, s.ExecutorIndex, err)
	}
	price, err := edwards25519.NewScalar().SetCanonicalBytes(s.Share[scalarSize:])
	if err != nil {
		return point{}, fmt.Errorf("%w: executor %d: %v", ErrInvalidShare, s.ExecutorIndex, err)
	}
	return point{x: scalarFromUint64(uint64(s.ExecutorIndex) + 1), amount: amount, price: price}, nil
}

func scalarFromUint64(v uint64) *edwards25519.Scalar {
	var b [scalarSize]byte
	binary.LittleEndian.PutUint64(b[:8], v)
	s, _ := edwards25519.NewScalar().SetCanonicalBytes(b[:])
	return s
}

func toUint64(s *edwards25519.Scalar) (uint64, error) {
	b := s.Bytes()
	for _, c := range b[8:] {
		if c != 0 {
			return 0, ErrPlaintextRange
		}
	}
	return binary.LittleEndian.Uint64(b[:8]), nil
}

// Split shares a plaintext among n executors so that any t recombine it.
// Element i is the share value for committee index i. A nil rnd uses crypto/rand.
func Split(plain domain.Plaintext, t, n int, rnd io.Reader) ([][]byte, error) {
	if t < 1 || n < t || n > 255 {
		return nil, fmt.Errorf("invalid threshold %d of %d", t, n)
	}
	if rnd == nil {
		rnd = rand.Reader
	}

	amountPoly, err := randomPoly(scalarFromUint64(plain.Amount), t, rnd)
	if err != nil {
		return nil, err
	}
	pricePoly, err := randomPoly(scalarFromUint64(plain.Price), t, rnd)
	if err != nil {
		return nil, err
	}

	out := make([][]byte, n)
	for i := 0; i < n; i++ {
		x := scalarFromUint64(uint64(i) + 1)
		value := make([]byte, 0, domain.ShareSize)
		value = append(value, evaluate(amountPoly, x).Bytes()...)
		value = append(value, evaluate(pricePoly, x).Bytes()...)
		out[i] = value
	}
	return out, nil
}

func randomPoly(secret *edwards25519.Scalar, t int, rnd io.Reader) ([]*edwards25519.Scalar, error) {
	coeffs := []*edwards25519.Scalar{secret}
	var buf [64]byte
	for i := 1; i < t; i++ {
		if _, err := io.ReadFull(rnd, buf[:]); err != nil {
			return nil, fmt.Errorf("read randomness: %w", err)
		}
		c, err := edwards25519.NewScalar().SetUniformBytes(buf[:])
		if err != nil {
			return nil, err
		}
		coeffs = append(coeffs, c)
	}
	return coeffs, nil
}

// evaluate uses Horner's rule.
func evaluate(coeffs []*edwards25519.Scalar, x *edwards25519.Scalar) *edwards25519.Scalar {
	acc := edwards25519.NewScalar()
	for i := len(coeffs) - 1; i >= 0; i-- {
		acc.MultiplyAdd(acc, x, coeffs[i])
	}
	return acc
}
