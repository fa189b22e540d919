package threshold

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
)

func partials(values [][]byte, indices ...uint8) []domain.PartialDecryption {
	out := make([]domain.PartialDecryption, 0, len(indices))
	for _, i := range indices {
		out = append(out, domain.PartialDecryption{ExecutorIndex: i, Share: values[i]})
	}
	return out
}

func TestShamir_RoundTrip(t *testing.T) {
	plain := domain.Plaintext{Amount: 10, Price: 105}
	values, err := Split(plain, 3, 5, nil)
	require.NoError(t, err)
	require.Len(t, values, 5)
	for _, v := range values {
		assert.Len(t, v, domain.ShareSize)
	}

	tests := []struct {
		name    string
		indices []uint8
	}{
		{"first three", []uint8{0, 1, 2}},
		{"last three", []uint8{2, 3, 4}},
		{"unordered", []uint8{4, 0, 3}},
		{"all five", []uint8{0, 1, 2, 3, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Shamir{}.Combine(3, partials(values, tt.indices...))
			require.NoError(t, err)
			assert.Equal(t, plain, got)
		})
	}
}

func TestShamir_InsufficientShares(t *testing.T) {
	values, err := Split(domain.Plaintext{Amount: 1, Price: 2}, 3, 5, nil)
	require.NoError(t, err)

	_, err = Shamir{}.Combine(3, partials(values, 0, 1))
	assert.ErrorIs(t, err, ErrInsufficientShares)

	// A repeated executor does not count twice
	dup := append(partials(values, 0, 1), partials(values, 1)...)
	_, err = Shamir{}.Combine(3, dup)
	assert.ErrorIs(t, err, ErrInsufficientShares)
}

func TestShamir_InconsistentShares(t *testing.T) {
	values, err := Split(domain.Plaintext{Amount: 10, Price: 105}, 3, 5, nil)
	require.NoError(t, err)

	forged := append([]byte(nil), values[3]...)
	forged[0] ^= 0x01
	shares := partials(values, 0, 1, 2)
	shares = append(shares, domain.PartialDecryption{ExecutorIndex: 3, Share: forged})

	_, err = Shamir{}.Combine(3, shares)
	assert.ErrorIs(t, err, ErrInconsistentShares)
}

func TestShamir_InvalidEncoding(t *testing.T) {
	values, err := Split(domain.Plaintext{Amount: 10, Price: 105}, 3, 5, nil)
	require.NoError(t, err)

	shares := partials(values, 0, 1)
	shares = append(shares, domain.PartialDecryption{ExecutorIndex: 2, Share: []byte{1, 2, 3}})
	_, err = Shamir{}.Combine(3, shares)
	assert.ErrorIs(t, err, ErrInvalidShare)

	nonCanonical := make([]byte, domain.ShareSize)
	for i := range nonCanonical[:32] {
		nonCanonical[i] = 0xff
	}
	shares[2].Share = nonCanonical
	_, err = Shamir{}.Combine(3, shares)
	assert.ErrorIs(t, err, ErrInvalidShare)
}

func TestShamir_TamperedBasisChangesPlaintext(t *testing.T) {
	values, err := Split(domain.Plaintext{Amount: 10, Price: 105}, 3, 3, nil)
	require.NoError(t, err)

	values[0][0] ^= 0x01
	got, err := Shamir{}.Combine(3, partials(values, 0, 1, 2))
	if err == nil {
		assert.NotEqual(t, domain.Plaintext{Amount: 10, Price: 105}, got)
	} else {
		assert.ErrorIs(t, err, ErrPlaintextRange)
	}
}

func TestSplit_InvalidParameters(t *testing.T) {
	_, err := Split(domain.Plaintext{}, 0, 3, nil)
	assert.Error(t, err)
	_, err = Split(domain.Plaintext{}, 4, 3, nil)
	assert.Error(t, err)
}

func TestShamir_OrderIndependentProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		threshold := rapid.IntRange(domain.MinThreshold, domain.MaxTotalExecutors).Draw(t, "t")
		n := rapid.IntRange(threshold, domain.MaxTotalExecutors).Draw(t, "n")
		plain := domain.Plaintext{
			Amount: rapid.Uint64().Draw(t, "amount"),
			Price:  rapid.Uint64().Draw(t, "price"),
		}

		values, err := Split(plain, threshold, n, nil)
		if err != nil {
			t.Fatalf("split: %v", err)
		}

		all := make([]uint8, n)
		for i := range all {
			all[i] = uint8(i)
		}
		order := rapid.Permutation(all).Draw(t, "order")
		count := rapid.IntRange(threshold, n).Draw(t, "count")

		got, err := Shamir{}.Combine(uint8(threshold), partials(values, order[:count]...))
		if err != nil {
			t.Fatalf("combine: %v", err)
		}
		if got != plain {
			t.Fatalf("got %+v, want %+v", got, plain)
		}
	})
}
