package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViolationType_SlashAmount(t *testing.T) {
	tests := []struct {
		violation ViolationType
		stake     uint64
		want      uint64
	}{
		{ViolationInvalidDecryption, 1_000_000_000, 100_000_000},
		{ViolationMissedHeartbeat, 1_000_000_000, 10_000_000},
		{ViolationDoubleSpending, 1_000_000_000, 500_000_000},
		{ViolationMaliciousMatching, 1_000_000_000, 250_000_000},
		{ViolationInvalidDecryption, 99, 9},
		{ViolationDoubleSpending, 0, 0},
		{ViolationMissedHeartbeat, ^uint64(0), ^uint64(0) / 100},
	}

	for _, tt := range tests {
		t.Run(tt.violation.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.violation.SlashAmount(tt.stake))
		})
	}
}

func TestViolationType_IsValid(t *testing.T) {
	assert.True(t, ViolationDoubleSpending.IsValid())
	assert.False(t, ViolationType("TARDINESS").IsValid())
	assert.Zero(t, ViolationType("TARDINESS").SlashPercent())
}

func TestSplitTokenPair(t *testing.T) {
	base, quote, ok := SplitTokenPair("SOL/USDC")
	require.True(t, ok)
	assert.Equal(t, "SOL", base)
	assert.Equal(t, "USDC", quote)

	for _, bad := range []string{"", "SOL", "SOL/", "/USDC", "SOL/SOL", "A/B/C"} {
		_, _, ok := SplitTokenPair(bad)
		assert.False(t, ok, bad)
	}

	assert.Equal(t, "USDC", DepositAsset("SOL/USDC", SideBuy))
	assert.Equal(t, "SOL", DepositAsset("SOL/USDC", SideSell))
	assert.Equal(t, "USDC", StakeAsset("SOL/USDC"))
}

func TestRound_Quorum(t *testing.T) {
	r := &Round{
		Threshold:   3,
		OrderHashes: []Hash{{1}, {2}},
	}
	for _, exec := range []uint8{0, 1, 2} {
		r.Partials = append(r.Partials, PartialDecryption{ExecutorIndex: exec, OrderIndex: 0})
	}
	// duplicate executor does not add quorum weight
	r.Partials = append(r.Partials,
		PartialDecryption{ExecutorIndex: 0, OrderIndex: 1},
		PartialDecryption{ExecutorIndex: 0, OrderIndex: 1},
		PartialDecryption{ExecutorIndex: 4, OrderIndex: 1},
	)

	assert.Equal(t, 3, r.QuorumCount(0))
	assert.Equal(t, 2, r.QuorumCount(1))
	assert.False(t, r.HasFullQuorum())
	assert.True(t, r.HasShare(4, 1))
	assert.False(t, r.HasShare(4, 0))

	r.Partials = append(r.Partials, PartialDecryption{ExecutorIndex: 3, OrderIndex: 1})
	assert.True(t, r.HasFullQuorum())
	assert.Equal(t, uint64(3), r.Contributions()[0])
	assert.Equal(t, 1, r.IndexOf(Hash{2}))
	assert.Equal(t, -1, r.IndexOf(Hash{9}))
}

func TestRound_CloneIsDeep(t *testing.T) {
	r := &Round{
		OrderHashes: []Hash{{1}},
		Partials:    []PartialDecryption{{Share: []byte{1, 2}}},
	}
	c := r.Clone()
	c.OrderHashes[0] = Hash{7}
	c.Partials[0].Share[0] = 9

	assert.Equal(t, Hash{1}, r.OrderHashes[0])
	assert.Equal(t, byte(1), r.Partials[0].Share[0])
}

func TestPublicKey_TextRoundTrip(t *testing.T) {
	var pk PublicKey
	for i := range pk {
		pk[i] = byte(i + 1)
	}
	text, err := pk.MarshalText()
	require.NoError(t, err)

	var parsed PublicKey
	require.NoError(t, parsed.UnmarshalText(text))
	assert.Equal(t, pk, parsed)

	_, err = ParsePublicKey("not-base58-0OIl")
	assert.Error(t, err)
	_, err = ParsePublicKey("3yZe7d")
	assert.Error(t, err, "short key must be rejected")
}

func TestParseHash(t *testing.T) {
	h := Hash{0xab, 0xcd}
	parsed, err := ParseHash(h.String())
	require.NoError(t, err)
	assert.Equal(t, h, parsed)

	_, err = ParseHash("abcd")
	assert.Error(t, err)
}
