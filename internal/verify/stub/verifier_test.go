package stub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
	"github.com/Kartikvyas1604/PhantomPool/internal/verify"
)

func TestVerifier_Toggles(t *testing.T) {
	v := NewVerifier()
	suite := v.Suite()
	require.NoError(t, suite.Validate())

	assert.True(t, suite.Solvency.VerifySolvency(nil, nil, nil))
	v.Reject(Solvency)
	assert.False(t, suite.Solvency.VerifySolvency(nil, nil, nil))
	assert.True(t, suite.Evidence.VerifyEvidence(domain.ViolationDoubleSpending, 0, nil), "other capabilities unaffected")
	v.Accept(Solvency)
	assert.True(t, suite.Solvency.VerifySolvency(nil, nil, nil))

	assert.Equal(t, 3, v.Calls(Solvency))
	assert.Equal(t, 1, v.Calls(Evidence))
}

func TestVerifier_RejectSharesFrom(t *testing.T) {
	v := NewVerifier()
	v.RejectSharesFrom(2)

	assert.True(t, v.VerifyShareProof(verify.ShareProof{ExecutorIndex: 1}))
	assert.False(t, v.VerifyShareProof(verify.ShareProof{ExecutorIndex: 2}))
	assert.Equal(t, 2, v.Calls(ShareProof))
}
