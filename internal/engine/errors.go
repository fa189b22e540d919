package engine

import (
	"errors"
)

// Kind classifies a rejected operation. Every kind is recoverable by the
// caller; none leaves state modified.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindReplay        Kind = "replay"
	KindProof         Kind = "proof"
	KindTiming        Kind = "timing"
	KindAuthorization Kind = "authorization"
	KindState         Kind = "state"
	KindNotFound      Kind = "not_found"
	KindTransfer      Kind = "transfer"
	KindInternal      Kind = "internal"
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	return string(k)
}

// Error is a classified engine error. Compare with errors.Is against the
// package sentinels; wrapped errors keep the sentinel's kind.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Validation errors.
var (
	ErrInvalidThreshold     = newError(KindValidation, "invalid threshold configuration")
	ErrInvalidOrderBounds   = newError(KindValidation, "invalid order size bounds")
	ErrInvalidFee           = newError(KindValidation, "fee exceeds 100%")
	ErrInvalidTokenPair     = newError(KindValidation, "invalid token pair")
	ErrInvalidKey           = newError(KindValidation, "invalid pool key material")
	ErrInvalidIdentity      = newError(KindValidation, "invalid caller identity")
	ErrInvalidOrder         = newError(KindValidation, "invalid order fields")
	ErrOrderHashMismatch    = newError(KindValidation, "order hash does not match order content")
	ErrOrderSizeOutOfBounds = newError(KindValidation, "order size out of bounds")
	ErrInvalidExecutorIndex = newError(KindValidation, "invalid executor index")
	ErrInsufficientStake    = newError(KindValidation, "stake below minimum")
	ErrInvalidViolation     = newError(KindValidation, "unknown violation type")
	ErrInvalidShares        = newError(KindValidation, "invalid decryption shares")
)

// Replay errors.
var (
	ErrDuplicateOrder = newError(KindReplay, "duplicate order hash")
	ErrNonceReused    = newError(KindReplay, "nonce already used")
)

// Proof errors.
var (
	ErrInvalidSolvencyProof  = newError(KindProof, "invalid solvency proof")
	ErrInvalidSignature      = newError(KindProof, "invalid signature")
	ErrInvalidVRFProof       = newError(KindProof, "invalid VRF proof")
	ErrInvalidThresholdShare = newError(KindProof, "invalid threshold share")
	ErrInvalidShareProof     = newError(KindProof, "invalid partial decryption proof")
	ErrInvalidExecutionProof = newError(KindProof, "invalid execution proof")
	ErrInvalidEvidence       = newError(KindProof, "invalid slashing evidence")
)

// Timing errors. Retry later.
var (
	ErrRoundTooEarly      = newError(KindTiming, "round opened too early")
	ErrMatchingInProgress = newError(KindTiming, "matching round in progress")
	ErrRoundNotStalled    = newError(KindTiming, "round has not stalled")
	ErrConcurrentUpdate   = newError(KindTiming, "concurrent update, retry")
)

// Authorization errors.
var (
	ErrNotOrderOwner        = newError(KindAuthorization, "caller does not own the order")
	ErrNotPoolAuthority     = newError(KindAuthorization, "caller is not the pool authority")
	ErrNotExecutorAuthority = newError(KindAuthorization, "caller does not control the executor")
)

// State errors.
var (
	ErrPoolExists              = newError(KindState, "pool already exists for token pair")
	ErrPoolPaused              = newError(KindState, "pool is paused")
	ErrPoolNotPaused           = newError(KindState, "pool is not paused")
	ErrOrderNotPending         = newError(KindState, "order is not pending")
	ErrExecutorIndexTaken      = newError(KindState, "executor index already registered")
	ErrExecutorInactive        = newError(KindState, "executor is inactive")
	ErrExecutorUnderstaked     = newError(KindState, "executor stake below minimum")
	ErrExecutorStale           = newError(KindState, "executor heartbeat is stale")
	ErrNotEnoughOrders         = newError(KindState, "not enough pending orders")
	ErrNotEnoughExecutors      = newError(KindState, "not enough live executors")
	ErrNoRoundInFlight         = newError(KindState, "no matching round in flight")
	ErrRoundNotAcceptingShares = newError(KindState, "round does not accept shares")
	ErrRoundNotReady           = newError(KindState, "round is not ready to complete")
)

// Not-found errors.
var (
	ErrPoolNotFound     = newError(KindNotFound, "pool not found")
	ErrOrderNotFound    = newError(KindNotFound, "order not found")
	ErrExecutorNotFound = newError(KindNotFound, "executor not found")
	ErrRoundNotFound    = newError(KindNotFound, "round not found")
)

// ErrTransferFailed wraps a failure of the transfer capability.
var ErrTransferFailed = newError(KindTransfer, "transfer failed")
