package domain

// Fixed sizes of round cryptographic material.
const (
	VRFProofSize       = 80
	VRFOutputSize      = 32
	ExecutionProofSize = 256
	ShareSize          = 64 // amount share || price share
)

// RoundStatus is the matching round state.
//
//	ACTIVE -> AWAITING_QUORUM -> READY_TO_COMPLETE -> COMPLETED
//	   any in-flight state -> FAILED
type RoundStatus string

const (
	RoundStatusActive          RoundStatus = "ACTIVE"
	RoundStatusAwaitingQuorum  RoundStatus = "AWAITING_QUORUM"
	RoundStatusReadyToComplete RoundStatus = "READY_TO_COMPLETE"
	RoundStatusCompleted       RoundStatus = "COMPLETED"
	RoundStatusFailed          RoundStatus = "FAILED"
)

// String returns the string representation of RoundStatus.
func (s RoundStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a valid value.
func (s RoundStatus) IsValid() bool {
	switch s {
	case RoundStatusActive, RoundStatusAwaitingQuorum, RoundStatusReadyToComplete,
		RoundStatusCompleted, RoundStatusFailed:
		return true
	}
	return false
}

// InFlight reports whether the round still holds the pool's matching slot.
func (s RoundStatus) InFlight() bool {
	return s == RoundStatusActive || s == RoundStatusAwaitingQuorum || s == RoundStatusReadyToComplete
}

// AcceptsShares reports whether partial decryptions may still be submitted.
func (s RoundStatus) AcceptsShares() bool {
	return s == RoundStatusActive || s == RoundStatusAwaitingQuorum
}

// Share is one executor's decryption share for one order of the round snapshot.
type Share struct {
	OrderIndex uint32
	Value      []byte // ShareSize bytes
}

// PartialDecryption is an accepted share. Unique per (ExecutorIndex, OrderIndex) in a round.
type PartialDecryption struct {
	ExecutorIndex uint8
	OrderIndex    uint32
	Share         []byte
	SubmittedAt   int64
}

// Round is one batch auction over a snapshot of pending orders.
type Round struct {
	PoolID   string
	Number   uint64
	VRFSeed  [VRFOutputSize]byte
	VRFProof [VRFProofSize]byte
	Proposer PublicKey

	Status      RoundStatus
	StartedAt   int64
	CompletedAt int64 // set on COMPLETED or FAILED
	Threshold   uint8 // pool threshold captured at open

	// OrderHashes is the snapshot; share OrderIndex values index into it.
	OrderHashes []Hash
	Partials    []PartialDecryption

	// Matcher output, populated on READY_TO_COMPLETE
	Trades        []TradePair
	Fills         []OrderFill
	ClearingPrice uint64
	TotalVolume   uint64
	TotalFees     uint64

	FailureReason string

	SchemaVersion uint16
	Version       uint64
}

// Clone returns a deep copy.
func (r *Round) Clone() *Round {
	c := *r
	c.OrderHashes = append([]Hash(nil), r.OrderHashes...)
	c.Partials = make([]PartialDecryption, len(r.Partials))
	for i, p := range r.Partials {
		p.Share = append([]byte(nil), p.Share...)
		c.Partials[i] = p
	}
	c.Trades = append([]TradePair(nil), r.Trades...)
	c.Fills = append([]OrderFill(nil), r.Fills...)
	return &c
}

// HasShare reports whether executor already contributed a share for order.
func (r *Round) HasShare(executor uint8, order uint32) bool {
	for _, p := range r.Partials {
		if p.ExecutorIndex == executor && p.OrderIndex == order {
			return true
		}
	}
	return false
}

// QuorumCount returns the number of distinct executors with a share for order.
func (r *Round) QuorumCount(order uint32) int {
	seen := make(map[uint8]struct{})
	for _, p := range r.Partials {
		if p.OrderIndex == order {
			seen[p.ExecutorIndex] = struct{}{}
		}
	}
	return len(seen)
}

// HasFullQuorum reports whether every snapshot order has Threshold distinct shares.
func (r *Round) HasFullQuorum() bool {
	if len(r.OrderHashes) == 0 {
		return false
	}
	for i := range r.OrderHashes {
		if r.QuorumCount(uint32(i)) < int(r.Threshold) {
			return false
		}
	}
	return true
}

// SharesFor returns the accepted partials for order in submission order.
func (r *Round) SharesFor(order uint32) []PartialDecryption {
	var out []PartialDecryption
	for _, p := range r.Partials {
		if p.OrderIndex == order {
			out = append(out, p)
		}
	}
	return out
}

// Contributions counts accepted shares per executor index.
func (r *Round) Contributions() map[uint8]uint64 {
	out := make(map[uint8]uint64)
	for _, p := range r.Partials {
		out[p.ExecutorIndex]++
	}
	return out
}

// IndexOf returns the snapshot position of hash, or -1.
func (r *Round) IndexOf(hash Hash) int {
	for i, h := range r.OrderHashes {
		if h == hash {
			return i
		}
	}
	return -1
}
