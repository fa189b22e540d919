package domain

// Executor performance score bounds.
const (
	MaxPerformanceScore   = 100
	SlashScoreDecrement   = 20
	MaxSlashesBeforeEject = 3
)

// ViolationType classifies proven executor misconduct.
type ViolationType string

const (
	ViolationInvalidDecryption ViolationType = "INVALID_DECRYPTION"
	ViolationMissedHeartbeat   ViolationType = "MISSED_HEARTBEAT"
	ViolationDoubleSpending    ViolationType = "DOUBLE_SPENDING"
	ViolationMaliciousMatching ViolationType = "MALICIOUS_MATCHING"
)

// String returns the string representation of ViolationType.
func (v ViolationType) String() string {
	return string(v)
}

// IsValid checks if the violation type is a valid value.
func (v ViolationType) IsValid() bool {
	_, ok := slashPercent[v]
	return ok
}

var slashPercent = map[ViolationType]uint64{
	ViolationInvalidDecryption: 10,
	ViolationMissedHeartbeat:   1,
	ViolationDoubleSpending:    50,
	ViolationMaliciousMatching: 25,
}

// SlashPercent returns the share of stake forfeited for the violation.
func (v ViolationType) SlashPercent() uint64 {
	return slashPercent[v]
}

// SlashAmount computes the penalty for the violation applied to stake.
func (v ViolationType) SlashAmount(stake uint64) uint64 {
	pct := v.SlashPercent()
	return stake/100*pct + stake%100*pct/100
}

// Executor is a committee member holding one threshold key share.
type Executor struct {
	PoolID          string
	Index           uint8 // committee index in [0, n)
	Authority       PublicKey
	ThresholdShare  [32]byte // encrypted key share
	VerificationKey [33]byte // compressed public verification key

	Stake            uint64
	Active           bool
	SlashCount       uint8
	LastHeartbeat    int64 // unix seconds
	PerformanceScore uint8 // 0..100

	SharesContributed uint64
	RewardsEarned     uint64
	RegisteredAt      int64

	SchemaVersion uint16
	Version       uint64
}

// Clone returns a copy.
func (e *Executor) Clone() *Executor {
	c := *e
	return &c
}

// IsLive reports whether the executor is active and heartbeated within staleness seconds of now.
func (e *Executor) IsLive(now, staleness int64) bool {
	return e.Active && now-e.LastHeartbeat <= staleness
}
