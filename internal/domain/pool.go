package domain

// SchemaVersion is the canonical record layout version written with every
// pool, order, executor and round record.
const SchemaVersion uint16 = 1

// Committee bounds.
const (
	MinThreshold      = 3
	MaxTotalExecutors = 5
)

// MaxFeeBps is 100% expressed in basis points.
const MaxFeeBps = 10_000

// Pool is a dark pool for one token pair.
type Pool struct {
	ID        string    // derived from the token pair
	Authority PublicKey // may slash, pause, abort stalled rounds
	TokenPair string    // e.g. "SOL/USDC"

	// Threshold key material
	ElGamalPublicKey []byte   // committee encryption key (opaque point encoding)
	VRFPublicKey     [32]byte // ed25519 point
	Threshold        uint8    // t
	TotalExecutors   uint8    // n

	// Bounds and fees
	MinOrderSize uint64
	MaxOrderSize uint64
	FeeBps       uint16

	// Running totals
	OrderCount  uint64
	RoundNumber uint64 // number of the latest opened round; 0 before the first
	TotalVolume uint64
	TotalTrades uint64
	TotalFees   uint64

	IsMatching    bool
	IsPaused      bool
	LastMatchTime int64 // unix seconds
	CreatedAt     int64
	PausedAt      int64

	// EventSeq is the sequence number of the last notification emitted for this pool.
	EventSeq uint64

	SchemaVersion uint16
	Version       uint64 // optimistic concurrency token, managed by storage
}

// Clone returns a deep copy.
func (p *Pool) Clone() *Pool {
	c := *p
	c.ElGamalPublicKey = append([]byte(nil), p.ElGamalPublicKey...)
	return &c
}
