package domain

// Side is the order direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// String returns the string representation of Side.
func (s Side) String() string {
	return string(s)
}

// IsValid checks if the side is a valid value.
func (s Side) IsValid() bool {
	return s == SideBuy || s == SideSell
}

// OrderStatus is the order lifecycle state.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusMatched   OrderStatus = "MATCHED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusExpired   OrderStatus = "EXPIRED"
)

// String returns the string representation of OrderStatus.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a valid value.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusMatched, OrderStatusCancelled, OrderStatusExpired:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusMatched || s == OrderStatusCancelled || s == OrderStatusExpired
}

// Order is an encrypted order. Encrypted fields never change after submission.
type Order struct {
	PoolID string
	Hash   Hash // deterministic digest of the order content
	Trader PublicKey

	EncryptedAmount []byte
	EncryptedPrice  []byte
	Side            Side
	SolvencyProof   []byte
	Signature       Signature
	Nonce           Nonce

	Status      OrderStatus
	SubmittedAt int64 // unix seconds
	CancelledAt int64
	ClosedRound uint64 // round that moved the order to Matched/Expired

	// Escrow accounting
	Deposit      uint64 // held in EscrowAccount(PoolID, Hash)
	FilledAmount uint64 // base units filled across rounds
	EscrowUsed   uint64 // escrow released: settled, refunded or paid as fees

	SchemaVersion uint16
	Version       uint64
}

// Clone returns a deep copy.
func (o *Order) Clone() *Order {
	c := *o
	c.EncryptedAmount = append([]byte(nil), o.EncryptedAmount...)
	c.EncryptedPrice = append([]byte(nil), o.EncryptedPrice...)
	c.SolvencyProof = append([]byte(nil), o.SolvencyProof...)
	return &c
}

// EscrowRemaining is the escrow balance not yet consumed.
func (o *Order) EscrowRemaining() uint64 {
	if o.EscrowUsed >= o.Deposit {
		return 0
	}
	return o.Deposit - o.EscrowUsed
}

// NonceRecord marks a nonce as used by a pool at a given time.
type NonceRecord struct {
	PoolID string
	Nonce  Nonce
	UsedAt int64
}
