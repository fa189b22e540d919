package domain

// EventKind names a notification record.
type EventKind string

const (
	EventPoolInitialized     EventKind = "pool_initialized"
	EventPoolPaused          EventKind = "pool_paused"
	EventPoolUnpaused        EventKind = "pool_unpaused"
	EventOrderSubmitted      EventKind = "order_submitted"
	EventOrderCancelled      EventKind = "order_cancelled"
	EventExecutorRegistered  EventKind = "executor_registered"
	EventExecutorHeartbeat   EventKind = "executor_heartbeat"
	EventExecutorSlashed     EventKind = "executor_slashed"
	EventExecutorDeactivated EventKind = "executor_deactivated"
	EventRoundStarted        EventKind = "round_started"
	EventDecryptionSubmitted EventKind = "decryption_submitted"
	EventRoundReady          EventKind = "round_ready"
	EventRoundFailed         EventKind = "round_failed"
	EventTradeExecuted       EventKind = "trade_executed"
	EventRoundCompleted      EventKind = "round_completed"
	EventExecutorRewarded    EventKind = "executor_rewarded"
)

// String returns the string representation of EventKind.
func (k EventKind) String() string {
	return string(k)
}

// Event is an append-only notification for external observers.
// Sequence is dense and strictly increasing per pool.
type Event struct {
	ID            string // uuid
	PoolID        string
	Sequence      uint64
	Kind          EventKind
	RoundNumber   uint64
	OrderHash     *Hash
	ExecutorIndex *uint8
	Trade         *TradePair
	Attributes    map[string]string
	At            int64
}

// Clone returns a deep copy.
func (e *Event) Clone() *Event {
	c := *e
	if e.OrderHash != nil {
		h := *e.OrderHash
		c.OrderHash = &h
	}
	if e.ExecutorIndex != nil {
		i := *e.ExecutorIndex
		c.ExecutorIndex = &i
	}
	if e.Trade != nil {
		t := *e.Trade
		c.Trade = &t
	}
	if e.Attributes != nil {
		c.Attributes = make(map[string]string, len(e.Attributes))
		for k, v := range e.Attributes {
			c.Attributes[k] = v
		}
	}
	return &c
}
