package storage

import (
	"fmt"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
)

// Batch is the set of writes produced by one engine operation.
//
// Versioned records (pools, orders, executors, rounds) with Version 0 are
// inserted; any other Version is a compare-and-swap update against the
// stored record. Nonces are upserts. Events are inserts.
type Batch struct {
	Pools     []*domain.Pool
	Orders    []*domain.Order
	Executors []*domain.Executor
	Rounds    []*domain.Round
	Nonces    []domain.NonceRecord
	Events    []*domain.Event
}

// IsEmpty reports whether the batch carries no writes.
func (b *Batch) IsEmpty() bool {
	return len(b.Pools) == 0 && len(b.Orders) == 0 && len(b.Executors) == 0 &&
		len(b.Rounds) == 0 && len(b.Nonces) == 0 && len(b.Events) == 0
}

// Validate checks keys and intra-batch uniqueness.
func (b *Batch) Validate() error {
	if b == nil {
		return ErrInvalidInput
	}

	pools := make(map[string]struct{})
	for _, p := range b.Pools {
		if p == nil || p.ID == "" {
			return fmt.Errorf("%w: pool without id", ErrInvalidInput)
		}
		if _, dup := pools[p.ID]; dup {
			return fmt.Errorf("%w: pool %s written twice", ErrInvalidInput, p.ID)
		}
		pools[p.ID] = struct{}{}
	}

	type orderKey struct {
		pool string
		hash domain.Hash
	}
	orders := make(map[orderKey]struct{})
	for _, o := range b.Orders {
		if o == nil || o.PoolID == "" {
			return fmt.Errorf("%w: order without pool", ErrInvalidInput)
		}
		k := orderKey{o.PoolID, o.Hash}
		if _, dup := orders[k]; dup {
			return fmt.Errorf("%w: order %s written twice", ErrInvalidInput, o.Hash)
		}
		orders[k] = struct{}{}
	}

	type execKey struct {
		pool  string
		index uint8
	}
	execs := make(map[execKey]struct{})
	for _, e := range b.Executors {
		if e == nil || e.PoolID == "" {
			return fmt.Errorf("%w: executor without pool", ErrInvalidInput)
		}
		k := execKey{e.PoolID, e.Index}
		if _, dup := execs[k]; dup {
			return fmt.Errorf("%w: executor %d written twice", ErrInvalidInput, e.Index)
		}
		execs[k] = struct{}{}
	}

	type roundKey struct {
		pool   string
		number uint64
	}
	rounds := make(map[roundKey]struct{})
	for _, r := range b.Rounds {
		if r == nil || r.PoolID == "" || r.Number == 0 {
			return fmt.Errorf("%w: round without pool or number", ErrInvalidInput)
		}
		k := roundKey{r.PoolID, r.Number}
		if _, dup := rounds[k]; dup {
			return fmt.Errorf("%w: round %d written twice", ErrInvalidInput, r.Number)
		}
		rounds[k] = struct{}{}
	}

	for _, n := range b.Nonces {
		if n.PoolID == "" {
			return fmt.Errorf("%w: nonce without pool", ErrInvalidInput)
		}
	}

	type eventKey struct {
		pool string
		seq  uint64
	}
	events := make(map[eventKey]struct{})
	for _, e := range b.Events {
		if e == nil || e.PoolID == "" || e.ID == "" || e.Sequence == 0 {
			return fmt.Errorf("%w: event without pool, id or sequence", ErrInvalidInput)
		}
		k := eventKey{e.PoolID, e.Sequence}
		if _, dup := events[k]; dup {
			return fmt.Errorf("%w: event sequence %d written twice", ErrInvalidInput, e.Sequence)
		}
		events[k] = struct{}{}
	}

	return nil
}

// AdvanceVersions bumps the Version of every versioned record after a successful commit.
func (b *Batch) AdvanceVersions() {
	for _, p := range b.Pools {
		p.Version++
	}
	for _, o := range b.Orders {
		o.Version++
	}
	for _, e := range b.Executors {
		e.Version++
	}
	for _, r := range b.Rounds {
		r.Version++
	}
}
