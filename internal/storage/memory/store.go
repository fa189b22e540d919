package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
	"github.com/Kartikvyas1604/PhantomPool/internal/storage"
)

type orderKey struct {
	poolID string
	hash   domain.Hash
}

type executorKey struct {
	poolID string
	index  uint8
}

type roundKey struct {
	poolID string
	number uint64
}

type nonceKey struct {
	poolID string
	nonce  domain.Nonce
}

// Store is an in-memory implementation of storage.Store.
// A single lock covers every table so a Batch is applied atomically.
type Store struct {
	mu        sync.RWMutex
	pools     map[string]*domain.Pool
	orders    map[orderKey]*domain.Order
	executors map[executorKey]*domain.Executor
	rounds    map[roundKey]*domain.Round
	nonces    map[nonceKey]int64         // used_at
	events    map[string][]*domain.Event // per pool, ordered by sequence
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		pools:     make(map[string]*domain.Pool),
		orders:    make(map[orderKey]*domain.Order),
		executors: make(map[executorKey]*domain.Executor),
		rounds:    make(map[roundKey]*domain.Round),
		nonces:    make(map[nonceKey]int64),
		events:    make(map[string][]*domain.Event),
	}
}

// Compile-time interface check.
var _ storage.Store = (*Store)(nil)

// GetPool retrieves a pool by ID. Returns ErrNotFound if not exists.
func (s *Store) GetPool(_ context.Context, poolID string) (*domain.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.pools[poolID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return p.Clone(), nil
}

// ListPools retrieves all pools ordered by created_at ASC, id ASC.
func (s *Store) ListPools(_ context.Context) ([]*domain.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Pool, 0, len(s.pools))
	for _, p := range s.pools {
		result = append(result, p.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// GetOrder retrieves an order by pool and hash. Returns ErrNotFound if not exists.
func (s *Store) GetOrder(_ context.Context, poolID string, hash domain.Hash) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, exists := s.orders[orderKey{poolID, hash}]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return o.Clone(), nil
}

// ListOrders retrieves orders of a pool, ordered by submitted_at ASC, hash ASC.
func (s *Store) ListOrders(_ context.Context, poolID string, status domain.OrderStatus) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Order
	for k, o := range s.orders {
		if k.poolID != poolID {
			continue
		}
		if status != "" && o.Status != status {
			continue
		}
		result = append(result, o.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].SubmittedAt != result[j].SubmittedAt {
			return result[i].SubmittedAt < result[j].SubmittedAt
		}
		return bytes.Compare(result[i].Hash[:], result[j].Hash[:]) < 0
	})
	return result, nil
}

// NonceUsedSince reports whether nonce was recorded for the pool at or after since.
func (s *Store) NonceUsedSince(_ context.Context, poolID string, nonce domain.Nonce, since int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	usedAt, exists := s.nonces[nonceKey{poolID, nonce}]
	return exists && usedAt >= since, nil
}

// PruneNonces deletes nonce records used before cutoff.
func (s *Store) PruneNonces(_ context.Context, cutoff int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for k, usedAt := range s.nonces {
		if usedAt < cutoff {
			delete(s.nonces, k)
			removed++
		}
	}
	return removed, nil
}

// GetExecutor retrieves an executor by pool and index. Returns ErrNotFound if not exists.
func (s *Store) GetExecutor(_ context.Context, poolID string, index uint8) (*domain.Executor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.executors[executorKey{poolID, index}]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return e.Clone(), nil
}

// ListExecutors retrieves all executors of a pool ordered by index ASC.
func (s *Store) ListExecutors(_ context.Context, poolID string) ([]*domain.Executor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Executor
	for k, e := range s.executors {
		if k.poolID == poolID {
			result = append(result, e.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Index < result[j].Index
	})
	return result, nil
}

// GetRound retrieves a round by pool and number. Returns ErrNotFound if not exists.
func (s *Store) GetRound(_ context.Context, poolID string, number uint64) (*domain.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.rounds[roundKey{poolID, number}]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return r.Clone(), nil
}

// ListEvents retrieves events with sequence > afterSeq ordered by sequence ASC.
func (s *Store) ListEvents(_ context.Context, poolID string, afterSeq uint64, limit int) ([]*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.events[poolID]
	start := sort.Search(len(log), func(i int) bool {
		return log[i].Sequence > afterSeq
	})

	var result []*domain.Event
	for _, e := range log[start:] {
		if limit > 0 && len(result) >= limit {
			break
		}
		result = append(result, e.Clone())
	}
	return result, nil
}

// Commit applies the batch atomically.
// First pass validates every write against current state, second pass applies.
func (s *Store) Commit(_ context.Context, b *storage.Batch) error {
	if err := b.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: check all keys and versions
	for _, p := range b.Pools {
		if err := checkVersion(s.pools[p.ID], p.Version, func(cur *domain.Pool) uint64 { return cur.Version }); err != nil {
			return err
		}
		if p.Version == 0 {
			for _, existing := range s.pools {
				if existing.TokenPair == p.TokenPair {
					return storage.ErrDuplicateKey
				}
			}
		}
	}
	for _, o := range b.Orders {
		if err := checkVersion(s.orders[orderKey{o.PoolID, o.Hash}], o.Version, func(cur *domain.Order) uint64 { return cur.Version }); err != nil {
			return err
		}
	}
	for _, e := range b.Executors {
		if err := checkVersion(s.executors[executorKey{e.PoolID, e.Index}], e.Version, func(cur *domain.Executor) uint64 { return cur.Version }); err != nil {
			return err
		}
	}
	for _, r := range b.Rounds {
		if err := checkVersion(s.rounds[roundKey{r.PoolID, r.Number}], r.Version, func(cur *domain.Round) uint64 { return cur.Version }); err != nil {
			return err
		}
	}
	for _, e := range b.Events {
		log := s.events[e.PoolID]
		if len(log) > 0 && log[len(log)-1].Sequence >= e.Sequence {
			return storage.ErrDuplicateKey
		}
	}

	// Second pass: apply
	b.AdvanceVersions()
	for _, p := range b.Pools {
		s.pools[p.ID] = p.Clone()
	}
	for _, o := range b.Orders {
		s.orders[orderKey{o.PoolID, o.Hash}] = o.Clone()
	}
	for _, e := range b.Executors {
		s.executors[executorKey{e.PoolID, e.Index}] = e.Clone()
	}
	for _, r := range b.Rounds {
		s.rounds[roundKey{r.PoolID, r.Number}] = r.Clone()
	}
	for _, n := range b.Nonces {
		s.nonces[nonceKey{n.PoolID, n.Nonce}] = n.UsedAt
	}
	touched := make(map[string]struct{})
	for _, e := range b.Events {
		s.events[e.PoolID] = append(s.events[e.PoolID], e.Clone())
		touched[e.PoolID] = struct{}{}
	}
	for poolID := range touched {
		log := s.events[poolID]
		sort.Slice(log, func(i, j int) bool { return log[i].Sequence < log[j].Sequence })
	}

	return nil
}

// checkVersion enforces insert-if-absent for version 0 and compare-and-swap otherwise.
func checkVersion[T any](current *T, version uint64, versionOf func(*T) uint64) error {
	if version == 0 {
		if current != nil {
			return storage.ErrDuplicateKey
		}
		return nil
	}
	if current == nil {
		return storage.ErrNotFound
	}
	if versionOf(current) != version {
		return storage.ErrConflict
	}
	return nil
}
