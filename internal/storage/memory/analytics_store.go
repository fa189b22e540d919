package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
	"github.com/Kartikvyas1604/PhantomPool/internal/storage"
)

// AnalyticsStore is an in-memory implementation of storage.AnalyticsStore.
type AnalyticsStore struct {
	mu     sync.RWMutex
	trades map[tradeKey]*domain.ExecutedTrade
	events map[eventKey]*domain.Event
}

type tradeKey struct {
	poolID string
	round  uint64
	index  uint32
}

type eventKey struct {
	poolID   string
	sequence uint64
}

// NewAnalyticsStore creates a new in-memory analytics store.
func NewAnalyticsStore() *AnalyticsStore {
	return &AnalyticsStore{
		trades: make(map[tradeKey]*domain.ExecutedTrade),
		events: make(map[eventKey]*domain.Event),
	}
}

// Compile-time interface check.
var _ storage.AnalyticsStore = (*AnalyticsStore)(nil)

// InsertTrades adds executed trades atomically. Fails entire batch on any duplicate.
func (s *AnalyticsStore) InsertTrades(_ context.Context, trades []*domain.ExecutedTrade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: check for duplicates (both existing and within batch)
	seen := make(map[tradeKey]struct{}, len(trades))
	for _, t := range trades {
		if t == nil || t.PoolID == "" {
			return storage.ErrInvalidInput
		}
		k := tradeKey{t.PoolID, t.Round, t.Index}
		if _, exists := s.trades[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Second pass: insert all
	for _, t := range trades {
		tradeCopy := *t
		s.trades[tradeKey{t.PoolID, t.Round, t.Index}] = &tradeCopy
	}
	return nil
}

// InsertEvents adds events atomically. Fails entire batch on any duplicate.
func (s *AnalyticsStore) InsertEvents(_ context.Context, events []*domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[eventKey]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.PoolID == "" {
			return storage.ErrInvalidInput
		}
		k := eventKey{e.PoolID, e.Sequence}
		if _, exists := s.events[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, e := range events {
		s.events[eventKey{e.PoolID, e.Sequence}] = e.Clone()
	}
	return nil
}

// GetTradesByRound retrieves the trades of a round ordered by index ASC.
func (s *AnalyticsStore) GetTradesByRound(_ context.Context, poolID string, round uint64) ([]*domain.ExecutedTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ExecutedTrade
	for k, t := range s.trades {
		if k.poolID == poolID && k.round == round {
			tradeCopy := *t
			result = append(result, &tradeCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Index < result[j].Index
	})
	return result, nil
}

// GetVolumeByRound aggregates executed trades per round within [fromRound, toRound].
func (s *AnalyticsStore) GetVolumeByRound(_ context.Context, poolID string, fromRound, toRound uint64) ([]storage.RoundVolume, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byRound := make(map[uint64]*storage.RoundVolume)
	for k, t := range s.trades {
		if k.poolID != poolID || k.round < fromRound || k.round > toRound {
			continue
		}
		v, ok := byRound[k.round]
		if !ok {
			v = &storage.RoundVolume{Round: k.round}
			byRound[k.round] = v
		}
		v.Trades++
		v.Volume += t.Amount
		v.Notional += t.Amount * t.Price
		v.Fees += t.Fee
		if t.ExecutedAt > v.LastTradeAt {
			v.LastTradeAt = t.ExecutedAt
		}
	}

	result := make([]storage.RoundVolume, 0, len(byRound))
	for _, v := range byRound {
		result = append(result, *v)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Round < result[j].Round
	})
	return result, nil
}
