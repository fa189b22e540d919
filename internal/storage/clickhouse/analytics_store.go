package clickhouse

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
	"github.com/Kartikvyas1604/PhantomPool/internal/storage"
)

// AnalyticsStore implements storage.AnalyticsStore using ClickHouse.
// Amounts are written as Decimal(38, 0) so notional values never overflow.
type AnalyticsStore struct {
	conn *Conn
}

// NewAnalyticsStore creates a new AnalyticsStore.
func NewAnalyticsStore(conn *Conn) *AnalyticsStore {
	return &AnalyticsStore{conn: conn}
}

// Compile-time interface check.
var _ storage.AnalyticsStore = (*AnalyticsStore)(nil)

// InsertTrades adds executed trades. Fails entire batch on duplicate.
func (s *AnalyticsStore) InsertTrades(ctx context.Context, trades []*domain.ExecutedTrade) error {
	if len(trades) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		poolID string
		round  uint64
		index  uint32
	}
	seen := make(map[key]struct{})
	for _, t := range trades {
		if t == nil || t.PoolID == "" {
			return storage.ErrInvalidInput
		}
		k := key{t.PoolID, t.Round, t.Index}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing rows
	for _, t := range trades {
		exists, err := s.tradeExists(ctx, t.PoolID, t.Round, t.Index)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO executed_trades (
			pool_id, round, trade_index, buy_order, sell_order,
			amount, price, notional, fee, executed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, t := range trades {
		amount := dec(t.Amount)
		price := dec(t.Price)
		err = batch.Append(
			t.PoolID, t.Round, t.Index, t.BuyOrder.String(), t.SellOrder.String(),
			amount, price, amount.Mul(price), dec(t.Fee), time.Unix(t.ExecutedAt, 0).UTC(),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// InsertEvents adds events. Fails entire batch on duplicate (pool, sequence).
func (s *AnalyticsStore) InsertEvents(ctx context.Context, events []*domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	type key struct {
		poolID   string
		sequence uint64
	}
	seen := make(map[key]struct{})
	for _, e := range events {
		if e == nil || e.PoolID == "" {
			return storage.ErrInvalidInput
		}
		k := key{e.PoolID, e.Sequence}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, e := range events {
		var count uint64
		err := s.conn.QueryRow(ctx, `
			SELECT count(*) FROM pool_events WHERE pool_id = ? AND sequence = ?
		`, e.PoolID, e.Sequence).Scan(&count)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if count > 0 {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO pool_events (
			pool_id, sequence, id, kind, round_number, order_hash, executor_index, attributes, at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		id, err := uuid.Parse(e.ID)
		if err != nil {
			return fmt.Errorf("%w: event id: %v", storage.ErrInvalidInput, err)
		}
		var orderHash *string
		if e.OrderHash != nil {
			h := e.OrderHash.String()
			orderHash = &h
		}
		attrs := e.Attributes
		if attrs == nil {
			attrs = map[string]string{}
		}
		err = batch.Append(
			e.PoolID, e.Sequence, id, string(e.Kind), e.RoundNumber,
			orderHash, e.ExecutorIndex, attrs, time.Unix(e.At, 0).UTC(),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetTradesByRound retrieves the trades of a round ordered by index ASC.
func (s *AnalyticsStore) GetTradesByRound(ctx context.Context, poolID string, round uint64) ([]*domain.ExecutedTrade, error) {
	query := `
		SELECT pool_id, round, trade_index, buy_order, sell_order, amount, price, fee, executed_at
		FROM executed_trades FINAL
		WHERE pool_id = ? AND round = ?
		ORDER BY trade_index ASC
	`

	rows, err := s.conn.Query(ctx, query, poolID, round)
	if err != nil {
		return nil, fmt.Errorf("query trades by round: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetVolumeByRound aggregates executed trades per round within [fromRound, toRound].
func (s *AnalyticsStore) GetVolumeByRound(ctx context.Context, poolID string, fromRound, toRound uint64) ([]storage.RoundVolume, error) {
	query := `
		SELECT round, count() AS trades, sum(amount), sum(notional), sum(fee), max(executed_at)
		FROM executed_trades FINAL
		WHERE pool_id = ? AND round >= ? AND round <= ?
		GROUP BY round
		ORDER BY round ASC
	`

	rows, err := s.conn.Query(ctx, query, poolID, fromRound, toRound)
	if err != nil {
		return nil, fmt.Errorf("query volume by round: %w", err)
	}
	defer rows.Close()

	var result []storage.RoundVolume
	for rows.Next() {
		var v storage.RoundVolume
		var volume, notional, fees decimal.Decimal
		var last time.Time
		if err := rows.Scan(&v.Round, &v.Trades, &volume, &notional, &fees, &last); err != nil {
			return nil, fmt.Errorf("scan volume row: %w", err)
		}
		v.Volume = volume.BigInt().Uint64()
		v.Notional = notional.BigInt().Uint64()
		v.Fees = fees.BigInt().Uint64()
		v.LastTradeAt = last.Unix()
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate volume rows: %w", err)
	}
	return result, nil
}

// dec converts an unsigned amount to an exact decimal.
func dec(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

func (s *AnalyticsStore) tradeExists(ctx context.Context, poolID string, round uint64, index uint32) (bool, error) {
	query := `
		SELECT count(*) FROM executed_trades
		WHERE pool_id = ? AND round = ? AND trade_index = ?
	`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, poolID, round, index).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanTrades scans multiple rows.
func scanTrades(rows chRows) ([]*domain.ExecutedTrade, error) {
	var trades []*domain.ExecutedTrade

	for rows.Next() {
		var t domain.ExecutedTrade
		var buy, sell string
		var amount, price, fee decimal.Decimal
		var executedAt time.Time

		err := rows.Scan(&t.PoolID, &t.Round, &t.Index, &buy, &sell, &amount, &price, &fee, &executedAt)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}

		if t.BuyOrder, err = domain.ParseHash(buy); err != nil {
			return nil, err
		}
		if t.SellOrder, err = domain.ParseHash(sell); err != nil {
			return nil, err
		}
		t.Amount = amount.BigInt().Uint64()
		t.Price = price.BigInt().Uint64()
		t.Fee = fee.BigInt().Uint64()
		t.ExecutedAt = executedAt.Unix()

		trades = append(trades, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}
	return trades, nil
}
