package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
)

var poolTable = table{
	name: "pools",
	columns: []string{
		"id", "authority", "token_pair", "elgamal_public_key", "vrf_public_key",
		"threshold", "total_executors", "min_order_size", "max_order_size", "fee_bps",
		"order_count", "round_number", "total_volume", "total_trades", "total_fees",
		"is_matching", "is_paused", "last_match_time", "created_at", "paused_at",
		"event_seq", "schema_version",
	},
	keyCols: 1,
}

func poolArgs(p *domain.Pool) []any {
	return []any{
		p.ID, p.Authority[:], p.TokenPair, p.ElGamalPublicKey, p.VRFPublicKey[:],
		u8(p.Threshold), u8(p.TotalExecutors), u64(p.MinOrderSize), u64(p.MaxOrderSize), int32(p.FeeBps),
		u64(p.OrderCount), u64(p.RoundNumber), u64(p.TotalVolume), u64(p.TotalTrades), u64(p.TotalFees),
		p.IsMatching, p.IsPaused, p.LastMatchTime, p.CreatedAt, p.PausedAt,
		u64(p.EventSeq), int16(p.SchemaVersion),
	}
}

// scanPool scans a single row into a Pool.
func scanPool(row pgx.Row) (*domain.Pool, error) {
	var p domain.Pool
	var authority, vrfKey []byte
	var threshold, totalExecutors, schemaVersion int16
	var feeBps int32
	var minSize, maxSize, orderCount, roundNumber, volume, trades, fees, eventSeq, version int64

	err := row.Scan(
		&p.ID, &authority, &p.TokenPair, &p.ElGamalPublicKey, &vrfKey,
		&threshold, &totalExecutors, &minSize, &maxSize, &feeBps,
		&orderCount, &roundNumber, &volume, &trades, &fees,
		&p.IsMatching, &p.IsPaused, &p.LastMatchTime, &p.CreatedAt, &p.PausedAt,
		&eventSeq, &schemaVersion, &version,
	)
	if err != nil {
		return nil, err
	}

	if err := copyFixed(p.Authority[:], authority, "pool authority"); err != nil {
		return nil, err
	}
	if err := copyFixed(p.VRFPublicKey[:], vrfKey, "pool vrf key"); err != nil {
		return nil, err
	}
	p.Threshold = uint8(threshold)
	p.TotalExecutors = uint8(totalExecutors)
	p.MinOrderSize = uint64(minSize)
	p.MaxOrderSize = uint64(maxSize)
	p.FeeBps = uint16(feeBps)
	p.OrderCount = uint64(orderCount)
	p.RoundNumber = uint64(roundNumber)
	p.TotalVolume = uint64(volume)
	p.TotalTrades = uint64(trades)
	p.TotalFees = uint64(fees)
	p.EventSeq = uint64(eventSeq)
	p.SchemaVersion = uint16(schemaVersion)
	p.Version = uint64(version)
	return &p, nil
}

// GetPool retrieves a pool by ID. Returns ErrNotFound if not exists.
func (s *Store) GetPool(ctx context.Context, poolID string) (*domain.Pool, error) {
	row := s.pool.QueryRow(ctx, poolTable.selectSQL()+` WHERE id = $1`, poolID)
	p, err := scanPool(row)
	if err != nil {
		return nil, notFound(err, "get pool")
	}
	return p, nil
}

// ListPools retrieves all pools ordered by created_at ASC, id ASC.
func (s *Store) ListPools(ctx context.Context) ([]*domain.Pool, error) {
	rows, err := s.pool.Query(ctx, poolTable.selectSQL()+` ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list pools: %w", err)
	}
	defer rows.Close()

	var result []*domain.Pool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pool: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}
