package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
)

var executorTable = table{
	name: "executors",
	columns: []string{
		"pool_id", "idx", "authority", "threshold_share", "verification_key",
		"stake", "active", "slash_count", "last_heartbeat", "performance_score",
		"shares_contributed", "rewards_earned", "registered_at", "schema_version",
	},
	keyCols: 2,
}

func executorArgs(e *domain.Executor) []any {
	return []any{
		e.PoolID, u8(e.Index), e.Authority[:], e.ThresholdShare[:], e.VerificationKey[:],
		u64(e.Stake), e.Active, u8(e.SlashCount), e.LastHeartbeat, u8(e.PerformanceScore),
		u64(e.SharesContributed), u64(e.RewardsEarned), e.RegisteredAt, int16(e.SchemaVersion),
	}
}

// scanExecutor scans a single row into an Executor.
func scanExecutor(row pgx.Row) (*domain.Executor, error) {
	var e domain.Executor
	var index, slashCount, score, schemaVersion int16
	var authority, share, verificationKey []byte
	var stake, contributed, rewards, version int64

	err := row.Scan(
		&e.PoolID, &index, &authority, &share, &verificationKey,
		&stake, &e.Active, &slashCount, &e.LastHeartbeat, &score,
		&contributed, &rewards, &e.RegisteredAt, &schemaVersion, &version,
	)
	if err != nil {
		return nil, err
	}

	if err := copyFixed(e.Authority[:], authority, "executor authority"); err != nil {
		return nil, err
	}
	if err := copyFixed(e.ThresholdShare[:], share, "threshold share"); err != nil {
		return nil, err
	}
	if err := copyFixed(e.VerificationKey[:], verificationKey, "verification key"); err != nil {
		return nil, err
	}
	e.Index = uint8(index)
	e.Stake = uint64(stake)
	e.SlashCount = uint8(slashCount)
	e.PerformanceScore = uint8(score)
	e.SharesContributed = uint64(contributed)
	e.RewardsEarned = uint64(rewards)
	e.SchemaVersion = uint16(schemaVersion)
	e.Version = uint64(version)
	return &e, nil
}

// GetExecutor retrieves an executor by pool and index. Returns ErrNotFound if not exists.
func (s *Store) GetExecutor(ctx context.Context, poolID string, index uint8) (*domain.Executor, error) {
	row := s.pool.QueryRow(ctx, executorTable.selectSQL()+` WHERE pool_id = $1 AND idx = $2`, poolID, u8(index))
	e, err := scanExecutor(row)
	if err != nil {
		return nil, notFound(err, "get executor")
	}
	return e, nil
}

// ListExecutors retrieves all executors of a pool ordered by index ASC.
func (s *Store) ListExecutors(ctx context.Context, poolID string) ([]*domain.Executor, error) {
	rows, err := s.pool.Query(ctx, executorTable.selectSQL()+` WHERE pool_id = $1 ORDER BY idx ASC`, poolID)
	if err != nil {
		return nil, fmt.Errorf("list executors: %w", err)
	}
	defer rows.Close()

	var result []*domain.Executor
	for rows.Next() {
		e, err := scanExecutor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan executor: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}
