package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
)

var orderTable = table{
	name: "orders",
	columns: []string{
		"pool_id", "hash", "trader", "encrypted_amount", "encrypted_price",
		"side", "solvency_proof", "signature", "nonce", "status",
		"submitted_at", "cancelled_at", "closed_round", "deposit", "filled_amount",
		"escrow_used", "schema_version",
	},
	keyCols: 2,
}

func orderArgs(o *domain.Order) []any {
	return []any{
		o.PoolID, o.Hash[:], o.Trader[:], o.EncryptedAmount, o.EncryptedPrice,
		string(o.Side), o.SolvencyProof, o.Signature[:], o.Nonce[:], string(o.Status),
		o.SubmittedAt, o.CancelledAt, u64(o.ClosedRound), u64(o.Deposit), u64(o.FilledAmount),
		u64(o.EscrowUsed), int16(o.SchemaVersion),
	}
}

// scanOrder scans a single row into an Order.
func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var hash, trader, signature, nonce []byte
	var side, status string
	var closedRound, deposit, filled, escrowUsed, version int64
	var schemaVersion int16

	err := row.Scan(
		&o.PoolID, &hash, &trader, &o.EncryptedAmount, &o.EncryptedPrice,
		&side, &o.SolvencyProof, &signature, &nonce, &status,
		&o.SubmittedAt, &o.CancelledAt, &closedRound, &deposit, &filled,
		&escrowUsed, &schemaVersion, &version,
	)
	if err != nil {
		return nil, err
	}

	if err := copyFixed(o.Hash[:], hash, "order hash"); err != nil {
		return nil, err
	}
	if err := copyFixed(o.Trader[:], trader, "order trader"); err != nil {
		return nil, err
	}
	if err := copyFixed(o.Signature[:], signature, "order signature"); err != nil {
		return nil, err
	}
	if err := copyFixed(o.Nonce[:], nonce, "order nonce"); err != nil {
		return nil, err
	}
	o.Side = domain.Side(side)
	o.Status = domain.OrderStatus(status)
	o.ClosedRound = uint64(closedRound)
	o.Deposit = uint64(deposit)
	o.FilledAmount = uint64(filled)
	o.EscrowUsed = uint64(escrowUsed)
	o.SchemaVersion = uint16(schemaVersion)
	o.Version = uint64(version)
	return &o, nil
}

// GetOrder retrieves an order by pool and hash. Returns ErrNotFound if not exists.
func (s *Store) GetOrder(ctx context.Context, poolID string, hash domain.Hash) (*domain.Order, error) {
	row := s.pool.QueryRow(ctx, orderTable.selectSQL()+` WHERE pool_id = $1 AND hash = $2`, poolID, hash[:])
	o, err := scanOrder(row)
	if err != nil {
		return nil, notFound(err, "get order")
	}
	return o, nil
}

// ListOrders retrieves orders of a pool, ordered by submitted_at ASC, hash ASC.
func (s *Store) ListOrders(ctx context.Context, poolID string, status domain.OrderStatus) ([]*domain.Order, error) {
	query := orderTable.selectSQL() + `
		WHERE pool_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY submitted_at ASC, hash ASC
	`

	rows, err := s.pool.Query(ctx, query, poolID, string(status))
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var result []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

// NonceUsedSince reports whether nonce was recorded for the pool at or after since.
func (s *Store) NonceUsedSince(ctx context.Context, poolID string, nonce domain.Nonce, since int64) (bool, error) {
	var used bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM order_nonces WHERE pool_id = $1 AND nonce = $2 AND used_at >= $3
		)
	`, poolID, nonce[:], since).Scan(&used)
	if err != nil {
		return false, fmt.Errorf("check nonce: %w", err)
	}
	return used, nil
}

// PruneNonces deletes nonce records used before cutoff.
func (s *Store) PruneNonces(ctx context.Context, cutoff int64) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM order_nonces WHERE used_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune nonces: %w", err)
	}
	return tag.RowsAffected(), nil
}

func upsertNonce(ctx context.Context, tx pgx.Tx, n domain.NonceRecord) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO order_nonces (pool_id, nonce, used_at) VALUES ($1, $2, $3)
		ON CONFLICT (pool_id, nonce) DO UPDATE SET used_at = EXCLUDED.used_at
	`, n.PoolID, n.Nonce[:], n.UsedAt)
	if err != nil {
		return fmt.Errorf("record nonce: %w", err)
	}
	return nil
}
