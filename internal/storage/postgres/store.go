package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/Kartikvyas1604/PhantomPool/internal/storage"
)

// Store implements storage.Store using PostgreSQL.
// Every Batch is written in one transaction; versioned records use
// compare-and-swap updates on their version column.
type Store struct {
	pool *Pool
}

// NewStore creates a new Store.
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

// Compile-time interface check.
var _ storage.Store = (*Store)(nil)

// Commit applies every write in the batch atomically.
func (s *Store) Commit(ctx context.Context, b *storage.Batch) error {
	if err := b.Validate(); err != nil {
		return err
	}

	err := s.pool.inTx(ctx, func(tx pgx.Tx) error {
		for _, p := range b.Pools {
			if err := writeVersioned(ctx, tx, poolTable, poolArgs(p), p.Version); err != nil {
				return fmt.Errorf("write pool %s: %w", p.ID, err)
			}
		}
		for _, o := range b.Orders {
			if err := writeVersioned(ctx, tx, orderTable, orderArgs(o), o.Version); err != nil {
				return fmt.Errorf("write order %s: %w", o.Hash, err)
			}
		}
		for _, e := range b.Executors {
			if err := writeVersioned(ctx, tx, executorTable, executorArgs(e), e.Version); err != nil {
				return fmt.Errorf("write executor %d: %w", e.Index, err)
			}
		}
		for _, r := range b.Rounds {
			args, err := roundArgs(r)
			if err != nil {
				return err
			}
			if err := writeVersioned(ctx, tx, roundTable, args, r.Version); err != nil {
				return fmt.Errorf("write round %d: %w", r.Number, err)
			}
		}
		for _, n := range b.Nonces {
			if err := upsertNonce(ctx, tx, n); err != nil {
				return err
			}
		}
		for _, e := range b.Events {
			if err := insertEvent(ctx, tx, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		switch {
		case isDuplicateKeyError(err):
			return fmt.Errorf("%w: %v", storage.ErrDuplicateKey, err)
		case isSerializationError(err):
			return fmt.Errorf("%w: %v", storage.ErrConflict, err)
		}
		return err
	}

	b.AdvanceVersions()
	return nil
}

// table describes a versioned table. The first keyCols columns form the primary key.
type table struct {
	name    string
	columns []string
	keyCols int
}

func (t table) insertSQL() string {
	placeholders := make([]string, len(t.columns))
	for i := range t.columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s, version) VALUES (%s, 1)",
		t.name, strings.Join(t.columns, ", "), strings.Join(placeholders, ", "))
}

func (t table) updateSQL() string {
	sets := make([]string, 0, len(t.columns)-t.keyCols)
	for i := t.keyCols; i < len(t.columns); i++ {
		sets = append(sets, fmt.Sprintf("%s = $%d", t.columns[i], i+1))
	}
	return fmt.Sprintf("UPDATE %s SET %s, version = version + 1 WHERE %s AND version = $%d",
		t.name, strings.Join(sets, ", "), t.keyWhere(), len(t.columns)+1)
}

func (t table) existsSQL() string {
	return fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE %s)", t.name, t.keyWhere())
}

func (t table) selectSQL() string {
	return fmt.Sprintf("SELECT %s, version FROM %s", strings.Join(t.columns, ", "), t.name)
}

func (t table) keyWhere() string {
	conds := make([]string, t.keyCols)
	for i := 0; i < t.keyCols; i++ {
		conds[i] = fmt.Sprintf("%s = $%d", t.columns[i], i+1)
	}
	return strings.Join(conds, " AND ")
}

// writeVersioned inserts when version is 0 and compare-and-swaps otherwise.
func writeVersioned(ctx context.Context, tx pgx.Tx, t table, args []any, version uint64) error {
	if version == 0 {
		if _, err := tx.Exec(ctx, t.insertSQL(), args...); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return err
		}
		return nil
	}

	tag, err := tx.Exec(ctx, t.updateSQL(), append(args, int64(version))...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := tx.QueryRow(ctx, t.existsSQL(), args[:t.keyCols]...).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return storage.ErrNotFound
	}
	return storage.ErrConflict
}

// Unsigned columns are stored in BIGINT/SMALLINT with a bit-preserving conversion.
func u64(v uint64) int64 { return int64(v) }
func u8(v uint8) int16   { return int16(v) }

func copyFixed(dst []byte, src []byte, what string) error {
	if len(src) != len(dst) {
		return fmt.Errorf("%s: expected %d bytes, got %d", what, len(dst), len(src))
	}
	copy(dst, src)
	return nil
}

// notFound maps pgx.ErrNoRows to storage.ErrNotFound.
func notFound(err error, what string) error {
	if isNotFoundError(err) {
		return storage.ErrNotFound
	}
	return fmt.Errorf("%s: %w", what, err)
}
