package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
	"github.com/Kartikvyas1604/PhantomPool/internal/storage"
)

func insertEvent(ctx context.Context, tx pgx.Tx, e *domain.Event) error {
	id, err := uuid.Parse(e.ID)
	if err != nil {
		return fmt.Errorf("%w: event id: %v", storage.ErrInvalidInput, err)
	}

	var orderHash []byte
	if e.OrderHash != nil {
		orderHash = e.OrderHash[:]
	}
	var executorIndex *int16
	if e.ExecutorIndex != nil {
		idx := u8(*e.ExecutorIndex)
		executorIndex = &idx
	}
	var trade []byte
	if e.Trade != nil {
		if trade, err = json.Marshal(tradeDoc(*e.Trade)); err != nil {
			return fmt.Errorf("encode event trade: %w", err)
		}
	}
	attrs := e.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	attributes, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("encode event attributes: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO pool_events (
			pool_id, sequence, id, kind, round_number, order_hash, executor_index, trade, attributes, at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, e.PoolID, u64(e.Sequence), id, string(e.Kind), u64(e.RoundNumber),
		orderHash, executorIndex, trade, attributes, e.At)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ListEvents retrieves events with sequence > afterSeq ordered by sequence ASC.
func (s *Store) ListEvents(ctx context.Context, poolID string, afterSeq uint64, limit int) ([]*domain.Event, error) {
	query := `
		SELECT pool_id, sequence, id, kind, round_number, order_hash, executor_index, trade, attributes, at
		FROM pool_events
		WHERE pool_id = $1 AND sequence > $2
		ORDER BY sequence ASC
	`
	args := []any{poolID, u64(afterSeq)}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var result []*domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// scanEvent scans a single row into an Event.
func scanEvent(row pgx.Row) (*domain.Event, error) {
	var e domain.Event
	var sequence, roundNumber int64
	var id uuid.UUID
	var kind string
	var orderHash, trade, attributes []byte
	var executorIndex *int16

	err := row.Scan(&e.PoolID, &sequence, &id, &kind, &roundNumber, &orderHash, &executorIndex, &trade, &attributes, &e.At)
	if err != nil {
		return nil, err
	}

	e.ID = id.String()
	e.Sequence = uint64(sequence)
	e.Kind = domain.EventKind(kind)
	e.RoundNumber = uint64(roundNumber)
	if orderHash != nil {
		var h domain.Hash
		if err := copyFixed(h[:], orderHash, "event order hash"); err != nil {
			return nil, err
		}
		e.OrderHash = &h
	}
	if executorIndex != nil {
		idx := uint8(*executorIndex)
		e.ExecutorIndex = &idx
	}
	if trade != nil {
		var doc tradeDoc
		if err := json.Unmarshal(trade, &doc); err != nil {
			return nil, fmt.Errorf("decode event trade: %w", err)
		}
		t := domain.TradePair(doc)
		e.Trade = &t
	}
	if len(attributes) > 0 {
		if err := json.Unmarshal(attributes, &e.Attributes); err != nil {
			return nil, fmt.Errorf("decode event attributes: %w", err)
		}
		if len(e.Attributes) == 0 {
			e.Attributes = nil
		}
	}
	return &e, nil
}
