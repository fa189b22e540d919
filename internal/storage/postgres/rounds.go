package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
)

var roundTable = table{
	name: "rounds",
	columns: []string{
		"pool_id", "number", "vrf_seed", "vrf_proof", "proposer",
		"status", "started_at", "completed_at", "threshold", "order_hashes",
		"partials", "trades", "fills", "clearing_price", "total_volume",
		"total_fees", "failure_reason", "schema_version",
	},
	keyCols: 2,
}

// JSONB documents stored with a round.
type partialDoc struct {
	ExecutorIndex uint8  `json:"executor_index"`
	OrderIndex    uint32 `json:"order_index"`
	Share         []byte `json:"share"`
	SubmittedAt   int64  `json:"submitted_at"`
}

type tradeDoc struct {
	BuyOrder       domain.Hash `json:"buy_order"`
	SellOrder      domain.Hash `json:"sell_order"`
	MatchedAmount  uint64      `json:"matched_amount"`
	ExecutionPrice uint64      `json:"execution_price"`
}

type fillDoc struct {
	OrderHash  domain.Hash        `json:"order_hash"`
	Filled     uint64             `json:"filled"`
	EscrowUsed uint64             `json:"escrow_used"`
	Status     domain.OrderStatus `json:"status"`
	Refund     uint64             `json:"refund"`
}

func roundArgs(r *domain.Round) ([]any, error) {
	hashes := r.OrderHashes
	if hashes == nil {
		hashes = []domain.Hash{}
	}
	partials := make([]partialDoc, len(r.Partials))
	for i, p := range r.Partials {
		partials[i] = partialDoc(p)
	}
	trades := make([]tradeDoc, len(r.Trades))
	for i, t := range r.Trades {
		trades[i] = tradeDoc(t)
	}
	fills := make([]fillDoc, len(r.Fills))
	for i, f := range r.Fills {
		fills[i] = fillDoc(f)
	}

	docs := make([][]byte, 0, 4)
	for _, v := range []any{hashes, partials, trades, fills} {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode round %d: %w", r.Number, err)
		}
		docs = append(docs, raw)
	}

	return []any{
		r.PoolID, u64(r.Number), r.VRFSeed[:], r.VRFProof[:], r.Proposer[:],
		string(r.Status), r.StartedAt, r.CompletedAt, u8(r.Threshold), docs[0],
		docs[1], docs[2], docs[3], u64(r.ClearingPrice), u64(r.TotalVolume),
		u64(r.TotalFees), r.FailureReason, int16(r.SchemaVersion),
	}, nil
}

// scanRound scans a single row into a Round.
func scanRound(row pgx.Row) (*domain.Round, error) {
	var r domain.Round
	var number, clearing, volume, fees, version int64
	var seed, proof, proposer []byte
	var status string
	var threshold, schemaVersion int16
	var hashesRaw, partialsRaw, tradesRaw, fillsRaw []byte

	err := row.Scan(
		&r.PoolID, &number, &seed, &proof, &proposer,
		&status, &r.StartedAt, &r.CompletedAt, &threshold, &hashesRaw,
		&partialsRaw, &tradesRaw, &fillsRaw, &clearing, &volume,
		&fees, &r.FailureReason, &schemaVersion, &version,
	)
	if err != nil {
		return nil, err
	}

	if err := copyFixed(r.VRFSeed[:], seed, "vrf seed"); err != nil {
		return nil, err
	}
	if err := copyFixed(r.VRFProof[:], proof, "vrf proof"); err != nil {
		return nil, err
	}
	if err := copyFixed(r.Proposer[:], proposer, "round proposer"); err != nil {
		return nil, err
	}

	var partials []partialDoc
	var trades []tradeDoc
	var fills []fillDoc
	if err := json.Unmarshal(hashesRaw, &r.OrderHashes); err != nil {
		return nil, fmt.Errorf("decode order hashes: %w", err)
	}
	if err := json.Unmarshal(partialsRaw, &partials); err != nil {
		return nil, fmt.Errorf("decode partials: %w", err)
	}
	if err := json.Unmarshal(tradesRaw, &trades); err != nil {
		return nil, fmt.Errorf("decode trades: %w", err)
	}
	if err := json.Unmarshal(fillsRaw, &fills); err != nil {
		return nil, fmt.Errorf("decode fills: %w", err)
	}
	for _, p := range partials {
		r.Partials = append(r.Partials, domain.PartialDecryption(p))
	}
	for _, t := range trades {
		r.Trades = append(r.Trades, domain.TradePair(t))
	}
	for _, f := range fills {
		r.Fills = append(r.Fills, domain.OrderFill(f))
	}

	r.Number = uint64(number)
	r.Status = domain.RoundStatus(status)
	r.Threshold = uint8(threshold)
	r.ClearingPrice = uint64(clearing)
	r.TotalVolume = uint64(volume)
	r.TotalFees = uint64(fees)
	r.SchemaVersion = uint16(schemaVersion)
	r.Version = uint64(version)
	return &r, nil
}

// GetRound retrieves a round by pool and number. Returns ErrNotFound if not exists.
func (s *Store) GetRound(ctx context.Context, poolID string, number uint64) (*domain.Round, error) {
	row := s.pool.QueryRow(ctx, roundTable.selectSQL()+` WHERE pool_id = $1 AND number = $2`, poolID, u64(number))
	r, err := scanRound(row)
	if err != nil {
		return nil, notFound(err, "get round")
	}
	return r, nil
}
