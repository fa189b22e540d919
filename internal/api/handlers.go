package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
	"github.com/Kartikvyas1604/PhantomPool/internal/engine"
	"github.com/Kartikvyas1604/PhantomPool/internal/feed"
	"github.com/Kartikvyas1604/PhantomPool/internal/ledger"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": s.now().Sub(s.started).Round(time.Second).String(),
	})
}

// --- pools ---

type initializePoolRequest struct {
	TokenPair        string   `json:"token_pair"`
	ElGamalPublicKey hexBytes `json:"elgamal_public_key"`
	VRFPublicKey     hexBytes `json:"vrf_public_key"`
	Threshold        uint8    `json:"threshold"`
	TotalExecutors   uint8    `json:"total_executors"`
	MinOrderSize     uint64   `json:"min_order_size"`
	MaxOrderSize     uint64   `json:"max_order_size"`
	FeeBps           uint16   `json:"fee_bps"`
}

func (s *Server) handleInitializePool(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		unauthorized(w)
		return
	}
	var req initializePoolRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	params := engine.PoolParams{
		TokenPair:        req.TokenPair,
		ElGamalPublicKey: req.ElGamalPublicKey,
		Threshold:        req.Threshold,
		TotalExecutors:   req.TotalExecutors,
		MinOrderSize:     req.MinOrderSize,
		MaxOrderSize:     req.MaxOrderSize,
		FeeBps:           req.FeeBps,
	}
	if err := req.VRFPublicKey.fixed(params.VRFPublicKey[:], "vrf_public_key"); err != nil {
		badRequest(w, err)
		return
	}

	pool, err := s.engine.InitializePool(r.Context(), who, params)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newPoolView(pool))
}

func (s *Server) handleListPools(w http.ResponseWriter, r *http.Request) {
	pools, err := s.engine.Pools(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(pools, newPoolView))
}

func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) {
	pool, err := s.engine.Pool(r.Context(), chi.URLParam(r, "pool"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPoolView(pool))
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.setPaused(w, r, s.engine.Pause)
}

func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request) {
	s.setPaused(w, r, s.engine.Unpause)
}

func (s *Server) setPaused(w http.ResponseWriter, r *http.Request, op func(context.Context, string, domain.PublicKey) (*domain.Pool, error)) {
	who, err := caller(r)
	if err != nil {
		unauthorized(w)
		return
	}
	pool, err := op(r.Context(), chi.URLParam(r, "pool"), who)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPoolView(pool))
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	after, err := parseUint(q.Get("after"), 0)
	if err != nil {
		badRequest(w, fmt.Errorf("after: %w", err))
		return
	}
	limit, err := parseUint(q.Get("limit"), defaultEventLimit)
	if err != nil || limit == 0 {
		badRequest(w, errors.New("limit must be a positive integer"))
		return
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}

	poolID := chi.URLParam(r, "pool")
	if _, err := s.engine.Pool(r.Context(), poolID); err != nil {
		s.writeError(w, err)
		return
	}
	events, err := s.engine.Events(r.Context(), poolID, after, int(limit))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(events, feed.NewMessage))
}

// --- orders ---

type submitOrderRequest struct {
	Hash            domain.Hash      `json:"hash"`
	Side            domain.Side      `json:"side"`
	EncryptedAmount hexBytes         `json:"encrypted_amount"`
	EncryptedPrice  hexBytes         `json:"encrypted_price"`
	SolvencyProof   hexBytes         `json:"solvency_proof"`
	Signature       domain.Signature `json:"signature"`
	Nonce           domain.Nonce     `json:"nonce"`
	Deposit         uint64           `json:"deposit"`
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		unauthorized(w)
		return
	}
	var req submitOrderRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}

	order, err := s.engine.SubmitOrder(r.Context(), chi.URLParam(r, "pool"), who, engine.SubmitOrderRequest{
		Hash:            req.Hash,
		EncryptedAmount: req.EncryptedAmount,
		EncryptedPrice:  req.EncryptedPrice,
		Side:            req.Side,
		SolvencyProof:   req.SolvencyProof,
		Signature:       req.Signature,
		Nonce:           req.Nonce,
		Deposit:         req.Deposit,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newOrderView(order))
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	status := domain.OrderStatus(r.URL.Query().Get("status"))
	if status != "" && !status.IsValid() {
		badRequest(w, fmt.Errorf("unknown order status %q", status))
		return
	}
	orders, err := s.engine.Orders(r.Context(), chi.URLParam(r, "pool"), status)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(orders, newOrderView))
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	hash, err := domain.ParseHash(chi.URLParam(r, "hash"))
	if err != nil {
		badRequest(w, err)
		return
	}
	order, err := s.engine.Order(r.Context(), chi.URLParam(r, "pool"), hash)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderView(order))
}

type cancelOrderRequest struct {
	Signature domain.Signature `json:"signature"`
}

type cancelOrderResponse struct {
	Order  orderView `json:"order"`
	Refund uint64    `json:"refund"`
	Fee    uint64    `json:"fee"`
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		unauthorized(w)
		return
	}
	hash, err := domain.ParseHash(chi.URLParam(r, "hash"))
	if err != nil {
		badRequest(w, err)
		return
	}
	var req cancelOrderRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}

	res, err := s.engine.CancelOrder(r.Context(), chi.URLParam(r, "pool"), who, hash, req.Signature)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cancelOrderResponse{
		Order:  newOrderView(res.Order),
		Refund: res.Refund,
		Fee:    res.Fee,
	})
}

// --- executors ---

type registerExecutorRequest struct {
	Index           uint8    `json:"index"`
	ThresholdShare  hexBytes `json:"threshold_share"`
	VerificationKey hexBytes `json:"verification_key"`
	Stake           uint64   `json:"stake"`
}

func (s *Server) handleRegisterExecutor(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		unauthorized(w)
		return
	}
	var body registerExecutorRequest
	if err := decode(w, r, &body); err != nil {
		badRequest(w, err)
		return
	}
	req := engine.RegisterExecutorRequest{Index: body.Index, Stake: body.Stake}
	if err := body.ThresholdShare.fixed(req.ThresholdShare[:], "threshold_share"); err != nil {
		badRequest(w, err)
		return
	}
	if err := body.VerificationKey.fixed(req.VerificationKey[:], "verification_key"); err != nil {
		badRequest(w, err)
		return
	}

	exec, err := s.engine.RegisterExecutor(r.Context(), chi.URLParam(r, "pool"), who, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newExecutorView(exec))
}

func (s *Server) handleListExecutors(w http.ResponseWriter, r *http.Request) {
	execs, err := s.engine.Executors(r.Context(), chi.URLParam(r, "pool"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(execs, newExecutorView))
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		unauthorized(w)
		return
	}
	index, err := executorIndex(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	exec, err := s.engine.Heartbeat(r.Context(), chi.URLParam(r, "pool"), who, index)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newExecutorView(exec))
}

type slashRequest struct {
	Violation domain.ViolationType `json:"violation"`
	Evidence  hexBytes             `json:"evidence"`
}

type slashResponse struct {
	Executor    executorView `json:"executor"`
	Penalty     uint64       `json:"penalty"`
	Deactivated bool         `json:"deactivated"`
}

func (s *Server) handleSlash(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		unauthorized(w)
		return
	}
	index, err := executorIndex(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	var req slashRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}

	res, err := s.engine.SlashExecutor(r.Context(), chi.URLParam(r, "pool"), who, index, req.Violation, req.Evidence)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slashResponse{
		Executor:    newExecutorView(res.Executor),
		Penalty:     res.Penalty,
		Deactivated: res.Deactivated,
	})
}

// --- rounds ---

type openRoundRequest struct {
	VRFProof  hexBytes `json:"vrf_proof"`
	VRFOutput hexBytes `json:"vrf_output"`
}

func (s *Server) handleOpenRound(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		unauthorized(w)
		return
	}
	var req openRoundRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	var (
		proof  [domain.VRFProofSize]byte
		output [domain.VRFOutputSize]byte
	)
	if err := req.VRFProof.fixed(proof[:], "vrf_proof"); err != nil {
		badRequest(w, err)
		return
	}
	if err := req.VRFOutput.fixed(output[:], "vrf_output"); err != nil {
		badRequest(w, err)
		return
	}

	round, err := s.engine.OpenRound(r.Context(), chi.URLParam(r, "pool"), who, proof, output)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newRoundView(round))
}

func (s *Server) handleCurrentRound(w http.ResponseWriter, r *http.Request) {
	round, err := s.engine.CurrentRound(r.Context(), chi.URLParam(r, "pool"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRoundView(round))
}

func (s *Server) handleGetRound(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.ParseUint(chi.URLParam(r, "number"), 10, 64)
	if err != nil {
		badRequest(w, fmt.Errorf("round number: %w", err))
		return
	}
	round, err := s.engine.Round(r.Context(), chi.URLParam(r, "pool"), number)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRoundView(round))
}

type shareRequest struct {
	OrderIndex uint32   `json:"order_index"`
	Value      hexBytes `json:"value"`
}

type submitSharesRequest struct {
	ExecutorIndex uint8          `json:"executor_index"`
	Shares        []shareRequest `json:"shares"`
	Proof         hexBytes       `json:"proof"`
}

type submitSharesResponse struct {
	Round     roundView `json:"round"`
	Accepted  int       `json:"accepted"`
	Duplicate int       `json:"duplicate"`
}

func (s *Server) handleSubmitShares(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		unauthorized(w)
		return
	}
	var req submitSharesRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	shares := make([]domain.Share, len(req.Shares))
	for i, sh := range req.Shares {
		shares[i] = domain.Share{OrderIndex: sh.OrderIndex, Value: sh.Value}
	}

	res, err := s.engine.SubmitPartialDecryption(r.Context(), chi.URLParam(r, "pool"), who, req.ExecutorIndex, shares, req.Proof)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, submitSharesResponse{
		Round:     newRoundView(res.Round),
		Accepted:  res.Accepted,
		Duplicate: res.Duplicate,
	})
}

type completeRoundRequest struct {
	ExecutionProof hexBytes `json:"execution_proof"`
}

type completeRoundResponse struct {
	Round   roundView        `json:"round"`
	Rewards map[uint8]uint64 `json:"rewards"`
}

func (s *Server) handleCompleteRound(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		unauthorized(w)
		return
	}
	var req completeRoundRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	var proof [domain.ExecutionProofSize]byte
	if err := req.ExecutionProof.fixed(proof[:], "execution_proof"); err != nil {
		badRequest(w, err)
		return
	}

	res, err := s.engine.CompleteRound(r.Context(), chi.URLParam(r, "pool"), who, proof)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, completeRoundResponse{
		Round:   newRoundView(res.Round),
		Rewards: res.Rewards,
	})
}

func (s *Server) handleAbortRound(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		unauthorized(w)
		return
	}
	round, err := s.engine.AbortStalledRound(r.Context(), chi.URLParam(r, "pool"), who)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRoundView(round))
}

// --- accounts ---

type balancesResponse struct {
	Owner    domain.PublicKey `json:"owner"`
	Holdings []ledger.Holding `json:"holdings"`
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	owner, err := domain.ParsePublicKey(chi.URLParam(r, "owner"))
	if err != nil {
		badRequest(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balancesResponse{
		Owner:    owner,
		Holdings: s.funds.Holdings(domain.WalletAccount(owner)),
	})
}

type creditRequest struct {
	Asset  string `json:"asset"`
	Amount uint64 `json:"amount"`
}

func (s *Server) handleCredit(w http.ResponseWriter, r *http.Request) {
	owner, err := domain.ParsePublicKey(chi.URLParam(r, "owner"))
	if err != nil {
		badRequest(w, err)
		return
	}
	var req creditRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	if req.Asset == "" || req.Amount == 0 {
		badRequest(w, errors.New("asset and a positive amount are required"))
		return
	}
	if err := s.funds.Credit(domain.WalletAccount(owner), req.Asset, req.Amount); err != nil {
		badRequest(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balancesResponse{
		Owner:    owner,
		Holdings: s.funds.Holdings(domain.WalletAccount(owner)),
	})
}

// --- helpers ---

func unauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, errorResponse{Error: errMissingCaller.Error(), Kind: "authentication"})
}

func executorIndex(r *http.Request) (uint8, error) {
	v, err := strconv.ParseUint(chi.URLParam(r, "index"), 10, 8)
	if err != nil {
		return 0, fmt.Errorf("executor index: %w", err)
	}
	return uint8(v), nil
}

func parseUint(s string, def uint64) (uint64, error) {
	if s == "" {
		return def, nil
	}
	return strconv.ParseUint(s, 10, 64)
}
