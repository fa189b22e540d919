// Package api exposes the engine operations over HTTP.
//
// The caller identity is taken from the X-Caller header (base58 public key).
// Authenticating that identity is left to the deployment in front of the
// service; the engine still verifies every order and cancellation signature.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Kartikvyas1604/PhantomPool/internal/engine"
	"github.com/Kartikvyas1604/PhantomPool/internal/ledger"
)

// CallerHeader carries the base58 identity of the caller.
const CallerHeader = "X-Caller"

// Funds reads and, when the faucet is enabled, credits ledger balances.
type Funds interface {
	Credit(account, asset string, amount uint64) error
	Holdings(account string) []ledger.Holding
}

// Options for creating a Server.
type Options struct {
	// Required
	Engine *engine.Engine

	// Optional
	Funds   Funds        // enables GET /v1/accounts/{owner}/balances
	Faucet  bool         // enables POST /v1/accounts/{owner}/credit; local runs only
	Feed    http.Handler // mounted at /ws
	Metrics http.Handler // mounted at /metrics
	Logger  *zap.Logger
	Now     func() time.Time
}

// Server routes HTTP requests to the engine.
type Server struct {
	engine  *engine.Engine
	funds   Funds
	faucet  bool
	feed    http.Handler
	metrics http.Handler
	logger  *zap.Logger
	started time.Time
	now     func() time.Time
}

// NewServer creates a new Server.
func NewServer(opts Options) (*Server, error) {
	if opts.Engine == nil {
		return nil, errors.New("api: engine is required")
	}
	if opts.Faucet && opts.Funds == nil {
		return nil, errors.New("api: faucet requires funds")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Server{
		engine:  opts.Engine,
		funds:   opts.Funds,
		faucet:  opts.Faucet,
		feed:    opts.Feed,
		metrics: opts.Metrics,
		logger:  logger.Named("api"),
		started: now(),
		now:     now,
	}, nil
}

// Router builds the HTTP routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	if s.feed != nil {
		r.Method(http.MethodGet, "/ws", s.feed)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/pools", s.handleListPools)
		r.Post("/pools", s.handleInitializePool)

		r.Route("/pools/{pool}", func(r chi.Router) {
			r.Get("/", s.handleGetPool)
			r.Post("/pause", s.handlePause)
			r.Post("/unpause", s.handleUnpause)
			r.Get("/events", s.handleEvents)

			r.Get("/orders", s.handleListOrders)
			r.Post("/orders", s.handleSubmitOrder)
			r.Get("/orders/{hash}", s.handleGetOrder)
			r.Post("/orders/{hash}/cancel", s.handleCancelOrder)

			r.Get("/executors", s.handleListExecutors)
			r.Post("/executors", s.handleRegisterExecutor)
			r.Post("/executors/{index}/heartbeat", s.handleHeartbeat)
			r.Post("/executors/{index}/slash", s.handleSlash)

			r.Post("/rounds", s.handleOpenRound)
			r.Get("/rounds/current", s.handleCurrentRound)
			r.Get("/rounds/{number}", s.handleGetRound)
			r.Post("/rounds/current/shares", s.handleSubmitShares)
			r.Post("/rounds/current/complete", s.handleCompleteRound)
			r.Post("/rounds/current/abort", s.handleAbortRound)
		})

		if s.funds != nil {
			r.Get("/accounts/{owner}/balances", s.handleBalances)
			if s.faucet {
				r.Post("/accounts/{owner}/credit", s.handleCredit)
			}
		}
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
