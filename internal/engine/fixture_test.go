package engine

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
	"github.com/Kartikvyas1604/PhantomPool/internal/idhash"
	"github.com/Kartikvyas1604/PhantomPool/internal/ledger"
	"github.com/Kartikvyas1604/PhantomPool/internal/storage/memory"
	"github.com/Kartikvyas1604/PhantomPool/internal/threshold"
	"github.com/Kartikvyas1604/PhantomPool/internal/verify"
	"github.com/Kartikvyas1604/PhantomPool/internal/verify/stub"
)

const (
	baseAsset  = "SOL"
	quoteAsset = "USDC"
	startTime  = int64(1_700_000_000)
)

type fakeClock struct {
	mu  sync.Mutex
	now int64
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Unix(c.now, 0)
}

func (c *fakeClock) Advance(seconds int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += seconds
}

// flakyTransfers fails the transfer for which failOn returns true.
type flakyTransfers struct {
	*ledger.Ledger
	failOn func(domain.Transfer) bool
}

func (f *flakyTransfers) Transfer(ctx context.Context, t domain.Transfer) error {
	if f.failOn != nil && f.failOn(t) {
		return errors.New("injected transfer failure")
	}
	return f.Ledger.Transfer(ctx, t)
}

type eventLog struct {
	mu     sync.Mutex
	events []*domain.Event
}

func (l *eventLog) Notify(_ context.Context, events []*domain.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, events...)
}

func (l *eventLog) kinds() []domain.EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.EventKind, len(l.events))
	for i, e := range l.events {
		out[i] = e.Kind
	}
	return out
}

type fixture struct {
	t         *testing.T
	ctx       context.Context
	store     *memory.Store
	analytics *memory.AnalyticsStore
	ledger    *ledger.Ledger
	transfers *flakyTransfers
	verifier  *stub.Verifier
	clock     *fakeClock
	events    *eventLog
	engine    *Engine

	authority domain.PublicKey
	pool      *domain.Pool

	nonce      byte
	plaintexts map[domain.Hash]domain.Plaintext
	shares     map[domain.Hash][][]byte
}

type fixtureOption func(*Options, *PoolParams)

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	f := &fixture{
		t:          t,
		ctx:        context.Background(),
		store:      memory.NewStore(),
		analytics:  memory.NewAnalyticsStore(),
		ledger:     ledger.New(),
		verifier:   stub.NewVerifier(),
		clock:      &fakeClock{now: startTime},
		events:     &eventLog{},
		authority:  domain.PublicKey{0xA1},
		plaintexts: make(map[domain.Hash]domain.Plaintext),
		shares:     make(map[domain.Hash][][]byte),
	}
	f.transfers = &flakyTransfers{Ledger: f.ledger}

	engineOpts := Options{
		Store:     f.store,
		Analytics: f.analytics,
		Transfers: f.transfers,
		Verifiers: f.verifier.Suite(),
		Combiner:  threshold.Shamir{},
		Notifiers: []Notifier{f.events},
		Now:       f.clock.Now,
	}
	poolParams := PoolParams{
		TokenPair:        baseAsset + "/" + quoteAsset,
		ElGamalPublicKey: []byte{0x04, 0x01},
		VRFPublicKey:     vrfPublicKey(),
		Threshold:        3,
		TotalExecutors:   5,
		MinOrderSize:     1,
		MaxOrderSize:     1_000_000_000_000,
		FeeBps:           1000,
	}
	for _, opt := range opts {
		opt(&engineOpts, &poolParams)
	}

	eng, err := New(engineOpts)
	require.NoError(t, err)
	f.engine = eng

	pool, err := eng.InitializePool(f.ctx, f.authority, poolParams)
	require.NoError(t, err)
	f.pool = pool
	return f
}

func vrfKey() ed25519.PrivateKey {
	var seed [ed25519.SeedSize]byte
	seed[0] = 0x5e
	return ed25519.NewKeyFromSeed(seed[:])
}

func vrfPublicKey() [32]byte {
	var pk [32]byte
	copy(pk[:], vrfKey().Public().(ed25519.PublicKey))
	return pk
}

func trader(n byte) domain.PublicKey {
	return domain.PublicKey{0x10, n}
}

func executorAuthority(index uint8) domain.PublicKey {
	return domain.PublicKey{0xE0, index}
}

// fund credits a trader wallet with both assets.
func (f *fixture) fund(owner domain.PublicKey, amount uint64) {
	require.NoError(f.t, f.ledger.Credit(domain.WalletAccount(owner), baseAsset, amount))
	require.NoError(f.t, f.ledger.Credit(domain.WalletAccount(owner), quoteAsset, amount))
}

func (f *fixture) balance(owner domain.PublicKey, asset string) uint64 {
	return f.ledger.Balance(domain.WalletAccount(owner), asset)
}

// orderRequest builds a signed-looking order whose plaintext the fixture remembers.
func (f *fixture) orderRequest(owner domain.PublicKey, side domain.Side, amount, price uint64) SubmitOrderRequest {
	f.nonce++
	deposit := amount
	if side == domain.SideBuy {
		deposit = amount * price
	}
	req := SubmitOrderRequest{
		EncryptedAmount: []byte(fmt.Sprintf("enc-amount-%d", f.nonce)),
		EncryptedPrice:  []byte(fmt.Sprintf("enc-price-%d", f.nonce)),
		Side:            side,
		SolvencyProof:   []byte("solvency"),
		Nonce:           domain.Nonce{f.nonce},
		Deposit:         deposit,
	}
	req.Hash = idhash.ComputeOrderHash(req.Content(f.pool.ID, owner))

	plain := domain.Plaintext{Amount: amount, Price: price}
	values, err := threshold.Split(plain, int(f.pool.Threshold), int(f.pool.TotalExecutors), nil)
	require.NoError(f.t, err)
	f.plaintexts[req.Hash] = plain
	f.shares[req.Hash] = values
	return req
}

func (f *fixture) submit(owner domain.PublicKey, side domain.Side, amount, price uint64) *domain.Order {
	f.t.Helper()
	o, err := f.engine.SubmitOrder(f.ctx, f.pool.ID, owner, f.orderRequest(owner, side, amount, price))
	require.NoError(f.t, err)
	return o
}

func (f *fixture) registerExecutors(n int) {
	f.t.Helper()
	stake := f.engine.Params().MinimumExecutorStake
	for i := 0; i < n; i++ {
		auth := executorAuthority(uint8(i))
		require.NoError(f.t, f.ledger.Credit(domain.WalletAccount(auth), quoteAsset, stake))
		_, err := f.engine.RegisterExecutor(f.ctx, f.pool.ID, auth, RegisterExecutorRequest{
			Index: uint8(i),
			Stake: stake,
		})
		require.NoError(f.t, err)
	}
}

func (f *fixture) openRound() *domain.Round {
	f.t.Helper()
	r, err := f.engine.OpenRound(f.ctx, f.pool.ID, f.authority, [domain.VRFProofSize]byte{}, [domain.VRFOutputSize]byte{0x42})
	require.NoError(f.t, err)
	return r
}

// sharesFor returns executor index's shares for every order of the round.
func (f *fixture) sharesFor(round *domain.Round, index uint8) []domain.Share {
	out := make([]domain.Share, len(round.OrderHashes))
	for i, h := range round.OrderHashes {
		out[i] = domain.Share{OrderIndex: uint32(i), Value: f.shares[h][index]}
	}
	return out
}

func (f *fixture) submitShares(round *domain.Round, index uint8) *ShareResult {
	f.t.Helper()
	res, err := f.engine.SubmitPartialDecryption(f.ctx, f.pool.ID, executorAuthority(index), index, f.sharesFor(round, index), []byte("proof"))
	require.NoError(f.t, err)
	return res
}

func (f *fixture) reloadPool() *domain.Pool {
	f.t.Helper()
	p, err := f.engine.Pool(f.ctx, f.pool.ID)
	require.NoError(f.t, err)
	return p
}

func (f *fixture) executionProof(round *domain.Round) [domain.ExecutionProofSize]byte {
	return verify.BuildExecutionProof(round.PoolID, round.Number, round.ClearingPrice, round.Trades)
}
