package feed

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
)

type fakeSource struct {
	mu     sync.Mutex
	events []*domain.Event
}

func (s *fakeSource) Events(_ context.Context, poolID string, afterSeq uint64, limit int) ([]*domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Event
	for _, ev := range s.events {
		if ev.PoolID == poolID && ev.Sequence > afterSeq && (limit <= 0 || len(out) < limit) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func event(pool string, seq uint64, kind domain.EventKind) *domain.Event {
	return &domain.Event{ID: "id", PoolID: pool, Sequence: seq, Kind: kind, At: int64(seq)}
}

func (h *Hub) subscribers(poolID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[poolID])
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readSequences(t *testing.T, conn *websocket.Conn, n int) []uint64 {
	t.Helper()
	var seqs []uint64
	for i := 0; i < n; i++ {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second)) //nolint:errcheck
		var msg Message
		require.NoError(t, conn.ReadJSON(&msg))
		seqs = append(seqs, msg.Sequence)
	}
	return seqs
}

func TestHub_ReplayThenLive(t *testing.T) {
	source := &fakeSource{events: []*domain.Event{
		event("p", 1, domain.EventPoolInitialized),
		event("p", 2, domain.EventOrderSubmitted),
		event("p", 3, domain.EventOrderSubmitted),
		event("other", 1, domain.EventPoolInitialized),
	}}
	clients := prometheus.NewGauge(prometheus.GaugeOpts{Name: "clients"})
	hub, err := NewHub(Options{Source: source, Clients: clients})
	require.NoError(t, err)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv, "pool=p&after=1")
	require.Eventually(t, func() bool { return hub.subscribers("p") == 1 }, 5*time.Second, 10*time.Millisecond)

	// Sequence 3 is both stored and live; it must arrive once.
	hub.Notify(context.Background(), []*domain.Event{
		event("p", 3, domain.EventOrderSubmitted),
		event("other", 2, domain.EventOrderSubmitted),
		event("p", 4, domain.EventRoundStarted),
	})

	assert.Equal(t, []uint64{2, 3, 4}, readSequences(t, conn, 3))
}

func TestHub_MessageShape(t *testing.T) {
	idx := uint8(2)
	ev := event("p", 7, domain.EventTradeExecuted)
	ev.RoundNumber = 3
	ev.ExecutorIndex = &idx
	ev.Trade = &domain.TradePair{BuyOrder: domain.Hash{1}, SellOrder: domain.Hash{2}, MatchedAmount: 10, ExecutionPrice: 105}

	hub, err := NewHub(Options{Source: &fakeSource{events: []*domain.Event{ev}}})
	require.NoError(t, err)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv, "pool=p")
	conn.SetReadDeadline(time.Now().Add(5 * time.Second)) //nolint:errcheck
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))

	assert.Equal(t, domain.EventTradeExecuted, msg.Kind)
	assert.Equal(t, uint64(3), msg.Round)
	require.NotNil(t, msg.ExecutorIndex)
	assert.Equal(t, uint8(2), *msg.ExecutorIndex)
	require.NotNil(t, msg.Trade)
	assert.Equal(t, uint64(105), msg.Trade.Price)
	assert.Equal(t, domain.Hash{1}, msg.Trade.BuyOrder)
}

func TestHub_RejectsBadQuery(t *testing.T) {
	hub, err := NewHub(Options{Source: &fakeSource{}})
	require.NoError(t, err)

	tests := []string{"/", "/?pool=p&after=x"}
	for _, target := range tests {
		rec := httptest.NewRecorder()
		hub.ServeHTTP(rec, httptest.NewRequest("GET", target, nil))
		assert.Equal(t, 400, rec.Code, target)
	}
}

func TestHub_DropsLaggingClient(t *testing.T) {
	dropped := prometheus.NewCounter(prometheus.CounterOpts{Name: "dropped"})
	hub, err := NewHub(Options{Source: &fakeSource{}, SendBuffer: 1, Dropped: dropped})
	require.NoError(t, err)

	c := &client{poolID: "p", send: make(chan *domain.Event, 1)}
	require.True(t, hub.add(c))

	hub.Notify(context.Background(), []*domain.Event{event("p", 1, domain.EventOrderSubmitted), event("p", 2, domain.EventOrderSubmitted)})

	assert.Zero(t, hub.subscribers("p"))
	ev, ok := <-c.send
	require.True(t, ok)
	assert.Equal(t, uint64(1), ev.Sequence)
	_, ok = <-c.send
	assert.False(t, ok, "send channel closed after drop")
}

func TestHub_Close(t *testing.T) {
	hub, err := NewHub(Options{Source: &fakeSource{}})
	require.NoError(t, err)

	c := &client{poolID: "p", send: make(chan *domain.Event, 1)}
	require.True(t, hub.add(c))
	hub.Close()

	_, ok := <-c.send
	assert.False(t, ok)
	assert.False(t, hub.add(&client{poolID: "p", send: make(chan *domain.Event, 1)}))
}

func TestNewHub_RequiresSource(t *testing.T) {
	_, err := NewHub(Options{})
	assert.Error(t, err)
}
