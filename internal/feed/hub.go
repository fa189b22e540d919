// Package feed streams committed pool notifications to websocket subscribers.
//
// A client connects to /ws?pool=<id>&after=<seq>. Stored notifications with
// sequence above after are replayed first, then live ones follow. Every
// message is delivered at most once and in sequence order. A client that
// falls more than the send buffer behind is disconnected and can resume with
// after set to the last sequence it saw. At most ReplayLimit notifications
// are replayed; a client further behind pages the events endpoint first.
package feed

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	defaultSendBuffer  = 256
	defaultReplayLimit = 1000
)

// EventSource reads stored notifications.
type EventSource interface {
	Events(ctx context.Context, poolID string, afterSeq uint64, limit int) ([]*domain.Event, error)
}

// Options for creating a Hub.
type Options struct {
	// Required
	Source EventSource

	// Optional
	SendBuffer  int // per client; default 256
	ReplayLimit int // max notifications replayed on connect; default 1000
	Logger      *zap.Logger
	Clients     prometheus.Gauge   // connected clients
	Dropped     prometheus.Counter // clients disconnected for lagging
}

// Hub fans notifications out to subscribed websocket clients.
type Hub struct {
	source      EventSource
	sendBuffer  int
	replayLimit int
	logger      *zap.Logger
	clients     prometheus.Gauge
	dropped     prometheus.Counter
	upgrader    websocket.Upgrader

	mu     sync.Mutex
	subs   map[string]map[*client]struct{} // pool id -> clients
	closed bool
}

type client struct {
	conn   *websocket.Conn
	poolID string
	send   chan *domain.Event
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// NewHub creates a new Hub.
func NewHub(opts Options) (*Hub, error) {
	if opts.Source == nil {
		return nil, errors.New("feed: event source is required")
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	if opts.ReplayLimit <= 0 {
		opts.ReplayLimit = defaultReplayLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Hub{
		source:      opts.Source,
		sendBuffer:  opts.SendBuffer,
		replayLimit: opts.ReplayLimit,
		logger:      logger.Named("feed"),
		clients:     opts.Clients,
		dropped:     opts.Dropped,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		subs: make(map[string]map[*client]struct{}),
	}, nil
}

// Notify implements the engine notifier. It never blocks on a slow client.
func (h *Hub) Notify(_ context.Context, events []*domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ev := range events {
		for c := range h.subs[ev.PoolID] {
			select {
			case c.send <- ev:
			default:
				h.logger.Warn("dropping lagging feed client",
					zap.String("pool", c.poolID),
					zap.Uint64("sequence", ev.Sequence),
				)
				h.removeLocked(c)
				if h.dropped != nil {
					h.dropped.Inc()
				}
			}
		}
	}
}

// ServeHTTP upgrades the request and streams the requested pool.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	poolID := r.URL.Query().Get("pool")
	if poolID == "" {
		http.Error(w, "pool query parameter is required", http.StatusBadRequest)
		return
	}
	var after uint64
	if s := r.URL.Query().Get("after"); s != "" {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			http.Error(w, "after must be an unsigned integer", http.StatusBadRequest)
			return
		}
		after = v
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, poolID: poolID, send: make(chan *domain.Event, h.sendBuffer)}
	if !h.add(c) {
		conn.Close()
		return
	}

	// Subscribe before reading the backlog so nothing committed in between is lost.
	backlog, err := h.source.Events(r.Context(), poolID, after, h.replayLimit)
	if err != nil {
		h.logger.Warn("feed replay failed", zap.String("pool", poolID), zap.Error(err))
		h.remove(c)
		conn.Close()
		return
	}

	go h.readPump(c)
	h.writePump(c, backlog, after)
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	set, ok := h.subs[c.poolID]
	if !ok {
		set = make(map[*client]struct{})
		h.subs[c.poolID] = set
	}
	set[c] = struct{}{}
	if h.clients != nil {
		h.clients.Inc()
	}
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	set := h.subs[c.poolID]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.subs, c.poolID)
	}
	c.close()
	if h.clients != nil {
		h.clients.Dec()
	}
}

// readPump discards client messages and handles pongs until the peer goes away.
func (h *Hub) readPump(c *client) {
	defer h.remove(c)

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client, backlog []*domain.Event, last uint64) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(ev *domain.Event) bool {
		if ev.Sequence <= last {
			return true
		}
		c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
		if err := c.conn.WriteJSON(NewMessage(ev)); err != nil {
			return false
		}
		last = ev.Sequence
		return true
	}

	for _, ev := range backlog {
		if !write(ev) {
			h.remove(c)
			return
		}
	}

	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				bye := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, strconv.FormatUint(last, 10))
				c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
				c.conn.WriteMessage(websocket.CloseMessage, bye)   //nolint:errcheck
				return
			}
			if !write(ev) {
				h.remove(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, set := range h.subs {
		for c := range set {
			h.removeLocked(c)
		}
	}
}
