package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wolfman30/clinic-intake/internal/analytics"
	"github.com/wolfman30/clinic-intake/internal/events"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

const (
	feedWriteWait  = 10 * time.Second
	feedPongWait   = 60 * time.Second
	feedPingPeriod = (feedPongWait * 9) / 10
	feedBuffer     = 32
)

// Feed message types.
const (
	FeedNewAppointment = "new-appointment"
	FeedActivity       = "activity"
)

// FeedMessage is one frame on the live dashboard stream.
type FeedMessage struct {
	Type string    `json:"type"`
	Data any       `json:"data"`
	At   time.Time `json:"at"`
}

type feedClient struct {
	conn *websocket.Conn
	send chan []byte
}

// FeedHub streams booking events and activity entries to connected
// dashboards. It is a notify.Sink, so bookings reach it through the
// dispatcher like every other sink. A client that cannot keep up is
// disconnected rather than allowed to block the broadcast.
type FeedHub struct {
	upgrader websocket.Upgrader
	logger   *logging.Logger

	mu      sync.Mutex
	clients map[*feedClient]struct{}
	closed  bool
}

// NewFeedHub builds a hub. With no allowed origins only same-host
// upgrades are accepted; "*" accepts any origin.
func NewFeedHub(allowedOrigins []string, logger *logging.Logger) *FeedHub {
	if logger == nil {
		logger = logging.Default()
	}
	h := &FeedHub{
		logger:  logger,
		clients: make(map[*feedClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
	if len(allowedOrigins) > 0 {
		h.upgrader.CheckOrigin = originChecker(allowedOrigins)
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(strings.TrimSpace(o), "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || set["*"] || set[origin] {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

// Name identifies the hub among notification sinks.
func (h *FeedHub) Name() string { return "dashboard" }

// Notify broadcasts a new booking. It never fails.
func (h *FeedHub) Notify(ctx context.Context, evt events.AppointmentBookedV1) error {
	h.broadcast(FeedMessage{Type: FeedNewAppointment, Data: evt, At: evt.OccurredAt})
	return nil
}

// PublishActivity broadcasts an activity feed entry. It is shaped to be
// passed to analytics.Collector.Subscribe.
func (h *FeedHub) PublishActivity(a analytics.Activity) {
	h.broadcast(FeedMessage{Type: FeedActivity, Data: a, At: a.Timestamp})
}

// Clients is the number of connected dashboards.
func (h *FeedHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and keeps the connection until the
// client leaves or the hub closes.
func (h *FeedHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("dashboard feed upgrade failed", "error", err)
		return
	}
	c := &feedClient{conn: conn, send: make(chan []byte, feedBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("dashboard feed connected", "remote_ip", r.RemoteAddr)

	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop discards client frames; it exists to notice disconnects and
// answer pings.
func (h *FeedHub) readLoop(c *feedClient) {
	defer h.drop(c)
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(feedPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(feedPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *FeedHub) writeLoop(c *feedClient) {
	ticker := time.NewTicker(feedPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.drop(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.drop(c)
				return
			}
		}
	}
}

func (h *FeedHub) broadcast(msg FeedMessage) {
	if msg.At.IsZero() {
		msg.At = time.Now()
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("dashboard feed encode failed", "type", msg.Type, "error", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("dashboard feed client too slow, disconnecting")
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// drop unregisters c once; the write loop closes the connection.
func (h *FeedHub) drop(c *feedClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Close disconnects every client and refuses new ones.
func (h *FeedHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
