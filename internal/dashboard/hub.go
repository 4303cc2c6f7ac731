package dashboard

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mofyally02/atozbot/internal/model"
	"github.com/mofyally02/atozbot/internal/scheduler"
	"github.com/mofyally02/atozbot/internal/store"
	"github.com/mofyally02/atozbot/internal/tracker"
)

// Message types sent to dashboard clients.
const (
	MsgJobAccepted     = "job_accepted"
	MsgJobRejected     = "job_rejected"
	MsgStatusChange    = "status_change"
	MsgMetricUpdate    = "metric_update"
	MsgAnalyticsUpdate = "analytics_update"
)

const (
	sendBuffer = 64
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var (
	_ tracker.Sink        = (*Hub)(nil)
	_ scheduler.Publisher = (*Hub)(nil)
)

// Message is the envelope of every websocket message.
type Message struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans bot events out to connected websocket clients. Clients that fall
// behind are dropped.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub creates a hub. An empty allowedOrigins accepts only same-host
// connections.
func NewHub(allowedOrigins []string, logger *slog.Logger) *Hub {
	h := &Hub{
		logger:  logger.With("component", "hub"),
		now:     time.Now,
		clients: make(map[*client]struct{}),
	}
	if len(allowedOrigins) > 0 {
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			return slices.Contains(allowedOrigins, r.Header.Get("Origin"))
		}
	}
	return h
}

// ServeHTTP upgrades the request and registers the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)

	go h.writeLoop(c)
	go h.readLoop(c)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast sends a message to every client.
func (h *Hub) Broadcast(msgType string, data any) {
	payload, err := json.Marshal(Message{Type: msgType, Data: data, Timestamp: h.now().UTC()})
	if err != nil {
		h.logger.Error("encoding websocket message failed", "type", msgType, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("dropping slow websocket client")
			h.removeLocked(c)
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) OnAccepted(job model.AcceptedJob) { h.Broadcast(MsgJobAccepted, job) }

func (h *Hub) OnRejected(job model.RejectedJob) { h.Broadcast(MsgJobRejected, job) }

func (h *Hub) OnLoginStatus(status tracker.LoginStatus) {
	h.Broadcast(MsgStatusChange, map[string]any{
		"login_status": status.Message,
		"success":      status.Success,
	})
}

// Publish sends the counters of a tracker snapshot.
func (h *Hub) Publish(snap tracker.Snapshot) {
	h.Broadcast(MsgMetricUpdate, map[string]any{
		"total_checks":    snap.CheckCycles,
		"total_accepted":  snap.TotalAccepted,
		"total_rejected":  snap.TotalRejected,
		"acceptance_rate": snap.AcceptanceRate,
		"last_activity":   snap.LastActivity,
	})
}

// PublishAnalytics sends a freshly computed analytics period.
func (h *Hub) PublishAnalytics(p store.AnalyticsPeriod) { h.Broadcast(MsgAnalyticsUpdate, p) }

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.remove(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}

// readLoop discards client messages and notices disconnects.
func (h *Hub) readLoop(c *client) {
	defer h.remove(c)
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
