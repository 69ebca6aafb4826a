package feed

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	clientBuffer = 64
	writeWait    = 5 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
)

// Hub fans frames out to every connected websocket client.
type Hub struct {
	logger    *slog.Logger
	upgrader  websocket.Upgrader
	onClients func(int)

	mu      sync.Mutex
	clients map[*client]struct{}
	last    map[string][]byte
}

type client struct {
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithClientGauge reports the client count after every change.
func WithClientGauge(fn func(int)) HubOption {
	return func(h *Hub) {
		h.onClients = fn
	}
}

// NewHub builds an empty hub.
func NewHub(logger *slog.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		logger:  logger,
		clients: make(map[*client]struct{}),
		last:    make(map[string][]byte),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Publish sends a frame to every client. Slow clients drop frames rather than block.
func (h *Hub) Publish(frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.logWarn("encode feed frame", "type", frame.Type, "error", err.Error())
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if sticky(frame.Type) {
		h.last[frame.Type] = data
	}
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

// Clients reports the connected client count.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams frames until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logWarn("feed upgrade failed", "error", err.Error())
		return
	}

	c := &client{send: make(chan []byte, clientBuffer)}
	h.register(c)

	go h.writeLoop(conn, c)
	h.readLoop(conn)

	h.unregister(c)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	for _, frameType := range []string{TypeState, TypeDashboard, TypeText} {
		if data, ok := h.last[frameType]; ok {
			c.send <- data
		}
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.reportClients(n)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.reportClients(n)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
	h.reportClients(0)
}

// readLoop drains client messages so control frames are processed.
func (h *Hub) readLoop(conn *websocket.Conn) {
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !isClosed(err) {
				h.logDebug("feed client read failed", "error", err.Error())
			}
			return
		}
	}
}

func (h *Hub) writeLoop(conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) reportClients(n int) {
	if h.onClients != nil {
		h.onClients(n)
	}
}

func (h *Hub) logWarn(msg string, args ...any) {
	if h.logger != nil {
		h.logger.Warn(msg, args...)
	}
}

func (h *Hub) logDebug(msg string, args ...any) {
	if h.logger != nil {
		h.logger.Debug(msg, args...)
	}
}

func isClosed(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure)
}
