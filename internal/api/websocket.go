package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"gate-snake/internal/game"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// MaxWSConnectionsTotal is the maximum number of WebSocket connections allowed
	MaxWSConnectionsTotal = 200

	// MaxWSConnectionsPerIP is the maximum WebSocket connections per IP
	MaxWSConnectionsPerIP = 5

	wsSendBuffer   = 8
	wsWriteTimeout = 5 * time.Second
	wsMaxMessage   = 512
)

// SnapshotSubscriber is the engine side of the broadcast loop.
type SnapshotSubscriber interface {
	Subscribe() (<-chan *game.Snapshot, func())
}

// wsMessage is the envelope used in both directions.
type wsMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// wsClient tracks a WebSocket connection with its source IP
type wsClient struct {
	conn *websocket.Conn
	ip   string
	send chan []byte
	once sync.Once
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// WebSocketHub fans snapshots out to spectators and forwards their
// direction commands to the engine.
type WebSocketHub struct {
	engine   EngineInterface
	readOnly bool
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*wsClient]struct{}

	wsLimiter *WebSocketRateLimiter
	stopChan  chan struct{}
	stopOnce  sync.Once
}

// NewWebSocketHub creates a new hub with connection limiting. Commands from
// clients are ignored when readOnly is set.
func NewWebSocketHub(engine EngineInterface, origins OriginPolicy, readOnly bool) *WebSocketHub {
	h := &WebSocketHub{
		engine:    engine,
		readOnly:  readOnly,
		clients:   make(map[*wsClient]struct{}),
		wsLimiter: NewWebSocketRateLimiter(MaxWSConnectionsPerIP),
		stopChan:  make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origins.Allowed(origin) {
				return true
			}
			log.Warn().Str("origin", origin).Msg("websocket connection rejected")
			RecordConnectionRejected("origin")
			return false
		},
	}
	return h
}

// Run broadcasts every new snapshot until Stop is called.
func (h *WebSocketHub) Run(source SnapshotSubscriber) {
	updates, cancel := source.Subscribe()
	defer cancel()

	for {
		select {
		case <-h.stopChan:
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				h.wsLimiter.Release(c.ip)
				c.close()
			}
			h.mu.Unlock()
			UpdateWSConnections(0)
			return
		case snap := <-updates:
			if h.ClientCount() > 0 {
				h.Broadcast("game:state", snap)
			}
		}
	}
}

// Stop ends Run and closes every client.
func (h *WebSocketHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopChan)
	})
}

// Broadcast sends a message to all connected clients. Slow clients whose
// buffer is full miss the message.
func (h *WebSocketHub) Broadcast(event string, data interface{}) {
	msg, err := encodeMessage(event, data)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("websocket encode failed")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// Backpressure: skip this frame for this client
		}
	}
	IncrementWSMessages()
}

func encodeMessage(event string, data interface{}) ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"event": event,
		"data":  data,
	})
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *WebSocketHub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	log.Info().Str("ip", c.ip).Int("total", count).Msg("websocket client connected")
	UpdateWSConnections(count)
}

func (h *WebSocketHub) unregister(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		h.wsLimiter.Release(c.ip)
		c.close()
	}
	count := len(h.clients)
	h.mu.Unlock()

	log.Info().Int("remaining", count).Msg("websocket client disconnected")
	UpdateWSConnections(count)
}

// HandleWebSocket handles incoming WebSocket connections with DoS protection
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	if total := h.ClientCount(); total >= MaxWSConnectionsTotal {
		log.Warn().Int("total", total).Msg("websocket rejected: total limit reached")
		RecordConnectionRejected("ws_total_limit")
		writeError(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}
	if !h.wsLimiter.Allow(ip) {
		log.Warn().Str("ip", ip).Msg("websocket rejected: per-IP limit reached")
		RecordConnectionRejected("ws_ip_limit")
		writeError(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("websocket upgrade failed")
		h.wsLimiter.Release(ip)
		return
	}
	conn.SetReadLimit(wsMaxMessage)

	client := &wsClient{conn: conn, ip: ip, send: make(chan []byte, wsSendBuffer)}

	// The first frame is the current state so a spectator never starts blank.
	if first, err := encodeMessage("game:state", h.engine.GetSnapshot()); err == nil {
		client.send <- first
	}
	h.register(client)

	go h.writePump(client)
	go h.readPump(client)
}

func (h *WebSocketHub) writePump(c *wsClient) {
	defer c.conn.Close()

	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.unregister(c)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *WebSocketHub) readPump(c *wsClient) {
	defer h.unregister(c)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		h.handleCommand(c, msg)
	}
}

// handleCommand applies a client command. Errors are sent back to that
// client only.
func (h *WebSocketHub) handleCommand(c *wsClient, msg wsMessage) {
	if h.readOnly {
		h.reply(c, "error", "read only")
		return
	}

	switch msg.Event {
	case "direction":
		var name string
		if err := json.Unmarshal(msg.Data, &name); err != nil {
			h.reply(c, "error", "direction must be a string")
			return
		}
		dir, err := game.ParseDirection(name)
		if err != nil || dir == game.DirNone {
			h.reply(c, "error", "unknown direction")
			return
		}
		if h.engine.GetSnapshot().Outcome.Over() {
			h.reply(c, "error", "game is over")
			return
		}
		h.engine.SubmitDirection(dir)

	case "restart":
		if err := h.engine.Restart(); err != nil {
			h.reply(c, "error", err.Error())
		}

	default:
		log.Debug().Str("event", msg.Event).Str("ip", c.ip).Msg("unknown websocket event")
	}
}

func (h *WebSocketHub) reply(c *wsClient, event string, data interface{}) {
	msg, err := encodeMessage(event, data)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}
