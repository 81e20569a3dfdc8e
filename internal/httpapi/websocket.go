package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"crowdnav/internal/nav/engine"
)

// maxConnectionsTotal and maxConnectionsPerIP bound the demo server's
// exposure to connection-flood abuse, matching the teacher's WebSocketHub
// limits.
const (
	maxConnectionsTotal = 200
	maxConnectionsPerIP = 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type wsClient struct {
	conn *websocket.Conn
	ip   string
}

// Hub broadcasts engine snapshots to connected viewers at a fixed cadence,
// adapted from the teacher's WebSocketHub.
type Hub struct {
	clients    map[*websocket.Conn]*wsClient
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *websocket.Conn
	mu         sync.RWMutex

	connLimiter *connLimiter
}

// NewHub constructs an unstarted Hub; call Run in a goroutine.
func NewHub() *Hub {
	return &Hub{
		clients:     make(map[*websocket.Conn]*wsClient),
		broadcast:   make(chan []byte, 256),
		register:    make(chan *wsClient),
		unregister:  make(chan *websocket.Conn),
		connLimiter: newConnLimiter(maxConnectionsPerIP),
	}
}

// Run processes register/unregister/broadcast events until the process
// exits; intended to run on its own goroutine for the server's lifetime.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.conn] = client
			h.mu.Unlock()
			log.Printf("client connected from %s (%d total)", client.ip, h.ClientCount())

		case conn := <-h.unregister:
			h.mu.Lock()
			if client, ok := h.clients[conn]; ok {
				h.connLimiter.release(client.ip)
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			for conn := range h.clients {
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					conn.Close()
					go func(c *websocket.Conn) { h.unregister <- c }(conn)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// ClientCount returns the current number of connected viewers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastSnapshot publishes one world snapshot to every connected viewer,
// silently dropping the send if the broadcast channel is saturated.
func (h *Hub) BroadcastSnapshot(agents []engine.AgentSnapshot, field engine.FieldSnapshot) {
	payload, err := json.Marshal(map[string]interface{}{
		"event": "world:snapshot",
		"data": map[string]interface{}{
			"agents": agents,
			"grid":   field.Grid,
		},
	})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- payload:
	default:
	}
}

// StartBroadcastLoop ticks BroadcastSnapshot at the given rate, skipping
// work entirely while no viewers are connected.
func (h *Hub) StartBroadcastLoop(e *engine.Engine, rate time.Duration) {
	ticker := time.NewTicker(rate)
	go func() {
		for range ticker.C {
			if h.ClientCount() == 0 {
				continue
			}
			agents, field := e.Snapshot()
			h.BroadcastSnapshot(agents, field)
		}
	}()
}

// HandleWebSocket upgrades the request and registers the connection,
// enforcing total and per-IP connection caps.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := ClientIP(r)

	if h.ClientCount() >= maxConnectionsTotal {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}
	if !h.connLimiter.allow(ip) {
		http.Error(w, "too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.connLimiter.release(ip)
		return
	}

	client := &wsClient{conn: conn, ip: ip}
	h.register <- client

	go func() {
		defer func() { h.unregister <- conn }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
