package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/roadpilot/internal/logger"
	"github.com/ayusman/roadpilot/internal/objects"
)

const (
	writeWait = time.Second
	// sendBuffer is how many state messages may wait for a slow client.
	sendBuffer = 32
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// StateMessage is one control decision pushed to websocket clients.
type StateMessage struct {
	Speed      int                      `json:"speed"`
	SpeedLimit int                      `json:"speed_limit"`
	Objects    []objects.DetectedObject `json:"objects"`
	Timestamp  int64                    `json:"timestamp"`
}

// StateHub broadcasts car state to websocket clients. Each client has its
// own writer goroutine, so Broadcast never waits on the network.
type StateHub struct {
	clients map[*client]bool
	mu      sync.Mutex
	log     *logger.Logger
}

// client is one websocket connection and its pending messages.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewStateHub creates a hub with no clients.
func NewStateHub(log *logger.Logger) *StateHub {
	return &StateHub{
		clients: make(map[*client]bool),
		log:     logger.Or(log),
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *StateHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warning("websocket upgrade error: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	go h.writeLoop(c)
	defer h.remove(c)

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *StateHub) writeLoop(c *client) {
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.Debug("dropping websocket client: %v", err)
			h.remove(c)
			return
		}
	}
}

func (h *StateHub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(c)
}

// drop must be called with h.mu held.
func (h *StateHub) drop(c *client) {
	if !h.clients[c] {
		return
	}
	delete(h.clients, c)
	close(c.send)
	c.conn.Close()
}

// Clients returns the number of connected clients.
func (h *StateHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues msg for every client and returns without waiting for
// the writes. A client whose queue is full misses the message.
func (h *StateHub) Broadcast(msg StateMessage) error {
	if msg.Objects == nil {
		msg.Objects = []objects.DetectedObject{}
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.Debug("websocket client is behind, skipping a state message")
		}
	}
	return nil
}

// Close disconnects all clients.
func (h *StateHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.drop(c)
	}
}
