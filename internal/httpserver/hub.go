package httpserver

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Allow any origin for demo use; restrict in production
		return true
	},
}

// fragmentMessage is what the browser receives while a turn is streaming.
// Types: "fragment", "complete", "error".
type fragmentMessage struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

// Hub pushes in-flight answer fragments to each user's open websockets so
// the page can render the reply incrementally, the way the source UI
// repainted its placeholder per chunk.
type Hub struct {
	mu    sync.Mutex
	conns map[string]map[*websocket.Conn]*sync.Mutex

	// writeTimeout bounds each frame write; Publish runs inside the
	// interaction cycle, so a stalled client must not hold the session.
	writeTimeout time.Duration
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{
		conns:        make(map[string]map[*websocket.Conn]*sync.Mutex),
		writeTimeout: 5 * time.Second,
	}
}

func (h *Hub) add(user string, conn *websocket.Conn) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[user] == nil {
		h.conns[user] = make(map[*websocket.Conn]*sync.Mutex)
	}
	wmu := &sync.Mutex{}
	h.conns[user][conn] = wmu
	return wmu
}

func (h *Hub) remove(user string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns[user], conn)
	if len(h.conns[user]) == 0 {
		delete(h.conns, user)
	}
}

// Publish sends a message to every connection the user has open. Slow or
// broken connections are dropped rather than allowed to stall a turn.
func (h *Hub) Publish(user string, msg fragmentMessage) {
	h.mu.Lock()
	targets := make(map[*websocket.Conn]*sync.Mutex, len(h.conns[user]))
	for conn, wmu := range h.conns[user] {
		targets[conn] = wmu
	}
	h.mu.Unlock()

	for conn, wmu := range targets {
		wmu.Lock()
		_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		err := conn.WriteJSON(msg)
		wmu.Unlock()
		if err != nil {
			log.Printf("ws write error for %s: %v", user, err)
			h.remove(user, conn)
			_ = conn.Close()
		}
	}
}

// Fragment publishes one answer fragment.
func (h *Hub) Fragment(user, text string) {
	h.Publish(user, fragmentMessage{Type: "fragment", Text: text})
}

// Serve upgrades the request and keeps the connection registered until the
// client goes away. Incoming frames are read and discarded; the feed is
// one-way.
func (h *Hub) Serve(user string, w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	h.add(user, conn)
	defer func() {
		h.remove(user, conn)
		_ = conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
