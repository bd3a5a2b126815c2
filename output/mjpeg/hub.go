package mjpeg

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/noriah/pulsecat/event"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 200 * time.Millisecond
	clientSend = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub pushes every event to the connected websocket clients as a text
// message. It is an event.Emitter; a client whose queue is full misses the
// event.
type Hub struct {
	schema event.Schema

	mu    sync.Mutex
	conns map[*websocket.Conn]chan []byte
}

func NewHub(schema event.Schema) *Hub {
	return &Hub{
		schema: schema,
		conns:  make(map[*websocket.Conn]chan []byte),
	}
}

func (h *Hub) add(c *websocket.Conn) chan []byte {
	send := make(chan []byte, clientSend)

	h.mu.Lock()
	h.conns[c] = send
	h.mu.Unlock()

	return send
}

func (h *Hub) remove(c *websocket.Conn) {
	h.mu.Lock()
	if send, ok := h.conns[c]; ok {
		delete(h.conns, c)
		close(send)
	}
	h.mu.Unlock()
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *Hub) Emit(ev event.Event) {
	data, err := h.schema.Marshal(ev)
	if err != nil {
		log.Debug().Err(err).Msg("dropping event, encode failed")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c, send := range h.conns {
		select {
		case send <- data:
		default:
			log.Debug().Str("remote", c.RemoteAddr().String()).Msg("websocket client behind, dropping event")
		}
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	send := h.add(conn)
	defer func() {
		h.remove(conn)
		conn.Close()
	}()

	go func() {
		for data := range send {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				conn.Close()
				return
			}
		}
	}()

	// clients only listen; reading notices when they go away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
