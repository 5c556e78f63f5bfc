// Live pass-progress streaming. The hub fans PassProgress and
// SubstitutionAlert events out to every connected websocket client.
// The driver publishes through Broadcast and must never stall on a
// slow consumer: each client gets a bounded send queue, and a client
// whose queue is full is dropped.
package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const clientQueueSize = 64

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Local dashboards connect from arbitrary origins.
	CheckOrigin: func(*http.Request) bool { return true },
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub owns the client set. All membership changes and fan-out go
// through Run's select loop, so no lock is needed.
type Hub struct {
	register   chan *wsClient
	unregister chan *wsClient
	events     chan []byte
	clients    map[*wsClient]struct{}
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		events:     make(chan []byte, 256),
		clients:    make(map[*wsClient]struct{}),
	}
}

// Run is the hub's event loop; the caller starts it once in its own
// goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = struct{}{}
			log.Printf("websocket client connected (%d total)", len(h.clients))
		case c := <-h.unregister:
			h.drop(c)
		case msg := <-h.events:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// The queue is full: the client is too slow for the
					// pass it is watching. Cut it loose.
					h.drop(c)
				}
			}
		}
	}
}

func (h *Hub) drop(c *wsClient) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		log.Printf("websocket client disconnected (%d total)", len(h.clients))
	}
}

// Broadcast queues one JSON event for every connected client.
func (h *Hub) Broadcast(event []byte) {
	h.events <- event
}

// Subscribe upgrades the request and starts the client's read and
// write pumps.
func (h *Hub) Subscribe(c *gin.Context) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}
	client := &wsClient{conn: conn, send: make(chan []byte, clientQueueSize)}
	h.register <- client

	go client.writePump()
	go client.readPump(h)
}

// writePump drains the send queue onto the wire until the hub closes
// the queue or a write fails.
func (c *wsClient) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// readPump discards inbound frames. The stream is one-way, but reading
// is what surfaces the peer's close handshake and network errors.
func (c *wsClient) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket read error: %v", err)
			}
			return
		}
	}
}
