package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/handtree/internal/gesture"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

const (
	// clientBuffer is how many envelopes a slow client may fall behind
	// before it is dropped.
	clientBuffer = 64
	writeWait    = time.Second
)

// EventHub broadcasts engine events to WebSocket clients.
type EventHub struct {
	session string

	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
}

// NewEventHub creates an EventHub that stamps envelopes with session.
func NewEventHub(session string) *EventHub {
	return &EventHub{
		session: session,
		clients: make(map[*websocket.Conn]chan []byte),
	}
}

// Callbacks returns engine callbacks that publish to the hub.
func (h *EventHub) Callbacks() gesture.Callbacks {
	return gesture.EventCallbacks(h.Publish)
}

// Publish sends ev to every connected client without blocking. A client
// whose buffer is full is disconnected.
func (h *EventHub) Publish(ev gesture.Event) {
	msg, err := json.Marshal(gesture.NewEnvelope(h.session, ev, time.Now()))
	if err != nil {
		log.Printf("event hub: encode %s: %v", ev.Kind, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn, send := range h.clients {
		select {
		case send <- msg:
		default:
			log.Printf("event hub: dropping slow client %s", conn.RemoteAddr())
			conn.Close()
		}
	}
}

// Clients returns the number of connected clients.
func (h *EventHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan []byte, clientBuffer)
	h.mu.Lock()
	h.clients[conn] = send
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Reads only detect the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case msg := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}
