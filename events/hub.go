// Package events fans task changes out to browser clients over websockets so
// open pages refresh when another client or the automation service edits a task.
package events

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
)

type MessageType string

const (
	MessageTypeConnected     MessageType = "connected"
	MessageTypeTaskCreated   MessageType = "task_created"
	MessageTypeTaskUpdated   MessageType = "task_updated"
	MessageTypeTaskDeleted   MessageType = "task_deleted"
	MessageTypeTaskProcessed MessageType = "task_processed"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage marshals data into a message. Data that cannot be marshaled is dropped.
func NewMessage(t MessageType, data any) Message {
	msg := Message{Type: t, Timestamp: time.Now().UTC()}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			msg.Data = raw
		}
	}
	return msg
}

const writeTimeout = 5 * time.Second

// Hub tracks connected clients and broadcasts messages to all of them.
type Hub struct {
	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	broadcast chan Message
	logger    *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 100),
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start runs the broadcast loop until Stop.
func (h *Hub) Start() {
	h.wg.Add(1)
	go h.broadcastLoop()
}

// Stop closes every client and waits for the broadcast loop to exit.
func (h *Hub) Stop() {
	h.cancel()

	h.clientsMu.Lock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		clients = append(clients, conn)
		delete(h.clients, conn)
	}
	h.clientsMu.Unlock()

	// Close waits for the peer's close frame, so it runs outside the lock.
	for _, conn := range clients {
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
	}

	h.wg.Wait()
}

// Publish queues msg for broadcast. It never blocks; a full queue drops the message.
func (h *Hub) Publish(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Println("Warning: broadcast channel full, dropping message")
	}
}

func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// Handler upgrades the request and keeps the connection registered until the
// client goes away.
func (h *Hub) Handler(c *gin.Context) {
	h.ServeHTTP(c.Writer, c.Request)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	h.clientsMu.Lock()
	h.clients[conn] = true
	clientCount := len(h.clients)
	h.clientsMu.Unlock()

	h.logger.Printf("Events client connected (total: %d)", clientCount)

	welcome, _ := json.Marshal(Message{Type: MessageTypeConnected, Timestamp: time.Now().UTC()})
	ctx, cancel := context.WithTimeout(h.ctx, writeTimeout)
	_ = conn.Write(ctx, websocket.MessageText, welcome)
	cancel()

	h.readLoop(conn)
}

func (h *Hub) broadcastLoop() {
	defer h.wg.Done()

	for {
		select {
		case <-h.ctx.Done():
			return

		case msg := <-h.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now().UTC()
			}
			data, err := json.Marshal(msg)
			if err != nil {
				h.logger.Printf("Failed to marshal event: %v", err)
				continue
			}

			h.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(h.clients))
			for conn := range h.clients {
				clients = append(clients, conn)
			}
			h.clientsMu.RUnlock()

			for _, conn := range clients {
				ctx, cancel := context.WithTimeout(h.ctx, writeTimeout)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()
				if err != nil {
					h.logger.Printf("Failed to send event to client: %v", err)
					h.removeClient(conn)
				}
			}
		}
	}
}

// readLoop discards client frames; it returns when the client disconnects.
func (h *Hub) readLoop(conn *websocket.Conn) {
	defer h.removeClient(conn)

	for {
		if _, _, err := conn.Read(h.ctx); err != nil {
			return
		}
	}
}

func (h *Hub) removeClient(conn *websocket.Conn) {
	h.clientsMu.Lock()
	if _, ok := h.clients[conn]; !ok {
		h.clientsMu.Unlock()
		return
	}
	delete(h.clients, conn)
	clientCount := len(h.clients)
	h.clientsMu.Unlock()

	_ = conn.Close(websocket.StatusNormalClosure, "")
	h.logger.Printf("Events client disconnected (total: %d)", clientCount)
}
