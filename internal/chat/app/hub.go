package app

import (
	"encoding/json"
	"sync"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/pkg/logger"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// Sender is the write side of one connection. *websocket.Conn satisfies it.
type Sender interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// client pairs a connection with its bounded outbound queue. A single pump
// goroutine drains the queue, so the underlying conn only ever sees one
// writer.
type client struct {
	sessionID string
	conn      Sender
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *client) writePump() {
	for {
		select {
		case msg := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				if logger.Log != nil {
					logger.Log.Errorf("write message error:", err, zap.String("sessionID", c.sessionID))
				}
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// Hub decouples room fanout from the store-mutation path: broadcasts enqueue
// onto per-connection bounded queues and never block on a slow consumer.
// Backpressure policy: a connection whose queue is full is disconnected
// rather than silently skipped or allowed to stall the room.
type Hub struct {
	queueSize int

	mu      sync.RWMutex
	clients map[string]*client
}

// NewHub create a hub whose per-connection queues hold queueSize frames.
func NewHub(queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Hub{
		queueSize: queueSize,
		clients:   make(map[string]*client),
	}
}

// Register attaches a connection and starts its write pump.
func (h *Hub) Register(sessionID string, conn Sender) {
	c := &client{
		sessionID: sessionID,
		conn:      conn,
		send:      make(chan []byte, h.queueSize),
		done:      make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[sessionID] = c
	h.mu.Unlock()

	go c.writePump()
}

// Unregister detaches the connection and cancels all further sends to it.
// In-flight broadcasts that still name the session become no-ops.
func (h *Hub) Unregister(sessionID string) {
	h.mu.Lock()
	c, ok := h.clients[sessionID]
	delete(h.clients, sessionID)
	h.mu.Unlock()

	if ok {
		c.close()
	}
}

// SendTo delivers one response to a single connection. Unknown session ids
// are a no-op, not an error.
func (h *Hub) SendTo(sessionID string, resp domain.WSResponse) {
	h.mu.RLock()
	c, ok := h.clients[sessionID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	h.enqueue(c, encode(resp))
}

// Broadcast delivers one response to every named session.
func (h *Hub) Broadcast(sessionIDs []string, resp domain.WSResponse) {
	h.BroadcastExcept(sessionIDs, "", resp)
}

// BroadcastExcept delivers to every named session except one, typically the
// sender of a typing notification.
func (h *Hub) BroadcastExcept(sessionIDs []string, exceptID string, resp domain.WSResponse) {
	data := encode(resp)

	h.mu.RLock()
	targets := make([]*client, 0, len(sessionIDs))
	for _, id := range sessionIDs {
		if id == exceptID {
			continue
		}
		if c, ok := h.clients[id]; ok {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.enqueue(c, data)
	}
}

func (h *Hub) enqueue(c *client, data []byte) {
	select {
	case c.send <- data:
	case <-c.done:
	default:
		// Queue full: the consumer is too slow to keep its view of the
		// room consistent, so drop the connection.
		if logger.Log != nil {
			logger.Log.Warn("send queue overflow, disconnecting", zap.String("sessionID", c.sessionID))
		}
		h.Unregister(c.sessionID)
	}
}

func encode(resp domain.WSResponse) []byte {
	data, _ := json.Marshal(resp)
	return data
}
