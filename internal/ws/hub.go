package ws

import (
	"encoding/json"
	"sync"
)

// Client is one websocket connection of an authenticated user.
type Client struct {
	UserID uint
	send   chan []byte
	hub    *Hub
	mu     sync.Mutex
	closed bool
}

func NewClient(userID uint, buffer int) *Client {
	return &Client{UserID: userID, send: make(chan []byte, buffer)}
}

// Outbound is drained by the connection's write pump; it closes on Close.
func (c *Client) Outbound() <-chan []byte {
	return c.send
}

// Push queues a frame without blocking. Frames for a slow or closed client are dropped.
func (c *Client) Push(payload interface{}) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	hub := c.hub
	c.mu.Unlock()
	if hub != nil {
		hub.unregister(c)
	}
}

// Hub tracks live connections per user so notifications can reach every device.
type Hub struct {
	mu     sync.RWMutex
	byUser map[uint]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{byUser: make(map[uint]map[*Client]struct{})}
}

func (h *Hub) Register(c *Client) {
	c.mu.Lock()
	c.hub = h
	c.mu.Unlock()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.byUser[c.UserID] == nil {
		h.byUser[c.UserID] = make(map[*Client]struct{})
	}
	h.byUser[c.UserID][c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m := h.byUser[c.UserID]; m != nil {
		delete(m, c)
		if len(m) == 0 {
			delete(h.byUser, c.UserID)
		}
	}
}

// SendToUser pushes payload to every connection of userID and returns how many accepted it.
func (h *Hub) SendToUser(userID uint, payload interface{}) int {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.byUser[userID]))
	for c := range h.byUser[userID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	sent := 0
	for _, c := range clients {
		if c.Push(payload) {
			sent++
		}
	}
	return sent
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, m := range h.byUser {
		n += len(m)
	}
	return n
}
