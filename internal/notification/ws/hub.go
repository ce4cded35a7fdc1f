// Package ws pushes saga notifications to connected websocket clients.
package ws

import (
	"crypto/rand"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type client struct {
	wsID    string
	conn    *websocket.Conn
	msgChan chan []byte
}

func newClient(conn *websocket.Conn) *client {
	wsID := rand.Text()
	logrus.Infof("new feed client conn %s", wsID)
	return &client{
		wsID:    wsID,
		conn:    conn,
		msgChan: make(chan []byte, 16),
	}
}

// Hub fans notification payloads out to every connected client. Slow
// clients are dropped rather than allowed to stall the broadcast.
type Hub struct {
	mu      sync.Mutex
	clients map[string]*client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*client)}
}

// Broadcast marshals v and queues it to each client.
func (h *Hub) Broadcast(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logrus.Errorf("feed: marshal broadcast: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		select {
		case c.msgChan <- b:
		default:
			logrus.Warnf("feed: client %s too slow, dropping", c.wsID)
			h.removeLocked(c)
		}
	}
}

// ServeHTTP upgrades the connection and registers the client with the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Errorf("feed: upgrade: %v", err)
		return
	}

	c := newClient(conn)
	h.mu.Lock()
	h.clients[c.wsID] = c
	h.mu.Unlock()

	go c.writeLoop()
	go h.readLoop(c)
}

func (h *Hub) readLoop(c *client) {
	defer func() {
		h.mu.Lock()
		h.removeLocked(c)
		h.mu.Unlock()
	}()
	for {
		// The feed is one-way. Reads only detect the close frame.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writeLoop() {
	defer c.conn.Close()
	for b := range c.msgChan {
		if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
			logrus.Errorf("feed: write to %s: %v", c.wsID, err)
			return
		}
	}
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c.wsID]; !ok {
		return
	}
	delete(h.clients, c.wsID)
	close(c.msgChan)
	logrus.Infof("feed client removed %s", c.wsID)
}
