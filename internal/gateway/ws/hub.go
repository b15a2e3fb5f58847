package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"hearth/internal/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 64 * 1024

	// Inbound frames carry a client-generated message id; the hub drops
	// duplicates so a reconnecting client re-sending its queue does not
	// produce double messages.
	seenLimit = 1024
)

// Inbound is called for each deduplicated frame a client sends.
type Inbound func(ctx context.Context, conversationID, memberID string, frame []byte)

// Hub tracks websocket clients per conversation and fans replies out to
// them.
type Hub struct {
	logger  *logging.Logger
	inbound Inbound

	mu      sync.RWMutex
	clients map[string]map[*Client]bool // conversation id -> clients

	seenMu  sync.Mutex
	seen    map[string]bool
	seenLog []string
}

// NewHub creates an empty hub.
func NewHub(logger *logging.Logger, inbound Inbound) *Hub {
	return &Hub{
		logger:  logger,
		inbound: inbound,
		clients: make(map[string]map[*Client]bool),
		seen:    make(map[string]bool),
	}
}

// Client is one websocket connection scoped to a conversation.
type Client struct {
	hub            *Hub
	conn           *websocket.Conn
	send           chan []byte
	conversationID string
	memberID       string
}

// Register wraps an upgraded connection and starts its pumps.
func (h *Hub) Register(conn *websocket.Conn, conversationID, memberID string) {
	c := &Client{
		hub:            h,
		conn:           conn,
		send:           make(chan []byte, 16),
		conversationID: conversationID,
		memberID:       memberID,
	}

	h.mu.Lock()
	if h.clients[conversationID] == nil {
		h.clients[conversationID] = make(map[*Client]bool)
	}
	h.clients[conversationID][c] = true
	h.mu.Unlock()

	h.logger.Info("Websocket client joined conversation %s (member %s)", conversationID, memberID)

	go c.writePump()
	go c.readPump()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if conns, ok := h.clients[c.conversationID]; ok {
		if conns[c] {
			delete(conns, c)
			close(c.send)
		}
		if len(conns) == 0 {
			delete(h.clients, c.conversationID)
		}
	}
	h.mu.Unlock()
}

// Broadcast sends a raw JSON frame to every client in a conversation.
func (h *Hub) Broadcast(conversationID string, frame []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for c := range h.clients[conversationID] {
		select {
		case c.send <- frame:
			n++
		default:
			// Slow consumer; drop the frame rather than block the hub.
		}
	}
	return n
}

// Close shuts every connection down.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for convID, conns := range h.clients {
		for c := range conns {
			close(c.send)
			c.conn.Close()
		}
		delete(h.clients, convID)
	}
}

// markSeen reports whether the message id was already processed and
// records it. Old entries fall off once the log exceeds seenLimit.
func (h *Hub) markSeen(id string) bool {
	if id == "" {
		return false
	}
	h.seenMu.Lock()
	defer h.seenMu.Unlock()
	if h.seen[id] {
		return true
	}
	h.seen[id] = true
	h.seenLog = append(h.seenLog, id)
	if len(h.seenLog) > seenLimit {
		delete(h.seen, h.seenLog[0])
		h.seenLog = h.seenLog[1:]
	}
	return false
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Error("Websocket read error: %v", err)
			}
			return
		}
		id := frameMessageID(frame)
		if c.hub.markSeen(id) {
			c.hub.logger.Info("Dropping duplicate frame %s", id)
			continue
		}
		if c.hub.inbound != nil {
			c.hub.inbound(context.Background(), c.conversationID, c.memberID, frame)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
