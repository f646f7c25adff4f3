package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/marketlane/backend/internal/cache"
	"github.com/marketlane/backend/internal/models"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 10240 // 10KB
)

// Client represents one admin's WebSocket connection. Message content never
// travels over this channel; the server pushes refresh signals and presence,
// and the client sends read acknowledgments.
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	userID      uuid.UUID
	email       string
	connectedAt time.Time

	redis *cache.RedisClient
	log   *slog.Logger

	// simple token-bucket rate limiter
	tokens       int
	maxTokens    int
	refillPeriod time.Duration
	lastRefill   time.Time
}

// NewClient creates a new WebSocket client
func NewClient(
	hub *Hub,
	conn *websocket.Conn,
	userID uuid.UUID,
	email string,
	redis *cache.RedisClient,
	log *slog.Logger,
) *Client {
	return &Client{
		hub:          hub,
		conn:         conn,
		send:         make(chan []byte, 256),
		userID:       userID,
		email:        email,
		connectedAt:  time.Now(),
		redis:        redis,
		log:          log,
		tokens:       20,
		maxTokens:    20,
		refillPeriod: time.Second,
		lastRefill:   time.Now(),
	}
}

// ReadPump pumps messages from the WebSocket connection to the hub
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		// A live connection doubles as the presence heartbeat.
		c.redis.Heartbeat(c.userID)
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket read error", "user_id", c.userID, "error", err)
			}
			break
		}

		// Token-bucket rate limit per connection.
		now := time.Now()
		elapsed := now.Sub(c.lastRefill)
		if elapsed >= c.refillPeriod {
			add := int(elapsed / c.refillPeriod)
			c.tokens += add
			if c.tokens > c.maxTokens {
				c.tokens = c.maxTokens
			}
			c.lastRefill = now
		}

		if c.tokens <= 0 {
			c.sendError("rate_limited")
			continue
		}
		c.tokens--

		c.handleMessage(message)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current WebSocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
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

// handleMessage handles incoming WebSocket messages
func (c *Client) handleMessage(data []byte) {
	var wsMsg models.WSMessage
	if err := json.Unmarshal(data, &wsMsg); err != nil {
		c.sendError("Invalid message format")
		return
	}

	switch wsMsg.Event {
	case models.EventMessageRead:
		c.handleMessageRead(wsMsg.Payload)

	default:
		c.sendError("Unknown event type")
	}
}

// handleMessageRead relays a read acknowledgment to the other participants'
// UIs. The authoritative read state is written through the REST mark-read
// endpoint; this event only keeps open conversation views in sync.
func (c *Client) handleMessageRead(payload interface{}) {
	data, _ := json.Marshal(payload)
	var req models.WSMessageReadPayload
	if err := json.Unmarshal(data, &req); err != nil {
		c.sendError("Invalid read payload")
		return
	}
	req.UserID = c.userID

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conv, err := c.hub.convs.GetByID(ctx, req.ConversationID)
	if err != nil {
		c.sendError("Unknown conversation")
		return
	}
	if !conv.HasParticipant(c.userID) {
		c.sendError("Access denied")
		return
	}

	recipients := make([]uuid.UUID, 0, len(conv.Participants))
	for _, p := range conv.Participants {
		if p.UserID != c.userID {
			recipients = append(recipients, p.UserID)
		}
	}

	if err := c.hub.SendToParticipants(recipients, models.WSMessage{
		Event:   models.EventMessageRead,
		Payload: req,
	}); err != nil {
		c.sendError("Failed to relay read receipt")
	}
}

// sendError sends an error message to the client
func (c *Client) sendError(message string) {
	errorMsg := models.WSMessage{
		Event: models.EventError,
		Payload: models.WSErrorPayload{
			Message: message,
		},
	}

	data, _ := json.Marshal(errorMsg)
	select {
	case c.send <- data:
	default:
	}
}
