package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marketlane/backend/internal/cache"
	"github.com/marketlane/backend/internal/metrics"
	"github.com/marketlane/backend/internal/models"
)

// ConversationSource resolves a conversation so the hub can target its
// participants. Satisfied by the conversation repository.
type ConversationSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
}

// Hub maintains the set of active clients and fans new-message signals out
// to conversation participants. Signals arrive over Redis pub/sub, so sends
// handled by other server instances reach clients connected here too.
type Hub struct {
	// Registered clients, one connection per user
	clients map[uuid.UUID]*Client

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	redis *cache.RedisClient
	convs ConversationSource
	log   *slog.Logger

	mu sync.RWMutex
}

// NewHub creates a new Hub
func NewHub(redis *cache.RedisClient, convs ConversationSource, log *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		redis:      redis,
		convs:      convs,
		log:        log,
	}
}

// Run starts the hub
func (h *Hub) Run() {
	go h.subscribeToRedis()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if prev, ok := h.clients[client.userID]; ok {
				// A newer connection for the same user replaces the old one.
				close(prev.send)
			}
			h.clients[client.userID] = client
			metrics.WSConnections.Set(float64(len(h.clients)))
			h.mu.Unlock()

			h.redis.Heartbeat(client.userID)
			h.redis.PublishPresence(models.UserPresence{
				UserID:   client.userID,
				Status:   "online",
				LastSeen: client.connectedAt,
			})

			h.log.Info("client registered", "user_id", client.userID)

		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.userID]; ok && current == client {
				delete(h.clients, client.userID)
				close(client.send)
			}
			metrics.WSConnections.Set(float64(len(h.clients)))
			h.mu.Unlock()

			h.redis.SetUserOffline(client.userID)
			h.redis.PublishPresence(models.UserPresence{
				UserID:   client.userID,
				Status:   "offline",
				LastSeen: time.Now(),
			})

			h.log.Info("client unregistered", "user_id", client.userID)
		}
	}
}

// subscribeToRedis consumes the signal and presence channels.
func (h *Hub) subscribeToRedis() {
	signalPubSub := h.redis.SubscribeToSignals()
	defer signalPubSub.Close()
	signalChan := signalPubSub.Channel()

	presencePubSub := h.redis.SubscribeToPresence()
	defer presencePubSub.Close()
	presenceChan := presencePubSub.Channel()

	for {
		select {
		case msg := <-signalChan:
			h.dispatchSignal([]byte(msg.Payload))

		case presence := <-presenceChan:
			// Presence is broadcast to everyone connected.
			h.broadcastAll([]byte(presence.Payload))
		}
	}
}

// dispatchSignal delivers a new-message signal to the conversation's
// participants, skipping the sender.
func (h *Hub) dispatchSignal(raw []byte) {
	var envelope struct {
		Event   string                  `json:"event"`
		Payload models.NewMessageSignal `json:"payload"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		h.log.Warn("malformed signal", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conv, err := h.convs.GetByID(ctx, envelope.Payload.ConversationID)
	if err != nil {
		h.log.Warn("signal dispatch: conversation lookup failed",
			"conversation_id", envelope.Payload.ConversationID, "error", err)
		return
	}

	recipients := make([]uuid.UUID, 0, len(conv.Participants))
	for _, p := range conv.Participants {
		if p.UserID != envelope.Payload.SenderID {
			recipients = append(recipients, p.UserID)
		}
	}
	h.sendRaw(recipients, raw)
}

// SendToUser sends a message to a specific user
func (h *Hub) SendToUser(userID uuid.UUID, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.sendRaw([]uuid.UUID{userID}, data)
	return nil
}

// SendToParticipants sends a message to every listed user with an open
// connection on this instance.
func (h *Hub) SendToParticipants(userIDs []uuid.UUID, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.sendRaw(userIDs, data)
	return nil
}

func (h *Hub) sendRaw(userIDs []uuid.UUID, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, id := range userIDs {
		if client, ok := h.clients[id]; ok {
			select {
			case client.send <- data:
			default:
				// Client's send channel is full, skip
			}
		}
	}
}

func (h *Hub) broadcastAll(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		select {
		case client.send <- data:
		default:
		}
	}
}

// GetOnlineUsers returns the list of online user IDs
func (h *Hub) GetOnlineUsers() []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	userIDs := make([]uuid.UUID, 0, len(h.clients))
	for userID := range h.clients {
		userIDs = append(userIDs, userID)
	}

	return userIDs
}

// IsUserOnline checks if a user is online
func (h *Hub) IsUserOnline(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.clients[userID]
	return ok
}
