package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/marketlane/backend/internal/models"
)

const (
	signalChannel   = "messaging:signals"
	presenceChannel = "messaging:presence"
	presenceTTL     = 5 * time.Minute
)

type RedisClient struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisClient creates a new Redis client
func NewRedisClient(addr, password string, db int) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{
		client: client,
		ctx:    ctx,
	}, nil
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// Presence is best-effort: a missed heartbeat just shows the user offline
// a little early once the key expires.

// Heartbeat refreshes a user's online marker.
func (r *RedisClient) Heartbeat(userID uuid.UUID) error {
	key := fmt.Sprintf("presence:user:%s", userID.String())
	presence := models.UserPresence{
		UserID:   userID,
		Status:   "online",
		LastSeen: time.Now(),
	}

	data, err := json.Marshal(presence)
	if err != nil {
		return err
	}

	return r.client.Set(r.ctx, key, data, presenceTTL).Err()
}

// SetUserOffline marks a user offline immediately on a clean disconnect.
func (r *RedisClient) SetUserOffline(userID uuid.UUID) error {
	key := fmt.Sprintf("presence:user:%s", userID.String())
	presence := models.UserPresence{
		UserID:   userID,
		Status:   "offline",
		LastSeen: time.Now(),
	}

	data, err := json.Marshal(presence)
	if err != nil {
		return err
	}

	return r.client.Set(r.ctx, key, data, 24*time.Hour).Err()
}

// GetUserPresence gets a user's presence; an expired key reads as offline.
func (r *RedisClient) GetUserPresence(userID uuid.UUID) (*models.UserPresence, error) {
	key := fmt.Sprintf("presence:user:%s", userID.String())
	data, err := r.client.Get(r.ctx, key).Result()
	if err == redis.Nil {
		return &models.UserPresence{
			UserID:   userID,
			Status:   "offline",
			LastSeen: time.Now(),
		}, nil
	}
	if err != nil {
		return nil, err
	}

	var presence models.UserPresence
	if err := json.Unmarshal([]byte(data), &presence); err != nil {
		return nil, err
	}

	return &presence, nil
}

// New-message signals fan out over pub/sub so websocket clients attached to
// other server instances hear about sends handled here.

// PublishNewMessage implements messaging.SignalPublisher.
func (r *RedisClient) PublishNewMessage(sig models.NewMessageSignal) error {
	data, err := json.Marshal(models.WSMessage{
		Event:   models.EventMessageNew,
		Payload: sig,
	})
	if err != nil {
		return err
	}

	return r.client.Publish(r.ctx, signalChannel, data).Err()
}

// SubscribeToSignals subscribes to the new-message signal channel.
func (r *RedisClient) SubscribeToSignals() *redis.PubSub {
	return r.client.Subscribe(r.ctx, signalChannel)
}

// PublishPresence publishes a presence update
func (r *RedisClient) PublishPresence(presence models.UserPresence) error {
	data, err := json.Marshal(presence)
	if err != nil {
		return err
	}

	return r.client.Publish(r.ctx, presenceChannel, data).Err()
}

// SubscribeToPresence subscribes to presence updates
func (r *RedisClient) SubscribeToPresence() *redis.PubSub {
	return r.client.Subscribe(r.ctx, presenceChannel)
}
