package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/marketlane/backend/internal/models"
)

func newTestHub() *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]*Client),
		register:   make(chan *Client, 1),
		unregister: make(chan *Client, 1),
	}
}

func TestHubSendToUserAndParticipants(t *testing.T) {
	h := newTestHub()

	id1 := uuid.New()
	id2 := uuid.New()

	// Use actual Client struct but only use the send channel for assertion
	c1 := &Client{userID: id1, send: make(chan []byte, 4)}
	c2 := &Client{userID: id2, send: make(chan []byte, 4)}

	h.clients[id1] = c1
	h.clients[id2] = c2

	// Send to single user
	msg := map[string]string{"hello": "world"}
	if err := h.SendToUser(id1, msg); err != nil {
		t.Fatalf("SendToUser error: %v", err)
	}

	select {
	case b := <-c1.send:
		var got map[string]string
		json.Unmarshal(b, &got)
		if got["hello"] != "world" {
			t.Fatalf("unexpected payload: %v", got)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("timed out waiting for message to user 1")
	}

	// Send to both participants
	msg2 := map[string]string{"ping": "pong"}
	if err := h.SendToParticipants([]uuid.UUID{id1, id2}, msg2); err != nil {
		t.Fatalf("SendToParticipants error: %v", err)
	}

	for _, c := range []*Client{c1, c2} {
		select {
		case b := <-c.send:
			var got map[string]string
			json.Unmarshal(b, &got)
			if got["ping"] != "pong" {
				t.Fatalf("unexpected payload: %v", got)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("timed out waiting for participant message")
		}
	}
}

func TestHubSendToParticipantsSkipsOffline(t *testing.T) {
	h := newTestHub()

	online := uuid.New()
	offline := uuid.New()
	c := &Client{userID: online, send: make(chan []byte, 4)}
	h.clients[online] = c

	sig := models.WSMessage{
		Event: models.EventMessageNew,
		Payload: models.NewMessageSignal{
			ConversationID: uuid.New(),
			MessageID:      uuid.New(),
			SenderID:       offline,
		},
	}
	if err := h.SendToParticipants([]uuid.UUID{online, offline}, sig); err != nil {
		t.Fatalf("SendToParticipants error: %v", err)
	}

	select {
	case b := <-c.send:
		var got models.WSMessage
		if err := json.Unmarshal(b, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Event != models.EventMessageNew {
			t.Fatalf("expected %q event, got %q", models.EventMessageNew, got.Event)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("timed out waiting for signal")
	}

	if len(c.send) != 0 {
		t.Fatalf("expected no extra deliveries, found %d", len(c.send))
	}
}
