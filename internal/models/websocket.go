package models

import "github.com/google/uuid"

// WebSocket event types
const (
	EventMessageNew     = "message.new"
	EventMessageRead    = "message.read"
	EventPresenceUpdate = "presence.update"
	EventError          = "error"
)

type WSMessage struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// NewMessageSignal is the push-style hint that a conversation has fresh
// content. Clients treat it as a trigger for an immediate refresh, never as
// the message itself.
type NewMessageSignal struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	MessageID      uuid.UUID `json:"message_id"`
	SenderID       uuid.UUID `json:"sender_id"`
}

type WSMessageReadPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
}

type WSErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
