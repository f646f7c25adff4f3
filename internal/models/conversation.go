package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

type ConversationType string

const (
	ConversationDirect         ConversationType = "direct"
	ConversationSupport        ConversationType = "support"
	ConversationProductRelated ConversationType = "product_related"
	ConversationGeneral        ConversationType = "general"
	ConversationSystem         ConversationType = "system"
)

type ConversationStatus string

const (
	ConversationActive   ConversationStatus = "active"
	ConversationClosed   ConversationStatus = "closed"
	ConversationArchived ConversationStatus = "archived"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Participant is one member of a conversation together with their
// per-conversation unread counter.
type Participant struct {
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	Role        string    `json:"role" db:"role"`
	JoinedAt    time.Time `json:"joined_at" db:"joined_at"`
	UnreadCount int       `json:"unread_count" db:"unread_count"`
}

// RelatedEntity points a conversation at a platform record (order, product, ...).
type RelatedEntity struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// LastMessage is the denormalized snapshot of the most recently accepted
// message. It is only ever written alongside the message that produced it.
type LastMessage struct {
	MessageID   uuid.UUID   `json:"message_id"`
	Preview     string      `json:"preview"`
	SenderID    uuid.UUID   `json:"sender_id"`
	SentAt      time.Time   `json:"sent_at"`
	MessageType MessageType `json:"message_type"`
}

type Conversation struct {
	ID            uuid.UUID          `json:"id" db:"id"`
	Type          ConversationType   `json:"type" db:"type"`
	Title         string             `json:"title" db:"title"`
	Status        ConversationStatus `json:"status" db:"status"`
	Priority      Priority           `json:"priority" db:"priority"`
	RelatedEntity *RelatedEntity     `json:"related_entity,omitempty"`
	Participants  []Participant      `json:"participants"`
	LastMessage   *LastMessage       `json:"last_message,omitempty"`
	CreatedAt     time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at" db:"updated_at"`
}

// HasParticipant reports whether userID is a member of the conversation.
func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	for i := range c.Participants {
		if c.Participants[i].UserID == userID {
			return true
		}
	}
	return false
}

// Participant returns the entry for userID, or nil.
func (c *Conversation) Participant(userID uuid.UUID) *Participant {
	for i := range c.Participants {
		if c.Participants[i].UserID == userID {
			return &c.Participants[i]
		}
	}
	return nil
}

// UnreadFor returns the unread counter for userID, 0 for non-participants.
func (c *Conversation) UnreadFor(userID uuid.UUID) int {
	if p := c.Participant(userID); p != nil {
		return p.UnreadCount
	}
	return 0
}

// DedupeParticipants collapses duplicate user entries, keeping the first
// occurrence, so the set stays unique by user across mutations.
func (c *Conversation) DedupeParticipants() {
	seen := make(map[uuid.UUID]bool, len(c.Participants))
	out := c.Participants[:0]
	for _, p := range c.Participants {
		if seen[p.UserID] {
			continue
		}
		seen[p.UserID] = true
		out = append(out, p)
	}
	c.Participants = out
}

// SortTime is the ordering key for conversation lists: last activity first,
// falling back to updated_at for conversations with no messages yet.
func (c *Conversation) SortTime() time.Time {
	if c.LastMessage != nil {
		return c.LastMessage.SentAt
	}
	return c.UpdatedAt
}

// DirectKey builds the canonical identity of a direct conversation between
// two users: the sorted pair of ids. A partial unique index on this key is
// what makes create-or-get race-safe.
func DirectKey(a, b uuid.UUID) string {
	ids := []string{a.String(), b.String()}
	sort.Strings(ids)
	return ids[0] + ":" + ids[1]
}

type CreateDirectConversationRequest struct {
	RecipientID uuid.UUID `json:"recipient_id" binding:"required"`
	Title       string    `json:"title"`
}

type ListConversationsQuery struct {
	Status string `form:"status"`
	Type   string `form:"type"`
	Limit  int    `form:"limit"`
}

// ConversationList is the list-conversations response: the conversations plus
// the server-computed unread total across all of them.
type ConversationList struct {
	Conversations []Conversation `json:"conversations"`
	TotalUnread   int            `json:"total_unread"`
	Count         int            `json:"count"`
}
