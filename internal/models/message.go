package models

import (
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageAudio MessageType = "audio"
	MessageVideo MessageType = "video"
	MessageFile  MessageType = "file"
)

type MessageStatus string

const (
	StatusSending   MessageStatus = "sending"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

var statusRank = map[MessageStatus]int{
	StatusSending:   0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

// CanTransition reports whether a status change is legal: forward-only
// through sending → sent → delivered → read, with failed reachable from any
// non-terminal state. failed and read are terminal.
func (s MessageStatus) CanTransition(to MessageStatus) bool {
	if s == StatusFailed || s == StatusRead {
		return false
	}
	if to == StatusFailed {
		return true
	}
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	next, ok := statusRank[to]
	if !ok {
		return false
	}
	return next > from
}

// Attachment is the stored metadata of one binary payload.
type Attachment struct {
	FileName     string   `json:"file_name"`
	OriginalName string   `json:"original_name"`
	FileURL      string   `json:"file_url"`
	FileSize     int64    `json:"file_size"`
	MimeType     string   `json:"mime_type"`
	Duration     *float64 `json:"duration,omitempty"`
	Width        *int     `json:"width,omitempty"`
	Height       *int     `json:"height,omitempty"`
	Thumbnail    *string  `json:"thumbnail,omitempty"`
}

type ReadReceipt struct {
	UserID uuid.UUID `json:"user_id" db:"user_id"`
	ReadAt time.Time `json:"read_at" db:"read_at"`
}

type Message struct {
	ID             uuid.UUID     `json:"id" db:"id"`
	ConversationID uuid.UUID     `json:"conversation_id" db:"conversation_id"`
	SenderID       uuid.UUID     `json:"sender_id" db:"sender_id"`
	Type           MessageType   `json:"message_type" db:"message_type"`
	Content        string        `json:"content" db:"content"`
	Attachments    []Attachment  `json:"attachments,omitempty"`
	Status         MessageStatus `json:"status" db:"status"`
	ReadBy         []ReadReceipt `json:"read_by,omitempty"`
	ReplyTo        *uuid.UUID    `json:"reply_to,omitempty" db:"reply_to"`
	Mentions       []uuid.UUID   `json:"mentions,omitempty"`
	Priority       Priority      `json:"priority" db:"priority"`
	EditedAt       *time.Time    `json:"edited_at,omitempty" db:"edited_at"`
	DeletedAt      *time.Time    `json:"deleted_at,omitempty" db:"deleted_at"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
	Sender         *User         `json:"sender,omitempty"`
}

// IsDeleted reports whether the message has been soft-deleted.
func (m *Message) IsDeleted() bool {
	return m.DeletedAt != nil
}

// ReadByUser reports whether userID already has a read receipt.
func (m *Message) ReadByUser(userID uuid.UUID) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// MarkReadBy records a read receipt for userID. Idempotent: at most one
// receipt per user.
func (m *Message) MarkReadBy(userID uuid.UUID, at time.Time) {
	if m.ReadByUser(userID) {
		return
	}
	m.ReadBy = append(m.ReadBy, ReadReceipt{UserID: userID, ReadAt: at})
}

// Preview renders the last-message snapshot text: the content for text
// messages, a placeholder for media.
func (m *Message) Preview() string {
	if m.Type == MessageText {
		return m.Content
	}
	if m.Content != "" {
		return m.Content
	}
	switch m.Type {
	case MessageImage:
		return "[Image]"
	case MessageAudio:
		return "[Voice message]"
	case MessageVideo:
		return "[Video]"
	default:
		return "[File]"
	}
}

// Snapshot builds the denormalized last-message entry for the conversation.
func (m *Message) Snapshot() *LastMessage {
	return &LastMessage{
		MessageID:   m.ID,
		Preview:     m.Preview(),
		SenderID:    m.SenderID,
		SentAt:      m.CreatedAt,
		MessageType: m.Type,
	}
}

type SendTextMessageRequest struct {
	Content  string      `json:"content" binding:"required"`
	ReplyTo  *uuid.UUID  `json:"reply_to,omitempty"`
	Mentions []uuid.UUID `json:"mentions,omitempty"`
	Priority Priority    `json:"priority,omitempty"`
}

type GetMessagesQuery struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

type MarkReadRequest struct {
	MessageIDs []uuid.UUID `json:"message_ids,omitempty"`
}

type EditMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// Pagination is total-count-derived paging metadata.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

type MessagePage struct {
	Messages   []Message  `json:"messages"`
	Pagination Pagination `json:"pagination"`
}
