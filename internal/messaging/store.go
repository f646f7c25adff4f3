package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/marketlane/backend/internal/models"
)

// ListFilter narrows a conversation listing.
type ListFilter struct {
	Status          models.ConversationStatus
	Type            models.ConversationType
	IncludeArchived bool
	Limit           int
}

// ConversationStore is the record-store port for conversations. All unread
// and last-message bookkeeping goes through it so each triggering event is a
// single atomic update.
type ConversationStore interface {
	Create(ctx context.Context, conv *models.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	FindByParticipant(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]models.Conversation, error)
	// FindDirect looks up a non-archived direct conversation by its
	// canonical participant-pair key. Returns ErrNotFound when absent.
	FindDirect(ctx context.Context, directKey string) (*models.Conversation, error)
	// ApplySend records a message acceptance: sets the last-message
	// snapshot, bumps updated_at and increments the unread counter of
	// every participant except the sender, atomically.
	ApplySend(ctx context.Context, conversationID uuid.UUID, snap *models.LastMessage) error
	// SetLastMessage refreshes the snapshot without touching counters
	// (system markers, edits of the latest message).
	SetLastMessage(ctx context.Context, conversationID uuid.UUID, snap *models.LastMessage) error
	// ResetUnread zeroes one participant's counter.
	ResetUnread(ctx context.Context, conversationID, userID uuid.UUID) error
}

// MessageStore is the record-store port for messages. Read paths exclude
// soft-deleted rows.
type MessageStore interface {
	Create(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error)
	// ListPage returns one page ordered oldest→newest plus the total
	// non-deleted count for the conversation.
	ListPage(ctx context.Context, conversationID uuid.UUID, page, limit int) ([]models.Message, int, error)
	// MarkConversationRead marks every message in the conversation not
	// sent by userID as read by them and resets their unread counter, as
	// one atomic operation.
	MarkConversationRead(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) error
	// MarkMessagesRead marks exactly the given messages read by userID
	// (idempotent) and decrements their unread counter by the number of
	// receipts actually inserted, atomically.
	MarkMessagesRead(ctx context.Context, conversationID uuid.UUID, messageIDs []uuid.UUID, userID uuid.UUID, at time.Time) error
	// MarkDelivered advances sent → delivered for messages in the
	// conversation not sent by readerID.
	MarkDelivered(ctx context.Context, conversationID, readerID uuid.UUID) error
	UpdateContent(ctx context.Context, id uuid.UUID, content string, editedAt time.Time) error
	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error
}

// UserStore is the external identity collaborator, reduced to the reads the
// messaging service needs.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListByRoles(ctx context.Context, roles []string) ([]models.User, error)
}
