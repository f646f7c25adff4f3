package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/marketlane/backend/internal/database"
	"github.com/marketlane/backend/internal/messaging"
	"github.com/marketlane/backend/internal/models"
)

const messageColumns = `
	m.id, m.conversation_id, m.sender_id, m.message_type, m.content,
	m.attachments, m.status, m.reply_to, m.mentions, m.priority,
	m.edited_at, m.deleted_at, m.created_at, m.updated_at
`

type MessageRepository struct {
	db *database.DB
}

func NewMessageRepository(db *database.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts a message. Attachments travel as one JSONB document.
func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	attachments, err := json.Marshal(msg.Attachments)
	if err != nil {
		return fmt.Errorf("failed to encode attachments: %w", err)
	}
	if msg.Attachments == nil {
		attachments = []byte("[]")
	}

	mentions := make([]string, len(msg.Mentions))
	for i, id := range msg.Mentions {
		mentions[i] = id.String()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, message_type, content, attachments, status, reply_to, mentions, priority, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, msg.ID, msg.ConversationID, msg.SenderID, msg.Type, msg.Content, attachments, msg.Status, msg.ReplyTo, pq.Array(mentions), msg.Priority, msg.CreatedAt, msg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// GetByID retrieves a message with its read receipts. Soft-deleted messages
// are still returned here; read paths that must hide them filter on
// deleted_at themselves.
func (r *MessageRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages m
		WHERE m.id = $1
	`, id)

	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, messaging.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	if err := r.loadReceipts(ctx, []*models.Message{msg}); err != nil {
		return nil, err
	}
	return msg, nil
}

// ListPage returns one page ordered oldest→newest plus the total non-deleted
// count for the conversation.
func (r *MessageRepository) ListPage(ctx context.Context, conversationID uuid.UUID, page, limit int) ([]models.Message, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM messages
		WHERE conversation_id = $1 AND deleted_at IS NULL
	`, conversationID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	offset := (page - 1) * limit
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages m
		WHERE m.conversation_id = $1 AND m.deleted_at IS NULL
		ORDER BY m.created_at ASC
		LIMIT $2 OFFSET $3
	`, conversationID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	var refs []*models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan message: %w", err)
		}
		refs = append(refs, msg)
	}

	if err := r.loadReceipts(ctx, refs); err != nil {
		return nil, 0, err
	}

	messages := make([]models.Message, 0, len(refs))
	for _, m := range refs {
		messages = append(messages, *m)
	}
	return messages, total, nil
}

// MarkConversationRead marks every message not sent by userID as read and
// resets their unread counter in the same transaction, so a concurrent send
// cannot leave the counter out of step with the receipts.
func (r *MessageRepository) MarkConversationRead(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO message_reads (id, message_id, user_id, read_at)
		SELECT uuid_generate_v4(), m.id, $1, $2
		FROM messages m
		WHERE m.conversation_id = $3 AND m.sender_id != $1 AND m.deleted_at IS NULL
		ON CONFLICT (message_id, user_id) DO NOTHING
	`, userID, at, conversationID)
	if err != nil {
		return fmt.Errorf("failed to insert read receipts: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE messages
		SET status = 'read', updated_at = $1
		WHERE conversation_id = $2 AND sender_id != $3 AND deleted_at IS NULL
		AND status IN ('sent', 'delivered')
	`, at, conversationID, userID)
	if err != nil {
		return fmt.Errorf("failed to advance message status: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE conversation_participants
		SET unread_count = 0
		WHERE conversation_id = $1 AND user_id = $2
	`, conversationID, userID)
	if err != nil {
		return fmt.Errorf("failed to reset unread count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// MarkMessagesRead marks exactly the given messages read. The counter is
// decremented by the number of receipts actually inserted, so replays are
// harmless.
func (r *MessageRepository) MarkMessagesRead(ctx context.Context, conversationID uuid.UUID, messageIDs []uuid.UUID, userID uuid.UUID, at time.Time) error {
	if len(messageIDs) == 0 {
		return nil
	}

	ids := make([]string, len(messageIDs))
	for i, id := range messageIDs {
		ids[i] = id.String()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var newlyRead int
	err = tx.QueryRowContext(ctx, `
		WITH inserted AS (
			INSERT INTO message_reads (id, message_id, user_id, read_at)
			SELECT uuid_generate_v4(), m.id, $1, $2
			FROM messages m
			WHERE m.id = ANY($3) AND m.conversation_id = $4
			AND m.sender_id != $1 AND m.deleted_at IS NULL
			ON CONFLICT (message_id, user_id) DO NOTHING
			RETURNING message_id
		)
		SELECT COUNT(*) FROM inserted
	`, userID, at, pq.Array(ids), conversationID).Scan(&newlyRead)
	if err != nil {
		return fmt.Errorf("failed to insert read receipts: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE messages
		SET status = 'read', updated_at = $1
		WHERE id = ANY($2) AND conversation_id = $3 AND sender_id != $4
		AND deleted_at IS NULL AND status IN ('sent', 'delivered')
	`, at, pq.Array(ids), conversationID, userID)
	if err != nil {
		return fmt.Errorf("failed to advance message status: %w", err)
	}

	if newlyRead > 0 {
		_, err = tx.ExecContext(ctx, `
			UPDATE conversation_participants
			SET unread_count = GREATEST(0, unread_count - $1)
			WHERE conversation_id = $2 AND user_id = $3
		`, newlyRead, conversationID, userID)
		if err != nil {
			return fmt.Errorf("failed to decrement unread count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// MarkDelivered advances sent → delivered for messages addressed to readerID.
func (r *MessageRepository) MarkDelivered(ctx context.Context, conversationID, readerID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET status = 'delivered', updated_at = NOW()
		WHERE conversation_id = $1 AND sender_id != $2 AND deleted_at IS NULL
		AND status = 'sent'
	`, conversationID, readerID)
	if err != nil {
		return fmt.Errorf("failed to mark delivered: %w", err)
	}
	return nil
}

// UpdateContent rewrites a text message's content and stamps edited_at.
func (r *MessageRepository) UpdateContent(ctx context.Context, id uuid.UUID, content string, editedAt time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET content = $1, edited_at = $2, updated_at = $2
		WHERE id = $3 AND deleted_at IS NULL
	`, content, editedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return messaging.ErrNotFound
	}
	return nil
}

// SoftDelete stamps deleted_at; the row is retained.
func (r *MessageRepository) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET deleted_at = $1, updated_at = $1
		WHERE id = $2 AND deleted_at IS NULL
	`, at, id)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return messaging.ErrNotFound
	}
	return nil
}

func (r *MessageRepository) loadReceipts(ctx context.Context, msgs []*models.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	ids := make([]string, len(msgs))
	byID := make(map[uuid.UUID]*models.Message, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID.String()
		byID[m.ID] = m
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT message_id, user_id, read_at
		FROM message_reads
		WHERE message_id = ANY($1)
		ORDER BY read_at
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load read receipts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var msgID uuid.UUID
		var receipt models.ReadReceipt
		if err := rows.Scan(&msgID, &receipt.UserID, &receipt.ReadAt); err != nil {
			return fmt.Errorf("failed to scan read receipt: %w", err)
		}
		if msg, ok := byID[msgID]; ok {
			msg.ReadBy = append(msg.ReadBy, receipt)
		}
	}
	return nil
}

func scanMessage(row rowScanner) (*models.Message, error) {
	msg := &models.Message{}
	var attachments []byte
	var mentions pq.StringArray

	err := row.Scan(
		&msg.ID,
		&msg.ConversationID,
		&msg.SenderID,
		&msg.Type,
		&msg.Content,
		&attachments,
		&msg.Status,
		&msg.ReplyTo,
		&mentions,
		&msg.Priority,
		&msg.EditedAt,
		&msg.DeletedAt,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &msg.Attachments); err != nil {
			return nil, fmt.Errorf("failed to decode attachments: %w", err)
		}
	}
	for _, s := range mentions {
		id, err := uuid.Parse(s)
		if err != nil {
			continue
		}
		msg.Mentions = append(msg.Mentions, id)
	}
	return msg, nil
}
