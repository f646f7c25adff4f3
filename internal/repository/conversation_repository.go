package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/marketlane/backend/internal/database"
	"github.com/marketlane/backend/internal/messaging"
	"github.com/marketlane/backend/internal/models"
)

const conversationColumns = `
	c.id, c.type, c.title, c.status, c.priority,
	c.related_kind, c.related_id,
	c.last_message_id, c.last_message_preview, c.last_message_sender_id,
	c.last_message_sent_at, c.last_message_type,
	c.created_at, c.updated_at
`

type ConversationRepository struct {
	db *database.DB
}

func NewConversationRepository(db *database.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Create inserts a conversation together with its participants. For direct
// conversations the partial unique index on direct_key arbitrates concurrent
// duplicate creates: the loser gets ErrDuplicateDirect.
func (r *ConversationRepository) Create(ctx context.Context, conv *models.Conversation) error {
	conv.DedupeParticipants()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var directKey *string
	if conv.Type == models.ConversationDirect && len(conv.Participants) == 2 {
		key := models.DirectKey(conv.Participants[0].UserID, conv.Participants[1].UserID)
		directKey = &key
	}

	var relatedKind, relatedID *string
	if conv.RelatedEntity != nil {
		relatedKind = &conv.RelatedEntity.Kind
		relatedID = &conv.RelatedEntity.ID
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (id, type, title, status, priority, related_kind, related_id, direct_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, conv.ID, conv.Type, conv.Title, conv.Status, conv.Priority, relatedKind, relatedID, directKey, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return messaging.ErrDuplicateDirect
		}
		return fmt.Errorf("failed to create conversation: %w", err)
	}

	for _, p := range conv.Participants {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO conversation_participants (id, conversation_id, user_id, role, joined_at, unread_count)
			VALUES ($1, $2, $3, $4, $5, 0)
			ON CONFLICT (conversation_id, user_id) DO NOTHING
		`, uuid.New(), conv.ID, p.UserID, p.Role, p.JoinedAt)
		if err != nil {
			return fmt.Errorf("failed to add participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetByID retrieves a conversation with its participants
func (r *ConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations c
		WHERE c.id = $1
	`, id)

	conv, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, messaging.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	if err := r.loadParticipants(ctx, []*models.Conversation{conv}); err != nil {
		return nil, err
	}
	return conv, nil
}

// FindByParticipant retrieves conversations for a user, most recent activity
// first. Archived conversations are excluded unless asked for.
func (r *ConversationRepository) FindByParticipant(ctx context.Context, userID uuid.UUID, filter messaging.ListFilter) ([]models.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations c
		INNER JOIN conversation_participants cp ON c.id = cp.conversation_id
		WHERE cp.user_id = $1
	`
	args := []interface{}{userID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND c.status = $%d", len(args))
	} else if !filter.IncludeArchived {
		query += " AND c.status != 'archived'"
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		query += fmt.Sprintf(" AND c.type = $%d", len(args))
	}

	query += " ORDER BY COALESCE(c.last_message_sent_at, c.updated_at) DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var refs []*models.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		refs = append(refs, conv)
	}

	if err := r.loadParticipants(ctx, refs); err != nil {
		return nil, err
	}

	conversations := make([]models.Conversation, 0, len(refs))
	for _, c := range refs {
		conversations = append(conversations, *c)
	}
	return conversations, nil
}

// FindDirect looks up the live direct conversation for a participant pair.
func (r *ConversationRepository) FindDirect(ctx context.Context, directKey string) (*models.Conversation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations c
		WHERE c.direct_key = $1 AND c.type = 'direct' AND c.status != 'archived'
		LIMIT 1
	`, directKey)

	conv, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, messaging.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find direct conversation: %w", err)
	}

	if err := r.loadParticipants(ctx, []*models.Conversation{conv}); err != nil {
		return nil, err
	}
	return conv, nil
}

// ApplySend records an accepted message as one transaction: snapshot,
// updated_at bump and one increment pass over every non-sender participant.
func (r *ConversationRepository) ApplySend(ctx context.Context, conversationID uuid.UUID, snap *models.LastMessage) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE conversations
		SET last_message_id = $1, last_message_preview = $2, last_message_sender_id = $3,
		    last_message_sent_at = $4, last_message_type = $5, updated_at = $4
		WHERE id = $6
	`, snap.MessageID, snap.Preview, snap.SenderID, snap.SentAt, snap.MessageType, conversationID)
	if err != nil {
		return fmt.Errorf("failed to update last message: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE conversation_participants
		SET unread_count = unread_count + 1
		WHERE conversation_id = $1 AND user_id != $2
	`, conversationID, snap.SenderID)
	if err != nil {
		return fmt.Errorf("failed to increment unread counts: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SetLastMessage refreshes the snapshot without touching unread counters.
func (r *ConversationRepository) SetLastMessage(ctx context.Context, conversationID uuid.UUID, snap *models.LastMessage) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversations
		SET last_message_id = $1, last_message_preview = $2, last_message_sender_id = $3,
		    last_message_sent_at = $4, last_message_type = $5
		WHERE id = $6
	`, snap.MessageID, snap.Preview, snap.SenderID, snap.SentAt, snap.MessageType, conversationID)
	if err != nil {
		return fmt.Errorf("failed to set last message: %w", err)
	}
	return nil
}

// ResetUnread zeroes one participant's counter. Counters are keyed by
// participant, so concurrent resets for different users do not interfere.
func (r *ConversationRepository) ResetUnread(ctx context.Context, conversationID, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversation_participants
		SET unread_count = 0
		WHERE conversation_id = $1 AND user_id = $2
	`, conversationID, userID)
	if err != nil {
		return fmt.Errorf("failed to reset unread count: %w", err)
	}
	return nil
}

func (r *ConversationRepository) loadParticipants(ctx context.Context, convs []*models.Conversation) error {
	if len(convs) == 0 {
		return nil
	}

	ids := make([]string, len(convs))
	byID := make(map[uuid.UUID]*models.Conversation, len(convs))
	for i, c := range convs {
		ids[i] = c.ID.String()
		byID[c.ID] = c
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT conversation_id, user_id, role, joined_at, unread_count
		FROM conversation_participants
		WHERE conversation_id = ANY($1)
		ORDER BY joined_at
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var convID uuid.UUID
		var p models.Participant
		if err := rows.Scan(&convID, &p.UserID, &p.Role, &p.JoinedAt, &p.UnreadCount); err != nil {
			return fmt.Errorf("failed to scan participant: %w", err)
		}
		if conv, ok := byID[convID]; ok {
			conv.Participants = append(conv.Participants, p)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConversation(row rowScanner) (*models.Conversation, error) {
	conv := &models.Conversation{}
	var relatedKind, relatedID *string
	var lmID, lmSender uuid.NullUUID
	var lmPreview, lmType sql.NullString
	var lmSentAt sql.NullTime

	err := row.Scan(
		&conv.ID,
		&conv.Type,
		&conv.Title,
		&conv.Status,
		&conv.Priority,
		&relatedKind,
		&relatedID,
		&lmID,
		&lmPreview,
		&lmSender,
		&lmSentAt,
		&lmType,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if relatedKind != nil && relatedID != nil {
		conv.RelatedEntity = &models.RelatedEntity{Kind: *relatedKind, ID: *relatedID}
	}
	if lmID.Valid {
		conv.LastMessage = &models.LastMessage{
			MessageID:   lmID.UUID,
			Preview:     lmPreview.String,
			SenderID:    lmSender.UUID,
			SentAt:      lmSentAt.Time,
			MessageType: models.MessageType(lmType.String),
		}
	}
	return conv, nil
}
