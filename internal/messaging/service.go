package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marketlane/backend/internal/metrics"
	"github.com/marketlane/backend/internal/models"
)

// EditWindow is how long a sender may edit a text message after creation.
const EditWindow = 24 * time.Hour

const (
	defaultPageLimit = 50
	maxPageLimit     = 100
)

// Upload is one raw file handed to the attachment pipeline.
type Upload struct {
	Bytes    []byte
	MimeType string
	FileName string
}

// Processor is the attachment-pipeline port.
type Processor interface {
	ProcessAttachment(ctx context.Context, up Upload) (models.Attachment, error)
}

// Notifier is the transactional-email collaborator. Calls are fire-and-forget:
// a failure is logged and never fails the triggering send.
type Notifier interface {
	NotifyNewMessage(recipient, sender models.User, conv *models.Conversation, msg *models.Message) error
}

// SignalPublisher fans a new-message hint out to connected clients.
type SignalPublisher interface {
	PublishNewMessage(sig models.NewMessageSignal) error
}

// Service implements the conversation/message lifecycle. It is stateless:
// every request runs against the stores independently.
type Service struct {
	convs     ConversationStore
	msgs      MessageStore
	users     UserStore
	processor Processor
	notifier  Notifier
	publisher SignalPublisher
	log       *slog.Logger
	now       func() time.Time
}

type Option func(*Service)

// WithNotifier attaches the email collaborator.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithPublisher attaches the push-signal fan-out.
func WithPublisher(p SignalPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithClock overrides time for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(convs ConversationStore, msgs MessageStore, users UserStore, processor Processor, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		convs:     convs,
		msgs:      msgs,
		users:     users,
		processor: processor,
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListConversations returns the caller's conversations, newest activity
// first, plus their unread total. Archived conversations are hidden unless
// asked for explicitly.
func (s *Service) ListConversations(ctx context.Context, userID uuid.UUID, q models.ListConversationsQuery) (*models.ConversationList, error) {
	filter := ListFilter{Limit: q.Limit}
	if q.Status != "" {
		filter.Status = models.ConversationStatus(q.Status)
		filter.IncludeArchived = filter.Status == models.ConversationArchived
	}
	if q.Type != "" {
		filter.Type = models.ConversationType(q.Type)
	}

	conversations, err := s.convs.FindByParticipant(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].SortTime().After(conversations[j].SortTime())
	})

	// totalUnread is recomputed on every listing, never stored.
	totalUnread := 0
	for i := range conversations {
		if conversations[i].Status == models.ConversationArchived {
			continue
		}
		totalUnread += conversations[i].UnreadFor(userID)
	}

	return &models.ConversationList{
		Conversations: conversations,
		TotalUnread:   totalUnread,
		Count:         len(conversations),
	}, nil
}

// CreateOrGetDirectConversation finds the existing non-archived direct
// conversation between the two users, or creates one. The record store holds
// a uniqueness constraint on the sorted participant pair, so a concurrent
// duplicate create loses the insert and fetches the winner instead.
func (s *Service) CreateOrGetDirectConversation(ctx context.Context, currentUser models.User, recipientID uuid.UUID, title string) (*models.Conversation, error) {
	if recipientID == currentUser.ID {
		return nil, fmt.Errorf("%w: cannot start a conversation with yourself", ErrInvalidInput)
	}

	recipient, err := s.users.GetByID(ctx, recipientID)
	if err != nil {
		return nil, fmt.Errorf("%w: recipient", ErrNotFound)
	}

	key := models.DirectKey(currentUser.ID, recipientID)
	if existing, err := s.convs.FindDirect(ctx, key); err == nil {
		return existing, nil
	}

	now := s.now()
	if title == "" {
		title = fmt.Sprintf("%s, %s", currentUser.DisplayName, recipient.DisplayName)
	}
	conv := &models.Conversation{
		ID:       uuid.New(),
		Type:     models.ConversationDirect,
		Title:    title,
		Status:   models.ConversationActive,
		Priority: models.PriorityNormal,
		Participants: []models.Participant{
			{UserID: currentUser.ID, Role: currentUser.Role, JoinedAt: now},
			{UserID: recipient.ID, Role: recipient.Role, JoinedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	conv.DedupeParticipants()

	if err := s.convs.Create(ctx, conv); err != nil {
		if err == ErrDuplicateDirect {
			return s.convs.FindDirect(ctx, key)
		}
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	metrics.ConversationsCreated.WithLabelValues(string(conv.Type)).Inc()

	// System marker recording creation. Bookkeeping only: no unread
	// increments, no email.
	marker := &models.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		SenderID:       currentUser.ID,
		Type:           models.MessageText,
		Content:        "Conversation started",
		Status:         models.StatusSent,
		Priority:       models.PriorityNormal,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.msgs.Create(ctx, marker); err != nil {
		s.log.Warn("failed to record creation marker", "conversation_id", conv.ID, "error", err)
		return conv, nil
	}
	if err := s.convs.SetLastMessage(ctx, conv.ID, marker.Snapshot()); err != nil {
		s.log.Warn("failed to snapshot creation marker", "conversation_id", conv.ID, "error", err)
	}
	conv.LastMessage = marker.Snapshot()
	return conv, nil
}

// GetConversation returns a conversation the caller participates in. Opening
// a conversation reads it: the caller's unread counter resets as a side
// effect and the returned row reflects the reset.
func (s *Service) GetConversation(ctx context.Context, conversationID, userID uuid.UUID) (*models.Conversation, error) {
	conv, err := s.requireParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if conv.UnreadFor(userID) == 0 {
		return conv, nil
	}
	if err := s.msgs.MarkConversationRead(ctx, conversationID, userID, s.now()); err != nil {
		return nil, fmt.Errorf("failed to mark conversation read: %w", err)
	}
	return s.convs.GetByID(ctx, conversationID)
}

// GetMessages returns one page, oldest first, soft-deleted rows excluded.
// Fetching a page also advances sent → delivered for messages addressed to
// the caller.
func (s *Service) GetMessages(ctx context.Context, conversationID, userID uuid.UUID, page, limit int) (*models.MessagePage, error) {
	if _, err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	messages, total, err := s.msgs.ListPage(ctx, conversationID, page, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}

	if err := s.msgs.MarkDelivered(ctx, conversationID, userID); err != nil {
		s.log.Warn("failed to mark delivered", "conversation_id", conversationID, "error", err)
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return &models.MessagePage{
		Messages: messages,
		Pagination: models.Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
		},
	}, nil
}

// SendTextMessage persists a text message, applies the unread/last-message
// bookkeeping in one store operation, then notifies the other participants.
func (s *Service) SendTextMessage(ctx context.Context, conversationID, userID uuid.UUID, req models.SendTextMessageRequest) (*models.Message, error) {
	conv, err := s.requireParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: message content is empty", ErrInvalidInput)
	}

	priority := req.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}

	now := s.now()
	msg := &models.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       userID,
		Type:           models.MessageText,
		Content:        content,
		Status:         models.StatusSent,
		ReplyTo:        req.ReplyTo,
		Mentions:       req.Mentions,
		Priority:       priority,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.msgs.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	if err := s.convs.ApplySend(ctx, conversationID, msg.Snapshot()); err != nil {
		return nil, fmt.Errorf("failed to update conversation: %w", err)
	}

	metrics.MessagesSent.WithLabelValues(string(msg.Type)).Inc()
	s.afterSend(ctx, conv, msg)
	return msg, nil
}

// SendMediaMessage runs every file through the attachment pipeline and
// builds a single message from the results. Any pipeline failure aborts the
// whole send; no partial message is created.
func (s *Service) SendMediaMessage(ctx context.Context, conversationID, userID uuid.UUID, uploads []Upload, caption string) (*models.Message, error) {
	conv, err := s.requireParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if len(uploads) == 0 {
		return nil, ErrNoFiles
	}

	attachments := make([]models.Attachment, 0, len(uploads))
	for _, up := range uploads {
		att, err := s.processor.ProcessAttachment(ctx, up)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, att)
	}

	now := s.now()
	msg := &models.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       userID,
		Type:           TypeForMime(attachments[0].MimeType),
		Content:        strings.TrimSpace(caption),
		Attachments:    attachments,
		Status:         models.StatusSent,
		Priority:       models.PriorityNormal,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.msgs.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	if err := s.convs.ApplySend(ctx, conversationID, msg.Snapshot()); err != nil {
		return nil, fmt.Errorf("failed to update conversation: %w", err)
	}

	metrics.MessagesSent.WithLabelValues(string(msg.Type)).Inc()
	s.afterSend(ctx, conv, msg)
	return msg, nil
}

// MarkAsRead marks either the given messages or the whole conversation read
// for the caller. Whole-conversation reads reset the caller's unread counter
// in the same store operation; both forms are idempotent.
func (s *Service) MarkAsRead(ctx context.Context, conversationID, userID uuid.UUID, messageIDs []uuid.UUID) error {
	if _, err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return err
	}

	now := s.now()
	if len(messageIDs) > 0 {
		if err := s.msgs.MarkMessagesRead(ctx, conversationID, messageIDs, userID, now); err != nil {
			return fmt.Errorf("failed to mark messages read: %w", err)
		}
		return nil
	}
	if err := s.msgs.MarkConversationRead(ctx, conversationID, userID, now); err != nil {
		return fmt.Errorf("failed to mark conversation read: %w", err)
	}
	return nil
}

// EditMessage rewrites a text message's content. Sender-only, within
// EditWindow of creation.
func (s *Service) EditMessage(ctx context.Context, messageID, userID uuid.UUID, newContent string) (*models.Message, error) {
	msg, err := s.msgs.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.IsDeleted() {
		return nil, ErrNotFound
	}
	if msg.SenderID != userID {
		return nil, ErrForbidden
	}
	if msg.Type != models.MessageText {
		return nil, ErrUnsupportedOperation
	}
	now := s.now()
	if now.Sub(msg.CreatedAt) > EditWindow {
		return nil, ErrEditWindowExpired
	}
	content := strings.TrimSpace(newContent)
	if content == "" {
		return nil, fmt.Errorf("%w: message content is empty", ErrInvalidInput)
	}

	if err := s.msgs.UpdateContent(ctx, messageID, content, now); err != nil {
		return nil, fmt.Errorf("failed to edit message: %w", err)
	}
	msg.Content = content
	msg.EditedAt = &now
	msg.UpdatedAt = now

	// Keep the snapshot honest when the latest message is edited.
	if conv, err := s.convs.GetByID(ctx, msg.ConversationID); err == nil {
		if conv.LastMessage != nil && conv.LastMessage.MessageID == msg.ID {
			if err := s.convs.SetLastMessage(ctx, conv.ID, msg.Snapshot()); err != nil {
				s.log.Warn("failed to refresh last-message snapshot", "message_id", msg.ID, "error", err)
			}
		}
	}
	return msg, nil
}

// DeleteMessage soft-deletes. Allowed for the sender and for superadmins.
func (s *Service) DeleteMessage(ctx context.Context, messageID, userID uuid.UUID, role string) error {
	msg, err := s.msgs.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.IsDeleted() {
		return nil
	}
	if msg.SenderID != userID && role != models.RoleSuperAdmin {
		return ErrForbidden
	}
	if err := s.msgs.SoftDelete(ctx, messageID, s.now()); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

// ListAvailableRecipients is the role-gated directory: admins may message
// superadmins, superadmins may message both admin roles. Everyone else is
// refused.
func (s *Service) ListAvailableRecipients(ctx context.Context, userID uuid.UUID, role string) ([]models.User, error) {
	var roles []string
	switch role {
	case models.RoleAdmin:
		roles = []string{models.RoleSuperAdmin}
	case models.RoleSuperAdmin:
		roles = []string{models.RoleAdmin, models.RoleSuperAdmin}
	default:
		return nil, ErrForbidden
	}

	users, err := s.users.ListByRoles(ctx, roles)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	out := users[:0]
	for _, u := range users {
		if u.ID == userID {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (s *Service) requireParticipant(ctx context.Context, conversationID, userID uuid.UUID) (*models.Conversation, error) {
	conv, err := s.convs.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, ErrAccessDenied
	}
	return conv, nil
}

// afterSend runs the best-effort side effects of an accepted message: email
// notifications to the other participants and the push signal. Neither may
// fail the send.
func (s *Service) afterSend(ctx context.Context, conv *models.Conversation, msg *models.Message) {
	if s.publisher != nil {
		if err := s.publisher.PublishNewMessage(models.NewMessageSignal{
			ConversationID: conv.ID,
			MessageID:      msg.ID,
			SenderID:       msg.SenderID,
		}); err != nil {
			s.log.Warn("failed to publish new-message signal", "message_id", msg.ID, "error", err)
		}
	}

	if s.notifier == nil {
		return
	}
	sender, err := s.users.GetByID(ctx, msg.SenderID)
	if err != nil {
		s.log.Warn("failed to load sender for notification", "message_id", msg.ID, "error", err)
		return
	}
	for _, p := range conv.Participants {
		if p.UserID == msg.SenderID {
			continue
		}
		recipient, err := s.users.GetByID(ctx, p.UserID)
		if err != nil {
			s.log.Warn("failed to load recipient for notification", "user_id", p.UserID, "error", err)
			continue
		}
		if err := s.notifier.NotifyNewMessage(*recipient, *sender, conv, msg); err != nil {
			s.log.Warn("failed to send notification email", "user_id", p.UserID, "error", err)
		}
	}
}

// TypeForMime maps a MIME type onto the message type of its category.
func TypeForMime(mimeType string) models.MessageType {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return models.MessageImage
	case strings.HasPrefix(mimeType, "audio/"):
		return models.MessageAudio
	case strings.HasPrefix(mimeType, "video/"):
		return models.MessageVideo
	default:
		return models.MessageFile
	}
}
