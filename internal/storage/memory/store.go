// Package memory holds an in-memory record store implementing the messaging
// store ports. It is NOT persistent and is only suitable for tests and local
// development; the postgres repositories are the production implementation.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marketlane/backend/internal/messaging"
	"github.com/marketlane/backend/internal/models"
)

// Store keeps conversations, messages and users behind one mutex so the
// unread/last-message bookkeeping of a single event is atomic, mirroring the
// transactional behavior of the postgres repositories.
type Store struct {
	mu            sync.RWMutex
	conversations map[uuid.UUID]*models.Conversation
	directKeys    map[string]uuid.UUID
	messages      map[uuid.UUID]*models.Message
	byConv        map[uuid.UUID][]uuid.UUID
	users         map[uuid.UUID]*models.User
}

func NewStore() *Store {
	return &Store{
		conversations: make(map[uuid.UUID]*models.Conversation),
		directKeys:    make(map[string]uuid.UUID),
		messages:      make(map[uuid.UUID]*models.Message),
		byConv:        make(map[uuid.UUID][]uuid.UUID),
		users:         make(map[uuid.UUID]*models.User),
	}
}

// AddUser seeds a user record.
func (s *Store) AddUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := u
	s.users[u.ID] = &copied
}

// SetConversationStatus seeds a status change. Archival happens outside the
// messaging service (platform admin tooling), so tests stage it here.
func (s *Store) SetConversationStatus(id uuid.UUID, status models.ConversationStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.conversations[id]; ok {
		conv.Status = status
	}
}

func cloneConversation(c *models.Conversation) *models.Conversation {
	out := *c
	out.Participants = append([]models.Participant(nil), c.Participants...)
	if c.LastMessage != nil {
		lm := *c.LastMessage
		out.LastMessage = &lm
	}
	if c.RelatedEntity != nil {
		re := *c.RelatedEntity
		out.RelatedEntity = &re
	}
	return &out
}

func cloneMessage(m *models.Message) *models.Message {
	out := *m
	out.Attachments = append([]models.Attachment(nil), m.Attachments...)
	out.ReadBy = append([]models.ReadReceipt(nil), m.ReadBy...)
	out.Mentions = append([]uuid.UUID(nil), m.Mentions...)
	return &out
}

// --- ConversationStore ---

func (s *Store) Create(ctx context.Context, conv *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv.DedupeParticipants()
	if conv.Type == models.ConversationDirect && len(conv.Participants) == 2 {
		key := models.DirectKey(conv.Participants[0].UserID, conv.Participants[1].UserID)
		if existingID, exists := s.directKeys[key]; exists {
			existing, live := s.conversations[existingID]
			if live && existing.Status != models.ConversationArchived {
				return messaging.ErrDuplicateDirect
			}
			// An archived conversation releases its key, matching the
			// partial unique index in postgres.
			delete(s.directKeys, key)
		}
		s.directKeys[key] = conv.ID
	}
	s.conversations[conv.ID] = cloneConversation(conv)
	return nil
}

func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, messaging.ErrNotFound
	}
	return cloneConversation(conv), nil
}

func (s *Store) FindByParticipant(ctx context.Context, userID uuid.UUID, filter messaging.ListFilter) ([]models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Conversation{}
	for _, conv := range s.conversations {
		if !conv.HasParticipant(userID) {
			continue
		}
		if conv.Status == models.ConversationArchived && !filter.IncludeArchived {
			continue
		}
		if filter.Status != "" && conv.Status != filter.Status {
			continue
		}
		if filter.Type != "" && conv.Type != filter.Type {
			continue
		}
		out = append(out, *cloneConversation(conv))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SortTime().After(out[j].SortTime())
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) FindDirect(ctx context.Context, directKey string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.directKeys[directKey]
	if !ok {
		return nil, messaging.ErrNotFound
	}
	conv, ok := s.conversations[id]
	if !ok || conv.Status == models.ConversationArchived {
		return nil, messaging.ErrNotFound
	}
	return cloneConversation(conv), nil
}

func (s *Store) ApplySend(ctx context.Context, conversationID uuid.UUID, snap *models.LastMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return messaging.ErrNotFound
	}
	lm := *snap
	conv.LastMessage = &lm
	conv.UpdatedAt = snap.SentAt
	for i := range conv.Participants {
		if conv.Participants[i].UserID != snap.SenderID {
			conv.Participants[i].UnreadCount++
		}
	}
	return nil
}

func (s *Store) SetLastMessage(ctx context.Context, conversationID uuid.UUID, snap *models.LastMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return messaging.ErrNotFound
	}
	lm := *snap
	conv.LastMessage = &lm
	return nil
}

func (s *Store) ResetUnread(ctx context.Context, conversationID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetUnreadLocked(conversationID, userID)
}

func (s *Store) resetUnreadLocked(conversationID, userID uuid.UUID) error {
	conv, ok := s.conversations[conversationID]
	if !ok {
		return messaging.ErrNotFound
	}
	for i := range conv.Participants {
		if conv.Participants[i].UserID == userID {
			conv.Participants[i].UnreadCount = 0
		}
	}
	return nil
}

// --- MessageStore ---

func (s *Store) CreateMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages[msg.ID] = cloneMessage(msg)
	s.byConv[msg.ConversationID] = append(s.byConv[msg.ConversationID], msg.ID)
	return nil
}

func (s *Store) GetMessageByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[id]
	if !ok {
		return nil, messaging.ErrNotFound
	}
	return cloneMessage(msg), nil
}

func (s *Store) ListPage(ctx context.Context, conversationID uuid.UUID, page, limit int) ([]models.Message, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	live := s.liveMessagesLocked(conversationID)
	total := len(live)

	start := (page - 1) * limit
	if start >= total {
		return []models.Message{}, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	out := make([]models.Message, 0, end-start)
	for _, m := range live[start:end] {
		out = append(out, *cloneMessage(m))
	}
	return out, total, nil
}

func (s *Store) MarkConversationRead(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.liveMessagesLocked(conversationID) {
		if m.SenderID == userID {
			continue
		}
		m.MarkReadBy(userID, at)
		if m.Status.CanTransition(models.StatusRead) {
			m.Status = models.StatusRead
		}
	}
	return s.resetUnreadLocked(conversationID, userID)
}

func (s *Store) MarkMessagesRead(ctx context.Context, conversationID uuid.UUID, messageIDs []uuid.UUID, userID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	newlyRead := 0
	for _, id := range messageIDs {
		m, ok := s.messages[id]
		if !ok || m.ConversationID != conversationID || m.IsDeleted() {
			continue
		}
		if m.SenderID == userID || m.ReadByUser(userID) {
			continue
		}
		m.MarkReadBy(userID, at)
		if m.Status.CanTransition(models.StatusRead) {
			m.Status = models.StatusRead
		}
		newlyRead++
	}

	conv, ok := s.conversations[conversationID]
	if !ok {
		return messaging.ErrNotFound
	}
	for i := range conv.Participants {
		if conv.Participants[i].UserID == userID {
			conv.Participants[i].UnreadCount -= newlyRead
			if conv.Participants[i].UnreadCount < 0 {
				conv.Participants[i].UnreadCount = 0
			}
		}
	}
	return nil
}

func (s *Store) MarkDelivered(ctx context.Context, conversationID, readerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.liveMessagesLocked(conversationID) {
		if m.SenderID == readerID {
			continue
		}
		if m.Status.CanTransition(models.StatusDelivered) {
			m.Status = models.StatusDelivered
		}
	}
	return nil
}

func (s *Store) UpdateContent(ctx context.Context, id uuid.UUID, content string, editedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return messaging.ErrNotFound
	}
	msg.Content = content
	msg.EditedAt = &editedAt
	msg.UpdatedAt = editedAt
	return nil
}

func (s *Store) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return messaging.ErrNotFound
	}
	msg.DeletedAt = &at
	msg.UpdatedAt = at
	return nil
}

// liveMessagesLocked returns non-deleted messages of a conversation in
// creation order. Callers must hold the mutex.
func (s *Store) liveMessagesLocked(conversationID uuid.UUID) []*models.Message {
	ids := s.byConv[conversationID]
	out := make([]*models.Message, 0, len(ids))
	for _, id := range ids {
		m, ok := s.messages[id]
		if !ok || m.IsDeleted() {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// --- UserStore ---

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, messaging.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *Store) ListByRoles(ctx context.Context, roles []string) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := make(map[string]bool, len(roles))
	for _, r := range roles {
		want[r] = true
	}
	out := []models.User{}
	for _, u := range s.users {
		if want[u.Role] {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

// --- port views ---
//
// The three store ports share method names (Create, GetByID), so the message
// and user ports are exposed through thin views over the same Store.

// MessageView adapts Store to messaging.MessageStore.
type MessageView struct {
	s *Store
}

func (s *Store) Messages() *MessageView { return &MessageView{s: s} }

func (v *MessageView) Create(ctx context.Context, msg *models.Message) error {
	return v.s.CreateMessage(ctx, msg)
}

func (v *MessageView) GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	return v.s.GetMessageByID(ctx, id)
}

func (v *MessageView) ListPage(ctx context.Context, conversationID uuid.UUID, page, limit int) ([]models.Message, int, error) {
	return v.s.ListPage(ctx, conversationID, page, limit)
}

func (v *MessageView) MarkConversationRead(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) error {
	return v.s.MarkConversationRead(ctx, conversationID, userID, at)
}

func (v *MessageView) MarkMessagesRead(ctx context.Context, conversationID uuid.UUID, messageIDs []uuid.UUID, userID uuid.UUID, at time.Time) error {
	return v.s.MarkMessagesRead(ctx, conversationID, messageIDs, userID, at)
}

func (v *MessageView) MarkDelivered(ctx context.Context, conversationID, readerID uuid.UUID) error {
	return v.s.MarkDelivered(ctx, conversationID, readerID)
}

func (v *MessageView) UpdateContent(ctx context.Context, id uuid.UUID, content string, editedAt time.Time) error {
	return v.s.UpdateContent(ctx, id, content, editedAt)
}

func (v *MessageView) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	return v.s.SoftDelete(ctx, id, at)
}

// UserView adapts Store to messaging.UserStore.
type UserView struct {
	s *Store
}

func (s *Store) Users() *UserView { return &UserView{s: s} }

func (v *UserView) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return v.s.GetUserByID(ctx, id)
}

func (v *UserView) ListByRoles(ctx context.Context, roles []string) ([]models.User, error) {
	return v.s.ListByRoles(ctx, roles)
}
