package client

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marketlane/backend/internal/models"
)

// Store is the client-side conversation state a dashboard renders from. The
// server stays the source of truth: list responses replace local state
// wholesale and the unread total is always the server's number, never a
// local sum.
type Store struct {
	mu sync.Mutex

	conversations []models.Conversation
	totalUnread   int

	// active is the conversation whose messages are on screen. Page
	// responses for any other conversation are stale and discarded.
	active uuid.UUID

	messages   []models.Message
	pagination models.Pagination

	// pending optimistic sends by temp id, with the draft kept for input
	// restoration on failure.
	pending map[uuid.UUID]string
}

func NewStore() *Store {
	return &Store{pending: make(map[uuid.UUID]string)}
}

// ReplaceConversations installs a fresh server listing.
func (s *Store) ReplaceConversations(list *models.ConversationList) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = list.Conversations
	s.totalUnread = list.TotalUnread
}

// Conversations returns the current listing and the server's unread total.
func (s *Store) Conversations() ([]models.Conversation, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out, s.totalUnread
}

// SetActive switches the open conversation and clears its message state.
func (s *Store) SetActive(conversationID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == conversationID {
		return
	}
	s.active = conversationID
	s.messages = nil
	s.pagination = models.Pagination{}
	s.pending = make(map[uuid.UUID]string)
}

// Active returns the open conversation id.
func (s *Store) Active() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// ApplyPage reconciles one server page into the open conversation. Page 1
// replaces local messages; older pages prepend, deduplicated by id. A page
// for a conversation that is no longer active is dropped, and the method
// reports whether the page was applied.
func (s *Store) ApplyPage(conversationID uuid.UUID, page *models.MessagePage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conversationID != s.active {
		return false
	}

	if page.Pagination.Page <= 1 {
		s.messages = page.Messages
		s.pagination = page.Pagination
		return true
	}

	seen := make(map[uuid.UUID]struct{}, len(s.messages))
	for _, m := range s.messages {
		seen[m.ID] = struct{}{}
	}
	fresh := make([]models.Message, 0, len(page.Messages))
	for _, m := range page.Messages {
		if _, dup := seen[m.ID]; !dup {
			fresh = append(fresh, m)
		}
	}
	s.messages = append(fresh, s.messages...)
	s.pagination = page.Pagination
	return true
}

// Messages returns the open conversation's messages, oldest first.
func (s *Store) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// BeginSend appends an optimistic message for a draft and returns its temp
// id. The draft text is retained so a failed send can restore the input.
func (s *Store) BeginSend(senderID uuid.UUID, draft string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	tempID := uuid.New()
	now := time.Now()
	s.messages = append(s.messages, models.Message{
		ID:             tempID,
		ConversationID: s.active,
		SenderID:       senderID,
		Type:           models.MessageText,
		Content:        draft,
		Status:         models.StatusSending,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	s.pending[tempID] = draft
	return tempID
}

// ConfirmSend swaps the optimistic message for the server's copy.
func (s *Store) ConfirmSend(tempID uuid.UUID, msg *models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, tempID)
	for i := range s.messages {
		if s.messages[i].ID == tempID {
			s.messages[i] = *msg
			return
		}
	}
	// Page refresh may have dropped the optimistic row already.
	if msg.ConversationID == s.active {
		s.messages = append(s.messages, *msg)
	}
}

// FailSend removes the optimistic message and returns the draft so the
// caller can put it back into the input.
func (s *Store) FailSend(tempID uuid.UUID) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.pending[tempID]
	delete(s.pending, tempID)
	for i := range s.messages {
		if s.messages[i].ID == tempID {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			break
		}
	}
	return draft
}
