package messaging_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/marketlane/backend/internal/messaging"
	"github.com/marketlane/backend/internal/models"
	"github.com/marketlane/backend/internal/observability"
	"github.com/marketlane/backend/internal/storage/memory"
)

type fakeProcessor struct {
	err   error
	calls int
}

func (f *fakeProcessor) ProcessAttachment(ctx context.Context, up messaging.Upload) (models.Attachment, error) {
	f.calls++
	if f.err != nil {
		return models.Attachment{}, f.err
	}
	return models.Attachment{
		FileName: "stored-" + up.FileName,
		FileURL:  "https://cdn.test/files/" + up.FileName,
		FileSize: int64(len(up.Bytes)),
		MimeType: up.MimeType,
	}, nil
}

type capturingPublisher struct {
	signals []models.NewMessageSignal
}

func (p *capturingPublisher) PublishNewMessage(sig models.NewMessageSignal) error {
	p.signals = append(p.signals, sig)
	return nil
}

type fixture struct {
	svc        *messaging.Service
	store      *memory.Store
	processor  *fakeProcessor
	publisher  *capturingPublisher
	admin      models.User
	superadmin models.User
	other      models.User
}

func newFixture(t *testing.T, opts ...messaging.Option) *fixture {
	t.Helper()

	store := memory.NewStore()
	admin := models.User{ID: uuid.New(), Email: "alice@example.com", DisplayName: "Alice", Role: models.RoleAdmin}
	superadmin := models.User{ID: uuid.New(), Email: "bob@example.com", DisplayName: "Bob", Role: models.RoleSuperAdmin}
	other := models.User{ID: uuid.New(), Email: "carol@example.com", DisplayName: "Carol", Role: models.RoleAdmin}
	store.AddUser(admin)
	store.AddUser(superadmin)
	store.AddUser(other)

	processor := &fakeProcessor{}
	publisher := &capturingPublisher{}
	opts = append([]messaging.Option{messaging.WithPublisher(publisher)}, opts...)

	svc := messaging.NewService(store, store.Messages(), store.Users(), processor,
		observability.WithComponent("test"), opts...)

	return &fixture{
		svc:        svc,
		store:      store,
		processor:  processor,
		publisher:  publisher,
		admin:      admin,
		superadmin: superadmin,
		other:      other,
	}
}

func (f *fixture) directConversation(t *testing.T) *models.Conversation {
	t.Helper()
	conv, err := f.svc.CreateOrGetDirectConversation(context.Background(), f.admin, f.superadmin.ID, "")
	if err != nil {
		t.Fatalf("CreateOrGetDirectConversation: %v", err)
	}
	return conv
}

func unreadOf(t *testing.T, store *memory.Store, convID, userID uuid.UUID) int {
	t.Helper()
	conv, err := store.GetByID(context.Background(), convID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	return conv.UnreadFor(userID)
}

func TestSendTextMessage_UnreadBookkeeping(t *testing.T) {
	f := newFixture(t)
	conv := f.directConversation(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.SendTextMessage(ctx, conv.ID, f.admin.ID, models.SendTextMessageRequest{Content: "hello"})
		if err != nil {
			t.Fatalf("SendTextMessage: %v", err)
		}
	}

	if got := unreadOf(t, f.store, conv.ID, f.superadmin.ID); got != 3 {
		t.Errorf("recipient unread = %d, want 3", got)
	}
	if got := unreadOf(t, f.store, conv.ID, f.admin.ID); got != 0 {
		t.Errorf("sender unread = %d, want 0", got)
	}
}

func TestSendTextMessage_UpdatesLastMessageSnapshot(t *testing.T) {
	f := newFixture(t)
	conv := f.directConversation(t)
	ctx := context.Background()

	f.svc.SendTextMessage(ctx, conv.ID, f.admin.ID, models.SendTextMessageRequest{Content: "first"})
	last, err := f.svc.SendTextMessage(ctx, conv.ID, f.superadmin.ID, models.SendTextMessageRequest{Content: "second"})
	if err != nil {
		t.Fatalf("SendTextMessage: %v", err)
	}

	got, _ := f.store.GetByID(ctx, conv.ID)
	if got.LastMessage == nil || got.LastMessage.MessageID != last.ID {
		t.Fatalf("last-message snapshot not updated: %+v", got.LastMessage)
	}
	if got.LastMessage.Preview != "second" || got.LastMessage.SenderID != f.superadmin.ID {
		t.Errorf("snapshot fields wrong: %+v", got.LastMessage)
	}
}

func TestSendTextMessage_RejectsEmptyContent(t *testing.T) {
	f := newFixture(t)
	conv := f.directConversation(t)

	_, err := f.svc.SendTextMessage(context.Background(), conv.ID, f.admin.ID,
		models.SendTextMessageRequest{Content: "   \n\t "})
	if !errors.Is(err, messaging.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSendTextMessage_NonParticipantDenied(t *testing.T) {
	f := newFixture(t)
	conv := f.directConversation(t)

	_, err := f.svc.SendTextMessage(context.Background(), conv.ID, f.other.ID,
		models.SendTextMessageRequest{Content: "let me in"})
	if !errors.Is(err, messaging.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
	if got := unreadOf(t, f.store, conv.ID, f.superadmin.ID); got != 0 {
		t.Errorf("denied send still changed unread: %d", got)
	}
}

func TestSendTextMessage_PublishesSignal(t *testing.T) {
	f := newFixture(t)
	conv := f.directConversation(t)

	msg, err := f.svc.SendTextMessage(context.Background(), conv.ID, f.admin.ID,
		models.SendTextMessageRequest{Content: "ping"})
	if err != nil {
		t.Fatalf("SendTextMessage: %v", err)
	}

	if len(f.publisher.signals) == 0 {
		t.Fatal("no signal published")
	}
	sig := f.publisher.signals[len(f.publisher.signals)-1]
	if sig.ConversationID != conv.ID || sig.MessageID != msg.ID || sig.SenderID != f.admin.ID {
		t.Errorf("signal fields wrong: %+v", sig)
	}
}

func TestSendMediaMessage_AllOrNothing(t *testing.T) {
	f := newFixture(t)
	conv := f.directConversation(t)
	ctx := context.Background()

	f.processor.err = errors.New("storage down")
	uploads := []messaging.Upload{
		{Bytes: []byte("a"), MimeType: "image/png", FileName: "a.png"},
		{Bytes: []byte("b"), MimeType: "image/png", FileName: "b.png"},
	}
	if _, err := f.svc.SendMediaMessage(ctx, conv.ID, f.admin.ID, uploads, ""); err == nil {
		t.Fatal("expected pipeline failure to abort the send")
	}

	page, err := f.svc.GetMessages(ctx, conv.ID, f.admin.ID, 1, 50)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	for _, m := range page.Messages {
		if len(m.Attachments) > 0 {
			t.Fatal("partial media message was committed")
		}
	}
	if got := unreadOf(t, f.store, conv.ID, f.superadmin.ID); got != 0 {
		t.Errorf("failed send still changed unread: %d", got)
	}
}

func TestSendMediaMessage_TypeFromFirstAttachment(t *testing.T) {
	f := newFixture(t)
	conv := f.directConversation(t)

	msg, err := f.svc.SendMediaMessage(context.Background(), conv.ID, f.admin.ID, []messaging.Upload{
		{Bytes: []byte("voice"), MimeType: "audio/mpeg", FileName: "v.mp3"},
	}, "listen")
	if err != nil {
		t.Fatalf("SendMediaMessage: %v", err)
	}
	if msg.Type != models.MessageAudio {
		t.Errorf("Type = %s, want audio", msg.Type)
	}
	if len(msg.Attachments) != 1 || msg.Content != "listen" {
		t.Errorf("message fields wrong: %+v", msg)
	}
}

func TestSendMediaMessage_NoFiles(t *testing.T) {
	f := newFixture(t)
	conv := f.directConversation(t)

	_, err := f.svc.SendMediaMessage(context.Background(), conv.ID, f.admin.ID, nil, "")
	if !errors.Is(err, messaging.ErrNoFiles) {
		t.Fatalf("expected ErrNoFiles, got %v", err)
	}
}

func TestCreateOrGetDirect_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.CreateOrGetDirectConversation(ctx, f.admin, f.superadmin.ID, "")
	if err != nil {
		t.Fatalf("first create: %v", err)
	}

	// Repeat from either side: same conversation, participants unchanged.
	second, err := f.svc.CreateOrGetDirectConversation(ctx, f.superadmin, f.admin.ID, "")
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("duplicate direct conversation created: %s vs %s", first.ID, second.ID)
	}
	if len(second.Participants) != 2 {
		t.Errorf("participants = %d, want 2", len(second.Participants))
	}
}

func TestCreateOrGetDirect_LosingRaceReturnsWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A concurrent request won the insert between our miss and our create.
	now := time.Now()
	winner := &models.Conversation{
		ID:     uuid.New(),
		Type:   models.ConversationDirect,
		Title:  "existing",
		Status: models.ConversationActive,
		Participants: []models.Participant{
			{UserID: f.admin.ID, Role: f.admin.Role, JoinedAt: now},
			{UserID: f.superadmin.ID, Role: f.superadmin.Role, JoinedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := f.store.Create(ctx, winner); err != nil {
		t.Fatalf("seed winner: %v", err)
	}

	conv, err := f.svc.CreateOrGetDirectConversation(ctx, f.admin, f.superadmin.ID, "")
	if err != nil {
		t.Fatalf("CreateOrGetDirectConversation: %v", err)
	}
	if conv.ID != winner.ID {
		t.Fatalf("expected the winner %s, got %s", winner.ID, conv.ID)
	}
}

// blindStore hides the direct conversation from the first FindDirect call,
// simulating a concurrent create that lands between the lookup miss and the
// insert.
type blindStore struct {
	*memory.Store
	misses int
}

func (b *blindStore) FindDirect(ctx context.Context, key string) (*models.Conversation, error) {
	if b.misses > 0 {
		b.misses--
		return nil, messaging.ErrNotFound
	}
	return b.Store.FindDirect(ctx, key)
}

func TestCreateOrGetDirect_DuplicateInsertRecovers(t *testing.T) {
	store := memory.NewStore()
	admin := models.User{ID: uuid.New(), Email: "a@example.com", DisplayName: "A", Role: models.RoleAdmin}
	super := models.User{ID: uuid.New(), Email: "b@example.com", DisplayName: "B", Role: models.RoleSuperAdmin}
	store.AddUser(admin)
	store.AddUser(super)

	ctx := context.Background()
	now := time.Now()
	winner := &models.Conversation{
		ID:     uuid.New(),
		Type:   models.ConversationDirect,
		Status: models.ConversationActive,
		Participants: []models.Participant{
			{UserID: admin.ID, Role: admin.Role, JoinedAt: now},
			{UserID: super.ID, Role: super.Role, JoinedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.Create(ctx, winner); err != nil {
		t.Fatalf("seed winner: %v", err)
	}

	// The lookup misses, the insert collides, and the loser re-fetches.
	svc := messaging.NewService(&blindStore{Store: store, misses: 1}, store.Messages(), store.Users(),
		&fakeProcessor{}, observability.WithComponent("test"))

	conv, err := svc.CreateOrGetDirectConversation(ctx, admin, super.ID, "")
	if err != nil {
		t.Fatalf("CreateOrGetDirectConversation: %v", err)
	}
	if conv.ID != winner.ID {
		t.Fatalf("expected the winner %s after losing the insert, got %s", winner.ID, conv.ID)
	}
}

func TestCreateOrGetDirect_SelfAndUnknownRecipient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.CreateOrGetDirectConversation(ctx, f.admin, f.admin.ID, ""); !errors.Is(err, messaging.ErrInvalidInput) {
		t.Errorf("self conversation: expected ErrInvalidInput, got %v", err)
	}
	if _, err := f.svc.CreateOrGetDirectConversation(ctx, f.admin, uuid.New(), ""); !errors.Is(err, messaging.ErrNotFound) {
		t.Errorf("unknown recipient: expected ErrNotFound, got %v", err)
	}
}

func TestCreateOrGetDirect_ArchivedPairAllowsFresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.directConversation(t)
	f.store.SetConversationStatus(first.ID, models.ConversationArchived)

	fresh, err := f.svc.CreateOrGetDirectConversation(ctx, f.admin, f.superadmin.ID, "")
	if err != nil {
		t.Fatalf("create after archive: %v", err)
	}
	if fresh.ID == first.ID {
		t.Fatal("expected a fresh conversation, got the archived one")
	}

	got, err := f.store.FindDirect(ctx, models.DirectKey(f.admin.ID, f.superadmin.ID))
	if err != nil {
		t.Fatalf("FindDirect: %v", err)
	}
	if got.ID != fresh.ID {
		t.Errorf("direct key resolves to %s, want the fresh conversation %s", got.ID, fresh.ID)
	}
}

func TestCreateOrGetDirect_MarkerDoesNotIncrementUnread(t *testing.T) {
	f := newFixture(t)
	conv := f.directConversation(t)

	if got := unreadOf(t, f.store, conv.ID, f.superadmin.ID); got != 0 {
		t.Errorf("creation marker incremented unread: %d", got)
	}
	if conv.LastMessage == nil || conv.LastMessage.Preview != "Conversation started" {
		t.Errorf("creation marker snapshot missing: %+v", conv.LastMessage)
	}
}

func TestGetConversation_ResetsCallerUnread(t *testing.T) {
	f := newFixture(t)
	conv := f.directConversation(t)
	ctx := context.Background()

	f.svc.SendTextMessage(ctx, conv.ID, f.admin.ID, models.SendTextMessageRequest{Content: "hello"})

	got, err := f.svc.GetConversation(ctx, conv.ID, f.superadmin.ID)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if got.UnreadFor(f.superadmin.ID) != 0 {
		t.Errorf("returned unread = %d, want 0", got.UnreadFor(f.superadmin.ID))
	}
	if got := unreadOf(t, f.store, conv.ID, f.superadmin.ID); got != 0 {
		t.Errorf("stored unread after open = %d, want 0", got)
	}
	// The sender's counter is untouched and opening again stays clean.
	if got := unreadOf(t, f.store, conv.ID, f.admin.ID); got != 0 {
		t.Errorf("sender unread = %d, want 0", got)
	}
	if _, err := f.svc.GetConversation(ctx, conv.ID, f.superadmin.ID); err != nil {
		t.Fatalf("repeat GetConversation: %v", err)
	}
}

func TestMarkAsRead_WholeConversation(t *testing.T) {
	f := newFixture(t)
	conv := f.directConversation(t)
	ctx := context.Background()

	f.svc.SendTextMessage(ctx, conv.ID, f.admin.ID, models.SendTextMessageRequest{Content: "one"})
	f.svc.SendTextMessage(ctx, conv.ID, f.admin.ID, models.SendTextMessageRequest{Content: "two"})

	if err := f.svc.MarkAsRead(ctx, conv.ID, f.superadmin.ID, nil); err != nil {
		t.Fatalf("MarkAsRead: %v", err)
	}
	if got := unreadOf(t, f.store, conv.ID, f.superadmin.ID); got != 0 {
		t.Errorf("unread after read-all = %d, want 0", got)
	}
}

func TestMarkAsRead_IdempotentAtZero(t *testing.T) {
	f := newFixture(t)
	conv := f.directConversation(t)
	ctx := context.Background()

	if err := f.svc.MarkAsRead(ctx, conv.ID, f.superadmin.ID, nil); err != nil {
		t.Fatalf("first MarkAsRead: %v", err)
	}
	if err := f.svc.MarkAsRead(ctx, conv.ID, f.superadmin.ID, nil); err != nil {
		t.Fatalf("repeat MarkAsRead: %v", err)
	}
	if got := unreadOf(t, f.store, conv.ID, f.superadmin.ID); got != 0 {
		t.Errorf("unread = %d, want 0", got)
	}
}

func TestMarkAsRead_SelectedMessagesDecrementByNewlyRead(t *testing.T) {
	f := newFixture(t)
	conv := f.directConversation(t)
	ctx := context.Background()

	m1, _ := f.svc.SendTextMessage(ctx, conv.ID, f.admin.ID, models.SendTextMessageRequest{Content: "one"})
	m2, _ := f.svc.SendTextMessage(ctx, conv.ID, f.admin.ID, models.SendTextMessageRequest{Content: "two"})
	f.svc.SendTextMessage(ctx, conv.ID, f.admin.ID, models.SendTextMessageRequest{Content: "three"})

	ids := []uuid.UUID{m1.ID, m2.ID}
	if err := f.svc.MarkAsRead(ctx, conv.ID, f.superadmin.ID, ids); err != nil {
		t.Fatalf("MarkAsRead: %v", err)
	}
	if got := unreadOf(t, f.store, conv.ID, f.superadmin.ID); got != 1 {
		t.Errorf("unread = %d, want 1", got)
	}

	// Marking the same ids again must not decrement further.
	if err := f.svc.MarkAsRead(ctx, conv.ID, f.superadmin.ID, ids); err != nil {
		t.Fatalf("repeat MarkAsRead: %v", err)
	}
	if got := unreadOf(t, f.store, conv.ID, f.superadmin.ID); got != 1 {
		t.Errorf("unread after repeat = %d, want 1", got)
	}
}

func TestGetMessages_AdvancesDeliveryForRecipient(t *testing.T) {
	f := newFixture(t)
	conv := f.directConversation(t)
	ctx := context.Background()

	sent, _ := f.svc.SendTextMessage(ctx, conv.ID, f.admin.ID, models.SendTextMessageRequest{Content: "hi"})

	page, err := f.svc.GetMessages(ctx, conv.ID, f.superadmin.ID, 1, 50)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(page.Messages) == 0 {
		t.Fatal("no messages returned")
	}

	got, _ := f.store.GetMessageByID(ctx, sent.ID)
	if got.Status != models.StatusDelivered {
		t.Errorf("status after recipient fetch = %s, want delivered", got.Status)
	}
}

func TestGetMessages_ExcludesSoftDeleted(t *testing.T) {
	f := newFixture(t)
	conv := f.directConversation(t)
	ctx := context.Background()

	msg, _ := f.svc.SendTextMessage(ctx, conv.ID, f.admin.ID, models.SendTextMessageRequest{Content: "oops"})
	if err := f.svc.DeleteMessage(ctx, msg.ID, f.admin.ID, f.admin.Role); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}

	page, err := f.svc.GetMessages(ctx, conv.ID, f.admin.ID, 1, 50)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	for _, m := range page.Messages {
		if m.ID == msg.ID {
			t.Fatal("soft-deleted message still listed")
		}
	}
}

func TestEditMessage_Rules(t *testing.T) {
	current := time.Now()
	f := newFixture(t, messaging.WithClock(func() time.Time { return current }))
	conv := f.directConversation(t)
	ctx := context.Background()

	msg, _ := f.svc.SendTextMessage(ctx, conv.ID, f.admin.ID, models.SendTextMessageRequest{Content: "typo"})

	// Non-sender may not edit.
	if _, err := f.svc.EditMessage(ctx, msg.ID, f.superadmin.ID, "fixed"); !errors.Is(err, messaging.ErrForbidden) {
		t.Errorf("non-sender edit: expected ErrForbidden, got %v", err)
	}

	// Sender edits inside the window.
	edited, err := f.svc.EditMessage(ctx, msg.ID, f.admin.ID, "fixed")
	if err != nil {
		t.Fatalf("EditMessage: %v", err)
	}
	if edited.Content != "fixed" || edited.EditedAt == nil {
		t.Errorf("edit not applied: %+v", edited)
	}

	// Snapshot follows when the edited message is the latest.
	got, _ := f.store.GetByID(ctx, conv.ID)
	if got.LastMessage == nil || got.LastMessage.Preview != "fixed" {
		t.Errorf("snapshot not refreshed: %+v", got.LastMessage)
	}

	// Past the window the edit is refused.
	current = current.Add(messaging.EditWindow + time.Minute)
	if _, err := f.svc.EditMessage(ctx, msg.ID, f.admin.ID, "too late"); !errors.Is(err, messaging.ErrEditWindowExpired) {
		t.Errorf("late edit: expected ErrEditWindowExpired, got %v", err)
	}
}

func TestEditMessage_NonTextRefused(t *testing.T) {
	f := newFixture(t)
	conv := f.directConversation(t)
	ctx := context.Background()

	msg, err := f.svc.SendMediaMessage(ctx, conv.ID, f.admin.ID, []messaging.Upload{
		{Bytes: []byte("img"), MimeType: "image/png", FileName: "a.png"},
	}, "")
	if err != nil {
		t.Fatalf("SendMediaMessage: %v", err)
	}

	if _, err := f.svc.EditMessage(ctx, msg.ID, f.admin.ID, "caption"); !errors.Is(err, messaging.ErrUnsupportedOperation) {
		t.Fatalf("expected ErrUnsupportedOperation, got %v", err)
	}
}

func TestDeleteMessage_Permissions(t *testing.T) {
	f := newFixture(t)
	conv := f.directConversation(t)
	ctx := context.Background()

	msg, _ := f.svc.SendTextMessage(ctx, conv.ID, f.admin.ID, models.SendTextMessageRequest{Content: "secret"})

	// Another admin may not delete someone else's message.
	if err := f.svc.DeleteMessage(ctx, msg.ID, f.other.ID, f.other.Role); !errors.Is(err, messaging.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}

	// A superadmin may.
	if err := f.svc.DeleteMessage(ctx, msg.ID, f.superadmin.ID, f.superadmin.Role); err != nil {
		t.Fatalf("superadmin delete: %v", err)
	}

	// Deleting again is a no-op.
	if err := f.svc.DeleteMessage(ctx, msg.ID, f.superadmin.ID, f.superadmin.Role); err != nil {
		t.Fatalf("repeat delete: %v", err)
	}
}

func TestSendTextMessage_MovesConversationToHead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	older, err := f.svc.CreateOrGetDirectConversation(ctx, f.superadmin, f.admin.ID, "")
	if err != nil {
		t.Fatalf("create first conversation: %v", err)
	}
	if _, err := f.svc.CreateOrGetDirectConversation(ctx, f.superadmin, f.other.ID, ""); err != nil {
		t.Fatalf("create second conversation: %v", err)
	}

	if _, err := f.svc.SendTextMessage(ctx, older.ID, f.admin.ID, models.SendTextMessageRequest{Content: "bump"}); err != nil {
		t.Fatalf("SendTextMessage: %v", err)
	}

	list, err := f.svc.ListConversations(ctx, f.superadmin.ID, models.ListConversationsQuery{})
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(list.Conversations) != 2 {
		t.Fatalf("got %d conversations, want 2", len(list.Conversations))
	}
	if list.Conversations[0].ID != older.ID {
		t.Errorf("conversation with the newest message is not first: got %s", list.Conversations[0].ID)
	}
}

func TestListConversations_TotalUnreadExcludesArchived(t *testing.T) {
	f := newFixture(t)
	conv := f.directConversation(t)
	ctx := context.Background()

	f.svc.SendTextMessage(ctx, conv.ID, f.admin.ID, models.SendTextMessageRequest{Content: "hello"})

	list, err := f.svc.ListConversations(ctx, f.superadmin.ID, models.ListConversationsQuery{})
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if list.TotalUnread != 1 {
		t.Errorf("TotalUnread = %d, want 1", list.TotalUnread)
	}
	if list.Count != 1 || len(list.Conversations) != 1 {
		t.Errorf("Count = %d, conversations = %d", list.Count, len(list.Conversations))
	}
}

func TestListAvailableRecipients_RoleGating(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Admins only see superadmins.
	users, err := f.svc.ListAvailableRecipients(ctx, f.admin.ID, f.admin.Role)
	if err != nil {
		t.Fatalf("admin directory: %v", err)
	}
	if len(users) != 1 || users[0].ID != f.superadmin.ID {
		t.Errorf("admin directory = %+v", users)
	}

	// Superadmins see both admin roles, minus themselves.
	users, err = f.svc.ListAvailableRecipients(ctx, f.superadmin.ID, f.superadmin.Role)
	if err != nil {
		t.Fatalf("superadmin directory: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("superadmin directory size = %d, want 2", len(users))
	}
	for _, u := range users {
		if u.ID == f.superadmin.ID {
			t.Error("directory includes the caller")
		}
	}

	// Regular users are refused.
	if _, err := f.svc.ListAvailableRecipients(ctx, uuid.New(), models.RoleUser); !errors.Is(err, messaging.ErrForbidden) {
		t.Errorf("expected ErrForbidden for regular users, got %v", err)
	}
}
