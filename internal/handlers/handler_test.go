package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/marketlane/backend/internal/handlers"
	"github.com/marketlane/backend/internal/messaging"
	"github.com/marketlane/backend/internal/models"
	"github.com/marketlane/backend/internal/observability"
	"github.com/marketlane/backend/internal/storage/memory"
)

type stubProcessor struct{}

func (stubProcessor) ProcessAttachment(ctx context.Context, up messaging.Upload) (models.Attachment, error) {
	return models.Attachment{
		FileName: up.FileName,
		FileURL:  "https://cdn.test/files/" + up.FileName,
		FileSize: int64(len(up.Bytes)),
		MimeType: up.MimeType,
	}, nil
}

type handlerFixture struct {
	router     *gin.Engine
	store      *memory.Store
	svc        *messaging.Service
	admin      models.User
	superadmin models.User
}

// newHandlerFixture wires the real handlers over the in-memory store with a
// stub auth layer that trusts the X-User-ID / X-User-Role request headers.
func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	admin := models.User{ID: uuid.New(), Email: "alice@example.com", DisplayName: "Alice", Role: models.RoleAdmin}
	superadmin := models.User{ID: uuid.New(), Email: "bob@example.com", DisplayName: "Bob", Role: models.RoleSuperAdmin}
	store.AddUser(admin)
	store.AddUser(superadmin)

	svc := messaging.NewService(store, store.Messages(), store.Users(), stubProcessor{},
		observability.WithComponent("test"))

	convHandler := handlers.NewConversationHandler(svc, store.Users())
	msgHandler := handlers.NewMessageHandler(svc)

	router := gin.New()
	api := router.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		if id, err := uuid.Parse(c.GetHeader("X-User-ID")); err == nil {
			c.Set("user_id", id)
			c.Set("user_role", c.GetHeader("X-User-Role"))
		}
		c.Next()
	})
	api.GET("/conversations/:id", convHandler.GetConversation)
	api.POST("/conversations/:id/read", msgHandler.MarkAsRead)
	api.POST("/conversations/:id/messages/media", msgHandler.SendMediaMessage)

	return &handlerFixture{
		router:     router,
		store:      store,
		svc:        svc,
		admin:      admin,
		superadmin: superadmin,
	}
}

func (f *handlerFixture) do(t *testing.T, req *http.Request, as models.User) *httptest.ResponseRecorder {
	t.Helper()
	req.Header.Set("X-User-ID", as.ID.String())
	req.Header.Set("X-User-Role", as.Role)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

// seedUnread creates the direct conversation and leaves one message from the
// superadmin unread for the admin.
func (f *handlerFixture) seedUnread(t *testing.T) *models.Conversation {
	t.Helper()
	ctx := context.Background()

	conv, err := f.svc.CreateOrGetDirectConversation(ctx, f.superadmin, f.admin.ID, "")
	if err != nil {
		t.Fatalf("CreateOrGetDirectConversation: %v", err)
	}
	if _, err := f.svc.SendTextMessage(ctx, conv.ID, f.superadmin.ID,
		models.SendTextMessageRequest{Content: "hello"}); err != nil {
		t.Fatalf("SendTextMessage: %v", err)
	}
	return conv
}

func (f *handlerFixture) unreadOf(t *testing.T, convID, userID uuid.UUID) int {
	t.Helper()
	conv, err := f.store.GetByID(context.Background(), convID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	return conv.UnreadFor(userID)
}

func TestGetConversation_MarksConversationRead(t *testing.T) {
	f := newHandlerFixture(t)
	conv := f.seedUnread(t)

	if got := f.unreadOf(t, conv.ID, f.admin.ID); got != 1 {
		t.Fatalf("seed unread = %d, want 1", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/"+conv.ID.String(), nil)
	rec := f.do(t, req, f.admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	if got := f.unreadOf(t, conv.ID, f.admin.ID); got != 0 {
		t.Errorf("unread after opening the conversation = %d, want 0", got)
	}

	var body models.Conversation
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got := body.UnreadFor(f.admin.ID); got != 0 {
		t.Errorf("returned conversation unread = %d, want 0", got)
	}
}

func TestMarkAsRead_PostRoute(t *testing.T) {
	f := newHandlerFixture(t)
	conv := f.seedUnread(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/"+conv.ID.String()+"/read", nil)
	rec := f.do(t, req, f.admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	if got := f.unreadOf(t, conv.ID, f.admin.ID); got != 0 {
		t.Errorf("unread after mark-read = %d, want 0", got)
	}
}

func TestSendMediaMessage_CaptionFromContentField(t *testing.T) {
	f := newHandlerFixture(t)
	conv := f.seedUnread(t)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("files", "photo.png")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	part.Write([]byte("png-bytes"))
	writer.WriteField("content", "look at this")
	writer.Close()

	req := httptest.NewRequest(http.MethodPost,
		"/api/v1/conversations/"+conv.ID.String()+"/messages/media", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	rec := f.do(t, req, f.admin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var msg models.Message
	if err := json.Unmarshal(rec.Body.Bytes(), &msg); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if msg.Content != "look at this" {
		t.Errorf("caption = %q, want %q", msg.Content, "look at this")
	}
}
