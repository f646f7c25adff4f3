// Package client is the Go client for the messaging API: an HTTP wrapper
// with error classification, the adaptive notification poller and the
// local conversation store that dashboard frontends render from.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marketlane/backend/internal/models"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// ErrorClass buckets a request failure for the poller's backoff policy.
type ErrorClass int

const (
	ClassNone ErrorClass = iota
	// ClassAuth covers expired or rejected credentials.
	ClassAuth
	// ClassPayload covers oversized request payloads. It shares the
	// poller's strike counter with ClassAuth: both mean retrying the same
	// request cannot help.
	ClassPayload
	// ClassNetwork covers transport failures where no response arrived.
	ClassNetwork
	// ClassUnknown is every other failure.
	ClassUnknown
)

// Classify buckets an error returned by an API call.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassNone
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusUnauthorized, http.StatusForbidden:
			return ClassAuth
		case http.StatusRequestEntityTooLarge:
			return ClassPayload
		default:
			return ClassUnknown
		}
	}
	// Anything that never produced a response is a transport problem.
	return ClassNetwork
}

// API talks to the messaging backend.
type API struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewAPI(baseURL string) *API {
	return &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// SetToken installs the bearer credential used on subsequent calls.
func (a *API) SetToken(token string) {
	a.token = token
}

// Login exchanges credentials for a token and installs it.
func (a *API) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	err := a.do(ctx, http.MethodPost, "/auth/login", models.LoginRequest{
		Email:    email,
		Password: password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	a.token = resp.Token
	return &resp, nil
}

// ListConversations fetches the caller's conversations with the unread total.
func (a *API) ListConversations(ctx context.Context) (*models.ConversationList, error) {
	var list models.ConversationList
	if err := a.do(ctx, http.MethodGet, "/api/v1/conversations", nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// CreateDirectConversation finds or creates the 1:1 conversation.
func (a *API) CreateDirectConversation(ctx context.Context, recipientID uuid.UUID, title string) (*models.Conversation, error) {
	var conv models.Conversation
	err := a.do(ctx, http.MethodPost, "/api/v1/conversations/direct", models.CreateDirectConversationRequest{
		RecipientID: recipientID,
		Title:       title,
	}, &conv)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// GetMessages fetches one page of a conversation, oldest first.
func (a *API) GetMessages(ctx context.Context, conversationID uuid.UUID, page, limit int) (*models.MessagePage, error) {
	path := fmt.Sprintf("/api/v1/conversations/%s/messages?page=%d&limit=%d",
		conversationID, page, limit)
	var mp models.MessagePage
	if err := a.do(ctx, http.MethodGet, path, nil, &mp); err != nil {
		return nil, err
	}
	return &mp, nil
}

// SendText posts a text message.
func (a *API) SendText(ctx context.Context, conversationID uuid.UUID, req models.SendTextMessageRequest) (*models.Message, error) {
	path := fmt.Sprintf("/api/v1/conversations/%s/messages/text", conversationID)
	var msg models.Message
	if err := a.do(ctx, http.MethodPost, path, req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SendMedia posts files as one media message.
func (a *API) SendMedia(ctx context.Context, conversationID uuid.UUID, files []MediaFile, caption string) (*models.Message, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	for _, f := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="files"; filename=%s`, strconv.Quote(f.Name)))
		header.Set("Content-Type", f.MimeType)
		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(f.Bytes); err != nil {
			return nil, err
		}
	}
	if caption != "" {
		if err := writer.WriteField("content", caption); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/api/v1/conversations/%s/messages/media", conversationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var msg models.Message
	if err := a.send(req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarkRead marks messages (or the whole conversation, with no ids) read.
func (a *API) MarkRead(ctx context.Context, conversationID uuid.UUID, messageIDs []uuid.UUID) error {
	path := fmt.Sprintf("/api/v1/conversations/%s/read", conversationID)
	return a.do(ctx, http.MethodPost, path, models.MarkReadRequest{MessageIDs: messageIDs}, nil)
}

// MediaFile is one picked file headed for SendMedia.
type MediaFile struct {
	Name     string
	MimeType string
	Bytes    []byte
}

func (a *API) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return a.send(req, out)
}

func (a *API) send(req *http.Request, out interface{}) error {
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return &APIError{Status: resp.StatusCode, Message: errBody.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
