package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/marketlane/backend/internal/attachments"
	"github.com/marketlane/backend/internal/messaging"
	"github.com/marketlane/backend/internal/models"
)

type MessageHandler struct {
	service *messaging.Service
}

func NewMessageHandler(service *messaging.Service) *MessageHandler {
	return &MessageHandler{service: service}
}

// GetMessages returns one page of a conversation, oldest first.
func (h *MessageHandler) GetMessages(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	var q models.GetMessagesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.service.GetMessages(c.Request.Context(), conversationID, uid, q.Page, q.Limit)
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// SendTextMessage posts a text message to a conversation.
func (h *MessageHandler) SendTextMessage(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	var req models.SendTextMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := h.service.SendTextMessage(c.Request.Context(), conversationID, uid, req)
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// SendMediaMessage posts a media message built from the multipart "files"
// field, with an optional "content" caption. Oversized files are refused
// before their bytes are buffered.
func (h *MessageHandler) SendMediaMessage(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		ErrorResponse(c, http.StatusBadRequest, "No files provided")
		return
	}

	uploads := make([]messaging.Upload, 0, len(files))
	for _, fh := range files {
		if fh.Size > attachments.MaxAttachmentSize {
			ErrorResponse(c, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("File %s exceeds the 50MB limit", fh.Filename))
			return
		}

		f, err := fh.Open()
		if err != nil {
			ErrorResponse(c, http.StatusBadRequest, "Failed to read uploaded file")
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			ErrorResponse(c, http.StatusBadRequest, "Failed to read uploaded file")
			return
		}

		uploads = append(uploads, messaging.Upload{
			Bytes:    data,
			MimeType: fh.Header.Get("Content-Type"),
			FileName: fh.Filename,
		})
	}

	caption := c.PostForm("content")

	msg, err := h.service.SendMediaMessage(c.Request.Context(), conversationID, uid, uploads, caption)
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// MarkAsRead marks the listed messages read, or the whole conversation when
// no ids are given. Safe to repeat.
func (h *MessageHandler) MarkAsRead(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	var req models.MarkReadRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			ErrorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
	}

	if err := h.service.MarkAsRead(c.Request.Context(), conversationID, uid, req.MessageIDs); err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// EditMessage rewrites a text message the caller sent.
func (h *MessageHandler) EditMessage(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	messageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid message ID")
		return
	}

	var req models.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := h.service.EditMessage(c.Request.Context(), messageID, uid, req.Content)
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, msg)
}

// DeleteMessage soft-deletes a message. Senders may delete their own;
// superadmins may delete any.
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	messageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid message ID")
		return
	}

	if err := h.service.DeleteMessage(c.Request.Context(), messageID, uid, currentUserRole(c)); err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
