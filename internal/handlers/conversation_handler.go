package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/marketlane/backend/internal/messaging"
	"github.com/marketlane/backend/internal/models"
)

type ConversationHandler struct {
	service *messaging.Service
	users   messaging.UserStore
}

func NewConversationHandler(service *messaging.Service, users messaging.UserStore) *ConversationHandler {
	return &ConversationHandler{service: service, users: users}
}

// GetConversations lists the caller's conversations with the unread total.
func (h *ConversationHandler) GetConversations(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var q models.ListConversationsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.service.ListConversations(c.Request.Context(), uid, q)
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

// CreateDirectConversation finds or creates the 1:1 conversation with the
// requested recipient. Repeating the call returns the same conversation.
func (h *ConversationHandler) CreateDirectConversation(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req models.CreateDirectConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	currentUser, err := h.users.GetByID(c.Request.Context(), uid)
	if err != nil {
		serviceError(c, err)
		return
	}

	conv, err := h.service.CreateOrGetDirectConversation(c.Request.Context(), *currentUser, req.RecipientID, req.Title)
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, conv)
}

// GetConversation returns a single conversation the caller participates in.
// Opening it marks the conversation read for the caller.
func (h *ConversationHandler) GetConversation(c *gin.Context) {
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

	conv, err := h.service.GetConversation(c.Request.Context(), conversationID, uid)
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, conv)
}
