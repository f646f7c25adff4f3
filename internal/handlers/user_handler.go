package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/marketlane/backend/internal/messaging"
)

// UserHandler serves the recipient directory.
type UserHandler struct {
	service *messaging.Service
}

func NewUserHandler(service *messaging.Service) *UserHandler {
	return &UserHandler{service: service}
}

// GetAvailableRecipients lists the admins the caller may start a
// conversation with, according to their role.
func (h *UserHandler) GetAvailableRecipients(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	users, err := h.service.ListAvailableRecipients(c.Request.Context(), uid, currentUserRole(c))
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users": users,
		"count": len(users),
	})
}
