package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/marketlane/backend/internal/attachments"
	"github.com/marketlane/backend/internal/messaging"
)

// ErrorResponse sends a standardized error response
func ErrorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// serviceError translates a messaging or attachment error into its HTTP
// status. Internal detail stays out of the response body on 5xx.
func serviceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, messaging.ErrInvalidInput),
		errors.Is(err, messaging.ErrNoFiles),
		errors.Is(err, messaging.ErrUnsupportedOperation):
		ErrorResponse(c, http.StatusBadRequest, err.Error())

	case errors.Is(err, messaging.ErrAccessDenied),
		errors.Is(err, messaging.ErrForbidden):
		ErrorResponse(c, http.StatusForbidden, "Access denied")

	case errors.Is(err, messaging.ErrNotFound):
		ErrorResponse(c, http.StatusNotFound, "Not found")

	case errors.Is(err, messaging.ErrEditWindowExpired):
		ErrorResponse(c, http.StatusConflict, "Edit window has expired")

	case errors.Is(err, attachments.ErrPayloadTooLarge):
		ErrorResponse(c, http.StatusRequestEntityTooLarge, "File exceeds the 50MB limit")

	case errors.Is(err, attachments.ErrUnsupportedType):
		ErrorResponse(c, http.StatusUnsupportedMediaType, "File type is not supported")

	case errors.Is(err, attachments.ErrUploadTransport):
		ErrorResponse(c, http.StatusBadGateway, "Upload storage is unavailable")

	default:
		ErrorResponse(c, http.StatusInternalServerError, "Internal server error")
	}
}

// currentUserID reads the authenticated user id set by the auth middleware.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// currentUserRole reads the authenticated role set by the auth middleware.
func currentUserRole(c *gin.Context) string {
	if v, exists := c.Get("user_role"); exists {
		if role, ok := v.(string); ok {
			return role
		}
	}
	return ""
}
