package websocket

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/marketlane/backend/internal/auth"
	"github.com/marketlane/backend/internal/cache"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler handles WebSocket connections
type Handler struct {
	hub            *Hub
	jwtService     *auth.JWTService
	redis          *cache.RedisClient
	allowedOrigins []string
	log            *slog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(
	hub *Hub,
	jwtService *auth.JWTService,
	redis *cache.RedisClient,
	allowedOrigins []string,
	log *slog.Logger,
) *Handler {
	return &Handler{
		hub:            hub,
		jwtService:     jwtService,
		redis:          redis,
		allowedOrigins: allowedOrigins,
		log:            log,
	}
}

// HandleWebSocket handles WebSocket upgrade requests. Browsers cannot set an
// Authorization header on the upgrade, so the token rides a query parameter.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token required"})
		return
	}

	claims, err := h.jwtService.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	// Validate origin using configured allowed origins if provided
	if len(h.allowedOrigins) > 0 {
		upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return false
			}
			for _, pattern := range h.allowedOrigins {
				if matchOrigin(pattern, origin) {
					return true
				}
			}
			return false
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(h.hub, conn, claims.UserID, claims.Email, h.redis, h.log)

	h.hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}

// GetOnlineUsers returns the users with a live connection on this instance.
func (h *Handler) GetOnlineUsers(c *gin.Context) {
	if _, exists := c.Get("user_id"); !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	onlineUsers := h.hub.GetOnlineUsers()
	c.JSON(http.StatusOK, gin.H{
		"online_users": onlineUsers,
		"count":        len(onlineUsers),
	})
}

// matchOrigin supports exact matches or wildcard patterns like *.example.com
func matchOrigin(pattern, origin string) bool {
	if pattern == origin {
		return true
	}
	// simple wildcard support: pattern starts with *.
	if strings.HasPrefix(pattern, "*.") {
		originHost := origin
		if u, err := url.Parse(origin); err == nil {
			originHost = u.Hostname()
		}
		patHost := strings.TrimPrefix(pattern, "*.")
		if strings.HasSuffix(originHost, patHost) {
			return true
		}
	}
	return false
}
