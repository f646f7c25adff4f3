package main

import (
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marketlane/backend/config"
	"github.com/marketlane/backend/internal/attachments"
	"github.com/marketlane/backend/internal/auth"
	"github.com/marketlane/backend/internal/blob"
	"github.com/marketlane/backend/internal/cache"
	"github.com/marketlane/backend/internal/database"
	"github.com/marketlane/backend/internal/email"
	"github.com/marketlane/backend/internal/handlers"
	"github.com/marketlane/backend/internal/messaging"
	"github.com/marketlane/backend/internal/middleware"
	"github.com/marketlane/backend/internal/observability"
	"github.com/marketlane/backend/internal/repository"
	"github.com/marketlane/backend/internal/websocket"
)

func main() {
	log := observability.Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := database.NewPostgresDB(cfg.GetDSN())
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	log.Info("running database migrations")
	if err := database.RunMigrations(db.DB); err != nil {
		log.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	redis, err := cache.NewRedisClient(cfg.GetRedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Warn("running without Redis, push signals and presence disabled", "error", err)
		redis = nil
	} else {
		defer redis.Close()
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpiryHours)

	userRepo := repository.NewUserRepository(db)
	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)

	// Attachment pipeline: local blob store plus optional ffmpeg re-encoding
	// for voice recordings captured in the last-resort format.
	blobStore := blob.NewDiskStore(cfg.Uploads.Dir, cfg.Uploads.PublicBaseURL)
	pipelineOpts := []attachments.PipelineOption{}
	if cfg.Uploads.FFmpegPath != "" {
		pipelineOpts = append(pipelineOpts, attachments.WithTranscoder(
			attachments.NewFFmpegTranscoder(cfg.Uploads.FFmpegPath,
				time.Duration(cfg.Uploads.TranscodeTimeoutSec)*time.Second),
		))
	}
	pipeline := attachments.NewPipeline(blobStore, observability.WithComponent("attachments"), pipelineOpts...)

	serviceOpts := []messaging.Option{}
	if cfg.SMTP.Host != "" {
		notifier := email.NewNotifier(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
		serviceOpts = append(serviceOpts, messaging.WithNotifier(notifier))
	}
	if redis != nil {
		serviceOpts = append(serviceOpts, messaging.WithPublisher(redis))
	}
	service := messaging.NewService(convRepo, msgRepo, userRepo, pipeline,
		observability.WithComponent("messaging"), serviceOpts...)

	authHandler := handlers.NewAuthHandler(userRepo, jwtService)
	convHandler := handlers.NewConversationHandler(service, userRepo)
	msgHandler := handlers.NewMessageHandler(service)
	userHandler := handlers.NewUserHandler(service)

	// WebSocket hub (only if Redis is available)
	var wsHandler *websocket.Handler
	if redis != nil {
		hub := websocket.NewHub(redis, convRepo, observability.WithComponent("websocket"))
		go hub.Run()
		wsHandler = websocket.NewHandler(hub, jwtService, redis, cfg.CORS.AllowedOrigins,
			observability.WithComponent("websocket"))
	}

	rateLimiter := middleware.NewRateLimiter(cfg.API.RateLimitMessagesPerSec)
	rateLimiter.Cleanup()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	router.Use(middleware.CORSMiddleware(cfg.CORS.AllowedOrigins))
	router.Use(middleware.MetricsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public routes
	authRoutes := router.Group("/auth")
	{
		authRoutes.POST("/login", authHandler.Login)
	}

	// WebSocket endpoint (only if Redis is available)
	if wsHandler != nil {
		router.GET("/ws", wsHandler.HandleWebSocket)
	}

	// Protected routes
	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(jwtService))
	{
		api.GET("/me", authHandler.GetMe)
		api.GET("/users/available", userHandler.GetAvailableRecipients)

		api.GET("/conversations", convHandler.GetConversations)
		api.POST("/conversations/direct", convHandler.CreateDirectConversation)
		api.GET("/conversations/:id", convHandler.GetConversation)

		api.GET("/conversations/:id/messages", msgHandler.GetMessages)
		api.POST("/conversations/:id/messages/text",
			middleware.RateLimitMiddleware(rateLimiter), msgHandler.SendTextMessage)
		api.POST("/conversations/:id/messages/media",
			middleware.RateLimitMiddleware(rateLimiter), msgHandler.SendMediaMessage)
		api.POST("/conversations/:id/read", msgHandler.MarkAsRead)

		api.PUT("/messages/:id", msgHandler.EditMessage)
		api.DELETE("/messages/:id", msgHandler.DeleteMessage)

		if wsHandler != nil {
			api.GET("/online-users", wsHandler.GetOnlineUsers)
		}
	}

	addr := ":" + cfg.Server.Port
	log.Info("starting server", "addr", addr, "env", cfg.Server.Env)
	if err := router.Run(addr); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}
