package http

import (
	"time"

	"github.com/gin-gonic/gin"

	appsvc "pleader/internal/app"
	"pleader/internal/bootstrap"
	"pleader/internal/cache"
	"pleader/internal/platform/rabbitmq"
	"pleader/internal/repository"
	"pleader/internal/transport/http/handler"
	"pleader/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	docRepo := repository.NewDocumentRepository(app.MySQL)
	sessionRepo := repository.NewSessionRepository(app.MySQL)
	messageRepo := repository.NewMessageRepository(app.MySQL)

	publisher := rabbitmq.NewMessagePublisher(app.MQConn, app.Config.RabbitMQ.MessagePersistQueue)
	historyCache := cache.NewHistoryCache(
		app.Redis,
		time.Duration(app.Config.Redis.HistoryTTLSeconds)*time.Second,
		time.Duration(app.Config.Redis.HistoryDirtyTTLSeconds)*time.Second,
	)

	documentService := appsvc.NewDocumentService(
		docRepo,
		app.Pipeline,
		app.Gemini,
		app.Config.Gemini.AnswerModel,
		app.Logger,
	)
	chatService := appsvc.NewChatService(
		sessionRepo,
		messageRepo,
		publisher,
		historyCache,
		app.Pipeline,
		app.Gemini,
		app.Config.Gemini.AnswerModel,
		20,
		app.Logger,
	)

	documentHandler := handler.NewDocumentHandler(documentService)
	ragHandler := handler.NewRAGHandler(app.Pipeline, documentService)
	chatHandler := handler.NewChatHandler(chatService)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Identity())

	documentGroup := v1.Group("/documents")
	documentGroup.POST("", documentHandler.Upload)
	documentGroup.GET("", documentHandler.List)
	documentGroup.GET("/:id", documentHandler.Get)
	documentGroup.DELETE("/:id", documentHandler.Delete)

	ragGroup := v1.Group("/rag")
	ragGroup.POST("/query", ragHandler.Query)
	ragGroup.GET("/stats", ragHandler.Stats)
	ragGroup.POST("/reset", ragHandler.Reset)

	chatGroup := v1.Group("/chat")
	chatGroup.POST("/sessions", chatHandler.CreateSession)
	chatGroup.GET("/sessions", chatHandler.ListSessions)
	chatGroup.DELETE("/sessions/:id", chatHandler.DeleteSession)
	chatGroup.POST("/messages", chatHandler.SendMessage)
	chatGroup.GET("/history", chatHandler.GetHistory)

	return router
}
