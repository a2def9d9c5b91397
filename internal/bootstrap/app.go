package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"pleader/internal/ai"
	"pleader/internal/config"
	"pleader/internal/logging"
	"pleader/internal/model"
	mysqlClient "pleader/internal/platform/mysql"
	rabbitmqClient "pleader/internal/platform/rabbitmq"
	redisClient "pleader/internal/platform/redis"
	"pleader/internal/rag"
	"pleader/internal/repository"
	"pleader/internal/worker"
)

// App holds every long-lived resource. It is built once at startup and
// handed to the HTTP layer.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	MySQL         *gorm.DB
	Redis         *redis.Client
	MQConn        *amqp.Connection
	Gemini        *ai.GeminiClient
	Pipeline      *rag.Pipeline
	MessageWorker *worker.MessagePersistWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	logger := logging.New(cfg.App.Env)

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(&model.Document{}, &model.Session{}, &model.Message{}); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	gemini := ai.NewGeminiClient(ai.GeminiConfig{
		BaseURL:        cfg.Gemini.BaseURL,
		APIKey:         cfg.Gemini.APIKey,
		EmbeddingModel: cfg.Gemini.EmbeddingModel,
		Timeout:        cfg.GeminiTimeout(),
	})

	pipeline, err := rag.NewPipeline(rag.Config{
		IndexDir:      cfg.RAG.IndexDir,
		Dimension:     cfg.RAG.Dimension,
		ChunkSize:     cfg.RAG.ChunkSize,
		ChunkOverlap:  cfg.RAG.ChunkOverlap,
		MinChunkChars: cfg.RAG.MinChunkChars,
		TopK:          cfg.RAG.TopK,
		RerankModel:   cfg.Gemini.RerankModel,
		AnswerModel:   cfg.Gemini.AnswerModel,
	}, gemini, gemini, logger)
	if err != nil {
		return nil, fmt.Errorf("build rag pipeline failed: %w", err)
	}

	messageRepo := repository.NewMessageRepository(mysqlDB)
	messageWorker := worker.NewMessagePersistWorker(mqConn, messageRepo, cfg.RabbitMQ.MessagePersistQueue, logger)
	if err := messageWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start message worker failed: %w", err)
	}

	return &App{
		Config:        cfg,
		Logger:        logger,
		MySQL:         mysqlDB,
		Redis:         redisCli,
		MQConn:        mqConn,
		Gemini:        gemini,
		Pipeline:      pipeline,
		MessageWorker: messageWorker,
		StartedAt:     time.Now(),
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MessageWorker != nil {
		a.MessageWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
