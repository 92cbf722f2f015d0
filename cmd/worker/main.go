package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"recap/internal/config"
	"recap/internal/embed"
	"recap/internal/ingest"
	"recap/internal/pipeline"
	"recap/internal/storage"
	"recap/internal/summarize"
	"recap/internal/transcribe"
	"recap/pkg/cache"
	"recap/pkg/logger"
	"recap/pkg/model"
	"recap/pkg/resilience"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	// Initialize logger
	debug := os.Getenv("DEBUG") == "true"
	if err := logger.Init(debug); err != nil {
		panic("Failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	logger.Info("Starting recap worker service")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
		return
	}

	// Connect to database
	if cfg.Postgres.DSN == "" {
		logger.Fatal("POSTGRES_DSN environment variable is required")
		return
	}

	db, err := storage.NewPostgresStorage(cfg.Postgres.DSN)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
		return
	}
	defer db.Close()

	// Initialize audio fetcher; S3 is optional, local paths always work
	var audio pipeline.AudioFetcher = storage.LocalAudio{}
	if cfg.S3.Endpoint != "" {
		objectStorage, err := storage.NewObjectStorage(
			cfg.S3.Endpoint,
			cfg.S3.Region,
			cfg.S3.AccessKey,
			cfg.S3.SecretKey,
		)
		if err != nil {
			logger.Fatal("Failed to initialize object storage", zap.Error(err))
			return
		}
		audio = objectStorage
	}

	// Initialize Redis cache, optional
	var redisCache cache.Cache
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisCache(
			cfg.Redis.Addr,
			cfg.Redis.Password,
			cfg.Redis.DB,
			24*time.Hour,
		)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
			return
		}
		defer rc.Close()
		redisCache = rc

		logger.Info("Redis cache connection established")
	}

	// Provider clients share one rate limiter against the LLM endpoint
	limiter := resilience.NewRateLimiter(cfg.LLM.RatePerSecond, time.Second)

	transcriber := transcribe.NewClient(cfg.Transcriber.BaseURL, cfg.Transcriber.Model)
	summarizer := summarize.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.ChatModel, limiter)
	embedder := embed.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.EmbeddingModel, limiter)

	logger.Info("Provider clients initialized")

	// Retry policy from config
	schedule, err := cfg.RetrySchedule()
	if err != nil {
		logger.Fatal("Invalid retry schedule", zap.Error(err))
		return
	}
	policy := pipeline.Policy{
		Schedule:    schedule,
		MaxAttempts: cfg.Pipeline.MaxAttempts,
	}

	proc := pipeline.NewPipeline(db, transcriber, summarizer, embedder, audio, redisCache)
	queue := pipeline.NewQueue(proc, db, policy)

	// Connect to RabbitMQ, optional submission edge
	var rabbitMQ *ingest.RabbitMQ
	if cfg.RabbitMQ.URL != "" {
		rabbitMQ, err = ingest.NewRabbitMQ(cfg.RabbitMQ.URL)
		if err != nil {
			logger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
			return
		}
		defer rabbitMQ.Close()

		queue.OnTerminal(func(recordingID string, status model.RecordingStatus) {
			event := &ingest.CompletionEvent{
				RecordingID: recordingID,
				Status:      string(status),
				OccurredAt:  time.Now(),
			}
			if err := rabbitMQ.PublishCompletion(event); err != nil {
				logger.Error("Failed to publish completion event",
					zap.String("recording_id", recordingID),
					zap.Error(err))
			}
		})
	}

	// Graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := queue.Start(ctx); err != nil {
		logger.Fatal("Failed to start queue", zap.Error(err))
		return
	}

	// Re-enqueue recordings that were in flight when the process last
	// stopped; stage resumption skips completed work.
	if _, err := queue.RecoverPending(ctx); err != nil {
		logger.Error("Startup recovery failed", zap.Error(err))
	}

	if rabbitMQ != nil {
		go func() {
			if err := rabbitMQ.ConsumeEnqueueRequests(queue); err != nil {
				logger.Error("Failed to consume enqueue requests", zap.Error(err))
				cancel()
			}
		}()
	}

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	queue.Stop()

	logger.Info("Worker service shutdown complete")
}
