package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"moderation/internal/audit"
	"moderation/internal/config"
	"moderation/internal/llm"
	"moderation/internal/pipeline"
	"moderation/internal/repository"
	"moderation/internal/retriever"
	"moderation/internal/server"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err) // Should not happen in development
	}
	defer func() {
		_ = logger.Sync() // Flushes buffer, if any
	}()

	// Load configuration
	cfgPath := "configs/config.yml"
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Database connection
	db, err := repository.NewPostgresDB(cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	repository.MigrateDB(db, logger)

	// Initialize repositories
	assessmentRepo := repository.NewAssessmentRepository(db, logger)
	settingsRepo := repository.NewSettingsRepository(db, logger)
	trainingRepo := repository.NewTrainingRepository(db, logger)

	// External service clients
	retrieverClient := retriever.NewClient(cfg.Retrieval.URL, logger)
	llmClient := llm.NewClient(cfg.Classifier.URL, cfg.Classifier.APIKey, logger)

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Fire-and-forget audit trail worker
	auditQueue := audit.NewQueue(cfg.Audit.QueueSize, logger)
	go auditQueue.Run(ctx)

	// Evaluation pipeline and training exporter
	pipe := pipeline.NewPipeline(retrieverClient, llmClient, assessmentRepo, auditQueue, logger,
		cfg.Retrieval.TopK, cfg.Retrieval.MinScore)
	exporter := pipeline.NewExporter(assessmentRepo, trainingRepo, logger)

	// Initialize and run the server
	srv := server.NewServer(cfg, pipe, exporter, settingsRepo, assessmentRepo, trainingRepo, logger)
	srv.Run(cfg.Server.Port)

	<-ctx.Done()
	logger.Info("Application stopped.")
}
