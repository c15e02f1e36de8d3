package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"moderation/internal/config"
	"moderation/internal/handler"
	"moderation/internal/middleware"
	"moderation/internal/pipeline"
	"moderation/internal/repository"
)

type Server struct {
	router *gin.Engine
	logger *zap.Logger
}

// NewServer wires the HTTP surface: the evaluation endpoint for the comment
// service and the reviewer-facing moderation and training routes.
func NewServer(
	cfg *config.Config,
	pipe *pipeline.Pipeline,
	exporter *pipeline.Exporter,
	settingsRepo repository.SettingsRepository,
	assessmentRepo repository.AssessmentRepository,
	trainingRepo repository.TrainingRepository,
	logger *zap.Logger,
) *Server {
	router := gin.Default()

	s := &Server{
		router: router,
		logger: logger,
	}

	evaluateHandler := handler.NewEvaluateHandler(pipe, settingsRepo, cfg, logger)
	moderationHandler := handler.NewModerationHandler(assessmentRepo, logger)
	trainingHandler := handler.NewTrainingHandler(exporter, trainingRepo, logger)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Called service-to-service by the publication pipeline.
	router.POST("/api/evaluate", evaluateHandler.Evaluate)

	// Reviewer routes require an authenticated platform token.
	reviewers := router.Group("/api")
	reviewers.Use(middleware.AuthMiddleware(logger))
	{
		reviewers.GET("/moderation/queue", moderationHandler.GetQueue)
		reviewers.GET("/moderation/assessments/:id", moderationHandler.GetAssessmentDetail)
		reviewers.GET("/training/batches/:batch", trainingHandler.GetBatch)

		// Label correction and export stay with the highest privilege tier.
		admin := reviewers.Group("")
		admin.Use(middleware.RequireRole("admin", logger))
		{
			admin.POST("/moderation/assessments/:id/review", moderationHandler.ReviewAssessment)
			admin.POST("/training/export", trainingHandler.ExportBatch)
		}
	}

	return s
}

func (s *Server) Run(addr string) {
	s.logger.Info("Server starting", zap.String("addr", addr))
	if err := s.router.Run(addr); err != nil {
		s.logger.Fatal("Server failed to start", zap.Error(err))
	}
}
