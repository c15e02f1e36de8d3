package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"moderation/internal/config"
	"moderation/internal/engine"
	"moderation/internal/models"
	"moderation/internal/pipeline"
	"moderation/internal/repository"
)

// Evaluator runs one safety evaluation.
type Evaluator interface {
	Evaluate(ctx context.Context, commentID int64, rawContent string, settings *models.SafetySettings) (*models.SafetyAssessment, error)
}

// EvaluateHandler gates comment publication for the comment service.
type EvaluateHandler struct {
	evaluator    Evaluator
	settingsRepo repository.SettingsRepository
	cfg          *config.Config
	logger       *zap.Logger
}

// NewEvaluateHandler creates a new evaluation handler.
func NewEvaluateHandler(evaluator Evaluator, settingsRepo repository.SettingsRepository, cfg *config.Config, logger *zap.Logger) *EvaluateHandler {
	return &EvaluateHandler{
		evaluator:    evaluator,
		settingsRepo: settingsRepo,
		cfg:          cfg,
		logger:       logger,
	}
}

// Evaluate runs the safety pipeline for one comment.
// POST /api/evaluate
func (h *EvaluateHandler) Evaluate(c *gin.Context) {
	var req struct {
		CommentID int64  `json:"comment_id" binding:"required"`
		Content   string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings, err := h.settingsRepo.LoadSnapshot()
	if err != nil {
		h.logger.Error("Failed to load safety settings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load safety settings"})
		return
	}
	if settings == nil {
		// Missing settings are not a hard failure; config fallbacks apply.
		settings = h.cfg.DefaultSettings()
	}

	assessment, err := h.evaluator.Evaluate(c.Request.Context(), req.CommentID, req.Content, settings)
	if err != nil {
		h.logger.Error("Evaluation failed", zap.Error(err), zap.Int64("comment_id", req.CommentID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Evaluation failed, retry the whole evaluation"})
		return
	}

	// The author only ever sees the decision and the pre-configured
	// message. AI reason, confidence and context stay reviewer-only.
	c.JSON(http.StatusOK, gin.H{
		"comment_id":    req.CommentID,
		"assessment_id": assessment.ID,
		"decision":      assessment.Decision,
		"publishable":   !engine.ShouldBlockPublication(assessment.Decision),
		"message":       pipeline.AuthorMessage(assessment.Decision, settings),
	})
}
