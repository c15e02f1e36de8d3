package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"moderation/internal/models"
	"moderation/internal/repository"
)

// ModerationHandler serves the human-review queue.
type ModerationHandler struct {
	assessmentRepo repository.AssessmentRepository
	logger         *zap.Logger
}

// NewModerationHandler creates a new moderation queue handler.
func NewModerationHandler(assessmentRepo repository.AssessmentRepository, logger *zap.Logger) *ModerationHandler {
	return &ModerationHandler{
		assessmentRepo: assessmentRepo,
		logger:         logger,
	}
}

// GetQueue lists currently held comments, newest first.
// GET /api/moderation/queue
func (h *ModerationHandler) GetQueue(c *gin.Context) {
	filters := models.QueueFilters{
		RiskLevel:  c.Query("risk_level"),
		TargetType: c.Query("target_type"),
		Search:     c.Query("search"),
	}

	if v := c.Query("min_confidence"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid min_confidence"})
			return
		}
		filters.MinConfidence = &f
	}
	if v := c.Query("max_confidence"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid max_confidence"})
			return
		}
		filters.MaxConfidence = &f
	}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid from timestamp, expected RFC3339"})
			return
		}
		filters.From = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid to timestamp, expected RFC3339"})
			return
		}
		filters.To = &t
	}
	filters.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filters.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	items, total, err := h.assessmentRepo.GetQueueItems(filters)
	if err != nil {
		h.logger.Error("Failed to list moderation queue", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list moderation queue"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"total": total,
		"page":  filters.Page,
	})
}

// GetAssessmentDetail returns the full assessment record, including the
// complete layer-2 context and any prior human label.
// GET /api/moderation/assessments/:id
func (h *ModerationHandler) GetAssessmentDetail(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid assessment ID"})
		return
	}

	assessment, err := h.assessmentRepo.GetAssessmentByID(id)
	if err != nil {
		h.logger.Error("Failed to load assessment", zap.Error(err), zap.Int64("assessment_id", id))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load assessment"})
		return
	}
	if assessment == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Assessment not found"})
		return
	}

	c.JSON(http.StatusOK, assessment)
}

// ReviewAssessment attaches a human label to an existing assessment, the
// only mutation an assessment row may receive.
// POST /api/moderation/assessments/:id/review
func (h *ModerationHandler) ReviewAssessment(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid assessment ID"})
		return
	}

	var req struct {
		HumanLabel          string `json:"human_label" binding:"required"`
		HumanReviewedStatus string `json:"human_reviewed_status" binding:"required,oneof=confirmed corrected"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reviewer := c.MustGet("username").(string)

	if err := h.assessmentRepo.AttachHumanReview(id, req.HumanLabel, req.HumanReviewedStatus, reviewer); err != nil {
		h.logger.Error("Failed to attach human review", zap.Error(err), zap.Int64("assessment_id", id))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to attach human review"})
		return
	}

	h.logger.Info("Human review attached",
		zap.Int64("assessment_id", id),
		zap.String("human_label", req.HumanLabel),
		zap.String("status", req.HumanReviewedStatus),
		zap.String("reviewed_by", reviewer))

	c.JSON(http.StatusOK, gin.H{
		"message":       "Review recorded",
		"assessment_id": id,
	})
}
