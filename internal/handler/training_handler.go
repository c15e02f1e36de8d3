package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"moderation/internal/pipeline"
	"moderation/internal/repository"
)

// TrainingHandler drives the fine-tuning dataset export.
type TrainingHandler struct {
	exporter     *pipeline.Exporter
	trainingRepo repository.TrainingRepository
	logger       *zap.Logger
}

// NewTrainingHandler creates a new training export handler.
func NewTrainingHandler(exporter *pipeline.Exporter, trainingRepo repository.TrainingRepository, logger *zap.Logger) *TrainingHandler {
	return &TrainingHandler{
		exporter:     exporter,
		trainingRepo: trainingRepo,
		logger:       logger,
	}
}

// ExportBatch projects human-reviewed assessments into a training batch.
// POST /api/training/export
func (h *TrainingHandler) ExportBatch(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required,oneof=confirmed corrected"`
		Batch  string `json:"batch"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	createdBy := c.MustGet("username").(string)

	batch, exported, err := h.exporter.ExportBatch(req.Status, req.Batch, createdBy)
	if err != nil {
		h.logger.Error("Training export failed", zap.Error(err), zap.String("batch", batch))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Training export failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"batch":    batch,
		"exported": exported,
	})
}

// GetBatch lists the rows of one exported batch.
// GET /api/training/batches/:batch
func (h *TrainingHandler) GetBatch(c *gin.Context) {
	batch := c.Param("batch")

	rows, err := h.trainingRepo.GetRowsByBatch(batch)
	if err != nil {
		h.logger.Error("Failed to load training batch", zap.Error(err), zap.String("batch", batch))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load training batch"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"batch": batch,
		"rows":  rows,
		"count": len(rows),
	})
}
