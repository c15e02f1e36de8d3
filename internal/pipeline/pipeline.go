package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"moderation/internal/audit"
	"moderation/internal/engine"
	"moderation/internal/metrics"
	"moderation/internal/models"
	"moderation/internal/redactor"
	"moderation/internal/repository"
)

// RetrieverClient fetches layer-2 context for a redacted query.
type RetrieverClient interface {
	RetrieveContext(ctx context.Context, query string, topK int, minScore float64) ([]models.ContextPassage, error)
}

// ClassifierClient runs exactly one classification call. A nil result is the
// fail-closed sentinel; the returned latency covers failed calls too.
type ClassifierClient interface {
	Classify(ctx context.Context, content string, passages []models.ContextPassage, modelID string, timeout time.Duration) (*engine.ClassifierResult, int64)
}

// Pipeline runs one full safety evaluation per call: redact, layer-1 scan,
// retrieval, classification, decision, persistence, audit. Each call is an
// independent, stateless invocation; steps inside one call are strictly
// sequential because the classifier prompt depends on the retrieved context.
type Pipeline struct {
	retriever RetrieverClient
	llm       ClassifierClient
	repo      repository.AssessmentRepository
	audit     *audit.Queue
	logger    *zap.Logger
	topK      int
	minScore  float64
}

// NewPipeline creates a new evaluation pipeline.
func NewPipeline(
	retriever RetrieverClient,
	llm ClassifierClient,
	repo repository.AssessmentRepository,
	auditQueue *audit.Queue,
	logger *zap.Logger,
	topK int,
	minScore float64,
) *Pipeline {
	if topK <= 0 {
		topK = 5
	}
	return &Pipeline{
		retriever: retriever,
		llm:       llm,
		repo:      repo,
		audit:     auditQueue,
		logger:    logger,
		topK:      topK,
		minScore:  minScore,
	}
}

// Evaluate gates one comment. The settings snapshot is immutable for the
// duration of the call. A persisted assessment is never retracted; an
// evaluation that fails before the insert committed nothing and may be
// retried wholesale by the caller.
func (p *Pipeline) Evaluate(ctx context.Context, commentID int64, rawContent string, settings *models.SafetySettings) (*models.SafetyAssessment, error) {
	if settings == nil {
		return nil, fmt.Errorf("settings snapshot is required")
	}

	// Redaction runs before the text crosses any layer boundary: the
	// blocklist, the retriever, the classifier, and the audit trail only
	// ever see scrubbed text.
	red := redactor.Redact(rawContent)

	var outcome engine.Outcome
	var passages []models.ContextPassage
	var result *engine.ClassifierResult
	var latencyMs int64

	if !settings.Enabled {
		outcome = engine.Outcome{
			Decision: engine.DecisionApproved,
			Reason:   "safety engine disabled by settings",
		}
	} else {
		l1 := engine.CheckBlocklist(red.Text, settings.Blocklist)
		if !l1.Hit {
			// Layer 2 is advisory: a retrieval failure degrades to empty
			// context instead of aborting the evaluation.
			var err error
			passages, err = p.retriever.RetrieveContext(ctx, red.Text, p.topK, p.minScore)
			if err != nil {
				p.logger.Warn("Retrieval failed, continuing with empty context",
					zap.Error(err), zap.Int64("comment_id", commentID))
				metrics.RetrievalDegraded.Inc()
				passages = nil
			}

			result, latencyMs = p.llm.Classify(ctx, red.Text, passages, settings.ModelID,
				time.Duration(settings.TimeoutMs)*time.Millisecond)
		}
		outcome = engine.Run(red.Text, settings.Blocklist, result, settings.ConfidenceThreshold, &l1)
	}

	assessment := &models.SafetyAssessment{
		CommentID:       commentID,
		Decision:        outcome.Decision,
		Reason:          outcome.Reason,
		ContentRedacted: red.Text,
		Layer1Hit:       outcome.Layer1Hit,
		Layer2Context:   passages,
		LatencyMs:       latencyMs,
	}
	if settings.Enabled && !outcome.BlockedByLayer1 {
		assessment.Provider = &settings.Provider
		assessment.ModelID = &settings.ModelID
		if result != nil {
			risk := result.RiskLevel
			confidence := result.Confidence
			reason := result.Reason
			assessment.AIRiskLevel = &risk
			assessment.AIConfidence = &confidence
			assessment.AIReason = &reason
		}
	}

	// Insert failure is fatal to the evaluation: no decision was committed.
	if err := p.repo.PersistAssessment(assessment); err != nil {
		return nil, fmt.Errorf("failed to persist safety assessment: %w", err)
	}

	pointer := &models.ModerationPointer{
		CommentID:    commentID,
		AssessmentID: assessment.ID,
		Decision:     assessment.Decision,
		RiskLevel:    assessment.AIRiskLevel,
		Confidence:   assessment.AIConfidence,
		AssessedAt:   assessment.CreatedAt,
	}
	// Pointer failure is a distinct, lower-severity condition: the audit
	// record is already safe, so retry the pointer alone and move on. An
	// orphaned assessment with a stale pointer is recoverable; a pointer to
	// a missing assessment is not possible from this ordering.
	if err := p.repo.UpdatePointer(pointer); err != nil {
		p.logger.Warn("Pointer update failed, retrying once",
			zap.Error(err), zap.Int64("comment_id", commentID), zap.Int64("assessment_id", assessment.ID))
		if err := p.repo.UpdatePointer(pointer); err != nil {
			p.logger.Error("Pointer update failed after retry, pointer is stale",
				zap.Error(err), zap.Int64("comment_id", commentID), zap.Int64("assessment_id", assessment.ID))
		}
	}

	layer := "layer3"
	if outcome.BlockedByLayer1 {
		layer = "layer1"
	}
	metrics.DecisionsTotal.WithLabelValues(string(outcome.Decision), layer).Inc()
	if p.audit != nil {
		p.audit.Enqueue(audit.NewEvent(commentID, assessment.ID, assessment.Decision, layer))
	}

	p.logger.Info("Evaluation complete",
		zap.Int64("comment_id", commentID),
		zap.Int64("assessment_id", assessment.ID),
		zap.String("decision", string(assessment.Decision)),
		zap.Bool("blocked_by_layer1", outcome.BlockedByLayer1),
		zap.Int64("latency_ms", latencyMs))

	return assessment, nil
}

// AuthorMessage is the only text an author may see for a blocking decision.
// AI reason, confidence and context stay reviewer-only.
func AuthorMessage(d engine.Decision, settings *models.SafetySettings) string {
	if !engine.ShouldBlockPublication(d) {
		return ""
	}
	if d == engine.DecisionRejected {
		return settings.RejectedMessage
	}
	return settings.HeldMessage
}
