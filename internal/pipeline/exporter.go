package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"moderation/internal/engine"
	"moderation/internal/llm"
	"moderation/internal/models"
	"moderation/internal/repository"
)

// Exporter projects human-reviewed assessments into supervised fine-tuning
// rows. The original assessment rows stay untouched; export only appends.
type Exporter struct {
	assessments repository.AssessmentRepository
	training    repository.TrainingRepository
	logger      *zap.Logger
}

func NewExporter(assessments repository.AssessmentRepository, training repository.TrainingRepository, logger *zap.Logger) *Exporter {
	return &Exporter{
		assessments: assessments,
		training:    training,
		logger:      logger,
	}
}

// ExportBatch exports every assessment with the given human_reviewed_status
// into the named dataset batch. An empty batch gets a generated id. Already
// exported assessments are skipped, so re-running an export is idempotent.
// Returns the batch id and the number of rows written.
func (e *Exporter) ExportBatch(status, batch, createdBy string) (string, int, error) {
	if batch == "" {
		batch = "batch-" + uuid.NewString()
	}

	reviewed, err := e.assessments.GetReviewedAssessments(status)
	if err != nil {
		return "", 0, fmt.Errorf("failed to load reviewed assessments: %w", err)
	}

	exported := 0
	for _, a := range reviewed {
		exists, err := e.training.HasRowForAssessment(a.ID, batch)
		if err != nil {
			return batch, exported, fmt.Errorf("failed to check existing export: %w", err)
		}
		if exists {
			continue
		}

		row, err := ProjectTrainingRow(a, batch, createdBy)
		if err != nil {
			e.logger.Warn("Skipping unprojectable assessment", zap.Error(err), zap.Int64("assessment_id", a.ID))
			continue
		}
		if err := e.training.InsertRow(row); err != nil {
			return batch, exported, fmt.Errorf("failed to insert training row: %w", err)
		}
		exported++
	}

	e.logger.Info("Training export finished",
		zap.String("batch", batch),
		zap.String("status", status),
		zap.Int("exported", exported),
		zap.Int("reviewed", len(reviewed)))
	return batch, exported, nil
}

// ProjectTrainingRow builds one supervised example from a reviewed
// assessment. Input reproduces the exact prompt shape the classifier saw;
// output is the corrected verdict, with the human label overriding the AI
// one and full confidence on human-corrected rows.
func ProjectTrainingRow(a *models.SafetyAssessment, batch, createdBy string) (*models.TrainingDatasetRow, error) {
	if a.HumanLabel == nil {
		return nil, fmt.Errorf("assessment %d has no human label", a.ID)
	}

	input := []models.ChatMessage{
		{Role: "system", Content: llm.SystemPrompt},
		{Role: "user", Content: llm.BuildUserPrompt(a.ContentRedacted, a.Layer2Context)},
	}
	inputJSON, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal input messages: %w", err)
	}

	output := engine.ClassifierResult{
		RiskLevel:  riskForLabel(*a.HumanLabel, a.AIRiskLevel),
		Confidence: 1.0,
		Reason:     fmt.Sprintf("human reviewed: %s", *a.HumanLabel),
	}
	outputJSON, err := json.Marshal(output)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal output: %w", err)
	}

	return &models.TrainingDatasetRow{
		SourceAssessmentID: a.ID,
		DatasetBatch:       batch,
		InputMessages:      inputJSON,
		OutputJSON:         outputJSON,
		CreatedBy:          createdBy,
	}, nil
}

// riskForLabel maps a reviewer label to the corrected risk level. A
// False_Positive means the content was actually safe; a Confirmed_Risk means
// the hold was right. Unknown labels keep the AI verdict, defaulting to
// Uncertain when layer 1 decided and no AI verdict exists.
func riskForLabel(label string, aiRisk *engine.RiskLevel) engine.RiskLevel {
	switch label {
	case "False_Positive":
		return engine.RiskSafe
	case "Confirmed_Risk", "True_Positive":
		return engine.RiskHigh
	case "False_Negative":
		return engine.RiskHigh
	default:
		if aiRisk != nil {
			return *aiRisk
		}
		return engine.RiskUncertain
	}
}
