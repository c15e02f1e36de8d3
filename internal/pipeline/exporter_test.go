package pipeline

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"moderation/internal/engine"
	"moderation/internal/llm"
	"moderation/internal/models"
)

type fakeTrainingRepo struct {
	rows []*models.TrainingDatasetRow
}

func (f *fakeTrainingRepo) InsertRow(row *models.TrainingDatasetRow) error {
	row.ID = int64(len(f.rows) + 1)
	row.CreatedAt = time.Now().UTC()
	f.rows = append(f.rows, row)
	return nil
}

func (f *fakeTrainingRepo) GetRowsByBatch(batch string) ([]*models.TrainingDatasetRow, error) {
	var result []*models.TrainingDatasetRow
	for _, r := range f.rows {
		if r.DatasetBatch == batch {
			result = append(result, r)
		}
	}
	return result, nil
}

func (f *fakeTrainingRepo) HasRowForAssessment(assessmentID int64, batch string) (bool, error) {
	for _, r := range f.rows {
		if r.SourceAssessmentID == assessmentID && r.DatasetBatch == batch {
			return true, nil
		}
	}
	return false, nil
}

func strPtr(s string) *string { return &s }

func reviewedAssessment(id int64, label string) *models.SafetyAssessment {
	risk := engine.RiskHigh
	confidence := 0.8
	now := time.Now().UTC()
	return &models.SafetyAssessment{
		ID:                  id,
		CommentID:           id * 10,
		CreatedAt:           now,
		Decision:            engine.DecisionHeld,
		Reason:              "classifier flagged content as High_Risk (confidence 0.80)",
		ContentRedacted:     "some held comment",
		Layer2Context:       []models.ContextPassage{{Text: "ctx", Label: "case", Score: 0.9}},
		AIRiskLevel:         &risk,
		AIConfidence:        &confidence,
		HumanLabel:          strPtr(label),
		HumanReviewedStatus: strPtr("corrected"),
		ReviewedBy:          strPtr("reviewer1"),
		ReviewedAt:          &now,
	}
}

func TestProjectTrainingRow_FalsePositiveBecomesSafe(t *testing.T) {
	a := reviewedAssessment(1, "False_Positive")

	row, err := ProjectTrainingRow(a, "batch-1", "admin")
	require.NoError(t, err)

	assert.Equal(t, int64(1), row.SourceAssessmentID)
	assert.Equal(t, "batch-1", row.DatasetBatch)
	assert.Equal(t, "admin", row.CreatedBy)

	var input []models.ChatMessage
	require.NoError(t, json.Unmarshal(row.InputMessages, &input))
	require.Len(t, input, 2)
	assert.Equal(t, "system", input[0].Role)
	assert.Equal(t, llm.SystemPrompt, input[0].Content)
	assert.Contains(t, input[1].Content, "some held comment")
	assert.Contains(t, input[1].Content, "[case] ctx")

	var output engine.ClassifierResult
	require.NoError(t, json.Unmarshal(row.OutputJSON, &output))
	assert.Equal(t, engine.RiskSafe, output.RiskLevel)
	assert.Equal(t, 1.0, output.Confidence)
}

func TestProjectTrainingRow_ConfirmedRiskStaysHigh(t *testing.T) {
	a := reviewedAssessment(2, "Confirmed_Risk")

	row, err := ProjectTrainingRow(a, "batch-1", "admin")
	require.NoError(t, err)

	var output engine.ClassifierResult
	require.NoError(t, json.Unmarshal(row.OutputJSON, &output))
	assert.Equal(t, engine.RiskHigh, output.RiskLevel)
}

func TestProjectTrainingRow_UnknownLabelKeepsAIVerdict(t *testing.T) {
	a := reviewedAssessment(3, "Needs_Discussion")

	row, err := ProjectTrainingRow(a, "batch-1", "admin")
	require.NoError(t, err)

	var output engine.ClassifierResult
	require.NoError(t, json.Unmarshal(row.OutputJSON, &output))
	assert.Equal(t, engine.RiskHigh, output.RiskLevel)
}

func TestProjectTrainingRow_RequiresHumanLabel(t *testing.T) {
	a := reviewedAssessment(4, "x")
	a.HumanLabel = nil

	_, err := ProjectTrainingRow(a, "batch-1", "admin")
	assert.Error(t, err)
}

func TestExportBatch_ExportsCorrectedRowsAndKeepsOriginals(t *testing.T) {
	a := reviewedAssessment(1, "False_Positive")
	originalDecision := a.Decision
	originalContext := append([]models.ContextPassage(nil), a.Layer2Context...)

	repo := &fakeRepo{reviewed: []*models.SafetyAssessment{a}}
	training := &fakeTrainingRepo{}
	exporter := NewExporter(repo, training, zap.NewNop())

	batch, exported, err := exporter.ExportBatch("corrected", "batch-7", "admin")
	require.NoError(t, err)
	assert.Equal(t, "batch-7", batch)
	assert.Equal(t, 1, exported)
	require.Len(t, training.rows, 1)

	// Export is a projection: the source assessment is untouched.
	assert.Equal(t, originalDecision, a.Decision)
	assert.Equal(t, originalContext, a.Layer2Context)
	assert.Nil(t, a.Layer1Hit)
}

func TestExportBatch_Idempotent(t *testing.T) {
	repo := &fakeRepo{reviewed: []*models.SafetyAssessment{reviewedAssessment(1, "False_Positive")}}
	training := &fakeTrainingRepo{}
	exporter := NewExporter(repo, training, zap.NewNop())

	_, exported, err := exporter.ExportBatch("corrected", "batch-7", "admin")
	require.NoError(t, err)
	assert.Equal(t, 1, exported)

	_, exported, err = exporter.ExportBatch("corrected", "batch-7", "admin")
	require.NoError(t, err)
	assert.Equal(t, 0, exported)
	assert.Len(t, training.rows, 1)
}

func TestExportBatch_GeneratesBatchID(t *testing.T) {
	repo := &fakeRepo{}
	exporter := NewExporter(repo, &fakeTrainingRepo{}, zap.NewNop())

	batch, exported, err := exporter.ExportBatch("corrected", "", "admin")
	require.NoError(t, err)
	assert.Zero(t, exported)
	assert.Contains(t, batch, "batch-")
}
