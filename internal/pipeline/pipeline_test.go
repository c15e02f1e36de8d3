package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"moderation/internal/engine"
	"moderation/internal/models"
)

type fakeRetriever struct {
	passages []models.ContextPassage
	err      error
	calls    int
}

func (f *fakeRetriever) RetrieveContext(ctx context.Context, query string, topK int, minScore float64) ([]models.ContextPassage, error) {
	f.calls++
	return f.passages, f.err
}

type fakeClassifier struct {
	result    *engine.ClassifierResult
	latencyMs int64
	calls     int
	lastText  string
}

func (f *fakeClassifier) Classify(ctx context.Context, content string, passages []models.ContextPassage, modelID string, timeout time.Duration) (*engine.ClassifierResult, int64) {
	f.calls++
	f.lastText = content
	return f.result, f.latencyMs
}

type fakeRepo struct {
	persisted   []*models.SafetyAssessment
	pointers    []*models.ModerationPointer
	persistErr  error
	pointerErrs []error
	reviewed    []*models.SafetyAssessment
}

func (f *fakeRepo) PersistAssessment(a *models.SafetyAssessment) error {
	if f.persistErr != nil {
		return f.persistErr
	}
	a.ID = int64(len(f.persisted) + 1)
	a.CreatedAt = time.Now().UTC()
	f.persisted = append(f.persisted, a)
	return nil
}

func (f *fakeRepo) UpdatePointer(p *models.ModerationPointer) error {
	if len(f.pointerErrs) > 0 {
		err := f.pointerErrs[0]
		f.pointerErrs = f.pointerErrs[1:]
		if err != nil {
			return err
		}
	}
	f.pointers = append(f.pointers, p)
	return nil
}

func (f *fakeRepo) AttachHumanReview(assessmentID int64, label, status, reviewer string) error {
	return nil
}

func (f *fakeRepo) GetAssessmentByID(id int64) (*models.SafetyAssessment, error) {
	for _, a := range f.persisted {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) GetQueueItems(filters models.QueueFilters) ([]*models.QueueItem, int, error) {
	return nil, 0, nil
}

func (f *fakeRepo) GetReviewedAssessments(status string) ([]*models.SafetyAssessment, error) {
	return f.reviewed, nil
}

func testSettings() *models.SafetySettings {
	return &models.SafetySettings{
		Enabled:             true,
		Provider:            "openai",
		ModelID:             "gpt-4o-mini",
		TimeoutMs:           5000,
		ConfidenceThreshold: 0.7,
		HeldMessage:         "pending review",
		RejectedMessage:     "not published",
	}
}

func newTestPipeline(ret *fakeRetriever, cls *fakeClassifier, repo *fakeRepo) *Pipeline {
	return NewPipeline(ret, cls, repo, nil, zap.NewNop(), 5, 0.5)
}

func TestEvaluate_Layer1ShortCircuitSkipsClassifier(t *testing.T) {
	ret := &fakeRetriever{}
	cls := &fakeClassifier{result: &engine.ClassifierResult{RiskLevel: engine.RiskSafe, Confidence: 0.99}}
	repo := &fakeRepo{}
	p := newTestPipeline(ret, cls, repo)

	settings := testSettings()
	settings.Blocklist = []string{"自殺方法"}

	a, err := p.Evaluate(context.Background(), 1, "我想找自殺方法", settings)
	require.NoError(t, err)

	assert.Equal(t, engine.DecisionHeld, a.Decision)
	require.NotNil(t, a.Layer1Hit)
	assert.Equal(t, "自殺方法", *a.Layer1Hit)
	assert.Equal(t, "Blocklist pattern matched: 自殺方法", a.Reason)

	// Layer-1 hits never reach retrieval or the classifier, and the AI
	// provenance fields stay null.
	assert.Zero(t, ret.calls)
	assert.Zero(t, cls.calls)
	assert.Nil(t, a.Provider)
	assert.Nil(t, a.ModelID)
	assert.Nil(t, a.AIRiskLevel)
	assert.Nil(t, a.AIConfidence)
	assert.Nil(t, a.AIReason)
}

func TestEvaluate_ApprovesSafeConfident(t *testing.T) {
	ret := &fakeRetriever{passages: []models.ContextPassage{{Text: "ctx", Label: "slang", Score: 0.8}}}
	cls := &fakeClassifier{result: &engine.ClassifierResult{RiskLevel: engine.RiskSafe, Confidence: 0.9, Reason: "fine"}, latencyMs: 42}
	repo := &fakeRepo{}
	p := newTestPipeline(ret, cls, repo)

	a, err := p.Evaluate(context.Background(), 2, "今天心情不錯", testSettings())
	require.NoError(t, err)

	assert.Equal(t, engine.DecisionApproved, a.Decision)
	assert.Nil(t, a.Layer1Hit)
	require.NotNil(t, a.AIRiskLevel)
	assert.Equal(t, engine.RiskSafe, *a.AIRiskLevel)
	assert.Equal(t, 0.9, *a.AIConfidence)
	assert.Equal(t, int64(42), a.LatencyMs)
	assert.Equal(t, ret.passages, a.Layer2Context)

	require.Len(t, repo.pointers, 1)
	assert.Equal(t, a.ID, repo.pointers[0].AssessmentID)
	assert.Equal(t, engine.DecisionApproved, repo.pointers[0].Decision)
}

func TestEvaluate_ClassifierFailureFailsClosed(t *testing.T) {
	ret := &fakeRetriever{}
	cls := &fakeClassifier{result: nil, latencyMs: 5001}
	repo := &fakeRepo{}
	p := newTestPipeline(ret, cls, repo)

	a, err := p.Evaluate(context.Background(), 3, "anything", testSettings())
	require.NoError(t, err)

	assert.Equal(t, engine.DecisionHeld, a.Decision)
	// Provenance: the model was asked, so provider/model are recorded, but
	// the verdict fields stay null — the queue shows risk level null.
	require.NotNil(t, a.ModelID)
	assert.Nil(t, a.AIRiskLevel)
	assert.Nil(t, a.AIConfidence)
	assert.Equal(t, int64(5001), a.LatencyMs)

	require.Len(t, repo.pointers, 1)
	assert.Nil(t, repo.pointers[0].RiskLevel)
}

func TestEvaluate_RetrievalFailureDegradesToEmptyContext(t *testing.T) {
	ret := &fakeRetriever{err: errors.New("retrieval down")}
	cls := &fakeClassifier{result: &engine.ClassifierResult{RiskLevel: engine.RiskSafe, Confidence: 0.9}}
	repo := &fakeRepo{}
	p := newTestPipeline(ret, cls, repo)

	a, err := p.Evaluate(context.Background(), 4, "text", testSettings())
	require.NoError(t, err)

	// Retrieval failure never blocks the pipeline.
	assert.Equal(t, engine.DecisionApproved, a.Decision)
	assert.Equal(t, 1, cls.calls)
	assert.Empty(t, a.Layer2Context)
}

func TestEvaluate_RedactsBeforeClassifier(t *testing.T) {
	ret := &fakeRetriever{}
	cls := &fakeClassifier{result: &engine.ClassifierResult{RiskLevel: engine.RiskSafe, Confidence: 0.9}}
	repo := &fakeRepo{}
	p := newTestPipeline(ret, cls, repo)

	a, err := p.Evaluate(context.Background(), 5, "email me at jane@example.com", testSettings())
	require.NoError(t, err)

	assert.Equal(t, "email me at [EMAIL]", cls.lastText)
	assert.Equal(t, "email me at [EMAIL]", a.ContentRedacted)
	assert.NotContains(t, a.ContentRedacted, "jane@example.com")
}

func TestEvaluate_DisabledSettingsApproveWithoutCalls(t *testing.T) {
	ret := &fakeRetriever{}
	cls := &fakeClassifier{}
	repo := &fakeRepo{}
	p := newTestPipeline(ret, cls, repo)

	settings := testSettings()
	settings.Enabled = false
	settings.Blocklist = []string{"自殺方法"}

	a, err := p.Evaluate(context.Background(), 6, "我想找自殺方法", settings)
	require.NoError(t, err)

	assert.Equal(t, engine.DecisionApproved, a.Decision)
	assert.Zero(t, ret.calls)
	assert.Zero(t, cls.calls)
	assert.Nil(t, a.Provider)
}

func TestEvaluate_PersistFailureIsFatal(t *testing.T) {
	repo := &fakeRepo{persistErr: errors.New("insert failed")}
	p := newTestPipeline(&fakeRetriever{}, &fakeClassifier{}, repo)

	_, err := p.Evaluate(context.Background(), 7, "text", testSettings())

	require.Error(t, err)
	assert.Empty(t, repo.pointers)
}

func TestEvaluate_PointerFailureRetriedOnce(t *testing.T) {
	repo := &fakeRepo{pointerErrs: []error{errors.New("transient")}}
	cls := &fakeClassifier{result: &engine.ClassifierResult{RiskLevel: engine.RiskSafe, Confidence: 0.9}}
	p := newTestPipeline(&fakeRetriever{}, cls, repo)

	a, err := p.Evaluate(context.Background(), 8, "text", testSettings())

	// The assessment survives a pointer failure.
	require.NoError(t, err)
	assert.NotZero(t, a.ID)
	require.Len(t, repo.pointers, 1)
}

func TestEvaluate_PointerFailureAfterRetryStillReturnsAssessment(t *testing.T) {
	repo := &fakeRepo{pointerErrs: []error{errors.New("down"), errors.New("still down")}}
	cls := &fakeClassifier{result: &engine.ClassifierResult{RiskLevel: engine.RiskSafe, Confidence: 0.9}}
	p := newTestPipeline(&fakeRetriever{}, cls, repo)

	a, err := p.Evaluate(context.Background(), 9, "text", testSettings())

	require.NoError(t, err)
	assert.NotZero(t, a.ID)
	assert.Empty(t, repo.pointers)
}

func TestEvaluate_NilSettingsRejected(t *testing.T) {
	p := newTestPipeline(&fakeRetriever{}, &fakeClassifier{}, &fakeRepo{})

	_, err := p.Evaluate(context.Background(), 10, "text", nil)
	assert.Error(t, err)
}

func TestAuthorMessage(t *testing.T) {
	settings := testSettings()

	assert.Equal(t, "", AuthorMessage(engine.DecisionApproved, settings))
	assert.Equal(t, "pending review", AuthorMessage(engine.DecisionHeld, settings))
	assert.Equal(t, "not published", AuthorMessage(engine.DecisionRejected, settings))
}
