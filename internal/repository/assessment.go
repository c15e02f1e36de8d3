package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"moderation/internal/models"
)

// AssessmentRepository owns every write to safety_assessments and
// moderation_pointers. Assessments are append-only; the human-review quartet
// is the only mutation an existing row may receive.
type AssessmentRepository interface {
	PersistAssessment(a *models.SafetyAssessment) error
	UpdatePointer(p *models.ModerationPointer) error
	AttachHumanReview(assessmentID int64, label, status, reviewer string) error
	GetAssessmentByID(id int64) (*models.SafetyAssessment, error)
	GetQueueItems(f models.QueueFilters) ([]*models.QueueItem, int, error)
	GetReviewedAssessments(status string) ([]*models.SafetyAssessment, error)
}

type assessmentRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewAssessmentRepository(db *sqlx.DB, logger *zap.Logger) AssessmentRepository {
	return &assessmentRepository{db: db, logger: logger}
}

const assessmentColumns = `id, comment_id, created_at, decision, reason, content_redacted,
	layer1_hit, layer2_context, provider, model_id, ai_risk_level, ai_confidence, ai_reason,
	latency_ms, human_label, human_reviewed_status, reviewed_by, reviewed_at`

// PersistAssessment inserts one immutable assessment row and fills in the
// generated id and created_at.
func (r *assessmentRepository) PersistAssessment(a *models.SafetyAssessment) error {
	contextJSON, err := json.Marshal(a.Layer2Context)
	if err != nil {
		return fmt.Errorf("failed to marshal layer 2 context: %w", err)
	}
	if a.Layer2Context == nil {
		contextJSON = []byte("[]")
	}

	query := `INSERT INTO safety_assessments
		(comment_id, decision, reason, content_redacted, layer1_hit, layer2_context,
		 provider, model_id, ai_risk_level, ai_confidence, ai_reason, latency_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at`
	return r.db.QueryRowx(query,
		a.CommentID, a.Decision, a.Reason, a.ContentRedacted, a.Layer1Hit, contextJSON,
		a.Provider, a.ModelID, a.AIRiskLevel, a.AIConfidence, a.AIReason, a.LatencyMs,
	).Scan(&a.ID, &a.CreatedAt)
}

// UpdatePointer upserts the per-comment pointer. The assessed_at guard makes
// the race between concurrent re-evaluations last-writer-wins by assessment
// recency: an older, late-arriving evaluation never clobbers a newer pointer.
func (r *assessmentRepository) UpdatePointer(p *models.ModerationPointer) error {
	query := `INSERT INTO moderation_pointers (comment_id, assessment_id, decision, risk_level, confidence, assessed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (comment_id) DO UPDATE SET
			assessment_id = EXCLUDED.assessment_id,
			decision      = EXCLUDED.decision,
			risk_level    = EXCLUDED.risk_level,
			confidence    = EXCLUDED.confidence,
			assessed_at   = EXCLUDED.assessed_at
		WHERE moderation_pointers.assessed_at <= EXCLUDED.assessed_at`
	_, err := r.db.Exec(query, p.CommentID, p.AssessmentID, p.Decision, p.RiskLevel, p.Confidence, p.AssessedAt)
	return err
}

// AttachHumanReview records a reviewer's label on an existing assessment.
// This is the only mutation path for an assessment row.
func (r *assessmentRepository) AttachHumanReview(assessmentID int64, label, status, reviewer string) error {
	query := `UPDATE safety_assessments
		SET human_label = $1, human_reviewed_status = $2, reviewed_by = $3, reviewed_at = CURRENT_TIMESTAMP
		WHERE id = $4`
	result, err := r.db.Exec(query, label, status, reviewer, assessmentID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("assessment not found: %d", assessmentID)
	}
	return nil
}

func (r *assessmentRepository) GetAssessmentByID(id int64) (*models.SafetyAssessment, error) {
	query := `SELECT ` + assessmentColumns + ` FROM safety_assessments WHERE id = $1`
	a, err := scanAssessment(r.db.QueryRowx(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

// GetReviewedAssessments returns assessments carrying the given
// human_reviewed_status, oldest first so export batches are reproducible.
func (r *assessmentRepository) GetReviewedAssessments(status string) ([]*models.SafetyAssessment, error) {
	query := `SELECT ` + assessmentColumns + ` FROM safety_assessments
		WHERE human_reviewed_status = $1 ORDER BY reviewed_at ASC, id ASC`
	rows, err := r.db.Queryx(query, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assessments []*models.SafetyAssessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		assessments = append(assessments, a)
	}
	return assessments, rows.Err()
}

// GetQueueItems lists held comments for human review, newest first, with a
// bounded redacted snippet joined with the target comment's metadata.
func (r *assessmentRepository) GetQueueItems(f models.QueueFilters) ([]*models.QueueItem, int, error) {
	dataQuery, countQuery, args, pagedArgs := buildQueueQuery(f)

	var total int
	if err := r.db.Get(&total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Queryx(dataQuery, pagedArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*models.QueueItem
	for rows.Next() {
		item := &models.QueueItem{}
		if err := rows.StructScan(item); err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

// buildQueueQuery assembles the filtered queue listing and its matching
// count query. Kept separate so the SQL assembly is testable without a
// database.
func buildQueueQuery(f models.QueueFilters) (dataQuery, countQuery string, args, pagedArgs []interface{}) {
	where := []string{`p.decision = 'HELD'`}

	add := func(clause string, value interface{}) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if f.RiskLevel != "" {
		add(`p.risk_level = $%d`, f.RiskLevel)
	}
	if f.MinConfidence != nil {
		add(`p.confidence >= $%d`, *f.MinConfidence)
	}
	if f.MaxConfidence != nil {
		add(`p.confidence <= $%d`, *f.MaxConfidence)
	}
	if f.TargetType != "" {
		add(`c.target_type = $%d`, f.TargetType)
	}
	if f.From != nil {
		add(`p.assessed_at >= $%d`, *f.From)
	}
	if f.To != nil {
		add(`p.assessed_at <= $%d`, *f.To)
	}
	if f.Search != "" {
		add(`a.content_redacted ILIKE $%d`, "%"+f.Search+"%")
	}

	base := `
		FROM moderation_pointers p
		JOIN safety_assessments a ON p.assessment_id = a.id
		LEFT JOIN comments c ON p.comment_id = c.id
		WHERE ` + strings.Join(where, " AND ")

	countQuery = `SELECT COUNT(*)` + base

	page := f.Page
	if page < 1 {
		page = 1
	}
	pageSize := f.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	pagedArgs = append(pagedArgs, args...)
	pagedArgs = append(pagedArgs, pageSize, (page-1)*pageSize)
	dataQuery = `SELECT
			p.comment_id,
			p.assessment_id,
			LEFT(a.content_redacted, 160) AS snippet,
			c.target_type,
			c.target_title,
			p.risk_level,
			p.confidence,
			a.reason,
			a.layer1_hit,
			p.assessed_at` + base + fmt.Sprintf(`
		ORDER BY p.assessed_at DESC
		LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)

	return dataQuery, countQuery, args, pagedArgs
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAssessment(row rowScanner) (*models.SafetyAssessment, error) {
	a := &models.SafetyAssessment{}
	var contextRaw []byte
	err := row.Scan(
		&a.ID, &a.CommentID, &a.CreatedAt, &a.Decision, &a.Reason, &a.ContentRedacted,
		&a.Layer1Hit, &contextRaw, &a.Provider, &a.ModelID, &a.AIRiskLevel, &a.AIConfidence,
		&a.AIReason, &a.LatencyMs, &a.HumanLabel, &a.HumanReviewedStatus, &a.ReviewedBy, &a.ReviewedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(contextRaw) > 0 {
		if err := json.Unmarshal(contextRaw, &a.Layer2Context); err != nil {
			return nil, fmt.Errorf("failed to unmarshal layer 2 context: %w", err)
		}
	}
	return a, nil
}
