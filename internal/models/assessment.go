package models

import (
	"time"

	"moderation/internal/engine"
)

// ContextPassage is one retrieved safety-corpus passage. The ordered list
// attached to an assessment is persisted verbatim as layer2_context.
type ContextPassage struct {
	Text  string  `json:"text"`
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// SafetyAssessment is one immutable evaluation record in the
// 'safety_assessments' table. Every column except the human-review quartet
// (human_label, human_reviewed_status, reviewed_by, reviewed_at) is
// write-once. ContentRedacted is always the PII-scrubbed text; raw content
// never reaches this table.
type SafetyAssessment struct {
	ID              int64            `db:"id" json:"id"`
	CommentID       int64            `db:"comment_id" json:"comment_id"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	Decision        engine.Decision  `db:"decision" json:"decision"`
	Reason          string           `db:"reason" json:"reason"`
	ContentRedacted string           `db:"content_redacted" json:"content_redacted"`
	Layer1Hit       *string          `db:"layer1_hit" json:"layer1_hit,omitempty"`
	Layer2Context   []ContextPassage `json:"layer2_context"`

	// Classifier provenance. All nil when layer 1 short-circuited.
	Provider     *string           `db:"provider" json:"provider,omitempty"`
	ModelID      *string           `db:"model_id" json:"model_id,omitempty"`
	AIRiskLevel  *engine.RiskLevel `db:"ai_risk_level" json:"ai_risk_level,omitempty"`
	AIConfidence *float64          `db:"ai_confidence" json:"ai_confidence,omitempty"`
	AIReason     *string           `db:"ai_reason" json:"ai_reason,omitempty"`
	LatencyMs    int64             `db:"latency_ms" json:"latency_ms"`

	// Human review: the only fields a later update may touch.
	HumanLabel          *string    `db:"human_label" json:"human_label,omitempty"`
	HumanReviewedStatus *string    `db:"human_reviewed_status" json:"human_reviewed_status,omitempty"`
	ReviewedBy          *string    `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt          *time.Time `db:"reviewed_at" json:"reviewed_at,omitempty"`
}

// ModerationPointer is the per-comment cache of the latest assessment
// outcome, stored in 'moderation_pointers'. Overwritten on every newer
// evaluation of the same comment, never by an older one.
type ModerationPointer struct {
	CommentID    int64             `db:"comment_id" json:"comment_id"`
	AssessmentID int64             `db:"assessment_id" json:"assessment_id"`
	Decision     engine.Decision   `db:"decision" json:"decision"`
	RiskLevel    *engine.RiskLevel `db:"risk_level" json:"risk_level,omitempty"`
	Confidence   *float64          `db:"confidence" json:"confidence,omitempty"`
	AssessedAt   time.Time         `db:"assessed_at" json:"assessed_at"`
}
