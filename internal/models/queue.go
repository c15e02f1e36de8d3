package models

import (
	"time"

	"moderation/internal/engine"
)

// QueueItem is one held comment on the moderation queue, joined with a
// bounded content snippet and the latest assessment outcome.
type QueueItem struct {
	CommentID    int64             `db:"comment_id" json:"comment_id"`
	AssessmentID int64             `db:"assessment_id" json:"assessment_id"`
	Snippet      string            `db:"snippet" json:"snippet"`
	TargetType   *string           `db:"target_type" json:"target_type,omitempty"`
	TargetTitle  *string           `db:"target_title" json:"target_title,omitempty"`
	RiskLevel    *engine.RiskLevel `db:"risk_level" json:"risk_level"`
	Confidence   *float64          `db:"confidence" json:"confidence"`
	Reason       string            `db:"reason" json:"reason"`
	Layer1Hit    *string           `db:"layer1_hit" json:"layer1_hit,omitempty"`
	AssessedAt   time.Time         `db:"assessed_at" json:"assessed_at"`
}

// QueueFilters narrows and pages the moderation queue listing.
type QueueFilters struct {
	RiskLevel     string
	MinConfidence *float64
	MaxConfidence *float64
	TargetType    string
	From          *time.Time
	To            *time.Time
	Search        string
	Page          int
	PageSize      int
}
