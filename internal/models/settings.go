package models

import (
	"time"

	"github.com/lib/pq"
)

// SafetySettings is an immutable snapshot of the operator-managed safety
// configuration, loaded once per evaluation. Concurrent evaluations under
// different in-flight settings (e.g. a threshold rollout) each keep the
// snapshot they started with.
type SafetySettings struct {
	ID                  int64          `db:"id" json:"id"`
	Enabled             bool           `db:"enabled" json:"enabled"`
	Provider            string         `db:"provider" json:"provider"`
	ModelID             string         `db:"model_id" json:"model_id"`
	TimeoutMs           int64          `db:"timeout_ms" json:"timeout_ms"`
	ConfidenceThreshold float64        `db:"confidence_threshold" json:"confidence_threshold"`
	Blocklist           pq.StringArray `db:"blocklist" json:"blocklist"`
	TrainingBatch       string         `db:"training_batch" json:"training_batch"`
	HeldMessage         string         `db:"held_message" json:"held_message"`
	RejectedMessage     string         `db:"rejected_message" json:"rejected_message"`
	UpdatedAt           time.Time      `db:"updated_at" json:"updated_at"`
}
