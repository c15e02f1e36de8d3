package models

import (
	"encoding/json"
	"time"
)

// ChatMessage is one message of a supervised-training conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TrainingDatasetRow is one exported fine-tuning example in the
// 'training_dataset_rows' table. Append-only; created only by the exporter.
type TrainingDatasetRow struct {
	ID                 int64           `db:"id" json:"id"`
	SourceAssessmentID int64           `db:"source_assessment_id" json:"source_assessment_id"`
	DatasetBatch       string          `db:"dataset_batch" json:"dataset_batch"`
	InputMessages      json.RawMessage `db:"input_messages" json:"input_messages"`
	OutputJSON         json.RawMessage `db:"output_json" json:"output_json"`
	CreatedBy          string          `db:"created_by" json:"created_by"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
}
