package repository

import (
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"moderation/internal/models"
)

// TrainingRepository handles the append-only fine-tuning dataset table.
type TrainingRepository interface {
	InsertRow(row *models.TrainingDatasetRow) error
	GetRowsByBatch(batch string) ([]*models.TrainingDatasetRow, error)
	HasRowForAssessment(assessmentID int64, batch string) (bool, error)
}

type trainingRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewTrainingRepository(db *sqlx.DB, logger *zap.Logger) TrainingRepository {
	return &trainingRepository{db: db, logger: logger}
}

// InsertRow appends one exported training example.
func (r *trainingRepository) InsertRow(row *models.TrainingDatasetRow) error {
	query := `INSERT INTO training_dataset_rows
		(source_assessment_id, dataset_batch, input_messages, output_json, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	return r.db.QueryRowx(query,
		row.SourceAssessmentID, row.DatasetBatch, []byte(row.InputMessages), []byte(row.OutputJSON), row.CreatedBy,
	).Scan(&row.ID, &row.CreatedAt)
}

func (r *trainingRepository) GetRowsByBatch(batch string) ([]*models.TrainingDatasetRow, error) {
	query := `SELECT id, source_assessment_id, dataset_batch, input_messages, output_json, created_by, created_at
		FROM training_dataset_rows
		WHERE dataset_batch = $1
		ORDER BY id ASC`
	rows, err := r.db.Queryx(query, batch)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*models.TrainingDatasetRow
	for rows.Next() {
		row := &models.TrainingDatasetRow{}
		if err := rows.StructScan(row); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// HasRowForAssessment reports whether an assessment was already exported
// into the given batch, so re-running an export stays idempotent.
func (r *trainingRepository) HasRowForAssessment(assessmentID int64, batch string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM training_dataset_rows WHERE source_assessment_id = $1 AND dataset_batch = $2`
	if err := r.db.Get(&count, query, assessmentID, batch); err != nil {
		return false, err
	}
	return count > 0, nil
}
