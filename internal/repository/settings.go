package repository

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"moderation/internal/models"
)

// SettingsRepository reads the operator-managed safety settings. This
// service never writes them; the admin tooling does.
type SettingsRepository interface {
	// LoadSnapshot returns the latest settings row as an immutable
	// per-evaluation snapshot, or (nil, nil) when no row exists yet.
	LoadSnapshot() (*models.SafetySettings, error)
}

type settingsRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewSettingsRepository(db *sqlx.DB, logger *zap.Logger) SettingsRepository {
	return &settingsRepository{db: db, logger: logger}
}

func (r *settingsRepository) LoadSnapshot() (*models.SafetySettings, error) {
	var settings models.SafetySettings
	query := `SELECT id, enabled, provider, model_id, timeout_ms, confidence_threshold,
			blocklist, training_batch, held_message, rejected_message, updated_at
		FROM safety_settings
		ORDER BY updated_at DESC, id DESC
		LIMIT 1`
	err := r.db.Get(&settings, query)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &settings, nil
}
