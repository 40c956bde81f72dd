package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-api/internal/models"
)

const settingsColumns = "key, platform_name, platform_logo, support_email, allow_student_registration, allow_late_submissions, max_upload_size_mb, allowed_file_types, maintenance_enabled, maintenance_message, updated_at"

// SettingsRepository persists the singleton platform settings row.
type SettingsRepository struct {
	db *sqlx.DB
}

// NewSettingsRepository constructs the repository.
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the stored settings or sql.ErrNoRows when none exist.
func (r *SettingsRepository) Get(ctx context.Context) (*models.Settings, error) {
	var settings models.Settings
	if err := r.db.GetContext(ctx, &settings, "SELECT "+settingsColumns+" FROM settings WHERE key = $1", models.SettingsKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return &settings, nil
}

// Upsert writes the singleton row.
func (r *SettingsRepository) Upsert(ctx context.Context, settings *models.Settings) error {
	settings.Key = models.SettingsKey
	settings.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO settings (key, platform_name, platform_logo, support_email, allow_student_registration, allow_late_submissions, max_upload_size_mb, allowed_file_types, maintenance_enabled, maintenance_message, updated_at)
VALUES (:key, :platform_name, :platform_logo, :support_email, :allow_student_registration, :allow_late_submissions, :max_upload_size_mb, :allowed_file_types, :maintenance_enabled, :maintenance_message, :updated_at)
ON CONFLICT (key)
DO UPDATE SET platform_name = EXCLUDED.platform_name, platform_logo = EXCLUDED.platform_logo, support_email = EXCLUDED.support_email,
              allow_student_registration = EXCLUDED.allow_student_registration, allow_late_submissions = EXCLUDED.allow_late_submissions,
              max_upload_size_mb = EXCLUDED.max_upload_size_mb, allowed_file_types = EXCLUDED.allowed_file_types,
              maintenance_enabled = EXCLUDED.maintenance_enabled, maintenance_message = EXCLUDED.maintenance_message, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, settings); err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	return nil
}
