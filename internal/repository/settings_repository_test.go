package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/models"
)

func TestGetSettingsMissingRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSettingsRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM settings WHERE key = $1")).WithArgs(models.SettingsKey).WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background())
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSettingsScansFileTypes(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSettingsRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM settings WHERE key = $1")).
		WillReturnRows(sqlmock.NewRows(columnsOf(settingsColumns)).
			AddRow("global", "SkillUp", nil, nil, false, true, 10, "{.pdf,.zip}", true, "down", time.Now()))

	settings, err := repo.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{".pdf", ".zip"}, []string(settings.AllowedFileTypes))
	assert.True(t, settings.View().MaintenanceMode.Enabled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSettingsForcesSingletonKey(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSettingsRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (key)")).WillReturnResult(sqlmock.NewResult(0, 1))

	settings := models.DefaultSettings()
	settings.Key = "other"
	require.NoError(t, repo.Upsert(context.Background(), &settings))
	assert.Equal(t, models.SettingsKey, settings.Key)
	assert.NoError(t, mock.ExpectationsWereMet())
}
