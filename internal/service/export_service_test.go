package service

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/storage"
)

type stubGradeSheet struct {
	err error
}

func (s stubGradeSheet) TaskGrades(ctx context.Context, actor models.ActorRef, taskID string) (*models.Task, []models.GradeDetail, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	score := 18.0
	feedback := "solid"
	roll := "CS-01"
	graded := taskClock
	return &models.Task{ID: taskID, Title: "Lab 1", MaxPoints: 20, DueDate: taskClock},
		[]models.GradeDetail{
			{Grade: models.Grade{ID: "g1", Status: models.GradeStatusGraded, Grade: &score, Feedback: &feedback, GradedAt: &graded}, StudentFirstName: "Ada", StudentLastName: "Lovelace", StudentRollNumber: &roll},
			{Grade: models.Grade{ID: "g2", Status: models.GradeStatusPending}, StudentFirstName: "Alan", StudentLastName: "Turing"},
		}, nil
}

func newExportServiceForTest(t *testing.T, source gradeSheetSource) (*ExportService, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	svc := NewExportService(source, store, signer, ExportConfig{APIPrefix: "/api/", ResultTTL: time.Hour}, zap.NewNop(), nil, nil)
	return svc, dir
}

func TestExportGradeSheetCSV(t *testing.T) {
	svc, dir := newExportServiceForTest(t, stubGradeSheet{})
	faculty := models.ActorRef{Kind: models.RoleFaculty, ID: "f1"}

	result, err := svc.GradeSheet(context.Background(), faculty, "t1", "csv")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.URL, "/api/exports/"))
	assert.FileExists(t, filepath.Join(dir, result.FileName))

	token := strings.TrimPrefix(result.URL, "/api/exports/")
	file, err := svc.Open(token)
	require.NoError(t, err)
	defer file.File.Close()
	assert.Equal(t, "text/csv", file.ContentType)

	body, err := io.ReadAll(file.File)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Ada Lovelace")
	assert.Contains(t, string(body), "CS-01")
	assert.Contains(t, string(body), "Alan Turing")
}

func TestExportGradeSheetPDF(t *testing.T) {
	svc, _ := newExportServiceForTest(t, stubGradeSheet{})
	result, err := svc.GradeSheet(context.Background(), models.ActorRef{Kind: models.RoleAdmin, ID: "a1"}, "t1", "pdf")
	require.NoError(t, err)

	file, err := svc.Open(strings.TrimPrefix(result.URL, "/api/exports/"))
	require.NoError(t, err)
	defer file.File.Close()
	assert.Equal(t, "application/pdf", file.ContentType)
}

func TestExportGradeSheetRejectsFormat(t *testing.T) {
	svc, _ := newExportServiceForTest(t, stubGradeSheet{})
	_, err := svc.GradeSheet(context.Background(), models.ActorRef{Kind: models.RoleAdmin, ID: "a1"}, "t1", "xlsx")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestExportGradeSheetPropagatesAccessError(t *testing.T) {
	svc, _ := newExportServiceForTest(t, stubGradeSheet{err: appErrors.Clone(appErrors.ErrForbidden, "not your course")})
	_, err := svc.GradeSheet(context.Background(), models.ActorRef{Kind: models.RoleFaculty, ID: "f2"}, "t1", "csv")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestExportOpenRejectsTamperedToken(t *testing.T) {
	svc, _ := newExportServiceForTest(t, stubGradeSheet{})
	result, err := svc.GradeSheet(context.Background(), models.ActorRef{Kind: models.RoleAdmin, ID: "a1"}, "t1", "")
	require.NoError(t, err)

	token := strings.TrimPrefix(result.URL, "/api/exports/")
	_, err = svc.Open(token + "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestExportCleanupRemovesOldFiles(t *testing.T) {
	svc, dir := newExportServiceForTest(t, stubGradeSheet{})
	result, err := svc.GradeSheet(context.Background(), models.ActorRef{Kind: models.RoleAdmin, ID: "a1"}, "t1", "csv")
	require.NoError(t, err)

	path := filepath.Join(dir, result.FileName)
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	removed, err := svc.Cleanup(0)
	require.NoError(t, err)
	assert.Equal(t, []string{result.FileName}, removed)
	assert.NoFileExists(t, path)
}
