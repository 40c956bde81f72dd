package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/export"
	"github.com/noah-isme/lms-api/pkg/storage"
)

var gradeSheetHeaders = []string{"Student", "Roll Number", "Status", "Grade", "Max Points", "Graded At", "Feedback"}

type gradeSheetSource interface {
	TaskGrades(ctx context.Context, actor models.ActorRef, taskID string) (*models.Task, []models.GradeDetail, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult describes a stored export and its download link.
type ExportResult struct {
	FileName  string        `json:"fileName"`
	Format    export.Format `json:"format"`
	URL       string        `json:"url"`
	ExpiresAt time.Time     `json:"expiresAt"`
}

// ExportFile is an opened export ready to stream.
type ExportFile struct {
	File        *os.File
	Name        string
	ContentType string
}

// ExportService renders task grade sheets and serves them through signed links.
type ExportService struct {
	grades  gradeSheetSource
	storage fileStorage
	signer  *storage.SignedURLSigner
	csv     datasetRenderer
	pdf     datasetRenderer
	logger  *zap.Logger
	cfg     ExportConfig
	now     Clock
}

// NewExportService constructs an ExportService. Nil renderers fall back to pkg/export.
func NewExportService(grades gradeSheetSource, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv, pdf datasetRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{grades: grades, storage: store, signer: signer, csv: csv, pdf: pdf, logger: logger, cfg: cfg, now: time.Now}
}

// GradeSheet renders the grade sheet of a task the actor manages and returns a signed URL.
func (s *ExportService) GradeSheet(ctx context.Context, actor models.ActorRef, taskID, rawFormat string) (*ExportResult, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	task, grades, err := s.grades.TaskGrades(ctx, actor, taskID)
	if err != nil {
		return nil, err
	}

	renderer := s.csv
	if format == export.FormatPDF {
		renderer = s.pdf
	}
	payload, err := renderer.Render(gradeSheetDataset(task, grades))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render grade sheet")
	}

	name := fmt.Sprintf("grades_%s_%s.%s", sanitizeFilename(task.Title), s.now().UTC().Format("20060102_150405"), format)
	relPath, err := s.storage.Save(name, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store grade sheet")
	}
	token, expiresAt, err := s.signer.Generate(task.ID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	s.logger.Info("grade sheet exported",
		zap.String("task_id", task.ID),
		zap.String("format", string(format)),
		zap.Int("rows", len(grades)),
	)
	return &ExportResult{
		FileName:  relPath,
		Format:    format,
		URL:       fmt.Sprintf("%s/exports/%s", strings.TrimRight(s.cfg.APIPrefix, "/"), token),
		ExpiresAt: expiresAt,
	}, nil
}

// Open validates a download token and opens the referenced file.
func (s *ExportService) Open(token string) (*ExportFile, error) {
	parsed, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "download link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	file, err := s.storage.Open(parsed.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export")
	}
	contentType := export.FormatCSV.ContentType()
	if strings.HasSuffix(parsed.Path, "."+string(export.FormatPDF)) {
		contentType = export.FormatPDF.ContentType()
	}
	return &ExportFile{File: file, Name: parsed.Path, ContentType: contentType}, nil
}

// Cleanup removes exports older than ttl, or the configured TTL when ttl <= 0.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func gradeSheetDataset(task *models.Task, grades []models.GradeDetail) export.Dataset {
	maxPoints := strconv.FormatFloat(task.MaxPoints, 'f', -1, 64)
	rows := make([]map[string]string, 0, len(grades))
	for _, g := range grades {
		row := map[string]string{
			"Student":     strings.TrimSpace(g.StudentFirstName + " " + g.StudentLastName),
			"Roll Number": deref(g.StudentRollNumber),
			"Status":      string(g.Status),
			"Grade":       "",
			"Max Points":  maxPoints,
			"Graded At":   "",
			"Feedback":    deref(g.Feedback),
		}
		if g.Grade.Grade != nil {
			row["Grade"] = strconv.FormatFloat(*g.Grade.Grade, 'f', -1, 64)
		}
		if g.GradedAt != nil {
			row["Graded At"] = g.GradedAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, row)
	}
	return export.Dataset{
		Title:   task.Title,
		Caption: []string{fmt.Sprintf("Due %s", task.DueDate.UTC().Format("2006-01-02 15:04")), fmt.Sprintf("Max points: %s", maxPoints)},
		Headers: gradeSheetHeaders,
		Rows:    rows,
	}
}

func sanitizeFilename(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "task"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(strings.TrimSpace(raw))
	if len(result) > 60 {
		return result[:60]
	}
	return result
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
