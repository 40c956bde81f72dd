package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type batchRepository interface {
	List(ctx context.Context, filter models.BatchFilter) ([]models.Batch, int, error)
	FindByID(ctx context.Context, id string) (*models.Batch, error)
	Rosters(ctx context.Context, batchIDs []string) (map[string][]models.UserSummary, error)
	ListByFaculty(ctx context.Context, facultyID string) ([]models.Batch, error)
	Search(ctx context.Context, q string, limit int) ([]models.BatchSummary, error)
}

type studentLookup interface {
	FindByIDs(ctx context.Context, role models.UserRole, ids []string) ([]models.UserSummary, error)
	Search(ctx context.Context, role models.UserRole, q string, limit int) ([]models.UserSummary, error)
}

type batchSync interface {
	CreateBatch(ctx context.Context, batch *models.Batch, studentIDs []string) (*models.SyncReport, error)
	UpdateBatch(ctx context.Context, batchID string, apply func(*models.Batch) error, studentIDs []string) (*models.Batch, *models.SyncReport, error)
	DeleteBatch(ctx context.Context, batchID string) (*models.SyncReport, error)
}

const searchLimit = 10

// BatchService manages student cohorts.
type BatchService struct {
	repo      batchRepository
	users     studentLookup
	sync      batchSync
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBatchService constructs BatchService.
func NewBatchService(repo batchRepository, users studentLookup, sync batchSync, validate *validator.Validate, logger *zap.Logger) *BatchService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchService{repo: repo, users: users, sync: sync, validator: validate, logger: logger}
}

// List returns batches with their rosters.
func (s *BatchService) List(ctx context.Context, filter models.BatchFilter) ([]models.BatchDetail, *models.Pagination, error) {
	batches, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list batches")
	}
	details, err := s.withRosters(ctx, batches)
	if err != nil {
		return nil, nil, err
	}
	page, limit, _ := models.PageWindow(filter.Page, filter.PageSize, 10)
	return details, models.NewPagination(page, limit, total), nil
}

// Get returns one batch with its roster.
func (s *BatchService) Get(ctx context.Context, id string) (*models.BatchDetail, error) {
	batch, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	details, err := s.withRosters(ctx, []models.Batch{*batch})
	if err != nil {
		return nil, err
	}
	return &details[0], nil
}

// Create inserts a batch created by actor.
func (s *BatchService) Create(ctx context.Context, actor models.ActorRef, req models.BatchRequest) (*models.BatchDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch payload")
	}
	students := uniqueIDs(req.Students)
	if err := s.requireStudents(ctx, students); err != nil {
		return nil, err
	}
	batch := &models.Batch{
		Name:         strings.TrimSpace(req.Name),
		AcademicYear: strings.TrimSpace(req.AcademicYear),
		Department:   strings.TrimSpace(req.Department),
		CreatorKind:  actor.Kind,
		CreatorID:    actor.ID,
	}
	if _, err := s.sync.CreateBatch(ctx, batch, students); err != nil {
		return nil, err
	}
	return s.Get(ctx, batch.ID)
}

// Update edits batch fields and, when req.Students is set, replaces the roster.
func (s *BatchService) Update(ctx context.Context, id string, req models.BatchRequest) (*models.BatchDetail, *models.SyncReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch payload")
	}
	var students []string
	if req.Students != nil {
		students = uniqueIDs(req.Students)
		if err := s.requireStudents(ctx, students); err != nil {
			return nil, nil, err
		}
	}
	_, report, err := s.sync.UpdateBatch(ctx, id, func(batch *models.Batch) error {
		batch.Name = strings.TrimSpace(req.Name)
		batch.AcademicYear = strings.TrimSpace(req.AcademicYear)
		batch.Department = strings.TrimSpace(req.Department)
		return nil
	}, students)
	if err != nil {
		return nil, nil, err
	}
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return detail, report, nil
}

// Delete removes a batch and reconciles the courses it belonged to.
func (s *BatchService) Delete(ctx context.Context, id string) (*models.SyncReport, error) {
	return s.sync.DeleteBatch(ctx, id)
}

// MyBatches lists the batches of courses the faculty teaches.
func (s *BatchService) MyBatches(ctx context.Context, facultyID string) ([]models.BatchDetail, error) {
	batches, err := s.repo.ListByFaculty(ctx, facultyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list batches")
	}
	return s.withRosters(ctx, batches)
}

// SearchStudents matches students by name, email or roll number.
func (s *BatchService) SearchStudents(ctx context.Context, q string) ([]models.UserSummary, error) {
	if len(strings.TrimSpace(q)) < 2 {
		return []models.UserSummary{}, nil
	}
	students, err := s.users.Search(ctx, models.RoleStudent, q, searchLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search students")
	}
	return students, nil
}

// SearchBatches matches batches by name or department.
func (s *BatchService) SearchBatches(ctx context.Context, q string) ([]models.BatchSummary, error) {
	if len(strings.TrimSpace(q)) < 2 {
		return []models.BatchSummary{}, nil
	}
	batches, err := s.repo.Search(ctx, q, searchLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search batches")
	}
	return batches, nil
}

// requireStudents rejects ids that are not existing students.
func (s *BatchService) requireStudents(ctx context.Context, ids []string) error {
	return requireRole(ctx, s.users, models.RoleStudent, ids, "unknown student ids")
}

func (s *BatchService) withRosters(ctx context.Context, batches []models.Batch) ([]models.BatchDetail, error) {
	ids := make([]string, 0, len(batches))
	for _, b := range batches {
		ids = append(ids, b.ID)
	}
	rosters, err := s.repo.Rosters(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch rosters")
	}
	details := make([]models.BatchDetail, 0, len(batches))
	for _, b := range batches {
		students := rosters[b.ID]
		if students == nil {
			students = []models.UserSummary{}
		}
		details = append(details, models.BatchDetail{Batch: b, Students: students})
	}
	return details, nil
}

// requireRole checks every id belongs to an existing user of role.
func requireRole(ctx context.Context, users studentLookup, role models.UserRole, ids []string, message string) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := users.FindByIDs(ctx, role, ids)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify users")
	}
	if len(found) == len(ids) {
		return nil
	}
	known := make(map[string]struct{}, len(found))
	for _, u := range found {
		known[u.ID] = struct{}{}
	}
	var missing []string
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}
	return appErrors.Clone(appErrors.ErrValidation, message+": "+strings.Join(missing, ", "))
}
