package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	Faculty(ctx context.Context, courseIDs []string) (map[string][]models.UserSummary, error)
	Batches(ctx context.Context, courseIDs []string) (map[string][]models.BatchSummary, error)
	Students(ctx context.Context, courseID string) ([]models.UserSummary, error)
	Search(ctx context.Context, q, facultyID string, limit int) ([]models.CourseSummary, error)
}

type batchLookup interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.BatchSummary, error)
	Search(ctx context.Context, q string, limit int) ([]models.BatchSummary, error)
}

type taskLister interface {
	List(ctx context.Context, filter models.TaskFilter) ([]models.TaskRow, int, error)
}

type courseSync interface {
	CreateCourse(ctx context.Context, course *models.Course, facultyIDs, batchIDs []string) (*models.SyncReport, error)
	UpdateCourse(ctx context.Context, courseID string, apply func(*models.Course) error, facultyIDs, batchIDs []string) (*models.Course, *models.SyncReport, error)
	DeleteCourse(ctx context.Context, courseID string) (*models.SyncReport, error)
}

// Clock returns the current instant. Services take one so task status can be tested at fixed times.
type Clock func() time.Time

// CourseService manages courses, their faculty and batches.
type CourseService struct {
	repo      courseRepository
	batches   batchLookup
	users     studentLookup
	tasks     taskLister
	policy    *AccessPolicy
	sync      courseSync
	validator *validator.Validate
	logger    *zap.Logger
	now       Clock
}

// NewCourseService constructs CourseService.
func NewCourseService(repo courseRepository, batches batchLookup, users studentLookup, tasks taskLister, policy *AccessPolicy, sync courseSync, validate *validator.Validate, logger *zap.Logger, now Clock) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &CourseService{repo: repo, batches: batches, users: users, tasks: tasks, policy: policy, sync: sync, validator: validate, logger: logger, now: now}
}

// List returns courses visible to actor with faculty and batches attached.
func (s *CourseService) List(ctx context.Context, actor models.ActorRef, filter models.CourseFilter) ([]models.CourseDetail, *models.Pagination, error) {
	switch actor.Kind {
	case models.RoleFaculty:
		filter.FacultyID = actor.ID
	case models.RoleStudent:
		filter.StudentID = actor.ID
	}
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	details, err := s.expand(ctx, courses)
	if err != nil {
		return nil, nil, err
	}
	page, limit, _ := models.PageWindow(filter.Page, filter.PageSize, 10)
	return details, models.NewPagination(page, limit, total), nil
}

// MyCourses lists every course the faculty teaches.
func (s *CourseService) MyCourses(ctx context.Context, facultyID string) ([]models.CourseDetail, error) {
	details, _, err := s.List(ctx, models.ActorRef{Kind: models.RoleFaculty, ID: facultyID}, models.CourseFilter{PageSize: 100})
	return details, err
}

// Details returns a course with faculty, batches, the derived roster and its tasks.
func (s *CourseService) Details(ctx context.Context, actor models.ActorRef, id string) (*models.CourseDetail, error) {
	course, err := s.policy.CanViewCourse(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	details, err := s.expand(ctx, []models.Course{*course})
	if err != nil {
		return nil, err
	}
	detail := details[0]

	students, err := s.repo.Students(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course students")
	}
	if students == nil {
		students = []models.UserSummary{}
	}
	detail.Students = students

	rows, _, err := s.tasks.List(ctx, models.TaskFilter{CourseID: id, PageSize: 100})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course tasks")
	}
	now := s.now()
	detail.Tasks = make([]models.TaskView, 0, len(rows))
	for _, row := range rows {
		detail.Tasks = append(detail.Tasks, row.View(now))
	}
	return &detail, nil
}

// Create inserts a course. Faculty creators always teach the course they create.
func (s *CourseService) Create(ctx context.Context, actor models.ActorRef, req models.CourseRequest) (*models.CourseDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	faculty := uniqueOrdered(req.Faculty)
	if actor.Kind == models.RoleFaculty {
		faculty = []string{actor.ID}
	}
	if len(faculty) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one faculty member is required")
	}
	if err := requireRole(ctx, s.users, models.RoleFaculty, faculty, "unknown faculty ids"); err != nil {
		return nil, err
	}
	batches := uniqueIDs(req.Batches)
	if err := s.requireBatches(ctx, batches); err != nil {
		return nil, err
	}

	course := &models.Course{CreatorKind: actor.Kind, CreatorID: actor.ID}
	applyCourseRequest(course, req)
	if course.Status == "" {
		course.Status = models.CourseStatusActive
	}
	if _, err := s.sync.CreateCourse(ctx, course, faculty, batches); err != nil {
		return nil, err
	}
	return s.Details(ctx, actor, course.ID)
}

// Update edits a course. Faculty may edit courses they teach but not the faculty list.
func (s *CourseService) Update(ctx context.Context, actor models.ActorRef, id string, req models.CourseRequest) (*models.CourseDetail, *models.SyncReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if _, err := s.policy.CanManageCourse(ctx, actor, id); err != nil {
		return nil, nil, err
	}

	var faculty []string
	if req.Faculty != nil {
		faculty = uniqueOrdered(req.Faculty)
		if actor.Kind == models.RoleFaculty {
			changed, err := s.facultyChanged(ctx, id, faculty)
			if err != nil {
				return nil, nil, err
			}
			if changed {
				return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "faculty cannot change the faculty list of a course")
			}
			faculty = nil
		} else if err := requireRole(ctx, s.users, models.RoleFaculty, faculty, "unknown faculty ids"); err != nil {
			return nil, nil, err
		}
	}
	var batches []string
	if req.Batches != nil {
		batches = uniqueIDs(req.Batches)
		if err := s.requireBatches(ctx, batches); err != nil {
			return nil, nil, err
		}
	}

	_, report, err := s.sync.UpdateCourse(ctx, id, func(course *models.Course) error {
		applyCourseRequest(course, req)
		return nil
	}, faculty, batches)
	if err != nil {
		return nil, nil, err
	}
	detail, err := s.Details(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}
	return detail, report, nil
}

// Delete removes a course with its tasks, grades and submissions.
func (s *CourseService) Delete(ctx context.Context, actor models.ActorRef, id string) (*models.SyncReport, error) {
	if _, err := s.policy.CanManageCourse(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.sync.DeleteCourse(ctx, id)
}

// SearchAssignables finds faculty or batches to attach to a course. kind is "faculty" or "batch".
func (s *CourseService) SearchAssignables(ctx context.Context, kind, q string) (*models.AssignableResult, error) {
	result := &models.AssignableResult{}
	if len(strings.TrimSpace(q)) < 2 {
		return result, nil
	}
	switch strings.ToLower(kind) {
	case "faculty":
		faculty, err := s.users.Search(ctx, models.RoleFaculty, q, searchLimit)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search faculty")
		}
		result.Faculty = faculty
	case "batch", "batches":
		batches, err := s.batches.Search(ctx, q, searchLimit)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search batches")
		}
		result.Batches = batches
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "type must be faculty or batch")
	}
	return result, nil
}

// SearchTaskAssignables finds courses a task can be attached to by actor.
func (s *CourseService) SearchTaskAssignables(ctx context.Context, actor models.ActorRef, q string) ([]models.CourseSummary, error) {
	if len(strings.TrimSpace(q)) < 2 {
		return []models.CourseSummary{}, nil
	}
	facultyID := ""
	if actor.Kind == models.RoleFaculty {
		facultyID = actor.ID
	}
	courses, err := s.repo.Search(ctx, q, facultyID, searchLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search courses")
	}
	return courses, nil
}

func (s *CourseService) facultyChanged(ctx context.Context, courseID string, desired []string) (bool, error) {
	current, err := s.repo.Faculty(ctx, []string{courseID})
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course faculty")
	}
	ids := make([]string, 0, len(current[courseID]))
	for _, f := range current[courseID] {
		ids = append(ids, f.ID)
	}
	added, removed := diffIDs(ids, desired)
	return len(added) > 0 || len(removed) > 0, nil
}

func (s *CourseService) requireBatches(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := s.batches.FindByIDs(ctx, ids)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify batches")
	}
	if len(found) != len(ids) {
		return appErrors.Clone(appErrors.ErrValidation, "one or more batches do not exist")
	}
	return nil
}

func (s *CourseService) expand(ctx context.Context, courses []models.Course) ([]models.CourseDetail, error) {
	ids := make([]string, 0, len(courses))
	for _, c := range courses {
		ids = append(ids, c.ID)
	}
	faculty, err := s.repo.Faculty(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course faculty")
	}
	batches, err := s.repo.Batches(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course batches")
	}
	details := make([]models.CourseDetail, 0, len(courses))
	for _, c := range courses {
		detail := models.CourseDetail{Course: c, Faculty: faculty[c.ID], Batches: batches[c.ID]}
		if detail.Faculty == nil {
			detail.Faculty = []models.UserSummary{}
		}
		if detail.Batches == nil {
			detail.Batches = []models.BatchSummary{}
		}
		details = append(details, detail)
	}
	return details, nil
}

func applyCourseRequest(course *models.Course, req models.CourseRequest) {
	course.CourseCode = strings.ToUpper(strings.TrimSpace(req.CourseCode))
	course.Title = strings.TrimSpace(req.Title)
	course.Description = req.Description
	course.Photo = req.Photo
	course.Department = strings.TrimSpace(req.Department)
	course.AcademicYear = strings.TrimSpace(req.AcademicYear)
	course.Semester = req.Semester
	if req.Status != "" {
		course.Status = req.Status
	}
}
