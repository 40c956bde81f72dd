package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type studentBatchReader interface {
	ForStudents(ctx context.Context, studentIDs []string) (map[string][]models.BatchSummary, error)
}

type studentCourseReader interface {
	ForStudents(ctx context.Context, studentIDs []string, facultyID string) (map[string][]models.CourseSummary, error)
}

type peopleSync interface {
	CreateStudent(ctx context.Context, student *models.User, batchIDs []string) (*models.SyncReport, error)
	UpdateStudent(ctx context.Context, studentID string, apply func(*models.User) error, batchIDs []string) (*models.User, *models.SyncReport, error)
	DeleteStudent(ctx context.Context, studentID string) (*models.SyncReport, error)
	DeleteFaculty(ctx context.Context, facultyID string) (*models.FacultyDeletionReport, error)
}

// UserService manages faculty and student accounts.
type UserService struct {
	repo      userRepository
	batches   studentBatchReader
	courses   studentCourseReader
	sync      peopleSync
	validator *validator.Validate
	logger    *zap.Logger
	now       Clock
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, batches studentBatchReader, courses studentCourseReader, sync peopleSync, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, batches: batches, courses: courses, sync: sync, validator: validate, logger: logger, now: time.Now}
}

// ListFaculty returns paginated faculty members.
func (s *UserService) ListFaculty(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	filter.Role = models.RoleFaculty
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list faculty")
	}
	if users == nil {
		users = []models.User{}
	}
	page, limit, _ := models.PageWindow(filter.Page, filter.PageSize, 10)
	return users, models.NewPagination(page, limit, total), nil
}

// CreateFaculty adds a faculty account.
func (s *UserService) CreateFaculty(ctx context.Context, actor models.ActorRef, req models.FacultyRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid faculty payload")
	}
	if req.Password == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "password is required")
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	user := &models.User{Role: models.RoleFaculty, PasswordHash: hash, Active: true}
	applyFacultyRequest(user, req)

	if err := s.repo.Create(ctx, user); err != nil {
		if appErrors.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email or username already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create faculty")
	}
	s.audit(ctx, actor, models.AuditActionCreate, user.ID, nil, map[string]interface{}{"role": user.Role, "email": user.Email})
	return user, nil
}

// UpdateFaculty edits a faculty account. A non-empty password is re-hashed.
func (s *UserService) UpdateFaculty(ctx context.Context, actor models.ActorRef, id string, req models.FacultyRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid faculty payload")
	}
	user, err := s.load(ctx, id, models.RoleFaculty, "faculty not found")
	if err != nil {
		return nil, err
	}
	before := map[string]interface{}{"email": user.Email, "active": user.Active}
	applyFacultyRequest(user, req)

	if err := s.repo.Update(ctx, user); err != nil {
		if appErrors.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email or username already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update faculty")
	}
	if err := s.resetPassword(ctx, user.ID, req.Password); err != nil {
		return nil, err
	}
	s.audit(ctx, actor, models.AuditActionUpdate, user.ID, before, map[string]interface{}{"email": user.Email, "active": user.Active})
	return user, nil
}

// DeleteFaculty removes a faculty member. Their courses and tasks stay; the report
// lists what was left without an owner.
func (s *UserService) DeleteFaculty(ctx context.Context, actor models.ActorRef, id string) (*models.FacultyDeletionReport, error) {
	report, err := s.sync.DeleteFaculty(ctx, id)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actor, models.AuditActionDelete, id, nil, report)
	if len(report.CoursesWithoutFaculty) > 0 {
		s.logger.Warn("faculty deletion left courses without faculty",
			zap.String("faculty_id", id),
			zap.Int("courses", len(report.CoursesWithoutFaculty)),
			zap.Int("orphaned_tasks", len(report.OrphanedTaskIDs)),
		)
	}
	return report, nil
}

// ListStudents returns students with their batches. For faculty each student also
// carries the faculty's courses they take.
func (s *UserService) ListStudents(ctx context.Context, actor models.ActorRef, filter models.UserFilter) ([]models.StudentDetail, *models.Pagination, error) {
	filter.Role = models.RoleStudent
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	details, err := s.studentDetails(ctx, actor, users)
	if err != nil {
		return nil, nil, err
	}
	page, limit, _ := models.PageWindow(filter.Page, filter.PageSize, 10)
	return details, models.NewPagination(page, limit, total), nil
}

// GetStudent returns one student with batches and courses.
func (s *UserService) GetStudent(ctx context.Context, actor models.ActorRef, id string) (*models.StudentDetail, error) {
	user, err := s.load(ctx, id, models.RoleStudent, "student not found")
	if err != nil {
		return nil, err
	}
	details, err := s.studentDetails(ctx, actor, []models.User{*user})
	if err != nil {
		return nil, err
	}
	return &details[0], nil
}

// CreateStudent adds a student and enrolls them through the given batches.
func (s *UserService) CreateStudent(ctx context.Context, actor models.ActorRef, req models.StudentRequest) (*models.StudentDetail, *models.SyncReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if req.Password == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "password is required")
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	student := &models.User{PasswordHash: hash, Active: true}
	applyStudentRequest(student, req)

	report, err := s.sync.CreateStudent(ctx, student, uniqueIDs(req.Batches))
	if err != nil {
		return nil, nil, err
	}
	s.audit(ctx, actor, models.AuditActionCreate, student.ID, nil, map[string]interface{}{"role": models.RoleStudent, "email": student.Email, "batches": req.Batches})
	detail, err := s.GetStudent(ctx, actor, student.ID)
	if err != nil {
		return nil, nil, err
	}
	return detail, report, nil
}

// UpdateStudent edits a student. A non-nil Batches replaces their memberships.
func (s *UserService) UpdateStudent(ctx context.Context, actor models.ActorRef, id string, req models.StudentRequest) (*models.StudentDetail, *models.SyncReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	var batches []string
	if req.Batches != nil {
		batches = uniqueIDs(req.Batches)
	}
	_, report, err := s.sync.UpdateStudent(ctx, id, func(student *models.User) error {
		applyStudentRequest(student, req)
		return nil
	}, batches)
	if err != nil {
		return nil, nil, err
	}
	if err := s.resetPassword(ctx, id, req.Password); err != nil {
		return nil, nil, err
	}
	s.audit(ctx, actor, models.AuditActionUpdate, id, nil, map[string]interface{}{"email": req.Email, "batches": req.Batches})
	detail, err := s.GetStudent(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}
	return detail, report, nil
}

// DeleteStudent removes a student with their grades and submissions. Faculty may only
// delete students enrolled in a course they teach.
func (s *UserService) DeleteStudent(ctx context.Context, actor models.ActorRef, id string) (*models.SyncReport, error) {
	if actor.Kind == models.RoleFaculty {
		if _, err := s.load(ctx, id, models.RoleStudent, "student not found"); err != nil {
			return nil, err
		}
		courses, err := s.courses.ForStudents(ctx, []string{id}, actor.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student courses")
		}
		if len(courses[id]) == 0 {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "you don't have permission to delete students from this batch")
		}
	}
	report, err := s.sync.DeleteStudent(ctx, id)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actor, models.AuditActionDelete, id, nil, report)
	return report, nil
}

func (s *UserService) studentDetails(ctx context.Context, actor models.ActorRef, users []models.User) ([]models.StudentDetail, error) {
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	batches, err := s.batches.ForStudents(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student batches")
	}
	facultyID := ""
	if actor.Kind == models.RoleFaculty {
		facultyID = actor.ID
	}
	courses, err := s.courses.ForStudents(ctx, ids, facultyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student courses")
	}

	details := make([]models.StudentDetail, 0, len(users))
	for _, u := range users {
		d := models.StudentDetail{User: u, Batches: batches[u.ID], Courses: courses[u.ID]}
		if d.Batches == nil {
			d.Batches = []models.BatchSummary{}
		}
		details = append(details, d)
	}
	return details, nil
}

func (s *UserService) load(ctx context.Context, id string, role models.UserRole, missing string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, missing)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.Role != role {
		return nil, appErrors.Clone(appErrors.ErrNotFound, missing)
	}
	return user, nil
}

func (s *UserService) resetPassword(ctx context.Context, id, password string) error {
	if password == "" {
		return nil
	}
	hash, err := HashPassword(password)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	if err := s.repo.UpdatePassword(ctx, id, hash, s.now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
	}
	return nil
}

func (s *UserService) audit(ctx context.Context, actor models.ActorRef, action, resourceID string, before, after interface{}) {
	actorID := actor.ID
	entry := &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "users",
		ResourceID: &resourceID,
		OldValues:  models.AuditJSON(before),
		NewValues:  models.AuditJSON(after),
	}
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record user audit log", zap.String("action", action), zap.Error(err))
	}
}

func applyFacultyRequest(user *models.User, req models.FacultyRequest) {
	user.FirstName = strings.TrimSpace(req.FirstName)
	user.LastName = strings.TrimSpace(req.LastName)
	user.Email = strings.ToLower(strings.TrimSpace(req.Email))
	user.Username = strings.TrimSpace(req.Username)
	user.Department = optionalString(req.Department)
	user.Designation = optionalString(req.Designation)
	if req.Photo != nil {
		user.Photo = optionalString(*req.Photo)
	}
	if req.Active != nil {
		user.Active = *req.Active
	}
}

func applyStudentRequest(user *models.User, req models.StudentRequest) {
	user.FirstName = strings.TrimSpace(req.FirstName)
	user.LastName = strings.TrimSpace(req.LastName)
	user.Email = strings.ToLower(strings.TrimSpace(req.Email))
	user.Username = strings.TrimSpace(req.Username)
	user.Department = optionalString(req.Department)
	user.RollNumber = optionalString(req.RollNumber)
	if req.Photo != nil {
		user.Photo = optionalString(*req.Photo)
	}
	if req.Active != nil {
		user.Active = *req.Active
	}
}
