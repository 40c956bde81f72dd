package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/pkg/cache"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type gradeRepository interface {
	ListByTask(ctx context.Context, taskID string) ([]models.GradeDetail, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Grade, error)
	Update(ctx context.Context, update models.GradeUpdate) error
	ListForStudent(ctx context.Context, studentID string) ([]models.StudentGrade, error)
}

type submissionLister interface {
	ListByTask(ctx context.Context, taskID string) ([]models.SubmissionDetail, error)
}

// GradeService records grading decisions and serves grade sheets.
type GradeService struct {
	grades      gradeRepository
	submissions submissionLister
	roster      courseRoster
	policy      *AccessPolicy
	notifier    Notifier
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         Clock
}

// NewGradeService constructs GradeService.
func NewGradeService(grades gradeRepository, submissions submissionLister, roster courseRoster, policy *AccessPolicy, notifier Notifier, cacheSvc *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, now Clock) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &GradeService{
		grades:      grades,
		submissions: submissions,
		roster:      roster,
		policy:      policy,
		notifier:    notifier,
		cache:       cacheSvc,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		now:         now,
	}
}

// GradeTask applies a batch of grading entries to a task. Entries that cannot be
// applied are reported in the result and do not stop the rest.
func (s *GradeService) GradeTask(ctx context.Context, actor models.ActorRef, taskID string, req models.GradeRequest) (*models.GradeResult, error) {
	if len(req.Grades) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no grade data provided")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	task, err := s.policy.CanManageTask(ctx, actor, taskID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(req.Grades))
	for _, entry := range req.Grades {
		ids = append(ids, entry.GradeID)
	}
	existing, err := s.grades.FindByIDs(ctx, uniqueOrdered(ids))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
	}
	byID := make(map[string]models.Grade, len(existing))
	for _, g := range existing {
		byID[g.ID] = g
	}

	result := &models.GradeResult{Failed: []models.GradeFailure{}}
	var graded []models.Grade
	for _, entry := range req.Grades {
		current, ok := byID[entry.GradeID]
		if !ok {
			result.Failed = append(result.Failed, models.GradeFailure{GradeID: entry.GradeID, Reason: "grade not found"})
			continue
		}
		if current.TaskID != task.ID {
			result.Failed = append(result.Failed, models.GradeFailure{GradeID: entry.GradeID, Reason: "grade belongs to another task"})
			continue
		}
		update, reason := s.resolve(actor, task, current, entry)
		if reason != "" {
			result.Failed = append(result.Failed, models.GradeFailure{GradeID: entry.GradeID, Reason: reason})
			continue
		}
		if err := s.grades.Update(ctx, update); err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				s.logger.Warn("failed to save grade", zap.String("grade_id", entry.GradeID), zap.Error(err))
			}
			result.Failed = append(result.Failed, models.GradeFailure{GradeID: entry.GradeID, Reason: "grade could not be saved"})
			continue
		}
		result.Updated++
		if update.Status == models.GradeStatusGraded && current.Status != models.GradeStatusGraded {
			current.Grade = update.Grade
			graded = append(graded, current)
		}
	}

	s.metrics.RecordGrades(result.Updated, len(result.Failed))
	if result.Updated > 0 {
		s.cache.InvalidateNamespaces(ctx, cache.NamespaceAnalytics, cache.NamespaceDashboard)
	}
	for _, g := range graded {
		notifyQuietly(ctx, s.notifier, s.logger, models.NotificationRequest{
			Recipients: []models.ActorRef{{Kind: models.RoleStudent, ID: g.StudentID}},
			Sender:     &actor,
			Type:       models.NotificationTaskGraded,
			Message:    fmt.Sprintf("Your work on %s has been graded: %s/%s", task.Title, formatPoints(*g.Grade), formatPoints(task.MaxPoints)),
			Link:       "/student/tasks/" + task.ID,
		})
	}
	s.logger.Info("grades saved",
		zap.String("task_id", task.ID),
		zap.String("grader", actor.ID),
		zap.Int("updated", result.Updated),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}

func (s *GradeService) resolve(actor models.ActorRef, task *models.Task, current models.Grade, entry models.GradeEntry) (models.GradeUpdate, string) {
	update := models.GradeUpdate{
		ID:         current.ID,
		Status:     models.GradeStatusPending,
		GradedBy:   actor.ID,
		GraderRole: actor.Kind,
	}
	if feedback := strings.TrimSpace(entry.Feedback); feedback != "" {
		update.Feedback = &feedback
	}
	if !entry.Grade.Valid() {
		return update, fmt.Sprintf("invalid grade %q", entry.Grade.Invalid)
	}
	if entry.Grade.Value == nil {
		return update, ""
	}
	value := *entry.Grade.Value
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return update, "grade must be a number"
	}
	if value < 0 || value > task.MaxPoints {
		return update, fmt.Sprintf("grade must be between 0 and %s", formatPoints(task.MaxPoints))
	}
	gradedAt := s.now().UTC()
	update.Grade = &value
	update.Status = models.GradeStatusGraded
	update.GradedAt = &gradedAt
	return update, ""
}

// TaskGrades returns the grade sheet of a task.
func (s *GradeService) TaskGrades(ctx context.Context, actor models.ActorRef, taskID string) (*models.Task, []models.GradeDetail, error) {
	task, err := s.policy.CanManageTask(ctx, actor, taskID)
	if err != nil {
		return nil, nil, err
	}
	grades, err := s.grades.ListByTask(ctx, taskID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
	}
	if grades == nil {
		grades = []models.GradeDetail{}
	}
	return task, grades, nil
}

// TaskSubmissions lists every enrolled student with their submission state,
// including students who have not submitted.
func (s *GradeService) TaskSubmissions(ctx context.Context, actor models.ActorRef, taskID string) (*models.Task, []models.SubmissionRosterEntry, error) {
	task, err := s.policy.CanManageTask(ctx, actor, taskID)
	if err != nil {
		return nil, nil, err
	}
	students, err := s.roster.Students(ctx, task.CourseID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrolled students")
	}
	subs, err := s.submissions.ListByTask(ctx, taskID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submissions")
	}
	grades, err := s.grades.ListByTask(ctx, taskID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
	}

	subByStudent := make(map[string]models.SubmissionDetail, len(subs))
	for _, sub := range subs {
		subByStudent[sub.StudentID] = sub
	}
	gradeByStudent := make(map[string]models.GradeDetail, len(grades))
	for _, g := range grades {
		gradeByStudent[g.StudentID] = g
	}

	entries := make([]models.SubmissionRosterEntry, 0, len(students))
	for _, st := range students {
		entry := models.SubmissionRosterEntry{Student: st, Status: models.SubmissionNotSubmitted, Attachments: models.Attachments{}}
		if sub, ok := subByStudent[st.ID]; ok {
			id := sub.ID
			submittedAt := sub.SubmittedAt
			entry.SubmissionID = &id
			entry.Status = string(sub.Status)
			entry.SubmittedAt = &submittedAt
			entry.Content = sub.Content
			if sub.Attachments != nil {
				entry.Attachments = sub.Attachments
			}
		}
		if g, ok := gradeByStudent[st.ID]; ok {
			entry.GradeStatus = g.Status
			entry.Grade = g.Grade.Grade
			entry.Feedback = g.Feedback
		}
		entries = append(entries, entry)
	}
	return task, entries, nil
}

// StudentGrades returns a student's own grades across every course.
func (s *GradeService) StudentGrades(ctx context.Context, studentID string) ([]models.StudentGrade, error) {
	grades, err := s.grades.ListForStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
	}
	if grades == nil {
		grades = []models.StudentGrade{}
	}
	return grades, nil
}

func formatPoints(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}
