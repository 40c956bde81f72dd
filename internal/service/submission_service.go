package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/repository"
	"github.com/noah-isme/lms-api/pkg/cache"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

// maxSubmissionAttachments bounds the files attached to one submission.
const maxSubmissionAttachments = 10

type submissionRepository interface {
	FindByTaskStudent(ctx context.Context, taskID, studentID string) (*models.Submission, error)
	Submit(ctx context.Context, sub *models.Submission, check repository.SubmissionCheck) error
}

type submissionTaskReader interface {
	FindByID(ctx context.Context, id string) (*models.Task, error)
}

type submissionCourseReader interface {
	IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error)
	Faculty(ctx context.Context, courseIDs []string) (map[string][]models.UserSummary, error)
}

type gradeSlotReader interface {
	FindByTaskStudent(ctx context.Context, taskID, studentID string) (*models.Grade, error)
}

// SubmissionService accepts student work for tasks.
type SubmissionService struct {
	repo      submissionRepository
	tasks     submissionTaskReader
	courses   submissionCourseReader
	grades    gradeSlotReader
	settings  settingsReader
	notifier  Notifier
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	now       Clock
}

// NewSubmissionService constructs SubmissionService.
func NewSubmissionService(repo submissionRepository, tasks submissionTaskReader, courses submissionCourseReader, grades gradeSlotReader, settings settingsReader, notifier Notifier, cacheSvc *CacheService, validate *validator.Validate, logger *zap.Logger, now Clock) *SubmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &SubmissionService{
		repo:      repo,
		tasks:     tasks,
		courses:   courses,
		grades:    grades,
		settings:  settings,
		notifier:  notifier,
		cache:     cacheSvc,
		validator: validate,
		logger:    logger,
		now:       now,
	}
}

// Submit stores the student's work for a task. A resubmission replaces the previous
// content and resets the grade to Pending unless the task has already been graded.
func (s *SubmissionService) Submit(ctx context.Context, student models.ActorRef, taskID string, req models.SubmitRequest) (*models.SubmitResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load task")
	}
	enrolled, err := s.courses.IsEnrolled(ctx, task.CourseID, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !enrolled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "You are not enrolled in this course.")
	}

	now := s.now().UTC()
	// Late work is refused even when allowLateSubmissions is on.
	if now.After(task.DueDate) {
		return nil, appErrors.Clone(appErrors.ErrDeadlinePassed, "")
	}
	if err := s.checkAttachments(ctx, req.Attachments); err != nil {
		return nil, err
	}

	sub := &models.Submission{
		TaskID:      task.ID,
		StudentID:   student.ID,
		CourseID:    task.CourseID,
		Attachments: models.Attachments(req.Attachments),
		Status:      models.SubmissionOnTime,
		SubmittedAt: now,
	}
	if content := strings.TrimSpace(req.Content); content != "" {
		sub.Content = &content
	}
	for i := range sub.Attachments {
		if sub.Attachments[i].UploadedAt == nil {
			sub.Attachments[i].UploadedAt = &now
		}
	}

	resubmitted := false
	err = s.repo.Submit(ctx, sub, func(grade *models.Grade) error {
		if grade == nil {
			return nil
		}
		if grade.Status == models.GradeStatusGraded {
			return appErrors.Clone(appErrors.ErrAlreadyGraded, "")
		}
		resubmitted = grade.SubmissionID != nil
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotEnrolled) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "You are not enrolled in this course.")
		}
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save submission")
	}

	result := &models.SubmitResult{Submission: *sub, Resubmitted: resubmitted}
	if grade, err := s.grades.FindByTaskStudent(ctx, task.ID, student.ID); err == nil {
		result.Grade = grade
	} else {
		s.logger.Warn("failed to reload grade after submission", zap.String("task_id", task.ID), zap.Error(err))
	}

	s.cache.InvalidateNamespaces(ctx, cache.NamespaceAnalytics, cache.NamespaceDashboard)
	s.notifyFaculty(ctx, student, task)
	s.logger.Info("submission received",
		zap.String("task_id", task.ID),
		zap.String("student_id", student.ID),
		zap.Bool("resubmitted", resubmitted),
	)
	return result, nil
}

// MySubmission returns the student's submission for a task.
func (s *SubmissionService) MySubmission(ctx context.Context, studentID, taskID string) (*models.Submission, error) {
	sub, err := s.repo.FindByTaskStudent(ctx, taskID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	return sub, nil
}

func (s *SubmissionService) checkAttachments(ctx context.Context, attachments []models.Attachment) error {
	if len(attachments) == 0 {
		return nil
	}
	if len(attachments) > maxSubmissionAttachments {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d attachments are allowed", maxSubmissionAttachments))
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load settings")
	}
	for _, a := range attachments {
		if !fileTypeAllowed(settings, a.FileName) {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file type of %s is not allowed", a.FileName))
		}
	}
	return nil
}

func (s *SubmissionService) notifyFaculty(ctx context.Context, student models.ActorRef, task *models.Task) {
	faculty, err := s.courses.Faculty(ctx, []string{task.CourseID})
	if err != nil {
		s.logger.Warn("failed to resolve course faculty", zap.String("course_id", task.CourseID), zap.Error(err))
		return
	}
	recipients := make([]models.ActorRef, 0, len(faculty[task.CourseID]))
	for _, f := range faculty[task.CourseID] {
		recipients = append(recipients, models.ActorRef{Kind: models.RoleFaculty, ID: f.ID})
	}
	notifyQuietly(ctx, s.notifier, s.logger, models.NotificationRequest{
		Recipients: recipients,
		Sender:     &student,
		Type:       models.NotificationSubmissionReceived,
		Message:    fmt.Sprintf("New submission received for %s", task.Title),
		Link:       "/faculty/tasks/" + task.ID,
	})
}
