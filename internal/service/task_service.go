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
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type taskRepository interface {
	List(ctx context.Context, filter models.TaskFilter) ([]models.TaskRow, int, error)
	FindRow(ctx context.Context, id string) (*models.TaskRow, error)
	GradeProgress(ctx context.Context, taskIDs []string) (map[string]models.GradeProgress, error)
}

type studentGradeReader interface {
	ForStudentTasks(ctx context.Context, studentID string, taskIDs []string) (map[string]models.Grade, error)
}

type courseRoster interface {
	Students(ctx context.Context, courseID string) ([]models.UserSummary, error)
}

type taskSync interface {
	CreateTask(ctx context.Context, task *models.Task) (*models.SyncReport, error)
	UpdateTask(ctx context.Context, taskID string, apply func(*models.Task) error) (*models.Task, *models.SyncReport, error)
	DeleteTask(ctx context.Context, taskID string) (*models.SyncReport, error)
}

// TaskService manages tasks and renders them with their computed status.
type TaskService struct {
	repo      taskRepository
	grades    studentGradeReader
	roster    courseRoster
	policy    *AccessPolicy
	sync      taskSync
	notifier  Notifier
	validator *validator.Validate
	logger    *zap.Logger
	now       Clock
}

// NewTaskService constructs TaskService.
func NewTaskService(repo taskRepository, grades studentGradeReader, roster courseRoster, policy *AccessPolicy, sync taskSync, notifier Notifier, validate *validator.Validate, logger *zap.Logger, now Clock) *TaskService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &TaskService{repo: repo, grades: grades, roster: roster, policy: policy, sync: sync, notifier: notifier, validator: validate, logger: logger, now: now}
}

// List returns tasks visible to actor. Staff see grading progress, students their own grade.
func (s *TaskService) List(ctx context.Context, actor models.ActorRef, filter models.TaskFilter) ([]models.TaskView, *models.Pagination, error) {
	switch actor.Kind {
	case models.RoleFaculty:
		filter.FacultyID = actor.ID
	case models.RoleStudent:
		filter.StudentID = actor.ID
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tasks")
	}
	views, err := s.render(ctx, actor, rows)
	if err != nil {
		return nil, nil, err
	}
	page, limit, _ := models.PageWindow(filter.Page, filter.PageSize, 10)
	return views, models.NewPagination(page, limit, total), nil
}

// Details returns one task visible to actor.
func (s *TaskService) Details(ctx context.Context, actor models.ActorRef, id string) (*models.TaskView, error) {
	if _, err := s.policy.CanViewTask(ctx, actor, id); err != nil {
		return nil, err
	}
	row, err := s.repo.FindRow(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load task")
	}
	views, err := s.render(ctx, actor, []models.TaskRow{*row})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// Create publishes a task and seeds a Pending grade for every enrolled student.
func (s *TaskService) Create(ctx context.Context, actor models.ActorRef, req models.TaskRequest) (*models.TaskView, *models.SyncReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid task payload")
	}
	if req.MaxPoints == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "max points is required")
	}
	if _, err := s.policy.CanManageCourse(ctx, actor, req.CourseID); err != nil {
		return nil, nil, err
	}

	task := &models.Task{}
	if actor.Kind == models.RoleFaculty {
		task.CreatedBy = actor.ID
	}
	if err := s.applyRequest(task, req); err != nil {
		return nil, nil, err
	}

	report, err := s.sync.CreateTask(ctx, task)
	if err != nil {
		return nil, nil, err
	}
	s.announce(ctx, actor, task, models.NotificationNewTask, fmt.Sprintf("New task posted: %s", task.Title))

	view, err := s.Details(ctx, actor, task.ID)
	if err != nil {
		return nil, nil, err
	}
	return view, report, nil
}

// Update edits a task. Moving it to another course drops its grades and reseeds them.
func (s *TaskService) Update(ctx context.Context, actor models.ActorRef, id string, req models.TaskRequest) (*models.TaskView, *models.SyncReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid task payload")
	}
	current, err := s.policy.CanManageTask(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}
	if req.CourseID != current.CourseID {
		if _, err := s.policy.CanManageCourse(ctx, actor, req.CourseID); err != nil {
			return nil, nil, err
		}
	}

	updated, report, err := s.sync.UpdateTask(ctx, id, func(task *models.Task) error {
		return s.applyRequest(task, req)
	})
	if err != nil {
		return nil, nil, err
	}
	s.announce(ctx, actor, updated, models.NotificationTaskEdited, fmt.Sprintf("Task updated: %s", updated.Title))

	view, err := s.Details(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}
	return view, report, nil
}

// Delete removes a task with its grades and submissions.
func (s *TaskService) Delete(ctx context.Context, actor models.ActorRef, id string) (*models.SyncReport, error) {
	if _, err := s.policy.CanManageTask(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.sync.DeleteTask(ctx, id)
}

func (s *TaskService) applyRequest(task *models.Task, req models.TaskRequest) error {
	publish := req.PublishDate
	if publish.IsZero() {
		if task.PublishDate.IsZero() {
			publish = s.now()
		} else {
			publish = task.PublishDate
		}
	}
	if req.DueDate.IsZero() {
		return appErrors.Clone(appErrors.ErrValidation, "due date is required")
	}
	if req.DueDate.Before(publish) {
		return appErrors.Clone(appErrors.ErrValidation, "due date must be on or after the publish date")
	}

	task.Title = strings.TrimSpace(req.Title)
	task.Description = req.Description
	task.Type = req.Type
	if task.Type == "" {
		task.Type = models.TaskTypeAssignment
	}
	task.Photo = req.Photo
	task.CourseID = req.CourseID
	task.PublishDate = publish.UTC()
	task.DueDate = req.DueDate.UTC()
	if req.MaxPoints != nil {
		task.MaxPoints = *req.MaxPoints
	}
	if req.Attachments != nil {
		task.Attachments = models.Attachments(req.Attachments)
	}
	if task.Attachments == nil {
		task.Attachments = models.Attachments{}
	}
	return nil
}

func (s *TaskService) announce(ctx context.Context, actor models.ActorRef, task *models.Task, kind models.NotificationType, message string) {
	students, err := s.roster.Students(ctx, task.CourseID)
	if err != nil {
		s.logger.Warn("failed to resolve task recipients", zap.String("task_id", task.ID), zap.Error(err))
		return
	}
	recipients := make([]models.ActorRef, 0, len(students))
	for _, st := range students {
		recipients = append(recipients, models.ActorRef{Kind: models.RoleStudent, ID: st.ID})
	}
	notifyQuietly(ctx, s.notifier, s.logger, models.NotificationRequest{
		Recipients: recipients,
		Sender:     &actor,
		Type:       kind,
		Message:    message,
		Link:       "/student/tasks/" + task.ID,
	})
}

func (s *TaskService) render(ctx context.Context, actor models.ActorRef, rows []models.TaskRow) ([]models.TaskView, error) {
	now := s.now()
	views := make([]models.TaskView, 0, len(rows))
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		views = append(views, row.View(now))
		ids = append(ids, row.ID)
	}
	if len(ids) == 0 {
		return views, nil
	}

	if actor.Kind == models.RoleStudent {
		mine, err := s.grades.ForStudentTasks(ctx, actor.ID, ids)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
		}
		for i := range views {
			if g, ok := mine[views[i].ID]; ok {
				grade := g
				views[i].MyGrade = &grade
			}
		}
		return views, nil
	}

	progress, err := s.repo.GradeProgress(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grading progress")
	}
	for i := range views {
		p := progress[views[i].ID]
		views[i].Grading = &p
	}
	return views, nil
}
