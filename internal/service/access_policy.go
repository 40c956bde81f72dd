package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type policyCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	IsTaughtBy(ctx context.Context, courseID, facultyID string) (bool, error)
	IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error)
}

type policyTaskReader interface {
	FindByID(ctx context.Context, id string) (*models.Task, error)
}

// AccessPolicy answers ownership questions for every role in one place.
// Admins manage everything, faculty manage courses they teach and their tasks,
// students may only read courses they are enrolled in.
type AccessPolicy struct {
	courses policyCourseReader
	tasks   policyTaskReader
}

// NewAccessPolicy constructs AccessPolicy.
func NewAccessPolicy(courses policyCourseReader, tasks policyTaskReader) *AccessPolicy {
	return &AccessPolicy{courses: courses, tasks: tasks}
}

// CanManageCourse loads the course and checks the actor may edit it.
func (p *AccessPolicy) CanManageCourse(ctx context.Context, actor models.ActorRef, courseID string) (*models.Course, error) {
	course, err := p.loadCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	switch actor.Kind {
	case models.RoleAdmin:
		return course, nil
	case models.RoleFaculty:
		if err := p.requireTeaching(ctx, courseID, actor.ID); err != nil {
			return nil, err
		}
		return course, nil
	}
	return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to manage this course")
}

// CanViewCourse loads the course and checks the actor may read it.
func (p *AccessPolicy) CanViewCourse(ctx context.Context, actor models.ActorRef, courseID string) (*models.Course, error) {
	if actor.Kind != models.RoleStudent {
		return p.CanManageCourse(ctx, actor, courseID)
	}
	course, err := p.loadCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	enrolled, err := p.courses.IsEnrolled(ctx, courseID, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !enrolled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you are not enrolled in this course")
	}
	return course, nil
}

// CanManageTask loads the task and checks the actor may edit, grade or export it.
func (p *AccessPolicy) CanManageTask(ctx context.Context, actor models.ActorRef, taskID string) (*models.Task, error) {
	task, err := p.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	switch actor.Kind {
	case models.RoleAdmin:
		return task, nil
	case models.RoleFaculty:
		if err := p.requireTeaching(ctx, task.CourseID, actor.ID); err != nil {
			return nil, err
		}
		return task, nil
	}
	return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to manage this task")
}

// CanViewTask loads the task and checks the actor may read it.
func (p *AccessPolicy) CanViewTask(ctx context.Context, actor models.ActorRef, taskID string) (*models.Task, error) {
	if actor.Kind != models.RoleStudent {
		return p.CanManageTask(ctx, actor, taskID)
	}
	task, err := p.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	enrolled, err := p.courses.IsEnrolled(ctx, task.CourseID, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !enrolled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you are not enrolled in this course")
	}
	return task, nil
}

func (p *AccessPolicy) requireTeaching(ctx context.Context, courseID, facultyID string) error {
	teaches, err := p.courses.IsTaughtBy(ctx, courseID, facultyID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course ownership")
	}
	if !teaches {
		return appErrors.Clone(appErrors.ErrForbidden, "you do not teach this course")
	}
	return nil
}

func (p *AccessPolicy) loadCourse(ctx context.Context, id string) (*models.Course, error) {
	course, err := p.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

func (p *AccessPolicy) loadTask(ctx context.Context, id string) (*models.Task, error) {
	task, err := p.tasks.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load task")
	}
	return task, nil
}
