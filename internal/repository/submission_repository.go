package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-api/internal/models"
)

const submissionColumns = "id, task_id, student_id, course_id, content, attachments, status, submitted_at, created_at, updated_at"

// SubmissionCheck inspects the locked grade slot before a submission is written.
// grade is nil when no placeholder exists yet.
type SubmissionCheck func(grade *models.Grade) error

// ErrNotEnrolled is returned by Submit when the student no longer reaches the course through a batch.
var ErrNotEnrolled = errors.New("student is not enrolled in the course")

// SubmissionRepository persists student submissions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// ListByTask returns the submissions of a task with student details.
func (r *SubmissionRepository) ListByTask(ctx context.Context, taskID string) ([]models.SubmissionDetail, error) {
	query := "SELECT " + prefixed("s", submissionColumns) + `,
        u.first_name AS student_first_name, u.last_name AS student_last_name, u.roll_number AS student_roll_number
        FROM submissions s
        JOIN users u ON u.id = s.student_id
        WHERE s.task_id = $1
        ORDER BY s.submitted_at DESC`
	var subs []models.SubmissionDetail
	if err := r.db.SelectContext(ctx, &subs, query, taskID); err != nil {
		return nil, fmt.Errorf("list task submissions: %w", err)
	}
	return subs, nil
}

// FindByTaskStudent returns a student's submission for a task.
func (r *SubmissionRepository) FindByTaskStudent(ctx context.Context, taskID, studentID string) (*models.Submission, error) {
	var sub models.Submission
	query := "SELECT " + submissionColumns + " FROM submissions WHERE task_id = $1 AND student_id = $2"
	if err := r.db.GetContext(ctx, &sub, query, taskID, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find submission: %w", err)
	}
	return &sub, nil
}

// Submit share-locks the course, re-checks enrollment, locks the grade slot, runs check,
// then upserts the submission and links the grade to it with status Pending.
// Everything happens in one transaction.
func (r *SubmissionRepository) Submit(ctx context.Context, sub *models.Submission, check SubmissionCheck) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin submission tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var courseID string
	if err = tx.GetContext(ctx, &courseID, "SELECT id FROM courses WHERE id = $1 FOR SHARE", sub.CourseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrNotEnrolled
			return err
		}
		return fmt.Errorf("lock course: %w", err)
	}
	var enrolled bool
	if err = tx.GetContext(ctx, &enrolled, enrolledQuery, sub.CourseID, sub.StudentID); err != nil {
		return fmt.Errorf("check enrollment: %w", err)
	}
	if !enrolled {
		err = ErrNotEnrolled
		return err
	}

	var grade *models.Grade
	var locked models.Grade
	lockQuery := "SELECT " + gradeColumns + " FROM grades WHERE task_id = $1 AND student_id = $2 FOR UPDATE"
	switch lockErr := tx.GetContext(ctx, &locked, lockQuery, sub.TaskID, sub.StudentID); {
	case lockErr == nil:
		grade = &locked
	case errors.Is(lockErr, sql.ErrNoRows):
	default:
		return fmt.Errorf("lock grade: %w", lockErr)
	}
	if check != nil {
		if err = check(grade); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.Attachments == nil {
		sub.Attachments = models.Attachments{}
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = now
	}
	sub.CreatedAt, sub.UpdatedAt = now, now

	const upsertSubmission = `INSERT INTO submissions (id, task_id, student_id, course_id, content, attachments, status, submitted_at, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
        ON CONFLICT (task_id, student_id) DO UPDATE SET content = EXCLUDED.content, attachments = EXCLUDED.attachments,
            status = EXCLUDED.status, submitted_at = EXCLUDED.submitted_at, course_id = EXCLUDED.course_id, updated_at = EXCLUDED.updated_at
        RETURNING id, created_at`
	row := tx.QueryRowxContext(ctx, upsertSubmission, sub.ID, sub.TaskID, sub.StudentID, sub.CourseID, sub.Content, sub.Attachments, sub.Status, sub.SubmittedAt, now)
	if err = row.Scan(&sub.ID, &sub.CreatedAt); err != nil {
		return fmt.Errorf("upsert submission: %w", err)
	}

	const upsertGrade = `INSERT INTO grades (id, task_id, student_id, submission_id, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, 'Pending', $5, $5)
        ON CONFLICT (task_id, student_id) DO UPDATE SET submission_id = EXCLUDED.submission_id, status = 'Pending', updated_at = EXCLUDED.updated_at`
	if _, err = tx.ExecContext(ctx, upsertGrade, uuid.NewString(), sub.TaskID, sub.StudentID, sub.ID, now); err != nil {
		return fmt.Errorf("link grade to submission: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit submission tx: %w", err)
	}
	return nil
}
