package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/lms-api/internal/models"
)

// GradeRepository reads and grades placeholder rows. Placeholder creation and
// deletion belong to EnrollmentTx.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository creates a new grade repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// ListByTask returns every grade of a task joined with the student and submission.
func (r *GradeRepository) ListByTask(ctx context.Context, taskID string) ([]models.GradeDetail, error) {
	query := "SELECT " + prefixed("g", gradeColumns) + `,
        u.first_name AS student_first_name, u.last_name AS student_last_name, u.roll_number AS student_roll_number,
        s.submitted_at, s.status AS submission_status
        FROM grades g
        JOIN users u ON u.id = g.student_id
        LEFT JOIN submissions s ON s.id = g.submission_id
        WHERE g.task_id = $1
        ORDER BY u.roll_number NULLS LAST, u.first_name, u.last_name`
	var grades []models.GradeDetail
	if err := r.db.SelectContext(ctx, &grades, query, taskID); err != nil {
		return nil, fmt.Errorf("list task grades: %w", err)
	}
	return grades, nil
}

// FindByIDs loads grades by id. Unknown ids are skipped.
func (r *GradeRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Grade, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var grades []models.Grade
	if err := r.db.SelectContext(ctx, &grades, "SELECT "+gradeColumns+" FROM grades WHERE id = ANY($1)", pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find grades by ids: %w", err)
	}
	return grades, nil
}

// FindByTaskStudent returns the placeholder for a (task, student) slot.
func (r *GradeRepository) FindByTaskStudent(ctx context.Context, taskID, studentID string) (*models.Grade, error) {
	var grade models.Grade
	query := "SELECT " + gradeColumns + " FROM grades WHERE task_id = $1 AND student_id = $2"
	if err := r.db.GetContext(ctx, &grade, query, taskID, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find grade: %w", err)
	}
	return &grade, nil
}

// Update applies a grading decision to one row.
func (r *GradeRepository) Update(ctx context.Context, update models.GradeUpdate) error {
	const query = `UPDATE grades SET grade = $2, status = $3, feedback = $4, graded_by = $5, grader_role = $6, graded_at = $7, updated_at = $8 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, update.ID, update.Grade, update.Status, update.Feedback, update.GradedBy, update.GraderRole, update.GradedAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update grade: %w", err)
	}
	if affected(res) == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListForStudent returns a student's grades with task and course context, newest due date first.
func (r *GradeRepository) ListForStudent(ctx context.Context, studentID string) ([]models.StudentGrade, error) {
	query := "SELECT " + prefixed("g", gradeColumns) + `,
        t.title AS task_title, t.max_points, t.due_date, c.id AS course_id, c.course_code, c.title AS course_title
        FROM grades g
        JOIN tasks t ON t.id = g.task_id
        JOIN courses c ON c.id = t.course_id
        WHERE g.student_id = $1
        ORDER BY t.due_date DESC`
	var grades []models.StudentGrade
	if err := r.db.SelectContext(ctx, &grades, query, studentID); err != nil {
		return nil, fmt.Errorf("list student grades: %w", err)
	}
	return grades, nil
}

// ForStudentTasks maps task id to the student's grade for the given tasks.
func (r *GradeRepository) ForStudentTasks(ctx context.Context, studentID string, taskIDs []string) (map[string]models.Grade, error) {
	out := make(map[string]models.Grade, len(taskIDs))
	if len(taskIDs) == 0 {
		return out, nil
	}
	var grades []models.Grade
	query := "SELECT " + gradeColumns + " FROM grades WHERE student_id = $1 AND task_id = ANY($2)"
	if err := r.db.SelectContext(ctx, &grades, query, studentID, pq.Array(taskIDs)); err != nil {
		return nil, fmt.Errorf("list student task grades: %w", err)
	}
	for _, g := range grades {
		out[g.TaskID] = g
	}
	return out, nil
}
