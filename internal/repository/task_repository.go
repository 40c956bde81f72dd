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

const taskRowFrom = ` FROM tasks t
        JOIN courses c ON c.id = t.course_id
        LEFT JOIN users u ON u.id = t.created_by`

// TaskRepository reads tasks. Writes that affect grade placeholders go through EnrollmentTx.
type TaskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository constructs the repository.
func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func taskRowSelect() string {
	return "SELECT " + prefixed("t", taskColumns) + ", c.course_code, c.title AS course_title, COALESCE(u.first_name || ' ' || u.last_name, '') AS creator_name" + taskRowFrom
}

// List returns task rows matching filter with the total count.
func (r *TaskRepository) List(ctx context.Context, filter models.TaskFilter) ([]models.TaskRow, int, error) {
	where := " WHERE 1=1"
	var args []interface{}
	if filter.Search != "" {
		args = append(args, likePattern(filter.Search))
		where += fmt.Sprintf(" AND (LOWER(t.title) LIKE $%d OR LOWER(c.title) LIKE $%d OR LOWER(c.course_code) LIKE $%d)", len(args), len(args), len(args))
	}
	if filter.CourseID != "" {
		args = append(args, filter.CourseID)
		where += fmt.Sprintf(" AND t.course_id = $%d", len(args))
	}
	if filter.CreatedBy != "" {
		args = append(args, filter.CreatedBy)
		where += fmt.Sprintf(" AND t.created_by = $%d", len(args))
	}
	if filter.FacultyID != "" {
		args = append(args, filter.FacultyID)
		where += fmt.Sprintf(" AND EXISTS (SELECT 1 FROM course_faculty cf WHERE cf.course_id = t.course_id AND cf.faculty_id = $%d)", len(args))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		where += fmt.Sprintf(" AND EXISTS (SELECT 1 FROM course_batches cb JOIN batch_students bs ON bs.batch_id = cb.batch_id WHERE cb.course_id = t.course_id AND bs.student_id = $%d)", len(args))
	}

	_, limit, offset := models.PageWindow(filter.Page, filter.PageSize, 10)
	query := fmt.Sprintf("%s%s ORDER BY t.due_date DESC LIMIT %d OFFSET %d", taskRowSelect(), where, limit, offset)

	var rows []models.TaskRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*)"+taskRowFrom+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}
	return rows, total, nil
}

// FindRow returns a task joined with its course and creator.
func (r *TaskRepository) FindRow(ctx context.Context, id string) (*models.TaskRow, error) {
	var row models.TaskRow
	if err := r.db.GetContext(ctx, &row, taskRowSelect()+" WHERE t.id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find task: %w", err)
	}
	return &row, nil
}

// FindByID returns the bare task.
func (r *TaskRepository) FindByID(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	if err := r.db.GetContext(ctx, &task, "SELECT "+taskColumns+" FROM tasks WHERE id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find task: %w", err)
	}
	return &task, nil
}

// GradeProgress summarises grading for each task keyed by task id.
func (r *TaskRepository) GradeProgress(ctx context.Context, taskIDs []string) (map[string]models.GradeProgress, error) {
	out := make(map[string]models.GradeProgress, len(taskIDs))
	if len(taskIDs) == 0 {
		return out, nil
	}
	type row struct {
		TaskID string `db:"task_id"`
		models.GradeProgress
	}
	const query = `SELECT task_id, COUNT(*) AS total,
        COUNT(submission_id) AS submitted,
        COUNT(*) FILTER (WHERE status = 'Graded') AS graded
        FROM grades WHERE task_id = ANY($1) GROUP BY task_id`
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(taskIDs)); err != nil {
		return nil, fmt.Errorf("grade progress: %w", err)
	}
	for _, rw := range rows {
		out[rw.TaskID] = rw.GradeProgress
	}
	return out, nil
}

// Upcoming returns published tasks due after now for a student's courses, soonest first.
func (r *TaskRepository) Upcoming(ctx context.Context, studentID string, now time.Time, limit int) ([]models.TaskRow, error) {
	query := taskRowSelect() + ` WHERE t.due_date >= $2 AND t.publish_date <= $2
        AND EXISTS (SELECT 1 FROM course_batches cb JOIN batch_students bs ON bs.batch_id = cb.batch_id WHERE cb.course_id = t.course_id AND bs.student_id = $1)
        ORDER BY t.due_date ASC LIMIT $3`
	var rows []models.TaskRow
	if err := r.db.SelectContext(ctx, &rows, query, studentID, now, limit); err != nil {
		return nil, fmt.Errorf("list upcoming tasks: %w", err)
	}
	return rows, nil
}

// DueForReminder returns published tasks due within (now, until] that have not been reminded,
// each with the students whose grade is still pending without a submission.
func (r *TaskRepository) DueForReminder(ctx context.Context, now, until time.Time) ([]models.DueTask, error) {
	type row struct {
		TaskID   string         `db:"task_id"`
		Title    string         `db:"title"`
		DueDate  time.Time      `db:"due_date"`
		Students pq.StringArray `db:"students"`
	}
	const query = `SELECT t.id AS task_id, t.title, t.due_date,
        ARRAY(SELECT g.student_id::text FROM grades g WHERE g.task_id = t.id AND g.status = 'Pending' AND g.submission_id IS NULL ORDER BY g.student_id) AS students
        FROM tasks t
        WHERE t.reminder_sent_at IS NULL AND t.publish_date <= $1 AND t.due_date > $1 AND t.due_date <= $2
        ORDER BY t.due_date`
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, now, until); err != nil {
		return nil, fmt.Errorf("list tasks due for reminder: %w", err)
	}
	out := make([]models.DueTask, 0, len(rows))
	for _, rw := range rows {
		out = append(out, models.DueTask{TaskID: rw.TaskID, Title: rw.Title, DueDate: rw.DueDate, StudentIDs: []string(rw.Students)})
	}
	return out, nil
}

// MarkReminderSent records that a task's deadline reminder went out.
func (r *TaskRepository) MarkReminderSent(ctx context.Context, taskID string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE tasks SET reminder_sent_at = $2 WHERE id = $1`, taskID, at); err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	return nil
}
