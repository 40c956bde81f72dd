package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
)

// percentExpr averages grades as a percentage of the task's max points.
const percentExpr = "COALESCE(ROUND(AVG(g.grade * 100 / NULLIF(t.max_points, 0))::numeric, 2), 0)"

const gradeScopeFrom = ` FROM grades g
        JOIN tasks t ON t.id = g.task_id
        JOIN courses c ON c.id = t.course_id
        WHERE 1=1`

// AnalyticsRepository exposes read-optimised queries for analytics and dashboards.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository instantiates the repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// analyticsScope appends the filter conditions. Queries alias courses as c.
func analyticsScope(filter models.AnalyticsFilter, timeColumn string, args *[]interface{}) string {
	var b strings.Builder
	if filter.From != nil {
		*args = append(*args, *filter.From)
		b.WriteString(fmt.Sprintf(" AND %s >= $%d", timeColumn, len(*args)))
	}
	if filter.To != nil {
		*args = append(*args, *filter.To)
		b.WriteString(fmt.Sprintf(" AND %s <= $%d", timeColumn, len(*args)))
	}
	if filter.Department != "" {
		*args = append(*args, filter.Department)
		b.WriteString(fmt.Sprintf(" AND c.department = $%d", len(*args)))
	}
	if filter.FacultyID != "" {
		*args = append(*args, filter.FacultyID)
		b.WriteString(fmt.Sprintf(" AND EXISTS (SELECT 1 FROM course_faculty cf WHERE cf.course_id = c.id AND cf.faculty_id = $%d)", len(*args)))
	}
	return b.String()
}

// KPIs returns submission and grading totals.
func (r *AnalyticsRepository) KPIs(ctx context.Context, filter models.AnalyticsFilter) (models.AnalyticsKPIs, error) {
	var args []interface{}
	query := `SELECT COUNT(g.submission_id) AS total_submissions,
        COUNT(*) FILTER (WHERE g.status = 'Graded') AS total_graded,
        ` + percentExpr + ` AS average_score` + gradeScopeFrom + analyticsScope(filter, "g.created_at", &args)
	var kpis models.AnalyticsKPIs
	if err := r.db.GetContext(ctx, &kpis, query, args...); err != nil {
		return kpis, fmt.Errorf("query analytics kpis: %w", err)
	}
	return kpis, nil
}

// SubmissionTrend counts submissions per day.
func (r *AnalyticsRepository) SubmissionTrend(ctx context.Context, filter models.AnalyticsFilter) ([]models.DailyCount, error) {
	var args []interface{}
	query := `SELECT to_char(date_trunc('day', s.submitted_at), 'YYYY-MM-DD') AS day, COUNT(*) AS count
        FROM submissions s
        JOIN courses c ON c.id = s.course_id
        WHERE 1=1` + analyticsScope(filter, "s.submitted_at", &args) + `
        GROUP BY day ORDER BY day`
	var trend []models.DailyCount
	if err := r.db.SelectContext(ctx, &trend, query, args...); err != nil {
		return nil, fmt.Errorf("query submission trend: %w", err)
	}
	return trend, nil
}

// CoursePerformance ranks courses by average grade percentage.
func (r *AnalyticsRepository) CoursePerformance(ctx context.Context, filter models.AnalyticsFilter, limit int) ([]models.CoursePerformance, error) {
	var args []interface{}
	scope := analyticsScope(filter, "g.created_at", &args)
	args = append(args, limit)
	query := `SELECT c.id AS course_id, c.title AS course_name, ` + percentExpr + ` AS average_grade,
        COUNT(g.submission_id) AS submission_count` + gradeScopeFrom + scope + fmt.Sprintf(`
        GROUP BY c.id, c.title ORDER BY average_grade DESC, c.title LIMIT $%d`, len(args))
	var rows []models.CoursePerformance
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query course performance: %w", err)
	}
	return rows, nil
}

// FacultyPerformance ranks task creators by the average grade of their tasks.
func (r *AnalyticsRepository) FacultyPerformance(ctx context.Context, filter models.AnalyticsFilter, limit int) ([]models.FacultyPerformance, error) {
	var args []interface{}
	scope := analyticsScope(filter, "t.created_at", &args)
	args = append(args, limit)
	query := `SELECT u.id AS faculty_id, u.first_name || ' ' || u.last_name AS faculty_name,
        ` + percentExpr + ` AS average_grade,
        COUNT(DISTINCT t.id) AS task_count,
        COUNT(*) FILTER (WHERE g.status = 'Graded') AS graded_count
        FROM grades g
        JOIN tasks t ON t.id = g.task_id
        JOIN courses c ON c.id = t.course_id
        JOIN users u ON u.id = t.created_by
        WHERE 1=1` + scope + fmt.Sprintf(`
        GROUP BY u.id, u.first_name, u.last_name ORDER BY average_grade DESC, faculty_name LIMIT $%d`, len(args))
	var rows []models.FacultyPerformance
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query faculty performance: %w", err)
	}
	return rows, nil
}

// BatchPerformance aggregates grades per batch through the batch's course links.
func (r *AnalyticsRepository) BatchPerformance(ctx context.Context, filter models.AnalyticsFilter) ([]models.BatchPerformance, error) {
	var args []interface{}
	query := `SELECT b.id AS batch_id, b.name AS batch_name, ` + percentExpr + ` AS average_grade,
        COUNT(g.submission_id) AS submission_count,
        COUNT(DISTINCT g.student_id) AS student_count
        FROM grades g
        JOIN tasks t ON t.id = g.task_id
        JOIN courses c ON c.id = t.course_id
        JOIN course_batches cb ON cb.course_id = c.id
        JOIN batch_students bs ON bs.batch_id = cb.batch_id AND bs.student_id = g.student_id
        JOIN batches b ON b.id = cb.batch_id
        WHERE 1=1` + analyticsScope(filter, "g.created_at", &args) + `
        GROUP BY b.id, b.name ORDER BY average_grade DESC, b.name`
	var rows []models.BatchPerformance
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query batch performance: %w", err)
	}
	return rows, nil
}

// AdminTotals returns the headline counters; a task is active when now lies in its window.
func (r *AnalyticsRepository) AdminTotals(ctx context.Context, now time.Time) (dto.AdminTotals, error) {
	const query = `SELECT
        (SELECT COUNT(*) FROM users WHERE role = 'STUDENT') AS students,
        (SELECT COUNT(*) FROM users WHERE role = 'FACULTY') AS faculty,
        (SELECT COUNT(*) FROM courses) AS courses,
        (SELECT COUNT(*) FROM batches) AS batches,
        (SELECT COUNT(*) FROM tasks WHERE publish_date <= $1 AND due_date >= $1) AS active_tasks,
        (SELECT COUNT(*) FROM grades) AS grades,
        (SELECT COUNT(*) FROM grades WHERE status = 'Graded') AS graded`
	var totals dto.AdminTotals
	if err := r.db.GetContext(ctx, &totals, query, now); err != nil {
		return totals, fmt.Errorf("query admin totals: %w", err)
	}
	return totals, nil
}

// MonthlyStats counts tasks, students and faculty created in each month of year.
func (r *AnalyticsRepository) MonthlyStats(ctx context.Context, year int) ([]dto.MonthlyStat, error) {
	const query = `SELECT m.month,
        (SELECT COUNT(*) FROM tasks WHERE EXTRACT(YEAR FROM created_at) = $1 AND EXTRACT(MONTH FROM created_at) = m.month) AS tasks,
        (SELECT COUNT(*) FROM users WHERE role = 'STUDENT' AND EXTRACT(YEAR FROM created_at) = $1 AND EXTRACT(MONTH FROM created_at) = m.month) AS students,
        (SELECT COUNT(*) FROM users WHERE role = 'FACULTY' AND EXTRACT(YEAR FROM created_at) = $1 AND EXTRACT(MONTH FROM created_at) = m.month) AS faculty
        FROM generate_series(1, 12) AS m(month)
        ORDER BY m.month`
	var stats []dto.MonthlyStat
	if err := r.db.SelectContext(ctx, &stats, query, year); err != nil {
		return nil, fmt.Errorf("query monthly stats: %w", err)
	}
	return stats, nil
}

// TopStudents ranks students by total graded score.
func (r *AnalyticsRepository) TopStudents(ctx context.Context, limit int) ([]dto.TopStudent, error) {
	const query = `SELECT u.id AS student_id, u.first_name || ' ' || u.last_name AS name, u.roll_number,
        COALESCE(SUM(g.grade), 0) AS total_score, COUNT(*) AS tasks_completed
        FROM grades g
        JOIN users u ON u.id = g.student_id
        WHERE g.status = 'Graded'
        GROUP BY u.id, u.first_name, u.last_name, u.roll_number
        ORDER BY total_score DESC, name
        LIMIT $1`
	var students []dto.TopStudent
	if err := r.db.SelectContext(ctx, &students, query, limit); err != nil {
		return nil, fmt.Errorf("query top students: %w", err)
	}
	return students, nil
}

// FacultyKPIs returns the faculty dashboard counters over the courses they teach.
func (r *AnalyticsRepository) FacultyKPIs(ctx context.Context, facultyID string, now time.Time) (dto.FacultyKPIs, error) {
	const query = `WITH mine AS (SELECT course_id FROM course_faculty WHERE faculty_id = $1)
        SELECT
        (SELECT COUNT(*) FROM mine) AS my_courses,
        (SELECT COUNT(DISTINCT bs.student_id) FROM course_batches cb JOIN batch_students bs ON bs.batch_id = cb.batch_id WHERE cb.course_id IN (SELECT course_id FROM mine)) AS total_students,
        (SELECT COUNT(*) FROM tasks WHERE course_id IN (SELECT course_id FROM mine) AND publish_date <= $2 AND due_date >= $2) AS active_assignments,
        (SELECT COUNT(*) FROM grades g JOIN tasks t ON t.id = g.task_id WHERE t.course_id IN (SELECT course_id FROM mine) AND g.submission_id IS NOT NULL AND g.status = 'Pending') AS pending_grading,
        (SELECT ` + percentExpr + ` FROM grades g JOIN tasks t ON t.id = g.task_id WHERE t.course_id IN (SELECT course_id FROM mine) AND g.status = 'Graded') AS average_grade`
	var kpis dto.FacultyKPIs
	if err := r.db.GetContext(ctx, &kpis, query, facultyID, now); err != nil {
		return kpis, fmt.Errorf("query faculty kpis: %w", err)
	}
	return kpis, nil
}

// RecentSubmissions lists the latest submissions on courses the faculty teaches.
func (r *AnalyticsRepository) RecentSubmissions(ctx context.Context, facultyID string, limit int) ([]dto.RecentSubmission, error) {
	const query = `SELECT s.id AS submission_id, t.id AS task_id, t.title AS task_title,
        u.first_name || ' ' || u.last_name AS student_name, s.submitted_at
        FROM submissions s
        JOIN tasks t ON t.id = s.task_id
        JOIN users u ON u.id = s.student_id
        WHERE EXISTS (SELECT 1 FROM course_faculty cf WHERE cf.course_id = t.course_id AND cf.faculty_id = $1)
        ORDER BY s.submitted_at DESC
        LIMIT $2`
	var rows []dto.RecentSubmission
	if err := r.db.SelectContext(ctx, &rows, query, facultyID, limit); err != nil {
		return nil, fmt.Errorf("query recent submissions: %w", err)
	}
	return rows, nil
}

// StudentKPIs returns the student dashboard counters.
func (r *AnalyticsRepository) StudentKPIs(ctx context.Context, studentID string, now time.Time) (dto.StudentKPIs, error) {
	const query = `SELECT
        (SELECT COUNT(DISTINCT cb.course_id) FROM course_batches cb JOIN batch_students bs ON bs.batch_id = cb.batch_id WHERE bs.student_id = $1) AS enrolled_courses,
        (SELECT COUNT(*) FROM grades g JOIN tasks t ON t.id = g.task_id WHERE g.student_id = $1 AND g.submission_id IS NULL AND t.publish_date <= $2 AND t.due_date >= $2) AS pending_assignments,
        (SELECT COUNT(*) FROM grades WHERE student_id = $1 AND submission_id IS NOT NULL) AS completed_tasks,
        (SELECT ` + percentExpr + ` FROM grades g JOIN tasks t ON t.id = g.task_id WHERE g.student_id = $1 AND g.status = 'Graded') AS average_score`
	var kpis dto.StudentKPIs
	if err := r.db.GetContext(ctx, &kpis, query, studentID, now); err != nil {
		return kpis, fmt.Errorf("query student kpis: %w", err)
	}
	return kpis, nil
}
