package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/lms-api/internal/models"
)

// CourseRepository reads courses and their derived rosters. Writes go through EnrollmentTx.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns courses matching filter with the total count.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	where := " WHERE 1=1"
	var args []interface{}
	if filter.Search != "" {
		args = append(args, likePattern(filter.Search))
		where += fmt.Sprintf(" AND (LOWER(c.title) LIKE $%d OR LOWER(c.course_code) LIKE $%d)", len(args), len(args))
	}
	if filter.FacultyID != "" {
		args = append(args, filter.FacultyID)
		where += fmt.Sprintf(" AND EXISTS (SELECT 1 FROM course_faculty cf WHERE cf.course_id = c.id AND cf.faculty_id = $%d)", len(args))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		where += fmt.Sprintf(" AND EXISTS (SELECT 1 FROM course_batches cb JOIN batch_students bs ON bs.batch_id = cb.batch_id WHERE cb.course_id = c.id AND bs.student_id = $%d)", len(args))
	}

	_, limit, offset := models.PageWindow(filter.Page, filter.PageSize, 10)
	query := fmt.Sprintf("SELECT %s FROM courses c%s ORDER BY c.created_at DESC LIMIT %d OFFSET %d", prefixed("c", courseColumns), where, limit, offset)

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM courses c"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID returns a course by id.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := "SELECT " + courseColumns + " FROM courses WHERE id = $1"
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	return &course, nil
}

// Faculty returns the faculty of each course keyed by course id, in assignment order.
func (r *CourseRepository) Faculty(ctx context.Context, courseIDs []string) (map[string][]models.UserSummary, error) {
	out := make(map[string][]models.UserSummary, len(courseIDs))
	if len(courseIDs) == 0 {
		return out, nil
	}
	type row struct {
		CourseID string `db:"course_id"`
		models.UserSummary
	}
	const query = `SELECT cf.course_id, u.id, u.first_name, u.last_name, u.email, u.username, u.roll_number, u.photo
        FROM course_faculty cf JOIN users u ON u.id = cf.faculty_id
        WHERE cf.course_id = ANY($1) ORDER BY cf.position, u.first_name`
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(courseIDs)); err != nil {
		return nil, fmt.Errorf("list course faculty: %w", err)
	}
	for _, rw := range rows {
		out[rw.CourseID] = append(out[rw.CourseID], rw.UserSummary)
	}
	return out, nil
}

// Batches returns the batches of each course keyed by course id.
func (r *CourseRepository) Batches(ctx context.Context, courseIDs []string) (map[string][]models.BatchSummary, error) {
	out := make(map[string][]models.BatchSummary, len(courseIDs))
	if len(courseIDs) == 0 {
		return out, nil
	}
	type row struct {
		CourseID string `db:"course_id"`
		models.BatchSummary
	}
	const query = `SELECT cb.course_id, b.id, b.name, b.academic_year FROM course_batches cb JOIN batches b ON b.id = cb.batch_id WHERE cb.course_id = ANY($1) ORDER BY b.name`
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(courseIDs)); err != nil {
		return nil, fmt.Errorf("list course batches: %w", err)
	}
	for _, rw := range rows {
		out[rw.CourseID] = append(out[rw.CourseID], rw.BatchSummary)
	}
	return out, nil
}

// Students returns the distinct students enrolled through any of the course's batches.
func (r *CourseRepository) Students(ctx context.Context, courseID string) ([]models.UserSummary, error) {
	const query = `SELECT DISTINCT u.id, u.first_name, u.last_name, u.email, u.username, u.roll_number, u.photo
        FROM course_batches cb
        JOIN batch_students bs ON bs.batch_id = cb.batch_id
        JOIN users u ON u.id = bs.student_id
        WHERE cb.course_id = $1 ORDER BY u.roll_number, u.first_name`
	var students []models.UserSummary
	if err := r.db.SelectContext(ctx, &students, query, courseID); err != nil {
		return nil, fmt.Errorf("list course students: %w", err)
	}
	return students, nil
}

// IsTaughtBy reports whether facultyID is assigned to the course.
func (r *CourseRepository) IsTaughtBy(ctx context.Context, courseID, facultyID string) (bool, error) {
	var ok bool
	const query = `SELECT EXISTS (SELECT 1 FROM course_faculty WHERE course_id = $1 AND faculty_id = $2)`
	if err := r.db.GetContext(ctx, &ok, query, courseID, facultyID); err != nil {
		return false, fmt.Errorf("check course faculty: %w", err)
	}
	return ok, nil
}

const enrolledQuery = `SELECT EXISTS (SELECT 1 FROM course_batches cb JOIN batch_students bs ON bs.batch_id = cb.batch_id WHERE cb.course_id = $1 AND bs.student_id = $2)`

// IsEnrolled reports whether the student's batches intersect the course's batches.
func (r *CourseRepository) IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error) {
	var ok bool
	if err := r.db.GetContext(ctx, &ok, enrolledQuery, courseID, studentID); err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return ok, nil
}

// Search matches courses by title or code. A non-empty facultyID limits to courses they teach.
func (r *CourseRepository) Search(ctx context.Context, q, facultyID string, limit int) ([]models.CourseSummary, error) {
	query := `SELECT c.id, c.course_code, c.title FROM courses c WHERE (LOWER(c.title) LIKE $1 OR LOWER(c.course_code) LIKE $1)`
	args := []interface{}{likePattern(q)}
	if facultyID != "" {
		args = append(args, facultyID)
		query += ` AND EXISTS (SELECT 1 FROM course_faculty cf WHERE cf.course_id = c.id AND cf.faculty_id = $2)`
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY c.course_code LIMIT $%d`, len(args))

	var courses []models.CourseSummary
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, fmt.Errorf("search courses: %w", err)
	}
	return courses, nil
}

// ForStudents returns the courses each student is enrolled in keyed by student id.
// A non-empty facultyID limits to courses that faculty teaches.
func (r *CourseRepository) ForStudents(ctx context.Context, studentIDs []string, facultyID string) (map[string][]models.CourseSummary, error) {
	out := make(map[string][]models.CourseSummary, len(studentIDs))
	if len(studentIDs) == 0 {
		return out, nil
	}
	type row struct {
		StudentID string `db:"student_id"`
		models.CourseSummary
	}
	query := `SELECT DISTINCT bs.student_id, c.id, c.course_code, c.title
        FROM batch_students bs
        JOIN course_batches cb ON cb.batch_id = bs.batch_id
        JOIN courses c ON c.id = cb.course_id
        WHERE bs.student_id = ANY($1)`
	args := []interface{}{pq.Array(studentIDs)}
	if facultyID != "" {
		args = append(args, facultyID)
		query += ` AND EXISTS (SELECT 1 FROM course_faculty cf WHERE cf.course_id = c.id AND cf.faculty_id = $2)`
	}
	query += ` ORDER BY c.course_code`

	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list student courses: %w", err)
	}
	for _, rw := range rows {
		out[rw.StudentID] = append(out[rw.StudentID], rw.CourseSummary)
	}
	return out, nil
}
