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

const batchStudentCount = `(SELECT COUNT(*) FROM batch_students bs WHERE bs.batch_id = b.id) AS student_count`

// BatchRepository reads batches and their rosters. Writes go through EnrollmentTx.
type BatchRepository struct {
	db *sqlx.DB
}

// NewBatchRepository constructs the repository.
func NewBatchRepository(db *sqlx.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// List returns batches matching filter with the total count.
func (r *BatchRepository) List(ctx context.Context, filter models.BatchFilter) ([]models.Batch, int, error) {
	where := " WHERE 1=1"
	var args []interface{}
	if filter.Search != "" {
		args = append(args, likePattern(filter.Search))
		where += fmt.Sprintf(" AND (LOWER(b.name) LIKE $%d OR LOWER(b.department) LIKE $%d OR LOWER(b.academic_year) LIKE $%d)", len(args), len(args), len(args))
	}

	_, limit, offset := models.PageWindow(filter.Page, filter.PageSize, 10)
	query := fmt.Sprintf("SELECT %s, %s FROM batches b%s ORDER BY b.created_at DESC LIMIT %d OFFSET %d", prefixed("b", batchColumns), batchStudentCount, where, limit, offset)

	var batches []models.Batch
	if err := r.db.SelectContext(ctx, &batches, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list batches: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM batches b"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count batches: %w", err)
	}
	return batches, total, nil
}

// FindByID returns a batch with its student count.
func (r *BatchRepository) FindByID(ctx context.Context, id string) (*models.Batch, error) {
	query := fmt.Sprintf("SELECT %s, %s FROM batches b WHERE b.id = $1", prefixed("b", batchColumns), batchStudentCount)
	var batch models.Batch
	if err := r.db.GetContext(ctx, &batch, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find batch: %w", err)
	}
	return &batch, nil
}

// FindByIDs returns the summaries of the batches that exist among ids.
func (r *BatchRepository) FindByIDs(ctx context.Context, ids []string) ([]models.BatchSummary, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var batches []models.BatchSummary
	const query = `SELECT id, name, academic_year FROM batches WHERE id = ANY($1) ORDER BY name`
	if err := r.db.SelectContext(ctx, &batches, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find batches by ids: %w", err)
	}
	return batches, nil
}

// Rosters returns the students of each batch keyed by batch id.
func (r *BatchRepository) Rosters(ctx context.Context, batchIDs []string) (map[string][]models.UserSummary, error) {
	out := make(map[string][]models.UserSummary, len(batchIDs))
	if len(batchIDs) == 0 {
		return out, nil
	}
	type row struct {
		BatchID string `db:"batch_id"`
		models.UserSummary
	}
	const query = `SELECT bs.batch_id, u.id, u.first_name, u.last_name, u.email, u.username, u.roll_number, u.photo
        FROM batch_students bs JOIN users u ON u.id = bs.student_id
        WHERE bs.batch_id = ANY($1) ORDER BY u.roll_number NULLS LAST, u.first_name`
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(batchIDs)); err != nil {
		return nil, fmt.Errorf("list batch rosters: %w", err)
	}
	for _, rw := range rows {
		out[rw.BatchID] = append(out[rw.BatchID], rw.UserSummary)
	}
	return out, nil
}

// ListByFaculty returns the batches attached to courses the faculty teaches.
func (r *BatchRepository) ListByFaculty(ctx context.Context, facultyID string) ([]models.Batch, error) {
	query := fmt.Sprintf(`SELECT %s, %s FROM batches b
        WHERE b.id IN (SELECT cb.batch_id FROM course_batches cb JOIN course_faculty cf ON cf.course_id = cb.course_id WHERE cf.faculty_id = $1)
        ORDER BY b.name`, prefixed("b", batchColumns), batchStudentCount)
	var batches []models.Batch
	if err := r.db.SelectContext(ctx, &batches, query, facultyID); err != nil {
		return nil, fmt.Errorf("list faculty batches: %w", err)
	}
	return batches, nil
}

// Search matches batches by name or department.
func (r *BatchRepository) Search(ctx context.Context, q string, limit int) ([]models.BatchSummary, error) {
	const query = `SELECT id, name, academic_year FROM batches WHERE LOWER(name) LIKE $1 OR LOWER(department) LIKE $1 ORDER BY name LIMIT $2`
	var batches []models.BatchSummary
	if err := r.db.SelectContext(ctx, &batches, query, likePattern(q), limit); err != nil {
		return nil, fmt.Errorf("search batches: %w", err)
	}
	return batches, nil
}

// ForStudents returns the batches of each student keyed by student id.
func (r *BatchRepository) ForStudents(ctx context.Context, studentIDs []string) (map[string][]models.BatchSummary, error) {
	out := make(map[string][]models.BatchSummary, len(studentIDs))
	if len(studentIDs) == 0 {
		return out, nil
	}
	type row struct {
		StudentID string `db:"student_id"`
		models.BatchSummary
	}
	const query = `SELECT bs.student_id, b.id, b.name, b.academic_year FROM batch_students bs JOIN batches b ON b.id = bs.batch_id WHERE bs.student_id = ANY($1) ORDER BY b.name`
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(studentIDs)); err != nil {
		return nil, fmt.Errorf("list student batches: %w", err)
	}
	for _, rw := range rows {
		out[rw.StudentID] = append(out[rw.StudentID], rw.BatchSummary)
	}
	return out, nil
}
