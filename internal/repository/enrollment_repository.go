package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/lms-api/internal/models"
)

// EnrollmentTx is the unit of work used by the enrollment synchronization workflows.
// Every write that can change who is enrolled in what goes through it so the
// grade placeholder invariant is restored before commit.
type EnrollmentTx interface {
	LockBatch(ctx context.Context, id string) (*models.Batch, error)
	LockCourse(ctx context.Context, id string) (*models.Course, error)
	LockTask(ctx context.Context, id string) (*models.Task, error)
	LockUser(ctx context.Context, id string, role models.UserRole) (*models.User, error)

	CreateBatch(ctx context.Context, batch *models.Batch) error
	UpdateBatch(ctx context.Context, batch *models.Batch) error
	DeleteBatch(ctx context.Context, id string) error
	CreateCourse(ctx context.Context, course *models.Course) error
	UpdateCourse(ctx context.Context, course *models.Course) error
	DeleteCourse(ctx context.Context, id string) error
	CreateTask(ctx context.Context, task *models.Task) error
	UpdateTask(ctx context.Context, task *models.Task) error
	DeleteTask(ctx context.Context, id string) error
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id string) error

	CourseFacultyIDs(ctx context.Context, courseID string) ([]string, error)
	SetCourseFaculty(ctx context.Context, courseID string, facultyIDs []string) error
	FacultyCourseIDs(ctx context.Context, facultyID string) ([]string, error)
	RemoveFacultyFromCourses(ctx context.Context, facultyID string) (int, error)
	CoursesWithoutFaculty(ctx context.Context, courseIDs []string) ([]models.CourseSummary, error)
	TaskIDsByCreator(ctx context.Context, creatorID string) ([]string, error)

	BatchStudentIDs(ctx context.Context, batchID string) ([]string, error)
	AddBatchStudents(ctx context.Context, batchID string, studentIDs []string) error
	RemoveBatchStudents(ctx context.Context, batchID string, studentIDs []string) error
	StudentBatchIDs(ctx context.Context, studentID string) ([]string, error)
	CourseBatchIDs(ctx context.Context, courseID string) ([]string, error)
	AddCourseBatches(ctx context.Context, courseID string, batchIDs []string) error
	RemoveCourseBatches(ctx context.Context, courseID string, batchIDs []string) error
	CourseIDsByBatches(ctx context.Context, batchIDs []string) ([]string, error)

	EnrolledStudentIDs(ctx context.Context, courseID string) ([]string, error)
	TaskIDsByCourse(ctx context.Context, courseID string) ([]string, error)
	GradeKeys(ctx context.Context, taskIDs []string) ([]models.GradeKey, error)
	InsertGradePlaceholders(ctx context.Context, keys []models.GradeKey) (int, error)
	DeleteGrades(ctx context.Context, keys []models.GradeKey) (int, error)
	DeleteSubmissions(ctx context.Context, keys []models.GradeKey) (int, error)
	DeleteGradesByTasks(ctx context.Context, taskIDs []string) (int, error)
	DeleteSubmissionsByTasks(ctx context.Context, taskIDs []string) (int, error)
	DeleteGradesByStudent(ctx context.Context, studentID string) (int, error)
	DeleteSubmissionsByStudent(ctx context.Context, studentID string) (int, error)
}

// EnrollmentRepository opens enrollment units of work.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// WithinTx runs fn inside a single database transaction. Any error or panic rolls back.
func (r *EnrollmentRepository) WithinTx(ctx context.Context, fn func(EnrollmentTx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&enrollmentTx{tx: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment tx: %w", err)
	}
	return nil
}

type enrollmentTx struct {
	tx *sqlx.Tx
}

func (t *enrollmentTx) LockBatch(ctx context.Context, id string) (*models.Batch, error) {
	var batch models.Batch
	query := "SELECT " + batchColumns + " FROM batches WHERE id = $1 FOR UPDATE"
	if err := t.tx.GetContext(ctx, &batch, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock batch: %w", err)
	}
	return &batch, nil
}

func (t *enrollmentTx) LockCourse(ctx context.Context, id string) (*models.Course, error) {
	var course models.Course
	query := "SELECT " + courseColumns + " FROM courses WHERE id = $1 FOR UPDATE"
	if err := t.tx.GetContext(ctx, &course, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock course: %w", err)
	}
	return &course, nil
}

func (t *enrollmentTx) LockTask(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	query := "SELECT " + taskColumns + " FROM tasks WHERE id = $1 FOR UPDATE"
	if err := t.tx.GetContext(ctx, &task, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock task: %w", err)
	}
	return &task, nil
}

func (t *enrollmentTx) LockUser(ctx context.Context, id string, role models.UserRole) (*models.User, error) {
	var user models.User
	query := "SELECT " + userColumns + " FROM users WHERE id = $1 AND role = $2 FOR UPDATE"
	if err := t.tx.GetContext(ctx, &user, query, id, role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock user: %w", err)
	}
	return &user, nil
}

func (t *enrollmentTx) CreateBatch(ctx context.Context, batch *models.Batch) error {
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	stampCreate(&batch.CreatedAt, &batch.UpdatedAt)
	const query = `INSERT INTO batches (id, name, academic_year, department, creator_kind, creator_id, created_at, updated_at) VALUES (:id, :name, :academic_year, :department, :creator_kind, :creator_id, :created_at, :updated_at)`
	if _, err := t.tx.NamedExecContext(ctx, query, batch); err != nil {
		return fmt.Errorf("create batch: %w", err)
	}
	return nil
}

func (t *enrollmentTx) UpdateBatch(ctx context.Context, batch *models.Batch) error {
	batch.UpdatedAt = time.Now().UTC()
	const query = `UPDATE batches SET name = :name, academic_year = :academic_year, department = :department, updated_at = :updated_at WHERE id = :id`
	if _, err := t.tx.NamedExecContext(ctx, query, batch); err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	return nil
}

func (t *enrollmentTx) DeleteBatch(ctx context.Context, id string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM batches WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete batch: %w", err)
	}
	return nil
}

func (t *enrollmentTx) CreateCourse(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	stampCreate(&course.CreatedAt, &course.UpdatedAt)
	const query = `INSERT INTO courses (id, course_code, title, description, photo, department, academic_year, semester, status, creator_kind, creator_id, created_at, updated_at) VALUES (:id, :course_code, :title, :description, :photo, :department, :academic_year, :semester, :status, :creator_kind, :creator_id, :created_at, :updated_at)`
	if _, err := t.tx.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

func (t *enrollmentTx) UpdateCourse(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET course_code = :course_code, title = :title, description = :description, photo = :photo, department = :department, academic_year = :academic_year, semester = :semester, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := t.tx.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

func (t *enrollmentTx) DeleteCourse(ctx context.Context, id string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	return nil
}

func (t *enrollmentTx) CreateTask(ctx context.Context, task *models.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Attachments == nil {
		task.Attachments = models.Attachments{}
	}
	stampCreate(&task.CreatedAt, &task.UpdatedAt)
	const query = `INSERT INTO tasks (id, title, description, type, photo, course_id, created_by, publish_date, due_date, max_points, attachments, created_at, updated_at) VALUES (:id, :title, :description, :type, :photo, :course_id, :created_by, :publish_date, :due_date, :max_points, :attachments, :created_at, :updated_at)`
	if _, err := t.tx.NamedExecContext(ctx, query, task); err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (t *enrollmentTx) UpdateTask(ctx context.Context, task *models.Task) error {
	task.UpdatedAt = time.Now().UTC()
	const query = `UPDATE tasks SET title = :title, description = :description, type = :type, photo = :photo, course_id = :course_id, publish_date = :publish_date, due_date = :due_date, max_points = :max_points, attachments = :attachments, reminder_sent_at = :reminder_sent_at, updated_at = :updated_at WHERE id = :id`
	if _, err := t.tx.NamedExecContext(ctx, query, task); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

func (t *enrollmentTx) DeleteTask(ctx context.Context, id string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

func (t *enrollmentTx) CreateUser(ctx context.Context, user *models.User) error {
	return insertUser(ctx, t.tx, user)
}

func (t *enrollmentTx) UpdateUser(ctx context.Context, user *models.User) error {
	return updateUser(ctx, t.tx, user)
}

func (t *enrollmentTx) DeleteUser(ctx context.Context, id string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func (t *enrollmentTx) CourseFacultyIDs(ctx context.Context, courseID string) ([]string, error) {
	var ids []string
	const query = `SELECT faculty_id FROM course_faculty WHERE course_id = $1 ORDER BY position, faculty_id`
	if err := t.tx.SelectContext(ctx, &ids, query, courseID); err != nil {
		return nil, fmt.Errorf("list course faculty: %w", err)
	}
	return ids, nil
}

func (t *enrollmentTx) SetCourseFaculty(ctx context.Context, courseID string, facultyIDs []string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM course_faculty WHERE course_id = $1`, courseID); err != nil {
		return fmt.Errorf("clear course faculty: %w", err)
	}
	if len(facultyIDs) == 0 {
		return nil
	}
	const query = `INSERT INTO course_faculty (course_id, faculty_id, position) SELECT $1, f.id, f.ord - 1 FROM unnest($2::uuid[]) WITH ORDINALITY AS f(id, ord) ON CONFLICT DO NOTHING`
	if _, err := t.tx.ExecContext(ctx, query, courseID, pq.Array(facultyIDs)); err != nil {
		return fmt.Errorf("set course faculty: %w", err)
	}
	return nil
}

func (t *enrollmentTx) FacultyCourseIDs(ctx context.Context, facultyID string) ([]string, error) {
	var ids []string
	const query = `SELECT course_id FROM course_faculty WHERE faculty_id = $1 ORDER BY course_id`
	if err := t.tx.SelectContext(ctx, &ids, query, facultyID); err != nil {
		return nil, fmt.Errorf("list faculty courses: %w", err)
	}
	return ids, nil
}

func (t *enrollmentTx) RemoveFacultyFromCourses(ctx context.Context, facultyID string) (int, error) {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM course_faculty WHERE faculty_id = $1`, facultyID)
	if err != nil {
		return 0, fmt.Errorf("remove faculty from courses: %w", err)
	}
	return affected(res), nil
}

func (t *enrollmentTx) CoursesWithoutFaculty(ctx context.Context, courseIDs []string) ([]models.CourseSummary, error) {
	if len(courseIDs) == 0 {
		return nil, nil
	}
	var courses []models.CourseSummary
	const query = `SELECT c.id, c.course_code, c.title FROM courses c WHERE c.id = ANY($1) AND NOT EXISTS (SELECT 1 FROM course_faculty cf WHERE cf.course_id = c.id) ORDER BY c.course_code`
	if err := t.tx.SelectContext(ctx, &courses, query, pq.Array(courseIDs)); err != nil {
		return nil, fmt.Errorf("list courses without faculty: %w", err)
	}
	return courses, nil
}

func (t *enrollmentTx) TaskIDsByCreator(ctx context.Context, creatorID string) ([]string, error) {
	var ids []string
	if err := t.tx.SelectContext(ctx, &ids, `SELECT id FROM tasks WHERE created_by = $1 ORDER BY id`, creatorID); err != nil {
		return nil, fmt.Errorf("list tasks by creator: %w", err)
	}
	return ids, nil
}

func (t *enrollmentTx) BatchStudentIDs(ctx context.Context, batchID string) ([]string, error) {
	var ids []string
	if err := t.tx.SelectContext(ctx, &ids, `SELECT student_id FROM batch_students WHERE batch_id = $1 ORDER BY student_id`, batchID); err != nil {
		return nil, fmt.Errorf("list batch students: %w", err)
	}
	return ids, nil
}

func (t *enrollmentTx) AddBatchStudents(ctx context.Context, batchID string, studentIDs []string) error {
	if len(studentIDs) == 0 {
		return nil
	}
	const query = `INSERT INTO batch_students (batch_id, student_id) SELECT $1, unnest($2::uuid[]) ON CONFLICT DO NOTHING`
	if _, err := t.tx.ExecContext(ctx, query, batchID, pq.Array(studentIDs)); err != nil {
		return fmt.Errorf("add batch students: %w", err)
	}
	return nil
}

func (t *enrollmentTx) RemoveBatchStudents(ctx context.Context, batchID string, studentIDs []string) error {
	if len(studentIDs) == 0 {
		return nil
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM batch_students WHERE batch_id = $1 AND student_id = ANY($2)`, batchID, pq.Array(studentIDs)); err != nil {
		return fmt.Errorf("remove batch students: %w", err)
	}
	return nil
}

func (t *enrollmentTx) StudentBatchIDs(ctx context.Context, studentID string) ([]string, error) {
	var ids []string
	if err := t.tx.SelectContext(ctx, &ids, `SELECT batch_id FROM batch_students WHERE student_id = $1 ORDER BY batch_id`, studentID); err != nil {
		return nil, fmt.Errorf("list student batches: %w", err)
	}
	return ids, nil
}

func (t *enrollmentTx) CourseBatchIDs(ctx context.Context, courseID string) ([]string, error) {
	var ids []string
	if err := t.tx.SelectContext(ctx, &ids, `SELECT batch_id FROM course_batches WHERE course_id = $1 ORDER BY batch_id`, courseID); err != nil {
		return nil, fmt.Errorf("list course batches: %w", err)
	}
	return ids, nil
}

func (t *enrollmentTx) AddCourseBatches(ctx context.Context, courseID string, batchIDs []string) error {
	if len(batchIDs) == 0 {
		return nil
	}
	const query = `INSERT INTO course_batches (course_id, batch_id) SELECT $1, unnest($2::uuid[]) ON CONFLICT DO NOTHING`
	if _, err := t.tx.ExecContext(ctx, query, courseID, pq.Array(batchIDs)); err != nil {
		return fmt.Errorf("add course batches: %w", err)
	}
	return nil
}

func (t *enrollmentTx) RemoveCourseBatches(ctx context.Context, courseID string, batchIDs []string) error {
	if len(batchIDs) == 0 {
		return nil
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM course_batches WHERE course_id = $1 AND batch_id = ANY($2)`, courseID, pq.Array(batchIDs)); err != nil {
		return fmt.Errorf("remove course batches: %w", err)
	}
	return nil
}

func (t *enrollmentTx) CourseIDsByBatches(ctx context.Context, batchIDs []string) ([]string, error) {
	if len(batchIDs) == 0 {
		return nil, nil
	}
	var ids []string
	const query = `SELECT DISTINCT course_id FROM course_batches WHERE batch_id = ANY($1) ORDER BY course_id`
	if err := t.tx.SelectContext(ctx, &ids, query, pq.Array(batchIDs)); err != nil {
		return nil, fmt.Errorf("list courses by batches: %w", err)
	}
	return ids, nil
}

func (t *enrollmentTx) EnrolledStudentIDs(ctx context.Context, courseID string) ([]string, error) {
	var ids []string
	const query = `SELECT DISTINCT bs.student_id FROM course_batches cb JOIN batch_students bs ON bs.batch_id = cb.batch_id WHERE cb.course_id = $1 ORDER BY bs.student_id`
	if err := t.tx.SelectContext(ctx, &ids, query, courseID); err != nil {
		return nil, fmt.Errorf("list enrolled students: %w", err)
	}
	return ids, nil
}

func (t *enrollmentTx) TaskIDsByCourse(ctx context.Context, courseID string) ([]string, error) {
	var ids []string
	if err := t.tx.SelectContext(ctx, &ids, `SELECT id FROM tasks WHERE course_id = $1 ORDER BY id`, courseID); err != nil {
		return nil, fmt.Errorf("list course tasks: %w", err)
	}
	return ids, nil
}

func (t *enrollmentTx) GradeKeys(ctx context.Context, taskIDs []string) ([]models.GradeKey, error) {
	if len(taskIDs) == 0 {
		return nil, nil
	}
	var keys []models.GradeKey
	const query = `SELECT task_id, student_id FROM grades WHERE task_id = ANY($1) ORDER BY task_id, student_id`
	if err := t.tx.SelectContext(ctx, &keys, query, pq.Array(taskIDs)); err != nil {
		return nil, fmt.Errorf("list grade keys: %w", err)
	}
	return keys, nil
}

func (t *enrollmentTx) InsertGradePlaceholders(ctx context.Context, keys []models.GradeKey) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	ids := make([]string, len(keys))
	taskIDs, studentIDs := splitKeys(keys)
	for i := range keys {
		ids[i] = uuid.NewString()
	}
	const query = `INSERT INTO grades (id, task_id, student_id, status, created_at, updated_at)
        SELECT k.id, k.task_id, k.student_id, 'Pending', $4, $4
        FROM unnest($1::uuid[], $2::uuid[], $3::uuid[]) AS k(id, task_id, student_id)
        ON CONFLICT (task_id, student_id) DO NOTHING`
	res, err := t.tx.ExecContext(ctx, query, pq.Array(ids), pq.Array(taskIDs), pq.Array(studentIDs), time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("insert grade placeholders: %w", err)
	}
	return affected(res), nil
}

func (t *enrollmentTx) DeleteGrades(ctx context.Context, keys []models.GradeKey) (int, error) {
	return t.deleteByKeys(ctx, "grades", keys)
}

func (t *enrollmentTx) DeleteSubmissions(ctx context.Context, keys []models.GradeKey) (int, error) {
	return t.deleteByKeys(ctx, "submissions", keys)
}

func (t *enrollmentTx) deleteByKeys(ctx context.Context, table string, keys []models.GradeKey) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	taskIDs, studentIDs := splitKeys(keys)
	query := fmt.Sprintf(`DELETE FROM %s t USING unnest($1::uuid[], $2::uuid[]) AS k(task_id, student_id) WHERE t.task_id = k.task_id AND t.student_id = k.student_id`, table)
	res, err := t.tx.ExecContext(ctx, query, pq.Array(taskIDs), pq.Array(studentIDs))
	if err != nil {
		return 0, fmt.Errorf("delete %s by key: %w", table, err)
	}
	return affected(res), nil
}

func (t *enrollmentTx) DeleteGradesByTasks(ctx context.Context, taskIDs []string) (int, error) {
	return t.deleteWhereAny(ctx, "grades", "task_id", taskIDs)
}

func (t *enrollmentTx) DeleteSubmissionsByTasks(ctx context.Context, taskIDs []string) (int, error) {
	return t.deleteWhereAny(ctx, "submissions", "task_id", taskIDs)
}

func (t *enrollmentTx) DeleteGradesByStudent(ctx context.Context, studentID string) (int, error) {
	return t.deleteWhereAny(ctx, "grades", "student_id", []string{studentID})
}

func (t *enrollmentTx) DeleteSubmissionsByStudent(ctx context.Context, studentID string) (int, error) {
	return t.deleteWhereAny(ctx, "submissions", "student_id", []string{studentID})
}

func (t *enrollmentTx) deleteWhereAny(ctx context.Context, table, column string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = ANY($1)`, table, column)
	res, err := t.tx.ExecContext(ctx, query, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("delete %s by %s: %w", table, column, err)
	}
	return affected(res), nil
}

func splitKeys(keys []models.GradeKey) ([]string, []string) {
	taskIDs := make([]string, len(keys))
	studentIDs := make([]string, len(keys))
	for i, key := range keys {
		taskIDs[i] = key.TaskID
		studentIDs[i] = key.StudentID
	}
	return taskIDs, studentIDs
}

func affected(res sql.Result) int {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return int(n)
}

func stampCreate(createdAt, updatedAt *time.Time) {
	now := time.Now().UTC()
	if createdAt.IsZero() {
		*createdAt = now
	}
	*updatedAt = now
}
