package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/repository"
	"github.com/noah-isme/lms-api/pkg/cache"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

// enrollmentStore opens transactional units of work over enrollment state.
type enrollmentStore interface {
	WithinTx(ctx context.Context, fn func(repository.EnrollmentTx) error) error
}

// Sync operation labels used for metrics and logs.
const (
	syncBatchCreate   = "batch_create"
	syncBatchUpdate   = "batch_update"
	syncBatchDelete   = "batch_delete"
	syncCourseCreate  = "course_create"
	syncCourseUpdate  = "course_update"
	syncCourseDelete  = "course_delete"
	syncTaskCreate    = "task_create"
	syncTaskUpdate    = "task_update"
	syncTaskDelete    = "task_delete"
	syncStudentCreate = "student_create"
	syncStudentUpdate = "student_update"
	syncStudentDelete = "student_delete"
	syncFacultyDelete = "faculty_delete"
)

// EnrollmentService keeps batches, courses, tasks, grades and submissions consistent.
// Every write that changes who is enrolled in what runs here inside one transaction,
// and the grade placeholder set of each affected course is reconciled before commit.
type EnrollmentService struct {
	store   enrollmentStore
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(store enrollmentStore, cacheSvc *CacheService, metrics *MetricsService, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{store: store, cache: cacheSvc, metrics: metrics, logger: logger}
}

// CreateBatch inserts a batch with its initial roster. A new batch belongs to no course yet.
func (s *EnrollmentService) CreateBatch(ctx context.Context, batch *models.Batch, studentIDs []string) (*models.SyncReport, error) {
	report := &models.SyncReport{}
	err := s.store.WithinTx(ctx, func(tx repository.EnrollmentTx) error {
		if err := tx.CreateBatch(ctx, batch); err != nil {
			return err
		}
		students := uniqueIDs(studentIDs)
		if err := tx.AddBatchStudents(ctx, batch.ID, students); err != nil {
			return err
		}
		report.Added = students
		return nil
	})
	if err != nil {
		return nil, s.txError(err, "failed to create batch", "batch with this name already exists for the academic year and department")
	}
	s.finish(ctx, syncBatchCreate, batch.ID, report)
	return report, nil
}

// UpdateBatch applies field changes to the locked batch and, when studentIDs is non-nil,
// replaces its roster and reconciles every course that includes the batch.
func (s *EnrollmentService) UpdateBatch(ctx context.Context, batchID string, apply func(*models.Batch) error, studentIDs []string) (*models.Batch, *models.SyncReport, error) {
	var updated *models.Batch
	report := &models.SyncReport{}
	err := s.store.WithinTx(ctx, func(tx repository.EnrollmentTx) error {
		batch, err := tx.LockBatch(ctx, batchID)
		if err != nil {
			return notFound(err, "batch not found")
		}
		if apply != nil {
			if err := apply(batch); err != nil {
				return err
			}
			if err := tx.UpdateBatch(ctx, batch); err != nil {
				return err
			}
		}
		updated = batch
		if studentIDs == nil {
			return nil
		}
		return s.syncBatchStudents(ctx, tx, batchID, studentIDs, report)
	})
	if err != nil {
		return nil, nil, s.txError(err, "failed to update batch", "batch with this name already exists for the academic year and department")
	}
	s.finish(ctx, syncBatchUpdate, batchID, report)
	return updated, report, nil
}

// SyncBatchStudents replaces the roster of a batch.
func (s *EnrollmentService) SyncBatchStudents(ctx context.Context, batchID string, studentIDs []string) (*models.SyncReport, error) {
	if studentIDs == nil {
		studentIDs = []string{}
	}
	_, report, err := s.UpdateBatch(ctx, batchID, nil, studentIDs)
	return report, err
}

func (s *EnrollmentService) syncBatchStudents(ctx context.Context, tx repository.EnrollmentTx, batchID string, studentIDs []string, report *models.SyncReport) error {
	current, err := tx.BatchStudentIDs(ctx, batchID)
	if err != nil {
		return err
	}
	added, removed := diffIDs(current, uniqueIDs(studentIDs))
	if len(added) == 0 && len(removed) == 0 {
		return nil
	}
	if err := tx.RemoveBatchStudents(ctx, batchID, removed); err != nil {
		return err
	}
	if err := tx.AddBatchStudents(ctx, batchID, added); err != nil {
		return err
	}
	report.Added, report.Removed = added, removed

	courseIDs, err := tx.CourseIDsByBatches(ctx, []string{batchID})
	if err != nil {
		return err
	}
	return s.reconcileCourses(ctx, tx, courseIDs, report)
}

// DeleteBatch removes a batch. Students it enrolled lose the grades and submissions
// of courses they no longer reach through another batch.
func (s *EnrollmentService) DeleteBatch(ctx context.Context, batchID string) (*models.SyncReport, error) {
	report := &models.SyncReport{}
	err := s.store.WithinTx(ctx, func(tx repository.EnrollmentTx) error {
		if _, err := tx.LockBatch(ctx, batchID); err != nil {
			return notFound(err, "batch not found")
		}
		courseIDs, err := tx.CourseIDsByBatches(ctx, []string{batchID})
		if err != nil {
			return err
		}
		students, err := tx.BatchStudentIDs(ctx, batchID)
		if err != nil {
			return err
		}
		if err := tx.DeleteBatch(ctx, batchID); err != nil {
			return err
		}
		report.Removed = students
		return s.reconcileCourses(ctx, tx, courseIDs, report)
	})
	if err != nil {
		return nil, s.txError(err, "failed to delete batch", "")
	}
	s.finish(ctx, syncBatchDelete, batchID, report)
	return report, nil
}

// CreateCourse inserts a course with its faculty and batches and seeds nothing:
// a new course has no tasks yet.
func (s *EnrollmentService) CreateCourse(ctx context.Context, course *models.Course, facultyIDs, batchIDs []string) (*models.SyncReport, error) {
	report := &models.SyncReport{}
	err := s.store.WithinTx(ctx, func(tx repository.EnrollmentTx) error {
		if err := tx.CreateCourse(ctx, course); err != nil {
			return err
		}
		if err := tx.SetCourseFaculty(ctx, course.ID, uniqueOrdered(facultyIDs)); err != nil {
			return err
		}
		batches := uniqueIDs(batchIDs)
		if err := tx.AddCourseBatches(ctx, course.ID, batches); err != nil {
			return err
		}
		report.Added = batches
		return nil
	})
	if err != nil {
		return nil, s.txError(err, "failed to create course", "course code already exists")
	}
	s.finish(ctx, syncCourseCreate, course.ID, report)
	return report, nil
}

// UpdateCourse applies field changes to the locked course. A non-nil facultyIDs replaces
// the teaching list; a non-nil batchIDs replaces the batches and reconciles grades.
func (s *EnrollmentService) UpdateCourse(ctx context.Context, courseID string, apply func(*models.Course) error, facultyIDs, batchIDs []string) (*models.Course, *models.SyncReport, error) {
	var updated *models.Course
	report := &models.SyncReport{}
	err := s.store.WithinTx(ctx, func(tx repository.EnrollmentTx) error {
		course, err := tx.LockCourse(ctx, courseID)
		if err != nil {
			return notFound(err, "course not found")
		}
		if apply != nil {
			if err := apply(course); err != nil {
				return err
			}
			if err := tx.UpdateCourse(ctx, course); err != nil {
				return err
			}
		}
		updated = course
		if facultyIDs != nil {
			faculty := uniqueOrdered(facultyIDs)
			if len(faculty) == 0 {
				return appErrors.Clone(appErrors.ErrValidation, "a course needs at least one faculty member")
			}
			if err := tx.SetCourseFaculty(ctx, courseID, faculty); err != nil {
				return err
			}
		}
		if batchIDs == nil {
			return nil
		}
		return s.syncCourseBatches(ctx, tx, courseID, batchIDs, report)
	})
	if err != nil {
		return nil, nil, s.txError(err, "failed to update course", "course code already exists")
	}
	s.finish(ctx, syncCourseUpdate, courseID, report)
	return updated, report, nil
}

// SyncCourseBatches replaces the batches of a course.
func (s *EnrollmentService) SyncCourseBatches(ctx context.Context, courseID string, batchIDs []string) (*models.SyncReport, error) {
	if batchIDs == nil {
		batchIDs = []string{}
	}
	_, report, err := s.UpdateCourse(ctx, courseID, nil, nil, batchIDs)
	return report, err
}

func (s *EnrollmentService) syncCourseBatches(ctx context.Context, tx repository.EnrollmentTx, courseID string, batchIDs []string, report *models.SyncReport) error {
	current, err := tx.CourseBatchIDs(ctx, courseID)
	if err != nil {
		return err
	}
	added, removed := diffIDs(current, uniqueIDs(batchIDs))
	if len(added) == 0 && len(removed) == 0 {
		return nil
	}
	if err := tx.RemoveCourseBatches(ctx, courseID, removed); err != nil {
		return err
	}
	if err := tx.AddCourseBatches(ctx, courseID, added); err != nil {
		return err
	}
	report.Added, report.Removed = added, removed
	return s.reconcileCourse(ctx, tx, courseID, report)
}

// DeleteCourse removes a course with its tasks, grades and submissions.
func (s *EnrollmentService) DeleteCourse(ctx context.Context, courseID string) (*models.SyncReport, error) {
	report := &models.SyncReport{}
	err := s.store.WithinTx(ctx, func(tx repository.EnrollmentTx) error {
		if _, err := tx.LockCourse(ctx, courseID); err != nil {
			return notFound(err, "course not found")
		}
		taskIDs, err := tx.TaskIDsByCourse(ctx, courseID)
		if err != nil {
			return err
		}
		if err := s.dropTasks(ctx, tx, taskIDs, report); err != nil {
			return err
		}
		return tx.DeleteCourse(ctx, courseID)
	})
	if err != nil {
		return nil, s.txError(err, "failed to delete course", "")
	}
	s.finish(ctx, syncCourseDelete, courseID, report)
	return report, nil
}

// CreateTask inserts a task and seeds a Pending grade for every enrolled student.
// A task without a creator is attributed to the course's first faculty member.
func (s *EnrollmentService) CreateTask(ctx context.Context, task *models.Task) (*models.SyncReport, error) {
	report := &models.SyncReport{}
	err := s.store.WithinTx(ctx, func(tx repository.EnrollmentTx) error {
		if _, err := tx.LockCourse(ctx, task.CourseID); err != nil {
			return notFound(err, "course not found")
		}
		faculty, err := tx.CourseFacultyIDs(ctx, task.CourseID)
		if err != nil {
			return err
		}
		if len(faculty) == 0 {
			return appErrors.Clone(appErrors.ErrValidation, "course has no faculty assigned")
		}
		if task.CreatedBy == "" {
			task.CreatedBy = faculty[0]
		}
		if err := tx.CreateTask(ctx, task); err != nil {
			return err
		}
		return s.seedTask(ctx, tx, task.ID, task.CourseID, report)
	})
	if err != nil {
		return nil, s.txError(err, "failed to create task", "")
	}
	s.finish(ctx, syncTaskCreate, task.ID, report)
	return report, nil
}

// SeedTask inserts missing Pending placeholders for an existing task.
func (s *EnrollmentService) SeedTask(ctx context.Context, taskID string) (*models.SyncReport, error) {
	report := &models.SyncReport{}
	err := s.store.WithinTx(ctx, func(tx repository.EnrollmentTx) error {
		task, err := tx.LockTask(ctx, taskID)
		if err != nil {
			return notFound(err, "task not found")
		}
		return s.seedTask(ctx, tx, task.ID, task.CourseID, report)
	})
	if err != nil {
		return nil, s.txError(err, "failed to seed task grades", "")
	}
	s.finish(ctx, syncTaskCreate, taskID, report)
	return report, nil
}

func (s *EnrollmentService) seedTask(ctx context.Context, tx repository.EnrollmentTx, taskID, courseID string, report *models.SyncReport) error {
	students, err := tx.EnrolledStudentIDs(ctx, courseID)
	if err != nil {
		return err
	}
	keys := make([]models.GradeKey, 0, len(students))
	for _, studentID := range students {
		keys = append(keys, models.GradeKey{TaskID: taskID, StudentID: studentID})
	}
	created, err := tx.InsertGradePlaceholders(ctx, keys)
	if err != nil {
		return err
	}
	report.GradesCreated += created
	return nil
}

// UpdateTask applies changes to the locked task. When the course changes every grade and
// submission of the task is dropped and placeholders are seeded under the new course.
func (s *EnrollmentService) UpdateTask(ctx context.Context, taskID string, apply func(*models.Task) error) (*models.Task, *models.SyncReport, error) {
	var updated *models.Task
	report := &models.SyncReport{}
	err := s.store.WithinTx(ctx, func(tx repository.EnrollmentTx) error {
		task, err := tx.LockTask(ctx, taskID)
		if err != nil {
			return notFound(err, "task not found")
		}
		previousCourse := task.CourseID
		if apply != nil {
			if err := apply(task); err != nil {
				return err
			}
		}
		if task.DueDate.Before(task.PublishDate) {
			return appErrors.Clone(appErrors.ErrValidation, "due date must not be before publish date")
		}
		moved := task.CourseID != previousCourse
		if moved {
			if _, err := tx.LockCourse(ctx, task.CourseID); err != nil {
				return notFound(err, "course not found")
			}
			if err := s.dropTaskWork(ctx, tx, []string{taskID}, report); err != nil {
				return err
			}
		}
		if err := tx.UpdateTask(ctx, task); err != nil {
			return err
		}
		updated = task
		if !moved {
			return nil
		}
		return s.seedTask(ctx, tx, task.ID, task.CourseID, report)
	})
	if err != nil {
		return nil, nil, s.txError(err, "failed to update task", "")
	}
	s.finish(ctx, syncTaskUpdate, taskID, report)
	return updated, report, nil
}

// ReassignTask moves a task to another course.
func (s *EnrollmentService) ReassignTask(ctx context.Context, taskID, courseID string) (*models.SyncReport, error) {
	_, report, err := s.UpdateTask(ctx, taskID, func(task *models.Task) error {
		task.CourseID = courseID
		return nil
	})
	return report, err
}

// DeleteTask removes a task with its grades and submissions.
func (s *EnrollmentService) DeleteTask(ctx context.Context, taskID string) (*models.SyncReport, error) {
	report := &models.SyncReport{}
	err := s.store.WithinTx(ctx, func(tx repository.EnrollmentTx) error {
		if _, err := tx.LockTask(ctx, taskID); err != nil {
			return notFound(err, "task not found")
		}
		return s.dropTasks(ctx, tx, []string{taskID}, report)
	})
	if err != nil {
		return nil, s.txError(err, "failed to delete task", "")
	}
	s.finish(ctx, syncTaskDelete, taskID, report)
	return report, nil
}

func (s *EnrollmentService) dropTasks(ctx context.Context, tx repository.EnrollmentTx, taskIDs []string, report *models.SyncReport) error {
	if err := s.dropTaskWork(ctx, tx, taskIDs, report); err != nil {
		return err
	}
	for _, id := range taskIDs {
		if err := tx.DeleteTask(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *EnrollmentService) dropTaskWork(ctx context.Context, tx repository.EnrollmentTx, taskIDs []string, report *models.SyncReport) error {
	grades, err := tx.DeleteGradesByTasks(ctx, taskIDs)
	if err != nil {
		return err
	}
	submissions, err := tx.DeleteSubmissionsByTasks(ctx, taskIDs)
	if err != nil {
		return err
	}
	report.GradesDeleted += grades
	report.SubmissionsDeleted += submissions
	return nil
}

// CreateStudent inserts a student and enrolls them into batchIDs.
func (s *EnrollmentService) CreateStudent(ctx context.Context, student *models.User, batchIDs []string) (*models.SyncReport, error) {
	student.Role = models.RoleStudent
	report := &models.SyncReport{}
	err := s.store.WithinTx(ctx, func(tx repository.EnrollmentTx) error {
		if err := tx.CreateUser(ctx, student); err != nil {
			return err
		}
		return s.setStudentBatches(ctx, tx, student.ID, batchIDs, report)
	})
	if err != nil {
		return nil, s.txError(err, "failed to create student", "email, username, or roll number already exists")
	}
	s.finish(ctx, syncStudentCreate, student.ID, report)
	return report, nil
}

// UpdateStudent applies profile changes to the locked student and, when batchIDs is
// non-nil, replaces their batch memberships.
func (s *EnrollmentService) UpdateStudent(ctx context.Context, studentID string, apply func(*models.User) error, batchIDs []string) (*models.User, *models.SyncReport, error) {
	var updated *models.User
	report := &models.SyncReport{}
	err := s.store.WithinTx(ctx, func(tx repository.EnrollmentTx) error {
		student, err := tx.LockUser(ctx, studentID, models.RoleStudent)
		if err != nil {
			return notFound(err, "student not found")
		}
		if apply != nil {
			if err := apply(student); err != nil {
				return err
			}
			if err := tx.UpdateUser(ctx, student); err != nil {
				return err
			}
		}
		updated = student
		if batchIDs == nil {
			return nil
		}
		return s.setStudentBatches(ctx, tx, studentID, batchIDs, report)
	})
	if err != nil {
		return nil, nil, s.txError(err, "failed to update student", "email, username, or roll number already exists")
	}
	s.finish(ctx, syncStudentUpdate, studentID, report)
	return updated, report, nil
}

// SetStudentBatches replaces the batch memberships of a student.
func (s *EnrollmentService) SetStudentBatches(ctx context.Context, studentID string, batchIDs []string) (*models.SyncReport, error) {
	if batchIDs == nil {
		batchIDs = []string{}
	}
	_, report, err := s.UpdateStudent(ctx, studentID, nil, batchIDs)
	return report, err
}

func (s *EnrollmentService) setStudentBatches(ctx context.Context, tx repository.EnrollmentTx, studentID string, batchIDs []string, report *models.SyncReport) error {
	current, err := tx.StudentBatchIDs(ctx, studentID)
	if err != nil {
		return err
	}
	added, removed := diffIDs(current, uniqueIDs(batchIDs))
	if len(added) == 0 && len(removed) == 0 {
		return nil
	}
	// Lock in id order so concurrent roster edits of the same batches serialize without deadlock.
	touched := uniqueIDs(append(append([]string{}, added...), removed...))
	for _, batchID := range touched {
		if _, err := tx.LockBatch(ctx, batchID); err != nil {
			return notFound(err, "batch not found")
		}
	}
	for _, batchID := range removed {
		if err := tx.RemoveBatchStudents(ctx, batchID, []string{studentID}); err != nil {
			return err
		}
	}
	for _, batchID := range added {
		if err := tx.AddBatchStudents(ctx, batchID, []string{studentID}); err != nil {
			return err
		}
	}
	report.Added, report.Removed = added, removed

	courseIDs, err := tx.CourseIDsByBatches(ctx, touched)
	if err != nil {
		return err
	}
	return s.reconcileCourses(ctx, tx, courseIDs, report)
}

// DeleteStudent removes a student with all of their grades, submissions and memberships.
func (s *EnrollmentService) DeleteStudent(ctx context.Context, studentID string) (*models.SyncReport, error) {
	report := &models.SyncReport{}
	err := s.store.WithinTx(ctx, func(tx repository.EnrollmentTx) error {
		if _, err := tx.LockUser(ctx, studentID, models.RoleStudent); err != nil {
			return notFound(err, "student not found")
		}
		batches, err := tx.StudentBatchIDs(ctx, studentID)
		if err != nil {
			return err
		}
		grades, err := tx.DeleteGradesByStudent(ctx, studentID)
		if err != nil {
			return err
		}
		submissions, err := tx.DeleteSubmissionsByStudent(ctx, studentID)
		if err != nil {
			return err
		}
		for _, batchID := range batches {
			if err := tx.RemoveBatchStudents(ctx, batchID, []string{studentID}); err != nil {
				return err
			}
		}
		report.Removed = batches
		report.GradesDeleted += grades
		report.SubmissionsDeleted += submissions
		return tx.DeleteUser(ctx, studentID)
	})
	if err != nil {
		return nil, s.txError(err, "failed to delete student", "")
	}
	s.finish(ctx, syncStudentDelete, studentID, report)
	return report, nil
}

// DeleteFaculty removes a faculty member and their course links. Courses and tasks are kept;
// the report lists courses left without faculty and tasks whose creator is gone.
func (s *EnrollmentService) DeleteFaculty(ctx context.Context, facultyID string) (*models.FacultyDeletionReport, error) {
	report := &models.FacultyDeletionReport{FacultyID: facultyID}
	err := s.store.WithinTx(ctx, func(tx repository.EnrollmentTx) error {
		if _, err := tx.LockUser(ctx, facultyID, models.RoleFaculty); err != nil {
			return notFound(err, "faculty not found")
		}
		courseIDs, err := tx.FacultyCourseIDs(ctx, facultyID)
		if err != nil {
			return err
		}
		removed, err := tx.RemoveFacultyFromCourses(ctx, facultyID)
		if err != nil {
			return err
		}
		orphaned, err := tx.CoursesWithoutFaculty(ctx, courseIDs)
		if err != nil {
			return err
		}
		tasks, err := tx.TaskIDsByCreator(ctx, facultyID)
		if err != nil {
			return err
		}
		report.CourseLinksRemoved = removed
		report.CoursesWithoutFaculty = orphaned
		report.OrphanedTaskIDs = tasks
		return tx.DeleteUser(ctx, facultyID)
	})
	if err != nil {
		return nil, s.txError(err, "failed to delete faculty", "")
	}
	s.finish(ctx, syncFacultyDelete, facultyID, &models.SyncReport{})
	return report, nil
}

// reconcileCourses locks every affected course in id order before reading any enrolled set.
func (s *EnrollmentService) reconcileCourses(ctx context.Context, tx repository.EnrollmentTx, courseIDs []string, report *models.SyncReport) error {
	locked := make([]string, 0, len(courseIDs))
	for _, courseID := range uniqueIDs(courseIDs) {
		if _, err := tx.LockCourse(ctx, courseID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return err
		}
		locked = append(locked, courseID)
	}
	for _, courseID := range locked {
		if err := s.reconcileCourse(ctx, tx, courseID, report); err != nil {
			return err
		}
	}
	return nil
}

// reconcileCourse restores the placeholder invariant for one course: exactly one grade per
// (task, enrolled student), and no grade or submission for students no longer enrolled.
func (s *EnrollmentService) reconcileCourse(ctx context.Context, tx repository.EnrollmentTx, courseID string, report *models.SyncReport) error {
	enrolled, err := tx.EnrolledStudentIDs(ctx, courseID)
	if err != nil {
		return err
	}
	taskIDs, err := tx.TaskIDsByCourse(ctx, courseID)
	if err != nil {
		return err
	}
	if len(taskIDs) == 0 {
		return nil
	}
	existing, err := tx.GradeKeys(ctx, taskIDs)
	if err != nil {
		return err
	}

	enrolledSet := toSet(enrolled)
	present := make(map[models.GradeKey]struct{}, len(existing))
	var stale []models.GradeKey
	for _, key := range existing {
		present[key] = struct{}{}
		if _, ok := enrolledSet[key.StudentID]; !ok {
			stale = append(stale, key)
		}
	}
	var missing []models.GradeKey
	for _, taskID := range taskIDs {
		for _, studentID := range enrolled {
			key := models.GradeKey{TaskID: taskID, StudentID: studentID}
			if _, ok := present[key]; !ok {
				missing = append(missing, key)
			}
		}
	}

	deletedGrades, err := tx.DeleteGrades(ctx, stale)
	if err != nil {
		return err
	}
	deletedSubs, err := tx.DeleteSubmissions(ctx, stale)
	if err != nil {
		return err
	}
	created, err := tx.InsertGradePlaceholders(ctx, missing)
	if err != nil {
		return err
	}
	report.GradesDeleted += deletedGrades
	report.SubmissionsDeleted += deletedSubs
	report.GradesCreated += created
	return nil
}

// finish runs after commit: metrics, cache invalidation and a log line.
func (s *EnrollmentService) finish(ctx context.Context, operation, subject string, report *models.SyncReport) {
	s.metrics.RecordSync(operation, report.GradesCreated, report.GradesDeleted)
	s.cache.InvalidateNamespaces(ctx, cache.NamespaceAnalytics, cache.NamespaceDashboard)
	s.logger.Info("enrollment sync committed",
		zap.String("operation", operation),
		zap.String("subject", subject),
		zap.Int("added", len(report.Added)),
		zap.Int("removed", len(report.Removed)),
		zap.Int("grades_created", report.GradesCreated),
		zap.Int("grades_deleted", report.GradesDeleted),
		zap.Int("submissions_deleted", report.SubmissionsDeleted),
	)
}

// txError maps a failed unit of work onto a typed error. Typed errors raised inside the
// transaction pass through unchanged.
func (s *EnrollmentService) txError(err error, message, conflict string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if conflict != "" && appErrors.IsUniqueViolation(err) {
		return appErrors.Clone(appErrors.ErrConflict, conflict)
	}
	s.logger.Error(message, zap.Error(err))
	return appErrors.Internal(err, message)
}

func notFound(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, message)
	}
	return err
}

// uniqueIDs trims, drops blanks and duplicates, and sorts.
func uniqueIDs(ids []string) []string {
	out := uniqueOrdered(ids)
	sort.Strings(out)
	return out
}

// uniqueOrdered trims and drops blanks and duplicates, keeping first-seen order.
func uniqueOrdered(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// diffIDs returns the ids of desired missing from current and of current missing from desired.
func diffIDs(current, desired []string) (added, removed []string) {
	currentSet := toSet(current)
	desiredSet := toSet(desired)
	for _, id := range desired {
		if _, ok := currentSet[id]; !ok {
			added = append(added, id)
		}
	}
	for _, id := range current {
		if _, ok := desiredSet[id]; !ok {
			removed = append(removed, id)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
