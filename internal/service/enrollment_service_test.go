package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/repository"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

// fakeEnrollmentStore is an in-memory unit of work. WithinTx snapshots state and restores
// it when the callback fails, mirroring a rolled back transaction.
type fakeEnrollmentStore struct {
	batches       map[string]models.Batch
	courses       map[string]models.Course
	tasks         map[string]models.Task
	users         map[string]models.User
	batchStudents map[string]map[string]bool
	courseBatches map[string]map[string]bool
	courseFaculty map[string][]string
	grades        map[models.GradeKey]models.Grade
	submissions   map[models.GradeKey]bool

	failOn string
	seq    int
	trace  []string
}

func newFakeEnrollmentStore() *fakeEnrollmentStore {
	return &fakeEnrollmentStore{
		batches:       map[string]models.Batch{},
		courses:       map[string]models.Course{},
		tasks:         map[string]models.Task{},
		users:         map[string]models.User{},
		batchStudents: map[string]map[string]bool{},
		courseBatches: map[string]map[string]bool{},
		courseFaculty: map[string][]string{},
		grades:        map[models.GradeKey]models.Grade{},
		submissions:   map[models.GradeKey]bool{},
	}
}

func (f *fakeEnrollmentStore) WithinTx(ctx context.Context, fn func(repository.EnrollmentTx) error) error {
	snapshot := f.clone()
	if err := fn(f); err != nil {
		f.restore(snapshot)
		return err
	}
	return nil
}

func (f *fakeEnrollmentStore) clone() *fakeEnrollmentStore {
	c := newFakeEnrollmentStore()
	for k, v := range f.batches {
		c.batches[k] = v
	}
	for k, v := range f.courses {
		c.courses[k] = v
	}
	for k, v := range f.tasks {
		c.tasks[k] = v
	}
	for k, v := range f.users {
		c.users[k] = v
	}
	for k, set := range f.batchStudents {
		c.batchStudents[k] = copySet(set)
	}
	for k, set := range f.courseBatches {
		c.courseBatches[k] = copySet(set)
	}
	for k, v := range f.courseFaculty {
		c.courseFaculty[k] = append([]string(nil), v...)
	}
	for k, v := range f.grades {
		c.grades[k] = v
	}
	for k, v := range f.submissions {
		c.submissions[k] = v
	}
	return c
}

func (f *fakeEnrollmentStore) restore(c *fakeEnrollmentStore) {
	f.batches, f.courses, f.tasks, f.users = c.batches, c.courses, c.tasks, c.users
	f.batchStudents, f.courseBatches, f.courseFaculty = c.batchStudents, c.courseBatches, c.courseFaculty
	f.grades, f.submissions = c.grades, c.submissions
}

func copySet(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (f *fakeEnrollmentStore) fail(op string) error {
	if f.failOn == op {
		return fmt.Errorf("%s: connection reset", op)
	}
	return nil
}

func (f *fakeEnrollmentStore) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeEnrollmentStore) LockBatch(ctx context.Context, id string) (*models.Batch, error) {
	b, ok := f.batches[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &b, nil
}

func (f *fakeEnrollmentStore) LockCourse(ctx context.Context, id string) (*models.Course, error) {
	f.trace = append(f.trace, "lock:"+id)
	c, ok := f.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (f *fakeEnrollmentStore) LockTask(ctx context.Context, id string) (*models.Task, error) {
	t, ok := f.tasks[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &t, nil
}

func (f *fakeEnrollmentStore) LockUser(ctx context.Context, id string, role models.UserRole) (*models.User, error) {
	u, ok := f.users[id]
	if !ok || u.Role != role {
		return nil, sql.ErrNoRows
	}
	return &u, nil
}

func (f *fakeEnrollmentStore) CreateBatch(ctx context.Context, batch *models.Batch) error {
	if batch.ID == "" {
		batch.ID = f.nextID("batch")
	}
	f.batches[batch.ID] = *batch
	return nil
}

func (f *fakeEnrollmentStore) UpdateBatch(ctx context.Context, batch *models.Batch) error {
	f.batches[batch.ID] = *batch
	return nil
}

func (f *fakeEnrollmentStore) DeleteBatch(ctx context.Context, id string) error {
	delete(f.batches, id)
	delete(f.batchStudents, id)
	for _, set := range f.courseBatches {
		delete(set, id)
	}
	return nil
}

func (f *fakeEnrollmentStore) CreateCourse(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = f.nextID("course")
	}
	f.courses[course.ID] = *course
	return nil
}

func (f *fakeEnrollmentStore) UpdateCourse(ctx context.Context, course *models.Course) error {
	f.courses[course.ID] = *course
	return nil
}

func (f *fakeEnrollmentStore) DeleteCourse(ctx context.Context, id string) error {
	delete(f.courses, id)
	delete(f.courseBatches, id)
	delete(f.courseFaculty, id)
	return nil
}

func (f *fakeEnrollmentStore) CreateTask(ctx context.Context, task *models.Task) error {
	if task.ID == "" {
		task.ID = f.nextID("task")
	}
	f.tasks[task.ID] = *task
	return nil
}

func (f *fakeEnrollmentStore) UpdateTask(ctx context.Context, task *models.Task) error {
	f.tasks[task.ID] = *task
	return nil
}

func (f *fakeEnrollmentStore) DeleteTask(ctx context.Context, id string) error {
	delete(f.tasks, id)
	return nil
}

func (f *fakeEnrollmentStore) CreateUser(ctx context.Context, user *models.User) error {
	for _, existing := range f.users {
		if existing.Email == user.Email {
			return appErrors.Clone(appErrors.ErrConflict, "email already exists")
		}
	}
	if user.ID == "" {
		user.ID = f.nextID("user")
	}
	f.users[user.ID] = *user
	return nil
}

func (f *fakeEnrollmentStore) UpdateUser(ctx context.Context, user *models.User) error {
	f.users[user.ID] = *user
	return nil
}

func (f *fakeEnrollmentStore) DeleteUser(ctx context.Context, id string) error {
	delete(f.users, id)
	return nil
}

func (f *fakeEnrollmentStore) CourseFacultyIDs(ctx context.Context, courseID string) ([]string, error) {
	return append([]string(nil), f.courseFaculty[courseID]...), nil
}

func (f *fakeEnrollmentStore) SetCourseFaculty(ctx context.Context, courseID string, facultyIDs []string) error {
	f.courseFaculty[courseID] = append([]string(nil), facultyIDs...)
	return nil
}

func (f *fakeEnrollmentStore) FacultyCourseIDs(ctx context.Context, facultyID string) ([]string, error) {
	var out []string
	for courseID, faculty := range f.courseFaculty {
		for _, id := range faculty {
			if id == facultyID {
				out = append(out, courseID)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeEnrollmentStore) RemoveFacultyFromCourses(ctx context.Context, facultyID string) (int, error) {
	removed := 0
	for courseID, faculty := range f.courseFaculty {
		kept := faculty[:0:0]
		for _, id := range faculty {
			if id == facultyID {
				removed++
				continue
			}
			kept = append(kept, id)
		}
		f.courseFaculty[courseID] = kept
	}
	return removed, nil
}

func (f *fakeEnrollmentStore) CoursesWithoutFaculty(ctx context.Context, courseIDs []string) ([]models.CourseSummary, error) {
	var out []models.CourseSummary
	for _, id := range courseIDs {
		if len(f.courseFaculty[id]) == 0 {
			c := f.courses[id]
			out = append(out, models.CourseSummary{ID: id, CourseCode: c.CourseCode, Title: c.Title})
		}
	}
	return out, nil
}

func (f *fakeEnrollmentStore) TaskIDsByCreator(ctx context.Context, creatorID string) ([]string, error) {
	var out []string
	for id, t := range f.tasks {
		if t.CreatedBy == creatorID {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeEnrollmentStore) BatchStudentIDs(ctx context.Context, batchID string) ([]string, error) {
	return sortedKeys(f.batchStudents[batchID]), nil
}

func (f *fakeEnrollmentStore) AddBatchStudents(ctx context.Context, batchID string, studentIDs []string) error {
	if err := f.fail("AddBatchStudents"); err != nil {
		return err
	}
	if f.batchStudents[batchID] == nil {
		f.batchStudents[batchID] = map[string]bool{}
	}
	for _, id := range studentIDs {
		f.batchStudents[batchID][id] = true
	}
	return nil
}

func (f *fakeEnrollmentStore) RemoveBatchStudents(ctx context.Context, batchID string, studentIDs []string) error {
	for _, id := range studentIDs {
		delete(f.batchStudents[batchID], id)
	}
	return nil
}

func (f *fakeEnrollmentStore) StudentBatchIDs(ctx context.Context, studentID string) ([]string, error) {
	var out []string
	for batchID, set := range f.batchStudents {
		if set[studentID] {
			out = append(out, batchID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeEnrollmentStore) CourseBatchIDs(ctx context.Context, courseID string) ([]string, error) {
	return sortedKeys(f.courseBatches[courseID]), nil
}

func (f *fakeEnrollmentStore) AddCourseBatches(ctx context.Context, courseID string, batchIDs []string) error {
	if f.courseBatches[courseID] == nil {
		f.courseBatches[courseID] = map[string]bool{}
	}
	for _, id := range batchIDs {
		f.courseBatches[courseID][id] = true
	}
	return nil
}

func (f *fakeEnrollmentStore) RemoveCourseBatches(ctx context.Context, courseID string, batchIDs []string) error {
	for _, id := range batchIDs {
		delete(f.courseBatches[courseID], id)
	}
	return nil
}

func (f *fakeEnrollmentStore) CourseIDsByBatches(ctx context.Context, batchIDs []string) ([]string, error) {
	wanted := toSet(batchIDs)
	seen := map[string]bool{}
	for courseID, set := range f.courseBatches {
		for batchID := range set {
			if _, ok := wanted[batchID]; ok {
				seen[courseID] = true
			}
		}
	}
	return sortedKeys(seen), nil
}

func (f *fakeEnrollmentStore) EnrolledStudentIDs(ctx context.Context, courseID string) ([]string, error) {
	f.trace = append(f.trace, "enrolled:"+courseID)
	seen := map[string]bool{}
	for batchID := range f.courseBatches[courseID] {
		for studentID := range f.batchStudents[batchID] {
			seen[studentID] = true
		}
	}
	return sortedKeys(seen), nil
}

func (f *fakeEnrollmentStore) TaskIDsByCourse(ctx context.Context, courseID string) ([]string, error) {
	var out []string
	for id, t := range f.tasks {
		if t.CourseID == courseID {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeEnrollmentStore) GradeKeys(ctx context.Context, taskIDs []string) ([]models.GradeKey, error) {
	wanted := toSet(taskIDs)
	var out []models.GradeKey
	for key := range f.grades {
		if _, ok := wanted[key.TaskID]; ok {
			out = append(out, key)
		}
	}
	return out, nil
}

func (f *fakeEnrollmentStore) InsertGradePlaceholders(ctx context.Context, keys []models.GradeKey) (int, error) {
	if err := f.fail("InsertGradePlaceholders"); err != nil {
		return 0, err
	}
	created := 0
	for _, key := range keys {
		if _, ok := f.grades[key]; ok {
			continue
		}
		f.grades[key] = models.Grade{ID: f.nextID("grade"), TaskID: key.TaskID, StudentID: key.StudentID, Status: models.GradeStatusPending}
		created++
	}
	return created, nil
}

func (f *fakeEnrollmentStore) DeleteGrades(ctx context.Context, keys []models.GradeKey) (int, error) {
	deleted := 0
	for _, key := range keys {
		if _, ok := f.grades[key]; ok {
			delete(f.grades, key)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeEnrollmentStore) DeleteSubmissions(ctx context.Context, keys []models.GradeKey) (int, error) {
	deleted := 0
	for _, key := range keys {
		if f.submissions[key] {
			delete(f.submissions, key)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeEnrollmentStore) DeleteGradesByTasks(ctx context.Context, taskIDs []string) (int, error) {
	keys, _ := f.GradeKeys(ctx, taskIDs)
	return f.DeleteGrades(ctx, keys)
}

func (f *fakeEnrollmentStore) DeleteSubmissionsByTasks(ctx context.Context, taskIDs []string) (int, error) {
	wanted := toSet(taskIDs)
	deleted := 0
	for key := range f.submissions {
		if _, ok := wanted[key.TaskID]; ok {
			delete(f.submissions, key)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeEnrollmentStore) DeleteGradesByStudent(ctx context.Context, studentID string) (int, error) {
	deleted := 0
	for key := range f.grades {
		if key.StudentID == studentID {
			delete(f.grades, key)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeEnrollmentStore) DeleteSubmissionsByStudent(ctx context.Context, studentID string) (int, error) {
	deleted := 0
	for key := range f.submissions {
		if key.StudentID == studentID {
			delete(f.submissions, key)
			deleted++
		}
	}
	return deleted, nil
}

// assertPlaceholderInvariant checks that grades are exactly tasks × enrolled students.
func assertPlaceholderInvariant(t *testing.T, f *fakeEnrollmentStore) {
	t.Helper()
	expected := map[models.GradeKey]bool{}
	for courseID := range f.courses {
		students, _ := f.EnrolledStudentIDs(context.Background(), courseID)
		tasks, _ := f.TaskIDsByCourse(context.Background(), courseID)
		for _, taskID := range tasks {
			for _, studentID := range students {
				expected[models.GradeKey{TaskID: taskID, StudentID: studentID}] = true
			}
		}
	}
	actual := map[models.GradeKey]bool{}
	for key := range f.grades {
		actual[key] = true
	}
	assert.Equal(t, expected, actual)
	for key := range f.submissions {
		assert.True(t, expected[key], "orphan submission %v", key)
	}
}

// seedCourse builds course c1 taught by f1 with batches b1 {s1,s2} and b2 {s2,s3} and one task.
func seedCourse(t *testing.T) (*fakeEnrollmentStore, *EnrollmentService) {
	t.Helper()
	store := newFakeEnrollmentStore()
	for _, id := range []string{"s1", "s2", "s3", "s4"} {
		store.users[id] = models.User{ID: id, Role: models.RoleStudent, Email: id + "@lms.test"}
	}
	store.users["f1"] = models.User{ID: "f1", Role: models.RoleFaculty, Email: "f1@lms.test"}
	store.batches["b1"] = models.Batch{ID: "b1", Name: "A"}
	store.batches["b2"] = models.Batch{ID: "b2", Name: "B"}
	store.batchStudents["b1"] = map[string]bool{"s1": true, "s2": true}
	store.batchStudents["b2"] = map[string]bool{"s2": true, "s3": true}

	svc := NewEnrollmentService(store, nil, nil, nil)
	ctx := context.Background()
	_, err := svc.CreateCourse(ctx, &models.Course{ID: "c1", CourseCode: "CS101", Title: "Intro"}, []string{"f1"}, []string{"b1", "b2"})
	require.NoError(t, err)
	now := time.Now()
	report, err := svc.CreateTask(ctx, &models.Task{ID: "t1", CourseID: "c1", PublishDate: now, DueDate: now.Add(time.Hour)})
	require.NoError(t, err)
	require.Equal(t, 3, report.GradesCreated)
	return store, svc
}

func TestEnrollmentCreateTaskAttributesFirstFaculty(t *testing.T) {
	store, _ := seedCourse(t)
	assert.Equal(t, "f1", store.tasks["t1"].CreatedBy)
	assertPlaceholderInvariant(t, store)
}

func TestEnrollmentCreateTaskRequiresFaculty(t *testing.T) {
	store, svc := seedCourse(t)
	store.courseFaculty["c1"] = nil

	_, err := svc.CreateTask(context.Background(), &models.Task{CourseID: "c1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestEnrollmentCreateTaskUnknownCourse(t *testing.T) {
	_, svc := seedCourse(t)
	_, err := svc.CreateTask(context.Background(), &models.Task{CourseID: "missing"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestSyncBatchStudentsAddsAndRemoves(t *testing.T) {
	store, svc := seedCourse(t)
	store.submissions[models.GradeKey{TaskID: "t1", StudentID: "s1"}] = true

	report, err := svc.SyncBatchStudents(context.Background(), "b1", []string{"s2", "s4"})
	require.NoError(t, err)
	assert.Equal(t, []string{"s4"}, report.Added)
	assert.Equal(t, []string{"s1"}, report.Removed)
	assert.Equal(t, 1, report.GradesCreated)
	assert.Equal(t, 1, report.GradesDeleted)
	assert.Equal(t, 1, report.SubmissionsDeleted)
	assertPlaceholderInvariant(t, store)
}

func TestSyncBatchStudentsLocksCoursesBeforeReadingEnrollment(t *testing.T) {
	store, svc := seedCourse(t)
	store.courses["c2"] = models.Course{ID: "c2", Title: "Networks"}
	store.courseBatches["c2"] = map[string]bool{"b2": true}
	store.trace = nil

	_, err := svc.SyncBatchStudents(context.Background(), "b2", []string{"s3", "s4"})
	require.NoError(t, err)
	assert.Equal(t, []string{"lock:c1", "lock:c2", "enrolled:c1", "enrolled:c2"}, store.trace)
	assertPlaceholderInvariant(t, store)
}

func TestSyncBatchStudentsKeepsGradesEnrolledThroughAnotherBatch(t *testing.T) {
	store, svc := seedCourse(t)
	key := models.GradeKey{TaskID: "t1", StudentID: "s2"}
	graded := store.grades[key]
	score := 9.0
	graded.Grade, graded.Status = &score, models.GradeStatusGraded
	store.grades[key] = graded

	report, err := svc.SyncBatchStudents(context.Background(), "b1", []string{"s1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"s2"}, report.Removed)
	assert.Zero(t, report.GradesDeleted)
	require.Contains(t, store.grades, key)
	assert.Equal(t, models.GradeStatusGraded, store.grades[key].Status)
}

func TestSyncBatchStudentsIsIdempotent(t *testing.T) {
	store, svc := seedCourse(t)
	ctx := context.Background()
	_, err := svc.SyncBatchStudents(ctx, "b1", []string{"s1", "s4"})
	require.NoError(t, err)
	before := len(store.grades)

	report, err := svc.SyncBatchStudents(ctx, "b1", []string{"s4", "s1", " s1 "})
	require.NoError(t, err)
	assert.False(t, report.Changed())
	assert.Equal(t, before, len(store.grades))
}

func TestSyncBatchStudentsRollsBackOnFailure(t *testing.T) {
	store, svc := seedCourse(t)
	store.failOn = "InsertGradePlaceholders"
	gradesBefore := len(store.grades)

	_, err := svc.SyncBatchStudents(context.Background(), "b1", []string{"s4"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
	assert.Equal(t, gradesBefore, len(store.grades))
	assert.True(t, store.batchStudents["b1"]["s1"])
	assert.False(t, store.batchStudents["b1"]["s4"])
}

func TestSyncCourseBatchesDropsRemovedBatch(t *testing.T) {
	store, svc := seedCourse(t)
	report, err := svc.SyncCourseBatches(context.Background(), "c1", []string{"b2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, report.Removed)
	assert.Equal(t, 1, report.GradesDeleted)
	assertPlaceholderInvariant(t, store)
}

func TestReassignTaskMovesPlaceholders(t *testing.T) {
	store, svc := seedCourse(t)
	ctx := context.Background()
	store.batches["b3"] = models.Batch{ID: "b3"}
	store.batchStudents["b3"] = map[string]bool{"s4": true}
	_, err := svc.CreateCourse(ctx, &models.Course{ID: "c2", CourseCode: "CS102"}, []string{"f1"}, []string{"b3"})
	require.NoError(t, err)
	store.submissions[models.GradeKey{TaskID: "t1", StudentID: "s1"}] = true

	report, err := svc.ReassignTask(ctx, "t1", "c2")
	require.NoError(t, err)
	assert.Equal(t, 3, report.GradesDeleted)
	assert.Equal(t, 1, report.SubmissionsDeleted)
	assert.Equal(t, 1, report.GradesCreated)
	assert.Equal(t, "c2", store.tasks["t1"].CourseID)
	assertPlaceholderInvariant(t, store)
}

func TestUpdateTaskRejectsDueBeforePublish(t *testing.T) {
	_, svc := seedCourse(t)
	_, _, err := svc.UpdateTask(context.Background(), "t1", func(task *models.Task) error {
		task.DueDate = task.PublishDate.Add(-time.Minute)
		return nil
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestDeleteBatchReconcilesCourses(t *testing.T) {
	store, svc := seedCourse(t)
	_, err := svc.DeleteBatch(context.Background(), "b2")
	require.NoError(t, err)
	assert.NotContains(t, store.grades, models.GradeKey{TaskID: "t1", StudentID: "s3"})
	assert.Contains(t, store.grades, models.GradeKey{TaskID: "t1", StudentID: "s2"})
	assertPlaceholderInvariant(t, store)
}

func TestDeleteCourseRemovesTasksAndGrades(t *testing.T) {
	store, svc := seedCourse(t)
	report, err := svc.DeleteCourse(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 3, report.GradesDeleted)
	assert.Empty(t, store.tasks)
	assert.Empty(t, store.grades)
}

func TestSetStudentBatchesEnrollsIntoCourses(t *testing.T) {
	store, svc := seedCourse(t)
	report, err := svc.SetStudentBatches(context.Background(), "s4", []string{"b2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b2"}, report.Added)
	assert.Equal(t, 1, report.GradesCreated)
	assertPlaceholderInvariant(t, store)
}

func TestSetStudentBatchesUnknownBatch(t *testing.T) {
	_, svc := seedCourse(t)
	_, err := svc.SetStudentBatches(context.Background(), "s4", []string{"nope"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestCreateStudentWithBatches(t *testing.T) {
	store, svc := seedCourse(t)
	student := &models.User{Email: "new@lms.test"}
	report, err := svc.CreateStudent(context.Background(), student, []string{"b1"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, store.users[student.ID].Role)
	assert.Equal(t, 1, report.GradesCreated)
	assertPlaceholderInvariant(t, store)
}

func TestDeleteStudentCascades(t *testing.T) {
	store, svc := seedCourse(t)
	store.submissions[models.GradeKey{TaskID: "t1", StudentID: "s2"}] = true

	report, err := svc.DeleteStudent(context.Background(), "s2")
	require.NoError(t, err)
	assert.Equal(t, 1, report.GradesDeleted)
	assert.Equal(t, 1, report.SubmissionsDeleted)
	assert.ElementsMatch(t, []string{"b1", "b2"}, report.Removed)
	assert.NotContains(t, store.users, "s2")
	assertPlaceholderInvariant(t, store)
}

func TestDeleteFacultyKeepsCoursesAndTasks(t *testing.T) {
	store, svc := seedCourse(t)
	report, err := svc.DeleteFaculty(context.Background(), "f1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.CourseLinksRemoved)
	require.Len(t, report.CoursesWithoutFaculty, 1)
	assert.Equal(t, "c1", report.CoursesWithoutFaculty[0].ID)
	assert.Equal(t, []string{"t1"}, report.OrphanedTaskIDs)
	assert.Contains(t, store.courses, "c1")
	assert.Contains(t, store.tasks, "t1")
	assert.NotContains(t, store.users, "f1")
}

func TestDeleteFacultyRejectsStudentID(t *testing.T) {
	_, svc := seedCourse(t)
	_, err := svc.DeleteFaculty(context.Background(), "s1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestDiffIDs(t *testing.T) {
	added, removed := diffIDs([]string{"a", "b", "c"}, []string{"c", "d", "a"})
	assert.Equal(t, []string{"d"}, added)
	assert.Equal(t, []string{"b"}, removed)
	assert.Equal(t, []string{"a", "b"}, uniqueIDs([]string{"b", " a", "", "b"}))
	assert.Equal(t, []string{"b", "a"}, uniqueOrdered([]string{"b", "a", "b"}))
}

func TestEnrollmentSeedTaskFillsOnlyMissingPlaceholders(t *testing.T) {
	store, svc := seedCourse(t)
	ctx := context.Background()
	delete(store.grades, models.GradeKey{TaskID: "t1", StudentID: "s2"})

	report, err := svc.SeedTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.GradesCreated)
	assertPlaceholderInvariant(t, store)

	report, err = svc.SeedTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 0, report.GradesCreated)

	_, err = svc.SeedTask(ctx, "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
