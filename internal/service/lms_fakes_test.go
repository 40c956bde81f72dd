package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/repository"
)

// Read-side views over fakeEnrollmentStore so workflow services and their readers
// observe the same state.

type fakeCourseReader struct{ store *fakeEnrollmentStore }

func (r fakeCourseReader) FindByID(ctx context.Context, id string) (*models.Course, error) {
	return r.store.LockCourse(ctx, id)
}

func (r fakeCourseReader) IsTaughtBy(ctx context.Context, courseID, facultyID string) (bool, error) {
	for _, id := range r.store.courseFaculty[courseID] {
		if id == facultyID {
			return true, nil
		}
	}
	return false, nil
}

func (r fakeCourseReader) IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error) {
	ids, _ := r.store.EnrolledStudentIDs(ctx, courseID)
	for _, id := range ids {
		if id == studentID {
			return true, nil
		}
	}
	return false, nil
}

func (r fakeCourseReader) Students(ctx context.Context, courseID string) ([]models.UserSummary, error) {
	ids, _ := r.store.EnrolledStudentIDs(ctx, courseID)
	out := make([]models.UserSummary, 0, len(ids))
	for _, id := range ids {
		u := r.store.users[id]
		out = append(out, models.UserSummary{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email})
	}
	return out, nil
}

func (r fakeCourseReader) Faculty(ctx context.Context, courseIDs []string) (map[string][]models.UserSummary, error) {
	out := map[string][]models.UserSummary{}
	for _, courseID := range courseIDs {
		for _, id := range r.store.courseFaculty[courseID] {
			out[courseID] = append(out[courseID], models.UserSummary{ID: id})
		}
	}
	return out, nil
}

type fakeTaskReader struct{ store *fakeEnrollmentStore }

func (r fakeTaskReader) FindByID(ctx context.Context, id string) (*models.Task, error) {
	return r.store.LockTask(ctx, id)
}

func (r fakeTaskReader) FindRow(ctx context.Context, id string) (*models.TaskRow, error) {
	task, err := r.store.LockTask(ctx, id)
	if err != nil {
		return nil, err
	}
	course := r.store.courses[task.CourseID]
	return &models.TaskRow{Task: *task, CourseCode: course.CourseCode, CourseTitle: course.Title}, nil
}

func (r fakeTaskReader) List(ctx context.Context, filter models.TaskFilter) ([]models.TaskRow, int, error) {
	courses := fakeCourseReader{store: r.store}
	var rows []models.TaskRow
	for _, task := range r.store.tasks {
		if filter.CourseID != "" && task.CourseID != filter.CourseID {
			continue
		}
		if filter.FacultyID != "" {
			if ok, _ := courses.IsTaughtBy(ctx, task.CourseID, filter.FacultyID); !ok {
				continue
			}
		}
		if filter.StudentID != "" {
			if ok, _ := courses.IsEnrolled(ctx, task.CourseID, filter.StudentID); !ok {
				continue
			}
		}
		row, _ := r.FindRow(ctx, task.ID)
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, len(rows), nil
}

func (r fakeTaskReader) GradeProgress(ctx context.Context, taskIDs []string) (map[string]models.GradeProgress, error) {
	out := map[string]models.GradeProgress{}
	wanted := toSet(taskIDs)
	for key, g := range r.store.grades {
		if _, ok := wanted[key.TaskID]; !ok {
			continue
		}
		p := out[key.TaskID]
		p.Total++
		if g.SubmissionID != nil {
			p.Submitted++
		}
		if g.Status == models.GradeStatusGraded {
			p.Graded++
		}
		out[key.TaskID] = p
	}
	return out, nil
}

type fakeGradeStore struct {
	store   *fakeEnrollmentStore
	subs    map[models.GradeKey]models.Submission
	updates []models.GradeUpdate
}

func newFakeGradeStore(store *fakeEnrollmentStore) *fakeGradeStore {
	return &fakeGradeStore{store: store, subs: map[models.GradeKey]models.Submission{}}
}

func (g *fakeGradeStore) byID(id string) (models.Grade, bool) {
	for _, grade := range g.store.grades {
		if grade.ID == id {
			return grade, true
		}
	}
	return models.Grade{}, false
}

func (g *fakeGradeStore) FindByIDs(ctx context.Context, ids []string) ([]models.Grade, error) {
	var out []models.Grade
	for _, id := range ids {
		if grade, ok := g.byID(id); ok {
			out = append(out, grade)
		}
	}
	return out, nil
}

func (g *fakeGradeStore) Update(ctx context.Context, update models.GradeUpdate) error {
	grade, ok := g.byID(update.ID)
	if !ok {
		return sql.ErrNoRows
	}
	grade.Grade = update.Grade
	grade.Status = update.Status
	grade.Feedback = update.Feedback
	grade.GradedBy = &update.GradedBy
	role := update.GraderRole
	grade.GraderRole = &role
	grade.GradedAt = update.GradedAt
	g.store.grades[grade.Key()] = grade
	g.updates = append(g.updates, update)
	return nil
}

func (g *fakeGradeStore) ListByTask(ctx context.Context, taskID string) ([]models.GradeDetail, error) {
	var out []models.GradeDetail
	for key, grade := range g.store.grades {
		if key.TaskID == taskID {
			out = append(out, models.GradeDetail{Grade: grade})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

func (g *fakeGradeStore) ListForStudent(ctx context.Context, studentID string) ([]models.StudentGrade, error) {
	var out []models.StudentGrade
	for key, grade := range g.store.grades {
		if key.StudentID == studentID {
			task := g.store.tasks[key.TaskID]
			out = append(out, models.StudentGrade{Grade: grade, TaskTitle: task.Title, MaxPoints: task.MaxPoints, CourseID: task.CourseID})
		}
	}
	return out, nil
}

func (g *fakeGradeStore) ForStudentTasks(ctx context.Context, studentID string, taskIDs []string) (map[string]models.Grade, error) {
	out := map[string]models.Grade{}
	for _, taskID := range taskIDs {
		if grade, ok := g.store.grades[models.GradeKey{TaskID: taskID, StudentID: studentID}]; ok {
			out[taskID] = grade
		}
	}
	return out, nil
}

func (g *fakeGradeStore) FindByTaskStudent(ctx context.Context, taskID, studentID string) (*models.Grade, error) {
	grade, ok := g.store.grades[models.GradeKey{TaskID: taskID, StudentID: studentID}]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &grade, nil
}

// Submission repository half, sharing the grade slots.

type fakeSubmissionRepo struct{ grades *fakeGradeStore }

func (r fakeSubmissionRepo) ListByTask(ctx context.Context, taskID string) ([]models.SubmissionDetail, error) {
	var out []models.SubmissionDetail
	for key, sub := range r.grades.subs {
		if key.TaskID == taskID {
			out = append(out, models.SubmissionDetail{Submission: sub})
		}
	}
	return out, nil
}

func (r fakeSubmissionRepo) FindByTaskStudent(ctx context.Context, taskID, studentID string) (*models.Submission, error) {
	sub, ok := r.grades.subs[models.GradeKey{TaskID: taskID, StudentID: studentID}]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &sub, nil
}

func (r fakeSubmissionRepo) Submit(ctx context.Context, sub *models.Submission, check repository.SubmissionCheck) error {
	key := models.GradeKey{TaskID: sub.TaskID, StudentID: sub.StudentID}
	store := r.grades.store
	enrolled, _ := store.EnrolledStudentIDs(ctx, sub.CourseID)
	if _, ok := toSet(enrolled)[sub.StudentID]; !ok {
		return repository.ErrNotEnrolled
	}
	var slot *models.Grade
	if g, ok := store.grades[key]; ok {
		slot = &g
	}
	if check != nil {
		if err := check(slot); err != nil {
			return err
		}
	}
	if existing, ok := r.grades.subs[key]; ok {
		sub.ID = existing.ID
	} else if sub.ID == "" {
		sub.ID = store.nextID("submission")
	}
	r.grades.subs[key] = *sub
	store.submissions[key] = true

	grade := models.Grade{ID: store.nextID("grade"), TaskID: sub.TaskID, StudentID: sub.StudentID}
	if slot != nil {
		grade = *slot
	}
	id := sub.ID
	grade.SubmissionID = &id
	grade.Status = models.GradeStatusPending
	store.grades[key] = grade
	return nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	requests []models.NotificationRequest
}

func (n *recordingNotifier) Notify(ctx context.Context, req models.NotificationRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requests = append(n.requests, req)
	return nil
}

func (n *recordingNotifier) ofType(kind models.NotificationType) []models.NotificationRequest {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []models.NotificationRequest
	for _, req := range n.requests {
		if req.Type == kind {
			out = append(out, req)
		}
	}
	return out
}

func recipientIDs(req models.NotificationRequest) []string {
	ids := make([]string, 0, len(req.Recipients))
	for _, r := range req.Recipients {
		ids = append(ids, r.ID)
	}
	sort.Strings(ids)
	return ids
}
