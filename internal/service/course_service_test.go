package service

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

// storeCourseRepo answers course, batch and user lookups from the enrollment fake.
type storeCourseRepo struct {
	store   *fakeEnrollmentStore
	filters []models.CourseFilter
}

func (r *storeCourseRepo) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	r.filters = append(r.filters, filter)
	courses := fakeCourseReader{store: r.store}
	var out []models.Course
	for _, c := range r.store.courses {
		if filter.FacultyID != "" {
			if ok, _ := courses.IsTaughtBy(ctx, c.ID, filter.FacultyID); !ok {
				continue
			}
		}
		if filter.StudentID != "" {
			if ok, _ := courses.IsEnrolled(ctx, c.ID, filter.StudentID); !ok {
				continue
			}
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (r *storeCourseRepo) Faculty(ctx context.Context, courseIDs []string) (map[string][]models.UserSummary, error) {
	return fakeCourseReader{store: r.store}.Faculty(ctx, courseIDs)
}

func (r *storeCourseRepo) Batches(ctx context.Context, courseIDs []string) (map[string][]models.BatchSummary, error) {
	out := map[string][]models.BatchSummary{}
	for _, courseID := range courseIDs {
		ids, _ := r.store.CourseBatchIDs(ctx, courseID)
		for _, id := range ids {
			out[courseID] = append(out[courseID], models.BatchSummary{ID: id, Name: r.store.batches[id].Name})
		}
	}
	return out, nil
}

func (r *storeCourseRepo) Students(ctx context.Context, courseID string) ([]models.UserSummary, error) {
	return fakeCourseReader{store: r.store}.Students(ctx, courseID)
}

func (r *storeCourseRepo) Search(_ context.Context, _, facultyID string, _ int) ([]models.CourseSummary, error) {
	return []models.CourseSummary{{ID: "c1", CourseCode: facultyID}}, nil
}

type storeBatchLookup struct{ store *fakeEnrollmentStore }

func (l storeBatchLookup) FindByIDs(_ context.Context, ids []string) ([]models.BatchSummary, error) {
	var out []models.BatchSummary
	for _, id := range ids {
		if b, ok := l.store.batches[id]; ok {
			out = append(out, models.BatchSummary{ID: b.ID, Name: b.Name})
		}
	}
	return out, nil
}

func (l storeBatchLookup) Search(_ context.Context, _ string, _ int) ([]models.BatchSummary, error) {
	return []models.BatchSummary{{ID: "b1"}}, nil
}

type storeUserLookup struct{ store *fakeEnrollmentStore }

func (l storeUserLookup) FindByIDs(_ context.Context, role models.UserRole, ids []string) ([]models.UserSummary, error) {
	var out []models.UserSummary
	for _, id := range ids {
		if u, ok := l.store.users[id]; ok && u.Role == role {
			out = append(out, models.UserSummary{ID: u.ID, Email: u.Email})
		}
	}
	return out, nil
}

func (l storeUserLookup) Search(_ context.Context, role models.UserRole, _ string, _ int) ([]models.UserSummary, error) {
	return []models.UserSummary{{ID: string(role)}}, nil
}

type courseFixture struct {
	store *fakeEnrollmentStore
	repo  *storeCourseRepo
	svc   *CourseService
}

func newCourseFixture(t *testing.T) *courseFixture {
	t.Helper()
	store, enrollment := seedCourse(t)
	store.users["f2"] = models.User{ID: "f2", Role: models.RoleFaculty, Email: "f2@lms.test"}
	repo := &storeCourseRepo{store: store}
	policy := NewAccessPolicy(fakeCourseReader{store: store}, fakeTaskReader{store: store})
	svc := NewCourseService(repo, storeBatchLookup{store: store}, storeUserLookup{store: store}, fakeTaskReader{store: store}, policy, enrollment, nil, nil, func() time.Time { return taskClock })
	return &courseFixture{store: store, repo: repo, svc: svc}
}

func courseRequest(batches ...string) models.CourseRequest {
	return models.CourseRequest{
		CourseCode:   " cs201 ",
		Title:        "Algorithms",
		Department:   "CS",
		AcademicYear: "2026",
		Batches:      batches,
	}
}

func TestCourseCreateByFacultyTeachesOwnCourse(t *testing.T) {
	fx := newCourseFixture(t)
	faculty := models.ActorRef{Kind: models.RoleFaculty, ID: "f2"}

	req := courseRequest("b1")
	req.Faculty = []string{"f1"}
	detail, err := fx.svc.Create(context.Background(), faculty, req)
	require.NoError(t, err)

	assert.Equal(t, "CS201", detail.CourseCode)
	assert.Equal(t, models.CourseStatusActive, detail.Status)
	require.Len(t, detail.Faculty, 1)
	assert.Equal(t, "f2", detail.Faculty[0].ID)
	assert.Len(t, detail.Students, 2)
	assert.Empty(t, detail.Tasks)
}

func TestCourseCreateRequiresFacultyForAdmins(t *testing.T) {
	fx := newCourseFixture(t)
	admin := models.ActorRef{Kind: models.RoleAdmin, ID: "a1"}

	_, err := fx.svc.Create(context.Background(), admin, courseRequest("b1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	req := courseRequest("b1")
	req.Faculty = []string{"s1"}
	_, err = fx.svc.Create(context.Background(), admin, req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown faculty ids")
}

func TestCourseCreateRejectsUnknownBatches(t *testing.T) {
	fx := newCourseFixture(t)
	req := courseRequest("b1", "nope")
	req.Faculty = []string{"f1"}

	_, err := fx.svc.Create(context.Background(), models.ActorRef{Kind: models.RoleAdmin, ID: "a1"}, req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestCourseUpdateFacultyCannotChangeFacultyList(t *testing.T) {
	fx := newCourseFixture(t)
	faculty := models.ActorRef{Kind: models.RoleFaculty, ID: "f1"}

	req := courseRequest()
	req.Batches = nil
	req.Faculty = []string{"f1", "f2"}
	_, _, err := fx.svc.Update(context.Background(), faculty, "c1", req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	req.Faculty = []string{"f1"}
	detail, _, err := fx.svc.Update(context.Background(), faculty, "c1", req)
	require.NoError(t, err)
	assert.Equal(t, "Algorithms", detail.Title)
	assert.Len(t, detail.Batches, 2, "nil batches keeps the current set")
}

func TestCourseUpdateByUnrelatedFacultyForbidden(t *testing.T) {
	fx := newCourseFixture(t)

	_, _, err := fx.svc.Update(context.Background(), models.ActorRef{Kind: models.RoleFaculty, ID: "f2"}, "c1", courseRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestCourseListScopesByRole(t *testing.T) {
	fx := newCourseFixture(t)
	ctx := context.Background()

	_, _, err := fx.svc.List(ctx, models.ActorRef{Kind: models.RoleStudent, ID: "s1"}, models.CourseFilter{})
	require.NoError(t, err)
	_, _, err = fx.svc.List(ctx, models.ActorRef{Kind: models.RoleFaculty, ID: "f1"}, models.CourseFilter{})
	require.NoError(t, err)
	details, page, err := fx.svc.List(ctx, models.ActorRef{Kind: models.RoleAdmin, ID: "a1"}, models.CourseFilter{})
	require.NoError(t, err)

	require.Len(t, fx.repo.filters, 3)
	assert.Equal(t, "s1", fx.repo.filters[0].StudentID)
	assert.Equal(t, "f1", fx.repo.filters[1].FacultyID)
	assert.Empty(t, fx.repo.filters[2].FacultyID)
	assert.Len(t, details, 1)
	assert.Equal(t, 1, page.Total)
}

func TestCourseDetailsForStudents(t *testing.T) {
	fx := newCourseFixture(t)

	detail, err := fx.svc.Details(context.Background(), models.ActorRef{Kind: models.RoleStudent, ID: "s1"}, "c1")
	require.NoError(t, err)
	require.Len(t, detail.Tasks, 1)
	assert.Equal(t, "t1", detail.Tasks[0].ID)

	_, err = fx.svc.Details(context.Background(), models.ActorRef{Kind: models.RoleStudent, ID: "s4"}, "c1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestCourseDeleteRemovesTaskWork(t *testing.T) {
	fx := newCourseFixture(t)

	report, err := fx.svc.Delete(context.Background(), models.ActorRef{Kind: models.RoleAdmin, ID: "a1"}, "c1")
	require.NoError(t, err)
	assert.Equal(t, 3, report.GradesDeleted)
	assert.NotContains(t, fx.store.courses, "c1")
	assert.NotContains(t, fx.store.tasks, "t1")
}

func TestCourseSearchAssignables(t *testing.T) {
	fx := newCourseFixture(t)
	ctx := context.Background()

	result, err := fx.svc.SearchAssignables(ctx, "faculty", "jo")
	require.NoError(t, err)
	assert.Equal(t, []models.UserSummary{{ID: string(models.RoleFaculty)}}, result.Faculty)

	result, err = fx.svc.SearchAssignables(ctx, "batch", "x")
	require.NoError(t, err)
	assert.Empty(t, result.Batches)

	_, err = fx.svc.SearchAssignables(ctx, "rooms", "lab")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	courses, err := fx.svc.SearchTaskAssignables(ctx, models.ActorRef{Kind: models.RoleFaculty, ID: "f1"}, "cs")
	require.NoError(t, err)
	assert.Equal(t, "f1", courses[0].CourseCode)
}
