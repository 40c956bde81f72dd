package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
)

type fakeDashboardRepo struct {
	calls    map[string]int
	trendArg models.AnalyticsFilter
}

func (f *fakeDashboardRepo) hit(name string) {
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[name]++
}

func (f *fakeDashboardRepo) AdminTotals(ctx context.Context, now time.Time) (dto.AdminTotals, error) {
	f.hit("totals")
	return dto.AdminTotals{Students: 40, Faculty: 4, Courses: 6, Batches: 3, ActiveTasks: 5, Grades: 3, Graded: 2}, nil
}

func (f *fakeDashboardRepo) MonthlyStats(ctx context.Context, year int) ([]dto.MonthlyStat, error) {
	f.hit("monthly")
	return []dto.MonthlyStat{{Month: 1, Tasks: 2}}, nil
}

func (f *fakeDashboardRepo) TopStudents(ctx context.Context, limit int) ([]dto.TopStudent, error) {
	f.hit("top")
	return nil, nil
}

func (f *fakeDashboardRepo) FacultyKPIs(ctx context.Context, facultyID string, now time.Time) (dto.FacultyKPIs, error) {
	f.hit("faculty")
	return dto.FacultyKPIs{MyCourses: 2, PendingGrading: 7}, nil
}

func (f *fakeDashboardRepo) RecentSubmissions(ctx context.Context, facultyID string, limit int) ([]dto.RecentSubmission, error) {
	f.hit("recent")
	return []dto.RecentSubmission{{SubmissionID: "sub-1", TaskTitle: "Lab 1"}}, nil
}

func (f *fakeDashboardRepo) SubmissionTrend(ctx context.Context, filter models.AnalyticsFilter) ([]models.DailyCount, error) {
	f.hit("trend")
	f.trendArg = filter
	return nil, nil
}

func (f *fakeDashboardRepo) StudentKPIs(ctx context.Context, studentID string, now time.Time) (dto.StudentKPIs, error) {
	f.hit("student")
	return dto.StudentKPIs{EnrolledCourses: 2, PendingAssignments: 1}, nil
}

type fakeUpcoming struct{ rows []models.TaskRow }

func (f fakeUpcoming) Upcoming(ctx context.Context, studentID string, now time.Time, limit int) ([]models.TaskRow, error) {
	return f.rows, nil
}

func newDashboardFixture(clock *time.Time, rows []models.TaskRow) (*DashboardService, *fakeDashboardRepo) {
	repo := &fakeDashboardRepo{}
	cacheSvc := NewCacheService(&stubCacheRepo{}, nil, time.Minute, zap.NewNop(), true)
	svc := NewDashboardService(repo, fakeUpcoming{rows: rows}, cacheSvc, time.Minute, zap.NewNop(), func() time.Time { return *clock })
	return svc, repo
}

func TestDashboardAdminComposesAndCaches(t *testing.T) {
	clock := taskClock
	svc, repo := newDashboardFixture(&clock, nil)

	resp, hit, err := svc.Admin(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 40, resp.TotalStudents)
	assert.Equal(t, 66.67, resp.CompletionRate)
	assert.Equal(t, 2026, resp.Year)
	assert.NotNil(t, resp.TopStudents)

	_, hit, err = svc.Admin(context.Background())
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, repo.calls["totals"])
}

func TestDashboardFacultyScopesTrend(t *testing.T) {
	clock := taskClock
	svc, repo := newDashboardFixture(&clock, nil)

	resp, _, err := svc.Faculty(context.Background(), "f1")
	require.NoError(t, err)
	assert.Equal(t, 7, resp.KPIs.PendingGrading)
	require.Len(t, resp.RecentSubmissions, 1)
	assert.Equal(t, "f1", repo.trendArg.FacultyID)
	require.NotNil(t, repo.trendArg.From)
	assert.Equal(t, taskClock.AddDate(0, 0, -7), *repo.trendArg.From)
}

func TestDashboardStudentStatusComputedOnRead(t *testing.T) {
	clock := taskClock
	rows := []models.TaskRow{{Task: models.Task{ID: "t1", Title: "Lab 1", PublishDate: taskClock.Add(-time.Hour), DueDate: taskClock.Add(time.Hour)}, CourseCode: "CS101"}}
	svc, repo := newDashboardFixture(&clock, rows)

	resp, hit, err := svc.Student(context.Background(), "s1")
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, resp.UpcomingDeadlines, 1)
	assert.Equal(t, models.TaskStatusActive, resp.UpcomingDeadlines[0].Status)

	clock = taskClock.Add(2 * time.Hour)
	resp, hit, err = svc.Student(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, repo.calls["student"])
	assert.Equal(t, models.TaskStatusCompleted, resp.UpcomingDeadlines[0].Status)
	assert.Equal(t, "CS101", resp.UpcomingDeadlines[0].CourseCode)
}

func TestDashboardWithoutCache(t *testing.T) {
	repo := &fakeDashboardRepo{}
	svc := NewDashboardService(repo, fakeUpcoming{}, nil, 0, nil, func() time.Time { return taskClock })

	_, hit, err := svc.Student(context.Background(), "s1")
	require.NoError(t, err)
	assert.False(t, hit)
	_, hit, err = svc.Student(context.Background(), "s1")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, repo.calls["student"])
}
