package service

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/pkg/cache"
)

const (
	dashboardTopStudents   = 5
	dashboardRecentLimit   = 5
	dashboardUpcomingLimit = 5
	dashboardTrendDays     = 7
)

type dashboardRepository interface {
	AdminTotals(ctx context.Context, now time.Time) (dto.AdminTotals, error)
	MonthlyStats(ctx context.Context, year int) ([]dto.MonthlyStat, error)
	TopStudents(ctx context.Context, limit int) ([]dto.TopStudent, error)
	FacultyKPIs(ctx context.Context, facultyID string, now time.Time) (dto.FacultyKPIs, error)
	RecentSubmissions(ctx context.Context, facultyID string, limit int) ([]dto.RecentSubmission, error)
	SubmissionTrend(ctx context.Context, filter models.AnalyticsFilter) ([]models.DailyCount, error)
	StudentKPIs(ctx context.Context, studentID string, now time.Time) (dto.StudentKPIs, error)
}

type upcomingTaskReader interface {
	Upcoming(ctx context.Context, studentID string, now time.Time, limit int) ([]models.TaskRow, error)
}

// DashboardService composes the role landing pages and caches them in Redis.
type DashboardService struct {
	repo   dashboardRepository
	tasks  upcomingTaskReader
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
	now    Clock
}

// NewDashboardService constructs DashboardService.
func NewDashboardService(repo dashboardRepository, tasks upcomingTaskReader, cacheSvc *CacheService, ttl time.Duration, logger *zap.Logger, now Clock) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &DashboardService{repo: repo, tasks: tasks, cache: cacheSvc, ttl: ttl, logger: logger, now: now}
}

// Admin returns platform totals and monthly stats for the current year.
func (s *DashboardService) Admin(ctx context.Context) (*dto.AdminDashboardResponse, bool, error) {
	now := s.now().UTC()
	key := cache.Key(cache.NamespaceDashboard, "admin", now.Format("2006"))
	var cached dto.AdminDashboardResponse
	if s.tryCache(ctx, key, &cached) {
		return &cached, true, nil
	}

	totals, err := s.repo.AdminTotals(ctx, now)
	if err != nil {
		return nil, false, analyticsError(err, "failed to load dashboard totals")
	}
	monthly, err := s.repo.MonthlyStats(ctx, now.Year())
	if err != nil {
		return nil, false, analyticsError(err, "failed to load monthly stats")
	}
	top, err := s.repo.TopStudents(ctx, dashboardTopStudents)
	if err != nil {
		return nil, false, analyticsError(err, "failed to load top students")
	}
	resp := &dto.AdminDashboardResponse{
		TotalStudents:  totals.Students,
		TotalFaculty:   totals.Faculty,
		TotalCourses:   totals.Courses,
		TotalBatches:   totals.Batches,
		ActiveTasks:    totals.ActiveTasks,
		CompletionRate: completionRate(totals.Graded, totals.Grades),
		MonthlyStats:   nonNil(monthly),
		TopStudents:    nonNil(top),
		Year:           now.Year(),
		GeneratedAt:    now,
	}
	s.persist(ctx, key, resp)
	return resp, false, nil
}

// Faculty returns the faculty's teaching counters, recent submissions and a weekly trend.
func (s *DashboardService) Faculty(ctx context.Context, facultyID string) (*dto.FacultyDashboardResponse, bool, error) {
	now := s.now().UTC()
	key := cache.Key(cache.NamespaceDashboard, "faculty", facultyID)
	var cached dto.FacultyDashboardResponse
	if s.tryCache(ctx, key, &cached) {
		return &cached, true, nil
	}

	kpis, err := s.repo.FacultyKPIs(ctx, facultyID, now)
	if err != nil {
		return nil, false, analyticsError(err, "failed to load faculty stats")
	}
	recent, err := s.repo.RecentSubmissions(ctx, facultyID, dashboardRecentLimit)
	if err != nil {
		return nil, false, analyticsError(err, "failed to load recent submissions")
	}
	from := now.AddDate(0, 0, -dashboardTrendDays)
	trend, err := s.repo.SubmissionTrend(ctx, models.AnalyticsFilter{From: &from, FacultyID: facultyID})
	if err != nil {
		return nil, false, analyticsError(err, "failed to load submission trend")
	}
	resp := &dto.FacultyDashboardResponse{KPIs: kpis, SubmissionTrend: nonNil(trend), RecentSubmissions: nonNil(recent)}
	s.persist(ctx, key, resp)
	return resp, false, nil
}

// Student returns the student's counters and upcoming deadlines. Only the raw rows are
// cached; task statuses are computed for every response.
func (s *DashboardService) Student(ctx context.Context, studentID string) (*dto.StudentDashboardResponse, bool, error) {
	now := s.now().UTC()
	key := cache.Key(cache.NamespaceDashboard, "student", studentID)
	var snapshot dto.StudentDashboardSnapshot
	hit := s.tryCache(ctx, key, &snapshot)
	if !hit {
		kpis, err := s.repo.StudentKPIs(ctx, studentID, now)
		if err != nil {
			return nil, false, analyticsError(err, "failed to load student stats")
		}
		upcoming, err := s.tasks.Upcoming(ctx, studentID, now, dashboardUpcomingLimit)
		if err != nil {
			return nil, false, analyticsError(err, "failed to load upcoming tasks")
		}
		snapshot = dto.StudentDashboardSnapshot{KPIs: kpis, Upcoming: upcoming}
		s.persist(ctx, key, snapshot)
	}

	views := make([]models.TaskView, 0, len(snapshot.Upcoming))
	for _, row := range snapshot.Upcoming {
		views = append(views, row.View(now))
	}
	return &dto.StudentDashboardResponse{KPIs: snapshot.KPIs, UpcomingDeadlines: views}, hit, nil
}

func (s *DashboardService) tryCache(ctx context.Context, key string, dest interface{}) bool {
	hit, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.logger.Warn("dashboard cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return hit
}

func (s *DashboardService) persist(ctx context.Context, key string, value interface{}) {
	_ = s.cache.Set(ctx, key, value, s.ttl)
}

func completionRate(graded, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(graded)*10000/float64(total)) / 100
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
