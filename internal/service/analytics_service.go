package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/pkg/cache"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

const (
	analyticsTopLimit   = 10
	analyticsTrendWidth = 30 * 24 * time.Hour
)

// AnalyticsRepository describes the persistence layer required by AnalyticsService.
type AnalyticsRepository interface {
	KPIs(ctx context.Context, filter models.AnalyticsFilter) (models.AnalyticsKPIs, error)
	SubmissionTrend(ctx context.Context, filter models.AnalyticsFilter) ([]models.DailyCount, error)
	CoursePerformance(ctx context.Context, filter models.AnalyticsFilter, limit int) ([]models.CoursePerformance, error)
	FacultyPerformance(ctx context.Context, filter models.AnalyticsFilter, limit int) ([]models.FacultyPerformance, error)
	BatchPerformance(ctx context.Context, filter models.AnalyticsFilter) ([]models.BatchPerformance, error)
}

// AnalyticsService provides read-optimised access to grading analytics with cache integration.
type AnalyticsService struct {
	repo    AnalyticsRepository
	cache   *CacheService
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	now     Clock
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(repo AnalyticsRepository, cacheSvc *CacheService, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{repo: repo, cache: cacheSvc, metrics: metrics, ttl: ttl, logger: logger, now: time.Now}
}

// Report returns the analytics report for the actor. Faculty reports are limited to the
// courses they teach and include batch performance. The boolean reports a cache hit.
func (s *AnalyticsService) Report(ctx context.Context, actor models.ActorRef, filter models.AnalyticsFilter) (*models.AnalyticsReport, bool, error) {
	switch actor.Kind {
	case models.RoleAdmin:
		filter.FacultyID = ""
	case models.RoleFaculty:
		filter.FacultyID = actor.ID
	default:
		return nil, false, appErrors.Clone(appErrors.ErrForbidden, "analytics are available to staff only")
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "startDate must be before endDate")
	}

	key := cache.Key(cache.NamespaceAnalytics, string(actor.Kind), filter.FacultyID,
		"from="+formatTime(filter.From), "to="+formatTime(filter.To), "dept="+filter.Department)
	var cached models.AnalyticsReport
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.Warn("analytics cache read failed, querying database", zap.Error(err))
	} else if hit {
		return &cached, true, nil
	}

	report, err := s.compose(ctx, actor, filter)
	if err != nil {
		return nil, false, err
	}
	_ = s.cache.Set(ctx, key, report, s.ttl)
	return report, false, nil
}

// SystemMetrics returns system instrumentation snapshot.
func (s *AnalyticsService) SystemMetrics() models.AnalyticsSystemMetrics {
	return s.metrics.Snapshot()
}

func (s *AnalyticsService) compose(ctx context.Context, actor models.ActorRef, filter models.AnalyticsFilter) (*models.AnalyticsReport, error) {
	report := &models.AnalyticsReport{DateRange: models.DateRange{StartDate: filter.From, EndDate: filter.To}}
	var err error
	if report.KPIs, err = s.repo.KPIs(ctx, filter); err != nil {
		return nil, analyticsError(err, "failed to load analytics kpis")
	}

	trendFilter := filter
	if trendFilter.From == nil {
		from := s.now().UTC().Add(-analyticsTrendWidth)
		trendFilter.From = &from
	}
	if report.SubmissionTrend, err = s.repo.SubmissionTrend(ctx, trendFilter); err != nil {
		return nil, analyticsError(err, "failed to load submission trend")
	}
	if report.CoursePerformance, err = s.repo.CoursePerformance(ctx, filter, analyticsTopLimit); err != nil {
		return nil, analyticsError(err, "failed to load course performance")
	}
	if actor.Kind == models.RoleAdmin {
		if report.FacultyPerformance, err = s.repo.FacultyPerformance(ctx, filter, analyticsTopLimit); err != nil {
			return nil, analyticsError(err, "failed to load faculty performance")
		}
	} else {
		if report.BatchPerformance, err = s.repo.BatchPerformance(ctx, filter); err != nil {
			return nil, analyticsError(err, "failed to load batch performance")
		}
	}

	if report.SubmissionTrend == nil {
		report.SubmissionTrend = []models.DailyCount{}
	}
	if report.CoursePerformance == nil {
		report.CoursePerformance = []models.CoursePerformance{}
	}
	if report.FacultyPerformance == nil {
		report.FacultyPerformance = []models.FacultyPerformance{}
	}
	return report, nil
}

func analyticsError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
