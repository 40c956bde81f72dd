package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/handler"
	"github.com/noah-isme/lms-api/internal/repository"
	"github.com/noah-isme/lms-api/internal/service"
	"github.com/noah-isme/lms-api/pkg/cache"
	"github.com/noah-isme/lms-api/pkg/config"
	"github.com/noah-isme/lms-api/pkg/export"
	"github.com/noah-isme/lms-api/pkg/jobs"
	"github.com/noah-isme/lms-api/pkg/storage"
)

// app holds everything main needs to serve requests and shut down cleanly.
type app struct {
	handlers  handler.Handlers
	routes    handler.RouteDeps
	metrics   *service.MetricsService
	queue     *jobs.Queue
	reminders *service.ReminderService
	cacheRepo *repository.CacheRepository
}

func buildApp(ctx context.Context, cfg *config.Config, db *sqlx.DB, logr *zap.Logger) (*app, error) {
	validate := validator.New()
	metrics := service.NewMetricsService()
	now := time.Now

	cacheEnabled := cfg.Analytics.CacheEnabled
	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		cacheEnabled = false
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Analytics.CacheTTL, logr, cacheEnabled)

	userRepo := repository.NewUserRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)

	worker := service.NewNotificationWorker(notificationRepo, metrics, logr)
	queue := jobs.NewQueue("notifications", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: 256,
		MaxRetries: cfg.Notifications.Retries,
		RetryDelay: time.Second,
		Logger:     logr,
	})
	notifications := service.NewNotificationService(notificationRepo, userRepo, queue, worker, validate, logr)

	settings := service.NewSettingsService(settingsRepo, cacheSvc, validate, logr)
	auth := service.NewAuthService(userRepo, settings, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})

	enrollment := service.NewEnrollmentService(enrollmentRepo, cacheSvc, metrics, logr)
	policy := service.NewAccessPolicy(courseRepo, taskRepo)
	users := service.NewUserService(userRepo, batchRepo, courseRepo, enrollment, validate, logr)
	batches := service.NewBatchService(batchRepo, userRepo, enrollment, validate, logr)
	courses := service.NewCourseService(courseRepo, batchRepo, userRepo, taskRepo, policy, enrollment, validate, logr, now)
	tasks := service.NewTaskService(taskRepo, gradeRepo, courseRepo, policy, enrollment, notifications, validate, logr, now)
	grades := service.NewGradeService(gradeRepo, submissionRepo, courseRepo, policy, notifications, cacheSvc, metrics, validate, logr, now)
	submissions := service.NewSubmissionService(submissionRepo, taskRepo, courseRepo, gradeRepo, settings, notifications, cacheSvc, validate, logr, now)

	analytics := service.NewAnalyticsService(analyticsRepo, cacheSvc, metrics, cfg.Analytics.CacheTTL, logr)
	dashboard := service.NewDashboardService(analyticsRepo, taskRepo, cacheSvc, cfg.Dashboard.CacheTTL, logr, now)

	uploadStore, err := storage.NewLocalStorage(cfg.Uploads.Dir)
	if err != nil {
		return nil, fmt.Errorf("prepare uploads dir: %w", err)
	}
	exportStore, err := storage.NewLocalStorage(cfg.Exports.Dir)
	if err != nil {
		return nil, fmt.Errorf("prepare exports dir: %w", err)
	}
	uploads := service.NewUploadService(uploadStore, settings, cfg.Uploads.PublicPath, logr)
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exports := service.NewExportService(grades, exportStore, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr, export.NewCSVExporter(), export.NewPDFExporter())

	reminders := service.NewReminderService(taskRepo, notifications, exports, service.ReminderConfig{
		Schedule:        cfg.Reminders.Schedule,
		Window:          cfg.Reminders.Window,
		CleanupInterval: cfg.Exports.CleanupInterval,
	}, logr, now)

	h := handler.Handlers{
		Auth:          handler.NewAuthHandler(auth),
		Users:         handler.NewUserHandler(users),
		Batches:       handler.NewBatchHandler(batches),
		Courses:       handler.NewCourseHandler(courses),
		Tasks:         handler.NewTaskHandler(tasks),
		Grades:        handler.NewGradeHandler(grades, submissions, exports),
		Notifications: handler.NewNotificationHandler(notifications),
		Settings:      handler.NewSettingsHandler(settings),
		Analytics:     handler.NewAnalyticsHandler(analytics),
		Dashboard:     handler.NewDashboardHandler(dashboard),
		Files:         handler.NewFileHandler(uploads, exports),
		Metrics: handler.NewMetricsHandler(metrics.Handler(), map[string]handler.Pinger{
			"postgres": handler.PingFunc(db.PingContext),
			"redis":    cacheRepo,
		}),
	}

	return &app{
		handlers:  h,
		routes:    handler.RouteDeps{Auth: auth, Maintenance: settings, Audit: userRepo},
		metrics:   metrics,
		queue:     queue,
		reminders: reminders,
		cacheRepo: cacheRepo,
	}, nil
}

// start launches background workers. Reminder scans only run when enabled.
func (a *app) start(ctx context.Context, cfg *config.Config) error {
	a.queue.Start(ctx)
	if !cfg.Reminders.Enabled {
		return nil
	}
	return a.reminders.Start()
}

func (a *app) stop(ctx context.Context) {
	a.reminders.Stop(ctx)
	a.queue.Stop()
	_ = a.cacheRepo.Close()
}
