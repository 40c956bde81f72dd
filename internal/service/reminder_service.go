package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
)

const reminderRunTimeout = 4 * time.Minute

type reminderTaskRepository interface {
	DueForReminder(ctx context.Context, now, until time.Time) ([]models.DueTask, error)
	MarkReminderSent(ctx context.Context, taskID string, at time.Time) error
}

type exportSweeper interface {
	Cleanup(ttl time.Duration) ([]string, error)
}

// ReminderConfig schedules the reminder scan and export cleanup.
type ReminderConfig struct {
	Schedule        string
	Window          time.Duration
	CleanupInterval time.Duration
}

// ReminderService sends deadline reminders to students who still owe work and
// sweeps expired export files on the same scheduler.
type ReminderService struct {
	tasks    reminderTaskRepository
	notifier Notifier
	exports  exportSweeper
	cfg      ReminderConfig
	logger   *zap.Logger
	now      Clock
	cron     *cron.Cron
}

// NewReminderService constructs ReminderService. A nil exports disables cleanup.
func NewReminderService(tasks reminderTaskRepository, notifier Notifier, exports exportSweeper, cfg ReminderConfig, logger *zap.Logger, now Clock) *ReminderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "0 * * * *"
	}
	if cfg.Window <= 0 {
		cfg.Window = 24 * time.Hour
	}
	return &ReminderService{tasks: tasks, notifier: notifier, exports: exports, cfg: cfg, logger: logger, now: now}
}

// Start registers the scheduled jobs and starts the scheduler.
func (s *ReminderService) Start() error {
	log := cronLogger{s.logger.Sugar()}
	c := cron.New(cron.WithLogger(log), cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)))
	if _, err := c.AddFunc(s.cfg.Schedule, s.runScheduled); err != nil {
		return fmt.Errorf("schedule deadline reminders %q: %w", s.cfg.Schedule, err)
	}
	if s.exports != nil && s.cfg.CleanupInterval > 0 {
		c.Schedule(cron.Every(s.cfg.CleanupInterval), cron.FuncJob(s.sweepExports))
	}
	s.cron = c
	c.Start()
	s.logger.Info("reminder scheduler started", zap.String("schedule", s.cfg.Schedule), zap.Duration("window", s.cfg.Window))
	return nil
}

// Stop halts the scheduler and waits for running jobs or ctx.
func (s *ReminderService) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("reminder scheduler stop timed out")
	}
}

func (s *ReminderService) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), reminderRunTimeout)
	defer cancel()
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("deadline reminder scan failed", zap.Error(err))
	}
}

// RunOnce notifies students of tasks due within the window and returns how many
// tasks were reminded. A task is marked even when nobody owes work so it is not rescanned.
func (s *ReminderService) RunOnce(ctx context.Context) (int, error) {
	now := s.now().UTC()
	due, err := s.tasks.DueForReminder(ctx, now, now.Add(s.cfg.Window))
	if err != nil {
		return 0, err
	}
	reminded := 0
	for _, task := range due {
		recipients := make([]models.ActorRef, 0, len(task.StudentIDs))
		for _, id := range task.StudentIDs {
			recipients = append(recipients, models.ActorRef{Kind: models.RoleStudent, ID: id})
		}
		if len(recipients) > 0 {
			err := s.notifier.Notify(ctx, models.NotificationRequest{
				Recipients: recipients,
				Sender:     &models.ActorRef{Kind: models.RoleSystem},
				Type:       models.NotificationDeadlineReminder,
				Message:    fmt.Sprintf("Reminder: %s is due %s", task.Title, task.DueDate.UTC().Format("Jan 2, 2006 15:04 MST")),
				Link:       "/student/tasks/" + task.TaskID,
			})
			if err != nil {
				// Leave the task unmarked so the next run retries it.
				s.logger.Warn("failed to send deadline reminder", zap.String("task_id", task.TaskID), zap.Error(err))
				continue
			}
		}
		if err := s.tasks.MarkReminderSent(ctx, task.TaskID, now); err != nil {
			return reminded, err
		}
		reminded++
		s.logger.Info("deadline reminder sent", zap.String("task_id", task.TaskID), zap.Int("students", len(recipients)))
	}
	return reminded, nil
}

func (s *ReminderService) sweepExports() {
	removed, err := s.exports.Cleanup(0)
	if err != nil {
		s.logger.Error("export cleanup failed", zap.Error(err))
		return
	}
	if len(removed) > 0 {
		s.logger.Info("expired exports removed", zap.Int("count", len(removed)))
	}
}

// cronLogger routes scheduler logs through zap.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
