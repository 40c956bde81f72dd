package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/jobs"
)

type notificationRepository interface {
	CreateMany(ctx context.Context, items []models.Notification) error
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	CountUnread(ctx context.Context, recipient models.ActorRef) (int, error)
	MarkRead(ctx context.Context, recipient models.ActorRef, id string) (bool, error)
	MarkAllRead(ctx context.Context, recipient models.ActorRef) (int, error)
}

type recipientDirectory interface {
	IDsByRole(ctx context.Context, role models.UserRole) ([]models.ActorRef, error)
}

type jobDispatcher interface {
	Enqueue(ctx context.Context, job jobs.Job) error
}

// Notifier is the fan-out entry point used by workflows that announce changes.
type Notifier interface {
	Notify(ctx context.Context, req models.NotificationRequest) error
}

// NotificationWorker persists queued notification batches.
type NotificationWorker struct {
	repo    notificationRepository
	metrics *MetricsService
	logger  *zap.Logger
}

// NewNotificationWorker constructs NotificationWorker.
func NewNotificationWorker(repo notificationRepository, metrics *MetricsService, logger *zap.Logger) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{repo: repo, metrics: metrics, logger: logger}
}

// Handle processes a queue job carrying a []models.Notification payload.
func (w *NotificationWorker) Handle(ctx context.Context, job jobs.Job) error {
	items, ok := job.Payload.([]models.Notification)
	if !ok {
		return fmt.Errorf("notification job %s: unexpected payload %T", job.ID, job.Payload)
	}
	return w.deliver(ctx, items)
}

func (w *NotificationWorker) deliver(ctx context.Context, items []models.Notification) error {
	if len(items) == 0 {
		return nil
	}
	err := w.repo.CreateMany(ctx, items)
	w.metrics.RecordNotifications(items[0].Type, len(items), err)
	if err != nil {
		return err
	}
	w.logger.Debug("notifications delivered", zap.String("type", string(items[0].Type)), zap.Int("count", len(items)))
	return nil
}

// NotificationService fans out notifications and serves each user's inbox.
type NotificationService struct {
	repo      notificationRepository
	users     recipientDirectory
	queue     jobDispatcher
	worker    *NotificationWorker
	validator *validator.Validate
	logger    *zap.Logger
}

// NewNotificationService constructs NotificationService. A nil queue delivers inline.
func NewNotificationService(repo notificationRepository, users recipientDirectory, queue jobDispatcher, worker *NotificationWorker, validate *validator.Validate, logger *zap.Logger) *NotificationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if worker == nil {
		worker = NewNotificationWorker(repo, nil, logger)
	}
	return &NotificationService{repo: repo, users: users, queue: queue, worker: worker, validator: validate, logger: logger}
}

// Notify builds one notification per recipient and hands them to the queue.
// When the queue is stopped the batch is written synchronously.
func (s *NotificationService) Notify(ctx context.Context, req models.NotificationRequest) error {
	items := buildNotifications(req)
	if len(items) == 0 {
		return nil
	}
	if s.queue != nil {
		err := s.queue.Enqueue(ctx, jobs.Job{Type: string(req.Type), Payload: items})
		if err == nil {
			return nil
		}
		if !errors.Is(err, jobs.ErrQueueStopped) {
			return err
		}
		s.logger.Warn("notification queue stopped, delivering inline", zap.String("type", string(req.Type)))
	}
	return s.worker.deliver(ctx, items)
}

// List returns the recipient's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	if items == nil {
		items = []models.Notification{}
	}
	page, limit, _ := models.PageWindow(filter.Page, filter.PageSize, 20)
	return items, models.NewPagination(page, limit, total), nil
}

// UnreadCount returns how many notifications the recipient has not read.
func (s *NotificationService) UnreadCount(ctx context.Context, recipient models.ActorRef) (int, error) {
	count, err := s.repo.CountUnread(ctx, recipient)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	return count, nil
}

// MarkRead marks one notification read. Notifications of other users are reported as missing.
func (s *NotificationService) MarkRead(ctx context.Context, recipient models.ActorRef, id string) error {
	ok, err := s.repo.MarkRead(ctx, recipient, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notification")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}
	return nil
}

// MarkAllRead marks every notification of the recipient read.
func (s *NotificationService) MarkAllRead(ctx context.Context, recipient models.ActorRef) (int, error) {
	count, err := s.repo.MarkAllRead(ctx, recipient)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notifications")
	}
	return count, nil
}

// Announce broadcasts an admin message to every active user of a role, or everyone.
func (s *NotificationService) Announce(ctx context.Context, sender models.ActorRef, req models.AnnouncementRequest) (int, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}
	recipients, err := s.users.IDsByRole(ctx, req.Role)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve recipients")
	}
	if err := s.Notify(ctx, models.NotificationRequest{
		Recipients: recipients,
		Sender:     &sender,
		Type:       models.NotificationAdminAnnouncement,
		Message:    strings.TrimSpace(req.Message),
		Link:       req.Link,
	}); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to send announcement")
	}
	s.logger.Info("announcement sent", zap.String("role", string(req.Role)), zap.Int("recipients", len(recipients)))
	return len(recipients), nil
}

func buildNotifications(req models.NotificationRequest) []models.Notification {
	seen := make(map[string]struct{}, len(req.Recipients))
	items := make([]models.Notification, 0, len(req.Recipients))
	for _, r := range req.Recipients {
		if r.ID == "" {
			continue
		}
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		n := models.Notification{
			RecipientKind: r.Kind,
			RecipientID:   r.ID,
			Type:          req.Type,
			Message:       req.Message,
		}
		if req.Sender != nil {
			kind := req.Sender.Kind
			n.SenderKind = &kind
			if id := req.Sender.ID; id != "" {
				n.SenderID = &id
			}
		}
		if req.Link != "" {
			link := req.Link
			n.Link = &link
		}
		items = append(items, n)
	}
	return items
}

// notifyQuietly sends and logs failures; the triggering workflow has already committed.
func notifyQuietly(ctx context.Context, notifier Notifier, logger *zap.Logger, req models.NotificationRequest) {
	if notifier == nil || len(req.Recipients) == 0 {
		return
	}
	if err := notifier.Notify(ctx, req); err != nil {
		logger.Warn("failed to send notification", zap.String("type", string(req.Type)), zap.Error(err))
	}
}
