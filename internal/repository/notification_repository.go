package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-api/internal/models"
)

const (
	notificationColumns = "id, recipient_kind, recipient_id, sender_kind, sender_id, type, message, link, is_read, created_at"
	// notificationChunk keeps bulk inserts under the Postgres bind parameter limit.
	notificationChunk = 500
)

// NotificationRepository persists per-recipient notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository creates the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateMany inserts notifications in chunks.
func (r *NotificationRepository) CreateMany(ctx context.Context, items []models.Notification) error {
	if len(items) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
		if items[i].CreatedAt.IsZero() {
			items[i].CreatedAt = now
		}
	}
	const query = `INSERT INTO notifications (id, recipient_kind, recipient_id, sender_kind, sender_id, type, message, link, is_read, created_at)
VALUES (:id, :recipient_kind, :recipient_id, :sender_kind, :sender_id, :type, :message, :link, :is_read, :created_at)`
	for start := 0; start < len(items); start += notificationChunk {
		end := start + notificationChunk
		if end > len(items) {
			end = len(items)
		}
		if _, err := r.db.NamedExecContext(ctx, query, items[start:end]); err != nil {
			return fmt.Errorf("create notifications: %w", err)
		}
	}
	return nil
}

// List returns the recipient's notifications, newest first.
func (r *NotificationRepository) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	where := " WHERE recipient_kind = $1 AND recipient_id = $2"
	if filter.UnreadOnly {
		where += " AND is_read = FALSE"
	}
	_, limit, offset := models.PageWindow(filter.Page, filter.PageSize, 20)
	query := fmt.Sprintf("SELECT %s FROM notifications%s ORDER BY created_at DESC LIMIT %d OFFSET %d", notificationColumns, where, limit, offset)

	var items []models.Notification
	if err := r.db.SelectContext(ctx, &items, query, filter.Recipient.Kind, filter.Recipient.ID); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM notifications"+where, filter.Recipient.Kind, filter.Recipient.ID); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}
	return items, total, nil
}

// CountUnread returns the number of unread notifications of recipient.
func (r *NotificationRepository) CountUnread(ctx context.Context, recipient models.ActorRef) (int, error) {
	var total int
	const query = `SELECT COUNT(*) FROM notifications WHERE recipient_kind = $1 AND recipient_id = $2 AND is_read = FALSE`
	if err := r.db.GetContext(ctx, &total, query, recipient.Kind, recipient.ID); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return total, nil
}

// MarkRead flags one notification as read. It reports whether the recipient owns it.
func (r *NotificationRepository) MarkRead(ctx context.Context, recipient models.ActorRef, id string) (bool, error) {
	const query = `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND recipient_kind = $2 AND recipient_id = $3`
	res, err := r.db.ExecContext(ctx, query, id, recipient.Kind, recipient.ID)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	return affected(res) > 0, nil
}

// MarkAllRead flags every unread notification of recipient and returns how many changed.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipient models.ActorRef) (int, error) {
	const query = `UPDATE notifications SET is_read = TRUE WHERE recipient_kind = $1 AND recipient_id = $2 AND is_read = FALSE`
	res, err := r.db.ExecContext(ctx, query, recipient.Kind, recipient.ID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return affected(res), nil
}
