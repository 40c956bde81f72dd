package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/jobs"
)

type memNotificationRepo struct {
	created   []models.Notification
	createErr error
	markRead  bool
	markErr   error
	listTotal int
}

func (m *memNotificationRepo) CreateMany(_ context.Context, items []models.Notification) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, items...)
	return nil
}

func (m *memNotificationRepo) List(_ context.Context, _ models.NotificationFilter) ([]models.Notification, int, error) {
	return nil, m.listTotal, nil
}

func (m *memNotificationRepo) CountUnread(_ context.Context, _ models.ActorRef) (int, error) {
	return len(m.created), nil
}

func (m *memNotificationRepo) MarkRead(_ context.Context, _ models.ActorRef, _ string) (bool, error) {
	return m.markRead, m.markErr
}

func (m *memNotificationRepo) MarkAllRead(_ context.Context, _ models.ActorRef) (int, error) {
	return len(m.created), nil
}

type stubDirectory struct {
	byRole map[models.UserRole][]models.ActorRef
	asked  []models.UserRole
}

func (d *stubDirectory) IDsByRole(_ context.Context, role models.UserRole) ([]models.ActorRef, error) {
	d.asked = append(d.asked, role)
	return d.byRole[role], nil
}

type stubDispatcher struct {
	err  error
	jobs []jobs.Job
}

func (d *stubDispatcher) Enqueue(_ context.Context, job jobs.Job) error {
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

func students(ids ...string) []models.ActorRef {
	out := make([]models.ActorRef, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.ActorRef{Kind: models.RoleStudent, ID: id})
	}
	return out
}

func TestNotifyEnqueuesDeduplicatedBatch(t *testing.T) {
	repo := &memNotificationRepo{}
	queue := &stubDispatcher{}
	svc := NewNotificationService(repo, &stubDirectory{}, queue, nil, nil, zap.NewNop())
	sender := models.ActorRef{Kind: models.RoleFaculty, ID: "f1"}

	err := svc.Notify(context.Background(), models.NotificationRequest{
		Recipients: append(students("s1", "s2", "s1"), models.ActorRef{Kind: models.RoleStudent}),
		Sender:     &sender,
		Type:       models.NotificationNewTask,
		Message:    "New task: Lab 1",
		Link:       "/student/tasks/t1",
	})
	require.NoError(t, err)
	require.Len(t, queue.jobs, 1)
	assert.Empty(t, repo.created, "queued batches are written by the worker")

	items, ok := queue.jobs[0].Payload.([]models.Notification)
	require.True(t, ok)
	require.Len(t, items, 2)
	assert.Equal(t, "s1", items[0].RecipientID)
	assert.Equal(t, "s2", items[1].RecipientID)
	require.NotNil(t, items[0].SenderID)
	assert.Equal(t, "f1", *items[0].SenderID)
	require.NotNil(t, items[0].Link)
	assert.Equal(t, "/student/tasks/t1", *items[0].Link)
	assert.Equal(t, string(models.NotificationNewTask), queue.jobs[0].Type)
}

func TestNotifyDeliversInlineWhenQueueStopped(t *testing.T) {
	repo := &memNotificationRepo{}
	queue := &stubDispatcher{err: fmt.Errorf("notifications: %w", jobs.ErrQueueStopped)}
	svc := NewNotificationService(repo, &stubDirectory{}, queue, nil, nil, zap.NewNop())

	err := svc.Notify(context.Background(), models.NotificationRequest{Recipients: students("s1"), Type: models.NotificationTaskGraded, Message: "graded"})
	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	assert.Nil(t, repo.created[0].SenderID)
}

func TestNotifyWithoutQueueDeliversInline(t *testing.T) {
	repo := &memNotificationRepo{}
	svc := NewNotificationService(repo, &stubDirectory{}, nil, nil, nil, zap.NewNop())

	require.NoError(t, svc.Notify(context.Background(), models.NotificationRequest{Recipients: students("s1", "s2"), Type: models.NotificationDeadlineReminder}))
	assert.Len(t, repo.created, 2)

	require.NoError(t, svc.Notify(context.Background(), models.NotificationRequest{Type: models.NotificationDeadlineReminder}))
	assert.Len(t, repo.created, 2)
}

func TestNotifyPropagatesQueueErrors(t *testing.T) {
	repo := &memNotificationRepo{}
	svc := NewNotificationService(repo, &stubDirectory{}, &stubDispatcher{err: errors.New("full")}, nil, nil, zap.NewNop())

	err := svc.Notify(context.Background(), models.NotificationRequest{Recipients: students("s1"), Type: models.NotificationNewTask})
	assert.EqualError(t, err, "full")
	assert.Empty(t, repo.created)
}

func TestNotificationWorkerRejectsUnknownPayload(t *testing.T) {
	worker := NewNotificationWorker(&memNotificationRepo{}, nil, nil)
	err := worker.Handle(context.Background(), jobs.Job{ID: "j1", Payload: "oops"})
	assert.Error(t, err)
}

func TestAnnounceCountsRecipients(t *testing.T) {
	repo := &memNotificationRepo{}
	dir := &stubDirectory{byRole: map[models.UserRole][]models.ActorRef{
		models.RoleStudent: students("s1", "s2", "s3"),
	}}
	svc := NewNotificationService(repo, dir, nil, nil, nil, zap.NewNop())
	admin := models.ActorRef{Kind: models.RoleAdmin, ID: "a1"}

	count, err := svc.Announce(context.Background(), admin, models.AnnouncementRequest{Role: models.RoleStudent, Message: "  Exams next week  "})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	require.Len(t, repo.created, 3)
	assert.Equal(t, "Exams next week", repo.created[0].Message)
	assert.Equal(t, models.NotificationAdminAnnouncement, repo.created[0].Type)
	require.NotNil(t, repo.created[0].SenderKind)
	assert.Equal(t, models.RoleAdmin, *repo.created[0].SenderKind)
}

func TestAnnounceValidation(t *testing.T) {
	dir := &stubDirectory{}
	svc := NewNotificationService(&memNotificationRepo{}, dir, nil, nil, nil, zap.NewNop())

	_, err := svc.Announce(context.Background(), models.ActorRef{Kind: models.RoleAdmin, ID: "a1"}, models.AnnouncementRequest{Role: "GUEST", Message: "hi"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Announce(context.Background(), models.ActorRef{Kind: models.RoleAdmin, ID: "a1"}, models.AnnouncementRequest{})
	require.Error(t, err)
	assert.Empty(t, dir.asked)
}

func TestMarkReadNotFound(t *testing.T) {
	recipient := models.ActorRef{Kind: models.RoleStudent, ID: "s1"}

	svc := NewNotificationService(&memNotificationRepo{markRead: false}, &stubDirectory{}, nil, nil, nil, zap.NewNop())
	err := svc.MarkRead(context.Background(), recipient, "n1")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	svc = NewNotificationService(&memNotificationRepo{markErr: sql.ErrNoRows}, &stubDirectory{}, nil, nil, nil, zap.NewNop())
	err = svc.MarkRead(context.Background(), recipient, "n1")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	svc = NewNotificationService(&memNotificationRepo{markRead: true}, &stubDirectory{}, nil, nil, nil, zap.NewNop())
	assert.NoError(t, svc.MarkRead(context.Background(), recipient, "n1"))
}

func TestListNotificationsPagination(t *testing.T) {
	svc := NewNotificationService(&memNotificationRepo{listTotal: 45}, &stubDirectory{}, nil, nil, nil, zap.NewNop())

	items, page, err := svc.List(context.Background(), models.NotificationFilter{Recipient: models.ActorRef{Kind: models.RoleStudent, ID: "s1"}, Page: 2})
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
	assert.Equal(t, 45, page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 20, page.Limit)
	assert.Equal(t, 3, page.TotalPages)
}
