package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type submissionFixture struct {
	store    *fakeEnrollmentStore
	grades   *fakeGradeStore
	notifier *recordingNotifier
	settings *stubSettings
	clock    time.Time
	svc      *SubmissionService
}

func newSubmissionFixture(t *testing.T) *submissionFixture {
	t.Helper()
	store, _ := seedCourse(t)
	task := store.tasks["t1"]
	task.Title = "Essay"
	task.PublishDate = taskClock.Add(-24 * time.Hour)
	task.DueDate = taskClock.Add(24 * time.Hour)
	store.tasks["t1"] = task

	fx := &submissionFixture{
		store:    store,
		grades:   newFakeGradeStore(store),
		notifier: &recordingNotifier{},
		settings: &stubSettings{settings: models.DefaultSettings()},
		clock:    taskClock,
	}
	fx.svc = NewSubmissionService(
		fakeSubmissionRepo{grades: fx.grades},
		fakeTaskReader{store: store},
		fakeCourseReader{store: store},
		fx.grades,
		fx.settings,
		fx.notifier,
		nil, nil, nil,
		func() time.Time { return fx.clock },
	)
	return fx
}

func (fx *submissionFixture) grade(studentID string) models.Grade {
	return fx.store.grades[models.GradeKey{TaskID: "t1", StudentID: studentID}]
}

func TestSubmitLinksGradeAndNotifiesFaculty(t *testing.T) {
	fx := newSubmissionFixture(t)
	student := models.ActorRef{Kind: models.RoleStudent, ID: "s1"}

	result, err := fx.svc.Submit(context.Background(), student, "t1", models.SubmitRequest{
		Content:     "my essay",
		Attachments: []models.Attachment{{FileName: "essay.pdf", URL: "/uploads/essay.pdf"}},
	})
	require.NoError(t, err)
	assert.False(t, result.Resubmitted)
	assert.Equal(t, models.SubmissionOnTime, result.Submission.Status)
	assert.Equal(t, "c1", result.Submission.CourseID)
	require.NotNil(t, result.Grade)
	require.NotNil(t, result.Grade.SubmissionID)
	assert.Equal(t, result.Submission.ID, *result.Grade.SubmissionID)
	assert.Equal(t, models.GradeStatusPending, result.Grade.Status)
	assertPlaceholderInvariant(t, fx.store)

	sent := fx.notifier.ofType(models.NotificationSubmissionReceived)
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"f1"}, recipientIDs(sent[0]))
}

func TestSubmitTwiceOverwrites(t *testing.T) {
	fx := newSubmissionFixture(t)
	student := models.ActorRef{Kind: models.RoleStudent, ID: "s2"}

	first, err := fx.svc.Submit(context.Background(), student, "t1", models.SubmitRequest{Content: "draft"})
	require.NoError(t, err)
	fx.clock = taskClock.Add(time.Hour)
	second, err := fx.svc.Submit(context.Background(), student, "t1", models.SubmitRequest{Content: "final"})
	require.NoError(t, err)

	assert.True(t, second.Resubmitted)
	assert.Equal(t, first.Submission.ID, second.Submission.ID)
	stored := fx.grades.subs[models.GradeKey{TaskID: "t1", StudentID: "s2"}]
	assert.Equal(t, "final", *stored.Content)
	assert.Equal(t, taskClock.Add(time.Hour), stored.SubmittedAt)
	assert.Len(t, fx.grades.subs, 1)
}

func TestSubmitAfterDeadlineRejected(t *testing.T) {
	fx := newSubmissionFixture(t)
	fx.clock = taskClock.Add(25 * time.Hour)
	fx.settings.settings.AllowLateSubmissions = true

	_, err := fx.svc.Submit(context.Background(), models.ActorRef{Kind: models.RoleStudent, ID: "s1"}, "t1", models.SubmitRequest{Content: "late"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrDeadlinePassed))
	assert.Empty(t, fx.grades.subs)
}

func TestSubmitAfterGradingRejected(t *testing.T) {
	fx := newSubmissionFixture(t)
	g := fx.grade("s1")
	value := 9.0
	g.Grade = &value
	g.Status = models.GradeStatusGraded
	fx.store.grades[g.Key()] = g

	_, err := fx.svc.Submit(context.Background(), models.ActorRef{Kind: models.RoleStudent, ID: "s1"}, "t1", models.SubmitRequest{Content: "again"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrAlreadyGraded))
	after := fx.grade("s1")
	assert.Equal(t, models.GradeStatusGraded, after.Status)
	assert.Equal(t, 9.0, *after.Grade)
	assert.Nil(t, after.SubmissionID)
}

func TestSubmitRequiresEnrollment(t *testing.T) {
	fx := newSubmissionFixture(t)
	_, err := fx.svc.Submit(context.Background(), models.ActorRef{Kind: models.RoleStudent, ID: "s4"}, "t1", models.SubmitRequest{Content: "hi"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

// staleCourseReader answers enrollment from a read taken before the student was dropped.
type staleCourseReader struct{ fakeCourseReader }

func (staleCourseReader) IsEnrolled(context.Context, string, string) (bool, error) { return true, nil }

func TestSubmitRechecksEnrollmentInsideTransaction(t *testing.T) {
	fx := newSubmissionFixture(t)
	fx.svc.courses = staleCourseReader{fakeCourseReader{store: fx.store}}

	_, err := fx.svc.Submit(context.Background(), models.ActorRef{Kind: models.RoleStudent, ID: "s4"}, "t1", models.SubmitRequest{Content: "hi"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	assert.NotContains(t, fx.store.submissions, models.GradeKey{TaskID: "t1", StudentID: "s4"})
	assert.NotContains(t, fx.store.grades, models.GradeKey{TaskID: "t1", StudentID: "s4"})
}

func TestSubmitUnknownTask(t *testing.T) {
	fx := newSubmissionFixture(t)
	_, err := fx.svc.Submit(context.Background(), models.ActorRef{Kind: models.RoleStudent, ID: "s1"}, "nope", models.SubmitRequest{Content: "hi"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestSubmitRejectsDisallowedFileType(t *testing.T) {
	fx := newSubmissionFixture(t)
	fx.settings.settings.AllowedFileTypes = pq.StringArray{"pdf"}

	_, err := fx.svc.Submit(context.Background(), models.ActorRef{Kind: models.RoleStudent, ID: "s1"}, "t1", models.SubmitRequest{
		Attachments: []models.Attachment{{FileName: "run.exe", URL: "/uploads/run.exe"}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, fx.grades.subs)
}
