package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/models"
)

func TestListBatchesIncludesStudentCount(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBatchRepository(db)

	now := time.Now()
	cols := append(columnsOf(batchColumns), "student_count")
	mock.ExpectQuery(regexp.QuoteMeta("AS student_count FROM batches b WHERE 1=1 AND (LOWER(b.name) LIKE $1")).
		WithArgs("%cs%").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("b1", "CS-A", "2024", "CS", "ADMIN", "a1", now, now, 31))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM batches b")).
		WithArgs("%cs%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	batches, total, err := repo.List(context.Background(), models.BatchFilter{Search: "CS"})
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, 31, batches[0].StudentCount)
	assert.Equal(t, models.ActorRef{Kind: models.RoleAdmin, ID: "a1"}, batches[0].Creator())
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentChecks(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM course_batches cb JOIN batch_students bs")).
		WithArgs("c1", "s1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM course_faculty")).
		WithArgs("c1", "f9").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	enrolled, err := repo.IsEnrolled(context.Background(), "c1", "s1")
	require.NoError(t, err)
	assert.True(t, enrolled)
	teaches, err := repo.IsTaughtBy(context.Background(), "c1", "f9")
	require.NoError(t, err)
	assert.False(t, teaches)
	assert.NoError(t, mock.ExpectationsWereMet())
}
