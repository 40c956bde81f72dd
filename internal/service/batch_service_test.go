package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type memBatchRepo struct {
	batches map[string]models.Batch
	rosters map[string][]models.UserSummary
	queries []string
}

func (m *memBatchRepo) List(_ context.Context, _ models.BatchFilter) ([]models.Batch, int, error) {
	out := make([]models.Batch, 0, len(m.batches))
	for _, b := range m.batches {
		out = append(out, b)
	}
	return out, len(out), nil
}

func (m *memBatchRepo) FindByID(_ context.Context, id string) (*models.Batch, error) {
	b, ok := m.batches[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &b, nil
}

func (m *memBatchRepo) Rosters(_ context.Context, ids []string) (map[string][]models.UserSummary, error) {
	out := map[string][]models.UserSummary{}
	for _, id := range ids {
		if roster, ok := m.rosters[id]; ok {
			out[id] = roster
		}
	}
	return out, nil
}

func (m *memBatchRepo) ListByFaculty(_ context.Context, _ string) ([]models.Batch, error) {
	return nil, nil
}

func (m *memBatchRepo) Search(_ context.Context, q string, _ int) ([]models.BatchSummary, error) {
	m.queries = append(m.queries, q)
	return []models.BatchSummary{{ID: "b1", Name: "CS 2024"}}, nil
}

type memStudentLookup struct {
	known map[string]bool
}

func (m memStudentLookup) FindByIDs(_ context.Context, _ models.UserRole, ids []string) ([]models.UserSummary, error) {
	var out []models.UserSummary
	for _, id := range ids {
		if m.known[id] {
			out = append(out, models.UserSummary{ID: id})
		}
	}
	return out, nil
}

func (m memStudentLookup) Search(_ context.Context, _ models.UserRole, _ string, _ int) ([]models.UserSummary, error) {
	return []models.UserSummary{{ID: "s1"}}, nil
}

type recordingBatchSync struct {
	repo       *memBatchRepo
	created    []string
	updatedIDs []string
	updatedSet bool
	deleted    string
}

func (r *recordingBatchSync) CreateBatch(_ context.Context, batch *models.Batch, studentIDs []string) (*models.SyncReport, error) {
	batch.ID = "b-new"
	r.repo.batches[batch.ID] = *batch
	r.created = studentIDs
	return &models.SyncReport{Added: studentIDs}, nil
}

func (r *recordingBatchSync) UpdateBatch(_ context.Context, batchID string, apply func(*models.Batch) error, studentIDs []string) (*models.Batch, *models.SyncReport, error) {
	batch, ok := r.repo.batches[batchID]
	if !ok {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
	}
	if err := apply(&batch); err != nil {
		return nil, nil, err
	}
	r.repo.batches[batchID] = batch
	r.updatedIDs = studentIDs
	r.updatedSet = studentIDs != nil
	return &batch, &models.SyncReport{Added: studentIDs}, nil
}

func (r *recordingBatchSync) DeleteBatch(_ context.Context, batchID string) (*models.SyncReport, error) {
	r.deleted = batchID
	return &models.SyncReport{GradesDeleted: 2}, nil
}

func newBatchFixture() (*BatchService, *memBatchRepo, *recordingBatchSync) {
	repo := &memBatchRepo{
		batches: map[string]models.Batch{"b1": {ID: "b1", Name: "CS 2024"}},
		rosters: map[string][]models.UserSummary{"b1": {{ID: "s1"}}},
	}
	sync := &recordingBatchSync{repo: repo}
	users := memStudentLookup{known: map[string]bool{"s1": true, "s2": true}}
	return NewBatchService(repo, users, sync, nil, zap.NewNop()), repo, sync
}

func TestBatchCreateDedupesStudents(t *testing.T) {
	svc, _, sync := newBatchFixture()
	admin := models.ActorRef{Kind: models.RoleAdmin, ID: "a1"}

	detail, err := svc.Create(context.Background(), admin, models.BatchRequest{
		Name:         " CS 2025 ",
		AcademicYear: "2025",
		Department:   "CS",
		Students:     []string{"s2", "s1", " s2 ", ""},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, sync.created)
	assert.Equal(t, "CS 2025", detail.Name)
	assert.Equal(t, models.RoleAdmin, detail.CreatorKind)
	assert.Equal(t, []models.UserSummary{}, detail.Students)
}

func TestBatchCreateRejectsUnknownStudents(t *testing.T) {
	svc, _, sync := newBatchFixture()

	_, err := svc.Create(context.Background(), models.ActorRef{Kind: models.RoleAdmin, ID: "a1"}, models.BatchRequest{
		Name: "CS", AcademicYear: "2025", Department: "CS", Students: []string{"s1", "ghost"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Contains(t, err.Error(), "ghost")
	assert.Nil(t, sync.created)
}

func TestBatchCreateValidation(t *testing.T) {
	svc, _, _ := newBatchFixture()

	_, err := svc.Create(context.Background(), models.ActorRef{Kind: models.RoleAdmin, ID: "a1"}, models.BatchRequest{Name: "CS"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestBatchUpdateWithoutStudentsKeepsRoster(t *testing.T) {
	svc, repo, sync := newBatchFixture()

	detail, report, err := svc.Update(context.Background(), "b1", models.BatchRequest{Name: "CS 2024 A", AcademicYear: "2024", Department: "CS"})
	require.NoError(t, err)
	assert.False(t, sync.updatedSet)
	assert.Empty(t, report.Added)
	assert.Equal(t, "CS 2024 A", repo.batches["b1"].Name)
	assert.Equal(t, []models.UserSummary{{ID: "s1"}}, detail.Students)

	_, _, err = svc.Update(context.Background(), "b1", models.BatchRequest{Name: "CS", AcademicYear: "2024", Department: "CS", Students: []string{}})
	require.NoError(t, err)
	assert.True(t, sync.updatedSet)
	assert.Empty(t, sync.updatedIDs)
}

func TestBatchGetNotFound(t *testing.T) {
	svc, _, _ := newBatchFixture()

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestBatchDeleteDelegatesToSync(t *testing.T) {
	svc, _, sync := newBatchFixture()

	report, err := svc.Delete(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, "b1", sync.deleted)
	assert.Equal(t, 2, report.GradesDeleted)
}

func TestBatchSearchIgnoresShortQueries(t *testing.T) {
	svc, repo, _ := newBatchFixture()

	batches, err := svc.SearchBatches(context.Background(), " c ")
	require.NoError(t, err)
	assert.Empty(t, batches)
	assert.Empty(t, repo.queries)

	batches, err = svc.SearchBatches(context.Background(), "cs")
	require.NoError(t, err)
	assert.Len(t, batches, 1)

	students, err := svc.SearchStudents(context.Background(), "x")
	require.NoError(t, err)
	assert.Empty(t, students)
}
