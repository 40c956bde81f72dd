package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/middleware"
	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type fakeDashboardSrv struct {
	adminResp   *dto.AdminDashboardResponse
	adminHit    bool
	adminErr    error
	lastFaculty string
	lastStudent string
}

func (f *fakeDashboardSrv) Admin(context.Context) (*dto.AdminDashboardResponse, bool, error) {
	return f.adminResp, f.adminHit, f.adminErr
}

func (f *fakeDashboardSrv) Faculty(_ context.Context, facultyID string) (*dto.FacultyDashboardResponse, bool, error) {
	f.lastFaculty = facultyID
	return &dto.FacultyDashboardResponse{KPIs: dto.FacultyKPIs{MyCourses: 3}}, false, nil
}

func (f *fakeDashboardSrv) Student(_ context.Context, studentID string) (*dto.StudentDashboardResponse, bool, error) {
	f.lastStudent = studentID
	return &dto.StudentDashboardResponse{UpcomingDeadlines: []models.TaskView{}}, true, nil
}

type responseEnvelope struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data"`
	Meta    map[string]interface{} `json:"meta"`
	Error   map[string]interface{} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func testContext(method, target string, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, nil)
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, rec
}

func TestDashboardHandlerAdminReportsCacheHit(t *testing.T) {
	handler := NewDashboardHandler(&fakeDashboardSrv{
		adminResp: &dto.AdminDashboardResponse{TotalStudents: 12, Year: 2026},
		adminHit:  true,
	})
	c, rec := testContext(http.MethodGet, "/admin/fetch", &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin})

	handler.Admin(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Contains(t, envelope.Meta, "processing_time_ms")
	assert.EqualValues(t, 12, envelope.Data["totalStudents"])
}

func TestDashboardHandlerAdminError(t *testing.T) {
	handler := NewDashboardHandler(&fakeDashboardSrv{adminErr: appErrors.Wrap(errors.New("db"), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dashboard totals")})
	c, rec := testContext(http.MethodGet, "/admin/fetch", nil)

	handler.Admin(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, decodeEnvelope(t, rec).Success)
}

func TestDashboardHandlerUsesTokenHolder(t *testing.T) {
	svc := &fakeDashboardSrv{}
	handler := NewDashboardHandler(svc)

	c, rec := testContext(http.MethodGet, "/faculty/dashboard-stats", &models.JWTClaims{UserID: "f-9", Role: models.RoleFaculty})
	handler.Faculty(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "f-9", svc.lastFaculty)

	c, rec = testContext(http.MethodGet, "/student/dashboard-stats", &models.JWTClaims{UserID: "s-3", Role: models.RoleStudent})
	handler.Student(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s-3", svc.lastStudent)
	assert.Equal(t, true, decodeEnvelope(t, rec).Meta["cache_hit"])
}

func TestDashboardHandlerRequiresClaims(t *testing.T) {
	handler := NewDashboardHandler(&fakeDashboardSrv{})
	c, rec := testContext(http.MethodGet, "/student/dashboard-stats", nil)

	handler.Student(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
