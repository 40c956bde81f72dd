package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/middleware"
	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type routerFixture struct {
	engine      *gin.Engine
	auth        *stubAuth
	tasks       *stubTasks
	grades      *stubGrades
	submissions *stubSubmissions
	settings    *stubSettings
	analytics   *stubAnalytics
	audit       *nopAudit
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &routerFixture{
		auth: &stubAuth{tokens: map[string]*models.JWTClaims{
			"admin-token":   {UserID: "a1", Role: models.RoleAdmin},
			"faculty-token": {UserID: "f1", Role: models.RoleFaculty},
			"student-token": {UserID: "s1", Role: models.RoleStudent},
		}},
		tasks:       &stubTasks{},
		grades:      &stubGrades{result: &models.GradeResult{Updated: 1, Failed: []models.GradeFailure{}}},
		submissions: &stubSubmissions{result: &models.SubmitResult{}},
		settings:    &stubSettings{},
		analytics:   &stubAnalytics{},
		audit:       &nopAudit{},
	}
	exports := &stubExports{}
	h := Handlers{
		Auth:          NewAuthHandler(f.auth),
		Users:         NewUserHandler(stubUsers{}),
		Batches:       NewBatchHandler(stubBatches{}),
		Courses:       NewCourseHandler(stubCourses{}),
		Tasks:         NewTaskHandler(f.tasks),
		Grades:        NewGradeHandler(f.grades, f.submissions, exports),
		Notifications: NewNotificationHandler(stubNotifications{}),
		Settings:      NewSettingsHandler(f.settings),
		Analytics:     NewAnalyticsHandler(f.analytics),
		Dashboard:     NewDashboardHandler(&fakeDashboardSrv{}),
		Files:         NewFileHandler(&stubUploads{}, exports),
		Metrics: NewMetricsHandler(http.NotFoundHandler(), map[string]Pinger{
			"postgres": PingFunc(func(context.Context) error { return nil }),
		}),
	}
	f.engine = gin.New()
	f.engine.Use(middleware.WithResponseMeta())
	RegisterRoutes(f.engine, "/api", RouteDeps{Auth: f.auth, Maintenance: f.settings, Audit: f.audit}, h)
	return f
}

func (f *routerFixture) do(method, path, token, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func TestRoutesEnforceRoleGroups(t *testing.T) {
	f := newRouterFixture(t)

	cases := []struct {
		method, path, token string
		status              int
	}{
		{http.MethodGet, "/api/admin/tasks/all", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/admin/tasks/all", "student-token", http.StatusForbidden},
		{http.MethodGet, "/api/admin/tasks/all", "faculty-token", http.StatusForbidden},
		{http.MethodGet, "/api/admin/tasks/all", "admin-token", http.StatusOK},
		{http.MethodGet, "/api/faculty/tasks/all", "faculty-token", http.StatusOK},
		{http.MethodGet, "/api/faculty/students", "faculty-token", http.StatusOK},
		{http.MethodGet, "/api/student/tasks/all", "faculty-token", http.StatusForbidden},
		{http.MethodGet, "/api/student/tasks/all", "student-token", http.StatusOK},
		{http.MethodGet, "/api/student/courses/all", "student-token", http.StatusOK},
		{http.MethodGet, "/api/notifications/unread-count", "student-token", http.StatusOK},
		{http.MethodGet, "/api/faculty/tasks/t1/submissions", "faculty-token", http.StatusOK},
		{http.MethodGet, "/api/exports/tok", "student-token", http.StatusForbidden},
	}
	for _, tc := range cases {
		rec := f.do(tc.method, tc.path, tc.token, "")
		assert.Equal(t, tc.status, rec.Code, "%s %s as %q", tc.method, tc.path, tc.token)
	}
}

func TestRoutesPassQueryToServices(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(http.MethodGet, "/api/admin/tasks/all?course=c1&page=2&limit=5&search=lab", "admin-token", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.TaskFilter{Search: "lab", CourseID: "c1", Page: 2, PageSize: 5}, f.tasks.lastFilter)

	rec = f.do(http.MethodGet, "/api/faculty/analytics?startDate=2026-01-01&endDate=2026-01-31", "faculty-token", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ActorRef{Kind: models.RoleFaculty, ID: "f1"}, f.analytics.actor)

	rec = f.do(http.MethodGet, "/api/admin/analytics?startDate=yesterday", "admin-token", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoutesGradeAndSubmit(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(http.MethodPost, "/api/faculty/tasks/t1/grade", "faculty-token", `{"grades":[{"gradeId":"g1","grade":9}]}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "t1", f.grades.lastTask)

	rec = f.do(http.MethodPost, "/api/student/tasks/t1/submit", "student-token", `{"content":"done"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, models.ActorRef{Kind: models.RoleStudent, ID: "s1"}, f.submissions.student)

	f.submissions.err = appErrors.ErrAlreadyGraded
	rec = f.do(http.MethodPost, "/api/student/tasks/t1/submit", "student-token", `{"content":"again"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), appErrors.ErrAlreadyGraded.Code)

	rec = f.do(http.MethodPost, "/api/student/tasks/t1/submit", "student-token", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoutesMaintenanceMode(t *testing.T) {
	f := newRouterFixture(t)
	f.settings.maintenance = true

	rec := f.do(http.MethodGet, "/api/student/tasks/all", "student-token", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "down for maintenance")

	rec = f.do(http.MethodPost, "/api/auth/student/login", "", `{"username":"s","password":"secret"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = f.do(http.MethodPost, "/api/auth/admin/login", "", `{"username":"a","password":"secret"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.RoleAdmin, f.auth.lastRole)

	rec = f.do(http.MethodGet, "/api/admin/settings", "admin-token", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"maintenanceMode":{"enabled":true`)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/health", "", "").Code)
}

func TestRoutesAuditSettingsUpdate(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(http.MethodPut, "/api/admin/settings", "admin-token", `{"platformName":"Academy","maxUploadSizeMB":5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.audit.count)

	rec = f.do(http.MethodPut, "/api/admin/settings", "admin-token", `[]`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 1, f.audit.count)
}

func TestReadyReportsFailingDependency(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewMetricsHandler(nil, map[string]Pinger{
		"postgres": PingFunc(func(context.Context) error { return nil }),
		"redis":    PingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})
	c, rec := testContext(http.MethodGet, "/ready", nil)

	handler.Ready(c)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")

	c, rec = testContext(http.MethodGet, "/metrics", nil)
	handler.Prometheus(c)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
