package handler

import (
	"context"
	"time"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/service"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/export"
)

type stubAuth struct {
	lastRole     models.UserRole
	lastRegister models.RegisterRequest
	tokens       map[string]*models.JWTClaims
}

func (s *stubAuth) Register(_ context.Context, req models.RegisterRequest) (*models.UserInfo, error) {
	s.lastRegister = req
	return &models.UserInfo{ID: "new", Role: req.Role, Email: req.Email}, nil
}

func (s *stubAuth) Login(_ context.Context, role models.UserRole, req models.LoginRequest) (*models.LoginResponse, error) {
	s.lastRole = role
	if req.Password != "secret" {
		return nil, appErrors.ErrInvalidCredentials
	}
	return &models.LoginResponse{AccessToken: "token", User: models.UserInfo{Role: role}}, nil
}

func (s *stubAuth) RefreshToken(context.Context, models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	return &models.RefreshTokenResponse{AccessToken: "token"}, nil
}

func (s *stubAuth) Logout(context.Context, string, string, models.LoginRequest) error { return nil }

func (s *stubAuth) CurrentUser(_ context.Context, id string) (*models.User, error) {
	for _, claims := range s.tokens {
		if claims.UserID == id {
			return &models.User{ID: id, Role: claims.Role, Active: true}, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "user no longer exists")
}

func (s *stubAuth) UpdateProfile(_ context.Context, id string, req models.UpdateProfileRequest) (*models.User, error) {
	return &models.User{ID: id, FirstName: req.FirstName}, nil
}

func (s *stubAuth) ChangePassword(context.Context, string, models.ChangePasswordRequest) error {
	return nil
}

func (s *stubAuth) ValidateToken(token string) (*models.JWTClaims, error) {
	claims, ok := s.tokens[token]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return claims, nil
}

type stubUsers struct{ userService }

func (stubUsers) ListStudents(_ context.Context, actor models.ActorRef, _ models.UserFilter) ([]models.StudentDetail, *models.Pagination, error) {
	return []models.StudentDetail{}, models.NewPagination(1, 10, 0), nil
}

type stubBatches struct{ batchService }

type stubCourses struct{ courseService }

func (stubCourses) List(context.Context, models.ActorRef, models.CourseFilter) ([]models.CourseDetail, *models.Pagination, error) {
	return []models.CourseDetail{}, models.NewPagination(1, 10, 0), nil
}

type stubTasks struct {
	taskService
	lastFilter models.TaskFilter
}

func (s *stubTasks) List(_ context.Context, _ models.ActorRef, filter models.TaskFilter) ([]models.TaskView, *models.Pagination, error) {
	s.lastFilter = filter
	return []models.TaskView{}, models.NewPagination(filter.Page, filter.PageSize, 0), nil
}

type stubGrades struct {
	lastTask string
	result   *models.GradeResult
	err      error
}

func (s *stubGrades) GradeTask(_ context.Context, _ models.ActorRef, taskID string, req models.GradeRequest) (*models.GradeResult, error) {
	s.lastTask = taskID
	return s.result, s.err
}

func (s *stubGrades) TaskGrades(_ context.Context, _ models.ActorRef, taskID string) (*models.Task, []models.GradeDetail, error) {
	return &models.Task{ID: taskID}, []models.GradeDetail{}, nil
}

func (s *stubGrades) TaskSubmissions(_ context.Context, _ models.ActorRef, taskID string) (*models.Task, []models.SubmissionRosterEntry, error) {
	return &models.Task{ID: taskID}, []models.SubmissionRosterEntry{{Status: models.SubmissionNotSubmitted}}, nil
}

func (s *stubGrades) StudentGrades(context.Context, string) ([]models.StudentGrade, error) {
	return []models.StudentGrade{}, nil
}

type stubSubmissions struct {
	result  *models.SubmitResult
	err     error
	student models.ActorRef
}

func (s *stubSubmissions) Submit(_ context.Context, student models.ActorRef, taskID string, req models.SubmitRequest) (*models.SubmitResult, error) {
	s.student = student
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubSubmissions) MySubmission(context.Context, string, string) (*models.Submission, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
}

type stubExports struct {
	format string
	file   *service.ExportFile
	err    error
}

func (s *stubExports) GradeSheet(_ context.Context, _ models.ActorRef, taskID, format string) (*service.ExportResult, error) {
	s.format = format
	return &service.ExportResult{FileName: "grades.csv", Format: export.Format(format), URL: "/api/exports/tok", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (s *stubExports) Open(string) (*service.ExportFile, error) {
	return s.file, s.err
}

type stubNotifications struct{ notificationService }

func (stubNotifications) UnreadCount(context.Context, models.ActorRef) (int, error) { return 4, nil }

type stubSettings struct {
	maintenance bool
}

func (s *stubSettings) Get(context.Context) (*models.Settings, error) {
	settings := models.DefaultSettings()
	settings.MaintenanceEnabled = s.maintenance
	return &settings, nil
}

func (s *stubSettings) Update(_ context.Context, req models.UpdateSettingsRequest) (*models.Settings, error) {
	settings := models.DefaultSettings()
	settings.PlatformName = req.PlatformName
	return &settings, nil
}

func (s *stubSettings) Maintenance(context.Context) (bool, string) {
	return s.maintenance, "down for maintenance"
}

type stubAnalytics struct{ actor models.ActorRef }

func (s *stubAnalytics) Report(_ context.Context, actor models.ActorRef, filter models.AnalyticsFilter) (*models.AnalyticsReport, bool, error) {
	s.actor = actor
	return &models.AnalyticsReport{}, false, nil
}

func (s *stubAnalytics) SystemMetrics() models.AnalyticsSystemMetrics {
	return models.AnalyticsSystemMetrics{}
}

type stubUploads struct {
	saved   service.Upload
	body    []byte
	deleted string
}

func (s *stubUploads) Save(_ context.Context, upload service.Upload) (*service.UploadResult, error) {
	s.saved = upload
	buf := make([]byte, upload.Size)
	n, _ := upload.Content.Read(buf)
	s.body = buf[:n]
	return &service.UploadResult{URL: "/uploads/abc.png", FileName: upload.FileName, FileType: "png", Size: upload.Size}, nil
}

func (s *stubUploads) DeleteByURL(_ context.Context, rawURL string) error {
	s.deleted = rawURL
	return nil
}

type nopAudit struct{ count int }

func (a *nopAudit) CreateAuditLog(context.Context, *models.AuditLog) error {
	a.count++
	return nil
}
