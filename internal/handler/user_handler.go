package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/pkg/response"
)

type userService interface {
	ListFaculty(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error)
	CreateFaculty(ctx context.Context, actor models.ActorRef, req models.FacultyRequest) (*models.User, error)
	UpdateFaculty(ctx context.Context, actor models.ActorRef, id string, req models.FacultyRequest) (*models.User, error)
	DeleteFaculty(ctx context.Context, actor models.ActorRef, id string) (*models.FacultyDeletionReport, error)
	ListStudents(ctx context.Context, actor models.ActorRef, filter models.UserFilter) ([]models.StudentDetail, *models.Pagination, error)
	GetStudent(ctx context.Context, actor models.ActorRef, id string) (*models.StudentDetail, error)
	CreateStudent(ctx context.Context, actor models.ActorRef, req models.StudentRequest) (*models.StudentDetail, *models.SyncReport, error)
	UpdateStudent(ctx context.Context, actor models.ActorRef, id string, req models.StudentRequest) (*models.StudentDetail, *models.SyncReport, error)
	DeleteStudent(ctx context.Context, actor models.ActorRef, id string) (*models.SyncReport, error)
}

// UserHandler handles faculty and student management endpoints.
type UserHandler struct {
	service userService
}

// NewUserHandler creates a new user handler.
func NewUserHandler(svc userService) *UserHandler {
	return &UserHandler{service: svc}
}

func userFilter(c *gin.Context) models.UserFilter {
	page, limit := pageParams(c)
	return models.UserFilter{
		Search:    searchParam(c),
		Page:      page,
		PageSize:  limit,
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	}
}

// ListFaculty godoc
// @Summary List faculty
// @Tags Faculty
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param search query string false "Name, email or department"
// @Success 200 {object} response.Envelope
// @Router /admin/faculty/all [get]
func (h *UserHandler) ListFaculty(c *gin.Context) {
	users, pagination, err := h.service.ListFaculty(c.Request.Context(), userFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, pagination)
}

// CreateFaculty godoc
// @Summary Add a faculty member
// @Tags Faculty
// @Accept json
// @Produce json
// @Param payload body models.FacultyRequest true "Faculty"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/faculty/add [post]
func (h *UserHandler) CreateFaculty(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.FacultyRequest
	if !bindJSON(c, &req, "invalid faculty payload") {
		return
	}
	user, err := h.service.CreateFaculty(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}

// UpdateFaculty godoc
// @Summary Update a faculty member
// @Tags Faculty
// @Accept json
// @Produce json
// @Param id path string true "Faculty ID"
// @Param payload body models.FacultyRequest true "Faculty"
// @Success 200 {object} response.Envelope
// @Router /admin/faculty/update/{id} [put]
func (h *UserHandler) UpdateFaculty(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.FacultyRequest
	if !bindJSON(c, &req, "invalid faculty payload") {
		return
	}
	user, err := h.service.UpdateFaculty(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// DeleteFaculty godoc
// @Summary Delete a faculty member
// @Description Removes the account and its course links; reports courses left without faculty
// @Tags Faculty
// @Produce json
// @Param id path string true "Faculty ID"
// @Success 200 {object} response.Envelope
// @Router /admin/faculty/delete/{id} [delete]
func (h *UserHandler) DeleteFaculty(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	report, err := h.service.DeleteFaculty(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// ListStudents godoc
// @Summary List students
// @Description Faculty see the courses they teach for each student
// @Tags Students
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param search query string false "Name, email or roll number"
// @Success 200 {object} response.Envelope
// @Router /admin/students/all [get]
func (h *UserHandler) ListStudents(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	students, pagination, err := h.service.ListStudents(c.Request.Context(), actor, userFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}

// GetStudent godoc
// @Summary Student details
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /admin/students/details/{id} [get]
func (h *UserHandler) GetStudent(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	student, err := h.service.GetStudent(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// CreateStudent godoc
// @Summary Add a student
// @Description Enrolls the student in the given batches and seeds pending grades
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body models.StudentRequest true "Student"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/students/add [post]
func (h *UserHandler) CreateStudent(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.StudentRequest
	if !bindJSON(c, &req, "invalid student payload") {
		return
	}
	student, report, err := h.service.CreateStudent(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, student, nil, syncMeta(report))
}

// UpdateStudent godoc
// @Summary Update a student
// @Description Omitting batch keeps memberships; an empty list removes them all
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body models.StudentRequest true "Student"
// @Success 200 {object} response.Envelope
// @Router /admin/students/update/{id} [put]
func (h *UserHandler) UpdateStudent(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.StudentRequest
	if !bindJSON(c, &req, "invalid student payload") {
		return
	}
	student, report, err := h.service.UpdateStudent(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil, syncMeta(report))
}

// DeleteStudent godoc
// @Summary Delete a student
// @Description Removes the student with their memberships, grades and submissions
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /admin/students/delete/{id} [delete]
func (h *UserHandler) DeleteStudent(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	report, err := h.service.DeleteStudent(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "student deleted", report)
}
