package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/pkg/response"
)

type courseService interface {
	List(ctx context.Context, actor models.ActorRef, filter models.CourseFilter) ([]models.CourseDetail, *models.Pagination, error)
	MyCourses(ctx context.Context, facultyID string) ([]models.CourseDetail, error)
	Details(ctx context.Context, actor models.ActorRef, id string) (*models.CourseDetail, error)
	Create(ctx context.Context, actor models.ActorRef, req models.CourseRequest) (*models.CourseDetail, error)
	Update(ctx context.Context, actor models.ActorRef, id string, req models.CourseRequest) (*models.CourseDetail, *models.SyncReport, error)
	Delete(ctx context.Context, actor models.ActorRef, id string) (*models.SyncReport, error)
	SearchAssignables(ctx context.Context, kind, q string) (*models.AssignableResult, error)
	SearchTaskAssignables(ctx context.Context, actor models.ActorRef, q string) ([]models.CourseSummary, error)
}

// CourseHandler exposes course endpoints for every role. Visibility is decided by the service.
type CourseHandler struct {
	service courseService
}

// NewCourseHandler constructs the handler.
func NewCourseHandler(svc courseService) *CourseHandler {
	return &CourseHandler{service: svc}
}

// List godoc
// @Summary List courses
// @Description Faculty see courses they teach, students courses they are enrolled in
// @Tags Courses
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param search query string false "Code or title"
// @Success 200 {object} response.Envelope
// @Router /admin/courses/all [get]
func (h *CourseHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	page, limit := pageParams(c)
	courses, pagination, err := h.service.List(c.Request.Context(), actor, models.CourseFilter{Search: searchParam(c), Page: page, PageSize: limit})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, pagination)
}

// MyCourses godoc
// @Summary Courses taught by the current faculty
// @Tags Courses
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /faculty/my-courses [get]
func (h *CourseHandler) MyCourses(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	courses, err := h.service.MyCourses(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil)
}

// Details godoc
// @Summary Course details
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/courses/details/{id} [get]
func (h *CourseHandler) Details(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	course, err := h.service.Details(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Create godoc
// @Summary Create a course
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body models.CourseRequest true "Course"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/courses/add [post]
func (h *CourseHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.CourseRequest
	if !bindJSON(c, &req, "invalid course payload") {
		return
	}
	course, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// Update godoc
// @Summary Update a course
// @Description Batch changes re-derive the roster and reconcile grades of every task
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body models.CourseRequest true "Course"
// @Success 200 {object} response.Envelope
// @Router /admin/courses/update/{id} [put]
func (h *CourseHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.CourseRequest
	if !bindJSON(c, &req, "invalid course payload") {
		return
	}
	course, report, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil, syncMeta(report))
}

// Delete godoc
// @Summary Delete a course
// @Description Cascades to the course's tasks, grades and submissions
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /admin/courses/delete/{id} [delete]
func (h *CourseHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	report, err := h.service.Delete(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "course deleted", report)
}

// SearchAssignables godoc
// @Summary Search faculty or batches to attach to a course
// @Tags Courses
// @Produce json
// @Param type query string true "faculty or batch"
// @Param q query string true "Search term (2+ characters)"
// @Success 200 {object} response.Envelope
// @Router /admin/search/assignables [get]
func (h *CourseHandler) SearchAssignables(c *gin.Context) {
	result, err := h.service.SearchAssignables(c.Request.Context(), c.Query("type"), searchParam(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// SearchTaskAssignables godoc
// @Summary Search courses a task can be attached to
// @Tags Courses
// @Produce json
// @Param q query string true "Search term (2+ characters)"
// @Success 200 {object} response.Envelope
// @Router /admin/search/task-assignables [get]
func (h *CourseHandler) SearchTaskAssignables(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	courses, err := h.service.SearchTaskAssignables(c.Request.Context(), actor, searchParam(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil)
}
