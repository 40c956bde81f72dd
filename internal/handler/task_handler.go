package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/pkg/response"
)

type taskService interface {
	List(ctx context.Context, actor models.ActorRef, filter models.TaskFilter) ([]models.TaskView, *models.Pagination, error)
	Details(ctx context.Context, actor models.ActorRef, id string) (*models.TaskView, error)
	Create(ctx context.Context, actor models.ActorRef, req models.TaskRequest) (*models.TaskView, *models.SyncReport, error)
	Update(ctx context.Context, actor models.ActorRef, id string, req models.TaskRequest) (*models.TaskView, *models.SyncReport, error)
	Delete(ctx context.Context, actor models.ActorRef, id string) (*models.SyncReport, error)
}

// TaskHandler exposes task endpoints. Task status is computed by the service at read time.
type TaskHandler struct {
	service taskService
}

// NewTaskHandler constructs the handler.
func NewTaskHandler(svc taskService) *TaskHandler {
	return &TaskHandler{service: svc}
}

// List godoc
// @Summary List tasks
// @Tags Tasks
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param search query string false "Title"
// @Param course query string false "Course ID"
// @Success 200 {object} response.Envelope
// @Router /admin/tasks/all [get]
func (h *TaskHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	page, limit := pageParams(c)
	filter := models.TaskFilter{Search: searchParam(c), CourseID: c.Query("course"), Page: page, PageSize: limit}
	tasks, pagination, err := h.service.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tasks, pagination)
}

// Details godoc
// @Summary Task details
// @Tags Tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/tasks/details/{id} [get]
func (h *TaskHandler) Details(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	task, err := h.service.Details(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, task, nil)
}

// Create godoc
// @Summary Create a task
// @Description Seeds a Pending grade for every student enrolled in the course
// @Tags Tasks
// @Accept json
// @Produce json
// @Param payload body models.TaskRequest true "Task"
// @Success 201 {object} response.Envelope
// @Router /admin/tasks/add [post]
func (h *TaskHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.TaskRequest
	if !bindJSON(c, &req, "invalid task payload") {
		return
	}
	task, report, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, task, nil, syncMeta(report))
}

// Update godoc
// @Summary Update a task
// @Description Moving a task to another course replaces its grades and submissions
// @Tags Tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param payload body models.TaskRequest true "Task"
// @Success 200 {object} response.Envelope
// @Router /admin/tasks/update/{id} [put]
func (h *TaskHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.TaskRequest
	if !bindJSON(c, &req, "invalid task payload") {
		return
	}
	task, report, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, task, nil, syncMeta(report))
}

// Delete godoc
// @Summary Delete a task
// @Tags Tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} response.Envelope
// @Router /admin/tasks/delete/{id} [delete]
func (h *TaskHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	report, err := h.service.Delete(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "task deleted", report)
}
