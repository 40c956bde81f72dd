package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/pkg/response"
)

type batchService interface {
	List(ctx context.Context, filter models.BatchFilter) ([]models.BatchDetail, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.BatchDetail, error)
	Create(ctx context.Context, actor models.ActorRef, req models.BatchRequest) (*models.BatchDetail, error)
	Update(ctx context.Context, id string, req models.BatchRequest) (*models.BatchDetail, *models.SyncReport, error)
	Delete(ctx context.Context, id string) (*models.SyncReport, error)
	MyBatches(ctx context.Context, facultyID string) ([]models.BatchDetail, error)
	SearchStudents(ctx context.Context, q string) ([]models.UserSummary, error)
	SearchBatches(ctx context.Context, q string) ([]models.BatchSummary, error)
}

// BatchHandler exposes batch management endpoints.
type BatchHandler struct {
	service batchService
}

// NewBatchHandler constructs the handler.
func NewBatchHandler(svc batchService) *BatchHandler {
	return &BatchHandler{service: svc}
}

// List godoc
// @Summary List batches
// @Tags Batches
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param search query string false "Name, department or year"
// @Success 200 {object} response.Envelope
// @Router /admin/batches/all [get]
func (h *BatchHandler) List(c *gin.Context) {
	page, limit := pageParams(c)
	batches, pagination, err := h.service.List(c.Request.Context(), models.BatchFilter{Search: searchParam(c), Page: page, PageSize: limit})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batches, pagination)
}

// Details godoc
// @Summary Batch details with roster
// @Tags Batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Router /admin/batches/details/{id} [get]
func (h *BatchHandler) Details(c *gin.Context) {
	batch, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batch, nil)
}

// Create godoc
// @Summary Create a batch
// @Tags Batches
// @Accept json
// @Produce json
// @Param payload body models.BatchRequest true "Batch"
// @Success 201 {object} response.Envelope
// @Router /admin/batches/add [post]
func (h *BatchHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.BatchRequest
	if !bindJSON(c, &req, "invalid batch payload") {
		return
	}
	batch, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, batch)
}

// Update godoc
// @Summary Update a batch
// @Description Roster changes propagate to grades of every course linked to the batch
// @Tags Batches
// @Accept json
// @Produce json
// @Param id path string true "Batch ID"
// @Param payload body models.BatchRequest true "Batch"
// @Success 200 {object} response.Envelope
// @Router /admin/batches/update/{id} [put]
func (h *BatchHandler) Update(c *gin.Context) {
	var req models.BatchRequest
	if !bindJSON(c, &req, "invalid batch payload") {
		return
	}
	batch, report, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batch, nil, syncMeta(report))
}

// Delete godoc
// @Summary Delete a batch
// @Tags Batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Router /admin/batches/delete/{id} [delete]
func (h *BatchHandler) Delete(c *gin.Context) {
	report, err := h.service.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "batch deleted", report)
}

// MyBatches godoc
// @Summary Batches linked to the faculty's courses
// @Tags Batches
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /faculty/my-batches [get]
func (h *BatchHandler) MyBatches(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	batches, err := h.service.MyBatches(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batches, nil)
}

// SearchStudents godoc
// @Summary Search students to add to a batch
// @Tags Batches
// @Produce json
// @Param q query string false "Search term"
// @Success 200 {object} response.Envelope
// @Router /admin/students/search [get]
func (h *BatchHandler) SearchStudents(c *gin.Context) {
	students, err := h.service.SearchStudents(c.Request.Context(), searchParam(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, nil)
}

// SearchBatches godoc
// @Summary Search batches to link to a course
// @Tags Batches
// @Produce json
// @Param q query string false "Search term"
// @Success 200 {object} response.Envelope
// @Router /faculty/search-batches [get]
func (h *BatchHandler) SearchBatches(c *gin.Context) {
	batches, err := h.service.SearchBatches(c.Request.Context(), searchParam(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batches, nil)
}
