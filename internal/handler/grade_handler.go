package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/service"
	"github.com/noah-isme/lms-api/pkg/response"
)

type gradeService interface {
	GradeTask(ctx context.Context, actor models.ActorRef, taskID string, req models.GradeRequest) (*models.GradeResult, error)
	TaskGrades(ctx context.Context, actor models.ActorRef, taskID string) (*models.Task, []models.GradeDetail, error)
	TaskSubmissions(ctx context.Context, actor models.ActorRef, taskID string) (*models.Task, []models.SubmissionRosterEntry, error)
	StudentGrades(ctx context.Context, studentID string) ([]models.StudentGrade, error)
}

type submissionService interface {
	Submit(ctx context.Context, student models.ActorRef, taskID string, req models.SubmitRequest) (*models.SubmitResult, error)
	MySubmission(ctx context.Context, studentID, taskID string) (*models.Submission, error)
}

type gradeSheetExporter interface {
	GradeSheet(ctx context.Context, actor models.ActorRef, taskID, format string) (*service.ExportResult, error)
}

// GradeHandler exposes grading, submission and grade-sheet export endpoints.
type GradeHandler struct {
	grades      gradeService
	submissions submissionService
	exports     gradeSheetExporter
}

// NewGradeHandler constructs handler.
func NewGradeHandler(grades gradeService, submissions submissionService, exports gradeSheetExporter) *GradeHandler {
	return &GradeHandler{grades: grades, submissions: submissions, exports: exports}
}

// Grade godoc
// @Summary Grade a task
// @Description Updates grades in bulk. Entries with unknown ids are reported in failed without aborting the run
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param payload body models.GradeRequest true "Grades"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/tasks/{id}/grade [post]
func (h *GradeHandler) Grade(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.GradeRequest
	if !bindJSON(c, &req, "invalid grading payload") {
		return
	}
	result, err := h.grades.GradeTask(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// TaskGrades godoc
// @Summary Grades of a task
// @Tags Grades
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} response.Envelope
// @Router /admin/tasks/{id}/grades [get]
func (h *GradeHandler) TaskGrades(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	task, grades, err := h.grades.TaskGrades(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"task": task, "grades": grades}, nil)
}

// TaskSubmissions godoc
// @Summary Submission roster of a task
// @Description Lists every enrolled student, including those who have not submitted
// @Tags Grades
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} response.Envelope
// @Router /admin/tasks/{id}/submissions [get]
func (h *GradeHandler) TaskSubmissions(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	task, roster, err := h.grades.TaskSubmissions(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"task": task, "submissions": roster}, nil)
}

// Export godoc
// @Summary Export a task's grade sheet
// @Description Renders the grade sheet and returns a signed download link
// @Tags Grades
// @Produce json
// @Param id path string true "Task ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {object} response.Envelope
// @Router /admin/tasks/{id}/grades/export [get]
func (h *GradeHandler) Export(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	result, err := h.exports.GradeSheet(c.Request.Context(), actor, c.Param("id"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// MyGrades godoc
// @Summary Current student's grades
// @Tags Grades
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /student/grades [get]
func (h *GradeHandler) MyGrades(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	grades, err := h.grades.StudentGrades(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grades, nil)
}

// Submit godoc
// @Summary Submit work for a task
// @Description Rejected after the due date or once the task has been graded
// @Tags Submissions
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param payload body models.SubmitRequest true "Submission"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /student/tasks/{id}/submit [post]
func (h *GradeHandler) Submit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.SubmitRequest
	if !bindJSON(c, &req, "invalid submission payload") {
		return
	}
	result, err := h.submissions.Submit(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusCreated
	if result.Resubmitted {
		status = http.StatusOK
	}
	response.JSON(c, status, result, nil)
}

// MySubmission godoc
// @Summary Current student's submission for a task
// @Tags Submissions
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /student/tasks/{id}/submission [get]
func (h *GradeHandler) MySubmission(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	sub, err := h.submissions.MySubmission(c.Request.Context(), actor.ID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sub, nil)
}
