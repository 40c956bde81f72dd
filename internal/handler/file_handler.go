package handler

import (
	"context"
	"fmt"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-api/internal/service"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/response"
)

type uploadService interface {
	Save(ctx context.Context, upload service.Upload) (*service.UploadResult, error)
	DeleteByURL(ctx context.Context, rawURL string) error
}

type exportOpener interface {
	Open(token string) (*service.ExportFile, error)
}

// FileHandler serves uploads, photo removal and signed export downloads.
type FileHandler struct {
	uploads uploadService
	exports exportOpener
}

// NewFileHandler constructs the handler.
func NewFileHandler(uploads uploadService, exports exportOpener) *FileHandler {
	return &FileHandler{uploads: uploads, exports: exports}
}

// Upload godoc
// @Summary Upload a file
// @Description Checks the extension and size against platform settings
// @Tags Files
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /upload [post]
func (h *FileHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer file.Close()

	result, err := h.uploads.Save(c.Request.Context(), service.Upload{FileName: header.Filename, Size: header.Size, Content: file})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

type deletePhotoRequest struct {
	URL string `json:"url" binding:"required"`
}

// DeletePhoto godoc
// @Summary Delete an uploaded file
// @Tags Files
// @Accept json
// @Produce json
// @Param payload body deletePhotoRequest true "Upload URL"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /delete-photo [post]
func (h *FileHandler) DeletePhoto(c *gin.Context) {
	var req deletePhotoRequest
	if !bindJSON(c, &req, "url is required") {
		return
	}
	if err := h.uploads.DeleteByURL(c.Request.Context(), req.URL); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "file deleted", nil)
}

// DownloadExport godoc
// @Summary Download an exported grade sheet
// @Tags Files
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /exports/{token} [get]
func (h *FileHandler) DownloadExport(c *gin.Context) {
	exported, err := h.exports.Open(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer exported.File.Close()

	info, err := exported.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export"))
		return
	}
	headers := map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", path.Base(exported.Name)),
		"Cache-Control":       "no-store",
	}
	c.DataFromReader(http.StatusOK, info.Size(), exported.ContentType, exported.File, headers)
}
