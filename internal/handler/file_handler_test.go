package handler

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/service"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

func TestFileHandlerUpload(t *testing.T) {
	uploads := &stubUploads{}
	handler := NewFileHandler(uploads, &stubExports{})

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "avatar.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("png-bytes"))
	require.NoError(t, writer.Close())

	c, rec := testContext(http.MethodPost, "/upload", &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})
	c.Request = httptest.NewRequest(http.MethodPost, "/upload", body)
	c.Request.Header.Set("Content-Type", writer.FormDataContentType())

	handler.Upload(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "avatar.png", uploads.saved.FileName)
	assert.EqualValues(t, len("png-bytes"), uploads.saved.Size)
	assert.Equal(t, "png-bytes", string(uploads.body))
	assert.Equal(t, "/uploads/abc.png", decodeEnvelope(t, rec).Data["url"])
}

func TestFileHandlerUploadRequiresFile(t *testing.T) {
	handler := NewFileHandler(&stubUploads{}, &stubExports{})
	c, rec := testContext(http.MethodPost, "/upload", nil)

	handler.Upload(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFileHandlerDeletePhoto(t *testing.T) {
	uploads := &stubUploads{}
	handler := NewFileHandler(uploads, &stubExports{})

	c, rec := testContext(http.MethodPost, "/delete-photo", nil)
	c.Request = httptest.NewRequest(http.MethodPost, "/delete-photo", strings.NewReader(`{"url":"/uploads/abc.png"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	handler.DeletePhoto(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/uploads/abc.png", uploads.deleted)

	c, rec = testContext(http.MethodPost, "/delete-photo", nil)
	c.Request = httptest.NewRequest(http.MethodPost, "/delete-photo", strings.NewReader(`{}`))
	c.Request.Header.Set("Content-Type", "application/json")
	handler.DeletePhoto(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFileHandlerDownloadExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grades.csv")
	require.NoError(t, os.WriteFile(path, []byte("Student,Grade\nAda,9\n"), 0o600))
	file, err := os.Open(path)
	require.NoError(t, err)

	exports := &stubExports{file: &service.ExportFile{File: file, Name: "exports/grades.csv", ContentType: "text/csv"}}
	handler := NewFileHandler(&stubUploads{}, exports)
	c, rec := testContext(http.MethodGet, "/exports/tok", nil)

	handler.DownloadExport(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="grades.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "Student,Grade\nAda,9\n", rec.Body.String())
}

func TestFileHandlerDownloadExportRejectsBadToken(t *testing.T) {
	exports := &stubExports{err: appErrors.Clone(appErrors.ErrForbidden, "download link expired")}
	handler := NewFileHandler(&stubUploads{}, exports)
	c, rec := testContext(http.MethodGet, "/exports/old", nil)

	handler.DownloadExport(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "download link expired")
}
