package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/storage"
)

type uploadStorage interface {
	SaveStream(name string, r io.Reader, limit int64) (int64, error)
	Delete(name string) error
}

// Upload carries a received file stream and its client metadata.
type Upload struct {
	FileName string
	Size     int64
	Content  io.Reader
}

// UploadResult describes a stored upload.
type UploadResult struct {
	URL      string `json:"url"`
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
	Size     int64  `json:"size"`
}

// UploadService stores user uploads under UUID names and removes them on request.
type UploadService struct {
	storage    uploadStorage
	settings   settingsReader
	publicPath string
	logger     *zap.Logger
}

// NewUploadService constructs UploadService. publicPath is the URL prefix files are served under.
func NewUploadService(store uploadStorage, settings settingsReader, publicPath string, logger *zap.Logger) *UploadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publicPath == "" {
		publicPath = "/uploads"
	}
	return &UploadService{storage: store, settings: settings, publicPath: "/" + strings.Trim(publicPath, "/"), logger: logger}
}

// Save validates the upload against platform settings and writes it to storage.
func (s *UploadService) Save(ctx context.Context, upload Upload) (*UploadResult, error) {
	if upload.Content == nil || strings.TrimSpace(upload.FileName) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "No file uploaded")
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	if !fileTypeAllowed(settings, upload.FileName) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file type %s is not allowed", filepath.Ext(upload.FileName)))
	}
	limit := int64(settings.MaxUploadSizeMB) * 1024 * 1024
	if limit > 0 && upload.Size > limit {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d MB limit", settings.MaxUploadSizeMB))
	}

	ext := strings.ToLower(filepath.Ext(upload.FileName))
	name := uuid.NewString() + ext
	written, err := s.storage.SaveStream(name, upload.Content, limit)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d MB limit", settings.MaxUploadSizeMB))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store upload")
	}
	s.logger.Debug("upload stored", zap.String("name", name), zap.Int64("bytes", written))
	return &UploadResult{
		URL:      s.publicPath + "/" + name,
		FileName: upload.FileName,
		FileType: strings.TrimPrefix(ext, "."),
		Size:     written,
	}, nil
}

// DeleteByURL removes the file an upload URL points at. Only flat names under the
// public path are accepted.
func (s *UploadService) DeleteByURL(ctx context.Context, rawURL string) error {
	name, err := s.nameFromURL(rawURL)
	if err != nil {
		return err
	}
	if err := s.storage.Delete(name); err != nil {
		if errors.Is(err, storage.ErrInvalidPath) {
			return appErrors.Clone(appErrors.ErrValidation, "invalid file url")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete file")
	}
	s.logger.Info("upload deleted", zap.String("name", name))
	return nil
}

func (s *UploadService) nameFromURL(rawURL string) (string, error) {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "url is required")
	}
	idx := strings.Index(raw, s.publicPath+"/")
	if idx < 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "url does not reference an upload")
	}
	name := raw[idx+len(s.publicPath)+1:]
	if cut := strings.IndexAny(name, "?#"); cut >= 0 {
		name = name[:cut]
	}
	if name == "" || name != path.Base(name) || name == "." || name == ".." || strings.Contains(name, "\\") {
		return "", appErrors.Clone(appErrors.ErrValidation, "invalid file url")
	}
	return name, nil
}
