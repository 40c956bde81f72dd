package service

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/pkg/cache"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type settingsRepository interface {
	Get(ctx context.Context) (*models.Settings, error)
	Upsert(ctx context.Context, settings *models.Settings) error
}

// SettingsService reads and updates the platform settings singleton.
type SettingsService struct {
	repo      settingsRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	ttl       time.Duration
}

// NewSettingsService constructs SettingsService.
func NewSettingsService(repo settingsRepository, cacheSvc *CacheService, validate *validator.Validate, logger *zap.Logger) *SettingsService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{repo: repo, cache: cacheSvc, validator: validate, logger: logger, ttl: 5 * time.Minute}
}

var settingsCacheKey = cache.Key(cache.NamespaceSettings, models.SettingsKey)

// settingsCacheEntry carries the maintenance columns that models.Settings hides from JSON.
type settingsCacheEntry struct {
	Settings           models.Settings `json:"settings"`
	MaintenanceEnabled bool            `json:"maintenanceEnabled"`
	MaintenanceMessage string          `json:"maintenanceMessage"`
}

func (e settingsCacheEntry) restore() *models.Settings {
	settings := e.Settings
	settings.MaintenanceEnabled = e.MaintenanceEnabled
	settings.MaintenanceMessage = e.MaintenanceMessage
	return &settings
}

// Get returns the settings, writing the defaults on first read.
func (s *SettingsService) Get(ctx context.Context) (*models.Settings, error) {
	var cached settingsCacheEntry
	if hit, _ := s.cache.Get(ctx, settingsCacheKey, &cached); hit {
		return cached.restore(), nil
	}

	settings, err := s.repo.Get(ctx)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load settings")
		}
		defaults := models.DefaultSettings()
		if err := s.repo.Upsert(ctx, &defaults); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create default settings")
		}
		settings = &defaults
	}

	entry := settingsCacheEntry{Settings: *settings, MaintenanceEnabled: settings.MaintenanceEnabled, MaintenanceMessage: settings.MaintenanceMessage}
	if err := s.cache.Set(ctx, settingsCacheKey, entry, s.ttl); err != nil {
		s.logger.Debug("settings cache write failed", zap.Error(err))
	}
	return settings, nil
}

// Update applies an admin change to the settings.
func (s *SettingsService) Update(ctx context.Context, req models.UpdateSettingsRequest) (*models.Settings, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid settings payload")
	}
	if strings.TrimSpace(req.PlatformName) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "platform name is required")
	}

	current, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	updated := *current
	updated.PlatformName = strings.TrimSpace(req.PlatformName)
	updated.PlatformLogo = req.PlatformLogo
	updated.SupportEmail = req.SupportEmail
	updated.AllowStudentRegistration = req.AllowStudentRegistration
	updated.AllowLateSubmissions = req.AllowLateSubmissions
	updated.MaxUploadSizeMB = req.MaxUploadSizeMB
	if req.AllowedFileTypes != nil {
		updated.AllowedFileTypes = normaliseExtensions(req.AllowedFileTypes)
	}
	if req.MaintenanceMode != nil {
		updated.MaintenanceEnabled = req.MaintenanceMode.Enabled
		if msg := strings.TrimSpace(req.MaintenanceMode.Message); msg != "" {
			updated.MaintenanceMessage = msg
		}
	}

	if err := s.repo.Upsert(ctx, &updated); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update settings")
	}
	s.cache.InvalidateNamespaces(ctx, cache.NamespaceSettings)
	s.logger.Info("settings updated", zap.Bool("maintenance", updated.MaintenanceEnabled), zap.Bool("student_registration", updated.AllowStudentRegistration))
	return &updated, nil
}

// Maintenance reports whether maintenance mode is on and the message to show.
func (s *SettingsService) Maintenance(ctx context.Context) (bool, string) {
	settings, err := s.Get(ctx)
	if err != nil {
		s.logger.Warn("maintenance check failed", zap.Error(err))
		return false, ""
	}
	return settings.MaintenanceEnabled, settings.MaintenanceMessage
}

// normaliseExtensions lower-cases entries and prefixes a dot, dropping blanks and duplicates.
func normaliseExtensions(types []string) []string {
	out := make([]string, 0, len(types))
	seen := map[string]struct{}{}
	for _, t := range types {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if !strings.HasPrefix(t, ".") {
			t = "." + t
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// fileTypeAllowed reports whether the file extension is on the settings allow list.
// An empty list allows everything.
func fileTypeAllowed(settings *models.Settings, name string) bool {
	if settings == nil || len(settings.AllowedFileTypes) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	for _, allowed := range normaliseExtensions(settings.AllowedFileTypes) {
		if allowed == ext {
			return true
		}
	}
	return false
}
