package models

import (
	"time"

	"github.com/lib/pq"
)

// SettingsKey is the singleton row key.
const SettingsKey = "global"

// Settings holds platform-wide configuration editable by admins.
type Settings struct {
	Key                      string         `db:"key" json:"key"`
	PlatformName             string         `db:"platform_name" json:"platformName" validate:"required"`
	PlatformLogo             *string        `db:"platform_logo" json:"platformLogo"`
	SupportEmail             *string        `db:"support_email" json:"supportEmail" validate:"omitempty,email"`
	AllowStudentRegistration bool           `db:"allow_student_registration" json:"allowStudentRegistration"`
	AllowLateSubmissions     bool           `db:"allow_late_submissions" json:"allowLateSubmissions"`
	MaxUploadSizeMB          int            `db:"max_upload_size_mb" json:"maxUploadSizeMB" validate:"gt=0,lte=1024"`
	AllowedFileTypes         pq.StringArray `db:"allowed_file_types" json:"allowedFileTypes"`
	MaintenanceEnabled       bool           `db:"maintenance_enabled" json:"-"`
	MaintenanceMessage       string         `db:"maintenance_message" json:"-"`
	UpdatedAt                time.Time      `db:"updated_at" json:"updatedAt"`
}

// MaintenanceMode mirrors the nested maintenance block exposed to clients.
type MaintenanceMode struct {
	Enabled bool   `json:"enabled"`
	Message string `json:"message"`
}

// SettingsView is the client representation of Settings.
type SettingsView struct {
	Settings
	MaintenanceMode MaintenanceMode `json:"maintenanceMode"`
}

// View returns the client representation.
func (s Settings) View() SettingsView {
	return SettingsView{Settings: s, MaintenanceMode: MaintenanceMode{Enabled: s.MaintenanceEnabled, Message: s.MaintenanceMessage}}
}

// DefaultSettings returns the values used when no settings row exists yet.
func DefaultSettings() Settings {
	return Settings{
		Key:                      SettingsKey,
		PlatformName:             "SkillUp Platform",
		AllowStudentRegistration: false,
		AllowLateSubmissions:     true,
		MaxUploadSizeMB:          10,
		AllowedFileTypes:         pq.StringArray{".pdf", ".docx", ".pptx", ".zip", ".jpg", ".png"},
		MaintenanceMessage:       "The platform is currently down for maintenance. We will be back shortly!",
	}
}

// UpdateSettingsRequest is the admin payload for settings changes.
type UpdateSettingsRequest struct {
	PlatformName             string           `json:"platformName" validate:"required"`
	PlatformLogo             *string          `json:"platformLogo"`
	SupportEmail             *string          `json:"supportEmail" validate:"omitempty,email"`
	AllowStudentRegistration bool             `json:"allowStudentRegistration"`
	AllowLateSubmissions     bool             `json:"allowLateSubmissions"`
	MaxUploadSizeMB          int              `json:"maxUploadSizeMB" validate:"gt=0,lte=1024"`
	AllowedFileTypes         []string         `json:"allowedFileTypes"`
	MaintenanceMode          *MaintenanceMode `json:"maintenanceMode"`
}
