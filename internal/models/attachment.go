package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Attachment references an uploaded file.
type Attachment struct {
	FileName   string     `json:"fileName" validate:"required"`
	URL        string     `json:"url" validate:"required"`
	FileType   string     `json:"fileType,omitempty"`
	UploadedAt *time.Time `json:"uploadedAt,omitempty"`
}

// Attachments is stored as a JSONB array.
type Attachments []Attachment

// Value implements driver.Valuer.
func (a Attachments) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner.
func (a *Attachments) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*a = Attachments{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported attachments type %T", src)
	}
	if len(raw) == 0 {
		*a = Attachments{}
		return nil
	}
	return json.Unmarshal(raw, a)
}
