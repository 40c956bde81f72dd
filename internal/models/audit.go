package models

import (
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Audit actions.
const (
	AuditActionLogin          = "LOGIN"
	AuditActionLogout         = "LOGOUT"
	AuditActionRegister       = "REGISTER"
	AuditActionPasswordChange = "PASSWORD_CHANGE"
	AuditActionCreate         = "CREATE"
	AuditActionUpdate         = "UPDATE"
	AuditActionDelete         = "DELETE"
	AuditActionGrade          = "GRADE"
	AuditActionSubmit         = "SUBMIT"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string             `db:"id" json:"id"`
	UserID     *string            `db:"user_id" json:"userId,omitempty"`
	Action     string             `db:"action" json:"action"`
	Resource   string             `db:"resource" json:"resource"`
	ResourceID *string            `db:"resource_id" json:"resourceId,omitempty"`
	OldValues  types.NullJSONText `db:"old_values" json:"oldValues,omitempty"`
	NewValues  types.NullJSONText `db:"new_values" json:"newValues,omitempty"`
	IPAddress  string             `db:"ip_address" json:"ipAddress"`
	UserAgent  string             `db:"user_agent" json:"userAgent"`
	CreatedAt  time.Time          `db:"created_at" json:"createdAt"`
}

// AuditJSON marshals v for an audit column. Unmarshalable values are stored as NULL.
func AuditJSON(v interface{}) types.NullJSONText {
	if v == nil {
		return types.NullJSONText{}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return types.NullJSONText{}
	}
	return types.NullJSONText{JSONText: types.JSONText(raw), Valid: true}
}
