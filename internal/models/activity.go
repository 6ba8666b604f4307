package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog captures an auditable action. Rows are never updated.
type ActivityLog struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	AccountID *string           `gorm:"size:36;index" json:"account_id"`
	Action    string            `gorm:"size:100;not null;index" json:"action"`
	Details   datatypes.JSONMap `json:"details"`
	IPAddress *string           `gorm:"size:64" json:"ip_address"`
	UserAgent *string           `gorm:"type:text" json:"user_agent"`
	CreatedAt time.Time         `gorm:"index" json:"created_at"`
}

// Audit actions recorded by the services.
const (
	ActionLogin              = "login"
	ActionLoginFailed        = "login_failed"
	ActionLogout             = "logout"
	ActionRegister           = "register"
	ActionGuestLogin         = "guest_login"
	ActionProfileUpdate      = "profile_update"
	ActionFormInputSaved     = "form_input_saved"
	ActionUserCreated        = "user_created"
	ActionUserUpdated        = "user_updated"
	ActionUserDeleted        = "user_deleted"
	ActionPasswordUpdated    = "user_password_updated"
	ActionPermissionsUpdated = "user_permissions_updated"
	ActionProjectCreated     = "project_created"
	ActionProjectUpdated     = "project_updated"
	ActionProjectDeleted     = "project_deleted"
)
