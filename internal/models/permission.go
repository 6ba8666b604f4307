package models

import "time"

// AdminPermission is the sentinel capability that satisfies every requirement.
const AdminPermission = "admin"

// Permission is a named capability in the catalog.
type Permission struct {
	ID          string    `gorm:"primaryKey;size:50" json:"id"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// AccountPermission grants a catalog permission to an account.
type AccountPermission struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	AccountID    string    `gorm:"size:36;not null;uniqueIndex:idx_account_permission" json:"account_id"`
	PermissionID string    `gorm:"size:50;not null;uniqueIndex:idx_account_permission" json:"permission_id"`
	GrantedBy    *string   `gorm:"size:36" json:"granted_by,omitempty"`
	GrantedAt    time.Time `gorm:"not null" json:"granted_at"`
}
