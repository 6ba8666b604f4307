package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Authentication kinds an account can be created with. The kind never changes.
const (
	AuthKindLocal  = "local"
	AuthKindGoogle = "google"
	AuthKindGuest  = "guest"
)

// Account represents a user identity regardless of how it authenticates.
type Account struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	Username       string    `gorm:"size:64;uniqueIndex;not null" json:"username"`
	AuthKind       string    `gorm:"size:16;not null" json:"auth_kind"`
	CredentialHash *string   `gorm:"size:255" json:"-"`
	ExternalID     *string   `gorm:"size:128;uniqueIndex" json:"external_id,omitempty"`
	IsActive       bool      `gorm:"not null" json:"is_active"`
	IsAdmin        bool      `gorm:"not null" json:"is_admin"`
	DisplayName    string    `gorm:"size:100;not null" json:"display_name"`
	Email          *string   `gorm:"size:255;uniqueIndex" json:"email,omitempty"`
	AvatarRef      *string   `gorm:"type:text" json:"avatar_ref,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// BeforeCreate assigns an opaque identifier when none was provided.
func (a *Account) BeforeCreate(_ *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// HasCredential reports whether the account can authenticate with a password.
func (a Account) HasCredential() bool {
	return a.AuthKind == AuthKindLocal && a.CredentialHash != nil && *a.CredentialHash != ""
}
