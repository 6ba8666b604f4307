package dto

import (
	"time"

	"github.com/noah-isme/formdesk-api/internal/models"
)

// AccountResponse is the public view of an account. Credential material is never exposed.
type AccountResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	AuthKind  string    `json:"auth_kind"`
	Name      string    `json:"name"`
	Email     *string   `json:"email,omitempty"`
	Avatar    *string   `json:"avatar,omitempty"`
	IsActive  bool      `json:"is_active"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewAccountResponse converts an account model into its DTO.
func NewAccountResponse(account models.Account) AccountResponse {
	return AccountResponse{
		ID:        account.ID,
		Username:  account.Username,
		AuthKind:  account.AuthKind,
		Name:      account.DisplayName,
		Email:     account.Email,
		Avatar:    account.AvatarRef,
		IsActive:  account.IsActive,
		IsAdmin:   account.IsAdmin,
		CreatedAt: account.CreatedAt,
		UpdatedAt: account.UpdatedAt,
	}
}

// AccountListRequest pages the admin account listing.
type AccountListRequest struct {
	Page     int
	PageSize int
}

// AccountListResponse wraps a page of accounts.
type AccountListResponse struct {
	Items      []AccountResponse `json:"items"`
	Pagination PaginationMeta    `json:"pagination"`
}

// AccountCreateRequest is the admin payload for creating a local account.
type AccountCreateRequest struct {
	Username string  `json:"username" validate:"required,min=3,max=64"`
	Name     string  `json:"name" validate:"required,max=100"`
	Email    *string `json:"email" validate:"omitempty,email,max=255"`
	Password string  `json:"password" validate:"required,min=6,max=72"`
	Avatar   *string `json:"avatar" validate:"omitempty,max=2048"`
	IsAdmin  bool    `json:"is_admin"`
}

// AccountUpdateRequest captures a partial admin update.
type AccountUpdateRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=100"`
	Email    *string `json:"email" validate:"omitempty,email,max=255"`
	Avatar   *string `json:"avatar" validate:"omitempty,max=2048"`
	IsActive *bool   `json:"is_active"`
	IsAdmin  *bool   `json:"is_admin"`
}

// PasswordUpdateRequest rotates the credential of a local account.
type PasswordUpdateRequest struct {
	NewPassword string `json:"new_password" validate:"required,min=6,max=72"`
}

// PermissionsUpdateRequest replaces the grants of an account.
type PermissionsUpdateRequest struct {
	Permissions []string `json:"permissions" validate:"required,dive,required,max=50"`
}

// PermissionResponse describes a catalog entry.
type PermissionResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// NewPermissionResponse converts a permission model into its DTO.
func NewPermissionResponse(permission models.Permission) PermissionResponse {
	return PermissionResponse{ID: permission.ID, Name: permission.Name, Description: permission.Description}
}
