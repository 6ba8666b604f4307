package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/formdesk-api/internal/auth"
	"github.com/noah-isme/formdesk-api/internal/dto"
	"github.com/noah-isme/formdesk-api/internal/models"
	"github.com/noah-isme/formdesk-api/internal/repository"
)

const (
	defaultAccountPageSize = 10
	maxAccountPageSize     = 100
)

// AccountService implements the admin account operations and their business rules.
type AccountService interface {
	List(ctx context.Context, req dto.AccountListRequest) (dto.AccountListResponse, error)
	Get(ctx context.Context, id string) (dto.AccountResponse, error)
	Create(ctx context.Context, actor Actor, req dto.AccountCreateRequest, meta RequestMeta) (dto.AccountResponse, error)
	Update(ctx context.Context, actor Actor, id string, req dto.AccountUpdateRequest, meta RequestMeta) (dto.AccountResponse, error)
	Delete(ctx context.Context, actor Actor, id string, meta RequestMeta) error
	UpdatePassword(ctx context.Context, actor Actor, id string, req dto.PasswordUpdateRequest, meta RequestMeta) error
	Permissions(ctx context.Context, id string) ([]string, error)
	SetPermissions(ctx context.Context, actor Actor, id string, req dto.PermissionsUpdateRequest, meta RequestMeta) ([]string, error)
}

type accountService struct {
	accounts     repository.AccountRepository
	permissions  repository.PermissionRepository
	recorder     ActivityRecorder
	validator    *validator.Validate
	sanitizer    *bluemonday.Policy
	storeTimeout time.Duration
	logger       zerolog.Logger
}

// NewAccountService constructs the admin account service.
func NewAccountService(accounts repository.AccountRepository, permissions repository.PermissionRepository, recorder ActivityRecorder, validate *validator.Validate, storeTimeout time.Duration, logger zerolog.Logger) AccountService {
	return &accountService{
		accounts:     accounts,
		permissions:  permissions,
		recorder:     recorder,
		validator:    validate,
		sanitizer:    bluemonday.StrictPolicy(),
		storeTimeout: storeTimeout,
		logger:       logger.With().Str("component", "account_service").Logger(),
	}
}

func (s *accountService) List(ctx context.Context, req dto.AccountListRequest) (dto.AccountListResponse, error) {
	page := req.Page
	if page <= 0 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultAccountPageSize
	} else if pageSize > maxAccountPageSize {
		pageSize = maxAccountPageSize
	}

	storeCtx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()

	accounts, total, err := s.accounts.List(storeCtx, page, pageSize)
	if err != nil {
		return dto.AccountListResponse{}, storeFailure("list accounts", err)
	}

	items := make([]dto.AccountResponse, 0, len(accounts))
	for _, account := range accounts {
		items = append(items, dto.NewAccountResponse(account))
	}

	return dto.AccountListResponse{Items: items, Pagination: dto.NewPaginationMeta(page, pageSize, total)}, nil
}

func (s *accountService) Get(ctx context.Context, id string) (dto.AccountResponse, error) {
	account, err := s.load(ctx, id)
	if err != nil {
		return dto.AccountResponse{}, err
	}
	return dto.NewAccountResponse(account), nil
}

func (s *accountService) Create(ctx context.Context, actor Actor, req dto.AccountCreateRequest, meta RequestMeta) (dto.AccountResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AccountResponse{}, validationFailure(err)
	}

	name := sanitizeText(s.sanitizer, req.Name)
	if name == "" {
		return dto.AccountResponse{}, invalidInput("name is required")
	}

	template := models.Account{
		Username:    strings.TrimSpace(req.Username),
		DisplayName: name,
		Email:       normalizeEmail(req.Email),
		IsActive:    true,
		IsAdmin:     req.IsAdmin,
	}
	if req.Avatar != nil {
		if avatar := strings.TrimSpace(*req.Avatar); avatar != "" {
			template.AvatarRef = &avatar
		}
	}

	account, err := createLocalAccount(ctx, s.accounts, s.storeTimeout, template, req.Password)
	if err != nil {
		return dto.AccountResponse{}, err
	}

	s.recorder.Record(ctx, ActivityEntry{
		AccountID: actor.AccountID,
		Action:    models.ActionUserCreated,
		Details: map[string]interface{}{
			"created_user_id":  account.ID,
			"created_username": account.Username,
			"is_admin":         account.IsAdmin,
		},
		Meta: meta,
	})

	return dto.NewAccountResponse(account), nil
}

func (s *accountService) Update(ctx context.Context, actor Actor, id string, req dto.AccountUpdateRequest, meta RequestMeta) (dto.AccountResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AccountResponse{}, validationFailure(err)
	}

	account, err := s.load(ctx, id)
	if err != nil {
		return dto.AccountResponse{}, err
	}

	if account.ID == actor.AccountID && req.IsActive != nil && !*req.IsActive {
		return dto.AccountResponse{}, forbidden("Cannot deactivate your own account")
	}

	changes, err := profileChanges(ctx, s.accounts, s.sanitizer, s.storeTimeout, account.ID, req.Name, req.Email, req.Avatar)
	if err != nil {
		return dto.AccountResponse{}, err
	}
	changes.IsActive = req.IsActive
	changes.IsAdmin = req.IsAdmin
	if changes.IsEmpty() {
		return dto.NewAccountResponse(account), nil
	}

	storeCtx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()

	updated, err := s.accounts.Update(storeCtx, account.ID, changes)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return dto.AccountResponse{}, notFound("User not found")
		case errors.Is(err, gorm.ErrDuplicatedKey):
			return dto.AccountResponse{}, conflict("Email already exists")
		}
		return dto.AccountResponse{}, storeFailure("update account", err)
	}

	s.recorder.Record(ctx, ActivityEntry{
		AccountID: actor.AccountID,
		Action:    models.ActionUserUpdated,
		Details: map[string]interface{}{
			"target_user_id": account.ID,
			"updated_fields": changes.Fields(),
		},
		Meta: meta,
	})

	return dto.NewAccountResponse(updated), nil
}

// Delete removes another non-admin account. Admins cannot delete themselves or other admins.
func (s *accountService) Delete(ctx context.Context, actor Actor, id string, meta RequestMeta) error {
	account, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	if account.ID == actor.AccountID {
		return forbidden("Cannot delete your own account")
	}
	if account.IsAdmin {
		return forbidden("Cannot delete admin users")
	}

	storeCtx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()

	deleted, err := s.accounts.Delete(storeCtx, account.ID)
	if err != nil {
		return storeFailure("delete account", err)
	}
	if !deleted {
		return notFound("User not found")
	}

	s.recorder.Record(ctx, ActivityEntry{
		AccountID: actor.AccountID,
		Action:    models.ActionUserDeleted,
		Details: map[string]interface{}{
			"deleted_user_id":  account.ID,
			"deleted_username": account.Username,
		},
		Meta: meta,
	})
	s.logger.Info().Str("account_id", account.ID).Str("actor_id", actor.AccountID).Msg("account deleted")

	return nil
}

func (s *accountService) UpdatePassword(ctx context.Context, actor Actor, id string, req dto.PasswordUpdateRequest, meta RequestMeta) error {
	if err := s.validator.Struct(req); err != nil {
		return validationFailure(err)
	}

	account, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if account.AuthKind != models.AuthKindLocal {
		return invalidInput("Passwords can only be set for local accounts")
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return newError(KindInternal, "failed to secure password", err)
	}

	storeCtx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()

	if err := s.accounts.UpdateCredential(storeCtx, account.ID, hash); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("User not found")
		}
		return storeFailure("update credential", err)
	}

	s.recorder.Record(ctx, ActivityEntry{
		AccountID: actor.AccountID,
		Action:    models.ActionPasswordUpdated,
		Details:   map[string]interface{}{"target_user_id": account.ID},
		Meta:      meta,
	})

	return nil
}

func (s *accountService) Permissions(ctx context.Context, id string) ([]string, error) {
	account, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	storeCtx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()

	ids, err := s.permissions.ListForAccount(storeCtx, account.ID)
	if err != nil {
		return nil, storeFailure("list permissions", err)
	}
	return ids, nil
}

// SetPermissions replaces the explicit grants of an account. Concurrent calls
// resolve last-writer-wins.
func (s *accountService) SetPermissions(ctx context.Context, actor Actor, id string, req dto.PermissionsUpdateRequest, meta RequestMeta) ([]string, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationFailure(err)
	}

	account, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	ids := uniqueSorted(req.Permissions)

	storeCtx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()

	unknown, err := s.permissions.UnknownIDs(storeCtx, ids)
	if err != nil {
		return nil, storeFailure("check permissions", err)
	}
	if len(unknown) > 0 {
		return nil, invalidInput("Unknown permissions: " + strings.Join(unknown, ", "))
	}

	var grantedBy *string
	if actor.AccountID != "" {
		grantor := actor.AccountID
		grantedBy = &grantor
	}

	if err := s.permissions.SetForAccount(storeCtx, account.ID, ids, grantedBy); err != nil {
		return nil, storeFailure("set permissions", err)
	}

	s.recorder.Record(ctx, ActivityEntry{
		AccountID: actor.AccountID,
		Action:    models.ActionPermissionsUpdated,
		Details: map[string]interface{}{
			"target_user_id": account.ID,
			"permissions":    ids,
		},
		Meta: meta,
	})

	return ids, nil
}

func (s *accountService) load(ctx context.Context, id string) (models.Account, error) {
	storeCtx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()

	account, err := s.accounts.GetByID(storeCtx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Account{}, notFound("User not found")
		}
		return models.Account{}, storeFailure("load account", err)
	}
	return account, nil
}

func uniqueSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	sort.Strings(result)
	return result
}
