package service

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/formdesk-api/internal/dto"
	"github.com/noah-isme/formdesk-api/internal/models"
	"github.com/noah-isme/formdesk-api/internal/repository"
)

// PermissionSet is the effective set of permission ids held by an account.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from ids.
func NewPermissionSet(ids ...string) PermissionSet {
	set := make(PermissionSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Has reports whether id is in the set.
func (s PermissionSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Satisfies is true when the set holds the admin sentinel or every required id.
func (s PermissionSet) Satisfies(required []string) bool {
	if s.Has(models.AdminPermission) {
		return true
	}
	for _, id := range required {
		if !s.Has(id) {
			return false
		}
	}
	return true
}

// List returns the ids sorted, never nil.
func (s PermissionSet) List() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// PermissionResolver computes effective permissions.
type PermissionResolver interface {
	EffectivePermissions(ctx context.Context, account models.Account) (PermissionSet, error)
}

// PermissionService resolves effective permissions and exposes the catalog.
type PermissionService interface {
	PermissionResolver
	Catalog(ctx context.Context) ([]dto.PermissionResponse, error)
}

type permissionService struct {
	repo         repository.PermissionRepository
	storeTimeout time.Duration
	logger       zerolog.Logger
}

// NewPermissionService constructs the permission resolver.
func NewPermissionService(repo repository.PermissionRepository, storeTimeout time.Duration, logger zerolog.Logger) PermissionService {
	return &permissionService{
		repo:         repo,
		storeTimeout: storeTimeout,
		logger:       logger.With().Str("component", "permission_service").Logger(),
	}
}

// EffectivePermissions re-reads the grants on every call so revocations apply to
// the next request.
func (s *permissionService) EffectivePermissions(ctx context.Context, account models.Account) (PermissionSet, error) {
	storeCtx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()

	ids, err := s.repo.ListForAccount(storeCtx, account.ID)
	if err != nil {
		return nil, storeFailure("list permissions", err)
	}

	set := NewPermissionSet(ids...)
	if account.IsAdmin {
		set[models.AdminPermission] = struct{}{}
	}
	return set, nil
}

func (s *permissionService) Catalog(ctx context.Context) ([]dto.PermissionResponse, error) {
	storeCtx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()

	permissions, err := s.repo.ListCatalog(storeCtx)
	if err != nil {
		return nil, storeFailure("list permission catalog", err)
	}

	responses := make([]dto.PermissionResponse, 0, len(permissions))
	for _, permission := range permissions {
		responses = append(responses, dto.NewPermissionResponse(permission))
	}
	return responses, nil
}
