package service

import (
	"context"

	"github.com/noah-isme/formdesk-api/internal/models"
)

// AccessGate decides whether an account may use a project. Every consumer goes
// through CanAccess.
type AccessGate struct {
	resolver PermissionResolver
}

// NewAccessGate constructs the gate.
func NewAccessGate(resolver PermissionResolver) *AccessGate {
	return &AccessGate{resolver: resolver}
}

// CanAccess evaluates, in order: disabled projects are closed to everyone,
// inactive accounts are denied, admins and public projects are open, otherwise
// the effective permissions must cover the project requirements.
func (g *AccessGate) CanAccess(ctx context.Context, account models.Account, project models.Project) (bool, error) {
	if !project.Enabled {
		return false, nil
	}
	if !account.IsActive {
		return false, nil
	}
	if account.IsAdmin || project.IsPublic {
		return true, nil
	}

	required := project.Requirements()
	if len(required) == 0 {
		return true, nil
	}

	permissions, err := g.resolver.EffectivePermissions(ctx, account)
	if err != nil {
		return false, err
	}
	return permissions.Satisfies(required), nil
}
