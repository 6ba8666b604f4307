package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/noah-isme/formdesk-api/internal/models"
)

func TestPermissionSetSatisfies(t *testing.T) {
	require.True(t, NewPermissionSet().Satisfies(nil))
	require.True(t, NewPermissionSet("bmi_access", "tdee_access").Satisfies([]string{"bmi_access"}))
	require.False(t, NewPermissionSet("bmi_access").Satisfies([]string{"bmi_access", "tdee_access"}))
	require.True(t, NewPermissionSet(models.AdminPermission).Satisfies([]string{"anything"}))
	require.Equal(t, []string{"a", "b"}, NewPermissionSet("b", "a").List())
	require.NotNil(t, NewPermissionSet().List())
}

func TestEffectivePermissionsIncludeAdminSentinel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.createLocal(t, "root", "secret1", func(a *models.Account) { a.IsAdmin = true })
	user := f.createLocal(t, "alice", "secret1", nil)
	require.NoError(t, f.permissions.SetForAccount(ctx, user.ID, []string{"bmi_access"}, nil))

	adminSet, err := f.resolver.EffectivePermissions(ctx, admin)
	require.NoError(t, err)
	require.True(t, adminSet.Has(models.AdminPermission))

	userSet, err := f.resolver.EffectivePermissions(ctx, user)
	require.NoError(t, err)
	require.Equal(t, []string{"bmi_access"}, userSet.List())

	require.NoError(t, f.permissions.SetForAccount(ctx, user.ID, nil, nil))
	userSet, err = f.resolver.EffectivePermissions(ctx, user)
	require.NoError(t, err)
	require.Empty(t, userSet.List())
}

func TestAccessGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.createLocal(t, "root", "secret1", func(a *models.Account) { a.IsAdmin = true })
	granted := f.createLocal(t, "granted", "secret1", nil)
	plain := f.createLocal(t, "plain", "secret1", nil)
	inactive := f.createLocal(t, "inactive", "secret1", func(a *models.Account) { a.IsActive = false })
	require.NoError(t, f.permissions.SetForAccount(ctx, granted.ID, []string{"bmi_access"}, nil))

	restricted := models.Project{ID: "bmi", Enabled: true, RequiredPermissions: datatypes.JSONSlice[string]{"bmi_access"}}
	disabled := models.Project{ID: "off", Enabled: false, IsPublic: true}
	public := models.Project{ID: "open", Enabled: true, IsPublic: true, RequiredPermissions: datatypes.JSONSlice[string]{"tdee_access"}}
	unrestricted := models.Project{ID: "free", Enabled: true}

	cases := []struct {
		name    string
		account models.Account
		project models.Project
		allowed bool
	}{
		{"disabled project denies admin", admin, disabled, false},
		{"admin bypasses requirements", admin, restricted, true},
		{"public project needs no grants", plain, public, true},
		{"grant satisfies requirement", granted, restricted, true},
		{"missing grant denies", plain, restricted, false},
		{"no requirements allows", plain, unrestricted, true},
		{"inactive account denied", inactive, public, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			allowed, err := f.gate.CanAccess(ctx, tc.account, tc.project)
			require.NoError(t, err)
			require.Equal(t, tc.allowed, allowed)
		})
	}
}
