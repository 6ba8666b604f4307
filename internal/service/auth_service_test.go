package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/formdesk-api/internal/dto"
	"github.com/noah-isme/formdesk-api/internal/models"
	"github.com/noah-isme/formdesk-api/pkg/googleid"
)

func newAuthService(f *fixture, identity IdentityVerifier) AuthService {
	return NewAuthService(f.credentials(identity), f.accounts, f.resolver, f.codec, f.recorder, testValidator(), time.Second, testLogger())
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := f.createLocal(t, "alice", "secret1", nil)
	require.NoError(t, f.permissions.SetForAccount(ctx, account.ID, []string{"bmi_access"}, nil))
	svc := newAuthService(f, nil)

	response, err := svc.Login(ctx, dto.LoginRequest{Username: "alice", Password: "secret1"}, RequestMeta{IPAddress: "10.0.0.1"})
	require.NoError(t, err)
	require.Equal(t, []string{"bmi_access"}, response.Permissions)
	require.Equal(t, account.ID, response.User.ID)
	require.NotNil(t, response.ExpiresAt)

	claims, err := f.codec.Verify(response.Token)
	require.NoError(t, err)
	require.Equal(t, account.ID, claims.AccountID())
	require.Equal(t, "alice", claims.Username)

	last := f.recorder.last()
	require.Equal(t, models.ActionLogin, last.Action)
	require.Equal(t, "10.0.0.1", last.Meta.IPAddress)
}

func TestLoginFailuresAreClassifiedAndAudited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := f.createLocal(t, "alice", "secret1", nil)
	f.createLocal(t, "dormant", "secret1", func(a *models.Account) { a.IsActive = false })
	svc := newAuthService(f, nil)

	_, err := svc.Login(ctx, dto.LoginRequest{Username: "alice", Password: "nope"}, RequestMeta{})
	require.Equal(t, KindAuthenticationFailure, KindOf(err))
	failed := f.recorder.last()
	require.Equal(t, models.ActionLoginFailed, failed.Action)
	require.Equal(t, account.ID, failed.AccountID)
	require.Equal(t, "invalid_password", failed.Details["reason"])

	_, err = svc.Login(ctx, dto.LoginRequest{Username: "ghost", Password: "nope"}, RequestMeta{})
	require.Equal(t, KindAuthenticationFailure, KindOf(err))
	require.Empty(t, f.recorder.last().AccountID)

	_, err = svc.Login(ctx, dto.LoginRequest{Username: "dormant", Password: "secret1"}, RequestMeta{})
	require.Equal(t, KindAccountDisabled, KindOf(err))

	_, err = svc.Login(ctx, dto.LoginRequest{Username: "", Password: ""}, RequestMeta{})
	require.Equal(t, KindInvalidInput, KindOf(err))
}

func TestGuestLoginFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := newAuthService(f, nil)

	_, err := svc.GuestLogin(ctx, dto.GuestLoginRequest{Name: "  "}, RequestMeta{})
	require.Equal(t, KindInvalidInput, KindOf(err))

	response, err := svc.GuestLogin(ctx, dto.GuestLoginRequest{Name: "Alex"}, RequestMeta{})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(response.User.Username, GuestUsernamePrefix))
	require.Empty(t, response.Permissions)
	require.Equal(t, models.AuthKindGuest, response.User.AuthKind)

	_, err = f.codec.Verify(response.Token)
	require.NoError(t, err)
	require.Equal(t, models.ActionGuestLogin, f.recorder.last().Action)
}

func TestRegisterReturnsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := newAuthService(f, nil)

	response, err := svc.Register(ctx, dto.RegisterRequest{Username: "newbie", Name: "New", Password: "secret1"}, RequestMeta{})
	require.NoError(t, err)
	require.Empty(t, response.Permissions)
	require.Equal(t, models.ActionRegister, f.recorder.last().Action)

	_, err = svc.Register(ctx, dto.RegisterRequest{Username: "newbie", Name: "New", Password: "secret1"}, RequestMeta{})
	require.Equal(t, KindConflict, KindOf(err))
}

func TestGoogleLoginAuditsRegistration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	identity := googleid.Identity{Subject: "sub-9", Email: "gail@example.com", Name: "Gail"}
	svc := newAuthService(f, stubIdentity{identity: identity})

	response, err := svc.GoogleLogin(ctx, dto.GoogleLoginRequest{IDToken: "token"}, RequestMeta{})
	require.NoError(t, err)
	require.Equal(t, models.AuthKindGoogle, response.User.AuthKind)
	require.Equal(t, []string{models.ActionRegister, models.ActionLogin}, f.recorder.actions())

	rejecting := newAuthService(f, stubIdentity{err: googleid.ErrInvalidToken})
	_, err = rejecting.GoogleLogin(ctx, dto.GoogleLoginRequest{IDToken: "token"}, RequestMeta{})
	require.Equal(t, KindAuthenticationFailure, KindOf(err))
}

func TestVerifyReloadsAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := f.createLocal(t, "alice", "secret1", func(a *models.Account) { a.IsAdmin = true })
	svc := newAuthService(f, nil)

	response, err := svc.Verify(ctx, actorFor(account), "token-value")
	require.NoError(t, err)
	require.Equal(t, "token-value", response.Token)
	require.Contains(t, response.Permissions, models.AdminPermission)

	require.NoError(t, f.db.Model(&models.Account{}).Where("id = ?", account.ID).Update("is_active", false).Error)
	_, err = svc.Verify(ctx, actorFor(account), "token-value")
	require.Equal(t, KindAccountDisabled, KindOf(err))

	_, err = svc.Verify(ctx, Actor{AccountID: "missing"}, "token-value")
	require.Equal(t, KindNotFound, KindOf(err))
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := f.createLocal(t, "alice", "secret1", nil)
	f.createLocal(t, "bob", "secret1", func(a *models.Account) { a.Email = strPtr("bob@example.com") })
	svc := newAuthService(f, nil)

	unchanged, err := svc.UpdateProfile(ctx, actorFor(account), dto.ProfileUpdateRequest{}, RequestMeta{})
	require.NoError(t, err)
	require.Equal(t, "alice", unchanged.Name)
	require.Empty(t, f.recorder.actions())

	updated, err := svc.UpdateProfile(ctx, actorFor(account), dto.ProfileUpdateRequest{Name: strPtr("Alice <i>A</i>"), Email: strPtr("ALICE@example.com")}, RequestMeta{})
	require.NoError(t, err)
	require.Equal(t, "Alice A", updated.Name)
	require.Equal(t, "alice@example.com", *updated.Email)
	require.Equal(t, models.ActionProfileUpdate, f.recorder.last().Action)

	_, err = svc.UpdateProfile(ctx, actorFor(account), dto.ProfileUpdateRequest{Email: strPtr("bob@example.com")}, RequestMeta{})
	require.Equal(t, KindConflict, KindOf(err))
}
