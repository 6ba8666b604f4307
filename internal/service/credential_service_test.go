package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/formdesk-api/internal/dto"
	"github.com/noah-isme/formdesk-api/internal/models"
	"github.com/noah-isme/formdesk-api/pkg/googleid"
)

func TestVerifyLocal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.credentials(nil)

	active := f.createLocal(t, "alice", "correct-horse", nil)
	f.createLocal(t, "dormant", "correct-horse", func(a *models.Account) { a.IsActive = false })
	guest, err := svc.IssueGuest(ctx, "Visitor")
	require.NoError(t, err)

	account, err := svc.VerifyLocal(ctx, "alice", "correct-horse")
	require.NoError(t, err)
	require.Equal(t, active.ID, account.ID)

	account, err = svc.VerifyLocal(ctx, "alice", "wrong")
	require.ErrorIs(t, err, ErrInvalidSecret)
	require.Equal(t, active.ID, account.ID)

	_, err = svc.VerifyLocal(ctx, "nobody", "whatever")
	require.ErrorIs(t, err, ErrCredentialNotFound)

	_, err = svc.VerifyLocal(ctx, "dormant", "correct-horse")
	require.ErrorIs(t, err, ErrCredentialDisabled)

	_, err = svc.VerifyLocal(ctx, guest.Username, "anything")
	require.ErrorIs(t, err, ErrWrongCredentialKind)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.credentials(nil)

	account, err := svc.Register(ctx, dto.RegisterRequest{Username: "alice", Name: "Alice", Password: "secret1", Email: strPtr("Alice@Example.com")})
	require.NoError(t, err)
	require.Equal(t, models.AuthKindLocal, account.AuthKind)
	require.Equal(t, "alice@example.com", *account.Email)
	require.True(t, account.HasCredential())

	before, err := f.accounts.Count(ctx)
	require.NoError(t, err)

	_, err = svc.Register(ctx, dto.RegisterRequest{Username: "alice", Name: "Other", Password: "secret1"})
	require.Equal(t, KindConflict, KindOf(err))

	_, err = svc.Register(ctx, dto.RegisterRequest{Username: "alice2", Name: "Other", Password: "secret1", Email: strPtr("alice@example.com")})
	require.Equal(t, KindConflict, KindOf(err))

	after, err := f.accounts.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestRegisterValidatesInput(t *testing.T) {
	f := newFixture(t)
	svc := f.credentials(nil)
	ctx := context.Background()

	cases := []dto.RegisterRequest{
		{Username: "guest_alex", Name: "Alex", Password: "secret1"},
		{Username: "Google_alex", Name: "Alex", Password: "secret1"},
		{Username: "alex", Name: "Alex", Password: "12345"},
		{Username: "al ex", Name: "Alex", Password: "secret1"},
		{Username: "alex", Name: "<b></b>", Password: "secret1"},
		{Username: "", Name: "Alex", Password: "secret1"},
	}
	for _, req := range cases {
		_, err := svc.Register(ctx, req)
		require.Equal(t, KindInvalidInput, KindOf(err), "username %q", req.Username)
	}
}

func TestIssueGuest(t *testing.T) {
	f := newFixture(t)
	svc := f.credentials(nil)
	ctx := context.Background()

	_, err := svc.IssueGuest(ctx, "   ")
	require.Equal(t, KindInvalidInput, KindOf(err))

	account, err := svc.IssueGuest(ctx, "  <script>x</script>Alex ")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(account.Username, GuestUsernamePrefix))
	require.Len(t, account.Username, len(GuestUsernamePrefix)+8)
	require.Equal(t, "Alex", account.DisplayName)
	require.Equal(t, models.AuthKindGuest, account.AuthKind)
	require.Nil(t, account.CredentialHash)

	grants, err := f.permissions.ListForAccount(ctx, account.ID)
	require.NoError(t, err)
	require.Empty(t, grants)
}

func TestVerifyExternalIdentityCreatesThenRefreshes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	identity := googleid.Identity{Subject: "google-sub-1", Email: "gina@example.com", Name: "Gina", Picture: "https://example.com/a.png"}
	signIn, err := f.credentials(stubIdentity{identity: identity}).VerifyExternalIdentity(ctx, "token")
	require.NoError(t, err)
	require.True(t, signIn.Created)
	require.Equal(t, models.AuthKindGoogle, signIn.Account.AuthKind)
	require.True(t, strings.HasPrefix(signIn.Account.Username, GoogleUsernamePrefix))

	identity.Name = "Gina G"
	signIn2, err := f.credentials(stubIdentity{identity: identity}).VerifyExternalIdentity(ctx, "token")
	require.NoError(t, err)
	require.False(t, signIn2.Created)
	require.Equal(t, signIn.Account.ID, signIn2.Account.ID)
	require.Equal(t, "Gina G", signIn2.Account.DisplayName)
}

func TestVerifyExternalIdentityLinksByEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	local := f.createLocal(t, "henry", "secret1", func(a *models.Account) { a.Email = strPtr("henry@example.com") })

	identity := googleid.Identity{Subject: "google-sub-2", Email: "henry@example.com", Name: "Henry"}
	signIn, err := f.credentials(stubIdentity{identity: identity}).VerifyExternalIdentity(ctx, "token")
	require.NoError(t, err)
	require.False(t, signIn.Created)
	require.Equal(t, local.ID, signIn.Account.ID)
	require.Equal(t, models.AuthKindLocal, signIn.Account.AuthKind)
	require.NotNil(t, signIn.Account.ExternalID)
	require.Equal(t, "google-sub-2", *signIn.Account.ExternalID)
}

func TestVerifyExternalIdentityFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.credentials(stubIdentity{err: errors.New("bad signature")}).VerifyExternalIdentity(ctx, "token")
	require.ErrorIs(t, err, ErrInvalidIdentityToken)

	_, err = f.credentials(nil).VerifyExternalIdentity(ctx, "token")
	require.Equal(t, KindInvalidInput, KindOf(err))

	f.createLocal(t, "ivy", "secret1", func(a *models.Account) {
		a.Email = strPtr("ivy@example.com")
		a.IsActive = false
	})
	identity := googleid.Identity{Subject: "google-sub-3", Email: "ivy@example.com", Name: "Ivy"}
	_, err = f.credentials(stubIdentity{identity: identity}).VerifyExternalIdentity(ctx, "token")
	require.ErrorIs(t, err, ErrCredentialDisabled)
}
