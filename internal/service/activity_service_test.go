package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/formdesk-api/internal/dto"
	"github.com/noah-isme/formdesk-api/internal/models"
	"github.com/noah-isme/formdesk-api/internal/repository"
)

func newActivityService(t *testing.T, f *fixture) (ActivityService, repository.ActivityLogRepository) {
	t.Helper()
	repo := repository.NewActivityLogRepository(f.db)
	svc := NewActivityService(repo, ActivityOptions{BufferSize: 16, StoreTimeout: time.Second}, testLogger())
	t.Cleanup(func() { _ = svc.Close(context.Background()) })
	return svc, repo
}

func TestActivityRecordMasksSecretsAndDrainsOnClose(t *testing.T) {
	f := newFixture(t)
	account := f.createLocal(t, "alice", "secret1", nil)
	svc, repo := newActivityService(t, f)

	svc.Record(context.Background(), ActivityEntry{
		AccountID: account.ID,
		Action:    models.ActionLogin,
		Details: map[string]interface{}{
			"username": "alice",
			"password": "secret1",
			"nested":   map[string]interface{}{"api_token": "abc", "kept": "yes"},
		},
		Meta: RequestMeta{IPAddress: "10.0.0.1", UserAgent: "go-test"},
	})
	svc.Record(context.Background(), ActivityEntry{Action: "  "})

	require.NoError(t, svc.Close(context.Background()))

	entries, total, err := repo.List(context.Background(), repository.ActivityLogFilter{})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)

	entry := entries[0]
	require.Equal(t, account.ID, *entry.AccountID)
	require.Equal(t, "10.0.0.1", *entry.IPAddress)
	require.Equal(t, "go-test", *entry.UserAgent)
	require.Equal(t, "alice", entry.Details["username"])
	require.Equal(t, maskedValue, entry.Details["password"])
	nested, ok := entry.Details["nested"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, maskedValue, nested["api_token"])
	require.Equal(t, "yes", nested["kept"])
}

func TestActivityRecordAfterCloseIsDropped(t *testing.T) {
	f := newFixture(t)
	svc, repo := newActivityService(t, f)

	require.NoError(t, svc.Close(context.Background()))
	require.NoError(t, svc.Close(context.Background()))
	svc.Record(context.Background(), ActivityEntry{Action: models.ActionLogout})

	_, total, err := repo.List(context.Background(), repository.ActivityLogFilter{})
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestActivityListFiltersAndPages(t *testing.T) {
	f := newFixture(t)
	alice := f.createLocal(t, "alice", "secret1", nil)
	bob := f.createLocal(t, "bob", "secret1", nil)
	svc, _ := newActivityService(t, f)

	for i := 0; i < 3; i++ {
		svc.Record(context.Background(), ActivityEntry{AccountID: alice.ID, Action: models.ActionFormInputSaved})
	}
	svc.Record(context.Background(), ActivityEntry{AccountID: bob.ID, Action: models.ActionLogin})
	require.NoError(t, svc.Close(context.Background()))

	page, err := svc.List(context.Background(), dto.ActivityListRequest{Page: 1, PageSize: 2, AccountID: alice.ID})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.Equal(t, int64(3), page.Pagination.TotalItems)
	require.Equal(t, 2, page.Pagination.TotalPages)

	logins, err := svc.List(context.Background(), dto.ActivityListRequest{Action: models.ActionLogin})
	require.NoError(t, err)
	require.Len(t, logins.Items, 1)
	require.Equal(t, bob.ID, *logins.Items[0].AccountID)
	require.Equal(t, "bob", *logins.Items[0].Username)
	require.Equal(t, 1, logins.Pagination.Page)

	from := time.Now().Add(time.Hour)
	until := from.Add(-2 * time.Hour)
	_, err = svc.List(context.Background(), dto.ActivityListRequest{From: &from, Until: &until})
	require.True(t, IsKind(err, KindInvalidInput))

	future, err := svc.List(context.Background(), dto.ActivityListRequest{From: &from})
	require.NoError(t, err)
	require.Empty(t, future.Items)
}

func TestActivityPurgeOlderThan(t *testing.T) {
	f := newFixture(t)
	svc, repo := newActivityService(t, f)
	ctx := context.Background()

	old := models.ActivityLog{Action: models.ActionLogin, CreatedAt: time.Now().UTC().AddDate(0, 0, -120)}
	recent := models.ActivityLog{Action: models.ActionLogin, CreatedAt: time.Now().UTC().AddDate(0, 0, -1)}
	require.NoError(t, repo.Create(ctx, &old))
	require.NoError(t, repo.Create(ctx, &recent))

	_, err := svc.PurgeOlderThan(ctx, 0)
	require.Equal(t, KindInvalidInput, KindOf(err))

	removed, err := svc.PurgeOlderThan(ctx, 90)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	_, total, err := repo.List(ctx, repository.ActivityLogFilter{})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
}

func TestMaskDetailsLeavesInputUntouched(t *testing.T) {
	input := map[string]interface{}{"new_password": "x", "client_secret": "y", "note": "z"}
	masked := maskDetails(input)

	require.Equal(t, maskedValue, masked["new_password"])
	require.Equal(t, maskedValue, masked["client_secret"])
	require.Equal(t, "z", masked["note"])
	require.Equal(t, "x", input["new_password"])
}

func TestMaskDetailsObscuresEmailAddresses(t *testing.T) {
	masked := maskDetails(map[string]interface{}{
		"email":     "Alice.Smith@example.com",
		"new_email": "ab@example.com",
		"note":      "alice@example.com",
	})

	require.Equal(t, "a***h@example.com", masked["email"])
	require.Equal(t, "a***@example.com", masked["new_email"])
	require.Equal(t, "alice@example.com", masked["note"])
	require.Equal(t, maskedValue, maskEmailAddress("not-an-email"))
	require.Equal(t, "", maskEmailAddress("  "))
}
