package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/noah-isme/formdesk-api/internal/models"
	"github.com/noah-isme/formdesk-api/internal/repository"
)

func TestAdminAnalyticsSummaryAggregates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	admin := f.createLocal(t, "root", "secret123", func(a *models.Account) { a.IsAdmin = true })
	alice := f.createLocal(t, "alice", "secret123", nil)
	f.createLocal(t, "bob", "secret123", func(a *models.Account) { a.IsActive = false })
	f.createProject(t, "bmi", nil)

	_, err := f.submissions.SaveLatest(ctx, alice.ID, "bmi", datatypes.JSONMap{"w": 70})
	require.NoError(t, err)
	_, err = f.submissions.SaveLatest(ctx, alice.ID, "bmi", datatypes.JSONMap{"w": 71})
	require.NoError(t, err)
	_, err = f.submissions.SaveLatest(ctx, admin.ID, "bmi", datatypes.JSONMap{"w": 80})
	require.NoError(t, err)

	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	logs := []models.ActivityLog{
		{Action: models.ActionLogin, CreatedAt: now.Add(-time.Hour)},
		{Action: models.ActionLogin, CreatedAt: now.Add(-2 * time.Hour)},
		{Action: models.ActionFormInputSaved, CreatedAt: now.AddDate(0, 0, -2)},
		{Action: models.ActionLogin, CreatedAt: now.AddDate(0, 0, -30)},
	}
	require.NoError(t, f.db.Create(&logs).Error)

	svc := NewAdminAnalyticsService(repository.NewAdminAnalyticsRepository(f.db), nil, time.Minute, time.Second, testLogger()).(*adminAnalyticsService)
	svc.now = func() time.Time { return now }

	summary, err := svc.GetSummary(ctx)
	require.NoError(t, err)
	require.False(t, summary.CacheHit)

	require.Equal(t, int64(3), summary.Accounts.Total)
	require.Equal(t, int64(2), summary.Accounts.Active)
	require.Equal(t, int64(1), summary.Accounts.Admins)
	require.Equal(t, int64(3), summary.Accounts.ByKind[models.AuthKindLocal])

	require.Len(t, summary.Projects, 1)
	require.Equal(t, "bmi", summary.Projects[0].ProjectID)
	require.Equal(t, int64(3), summary.Projects[0].Submissions)
	require.Equal(t, int64(2), summary.Projects[0].Submitters)

	require.Equal(t, analyticsWindowDays, summary.WindowDays)
	require.Len(t, summary.Activity, analyticsWindowDays)
	last := summary.Activity[len(summary.Activity)-1]
	require.Equal(t, startOfDay(now), last.Day)
	require.Equal(t, int64(2), last.Total)
	require.Equal(t, int64(2), last.Actions[models.ActionLogin])

	var windowTotal int64
	for _, point := range summary.Activity {
		windowTotal += point.Total
	}
	require.Equal(t, int64(3), windowTotal)
}

func TestAdminAnalyticsSummaryIsCached(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	f := newFixture(t)
	f.createLocal(t, "alice", "secret123", nil)

	svc := NewAdminAnalyticsService(repository.NewAdminAnalyticsRepository(f.db), client, time.Minute, time.Second, testLogger())

	first, err := svc.GetSummary(context.Background())
	require.NoError(t, err)
	require.False(t, first.CacheHit)
	require.Equal(t, int64(1), first.Accounts.Total)
	require.True(t, server.Exists(analyticsCacheKey))

	f.createLocal(t, "bob", "secret123", nil)

	cached, err := svc.GetSummary(context.Background())
	require.NoError(t, err)
	require.True(t, cached.CacheHit)
	require.Equal(t, int64(1), cached.Accounts.Total)

	server.FastForward(2 * time.Minute)

	fresh, err := svc.GetSummary(context.Background())
	require.NoError(t, err)
	require.False(t, fresh.CacheHit)
	require.Equal(t, int64(2), fresh.Accounts.Total)
}

func TestAdminAnalyticsIgnoresMalformedCache(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()
	require.NoError(t, server.Set(analyticsCacheKey, "{not json"))

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	f := newFixture(t)
	svc := NewAdminAnalyticsService(repository.NewAdminAnalyticsRepository(f.db), client, time.Minute, time.Second, testLogger())

	summary, err := svc.GetSummary(context.Background())
	require.NoError(t, err)
	require.False(t, summary.CacheHit)
	require.Equal(t, int64(0), summary.Accounts.Total)
}
