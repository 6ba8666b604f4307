package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/formdesk-api/internal/dto"
	"github.com/noah-isme/formdesk-api/internal/repository"
)

const (
	analyticsCacheKey   = "formdesk:analytics:summary"
	analyticsWindowDays = 7
)

// AdminAnalyticsService aggregates usage figures for the admin dashboard.
type AdminAnalyticsService interface {
	GetSummary(ctx context.Context) (dto.AdminAnalyticsResponse, error)
}

type adminAnalyticsService struct {
	repo         repository.AdminAnalyticsRepository
	cache        *redis.Client
	cacheTTL     time.Duration
	storeTimeout time.Duration
	logger       zerolog.Logger
	now          func() time.Time
}

// NewAdminAnalyticsService constructs the analytics service. A nil cache disables caching.
func NewAdminAnalyticsService(repo repository.AdminAnalyticsRepository, cache *redis.Client, ttl, storeTimeout time.Duration, logger zerolog.Logger) AdminAnalyticsService {
	return &adminAnalyticsService{
		repo:         repo,
		cache:        cache,
		cacheTTL:     ttl,
		storeTimeout: storeTimeout,
		logger:       logger.With().Str("component", "admin_analytics_service").Logger(),
		now:          time.Now,
	}
}

func (s *adminAnalyticsService) GetSummary(ctx context.Context) (dto.AdminAnalyticsResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/formdesk-api/internal/service/admin_analytics")
	ctx, span := tracer.Start(ctx, "analytics.aggregate")
	span.SetAttributes(attribute.String("analytics.cache_key", analyticsCacheKey))
	defer span.End()

	if cached, ok := s.readCache(ctx); ok {
		span.SetAttributes(attribute.Bool("analytics.cache_hit", true))
		return cached, nil
	}

	storeCtx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()

	accounts, err := s.repo.CountAccounts(storeCtx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count_accounts_failed")
		return dto.AdminAnalyticsResponse{}, storeFailure("count accounts", err)
	}

	usage, err := s.repo.CountSubmissionsByProject(storeCtx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count_submissions_failed")
		return dto.AdminAnalyticsResponse{}, storeFailure("count submissions", err)
	}

	now := s.now().UTC()
	since := startOfDay(now).AddDate(0, 0, -(analyticsWindowDays - 1))
	entries, err := s.repo.ListActivitySince(storeCtx, since)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list_activity_failed")
		return dto.AdminAnalyticsResponse{}, storeFailure("list activity", err)
	}

	summary := dto.AdminAnalyticsResponse{
		Accounts: dto.AccountSummary{
			Total:  accounts.Total,
			Active: accounts.Active,
			Admins: accounts.Admins,
			ByKind: accounts.ByKind,
		},
		Projects:    make([]dto.ProjectUsage, 0, len(usage)),
		WindowDays:  analyticsWindowDays,
		GeneratedAt: now,
	}
	for _, item := range usage {
		summary.Projects = append(summary.Projects, dto.ProjectUsage{
			ProjectID:   item.ProjectID,
			Submissions: item.Submissions,
			Submitters:  item.Submitters,
		})
	}

	daily := map[time.Time]*dto.DailyActivityPoint{}
	for day := since; !day.After(now); day = day.AddDate(0, 0, 1) {
		daily[day] = &dto.DailyActivityPoint{Day: day, Actions: map[string]int64{}}
	}
	for _, entry := range entries {
		point, ok := daily[startOfDay(entry.CreatedAt)]
		if !ok {
			continue
		}
		point.Total++
		point.Actions[entry.Action]++
	}
	summary.Activity = make([]dto.DailyActivityPoint, 0, len(daily))
	for _, point := range daily {
		summary.Activity = append(summary.Activity, *point)
	}
	sort.Slice(summary.Activity, func(i, j int) bool {
		return summary.Activity[i].Day.Before(summary.Activity[j].Day)
	})

	span.SetAttributes(
		attribute.Int64("analytics.accounts", accounts.Total),
		attribute.Int("analytics.activity_entries", len(entries)),
	)

	s.writeCache(ctx, summary)
	return summary, nil
}

func (s *adminAnalyticsService) readCache(ctx context.Context) (dto.AdminAnalyticsResponse, bool) {
	if s.cache == nil {
		return dto.AdminAnalyticsResponse{}, false
	}

	cached, err := s.cache.Get(ctx, analyticsCacheKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read analytics cache")
		}
		return dto.AdminAnalyticsResponse{}, false
	}

	var response dto.AdminAnalyticsResponse
	if err := json.Unmarshal([]byte(cached), &response); err != nil {
		s.logger.Warn().Err(err).Msg("discarding malformed analytics cache entry")
		return dto.AdminAnalyticsResponse{}, false
	}
	response.CacheHit = true
	return response, true
}

func (s *adminAnalyticsService) writeCache(ctx context.Context, summary dto.AdminAnalyticsResponse) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, analyticsCacheKey, payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to store analytics cache")
	}
}

func startOfDay(t time.Time) time.Time {
	utc := t.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}
