package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/noah-isme/formdesk-api/internal/dto"
	"github.com/noah-isme/formdesk-api/internal/models"
	"github.com/noah-isme/formdesk-api/internal/observability"
	"github.com/noah-isme/formdesk-api/internal/repository"
)

const (
	defaultActivityBuffer   = 256
	defaultActivityPageSize = 20
	maxActivityPageSize     = 100
	maskedValue             = "***"
)

var sensitiveDetailKeys = []string{"password", "token", "secret"}

// ActivityEntry captures an auditable action before it is persisted.
type ActivityEntry struct {
	AccountID string
	Action    string
	Details   map[string]interface{}
	Meta      RequestMeta
}

// ActivityRecorder appends audit entries without blocking the caller.
type ActivityRecorder interface {
	Record(ctx context.Context, entry ActivityEntry)
}

// ActivityService records, lists and expires audit entries.
type ActivityService interface {
	ActivityRecorder
	List(ctx context.Context, req dto.ActivityListRequest) (dto.ActivityListResponse, error)
	PurgeOlderThan(ctx context.Context, days int) (int64, error)
	StartRetentionSweeper(ctx context.Context, interval time.Duration, days int)
	Close(ctx context.Context) error
}

// ActivityOptions tunes the recorder.
type ActivityOptions struct {
	BufferSize   int
	StoreTimeout time.Duration
	NATS         *nats.Conn
	SubjectBase  string
}

type queuedActivity struct {
	entry      ActivityEntry
	occurredAt time.Time
}

type activityService struct {
	repo         repository.ActivityLogRepository
	storeTimeout time.Duration
	nats         *nats.Conn
	subject      string
	logger       zerolog.Logger
	tracer       trace.Tracer
	now          func() time.Time

	mu     sync.RWMutex
	closed bool
	queue  chan queuedActivity
	done   chan struct{}
}

// NewActivityService constructs the audit recorder and starts its worker.
func NewActivityService(repo repository.ActivityLogRepository, opts ActivityOptions, logger zerolog.Logger) ActivityService {
	size := opts.BufferSize
	if size <= 0 {
		size = defaultActivityBuffer
	}

	subject := ""
	if opts.NATS != nil && opts.SubjectBase != "" {
		subject = strings.ReplaceAll(opts.SubjectBase, ":", ".") + ".activity"
	}

	svc := &activityService{
		repo:         repo,
		storeTimeout: opts.StoreTimeout,
		nats:         opts.NATS,
		subject:      subject,
		logger:       logger.With().Str("component", "activity_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/formdesk-api/internal/service/activity"),
		now:          time.Now,
		queue:        make(chan queuedActivity, size),
		done:         make(chan struct{}),
	}

	go svc.run()

	return svc
}

// Record enqueues the entry and returns immediately. A full buffer or a closed
// recorder drops the entry with a log line.
func (s *activityService) Record(_ context.Context, entry ActivityEntry) {
	if strings.TrimSpace(entry.Action) == "" {
		s.logger.Warn().Msg("activity entry without action dropped")
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		observability.ActivityEvents().WithLabelValues("dropped").Inc()
		s.logger.Warn().Str("action", entry.Action).Msg("activity recorder closed, entry dropped")
		return
	}

	select {
	case s.queue <- queuedActivity{entry: entry, occurredAt: s.now().UTC()}:
	default:
		observability.ActivityEvents().WithLabelValues("dropped").Inc()
		s.logger.Warn().Str("action", entry.Action).Msg("activity buffer full, entry dropped")
	}
}

func (s *activityService) run() {
	defer close(s.done)
	for item := range s.queue {
		s.persist(item)
	}
}

func (s *activityService) persist(item queuedActivity) {
	ctx, cancel := storeContext(context.Background(), s.storeTimeout)
	defer cancel()

	spanCtx, span := s.tracer.Start(ctx, "activity.persist", trace.WithAttributes(
		attribute.String("activity.action", item.entry.Action),
	))
	defer span.End()

	model := models.ActivityLog{
		AccountID: optionalString(item.entry.AccountID),
		Action:    item.entry.Action,
		Details:   maskDetails(item.entry.Details),
		IPAddress: optionalString(item.entry.Meta.IPAddress),
		UserAgent: optionalString(item.entry.Meta.UserAgent),
		CreatedAt: item.occurredAt,
	}

	if err := s.repo.Create(spanCtx, &model); err != nil {
		span.RecordError(err)
		observability.ActivityEvents().WithLabelValues("failed").Inc()
		s.logger.Error().Err(err).Str("action", model.Action).Msg("failed to persist activity log")
		return
	}
	observability.ActivityEvents().WithLabelValues("persisted").Inc()

	if s.nats == nil || s.subject == "" {
		return
	}
	payload, err := json.Marshal(dto.NewActivityResponse(model))
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode activity event")
		return
	}
	if err := s.nats.Publish(s.subject, payload); err != nil {
		s.logger.Warn().Err(err).Str("subject", s.subject).Msg("failed to publish activity event")
	}
}

// Close stops accepting entries and waits for the buffer to drain or ctx to end.
func (s *activityService) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *activityService) List(ctx context.Context, req dto.ActivityListRequest) (dto.ActivityListResponse, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = defaultActivityPageSize
	} else if req.PageSize > maxActivityPageSize {
		req.PageSize = maxActivityPageSize
	}

	if req.From != nil && req.Until != nil && !req.Until.After(*req.From) {
		return dto.ActivityListResponse{}, invalidInput("to must be after from")
	}

	storeCtx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()

	entries, total, err := s.repo.List(storeCtx, repository.ActivityLogFilter{
		Page:      req.Page,
		PageSize:  req.PageSize,
		AccountID: strings.TrimSpace(req.AccountID),
		Action:    strings.TrimSpace(req.Action),
		Since:     req.From,
		Until:     req.Until,
	})
	if err != nil {
		return dto.ActivityListResponse{}, storeFailure("list activity logs", err)
	}

	items := make([]dto.ActivityResponse, 0, len(entries))
	for _, entry := range entries {
		item := dto.NewActivityResponse(entry.ActivityLog)
		item.Username = entry.Username
		item.UserName = entry.DisplayName
		items = append(items, item)
	}

	return dto.ActivityListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total),
	}, nil
}

func (s *activityService) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, invalidInput("retention days must be positive")
	}

	storeCtx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()

	cutoff := s.now().UTC().AddDate(0, 0, -days)
	removed, err := s.repo.DeleteOlderThan(storeCtx, cutoff)
	if err != nil {
		return 0, storeFailure("purge activity logs", err)
	}
	return removed, nil
}

// StartRetentionSweeper purges expired entries once immediately and then on every
// interval until ctx is cancelled.
func (s *activityService) StartRetentionSweeper(ctx context.Context, interval time.Duration, days int) {
	if interval <= 0 || days <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			s.sweep(ctx, days)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (s *activityService) sweep(ctx context.Context, days int) {
	removed, err := s.PurgeOlderThan(ctx, days)
	if err != nil {
		s.logger.Error().Err(err).Msg("activity retention sweep failed")
		return
	}
	if removed > 0 {
		s.logger.Info().Int64("removed", removed).Int("retention_days", days).Msg("expired activity logs purged")
	}
}

func maskDetails(details map[string]interface{}) datatypes.JSONMap {
	masked := datatypes.JSONMap{}
	for key, value := range details {
		if isSensitiveKey(key) {
			masked[key] = maskedValue
			continue
		}
		if nested, ok := value.(map[string]interface{}); ok {
			masked[key] = map[string]interface{}(maskDetails(nested))
			continue
		}
		if email, ok := value.(string); ok && strings.Contains(strings.ToLower(key), "email") {
			masked[key] = maskEmailAddress(email)
			continue
		}
		masked[key] = value
	}
	return masked
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, marker := range sensitiveDetailKeys {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// maskEmailAddress keeps the first and last character of the local part and the domain.
func maskEmailAddress(email string) string {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return ""
	}
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || strings.Contains(domain, "@") {
		return maskedValue
	}
	if len(local) <= 2 {
		return local[:1] + maskedValue + "@" + domain
	}
	return local[:1] + maskedValue + local[len(local)-1:] + "@" + domain
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
