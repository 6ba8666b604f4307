package googleid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// DefaultCertsURL is Google's published signing key set.
const DefaultCertsURL = "https://www.googleapis.com/oauth2/v3/certs"

const cacheKey = "googleid:jwks"

var validIssuers = map[string]struct{}{
	"accounts.google.com":         {},
	"https://accounts.google.com": {},
}

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid identity token")

var verifications = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "formdesk",
	Subsystem: "googleid",
	Name:      "verifications_total",
	Help:      "Google ID token verifications by outcome.",
}, []string{"outcome"})

// Identity is the verified subset of a Google ID token.
type Identity struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// Config defines how tokens are verified. RefreshUnknownKID is the minimum gap between
// refetches triggered by a token signed with a key id missing from the cached set.
type Config struct {
	ClientID          string
	CertsURL          string
	CacheTTL          time.Duration
	RefreshUnknownKID time.Duration
	HTTPClient        *http.Client
}

// Verifier validates Google ID tokens against the published JWKS.
type Verifier struct {
	cfg     Config
	cache   *redis.Client
	logger  zerolog.Logger
	tracer  trace.Tracer
	now     func() time.Time
	refetch *rate.Limiter

	mu        sync.Mutex
	keys      keyfunc.Keyfunc
	keysUntil time.Time
}

type googleClaims struct {
	Email         string    `json:"email"`
	EmailVerified flexibool `json:"email_verified"`
	Name          string    `json:"name"`
	Picture       string    `json:"picture"`
	jwt.RegisteredClaims
}

// flexibool accepts both JSON booleans and the string forms Google has used.
type flexibool bool

func (b *flexibool) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	*b = flexibool(strings.EqualFold(raw, "true"))
	return nil
}

// New builds a verifier. The Redis client is optional; fetched key sets are always kept in
// process for CacheTTL and shared through Redis when a client is given.
func New(cfg Config, cache *redis.Client, logger zerolog.Logger) (*Verifier, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, fmt.Errorf("google client id is required")
	}
	if cfg.CertsURL == "" {
		cfg.CertsURL = DefaultCertsURL
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.RefreshUnknownKID <= 0 {
		cfg.RefreshUnknownKID = 5 * time.Minute
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 5 * time.Second}
	}

	return &Verifier{
		cfg:     cfg,
		cache:   cache,
		logger:  logger.With().Str("component", "googleid_verifier").Logger(),
		tracer:  otel.Tracer("github.com/noah-isme/formdesk-api/pkg/googleid"),
		now:     time.Now,
		refetch: rate.NewLimiter(rate.Every(cfg.RefreshUnknownKID), 1),
	}, nil
}

// Verify checks signature, audience, issuer, expiry and required claims.
func (v *Verifier) Verify(ctx context.Context, idToken string) (Identity, error) {
	ctx, span := v.tracer.Start(ctx, "googleid.verify")
	defer span.End()

	identity, err := v.verify(ctx, strings.TrimSpace(idToken))
	if err != nil {
		verifications.WithLabelValues("rejected").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "token rejected")
		v.logger.Debug().Err(err).Msg("google id token rejected")
		return Identity{}, ErrInvalidToken
	}

	verifications.WithLabelValues("accepted").Inc()
	span.SetAttributes(attribute.String("googleid.subject", identity.Subject))
	return identity, nil
}

func (v *Verifier) verify(ctx context.Context, idToken string) (Identity, error) {
	if idToken == "" {
		return Identity{}, errors.New("empty token")
	}

	var claims googleClaims
	token, err := jwt.ParseWithClaims(idToken, &claims, func(t *jwt.Token) (interface{}, error) {
		if kid, _ := t.Header[jwkset.HeaderKID].(string); kid == "" {
			return nil, errors.New("token has no key id")
		}
		return v.lookupKey(ctx, t)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.cfg.ClientID),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return Identity{}, err
	}
	if !token.Valid {
		return Identity{}, errors.New("token invalid")
	}

	if _, ok := validIssuers[claims.Issuer]; !ok {
		return Identity{}, fmt.Errorf("unexpected issuer %q", claims.Issuer)
	}
	if claims.Subject == "" || claims.Email == "" || strings.TrimSpace(claims.Name) == "" {
		return Identity{}, errors.New("required claims missing")
	}
	if !bool(claims.EmailVerified) {
		return Identity{}, errors.New("email not verified")
	}

	return Identity{
		Subject: claims.Subject,
		Email:   strings.ToLower(strings.TrimSpace(claims.Email)),
		Name:    strings.TrimSpace(claims.Name),
		Picture: claims.Picture,
	}, nil
}

// lookupKey resolves the signing key for t. A key id missing from the current set triggers
// a refetch, at most once per RefreshUnknownKID.
func (v *Verifier) lookupKey(ctx context.Context, t *jwt.Token) (interface{}, error) {
	keys, err := v.currentKeys(ctx)
	if err != nil {
		return nil, err
	}

	key, err := keys.KeyfuncCtx(ctx)(t)
	if err == nil {
		return key, nil
	}
	if !v.refetch.Allow() {
		return nil, err
	}

	keys, err = v.fetchKeys(ctx)
	if err != nil {
		return nil, err
	}
	return keys.KeyfuncCtx(ctx)(t)
}

// currentKeys returns the in-process key set, falling back to Redis and then to Google.
func (v *Verifier) currentKeys(ctx context.Context) (keyfunc.Keyfunc, error) {
	v.mu.Lock()
	keys, until := v.keys, v.keysUntil
	v.mu.Unlock()
	if keys != nil && v.now().Before(until) {
		return keys, nil
	}

	if raw, ok := v.cachedKeys(ctx); ok {
		keys, err := keyfunc.NewJWKSetJSON(raw)
		if err == nil {
			v.remember(keys)
			return keys, nil
		}
		v.logger.Warn().Err(err).Msg("discarding malformed signing key cache entry")
	}

	return v.fetchKeys(ctx)
}

func (v *Verifier) remember(keys keyfunc.Keyfunc) {
	v.mu.Lock()
	v.keys = keys
	v.keysUntil = v.now().Add(v.cfg.CacheTTL)
	v.mu.Unlock()
}

func (v *Verifier) cachedKeys(ctx context.Context) (json.RawMessage, bool) {
	if v.cache == nil {
		return nil, false
	}

	raw, err := v.cache.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			v.logger.Warn().Err(err).Msg("failed to read signing key cache")
		}
		return nil, false
	}
	return raw, true
}

func (v *Verifier) storeKeys(ctx context.Context, raw json.RawMessage) {
	if v.cache == nil {
		return
	}
	if err := v.cache.Set(ctx, cacheKey, []byte(raw), v.cfg.CacheTTL).Err(); err != nil {
		v.logger.Warn().Err(err).Msg("failed to store signing key cache")
	}
}

// fetchKeys downloads the published key set, shares it through Redis and keeps it in process.
func (v *Verifier) fetchKeys(ctx context.Context) (keyfunc.Keyfunc, error) {
	storage, err := jwkset.NewStorageFromHTTP(v.cfg.CertsURL, jwkset.HTTPClientStorageOptions{
		Client:      v.cfg.HTTPClient,
		Ctx:         ctx,
		HTTPTimeout: v.cfg.HTTPClient.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch signing keys: %w", err)
	}

	keys, err := keyfunc.New(keyfunc.Options{Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("load signing keys: %w", err)
	}

	if raw, err := storage.JSONPublic(ctx); err == nil {
		v.storeKeys(ctx, raw)
	} else {
		v.logger.Warn().Err(err).Msg("failed to encode signing keys for cache")
	}

	v.remember(keys)
	return keys, nil
}
