package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName               string
	AppEnv                string
	AppPort               string
	LogLevel              string
	DatabaseDriver        string
	DatabaseURL           string
	DatabaseMaxOpenConns  int
	StoreTimeout          time.Duration
	RedisURL              string
	NATSURL               string
	NATSSubjectPrefix     string
	JWTSecret             string
	JWTExpiry             time.Duration
	GoogleClientID        string
	GoogleCertsURL        string
	GoogleCertsCacheTTL   time.Duration
	AnalyticsCacheTTL     time.Duration
	ActivityRetentionDays int
	ActivitySweepInterval time.Duration
	ActivityBufferSize    int
	RateLimitMax          int
	RateLimitWindow       time.Duration
	AdminUsername         string
	AdminPassword         string
	AdminEmail            string
	SeedDefaults          bool
	AllowedOrigins        string
	TrustedProxies        []string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// IsProduction reports whether error details should be hidden from clients.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("FORMDESK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Formdesk API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "5000")
	v.SetDefault("log.level", "info")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("store.timeout", "5s")
	v.SetDefault("nats.subject_prefix", "formdesk")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("google.certs_url", "https://www.googleapis.com/oauth2/v3/certs")
	v.SetDefault("google.certs_cache_ttl", "1h")
	v.SetDefault("analytics.cache_ttl", "5m")
	v.SetDefault("activity.retention_days", 90)
	v.SetDefault("activity.sweep_interval", "24h")
	v.SetDefault("activity.buffer_size", 256)
	v.SetDefault("rate_limit.max", 100)
	v.SetDefault("rate_limit.window", "15m")
	v.SetDefault("seed.defaults", true)
	v.SetDefault("cors.allowed_origins", "http://localhost:3000")

	storeTimeout, err := parseDuration(v, "store.timeout")
	if err != nil {
		return Config{}, err
	}
	jwtExpiry, err := parseDuration(v, "jwt.expiry")
	if err != nil {
		return Config{}, err
	}
	certsTTL, err := parseDuration(v, "google.certs_cache_ttl")
	if err != nil {
		return Config{}, err
	}
	analyticsTTL, err := parseDuration(v, "analytics.cache_ttl")
	if err != nil {
		return Config{}, err
	}
	sweepInterval, err := parseDuration(v, "activity.sweep_interval")
	if err != nil {
		return Config{}, err
	}
	rateWindow, err := parseDuration(v, "rate_limit.window")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:               v.GetString("app.name"),
		AppEnv:                v.GetString("app.env"),
		AppPort:               v.GetString("app.port"),
		LogLevel:              strings.ToLower(v.GetString("log.level")),
		DatabaseDriver:        strings.ToLower(v.GetString("database.driver")),
		DatabaseURL:           v.GetString("database.url"),
		DatabaseMaxOpenConns:  v.GetInt("database.max_open_conns"),
		StoreTimeout:          storeTimeout,
		RedisURL:              v.GetString("redis.url"),
		NATSURL:               v.GetString("nats.url"),
		NATSSubjectPrefix:     v.GetString("nats.subject_prefix"),
		JWTSecret:             v.GetString("jwt.secret"),
		JWTExpiry:             jwtExpiry,
		GoogleClientID:        v.GetString("google.client_id"),
		GoogleCertsURL:        v.GetString("google.certs_url"),
		GoogleCertsCacheTTL:   certsTTL,
		AnalyticsCacheTTL:     analyticsTTL,
		ActivityRetentionDays: v.GetInt("activity.retention_days"),
		ActivitySweepInterval: sweepInterval,
		ActivityBufferSize:    v.GetInt("activity.buffer_size"),
		RateLimitMax:          v.GetInt("rate_limit.max"),
		RateLimitWindow:       rateWindow,
		AdminUsername:         strings.TrimSpace(v.GetString("admin.username")),
		AdminPassword:         v.GetString("admin.password"),
		AdminEmail:            strings.TrimSpace(v.GetString("admin.email")),
		SeedDefaults:          v.GetBool("seed.defaults"),
		AllowedOrigins:        v.GetString("cors.allowed_origins"),
		TrustedProxies:        splitList(v.GetString("http.trusted_proxies")),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	switch cfg.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return Config{}, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	if cfg.DatabaseMaxOpenConns <= 0 {
		cfg.DatabaseMaxOpenConns = 20
	}

	if cfg.ActivityRetentionDays <= 0 {
		cfg.ActivityRetentionDays = 90
	}

	if cfg.ActivityBufferSize <= 0 {
		cfg.ActivityBufferSize = 256
	}

	return cfg, nil
}

// ProxyHeader names the header carrying the client IP. It is only honoured when the
// request comes from one of TrustedProxies.
func (c Config) ProxyHeader() string {
	if len(c.TrustedProxies) == 0 {
		return ""
	}
	return "X-Forwarded-For"
}

func splitList(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	duration, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return duration, nil
}
