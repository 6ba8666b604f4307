package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/formdesk-api/internal/auth"
	"github.com/noah-isme/formdesk-api/internal/config"
	"github.com/noah-isme/formdesk-api/internal/database"
	"github.com/noah-isme/formdesk-api/internal/handler"
	"github.com/noah-isme/formdesk-api/internal/middleware"
	"github.com/noah-isme/formdesk-api/internal/repository"
	"github.com/noah-isme/formdesk-api/internal/router"
	"github.com/noah-isme/formdesk-api/internal/service"
	"github.com/noah-isme/formdesk-api/pkg/googleid"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	logger = logger.Level(level).With().Str("service", cfg.AppName).Logger()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.DatabaseDriver).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(rootCtx, cfg.RedisURL, cfg.StoreTimeout)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, google keys and analytics will not be cached")
			redisClient = nil
		}
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, activity events will not be published")
			natsConn = nil
		}
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	codec, err := auth.NewTokenCodec(cfg.JWTSecret, cfg.JWTExpiry, cfg.AppName)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create token codec")
	}

	var identity service.IdentityVerifier
	if cfg.GoogleClientID != "" {
		verifier, err := googleid.New(googleid.Config{
			ClientID: cfg.GoogleClientID,
			CertsURL: cfg.GoogleCertsURL,
			CacheTTL: cfg.GoogleCertsCacheTTL,
		}, redisClient, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create google id verifier")
		}
		identity = verifier
	} else {
		logger.Info().Msg("google sign-in disabled: no client id configured")
	}

	accountRepo := repository.NewAccountRepository(db)
	permissionRepo := repository.NewPermissionRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)
	analyticsRepo := repository.NewAdminAnalyticsRepository(db)

	bootstrap := service.NewBootstrapService(accountRepo, permissionRepo, projectRepo, cfg.StoreTimeout, logger)
	if err := bootstrap.Run(rootCtx, cfg.SeedDefaults, service.AdminSeed{
		Username: cfg.AdminUsername,
		Password: cfg.AdminPassword,
		Email:    cfg.AdminEmail,
	}); err != nil {
		logger.Fatal().Err(err).Msg("failed to bootstrap data")
	}

	activityService := service.NewActivityService(activityRepo, service.ActivityOptions{
		BufferSize:   cfg.ActivityBufferSize,
		StoreTimeout: cfg.StoreTimeout,
		NATS:         natsConn,
		SubjectBase:  cfg.NATSSubjectPrefix,
	}, logger)
	activityService.StartRetentionSweeper(rootCtx, cfg.ActivitySweepInterval, cfg.ActivityRetentionDays)

	permissionService := service.NewPermissionService(permissionRepo, cfg.StoreTimeout, logger)
	gate := service.NewAccessGate(permissionService)
	credentialService := service.NewCredentialService(accountRepo, identity, validate, cfg.StoreTimeout, logger)
	authService := service.NewAuthService(credentialService, accountRepo, permissionService, codec, activityService, validate, cfg.StoreTimeout, logger)
	inputService := service.NewInputService(accountRepo, projectRepo, submissionRepo, gate, activityService, cfg.StoreTimeout, logger)
	projectService := service.NewProjectService(projectRepo, permissionRepo, activityService, validate, cfg.StoreTimeout, logger)
	accountService := service.NewAccountService(accountRepo, permissionRepo, activityService, validate, cfg.StoreTimeout, logger)
	analyticsService := service.NewAdminAnalyticsService(analyticsRepo, redisClient, cfg.AnalyticsCacheTTL, cfg.StoreTimeout, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    1 << 20,
		// forwarded client IPs are only read from configured proxies
		ProxyHeader:             cfg.ProxyHeader(),
		EnableTrustedProxyCheck: len(cfg.TrustedProxies) > 0,
		TrustedProxies:          cfg.TrustedProxies,
	})

	middleware.Register(app, middleware.Config{
		Logger:         &logger,
		AllowedOrigins: cfg.AllowedOrigins,
		AccessLog:      !cfg.IsProduction(),
		ExposeErrors:   !cfg.IsProduction(),
	})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:           handler.NewAuthHandler(authService, inputService, logger),
		ProjectHandler:        handler.NewProjectHandler(projectService, inputService, logger),
		AdminProjectHandler:   handler.NewAdminProjectHandler(projectService, logger),
		UserHandler:           handler.NewUserHandler(accountService, logger),
		PermissionHandler:     handler.NewPermissionHandler(permissionService, logger),
		AdminActivityHandler:  handler.NewAdminActivityHandler(activityService, logger),
		AdminAnalyticsHandler: handler.NewAdminAnalyticsHandler(analyticsService, logger),
		SessionMiddleware:     middleware.SessionAuth(codec),
		DependencyChecks:      dependencyChecks(db, redisClient),
	})

	go func() {
		logger.Info().Str("address", cfg.HTTPAddress()).Msg("http server listening")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-rootCtx.Done()
	shutdown(logger, app, activityService, db, redisClient, natsConn)
}

func openDatabase(cfg config.Config) (*gorm.DB, error) {
	if cfg.DatabaseDriver == "sqlite" {
		return database.ConnectSQLite(cfg.DatabaseURL)
	}
	opts := database.DefaultPoolOptions()
	opts.MaxOpenConns = cfg.DatabaseMaxOpenConns
	return database.ConnectPostgres(cfg.DatabaseURL, opts)
}

func dependencyChecks(db *gorm.DB, redisClient *redis.Client) map[string]handler.DependencyCheck {
	checks := map[string]handler.DependencyCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	return checks
}

func shutdown(logger zerolog.Logger, app *fiber.App, activity service.ActivityService, db *gorm.DB, redisClient *redis.Client, natsConn *nats.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := activity.Close(ctx); err != nil {
		logger.Warn().Err(err).Msg("activity buffer not fully drained")
	}
	if natsConn != nil {
		if err := natsConn.Drain(); err != nil {
			logger.Warn().Err(err).Msg("failed to drain nats connection")
		}
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	logger.Info().Msg("server stopped")
}
