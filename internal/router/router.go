package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/formdesk-api/internal/config"
	"github.com/noah-isme/formdesk-api/internal/handler"
	"github.com/noah-isme/formdesk-api/internal/middleware"
	"github.com/noah-isme/formdesk-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler           *handler.AuthHandler
	ProjectHandler        *handler.ProjectHandler
	AdminProjectHandler   *handler.AdminProjectHandler
	UserHandler           *handler.UserHandler
	PermissionHandler     *handler.PermissionHandler
	AdminActivityHandler  *handler.AdminActivityHandler
	AdminAnalyticsHandler *handler.AdminAnalyticsHandler
	SessionMiddleware     fiber.Handler
	DependencyChecks      map[string]handler.DependencyCheck
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	health := handler.HealthCheck(cfg, deps.DependencyChecks)
	app.Get("/health", health)
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/v1/health", health)

	session := deps.SessionMiddleware
	if session == nil {
		session = func(c *fiber.Ctx) error { return c.Next() }
	}
	admin := []fiber.Handler{session, middleware.RequireAdmin()}

	if deps.AuthHandler != nil {
		window := cfg.RateLimitWindow
		if window <= 0 {
			window = 15 * time.Minute
		}
		deps.AuthHandler.RegisterPublic(api.Group("/auth"), middleware.RateLimit("auth", cfg.RateLimitMax, window))
		deps.AuthHandler.RegisterSession(api.Group("/auth", session))
	}

	// Public catalog routes are registered before the session group so anonymous
	// reads never reach the session middleware.
	if deps.ProjectHandler != nil {
		deps.ProjectHandler.RegisterPublic(api.Group("/projects"))
		deps.ProjectHandler.RegisterSession(api.Group("/projects", session))
	}

	if deps.AdminProjectHandler != nil {
		deps.AdminProjectHandler.Register(api.Group("/admin/projects", admin...))
	}
	if deps.UserHandler != nil {
		deps.UserHandler.Register(api.Group("/users", admin...))
	}
	if deps.PermissionHandler != nil {
		deps.PermissionHandler.Register(api.Group("/permissions", admin...))
	}
	if deps.AdminActivityHandler != nil {
		deps.AdminActivityHandler.Register(api.Group("/activity-logs", admin...))
	}
	if deps.AdminAnalyticsHandler != nil {
		deps.AdminAnalyticsHandler.Register(api.Group("/admin/analytics", admin...))
	}
}
