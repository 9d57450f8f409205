package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-training-api/internal/config"
	"github.com/noah-isme/gema-training-api/internal/handler"
	"github.com/noah-isme/gema-training-api/internal/middleware"
	"github.com/noah-isme/gema-training-api/internal/models"
	"github.com/noah-isme/gema-training-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ApprovalHandler     *handler.ApprovalHandler
	ProgressHandler     *handler.ProgressHandler
	GradeHandler        *handler.GradeHandler
	CertificateHandler  *handler.CertificateHandler
	DecisionHandler     *handler.DecisionHandler
	NotificationHandler *handler.NotificationHandler
	AdminHandler        *handler.AdminHandler
	SeedHandler         *handler.SeedHandler
	JWTMiddleware       fiber.Handler
	HealthChecks        []handler.DependencyCheck
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthChecks...))

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	secured := api.Group("", jwtMiddleware)

	if deps.ApprovalHandler != nil {
		deps.ApprovalHandler.Register(secured.Group("/requests"))
	}
	if deps.ProgressHandler != nil {
		deps.ProgressHandler.Register(secured)
	}
	if deps.GradeHandler != nil {
		deps.GradeHandler.Register(secured.Group("/trainee-assignments"))
	}
	if deps.CertificateHandler != nil {
		deps.CertificateHandler.Register(secured)
	}
	if deps.DecisionHandler != nil {
		deps.DecisionHandler.Register(secured)
	}
	if deps.NotificationHandler != nil {
		deps.NotificationHandler.Register(secured.Group("/notifications"))
	}

	// Administrative surface
	admin := app.Group("/api/admin", jwtMiddleware, middleware.RequireRole(models.RoleAdmin))
	if deps.AdminHandler != nil {
		deps.AdminHandler.Register(admin)
	}
	if deps.SeedHandler != nil {
		deps.SeedHandler.Register(admin)
	}
}
