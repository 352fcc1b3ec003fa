package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-gradebook/internal/config"
	"github.com/noah-isme/gema-gradebook/internal/handler"
	"github.com/noah-isme/gema-gradebook/internal/middleware"
	"github.com/noah-isme/gema-gradebook/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	RubricHandler            *handler.RubricHandler
	ScoringHandler           *handler.ScoringHandler
	ActivityTemplateHandler  *handler.ActivityTemplateHandler
	StudentSubmissionHandler *handler.StudentSubmissionHandler
	AuditLogHandler          *handler.AuditLogHandler
	HealthChecks             map[string]handler.HealthCheckFunc
	JWTMiddleware            fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v2", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthChecks))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = middleware.JWTProtected(cfg.JWTSecret)
	}
	requireGrader := middleware.RequireGrader()

	if deps.RubricHandler != nil {
		deps.RubricHandler.Register(api.Group("/rubrics", jwtMiddleware, requireGrader))
	}

	if deps.ScoringHandler != nil {
		scoring := api.Group("/scoring", jwtMiddleware, requireGrader,
			middleware.RateLimit("scoring", cfg.ScoringRateLimit, cfg.ScoringRateWindow))
		deps.ScoringHandler.Register(scoring)
	}

	if deps.ActivityTemplateHandler != nil {
		deps.ActivityTemplateHandler.Register(api.Group("/activity-templates", jwtMiddleware, requireGrader))
	}

	if deps.StudentSubmissionHandler != nil {
		deps.StudentSubmissionHandler.Register(api.Group("/submissions", jwtMiddleware, requireGrader))
	}

	if deps.AuditLogHandler != nil {
		audit := api.Group("/audit-logs", jwtMiddleware, middleware.RequireRole(middleware.RoleAdmin))
		deps.AuditLogHandler.Register(audit)
	}
}
