package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/syncboard-api/internal/config"
	"github.com/noah-isme/syncboard-api/internal/handler"
	"github.com/noah-isme/syncboard-api/internal/middleware"
	"github.com/noah-isme/syncboard-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler     *handler.AuthHandler
	TaskHandler     *handler.TaskHandler
	ActivityHandler *handler.ActivityHandler
	BoardHandler    *handler.BoardHandler
	JWTMiddleware   fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.AuthHandler != nil {
		auth := app.Group("/api/auth")
		auth.Use(middleware.RateLimit("auth", cfg.LoginRateLimit, cfg.LoginRateWindow))
		deps.AuthHandler.RegisterPublic(auth)
		deps.AuthHandler.RegisterProtected(auth.Group("", jwtMiddleware))
	}

	if deps.TaskHandler != nil {
		tasks := app.Group("/api/tasks", jwtMiddleware)
		deps.TaskHandler.Register(tasks)
	}

	if deps.ActivityHandler != nil {
		actions := app.Group("/api/actions", jwtMiddleware)
		deps.ActivityHandler.Register(actions)
	}

	if deps.BoardHandler != nil {
		board := app.Group("/api/board", jwtMiddleware)
		deps.BoardHandler.Register(board)
	}
}
