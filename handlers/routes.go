package handlers

import (
	"civic-gamification/middleware"
	"civic-gamification/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SetupRoutes mounts every gamification route. Gateway auth is applied globally by the caller.
func SetupRoutes(app *fiber.App, g *services.Gamification, logger *zap.Logger) {
	userCtx := middleware.UserContextMiddleware(logger)

	SetupProgressionRoutes(app, g, userCtx)
	SetupChallengeRoutes(app, g, userCtx)
	SetupLeaderboardRoutes(app, g)
	SetupActivityRoutes(app, g)
	SetupAdminRoutes(app, g, userCtx)
}
