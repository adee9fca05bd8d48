package handlers

import (
	"strconv"

	"civic-gamification/middleware"
	"civic-gamification/services"

	"github.com/gofiber/fiber/v2"
)

func SetupProgressionRoutes(app *fiber.App, g *services.Gamification, userCtx fiber.Handler) {
	// 🔐 Secured routes, require user context
	securedGroup := app.Group("/user", userCtx)

	securedGroup.Get("/profile", func(c *fiber.Ctx) error {
		view, err := g.Points.Profile(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return fail(c, "failed to get profile", err)
		}
		return c.JSON(view)
	})

	securedGroup.Get("/points/history", func(c *fiber.Ctx) error {
		page, _ := strconv.Atoi(c.Query("page", "1"))
		size, _ := strconv.Atoi(c.Query("size", "20"))
		history, err := g.Points.History(c.UserContext(), middleware.UserID(c), page, size)
		if err != nil {
			return fail(c, "failed to get history", err)
		}
		return c.JSON(history)
	})

	securedGroup.Get("/achievements", func(c *fiber.Ctx) error {
		list, err := g.Achievements.UserAchievements(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return fail(c, "failed to get achievements", err)
		}
		return c.JSON(list)
	})

	securedGroup.Get("/achievements/:id/progress", func(c *fiber.Ctx) error {
		progress, err := g.Achievements.GetAchievementProgress(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return fail(c, "failed to get achievement progress", err)
		}
		return c.JSON(progress)
	})

	securedGroup.Post("/achievements/check", func(c *fiber.Ctx) error {
		out, err := g.CheckAchievements(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return fail(c, "achievement check failed", err)
		}
		return c.JSON(out)
	})

	securedGroup.Get("/challenges", func(c *fiber.Ctx) error {
		list, err := g.Challenges.UserChallenges(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return fail(c, "failed to get challenges", err)
		}
		return c.JSON(list)
	})

	app.Get("/achievements", func(c *fiber.Ctx) error {
		list, err := g.Achievements.ListAchievements(c.UserContext())
		if err != nil {
			return fail(c, "failed to list achievements", err)
		}
		return c.JSON(list)
	})
}
