package handlers

import (
	"strconv"

	"civic-gamification/models"
	"civic-gamification/services"

	"github.com/gofiber/fiber/v2"
)

func timeRangeParam(c *fiber.Ctx) models.TimeRange {
	return models.TimeRange(c.Query("range", string(models.RangeAllTime)))
}

func SetupLeaderboardRoutes(app *fiber.App, g *services.Gamification) {
	app.Get("/leaderboard", func(c *fiber.Ctx) error {
		skip, _ := strconv.Atoi(c.Query("skip", "0"))
		limit, _ := strconv.Atoi(c.Query("limit", "0"))
		page, err := g.Leaderboards.GetLeaderboard(c.UserContext(), timeRangeParam(c), skip, limit)
		if err != nil {
			return fail(c, "failed to get leaderboard", err)
		}
		return c.JSON(page)
	})

	app.Get("/leaderboard/rank/:userId", func(c *fiber.Ctx) error {
		rank, err := g.Leaderboards.GetUserRank(c.UserContext(), c.Params("userId"), timeRangeParam(c))
		if err != nil {
			return fail(c, "failed to get rank", err)
		}
		return c.JSON(rank)
	})
}
