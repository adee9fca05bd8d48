package handlers

import (
	"civic-gamification/middleware"
	"civic-gamification/models"
	"civic-gamification/services"

	"github.com/gofiber/fiber/v2"
)

// SetupChallengeRoutes registers the participant surface. Progress only moves
// through activity events or the admin progress route.
func SetupChallengeRoutes(app *fiber.App, g *services.Gamification, userCtx fiber.Handler) {
	app.Get("/challenges", func(c *fiber.Ctx) error {
		list, err := g.Challenges.ListChallenges(c.UserContext(), models.ChallengeStatus(c.Query("status")))
		if err != nil {
			return fail(c, "failed to list challenges", err)
		}
		return c.JSON(list)
	})

	app.Get("/challenges/:id", func(c *fiber.Ctx) error {
		ch, err := g.Challenges.GetChallenge(c.UserContext(), c.Params("id"))
		if err != nil {
			return fail(c, "failed to get challenge", err)
		}
		return c.JSON(ch)
	})

	app.Post("/challenges/:id/join", userCtx, func(c *fiber.Ctx) error {
		res, err := g.Challenges.JoinChallenge(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return fail(c, "failed to join challenge", err)
		}
		return c.JSON(res)
	})

	app.Post("/challenges/:id/complete", userCtx, func(c *fiber.Ctx) error {
		out, err := g.CompleteChallenge(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return fail(c, "failed to complete challenge", err)
		}
		return c.JSON(out)
	})
}
