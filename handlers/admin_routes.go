package handlers

import (
	"time"

	"civic-gamification/middleware"
	"civic-gamification/models"
	"civic-gamification/services"

	"github.com/gofiber/fiber/v2"
)

type grantXPRequest struct {
	UserID string `json:"user_id" validate:"required"`
	XP     int64  `json:"xp" validate:"required,min=1"`
	Reason string `json:"reason" validate:"max=255"`
}

type unlockConditionRequest struct {
	Type   models.ConditionType `json:"type" validate:"required,oneof=count streak score special"`
	Target int64                `json:"target" validate:"required,min=1"`
	Metric models.Metric        `json:"metric" validate:"required"`
}

type createAchievementRequest struct {
	Name            string                 `json:"name" validate:"required,max=100"`
	Description     string                 `json:"description" validate:"max=500"`
	Icon            string                 `json:"icon"`
	Category        string                 `json:"category" validate:"max=32"`
	Rarity          string                 `json:"rarity" validate:"omitempty,oneof=common rare epic legendary"`
	XPReward        int64                  `json:"xp_reward" validate:"min=0"`
	UnlockCondition unlockConditionRequest `json:"unlock_condition"`
}

type unlockRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

type bonusRewardRequest struct {
	Condition string `json:"condition"`
	XPBonus   int64  `json:"xp_bonus" validate:"min=0"`
}

type createChallengeRequest struct {
	Title          string                `json:"title" validate:"required,max=200"`
	Description    string                `json:"description"`
	Category       string                `json:"category" validate:"max=32"`
	Difficulty     string                `json:"difficulty" validate:"omitempty,oneof=easy medium hard expert"`
	XPReward       int64                 `json:"xp_reward" validate:"min=0"`
	StartDate      time.Time             `json:"start_date" validate:"required"`
	EndDate        time.Time             `json:"end_date" validate:"required"`
	Status         string                `json:"status" validate:"omitempty,oneof=upcoming active completed archived"`
	ProgressMetric models.ProgressMetric `json:"progress_metric"`
	BonusRewards   []bonusRewardRequest  `json:"bonus_rewards" validate:"dive"`
}

type progressRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Amount int64  `json:"amount" validate:"required,min=1"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=upcoming active completed archived"`
}

func SetupAdminRoutes(app *fiber.App, g *services.Gamification, userCtx fiber.Handler) {
	// Admin endpoints
	adminGroup := app.Group("/s/admin", userCtx, middleware.RequireRole("admin"))

	adminGroup.Post("/xp/grant", func(c *fiber.Ctx) error {
		var req grantXPRequest
		if err := decode(c, &req); err != nil {
			return badRequest(c, err)
		}
		reason := req.Reason
		if reason == "" {
			reason = "Admin award"
		}
		out, err := g.GrantAdminXP(c.UserContext(), req.UserID, req.XP, reason)
		if err != nil {
			return fail(c, "XP award failed", err)
		}
		return c.JSON(fiber.Map{
			"message":    "XP granted",
			"user_id":    req.UserID,
			"awarded_xp": out.AwardedXP(),
			"outcome":    out,
		})
	})

	adminGroup.Post("/achievements", func(c *fiber.Ctx) error {
		var req createAchievementRequest
		if err := decode(c, &req); err != nil {
			return badRequest(c, err)
		}
		a := &models.Achievement{
			Name:        req.Name,
			Description: req.Description,
			Icon:        req.Icon,
			Category:    req.Category,
			Rarity:      req.Rarity,
			XPReward:    req.XPReward,
			UnlockCondition: models.UnlockCondition{
				Type:   req.UnlockCondition.Type,
				Target: req.UnlockCondition.Target,
				Metric: req.UnlockCondition.Metric,
			},
		}
		if a.Category == "" {
			a.Category = "reporting"
		}
		if a.Rarity == "" {
			a.Rarity = "common"
		}
		if err := g.Achievements.CreateAchievement(c.UserContext(), a); err != nil {
			return fail(c, "failed to create achievement", err)
		}
		return c.Status(fiber.StatusCreated).JSON(a)
	})

	adminGroup.Post("/achievements/:id/unlock", func(c *fiber.Ctx) error {
		var req unlockRequest
		if err := decode(c, &req); err != nil {
			return badRequest(c, err)
		}
		res, out, err := g.UnlockAchievement(c.UserContext(), req.UserID, c.Params("id"))
		if err != nil {
			return fail(c, "failed to unlock achievement", err)
		}
		return c.JSON(fiber.Map{
			"result":  res,
			"outcome": out,
		})
	})

	adminGroup.Post("/challenges", func(c *fiber.Ctx) error {
		var req createChallengeRequest
		if err := decode(c, &req); err != nil {
			return badRequest(c, err)
		}
		ch := &models.Challenge{
			Title:          req.Title,
			Description:    req.Description,
			Category:       req.Category,
			Difficulty:     req.Difficulty,
			XPReward:       req.XPReward,
			StartDate:      req.StartDate,
			EndDate:        req.EndDate,
			Status:         models.ChallengeStatus(req.Status),
			ProgressMetric: req.ProgressMetric,
		}
		for _, b := range req.BonusRewards {
			ch.BonusRewards = append(ch.BonusRewards, models.BonusReward{Condition: b.Condition, XPBonus: b.XPBonus})
		}
		if err := g.Challenges.CreateChallenge(c.UserContext(), ch); err != nil {
			return fail(c, "failed to create challenge", err)
		}
		return c.Status(fiber.StatusCreated).JSON(ch)
	})

	adminGroup.Patch("/challenges/:id/status", func(c *fiber.Ctx) error {
		var req statusRequest
		if err := decode(c, &req); err != nil {
			return badRequest(c, err)
		}
		if err := g.Challenges.UpdateStatus(c.UserContext(), c.Params("id"), models.ChallengeStatus(req.Status)); err != nil {
			return fail(c, "failed to update status", err)
		}
		return c.JSON(fiber.Map{
			"message": "status updated",
			"id":      c.Params("id"),
			"status":  req.Status,
		})
	})

	adminGroup.Post("/challenges/:id/progress", func(c *fiber.Ctx) error {
		var req progressRequest
		if err := decode(c, &req); err != nil {
			return badRequest(c, err)
		}
		out, err := g.ReportChallengeProgress(c.UserContext(), req.UserID, c.Params("id"), req.Amount)
		if err != nil {
			return fail(c, "failed to update progress", err)
		}
		return c.JSON(out)
	})

	adminGroup.Post("/leaderboards/recalculate", func(c *fiber.Ctx) error {
		boards, err := g.RecalculateLeaderboards(c.UserContext())
		if err != nil {
			return fail(c, "leaderboard recalculation failed", err)
		}
		summary := make([]fiber.Map, 0, len(boards))
		for _, lb := range boards {
			summary = append(summary, fiber.Map{
				"time_range":   lb.TimeRange,
				"period":       lb.Period,
				"entries":      len(lb.Rankings),
				"generated_at": lb.GeneratedAt,
			})
		}
		return c.JSON(summary)
	})
}
