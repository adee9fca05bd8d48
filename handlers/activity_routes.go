package handlers

import (
	"civic-gamification/services"

	"github.com/gofiber/fiber/v2"
)

type issueReportedRequest struct {
	UserID       string  `json:"user_id" validate:"required"`
	IssueID      string  `json:"issue_id" validate:"required"`
	QualityScore float64 `json:"quality_score"`
}

type commentPostedRequest struct {
	UserID    string `json:"user_id" validate:"required"`
	CommentID string `json:"comment_id" validate:"required"`
}

type helpfulVotesRequest struct {
	AuthorID   string `json:"author_id" validate:"required"`
	PostID     string `json:"post_id" validate:"required"`
	PriorVotes int64  `json:"prior_votes" validate:"min=0"`
	NewVotes   int64  `json:"new_votes" validate:"gtfield=PriorVotes"`
}

type resolutionRequest struct {
	UserID  string `json:"user_id" validate:"required"`
	IssueID string `json:"issue_id" validate:"required"`
}

// SetupActivityRoutes exposes the service-to-service activity feed, the HTTP
// twin of the NATS activity consumer.
func SetupActivityRoutes(app *fiber.App, g *services.Gamification) {
	activity := app.Group("/activity")

	activity.Post("/issues", func(c *fiber.Ctx) error {
		var req issueReportedRequest
		if err := decode(c, &req); err != nil {
			return badRequest(c, err)
		}
		out, err := g.RecordIssueReported(c.UserContext(), req.UserID, req.IssueID, req.QualityScore)
		if err != nil {
			return fail(c, "failed to record issue", err)
		}
		return c.JSON(out)
	})

	activity.Post("/comments", func(c *fiber.Ctx) error {
		var req commentPostedRequest
		if err := decode(c, &req); err != nil {
			return badRequest(c, err)
		}
		out, err := g.RecordComment(c.UserContext(), req.UserID, req.CommentID)
		if err != nil {
			return fail(c, "failed to record comment", err)
		}
		return c.JSON(out)
	})

	activity.Post("/votes", func(c *fiber.Ctx) error {
		var req helpfulVotesRequest
		if err := decode(c, &req); err != nil {
			return badRequest(c, err)
		}
		out, err := g.RecordHelpfulVotes(c.UserContext(), req.AuthorID, req.PostID, req.PriorVotes, req.NewVotes)
		if err != nil {
			return fail(c, "failed to record votes", err)
		}
		return c.JSON(out)
	})

	activity.Post("/resolutions", func(c *fiber.Ctx) error {
		var req resolutionRequest
		if err := decode(c, &req); err != nil {
			return badRequest(c, err)
		}
		out, err := g.RecordResolutionContribution(c.UserContext(), req.UserID, req.IssueID)
		if err != nil {
			return fail(c, "failed to record resolution", err)
		}
		return c.JSON(out)
	})
}
