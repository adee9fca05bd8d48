package handlers

import (
	"errors"

	"civic-gamification/repository"
	"civic-gamification/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// decode parses the JSON body into req and validates its tags.
func decode(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return err
	}
	return validate.Struct(req)
}

// badRequest answers a body that failed decode, listing failing fields when known.
func badRequest(c *fiber.Ctx, err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid JSON",
			"cause": err.Error(),
		})
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fe.Field()] = fe.Tag()
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":  "validation failed",
		"cause":  err.Error(),
		"fields": fields,
	})
}

// fail maps service errors to a status and writes the usual {error, cause} body.
func fail(c *fiber.Ctx, msg string, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrMissingUser),
		errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidSource),
		errors.Is(err, services.ErrInvalidProgress),
		errors.Is(err, services.ErrInvalidTimeRange),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrInvalidChallenge),
		errors.Is(err, services.ErrInvalidAchievement):
		status = fiber.StatusBadRequest
	case errors.Is(err, services.ErrProfileNotFound),
		errors.Is(err, services.ErrAchievementNotFound),
		errors.Is(err, services.ErrChallengeNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, services.ErrNotJoined),
		errors.Is(err, repository.ErrDuplicate):
		status = fiber.StatusConflict
	}
	return c.Status(status).JSON(fiber.Map{
		"error": msg,
		"cause": err.Error(),
	})
}
