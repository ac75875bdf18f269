package coaching

import (
	"errors"

	"backend-projectrun/internal/auth"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/subscribe_to_coach/:id", authMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			Athlete string `json:"athlete"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
		}
		if body.Athlete == "" {
			body.Athlete = auth.CallerID(c)
		}
		if body.Athlete == "" {
			return fiber.NewError(fiber.StatusBadRequest, "athlete required")
		}
		sub, err := svc.Subscribe(c.Context(), body.Athlete, c.Params("id"))
		if err != nil {
			return fiber.NewError(statusFor(err), err.Error())
		}
		return c.JSON(sub)
	})

	r.Get("/analytics_for_coach/:id", func(c *fiber.Ctx) error {
		analytics, err := svc.Analytics(c.Context(), c.Params("id"))
		if err != nil {
			return fiber.NewError(statusFor(err), err.Error())
		}
		return c.JSON(analytics)
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrCoachNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrNotACoach), errors.Is(err, ErrNotAnAthlete), errors.Is(err, ErrAlreadySubscribed):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}
