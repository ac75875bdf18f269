package tracking

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req PositionInput
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.Run == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "run required")
		}
		position, err := svc.AddPosition(c.Context(), req.Run, req)
		if err != nil {
			return fiber.NewError(statusFor(err), err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(position)
	})

	r.Get("/", func(c *fiber.Ctx) error {
		runID, err := runParam(c)
		if err != nil {
			return err
		}
		positions, err := svc.Positions(c.Context(), runID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(positions)
	})

	r.Get("/summary", func(c *fiber.Ctx) error {
		runID, err := runParam(c)
		if err != nil {
			return err
		}
		summary, err := svc.Summary(c.Context(), runID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(summary)
	})
}

func runParam(c *fiber.Ctx) (int64, error) {
	runID, err := strconv.ParseInt(c.Query("run"), 10, 64)
	if err != nil || runID <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "run query parameter required")
	}
	return runID, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrRunNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrRunNotActive),
		errors.Is(err, ErrInvalidCoordinates),
		errors.Is(err, ErrFixBeforeRunStart):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrLockTimeout):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}
