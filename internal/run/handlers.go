package run

import (
	"errors"
	"strconv"

	"backend-projectrun/internal/auth"
	"backend-projectrun/internal/shared/runstate"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req Run
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.AthleteID == "" {
			req.AthleteID = auth.CallerID(c)
		}
		if req.AthleteID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "athlete required")
		}
		run, err := svc.CreateRun(c.Context(), req)
		if err != nil {
			return fiber.NewError(statusFor(err), err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(run)
	})

	r.Get("/", func(c *fiber.Ctx) error {
		f := Filter{AthleteID: c.Query("athlete")}
		if s := c.Query("status"); s != "" {
			st, err := runstate.Parse(s)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			f.Status = st
		}
		runs, err := svc.ListRuns(c.Context(), f)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(runs)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		id, err := idParam(c)
		if err != nil {
			return err
		}
		run, err := svc.GetRun(c.Context(), id)
		if err != nil {
			return fiber.NewError(statusFor(err), err.Error())
		}
		return c.JSON(run)
	})

	r.Patch("/:id", authMiddleware, func(c *fiber.Ctx) error {
		id, err := idParam(c)
		if err != nil {
			return err
		}
		var body struct {
			Comment string `json:"comment"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		run, err := svc.UpdateComment(c.Context(), id, body.Comment)
		if err != nil {
			return fiber.NewError(statusFor(err), err.Error())
		}
		return c.JSON(run)
	})

	r.Delete("/:id", authMiddleware, func(c *fiber.Ctx) error {
		id, err := idParam(c)
		if err != nil {
			return err
		}
		if err := svc.DeleteRun(c.Context(), id); err != nil {
			return fiber.NewError(statusFor(err), err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Post("/:id/start", authMiddleware, func(c *fiber.Ctx) error {
		id, err := idParam(c)
		if err != nil {
			return err
		}
		if _, err := svc.Start(c.Context(), id); err != nil {
			return detail(c, err)
		}
		return c.JSON(fiber.Map{"detail": "Run started"})
	})

	r.Post("/:id/stop", authMiddleware, func(c *fiber.Ctx) error {
		id, err := idParam(c)
		if err != nil {
			return err
		}
		res, err := svc.Stop(c.Context(), id)
		if err != nil {
			return detail(c, err)
		}
		return c.JSON(fiber.Map{"detail": "Run stopped", "run": res.Run, "challenges": res.Challenges})
	})
}

// detail keeps the {"detail": ...} body for state-machine refusals so clients
// can read the reason the same way as a success.
func detail(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	if code == fiber.StatusInternalServerError {
		return fiber.NewError(code, err.Error())
	}
	msg := err.Error()
	if errors.Is(err, ErrInvalidTransition) {
		msg = "Wrong run status"
	}
	return c.Status(code).JSON(fiber.Map{"detail": msg})
}

func idParam(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid run id")
	}
	return id, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrRunNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrAthleteNotFound):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}
