package challenge

import "github.com/gofiber/fiber/v2"

// RegisterRoutes mounts the read-only challenge endpoints on the api group.
func RegisterRoutes(r fiber.Router, e *Engine) {
	r.Get("/challenges", func(c *fiber.Ctx) error {
		list, err := e.List(c.Context(), c.Query("athlete"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(list)
	})

	r.Get("/challenges_summary", func(c *fiber.Ctx) error {
		summary, err := e.Summary(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(summary)
	})
}
