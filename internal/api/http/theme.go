package httpapi

import "github.com/gofiber/fiber/v2"

func (h *handler) getTheme(c *fiber.Ctx) error {
	return c.JSON(h.Theme.State())
}

func (h *handler) themeEvents(c *fiber.Ctx) error {
	h.stream(c, h.Theme, "feature", "theme")
	return nil
}

func (h *handler) toggleTheme(c *fiber.Ctx) error {
	return c.JSON(h.Theme.Toggle())
}

func (h *handler) automaticTheme(c *fiber.Ctx) error {
	return c.JSON(h.Theme.SetAutomatic())
}
