package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// GetTopCities returns the top ranked cities for the current filter
// GET /api/cities/top
func (h *Handler) GetTopCities(c *fiber.Ctx) error {
	f, err := parseFilter(c)
	if err != nil {
		return respondError(c, err)
	}

	res, err := h.Ranking.Top(f)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"filter":  res.Filter,
		"count":   len(res.Cities),
		"matched": res.Matched,
		"empty":   res.Empty(),
		"message": emptyMessage(res.Empty()),
		"cities":  res.Cities,
	})
}

// ListCities pages through every matching city
// GET /api/cities?page=1&limit=50
func (h *Handler) ListCities(c *fiber.Ctx) error {
	f, err := parseFilter(c)
	if err != nil {
		return respondError(c, err)
	}

	page, err := h.Ranking.List(f, c.QueryInt("page", 1), c.QueryInt("limit", 0))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// GetBounds returns the sidebar defaults
// GET /api/cities/bounds
func (h *Handler) GetBounds(c *fiber.Ctx) error {
	b, err := h.Ranking.Bounds()
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(b)
}

// EmptyMessage is shown instead of the map and chart when nothing matches
const EmptyMessage = "No cities match the selected filters."

func emptyMessage(empty bool) string {
	if empty {
		return EmptyMessage
	}
	return ""
}
