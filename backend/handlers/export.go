package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"georetail/backend/models"
	"georetail/backend/services"
	"georetail/backend/system"

	"github.com/gofiber/fiber/v2"
)

// ExportData is the JSON export document
type ExportData struct {
	ExportedAt time.Time          `json:"exported_at"`
	Scope      string             `json:"scope"`
	Filter     services.Filter    `json:"filter"`
	Dataset    models.DatasetInfo `json:"dataset"`
	Cities     []models.City      `json:"cities"`
}

// Export downloads the filtered cities as csv, xlsx or json
// GET /api/export?format=csv&scope=top
func (h *Handler) Export(c *fiber.Ctx) error {
	format := c.Query("format", "csv")
	scope := c.Query("scope", "top")
	if scope != "top" && scope != "all" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "scope must be top or all"})
	}

	f, err := parseFilter(c)
	if err != nil {
		return respondError(c, err)
	}

	var cities []models.City
	if scope == "top" {
		res, err := h.Ranking.Top(f)
		if err != nil {
			return respondError(c, err)
		}
		cities = res.Cities
	} else {
		if cities, err = h.Ranking.Matching(f); err != nil {
			return respondError(c, err)
		}
	}

	filename := fmt.Sprintf("georetail-%s-%s.%s", scope, time.Now().Format("2006-01-02"), format)

	var buf bytes.Buffer
	switch format {
	case "csv":
		err = services.WriteCSV(&buf, cities)
		c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	case "xlsx":
		err = services.WriteXLSX(&buf, cities)
		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	case "json":
		c.Set("Content-Disposition", "attachment; filename="+filename)
		return c.JSON(ExportData{
			ExportedAt: time.Now(),
			Scope:      scope,
			Filter:     f,
			Dataset:    h.Ranking.Info(),
			Cities:     cities,
		})
	default:
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "format must be csv, xlsx or json"})
	}
	if err != nil {
		return respondError(c, err)
	}

	system.Debug("Exported %d cities as %s", len(cities), format)
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(buf.Bytes())
}
