package handlers

import (
	"bytes"
	"net/http"
	"time"

	"georetail/backend/services"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) mapOptions() services.MapOptions {
	m := h.Config.Map
	return services.MapOptions{
		Tiles:       m.Tiles,
		Zoom:        m.Zoom,
		MarkerColor: m.MarkerColor,
		FillOpacity: m.FillOpacity,
		Width:       m.Width,
		Height:      m.Height,
	}
}

func (h *Handler) buildMap(res *services.TopResult) services.MapView {
	start := time.Now()
	view := services.BuildMapView(res.Cities, h.mapOptions())
	h.Metrics.ObserveRender("map", time.Since(start))
	return view
}

// GetMapView returns the map description the dashboard draws with Leaflet
// GET /api/map
func (h *Handler) GetMapView(c *fiber.Ctx) error {
	f, err := parseFilter(c)
	if err != nil {
		return respondError(c, err)
	}
	res, err := h.Ranking.Top(f)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(h.buildMap(res))
}

// GetMapGeoJSON returns the same markers as a FeatureCollection
// GET /api/map.geojson
func (h *Handler) GetMapGeoJSON(c *fiber.Ctx) error {
	f, err := parseFilter(c)
	if err != nil {
		return respondError(c, err)
	}
	res, err := h.Ranking.Top(f)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(h.buildMap(res).GeoJSON(), "application/geo+json")
}

// GetChart renders the score comparison bar chart, 204 when nothing matches
// GET /api/chart.png
func (h *Handler) GetChart(c *fiber.Ctx) error {
	f, err := parseFilter(c)
	if err != nil {
		return respondError(c, err)
	}
	res, err := h.Ranking.Top(f)
	if err != nil {
		return respondError(c, err)
	}
	if res.Empty() {
		return c.SendStatus(http.StatusNoContent)
	}

	var buf bytes.Buffer
	if err := h.Charts.Render(res.Cities, &buf); err != nil {
		return respondError(c, err)
	}

	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	return c.Send(buf.Bytes())
}
