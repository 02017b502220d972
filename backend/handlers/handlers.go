package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"georetail/backend/config"
	"georetail/backend/services"
	"georetail/backend/system"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"gorm.io/gorm"
)

type Handler struct {
	DB       *gorm.DB
	Config   *config.Config
	Ranking  *services.RankingService
	Datasets *services.DatasetManager
	Charts   *services.ChartRenderer
	Metrics  *services.Metrics
	Webhook  *services.WebhookService

	started time.Time
}

func NewHandler(db *gorm.DB, cfg *config.Config, ranking *services.RankingService, datasets *services.DatasetManager,
	metrics *services.Metrics, webhook *services.WebhookService) *Handler {
	return &Handler{
		DB:       db,
		Config:   cfg,
		Ranking:  ranking,
		Datasets: datasets,
		Charts:   services.NewChartRenderer(metrics),
		Metrics:  metrics,
		Webhook:  webhook,
		started:  time.Now(),
	}
}

// SetupRoutes registers the dashboard page and every API route
func SetupRoutes(app *fiber.App, h *Handler) {
	app.Get("/", h.Dashboard)
	app.Get("/metrics", adaptor.HTTPHandler(h.Metrics.Handler()))

	api := app.Group("/api")

	// ===== Public Routes =====
	api.Post("/login", h.Login)

	api.Get("/cities/top", h.GetTopCities)
	api.Get("/cities/bounds", h.GetBounds)
	api.Get("/cities", h.ListCities)

	api.Get("/map", h.GetMapView)
	api.Get("/map.geojson", h.GetMapGeoJSON)
	api.Get("/chart.png", h.GetChart)

	api.Get("/export", h.Export)

	api.Get("/presets", h.GetPresets)
	api.Get("/presets/:id", h.GetPreset)
	api.Get("/presets/:id/top", h.GetPresetTop)

	api.Get("/status", h.GetStatus)
	api.Get("/events", h.GetEvents)

	// ===== Protected Routes (JWT Required) =====
	protected := api.Group("", JWTAuthMiddleware([]byte(h.Config.Auth.JWTSecret)))

	protected.Put("/auth/password", h.ChangePassword)
	protected.Get("/users", h.GetUsers)
	protected.Post("/users", h.CreateUser)
	protected.Delete("/users/:id", h.DeleteUser)

	protected.Post("/presets", h.CreatePreset)
	protected.Put("/presets/:id", h.UpdatePreset)
	protected.Delete("/presets/:id", h.DeletePreset)

	protected.Post("/dataset/reload", h.ReloadDataset)
	protected.Post("/dataset/upload", h.UploadDataset)
	protected.Get("/dataset/skipped", h.GetSkippedRows)

	protected.Post("/webhook/test", h.TestWebhook)
}

// parseFilter reads the sidebar selection from the query string.
// continent may repeat or hold a comma separated list. The dashboard form
// sends filtered=1 so that unticking every continent matches nothing.
func parseFilter(c *fiber.Ctx) (services.Filter, error) {
	var f services.Filter

	args := c.Context().QueryArgs()
	raw := args.PeekMulti("continent")
	if len(raw) > 0 || c.Query("filtered") == "1" {
		f.ContinentsSet = true
	}
	for _, v := range raw {
		for _, part := range strings.Split(string(v), ",") {
			if part = strings.TrimSpace(part); part != "" {
				f.Continents = append(f.Continents, part)
			}
		}
	}

	var err error
	if f.GDPMin, err = floatParam(c, "gdp_min"); err != nil {
		return f, err
	}
	if f.GDPMax, err = floatParam(c, "gdp_max"); err != nil {
		return f, err
	}
	if f.StoresMin, err = intParam(c, "stores_min"); err != nil {
		return f, err
	}
	if f.StoresMax, err = intParam(c, "stores_max"); err != nil {
		return f, err
	}
	return f.Normalize(), nil
}

func floatParam(c *fiber.Ctx, name string) (*float64, error) {
	s := strings.TrimSpace(c.Query(name))
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a number, got %q", services.ErrInvalidFilter, name, s)
	}
	return &v, nil
}

func intParam(c *fiber.Ctx, name string) (*int, error) {
	s := strings.TrimSpace(c.Query(name))
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		// Accept 12.0 from number inputs
		fv, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || fv != float64(int(fv)) {
			return nil, fmt.Errorf("%w: %s must be a whole number, got %q", services.ErrInvalidFilter, name, s)
		}
		v = int(fv)
	}
	return &v, nil
}

// errorStatus maps service errors onto HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidFilter):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrPresetNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrEmptyDataset),
		errors.Is(err, services.ErrMissingColumn),
		errors.Is(err, services.ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *fiber.Ctx, err error) error {
	status := errorStatus(err)
	if status >= 500 {
		system.Error("%s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
