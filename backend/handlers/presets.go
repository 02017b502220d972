package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"georetail/backend/models"
	"georetail/backend/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// GetPresets returns all saved filters
// GET /api/presets
func (h *Handler) GetPresets(c *fiber.Ctx) error {
	var presets []models.FilterPreset
	if err := h.DB.Order("name ASC").Find(&presets).Error; err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(presets)
}

// GetPreset returns one saved filter
// GET /api/presets/:id
func (h *Handler) GetPreset(c *fiber.Ctx) error {
	preset, err := h.findPreset(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(preset)
}

// GetPresetTop runs a saved filter
// GET /api/presets/:id/top
func (h *Handler) GetPresetTop(c *fiber.Ctx) error {
	preset, err := h.findPreset(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	res, err := h.Ranking.Top(presetFilter(*preset))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"preset":  preset,
		"filter":  res.Filter,
		"count":   len(res.Cities),
		"matched": res.Matched,
		"empty":   res.Empty(),
		"message": emptyMessage(res.Empty()),
		"cities":  res.Cities,
	})
}

// CreatePreset saves a filter
// POST /api/presets
func (h *Handler) CreatePreset(c *fiber.Ctx) error {
	var input models.FilterPreset
	if err := c.BodyParser(&input); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input"})
	}
	input.ID = 0

	if err := preparePreset(&input); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if h.presetNameTaken(input.Name, 0) {
		return c.Status(http.StatusConflict).JSON(fiber.Map{"error": "A preset with this name already exists"})
	}

	if err := h.DB.Create(&input).Error; err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	AddEvent("info", "Preset created: "+input.Name)
	return c.Status(http.StatusCreated).JSON(input)
}

// UpdatePreset replaces a saved filter
// PUT /api/presets/:id
func (h *Handler) UpdatePreset(c *fiber.Ctx) error {
	preset, err := h.findPreset(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	var input models.FilterPreset
	if err := c.BodyParser(&input); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input"})
	}
	if err := preparePreset(&input); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if h.presetNameTaken(input.Name, preset.ID) {
		return c.Status(http.StatusConflict).JSON(fiber.Map{"error": "A preset with this name already exists"})
	}

	preset.Name = input.Name
	preset.Description = input.Description
	preset.Continents = input.Continents
	preset.GDPMin = input.GDPMin
	preset.GDPMax = input.GDPMax
	preset.StoresMin = input.StoresMin
	preset.StoresMax = input.StoresMax

	if err := h.DB.Save(preset).Error; err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(preset)
}

// DeletePreset removes a saved filter
// DELETE /api/presets/:id
func (h *Handler) DeletePreset(c *fiber.Ctx) error {
	preset, err := h.findPreset(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	if err := h.DB.Delete(preset).Error; err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *Handler) findPreset(id string) (*models.FilterPreset, error) {
	var preset models.FilterPreset
	if err := h.DB.First(&preset, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrPresetNotFound
		}
		return nil, err
	}
	return &preset, nil
}

func (h *Handler) presetNameTaken(name string, exceptID uint) bool {
	var count int64
	h.DB.Model(&models.FilterPreset{}).Where("name = ? AND id <> ?", name, exceptID).Count(&count)
	return count > 0
}

// preparePreset trims the name, normalizes continent names and checks
// that the stored bounds form a valid filter.
func preparePreset(p *models.FilterPreset) error {
	p.Name = strings.TrimSpace(p.Name)

	var names []string
	for _, part := range strings.Split(p.Continents, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, ok := services.CanonicalContinent(part)
		if !ok {
			return fmt.Errorf("unknown continent %q", part)
		}
		names = append(names, name)
	}
	p.Continents = strings.Join(services.SortContinents(dedupe(names)), ",")

	if err := services.ValidateStruct(p); err != nil {
		return err
	}
	return presetFilter(*p).Validate()
}

// presetFilter turns a preset into a query filter. A preset without
// continents covers all of them.
func presetFilter(p models.FilterPreset) services.Filter {
	f := services.Filter{
		GDPMin:    p.GDPMin,
		GDPMax:    p.GDPMax,
		StoresMin: p.StoresMin,
		StoresMax: p.StoresMax,
	}
	if p.Continents != "" {
		f.Continents = strings.Split(p.Continents, ",")
		f.ContinentsSet = true
	}
	return f
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
