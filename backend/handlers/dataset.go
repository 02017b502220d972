package handlers

import (
	"net/http"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
)

const maxUploadBytes = 32 << 20

// ReloadDataset re-reads the configured dataset file. On failure the
// previous snapshot keeps being served.
// POST /api/dataset/reload
func (h *Handler) ReloadDataset(c *fiber.Ctx) error {
	info, err := h.Datasets.Reload()
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error":   err.Error(),
			"dataset": info,
		})
	}
	return c.JSON(fiber.Map{
		"message": "Dataset reloaded",
		"dataset": info,
		"skipped": h.Datasets.Skipped(),
	})
}

// UploadDataset replaces the snapshot with an uploaded csv or xlsx file
// POST /api/dataset/upload (multipart field "file")
func (h *Handler) UploadDataset(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Missing file field"})
	}
	if fh.Size > maxUploadBytes {
		return c.Status(http.StatusRequestEntityTooLarge).JSON(fiber.Map{"error": "File too large"})
	}

	f, err := fh.Open()
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Could not read upload"})
	}
	defer f.Close()

	info, err := h.Datasets.Import(filepath.Base(fh.Filename), f)
	if err != nil {
		status := errorStatus(err)
		if status == http.StatusUnprocessableEntity {
			status = http.StatusBadRequest
		}
		return c.Status(status).JSON(fiber.Map{
			"error":   err.Error(),
			"dataset": info,
		})
	}
	return c.JSON(fiber.Map{
		"message": "Dataset uploaded",
		"dataset": info,
		"skipped": h.Datasets.Skipped(),
	})
}

// GetSkippedRows lists the rows rejected by the last load
// GET /api/dataset/skipped
func (h *Handler) GetSkippedRows(c *fiber.Ctx) error {
	return c.JSON(h.Datasets.Skipped())
}
