package handlers

import (
	"net/http"
	"runtime"
	"sync"
	"time"

	"georetail/backend/models"
	"georetail/backend/system"

	"github.com/gofiber/fiber/v2"
)

// Status is the service overview returned by /api/status
type Status struct {
	Dataset    models.DatasetInfo `json:"dataset"`
	Path       string             `json:"path"`
	TopN       int                `json:"top_n"`
	CacheItems int                `json:"cache_items"`
	Uptime     string             `json:"uptime"`
	GoVersion  string             `json:"go_version"`
	Webhook    bool               `json:"webhook"`
	Events     []SystemEvent      `json:"events"`
}

type SystemEvent struct {
	Time    string `json:"time"`
	Type    string `json:"type"` // info, warning, error, success
	Message string `json:"message"`
}

const maxEvents = 100

var (
	eventLog   []SystemEvent
	eventMutex sync.RWMutex
)

// AddEvent records an event, newest first, and mirrors it to the log
func AddEvent(eventType, message string) {
	eventMutex.Lock()
	event := SystemEvent{
		Time:    time.Now().Format("15:04:05"),
		Type:    eventType,
		Message: message,
	}
	eventLog = append([]SystemEvent{event}, eventLog...)
	if len(eventLog) > maxEvents {
		eventLog = eventLog[:maxEvents]
	}
	eventMutex.Unlock()

	switch eventType {
	case "error":
		system.Error("%s", message)
	case "warning":
		system.Warn("%s", message)
	default:
		system.Info("%s", message)
	}
}

// GetEventLog returns a copy of the event log
func GetEventLog() []SystemEvent {
	eventMutex.RLock()
	defer eventMutex.RUnlock()

	result := make([]SystemEvent, len(eventLog))
	copy(result, eventLog)
	return result
}

// GetStatus returns the snapshot summary and recent events
// GET /api/status
func (h *Handler) GetStatus(c *fiber.Ctx) error {
	return c.JSON(Status{
		Dataset:    h.Ranking.Info(),
		Path:       h.Datasets.Path(),
		TopN:       h.Ranking.TopN(),
		CacheItems: h.Ranking.CacheItems(),
		Uptime:     time.Since(h.started).Round(time.Second).String(),
		GoVersion:  runtime.Version(),
		Webhook:    h.Webhook.IsEnabled(),
		Events:     GetEventLog(),
	})
}

// GetEvents returns recent events
// GET /api/events
func (h *Handler) GetEvents(c *fiber.Ctx) error {
	return c.JSON(GetEventLog())
}

// TestWebhook sends a test notification to the configured Discord webhook
// POST /api/webhook/test
func (h *Handler) TestWebhook(c *fiber.Ctx) error {
	if !h.Webhook.IsEnabled() {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Discord webhook URL not configured"})
	}
	if err := h.Webhook.SendTestAlert(); err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "Test notification sent successfully"})
}
