package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"georetail/backend/models"
	"georetail/backend/system"
)

// WebhookService posts dashboard notifications to a Discord webhook
type WebhookService struct {
	webhookURL string
	enabled    bool
	client     *http.Client
}

// DiscordEmbed represents a Discord embed object
type DiscordEmbed struct {
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	Color       int                 `json:"color,omitempty"`
	Fields      []DiscordEmbedField `json:"fields,omitempty"`
	Footer      *DiscordEmbedFooter `json:"footer,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
}

type DiscordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type DiscordEmbedFooter struct {
	Text string `json:"text"`
}

// DiscordWebhookPayload represents a Discord webhook message
type DiscordWebhookPayload struct {
	Username string         `json:"username,omitempty"`
	Content  string         `json:"content,omitempty"`
	Embeds   []DiscordEmbed `json:"embeds,omitempty"`
}

func NewWebhookService(url string) *WebhookService {
	w := &WebhookService{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	w.SetWebhookURL(url)
	return w
}

func (w *WebhookService) SetWebhookURL(url string) {
	w.webhookURL = url
	w.enabled = url != ""
}

func (w *WebhookService) IsEnabled() bool {
	return w != nil && w.enabled && w.webhookURL != ""
}

// Discord color constants
const (
	ColorRed    = 0xDC143C // Failure
	ColorOrange = 0xFFAA00 // Warning
	ColorGreen  = 0x2ECC71 // Reloaded
	ColorBlue   = 0x00AAFF // Digest
)

const webhookFooter = "GeoRetail AI"

// SendDatasetAlert announces a new snapshot and its leading cities
func (w *WebhookService) SendDatasetAlert(info models.DatasetInfo, top []models.City) error {
	if !w.IsEnabled() {
		return nil
	}

	embed := DiscordEmbed{
		Title:       "📦 Dataset Reloaded",
		Description: fmt.Sprintf("Loaded **%d** cities from `%s`", info.Cities, info.Source),
		Color:       ColorGreen,
		Fields: []DiscordEmbedField{
			{Name: "Skipped Rows", Value: fmt.Sprintf("%d", info.Skipped), Inline: true},
			{Name: "Continents", Value: fmt.Sprintf("%d", len(info.Continents)), Inline: true},
			{Name: "Top Cities", Value: rankingLines(top), Inline: false},
		},
		Footer:    &DiscordEmbedFooter{Text: webhookFooter},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	return w.sendEmbed(embed)
}

// SendReloadFailure reports a reload that left the previous snapshot in place
func (w *WebhookService) SendReloadFailure(source string, cause error) error {
	if !w.IsEnabled() {
		return nil
	}
	return w.SendSystemAlert("🚨 Dataset Reload Failed",
		fmt.Sprintf("Could not load `%s`: %v\nThe previous snapshot is still served.", source, cause), ColorRed)
}

// SendDigest posts the current ranking
func (w *WebhookService) SendDigest(info models.DatasetInfo, top []models.City) error {
	if !w.IsEnabled() {
		return nil
	}

	embed := DiscordEmbed{
		Title:       fmt.Sprintf("📊 Daily Expansion Digest (%s)", time.Now().Format("2006-01-02")),
		Description: rankingLines(top),
		Color:       ColorBlue,
		Fields: []DiscordEmbedField{
			{Name: "Cities", Value: fmt.Sprintf("%d", info.Cities), Inline: true},
			{Name: "Loaded At", Value: info.LoadedAt.Format("2006-01-02 15:04:05"), Inline: true},
		},
		Footer:    &DiscordEmbedFooter{Text: webhookFooter},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	return w.sendEmbed(embed)
}

// SendSystemAlert sends a plain titled message
func (w *WebhookService) SendSystemAlert(title, description string, color int) error {
	if !w.IsEnabled() {
		return nil
	}
	return w.sendEmbed(DiscordEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Footer:      &DiscordEmbedFooter{Text: webhookFooter},
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	})
}

// SendTestAlert verifies webhook connectivity
func (w *WebhookService) SendTestAlert() error {
	if !w.IsEnabled() {
		return fmt.Errorf("webhook not configured")
	}
	return w.SendSystemAlert("✅ Webhook Test", "Discord webhook is configured correctly!", ColorGreen)
}

func rankingLines(top []models.City) string {
	if len(top) == 0 {
		return "No cities loaded"
	}
	var b strings.Builder
	for i, c := range top {
		fmt.Fprintf(&b, "%d. **%s** (%s) `%.2f%%`\n", i+1, c.Name, c.CountryCode, c.ScorePercent())
	}
	return strings.TrimRight(b.String(), "\n")
}

func (w *WebhookService) sendEmbed(embed DiscordEmbed) error {
	payload := DiscordWebhookPayload{
		Username: "GeoRetail",
		Embeds:   []DiscordEmbed{embed},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequest("POST", w.webhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned error status: %d", resp.StatusCode)
	}

	system.Debug("Discord webhook sent: %s", embed.Title)
	return nil
}
