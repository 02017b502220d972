package services

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"georetail/backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWebhookServer(t *testing.T, status int) (*httptest.Server, chan DiscordWebhookPayload) {
	t.Helper()
	received := make(chan DiscordWebhookPayload, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload DiscordWebhookPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err == nil {
			received <- payload
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, received
}

func TestWebhookDisabled(t *testing.T) {
	w := NewWebhookService("")
	assert.False(t, w.IsEnabled())
	assert.NoError(t, w.SendDatasetAlert(models.DatasetInfo{}, nil))
	assert.NoError(t, w.SendDigest(models.DatasetInfo{}, nil))
	assert.Error(t, w.SendTestAlert())

	var nilService *WebhookService
	assert.False(t, nilService.IsEnabled())
}

func TestWebhookDatasetAlert(t *testing.T) {
	srv, received := newWebhookServer(t, http.StatusNoContent)
	w := NewWebhookService(srv.URL)

	top := parseSample(t).Cities[1:3]
	info := models.DatasetInfo{Source: "cities.csv", Cities: 7, Skipped: 2, Continents: []string{"Asia", "Europe"}}
	require.NoError(t, w.SendDatasetAlert(info, top))

	payload := <-received
	require.Len(t, payload.Embeds, 1)
	embed := payload.Embeds[0]
	assert.Equal(t, ColorGreen, embed.Color)
	assert.Contains(t, embed.Description, "**7** cities")
	require.Len(t, embed.Fields, 3)
	assert.Equal(t, "2", embed.Fields[0].Value)
	assert.Equal(t, "1. **Tokyo** (JP) `91.00%`\n2. **Berlin** (DE) `74.00%`", embed.Fields[2].Value)
}

func TestWebhookErrorStatus(t *testing.T) {
	srv, _ := newWebhookServer(t, http.StatusBadRequest)
	w := NewWebhookService(srv.URL)

	err := w.SendReloadFailure("cities.csv", errors.New("boom"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestDailyReporter(t *testing.T) {
	srv, received := newWebhookServer(t, http.StatusOK)
	r := NewDailyReporter(newTestRanking(t, 2), NewWebhookService(srv.URL), 8)

	r.SendReport()

	payload := <-received
	require.Len(t, payload.Embeds, 1)
	assert.Equal(t, ColorBlue, payload.Embeds[0].Color)
	assert.Contains(t, payload.Embeds[0].Description, "1. **Tokyo**")
	assert.Contains(t, payload.Embeds[0].Description, "2. **Berlin**")
}

func TestDailyReporterStopTwice(t *testing.T) {
	srv, _ := newWebhookServer(t, http.StatusOK)
	r := NewDailyReporter(newTestRanking(t, 2), NewWebhookService(srv.URL), 3)
	r.Start()

	assert.NotPanics(t, func() {
		r.Stop()
		r.Stop()
	})
}

func TestNextDigest(t *testing.T) {
	loc := time.UTC
	now := time.Date(2024, 3, 10, 7, 30, 0, 0, loc)

	assert.Equal(t, time.Date(2024, 3, 10, 8, 0, 0, 0, loc), NextDigest(now, 8))
	assert.Equal(t, time.Date(2024, 3, 11, 7, 0, 0, 0, loc), NextDigest(now, 7))
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, loc), NextDigest(now, 0))

	exact := time.Date(2024, 3, 10, 8, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2024, 3, 11, 8, 0, 0, 0, loc), NextDigest(exact, 8))
}
