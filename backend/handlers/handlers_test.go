package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"georetail/backend/config"
	"georetail/backend/services"

	"github.com/andreiashu/geobed"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCSV = `name,countrycode,latitude,longitude,gdp_per_capita,store_count,econ_viability,expansion_score
Lagos,NG,6.45,3.39,2100,3,0.41,0.52
Tokyo,JP,35.68,139.69,40000,120,0.88,0.91
Berlin,DE,52.52,13.40,48000,40,0.79,0.74
Austin,US,30.27,-97.74,65000,25,0.81,0.74
Sydney,AU,-33.87,151.21,55000,30,0.77,0.66
Sao Paulo,BR,-23.55,-46.63,9000,15,0.55,0.61
`

var testCountries = []geobed.CountryInfo{
	{ISO: "NG", Continent: "AF"},
	{ISO: "JP", Continent: "AS"},
	{ISO: "DE", Continent: "EU"},
	{ISO: "US", Continent: "NA"},
	{ISO: "AU", Continent: "OC"},
	{ISO: "BR", Continent: "SA"},
	{ISO: "CO", Continent: "SA"},
	{ISO: "PE", Continent: "SA"},
}

const (
	testUser     = "admin"
	testPassword = "admin123!"
)

func setupApp(t *testing.T) (*fiber.App, *Handler) {
	t.Helper()

	db, err := services.OpenDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	require.NoError(t, SeedAdmin(db, testUser, testPassword))

	path := filepath.Join(t.TempDir(), "cities.csv")
	require.NoError(t, os.WriteFile(path, []byte(testCSV), 0o644))

	cfg := config.Defaults()
	cfg.Data.CSVPath = path
	cfg.Auth.JWTSecret = "test-secret"

	metrics := services.NewMetrics()
	ranking := services.NewRankingService(services.NewCityStore(db), cfg.Dashboard.TopN, cfg.Dashboard.CacheTTL, metrics)
	webhook := services.NewWebhookService("")
	datasets := services.NewDatasetManager(path, services.NewContinentResolverFrom(testCountries), ranking, webhook)
	_, err = datasets.Reload()
	require.NoError(t, err)

	h := NewHandler(db, cfg, ranking, datasets, metrics, webhook)
	app := fiber.New()
	SetupRoutes(app, h)
	return app, h
}

func doRequest(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, body
}

func get(t *testing.T, app *fiber.App, target string) (*http.Response, []byte) {
	t.Helper()
	return doRequest(t, app, httptest.NewRequest(http.MethodGet, target, nil))
}

func sendJSON(t *testing.T, app *fiber.App, method, target string, body interface{}, token string) (*http.Response, []byte) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return doRequest(t, app, req)
}

type topResponse struct {
	Count   int    `json:"count"`
	Matched int64  `json:"matched"`
	Empty   bool   `json:"empty"`
	Message string `json:"message"`
	Cities  []struct {
		Name      string  `json:"name"`
		Continent string  `json:"continent"`
		Score     float64 `json:"expansion_score"`
	} `json:"cities"`
}

func decodeTop(t *testing.T, body []byte) topResponse {
	t.Helper()
	var out topResponse
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestGetTopCities(t *testing.T) {
	app, _ := setupApp(t)

	resp, body := get(t, app, "/api/cities/top")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	top := decodeTop(t, body)
	assert.Equal(t, 6, top.Count)
	assert.False(t, top.Empty)
	assert.Empty(t, top.Message)
	assert.Equal(t, "Tokyo", top.Cities[0].Name)
	// Equal scores keep file order
	assert.Equal(t, "Berlin", top.Cities[1].Name)
	assert.Equal(t, "Austin", top.Cities[2].Name)

	resp, body = get(t, app, "/api/cities/top?continent=europe&continent=Asia&gdp_min=45000")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	top = decodeTop(t, body)
	require.Len(t, top.Cities, 1)
	assert.Equal(t, "Berlin", top.Cities[0].Name)

	resp, body = get(t, app, "/api/cities/top?continent=North%20America,South%20America&stores_max=20")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	top = decodeTop(t, body)
	require.Len(t, top.Cities, 1)
	assert.Equal(t, "Sao Paulo", top.Cities[0].Name)
}

func TestGetTopCitiesEmptySelection(t *testing.T) {
	app, _ := setupApp(t)

	resp, body := get(t, app, "/api/cities/top?filtered=1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	top := decodeTop(t, body)
	assert.True(t, top.Empty)
	assert.Zero(t, top.Count)
	assert.Equal(t, EmptyMessage, top.Message)

	_, body = get(t, app, "/api/cities/top?gdp_min=100000")
	assert.True(t, decodeTop(t, body).Empty)
}

func TestGetTopCitiesInvalidFilter(t *testing.T) {
	app, _ := setupApp(t)

	for _, query := range []string{
		"gdp_min=abc",
		"stores_min=1.5",
		"gdp_min=50000&gdp_max=1000",
		"stores_min=-3",
	} {
		resp, body := get(t, app, "/api/cities/top?"+query)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, query)
		assert.Contains(t, string(body), "error", query)
	}

	resp, _ := get(t, app, "/api/cities/top?stores_min=12.0")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListCitiesAndBounds(t *testing.T) {
	app, _ := setupApp(t)

	resp, body := get(t, app, "/api/cities?page=2&limit=4")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page services.Page
	require.NoError(t, json.Unmarshal(body, &page))
	assert.Equal(t, int64(6), page.Total)
	assert.Equal(t, 2, page.Page)
	require.Len(t, page.Cities, 2)
	assert.Equal(t, "Sao Paulo", page.Cities[0].Name)
	assert.Equal(t, "Lagos", page.Cities[1].Name)

	resp, body = get(t, app, "/api/cities/bounds")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var bounds map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &bounds))
	assert.InDelta(t, 2100, bounds["gdp_min"], 1e-9)
	assert.InDelta(t, 65000, bounds["gdp_max"], 1e-9)
	assert.InDelta(t, 120, bounds["stores_max"], 1e-9)
}

func TestMapEndpoints(t *testing.T) {
	app, _ := setupApp(t)

	resp, body := get(t, app, "/api/map?continent=Asia")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view services.MapView
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, services.DefaultZoom, view.Zoom)
	require.Len(t, view.Markers, 1)
	assert.Equal(t, "Tokyo", view.Markers[0].Name)
	assert.Equal(t, "Tokyo (JP) — Score: 0.910", view.Markers[0].Popup)

	resp, body = get(t, app, "/api/map.geojson")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/geo+json")
	var fc services.FeatureCollection
	require.NoError(t, json.Unmarshal(body, &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Len(t, fc.Features, 6)
}

func TestGetChart(t *testing.T) {
	app, _ := setupApp(t)

	resp, body := get(t, app, "/api/chart.png?continent=Europe,Asia")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(body, []byte("\x89PNG")))

	resp, _ = get(t, app, "/api/chart.png?filtered=1")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestExport(t *testing.T) {
	app, _ := setupApp(t)

	resp, body := get(t, app, "/api/export?format=csv&continent=Europe")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "georetail-top-")
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "1,Berlin,DE,Europe,"))

	resp, body = get(t, app, "/api/export?format=json&scope=all")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var doc ExportData
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Equal(t, "all", doc.Scope)
	assert.Len(t, doc.Cities, 6)
	assert.Equal(t, 6, doc.Dataset.Cities)

	resp, _ = get(t, app, "/api/export?format=xlsx")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = get(t, app, "/api/export?format=pdf")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = get(t, app, "/api/export?scope=some")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func createPreset(t *testing.T, app *fiber.App, token string, body map[string]interface{}) string {
	t.Helper()
	resp, data := sendJSON(t, app, http.MethodPost, "/api/presets", body, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	var created struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(data, &created))
	return strconv.FormatUint(uint64(created.ID), 10)
}

func TestPresetLifecycle(t *testing.T) {
	app, _ := setupApp(t)
	_, token := login(t, app, testPassword)
	require.NotEmpty(t, token)

	resp, body := sendJSON(t, app, http.MethodPost, "/api/presets", map[string]interface{}{
		"name":       "Rich Europe",
		"continents": "europe, Europe",
		"gdp_min":    45000,
	}, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created struct {
		ID         uint   `json:"id"`
		Continents string `json:"continents"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "Europe", created.Continents)

	resp, _ = sendJSON(t, app, http.MethodPost, "/api/presets", map[string]interface{}{"name": "Rich Europe"}, token)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = sendJSON(t, app, http.MethodPost, "/api/presets", map[string]interface{}{
		"name": "Broken", "continents": "Atlantis",
	}, token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = sendJSON(t, app, http.MethodPost, "/api/presets", map[string]interface{}{
		"name": "Inverted", "stores_min": 50, "stores_max": 10,
	}, token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	id := strconv.FormatUint(uint64(created.ID), 10)
	resp, body = get(t, app, "/api/presets/"+id+"/top")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	top := decodeTop(t, body)
	require.Len(t, top.Cities, 1)
	assert.Equal(t, "Berlin", top.Cities[0].Name)

	resp, body = sendJSON(t, app, http.MethodPut, "/api/presets/"+id, map[string]interface{}{
		"name": "Everywhere",
	}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	_, body = get(t, app, "/api/presets/"+id+"/top")
	assert.Len(t, decodeTop(t, body).Cities, 6)

	req := httptest.NewRequest(http.MethodDelete, "/api/presets/"+id, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, _ = doRequest(t, app, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = get(t, app, "/api/presets/"+id)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPresetWritesRequireLogin(t *testing.T) {
	app, _ := setupApp(t)
	_, token := login(t, app, testPassword)
	id := createPreset(t, app, token, map[string]interface{}{"name": "Asia", "continents": "Asia"})

	resp, _ := sendJSON(t, app, http.MethodPost, "/api/presets", map[string]interface{}{"name": "Anon"}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = sendJSON(t, app, http.MethodPut, "/api/presets/"+id, map[string]interface{}{"name": "Renamed"}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doRequest(t, app, httptest.NewRequest(http.MethodDelete, "/api/presets/"+id, nil))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := get(t, app, "/api/presets/"+id)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"name":"Asia"`)

	resp, _ = get(t, app, "/api/presets")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDashboardPresetParamIsBound(t *testing.T) {
	app, _ := setupApp(t)
	_, token := login(t, app, testPassword)
	id := createPreset(t, app, token, map[string]interface{}{"name": "Asia", "continents": "Asia"})

	resp, body := get(t, app, "/?preset="+id)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "<td>Tokyo</td>")
	assert.NotContains(t, string(body), "<td>Berlin</td>")

	for _, raw := range []string{
		"0 OR 1=1",
		"0 OR (SELECT substr(password,1,4) FROM admins WHERE username='admin')='$2a$'",
		id + " OR 1=1",
	} {
		resp, body := get(t, app, "/?preset="+url.QueryEscape(raw))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, raw)
		assert.Contains(t, string(body), "Preset not found", raw)
	}
}

func login(t *testing.T, app *fiber.App, password string) (*http.Response, string) {
	t.Helper()
	resp, body := sendJSON(t, app, http.MethodPost, "/api/login", LoginRequest{Username: testUser, Password: password}, "")
	var out struct {
		Token string `json:"token"`
	}
	_ = json.Unmarshal(body, &out)
	return resp, out.Token
}

func TestProtectedRoutes(t *testing.T) {
	app, _ := setupApp(t)

	resp, _ := doRequest(t, app, httptest.NewRequest(http.MethodPost, "/api/dataset/reload", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, token := login(t, app, testPassword)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, token)

	req := httptest.NewRequest(http.MethodPost, "/api/dataset/reload", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, body := doRequest(t, app, req)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), "Dataset reloaded")

	req = httptest.NewRequest(http.MethodGet, "/api/dataset/skipped", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, _ = doRequest(t, app, req)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginLockout(t *testing.T) {
	app, _ := setupApp(t)

	for i := 0; i < maxFailedAttempts; i++ {
		resp, _ := login(t, app, "wrong-password")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp, _ := login(t, app, testPassword)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestDashboard(t *testing.T) {
	app, _ := setupApp(t)

	resp, body := get(t, app, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	page := string(body)
	assert.Contains(t, page, "<title>GeoRetail AI Dashboard</title>")
	assert.Contains(t, page, "GeoRetail AI: Retail Expansion Hotspots")
	assert.Contains(t, page, "Top 10 Expansion Cities Map")
	assert.Contains(t, page, "Expansion Score Comparison")
	assert.Contains(t, page, "/api/chart.png?")
	assert.NotContains(t, page, EmptyMessage)

	_, body = get(t, app, "/?filtered=1")
	assert.Contains(t, string(body), EmptyMessage)
	assert.NotContains(t, string(body), "/api/chart.png?")

	resp, _ = get(t, app, "/?gdp_min=abc")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatusAndMetrics(t *testing.T) {
	app, _ := setupApp(t)
	AddEvent("info", "status test event")

	resp, body := get(t, app, "/api/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status Status
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, 6, status.Dataset.Cities)
	assert.Equal(t, 10, status.TopN)
	assert.False(t, status.Webhook)
	require.NotEmpty(t, status.Events)
	assert.Equal(t, "status test event", status.Events[0].Message)

	_, _ = get(t, app, "/api/cities/top")
	resp, body = get(t, app, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "georetail_cities_loaded 6")
	assert.Contains(t, string(body), `georetail_filter_queries_total{kind="top"}`)
}

func uploadRequest(t *testing.T, filename, content, token string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/dataset/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestUploadDataset(t *testing.T) {
	app, h := setupApp(t)
	_, token := login(t, app, testPassword)
	require.NotEmpty(t, token)

	header := strings.SplitN(testCSV, "\n", 2)[0]
	resp, body := doRequest(t, app, uploadRequest(t, "latam.csv",
		header+"\nLima,PE,-12.05,-77.04,7000,8,0.5,0.8\nBogota,CO,4.71,-74.07,,5,0.4,0.6\n", token))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "upload:latam.csv", h.Ranking.Info().Source)
	assert.Equal(t, 1, h.Ranking.Info().Skipped)

	_, body = get(t, app, "/api/cities/top")
	top := decodeTop(t, body)
	require.Len(t, top.Cities, 1)
	assert.Equal(t, "Lima", top.Cities[0].Name)

	resp, _ = doRequest(t, app, uploadRequest(t, "notes.txt", "hello", token))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "upload:latam.csv", h.Ranking.Info().Source)
}

func TestUserManagement(t *testing.T) {
	app, _ := setupApp(t)
	_, token := login(t, app, testPassword)
	require.NotEmpty(t, token)

	resp, _ := sendJSON(t, app, http.MethodPost, "/api/users", map[string]string{"username": "analyst", "password": "short"}, token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = sendJSON(t, app, http.MethodPost, "/api/users", map[string]string{"username": "analyst", "password": "long-enough"}, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	_, body := doRequest(t, app, req)
	var users []struct {
		ID       uint   `json:"id"`
		Username string `json:"username"`
	}
	require.NoError(t, json.Unmarshal(body, &users))
	require.Len(t, users, 2)
	assert.NotContains(t, string(body), "password")

	del := func(id uint) int {
		req := httptest.NewRequest(http.MethodDelete, "/api/users/"+strconv.FormatUint(uint64(id), 10), nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, _ := doRequest(t, app, req)
		return resp.StatusCode
	}
	assert.Equal(t, http.StatusOK, del(users[1].ID))
	assert.Equal(t, http.StatusConflict, del(users[0].ID))
}
