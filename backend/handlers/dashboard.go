package handlers

import (
	"bytes"
	"embed"
	"html/template"
	"strconv"

	"georetail/backend/models"
	"georetail/backend/services"

	"github.com/gofiber/fiber/v2"
)

//go:embed templates/*.html
var templateFS embed.FS

var dashboardTmpl = template.Must(template.New("dashboard.html").Funcs(template.FuncMap{
	"pct": func(score float64) string {
		return strconv.FormatFloat(score*100, 'f', 2, 64) + "%"
	},
	"inc": func(i int) int { return i + 1 },
}).ParseFS(templateFS, "templates/dashboard.html"))

type dashboardPage struct {
	PageTitle string
	Title     string
	TopN      int

	Continents []string
	Selected   map[string]bool
	GDPMin     string
	GDPMax     string
	StoresMin  string
	StoresMax  string
	Presets    []models.FilterPreset
	PresetID   string

	Error    string
	Empty    bool
	Message  string
	Map      services.MapView
	ChartURL string
	Cities   []models.City
	Matched  int64
	Info     models.DatasetInfo
}

// Dashboard renders the HTML page: sidebar filters, the map of the top
// cities and the score chart side by side.
// GET /
func (h *Handler) Dashboard(c *fiber.Ctx) error {
	page := dashboardPage{
		PageTitle: h.Config.Dashboard.PageTitle,
		Title:     h.Config.Dashboard.Title,
		TopN:      h.Ranking.TopN(),
		Selected:  make(map[string]bool),
		Info:      h.Ranking.Info(),
	}

	bounds, err := h.Ranking.Bounds()
	if err != nil {
		return respondError(c, err)
	}
	page.Continents = bounds.Continents

	if err := h.DB.Order("name ASC").Find(&page.Presets).Error; err != nil {
		return respondError(c, err)
	}

	f, err := parseFilter(c)
	if id := c.Query("preset"); id != "" && err == nil {
		if preset, findErr := h.findPreset(id); findErr != nil {
			page.Error = "Preset not found"
		} else {
			f = presetFilter(*preset)
			page.PresetID = id
		}
	}

	// The sidebar reflects the request even when it was rejected
	page.fillForm(f, bounds)

	if err != nil {
		page.Error = err.Error()
		return h.renderDashboard(c, page)
	}

	res, err := h.Ranking.Top(f)
	if err != nil {
		if errorStatus(err) >= 500 {
			return respondError(c, err)
		}
		page.Error = err.Error()
		return h.renderDashboard(c, page)
	}

	page.Cities = res.Cities
	page.Matched = res.Matched
	page.Empty = res.Empty()
	page.Message = emptyMessage(page.Empty)
	if !page.Empty {
		page.Map = h.buildMap(res)
		page.ChartURL = "/api/chart.png?" + chartQuery(f)
	}
	return h.renderDashboard(c, page)
}

func (p *dashboardPage) fillForm(f services.Filter, b *models.Bounds) {
	if f.ContinentsSet {
		for _, name := range f.Continents {
			p.Selected[name] = true
		}
	} else {
		for _, name := range b.Continents {
			p.Selected[name] = true
		}
	}

	p.GDPMin = formatFloat(f.GDPMin, b.GDPMin)
	p.GDPMax = formatFloat(f.GDPMax, b.GDPMax)
	p.StoresMin = formatInt(f.StoresMin, b.StoresMin)
	p.StoresMax = formatInt(f.StoresMax, b.StoresMax)
}

func (h *Handler) renderDashboard(c *fiber.Ctx, page dashboardPage) error {
	var buf bytes.Buffer
	if err := dashboardTmpl.Execute(&buf, page); err != nil {
		return respondError(c, err)
	}
	if page.Error != "" {
		c.Status(fiber.StatusBadRequest)
	}
	c.Type("html", "utf-8")
	return c.Send(buf.Bytes())
}

// chartQuery re-encodes a normalized filter for the chart image URL
func chartQuery(f services.Filter) string {
	args := fiber.AcquireArgs()
	defer fiber.ReleaseArgs(args)

	if f.ContinentsSet {
		args.Set("filtered", "1")
		for _, name := range f.Continents {
			args.Add("continent", name)
		}
	}
	if f.GDPMin != nil {
		args.Set("gdp_min", strconv.FormatFloat(*f.GDPMin, 'f', -1, 64))
	}
	if f.GDPMax != nil {
		args.Set("gdp_max", strconv.FormatFloat(*f.GDPMax, 'f', -1, 64))
	}
	if f.StoresMin != nil {
		args.Set("stores_min", strconv.Itoa(*f.StoresMin))
	}
	if f.StoresMax != nil {
		args.Set("stores_max", strconv.Itoa(*f.StoresMax))
	}
	return args.String()
}

func formatFloat(v *float64, fallback float64) string {
	if v != nil {
		return strconv.FormatFloat(*v, 'f', -1, 64)
	}
	return strconv.FormatFloat(fallback, 'f', -1, 64)
}

func formatInt(v *int, fallback int) string {
	if v != nil {
		return strconv.Itoa(*v)
	}
	return strconv.Itoa(fallback)
}
