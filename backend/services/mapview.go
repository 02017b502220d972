package services

import (
	"fmt"
	"image/color"
	"strings"

	"georetail/backend/models"

	"golang.org/x/image/colornames"
)

// Map defaults carried by every view unless overridden in config
const (
	DefaultTiles       = "cartodbpositron"
	DefaultZoom        = 2
	DefaultMarkerColor = "crimson"
	DefaultFillOpacity = 0.8
	DefaultMapWidth    = 700
	DefaultMapHeight   = 450

	markerBaseRadius  = 6.0
	markerScoreRadius = 50.0
)

// MapOptions controls how a MapView is built
type MapOptions struct {
	Tiles       string
	Zoom        int
	MarkerColor string
	FillOpacity float64
	Width       int
	Height      int
}

func DefaultMapOptions() MapOptions {
	return MapOptions{
		Tiles:       DefaultTiles,
		Zoom:        DefaultZoom,
		MarkerColor: DefaultMarkerColor,
		FillOpacity: DefaultFillOpacity,
		Width:       DefaultMapWidth,
		Height:      DefaultMapHeight,
	}
}

type TileLayer struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Attribution string `json:"attribution"`
	Subdomains  string `json:"subdomains,omitempty"`
	MaxZoom     int    `json:"max_zoom"`
}

var tileLayers = map[string]TileLayer{
	"cartodbpositron": {
		Name:        "cartodbpositron",
		URL:         "https://{s}.basemaps.cartocdn.com/light_all/{z}/{x}/{y}{r}.png",
		Attribution: `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors &copy; <a href="https://carto.com/attributions">CARTO</a>`,
		Subdomains:  "abcd",
		MaxZoom:     20,
	},
	"cartodbdark_matter": {
		Name:        "cartodbdark_matter",
		URL:         "https://{s}.basemaps.cartocdn.com/dark_all/{z}/{x}/{y}{r}.png",
		Attribution: `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors &copy; <a href="https://carto.com/attributions">CARTO</a>`,
		Subdomains:  "abcd",
		MaxZoom:     20,
	},
	"openstreetmap": {
		Name:        "openstreetmap",
		URL:         "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
		Attribution: `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors`,
		MaxZoom:     19,
	},
}

// ResolveTiles maps a provider name to its tile layer. Anything that looks
// like a URL template is used as is.
func ResolveTiles(name string) TileLayer {
	key := strings.ToLower(strings.TrimSpace(name))
	if t, ok := tileLayers[key]; ok {
		return t
	}
	if strings.Contains(name, "{z}") {
		return TileLayer{Name: "custom", URL: name, MaxZoom: 19}
	}
	return tileLayers[DefaultTiles]
}

// Marker is one circle on the map
type Marker struct {
	Name        string  `json:"name"`
	CountryCode string  `json:"countrycode"`
	Continent   string  `json:"continent"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	Score       float64 `json:"score"`
	Radius      float64 `json:"radius"`
	Color       string  `json:"color"`
	FillColor   string  `json:"fill_color"`
	FillOpacity float64 `json:"fill_opacity"`
	Popup       string  `json:"popup"`
}

// MapView is everything the browser needs to draw the map
type MapView struct {
	Center  [2]float64 `json:"center"`
	Zoom    int        `json:"zoom"`
	Tiles   TileLayer  `json:"tiles"`
	Width   int        `json:"width"`
	Height  int        `json:"height"`
	Markers []Marker   `json:"markers"`
}

// BuildMapView centers the map on the mean coordinate of the cities and
// adds one marker per city, sized and tinted by expansion score.
func BuildMapView(cities []models.City, opts MapOptions) MapView {
	if opts.Zoom <= 0 {
		opts.Zoom = DefaultZoom
	}
	if opts.Width <= 0 {
		opts.Width = DefaultMapWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultMapHeight
	}

	base := ParseColor(opts.MarkerColor, colornames.Crimson)
	view := MapView{
		Zoom:    opts.Zoom,
		Tiles:   ResolveTiles(opts.Tiles),
		Width:   opts.Width,
		Height:  opts.Height,
		Markers: make([]Marker, 0, len(cities)),
	}

	var sumLat, sumLng float64
	for _, c := range cities {
		sumLat += c.Latitude
		sumLng += c.Longitude

		view.Markers = append(view.Markers, Marker{
			Name:        c.Name,
			CountryCode: c.CountryCode,
			Continent:   c.ContinentName,
			Lat:         c.Latitude,
			Lng:         c.Longitude,
			Score:       c.ExpansionScore,
			Radius:      MarkerRadius(c.ExpansionScore),
			Color:       hexColor(base),
			FillColor:   hexColor(scoreTint(base, c.ExpansionScore)),
			FillOpacity: opts.FillOpacity,
			Popup:       PopupText(c),
		})
	}
	if n := float64(len(cities)); n > 0 {
		view.Center = [2]float64{sumLat / n, sumLng / n}
	}
	return view
}

// MarkerRadius grows linearly with the score
func MarkerRadius(score float64) float64 {
	return markerBaseRadius + score*markerScoreRadius
}

func PopupText(c models.City) string {
	return fmt.Sprintf("%s (%s) — Score: %.3f", c.Name, c.CountryCode, c.ExpansionScore)
}

// ParseColor accepts a CSS colour name or #rrggbb
func ParseColor(s string, fallback color.RGBA) color.RGBA {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := colornames.Map[s]; ok {
		return c
	}
	if strings.HasPrefix(s, "#") && len(s) == 7 {
		var r, g, b uint8
		if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err == nil {
			return color.RGBA{R: r, G: g, B: b, A: 0xff}
		}
	}
	return fallback
}

// scoreTint blends from a pale version of base (score 0) to base (score 1)
func scoreTint(base color.RGBA, score float64) color.RGBA {
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	mix := func(c uint8) uint8 {
		light := float64(c) + (255-float64(c))*0.75
		return uint8(light + (float64(c)-light)*score + 0.5)
	}
	return color.RGBA{R: mix(base.R), G: mix(base.G), B: mix(base.B), A: 0xff}
}

func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// GeoJSON types, coordinates in [lng, lat] order
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

type Feature struct {
	Type       string                 `json:"type"`
	Geometry   Geometry               `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

type Geometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// GeoJSON returns the markers as point features
func (v MapView) GeoJSON() FeatureCollection {
	fc := FeatureCollection{Type: "FeatureCollection", Features: make([]Feature, 0, len(v.Markers))}
	for i, m := range v.Markers {
		fc.Features = append(fc.Features, Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: [2]float64{m.Lng, m.Lat},
			},
			Properties: map[string]interface{}{
				"rank":            i + 1,
				"name":            m.Name,
				"countrycode":     m.CountryCode,
				"continent":       m.Continent,
				"expansion_score": m.Score,
				"radius":          m.Radius,
				"color":           m.Color,
				"fill_color":      m.FillColor,
				"fill_opacity":    m.FillOpacity,
				"popup":           m.Popup,
			},
		})
	}
	return fc
}
