package services

import (
	"fmt"
	"io"
	"math"
	"time"

	"georetail/backend/models"

	"golang.org/x/image/colornames"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

const (
	ChartWidth  = 5 * vg.Inch
	ChartHeight = 4 * vg.Inch
	ChartYLabel = "Expansion Score (%)"
)

// ChartRenderer draws the score comparison bar chart
type ChartRenderer struct {
	Width   vg.Length
	Height  vg.Length
	metrics *Metrics
}

func NewChartRenderer(metrics *Metrics) *ChartRenderer {
	return &ChartRenderer{Width: ChartWidth, Height: ChartHeight, metrics: metrics}
}

// Plot builds the chart: one bar per city at score*100, a percentage
// label on top of each bar and the y axis capped at 110% of the tallest.
func (r *ChartRenderer) Plot(cities []models.City) (*plot.Plot, error) {
	if len(cities) == 0 {
		return nil, ErrEmptyDataset
	}

	values := make(plotter.Values, len(cities))
	names := make([]string, len(cities))
	points := make([]plotter.XY, len(cities))
	labels := make([]string, len(cities))

	maxPct := 0.0
	for i, c := range cities {
		pct := c.ScorePercent()
		values[i] = pct
		names[i] = c.Name
		points[i] = plotter.XY{X: float64(i), Y: pct}
		labels[i] = fmt.Sprintf("%.2f%%", pct)
		maxPct = math.Max(maxPct, pct)
	}

	p := plot.New()
	p.Y.Label.Text = ChartYLabel
	p.Y.Min = 0
	p.Y.Max = maxPct * 1.1
	if p.Y.Max == 0 {
		p.Y.Max = 1
	}

	bars, err := plotter.NewBarChart(values, vg.Points(18))
	if err != nil {
		return nil, fmt.Errorf("failed to build bars: %w", err)
	}
	bars.Color = colornames.Steelblue
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)

	barLabels, err := plotter.NewLabels(plotter.XYLabels{XYs: points, Labels: labels})
	if err != nil {
		return nil, fmt.Errorf("failed to build bar labels: %w", err)
	}
	for i := range barLabels.TextStyle {
		barLabels.TextStyle[i].XAlign = draw.XCenter
		barLabels.TextStyle[i].YAlign = draw.YBottom
		barLabels.TextStyle[i].Font.Size = vg.Points(7)
	}
	p.Add(barLabels)

	p.NominalX(names...)
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YTop
	return p, nil
}

// Render writes the chart as PNG
func (r *ChartRenderer) Render(cities []models.City, w io.Writer) error {
	start := time.Now()
	p, err := r.Plot(cities)
	if err != nil {
		return err
	}

	wt, err := p.WriterTo(r.Width, r.Height, "png")
	if err != nil {
		return fmt.Errorf("failed to create png canvas: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write chart: %w", err)
	}
	r.metrics.ObserveRender("chart", time.Since(start))
	return nil
}
