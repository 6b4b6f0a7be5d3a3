// internal/charts/render.go
package charts

import (
	"bytes"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/Corphon/SlideForgeMCP/internal/models"
)

const (
	renderWidth  = 900
	renderHeight = 480
)

// Render rasterizes a ChartSpec into a PNG suitable for embedding in a slide
// or an export. Label/data length mismatches are resolved here by truncating
// to the shorter side; they are never treated as an error.
func Render(spec *models.ChartSpec, palette models.ThemeColors) ([]byte, error) {
	if !spec.Valid() {
		return nil, fmt.Errorf("chart spec is empty or has an unknown type %q", spec.Type)
	}

	switch spec.Type {
	case models.ChartBar:
		return renderBar(spec, palette)
	case models.ChartLine:
		return renderLine(spec, palette)
	case models.ChartPie:
		return renderPie(spec, palette)
	}
	return nil, fmt.Errorf("unsupported chart type: %s", spec.Type)
}

// seriesColors cycles theme colors across datasets.
func seriesColors(palette models.ThemeColors) []drawing.Color {
	return []drawing.Color{
		drawing.ColorFromHex(palette.Secondary),
		drawing.ColorFromHex(palette.Accent),
		drawing.ColorFromHex(palette.Primary),
	}
}

func renderBar(spec *models.ChartSpec, palette models.ThemeColors) ([]byte, error) {
	// go-chart bar charts hold a single series; the first dataset wins.
	ds := spec.Datasets[0]
	n := len(spec.Labels)
	if len(ds.Data) < n {
		n = len(ds.Data)
	}

	fill := drawing.ColorFromHex(palette.Secondary)
	bars := make([]chart.Value, 0, n)
	for i := 0; i < n; i++ {
		bars = append(bars, chart.Value{
			Label: spec.Labels[i],
			Value: ds.Data[i],
			Style: chart.Style{
				FillColor:   fill,
				StrokeColor: fill,
			},
		})
	}

	bc := chart.BarChart{
		Title:    ds.Label,
		Width:    renderWidth,
		Height:   renderHeight,
		BarWidth: 48,
		Bars:     bars,
		Background: chart.Style{
			FillColor: drawing.ColorFromHex(palette.Background),
		},
	}

	var buf bytes.Buffer
	if err := bc.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render bar chart: %w", err)
	}
	return buf.Bytes(), nil
}

func renderLine(spec *models.ChartSpec, palette models.ThemeColors) ([]byte, error) {
	colors := seriesColors(palette)
	labels := spec.Labels

	series := make([]chart.Series, 0, len(spec.Datasets))
	for idx, ds := range spec.Datasets {
		n := len(labels)
		if len(ds.Data) < n {
			n = len(ds.Data)
		}
		if n == 0 {
			continue
		}

		xs := make([]float64, n)
		ys := make([]float64, n)
		for i := 0; i < n; i++ {
			xs[i] = float64(i)
			ys[i] = ds.Data[i]
		}

		series = append(series, chart.ContinuousSeries{
			Name:    ds.Label,
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: colors[idx%len(colors)],
				StrokeWidth: 2.5,
			},
		})
	}

	c := chart.Chart{
		Width:  renderWidth,
		Height: renderHeight,
		Background: chart.Style{
			FillColor: drawing.ColorFromHex(palette.Background),
		},
		XAxis: chart.XAxis{
			ValueFormatter: func(v interface{}) string {
				f, ok := v.(float64)
				if !ok {
					return ""
				}
				i := int(f)
				if i < 0 || i >= len(labels) || float64(i) != f {
					return ""
				}
				return labels[i]
			},
		},
		Series: series,
	}

	var buf bytes.Buffer
	if err := c.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render line chart: %w", err)
	}
	return buf.Bytes(), nil
}

func renderPie(spec *models.ChartSpec, palette models.ThemeColors) ([]byte, error) {
	ds := spec.Datasets[0]
	n := len(spec.Labels)
	if len(ds.Data) < n {
		n = len(ds.Data)
	}

	values := make([]chart.Value, 0, n)
	for i := 0; i < n; i++ {
		values = append(values, chart.Value{
			Label: spec.Labels[i],
			Value: ds.Data[i],
		})
	}

	pc := chart.PieChart{
		Width:  renderHeight,
		Height: renderHeight,
		Values: values,
	}

	var buf bytes.Buffer
	if err := pc.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render pie chart: %w", err)
	}
	return buf.Bytes(), nil
}
