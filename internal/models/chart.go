// internal/models/chart.go
package models

// ChartType 图表类型
type ChartType string

const (
	ChartBar  ChartType = "bar"
	ChartLine ChartType = "line"
	ChartPie  ChartType = "pie"
)

// ChartDataset 与labels按下标对齐的一组数值
type ChartDataset struct {
	Label string    `json:"label"`
	Data  []float64 `json:"data"`
}

// ChartSpec describes chart content for a slide. Datasets align with Labels
// by index; a length mismatch is handled by the renderer (truncate to the
// shorter side), it is never a pipeline error.
type ChartSpec struct {
	Type     ChartType      `json:"type"`
	Labels   []string       `json:"labels"`
	Datasets []ChartDataset `json:"datasets"`
}

// Valid reports whether the spec carries a known type and at least one
// dataset with data points.
func (c *ChartSpec) Valid() bool {
	if c == nil {
		return false
	}
	switch c.Type {
	case ChartBar, ChartLine, ChartPie:
	default:
		return false
	}
	if len(c.Labels) == 0 || len(c.Datasets) == 0 {
		return false
	}
	for _, ds := range c.Datasets {
		if len(ds.Data) > 0 {
			return true
		}
	}
	return false
}
