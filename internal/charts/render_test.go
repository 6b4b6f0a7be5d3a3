// internal/charts/render_test.go
package charts

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/SlideForgeMCP/internal/models"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func testPalette() models.ThemeColors {
	return models.BuiltinThemes[models.DefaultTheme]
}

func TestRender_AllChartTypes(t *testing.T) {
	specs := map[string]*models.ChartSpec{
		"bar": {
			Type:   models.ChartBar,
			Labels: []string{"Q1", "Q2", "Q3"},
			Datasets: []models.ChartDataset{
				{Label: "Revenue", Data: []float64{12, 19, 7}},
			},
		},
		"line": {
			Type:   models.ChartLine,
			Labels: []string{"Jan", "Feb", "Mar", "Apr"},
			Datasets: []models.ChartDataset{
				{Label: "Signups", Data: []float64{5, 8, 13, 21}},
				{Label: "Churn", Data: []float64{1, 2, 1, 3}},
			},
		},
		"pie": {
			Type:   models.ChartPie,
			Labels: []string{"North", "South", "West"},
			Datasets: []models.ChartDataset{
				{Label: "Share", Data: []float64{40, 35, 25}},
			},
		},
	}

	for name, spec := range specs {
		t.Run(name, func(t *testing.T) {
			png, err := Render(spec, testPalette())
			require.NoError(t, err)
			require.NotEmpty(t, png)
			assert.True(t, bytes.HasPrefix(png, pngMagic), "output must be a PNG")
		})
	}
}

func TestRender_LengthMismatchTruncatesWithoutError(t *testing.T) {
	spec := &models.ChartSpec{
		Type:   models.ChartBar,
		Labels: []string{"A", "B", "C", "D", "E"},
		Datasets: []models.ChartDataset{
			{Label: "Short", Data: []float64{3, 4}},
		},
	}

	png, err := Render(spec, testPalette())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, pngMagic))
}

func TestRender_InvalidSpecs(t *testing.T) {
	cases := map[string]*models.ChartSpec{
		"unknown type": {
			Type:     "scatter",
			Labels:   []string{"A"},
			Datasets: []models.ChartDataset{{Label: "x", Data: []float64{1}}},
		},
		"no datasets": {
			Type:   models.ChartBar,
			Labels: []string{"A"},
		},
		"no labels": {
			Type:     models.ChartPie,
			Datasets: []models.ChartDataset{{Label: "x", Data: []float64{1}}},
		},
	}

	for name, spec := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Render(spec, testPalette())
			assert.Error(t, err)
		})
	}
}
