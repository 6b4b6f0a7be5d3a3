// internal/models/deck_test.go
package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlide_HasImage(t *testing.T) {
	cases := map[string]bool{
		ImageNotRequested:              false,
		ImagePending:                   false,
		ImageFailed:                    false,
		ImageNone:                      false,
		"data:image/png;base64,aW1n":   true,
		"https://example.com/pic.png":  true,
	}

	for url, want := range cases {
		slide := Slide{ImageURL: url}
		assert.Equal(t, want, slide.HasImage(), "ImageURL=%q", url)
	}
}

func TestSlide_ImageAndChartAreMutuallyExclusive(t *testing.T) {
	slide := Slide{}

	spec := &ChartSpec{
		Type:     ChartBar,
		Labels:   []string{"a"},
		Datasets: []ChartDataset{{Label: "d", Data: []float64{1}}},
	}

	slide.SetChart(spec)
	assert.Equal(t, ImageNone, slide.ImageURL)
	assert.NotNil(t, slide.Chart)

	slide.SetImage("data:image/png;base64,aW1n")
	assert.Nil(t, slide.Chart)
	assert.True(t, slide.HasImage())
}

func TestDeck_SlideByID(t *testing.T) {
	deck := Deck{Slides: []Slide{{ID: "a"}, {ID: "b"}}}

	idx, slide := deck.SlideByID("b")
	require.NotNil(t, slide)
	assert.Equal(t, 1, idx)

	// the pointer aliases deck storage
	slide.Title = "changed"
	assert.Equal(t, "changed", deck.Slides[1].Title)

	idx, slide = deck.SlideByID("missing")
	assert.Equal(t, -1, idx)
	assert.Nil(t, slide)
}

func TestChartSpec_Valid(t *testing.T) {
	valid := &ChartSpec{
		Type:     ChartLine,
		Labels:   []string{"a"},
		Datasets: []ChartDataset{{Label: "d", Data: []float64{1}}},
	}
	assert.True(t, valid.Valid())

	var nilSpec *ChartSpec
	assert.False(t, nilSpec.Valid())
	assert.False(t, (&ChartSpec{Type: "donut", Labels: []string{"a"}, Datasets: valid.Datasets}).Valid())
	assert.False(t, (&ChartSpec{Type: ChartBar, Datasets: valid.Datasets}).Valid())
	assert.False(t, (&ChartSpec{Type: ChartBar, Labels: []string{"a"}, Datasets: []ChartDataset{{Label: "d"}}}).Valid())
}
