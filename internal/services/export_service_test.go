// internal/services/export_service_test.go
package services

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/SlideForgeMCP/internal/charts"
	apperrors "github.com/Corphon/SlideForgeMCP/internal/errors"
	"github.com/Corphon/SlideForgeMCP/internal/models"
	"github.com/Corphon/SlideForgeMCP/internal/storage"
)

func newTestExportService(t *testing.T) (*ExportService, *DeckService) {
	t.Helper()

	fs, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)

	decks := NewDeckService(fs)
	themes := newTestThemeService(t)
	return NewExportService(decks, themes), decks
}

// exportDeck builds a deck exercising all three layouts plus a chart slide
// and a real embedded PNG.
func exportDeck(t *testing.T, decks *DeckService) *models.Deck {
	t.Helper()

	png, err := charts.Render(&models.ChartSpec{
		Type:     models.ChartBar,
		Labels:   []string{"A", "B"},
		Datasets: []models.ChartDataset{{Label: "d", Data: []float64{1, 2}}},
	}, models.BuiltinThemes[models.DefaultTheme])
	require.NoError(t, err)
	dataURI := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)

	slides := makeSlides("Opening", "Numbers", "Closing")
	slides[0].ImageURL = dataURI
	slides[0].SpeakerNotes = "pause here"
	slides[1].Chart = &models.ChartSpec{
		Type:     models.ChartPie,
		Labels:   []string{"North", "South"},
		Datasets: []models.ChartDataset{{Label: "Share", Data: []float64{60, 40}}},
	}
	slides[1].ImageURL = models.ImageNone
	slides[2].Layout = models.LayoutImageFull
	slides[2].ImageURL = dataURI

	deck, err := decks.CreateDeck("Annual review", "board", "forest", slides)
	require.NoError(t, err)
	return deck
}

func TestExportPPTX(t *testing.T) {
	svc, decks := newTestExportService(t)
	deck := exportDeck(t, decks)

	data, err := svc.ExportPPTX(deck.ID)
	require.NoError(t, err)
	require.NotEmpty(t, data)
	// OOXML containers are zip archives
	assert.True(t, bytes.HasPrefix(data, []byte("PK")))
}

func TestExportPDF(t *testing.T) {
	svc, decks := newTestExportService(t)
	deck := exportDeck(t, decks)

	data, err := svc.ExportPDF(deck.ID)
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestExport_UnknownDeck(t *testing.T) {
	svc, _ := newTestExportService(t)

	_, err := svc.ExportPPTX("missing")
	assert.True(t, apperrors.IsNotFoundError(err))

	_, err = svc.ExportPDF("missing")
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestExport_BrokenVisualIsSkippedNotFatal(t *testing.T) {
	svc, decks := newTestExportService(t)

	slides := makeSlides("Only")
	slides[0].ImageURL = "data:image/png;base64,%%%not-base64%%%"

	deck, err := decks.CreateDeck("Topic", "", "", slides)
	require.NoError(t, err)

	data, err := svc.ExportPPTX(deck.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	data, err = svc.ExportPDF(deck.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}
