// internal/services/share_service_test.go
package services

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Corphon/SlideForgeMCP/internal/errors"
	"github.com/Corphon/SlideForgeMCP/internal/models"
	"github.com/Corphon/SlideForgeMCP/internal/storage"
)

func newTestThemeService(t *testing.T) *ThemeService {
	t.Helper()

	svc, err := NewThemeService(filepath.Join(t.TempDir(), "themes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	return svc
}

func newTestShareService(t *testing.T) (*ShareService, *DeckService, *ThemeService) {
	t.Helper()

	fs, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)

	decks := NewDeckService(fs)
	themes := newTestThemeService(t)
	return NewShareService(decks, themes), decks, themes
}

func TestShareRoundTrip(t *testing.T) {
	share, decks, _ := newTestShareService(t)

	deck, err := decks.CreateDeck("Quarterly results", "board", "forest", makeSlides("Numbers", "Forecast"))
	require.NoError(t, err)

	payload, err := share.EncodeDeck(deck.ID)
	require.NoError(t, err)
	require.NotEmpty(t, payload)
	// URL-safe alphabet, no padding
	assert.NotContains(t, payload, "=")
	assert.NotContains(t, payload, "+")
	assert.NotContains(t, payload, "/")

	decoded, err := share.DecodePayload(payload)
	require.NoError(t, err)

	assert.True(t, decoded.ReadOnly)
	assert.NotEqual(t, deck.ID, decoded.ID)
	assert.Equal(t, "forest", decoded.Theme)
	require.Len(t, decoded.Slides, 2)
	assert.Equal(t, "Numbers", decoded.Slides[0].Title)
	assert.Equal(t, deck.Slides[0].Content, decoded.Slides[0].Content)

	// the decoded deck is persisted
	loaded, err := decks.GetDeck(decoded.ID)
	require.NoError(t, err)
	assert.True(t, loaded.ReadOnly)
}

func TestDecodePayload_MalformedInputs(t *testing.T) {
	share, _, _ := newTestShareService(t)

	cases := map[string]string{
		"empty":          "",
		"not base64":     "%%%not-base64%%%",
		"not compressed": "aGVsbG8gd29ybGQ",
		"truncated":      "AAAA",
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := share.DecodePayload(payload)
			require.Error(t, err)
			assert.True(t, apperrors.IsShareDecodeError(err))
		})
	}
}

func TestDecodePayload_RejectsPayloadWithoutSlides(t *testing.T) {
	share, decks, _ := newTestShareService(t)

	deck, err := decks.CreateDeck("Topic", "", "", makeSlides("A"))
	require.NoError(t, err)

	payload, err := share.EncodeDeck(deck.ID)
	require.NoError(t, err)

	// tamper: decoding a prefix breaks the compressed stream
	_, err = share.DecodePayload(payload[:len(payload)/2])
	require.Error(t, err)
	assert.True(t, apperrors.IsShareDecodeError(err))
}

func TestShareCarriesCustomTheme(t *testing.T) {
	share, decks, themes := newTestShareService(t)

	custom := &models.CustomTheme{
		ID:   "corporate",
		Name: "Corporate",
		Colors: models.ThemeColors{
			Primary:    "101010",
			Secondary:  "202020",
			Background: "FFFFFF",
			Text:       "111111",
			Accent:     "FF0000",
		},
	}
	require.NoError(t, themes.SaveCustomTheme(custom))

	deck, err := decks.CreateDeck("Topic", "", "corporate", makeSlides("A"))
	require.NoError(t, err)

	payload, err := share.EncodeDeck(deck.ID)
	require.NoError(t, err)

	// receiving side starts with an empty theme store
	receiver, receiverDecks, receiverThemes := newTestShareService(t)
	_ = receiverDecks

	decoded, err := receiver.DecodePayload(payload)
	require.NoError(t, err)
	assert.Equal(t, "corporate", decoded.Theme)

	adopted, err := receiverThemes.GetCustomTheme("corporate")
	require.NoError(t, err)
	assert.Equal(t, custom.Colors, adopted.Colors)
}

func TestEncodeDeck_RejectsOversizedPayload(t *testing.T) {
	share, decks, _ := newTestShareService(t)

	// a large fake image payload pushes the encoded form over the limit;
	// random-ish content resists compression
	var sb strings.Builder
	for i := 0; i < 200000; i++ {
		sb.WriteByte(byte('A' + (i*7+i*i)%52))
	}

	slides := makeSlides("A")
	slides[0].ImageURL = "data:image/png;base64," + sb.String()

	deck, err := decks.CreateDeck("Topic", "", "", slides)
	require.NoError(t, err)

	_, err = share.EncodeDeck(deck.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeShareEncode))
}

func TestDecodePayload_UnknownThemeFallsBack(t *testing.T) {
	share, decks, _ := newTestShareService(t)

	deck, err := decks.CreateDeck("Topic", "", "default", makeSlides("A"))
	require.NoError(t, err)

	payload, err := share.EncodeDeck(deck.ID)
	require.NoError(t, err)

	decoded, err := share.DecodePayload(payload)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultTheme, decoded.Theme)
}
