// internal/services/deck_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Corphon/SlideForgeMCP/internal/errors"
	"github.com/Corphon/SlideForgeMCP/internal/models"
	"github.com/Corphon/SlideForgeMCP/internal/storage"
)

func newTestDeckService(t *testing.T) *DeckService {
	t.Helper()

	fs, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)

	return NewDeckService(fs)
}

func makeSlides(titles ...string) []models.Slide {
	slides := make([]models.Slide, 0, len(titles))
	for i, title := range titles {
		slides = append(slides, models.Slide{
			ID:      string(rune('a' + i)),
			Title:   title,
			Content: []string{"point one", "point two"},
			Layout:  models.LayoutTextLeft,
		})
	}
	return slides
}

func TestCreateAndGetDeck(t *testing.T) {
	svc := newTestDeckService(t)

	deck, err := svc.CreateDeck("Renewable energy", "executives", "midnight", makeSlides("Intro", "Outlook"))
	require.NoError(t, err)
	require.NotEmpty(t, deck.ID)

	loaded, err := svc.GetDeck(deck.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renewable energy", loaded.Topic)
	assert.Equal(t, "midnight", loaded.Theme)
	assert.Len(t, loaded.Slides, 2)
	assert.Equal(t, 0, loaded.CurrentSlideIndex)
}

func TestGetDeck_NotFound(t *testing.T) {
	svc := newTestDeckService(t)

	_, err := svc.GetDeck("missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestCreateDeck_DefaultsTheme(t *testing.T) {
	svc := newTestDeckService(t)

	deck, err := svc.CreateDeck("Topic", "", "", makeSlides("One"))
	require.NoError(t, err)
	assert.Equal(t, models.DefaultTheme, deck.Theme)
}

func TestAddSlide_AppendsPlaceholderAndMovesCursor(t *testing.T) {
	svc := newTestDeckService(t)
	deck, err := svc.CreateDeck("Topic", "", "", makeSlides("One", "Two"))
	require.NoError(t, err)

	updated, err := svc.AddSlide(deck.ID)
	require.NoError(t, err)

	require.Len(t, updated.Slides, 3)
	added := updated.Slides[2]
	assert.NotEmpty(t, added.ID)
	assert.Equal(t, models.LayoutTextLeft, added.Layout)
	assert.Equal(t, models.ImageNone, added.ImageURL)
	assert.Equal(t, 2, updated.CurrentSlideIndex)
}

func TestDeleteSlide_RejectsLastSlide(t *testing.T) {
	svc := newTestDeckService(t)
	deck, err := svc.CreateDeck("Topic", "", "", makeSlides("Only"))
	require.NoError(t, err)

	_, err = svc.DeleteSlide(deck.ID, deck.Slides[0].ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))
}

func TestDeleteSlide_CursorRules(t *testing.T) {
	cases := []struct {
		name       string
		cursor     int
		deleteIdx  int
		wantCursor int
	}{
		{"delete before cursor", 2, 0, 1},
		{"delete at cursor", 2, 2, 1},
		{"delete after cursor", 1, 3, 1},
		{"delete first with cursor at zero", 0, 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestDeckService(t)
			deck, err := svc.CreateDeck("Topic", "", "", makeSlides("A", "B", "C", "D"))
			require.NoError(t, err)

			_, err = svc.SetCurrentSlide(deck.ID, tc.cursor)
			require.NoError(t, err)

			updated, err := svc.DeleteSlide(deck.ID, deck.Slides[tc.deleteIdx].ID)
			require.NoError(t, err)

			assert.Len(t, updated.Slides, 3)
			assert.Equal(t, tc.wantCursor, updated.CurrentSlideIndex)
		})
	}
}

func TestMoveSlide_ReordersWithListMoveSemantics(t *testing.T) {
	svc := newTestDeckService(t)
	deck, err := svc.CreateDeck("Topic", "", "", makeSlides("A", "B", "C", "D"))
	require.NoError(t, err)

	updated, err := svc.MoveSlide(deck.ID, 0, 2)
	require.NoError(t, err)

	titles := make([]string, 0, 4)
	for _, slide := range updated.Slides {
		titles = append(titles, slide.Title)
	}
	assert.Equal(t, []string{"B", "C", "A", "D"}, titles)
}

func TestMoveSlide_CursorFollowsMovedSlide(t *testing.T) {
	svc := newTestDeckService(t)
	deck, err := svc.CreateDeck("Topic", "", "", makeSlides("A", "B", "C", "D"))
	require.NoError(t, err)

	_, err = svc.SetCurrentSlide(deck.ID, 1)
	require.NoError(t, err)

	updated, err := svc.MoveSlide(deck.ID, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, updated.CurrentSlideIndex)
	assert.Equal(t, "B", updated.Slides[3].Title)
}

func TestMoveSlide_CursorShiftsOppositeTheMove(t *testing.T) {
	svc := newTestDeckService(t)
	deck, err := svc.CreateDeck("Topic", "", "", makeSlides("A", "B", "C", "D"))
	require.NoError(t, err)

	// cursor sits strictly between source and destination
	_, err = svc.SetCurrentSlide(deck.ID, 2)
	require.NoError(t, err)

	updated, err := svc.MoveSlide(deck.ID, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.CurrentSlideIndex)
	assert.Equal(t, "C", updated.Slides[updated.CurrentSlideIndex].Title)
}

func TestMoveSlide_NoOpOnEqualOrOutOfRange(t *testing.T) {
	svc := newTestDeckService(t)
	deck, err := svc.CreateDeck("Topic", "", "", makeSlides("A", "B"))
	require.NoError(t, err)

	for _, move := range [][2]int{{1, 1}, {-1, 0}, {0, 5}, {7, 1}} {
		updated, err := svc.MoveSlide(deck.ID, move[0], move[1])
		require.NoError(t, err)
		assert.Equal(t, "A", updated.Slides[0].Title)
		assert.Equal(t, "B", updated.Slides[1].Title)
	}
}

func TestEditSlideField(t *testing.T) {
	svc := newTestDeckService(t)
	deck, err := svc.CreateDeck("Topic", "", "", makeSlides("A"))
	require.NoError(t, err)
	slideID := deck.Slides[0].ID

	updated, err := svc.EditSlideField(deck.ID, slideID, "title", "Better title")
	require.NoError(t, err)
	assert.Equal(t, "Better title", updated.Slides[0].Title)

	updated, err = svc.EditSlideField(deck.ID, slideID, "content", []interface{}{"one", "two", "three"})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, updated.Slides[0].Content)

	updated, err = svc.EditSlideField(deck.ID, slideID, "layout", "image-full")
	require.NoError(t, err)
	assert.Equal(t, models.LayoutImageFull, updated.Slides[0].Layout)

	_, err = svc.EditSlideField(deck.ID, slideID, "layout", "diagonal")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))

	_, err = svc.EditSlideField(deck.ID, slideID, "unknown_field", "x")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))
}

func TestReadOnlyDeck_MutationsAreSilentNoOps(t *testing.T) {
	svc := newTestDeckService(t)
	deck, err := svc.CreateDeck("Topic", "", "", makeSlides("A", "B"))
	require.NoError(t, err)

	deck.ReadOnly = true
	require.NoError(t, svc.SaveDeck(deck))

	edited, err := svc.EditSlideField(deck.ID, deck.Slides[0].ID, "title", "Changed")
	require.NoError(t, err)
	assert.Equal(t, "A", edited.Slides[0].Title)

	added, err := svc.AddSlide(deck.ID)
	require.NoError(t, err)
	assert.Len(t, added.Slides, 2)

	deleted, err := svc.DeleteSlide(deck.ID, deck.Slides[0].ID)
	require.NoError(t, err)
	assert.Len(t, deleted.Slides, 2)

	moved, err := svc.MoveSlide(deck.ID, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, "A", moved.Slides[0].Title)
}

func TestUpdateSlide_MergesByIDAndDropsStaleResults(t *testing.T) {
	svc := newTestDeckService(t)
	deck, err := svc.CreateDeck("Topic", "", "", makeSlides("A", "B"))
	require.NoError(t, err)

	applied, err := svc.UpdateSlide(deck.ID, deck.Slides[1].ID, func(sl *models.Slide) {
		sl.SpeakerNotes = "remember the demo"
	})
	require.NoError(t, err)
	assert.True(t, applied)

	loaded, err := svc.GetDeck(deck.ID)
	require.NoError(t, err)
	assert.Equal(t, "remember the demo", loaded.Slides[1].SpeakerNotes)

	// the slide disappears while a call is outstanding
	_, err = svc.DeleteSlide(deck.ID, deck.Slides[1].ID)
	require.NoError(t, err)

	applied, err = svc.UpdateSlide(deck.ID, deck.Slides[1].ID, func(sl *models.Slide) {
		sl.SpeakerNotes = "stale"
	})
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestSetCurrentSlide_ClampsRange(t *testing.T) {
	svc := newTestDeckService(t)
	deck, err := svc.CreateDeck("Topic", "", "", makeSlides("A", "B", "C"))
	require.NoError(t, err)

	updated, err := svc.SetCurrentSlide(deck.ID, 99)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.CurrentSlideIndex)

	updated, err = svc.SetCurrentSlide(deck.ID, -4)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.CurrentSlideIndex)
}

func TestDeleteDeck(t *testing.T) {
	svc := newTestDeckService(t)
	deck, err := svc.CreateDeck("Topic", "", "", makeSlides("A"))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteDeck(deck.ID))

	_, err = svc.GetDeck(deck.ID)
	assert.True(t, apperrors.IsNotFoundError(err))
}
