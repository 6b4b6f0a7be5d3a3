// internal/services/action_service_test.go
package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Corphon/SlideForgeMCP/internal/errors"
	"github.com/Corphon/SlideForgeMCP/internal/llm"
	"github.com/Corphon/SlideForgeMCP/internal/models"
	"github.com/Corphon/SlideForgeMCP/internal/storage"
)

func newTestActionService(t *testing.T, completeFn func(req llm.CompletionRequest) (*llm.CompletionResponse, error), imgProvider *fakeImageProvider) (*ActionService, *DeckService) {
	t.Helper()

	fs, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)

	llmSvc := NewLLMServiceWithProvider(&fakeLLMProvider{completeFn: completeFn})
	imgSvc := NewImageServiceWithProvider(imgProvider)
	deckSvc := NewDeckService(fs)

	return NewActionService(llmSvc, imgSvc, deckSvc), deckSvc
}

func seedDeck(t *testing.T, decks *DeckService) *models.Deck {
	t.Helper()

	slides := makeSlides("Alpha", "Beta")
	slides[0].ImagePrompt = "a lighthouse at dusk"
	deck, err := decks.CreateDeck("Topic", "engineers", "", slides)
	require.NoError(t, err)
	return deck
}

func TestRegenerateImage(t *testing.T) {
	imgProvider := &fakeImageProvider{}
	actions, decks := newTestActionService(t, nil, imgProvider)
	deck := seedDeck(t, decks)
	slideID := deck.Slides[0].ID

	// 现有图表被新图像替换
	_, err := decks.UpdateSlide(deck.ID, slideID, func(sl *models.Slide) {
		sl.SetChart(&models.ChartSpec{
			Type:     models.ChartPie,
			Labels:   []string{"x"},
			Datasets: []models.ChartDataset{{Label: "d", Data: []float64{1}}},
		})
	})
	require.NoError(t, err)

	updated, err := actions.RegenerateImage(context.Background(), deck.ID, slideID)
	require.NoError(t, err)

	_, slide := updated.SlideByID(slideID)
	require.NotNil(t, slide)
	assert.True(t, slide.HasImage())
	assert.Nil(t, slide.Chart)
	assert.Equal(t, 1, imgProvider.calls)
}

func TestRegenerateImage_NoPromptRejected(t *testing.T) {
	actions, decks := newTestActionService(t, nil, &fakeImageProvider{})
	deck := seedDeck(t, decks)

	// second slide has no prompt
	_, err := actions.RegenerateImage(context.Background(), deck.ID, deck.Slides[1].ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))
}

func TestRegenerateImage_FailureSetsSentinel(t *testing.T) {
	imgProvider := &fakeImageProvider{err: errors.New("image api down")}
	actions, decks := newTestActionService(t, nil, imgProvider)
	deck := seedDeck(t, decks)
	slideID := deck.Slides[0].ID

	_, err := actions.RegenerateImage(context.Background(), deck.ID, slideID)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeVisual))

	loaded, err := decks.GetDeck(deck.ID)
	require.NoError(t, err)
	_, slide := loaded.SlideByID(slideID)
	assert.Equal(t, models.ImageFailed, slide.ImageURL)
}

func TestRegenerateChart_ClearsImage(t *testing.T) {
	actions, decks := newTestActionService(t, func(req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{
			Text: `{"type":"line","labels":["Jan","Feb"],"datasets":[{"label":"Users","data":[5,9]}]}`,
		}, nil
	}, &fakeImageProvider{})
	deck := seedDeck(t, decks)
	slideID := deck.Slides[0].ID

	_, err := decks.UpdateSlide(deck.ID, slideID, func(sl *models.Slide) {
		sl.SetImage("data:image/png;base64,aW1n")
	})
	require.NoError(t, err)

	updated, err := actions.RegenerateChart(context.Background(), deck.ID, slideID)
	require.NoError(t, err)

	_, slide := updated.SlideByID(slideID)
	require.NotNil(t, slide.Chart)
	assert.Equal(t, models.ChartLine, slide.Chart.Type)
	assert.Equal(t, models.ImageNone, slide.ImageURL)
	assert.False(t, slide.HasImage())
}

func TestRegenerateContent_ChainsImageStep(t *testing.T) {
	imgProvider := &fakeImageProvider{}
	actions, decks := newTestActionService(t, func(req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{Text: slideContentJSON(false)}, nil
	}, imgProvider)
	deck := seedDeck(t, decks)
	slideID := deck.Slides[0].ID

	updated, err := actions.RegenerateContent(context.Background(), deck.ID, slideID)
	require.NoError(t, err)

	_, slide := updated.SlideByID(slideID)
	assert.Equal(t, []string{"first point", "second point"}, slide.Content)
	assert.Equal(t, "an illustration", slide.ImagePrompt)
	assert.True(t, slide.HasImage(), "slide must not stay on the pending sentinel")
	assert.Equal(t, 1, imgProvider.calls)
}

func TestRegenerateContent_ChartBranch(t *testing.T) {
	imgProvider := &fakeImageProvider{}
	actions, decks := newTestActionService(t, func(req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{Text: slideContentJSON(true)}, nil
	}, imgProvider)
	deck := seedDeck(t, decks)
	slideID := deck.Slides[0].ID

	updated, err := actions.RegenerateContent(context.Background(), deck.ID, slideID)
	require.NoError(t, err)

	_, slide := updated.SlideByID(slideID)
	require.NotNil(t, slide.Chart)
	assert.Equal(t, models.ImageNone, slide.ImageURL)
	assert.Equal(t, 0, imgProvider.calls)
}

func TestEnhanceWording_ParsesTitleAndBullets(t *testing.T) {
	actions, decks := newTestActionService(t, func(req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{
			Text: "Title: Sharper Alpha\n- tightened first point\n- tightened second point\n",
		}, nil
	}, &fakeImageProvider{})
	deck := seedDeck(t, decks)
	slideID := deck.Slides[0].ID

	updated, err := actions.EnhanceWording(context.Background(), deck.ID, slideID)
	require.NoError(t, err)

	_, slide := updated.SlideByID(slideID)
	assert.Equal(t, "Sharper Alpha", slide.Title)
	assert.Equal(t, []string{"tightened first point", "tightened second point"}, slide.Content)
}

func TestEnhanceWording_ZeroBulletsKeepsSlideUnchanged(t *testing.T) {
	actions, decks := newTestActionService(t, func(req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{Text: "I rewrote your slide, hope you like it!"}, nil
	}, &fakeImageProvider{})
	deck := seedDeck(t, decks)
	slideID := deck.Slides[0].ID

	updated, err := actions.EnhanceWording(context.Background(), deck.ID, slideID)
	require.NoError(t, err)

	_, slide := updated.SlideByID(slideID)
	assert.Equal(t, "Alpha", slide.Title)
	assert.Equal(t, []string{"point one", "point two"}, slide.Content)
}

func TestGenerateSpeakerNotes_StoredVerbatim(t *testing.T) {
	notes := "Open with the anecdote. Mention the Q3 numbers. Close on the roadmap."
	actions, decks := newTestActionService(t, func(req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{Text: notes}, nil
	}, &fakeImageProvider{})
	deck := seedDeck(t, decks)
	slideID := deck.Slides[0].ID

	updated, err := actions.GenerateSpeakerNotes(context.Background(), deck.ID, slideID)
	require.NoError(t, err)

	_, slide := updated.SlideByID(slideID)
	assert.Equal(t, notes, slide.SpeakerNotes)
}

func TestActions_ReadOnlyDeckIsSilentNoOp(t *testing.T) {
	called := false
	actions, decks := newTestActionService(t, func(req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		called = true
		return &llm.CompletionResponse{Text: "Title: X\n- y"}, nil
	}, &fakeImageProvider{})

	deck := seedDeck(t, decks)
	deck.ReadOnly = true
	require.NoError(t, decks.SaveDeck(deck))
	slideID := deck.Slides[0].ID

	result, err := actions.EnhanceWording(context.Background(), deck.ID, slideID)
	require.NoError(t, err)
	assert.Equal(t, "Alpha", result.Slides[0].Title)
	assert.False(t, called)

	_, err = actions.RegenerateImage(context.Background(), deck.ID, slideID)
	require.NoError(t, err)
	_, err = actions.GenerateSpeakerNotes(context.Background(), deck.ID, slideID)
	require.NoError(t, err)
}

func TestActions_BusyKeyRejectsReentrantInvocation(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once

	actions, decks := newTestActionService(t, func(req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		// only the rewrite call blocks; other actions stay responsive
		if strings.Contains(req.Prompt, "Rewrite") {
			once.Do(func() { close(started) })
			<-release
			return &llm.CompletionResponse{Text: "Title: X\n- y\n- z"}, nil
		}
		return &llm.CompletionResponse{Text: "Some unblocked speaker notes."}, nil
	}, &fakeImageProvider{})
	deck := seedDeck(t, decks)
	slideID := deck.Slides[0].ID

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := actions.EnhanceWording(context.Background(), deck.ID, slideID)
		assert.NoError(t, err)
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("first action never started")
	}
	require.True(t, actions.IsBusy(ActionEnhanceWording, slideID))

	// 同键在途，再次调用被拒绝
	_, err := actions.EnhanceWording(context.Background(), deck.ID, slideID)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeAction))

	// 不同键不受影响
	_, err = actions.GenerateSpeakerNotes(context.Background(), deck.ID, deck.Slides[1].ID)
	require.NoError(t, err)

	close(release)
	wg.Wait()

	assert.False(t, actions.IsBusy(ActionEnhanceWording, slideID))
}
