// internal/services/deck_service.go
package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Corphon/SlideForgeMCP/internal/errors"
	"github.com/Corphon/SlideForgeMCP/internal/models"
	"github.com/Corphon/SlideForgeMCP/internal/storage"
	"github.com/Corphon/SlideForgeMCP/internal/utils"
)

const decksDir = "decks"

// DeckService 管理演示文稿的持久化与结构变更
type DeckService struct {
	storage *storage.FileStorage

	// 每个deck一个互斥锁，串行化结构变更
	deckLocks sync.Map
}

// NewDeckService 创建幻灯片服务实例
func NewDeckService(fileStorage *storage.FileStorage) *DeckService {
	return &DeckService{
		storage: fileStorage,
	}
}

func (s *DeckService) lockFor(deckID string) *sync.Mutex {
	value, _ := s.deckLocks.LoadOrStore(deckID, &sync.Mutex{})
	return value.(*sync.Mutex)
}

// CreateDeck 创建并保存一个新的演示文稿
func (s *DeckService) CreateDeck(topic, audience, theme string, slides []models.Slide) (*models.Deck, error) {
	if theme == "" {
		theme = models.DefaultTheme
	}

	now := time.Now()
	deck := &models.Deck{
		ID:                uuid.New().String(),
		Topic:             topic,
		Audience:          audience,
		Slides:            slides,
		Theme:             theme,
		CurrentSlideIndex: 0,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.save(deck); err != nil {
		return nil, err
	}
	return deck, nil
}

// SaveDeck 保存一个外部构造的演示文稿（分享解码等场景）
func (s *DeckService) SaveDeck(deck *models.Deck) error {
	lock := s.lockFor(deck.ID)
	lock.Lock()
	defer lock.Unlock()

	return s.save(deck)
}

func (s *DeckService) save(deck *models.Deck) error {
	deck.UpdatedAt = time.Now()
	if err := s.storage.SaveJSON(decksDir, deck.ID+".json", deck); err != nil {
		return apperrors.NewPersistenceError(fmt.Sprintf("failed to save deck %s", deck.ID), err)
	}
	return nil
}

// GetDeck 获取演示文稿
func (s *DeckService) GetDeck(deckID string) (*models.Deck, error) {
	if !s.storage.FileExists(decksDir, deckID+".json") {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("deck not found: %s", deckID), nil)
	}

	var deck models.Deck
	if err := s.storage.LoadJSON(decksDir, deckID+".json", &deck); err != nil {
		return nil, apperrors.NewPersistenceError(fmt.Sprintf("failed to load deck %s", deckID), err)
	}
	return &deck, nil
}

// ListDecks 列出所有演示文稿
func (s *DeckService) ListDecks() ([]*models.Deck, error) {
	files, err := s.storage.ListFiles(decksDir, ".json")
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to list decks", err)
	}

	decks := make([]*models.Deck, 0, len(files))
	for _, filename := range files {
		var deck models.Deck
		if err := s.storage.LoadJSON(decksDir, filename, &deck); err != nil {
			utils.GetLogger().Warnf("Skipping unreadable deck file %s: %v", filename, err)
			continue
		}
		decks = append(decks, &deck)
	}
	return decks, nil
}

// DeleteDeck 删除演示文稿
func (s *DeckService) DeleteDeck(deckID string) error {
	lock := s.lockFor(deckID)
	lock.Lock()
	defer lock.Unlock()

	if !s.storage.FileExists(decksDir, deckID+".json") {
		return apperrors.NewNotFoundError(fmt.Sprintf("deck not found: %s", deckID), nil)
	}
	if err := s.storage.DeleteFile(decksDir, deckID+".json"); err != nil {
		return apperrors.NewPersistenceError(fmt.Sprintf("failed to delete deck %s", deckID), err)
	}
	return nil
}

// mutate 在持锁状态下加载、变更并保存一个deck
// 只读deck的结构变更是静默空操作，直接返回当前状态。
func (s *DeckService) mutate(deckID string, fn func(deck *models.Deck) error) (*models.Deck, error) {
	lock := s.lockFor(deckID)
	lock.Lock()
	defer lock.Unlock()

	deck, err := s.GetDeck(deckID)
	if err != nil {
		return nil, err
	}

	if deck.ReadOnly {
		return deck, nil
	}

	if err := fn(deck); err != nil {
		return nil, err
	}

	if err := s.save(deck); err != nil {
		return nil, err
	}
	return deck, nil
}

// EditSlideField 编辑幻灯片的单个字段
func (s *DeckService) EditSlideField(deckID, slideID, field string, value interface{}) (*models.Deck, error) {
	return s.mutate(deckID, func(deck *models.Deck) error {
		_, slide := deck.SlideByID(slideID)
		if slide == nil {
			return apperrors.NewNotFoundError(fmt.Sprintf("slide not found: %s", slideID), nil)
		}

		switch field {
		case "title":
			text, ok := value.(string)
			if !ok {
				return apperrors.NewValidationError("title must be a string", nil)
			}
			slide.Title = text
		case "speaker_notes":
			text, ok := value.(string)
			if !ok {
				return apperrors.NewValidationError("speaker_notes must be a string", nil)
			}
			slide.SpeakerNotes = text
		case "image_prompt":
			text, ok := value.(string)
			if !ok {
				return apperrors.NewValidationError("image_prompt must be a string", nil)
			}
			slide.ImagePrompt = text
		case "layout":
			text, ok := value.(string)
			if !ok {
				return apperrors.NewValidationError("layout must be a string", nil)
			}
			layout := models.SlideLayout(text)
			switch layout {
			case models.LayoutTextLeft, models.LayoutTextRight, models.LayoutImageFull:
				slide.Layout = layout
			default:
				return apperrors.NewValidationError(fmt.Sprintf("unknown layout: %s", text), nil)
			}
		case "content":
			bullets, err := toStringSlice(value)
			if err != nil {
				return apperrors.NewValidationError("content must be an array of strings", nil)
			}
			slide.Content = bullets
		default:
			return apperrors.NewValidationError(fmt.Sprintf("unknown slide field: %s", field), nil)
		}
		return nil
	})
}

// AddSlide 追加一张占位幻灯片并把游标移到它上面
func (s *DeckService) AddSlide(deckID string) (*models.Deck, error) {
	return s.mutate(deckID, func(deck *models.Deck) error {
		slides := deck.CloneSlides()
		slides = append(slides, models.Slide{
			ID:       uuid.New().String(),
			Title:    "New slide",
			Content:  []string{},
			ImageURL: models.ImageNone,
			Layout:   models.LayoutTextLeft,
		})
		deck.Slides = slides
		deck.CurrentSlideIndex = len(slides) - 1
		return nil
	})
}

// DeleteSlide 删除一张幻灯片
// 最后一张不可删除；被删索引不大于游标时游标前移一位，下限为0。
func (s *DeckService) DeleteSlide(deckID, slideID string) (*models.Deck, error) {
	return s.mutate(deckID, func(deck *models.Deck) error {
		if len(deck.Slides) <= 1 {
			return apperrors.NewValidationError("cannot delete the only slide in a deck", nil)
		}

		idx, slide := deck.SlideByID(slideID)
		if slide == nil {
			return apperrors.NewNotFoundError(fmt.Sprintf("slide not found: %s", slideID), nil)
		}

		slides := deck.CloneSlides()
		slides = append(slides[:idx], slides[idx+1:]...)
		deck.Slides = slides

		if idx <= deck.CurrentSlideIndex {
			deck.CurrentSlideIndex--
			if deck.CurrentSlideIndex < 0 {
				deck.CurrentSlideIndex = 0
			}
		}
		return nil
	})
}

// MoveSlide 把source位置的幻灯片移动到destination位置（列表移动语义）
// 相等或越界的参数是静默空操作；游标跟随被移动的幻灯片，夹在区间内时反向偏移一位。
func (s *DeckService) MoveSlide(deckID string, source, destination int) (*models.Deck, error) {
	return s.mutate(deckID, func(deck *models.Deck) error {
		n := len(deck.Slides)
		if source == destination ||
			source < 0 || source >= n ||
			destination < 0 || destination >= n {
			return nil
		}

		slides := deck.CloneSlides()
		moved := slides[source]
		slides = append(slides[:source], slides[source+1:]...)

		rest := make([]models.Slide, 0, n)
		rest = append(rest, slides[:destination]...)
		rest = append(rest, moved)
		rest = append(rest, slides[destination:]...)
		deck.Slides = rest

		cursor := deck.CurrentSlideIndex
		switch {
		case cursor == source:
			deck.CurrentSlideIndex = destination
		case source < cursor && cursor <= destination:
			deck.CurrentSlideIndex = cursor - 1
		case destination <= cursor && cursor < source:
			deck.CurrentSlideIndex = cursor + 1
		}
		return nil
	})
}

// SetCurrentSlide 设置当前幻灯片游标，越界值被钳制到有效范围
func (s *DeckService) SetCurrentSlide(deckID string, index int) (*models.Deck, error) {
	return s.mutate(deckID, func(deck *models.Deck) error {
		if index < 0 {
			index = 0
		}
		if index > len(deck.Slides)-1 {
			index = len(deck.Slides) - 1
		}
		deck.CurrentSlideIndex = index
		return nil
	})
}

// SetTheme 设置演示文稿主题
func (s *DeckService) SetTheme(deckID, theme string) (*models.Deck, error) {
	return s.mutate(deckID, func(deck *models.Deck) error {
		if theme == "" {
			return apperrors.NewValidationError("theme id is required", nil)
		}
		deck.Theme = theme
		return nil
	})
}

// UpdateSlide 在持锁状态下按id更新一张幻灯片（异步结果合并入口）
// 幻灯片已不存在时返回false，调用方应丢弃过期结果。
func (s *DeckService) UpdateSlide(deckID, slideID string, fn func(slide *models.Slide)) (bool, error) {
	applied := false
	_, err := s.mutate(deckID, func(deck *models.Deck) error {
		_, slide := deck.SlideByID(slideID)
		if slide == nil {
			return errSlideGone
		}
		fn(slide)
		applied = true
		return nil
	})
	if err == errSlideGone {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return applied, nil
}

var errSlideGone = fmt.Errorf("slide no longer present")

func toStringSlice(value interface{}) ([]string, error) {
	switch v := value.(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			text, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("non-string element in array")
			}
			out = append(out, text)
		}
		return out, nil
	}
	return nil, fmt.Errorf("not an array")
}
