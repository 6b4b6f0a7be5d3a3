// internal/services/action_service.go
package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	apperrors "github.com/Corphon/SlideForgeMCP/internal/errors"
	"github.com/Corphon/SlideForgeMCP/internal/models"
	"github.com/Corphon/SlideForgeMCP/internal/utils"
)

// 动作名，同时用作忙碌表键的一部分
const (
	ActionRegenerateImage   = "regenerate-image"
	ActionRegenerateChart   = "regenerate-chart"
	ActionRegenerateContent = "regenerate-content"
	ActionEnhanceWording    = "enhance"
	ActionSpeakerNotes      = "notes"
)

type actionKey struct {
	action  string
	slideID string
}

// ActionService 执行针对单页的再生成动作
// 忙碌表以(动作, 幻灯片id)为键，是权威状态：同键动作在途时再次调用被拒绝。
type ActionService struct {
	llmService   *LLMService
	imageService *ImageService
	deckService  *DeckService

	busyMutex sync.Mutex
	busy      map[actionKey]bool
}

// NewActionService 创建再生成动作服务实例
func NewActionService(llm *LLMService, image *ImageService, decks *DeckService) *ActionService {
	return &ActionService{
		llmService:   llm,
		imageService: image,
		deckService:  decks,
		busy:         make(map[actionKey]bool),
	}
}

// acquire 登记一个在途动作，同键冲突时返回错误
func (s *ActionService) acquire(action, slideID string) error {
	key := actionKey{action: action, slideID: slideID}

	s.busyMutex.Lock()
	defer s.busyMutex.Unlock()

	if s.busy[key] {
		return apperrors.NewActionError(
			fmt.Sprintf("action %s is already running for slide %s", action, slideID), nil)
	}
	s.busy[key] = true
	return nil
}

func (s *ActionService) release(action, slideID string) {
	key := actionKey{action: action, slideID: slideID}

	s.busyMutex.Lock()
	defer s.busyMutex.Unlock()

	delete(s.busy, key)
}

// IsBusy 查询某个动作是否在途
func (s *ActionService) IsBusy(action, slideID string) bool {
	key := actionKey{action: action, slideID: slideID}

	s.busyMutex.Lock()
	defer s.busyMutex.Unlock()

	return s.busy[key]
}

// loadSlide 读取deck并按id解析幻灯片快照
// 只读deck返回readOnly=true，动作方应静默返回当前deck。
func (s *ActionService) loadSlide(deckID, slideID string) (*models.Deck, *models.Slide, bool, error) {
	deck, err := s.deckService.GetDeck(deckID)
	if err != nil {
		return nil, nil, false, err
	}
	if deck.ReadOnly {
		return deck, nil, true, nil
	}

	_, slide := deck.SlideByID(slideID)
	if slide == nil {
		return nil, nil, false, apperrors.NewNotFoundError(fmt.Sprintf("slide not found: %s", slideID), nil)
	}

	snapshot := *slide
	return deck, &snapshot, false, nil
}

// RegenerateImage 按当前提示词重新合成该页图像
func (s *ActionService) RegenerateImage(ctx context.Context, deckID, slideID string) (*models.Deck, error) {
	deck, slide, readOnly, err := s.loadSlide(deckID, slideID)
	if err != nil {
		return nil, err
	}
	if readOnly {
		return deck, nil
	}
	if strings.TrimSpace(slide.ImagePrompt) == "" {
		return nil, apperrors.NewValidationError("slide has no image prompt to regenerate from", nil)
	}

	if err := s.acquire(ActionRegenerateImage, slideID); err != nil {
		return nil, err
	}
	defer s.release(ActionRegenerateImage, slideID)

	if _, err := s.deckService.UpdateSlide(deckID, slideID, func(sl *models.Slide) {
		sl.ImageURL = models.ImagePending
	}); err != nil {
		return nil, err
	}

	dataURI, imgErr := s.imageService.GenerateImage(ctx, slide.ImagePrompt)

	applied, err := s.deckService.UpdateSlide(deckID, slideID, func(sl *models.Slide) {
		if imgErr != nil {
			sl.ImageURL = models.ImageFailed
		} else {
			sl.SetImage(dataURI)
		}
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		// 结果已过期，幻灯片在调用期间被删除
		utils.GetLogger().Infof("Dropping stale image result for removed slide %s", slideID)
		return s.deckService.GetDeck(deckID)
	}
	if imgErr != nil {
		return nil, apperrors.NewVisualError("image regeneration failed", imgErr)
	}

	return s.deckService.GetDeck(deckID)
}

// RegenerateChart 根据该页标题与要点生成新图表并替换现有视觉
func (s *ActionService) RegenerateChart(ctx context.Context, deckID, slideID string) (*models.Deck, error) {
	deck, slide, readOnly, err := s.loadSlide(deckID, slideID)
	if err != nil {
		return nil, err
	}
	if readOnly {
		return deck, nil
	}

	if err := s.acquire(ActionRegenerateChart, slideID); err != nil {
		return nil, err
	}
	defer s.release(ActionRegenerateChart, slideID)

	spec, chartErr := s.llmService.GenerateChart(ctx, slide.Title, slide.Content)
	if chartErr != nil {
		return nil, apperrors.NewVisualError("chart regeneration failed", chartErr)
	}

	applied, err := s.deckService.UpdateSlide(deckID, slideID, func(sl *models.Slide) {
		sl.SetChart(spec)
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		utils.GetLogger().Infof("Dropping stale chart result for removed slide %s", slideID)
	}

	return s.deckService.GetDeck(deckID)
}

// RegenerateContent 重跑该页的完整内容调用
// 图表分支直接采用图表；图像分支串联图像合成，该页不会停留在等待哨兵上。
func (s *ActionService) RegenerateContent(ctx context.Context, deckID, slideID string) (*models.Deck, error) {
	deck, slide, readOnly, err := s.loadSlide(deckID, slideID)
	if err != nil {
		return nil, err
	}
	if readOnly {
		return deck, nil
	}

	if err := s.acquire(ActionRegenerateContent, slideID); err != nil {
		return nil, err
	}
	defer s.release(ActionRegenerateContent, slideID)

	content, err := s.llmService.GenerateSlideContent(ctx, deck.Topic, slide.Title, deck.Audience)
	if err != nil {
		return nil, apperrors.NewActionError("content regeneration failed", err)
	}

	chartAdopted := content.Chart != nil
	applied, err := s.deckService.UpdateSlide(deckID, slideID, func(sl *models.Slide) {
		sl.Content = content.Content
		sl.ImagePrompt = content.ImagePrompt
		if chartAdopted {
			sl.SetChart(content.Chart)
		} else if content.ImagePrompt != "" {
			sl.ImageURL = models.ImagePending
		} else {
			sl.ImageURL = models.ImageNone
		}
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		utils.GetLogger().Infof("Dropping stale content result for removed slide %s", slideID)
		return s.deckService.GetDeck(deckID)
	}

	if !chartAdopted && content.ImagePrompt != "" {
		dataURI, imgErr := s.imageService.GenerateImage(ctx, content.ImagePrompt)
		if _, err := s.deckService.UpdateSlide(deckID, slideID, func(sl *models.Slide) {
			if imgErr != nil {
				sl.ImageURL = models.ImageFailed
			} else {
				sl.SetImage(dataURI)
			}
		}); err != nil {
			return nil, err
		}
		if imgErr != nil {
			utils.GetLogger().Warnf("Image synthesis failed while regenerating slide %s: %v", slideID, imgErr)
		}
	}

	return s.deckService.GetDeck(deckID)
}

// EnhanceWording 请求重写该页文字
// 自由文本响应按"Title:"行与短横线要点行解析；解析不出任何要点时该页保持不变。
func (s *ActionService) EnhanceWording(ctx context.Context, deckID, slideID string) (*models.Deck, error) {
	deck, slide, readOnly, err := s.loadSlide(deckID, slideID)
	if err != nil {
		return nil, err
	}
	if readOnly {
		return deck, nil
	}

	if err := s.acquire(ActionEnhanceWording, slideID); err != nil {
		return nil, err
	}
	defer s.release(ActionEnhanceWording, slideID)

	raw, err := s.llmService.EnhanceWording(ctx, slide.Title, slide.Content, deck.Audience)
	if err != nil {
		return nil, apperrors.NewActionError("wording enhancement failed", err)
	}

	title, bullets := parseEnhancedText(raw)
	if len(bullets) == 0 {
		utils.GetLogger().Warnf("Enhance response for slide %s yielded no bullets, keeping slide unchanged", slideID)
		return deck, nil
	}

	applied, err := s.deckService.UpdateSlide(deckID, slideID, func(sl *models.Slide) {
		if title != "" {
			sl.Title = title
		}
		sl.Content = bullets
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		utils.GetLogger().Infof("Dropping stale enhance result for removed slide %s", slideID)
	}

	return s.deckService.GetDeck(deckID)
}

// GenerateSpeakerNotes 为该页生成演讲者备注，模型文本原样保存
func (s *ActionService) GenerateSpeakerNotes(ctx context.Context, deckID, slideID string) (*models.Deck, error) {
	deck, slide, readOnly, err := s.loadSlide(deckID, slideID)
	if err != nil {
		return nil, err
	}
	if readOnly {
		return deck, nil
	}

	if err := s.acquire(ActionSpeakerNotes, slideID); err != nil {
		return nil, err
	}
	defer s.release(ActionSpeakerNotes, slideID)

	notes, err := s.llmService.GenerateSpeakerNotes(ctx, slide.Title, slide.Content, deck.Audience)
	if err != nil {
		return nil, apperrors.NewActionError("speaker notes generation failed", err)
	}

	applied, err := s.deckService.UpdateSlide(deckID, slideID, func(sl *models.Slide) {
		sl.SpeakerNotes = notes
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		utils.GetLogger().Infof("Dropping stale notes result for removed slide %s", slideID)
	}

	return s.deckService.GetDeck(deckID)
}

// parseEnhancedText 从自由文本中提取"Title:"行与短横线要点行
func parseEnhancedText(raw string) (string, []string) {
	var title string
	var bullets []string

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, "title:") {
			title = strings.TrimSpace(line[len("title:"):])
			continue
		}
		if strings.HasPrefix(line, "-") {
			bullet := strings.TrimSpace(strings.TrimPrefix(line, "-"))
			if bullet != "" {
				bullets = append(bullets, bullet)
			}
		}
	}

	return title, bullets
}
