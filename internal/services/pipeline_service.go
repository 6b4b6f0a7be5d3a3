// internal/services/pipeline_service.go
package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Corphon/SlideForgeMCP/internal/config"
	apperrors "github.com/Corphon/SlideForgeMCP/internal/errors"
	"github.com/Corphon/SlideForgeMCP/internal/models"
	"github.com/Corphon/SlideForgeMCP/internal/utils"
)

const (
	minSlideCount = 1
	maxSlideCount = 20
)

// PipelineService 驱动两阶段生成管线：候选大纲、逐页内容与视觉填充
type PipelineService struct {
	llmService      *LLMService
	imageService    *ImageService
	deckService     *DeckService
	progressService *ProgressService

	tasksMutex sync.RWMutex
	tasks      map[string]*models.OutlineTask
}

// NewPipelineService 创建生成管线服务实例
func NewPipelineService(llm *LLMService, image *ImageService, decks *DeckService, progress *ProgressService) *PipelineService {
	return &PipelineService{
		llmService:      llm,
		imageService:    image,
		deckService:     decks,
		progressService: progress,
		tasks:           make(map[string]*models.OutlineTask),
	}
}

// ProposeOutlines 第一阶段：为主题生成候选大纲集
// 一次模型调用产出全部候选；调用失败或响应无法解析时整个阶段中止。
func (s *PipelineService) ProposeOutlines(ctx context.Context, topic string, slideCount int, audience string) (*models.OutlineTask, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, apperrors.NewValidationError("topic is required", nil)
	}

	cfg := config.GetCurrentConfig()
	if slideCount <= 0 {
		slideCount = cfg.DefaultSlideCount
	}
	if slideCount < minSlideCount || slideCount > maxSlideCount {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("slide count must be between %d and %d", minSlideCount, maxSlideCount), nil)
	}

	candidates := cfg.OutlineCandidates
	if candidates <= 0 {
		candidates = 3
	}

	outlines, err := s.llmService.GenerateOutlines(ctx, topic, slideCount, candidates, audience)
	if err != nil {
		return nil, apperrors.NewPipelineAbortError("outline generation failed", err)
	}

	// 丢弃无要点的候选，超长的截到约定页数
	kept := make([]models.Outline, 0, len(outlines))
	for _, outline := range outlines {
		if len(outline.Points) == 0 {
			continue
		}
		if len(outline.Points) > slideCount {
			outline.Points = outline.Points[:slideCount]
		}
		kept = append(kept, outline)
	}
	if len(kept) == 0 {
		return nil, apperrors.NewPipelineAbortError("model returned no usable outlines", nil)
	}

	task := &models.OutlineTask{
		ID:         uuid.New().String(),
		Topic:      topic,
		Audience:   audience,
		SlideCount: slideCount,
		Outlines:   kept,
		Selected:   0,
		CreatedAt:  time.Now(),
	}

	s.tasksMutex.Lock()
	s.tasks[task.ID] = task
	s.tasksMutex.Unlock()

	return task.Clone(), nil
}

// GetTask 获取大纲任务
func (s *PipelineService) GetTask(taskID string) (*models.OutlineTask, error) {
	s.tasksMutex.RLock()
	defer s.tasksMutex.RUnlock()

	task, exists := s.tasks[taskID]
	if !exists {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("outline task not found: %s", taskID), nil)
	}
	return task.Clone(), nil
}

// UpdateOutlinePoint 在提交前编辑候选大纲中的一个要点
// 编辑后的文本将成为对应幻灯片的标题。
func (s *PipelineService) UpdateOutlinePoint(taskID string, outlineIndex, pointIndex int, text string) (*models.OutlineTask, error) {
	s.tasksMutex.Lock()
	defer s.tasksMutex.Unlock()

	task, exists := s.tasks[taskID]
	if !exists {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("outline task not found: %s", taskID), nil)
	}
	if outlineIndex < 0 || outlineIndex >= len(task.Outlines) {
		return nil, apperrors.NewValidationError("outline index out of range", nil)
	}
	outline := &task.Outlines[outlineIndex]
	if pointIndex < 0 || pointIndex >= len(outline.Points) {
		return nil, apperrors.NewValidationError("point index out of range", nil)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewValidationError("point text must not be empty", nil)
	}

	outline.Points[pointIndex] = text
	return task.Clone(), nil
}

// GenerateDeck 第二、三阶段：提交一个候选大纲并异步填充内容与视觉
// 立即返回带占位幻灯片的deck，填充进度通过progress tracker（以deck id为键）发布。
func (s *PipelineService) GenerateDeck(taskID string, outlineIndex int, theme string) (*models.Deck, error) {
	s.tasksMutex.Lock()
	task, exists := s.tasks[taskID]
	if !exists {
		s.tasksMutex.Unlock()
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("outline task not found: %s", taskID), nil)
	}
	if outlineIndex < 0 || outlineIndex >= len(task.Outlines) {
		// 任务保留，调用方可修正索引后重试
		s.tasksMutex.Unlock()
		return nil, apperrors.NewValidationError("outline index out of range", nil)
	}
	delete(s.tasks, taskID)
	s.tasksMutex.Unlock()

	outline := task.Outlines[outlineIndex]

	// 先落盘占位结构，消费方在内容到达前就能读取
	slides := make([]models.Slide, 0, len(outline.Points))
	for _, point := range outline.Points {
		slides = append(slides, models.Slide{
			ID:      uuid.New().String(),
			Title:   point,
			Content: []string{},
			Layout:  models.LayoutTextLeft,
		})
	}

	deck, err := s.deckService.CreateDeck(task.Topic, task.Audience, theme, slides)
	if err != nil {
		return nil, err
	}

	tracker := s.progressService.CreateTracker(deck.ID)
	go s.runPipeline(deck, tracker)

	return deck, nil
}

// runPipeline 逐页顺序执行：内容调用，随后视觉步骤
// 同一时刻最多一个调用在途。内容失败中止整个管线并删除deck；
// 视觉失败只标记该页的失败哨兵并继续。
func (s *PipelineService) runPipeline(deck *models.Deck, tracker *ProgressTracker) {
	ctx := context.Background()
	logger := utils.GetLogger()

	slideCount := len(deck.Slides)
	totalUnits := slideCount * 2
	completedUnits := 0

	advance := func(message string) {
		completedUnits++
		tracker.UpdateProgress(completedUnits*100/totalUnits, message)
	}

	// 快照id与标题；后续所有合并都按幻灯片id重新解析
	type slideRef struct {
		id    string
		title string
	}
	refs := make([]slideRef, 0, slideCount)
	for _, slide := range deck.Slides {
		refs = append(refs, slideRef{id: slide.ID, title: slide.Title})
	}

	for i, ref := range refs {
		content, err := s.llmService.GenerateSlideContent(ctx, deck.Topic, ref.title, deck.Audience)
		if err != nil {
			abortErr := apperrors.NewPipelineAbortError(
				fmt.Sprintf("content generation failed on slide %d/%d", i+1, slideCount), err)
			logger.Errorf("Pipeline aborted for deck %s: %v", deck.ID, abortErr)
			tracker.Fail(abortErr.Message)
			if delErr := s.deckService.DeleteDeck(deck.ID); delErr != nil {
				logger.Warnf("Failed to remove aborted deck %s: %v", deck.ID, delErr)
			}
			return
		}

		chartAdopted := content.Chart != nil
		applied, err := s.deckService.UpdateSlide(deck.ID, ref.id, func(slide *models.Slide) {
			slide.Content = content.Content
			slide.ImagePrompt = content.ImagePrompt
			if chartAdopted {
				slide.SetChart(content.Chart)
			} else if content.ImagePrompt != "" {
				slide.ImageURL = models.ImagePending
			} else {
				slide.ImageURL = models.ImageNone
			}
		})
		if err != nil {
			logger.Errorf("Pipeline stopped, deck %s is gone: %v", deck.ID, err)
			tracker.Fail("deck was deleted during generation")
			return
		}
		advance(fmt.Sprintf("Wrote content for slide %d/%d", i+1, slideCount))
		if !applied {
			// 幻灯片在途中被删除，该页的视觉步骤视为已完成
			advance(fmt.Sprintf("Skipped visual for removed slide %d/%d", i+1, slideCount))
			continue
		}

		if chartAdopted || content.ImagePrompt == "" {
			// 图表直接采用（或无视觉需求），视觉单元记为已完成
			advance(fmt.Sprintf("Resolved visual for slide %d/%d", i+1, slideCount))
			continue
		}

		dataURI, imgErr := s.imageService.GenerateImage(ctx, content.ImagePrompt)
		if _, err := s.deckService.UpdateSlide(deck.ID, ref.id, func(slide *models.Slide) {
			if imgErr != nil {
				slide.ImageURL = models.ImageFailed
			} else {
				slide.SetImage(dataURI)
			}
		}); err != nil {
			logger.Errorf("Pipeline stopped, deck %s is gone: %v", deck.ID, err)
			tracker.Fail("deck was deleted during generation")
			return
		}
		if imgErr != nil {
			logger.Warnf("Image synthesis failed for slide %s in deck %s: %v", ref.id, deck.ID, imgErr)
		}
		advance(fmt.Sprintf("Resolved visual for slide %d/%d", i+1, slideCount))
	}

	tracker.Complete("Deck generation completed")
}
