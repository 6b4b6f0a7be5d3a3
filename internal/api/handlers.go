// internal/api/handlers.go
package api

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/SlideForgeMCP/internal/config"
	"github.com/Corphon/SlideForgeMCP/internal/models"
	"github.com/Corphon/SlideForgeMCP/internal/services"
)

// Handler API处理器
type Handler struct {
	LLMService      *services.LLMService
	ImageService    *services.ImageService
	DeckService     *services.DeckService
	PipelineService *services.PipelineService
	ActionService   *services.ActionService
	ThemeService    *services.ThemeService
	ShareService    *services.ShareService
	ExportService   *services.ExportService
	ProgressService *services.ProgressService

	respond *ResponseHelper
}

// NewHandler 创建API处理器
func NewHandler(
	llmService *services.LLMService,
	imageService *services.ImageService,
	deckService *services.DeckService,
	pipelineService *services.PipelineService,
	actionService *services.ActionService,
	themeService *services.ThemeService,
	shareService *services.ShareService,
	exportService *services.ExportService,
	progressService *services.ProgressService,
) *Handler {
	return &Handler{
		LLMService:      llmService,
		ImageService:    imageService,
		DeckService:     deckService,
		PipelineService: pipelineService,
		ActionService:   actionService,
		ThemeService:    themeService,
		ShareService:    shareService,
		ExportService:   exportService,
		ProgressService: progressService,
		respond:         NewResponseHelper(),
	}
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	h.respond.Success(c, gin.H{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// LLMStatus 返回模型服务的就绪状态
func (h *Handler) LLMStatus(c *gin.Context) {
	h.respond.Success(c, gin.H{
		"llm_ready":    h.LLMService.IsReady(),
		"llm_state":    h.LLMService.GetReadyState(),
		"llm_provider": h.LLMService.GetProviderName(),
		"image_ready":  h.ImageService.IsReady(),
		"image_state":  h.ImageService.GetReadyState(),
	})
}

// UpdateLLMConfig 热更新模型提供商配置
func (h *Handler) UpdateLLMConfig(c *gin.Context) {
	var req struct {
		Provider    string            `json:"provider" binding:"required"`
		Config      map[string]string `json:"config" binding:"required"`
		ImageConfig map[string]string `json:"image_config"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respond.BadRequest(c, "provider and config are required")
		return
	}

	if err := h.LLMService.UpdateProvider(req.Provider, req.Config); err != nil {
		h.respond.BadRequest(c, fmt.Sprintf("failed to initialize provider: %v", err))
		return
	}
	if err := config.UpdateLLMConfig(req.Provider, req.Config); err != nil {
		h.respond.InternalError(c, "failed to persist configuration")
		return
	}

	// 图像提供商沿用同名提供商，除非单独给出配置
	if req.ImageConfig != nil {
		if err := h.ImageService.UpdateProvider(req.Provider, req.ImageConfig); err == nil {
			config.UpdateImageConfig(req.Provider, req.ImageConfig)
		}
	}

	h.respond.Success(c, gin.H{"provider": req.Provider}, "configuration updated")
}

// ProposeOutlines 第一阶段：生成候选大纲集
func (h *Handler) ProposeOutlines(c *gin.Context) {
	var req struct {
		Topic      string `json:"topic" binding:"required"`
		SlideCount int    `json:"slide_count"`
		Audience   string `json:"audience"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respond.BadRequest(c, "topic is required")
		return
	}

	task, err := h.PipelineService.ProposeOutlines(c.Request.Context(), req.Topic, req.SlideCount, req.Audience)
	if err != nil {
		h.respond.AppError(c, err)
		return
	}

	h.respond.Created(c, task)
}

// UpdateOutlinePoint 编辑候选大纲中的一个要点
func (h *Handler) UpdateOutlinePoint(c *gin.Context) {
	taskID := c.Param("taskID")

	var req struct {
		OutlineIndex int    `json:"outline_index"`
		PointIndex   int    `json:"point_index"`
		Text         string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respond.BadRequest(c, "text is required")
		return
	}

	task, err := h.PipelineService.UpdateOutlinePoint(taskID, req.OutlineIndex, req.PointIndex, req.Text)
	if err != nil {
		h.respond.AppError(c, err)
		return
	}

	h.respond.Success(c, task)
}

// CreateDeck 第二、三阶段：提交大纲并开始异步生成
func (h *Handler) CreateDeck(c *gin.Context) {
	var req struct {
		TaskID       string `json:"task_id" binding:"required"`
		OutlineIndex int    `json:"outline_index"`
		Theme        string `json:"theme"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respond.BadRequest(c, "task_id is required")
		return
	}

	deck, err := h.PipelineService.GenerateDeck(req.TaskID, req.OutlineIndex, req.Theme)
	if err != nil {
		h.respond.AppError(c, err)
		return
	}

	h.respond.Accepted(c, deck, "deck generation started, subscribe to progress updates")
}

// ListDecks 列出所有deck
func (h *Handler) ListDecks(c *gin.Context) {
	decks, err := h.DeckService.ListDecks()
	if err != nil {
		h.respond.AppError(c, err)
		return
	}
	h.respond.Success(c, decks)
}

// GetDeck 获取单个deck
func (h *Handler) GetDeck(c *gin.Context) {
	deck, err := h.DeckService.GetDeck(c.Param("id"))
	if err != nil {
		h.respond.AppError(c, err)
		return
	}
	h.respond.Success(c, deck)
}

// DeleteDeck 删除deck
func (h *Handler) DeleteDeck(c *gin.Context) {
	if err := h.DeckService.DeleteDeck(c.Param("id")); err != nil {
		h.respond.AppError(c, err)
		return
	}
	h.respond.Success(c, nil, "deck deleted")
}

// EditSlideField 编辑幻灯片的单个字段
func (h *Handler) EditSlideField(c *gin.Context) {
	var req struct {
		Field string          `json:"field" binding:"required"`
		Value json.RawMessage `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respond.BadRequest(c, "field and value are required")
		return
	}

	var value interface{}
	if err := json.Unmarshal(req.Value, &value); err != nil {
		h.respond.BadRequest(c, "value is not valid JSON")
		return
	}

	deck, err := h.DeckService.EditSlideField(c.Param("id"), c.Param("slideID"), req.Field, value)
	if err != nil {
		h.respond.AppError(c, err)
		return
	}
	h.respond.Success(c, deck)
}

// AddSlide 追加一张占位幻灯片
func (h *Handler) AddSlide(c *gin.Context) {
	deck, err := h.DeckService.AddSlide(c.Param("id"))
	if err != nil {
		h.respond.AppError(c, err)
		return
	}
	h.respond.Created(c, deck)
}

// DeleteSlide 删除一张幻灯片
func (h *Handler) DeleteSlide(c *gin.Context) {
	deck, err := h.DeckService.DeleteSlide(c.Param("id"), c.Param("slideID"))
	if err != nil {
		h.respond.AppError(c, err)
		return
	}
	h.respond.Success(c, deck)
}

// MoveSlide 移动幻灯片位置
func (h *Handler) MoveSlide(c *gin.Context) {
	var req struct {
		Source      int `json:"source"`
		Destination int `json:"destination"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respond.BadRequest(c, "source and destination are required")
		return
	}

	deck, err := h.DeckService.MoveSlide(c.Param("id"), req.Source, req.Destination)
	if err != nil {
		h.respond.AppError(c, err)
		return
	}
	h.respond.Success(c, deck)
}

// SetCurrentSlide 设置当前幻灯片游标
func (h *Handler) SetCurrentSlide(c *gin.Context) {
	var req struct {
		Index int `json:"index"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respond.BadRequest(c, "index is required")
		return
	}

	deck, err := h.DeckService.SetCurrentSlide(c.Param("id"), req.Index)
	if err != nil {
		h.respond.AppError(c, err)
		return
	}
	h.respond.Success(c, deck)
}

// SetDeckTheme 设置deck主题
func (h *Handler) SetDeckTheme(c *gin.Context) {
	var req struct {
		Theme string `json:"theme" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respond.BadRequest(c, "theme is required")
		return
	}

	deck, err := h.DeckService.SetTheme(c.Param("id"), req.Theme)
	if err != nil {
		h.respond.AppError(c, err)
		return
	}
	h.respond.Success(c, deck)
}

// RegenerateImage 重新合成该页图像
func (h *Handler) RegenerateImage(c *gin.Context) {
	deck, err := h.ActionService.RegenerateImage(c.Request.Context(), c.Param("id"), c.Param("slideID"))
	if err != nil {
		h.respond.AppError(c, err)
		return
	}
	h.respond.Success(c, deck)
}

// RegenerateChart 重新生成该页图表
func (h *Handler) RegenerateChart(c *gin.Context) {
	deck, err := h.ActionService.RegenerateChart(c.Request.Context(), c.Param("id"), c.Param("slideID"))
	if err != nil {
		h.respond.AppError(c, err)
		return
	}
	h.respond.Success(c, deck)
}

// RegenerateContent 重跑该页内容生成
func (h *Handler) RegenerateContent(c *gin.Context) {
	deck, err := h.ActionService.RegenerateContent(c.Request.Context(), c.Param("id"), c.Param("slideID"))
	if err != nil {
		h.respond.AppError(c, err)
		return
	}
	h.respond.Success(c, deck)
}

// EnhanceWording 重写该页文字
func (h *Handler) EnhanceWording(c *gin.Context) {
	deck, err := h.ActionService.EnhanceWording(c.Request.Context(), c.Param("id"), c.Param("slideID"))
	if err != nil {
		h.respond.AppError(c, err)
		return
	}
	h.respond.Success(c, deck)
}

// GenerateSpeakerNotes 生成该页演讲者备注
func (h *Handler) GenerateSpeakerNotes(c *gin.Context) {
	deck, err := h.ActionService.GenerateSpeakerNotes(c.Request.Context(), c.Param("id"), c.Param("slideID"))
	if err != nil {
		h.respond.AppError(c, err)
		return
	}
	h.respond.Success(c, deck)
}

// ExportPPTX 导出PowerPoint文档
func (h *Handler) ExportPPTX(c *gin.Context) {
	content, err := h.ExportService.ExportPPTX(c.Param("id"))
	if err != nil {
		h.respond.AppError(c, err)
		return
	}
	h.respond.FileResponse(c, content, "deck.pptx",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation")
}

// ExportPDF 导出PDF文档
func (h *Handler) ExportPDF(c *gin.Context) {
	content, err := h.ExportService.ExportPDF(c.Param("id"))
	if err != nil {
		h.respond.AppError(c, err)
		return
	}
	h.respond.FileResponse(c, content, "deck.pdf", "application/pdf")
}

// ShareDeck 把deck编码为分享字符串
func (h *Handler) ShareDeck(c *gin.Context) {
	payload, err := h.ShareService.EncodeDeck(c.Param("id"))
	if err != nil {
		h.respond.AppError(c, err)
		return
	}
	h.respond.Success(c, gin.H{"payload": payload})
}

// DecodeShare 解码分享字符串并落盘为只读deck
func (h *Handler) DecodeShare(c *gin.Context) {
	var req struct {
		Payload string `json:"payload" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respond.BadRequest(c, "payload is required")
		return
	}

	deck, err := h.ShareService.DecodePayload(req.Payload)
	if err != nil {
		h.respond.AppError(c, err)
		return
	}
	h.respond.Created(c, deck)
}

// ListThemes 列出内置与自定义主题
func (h *Handler) ListThemes(c *gin.Context) {
	custom, err := h.ThemeService.ListCustomThemes()
	if err != nil {
		h.respond.AppError(c, err)
		return
	}

	h.respond.Success(c, gin.H{
		"builtin": models.BuiltinThemes,
		"custom":  custom,
	})
}

// SaveTheme 保存自定义主题
func (h *Handler) SaveTheme(c *gin.Context) {
	var theme models.CustomTheme
	if err := c.ShouldBindJSON(&theme); err != nil {
		h.respond.BadRequest(c, "theme definition is malformed")
		return
	}

	if err := h.ThemeService.SaveCustomTheme(&theme); err != nil {
		h.respond.AppError(c, err)
		return
	}
	h.respond.Created(c, theme)
}

// DeleteTheme 删除自定义主题
func (h *Handler) DeleteTheme(c *gin.Context) {
	if err := h.ThemeService.DeleteCustomTheme(c.Param("id")); err != nil {
		h.respond.AppError(c, err)
		return
	}
	h.respond.Success(c, nil, "theme deleted")
}

// SubscribeProgress 订阅任务进度的SSE端点
func (h *Handler) SubscribeProgress(c *gin.Context) {
	taskID := c.Param("taskID")

	tracker, exists := h.ProgressService.GetTracker(taskID)
	if !exists {
		h.respond.NotFound(c, "task not found")
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("Transfer-Encoding", "chunked")

	clientGone := c.Request.Context().Done()

	updateChan := tracker.Subscribe()
	defer tracker.Unsubscribe(updateChan)

	// 心跳保持连接
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	fmt.Fprintf(c.Writer, "event: connected\ndata: {\"task_id\":%q}\n\n", taskID)
	c.Writer.Flush()

	for {
		select {
		case <-clientGone:
			return
		case update, ok := <-updateChan:
			if !ok {
				return
			}
			data, _ := json.Marshal(update)
			fmt.Fprintf(c.Writer, "event: progress\ndata: %s\n\n", string(data))
			c.Writer.Flush()

			if update.Status == "completed" || update.Status == "failed" {
				return
			}
		case <-ticker.C:
			fmt.Fprintf(c.Writer, "event: heartbeat\ndata: {\"time\":%d}\n\n", time.Now().Unix())
			c.Writer.Flush()
		}
	}
}
