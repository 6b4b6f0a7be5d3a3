// internal/api/router.go
package api

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/SlideForgeMCP/internal/config"
	"github.com/Corphon/SlideForgeMCP/internal/di"
	"github.com/Corphon/SlideForgeMCP/internal/services"
)

// SetupRouter 配置HTTP路由
func SetupRouter() (*gin.Engine, error) {
	cfg := config.GetCurrentConfig()

	container := di.GetContainer()

	llmService, ok := container.Get("llm").(*services.LLMService)
	if !ok {
		return nil, fmt.Errorf("llm service is not initialized")
	}

	imageService, ok := container.Get("image").(*services.ImageService)
	if !ok {
		return nil, fmt.Errorf("image service is not initialized")
	}

	deckService, ok := container.Get("deck").(*services.DeckService)
	if !ok {
		return nil, fmt.Errorf("deck service is not initialized")
	}

	pipelineService, ok := container.Get("pipeline").(*services.PipelineService)
	if !ok {
		return nil, fmt.Errorf("pipeline service is not initialized")
	}

	actionService, ok := container.Get("action").(*services.ActionService)
	if !ok {
		return nil, fmt.Errorf("action service is not initialized")
	}

	themeService, ok := container.Get("theme").(*services.ThemeService)
	if !ok {
		return nil, fmt.Errorf("theme service is not initialized")
	}

	shareService, ok := container.Get("share").(*services.ShareService)
	if !ok {
		return nil, fmt.Errorf("share service is not initialized")
	}

	exportService, ok := container.Get("export").(*services.ExportService)
	if !ok {
		return nil, fmt.Errorf("export service is not initialized")
	}

	progressService, ok := container.Get("progress").(*services.ProgressService)
	if !ok {
		return nil, fmt.Errorf("progress service is not initialized")
	}

	handler := NewHandler(
		llmService,
		imageService,
		deckService,
		pipelineService,
		actionService,
		themeService,
		shareService,
		exportService,
		progressService,
	)

	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	r.Use(corsMiddleware())
	r.Use(requestIDMiddleware())

	// WebSocket 进度推送
	r.GET("/ws/progress/:taskID", handler.ProgressWebSocket)

	api := r.Group("/api")
	{
		api.GET("/health", handler.HealthCheck)
		api.GET("/llm/status", handler.LLMStatus)
		api.PUT("/llm/config", handler.UpdateLLMConfig)

		// 生成管线
		api.POST("/outlines", handler.ProposeOutlines)
		api.PUT("/outlines/:taskID/points", handler.UpdateOutlinePoint)

		// deck与幻灯片
		api.POST("/decks", handler.CreateDeck)
		api.GET("/decks", handler.ListDecks)
		api.GET("/decks/:id", handler.GetDeck)
		api.DELETE("/decks/:id", handler.DeleteDeck)
		api.POST("/decks/:id/slides", handler.AddSlide)
		api.POST("/decks/:id/slides/move", handler.MoveSlide)
		api.PUT("/decks/:id/slides/:slideID", handler.EditSlideField)
		api.DELETE("/decks/:id/slides/:slideID", handler.DeleteSlide)
		api.PUT("/decks/:id/current", handler.SetCurrentSlide)
		api.PUT("/decks/:id/theme", handler.SetDeckTheme)

		// 再生成动作
		api.POST("/decks/:id/slides/:slideID/regenerate-image", handler.RegenerateImage)
		api.POST("/decks/:id/slides/:slideID/regenerate-chart", handler.RegenerateChart)
		api.POST("/decks/:id/slides/:slideID/regenerate-content", handler.RegenerateContent)
		api.POST("/decks/:id/slides/:slideID/enhance", handler.EnhanceWording)
		api.POST("/decks/:id/slides/:slideID/notes", handler.GenerateSpeakerNotes)

		// 导出与分享
		api.GET("/decks/:id/export/pptx", handler.ExportPPTX)
		api.GET("/decks/:id/export/pdf", handler.ExportPDF)
		api.GET("/decks/:id/share", handler.ShareDeck)
		api.POST("/share/decode", handler.DecodeShare)

		// 主题
		api.GET("/themes", handler.ListThemes)
		api.POST("/themes", handler.SaveTheme)
		api.DELETE("/themes/:id", handler.DeleteTheme)

		// 进度SSE
		api.GET("/progress/:taskID", handler.SubscribeProgress)
	}

	return r, nil
}
