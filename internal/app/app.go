// internal/app/app.go
package app

import (
	"fmt"
	"path/filepath"

	"github.com/Corphon/SlideForgeMCP/internal/config"
	"github.com/Corphon/SlideForgeMCP/internal/di"
	"github.com/Corphon/SlideForgeMCP/internal/services"
	"github.com/Corphon/SlideForgeMCP/internal/storage"
	"github.com/Corphon/SlideForgeMCP/internal/utils"

	// 注册模型与图像提供商
	_ "github.com/Corphon/SlideForgeMCP/internal/imagegen/providers/openai"
	_ "github.com/Corphon/SlideForgeMCP/internal/llm/providers/anthropic"
	_ "github.com/Corphon/SlideForgeMCP/internal/llm/providers/openai"
)

// InitServices 按依赖顺序初始化所有服务并注册到容器
func InitServices() error {
	cfg := config.GetCurrentConfig()
	if cfg == nil {
		return fmt.Errorf("configuration is not initialized")
	}

	container := di.GetContainer()

	// 基础设施
	fileStorage, err := storage.NewFileStorage(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to initialize file storage: %w", err)
	}
	container.Register("storage", fileStorage)

	if err := utils.InitLogger(filepath.Join(cfg.LogDir, "server.log")); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// LLM与图像服务：未配置密钥时以未就绪状态注册
	llmService, err := services.NewLLMService()
	if err != nil {
		return fmt.Errorf("failed to initialize llm service: %w", err)
	}
	container.Register("llm", llmService)

	imageService := services.NewImageService()
	container.Register("image", imageService)

	// 领域服务
	deckService := services.NewDeckService(fileStorage)
	container.Register("deck", deckService)

	progressService := services.NewProgressService()
	container.Register("progress", progressService)

	themeService, err := services.NewThemeService(cfg.ThemeDB)
	if err != nil {
		return fmt.Errorf("failed to initialize theme service: %w", err)
	}
	container.Register("theme", themeService)

	container.Register("pipeline", services.NewPipelineService(llmService, imageService, deckService, progressService))
	container.Register("action", services.NewActionService(llmService, imageService, deckService))
	container.Register("share", services.NewShareService(deckService, themeService))
	container.Register("export", services.NewExportService(deckService, themeService))

	return nil
}

// Cleanup 关闭持有外部资源的服务
func Cleanup() {
	container := di.GetContainer()

	if themeService, ok := container.Get("theme").(*services.ThemeService); ok {
		if err := themeService.Close(); err != nil {
			utils.GetLogger().Warnf("Failed to close theme database: %v", err)
		}
	}
}
