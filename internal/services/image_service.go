// internal/services/image_service.go
package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/Corphon/SlideForgeMCP/internal/config"
	"github.com/Corphon/SlideForgeMCP/internal/imagegen"
)

// ImageService 提供图像合成调用接口
type ImageService struct {
	providerMutex sync.RWMutex
	provider      imagegen.Provider
	providerName  string
	isReady       bool
	readyState    string
}

// NewImageService 创建图像服务实例
func NewImageService() *ImageService {
	service := &ImageService{
		readyState: "Uninitialized",
	}

	cfg := config.GetCurrentConfig()
	if cfg == nil {
		service.readyState = "Failed to retrieve configuration"
		return service
	}

	if cfg.ImageProvider == "" || (cfg.ImageConfig != nil && cfg.ImageConfig["api_key"] == "") {
		service.readyState = "API key not configured"
		return service
	}

	provider, err := imagegen.GetProvider(cfg.ImageProvider, cfg.ImageConfig)
	if err != nil {
		service.readyState = fmt.Sprintf("Initialization failed: %v", err)
		return service
	}

	service.provider = provider
	service.providerName = cfg.ImageProvider
	service.isReady = true
	service.readyState = "Ready"
	return service
}

// NewImageServiceWithProvider 使用现成的Provider创建图像服务（测试与定制场景）
func NewImageServiceWithProvider(provider imagegen.Provider) *ImageService {
	service := &ImageService{
		readyState: "Uninitialized",
	}
	if provider == nil {
		service.readyState = "Provider not initialized"
		return service
	}

	service.provider = provider
	service.providerName = provider.GetName()
	service.isReady = true
	service.readyState = "Ready"
	return service
}

// IsReady 返回服务是否已就绪
func (s *ImageService) IsReady() bool {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()

	return s.provider != nil && s.isReady
}

// GetReadyState 返回服务就绪状态描述
func (s *ImageService) GetReadyState() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()

	return s.readyState
}

// UpdateProvider 热更新提供商配置
func (s *ImageService) UpdateProvider(name string, providerConfig map[string]string) error {
	provider, err := imagegen.GetProvider(name, providerConfig)
	if err != nil {
		return err
	}

	s.providerMutex.Lock()
	defer s.providerMutex.Unlock()

	s.provider = provider
	s.providerName = name
	s.isReady = true
	s.readyState = "Ready"
	return nil
}

// GenerateImage 根据提示词合成一张图像，返回data URI
func (s *ImageService) GenerateImage(ctx context.Context, prompt string) (string, error) {
	s.providerMutex.RLock()
	provider := s.provider
	ready := s.isReady
	s.providerMutex.RUnlock()

	if provider == nil || !ready {
		return "", fmt.Errorf("image service not ready: %s", s.GetReadyState())
	}

	resp, err := provider.GenerateImage(ctx, imagegen.ImageRequest{Prompt: prompt})
	if err != nil {
		return "", err
	}
	return resp.DataURI, nil
}
