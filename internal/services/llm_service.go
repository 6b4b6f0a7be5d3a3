// internal/services/llm_service.go
package services

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/Corphon/SlideForgeMCP/internal/config"
	"github.com/Corphon/SlideForgeMCP/internal/llm"
	"github.com/Corphon/SlideForgeMCP/internal/models"
)

var ErrLLMNotReady = errors.New("llm service not ready")

// LLMService 提供统一的大语言模型调用接口
type LLMService struct {
	providerMutex sync.RWMutex
	provider      llm.Provider
	providerName  string
	cache         *LLMCache
	isReady       bool
	readyState    string
}

// LLMCache 响应缓存
type LLMCache struct {
	cache      map[string]*CacheEntry
	mutex      sync.RWMutex
	expiration time.Duration
}

// CacheEntry 缓存条目
type CacheEntry struct {
	Response  *llm.CompletionResponse
	CreatedAt time.Time
}

// SlideContent 单页内容生成结果
type SlideContent struct {
	Content     []string          `json:"content"`
	ImagePrompt string            `json:"image_prompt"`
	Chart       *models.ChartSpec `json:"chart,omitempty"`
}

// NewLLMService 创建一个新的LLM服务
func NewLLMService() (*LLMService, error) {
	service := createBaseLLMService()

	cfg := config.GetCurrentConfig()
	if cfg == nil {
		service.readyState = "Failed to retrieve configuration"
		return service, nil
	}

	if cfg.LLMProvider == "" || (cfg.LLMConfig != nil && cfg.LLMConfig["api_key"] == "") {
		service.readyState = "API key not configured"
		return service, nil
	}

	provider, err := llm.GetProvider(cfg.LLMProvider, cfg.LLMConfig)
	if err != nil {
		service.readyState = fmt.Sprintf("Initialization failed: %v", err)
		return service, nil // 返回未就绪服务而不是错误
	}

	service.provider = provider
	service.providerName = cfg.LLMProvider
	service.isReady = true
	service.readyState = "Ready"

	return service, nil
}

// NewLLMServiceWithProvider 使用现成的Provider创建LLM服务（测试与定制场景）
func NewLLMServiceWithProvider(provider llm.Provider) *LLMService {
	service := createBaseLLMService()
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

// createBaseLLMService 创建基础LLM服务实例
func createBaseLLMService() *LLMService {
	return &LLMService{
		readyState: "Uninitialized",
		cache: &LLMCache{
			cache:      make(map[string]*CacheEntry),
			expiration: 30 * time.Minute,
		},
	}
}

// IsReady 返回服务是否已就绪
func (s *LLMService) IsReady() bool {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()

	return s.provider != nil && s.isReady
}

// GetReadyState 返回服务就绪状态描述
func (s *LLMService) GetReadyState() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()

	return s.readyState
}

// GetProviderName 返回当前提供商名称
func (s *LLMService) GetProviderName() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()

	return s.providerName
}

// UpdateProvider 热更新提供商配置
func (s *LLMService) UpdateProvider(name string, providerConfig map[string]string) error {
	provider, err := llm.GetProvider(name, providerConfig)
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

// complete 发起一次补全调用，带缓存
func (s *LLMService) complete(ctx context.Context, request llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.providerMutex.RLock()
	provider := s.provider
	ready := s.isReady
	s.providerMutex.RUnlock()

	if provider == nil || !ready {
		return nil, ErrLLMNotReady
	}

	cacheKey := s.cacheKey(request)
	if cached := s.checkCache(cacheKey); cached != nil {
		return cached, nil
	}

	response, err := provider.CompleteText(ctx, request)
	if err != nil {
		return nil, err
	}

	s.addToCache(cacheKey, response)
	return response, nil
}

// GenerateOutlines 为主题生成候选大纲集
// 每个候选大纲恰好包含 slideCount 个要点，每个要点是一张幻灯片的标题。
func (s *LLMService) GenerateOutlines(ctx context.Context, topic string, slideCount, candidates int, audience string) ([]models.Outline, error) {
	prompt := fmt.Sprintf(`Propose %d alternative outlines for a presentation about "%s".
The target audience is: %s.
Each outline must contain exactly %d points; each point is the title of one slide.
Return the result as a JSON array matching the schema in the system prompt.`,
		candidates, topic, audienceOrGeneral(audience), slideCount)

	systemPrompt := fmt.Sprintf(`You are a professional presentation designer. Respond ONLY with valid JSON matching this schema:
[
	{
		"title": "string",
		"points": ["string"]
	}
]
Formatting requirements:
1. Output must be a single JSON array with exactly %d outline objects.
2. Every "points" array must contain exactly %d entries.
3. Use ASCII double quotes, commas, and colons. Do NOT wrap the output in Markdown code fences.
4. Provide no commentary outside the JSON array.`, candidates, slideCount)

	request := llm.CompletionRequest{
		Prompt:       prompt,
		SystemPrompt: systemPrompt,
		MaxTokens:    2000,
		Temperature:  0.7,
	}

	response, err := s.complete(ctx, request)
	if err != nil {
		return nil, err
	}

	cleanedText := cleanJSONString(response.Text)
	var outlines []models.Outline
	if err := json.Unmarshal([]byte(cleanedText), &outlines); err != nil {
		// 解析数组失败时尝试单对象
		var single models.Outline
		if err2 := json.Unmarshal([]byte(cleanedText), &single); err2 != nil {
			return nil, fmt.Errorf("failed to parse AI response into structured data: %w\nAI return: %s",
				err, truncateText(response.Text, 120))
		}
		outlines = []models.Outline{single}
	}

	if len(outlines) == 0 {
		return nil, errors.New("model returned an empty outline set")
	}

	return outlines, nil
}

// GenerateSlideContent 为单张幻灯片生成正文、图像提示词与可选图表
// 图表优先于图像的偏好只体现在提示词里，本地不做校验。
func (s *LLMService) GenerateSlideContent(ctx context.Context, topic, slideTitle, audience string) (*SlideContent, error) {
	prompt := fmt.Sprintf(`Write the content of one slide in a presentation about "%s".
Slide title: "%s"
Target audience: %s.
Produce 2-4 concise bullet points, an image prompt describing an illustrative picture, and,
ONLY if the content is data-centric (trends, comparisons, distributions), a chart instead of the image prompt.
Prefer a chart over an image whenever realistic numeric data makes sense for the slide.`,
		topic, slideTitle, audienceOrGeneral(audience))

	systemPrompt := `You are a professional presentation writer. Respond ONLY with valid JSON matching this schema:
{
	"content": ["string"],
	"image_prompt": "string",
	"chart": {
		"type": "bar|line|pie",
		"labels": ["string"],
		"datasets": [{"label": "string", "data": [0]}]
	}
}
Formatting requirements:
1. "content" must contain 2 to 4 bullet strings without leading dashes.
2. Omit the "chart" field entirely when the slide is better served by an image.
3. Every dataset's "data" array must align with "labels" by index.
4. Use ASCII double quotes. Do NOT wrap the output in Markdown code fences or add commentary.`

	request := llm.CompletionRequest{
		Prompt:       prompt,
		SystemPrompt: systemPrompt,
		MaxTokens:    1500,
		Temperature:  0.6,
	}

	response, err := s.complete(ctx, request)
	if err != nil {
		return nil, err
	}

	cleanedText := cleanJSONString(response.Text)
	var content SlideContent
	if err := json.Unmarshal([]byte(cleanedText), &content); err != nil {
		return nil, fmt.Errorf("failed to parse AI response into structured data: %w\nAI return: %s",
			err, truncateText(response.Text, 120))
	}

	if len(content.Content) > 4 {
		content.Content = content.Content[:4]
	}
	if content.Chart != nil && !content.Chart.Valid() {
		content.Chart = nil
	}

	return &content, nil
}

// GenerateChart 仅根据现有标题与要点生成一个新图表
func (s *LLMService) GenerateChart(ctx context.Context, slideTitle string, bullets []string) (*models.ChartSpec, error) {
	prompt := fmt.Sprintf(`Design one chart that visualizes the following slide.
Slide title: "%s"
Bullet points:
%s
Invent plausible, internally consistent numeric data that supports the bullets.`,
		slideTitle, "- "+strings.Join(bullets, "\n- "))

	systemPrompt := `You are a data visualization expert. Respond ONLY with valid JSON matching this schema:
{
	"type": "bar|line|pie",
	"labels": ["string"],
	"datasets": [{"label": "string", "data": [0]}]
}
Formatting requirements:
1. Every dataset's "data" array must align with "labels" by index.
2. Use ASCII double quotes. Do NOT wrap the output in Markdown code fences or add commentary.`

	request := llm.CompletionRequest{
		Prompt:       prompt,
		SystemPrompt: systemPrompt,
		MaxTokens:    1000,
		Temperature:  0.5,
	}

	response, err := s.complete(ctx, request)
	if err != nil {
		return nil, err
	}

	cleanedText := cleanJSONString(response.Text)
	var spec models.ChartSpec
	if err := json.Unmarshal([]byte(cleanedText), &spec); err != nil {
		return nil, fmt.Errorf("failed to parse AI response into structured data: %w\nAI return: %s",
			err, truncateText(response.Text, 120))
	}

	if !spec.Valid() {
		return nil, errors.New("model returned an empty or malformed chart")
	}

	return &spec, nil
}

// EnhanceWording 请求对标题与要点的自由文本重写
// 返回约定格式的原始文本："Title:"行后跟以短横线开头的要点行，由调用方解析。
func (s *LLMService) EnhanceWording(ctx context.Context, slideTitle string, bullets []string, audience string) (string, error) {
	prompt := fmt.Sprintf(`Rewrite the following slide to be sharper and better suited to the audience: %s.
Slide title: %s
Bullet points:
%s

Answer in exactly this format, with no extra commentary:
Title: <rewritten title>
- <rewritten bullet>
- <rewritten bullet>`,
		audienceOrGeneral(audience), slideTitle, "- "+strings.Join(bullets, "\n- "))

	request := llm.CompletionRequest{
		Prompt:      prompt,
		MaxTokens:   800,
		Temperature: 0.7,
	}

	response, err := s.complete(ctx, request)
	if err != nil {
		return "", err
	}

	return response.Text, nil
}

// GenerateSpeakerNotes 生成演讲者备注，原样返回模型文本
func (s *LLMService) GenerateSpeakerNotes(ctx context.Context, slideTitle string, bullets []string, audience string) (string, error) {
	prompt := fmt.Sprintf(`Write short speaker notes (3-5 sentences) for the following slide, addressed to a presenter
speaking to this audience: %s.
Slide title: %s
Bullet points:
%s`,
		audienceOrGeneral(audience), slideTitle, "- "+strings.Join(bullets, "\n- "))

	request := llm.CompletionRequest{
		Prompt:      prompt,
		MaxTokens:   600,
		Temperature: 0.7,
	}

	response, err := s.complete(ctx, request)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(response.Text), nil
}

func audienceOrGeneral(audience string) string {
	if strings.TrimSpace(audience) == "" {
		return "a general audience"
	}
	return audience
}

// 缓存管理 -------------------------------------------------

func (s *LLMService) cacheKey(request llm.CompletionRequest) string {
	data, _ := json.Marshal(request)
	return fmt.Sprintf("%x", md5.Sum(data))
}

func (s *LLMService) checkCache(key string) *llm.CompletionResponse {
	s.cache.mutex.RLock()
	defer s.cache.mutex.RUnlock()

	entry, exists := s.cache.cache[key]
	if !exists {
		return nil
	}
	if time.Since(entry.CreatedAt) > s.cache.expiration {
		return nil
	}
	return entry.Response
}

func (s *LLMService) addToCache(key string, response *llm.CompletionResponse) {
	s.cache.mutex.Lock()
	defer s.cache.mutex.Unlock()

	s.cache.cache[key] = &CacheEntry{
		Response:  response,
		CreatedAt: time.Now(),
	}
}

// JSON清理 -------------------------------------------------

// 清理JSON字符串，去除前后非JSON内容
var jsonNoiseReplacer = strings.NewReplacer(
	"```json", "",
	"```", "",
	"\uFEFF", "",
	"\u00A0", " ",
	"\u2028", "\n",
	"\u2029", "\n",
)

var structuralPunctuationMap = map[rune]rune{
	'：': ':',
	'，': ',',
	'；': ';',
	'【': '[',
	'】': ']',
	'［': '[',
	'］': ']',
	'｛': '{',
	'｝': '}',
}

func cleanJSONString(s string) string {
	if s == "" {
		return s
	}

	// 统一替换常见的噪声、全角符号以及Markdown标记
	s = jsonNoiseReplacer.Replace(s)
	s = strings.TrimSpace(s)

	// 移除零宽字符及除换行/制表符外的控制字符，替换全角结构符号
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\u200B', '\u200C', '\u200D', '\u2060', '\uFEFF':
			return -1
		}
		if mapped, ok := structuralPunctuationMap[r]; ok {
			return mapped
		}
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	// 截取首个JSON结构的起止
	start := strings.IndexAny(s, "[{")
	if start > 0 {
		s = s[start:]
	}
	end := strings.LastIndexAny(s, "]}")
	if end >= 0 && end < len(s)-1 {
		s = s[:end+1]
	}

	return strings.TrimSpace(s)
}

// truncateText 截断过长文本用于错误信息
func truncateText(text string, maxLength int) string {
	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}
	return string(runes[:maxLength]) + "..."
}
