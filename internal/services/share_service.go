// internal/services/share_service.go
package services

import (
	"bytes"
	"compress/flate"
	"encoding/base64"
	"encoding/json"
	"io"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Corphon/SlideForgeMCP/internal/errors"
	"github.com/Corphon/SlideForgeMCP/internal/models"
)

// 编码结果超过该长度时拒绝分享，载荷要能放进一个URL片段
const maxSharePayloadChars = 8000

// sharePayload 分享载荷的线格式，无版本号
type sharePayload struct {
	Slides      []models.Slide      `json:"slides"`
	Theme       string              `json:"theme"`
	CustomTheme *models.CustomTheme `json:"custom_theme,omitempty"`
}

// ShareService 把deck编解码为URL安全的自包含字符串
type ShareService struct {
	deckService  *DeckService
	themeService *ThemeService
}

// NewShareService 创建分享编解码服务实例
func NewShareService(decks *DeckService, themes *ThemeService) *ShareService {
	return &ShareService{
		deckService:  decks,
		themeService: themes,
	}
}

// EncodeDeck 把deck编码为分享字符串
// 激活主题为自定义主题时其完整定义随载荷携带。
func (s *ShareService) EncodeDeck(deckID string) (string, error) {
	deck, err := s.deckService.GetDeck(deckID)
	if err != nil {
		return "", err
	}

	payload := sharePayload{
		Slides: deck.CloneSlides(),
		Theme:  deck.Theme,
	}
	if !models.IsBuiltinTheme(deck.Theme) {
		if custom, err := s.themeService.GetCustomTheme(deck.Theme); err == nil {
			payload.CustomTheme = custom
		}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", apperrors.NewShareEncodeError("failed to serialize share payload", err)
	}

	var compressed bytes.Buffer
	writer, err := flate.NewWriter(&compressed, flate.BestCompression)
	if err != nil {
		return "", apperrors.NewShareEncodeError("failed to initialize compressor", err)
	}
	if _, err := writer.Write(raw); err != nil {
		return "", apperrors.NewShareEncodeError("failed to compress share payload", err)
	}
	if err := writer.Close(); err != nil {
		return "", apperrors.NewShareEncodeError("failed to compress share payload", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(compressed.Bytes())
	if len(encoded) > maxSharePayloadChars {
		return "", apperrors.NewShareEncodeError(
			"deck is too large to share as a link, remove images or slides and try again", nil)
	}

	return encoded, nil
}

// DecodePayload 解码分享字符串并落盘为一个只读deck
// 解码是宽容入口：任何结构性失败都归为share_decode错误，由调用方回退到常规入口。
func (s *ShareService) DecodePayload(encoded string) (*models.Deck, error) {
	if encoded == "" {
		return nil, apperrors.NewShareDecodeError("share payload is empty", nil)
	}

	compressed, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, apperrors.NewShareDecodeError("share payload is not valid base64", err)
	}

	reader := flate.NewReader(bytes.NewReader(compressed))
	raw, err := io.ReadAll(reader)
	closeErr := reader.Close()
	if err != nil {
		return nil, apperrors.NewShareDecodeError("share payload is not valid compressed data", err)
	}
	if closeErr != nil {
		return nil, apperrors.NewShareDecodeError("share payload is not valid compressed data", closeErr)
	}

	var payload sharePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, apperrors.NewShareDecodeError("share payload is not valid JSON", err)
	}
	if len(payload.Slides) == 0 {
		return nil, apperrors.NewShareDecodeError("share payload carries no slides", nil)
	}
	if payload.Theme == "" {
		return nil, apperrors.NewShareDecodeError("share payload carries no theme", nil)
	}

	if payload.CustomTheme != nil {
		s.themeService.AdoptSharedTheme(payload.CustomTheme)
	}

	// 旧载荷中的幻灯片可能没有id，补齐以便按id寻址
	for i := range payload.Slides {
		if payload.Slides[i].ID == "" {
			payload.Slides[i].ID = uuid.New().String()
		}
		if payload.Slides[i].Layout == "" {
			payload.Slides[i].Layout = models.LayoutTextLeft
		}
	}

	theme := payload.Theme
	if !s.themeService.ThemeExists(theme) {
		theme = models.DefaultTheme
	}

	now := time.Now()
	deck := &models.Deck{
		ID:                uuid.New().String(),
		Topic:             sharedDeckTopic(payload.Slides),
		Slides:            payload.Slides,
		Theme:             theme,
		CurrentSlideIndex: 0,
		ReadOnly:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.deckService.SaveDeck(deck); err != nil {
		return nil, err
	}
	return deck, nil
}

// sharedDeckTopic 用第一张幻灯片的标题充当导入deck的主题名
func sharedDeckTopic(slides []models.Slide) string {
	if len(slides) > 0 && slides[0].Title != "" {
		return slides[0].Title
	}
	return "Shared deck"
}
