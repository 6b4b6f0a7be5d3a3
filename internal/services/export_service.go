// internal/services/export_service.go
package services

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"

	ppt "github.com/VantageDataChat/GoPPT"
	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/image"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/extension"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontfamily"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/Corphon/SlideForgeMCP/internal/charts"
	apperrors "github.com/Corphon/SlideForgeMCP/internal/errors"
	"github.com/Corphon/SlideForgeMCP/internal/models"
	"github.com/Corphon/SlideForgeMCP/internal/utils"
)

// PPT布局常量，16:9宽屏
const (
	emuPerInch = 914400

	pptMarginLeft = int64(0.4 * emuPerInch)

	pptContentWidth = int64(9.2 * emuPerInch)
	pptSlideWidth   = int64(10.0 * emuPerInch)
	pptSlideHeight  = int64(5.625 * emuPerInch)

	pptFontTitle = 32
	pptFontBody  = 16
	pptFontNotes = 10
)

// ExportService 把deck渲染为PPTX与PDF
type ExportService struct {
	deckService  *DeckService
	themeService *ThemeService
}

// NewExportService 创建导出服务实例
func NewExportService(decks *DeckService, themes *ThemeService) *ExportService {
	return &ExportService{
		deckService:  decks,
		themeService: themes,
	}
}

// argb 把六位十六进制色转为GoPPT期望的ARGB形式
func argb(hex string) string {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) == 6 {
		return "FF" + strings.ToUpper(hex)
	}
	return strings.ToUpper(hex)
}

// visualBytes 解析幻灯片的视觉内容为PNG字节
// 图表即时渲染；图像只支持data URI载荷，外部URL返回空。
func (s *ExportService) visualBytes(slide *models.Slide, palette models.ThemeColors) []byte {
	if slide.Chart != nil {
		png, err := charts.Render(slide.Chart, palette)
		if err != nil {
			utils.GetLogger().Warnf("Chart rendering failed for slide %s: %v", slide.ID, err)
			return nil
		}
		return png
	}

	if !slide.HasImage() {
		return nil
	}
	if !strings.HasPrefix(slide.ImageURL, "data:image") {
		return nil
	}

	parts := strings.SplitN(slide.ImageURL, ",", 2)
	if len(parts) != 2 {
		return nil
	}
	imgBytes, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		utils.GetLogger().Warnf("Image payload on slide %s is not valid base64: %v", slide.ID, err)
		return nil
	}
	return imgBytes
}

// ExportPPTX 把deck导出为PowerPoint文档
func (s *ExportService) ExportPPTX(deckID string) ([]byte, error) {
	deck, err := s.deckService.GetDeck(deckID)
	if err != nil {
		return nil, err
	}
	palette := s.themeService.Resolve(deck.Theme)

	p := ppt.New()
	p.GetDocumentProperties().Title = deck.Topic
	p.GetDocumentProperties().Creator = "SlideForge"

	for i := range deck.Slides {
		slide := &deck.Slides[i]

		var target *ppt.Slide
		if i == 0 {
			target = p.GetActiveSlide()
		} else {
			target = p.CreateSlide()
		}

		visual := s.visualBytes(slide, palette)
		if slide.Layout == models.LayoutImageFull && visual != nil {
			s.buildImageFullSlide(target, slide, visual, palette)
		} else {
			s.buildSplitSlide(target, slide, visual, palette)
		}
	}

	w, err := ppt.NewWriter(p, ppt.WriterPowerPoint2007)
	if err != nil {
		return nil, apperrors.NewProcessingError("failed to create PPTX writer", err)
	}

	var buf bytes.Buffer
	if err := w.(*ppt.PPTXWriter).WriteTo(&buf); err != nil {
		return nil, apperrors.NewProcessingError("failed to write PPTX document", err)
	}
	return buf.Bytes(), nil
}

// buildSplitSlide 渲染text-left/text-right布局：正文与视觉各占半幅
func (s *ExportService) buildSplitSlide(slide *ppt.Slide, src *models.Slide, visual []byte, palette models.ThemeColors) {
	// 整页底色
	background := slide.CreateRichTextShape()
	background.SetOffsetX(0).SetOffsetY(0)
	background.SetWidth(pptSlideWidth).SetHeight(pptSlideHeight)
	background.SetFill(ppt.NewFill().SetSolid(ppt.NewColor(argb(palette.Background))))

	// 顶部装饰条
	topBar := slide.CreateRichTextShape()
	topBar.SetOffsetX(0).SetOffsetY(0)
	topBar.SetWidth(pptSlideWidth).SetHeight(int64(0.1 * emuPerInch))
	topBar.SetFill(ppt.NewFill().SetSolid(ppt.NewColor(argb(palette.Secondary))))

	titleShape := slide.CreateRichTextShape()
	titleShape.SetOffsetX(pptMarginLeft).SetOffsetY(int64(0.3 * emuPerInch))
	titleShape.SetWidth(pptContentWidth).SetHeight(int64(0.8 * emuPerInch))
	titleRun := titleShape.CreateTextRun(src.Title)
	titleRun.GetFont().SetSize(pptFontTitle).SetBold(true).SetColor(ppt.NewColor(argb(palette.Primary)))

	textX := pptMarginLeft
	visualX := int64(5.2 * emuPerInch)
	if src.Layout == models.LayoutTextRight {
		textX = int64(5.2 * emuPerInch)
		visualX = pptMarginLeft
	}

	textWidth := int64(4.4 * emuPerInch)
	if visual == nil {
		textX = pptMarginLeft
		textWidth = pptContentWidth
	}

	bodyShape := slide.CreateRichTextShape()
	bodyShape.SetOffsetX(textX).SetOffsetY(int64(1.3 * emuPerInch))
	bodyShape.SetWidth(textWidth).SetHeight(int64(3.8 * emuPerInch))
	for j, bullet := range src.Content {
		if j > 0 {
			bodyShape.CreateParagraph()
		}
		run := bodyShape.CreateTextRun("• " + bullet)
		run.GetFont().SetSize(pptFontBody).SetColor(ppt.NewColor(argb(palette.Text)))
	}

	if visual != nil {
		imgShape := slide.CreateDrawingShape()
		imgShape.SetImageData(visual, "image/png")
		imgShape.SetOffsetX(visualX).SetOffsetY(int64(1.3 * emuPerInch))
		imgShape.SetWidth(int64(4.4 * emuPerInch)).SetHeight(int64(3.3 * emuPerInch))
	}
}

// buildImageFullSlide 渲染image-full布局：视觉铺满页面，标题条压在其上
func (s *ExportService) buildImageFullSlide(slide *ppt.Slide, src *models.Slide, visual []byte, palette models.ThemeColors) {
	imgShape := slide.CreateDrawingShape()
	imgShape.SetImageData(visual, "image/png")
	imgShape.SetOffsetX(0).SetOffsetY(0)
	imgShape.SetWidth(pptSlideWidth).SetHeight(pptSlideHeight)

	titleBar := slide.CreateRichTextShape()
	titleBar.SetOffsetX(0).SetOffsetY(int64(4.6 * emuPerInch))
	titleBar.SetWidth(pptSlideWidth).SetHeight(int64(0.8 * emuPerInch))
	titleBar.SetFill(ppt.NewFill().SetSolid(ppt.NewColor(argb(palette.Primary))))
	titleRun := titleBar.CreateTextRun(src.Title)
	titleRun.GetFont().SetSize(pptFontTitle - 8).SetBold(true).SetColor(ppt.NewColor(argb(palette.Background)))
}

// ExportPDF 把deck导出为打印风格的线性PDF
func (s *ExportService) ExportPDF(deckID string) ([]byte, error) {
	deck, err := s.deckService.GetDeck(deckID)
	if err != nil {
		return nil, err
	}
	palette := s.themeService.Resolve(deck.Theme)
	titleColor := hexToPDFColor(palette.Primary)
	textColor := hexToPDFColor(palette.Text)

	cfg := config.NewBuilder().
		WithPageNumber().
		WithLeftMargin(15).
		WithTopMargin(15).
		WithRightMargin(15).
		WithDefaultFont(&props.Font{
			Family: fontfamily.Arial,
			Size:   10,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(16,
		col.New(12).Add(
			text.New(deck.Topic, props.Text{
				Family: fontfamily.Arial,
				Size:   20,
				Style:  fontstyle.Bold,
				Align:  align.Center,
				Color:  titleColor,
			}),
		),
	)
	m.AddRow(6)

	for i := range deck.Slides {
		slide := &deck.Slides[i]

		m.AddRow(10,
			col.New(12).Add(
				text.New(fmt.Sprintf("%d. %s", i+1, slide.Title), props.Text{
					Family: fontfamily.Arial,
					Size:   14,
					Style:  fontstyle.Bold,
					Color:  titleColor,
				}),
			),
		)

		for _, bullet := range slide.Content {
			m.AddRow(6,
				col.New(12).Add(
					text.New("• "+bullet, props.Text{
						Family: fontfamily.Arial,
						Size:   10,
						Color:  textColor,
					}),
				),
			)
		}

		if visual := s.visualBytes(slide, palette); visual != nil {
			m.AddRow(70,
				col.New(12).Add(
					image.NewFromBytes(visual, extension.Png),
				),
			)
		}

		if slide.SpeakerNotes != "" {
			m.AddRow(8,
				col.New(12).Add(
					text.New("Notes: "+slide.SpeakerNotes, props.Text{
						Family: fontfamily.Arial,
						Size:   8,
						Style:  fontstyle.Italic,
					}),
				),
			)
		}

		m.AddRow(6)
	}

	document, err := m.Generate()
	if err != nil {
		return nil, apperrors.NewProcessingError("failed to generate PDF document", err)
	}
	return document.GetBytes(), nil
}

// hexToPDFColor 把六位十六进制色转为maroto的RGB颜色
func hexToPDFColor(hex string) *props.Color {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return &props.Color{Red: 0, Green: 0, Blue: 0}
	}

	var r, g, b int
	fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b)
	return &props.Color{Red: r, Green: g, Blue: b}
}
