// internal/models/deck.go
package models

import "time"

// SlideLayout controls where text and visual content sit on a slide.
type SlideLayout string

const (
	LayoutTextLeft  SlideLayout = "text-left"
	LayoutTextRight SlideLayout = "text-right"
	LayoutImageFull SlideLayout = "image-full"
)

// Visual sentinels carried in Slide.ImageURL. Any other non-empty value is
// actual image content (a data URI or an external URL).
const (
	ImageNotRequested = ""
	ImagePending      = "__pending__"
	ImageFailed       = "__failed__"
	ImageNone         = "__none__"
)

// Slide 演示文稿中的单页
type Slide struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Content      []string    `json:"content"`       // bullet lines, 2-4 when generated
	ImagePrompt  string      `json:"image_prompt"`  // prompt used for image synthesis
	ImageURL     string      `json:"image_url"`     // sentinel or image payload
	SpeakerNotes string      `json:"speaker_notes,omitempty"`
	Layout       SlideLayout `json:"layout"`
	Chart        *ChartSpec  `json:"chart,omitempty"` // mutually exclusive with an image
}

// HasImage reports whether ImageURL carries real image content rather than a
// sentinel state.
func (s *Slide) HasImage() bool {
	switch s.ImageURL {
	case ImageNotRequested, ImagePending, ImageFailed, ImageNone:
		return false
	}
	return true
}

// SetImage installs image content and clears any chart.
func (s *Slide) SetImage(url string) {
	s.ImageURL = url
	s.Chart = nil
}

// SetChart installs a chart and clears any image state.
func (s *Slide) SetChart(spec *ChartSpec) {
	s.Chart = spec
	s.ImageURL = ImageNone
}

// Deck 幻灯片集合及其主题与游标
type Deck struct {
	ID                string    `json:"id"`
	Topic             string    `json:"topic"`
	Audience          string    `json:"audience,omitempty"`
	Slides            []Slide   `json:"slides"`
	Theme             string    `json:"theme"`
	CurrentSlideIndex int       `json:"current_slide_index"`
	ReadOnly          bool      `json:"read_only"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// SlideByID returns the slide with the given id, or -1 when it is gone.
// Async results are always merged through this lookup so that a delete or
// reorder while a call is outstanding can never misapply the result.
func (d *Deck) SlideByID(id string) (int, *Slide) {
	for i := range d.Slides {
		if d.Slides[i].ID == id {
			return i, &d.Slides[i]
		}
	}
	return -1, nil
}

// CloneSlides returns a copy of the slide sequence; mutations always replace
// the whole sequence with a derived one.
func (d *Deck) CloneSlides() []Slide {
	out := make([]Slide, len(d.Slides))
	copy(out, d.Slides)
	return out
}
