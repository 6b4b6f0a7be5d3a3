// internal/models/outline.go
package models

import "time"

// Outline 候选大纲：每个要点对应一张幻灯片的标题
type Outline struct {
	Title  string   `json:"title"`
	Points []string `json:"points"`
}

// OutlineTask holds the proposed outline set between Stage 1 and deck
// generation. Point text may be edited in place before commit; the whole
// task is discarded once slide generation starts.
type OutlineTask struct {
	ID         string    `json:"id"`
	Topic      string    `json:"topic"`
	Audience   string    `json:"audience,omitempty"`
	SlideCount int       `json:"slide_count"`
	Outlines   []Outline `json:"outlines"`
	Selected   int       `json:"selected"` // pre-selected candidate, first by convention
	CreatedAt  time.Time `json:"created_at"`
}

// Clone returns a deep copy of the task. Callers hold task snapshots outside
// the owning service's lock, so the stored instance is never handed out.
func (t *OutlineTask) Clone() *OutlineTask {
	out := *t
	out.Outlines = make([]Outline, len(t.Outlines))
	for i, outline := range t.Outlines {
		points := make([]string, len(outline.Points))
		copy(points, outline.Points)
		out.Outlines[i] = Outline{Title: outline.Title, Points: points}
	}
	return &out
}
