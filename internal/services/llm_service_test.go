// internal/services/llm_service_test.go
package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/SlideForgeMCP/internal/llm"
)

func TestCleanJSONString(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "markdown fences",
			input: "```json\n{\"a\": 1}\n```",
			want:  `{"a": 1}`,
		},
		{
			name:  "prose around the JSON",
			input: "Sure, here is your outline:\n[{\"title\": \"x\"}]\nHope that helps!",
			want:  `[{"title": "x"}]`,
		},
		{
			name:  "fullwidth punctuation",
			input: "{\"a\"：1，\"b\"：2}",
			want:  `{"a":1,"b":2}`,
		},
		{
			name:  "bom and zero-width characters",
			input: "\uFEFF{\"a\": \u200B1\u200D}\u2060",
			want:  `{"a": 1}`,
		},
		{
			name:  "unicode line separators",
			input: "{\"a\":\u20281,\u2029\"b\":2}",
			want:  "{\"a\":\n1,\n\"b\":2}",
		},
		{
			name:  "already clean",
			input: `{"a": 1}`,
			want:  `{"a": 1}`,
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, cleanJSONString(tc.input))
		})
	}
}

func TestLLMService_NotReadyWithoutProvider(t *testing.T) {
	svc := NewLLMServiceWithProvider(nil)

	assert.False(t, svc.IsReady())
	_, err := svc.GenerateOutlines(context.Background(), "topic", 3, 2, "")
	assert.ErrorIs(t, err, ErrLLMNotReady)
}

func TestGenerateOutlines_AcceptsSingleObjectFallback(t *testing.T) {
	provider := &fakeLLMProvider{completeFn: func(req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{
			Text: `{"title": "Solo outline", "points": ["One", "Two"]}`,
		}, nil
	}}
	svc := NewLLMServiceWithProvider(provider)

	outlines, err := svc.GenerateOutlines(context.Background(), "topic", 2, 1, "")
	require.NoError(t, err)
	require.Len(t, outlines, 1)
	assert.Equal(t, "Solo outline", outlines[0].Title)
}

func TestGenerateSlideContent_TruncatesToFourBullets(t *testing.T) {
	provider := &fakeLLMProvider{completeFn: func(req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{
			Text: `{"content": ["a", "b", "c", "d", "e", "f"], "image_prompt": "p"}`,
		}, nil
	}}
	svc := NewLLMServiceWithProvider(provider)

	content, err := svc.GenerateSlideContent(context.Background(), "topic", "title", "")
	require.NoError(t, err)
	assert.Len(t, content.Content, 4)
}

func TestGenerateSlideContent_DropsInvalidChart(t *testing.T) {
	provider := &fakeLLMProvider{completeFn: func(req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{
			Text: `{"content": ["a", "b"], "image_prompt": "p", "chart": {"type": "donut", "labels": ["x"], "datasets": [{"label": "d", "data": [1]}]}}`,
		}, nil
	}}
	svc := NewLLMServiceWithProvider(provider)

	content, err := svc.GenerateSlideContent(context.Background(), "topic", "title", "")
	require.NoError(t, err)
	assert.Nil(t, content.Chart)
	assert.Equal(t, "p", content.ImagePrompt)
}

func TestGenerateChart_RejectsMalformedSpec(t *testing.T) {
	provider := &fakeLLMProvider{completeFn: func(req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{Text: `{"type": "bar", "labels": [], "datasets": []}`}, nil
	}}
	svc := NewLLMServiceWithProvider(provider)

	_, err := svc.GenerateChart(context.Background(), "title", []string{"a"})
	assert.Error(t, err)
}

func TestComplete_CachesIdenticalRequests(t *testing.T) {
	calls := 0
	provider := &fakeLLMProvider{completeFn: func(req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		calls++
		return &llm.CompletionResponse{Text: "the same notes every time"}, nil
	}}
	svc := NewLLMServiceWithProvider(provider)

	for i := 0; i < 3; i++ {
		notes, err := svc.GenerateSpeakerNotes(context.Background(), "title", []string{"a", "b"}, "team")
		require.NoError(t, err)
		assert.Equal(t, "the same notes every time", notes)
	}
	assert.Equal(t, 1, calls)
}
