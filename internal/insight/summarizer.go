package insight

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/rcoelho/finbot/internal/domain"
)

// ErrUnavailable signals that the summarizer backend could not produce a
// diagnosis. Callers degrade to FallbackSummary instead of surfacing it.
var ErrUnavailable = errors.New("summarizer unavailable")

// Summarizer is the external AI backend that turns a diagnosis request
// into natural-language insight text.
type Summarizer interface {
	Summarize(ctx context.Context, req *domain.DiagnosisRequest) (*domain.DiagnosisResult, error)
}

// GeminiSummarizer implements Summarizer on top of the Gemini API.
type GeminiSummarizer struct {
	model string
}

// NewGeminiSummarizer creates a summarizer using the given model name.
// API credentials come from the environment, as for the genai client.
func NewGeminiSummarizer(model string) *GeminiSummarizer {
	return &GeminiSummarizer{model: model}
}

// Summarize sends the composed prompt to Gemini. Any transport or model
// failure is reported as ErrUnavailable; the caller owns the timeout via
// ctx.
func (s *GeminiSummarizer) Summarize(ctx context.Context, req *domain.DiagnosisRequest) (*domain.DiagnosisResult, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("Summarize: create genai client: %v: %w", err, ErrUnavailable)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: req.Prompt},
			},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, s.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("Summarize: generate content: %v: %w", err, ErrUnavailable)
	}

	text := cleanModelText(resp.Text())
	if text == "" {
		return nil, fmt.Errorf("Summarize: empty response from model: %w", ErrUnavailable)
	}

	return &domain.DiagnosisResult{
		Text:      text,
		Available: true,
		Model:     s.model,
	}, nil
}

// cleanModelText strips Markdown code fences the model may wrap its
// answer in despite instructions.
func cleanModelText(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
	}

	return strings.TrimSpace(s)
}
