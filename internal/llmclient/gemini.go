// Package llmclient wraps the Gemini API for LLM-backed Q&A over
// analysis results. The analysis context is serialized into the prompt
// so the model answers from extracted facts, not from the raw tree.
package llmclient

import (
	"context"
	"errors"
	"log"
	"time"

	genai "google.golang.org/genai"
)

var ErrEmptyResponse = errors.New("llmclient: empty response from model")

const defaultModel = "gemini-2.5-flash"

// GeminiClient is a thin wrapper around the official genai client.
type GeminiClient struct {
	cli   *genai.Client
	model string
}

func NewGeminiClient(ctx context.Context, model string) (*GeminiClient, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = defaultModel
	}
	return &GeminiClient{cli: cli, model: model}, nil
}

func (g *GeminiClient) Name() string { return "Gemini:" + g.model }

// GenerateText sends the prompt and returns the first candidate's
// text, retrying transient failures with exponential backoff.
func (g *GeminiClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	log.Printf("LLM request: %d bytes", len(prompt))

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		resp, err := g.cli.Models.GenerateContent(ctx, g.model,
			[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
			&genai.GenerateContentConfig{},
		)
		if err != nil {
			lastErr = err
		} else if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
			lastErr = ErrEmptyResponse
		} else {
			return resp.Candidates[0].Content.Parts[0].Text, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(300*(1<<attempt)) * time.Millisecond):
		}
	}
	return "", lastErr
}
