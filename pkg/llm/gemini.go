// Package llm wraps the Gemini client behind a small text/JSON generation
// interface that the agents depend on.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Generator produces model output for a system instruction plus prompt.
// Agents depend on this interface so tests can substitute fakes.
type Generator interface {
	GenerateText(ctx context.Context, system, prompt string) (string, error)
	GenerateJSON(ctx context.Context, system, prompt string, out any) error
}

// Gemini is the production Generator.
type Gemini struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGemini creates a client against the Gemini API backend.
func NewGemini(ctx context.Context, apiKey, model string, temperature float32) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client, model: model, temperature: temperature}, nil
}

func (g *Gemini) generate(ctx context.Context, system, prompt, mimeType string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.temperature),
	}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}
	if mimeType != "" {
		cfg.ResponseMIMEType = mimeType
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("generate content: empty response")
	}
	return text, nil
}

func (g *Gemini) GenerateText(ctx context.Context, system, prompt string) (string, error) {
	return g.generate(ctx, system, prompt, "")
}

func (g *Gemini) GenerateJSON(ctx context.Context, system, prompt string, out any) error {
	text, err := g.generate(ctx, system, prompt, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(StripFences(text)), out); err != nil {
		return fmt.Errorf("decode model json: %w", err)
	}
	return nil
}

// StripFences removes a surrounding markdown code fence, which some models
// emit even when asked for raw JSON.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.ContainsAny(s[:i], "{[") {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
