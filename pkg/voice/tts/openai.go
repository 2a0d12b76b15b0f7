// Package tts provides text-to-speech over the OpenAI speech API.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/chorus-hq/chorus-agents/pkg/core"
)

const defaultBaseURL = "https://api.openai.com"

// Synthesizer converts question text into one complete audio payload.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*core.SpeechAudio, error)
}

// OpenAI calls the OpenAI speech endpoint and returns the full audio body.
type OpenAI struct {
	apiKey     string
	model      string
	voice      string
	format     string
	baseURL    string
	httpClient *http.Client
}

// Option configures an OpenAI synthesizer.
type Option func(*OpenAI)

// WithBaseURL overrides the API base URL. Used by tests and proxies.
func WithBaseURL(u string) Option { return func(o *OpenAI) { o.baseURL = u } }

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option { return func(o *OpenAI) { o.httpClient = c } }

// NewOpenAI creates a speech client. Defaults: tts-1, alloy voice, opus.
func NewOpenAI(apiKey, model, voice string, opts ...Option) *OpenAI {
	if model == "" {
		model = "tts-1"
	}
	if voice == "" {
		voice = "alloy"
	}
	o := &OpenAI{
		apiKey:     apiKey,
		model:      model,
		voice:      voice,
		format:     "opus",
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *OpenAI) Synthesize(ctx context.Context, text string) (*core.SpeechAudio, error) {
	body, err := json.Marshal(map[string]string{
		"model":           o.model,
		"input":           text,
		"voice":           o.voice,
		"response_format": o.format,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("speech error %d: %s", resp.StatusCode, string(errBody))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio body: %w", err)
	}
	return &core.SpeechAudio{Data: audio, Format: o.format}, nil
}
