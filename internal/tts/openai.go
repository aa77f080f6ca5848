package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxInputRunes is the provider's input bound; longer answers are cut at
// the limit rather than rejected.
const maxInputRunes = 4096

// OpenAIClient synthesizes speech via the audio/speech API. Output is MP3.
type OpenAIClient struct {
	HTTPClient *http.Client
	BaseURL    string
	APIKey     string
	Model      string
	Voice      string
}

// NewOpenAIClient constructs a synthesis client.
func NewOpenAIClient(apiKey, model, voice string) *OpenAIClient {
	if model == "" {
		model = "tts-1"
	}
	if voice == "" {
		voice = "alloy"
	}
	return &OpenAIClient{
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		BaseURL:    "https://api.openai.com/v1",
		APIKey:     apiKey,
		Model:      model,
		Voice:      voice,
	}
}

// Synthesize returns audio bytes for the text. Callers are expected to have
// filtered empty text already; it is rejected here as a guard.
func (c *OpenAIClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("openai tts: api key missing")
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("openai tts: empty input")
	}
	if runes := []rune(text); len(runes) > maxInputRunes {
		text = string(runes[:maxInputRunes])
	}

	payload := map[string]string{
		"model": c.Model,
		"voice": c.Voice,
		"input": text,
	}
	buf, _ := json.Marshal(payload)
	endpoint := strings.TrimRight(c.BaseURL, "/") + "/audio/speech"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai tts: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("openai tts error: status=%d body=%s", resp.StatusCode, string(b))
	}
	return io.ReadAll(resp.Body)
}
