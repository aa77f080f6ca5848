package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// OpenAIClient transcribes recorded audio via the audio/transcriptions API.
type OpenAIClient struct {
	HTTPClient *http.Client
	BaseURL    string
	APIKey     string
	Model      string
	Language   string
}

// NewOpenAIClient constructs a transcription client.
func NewOpenAIClient(apiKey, model, language string) *OpenAIClient {
	if model == "" {
		model = "whisper-1"
	}
	return &OpenAIClient{
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		BaseURL:    "https://api.openai.com/v1",
		APIKey:     apiKey,
		Model:      model,
		Language:   language,
	}
}

// Transcribe converts raw audio bytes into text.
func (c *OpenAIClient) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if c.APIKey == "" {
		return "", fmt.Errorf("openai stt: api key missing")
	}
	if len(audio) == 0 {
		return "", nil
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "recording.wav")
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(audio); err != nil {
		return "", err
	}
	if err := mw.WriteField("model", c.Model); err != nil {
		return "", err
	}
	if c.Language != "" {
		if err := mw.WriteField("language", c.Language); err != nil {
			return "", err
		}
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	endpoint := strings.TrimRight(c.BaseURL, "/") + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai stt: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("openai stt error: status=%d body=%s", resp.StatusCode, string(b))
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("openai stt: decode response: %w", err)
	}
	return strings.TrimSpace(out.Text), nil
}
