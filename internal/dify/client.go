package dify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

// Client talks to a Dify-compatible chat-workflow API.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	APIKey     string
}

// ChatRequest is the chat-messages payload.
type ChatRequest struct {
	Inputs         map[string]any `json:"inputs"`
	Query          string         `json:"query"`
	ResponseMode   string         `json:"response_mode"`
	User           string         `json:"user"`
	ConversationID string         `json:"conversation_id"`
}

// ChatResult is the outcome of one chat-messages call, blocking or streamed.
type ChatResult struct {
	Answer         string
	ConversationID string
}

// NewClient constructs a Client. Streaming responses can outlive a plain
// client timeout, so calls bound themselves with per-request contexts.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: 0},
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	return req, nil
}

// SendChatMessage performs a blocking chat-messages call.
func (c *Client) SendChatMessage(ctx context.Context, cr ChatRequest) (ChatResult, error) {
	if c.APIKey == "" {
		return ChatResult{}, fmt.Errorf("dify: api key missing")
	}
	cr.ResponseMode = "blocking"
	if cr.Inputs == nil {
		cr.Inputs = map[string]any{}
	}
	buf, _ := json.Marshal(cr)
	req, err := c.newRequest(ctx, http.MethodPost, "/chat-messages", bytes.NewReader(buf))
	if err != nil {
		return ChatResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return ChatResult{}, fmt.Errorf("dify: chat-messages: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return ChatResult{}, fmt.Errorf("dify error: status=%d body=%s", resp.StatusCode, string(b))
	}

	var out struct {
		Answer         string `json:"answer"`
		ConversationID string `json:"conversation_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ChatResult{}, fmt.Errorf("dify: decode response: %w", err)
	}
	return ChatResult{Answer: out.Answer, ConversationID: out.ConversationID}, nil
}

// StreamChatMessage performs a streaming chat-messages call, invoking
// onFragment for each answer fragment as it is decoded. A stream that ends
// without any fragment yields an empty but valid result.
func (c *Client) StreamChatMessage(ctx context.Context, cr ChatRequest, onFragment func(string)) (ChatResult, error) {
	if c.APIKey == "" {
		return ChatResult{}, fmt.Errorf("dify: api key missing")
	}
	cr.ResponseMode = "streaming"
	if cr.Inputs == nil {
		cr.Inputs = map[string]any{}
	}
	buf, _ := json.Marshal(cr)
	req, err := c.newRequest(ctx, http.MethodPost, "/chat-messages", bytes.NewReader(buf))
	if err != nil {
		return ChatResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return ChatResult{}, fmt.Errorf("dify: chat-messages stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return ChatResult{}, fmt.Errorf("dify error: status=%d body=%s", resp.StatusCode, string(b))
	}

	return DecodeStream(resp.Body, onFragment)
}

// UploadFile registers a document with the agent and returns its file id.
// The id is reused for every later turn of a document-grounded session.
func (c *Client) UploadFile(ctx context.Context, filename, contentType string, data []byte, user string) (string, error) {
	if c.APIKey == "" {
		return "", fmt.Errorf("dify: api key missing")
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	hdr.Set("Content-Type", contentType)
	fw, err := mw.CreatePart(hdr)
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(data); err != nil {
		return "", err
	}
	if err := mw.WriteField("user", user); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/files/upload", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("dify: files/upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("dify upload error: status=%d body=%s", resp.StatusCode, string(b))
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("dify: decode upload response: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("dify: upload returned no file id")
	}
	return out.ID, nil
}

// OpeningStatement fetches the application's configured opening statement.
func (c *Client) OpeningStatement(ctx context.Context, user string) (string, error) {
	if c.APIKey == "" {
		return "", fmt.Errorf("dify: api key missing")
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/parameters", nil)
	if err != nil {
		return "", err
	}
	q := req.URL.Query()
	q.Set("user", user)
	req.URL.RawQuery = q.Encode()

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("dify: parameters: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("dify parameters error: status=%d body=%s", resp.StatusCode, string(b))
	}

	var out struct {
		OpeningStatement string `json:"opening_statement"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("dify: decode parameters: %w", err)
	}
	return out.OpeningStatement, nil
}

// withTimeout is a convenience for callers that do not already carry a
// deadline; collaborator calls must never hang the single thread.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 60 * time.Second
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
