package transcribe

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

const (
	defaultModel = "whisper-1"

	// Audio uploads are slower than chat calls; give them more room.
	defaultHTTPTimeout = 60 * time.Second
)

// Client sends recorded audio to an OpenAI-compatible transcription endpoint
// and returns the recognized text. One call per recording, no retries.
type Client struct {
	apiBase    string
	apiKey     string
	model      string
	httpClient *http.Client
}

type Options struct {
	Model      string
	HTTPClient *http.Client
}

func NewClient(apiBase, apiKey string, opts Options) (*Client, error) {
	apiBase = strings.TrimRight(strings.TrimSpace(apiBase), "/")
	if apiBase == "" {
		return nil, fmt.Errorf("transcription API base is required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("transcription API key is required")
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	return &Client{
		apiBase:    apiBase,
		apiKey:     strings.TrimSpace(apiKey),
		model:      model,
		httpClient: httpClient,
	}, nil
}

// Transcribe uploads one recording and returns its text. filename carries the
// extension the endpoint uses to sniff the container format.
func (c *Client) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("client not initialized")
	}
	if filename = strings.TrimSpace(filename); filename == "" {
		filename = "recording.webm"
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return "", fmt.Errorf("copy audio: %w", err)
	}
	if err := form.WriteField("model", c.model); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/audio/transcriptions", &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send transcription request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("transcription failed: status=%d body=%s", resp.StatusCode, truncate(body))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("parse transcription response: %w", err)
	}
	return result.Text, nil
}

func truncate(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if len(trimmed) > 500 {
		return trimmed[:500] + "..."
	}
	return trimmed
}
