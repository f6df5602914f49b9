// Package ollama implements the text and vision backends against a local
// Ollama server's chat API.
package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/meikuraledutech/chat"
)

const DefaultHost = "http://localhost:11434"

// Client talks to POST {host}/api/chat with streaming disabled.
type Client struct {
	host   string
	models chat.ModelSet
	http   *http.Client
	logger *zap.Logger
}

// New creates a Client. Empty fields of models fall back to the defaults.
func New(host string, models chat.ModelSet, logger *zap.Logger) *Client {
	if host == "" {
		host = DefaultHost
	}
	defaults := chat.DefaultModels()
	if models.Vision == "" {
		models.Vision = defaults.Vision
	}
	if models.General == "" {
		models.General = defaults.General
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		host:   strings.TrimRight(host, "/"),
		models: models,
		http:   &http.Client{},
		logger: logger,
	}
}

// WithHTTPClient replaces the HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Model   string      `json:"model"`
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error"`
}

// Generate answers prompt with the model configured for kind.
func (c *Client) Generate(ctx context.Context, prompt string, kind chat.TextKind) (*chat.Result, error) {
	if prompt == "" {
		return nil, chat.ErrEmptyPrompt
	}
	model := c.models.ForKind(kind)
	return c.chat(ctx, model, chatMessage{Role: "user", Content: prompt})
}

// Analyze sends the image at imagePath to the vision model.
func (c *Client) Analyze(ctx context.Context, prompt, imagePath string) (*chat.Result, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("ollama: read image: %w", err)
	}

	return c.chat(ctx, c.models.Vision, chatMessage{
		Role:    "user",
		Content: prompt,
		Images:  []string{base64.StdEncoding.EncodeToString(data)},
	})
}

func (c *Client) chat(ctx context.Context, model string, msg chatMessage) (*chat.Result, error) {
	body, err := json.Marshal(chatRequest{Model: model, Messages: []chatMessage{msg}})
	if err != nil {
		return nil, fmt.Errorf("ollama: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("ollama chat", zap.String("model", model), zap.Bool("image", len(msg.Images) > 0))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama: send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ollama: read response: %w", err)
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil && resp.StatusCode == http.StatusOK {
		return nil, fmt.Errorf("ollama: parse response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		detail := out.Error
		if detail == "" {
			detail = strings.TrimSpace(string(raw))
		}
		return nil, fmt.Errorf("%w: ollama status %d: %s", chat.ErrProviderFailed, resp.StatusCode, detail)
	}

	return &chat.Result{Content: out.Message.Content, Model: model}, nil
}

var (
	_ chat.TextGenerator  = (*Client)(nil)
	_ chat.VisionAnalyzer = (*Client)(nil)
)
