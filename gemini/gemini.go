// Package gemini implements the text and vision backends on the Gemini API
// through the google.golang.org/genai SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/meikuraledutech/chat"
)

const maxAttempts = 2

var errEmptyResponse = errors.New("empty response from Gemini")

// Fail reasons reported in logs.
const (
	failReasonTimeout = "timeout"
	failReasonNetwork = "network_error"
	failReasonEmpty   = "empty_response"
	failReasonUnknown = "unknown_error"
)

// Config selects the key and models. Model is the default for any kind left
// empty in Models. BaseURL overrides the API endpoint.
type Config struct {
	APIKey  string
	Model   string
	Models  chat.ModelSet
	BaseURL string
}

// GeminiProvider implements chat.TextGenerator and chat.VisionAnalyzer.
type GeminiProvider struct {
	client *genai.Client
	models chat.ModelSet
	logger *zap.Logger
}

// New creates a GeminiProvider. An empty API key yields chat.ErrMissingAPIKey.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: GEMINI_API not set: %w", chat.ErrMissingAPIKey)
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &GeminiProvider{client: client, models: withDefault(cfg.Models, cfg.Model), logger: logger}, nil
}

func withDefault(m chat.ModelSet, model string) chat.ModelSet {
	for _, name := range []*string{&m.Vision, &m.Logic, &m.Code, &m.General} {
		if *name == "" {
			*name = model
		}
	}
	return m
}

// Generate answers prompt with the model configured for kind.
func (g *GeminiProvider) Generate(ctx context.Context, prompt string, kind chat.TextKind) (*chat.Result, error) {
	if prompt == "" {
		return nil, chat.ErrEmptyPrompt
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	return g.send(ctx, g.models.ForKind(kind), contents, zap.String("kind", string(kind)))
}

// Analyze answers prompt about the image at imagePath, sent inline.
func (g *GeminiProvider) Analyze(ctx context.Context, prompt, imagePath string) (*chat.Result, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("gemini: read image: %w", err)
	}

	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
		genai.NewPartFromBytes(data, http.DetectContentType(data)),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	return g.send(ctx, g.models.Vision, contents, zap.String("kind", "vision"))
}

// send calls GenerateContent, retrying once on timeouts and network errors.
func (g *GeminiProvider) send(ctx context.Context, model string, contents []*genai.Content, fields ...zap.Field) (*chat.Result, error) {
	log := g.logger.With(append(fields, zap.String("model", model))...)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := g.sendOnce(ctx, model, contents)
		if err == nil {
			return result, nil
		}

		lastErr = err
		reason := classifyError(err)
		log.Warn("gemini request failed",
			zap.Int("attempt", attempt),
			zap.String("fail_reason", reason),
			zap.Error(err),
		)

		if !retryable(reason) || ctx.Err() != nil {
			break
		}
	}

	return nil, lastErr
}

func (g *GeminiProvider) sendOnce(ctx context.Context, model string, contents []*genai.Content) (*chat.Result, error) {
	resp, err := g.client.Models.GenerateContent(ctx, model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini: %w", chat.ErrProviderFailed, err)
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("%w: %w", chat.ErrProviderFailed, errEmptyResponse)
	}

	return &chat.Result{Content: text, Model: model}, nil
}

// classifyError categorizes an error to determine the fail reason.
func classifyError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return failReasonTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return failReasonTimeout
		}
		return failReasonNetwork
	}

	if errors.Is(err, context.Canceled) {
		return failReasonNetwork
	}

	if errors.Is(err, errEmptyResponse) {
		return failReasonEmpty
	}

	return failReasonUnknown
}

func retryable(reason string) bool {
	return reason == failReasonTimeout || reason == failReasonNetwork
}

var (
	_ chat.TextGenerator  = (*GeminiProvider)(nil)
	_ chat.VisionAnalyzer = (*GeminiProvider)(nil)
)
