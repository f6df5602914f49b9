// Package hfimage implements chat.ImageGenerator with the Hugging Face
// inference API and writes results as PNG files.
package hfimage

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/meikuraledutech/chat"
)

const (
	DefaultBaseURL = "https://router.huggingface.co/hf-inference"
	DefaultModel   = "stabilityai/stable-diffusion-xl-base-1.0"
)

type Config struct {
	Token   string
	Model   string
	BaseURL string
	// Dir receives generated images; it is created on demand.
	Dir string
}

type Generator struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
	now    func() time.Time
}

func New(cfg Config, logger *zap.Logger) *Generator {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Dir == "" {
		cfg.Dir = "generated_images"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Generator{cfg: cfg, http: &http.Client{}, logger: logger, now: time.Now}
}

// GenerateImage renders prompt and returns the path of the written file.
func (g *Generator) GenerateImage(ctx context.Context, prompt string) (*chat.Image, error) {
	if g.cfg.Token == "" {
		return nil, fmt.Errorf("%w: HF_TOKEN not found in environment variables", chat.ErrMissingAPIKey)
	}

	body, err := json.Marshal(map[string]string{"inputs": prompt})
	if err != nil {
		return nil, fmt.Errorf("hfimage: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s", g.cfg.BaseURL, g.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("hfimage: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/png")

	g.logger.Info("generating image", zap.String("model", g.cfg.Model))

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hfimage: send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("hfimage: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: hfimage status %d: %s", chat.ErrProviderFailed, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if ct := http.DetectContentType(data); !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("%w: hfimage returned %s, not an image", chat.ErrProviderFailed, ct)
	}

	path, err := g.write(data)
	if err != nil {
		return nil, err
	}

	return &chat.Image{Path: path, Model: g.cfg.Model}, nil
}

func (g *Generator) write(data []byte) (string, error) {
	if err := os.MkdirAll(g.cfg.Dir, 0o755); err != nil {
		return "", fmt.Errorf("hfimage: create dir: %w", err)
	}

	path := filepath.Join(g.cfg.Dir, FileName(g.now()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("hfimage: write image: %w", err)
	}
	return path, nil
}

// FileName returns gen_<YYYYmmdd_HHMMSS>_<8 hex>.png for t.
func FileName(t time.Time) string {
	var b [4]byte
	rand.Read(b[:])
	return fmt.Sprintf("gen_%s_%s.png", t.Format("20060102_150405"), hex.EncodeToString(b[:]))
}

var _ chat.ImageGenerator = (*Generator)(nil)
