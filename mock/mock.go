// Package mock provides deterministic generation backends for local runs and
// tests. No network access is needed.
package mock

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/meikuraledutech/chat"
	"github.com/meikuraledutech/chat/hfimage"
)

const Model = "mock"

// Backend echoes prompts and renders a single pixel for image requests.
type Backend struct {
	// Dir receives generated images.
	Dir string
}

func New(dir string) *Backend {
	return &Backend{Dir: dir}
}

func (b *Backend) Generate(_ context.Context, prompt string, kind chat.TextKind) (*chat.Result, error) {
	if prompt == "" {
		return nil, chat.ErrEmptyPrompt
	}
	return &chat.Result{
		Content: fmt.Sprintf("[%s] %s", kind, prompt),
		Model:   Model + "-" + string(kind),
	}, nil
}

func (b *Backend) Analyze(_ context.Context, prompt, imagePath string) (*chat.Result, error) {
	if _, err := os.Stat(imagePath); err != nil {
		return nil, fmt.Errorf("mock: %w", err)
	}
	return &chat.Result{
		Content: fmt.Sprintf("[vision:%s] %s", filepath.Base(imagePath), prompt),
		Model:   Model + "-vision",
	}, nil
}

func (b *Backend) GenerateImage(_ context.Context, prompt string) (*chat.Image, error) {
	if err := os.MkdirAll(b.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("mock: create dir: %w", err)
	}

	path := filepath.Join(b.Dir, hfimage.FileName(time.Now()))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("mock: create image: %w", err)
	}
	defer f.Close()

	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.RGBA{R: uint8(len(prompt)), A: 0xff})
	if err := png.Encode(f, img); err != nil {
		return nil, fmt.Errorf("mock: encode image: %w", err)
	}

	return &chat.Image{Path: path, Model: Model + "-image"}, nil
}

var (
	_ chat.TextGenerator  = (*Backend)(nil)
	_ chat.VisionAnalyzer = (*Backend)(nil)
	_ chat.ImageGenerator = (*Backend)(nil)
)
