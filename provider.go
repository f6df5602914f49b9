package chat

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrEmptyPrompt    = errors.New("chat: prompt is empty")
	ErrProviderFailed = errors.New("chat: provider error")
	ErrMissingAPIKey  = errors.New("chat: api key not configured")
)

// TextGenerator produces a text reply with the model selected by kind.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, kind TextKind) (*Result, error)
}

// VisionAnalyzer answers a prompt about an image on disk.
type VisionAnalyzer interface {
	Analyze(ctx context.Context, prompt, imagePath string) (*Result, error)
}

// ImageGenerator renders prompt into an image file.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (*Image, error)
}

// Extractor returns the plain text of a document. It never fails: problems
// are reported inside the returned text.
type Extractor interface {
	Extract(path string) string
}

// InteractionSink receives completed generations.
type InteractionSink interface {
	Record(ctx context.Context, in Interaction) error
}

// NopSink discards interactions.
type NopSink struct{}

func (NopSink) Record(context.Context, Interaction) error { return nil }

// MultiSink fans an interaction out to several sinks and joins their errors.
type MultiSink []InteractionSink

func (m MultiSink) Record(ctx context.Context, in Interaction) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, in); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("chat: record interaction: %w", errors.Join(errs...))
	}
	return nil
}
