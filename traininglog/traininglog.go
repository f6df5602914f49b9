// Package traininglog appends completed generations to a JSON Lines file that
// later feeds fine-tuning.
package traininglog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/meikuraledutech/chat"
)

const timestampLayout = "2006-01-02 15:04:05.000000"

type record struct {
	Timestamp string `json:"timestamp"`
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	Response  string `json:"response"`
	HasImage  bool   `json:"has_image"`
}

// Sink writes one JSON object per line. Appends are serialized.
type Sink struct {
	mu   sync.Mutex
	path string
}

func New(path string) *Sink {
	return &Sink{path: path}
}

func (s *Sink) Path() string {
	return s.path
}

func (s *Sink) Record(_ context.Context, in chat.Interaction) error {
	line, err := json.Marshal(record{
		Timestamp: in.Timestamp.Local().Format(timestampLayout),
		Model:     in.Model,
		Prompt:    in.Prompt,
		Response:  in.Response,
		HasImage:  in.HasImage,
	})
	if err != nil {
		return fmt.Errorf("traininglog: marshal: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("traininglog: create dir: %w", err)
		}
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("traininglog: open: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("traininglog: write: %w", err)
	}
	return f.Close()
}

var _ chat.InteractionSink = (*Sink)(nil)
