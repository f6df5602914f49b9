// Package extract turns uploaded documents into plain text for prompt
// context. Supported formats are PDF, DOCX, PPTX and plain text.
package extract

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/meikuraledutech/chat"
)

const (
	unsupported = "Unsupported file format."
	errorPrefix = "Error reading file: "
)

// Extractor dispatches on the file extension. It never returns an error:
// failures come back as text starting with "Error reading file: ".
type Extractor struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

func (e *Extractor) Extract(path string) string {
	var (
		text string
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		text, err = readPDF(path)
	case ".docx":
		text, err = readDOCX(path)
	case ".pptx":
		text, err = readPPTX(path)
	case ".txt":
		text, err = readText(path)
	default:
		return unsupported
	}

	if err != nil {
		e.logger.Warn("extract document", zap.String("path", path), zap.Error(err))
		return errorPrefix + err.Error()
	}
	return text
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

var _ chat.Extractor = (*Extractor)(nil)
