package traininglog

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/chat"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "training_data.jsonl")
	s := New(path)

	ts := time.Date(2025, 1, 2, 3, 4, 5, 600000000, time.Local)
	require.NoError(t, s.Record(context.Background(), chat.Interaction{
		Timestamp:  ts,
		SessionID:  "ignored",
		Capability: chat.CapabilityVision,
		Model:      "qwen2.5vl:7b",
		Prompt:     "what is \"this\"?",
		Response:   "a cat\non a mat",
		HasImage:   true,
	}))

	lines := readLines(t, path)
	require.Len(t, lines, 1)
	assert.Equal(t, map[string]any{
		"timestamp": "2025-01-02 03:04:05.600000",
		"model":     "qwen2.5vl:7b",
		"prompt":    "what is \"this\"?",
		"response":  "a cat\non a mat",
		"has_image": true,
	}, lines[0])
}

func TestConcurrentRecordsStayOnePerLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "training_data.jsonl")
	s := New(path)

	const n = 50
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Record(context.Background(), chat.Interaction{
				Timestamp: time.Now(),
				Model:     "mistral:latest",
				Prompt:    "p",
				Response:  string(rune('a' + i%26)),
			}))
		}()
	}
	wg.Wait()

	assert.Len(t, readLines(t, path), n)
}
